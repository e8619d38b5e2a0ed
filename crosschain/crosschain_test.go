package crosschain_test

import (
	"math/big"
	"testing"

	"github.com/meshswap/relayer/auction"
	"github.com/meshswap/relayer/crosschain"
	"github.com/meshswap/relayer/escrow"
	"github.com/meshswap/relayer/hashlock"
	"github.com/meshswap/relayer/orderbook"
	"github.com/meshswap/relayer/timelock"
	"github.com/stretchr/testify/require"
)

type memPreimages struct{ seen map[string]bool }

func newMemPreimages() *memPreimages { return &memPreimages{seen: make(map[string]bool)} }
func (m *memPreimages) Contains(chain string, p hashlock.Preimage) bool {
	return m.seen[chain+string(p[:])]
}
func (m *memPreimages) Add(chain string, p hashlock.Preimage) bool {
	k := chain + string(p[:])
	if m.seen[k] {
		return false
	}
	m.seen[k] = true
	return true
}

type staticAuthorizer map[string]bool

func (s staticAuthorizer) IsAuthorized(addr string) bool { return s[addr] }

func lockAfter(now int64) timelock.Lock {
	return timelock.Lock{
		Withdrawal:         now + 1,
		PublicWithdrawal:   now + 100,
		Cancellation:       now + 200,
		PublicCancellation: now + 300,
	}
}

// samplePreimage is the one secret sampleConfig's SecretHash commits to;
// every test that fills an order built from sampleConfig must use it.
func samplePreimage() hashlock.Preimage {
	var p hashlock.Preimage
	copy(p[:], "crosschain-fill-preimage-32-byte")
	return p
}

func sampleConfig() crosschain.Config {
	return crosschain.Config{
		DestChainID:      2,
		DestAddress:      "move1resolverdest",
		SecretHash:       hashlock.Lock(samplePreimage()),
		TimelockDuration: 600,
	}
}

func newBooks() (*crosschain.Book, *escrow.Book, *escrow.Book) {
	srcEscrows := escrow.NewBook("src", newMemPreimages(), nil, nil)
	dstEscrows := escrow.NewBook("dst", newMemPreimages(), nil, nil)
	authz := staticAuthorizer{"r1": true}
	ob := orderbook.NewBook(srcEscrows, authz)
	return crosschain.NewBook(ob, srcEscrows, dstEscrows), srcEscrows, dstEscrows
}

func sampleAuction() auction.Config {
	return auction.Config{
		Start: 300, End: 3_900,
		StartRate: big.NewInt(2_000_000_000_000_000_000),
		EndRate:   big.NewInt(1_000_000_000_000_000_000),
	}
}

func TestCreateRejectsIncompleteDestConfig(t *testing.T) {
	book, _, _ := newBooks()
	_, err := book.Create(crosschain.CreateParams{
		CreateParams: orderbook.CreateParams{
			Maker:             "maker",
			SourceAmount:      big.NewInt(1_000_000_000_000_000_000),
			DestinationAmount: big.NewInt(2_000_000_000_000_000_000),
			Deadline:          3_900,
			AuctionConfig:     sampleAuction(),
			Now:               0,
		},
		Dest: crosschain.Config{},
	})
	require.ErrorIs(t, err, crosschain.ErrInvalidConfig)
}

func TestFillThenInitiateDestinationSpawnsBothLegs(t *testing.T) {
	book, _, dstEscrows := newBooks()

	order, err := book.Create(crosschain.CreateParams{
		CreateParams: orderbook.CreateParams{
			Maker:             "maker",
			SourceAmount:      big.NewInt(1_000_000_000_000_000_000),
			DestinationAmount: big.NewInt(2_000_000_000_000_000_000),
			Deadline:          3_900,
			AuctionConfig:     sampleAuction(),
			Now:               0,
		},
		Dest: sampleConfig(),
	})
	require.NoError(t, err)

	out, err := book.Fill(order.Hash, crosschain.FillParams{
		Resolver:  "r1",
		Preimage:  samplePreimage(),
		Amount:    order.SourceAmount,
		Timelocks: lockAfter(2_000),
		Now:       1_950,
	})
	require.NoError(t, err)

	destID, err := book.InitiateDestination(order.Hash, out.EscrowID, lockAfter(1_950), 1_950)
	require.NoError(t, err)
	require.NotEqual(t, out.EscrowID, destID)

	destEscrow, err := dstEscrows.Get(destID)
	require.NoError(t, err)
	require.Equal(t, escrow.Destination, destEscrow.Role)
	require.Equal(t, "maker", destEscrow.Maker)
	require.Equal(t, "r1", destEscrow.Taker)

	// Idempotent: calling again returns the same id without erroring.
	again, err := book.InitiateDestination(order.Hash, out.EscrowID, lockAfter(1_950), 1_950)
	require.NoError(t, err)
	require.Equal(t, destID, again)
}

// TestFillRejectsPreimageNotMatchingSecretHash covers §3/§4.7's order-level
// secret commitment: a fill whose preimage does not hash to the order's
// Dest.SecretHash must be rejected, never spawn a source escrow.
func TestFillRejectsPreimageNotMatchingSecretHash(t *testing.T) {
	book, _, _ := newBooks()
	order, err := book.Create(crosschain.CreateParams{
		CreateParams: orderbook.CreateParams{
			Maker:             "maker",
			SourceAmount:      big.NewInt(1_000_000_000_000_000_000),
			DestinationAmount: big.NewInt(2_000_000_000_000_000_000),
			Deadline:          3_900,
			AuctionConfig:     sampleAuction(),
			Now:               0,
		},
		Dest: sampleConfig(),
	})
	require.NoError(t, err)

	var wrongPreimage hashlock.Preimage
	copy(wrongPreimage[:], "a-totally-different-32-byte-val")

	_, err = book.Fill(order.Hash, crosschain.FillParams{
		Resolver:  "r1",
		Preimage:  wrongPreimage,
		Amount:    order.SourceAmount,
		Timelocks: lockAfter(1_950),
		Now:       1_950,
	})
	require.ErrorIs(t, err, crosschain.ErrInvalidSecret)

	got, err := book.Get(order.Hash)
	require.NoError(t, err)
	require.Equal(t, 0, got.TotalFills)
}

// TestSecondFillRejectsDifferentPreimageScenarioS2 covers S2's negative
// case: a first fill with the order's committed preimage succeeds, but a
// second fill on the same OrderHash with a different preimage is rejected
// rather than silently accepted with a second, inconsistent secret.
func TestSecondFillRejectsDifferentPreimageScenarioS2(t *testing.T) {
	book, _, _ := newBooks()
	order, err := book.Create(crosschain.CreateParams{
		CreateParams: orderbook.CreateParams{
			Maker:             "maker",
			SourceAmount:      big.NewInt(1_000_000_000_000_000_000),
			DestinationAmount: big.NewInt(2_000_000_000_000_000_000),
			Deadline:          3_900,
			AuctionConfig:     sampleAuction(),
			Now:               0,
		},
		Dest: sampleConfig(),
	})
	require.NoError(t, err)

	_, err = book.Fill(order.Hash, crosschain.FillParams{
		Resolver:  "r1",
		Preimage:  samplePreimage(),
		Amount:    big.NewInt(400_000_000_000_000_000),
		Timelocks: lockAfter(600),
		Now:       600,
	})
	require.NoError(t, err)

	var differentPreimage hashlock.Preimage
	copy(differentPreimage[:], "a-different-second-fill-preimag")

	_, err = book.Fill(order.Hash, crosschain.FillParams{
		Resolver:  "r1",
		Preimage:  differentPreimage,
		Amount:    big.NewInt(600_000_000_000_000_000),
		Timelocks: lockAfter(1_200),
		Now:       1_200,
	})
	require.ErrorIs(t, err, crosschain.ErrInvalidSecret)

	got, err := book.Get(order.Hash)
	require.NoError(t, err)
	require.Equal(t, 1, got.TotalFills)
}

func TestCancelIsMakerOnly(t *testing.T) {
	book, _, _ := newBooks()
	order, err := book.Create(crosschain.CreateParams{
		CreateParams: orderbook.CreateParams{
			Maker:             "maker",
			SourceAmount:      big.NewInt(1_000),
			DestinationAmount: big.NewInt(1_000),
			Deadline:          3_900,
			AuctionConfig:     sampleAuction(),
			Now:               0,
		},
		Dest: sampleConfig(),
	})
	require.NoError(t, err)

	_, err = book.Cancel(order.Hash, "not-maker")
	require.ErrorIs(t, err, orderbook.ErrNotMaker)

	cancelled, err := book.Cancel(order.Hash, "maker")
	require.NoError(t, err)
	require.False(t, cancelled.Active)
}
