package coordinator_test

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"math/big"
	"testing"
	"time"

	"github.com/meshswap/relayer/auction"
	"github.com/meshswap/relayer/chainclient"
	"github.com/meshswap/relayer/chainclient/fake"
	signerfake "github.com/meshswap/relayer/signer/fake"

	"github.com/meshswap/relayer/coordinator"
	"github.com/meshswap/relayer/crosschain"
	"github.com/meshswap/relayer/escrow"
	"github.com/meshswap/relayer/hashlock"
	"github.com/meshswap/relayer/orderbook"
	"github.com/meshswap/relayer/store"
	"github.com/meshswap/relayer/timelock"
	"github.com/stretchr/testify/require"
)

type staticAuthorizer map[string]bool

func (s staticAuthorizer) IsAuthorized(addr string) bool { return s[addr] }

type harness struct {
	db         *store.DB
	crosschain *crosschain.Book
	srcEscrows *escrow.Book
	dstEscrows *escrow.Book
	journal    *coordinator.Journal
	engine     *coordinator.Engine
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	db, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	srcEscrows := escrow.NewBook("src", db.UsedPreimages(), nil, db.KV())
	dstEscrows := escrow.NewBook("dst", db.UsedPreimages(), nil, db.KV())
	authz := staticAuthorizer{"r1": true}
	ob := orderbook.NewBook(srcEscrows, authz)
	cc := crosschain.NewBook(ob, srcEscrows, dstEscrows)

	journal := coordinator.NewJournal(db.Log())
	engine := coordinator.NewEngine(2, cc, srcEscrows, dstEscrows, journal,
		fake.New("src"), fake.New("dst"), signerfake.New("src-key"), signerfake.New("dst-key"))

	h := &harness{db: db, crosschain: cc, srcEscrows: srcEscrows, dstEscrows: dstEscrows, journal: journal, engine: engine}
	engine.Start(context.Background(), 2)
	t.Cleanup(engine.Stop)
	return h
}

// sampleDestConfig commits the order to preimage: crosschain.Fill rejects
// any fill whose preimage does not hash to SecretHash.
func sampleDestConfig(preimage hashlock.Preimage) crosschain.Config {
	return crosschain.Config{
		DestChainID:      2,
		DestAddress:      "move1dest",
		SecretHash:       hashlock.Lock(preimage),
		TimelockDuration: 600,
	}
}

func sampleAuction() auction.Config {
	return auction.Config{
		Start: 300, End: 3_900,
		StartRate: big.NewInt(2_000_000_000_000_000_000),
		EndRate:   big.NewInt(1_000_000_000_000_000_000),
	}
}

// TestHappyPathSingleFill covers scenario S1: fill, destination initiation,
// preimage relay to both legs, both escrows terminal.
func TestHappyPathSingleFill(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var preimage hashlock.Preimage
	copy(preimage[:], "coordinator-happy-path-preimage!")

	order, err := h.crosschain.Create(crosschain.CreateParams{
		CreateParams: orderbook.CreateParams{
			Maker:             "maker",
			SourceAmount:      big.NewInt(1_000_000_000_000_000_000),
			DestinationAmount: big.NewInt(2_000_000_000_000_000_000),
			Deadline:          3_900,
			AuctionConfig:     sampleAuction(),
			Now:               0,
		},
		Dest: sampleDestConfig(preimage),
	})
	require.NoError(t, err)

	srcTimelocks := timelock.Lock{Withdrawal: 2_100, PublicWithdrawal: 2_400, Cancellation: 2_700, PublicCancellation: 3_000}

	fillRes, err := h.crosschain.Fill(order.Hash, crosschain.FillParams{
		Resolver:  "r1",
		Preimage:  preimage,
		Amount:    order.SourceAmount,
		Timelocks: srcTimelocks,
		Now:       1_950,
	})
	require.NoError(t, err)

	require.NoError(t, h.engine.HandleFilled(ctx, order.Hash, fillRes.EscrowID, time.Unix(1_950, 0)))

	entry, err := h.journal.Get(order.Hash)
	require.NoError(t, err)
	require.Equal(t, coordinator.DestinationInitiated, entry.State)

	require.NoError(t, h.engine.HandlePreimageRevealed(ctx, order.Hash, preimage, time.Unix(2_150, 0)))

	entry, err = h.journal.Get(order.Hash)
	require.NoError(t, err)
	require.Equal(t, coordinator.Completed, entry.State)
	require.Equal(t, preimage, *entry.Preimage)

	srcEsc, err := h.srcEscrows.Get(entry.SrcEscrowID)
	require.NoError(t, err)
	require.Equal(t, escrow.Filled, srcEsc.Status)

	dstEsc, err := h.dstEscrows.Get(entry.DestEscrowID)
	require.NoError(t, err)
	require.Equal(t, escrow.Filled, dstEsc.Status)
	require.Equal(t, 0, dstEsc.TotalAmount.Cmp(fillRes.Taking))
}

// TestDestinationInitiationIsIdempotent covers §4.8(c)'s idempotence: a
// repeated HandleFilled for the same order does not create a second
// destination escrow or regress the journal state.
func TestDestinationInitiationIsIdempotent(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var preimage hashlock.Preimage
	copy(preimage[:], "idempotent-destination-preimage!")

	order, err := h.crosschain.Create(crosschain.CreateParams{
		CreateParams: orderbook.CreateParams{
			Maker:             "maker",
			SourceAmount:      big.NewInt(1_000),
			DestinationAmount: big.NewInt(2_000),
			Deadline:          3_900,
			AuctionConfig:     sampleAuction(),
			Now:               0,
		},
		Dest: sampleDestConfig(preimage),
	})
	require.NoError(t, err)

	fillRes, err := h.crosschain.Fill(order.Hash, crosschain.FillParams{
		Resolver:  "r1",
		Preimage:  preimage,
		Amount:    order.SourceAmount,
		Timelocks: timelock.Lock{Withdrawal: 2_100, PublicWithdrawal: 2_400, Cancellation: 2_700, PublicCancellation: 3_000},
		Now:       1_950,
	})
	require.NoError(t, err)

	require.NoError(t, h.engine.HandleFilled(ctx, order.Hash, fillRes.EscrowID, time.Unix(1_950, 0)))
	first, err := h.journal.Get(order.Hash)
	require.NoError(t, err)

	require.NoError(t, h.engine.HandleFilled(ctx, order.Hash, fillRes.EscrowID, time.Unix(1_960, 0)))
	second, err := h.journal.Get(order.Hash)
	require.NoError(t, err)

	require.Equal(t, first.DestEscrowID, second.DestEscrowID)
	require.Equal(t, coordinator.DestinationInitiated, second.State)
}

// TestRestartRecoveryReplaysJournal covers scenario S5: a fresh Journal
// over the same store.Log rebuilds the DestinationInitiated entry without
// any further effects.
func TestRestartRecoveryReplaysJournal(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var preimage hashlock.Preimage
	copy(preimage[:], "restart-recovery-test-preimage!!")

	order, err := h.crosschain.Create(crosschain.CreateParams{
		CreateParams: orderbook.CreateParams{
			Maker:             "maker",
			SourceAmount:      big.NewInt(1_000),
			DestinationAmount: big.NewInt(2_000),
			Deadline:          3_900,
			AuctionConfig:     sampleAuction(),
			Now:               0,
		},
		Dest: sampleDestConfig(preimage),
	})
	require.NoError(t, err)

	fillRes, err := h.crosschain.Fill(order.Hash, crosschain.FillParams{
		Resolver:  "r1",
		Preimage:  preimage,
		Amount:    order.SourceAmount,
		Timelocks: timelock.Lock{Withdrawal: 2_100, PublicWithdrawal: 2_400, Cancellation: 2_700, PublicCancellation: 3_000},
		Now:       1_950,
	})
	require.NoError(t, err)
	require.NoError(t, h.engine.HandleFilled(ctx, order.Hash, fillRes.EscrowID, time.Unix(1_950, 0)))

	recovered := coordinator.NewJournal(h.db.Log())
	require.NoError(t, recovered.LoadFromLog())

	entry, err := recovered.Get(order.Hash)
	require.NoError(t, err)
	require.Equal(t, coordinator.DestinationInitiated, entry.State)

	destEsc, err := h.dstEscrows.Get(entry.DestEscrowID)
	require.NoError(t, err)
	require.Equal(t, escrow.Created, destEsc.Status)
}

// TestCancellationCascadeRefundsBothLegs covers scenario S3: with no
// preimage ever revealed, calling HandleCancellation once the respective
// public-cancellation stages begin refunds each leg exactly once.
func TestCancellationCascadeRefundsBothLegs(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var preimage hashlock.Preimage
	copy(preimage[:], "cancellation-cascade-preimage!!!")

	destCfg := sampleDestConfig(preimage)
	destCfg.TimelockDuration = 200 // short destination leg, refundable well before the source leg

	order, err := h.crosschain.Create(crosschain.CreateParams{
		CreateParams: orderbook.CreateParams{
			Maker:             "maker",
			SourceAmount:      big.NewInt(1_000),
			DestinationAmount: big.NewInt(2_000),
			Deadline:          3_900,
			AuctionConfig:     sampleAuction(),
			Now:               0,
		},
		Dest: destCfg,
	})
	require.NoError(t, err)

	srcTimelocks := timelock.Lock{Withdrawal: 2_200, PublicWithdrawal: 2_500, Cancellation: 2_800, PublicCancellation: 3_100}
	fillRes, err := h.crosschain.Fill(order.Hash, crosschain.FillParams{
		Resolver:  "r1",
		Preimage:  preimage,
		Amount:    order.SourceAmount,
		Timelocks: srcTimelocks,
		Now:       1_950,
	})
	require.NoError(t, err)
	require.NoError(t, h.engine.HandleFilled(ctx, order.Hash, fillRes.EscrowID, time.Unix(1_950, 0)))

	entry, err := h.journal.Get(order.Hash)
	require.NoError(t, err)
	destEsc, err := h.dstEscrows.Get(entry.DestEscrowID)
	require.NoError(t, err)

	// Destination leg's public cancellation begins first; refund it, then
	// wait for the source leg's own public cancellation.
	require.NoError(t, h.engine.HandleCancellation(ctx, order.Hash, time.Unix(destEsc.Timelocks.PublicCancellation, 0)))

	entry, err = h.journal.Get(order.Hash)
	require.NoError(t, err)
	require.Equal(t, coordinator.DestinationInitiated, entry.State) // source leg not yet refundable

	require.NoError(t, h.engine.HandleCancellation(ctx, order.Hash, time.Unix(srcTimelocks.PublicCancellation, 0)))

	entry, err = h.journal.Get(order.Hash)
	require.NoError(t, err)
	require.Equal(t, coordinator.Abandoned, entry.State)

	srcEsc, err := h.srcEscrows.Get(entry.SrcEscrowID)
	require.NoError(t, err)
	require.Equal(t, escrow.Cancelled, srcEsc.Status)

	destEsc, err = h.dstEscrows.Get(entry.DestEscrowID)
	require.NoError(t, err)
	require.Equal(t, escrow.Cancelled, destEsc.Status)
}

// TestWatchRoutesFilledEvent covers the chain-event-ingestion path: a
// "filled" event delivered on the source chain's log stream drives the
// same destination-initiation effect HandleFilled would, without the
// caller ever calling HandleFilled directly.
func TestWatchRoutesFilledEvent(t *testing.T) {
	h := newHarness(t)

	var preimage hashlock.Preimage
	copy(preimage[:], "watch-loop-routing-test-preimage")

	order, err := h.crosschain.Create(crosschain.CreateParams{
		CreateParams: orderbook.CreateParams{
			Maker:             "maker",
			SourceAmount:      big.NewInt(1_000),
			DestinationAmount: big.NewInt(2_000),
			Deadline:          3_900,
			AuctionConfig:     sampleAuction(),
			Now:               0,
		},
		Dest: sampleDestConfig(preimage),
	})
	require.NoError(t, err)

	fillRes, err := h.crosschain.Fill(order.Hash, crosschain.FillParams{
		Resolver:  "r1",
		Preimage:  preimage,
		Amount:    order.SourceAmount,
		Timelocks: timelock.Lock{Withdrawal: 2_100, PublicWithdrawal: 2_400, Cancellation: 2_700, PublicCancellation: 3_000},
		Now:       1_950,
	})
	require.NoError(t, err)

	srcFake, ok := h.engine.SrcClient.(*fake.Client)
	require.True(t, ok)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	watchDone := make(chan error, 1)
	go func() {
		watchDone <- h.engine.Watch(ctx, chainclientLogFilter("src"), chainclientLogFilter("dst"))
	}()

	payload, err := json.Marshal(map[string]string{
		"kind":       "filled",
		"order_hash": hex.EncodeToString(order.Hash[:]),
		"escrow_id":  hex.EncodeToString(fillRes.EscrowID[:]),
	})
	require.NoError(t, err)
	srcFake.Deliver(chainclient.LogEvent{Chain: "src", Data: payload})

	require.Eventually(t, func() bool {
		entry, err := h.journal.Get(order.Hash)
		return err == nil && entry.State == coordinator.DestinationInitiated
	}, time.Second, 5*time.Millisecond)

	cancel()
	<-watchDone
}

func chainclientLogFilter(chain string) chainclient.LogFilter {
	return chainclient.LogFilter{Chain: chain}
}

// TestRetryTickRetriesCancellation covers §4.8e: once a non-terminal
// order's Backoff window elapses, the retry loop re-drives the
// cancellation cascade on its own, without a fresh chain event.
func TestRetryTickRetriesCancellation(t *testing.T) {
	h := newHarness(t)
	ctx := context.Background()

	var preimage hashlock.Preimage
	copy(preimage[:], "retry-loop-cancellation-preimage")

	destCfg := sampleDestConfig(preimage)
	destCfg.TimelockDuration = 200

	order, err := h.crosschain.Create(crosschain.CreateParams{
		CreateParams: orderbook.CreateParams{
			Maker:             "maker",
			SourceAmount:      big.NewInt(1_000),
			DestinationAmount: big.NewInt(2_000),
			Deadline:          3_900,
			AuctionConfig:     sampleAuction(),
			Now:               0,
		},
		Dest: destCfg,
	})
	require.NoError(t, err)

	srcTimelocks := timelock.Lock{Withdrawal: 2_200, PublicWithdrawal: 2_500, Cancellation: 2_800, PublicCancellation: 3_100}
	fillRes, err := h.crosschain.Fill(order.Hash, crosschain.FillParams{
		Resolver:  "r1",
		Preimage:  preimage,
		Amount:    order.SourceAmount,
		Timelocks: srcTimelocks,
		Now:       1_950,
	})
	require.NoError(t, err)
	require.NoError(t, h.engine.HandleFilled(ctx, order.Hash, fillRes.EscrowID, time.Unix(1_950, 0)))

	entry, err := h.journal.Get(order.Hash)
	require.NoError(t, err)
	destEsc, err := h.dstEscrows.Get(entry.DestEscrowID)
	require.NoError(t, err)

	// Back-date the journal entry's LastStepAt so the retry tick sees the
	// destination leg's public-cancellation deadline as already due.
	entry.LastStepAt = destEsc.Timelocks.PublicCancellation
	require.NoError(t, h.journal.Record(entry, time.Unix(destEsc.Timelocks.PublicCancellation, 0)))

	retryAt := time.Unix(destEsc.Timelocks.PublicCancellation+1, 0)
	h.engine.RetryTick(ctx, retryAt)

	entry, err = h.journal.Get(order.Hash)
	require.NoError(t, err)
	require.Equal(t, coordinator.DestinationInitiated, entry.State)

	destEsc, err = h.dstEscrows.Get(entry.DestEscrowID)
	require.NoError(t, err)
	require.Equal(t, escrow.Cancelled, destEsc.Status)
}
