// Package orderbook implements the Dutch-auction limit-order protocol
// (C6): order creation and cancellation, and fills that spawn a bound
// source-side escrow and route funds to the filling resolver.
package orderbook

import (
	"math/big"
	"sync"

	"github.com/meshswap/relayer/auction"
	"github.com/meshswap/relayer/escrow"
	"github.com/meshswap/relayer/hashlock"
	"github.com/meshswap/relayer/timelock"
	"golang.org/x/crypto/sha3"
)

// OrderHash is the globally-unique 32-byte swap identifier (§3).
type OrderHash [32]byte

// DeriveOrderHash computes keccak256 over the order's identifying fields
// plus a caller-supplied monotonic nonce, matching §3's definition.
func DeriveOrderHash(maker string, sourceAmount, destinationAmount *big.Int, auctionStart, auctionEnd int64, nonce uint64, chainID uint64, native bool) OrderHash {
	h := sha3.NewLegacyKeccak256()
	h.Write([]byte(maker))
	h.Write(sourceAmount.Bytes())
	h.Write(destinationAmount.Bytes())
	writeInt64(h, auctionStart)
	writeInt64(h, auctionEnd)
	writeInt64(h, int64(nonce))
	writeInt64(h, int64(chainID))
	if native {
		h.Write([]byte{1})
	} else {
		h.Write([]byte{0})
	}
	var out OrderHash
	h.Sum(out[:0])
	return out
}

func writeInt64(h interface{ Write([]byte) (int, error) }, v int64) {
	var buf [8]byte
	for i := 0; i < 8; i++ {
		buf[i] = byte(v >> (8 * (7 - i)))
	}
	h.Write(buf[:])
}

// Order is one limit order, including its auction and escrow-relevant
// fields, but excluding the cross-chain wrapping fields that the
// crosschain façade (C7) stores alongside it.
type Order struct {
	Hash    OrderHash
	Maker   string
	Native  bool
	Asset   string
	Deadline int64
	CreatedAt int64

	SourceAmount          *big.Int
	DestinationAmount     *big.Int
	SourceRemaining       *big.Int
	DestinationRemaining  *big.Int

	Auction *auction.Auction
	Active  bool
	TotalFills int
}

func (o *Order) clone() *Order {
	cp := *o
	cp.SourceAmount = new(big.Int).Set(o.SourceAmount)
	cp.DestinationAmount = new(big.Int).Set(o.DestinationAmount)
	cp.SourceRemaining = new(big.Int).Set(o.SourceRemaining)
	cp.DestinationRemaining = new(big.Int).Set(o.DestinationRemaining)
	a := *o.Auction
	cp.Auction = &a
	return &cp
}

// FillResult is returned by Fill: the escrow it spawned and the §6
// FilledEvent fields.
type FillResult struct {
	EscrowID escrow.ID
	Resolver string
	Taking   *big.Int
	Rate     *big.Int
}

// CreateParams bundles the inputs to Book.Create.
type CreateParams struct {
	Maker             string
	Native            bool
	Asset             string
	SourceAmount      *big.Int
	DestinationAmount *big.Int
	Deadline          int64
	AuctionConfig     auction.Config
	ChainID           uint64
	Nonce             uint64
	Now               int64
}

// Book is the limit-order protocol's in-process state (C6), bound to an
// escrow.Book (to spawn source-side escrows on fill) and a resolver
// authorizer (to gate Fill).
type Book struct {
	mu     sync.RWMutex
	orders map[OrderHash]*Order

	escrows    *escrow.Book
	authorizer escrow.Authorizer
}

// NewBook constructs an order Book backed by escrows (for spawning fills)
// and authorizer (for gating Fill to registered, authorized resolvers).
func NewBook(escrows *escrow.Book, authorizer escrow.Authorizer) *Book {
	return &Book{
		orders:     make(map[OrderHash]*Order),
		escrows:    escrows,
		authorizer: authorizer,
	}
}

// Create validates and opens a new order plus its Dutch auction.
func (b *Book) Create(p CreateParams) (*Order, error) {
	if p.SourceAmount == nil || p.SourceAmount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if p.DestinationAmount == nil || p.DestinationAmount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if p.Deadline < p.AuctionConfig.End {
		return nil, ErrInvalidDeadline
	}

	a, err := auction.Open(p.AuctionConfig)
	if err != nil {
		return nil, err
	}

	hash := DeriveOrderHash(p.Maker, p.SourceAmount, p.DestinationAmount, p.AuctionConfig.Start, p.AuctionConfig.End, p.Nonce, p.ChainID, p.Native)

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.orders[hash]; exists {
		return nil, ErrOrderAlreadyExists
	}

	o := &Order{
		Hash:                 hash,
		Maker:                p.Maker,
		Native:               p.Native,
		Asset:                p.Asset,
		Deadline:             p.Deadline,
		CreatedAt:            p.Now,
		SourceAmount:         new(big.Int).Set(p.SourceAmount),
		DestinationAmount:    new(big.Int).Set(p.DestinationAmount),
		SourceRemaining:      new(big.Int).Set(p.SourceAmount),
		DestinationRemaining: new(big.Int).Set(p.DestinationAmount),
		Auction:              a,
		Active:               true,
	}
	b.orders[hash] = o
	return o.clone(), nil
}

// Get returns a copy of the order with hash.
func (b *Book) Get(hash OrderHash) (*Order, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	o, ok := b.orders[hash]
	if !ok {
		return nil, ErrNotFound
	}
	return o.clone(), nil
}

// FillParams bundles the per-fill inputs needed beyond (hash, preimage,
// amount): the resolver identity and the source-side timelocks that the
// spawned source escrow carries.
type FillParams struct {
	Resolver  string
	Preimage  hashlock.Preimage
	Amount    *big.Int
	Timelocks timelock.Lock
	Now       int64
}

// Fill computes the current rate, spawns a bound source-side escrow for
// amount, deducts from both the source and destination remaining amounts,
// and marks the order inactive once source_remaining reaches zero.
func (b *Book) Fill(hash OrderHash, p FillParams) (*FillResult, error) {
	if b.authorizer == nil || !b.authorizer.IsAuthorized(p.Resolver) {
		return nil, ErrNotAuthorized
	}
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[hash]
	if !ok {
		return nil, ErrNotFound
	}
	if !o.Active || p.Now > o.Deadline {
		return nil, ErrNotActive
	}

	rate := o.Auction.RateAt(p.Now)
	if rate.Sign() == 0 {
		return nil, ErrInvalidRate
	}
	if p.Amount.Cmp(o.SourceRemaining) > 0 {
		return nil, ErrAmountExceedsRemaining
	}

	taking := new(big.Int).Mul(p.Amount, rate)
	taking.Div(taking, auction.Scale)
	if taking.Cmp(o.DestinationRemaining) > 0 {
		return nil, ErrTakingExceedsRemaining
	}

	fillIdx := o.TotalFills
	id := escrowIDForFill(hash, fillIdx)
	_, err := b.escrows.Create(id, escrow.CreateParams{
		Role:          escrow.Source,
		Maker:         o.Maker,
		Taker:         p.Resolver,
		Native:        o.Native,
		Asset:         o.Asset,
		Amount:        p.Amount,
		HashLock:      hashlock.Lock(p.Preimage),
		Timelocks:     p.Timelocks,
		SafetyDeposit: big.NewInt(0),
		Now:           p.Now,
	})
	if err != nil {
		return nil, err
	}

	o.SourceRemaining = new(big.Int).Sub(o.SourceRemaining, p.Amount)
	o.DestinationRemaining = new(big.Int).Sub(o.DestinationRemaining, taking)
	o.TotalFills++
	if o.SourceRemaining.Sign() == 0 {
		o.Active = false
	}

	log.Debugf("order %x filled by %v: amount=%v rate=%v taking=%v",
		hash, p.Resolver, p.Amount, rate, taking)
	return &FillResult{EscrowID: id, Resolver: p.Resolver, Taking: taking, Rate: rate}, nil
}

// Cancel is maker-only; it deactivates the order. It moves no funds and
// returns no payout: SourceRemaining is left as it was.
func (b *Book) Cancel(hash OrderHash, caller string) (*Order, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	o, ok := b.orders[hash]
	if !ok {
		return nil, ErrNotFound
	}
	if o.Maker != caller {
		return nil, ErrNotMaker
	}
	o.Active = false
	return o.clone(), nil
}

func escrowIDForFill(hash OrderHash, fillIdx int) escrow.ID {
	var id escrow.ID
	copy(id[:], hash[:])
	id[31] ^= byte(fillIdx)
	id[30] ^= byte(fillIdx >> 8)
	return id
}
