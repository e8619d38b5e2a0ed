// Package crosschain wraps orderbook's limit-order protocol (C6) with the
// cross-chain routing metadata needed to drive a swap's destination leg
// (C7): which chain and address the resolver must deliver to, and the
// timelock budget the destination escrow is given relative to the fill.
package crosschain

import (
	"math/big"
	"sync"

	"github.com/meshswap/relayer/errkind"
	"github.com/meshswap/relayer/escrow"
	"github.com/meshswap/relayer/hashlock"
	"github.com/meshswap/relayer/orderbook"
	"github.com/meshswap/relayer/timelock"
)

var (
	ErrNotFound = errkind.New(errkind.Validation, "crosschain: order not found")

	ErrInvalidConfig = errkind.New(errkind.Validation, "crosschain: destination config incomplete")

	// ErrInvalidSecret is returned by Fill when the caller's preimage does
	// not hash to the order's committed Dest.SecretHash. Since every fill
	// on an OrderHash is checked against the same committed hash, this
	// also rejects a second fill that supplies a different preimage than
	// an earlier one did (§3/§4.7's order-level secret commitment).
	ErrInvalidSecret = errkind.New(errkind.Validation, "crosschain: preimage does not hash to the order's committed secret hash")
)

// Config is the cross-chain routing metadata attached to an order at
// creation time; it never changes for the lifetime of the order.
type Config struct {
	DestChainID      uint64
	DestAddress      string
	SecretHash       hashlock.HashLock
	TimelockDuration int64
}

func (c Config) validate() error {
	if c.DestChainID == 0 {
		return ErrInvalidConfig
	}
	if c.DestAddress == "" {
		return ErrInvalidConfig
	}
	if !hashlock.IsWellFormed(c.SecretHash) {
		return ErrInvalidConfig
	}
	if c.TimelockDuration < 4 {
		return ErrInvalidConfig
	}
	return nil
}

// Order bundles an orderbook.Order with its cross-chain Config. The
// orderbook fields are a snapshot as of the last read, matching
// orderbook.Book's own clone-on-read convention.
type Order struct {
	*orderbook.Order
	Dest Config
}

// FillOutcome is returned by Fill: the source-side escrow spawned by
// orderbook. The destination leg is not spawned here; it is driven by the
// coordinator via InitiateDestination once it observes this fill, per
// §4.8(c).
type FillOutcome struct {
	*orderbook.FillResult
}

// CreateParams bundles orderbook.CreateParams with the destination Config.
type CreateParams struct {
	orderbook.CreateParams
	Dest Config
}

// Book pairs an orderbook.Book with the per-order Config it is missing,
// and the destination-chain escrow.Book that InitiateDestination spawns a
// leg into. srcEscrows is the same escrow.Book the wrapped orderbook.Book
// was constructed with; it is read (never mutated) by InitiateDestination
// to size and address the destination leg.
type Book struct {
	mu     sync.RWMutex
	orders *orderbook.Book

	srcEscrows  *escrow.Book
	destEscrows *escrow.Book
	configs     map[orderbook.OrderHash]Config
	takings     map[escrow.ID]*big.Int
}

// NewBook constructs a Book. orders is the already-wired limit-order
// protocol; srcEscrows is the escrow.Book backing its source leg;
// destEscrows is the escrow.Book for the destination chain, used to spawn
// the destination-side leg via InitiateDestination.
func NewBook(orders *orderbook.Book, srcEscrows, destEscrows *escrow.Book) *Book {
	return &Book{
		orders:      orders,
		srcEscrows:  srcEscrows,
		destEscrows: destEscrows,
		configs:     make(map[orderbook.OrderHash]Config),
		takings:     make(map[escrow.ID]*big.Int),
	}
}

// Create forwards to orderbook.Create and stores the cross-chain config
// keyed by the resulting OrderHash.
func (b *Book) Create(p CreateParams) (*Order, error) {
	if err := p.Dest.validate(); err != nil {
		return nil, err
	}
	o, err := b.orders.Create(p.CreateParams)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.configs[o.Hash] = p.Dest
	b.mu.Unlock()

	return &Order{Order: o, Dest: p.Dest}, nil
}

// Get returns the order and its cross-chain config.
func (b *Book) Get(hash orderbook.OrderHash) (*Order, error) {
	o, err := b.orders.Get(hash)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	cfg, ok := b.configs[hash]
	b.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	return &Order{Order: o, Dest: cfg}, nil
}

// FillParams is an alias of orderbook.FillParams: a fill only ever touches
// the source leg. The destination leg's timelocks are supplied later, to
// InitiateDestination, since they are only decided once the coordinator
// is ready to submit the destination create.
type FillParams = orderbook.FillParams

// Fill forwards to orderbook.Fill to spawn the source-side escrow. It
// carries the fill's hashlock and the order's destination address, which
// is everything InitiateDestination needs to later drive the destination
// leg into existence.
func (b *Book) Fill(hash orderbook.OrderHash, p FillParams) (*FillOutcome, error) {
	b.mu.RLock()
	cfg, ok := b.configs[hash]
	b.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if !hashlock.Verify(p.Preimage, cfg.SecretHash) {
		return nil, ErrInvalidSecret
	}

	res, err := b.orders.Fill(hash, p)
	if err != nil {
		return nil, err
	}

	b.mu.Lock()
	b.takings[res.EscrowID] = new(big.Int).Set(res.Taking)
	b.mu.Unlock()

	return &FillOutcome{FillResult: res}, nil
}

// InitiateDestination drives the destination leg for one source-side fill
// into existence (§4.8c): it is idempotent by (hash, srcEscrowID) — if a
// matching destination escrow already exists, it is returned with no
// further effect, rather than erroring.
func (b *Book) InitiateDestination(hash orderbook.OrderHash, srcEscrowID escrow.ID, destTimelocks timelock.Lock, now int64) (escrow.ID, error) {
	b.mu.RLock()
	cfg, ok := b.configs[hash]
	b.mu.RUnlock()
	if !ok {
		return escrow.ID{}, ErrNotFound
	}

	destID := destEscrowID(hash, srcEscrowID)
	if existing, err := b.destEscrows.Get(destID); err == nil {
		log.Debugf("order %x destination leg already initiated, skipping", hash)
		return existing.ID, nil
	}

	src, err := b.srcEscrows.Get(srcEscrowID)
	if err != nil {
		return escrow.ID{}, err
	}

	order, err := b.orders.Get(hash)
	if err != nil {
		return escrow.ID{}, err
	}

	b.mu.RLock()
	taking, ok := b.takings[srcEscrowID]
	b.mu.RUnlock()
	if !ok {
		return escrow.ID{}, ErrNotFound
	}

	_, err = b.destEscrows.Create(destID, escrow.CreateParams{
		Role:          escrow.Destination,
		Maker:         order.Maker,
		Taker:         src.Taker,
		Native:        false,
		Asset:         cfg.DestAddress,
		Amount:        taking,
		HashLock:      src.HashLock,
		Timelocks:     destTimelocks,
		SafetyDeposit: big.NewInt(0),
		Now:           now,
	})
	if err != nil {
		return escrow.ID{}, err
	}
	log.Infof("order %x destination leg initiated: escrow=%x chain=%v", hash, destID, cfg.DestChainID)
	return destID, nil
}

// Cancel is maker-only; it deactivates the order via orderbook.Cancel. It
// moves no funds and sends nothing to the coordinator; escrows already
// spawned for the order are refunded only by the coordinator's
// cancellation cascade, once their cancellation stages begin.
func (b *Book) Cancel(hash orderbook.OrderHash, caller string) (*Order, error) {
	o, err := b.orders.Cancel(hash, caller)
	if err != nil {
		return nil, err
	}
	b.mu.RLock()
	cfg := b.configs[hash]
	b.mu.RUnlock()
	return &Order{Order: o, Dest: cfg}, nil
}

func destEscrowID(hash orderbook.OrderHash, srcID escrow.ID) escrow.ID {
	var id escrow.ID
	copy(id[:], srcID[:])
	id[0] ^= 0xff
	id[1] ^= hash[0]
	return id
}
