package escrow

import (
	"math/big"
	"sync"

	"github.com/meshswap/relayer/hashlock"
	"github.com/meshswap/relayer/timelock"
)

// RescueDelay is the minimum age of an escrow before Rescue may sweep
// stray balances accidentally routed to it (§4.2).
const RescueDelay = 30 * 24 * 3600 // seconds

// PreimageSet is the chain-wide UsedPreimages membership test shared by
// every escrow on one chain (§3). Implementations must be safe for
// concurrent use; store.UsedPreimages is the production implementation.
type PreimageSet interface {
	// Contains reports whether preimage has already been recorded as a
	// first reveal on chain.
	Contains(chain string, preimage hashlock.Preimage) bool
	// Add records preimage as used, returning false if it was already
	// present (the caller must treat that as SecretReplay).
	Add(chain string, preimage hashlock.Preimage) bool
}

// Authorizer answers whether an address may act as "any authorized
// resolver" for claim_public. resolver.Registry implements this.
type Authorizer interface {
	IsAuthorized(addr string) bool
}

// Depositor returns the address whose funds are locked by e and who is
// refunded on cancellation: the maker on the source leg, the resolver
// (taker) on the destination leg, per §4.3's role swap.
func (e *Escrow) Depositor() string {
	if e.Role == Destination {
		return e.Taker
	}
	return e.Maker
}

// Beneficiary returns the address entitled to claim with the preimage: the
// resolver (taker) on the source leg, the maker on the destination leg.
// An empty Taker on the source leg means "any authorized resolver".
func (e *Escrow) Beneficiary() string {
	if e.Role == Destination {
		return e.Maker
	}
	return e.Taker
}

// CreateParams bundles the inputs to Book.Create.
type CreateParams struct {
	Role          Role
	Maker         string
	Taker         string
	Native        bool
	Asset         string
	Amount        *big.Int
	HashLock      hashlock.HashLock
	Timelocks     timelock.Lock
	SafetyDeposit *big.Int
	Now           int64
}

// Book is the in-process store of escrows for one chain, backed by
// PreimageSet for the shared used-preimage set and persisted through the
// Snapshotter passed at construction (store.KV in production). It guards
// all mutation with a single mutex, following channeldb.DB's pattern of
// wrapping a lower-level store with higher-level locking.
type Book struct {
	mu sync.RWMutex

	chain            string
	escrows          map[ID]*Escrow
	preimages        PreimageSet
	minSafetyDeposit *big.Int
	snapshot         Snapshotter
}

// Snapshotter persists an Escrow's current state. store.KV implements this.
type Snapshotter interface {
	PutEscrow(chain string, e *Escrow) error
}

// NewBook constructs an empty Book for chain, sharing preimages with every
// other Book on the same chain.
func NewBook(chain string, preimages PreimageSet, minSafetyDeposit *big.Int, snapshot Snapshotter) *Book {
	return &Book{
		chain:            chain,
		escrows:          make(map[ID]*Escrow),
		preimages:        preimages,
		minSafetyDeposit: minSafetyDeposit,
		snapshot:         snapshot,
	}
}

// Restore seeds the Book with an escrow loaded from durable storage, e.g.
// during coordinator restart recovery (§4.8f). It bypasses validation since
// the value is assumed to have already passed Create once.
func (b *Book) Restore(e *Escrow) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.escrows[e.ID] = e
}

func (b *Book) persist(e *Escrow) error {
	if b.snapshot == nil {
		return nil
	}
	return b.snapshot.PutEscrow(b.chain, e)
}

// Create locks p.Amount+p.SafetyDeposit into a new escrow keyed by id.
func (b *Book) Create(id ID, p CreateParams) (*Escrow, error) {
	if p.Amount == nil || p.Amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	if !hashlock.IsWellFormed(p.HashLock) {
		return nil, wrapf(ErrInvalidTimeLock, "hashlock must not be zero")
	}
	if err := p.Timelocks.Validate(); err != nil {
		return nil, wrapf(ErrInvalidTimeLock, "%v", err)
	}
	if p.Timelocks.Withdrawal <= p.Now {
		return nil, wrapf(ErrInvalidTimeLock, "withdrawal stage already in the past")
	}
	if p.SafetyDeposit == nil {
		p.SafetyDeposit = big.NewInt(0)
	}
	if b.minSafetyDeposit != nil && p.SafetyDeposit.Cmp(b.minSafetyDeposit) < 0 {
		return nil, ErrInsufficientSafetyDeposit
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	if _, exists := b.escrows[id]; exists {
		return nil, ErrEscrowAlreadyExists
	}

	e := &Escrow{
		ID:              id,
		Role:            p.Role,
		Maker:           p.Maker,
		Taker:           p.Taker,
		Native:          p.Native,
		Asset:           p.Asset,
		TotalAmount:     new(big.Int).Set(p.Amount),
		RemainingAmount: new(big.Int).Set(p.Amount),
		HashLock:        p.HashLock,
		Timelocks:       p.Timelocks,
		SafetyDeposit:   new(big.Int).Set(p.SafetyDeposit),
		DeployedAt:      p.Now,
		Status:          Created,
	}
	b.escrows[id] = e
	if err := b.persist(e); err != nil {
		delete(b.escrows, id)
		return nil, wrapf(ErrTransferFailed, "%v", err)
	}
	return e.clone(), nil
}

// Get returns a copy of the escrow with id.
func (b *Book) Get(id ID) (*Escrow, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	e, ok := b.escrows[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e.clone(), nil
}

func (b *Book) pinOrCheckPreimage(e *Escrow, preimage hashlock.Preimage) error {
	if !hashlock.Verify(preimage, e.HashLock) {
		return ErrInvalidSecret
	}
	if e.RevealedPreimage != nil {
		if *e.RevealedPreimage != preimage {
			return ErrInvalidSecret
		}
		return nil
	}
	if !b.preimages.Add(b.chain, preimage) {
		return ErrSecretReplay
	}
	e.RevealedPreimage = &preimage
	return nil
}

// Claim is the private claim path: caller must be the escrow's Beneficiary
// (the taker on the source leg, the maker on the destination leg) if one is
// set, the stage must be PrivateWithdrawal, and the escrow must be
// non-terminal.
func (b *Book) Claim(id ID, preimage hashlock.Preimage, caller string, now int64) ([]Payout, error) {
	return b.claim(id, preimage, now, func(e *Escrow) error {
		if e.Beneficiary() != "" && e.Beneficiary() != caller {
			return ErrNotAuthorized
		}
		if e.Timelocks.StageAt(now) != timelock.PrivateWithdrawal {
			return ErrWrongStage
		}
		return nil
	})
}

// ClaimPublic is the public claim path: permitted only in the
// PublicWithdrawal stage and only for an authorized resolver.
func (b *Book) ClaimPublic(id ID, preimage hashlock.Preimage, caller string, now int64, authz Authorizer) ([]Payout, error) {
	return b.claim(id, preimage, now, func(e *Escrow) error {
		if authz == nil || !authz.IsAuthorized(caller) {
			return ErrNotAuthorized
		}
		if e.Timelocks.StageAt(now) != timelock.PublicWithdrawal {
			return ErrWrongStage
		}
		return nil
	})
}

func (b *Book) claim(id ID, preimage hashlock.Preimage, now int64, precheck func(*Escrow) error) ([]Payout, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.escrows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.Status.Terminal() {
		return nil, ErrAlreadyTerminal
	}
	if err := precheck(e); err != nil {
		return nil, err
	}
	if err := b.pinOrCheckPreimage(e, preimage); err != nil {
		return nil, err
	}

	payouts := []Payout{
		{To: e.Beneficiary(), Asset: e.Asset, Native: e.Native, Amount: new(big.Int).Set(e.RemainingAmount)},
	}
	if e.SafetyDeposit.Sign() > 0 {
		payouts = append(payouts, Payout{To: e.Beneficiary(), Asset: e.Asset, Native: e.Native, Amount: new(big.Int).Set(e.SafetyDeposit)})
	}

	e.RemainingAmount = big.NewInt(0)
	e.Status = Filled
	if err := b.persist(e); err != nil {
		return nil, wrapf(ErrTransferFailed, "%v", err)
	}
	log.Debugf("escrow %x claimed by %v on %v leg", e.ID, e.Beneficiary(), e.Role)
	return payouts, nil
}

// ClaimPartial releases a portion of the escrow's remaining amount. The
// first partial claim pins the preimage; every subsequent call (whether
// partial or not) must present the same preimage.
func (b *Book) ClaimPartial(id ID, preimage hashlock.Preimage, amount *big.Int, caller string, now int64) ([]Payout, error) {
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.escrows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.Status.Terminal() {
		return nil, ErrAlreadyTerminal
	}
	if e.Beneficiary() != "" && e.Beneficiary() != caller {
		return nil, ErrNotAuthorized
	}
	if e.Timelocks.StageAt(now) != timelock.PrivateWithdrawal {
		return nil, ErrWrongStage
	}
	if amount.Cmp(e.RemainingAmount) > 0 {
		return nil, ErrAmountExceedsRemaining
	}
	if err := b.pinOrCheckPreimage(e, preimage); err != nil {
		return nil, err
	}

	e.RemainingAmount = new(big.Int).Sub(e.RemainingAmount, amount)
	payouts := []Payout{{To: e.Beneficiary(), Asset: e.Asset, Native: e.Native, Amount: new(big.Int).Set(amount)}}

	if e.RemainingAmount.Sign() == 0 {
		e.Status = Filled
		if e.SafetyDeposit.Sign() > 0 {
			payouts = append(payouts, Payout{To: e.Beneficiary(), Asset: e.Asset, Native: e.Native, Amount: new(big.Int).Set(e.SafetyDeposit)})
		}
	} else {
		e.Status = PartiallyFilled
	}
	if err := b.persist(e); err != nil {
		return nil, wrapf(ErrTransferFailed, "%v", err)
	}
	return payouts, nil
}

// Refund is the private refund path: caller must be the depositor and the
// stage must be PrivateCancellation.
func (b *Book) Refund(id ID, caller string, now int64) ([]Payout, error) {
	return b.refund(id, now, func(e *Escrow) error {
		if e.Depositor() != caller {
			return ErrNotAuthorized
		}
		if e.Timelocks.StageAt(now) != timelock.PrivateCancellation {
			return ErrWrongStage
		}
		return nil
	}, func(e *Escrow) string { return caller })
}

// RefundPublic is the public refund path: any caller, permitted only once
// PublicCancellation begins. The safety deposit is awarded to the caller
// who drove the refund, per the safety-deposit design note.
func (b *Book) RefundPublic(id ID, caller string, now int64) ([]Payout, error) {
	return b.refund(id, now, func(e *Escrow) error {
		if e.Timelocks.StageAt(now) != timelock.PublicCancellation {
			return ErrWrongStage
		}
		return nil
	}, func(e *Escrow) string { return caller })
}

func (b *Book) refund(id ID, now int64, precheck func(*Escrow) error, depositRecipient func(*Escrow) string) ([]Payout, error) {
	b.mu.Lock()
	defer b.mu.Unlock()

	e, ok := b.escrows[id]
	if !ok {
		return nil, ErrNotFound
	}
	if e.Status.Terminal() {
		return nil, ErrAlreadyTerminal
	}
	if err := precheck(e); err != nil {
		return nil, err
	}

	payouts := []Payout{
		{To: e.Depositor(), Asset: e.Asset, Native: e.Native, Amount: new(big.Int).Set(e.RemainingAmount)},
	}
	if e.SafetyDeposit.Sign() > 0 {
		payouts = append(payouts, Payout{To: depositRecipient(e), Asset: e.Asset, Native: e.Native, Amount: new(big.Int).Set(e.SafetyDeposit)})
	}

	e.RemainingAmount = big.NewInt(0)
	e.Status = Cancelled
	if err := b.persist(e); err != nil {
		return nil, wrapf(ErrTransferFailed, "%v", err)
	}
	log.Debugf("escrow %x refunded to %v on %v leg", e.ID, e.Depositor(), e.Role)
	return payouts, nil
}

// Rescue sweeps a balance accidentally routed to the escrow's address,
// without modifying any stored escrow field. Permitted only once
// RescueDelay has elapsed since deployment.
func (b *Book) Rescue(id ID, asset string, amount *big.Int, caller string, now int64) ([]Payout, error) {
	b.mu.RLock()
	e, ok := b.escrows[id]
	b.mu.RUnlock()
	if !ok {
		return nil, ErrNotFound
	}
	if now-e.DeployedAt < RescueDelay {
		return nil, ErrRescueTooEarly
	}
	if amount == nil || amount.Sign() <= 0 {
		return nil, ErrInvalidAmount
	}
	return []Payout{{To: caller, Asset: asset, Amount: new(big.Int).Set(amount)}}, nil
}
