// Package escrow implements the HTLC escrow state machine shared by both
// legs of a swap (C2 the source variant, C3 the destination variant). The
// two legs are structurally symmetric per §4.3, so one package parameterized
// by Role implements both.
package escrow

import (
	"math/big"

	"github.com/meshswap/relayer/hashlock"
	"github.com/meshswap/relayer/timelock"
)

// Role distinguishes which leg of a swap an Escrow belongs to. It decides
// who is refunded (Depositor) and who may claim (Beneficiary), since maker
// and resolver swap places between the legs; the state machine and
// operations are otherwise identical.
type Role int

const (
	Source Role = iota
	Destination
)

func (r Role) String() string {
	if r == Destination {
		return "destination"
	}
	return "source"
}

// Status is the lifecycle state of an Escrow.
type Status int

const (
	Created Status = iota
	PartiallyFilled
	Filled
	Cancelled
)

func (s Status) String() string {
	switch s {
	case Created:
		return "created"
	case PartiallyFilled:
		return "partially_filled"
	case Filled:
		return "filled"
	case Cancelled:
		return "cancelled"
	default:
		return "unknown"
	}
}

// Terminal reports whether s is a terminal status (P5: no field may change
// once an escrow reaches one).
func (s Status) Terminal() bool {
	return s == Filled || s == Cancelled
}

// ID is a 32-byte escrow identifier, derived by the caller (typically from
// the OrderHash plus a fill index for partial fills).
type ID [32]byte

// Escrow is one leg of a swap: either the source-side lock of the maker's
// funds, or the destination-side lock of the resolver's funds.
type Escrow struct {
	ID     ID
	Role   Role
	Maker  string
	Taker  string // "" means "any authorized resolver" (claim_public only)
	Native bool
	Asset  string

	TotalAmount     *big.Int
	RemainingAmount *big.Int

	HashLock  hashlock.HashLock
	Timelocks timelock.Lock

	SafetyDeposit *big.Int
	DeployedAt    int64

	Status Status

	// RevealedPreimage is nil until the first successful claim; once set
	// it is permanent and must hash to HashLock (enforced at set time).
	RevealedPreimage *hashlock.Preimage
}

// clone returns a deep-enough copy for safe handoff outside the Book's lock.
func (e *Escrow) clone() *Escrow {
	cp := *e
	cp.TotalAmount = new(big.Int).Set(e.TotalAmount)
	cp.RemainingAmount = new(big.Int).Set(e.RemainingAmount)
	if e.SafetyDeposit != nil {
		cp.SafetyDeposit = new(big.Int).Set(e.SafetyDeposit)
	}
	if e.RevealedPreimage != nil {
		pre := *e.RevealedPreimage
		cp.RevealedPreimage = &pre
	}
	return &cp
}

// Payout describes one fund movement effected by an escrow operation. The
// sum of a terminal escrow's payouts must equal TotalAmount+SafetyDeposit
// exactly (P3).
type Payout struct {
	To     string
	Asset  string
	Native bool
	Amount *big.Int
}
