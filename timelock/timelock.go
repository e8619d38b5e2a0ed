// Package timelock implements the staged TimeLock primitive (C1): a total
// function from (now, Lock) to the active Stage, the per-leg ordering check
// (Validate, run by escrow.Book.Create) and the cross-leg ordering check
// (ValidatePair, which no escrow constructor calls).
package timelock

import "fmt"

// Side identifies which leg of a swap a Lock's stages describe.
type Side int

const (
	Source Side = iota
	Destination
)

// Stage is the piecewise partition of time defined by a staged Lock. At any
// instant exactly one Stage is active (P6).
type Stage int

const (
	// PrePrivate precedes the private-withdrawal stage.
	PrePrivate Stage = iota
	// PrivateWithdrawal: only the designated taker/maker counterpart may
	// claim with the preimage.
	PrivateWithdrawal
	// PublicWithdrawal: any authorized party may claim with the preimage.
	PublicWithdrawal
	// PrivateCancellation: only the owner may reclaim.
	PrivateCancellation
	// PublicCancellation: any party may trigger the refund.
	PublicCancellation
)

func (s Stage) String() string {
	switch s {
	case PrePrivate:
		return "pre-private"
	case PrivateWithdrawal:
		return "private-withdrawal"
	case PublicWithdrawal:
		return "public-withdrawal"
	case PrivateCancellation:
		return "private-cancellation"
	case PublicCancellation:
		return "public-cancellation"
	default:
		return "unknown"
	}
}

// Lock is the staged timelock structure for one leg of a swap. All values
// are Unix seconds; callers on the destination (Move) side are responsible
// for converting millisecond chain-native timestamps to seconds before
// constructing a Lock (the coordinator's responsibility per §4.1).
type Lock struct {
	Withdrawal          int64
	PublicWithdrawal    int64
	Cancellation        int64
	PublicCancellation  int64
}

// Validate enforces the per-leg ordering invariant:
//
//	Withdrawal < PublicWithdrawal < Cancellation < PublicCancellation
func (l Lock) Validate() error {
	if !(l.Withdrawal < l.PublicWithdrawal) {
		return fmt.Errorf("timelock: withdrawal stage must precede public withdrawal")
	}
	if !(l.PublicWithdrawal < l.Cancellation) {
		return fmt.Errorf("timelock: public withdrawal stage must precede cancellation")
	}
	if !(l.Cancellation < l.PublicCancellation) {
		return fmt.Errorf("timelock: cancellation stage must precede public cancellation")
	}
	return nil
}

// ValidatePair enforces the cross-leg invariant that the destination leg's
// cancellation stage begins strictly before the source leg's, so the maker
// still has time to reclaim once the destination leg is safely abandoned.
func ValidatePair(src, dst Lock) error {
	if err := src.Validate(); err != nil {
		return fmt.Errorf("source leg: %w", err)
	}
	if err := dst.Validate(); err != nil {
		return fmt.Errorf("destination leg: %w", err)
	}
	if !(dst.Cancellation < src.Cancellation) {
		return fmt.Errorf("timelock: destination cancellation must be strictly earlier than source cancellation")
	}
	return nil
}

// StageAt evaluates the total stage function at now for this Lock. Stage
// boundaries are half-open: the clock crossing a threshold immediately
// enters the next stage at that exact instant.
func (l Lock) StageAt(now int64) Stage {
	switch {
	case now < l.Withdrawal:
		return PrePrivate
	case now < l.PublicWithdrawal:
		return PrivateWithdrawal
	case now < l.Cancellation:
		return PublicWithdrawal
	case now < l.PublicCancellation:
		return PrivateCancellation
	default:
		return PublicCancellation
	}
}

