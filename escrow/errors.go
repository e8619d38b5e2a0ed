package escrow

import (
	"fmt"

	"github.com/meshswap/relayer/errkind"
)

// Named error reasons, one per on-chain revert reason in the component's
// error taxonomy (§4.2). Each is wrapped in an *errkind.Error so the
// coordinator can classify failures with a single type switch.
var (
	ErrNotFound = errkind.New(errkind.Validation, "escrow: not found")

	ErrInvalidAmount = errkind.New(errkind.Validation, "escrow: amount must be non-zero")

	ErrInvalidTimeLock = errkind.New(errkind.Validation, "escrow: timelock stage ordering invalid or in the past")

	ErrEscrowAlreadyExists = errkind.New(errkind.Replay, "escrow: derived id collides with an existing escrow")

	ErrInsufficientSafetyDeposit = errkind.New(errkind.Validation, "escrow: safety deposit below policy minimum")

	ErrNotAuthorized = errkind.New(errkind.Auth, "escrow: caller not authorized for this operation")

	ErrWrongStage = errkind.New(errkind.Stage, "escrow: operation not permitted in the current stage")

	ErrInvalidSecret = errkind.New(errkind.Validation, "escrow: preimage does not hash to the stored hashlock")

	ErrSecretReplay = errkind.New(errkind.Replay, "escrow: preimage already used on this chain")

	ErrAlreadyTerminal = errkind.New(errkind.Validation, "escrow: escrow already in a terminal state")

	ErrAmountExceedsRemaining = errkind.New(errkind.Validation, "escrow: claim amount exceeds remaining amount")

	ErrTransferFailed = errkind.New(errkind.TransientChain, "escrow: fund transfer failed")

	ErrRescueTooEarly = errkind.New(errkind.Stage, "escrow: rescue delay has not yet elapsed")
)

// wrapf attaches additional context to one of the sentinel errors above
// while preserving its Kind for classification.
func wrapf(sentinel *errkind.Error, format string, args ...interface{}) *errkind.Error {
	return errkind.Wrap(sentinel.Kind, sentinel.Reason, fmt.Errorf(format, args...))
}
