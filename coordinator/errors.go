package coordinator

import "github.com/meshswap/relayer/errkind"

var (
	ErrUnknownOrder = errkind.New(errkind.Validation, "coordinator: no journal entry for order")

	ErrNotReady = errkind.New(errkind.Stage, "coordinator: destination leg not yet initiated")

	ErrAlreadyTerminal = errkind.New(errkind.Validation, "coordinator: journal entry already terminal")

	ErrStageExpired = errkind.New(errkind.StageExpired, "coordinator: stage window passed before action landed")
)
