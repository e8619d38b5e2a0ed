package orderbook

import "github.com/meshswap/relayer/errkind"

var (
	ErrInvalidAmount = errkind.New(errkind.Validation, "orderbook: amount must be non-zero")

	ErrInvalidDeadline = errkind.New(errkind.Validation, "orderbook: deadline must not precede auction end")

	ErrOrderAlreadyExists = errkind.New(errkind.Replay, "orderbook: derived order hash collides with an existing order")

	ErrNotFound = errkind.New(errkind.Validation, "orderbook: order not found")

	ErrNotActive = errkind.New(errkind.Stage, "orderbook: order is cancelled or expired")

	ErrNotAuthorized = errkind.New(errkind.Auth, "orderbook: caller is not an authorized resolver")

	ErrNotMaker = errkind.New(errkind.Auth, "orderbook: caller is not the order's maker")

	ErrInvalidRate = errkind.New(errkind.Validation, "orderbook: auction returned a zero rate")

	ErrAmountExceedsRemaining = errkind.New(errkind.Validation, "orderbook: fill amount exceeds remaining source amount")

	ErrTakingExceedsRemaining = errkind.New(errkind.Validation, "orderbook: computed taking amount exceeds remaining destination amount")
)
