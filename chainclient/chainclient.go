// Package chainclient defines the black-box per-chain provider contract
// (A2) that coordinator.Engine drives: sending a signed transaction,
// querying point-in-time state, and subscribing to a log stream. No
// concrete chain implementation ships; chainclient/fake backs tests, the
// way chainntfs.ChainNotifier is an interface with no in-tree concrete
// implementation either.
package chainclient

import (
	"context"
	"encoding/json"
)

// TxRef is an opaque handle to a submitted transaction, returned by
// SendSignedTx so the caller can later correlate it with a confirmation or
// failure observed through SubscribeLogs.
type TxRef struct {
	Chain string
	Hash  string
}

// StateQuery selects the on-chain state SendSignedTx callers need to read
// back before deciding their next action (e.g. an escrow's current stage).
type StateQuery struct {
	Chain   string
	Address string
	Method  string
	Args    []string
}

// LogFilter selects which log events SubscribeLogs should deliver.
type LogFilter struct {
	Chain     string
	Address   string
	Topics    []string
	FromBlock int64
}

// LogEvent is one entry observed on a chain's log stream.
type LogEvent struct {
	Chain     string
	TxHash    string
	BlockNum  int64
	Topics    []string
	Data      json.RawMessage
	Reverted  bool
}

// Client is the per-chain transport the coordinator depends on. Two
// instances are wired into coordinator.Engine: one for the source chain,
// one for the destination chain.
type Client interface {
	// SendSignedTx submits an already-signed transaction blob and returns
	// a handle the caller can track via SubscribeLogs.
	SendSignedTx(ctx context.Context, blob []byte) (TxRef, error)

	// QueryState performs a point-in-time read against the chain.
	QueryState(ctx context.Context, query StateQuery) (json.RawMessage, error)

	// SubscribeLogs returns a channel delivering log events matching
	// filter until ctx is cancelled. The channel is closed when the
	// subscription ends, whether by cancellation or by an unrecoverable
	// transport error.
	SubscribeLogs(ctx context.Context, filter LogFilter) (<-chan LogEvent, error)
}
