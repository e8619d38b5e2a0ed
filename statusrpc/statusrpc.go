// Package statusrpc exposes the coordinator's journal over gRPC (A6): list
// and inspect in-flight swaps, force-cancel one, and replay the event log
// from a given sequence number, for an admin CLI (cmd/swapcli) to drive.
//
// The request/response types are plain structs rather than protoc-generated
// proto.Message implementations; codec.go registers a JSON grpc.Codec so
// the usual grpc.Server/ClientConn machinery works without a .proto file.
package statusrpc

import (
	"context"
)

// OrderSummary is one journal entry's externally-visible state.
type OrderSummary struct {
	OrderHash    string `json:"order_hash"`
	State        string `json:"state"`
	SrcEscrowID  string `json:"src_escrow_id"`
	DestEscrowID string `json:"dest_escrow_id"`
	LastStepAt   int64  `json:"last_step_at"`
	Retries      int    `json:"retries"`
}

// ListOrdersRequest filters the result by journal state when State is
// non-empty (matching coordinator.State.String(), e.g. "completed"); an
// empty State lists every entry.
type ListOrdersRequest struct {
	State string `json:"state,omitempty"`
}

type ListOrdersResponse struct {
	Orders []OrderSummary `json:"orders"`
}

type ShowOrderRequest struct {
	OrderHash string `json:"order_hash"`
}

type ShowOrderResponse struct {
	Order OrderSummary `json:"order"`
}

type ForceCancelRequest struct {
	OrderHash string `json:"order_hash"`
}

type ForceCancelResponse struct {
	Order OrderSummary `json:"order"`
}

type ReplayFromRequest struct {
	Seq uint64 `json:"seq"`
}

type JournalEvent struct {
	Seq        uint64 `json:"seq"`
	OrderHash  string `json:"order_hash"`
	Kind       string `json:"kind"`
	ObservedAt int64  `json:"observed_at"`
}

type ReplayFromResponse struct {
	Events []JournalEvent `json:"events"`
}

// Server is the interface statusrpc.RegisterStatusServiceServer binds to
// gRPC's dispatch. A concrete implementation lives in cmd/swapd, wired
// directly to a *coordinator.Journal and *coordinator.Engine.
type Server interface {
	ListOrders(ctx context.Context, req *ListOrdersRequest) (*ListOrdersResponse, error)
	ShowOrder(ctx context.Context, req *ShowOrderRequest) (*ShowOrderResponse, error)
	ForceCancel(ctx context.Context, req *ForceCancelRequest) (*ForceCancelResponse, error)
	ReplayFrom(ctx context.Context, req *ReplayFromRequest) (*ReplayFromResponse, error)
}
