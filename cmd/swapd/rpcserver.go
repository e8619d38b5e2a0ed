package main

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/meshswap/relayer/coordinator"
	"github.com/meshswap/relayer/errkind"
	"github.com/meshswap/relayer/orderbook"
	"github.com/meshswap/relayer/statusrpc"
	"github.com/meshswap/relayer/store"
)

// rpcServer implements statusrpc.Server over a running coordinator, the
// same shape as the teacher's rpcServer: an atomic started/shutdown guard
// wrapping a handle to the live daemon state rather than owning any of it.
type rpcServer struct {
	started  int32
	shutdown int32

	journal *coordinator.Journal
	engine  *coordinator.Engine
	log     *store.Log
}

var _ statusrpc.Server = (*rpcServer)(nil)

func newRPCServer(journal *coordinator.Journal, engine *coordinator.Engine, log *store.Log) *rpcServer {
	return &rpcServer{journal: journal, engine: engine, log: log}
}

func (r *rpcServer) Start() error {
	if atomic.AddInt32(&r.started, 1) != 1 {
		return nil
	}
	return nil
}

func (r *rpcServer) Stop() error {
	if atomic.AddInt32(&r.shutdown, 1) != 1 {
		return nil
	}
	return nil
}

func (r *rpcServer) ListOrders(ctx context.Context, req *statusrpc.ListOrdersRequest) (*statusrpc.ListOrdersResponse, error) {
	entries := r.journal.All()
	resp := &statusrpc.ListOrdersResponse{Orders: make([]statusrpc.OrderSummary, 0, len(entries))}
	for _, e := range entries {
		if req.State != "" && !strings.EqualFold(e.State.String(), req.State) {
			continue
		}
		resp.Orders = append(resp.Orders, summaryOf(e))
	}
	return resp, nil
}

func (r *rpcServer) ShowOrder(ctx context.Context, req *statusrpc.ShowOrderRequest) (*statusrpc.ShowOrderResponse, error) {
	hash, err := parseOrderHash(req.OrderHash)
	if err != nil {
		return nil, grpcError(err)
	}
	entry, err := r.journal.Get(hash)
	if err != nil {
		return nil, grpcError(err)
	}
	return &statusrpc.ShowOrderResponse{Order: summaryOf(entry)}, nil
}

func (r *rpcServer) ForceCancel(ctx context.Context, req *statusrpc.ForceCancelRequest) (*statusrpc.ForceCancelResponse, error) {
	hash, err := parseOrderHash(req.OrderHash)
	if err != nil {
		return nil, grpcError(err)
	}
	if err := r.engine.HandleCancellation(ctx, hash, time.Now()); err != nil {
		return nil, grpcError(err)
	}
	entry, err := r.journal.Get(hash)
	if err != nil {
		return nil, grpcError(err)
	}
	return &statusrpc.ForceCancelResponse{Order: summaryOf(entry)}, nil
}

func (r *rpcServer) ReplayFrom(ctx context.Context, req *statusrpc.ReplayFromRequest) (*statusrpc.ReplayFromResponse, error) {
	var events []statusrpc.JournalEvent
	err := r.log.ReplayFrom(req.Seq, func(ev store.Event) error {
		events = append(events, statusrpc.JournalEvent{
			Seq:        ev.Seq,
			OrderHash:  hex.EncodeToString(ev.OrderHash[:]),
			Kind:       string(ev.Kind),
			ObservedAt: ev.ObservedAt.Unix(),
		})
		return nil
	})
	if err != nil {
		return nil, grpcError(err)
	}
	return &statusrpc.ReplayFromResponse{Events: events}, nil
}

// grpcError classifies err into the gRPC status code swapcli's exit-code
// mapping expects (§6): NotFound for an unknown journal entry,
// InvalidArgument for malformed input, Unavailable for a chain RPC the
// coordinator could not reach, Internal otherwise.
func grpcError(err error) error {
	if err == nil {
		return nil
	}
	if errors.Is(err, coordinator.ErrUnknownOrder) {
		return status.Error(codes.NotFound, err.Error())
	}
	if kind, ok := errkind.KindOf(err); ok {
		switch kind {
		case errkind.Validation, errkind.FatalConfig:
			return status.Error(codes.InvalidArgument, err.Error())
		case errkind.TransientChain:
			return status.Error(codes.Unavailable, err.Error())
		}
	}
	return status.Error(codes.Internal, err.Error())
}

func summaryOf(e coordinator.Entry) statusrpc.OrderSummary {
	return statusrpc.OrderSummary{
		OrderHash:    hex.EncodeToString(e.OrderHash[:]),
		State:        e.State.String(),
		SrcEscrowID:  hex.EncodeToString(e.SrcEscrowID[:]),
		DestEscrowID: hex.EncodeToString(e.DestEscrowID[:]),
		LastStepAt:   e.LastStepAt,
		Retries:      e.Retries,
	}
}

func parseOrderHash(s string) (orderbook.OrderHash, error) {
	var hash orderbook.OrderHash
	b, err := hex.DecodeString(s)
	if err != nil {
		return hash, errkind.Wrap(errkind.Validation, "rpcserver: invalid order hash", err)
	}
	if len(b) != len(hash) {
		return hash, errkind.New(errkind.Validation, fmt.Sprintf("rpcserver: order hash must be %d bytes, got %d", len(hash), len(b)))
	}
	copy(hash[:], b)
	return hash, nil
}
