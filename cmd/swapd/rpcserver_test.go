package main

import (
	"context"
	"encoding/hex"
	"testing"
	"time"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/meshswap/relayer/coordinator"
	"github.com/meshswap/relayer/orderbook"
	"github.com/meshswap/relayer/statusrpc"
	"github.com/meshswap/relayer/store"
	"github.com/stretchr/testify/require"
)

func newTestJournal(t *testing.T) *coordinator.Journal {
	t.Helper()
	db, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return coordinator.NewJournal(db.Log())
}

func hashWithByte(b byte) orderbook.OrderHash {
	var h orderbook.OrderHash
	h[0] = b
	return h
}

func TestListOrdersFiltersByState(t *testing.T) {
	journal := newTestJournal(t)
	now := time.Now()
	require.NoError(t, journal.Record(coordinator.Entry{OrderHash: hashWithByte(1), State: coordinator.Observed}, now))
	require.NoError(t, journal.Record(coordinator.Entry{OrderHash: hashWithByte(2), State: coordinator.Completed}, now))
	require.NoError(t, journal.Record(coordinator.Entry{OrderHash: hashWithByte(3), State: coordinator.Completed}, now))

	srv := newRPCServer(journal, nil, nil)

	all, err := srv.ListOrders(context.Background(), &statusrpc.ListOrdersRequest{})
	require.NoError(t, err)
	require.Len(t, all.Orders, 3)

	completed, err := srv.ListOrders(context.Background(), &statusrpc.ListOrdersRequest{State: "Completed"})
	require.NoError(t, err)
	require.Len(t, completed.Orders, 2)
	for _, o := range completed.Orders {
		require.Equal(t, "completed", o.State)
	}

	none, err := srv.ListOrders(context.Background(), &statusrpc.ListOrdersRequest{State: "abandoned"})
	require.NoError(t, err)
	require.Empty(t, none.Orders)
}

func TestShowOrderUnknownHashMapsToNotFound(t *testing.T) {
	journal := newTestJournal(t)
	srv := newRPCServer(journal, nil, nil)

	unknown := hashWithByte(99)
	_, err := srv.ShowOrder(context.Background(), &statusrpc.ShowOrderRequest{OrderHash: hex.EncodeToString(unknown[:])})
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	require.Equal(t, codes.NotFound, st.Code())
}

func TestShowOrderMalformedHashMapsToInvalidArgument(t *testing.T) {
	journal := newTestJournal(t)
	srv := newRPCServer(journal, nil, nil)

	_, err := srv.ShowOrder(context.Background(), &statusrpc.ShowOrderRequest{OrderHash: "not-hex"})
	require.Error(t, err)
	st, ok := status.FromError(err)
	require.True(t, ok)
	require.Equal(t, codes.InvalidArgument, st.Code())
}
