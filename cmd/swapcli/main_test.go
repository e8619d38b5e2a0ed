package main

import (
	"testing"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"

	"github.com/stretchr/testify/require"
)

func TestExitCodeForMapsGRPCStatus(t *testing.T) {
	require.Equal(t, exitSuccess, exitCodeFor(nil))
	require.Equal(t, exitBadArguments, exitCodeFor(badArgs("missing arg")))
	require.Equal(t, exitBadArguments, exitCodeFor(status.Error(codes.InvalidArgument, "bad hash")))
	require.Equal(t, exitChainUnreachable, exitCodeFor(status.Error(codes.Unavailable, "rpc down")))
	require.Equal(t, exitNotFound, exitCodeFor(status.Error(codes.NotFound, "no such order")))
	require.Equal(t, 1, exitCodeFor(status.Error(codes.Internal, "boom")))
}
