package fake_test

import (
	"context"
	"testing"
	"time"

	"github.com/meshswap/relayer/chainclient"
	"github.com/meshswap/relayer/chainclient/fake"
	"github.com/stretchr/testify/require"
)

func TestSendSignedTxRecordsRef(t *testing.T) {
	c := fake.New("src")
	ref, err := c.SendSignedTx(context.Background(), []byte("blob"))
	require.NoError(t, err)
	require.Equal(t, "src", ref.Chain)
	require.Len(t, c.Sent, 1)
}

func TestSubscribeLogsDeliversAndClosesOnCancel(t *testing.T) {
	c := fake.New("dst")
	ctx, cancel := context.WithCancel(context.Background())

	ch, err := c.SubscribeLogs(ctx, chainclient.LogFilter{Chain: "dst"})
	require.NoError(t, err)

	c.Deliver(chainclient.LogEvent{Chain: "dst", TxHash: "tx-1"})
	select {
	case ev := <-ch:
		require.Equal(t, "tx-1", ev.TxHash)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for delivered event")
	}

	cancel()
	select {
	case _, ok := <-ch:
		require.False(t, ok)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for channel close")
	}
}
