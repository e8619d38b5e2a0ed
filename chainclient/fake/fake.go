// Package fake provides an in-memory chainclient.Client for coordinator
// tests, mirroring htlcswitch/mock.go's mock-switch convention: a small
// struct with channels and slices standing in for the real transport,
// driven entirely by direct method calls from the test.
package fake

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/meshswap/relayer/chainclient"
)

// Client is a fake chainclient.Client. Sent transactions are recorded in
// Sent; Deliver pushes a LogEvent to every active SubscribeLogs
// subscriber, simulating a block landing.
type Client struct {
	Chain string

	mu          sync.Mutex
	Sent        []chainclient.TxRef
	state       map[string]json.RawMessage
	subscribers []chan chainclient.LogEvent

	nextTxSeq int
}

// New constructs an empty fake Client for chain.
func New(chain string) *Client {
	return &Client{Chain: chain, state: make(map[string]json.RawMessage)}
}

// SendSignedTx records blob as sent and returns a deterministic TxRef.
func (c *Client) SendSignedTx(ctx context.Context, blob []byte) (chainclient.TxRef, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.nextTxSeq++
	ref := chainclient.TxRef{Chain: c.Chain, Hash: fmt.Sprintf("tx-%d", c.nextTxSeq)}
	c.Sent = append(c.Sent, ref)
	return ref, nil
}

// SetState seeds the value QueryState returns for a given query's method.
func (c *Client) SetState(method string, value json.RawMessage) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state[method] = value
}

// QueryState returns whatever SetState last recorded for query.Method, or
// a JSON null if nothing was set.
func (c *Client) QueryState(ctx context.Context, query chainclient.StateQuery) (json.RawMessage, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if v, ok := c.state[query.Method]; ok {
		return v, nil
	}
	return json.RawMessage("null"), nil
}

// SubscribeLogs returns a new buffered channel registered for delivery;
// it is closed when ctx is cancelled.
func (c *Client) SubscribeLogs(ctx context.Context, filter chainclient.LogFilter) (<-chan chainclient.LogEvent, error) {
	ch := make(chan chainclient.LogEvent, 16)

	c.mu.Lock()
	c.subscribers = append(c.subscribers, ch)
	c.mu.Unlock()

	go func() {
		<-ctx.Done()
		c.mu.Lock()
		defer c.mu.Unlock()
		for i, s := range c.subscribers {
			if s == ch {
				c.subscribers = append(c.subscribers[:i], c.subscribers[i+1:]...)
				break
			}
		}
		close(ch)
	}()

	return ch, nil
}

// Deliver pushes ev to every active subscriber, simulating the event
// landing in a new block.
func (c *Client) Deliver(ev chainclient.LogEvent) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for _, s := range c.subscribers {
		s <- ev
	}
}
