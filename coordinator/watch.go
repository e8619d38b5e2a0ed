package coordinator

import (
	"context"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"time"

	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/meshswap/relayer/chainclient"
	"github.com/meshswap/relayer/errkind"
	"github.com/meshswap/relayer/escrow"
	"github.com/meshswap/relayer/hashlock"
	"github.com/meshswap/relayer/orderbook"
)

// chainEvent is the wire shape a LogEvent's Data must decode into for
// Watch to route it. A concrete chainclient.Client implementation is
// responsible for translating whatever its chain actually emits (an EVM
// log topic, a Move event handle) into this shape.
type chainEvent struct {
	Kind      string `json:"kind"`
	OrderHash string `json:"order_hash"`
	EscrowID  string `json:"escrow_id,omitempty"`
	Preimage  string `json:"preimage,omitempty"`
}

const (
	eventFilled           = "filled"
	eventPreimageRevealed = "preimage_revealed"
	eventCancellationDue  = "cancellation_due"
)

// watchRate bounds how fast a single chain's event stream is drained into
// Handle* calls, so a burst of replayed log events on reconnect can't
// flood the worker pool faster than it can make progress on other orders.
var watchRate = rate.NewLimiter(rate.Limit(200), 50)

// Watch subscribes to both chains' log streams and routes every event to
// the matching Handle* method, running the two subscriptions side by side
// the way htlcswitch.Switch runs one goroutine per link and fans failures
// back through a shared error path. It blocks until ctx is cancelled or
// either subscription ends in error.
func (e *Engine) Watch(ctx context.Context, srcFilter, dstFilter chainclient.LogFilter) error {
	g, ctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return e.watchChain(ctx, e.SrcClient, srcFilter)
	})
	g.Go(func() error {
		return e.watchChain(ctx, e.DstClient, dstFilter)
	})

	return g.Wait()
}

func (e *Engine) watchChain(ctx context.Context, client chainclient.Client, filter chainclient.LogFilter) error {
	events, err := client.SubscribeLogs(ctx, filter)
	if err != nil {
		return errkind.Wrap(errkind.TransientChain, "coordinator: subscribe chain logs", err)
	}

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case ev, ok := <-events:
			if !ok {
				return nil
			}
			if ev.Reverted {
				continue
			}
			if err := watchRate.Wait(ctx); err != nil {
				return err
			}
			if err := e.dispatch(ctx, ev); err != nil {
				log.Warnf("coordinator: dropping unroutable chain event: %v", err)
			}
		}
	}
}

func (e *Engine) dispatch(ctx context.Context, ev chainclient.LogEvent) error {
	var parsed chainEvent
	if err := json.Unmarshal(ev.Data, &parsed); err != nil {
		return fmt.Errorf("coordinator: decode chain event: %w", err)
	}

	hash, err := decodeOrderHash(parsed.OrderHash)
	if err != nil {
		return err
	}
	now := time.Now()

	switch parsed.Kind {
	case eventFilled:
		escrowID, err := decodeEscrowID(parsed.EscrowID)
		if err != nil {
			return err
		}
		return e.HandleFilled(ctx, hash, escrowID, now)

	case eventPreimageRevealed:
		preimage, err := decodePreimage(parsed.Preimage)
		if err != nil {
			return err
		}
		return e.HandlePreimageRevealed(ctx, hash, preimage, now)

	case eventCancellationDue:
		return e.HandleCancellation(ctx, hash, now)

	default:
		return fmt.Errorf("coordinator: unknown chain event kind %q", parsed.Kind)
	}
}

func decodeOrderHash(s string) (orderbook.OrderHash, error) {
	var hash orderbook.OrderHash
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(hash) {
		return hash, fmt.Errorf("coordinator: malformed order hash %q", s)
	}
	copy(hash[:], b)
	return hash, nil
}

func decodeEscrowID(s string) (escrow.ID, error) {
	var id escrow.ID
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(id) {
		return id, fmt.Errorf("coordinator: malformed escrow id %q", s)
	}
	copy(id[:], b)
	return id, nil
}

func decodePreimage(s string) (hashlock.Preimage, error) {
	var p hashlock.Preimage
	b, err := hex.DecodeString(s)
	if err != nil || len(b) != len(p) {
		return p, fmt.Errorf("coordinator: malformed preimage %q", s)
	}
	copy(p[:], b)
	return p, nil
}

// RetryLoop periodically re-attempts the cancellation cascade for every
// non-terminal order whose own Backoff window has elapsed since its last
// recorded step, so a transient failure during HandleCancellation isn't
// stuck until the next chain event arrives (§4.8e). It blocks until ctx
// is cancelled.
func (e *Engine) RetryLoop(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			e.RetryTick(ctx, time.Now())
		}
	}
}

// RetryTick runs one retry sweep immediately, the unit of work RetryLoop
// repeats on a timer. Exposed directly so tests can drive a sweep at a
// specific logical time instead of waiting on a wall-clock ticker.
func (e *Engine) RetryTick(ctx context.Context, now time.Time) {
	g, ctx := errgroup.WithContext(ctx)
	for _, entry := range e.Journal.All() {
		entry := entry
		if entry.State.Terminal() {
			continue
		}

		delay := e.Backoff.Next(entry.Retries+1, now, now.Add(e.Backoff.Max))
		due := time.Unix(entry.LastStepAt, 0).Add(delay)
		if now.Before(due) {
			continue
		}

		g.Go(func() error {
			if err := e.HandleCancellation(ctx, entry.OrderHash, now); err != nil {
				log.Debugf("order %x: retry attempt failed: %v", entry.OrderHash, err)
				e.bumpRetries(ctx, entry.OrderHash, now)
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		log.Warnf("coordinator: retry tick: %v", err)
	}
}

func (e *Engine) bumpRetries(ctx context.Context, hash orderbook.OrderHash, now time.Time) {
	err := e.submit(ctx, hash, func(ctx context.Context) error {
		entry, err := e.Journal.Get(hash)
		if err != nil {
			return nil
		}
		entry.Retries++
		return e.Journal.Record(entry, now)
	})
	if err != nil {
		log.Warnf("order %x: record retry count: %v", hash, err)
	}
}
