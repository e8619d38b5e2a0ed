// Package coordinator implements the off-chain swap coordinator (C8): it
// observes both chains, drives destination-escrow creation, relays the
// revealed preimage, and cascades timeout refunds, with a journal that
// survives restarts and idempotent effects throughout.
package coordinator

import (
	"context"
	"fmt"
	"runtime"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/meshswap/relayer/chainclient"
	"github.com/meshswap/relayer/crosschain"
	"github.com/meshswap/relayer/errkind"
	"github.com/meshswap/relayer/escrow"
	"github.com/meshswap/relayer/hashlock"
	"github.com/meshswap/relayer/orderbook"
	"github.com/meshswap/relayer/signer"
	"github.com/meshswap/relayer/timelock"
)

// orderActor serializes every step taken for one OrderHash; the Engine's
// worker pool runs steps for distinct orders concurrently but never two
// steps for the same order at once. This mirrors htlcswitch.Switch's
// per-link critical section, generalized from "link" to "order".
type orderActor struct {
	mu sync.Mutex
}

// orderTask is one unit of work submitted to the Engine's pool, always
// scoped to a single OrderHash so the pool can route it to that order's
// actor lock.
type orderTask struct {
	hash   orderbook.OrderHash
	fn     func(ctx context.Context) error
	result chan error
}

// Engine drives the coordinator's state machine. It owns a fixed pool of
// workers pulling from a shared task channel (§5's work-stealing pool),
// and a per-OrderHash actor map providing the single-threaded-per-order
// guarantee.
type Engine struct {
	Orders     *crosschain.Book
	SrcEscrows *escrow.Book
	DstEscrows *escrow.Book
	Journal    *Journal

	SrcClient chainclient.Client
	DstClient chainclient.Client
	SrcSigner signer.Signer
	DstSigner signer.Signer

	Backoff Backoff

	mu     sync.Mutex
	actors map[orderbook.OrderHash]*orderActor

	tasks  chan *orderTask
	wg     sync.WaitGroup
	cancel context.CancelFunc
}

// NewEngine constructs an Engine. workers <= 0 defaults to
// runtime.NumCPU().
func NewEngine(workers int, orders *crosschain.Book, srcEscrows, dstEscrows *escrow.Book, journal *Journal, srcClient, dstClient chainclient.Client, srcSigner, dstSigner signer.Signer) *Engine {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	return &Engine{
		Orders:     orders,
		SrcEscrows: srcEscrows,
		DstEscrows: dstEscrows,
		Journal:    journal,
		SrcClient:  srcClient,
		DstClient:  dstClient,
		SrcSigner:  srcSigner,
		DstSigner:  dstSigner,
		Backoff:    DefaultBackoff,
		actors:     make(map[orderbook.OrderHash]*orderActor),
		tasks:      make(chan *orderTask, workers*4),
	}
}

// Start spawns the worker pool. It must be called once before any Handle*
// method; Stop drains and joins the pool.
func (e *Engine) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	ctx, cancel := context.WithCancel(ctx)
	e.cancel = cancel

	for i := 0; i < workers; i++ {
		e.wg.Add(1)
		go e.worker(ctx)
	}
}

// Stop closes the task channel and waits for in-flight steps to finish,
// draining them to a terminal step result before returning, per §5's
// shutdown semantics (in-flight work is safe to lose, but we join rather
// than abandon since Stop is also used to flush tests deterministically).
func (e *Engine) Stop() {
	if e.cancel != nil {
		e.cancel()
	}
	close(e.tasks)
	e.wg.Wait()
}

func (e *Engine) worker(ctx context.Context) {
	defer e.wg.Done()
	for task := range e.tasks {
		actor := e.actorFor(task.hash)
		actor.mu.Lock()
		err := task.fn(ctx)
		actor.mu.Unlock()
		if task.result != nil {
			task.result <- err
		}
	}
}

func (e *Engine) actorFor(hash orderbook.OrderHash) *orderActor {
	e.mu.Lock()
	defer e.mu.Unlock()
	a, ok := e.actors[hash]
	if !ok {
		a = &orderActor{}
		e.actors[hash] = a
	}
	return a
}

// submit enqueues fn to run under hash's actor lock and blocks for the
// result, so callers (tests, the event-ingestion loop) see a synchronous
// step even though it ran on the shared worker pool.
func (e *Engine) submit(ctx context.Context, hash orderbook.OrderHash, fn func(ctx context.Context) error) error {
	task := &orderTask{hash: hash, fn: fn, result: make(chan error, 1)}
	select {
	case e.tasks <- task:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-task.result:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// HandleFilled is step (c): on a source-chain Filled event, idempotently
// initiate the destination leg.
func (e *Engine) HandleFilled(ctx context.Context, hash orderbook.OrderHash, srcEscrowID escrow.ID, now time.Time) error {
	return e.submit(ctx, hash, func(ctx context.Context) error {
		entry := e.Journal.GetOrNew(hash)
		if entry.State >= DestinationInitiated {
			return nil
		}

		order, err := e.Orders.Get(hash)
		if err != nil {
			return err
		}

		dstTimelocks := destTimelocksFor(order.Dest.TimelockDuration, now.Unix())

		blob := []byte(fmt.Sprintf("dest-create:%x", hash))
		sig, err := e.DstSigner.Sign(ctx, blob)
		if err != nil {
			return errkind.Wrap(errkind.TransientChain, "coordinator: sign destination create", err)
		}
		if _, err := e.DstClient.SendSignedTx(ctx, append(blob, sig...)); err != nil {
			return errkind.Wrap(errkind.TransientChain, "coordinator: submit destination create", err)
		}

		destID, err := e.Orders.InitiateDestination(hash, srcEscrowID, dstTimelocks, now.Unix())
		if err != nil {
			return err
		}

		entry.SrcEscrowID = srcEscrowID
		entry.DestEscrowID = destID
		entry.State = DestinationInitiated
		log.Infof("order %x: destination leg initiated (escrow %x)", hash, destID)
		return e.Journal.Record(entry, now)
	})
}

// destTimelocksFor derives a destination-leg timelock schedule of length
// duration starting at now, split into four equal stages. It does not look
// at the source leg: dst_cancellation < src_cancellation (§4.1) holds only
// if the source leg's Cancellation is later than now+3*(duration/4), and
// neither this package nor crosschain checks that.
func destTimelocksFor(duration int64, now int64) timelock.Lock {
	quarter := duration / 4
	if quarter == 0 {
		quarter = 1
	}
	return timelock.Lock{
		Withdrawal:         now + quarter,
		PublicWithdrawal:   now + 2*quarter,
		Cancellation:       now + 3*quarter,
		PublicCancellation: now + duration,
	}
}

// HandlePreimageRevealed is step (d): relay a preimage observed on either
// chain to the opposite chain's escrow. Idempotent: an already-terminal
// escrow is skipped rather than erroring.
func (e *Engine) HandlePreimageRevealed(ctx context.Context, hash orderbook.OrderHash, preimage hashlock.Preimage, now time.Time) error {
	return e.submit(ctx, hash, func(ctx context.Context) error {
		entry, err := e.Journal.Get(hash)
		if err != nil {
			return err
		}
		if entry.State.Terminal() {
			return nil
		}
		if entry.State < DestinationInitiated {
			return ErrNotReady
		}

		srcDone, err := e.claimIfPending(e.SrcEscrows, entry.SrcEscrowID, preimage, now)
		if err != nil {
			return err
		}
		dstDone, err := e.claimIfPending(e.DstEscrows, entry.DestEscrowID, preimage, now)
		if err != nil {
			return err
		}

		entry.Preimage = &preimage
		if srcDone && dstDone {
			entry.State = Completed
			log.Infof("order %x: completed", hash)
		} else {
			entry.State = PreimageKnown
			log.Debugf("order %x: preimage relayed, one leg still pending claim", hash)
		}
		return e.Journal.Record(entry, now)
	})
}

func (e *Engine) claimIfPending(book *escrow.Book, id escrow.ID, preimage hashlock.Preimage, now time.Time) (bool, error) {
	esc, err := book.Get(id)
	if err != nil {
		return false, err
	}
	if esc.Status.Terminal() {
		return true, nil
	}

	_, err = book.Claim(id, preimage, esc.Beneficiary(), now.Unix())
	if err == nil {
		return true, nil
	}
	if kind, ok := errkind.KindOf(err); ok && kind == errkind.Stage {
		return false, nil
	}
	return false, err
}

// HandleCancellation is step (g): with no preimage observed, refund the
// destination leg first, then the source leg once its own cancellation
// stage begins. Safe to call repeatedly; each call only advances the
// sides whose stage currently permits a refund.
func (e *Engine) HandleCancellation(ctx context.Context, hash orderbook.OrderHash, now time.Time) error {
	return e.submit(ctx, hash, func(ctx context.Context) error {
		entry, err := e.Journal.Get(hash)
		if err != nil {
			return err
		}
		if entry.State.Terminal() {
			return nil
		}

		dstDone, err := e.refundIfPermitted(e.DstEscrows, entry.DestEscrowID, now)
		if err != nil {
			return err
		}
		srcDone, err := e.refundIfPermitted(e.SrcEscrows, entry.SrcEscrowID, now)
		if err != nil {
			return err
		}

		if dstDone && srcDone {
			entry.State = Abandoned
			log.Infof("order %x: abandoned, both legs refunded", hash)
		}
		return e.Journal.Record(entry, now)
	})
}

func (e *Engine) refundIfPermitted(book *escrow.Book, id escrow.ID, now time.Time) (bool, error) {
	esc, err := book.Get(id)
	if err != nil {
		return false, err
	}
	if esc.Status.Terminal() {
		return true, nil
	}

	_, err = book.RefundPublic(id, "coordinator", now.Unix())
	if err == nil {
		return true, nil
	}
	if kind, ok := errkind.KindOf(err); ok && kind == errkind.Stage {
		return false, nil
	}
	return false, err
}

// Recover replays the journal and, for each non-terminal entry that has
// reached DestinationInitiated, checks that its destination escrow is
// present in DstEscrows; a missing one fails recovery with a FatalConfig
// error. It does not query either chain client and does not change any
// entry's state.
func (e *Engine) Recover(ctx context.Context) error {
	if err := e.Journal.LoadFromLog(); err != nil {
		return err
	}

	g := new(errgroup.Group)
	for _, entry := range e.Journal.All() {
		entry := entry
		if entry.State.Terminal() || entry.State < DestinationInitiated {
			continue
		}
		g.Go(func() error {
			if _, err := e.DstEscrows.Get(entry.DestEscrowID); err != nil {
				return errkind.Wrap(errkind.FatalConfig, "coordinator: recovery found journal entry with missing destination escrow", err)
			}
			return nil
		})
	}
	return g.Wait()
}
