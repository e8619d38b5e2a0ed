package coordinator

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/meshswap/relayer/errkind"
	"github.com/meshswap/relayer/escrow"
	"github.com/meshswap/relayer/hashlock"
	"github.com/meshswap/relayer/orderbook"
	"github.com/meshswap/relayer/store"
)

// Entry is one journal record: the coordinator's complete view of one
// order's cross-chain progress (§3's SwapJournal entry).
type Entry struct {
	OrderHash    orderbook.OrderHash
	State        State
	SrcEscrowID  escrow.ID
	DestEscrowID escrow.ID
	Preimage     *hashlock.Preimage
	LastStepAt   int64
	Retries      int
}

func (e Entry) clone() Entry {
	cp := e
	if e.Preimage != nil {
		p := *e.Preimage
		cp.Preimage = &p
	}
	return cp
}

// Journal is the coordinator's persistent, in-memory-cached view of every
// order it has ever observed, backed by store.Log's append-only event
// stream (§4.9). Mutation is always through Record, which appends before
// updating the cache, so a crash between the two always leaves the log as
// the source of truth for the next LoadFromLog.
type Journal struct {
	mu      sync.RWMutex
	log     *store.Log
	entries map[orderbook.OrderHash]Entry
}

// NewJournal constructs an empty Journal backed by log.
func NewJournal(log *store.Log) *Journal {
	return &Journal{log: log, entries: make(map[orderbook.OrderHash]Entry)}
}

// GetOrNew returns the cached entry for hash, or a fresh Observed entry if
// none exists yet.
func (j *Journal) GetOrNew(hash orderbook.OrderHash) Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	if e, ok := j.entries[hash]; ok {
		return e.clone()
	}
	return Entry{OrderHash: hash, State: Observed}
}

// Get returns the cached entry for hash, or ErrUnknownOrder if Record has
// never been called for it.
func (j *Journal) Get(hash orderbook.OrderHash) (Entry, error) {
	j.mu.RLock()
	defer j.mu.RUnlock()
	e, ok := j.entries[hash]
	if !ok {
		return Entry{}, ErrUnknownOrder
	}
	return e.clone(), nil
}

// Record appends entry to the durable log, then updates the cache. It
// must be called with the per-order actor lock held so appends for one
// OrderHash are never interleaved (§4.9's single-writer guarantee).
func (j *Journal) Record(entry Entry, observedAt time.Time) error {
	entry.LastStepAt = observedAt.Unix()

	payload, err := json.Marshal(entry)
	if err != nil {
		return errkind.Wrap(errkind.FatalConfig, "journal: marshal entry", err)
	}
	if _, err := j.log.Append(entry.OrderHash, eventKindFor(entry.State), payload, observedAt); err != nil {
		return errkind.Wrap(errkind.TransientChain, "journal: append event", err)
	}

	j.mu.Lock()
	j.entries[entry.OrderHash] = entry
	j.mu.Unlock()
	return nil
}

// LoadFromLog rebuilds the in-memory cache by replaying every event in
// log from the beginning, used on coordinator restart (§4.8f). Later
// entries for the same OrderHash overwrite earlier ones, since the log
// only ever grows monotonically and Record always wrote the full entry.
func (j *Journal) LoadFromLog() error {
	entries := make(map[orderbook.OrderHash]Entry)
	err := j.log.ReplayFrom(0, func(ev store.Event) error {
		var entry Entry
		if err := json.Unmarshal(ev.Payload, &entry); err != nil {
			return err
		}
		entries[entry.OrderHash] = entry
		return nil
	})
	if err != nil {
		return err
	}

	j.mu.Lock()
	j.entries = entries
	j.mu.Unlock()
	return nil
}

// All returns a snapshot of every cached entry, for the status surface's
// ListOrders.
func (j *Journal) All() []Entry {
	j.mu.RLock()
	defer j.mu.RUnlock()
	out := make([]Entry, 0, len(j.entries))
	for _, e := range j.entries {
		out = append(out, e.clone())
	}
	return out
}

func eventKindFor(s State) store.EventKind {
	switch s {
	case Observed:
		return store.EventObserved
	case DestinationInitiated:
		return store.EventDestinationInitiated
	case PreimageKnown:
		return store.EventPreimageKnown
	case Completed:
		return store.EventCompleted
	case Abandoned:
		return store.EventAbandoned
	default:
		return store.EventObserved
	}
}
