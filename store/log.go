package store

import (
	"encoding/binary"
	"encoding/json"
	"time"

	"go.etcd.io/bbolt"
)

// EventKind tags a journal entry with the coordinator state transition it
// records (§4.8's Observed -> DestinationInitiated -> PreimageKnown ->
// Completed / Abandoned journal).
type EventKind string

const (
	EventObserved             EventKind = "observed"
	EventDestinationInitiated EventKind = "destination_initiated"
	EventPreimageKnown        EventKind = "preimage_known"
	EventCompleted            EventKind = "completed"
	EventAbandoned            EventKind = "abandoned"
)

// Event is one append-only journal record. Seq is assigned by Append and is
// monotonic across the whole database, not per-OrderHash, so a full replay
// in Seq order reconstructs the global event order the coordinator saw.
type Event struct {
	Seq        uint64
	OrderHash  [32]byte
	Kind       EventKind
	Payload    []byte
	ObservedAt time.Time
}

// Log is the append-only event journal (C9). Entries are never mutated or
// deleted; restart recovery replays it from the beginning or from a given
// Seq via ReplayFrom.
type Log struct {
	db *DB
}

// Append records event, assigning it the next monotonic sequence number.
// The returned Seq must be used by the caller as event.Seq from then on.
func (l *Log) Append(orderHash [32]byte, kind EventKind, payload []byte, observedAt time.Time) (uint64, error) {
	var seq uint64
	err := l.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(journalBucket)
		next, err := b.NextSequence()
		if err != nil {
			return err
		}
		seq = next

		ev := Event{Seq: seq, OrderHash: orderHash, Kind: kind, Payload: payload, ObservedAt: observedAt}
		buf, err := json.Marshal(ev)
		if err != nil {
			return err
		}
		return b.Put(seqKey(seq), buf)
	})
	return seq, err
}

// ReplayFrom calls fn for every journal entry with Seq >= from, in
// ascending Seq order, stopping early if fn returns an error.
func (l *Log) ReplayFrom(from uint64, fn func(Event) error) error {
	return l.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(journalBucket).Cursor()
		for k, v := c.Seek(seqKey(from)); k != nil; k, v = c.Next() {
			var ev Event
			if err := json.Unmarshal(v, &ev); err != nil {
				return err
			}
			if err := fn(ev); err != nil {
				return err
			}
		}
		return nil
	})
}

func seqKey(seq uint64) []byte {
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], seq)
	return buf[:]
}
