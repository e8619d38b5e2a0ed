package store

import (
	"encoding/json"

	"github.com/meshswap/relayer/escrow"
	"github.com/meshswap/relayer/orderbook"
	"go.etcd.io/bbolt"
)

// KV is the compacted snapshot store (C9): the latest known state of each
// escrow and order, keyed by (chain, id) / OrderHash. It overwrites on
// every Put, unlike Log which only ever appends.
type KV struct {
	db *DB
}

// PutEscrow implements escrow.Snapshotter.
func (kv *KV) PutEscrow(chain string, e *escrow.Escrow) error {
	buf, err := json.Marshal(e)
	if err != nil {
		return err
	}
	return kv.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(kvEscrowBucket).Put(escrowKey(chain, e.ID), buf)
	})
}

// GetEscrow loads the last snapshot written for (chain, id), used during
// restart recovery to seed escrow.Book.Restore.
func (kv *KV) GetEscrow(chain string, id escrow.ID) (*escrow.Escrow, error) {
	var e escrow.Escrow
	err := kv.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(kvEscrowBucket).Get(escrowKey(chain, id))
		if v == nil {
			return escrow.ErrNotFound
		}
		return json.Unmarshal(v, &e)
	})
	if err != nil {
		return nil, err
	}
	return &e, nil
}

// AllEscrows returns every snapshot currently stored for chain, used to
// rebuild an escrow.Book in full on restart.
func (kv *KV) AllEscrows(chain string) ([]*escrow.Escrow, error) {
	var out []*escrow.Escrow
	prefix := []byte(chain + "/")
	err := kv.db.View(func(tx *bbolt.Tx) error {
		c := tx.Bucket(kvEscrowBucket).Cursor()
		for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
			var e escrow.Escrow
			if err := json.Unmarshal(v, &e); err != nil {
				return err
			}
			out = append(out, &e)
		}
		return nil
	})
	return out, err
}

// PutOrder snapshots an orderbook.Order, keyed by its hash.
func (kv *KV) PutOrder(o *orderbook.Order) error {
	buf, err := json.Marshal(o)
	if err != nil {
		return err
	}
	return kv.db.Update(func(tx *bbolt.Tx) error {
		return tx.Bucket(kvOrderBucket).Put(o.Hash[:], buf)
	})
}

// GetOrder loads the last snapshot written for hash.
func (kv *KV) GetOrder(hash orderbook.OrderHash) (*orderbook.Order, error) {
	var o orderbook.Order
	err := kv.db.View(func(tx *bbolt.Tx) error {
		v := tx.Bucket(kvOrderBucket).Get(hash[:])
		if v == nil {
			return orderbook.ErrNotFound
		}
		return json.Unmarshal(v, &o)
	})
	if err != nil {
		return nil, err
	}
	return &o, nil
}

func escrowKey(chain string, id escrow.ID) []byte {
	return append([]byte(chain+"/"), id[:]...)
}

func hasPrefix(b, prefix []byte) bool {
	if len(b) < len(prefix) {
		return false
	}
	for i := range prefix {
		if b[i] != prefix[i] {
			return false
		}
	}
	return true
}
