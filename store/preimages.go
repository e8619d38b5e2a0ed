package store

import (
	"github.com/meshswap/relayer/hashlock"
	"go.etcd.io/bbolt"
)

// UsedPreimages is the durable, chain-wide used-preimage set (§3): once a
// preimage is recorded as used on a chain it is never removed, for the
// lifetime of the process or across restarts.
type UsedPreimages struct {
	db *DB
}

// Contains implements escrow.PreimageSet.
func (u *UsedPreimages) Contains(chain string, preimage hashlock.Preimage) bool {
	var found bool
	_ = u.db.View(func(tx *bbolt.Tx) error {
		found = tx.Bucket(preimagesBucket).Get(preimageKey(chain, preimage)) != nil
		return nil
	})
	return found
}

// Add implements escrow.PreimageSet: it records preimage as used, returning
// false if it was already present.
func (u *UsedPreimages) Add(chain string, preimage hashlock.Preimage) bool {
	var added bool
	_ = u.db.Update(func(tx *bbolt.Tx) error {
		b := tx.Bucket(preimagesBucket)
		key := preimageKey(chain, preimage)
		if b.Get(key) != nil {
			added = false
			return nil
		}
		added = true
		return b.Put(key, []byte{1})
	})
	return added
}

func preimageKey(chain string, preimage hashlock.Preimage) []byte {
	return append([]byte(chain+"/"), preimage[:]...)
}
