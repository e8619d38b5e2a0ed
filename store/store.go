// Package store provides the durable backing for escrow and order state
// (C9): an append-only event journal, snapshots of escrows (keyed by chain
// and escrow id) and orders (keyed by OrderHash), and the chain-wide
// used-preimage set, all backed by a single bbolt database file, mirroring
// channeldb.DB's pattern of wrapping a bolt.DB with higher-level bucket
// management. There are no schema migrations.
package store

import (
	"fmt"
	"os"
	"path/filepath"

	"go.etcd.io/bbolt"
)

const (
	dbName           = "swap.db"
	dbFilePermission = 0600
)

var (
	journalBucket   = []byte("journal")
	kvEscrowBucket  = []byte("escrows")
	kvOrderBucket   = []byte("orders")
	preimagesBucket = []byte("used-preimages")
	metaBucket      = []byte("meta")
)

// DB is the primary datastore for swapd: the event journal, the escrow and
// order snapshots, and the used-preimage set all share one bbolt file so a
// restart only needs to open a single handle.
type DB struct {
	*bbolt.DB
	path string
}

// Open opens (creating if necessary) the swap database rooted at dbPath.
func Open(dbPath string) (*DB, error) {
	if !fileExists(dbPath) {
		if err := os.MkdirAll(dbPath, 0700); err != nil {
			return nil, err
		}
	}
	path := filepath.Join(dbPath, dbName)

	bdb, err := bbolt.Open(path, dbFilePermission, nil)
	if err != nil {
		return nil, err
	}

	db := &DB{DB: bdb, path: path}
	if err := db.createBuckets(); err != nil {
		bdb.Close()
		return nil, err
	}
	log.Infof("opened swap database at %v", path)
	return db, nil
}

func (d *DB) createBuckets() error {
	return d.Update(func(tx *bbolt.Tx) error {
		for _, name := range [][]byte{journalBucket, kvEscrowBucket, kvOrderBucket, preimagesBucket, metaBucket} {
			if _, err := tx.CreateBucketIfNotExists(name); err != nil {
				return fmt.Errorf("unable to create bucket %s: %w", name, err)
			}
		}
		return nil
	})
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

// Log returns the append-only journal backed by d.
func (d *DB) Log() *Log {
	return &Log{db: d}
}

// KV returns the compacted snapshot store backed by d.
func (d *DB) KV() *KV {
	return &KV{db: d}
}

// UsedPreimages returns the chain-wide used-preimage set backed by d.
func (d *DB) UsedPreimages() *UsedPreimages {
	return &UsedPreimages{db: d}
}
