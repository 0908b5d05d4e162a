package store

import (
	"fmt"
	"path/filepath"

	"github.com/coremail/engine/pkg/ids"
	bolt "go.etcd.io/bbolt"
)

// columnFamilies lists the five top-level buckets created on open.
var columnFamilies = [][]byte{BucketValues, BucketIndexes, BucketBitmaps, BucketLogs, BucketBlobs}

// Store is the BoltDB-backed column-family key-value engine. It is safe
// for concurrent use: bbolt serializes writers internally and this type
// adds a per-(account,collection) mutex map on top (see Lock) so
// unrelated tenants don't contend on sequencing state they don't share.
type Store struct {
	db    *bolt.DB
	locks *mutexMap
	pool  *WorkerPool
}

// Open creates or opens the column-family store rooted at dataDir.
func Open(dataDir string) (*Store, error) {
	dbPath := filepath.Join(dataDir, "core.db")
	db, err := bolt.Open(dbPath, 0600, nil)
	if err != nil {
		return nil, ids.Wrap(ids.ServerFail, err, "store: open %s", dbPath)
	}

	err = db.Update(func(tx *bolt.Tx) error {
		for _, cf := range columnFamilies {
			if _, err := tx.CreateBucketIfNotExists(cf); err != nil {
				return fmt.Errorf("create bucket %s: %w", cf, err)
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, ids.Wrap(ids.ServerFail, err, "store: initialize column families")
	}

	return &Store{
		db:    db,
		locks: newMutexMap(256),
		pool:  NewWorkerPool(0),
	}, nil
}

// Close releases the underlying database file and worker pool.
func (s *Store) Close() error {
	s.pool.Close()
	return s.db.Close()
}

// ResetColumnFamilies drops and recreates every column family,
// discarding all contents. Used when restoring a full snapshot, where
// keys absent from the snapshot must not survive the restore.
func (s *Store) ResetColumnFamilies() error {
	_, err := s.pool.Do(func() (any, error) {
		return nil, s.db.Update(func(tx *bolt.Tx) error {
			for _, cf := range columnFamilies {
				if err := tx.DeleteBucket(cf); err != nil && err != bolt.ErrBucketNotFound {
					return fmt.Errorf("drop bucket %s: %w", cf, err)
				}
				if _, err := tx.CreateBucket(cf); err != nil {
					return fmt.Errorf("recreate bucket %s: %w", cf, err)
				}
			}
			return nil
		})
	})
	return err
}

// Lock serializes writers for a single (account, collection) pair so
// change-log and id-assignment sequencing stays monotonic without a
// store-wide lock. Callers must call the returned unlock func.
func (s *Store) Lock(account ids.AccountId, collection ids.Collection) func() {
	return s.locks.lock(account, collection)
}

// View runs fn against a read-only snapshot, dispatched through the
// blocking worker pool so callers on the cooperative runtime never block
// directly on bbolt I/O.
func (s *Store) View(fn func(tx *bolt.Tx) error) error {
	_, err := s.pool.Do(func() (any, error) {
		return nil, s.db.View(fn)
	})
	return err
}

// Update runs fn inside a single read-write transaction; fn's ops commit
// atomically or not at all.
func (s *Store) Update(fn func(tx *bolt.Tx) error) error {
	_, err := s.pool.Do(func() (any, error) {
		return nil, s.db.Update(fn)
	})
	return err
}

// Get reads a single value from a column family, dispatched via the
// worker pool. A missing key returns (nil, nil), not an error.
func (s *Store) Get(cf, key []byte) ([]byte, error) {
	v, err := s.pool.Do(func() (any, error) {
		var out []byte
		err := s.db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket(cf)
			if b == nil {
				return ids.New(ids.ServerFail, "store: missing bucket %s", cf)
			}
			if raw := b.Get(key); raw != nil {
				out = append([]byte{}, raw...)
			}
			return nil
		})
		return out, err
	})
	if err != nil {
		return nil, err
	}
	if v == nil {
		return nil, nil
	}
	return v.([]byte), nil
}

// ScanPrefix invokes fn for every key in cf that starts with prefix, in
// ascending key order, stopping early if fn returns false.
func (s *Store) ScanPrefix(cf, prefix []byte, fn func(key, value []byte) bool) error {
	_, err := s.pool.Do(func() (any, error) {
		return nil, s.db.View(func(tx *bolt.Tx) error {
			b := tx.Bucket(cf)
			if b == nil {
				return ids.New(ids.ServerFail, "store: missing bucket %s", cf)
			}
			c := b.Cursor()
			for k, v := c.Seek(prefix); k != nil && hasPrefix(k, prefix); k, v = c.Next() {
				if !fn(k, v) {
					break
				}
			}
			return nil
		})
	})
	return err
}

func hasPrefix(key, prefix []byte) bool {
	if len(key) < len(prefix) {
		return false
	}
	for i := range prefix {
		if key[i] != prefix[i] {
			return false
		}
	}
	return true
}
