package raftengine

import (
	"encoding/binary"
	"time"

	"github.com/coremail/engine/pkg/bitmap"
	"github.com/coremail/engine/pkg/blobstore"
	"github.com/coremail/engine/pkg/changelog"
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/log"
	"github.com/coremail/engine/pkg/orm"
	"github.com/coremail/engine/pkg/schema"
	"github.com/coremail/engine/pkg/store"
)

// MergedChanges is one (account, collection)'s divergence census: the
// documents this node inserted, updated or deleted beyond the common
// prefix it shares with the new leader. A node stepping down with
// uncommitted tail entries persists one of these per touched tuple,
// rolls its local writes back, and clears the record once the leader's
// replay has re-mirrored it.
type MergedChanges struct {
	Inserted *bitmap.Bitmap
	Updated  *bitmap.Bitmap
	Deleted  *bitmap.Bitmap
}

// NewMergedChanges returns an empty census.
func NewMergedChanges() *MergedChanges {
	return &MergedChanges{Inserted: bitmap.New(), Updated: bitmap.New(), Deleted: bitmap.New()}
}

// IsEmpty reports whether no document diverged.
func (m *MergedChanges) IsEmpty() bool {
	return m.Inserted.IsEmpty() && m.Updated.IsEmpty() && m.Deleted.IsEmpty()
}

// CollectMergedChanges folds every change-log entry after since into a
// divergence census. since is the ChangeId at the common prefix with
// the new leader (ids.NoChangeId when nothing matches and the whole
// log diverged).
func CollectMergedChanges(s *store.Store, account ids.AccountId, collection ids.Collection, since ids.ChangeId) (*MergedChanges, error) {
	mc := NewMergedChanges()
	prefix := store.ChangeLogPrefix(account, collection)
	var scanErr error
	err := s.ScanPrefix(store.BucketLogs, prefix, func(key, value []byte) bool {
		cid := binary.BigEndian.Uint64(key[len(key)-8:])
		if since != ids.NoChangeId && cid <= since {
			return true
		}
		entry, err := changelog.DecodeEntry(value)
		if err != nil {
			scanErr = err
			return false
		}
		for _, id := range entry.Created {
			mc.Inserted.Add(uint32(id.Document()))
		}
		for _, id := range entry.Updated {
			if !mc.Inserted.Contains(uint32(id.Document())) {
				mc.Updated.Add(uint32(id.Document()))
			}
		}
		for _, id := range entry.Deleted {
			doc := uint32(id.Document())
			if mc.Inserted.Remove(doc) {
				continue // never existed at the match point either
			}
			mc.Updated.Remove(doc)
			mc.Deleted.Add(doc)
		}
		return true
	})
	if err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, scanErr
	}
	return mc, nil
}

// SaveRollback persists a divergence census so recovery survives a
// crash mid-rollback.
func SaveRollback(s *store.Store, account ids.AccountId, collection ids.Collection, mc *MergedChanges) error {
	b := store.NewWriteBatch()
	b.Set(store.BucketLogs, store.RollbackKey(account, collection), encodeMergedChanges(mc))
	return b.Commit(s)
}

// LoadRollbacks returns every pending divergence census, keyed by the
// (account, collection) it belongs to.
func LoadRollbacks(s *store.Store) (map[ids.AccountId]map[ids.Collection]*MergedChanges, error) {
	out := make(map[ids.AccountId]map[ids.Collection]*MergedChanges)
	var scanErr error
	err := s.ScanPrefix(store.BucketLogs, store.RollbackKeyPrefix(), func(key, value []byte) bool {
		account, collection, ok := store.ParseRollbackKey(key)
		if !ok {
			return true
		}
		mc, err := decodeMergedChanges(value)
		if err != nil {
			scanErr = err
			return false
		}
		if out[account] == nil {
			out[account] = make(map[ids.Collection]*MergedChanges)
		}
		out[account][collection] = mc
		return true
	})
	if err != nil {
		return nil, err
	}
	if scanErr != nil {
		return nil, scanErr
	}
	return out, nil
}

// ClearRollback removes a census once the new leader's replay has
// acknowledged the tuple as mirrored.
func ClearRollback(s *store.Store, account ids.AccountId, collection ids.Collection) error {
	b := store.NewWriteBatch()
	b.Delete(store.BucketLogs, store.RollbackKey(account, collection))
	return b.Commit(s)
}

func encodeMergedChanges(mc *MergedChanges) []byte {
	var buf []byte
	for _, bm := range []*bitmap.Bitmap{mc.Inserted, mc.Updated, mc.Deleted} {
		values := bm.ToSlice()
		buf = binary.BigEndian.AppendUint32(buf, uint32(len(values)))
		for _, v := range values {
			buf = binary.BigEndian.AppendUint32(buf, v)
		}
	}
	return buf
}

func decodeMergedChanges(data []byte) (*MergedChanges, error) {
	mc := NewMergedChanges()
	rest := data
	for _, bm := range []*bitmap.Bitmap{mc.Inserted, mc.Updated, mc.Deleted} {
		if len(rest) < 4 {
			return nil, ids.Corrupt(data, "raftengine: truncated rollback record")
		}
		n := binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
		for i := uint32(0); i < n; i++ {
			if len(rest) < 4 {
				return nil, ids.Corrupt(data, "raftengine: truncated rollback record")
			}
			bm.Add(binary.BigEndian.Uint32(rest[:4]))
			rest = rest[4:]
		}
	}
	return mc, nil
}

// RollbackDiverged undoes this node's writes beyond the common prefix:
// every document the census names as inserted or updated is dropped
// from local state (the leader's replay re-creates those that still
// exist), the diverged change-log tail is truncated back to since, and
// blobs orphaned by the dropped documents lose their links. Deleted
// documents need no local undo — the leader's replay re-inserts them
// if they survived on its side.
func RollbackDiverged(s *store.Store, blobs *blobstore.Store, account ids.AccountId, collection ids.Collection, mc *MergedChanges, since ids.ChangeId) error {
	touched := mc.Inserted.Union(mc.Updated)

	b := store.NewWriteBatch()
	var orphaned [][32]byte
	var walkErr error
	touched.Each(func(v uint32) bool {
		doc := ids.DocumentId(v)
		old, err := orm.ReadObject(s, account, collection, doc)
		if err != nil {
			walkErr = err
			return false
		}
		if old == nil {
			return true
		}
		if _, err := orm.BuildWriteBatch(b, account, collection, doc, schema.For(collection), old, nil); err != nil {
			walkErr = err
			return false
		}
		for _, hash := range schema.Blobs(collection, old) {
			blobstore.UnlinkOwned(b, hash, account, collection, doc)
			orphaned = append(orphaned, hash)
		}
		return true
	})
	if walkErr != nil {
		return walkErr
	}

	// truncate the diverged change-log tail
	prefix := store.ChangeLogPrefix(account, collection)
	err := s.ScanPrefix(store.BucketLogs, prefix, func(key, _ []byte) bool {
		cid := binary.BigEndian.Uint64(key[len(key)-8:])
		if since == ids.NoChangeId || cid > since {
			b.Delete(store.BucketLogs, append([]byte(nil), key...))
		}
		return true
	})
	if err != nil {
		return err
	}

	if err := b.Commit(s); err != nil {
		return err
	}

	if blobs != nil {
		for _, hash := range orphaned {
			refs, err := blobs.RefCount(hash, time.Now())
			if err != nil || refs > 0 {
				continue
			}
			if _, err := blobs.Delete(hash); err != nil {
				log.Logger.Error().Err(err).Hex("hash", hash[:]).Msg("rollback: orphaned blob delete failed")
			}
		}
	}

	log.Logger.Info().
		Uint32("account", uint32(account)).
		Str("collection", collection.String()).
		Int("documents", touched.Cardinality()).
		Msg("rolled back diverged writes")
	return nil
}
