package store

import (
	"bytes"

	"github.com/coremail/engine/pkg/bitmap"
	"github.com/coremail/engine/pkg/ids"
	bolt "go.etcd.io/bbolt"
)

// opKind distinguishes the three primitive operations a WriteBatch may
// carry over a column family.
type opKind uint8

const (
	opSet opKind = iota
	opDelete
	opMerge
)

type op struct {
	kind  opKind
	cf    []byte
	key   []byte
	value []byte       // opSet
	merge bitmap.MergeOp // opMerge
}

// WriteBatch is the only public mutation path into the store. A batch
// is a sequence of Set/Merge/Delete operations over column families; it
// commits atomically inside a single bolt.Tx or not at all, so readers
// never observe a partially-applied batch.
type WriteBatch struct {
	ops []op
}

// NewWriteBatch returns an empty batch.
func NewWriteBatch() *WriteBatch {
	return &WriteBatch{}
}

// Set stages a raw Set operation.
func (b *WriteBatch) Set(cf, key, value []byte) *WriteBatch {
	b.ops = append(b.ops, op{kind: opSet, cf: cf, key: key, value: append([]byte(nil), value...)})
	return b
}

// Delete stages a raw Delete operation.
func (b *WriteBatch) Delete(cf, key []byte) *WriteBatch {
	b.ops = append(b.ops, op{kind: opDelete, cf: cf, key: key})
	return b
}

// MergeBitmap stages a bitmap merge operation (set-bit or clear-bit) on
// the serialized Bitmap stored at cf/key. Merges to the same key within
// one batch apply in the order they were staged, so a set and a clear
// of the same bit leave the result of the later one.
func (b *WriteBatch) MergeBitmap(cf, key []byte, mergeOp bitmap.MergeOp) *WriteBatch {
	b.ops = append(b.ops, op{kind: opMerge, cf: cf, key: key, merge: mergeOp})
	return b
}

// Len reports the number of staged operations.
func (b *WriteBatch) Len() int { return len(b.ops) }

// Commit applies every staged operation inside one bolt.Tx. Bitmap
// merges against the same key are materialized in memory before the
// batch commits, so a reader never observes an intermediate merge
// state — only the fully-materialized result.
func (b *WriteBatch) Commit(s *Store) error {
	if len(b.ops) == 0 {
		return nil
	}
	_, err := s.pool.Do(func() (any, error) {
		return nil, s.db.Update(func(tx *bolt.Tx) error {
			bitmapCache := make(map[string]*bitmap.Bitmap)

			loadBitmap := func(cf, key []byte) (*bitmap.Bitmap, error) {
				cacheKey := string(cf) + "\x00" + string(key)
				if bm, ok := bitmapCache[cacheKey]; ok {
					return bm, nil
				}
				bkt := tx.Bucket(cf)
				if bkt == nil {
					return nil, ids.New(ids.ServerFail, "store: missing bucket %s", cf)
				}
				raw := bkt.Get(key)
				var bm *bitmap.Bitmap
				if raw == nil {
					bm = bitmap.New()
				} else {
					var err error
					bm, err = bitmap.Deserialize(bytes.NewReader(raw))
					if err != nil {
						return nil, ids.Corrupt(key, "store: corrupt bitmap: %v", err)
					}
				}
				bitmapCache[cacheKey] = bm
				return bm, nil
			}

			for _, o := range b.ops {
				bkt := tx.Bucket(o.cf)
				if bkt == nil {
					return ids.New(ids.ServerFail, "store: missing bucket %s", o.cf)
				}
				switch o.kind {
				case opSet:
					if err := bkt.Put(o.key, o.value); err != nil {
						return err
					}
				case opDelete:
					if err := bkt.Delete(o.key); err != nil {
						return err
					}
				case opMerge:
					bm, err := loadBitmap(o.cf, o.key)
					if err != nil {
						return err
					}
					bm.Apply(o.merge)
				}
			}

			for cacheKey, bm := range bitmapCache {
				cf, key := splitCacheKey(cacheKey)
				bkt := tx.Bucket(cf)
				var buf bytes.Buffer
				if err := bm.Serialize(&buf); err != nil {
					return err
				}
				if bm.IsEmpty() {
					if err := bkt.Delete(key); err != nil {
						return err
					}
					continue
				}
				if err := bkt.Put(key, buf.Bytes()); err != nil {
					return err
				}
			}
			return nil
		})
	})
	return err
}

func splitCacheKey(cacheKey string) (cf, key []byte) {
	for i := 0; i < len(cacheKey); i++ {
		if cacheKey[i] == 0 {
			return []byte(cacheKey[:i]), []byte(cacheKey[i+1:])
		}
	}
	return nil, nil
}

// GetBitmap reads and deserializes the Bitmap stored at cf/key, or an
// empty bitmap if absent.
func (s *Store) GetBitmap(cf, key []byte) (*bitmap.Bitmap, error) {
	raw, err := s.Get(cf, key)
	if err != nil {
		return nil, err
	}
	if raw == nil {
		return bitmap.New(), nil
	}
	bm, err := bitmap.Deserialize(bytes.NewReader(raw))
	if err != nil {
		return nil, ids.Corrupt(key, "store: corrupt bitmap: %v", err)
	}
	return bm, nil
}
