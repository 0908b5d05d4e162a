package store

import (
	"testing"

	"github.com/coremail/engine/pkg/bitmap"
	"github.com/coremail/engine/pkg/ids"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestWriteBatchSetGet(t *testing.T) {
	s := openTestStore(t)
	key := ValueKey(1, ids.CollectionMail, 7, 0)

	b := NewWriteBatch()
	b.Set(BucketValues, key, []byte("hello"))
	require.NoError(t, b.Commit(s))

	got, err := s.Get(BucketValues, key)
	require.NoError(t, err)
	require.Equal(t, []byte("hello"), got)
}

func TestWriteBatchDeleteRemovesKey(t *testing.T) {
	s := openTestStore(t)
	key := ValueKey(1, ids.CollectionMail, 7, 0)

	require.NoError(t, NewWriteBatch().Set(BucketValues, key, []byte("x")).Commit(s))
	require.NoError(t, NewWriteBatch().Delete(BucketValues, key).Commit(s))

	got, err := s.Get(BucketValues, key)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestWriteBatchIsAtomic(t *testing.T) {
	s := openTestStore(t)
	k1 := ValueKey(1, ids.CollectionMail, 1, 0)
	k2 := ValueKey(1, ids.CollectionMail, 2, 0)

	b := NewWriteBatch().
		Set(BucketValues, k1, []byte("a")).
		Set(BucketValues, k2, []byte("b"))
	require.NoError(t, b.Commit(s))

	v1, err := s.Get(BucketValues, k1)
	require.NoError(t, err)
	v2, err := s.Get(BucketValues, k2)
	require.NoError(t, err)
	require.Equal(t, []byte("a"), v1)
	require.Equal(t, []byte("b"), v2)
}

func TestMergeBitmapAccumulatesWithinBatch(t *testing.T) {
	s := openTestStore(t)
	key := DocumentBitmapKey(1, ids.CollectionMail)

	b := NewWriteBatch()
	for _, v := range []uint32{1, 2, 3} {
		b.MergeBitmap(BucketBitmaps, key, bitmap.MergeOp{Set: true, Value: v})
	}
	require.NoError(t, b.Commit(s))

	bm, err := s.GetBitmap(BucketBitmaps, key)
	require.NoError(t, err)
	require.Equal(t, []uint32{1, 2, 3}, bm.ToSlice())
}

func TestMergeBitmapAcrossBatchesIsCumulative(t *testing.T) {
	s := openTestStore(t)
	key := DocumentBitmapKey(1, ids.CollectionMail)

	require.NoError(t, NewWriteBatch().MergeBitmap(BucketBitmaps, key, bitmap.MergeOp{Set: true, Value: 10}).Commit(s))
	require.NoError(t, NewWriteBatch().MergeBitmap(BucketBitmaps, key, bitmap.MergeOp{Set: true, Value: 20}).Commit(s))
	require.NoError(t, NewWriteBatch().MergeBitmap(BucketBitmaps, key, bitmap.MergeOp{Set: false, Value: 10}).Commit(s))

	bm, err := s.GetBitmap(BucketBitmaps, key)
	require.NoError(t, err)
	require.Equal(t, []uint32{20}, bm.ToSlice())
}

func TestMergeBitmapEmptyClearsKey(t *testing.T) {
	s := openTestStore(t)
	key := DocumentBitmapKey(1, ids.CollectionMail)

	require.NoError(t, NewWriteBatch().MergeBitmap(BucketBitmaps, key, bitmap.MergeOp{Set: true, Value: 1}).Commit(s))
	require.NoError(t, NewWriteBatch().MergeBitmap(BucketBitmaps, key, bitmap.MergeOp{Set: false, Value: 1}).Commit(s))

	raw, err := s.Get(BucketBitmaps, key)
	require.NoError(t, err)
	require.Nil(t, raw)
}

func TestScanPrefixOrdersAscending(t *testing.T) {
	s := openTestStore(t)
	b := NewWriteBatch()
	for _, doc := range []ids.DocumentId{3, 1, 2} {
		b.Set(BucketValues, ValueKey(1, ids.CollectionMail, doc, 0), []byte{byte(doc)})
	}
	require.NoError(t, b.Commit(s))

	var seen []byte
	prefix := ValueKeyPrefix(1, ids.CollectionMail, 0)[:5] // account+collection only
	require.NoError(t, s.ScanPrefix(BucketValues, prefix, func(_, v []byte) bool {
		seen = append(seen, v[0])
		return true
	}))
	require.Equal(t, []byte{1, 2, 3}, seen)
}

func TestLockSerializesSameTuple(t *testing.T) {
	s := openTestStore(t)
	unlock := s.Lock(1, ids.CollectionMail)
	unlock()
	// A second lock for the same tuple must still be acquirable once released.
	unlock2 := s.Lock(1, ids.CollectionMail)
	unlock2()
}
