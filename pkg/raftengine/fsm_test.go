package raftengine

import (
	"testing"
	"time"

	"github.com/coremail/engine/pkg/blobstore"
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/schema"
	"github.com/coremail/engine/pkg/store"
	"github.com/hashicorp/raft"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func testMailOrm(t *testing.T, subject string, receivedAt int64) []byte {
	t.Helper()
	mail := schema.NewMail(ids.NewJMAPId(1, 5)).
		SetThreadID(1).
		SetSubject(subject).
		SetReceivedAt(receivedAt).
		SetSize(100).
		SetBlobHash([32]byte{0xAB})
	return mail.Object().Serialize()
}

func TestFSMApplyDocumentInsertWritesValueIndexAndMembership(t *testing.T) {
	s := openTestStore(t)
	fsm := NewFSM(s, nil)

	updates := []Update{
		{Kind: UpdateBegin, Account: 1, Collection: ids.CollectionMail},
		{
			Kind:   UpdateDocument,
			Insert: true,
			JmapID: ids.NewJMAPId(1, 5),
			Orm:    testMailOrm(t, "hello world", 10001),
		},
	}

	resp := fsm.Apply(&raft.Log{Data: EncodeStream(updates)})
	require.Nil(t, resp)

	value, err := s.Get(store.BucketValues, store.ValueKey(1, ids.CollectionMail, 5, uint8(schema.MailFieldSubject)))
	require.NoError(t, err)
	require.Equal(t, []byte("hello world"), value)

	received := int64(10001)
	idx, err := s.Get(store.BucketIndexes, store.IndexKey(1, ids.CollectionMail, uint8(schema.MailFieldReceivedAt), store.SortableValue{Number: &received}, 5))
	require.NoError(t, err)
	require.NotNil(t, idx)

	bm, err := s.GetBitmap(store.BucketBitmaps, store.DocumentBitmapKey(1, ids.CollectionMail))
	require.NoError(t, err)
	require.Equal(t, []uint32{5}, bm.ToSlice())

	// the owned-blob link derived from the serialized ORM must exist
	backend, err := blobstore.NewLocalBackend(t.TempDir(), 2)
	require.NoError(t, err)
	refs, err := blobstore.New(s, backend, nil).RefCount([32]byte{0xAB}, time.Now())
	require.NoError(t, err)
	require.Equal(t, 1, refs)
}

func TestFSMApplyDeleteRemovesValueIndexAndMembership(t *testing.T) {
	s := openTestStore(t)
	fsm := NewFSM(s, nil)

	insert := []Update{
		{Kind: UpdateBegin, Account: 1, Collection: ids.CollectionMail},
		{Kind: UpdateDocument, Insert: true, JmapID: ids.NewJMAPId(1, 5), Orm: testMailOrm(t, "subject", 9)},
	}
	require.Nil(t, fsm.Apply(&raft.Log{Data: EncodeStream(insert)}))

	del := []Update{
		{Kind: UpdateBegin, Account: 1, Collection: ids.CollectionMail},
		{Kind: UpdateDelete, DocumentID: 5},
	}
	require.Nil(t, fsm.Apply(&raft.Log{Data: EncodeStream(del)}))

	value, err := s.Get(store.BucketValues, store.ValueKey(1, ids.CollectionMail, 5, uint8(schema.MailFieldSubject)))
	require.NoError(t, err)
	require.Nil(t, value)

	received := int64(9)
	idx, err := s.Get(store.BucketIndexes, store.IndexKey(1, ids.CollectionMail, uint8(schema.MailFieldReceivedAt), store.SortableValue{Number: &received}, 5))
	require.NoError(t, err)
	require.Nil(t, idx)

	bm, err := s.GetBitmap(store.BucketBitmaps, store.DocumentBitmapKey(1, ids.CollectionMail))
	require.NoError(t, err)
	require.True(t, bm.IsEmpty())
}

func TestFSMApplyDeleteOfAbsentDocumentIsIdempotent(t *testing.T) {
	s := openTestStore(t)
	fsm := NewFSM(s, nil)

	del := []Update{
		{Kind: UpdateBegin, Account: 1, Collection: ids.CollectionMail},
		{Kind: UpdateDelete, DocumentID: 42},
	}
	require.Nil(t, fsm.Apply(&raft.Log{Data: EncodeStream(del)}))
}

func TestFSMApplyChangeAppendsChangeLogEntry(t *testing.T) {
	s := openTestStore(t)
	fsm := NewFSM(s, nil)

	updates := []Update{
		{Kind: UpdateBegin, Account: 2, Collection: ids.CollectionMailbox},
		{Kind: UpdateChange, ChangeID: 1, ChangeBytes: []byte("fake-entry")},
	}
	require.Nil(t, fsm.Apply(&raft.Log{Data: EncodeStream(updates)}))

	got, err := s.Get(store.BucketLogs, store.ChangeLogKey(2, ids.CollectionMailbox, 1))
	require.NoError(t, err)
	require.Equal(t, []byte("fake-entry"), got)
}

func TestFSMApplyRejectsBlobWithoutBlobStore(t *testing.T) {
	s := openTestStore(t)
	fsm := NewFSM(s, nil)

	updates := []Update{{Kind: UpdateBlob, BlobHash: [32]byte{1}, BlobData: []byte("x")}}
	resp := fsm.Apply(&raft.Log{Data: EncodeStream(updates)})
	require.NotNil(t, resp)
	require.Implements(t, (*error)(nil), resp)
}

// dumpColumnFamilies flattens every column family into a comparable map.
func dumpColumnFamilies(t *testing.T, s *store.Store) map[string][]byte {
	t.Helper()
	out := make(map[string][]byte)
	for _, cf := range [][]byte{store.BucketValues, store.BucketIndexes, store.BucketBitmaps, store.BucketLogs, store.BucketBlobs} {
		require.NoError(t, s.ScanPrefix(cf, nil, func(key, value []byte) bool {
			out[string(cf)+"/"+string(key)] = append([]byte(nil), value...)
			return true
		}))
	}
	return out
}

func TestFSMReplayIsBitIdenticalAcrossStores(t *testing.T) {
	stream := EncodeStream([]Update{
		{Kind: UpdateBegin, Account: 1, Collection: ids.CollectionMail},
		{Kind: UpdateDocument, Insert: true, JmapID: ids.NewJMAPId(1, 0), Orm: testMailOrm(t, "first", 1)},
		{Kind: UpdateChange, ChangeID: 0, ChangeBytes: []byte("entry-0")},
	})

	s1 := openTestStore(t)
	s2 := openTestStore(t)
	require.Nil(t, NewFSM(s1, nil).Apply(&raft.Log{Data: stream}))
	require.Nil(t, NewFSM(s2, nil).Apply(&raft.Log{Data: stream}))

	require.Equal(t, dumpColumnFamilies(t, s1), dumpColumnFamilies(t, s2))
}

func TestFSMSnapshotRestoreRoundTrip(t *testing.T) {
	s1 := openTestStore(t)
	fsm1 := NewFSM(s1, nil)

	updates := []Update{
		{Kind: UpdateBegin, Account: 1, Collection: ids.CollectionMail},
		{Kind: UpdateDocument, Insert: true, JmapID: ids.NewJMAPId(1, 1), Orm: testMailOrm(t, "snap", 3)},
	}
	require.Nil(t, fsm1.Apply(&raft.Log{Data: EncodeStream(updates)}))

	snap, err := fsm1.Snapshot()
	require.NoError(t, err)

	sink := newFakeSnapshotSink()
	require.NoError(t, snap.(*fsmSnapshot).Persist(sink))

	// the restoring store carries a stale key the snapshot must erase
	s2 := openTestStore(t)
	stale := store.NewWriteBatch()
	stale.Set(store.BucketValues, []byte("stale-key"), []byte("stale"))
	require.NoError(t, stale.Commit(s2))

	fsm2 := NewFSM(s2, nil)
	require.NoError(t, fsm2.Restore(sink.reader()))

	gone, err := s2.Get(store.BucketValues, []byte("stale-key"))
	require.NoError(t, err)
	require.Nil(t, gone)

	require.Equal(t, dumpColumnFamilies(t, s1), dumpColumnFamilies(t, s2))
}
