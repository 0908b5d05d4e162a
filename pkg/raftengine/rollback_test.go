package raftengine

import (
	"testing"

	"github.com/coremail/engine/pkg/changelog"
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/orm"
	"github.com/coremail/engine/pkg/schema"
	"github.com/coremail/engine/pkg/store"
	"github.com/stretchr/testify/require"
)

func writeMail(t *testing.T, s *store.Store, account ids.AccountId, doc ids.DocumentId, cid ids.ChangeId, subject string) {
	t.Helper()
	mail := schema.NewMail(ids.NewJMAPId(1, doc)).
		SetThreadID(1).SetSubject(subject).SetReceivedAt(int64(cid)).SetSize(1).SetBlobHash([32]byte{byte(doc)})
	b := store.NewWriteBatch()
	_, err := orm.BuildWriteBatch(b, account, ids.CollectionMail, doc, schema.MailSchema, nil, mail.Object())
	require.NoError(t, err)
	changelog.Append(b, account, ids.CollectionMail, cid, changelog.Entry{Created: []ids.JMAPId{ids.NewJMAPId(1, doc)}})
	require.NoError(t, b.Commit(s))
}

func TestCollectMergedChangesFoldsTail(t *testing.T) {
	s := openTestStore(t)
	const account ids.AccountId = 1

	// common prefix: doc 0 at change 0
	writeMail(t, s, account, 0, 0, "committed")
	// diverged tail: doc 1 created, doc 0 updated, doc 1 deleted again
	writeMail(t, s, account, 1, 1, "diverged")
	b := store.NewWriteBatch()
	changelog.Append(b, account, ids.CollectionMail, 2, changelog.Entry{Updated: []ids.JMAPId{ids.NewJMAPId(1, 0)}})
	require.NoError(t, b.Commit(s))
	b = store.NewWriteBatch()
	changelog.Append(b, account, ids.CollectionMail, 3, changelog.Entry{Deleted: []ids.JMAPId{ids.NewJMAPId(1, 1)}})
	require.NoError(t, b.Commit(s))

	mc, err := CollectMergedChanges(s, account, ids.CollectionMail, 0)
	require.NoError(t, err)
	require.True(t, mc.Inserted.IsEmpty()) // created-then-deleted inside the tail cancels out
	require.Equal(t, []uint32{0}, mc.Updated.ToSlice())
	require.True(t, mc.Deleted.IsEmpty()) // deletion of a tail-local insert needs no leader-side undo
}

func TestRollbackRecordRoundTrip(t *testing.T) {
	s := openTestStore(t)

	mc := NewMergedChanges()
	mc.Inserted.Add(3)
	mc.Inserted.Add(7)
	mc.Updated.Add(1)
	mc.Deleted.Add(9)

	require.NoError(t, SaveRollback(s, 4, ids.CollectionMail, mc))

	loaded, err := LoadRollbacks(s)
	require.NoError(t, err)
	require.Len(t, loaded, 1)
	got := loaded[4][ids.CollectionMail]
	require.Equal(t, mc.Inserted.ToSlice(), got.Inserted.ToSlice())
	require.Equal(t, mc.Updated.ToSlice(), got.Updated.ToSlice())
	require.Equal(t, mc.Deleted.ToSlice(), got.Deleted.ToSlice())

	require.NoError(t, ClearRollback(s, 4, ids.CollectionMail))
	loaded, err = LoadRollbacks(s)
	require.NoError(t, err)
	require.Empty(t, loaded)
}

func TestRollbackDivergedDropsTailWrites(t *testing.T) {
	s := openTestStore(t)
	const account ids.AccountId = 1

	writeMail(t, s, account, 0, 0, "committed")
	writeMail(t, s, account, 1, 1, "diverged-a")
	writeMail(t, s, account, 2, 2, "diverged-b")

	mc, err := CollectMergedChanges(s, account, ids.CollectionMail, 0)
	require.NoError(t, err)
	require.Equal(t, []uint32{1, 2}, mc.Inserted.ToSlice())

	require.NoError(t, RollbackDiverged(s, nil, account, ids.CollectionMail, mc, 0))

	// diverged documents are gone, the committed one survives
	for _, doc := range []ids.DocumentId{1, 2} {
		obj, err := orm.ReadObject(s, account, ids.CollectionMail, doc)
		require.NoError(t, err)
		require.Nil(t, obj)
	}
	kept, err := orm.ReadObject(s, account, ids.CollectionMail, 0)
	require.NoError(t, err)
	require.NotNil(t, kept)

	bm, err := s.GetBitmap(store.BucketBitmaps, store.DocumentBitmapKey(account, ids.CollectionMail))
	require.NoError(t, err)
	require.Equal(t, []uint32{0}, bm.ToSlice())

	// the change log is truncated back to the match point
	head, err := changelog.Head(s, account, ids.CollectionMail)
	require.NoError(t, err)
	require.Equal(t, ids.ChangeId(0), head)
}

func TestRollbackDivergedWholeLog(t *testing.T) {
	s := openTestStore(t)
	const account ids.AccountId = 2

	writeMail(t, s, account, 0, 0, "never-committed")

	mc, err := CollectMergedChanges(s, account, ids.CollectionMail, ids.NoChangeId)
	require.NoError(t, err)
	require.Equal(t, []uint32{0}, mc.Inserted.ToSlice())

	require.NoError(t, RollbackDiverged(s, nil, account, ids.CollectionMail, mc, ids.NoChangeId))

	head, err := changelog.Head(s, account, ids.CollectionMail)
	require.NoError(t, err)
	require.Equal(t, ids.ChangeId(ids.NoChangeId), head)

	bm, err := s.GetBitmap(store.BucketBitmaps, store.DocumentBitmapKey(account, ids.CollectionMail))
	require.NoError(t, err)
	require.True(t, bm.IsEmpty())
}
