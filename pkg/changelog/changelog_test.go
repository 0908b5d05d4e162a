package changelog

import (
	"testing"

	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/store"
	"github.com/stretchr/testify/require"
)

func openTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.Open(t.TempDir())
	require.NoError(t, err)
	t.Cleanup(func() { require.NoError(t, s.Close()) })
	return s
}

func TestQueryFromInitialWithNoHistory(t *testing.T) {
	s := openTestStore(t)
	res, err := Query(s, 1, ids.CollectionMail, ids.Initial(), 0)
	require.NoError(t, err)
	require.Empty(t, res.Created)
	require.Equal(t, ids.Initial(), res.NewState)
}

func TestAppendAndQueryCreated(t *testing.T) {
	s := openTestStore(t)
	b := store.NewWriteBatch()
	Append(b, 1, ids.CollectionMail, 0, Entry{Created: []ids.JMAPId{ids.NewJMAPId(0, 1)}})
	require.NoError(t, b.Commit(s))

	res, err := Query(s, 1, ids.CollectionMail, ids.Initial(), 0)
	require.NoError(t, err)
	require.Equal(t, []ids.JMAPId{ids.NewJMAPId(0, 1)}, res.Created)
	require.Equal(t, ids.Exact(0), res.NewState)
}

func TestFoldCreatedThenUpdatedStaysCreated(t *testing.T) {
	s := openTestStore(t)
	id := ids.NewJMAPId(0, 5)

	b1 := store.NewWriteBatch()
	Append(b1, 1, ids.CollectionMail, 0, Entry{Created: []ids.JMAPId{id}})
	require.NoError(t, b1.Commit(s))

	b2 := store.NewWriteBatch()
	Append(b2, 1, ids.CollectionMail, 1, Entry{Updated: []ids.JMAPId{id}})
	require.NoError(t, b2.Commit(s))

	res, err := Query(s, 1, ids.CollectionMail, ids.Initial(), 0)
	require.NoError(t, err)
	require.Equal(t, []ids.JMAPId{id}, res.Created)
	require.Empty(t, res.Updated)
}

func TestFoldCreatedThenDeletedDropsId(t *testing.T) {
	s := openTestStore(t)
	id := ids.NewJMAPId(0, 6)

	b1 := store.NewWriteBatch()
	Append(b1, 1, ids.CollectionMail, 0, Entry{Created: []ids.JMAPId{id}})
	require.NoError(t, b1.Commit(s))

	b2 := store.NewWriteBatch()
	Append(b2, 1, ids.CollectionMail, 1, Entry{Deleted: []ids.JMAPId{id}})
	require.NoError(t, b2.Commit(s))

	res, err := Query(s, 1, ids.CollectionMail, ids.Initial(), 0)
	require.NoError(t, err)
	require.Empty(t, res.Created)
	require.Empty(t, res.Deleted, "created-then-deleted within the queried window drops the id entirely")
}

func TestFoldUpdatedThenDeletedKeepsOnlyDeleted(t *testing.T) {
	s := openTestStore(t)
	id := ids.NewJMAPId(0, 7)

	b0 := store.NewWriteBatch()
	Append(b0, 1, ids.CollectionMail, 0, Entry{Created: []ids.JMAPId{id}})
	require.NoError(t, b0.Commit(s))

	// Establish a baseline state after creation so the next query window
	// only covers update+delete.
	head, err := Head(s, 1, ids.CollectionMail)
	require.NoError(t, err)
	baseline := ids.Exact(head)

	b1 := store.NewWriteBatch()
	Append(b1, 1, ids.CollectionMail, 1, Entry{Updated: []ids.JMAPId{id}})
	require.NoError(t, b1.Commit(s))

	b2 := store.NewWriteBatch()
	Append(b2, 1, ids.CollectionMail, 2, Entry{Deleted: []ids.JMAPId{id}})
	require.NoError(t, b2.Commit(s))

	res, err := Query(s, 1, ids.CollectionMail, baseline, 0)
	require.NoError(t, err)
	require.Empty(t, res.Updated)
	require.Equal(t, []ids.JMAPId{id}, res.Deleted)
}

func TestHeadTracksLastAppend(t *testing.T) {
	s := openTestStore(t)
	head, err := Head(s, 1, ids.CollectionMail)
	require.NoError(t, err)
	require.Equal(t, ids.ChangeId(ids.NoChangeId), head)

	b := store.NewWriteBatch()
	Append(b, 1, ids.CollectionMail, 3, Entry{Created: []ids.JMAPId{ids.NewJMAPId(0, 1)}})
	require.NoError(t, b.Commit(s))

	head, err = Head(s, 1, ids.CollectionMail)
	require.NoError(t, err)
	require.Equal(t, ids.ChangeId(3), head)
}

func TestQueryRespectsMaxChangesAndReturnsIntermediateState(t *testing.T) {
	s := openTestStore(t)
	for i := ids.ChangeId(0); i < 5; i++ {
		b := store.NewWriteBatch()
		Append(b, 1, ids.CollectionMail, i, Entry{Created: []ids.JMAPId{ids.NewJMAPId(0, ids.DocumentId(i))}})
		require.NoError(t, b.Commit(s))
	}

	res, err := Query(s, 1, ids.CollectionMail, ids.Initial(), 2)
	require.NoError(t, err)
	require.Len(t, res.Created, 2)
	require.True(t, res.HasMore)
	require.Equal(t, ids.StateIntermediate, res.NewState.Kind)
}
