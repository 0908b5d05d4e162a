package changelog

import (
	"testing"

	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/store"
	"github.com/stretchr/testify/require"
)

func appendEntry(t *testing.T, s *store.Store, account ids.AccountId, collection ids.Collection, cid ids.ChangeId, e Entry) {
	t.Helper()
	b := store.NewWriteBatch()
	Append(b, account, collection, cid, e)
	require.NoError(t, b.Commit(s))
}

func TestCompactCollapsesRangeIntoSnapshot(t *testing.T) {
	s := openTestStore(t)
	const account, collection = 1, ids.CollectionMail

	appendEntry(t, s, account, collection, 0, Entry{Created: []ids.JMAPId{10}})
	appendEntry(t, s, account, collection, 1, Entry{Created: []ids.JMAPId{11}})
	appendEntry(t, s, account, collection, 2, Entry{Updated: []ids.JMAPId{10}})
	appendEntry(t, s, account, collection, 3, Entry{Deleted: []ids.JMAPId{11}})
	appendEntry(t, s, account, collection, 4, Entry{Created: []ids.JMAPId{12}})

	collapsed, err := Compact(s, account, collection, 3)
	require.NoError(t, err)
	require.Equal(t, 4, collapsed)

	// a client syncing from Initial sees the folded state: 10 created
	// (its later update folded in), 11 gone entirely, 12 untouched
	result, err := Query(s, account, collection, ids.Initial(), 0)
	require.NoError(t, err)
	require.Equal(t, []ids.JMAPId{10}, result.Created[:1])
	require.Contains(t, result.Created, ids.JMAPId(12))
	require.Empty(t, result.Updated)
	require.Empty(t, result.Deleted)
	require.Equal(t, ids.Exact(4), result.NewState)

	// only the snapshot entry and the post-horizon entry remain
	head, err := Head(s, account, collection)
	require.NoError(t, err)
	require.Equal(t, ids.ChangeId(4), head)

	count := 0
	require.NoError(t, s.ScanPrefix(store.BucketLogs, store.ChangeLogPrefix(account, collection), func(_, _ []byte) bool {
		count++
		return true
	}))
	require.Equal(t, 2, count)
}

func TestCompactDropsCreatedThenDeletedIds(t *testing.T) {
	s := openTestStore(t)
	const account, collection = 1, ids.CollectionMailbox

	appendEntry(t, s, account, collection, 0, Entry{Created: []ids.JMAPId{5}})
	appendEntry(t, s, account, collection, 1, Entry{Updated: []ids.JMAPId{5}})
	appendEntry(t, s, account, collection, 2, Entry{Deleted: []ids.JMAPId{5}})

	_, err := Compact(s, account, collection, 2)
	require.NoError(t, err)

	result, err := Query(s, account, collection, ids.Initial(), 0)
	require.NoError(t, err)
	require.Empty(t, result.Created)
	require.Empty(t, result.Updated)
	require.Empty(t, result.Deleted) // created-then-deleted inside the range vanishes
}

func TestCompactSingleEntryIsNoOp(t *testing.T) {
	s := openTestStore(t)
	const account, collection = 2, ids.CollectionMail

	appendEntry(t, s, account, collection, 0, Entry{Created: []ids.JMAPId{1}})
	collapsed, err := Compact(s, account, collection, 0)
	require.NoError(t, err)
	require.Zero(t, collapsed)
}
