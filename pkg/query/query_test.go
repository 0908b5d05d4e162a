package query

import (
	"testing"

	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/orm"
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

const fieldSize orm.FieldId = 1

func insertDoc(t *testing.T, s *store.Store, doc ids.DocumentId, size int64) {
	t.Helper()
	schema := orm.Schema{fieldSize: {Indexed: true}}
	obj := orm.New().SetNumber(fieldSize, size)
	b := store.NewWriteBatch()
	_, err := orm.BuildWriteBatch(b, 1, ids.CollectionMail, doc, schema, nil, obj)
	require.NoError(t, err)
	require.NoError(t, b.Commit(s))
}

func TestFilterEqualCondition(t *testing.T) {
	s := openTestStore(t)
	insertDoc(t, s, 1, 100)
	insertDoc(t, s, 2, 200)

	n := int64(100)
	bm, err := Filter(s, 1, ids.CollectionMail, Cond(uint8(fieldSize), Equal, store.SortableValue{Number: &n}))
	require.NoError(t, err)
	require.Equal(t, []uint32{1}, bm.ToSlice())
}

func TestFilterGreaterThan(t *testing.T) {
	s := openTestStore(t)
	insertDoc(t, s, 1, 100)
	insertDoc(t, s, 2, 200)
	insertDoc(t, s, 3, 300)

	n := int64(100)
	bm, err := Filter(s, 1, ids.CollectionMail, Cond(uint8(fieldSize), GreaterThan, store.SortableValue{Number: &n}))
	require.NoError(t, err)
	require.Equal(t, []uint32{2, 3}, bm.ToSlice())
}

func TestFilterAndOr(t *testing.T) {
	s := openTestStore(t)
	insertDoc(t, s, 1, 100)
	insertDoc(t, s, 2, 200)
	insertDoc(t, s, 3, 300)

	n100 := int64(100)
	n300 := int64(300)
	bm, err := Filter(s, 1, ids.CollectionMail, Or(
		Cond(uint8(fieldSize), Equal, store.SortableValue{Number: &n100}),
		Cond(uint8(fieldSize), Equal, store.SortableValue{Number: &n300}),
	))
	require.NoError(t, err)
	require.Equal(t, []uint32{1, 3}, bm.ToSlice())
}

func TestFilterNotComplementsAgainstUniverse(t *testing.T) {
	s := openTestStore(t)
	insertDoc(t, s, 1, 100)
	insertDoc(t, s, 2, 200)

	n100 := int64(100)
	bm, err := Filter(s, 1, ids.CollectionMail, Not(Cond(uint8(fieldSize), Equal, store.SortableValue{Number: &n100})))
	require.NoError(t, err)
	require.Equal(t, []uint32{2}, bm.ToSlice())
}

func TestSortDescendingByField(t *testing.T) {
	s := openTestStore(t)
	insertDoc(t, s, 1, 100)
	insertDoc(t, s, 2, 300)
	insertDoc(t, s, 3, 200)

	docs, err := GetDocumentIds(s, 1, ids.CollectionMail)
	require.NoError(t, err)

	ordered, err := Sort(s, 1, ids.CollectionMail, docs, []Comparator{{FieldID: uint8(fieldSize), Descending: true}})
	require.NoError(t, err)
	require.Equal(t, []ids.DocumentId{2, 3, 1}, ordered)
}

func TestQueryStoreAppliesMapper(t *testing.T) {
	s := openTestStore(t)
	insertDoc(t, s, 1, 100)
	insertDoc(t, s, 2, 200)

	universe, err := GetDocumentIds(s, 1, ids.CollectionMail)
	require.NoError(t, err)

	out, err := QueryStore(s, 1, ids.CollectionMail, Bitmap(universe), nil, func(doc ids.DocumentId) ids.JMAPId {
		return ids.NewJMAPId(0, doc)
	})
	require.NoError(t, err)
	require.Equal(t, []ids.JMAPId{ids.NewJMAPId(0, 1), ids.NewJMAPId(0, 2)}, out)
}

func TestFilterTextResolvesAgainstTermIndex(t *testing.T) {
	s := openTestStore(t)

	const fieldSubject orm.FieldId = 2
	schema := orm.Schema{fieldSubject: {FullText: true}}
	for doc, subject := range map[ids.DocumentId]string{
		1: "quarterly budget review",
		2: "weekly budget sync",
		3: "holiday party",
	} {
		obj := orm.New().SetText(fieldSubject, subject)
		b := store.NewWriteBatch()
		_, err := orm.BuildWriteBatch(b, 1, ids.CollectionMail, doc, schema, nil, obj)
		require.NoError(t, err)
		require.NoError(t, b.Commit(s))
	}

	bm, err := Filter(s, 1, ids.CollectionMail, Text(uint8(fieldSubject), "budget"))
	require.NoError(t, err)
	require.Equal(t, []uint32{1, 2}, bm.ToSlice())

	bm, err = Filter(s, 1, ids.CollectionMail, And(
		Text(uint8(fieldSubject), "budget"),
		Text(uint8(fieldSubject), "weekly"),
	))
	require.NoError(t, err)
	require.Equal(t, []uint32{2}, bm.ToSlice())
}
