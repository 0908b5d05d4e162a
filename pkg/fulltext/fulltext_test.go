package fulltext

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

func TestTokenize(t *testing.T) {
	tests := []struct {
		name string
		text string
		want []string
	}{
		{"case folds and splits", "Hello, World!", []string{"hello", "world"}},
		{"drops single chars", "a big cat", []string{"big", "cat"}},
		{"dedupes", "go go go", []string{"go"}},
		{"digits survive", "rfc 8620", []string{"8620", "rfc"}},
		{"empty", "  .,! ", nil},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			require.Equal(t, tc.want, Tokenize(tc.text))
		})
	}
}

func TestIndexThenSearch(t *testing.T) {
	s := openTestStore(t)

	b := store.NewWriteBatch()
	Index(b, 1, ids.CollectionMail, 4, 10, "quarterly report draft")
	Index(b, 1, ids.CollectionMail, 4, 11, "quarterly numbers final")
	require.NoError(t, b.Commit(s))

	both, err := Search(s, 1, ids.CollectionMail, 4, "quarterly")
	require.NoError(t, err)
	require.Equal(t, []uint32{10, 11}, both.ToSlice())

	one, err := Search(s, 1, ids.CollectionMail, 4, "Quarterly REPORT")
	require.NoError(t, err)
	require.Equal(t, []uint32{10}, one.ToSlice())

	none, err := Search(s, 1, ids.CollectionMail, 4, "quarterly missing")
	require.NoError(t, err)
	require.True(t, none.IsEmpty())
}

func TestUnindexRemovesPostings(t *testing.T) {
	s := openTestStore(t)

	b1 := store.NewWriteBatch()
	Index(b1, 1, ids.CollectionMail, 4, 10, "transient subject")
	require.NoError(t, b1.Commit(s))

	b2 := store.NewWriteBatch()
	Unindex(b2, 1, ids.CollectionMail, 4, 10, "transient subject")
	require.NoError(t, b2.Commit(s))

	got, err := Search(s, 1, ids.CollectionMail, 4, "transient")
	require.NoError(t, err)
	require.True(t, got.IsEmpty())
}

func TestSearchEmptyQueryMatchesNothing(t *testing.T) {
	s := openTestStore(t)
	got, err := Search(s, 1, ids.CollectionMail, 4, " . ")
	require.NoError(t, err)
	require.True(t, got.IsEmpty())
}
