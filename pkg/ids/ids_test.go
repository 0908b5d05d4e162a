package ids

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestJMAPIdRoundTrip(t *testing.T) {
	cases := []JMAPId{
		0,
		NewJMAPId(0, 42),
		NewJMAPId(7, 1234),
		JMAPId(^uint64(0)),
	}
	for _, id := range cases {
		s := id.String()
		got, err := ParseJMAPId(s)
		require.NoError(t, err)
		assert.Equal(t, id, got)
	}
}

func TestJMAPIdSingletonAlias(t *testing.T) {
	got, err := ParseJMAPId("singleton")
	require.NoError(t, err)
	assert.Equal(t, JMAPId(0), got)
	assert.Equal(t, "singleton", JMAPId(0).String())
}

func TestJMAPIdPrefixDocument(t *testing.T) {
	id := NewJMAPId(99, 1001)
	assert.Equal(t, uint32(99), id.Prefix())
	assert.Equal(t, DocumentId(1001), id.Document())
}

func TestBlobIdRoundTrip(t *testing.T) {
	var hash [HashSize]byte
	for i := range hash {
		hash[i] = byte(i)
	}
	direct := NewBlobId(hash, 4096)
	s := direct.String()
	got, err := ParseBlobId(s)
	require.NoError(t, err)
	assert.Equal(t, direct, got)
	assert.Nil(t, got.Inner)

	inner := direct.WithPart(3)
	s2 := inner.String()
	got2, err := ParseBlobId(s2)
	require.NoError(t, err)
	require.NotNil(t, got2.Inner)
	assert.Equal(t, uint32(3), *got2.Inner)
	assert.Equal(t, hash, got2.Hash)
}

func TestStateRoundTrip(t *testing.T) {
	states := []State{
		Initial(),
		Exact(12345),
		Intermediate(999, 7),
	}
	for _, st := range states {
		s := st.String()
		got, err := ParseState(s)
		require.NoError(t, err)
		assert.Equal(t, st, got)
	}
}

func TestCollectionParse(t *testing.T) {
	c, ok := ParseCollection("Mailbox")
	require.True(t, ok)
	assert.Equal(t, CollectionMailbox, c)

	_, ok = ParseCollection("None")
	assert.False(t, ok)

	_, ok = ParseCollection("bogus")
	assert.False(t, ok)
}

func TestTypeStateBitmap(t *testing.T) {
	var b TypeStateBitmap
	b = b.Set(TypeStateEmail).Set(TypeStateMailbox)
	assert.True(t, b.Has(TypeStateEmail))
	assert.True(t, b.Has(TypeStateMailbox))
	assert.False(t, b.Has(TypeStateThread))

	var other TypeStateBitmap
	other = other.Set(TypeStateThread)
	assert.False(t, b.Intersects(other))
	other = other.Set(TypeStateEmail)
	assert.True(t, b.Intersects(other))
}
