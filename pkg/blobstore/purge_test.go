package blobstore

import (
	"crypto/sha256"
	"testing"
	"time"

	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/store"
	"github.com/stretchr/testify/require"
)

func TestPurgeReclaimsExpiredEphemeralAndDeletesOrphans(t *testing.T) {
	kv := openTestStore(t)
	backend, err := NewLocalBackend(t.TempDir(), 2)
	require.NoError(t, err)
	bs := New(kv, backend, nil)

	now := time.Now()

	// orphan: only an expired ephemeral link
	orphan := sha256.Sum256([]byte("orphan"))
	_, err = bs.Put(orphan, []byte("orphan"))
	require.NoError(t, err)
	b := store.NewWriteBatch()
	LinkEphemeral(b, orphan, 1, now.Add(-time.Hour))
	require.NoError(t, b.Commit(kv))

	// survivor: an owned link keeps it alive past its expired upload link
	kept := sha256.Sum256([]byte("kept"))
	_, err = bs.Put(kept, []byte("kept"))
	require.NoError(t, err)
	b = store.NewWriteBatch()
	LinkEphemeral(b, kept, 1, now.Add(-time.Hour))
	LinkOwned(b, kept, 1, ids.CollectionMail, 7)
	require.NoError(t, b.Commit(kv))

	// fresh: ephemeral link still inside its TTL
	fresh := sha256.Sum256([]byte("fresh"))
	_, err = bs.Put(fresh, []byte("fresh"))
	require.NoError(t, err)
	b = store.NewWriteBatch()
	LinkEphemeral(b, fresh, 1, now.Add(time.Hour))
	require.NoError(t, b.Commit(kv))

	removed, err := bs.Purge(now)
	require.NoError(t, err)
	require.Equal(t, 1, removed)

	gone, err := bs.Get(orphan)
	require.NoError(t, err)
	require.Nil(t, gone)

	still, err := bs.Get(kept)
	require.NoError(t, err)
	require.Equal(t, []byte("kept"), still)

	data, err := bs.Get(fresh)
	require.NoError(t, err)
	require.Equal(t, []byte("fresh"), data)

	// the survivor's expired upload link is gone even though the blob stays
	refs, err := bs.RefCount(kept, now)
	require.NoError(t, err)
	require.Equal(t, 1, refs)
}

func TestPurgeWithNothingExpiredIsNoOp(t *testing.T) {
	kv := openTestStore(t)
	backend, err := NewLocalBackend(t.TempDir(), 2)
	require.NoError(t, err)
	bs := New(kv, backend, nil)

	hash := sha256.Sum256([]byte("live"))
	_, err = bs.Put(hash, []byte("live"))
	require.NoError(t, err)
	b := store.NewWriteBatch()
	LinkOwned(b, hash, 1, ids.CollectionMail, 1)
	require.NoError(t, b.Commit(kv))

	removed, err := bs.Purge(time.Now())
	require.NoError(t, err)
	require.Zero(t, removed)
}
