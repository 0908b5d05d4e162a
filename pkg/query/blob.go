package query

import (
	"time"

	"github.com/coremail/engine/pkg/blobstore"
	"github.com/coremail/engine/pkg/ids"
)

// GetBlob returns the full bytes of a blob by hash, delegating to a
// blobstore.Store. Completes the engine's query surface without
// making package query depend on blobstore for anything but these
// three blob calls (GetBlob, BlobRange, HasBlobAccess).
func GetBlob(bs *blobstore.Store, hash [32]byte) ([]byte, error) {
	return bs.Get(hash)
}

// BlobRange returns data[start:end) of a blob by hash.
func BlobRange(bs *blobstore.Store, hash [32]byte, start, end uint32) ([]byte, error) {
	return bs.GetRange(hash, start, end)
}

// HasBlobAccess reports whether grantee may read hash.
func HasBlobAccess(bs *blobstore.Store, hash [32]byte, grantee ids.AccountId) (bool, error) {
	return bs.HasAccess(hash, grantee, time.Now())
}
