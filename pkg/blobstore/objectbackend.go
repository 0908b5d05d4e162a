package blobstore

import "github.com/coremail/engine/pkg/ids"

// ObjectBackend is the second of the two interchangeable blob
// backends. It ships as a stub satisfying Backend rather than a
// client against any particular SDK — a deployment picking this
// backend supplies a real implementation (e.g. an S3-compatible SDK)
// built against this same interface.
type ObjectBackend struct{}

// NewObjectBackend returns a stub ObjectBackend. Every method reports
// ServerUnavailable; this backend exists so callers can compile and
// wire configuration against it ahead of a concrete SDK being chosen.
func NewObjectBackend() *ObjectBackend { return &ObjectBackend{} }

func (o *ObjectBackend) Put(hash [32]byte, data []byte) error {
	return ids.New(ids.ServerUnavailable, "blobstore: object-storage backend not configured")
}

func (o *ObjectBackend) Get(hash [32]byte) ([]byte, error) {
	return nil, ids.New(ids.ServerUnavailable, "blobstore: object-storage backend not configured")
}

func (o *ObjectBackend) GetRange(hash [32]byte, start, end uint32) ([]byte, error) {
	return nil, ids.New(ids.ServerUnavailable, "blobstore: object-storage backend not configured")
}

func (o *ObjectBackend) Delete(hash [32]byte) error {
	return ids.New(ids.ServerUnavailable, "blobstore: object-storage backend not configured")
}

func (o *ObjectBackend) Exists(hash [32]byte) (bool, error) {
	return false, ids.New(ids.ServerUnavailable, "blobstore: object-storage backend not configured")
}
