package blobstore

// Backend stores and retrieves physical blob bytes by content hash.
// The choice of backend is fixed at initialisation. LocalBackend is
// the working implementation; ObjectBackend is a stub whose every
// method fails with ServerUnavailable, so it stores and returns nothing.
type Backend interface {
	Put(hash [32]byte, data []byte) error
	Get(hash [32]byte) ([]byte, error)
	GetRange(hash [32]byte, start, end uint32) ([]byte, error)
	Delete(hash [32]byte) error
	Exists(hash [32]byte) (bool, error)
}
