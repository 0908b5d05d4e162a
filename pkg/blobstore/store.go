package blobstore

import (
	"encoding/binary"
	"time"

	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/store"
)

var (
	bucketBlobs = store.BucketBlobs

	linkOwned     byte = 1
	linkEphemeral byte = 2
	metaSize      byte = 0
)

// ACLChecker resolves whether grantee has read access to a document
// through the ORM's ACL list, without blobstore depending on package
// orm directly.
type ACLChecker interface {
	HasReadAccess(owner ids.AccountId, collection ids.Collection, doc ids.DocumentId, grantee ids.AccountId) (bool, error)
}

// Store is the content-addressed blob layer: physical bytes live in a
// Backend, while existence metadata and links live in the KV store so
// they commit atomically alongside the document writes that create
// them.
type Store struct {
	kv      *store.Store
	backend Backend
	acl     ACLChecker
}

// New constructs a blob Store over kv/backend. acl may be nil if no
// ACL-derived access checks are needed (Forbidden then judges only
// direct links).
func New(kv *store.Store, backend Backend, acl ACLChecker) *Store {
	return &Store{kv: kv, backend: backend, acl: acl}
}

func metaKey(hash [32]byte) []byte {
	return append(append([]byte{}, hash[:]...), metaSize)
}

func ownedLinkKey(hash [32]byte, account ids.AccountId, collection ids.Collection, doc ids.DocumentId) []byte {
	key := append([]byte{}, hash[:]...)
	key = append(key, linkOwned)
	key = binary.BigEndian.AppendUint32(key, uint32(account))
	key = append(key, byte(collection))
	key = binary.BigEndian.AppendUint32(key, uint32(doc))
	return key
}

func ephemeralLinkKey(hash [32]byte, account ids.AccountId, expiry time.Time) []byte {
	key := append([]byte{}, hash[:]...)
	key = append(key, linkEphemeral)
	key = binary.BigEndian.AppendUint32(key, uint32(account))
	key = binary.BigEndian.AppendUint64(key, uint64(expiry.UnixNano()))
	return key
}

func linkPrefix(hash [32]byte) []byte {
	return append([]byte{}, hash[:]...)
}

// Put stores data under its hash, idempotently: if a blob with this
// hash and the same length already exists, Put is a no-op and reports
// created=false. A hash collision against different-length content is
// reported as DataCorruption rather than silently overwritten.
func (s *Store) Put(hash [32]byte, data []byte) (created bool, err error) {
	existing, err := s.kv.Get(bucketBlobs, metaKey(hash))
	if err != nil {
		return false, err
	}
	if existing != nil {
		existingSize := binary.BigEndian.Uint32(existing)
		if int(existingSize) != len(data) {
			return false, ids.Corrupt(hash[:], "blobstore: hash %x has length %d on disk, %d on put", hash, existingSize, len(data))
		}
		return false, nil
	}

	if err := s.backend.Put(hash, data); err != nil {
		return false, err
	}
	var sizeBuf [4]byte
	binary.BigEndian.PutUint32(sizeBuf[:], uint32(len(data)))
	b := store.NewWriteBatch()
	b.Set(bucketBlobs, metaKey(hash), sizeBuf[:])
	if err := b.Commit(s.kv); err != nil {
		return false, err
	}
	return true, nil
}

// Get returns the full blob bytes, or (nil, nil) if unknown.
func (s *Store) Get(hash [32]byte) ([]byte, error) {
	existing, err := s.kv.Get(bucketBlobs, metaKey(hash))
	if err != nil || existing == nil {
		return nil, err
	}
	return s.backend.Get(hash)
}

// GetRange returns data[start:end), or (nil, nil) if unknown.
func (s *Store) GetRange(hash [32]byte, start, end uint32) ([]byte, error) {
	existing, err := s.kv.Get(bucketBlobs, metaKey(hash))
	if err != nil || existing == nil {
		return nil, err
	}
	return s.backend.GetRange(hash, start, end)
}

// Delete physically removes a blob. Callers must only invoke this
// after RefCount has dropped to zero; Delete itself
// does not re-check, since the caller's write batch and this call are
// not atomic with each other by construction (the backend write is
// outside the KV transaction).
func (s *Store) Delete(hash [32]byte) (bool, error) {
	existing, err := s.kv.Get(bucketBlobs, metaKey(hash))
	if err != nil {
		return false, err
	}
	if existing == nil {
		return false, nil
	}
	if err := s.backend.Delete(hash); err != nil {
		return false, err
	}
	b := store.NewWriteBatch()
	b.Delete(bucketBlobs, metaKey(hash))
	return true, b.Commit(s.kv)
}

// LinkOwned stages an owned link tying hash to a document's lifetime.
func LinkOwned(b *store.WriteBatch, hash [32]byte, account ids.AccountId, collection ids.Collection, doc ids.DocumentId) {
	b.Set(bucketBlobs, ownedLinkKey(hash, account, collection, doc), nil)
}

// UnlinkOwned stages removal of an owned link.
func UnlinkOwned(b *store.WriteBatch, hash [32]byte, account ids.AccountId, collection ids.Collection, doc ids.DocumentId) {
	b.Delete(bucketBlobs, ownedLinkKey(hash, account, collection, doc))
}

// LinkEphemeral stages a TTL'd link created by an upload, independent
// of any document.
func LinkEphemeral(b *store.WriteBatch, hash [32]byte, account ids.AccountId, expiry time.Time) {
	b.Set(bucketBlobs, ephemeralLinkKey(hash, account, expiry), nil)
}

// UnlinkEphemeral stages removal of an ephemeral link.
func UnlinkEphemeral(b *store.WriteBatch, hash [32]byte, account ids.AccountId, expiry time.Time) {
	b.Delete(bucketBlobs, ephemeralLinkKey(hash, account, expiry))
}

// link is a decoded entry from the hash's link prefix scan.
type link struct {
	kind       byte
	account    ids.AccountId
	collection ids.Collection
	doc        ids.DocumentId
	expiry     time.Time
}

func (s *Store) links(hash [32]byte) ([]link, error) {
	var out []link
	prefix := linkPrefix(hash)
	err := s.kv.ScanPrefix(bucketBlobs, prefix, func(key, _ []byte) bool {
		rest := key[len(prefix):]
		if len(rest) == 0 {
			return true // the metadata key itself, not a link
		}
		switch rest[0] {
		case linkOwned:
			if len(rest) < 1+4+1+4 {
				return true
			}
			out = append(out, link{
				kind:       linkOwned,
				account:    ids.AccountId(binary.BigEndian.Uint32(rest[1:5])),
				collection: ids.Collection(rest[5]),
				doc:        ids.DocumentId(binary.BigEndian.Uint32(rest[6:10])),
			})
		case linkEphemeral:
			if len(rest) < 1+4+8 {
				return true
			}
			out = append(out, link{
				kind:    linkEphemeral,
				account: ids.AccountId(binary.BigEndian.Uint32(rest[1:5])),
				expiry:  time.Unix(0, int64(binary.BigEndian.Uint64(rest[5:13]))),
			})
		}
		return true
	})
	return out, err
}

// RefCount reports the number of live references to hash: every owned
// link plus every ephemeral link not yet past its expiry at now.
func (s *Store) RefCount(hash [32]byte, now time.Time) (int, error) {
	links, err := s.links(hash)
	if err != nil {
		return 0, err
	}
	count := 0
	for _, l := range links {
		if l.kind == linkOwned || (l.kind == linkEphemeral && l.expiry.After(now)) {
			count++
		}
	}
	return count, nil
}

// HasAccess reports whether grantee may read hash: directly via any
// link naming grantee, or transitively via read permission on an owned
// link's document, consulted through s.acl.
func (s *Store) HasAccess(hash [32]byte, grantee ids.AccountId, now time.Time) (bool, error) {
	links, err := s.links(hash)
	if err != nil {
		return false, err
	}
	for _, l := range links {
		switch l.kind {
		case linkEphemeral:
			if l.account == grantee && l.expiry.After(now) {
				return true, nil
			}
		case linkOwned:
			if l.account == grantee {
				return true, nil
			}
			if s.acl != nil {
				ok, err := s.acl.HasReadAccess(l.account, l.collection, l.doc, grantee)
				if err != nil {
					return false, err
				}
				if ok {
					return true, nil
				}
			}
		}
	}
	return false, nil
}
