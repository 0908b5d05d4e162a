package orm

import (
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/store"
)

// PermissionRead is the low bit of an ACL grant mask: the grantee may
// read the document (and, transitively, any blob it owns).
const PermissionRead uint32 = 1 << 0

// ACLStore reads the ACL grants diffACL stages, satisfying any
// package's HasReadAccess-shaped dependency (package blobstore in
// particular) without that package importing orm directly.
type ACLStore struct {
	kv *store.Store
}

// NewACLStore wraps kv for ACL point lookups.
func NewACLStore(kv *store.Store) *ACLStore {
	return &ACLStore{kv: kv}
}

// HasReadAccess reports whether grantee holds PermissionRead on
// doc. A missing entry is "no access", not an error.
func (a *ACLStore) HasReadAccess(owner ids.AccountId, collection ids.Collection, doc ids.DocumentId, grantee ids.AccountId) (bool, error) {
	raw, err := a.kv.Get(store.BucketValues, store.ACLKey(owner, collection, doc, grantee))
	if err != nil {
		return false, err
	}
	if len(raw) != 4 {
		return false, nil
	}
	mask := uint32(raw[0])<<24 | uint32(raw[1])<<16 | uint32(raw[2])<<8 | uint32(raw[3])
	return mask&PermissionRead != 0, nil
}
