package store

import (
	"encoding/binary"
	"strings"

	"github.com/coremail/engine/pkg/ids"
)

// Column family bucket names. These five buckets are the entirety of
// the on-disk layout; every key below names which bucket it lives in.
var (
	BucketValues  = []byte("values")
	BucketIndexes = []byte("indexes")
	BucketBitmaps = []byte("bitmaps")
	BucketLogs    = []byte("logs")
	BucketBlobs   = []byte("blobs")

	raftLogPrefix = []byte("raft")
)

func putU32(buf []byte, v uint32) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], v)
	return append(buf, tmp[:]...)
}

func putU64(buf []byte, v uint64) []byte {
	var tmp [8]byte
	binary.BigEndian.PutUint64(tmp[:], v)
	return append(buf, tmp[:]...)
}

// ValueKey encodes an ORM/document value key:
// ACCOUNT ‖ COLLECTION ‖ DOCUMENT_ID ‖ FIELD_ID.
func ValueKey(account ids.AccountId, collection ids.Collection, doc ids.DocumentId, field uint8) []byte {
	key := make([]byte, 0, 4+1+4+1)
	key = putU32(key, uint32(account))
	key = append(key, byte(collection))
	key = putU32(key, uint32(doc))
	key = append(key, field)
	return key
}

// ValueKeyPrefix encodes the ACCOUNT‖COLLECTION‖DOCUMENT_ID prefix shared
// by every field of a single document, for range scans and deletes.
func ValueKeyPrefix(account ids.AccountId, collection ids.Collection, doc ids.DocumentId) []byte {
	key := make([]byte, 0, 4+1+4)
	key = putU32(key, uint32(account))
	key = append(key, byte(collection))
	key = putU32(key, uint32(doc))
	return key
}

// aclField is a field id no schema assigns (schemas number fields from
// 1), reserving it for ACL entries stored alongside a document's
// regular values in BucketValues.
const aclField = 0xFF

// ACLKey encodes one grantee's permission mask for a document:
// ACCOUNT ‖ COLLECTION ‖ DOCUMENT_ID ‖ 0xFF ‖ GRANTEE_ACCOUNT.
func ACLKey(account ids.AccountId, collection ids.Collection, doc ids.DocumentId, grantee ids.AccountId) []byte {
	key := ValueKey(account, collection, doc, aclField)
	return putU32(key, uint32(grantee))
}

// ACLKeyPrefix encodes the prefix shared by every grantee entry of one
// document's ACL, for a full-ACL scan.
func ACLKeyPrefix(account ids.AccountId, collection ids.Collection, doc ids.DocumentId) []byte {
	return ValueKey(account, collection, doc, aclField)
}

// SortableValue renders a typed comparison value into its sortable byte
// form: big-endian for numbers, length-prefixed case-folded bytes for
// text, and a single byte for booleans.
type SortableValue struct {
	Number *int64
	Text   *string
	Bool   *bool
}

// Encode renders v into its sortable byte form, as used inside an
// IndexKey. Exposed for callers (package query) that need to compare
// against a raw index entry without reconstructing the full key.
func (v SortableValue) Encode() []byte {
	return v.encode()
}

func (v SortableValue) encode() []byte {
	switch {
	case v.Number != nil:
		buf := make([]byte, 8)
		binary.BigEndian.PutUint64(buf, uint64(*v.Number)+1<<63) // order-preserving for signed values
		return buf
	case v.Text != nil:
		folded := strings.ToLower(*v.Text)
		buf := make([]byte, 0, 4+len(folded))
		buf = putU32(buf, uint32(len(folded)))
		buf = append(buf, folded...)
		return buf
	case v.Bool != nil:
		if *v.Bool {
			return []byte{1}
		}
		return []byte{0}
	default:
		return nil
	}
}

// IndexKey encodes an ordered sort/range index key:
// ACCOUNT ‖ COLLECTION ‖ FIELD_ID ‖ sortable-value ‖ DOCUMENT_ID.
func IndexKey(account ids.AccountId, collection ids.Collection, field uint8, value SortableValue, doc ids.DocumentId) []byte {
	key := make([]byte, 0, 4+1+1+16+4)
	key = putU32(key, uint32(account))
	key = append(key, byte(collection))
	key = append(key, field)
	key = append(key, value.encode()...)
	key = putU32(key, uint32(doc))
	return key
}

// IndexKeyPrefix encodes the ACCOUNT‖COLLECTION‖FIELD_ID prefix for a
// full scan over one field's index.
func IndexKeyPrefix(account ids.AccountId, collection ids.Collection, field uint8) []byte {
	key := make([]byte, 0, 4+1+1)
	key = putU32(key, uint32(account))
	key = append(key, byte(collection))
	key = append(key, field)
	return key
}

// TagDiscriminant classifies the kind of tag a bitmap key encodes.
type TagDiscriminant uint8

const (
	TagStatic TagDiscriminant = iota
	TagNumeric
	TagText
	TagDefault
)

// TagBitmapKey encodes a tag bitmap key:
// ACCOUNT ‖ COLLECTION ‖ FIELD_ID ‖ TAG_DISCRIMINANT ‖ TAG_BYTES.
func TagBitmapKey(account ids.AccountId, collection ids.Collection, field uint8, discriminant TagDiscriminant, tag []byte) []byte {
	key := make([]byte, 0, 4+1+1+1+len(tag))
	key = putU32(key, uint32(account))
	key = append(key, byte(collection))
	key = append(key, field)
	key = append(key, byte(discriminant))
	key = append(key, tag...)
	return key
}

// DocumentBitmapKey encodes the live document-id bitmap key for an
// (account, collection) pair: ACCOUNT ‖ COLLECTION.
func DocumentBitmapKey(account ids.AccountId, collection ids.Collection) []byte {
	key := make([]byte, 0, 5)
	key = putU32(key, uint32(account))
	key = append(key, byte(collection))
	return key
}

// PostingKey encodes a full-text posting list key:
// ACCOUNT ‖ COLLECTION ‖ FIELD_ID ‖ TERM_ID.
func PostingKey(account ids.AccountId, collection ids.Collection, field uint8, term ids.TermId) []byte {
	key := make([]byte, 0, 4+1+1+8)
	key = putU32(key, uint32(account))
	key = append(key, byte(collection))
	key = append(key, field)
	key = putU64(key, term)
	return key
}

// ChangeLogKey encodes a change-log entry key:
// ACCOUNT ‖ COLLECTION ‖ CHANGE_ID (big-endian).
func ChangeLogKey(account ids.AccountId, collection ids.Collection, changeID ids.ChangeId) []byte {
	key := make([]byte, 0, 4+1+8)
	key = putU32(key, uint32(account))
	key = append(key, byte(collection))
	key = putU64(key, changeID)
	return key
}

// ChangeLogPrefix encodes the ACCOUNT‖COLLECTION prefix shared by a
// collection's entire change-log stream.
func ChangeLogPrefix(account ids.AccountId, collection ids.Collection) []byte {
	key := make([]byte, 0, 5)
	key = putU32(key, uint32(account))
	key = append(key, byte(collection))
	return key
}

// rollbackPrefix namespaces divergence-recovery records within
// BucketLogs, away from both change-log and raft-log keys.
var rollbackPrefix = []byte("rollback")

// RollbackKey encodes the pending divergence-recovery record for one
// (account, collection): ROLLBACK_PREFIX ‖ ACCOUNT ‖ COLLECTION.
func RollbackKey(account ids.AccountId, collection ids.Collection) []byte {
	key := make([]byte, 0, len(rollbackPrefix)+5)
	key = append(key, rollbackPrefix...)
	key = putU32(key, uint32(account))
	key = append(key, byte(collection))
	return key
}

// RollbackKeyPrefix returns the prefix shared by every rollback record.
func RollbackKeyPrefix() []byte {
	return rollbackPrefix
}

// ParseRollbackKey decodes the (account, collection) a rollback record
// key names. The second return value is false for malformed keys.
func ParseRollbackKey(key []byte) (ids.AccountId, ids.Collection, bool) {
	if len(key) != len(rollbackPrefix)+5 {
		return 0, ids.CollectionNone, false
	}
	rest := key[len(rollbackPrefix):]
	account := ids.AccountId(binary.BigEndian.Uint32(rest[:4]))
	return account, ids.Collection(rest[4]), true
}

// RaftLogKey encodes a raft-log entry key:
// RAFT_PREFIX ‖ TERM (big-endian) ‖ INDEX (big-endian).
func RaftLogKey(term ids.TermId, index ids.LogIndex) []byte {
	key := make([]byte, 0, len(raftLogPrefix)+16)
	key = append(key, raftLogPrefix...)
	key = putU64(key, term)
	key = putU64(key, index)
	return key
}
