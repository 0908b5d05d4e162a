package schema

import (
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/orm"
)

// schemas maps every storage collection to its field declaration table.
// The replication layer uses this to rebuild a document's indexes and
// tag bitmaps from its serialized ORM on a follower, so the table must
// cover every collection an Update stream can name.
var schemas = map[ids.Collection]orm.Schema{
	ids.CollectionAccount:          AccountSchema,
	ids.CollectionPushSubscription: PushSubscriptionSchema,
	ids.CollectionMail:             MailSchema,
	ids.CollectionMailbox:          MailboxSchema,
	ids.CollectionThread:           ThreadSchema,
	ids.CollectionIdentity:         IdentitySchema,
	ids.CollectionEmailSubmission:  EmailSubmissionSchema,
	ids.CollectionVacationResponse: VacationResponseSchema,
	ids.CollectionPrincipal:        PrincipalSchema,
	ids.CollectionSieveScript:      SieveScriptSchema,
}

// For returns the field declaration table for collection c, or an empty
// schema for collections with no declared fields.
func For(c ids.Collection) orm.Schema {
	if s, ok := schemas[c]; ok {
		return s
	}
	return orm.Schema{}
}

// blobFields names, per collection, the raw property holding a
// content-addressed hash the document owns. Mail owns the RFC5322
// message blob it was imported from; SieveScript owns its script
// source. Every other collection owns no blobs.
var blobFields = map[ids.Collection]orm.FieldId{
	ids.CollectionMail:        MailFieldBlobHash,
	ids.CollectionSieveScript: SieveScriptFieldBlobHash,
}

// Blobs returns the blob hashes a document of collection c owns, read
// from its ORM state. The replication layer uses this for blob
// prefetch and link maintenance; the write path uses it to stage the
// same owned links a follower will derive.
func Blobs(c ids.Collection, o *orm.Object) [][32]byte {
	if o == nil {
		return nil
	}
	field, ok := blobFields[c]
	if !ok {
		return nil
	}
	v, ok := o.Properties[field]
	if !ok || len(v.Raw) != 32 {
		return nil
	}
	var hash [32]byte
	copy(hash[:], v.Raw)
	return [][32]byte{hash}
}
