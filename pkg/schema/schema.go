// Package schema gives each document collection a concrete Go type
// over pkg/orm's generic Property/Tag storage: field-id constants, a
// required/indexed/tagged declaration table, and typed accessors. The
// per-type metadata lives in explicit const tables rather than being
// derived via reflection.
package schema

import (
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/orm"
)

// Typed is implemented by every collection's object type. It is the
// thinnest contract query_store and the ORM diff path need: which
// collection a value belongs to, its JMAPId, and its underlying
// orm.Object for orm.BuildWriteBatch.
type Typed interface {
	Collection() ids.Collection
	JMAPID() ids.JMAPId
	Object() *orm.Object
}

// RaftObject is implemented by every collection's object type. Beyond
// Typed it only reports the blob hashes a document owns; types that own
// no blobs return nil.
type RaftObject interface {
	Typed
	// GetBlobs returns every blob hash this document owns, for the
	// replication layer's blob-prefetch pass.
	GetBlobs() [][32]byte
}

// base is embedded by every concrete type to provide Typed's plumbing.
type base struct {
	id ids.JMAPId
	obj *orm.Object
}

func newBase(id ids.JMAPId) base {
	return base{id: id, obj: orm.New()}
}

func (b base) JMAPID() ids.JMAPId { return b.id }
func (b base) Object() *orm.Object { return b.obj }
