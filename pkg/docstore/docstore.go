package docstore

import (
	"time"

	"github.com/coremail/engine/pkg/blobstore"
	"github.com/coremail/engine/pkg/changelog"
	"github.com/coremail/engine/pkg/idassigner"
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/orm"
	"github.com/coremail/engine/pkg/raftengine"
	"github.com/coremail/engine/pkg/schema"
	"github.com/coremail/engine/pkg/statechange"
	"github.com/coremail/engine/pkg/store"
)

// Replicator submits a write's Update stream to the cluster, returning
// once the entry has committed and been applied. On a single-node
// deployment it is nil and writes commit locally instead.
type Replicator interface {
	Replicate(updates []raftengine.Update) error
}

// Publisher receives one Change per committed write for state-change
// fan-out. Nil disables notifications.
type Publisher interface {
	Publish(c statechange.Change)
}

// Store drives the full document write path: id assignment, ORM diff,
// blob links, change-log append — one atomic commit under the
// per-(account, collection) write lock — followed by state-change
// publication. Reads go through package query; this type only owns
// mutations.
//
// With a Replicator attached, the raft FSM is the only writer: a
// mutation is encoded as an Update stream, submitted to raft, and
// applied locally when the entry commits — the same path every
// follower takes, so there is exactly one way a document write reaches
// the store. Without one, the equivalent batch commits directly.
type Store struct {
	kv       *store.Store
	assigner *idassigner.Assigner
	blobs    *blobstore.Store
	bus      Publisher
	repl     Replicator
}

// New constructs a Store over kv. blobs may be nil when no blob-owning
// collections are in use.
func New(kv *store.Store, assigner *idassigner.Assigner, blobs *blobstore.Store) *Store {
	return &Store{kv: kv, assigner: assigner, blobs: blobs}
}

// WithBus attaches a state-change publisher.
func (d *Store) WithBus(bus Publisher) *Store {
	d.bus = bus
	return d
}

// WithReplicator attaches a cluster replicator. Only the raft leader
// accepts writes; Replicate fails on a follower and the front-end is
// expected to redirect there.
func (d *Store) WithReplicator(r Replicator) *Store {
	d.repl = r
	return d
}

// Insert writes a new document, assigning its id. prefix becomes the
// JMAPId's upper 32 bits (the thread id, for mail; zero elsewhere).
// Owned-blob links are derived from the object's schema so leader and
// follower stay in agreement about what the document owns.
func (d *Store) Insert(account ids.AccountId, collection ids.Collection, prefix uint32, obj *orm.Object) (ids.JMAPId, error) {
	unlock := d.kv.Lock(account, collection)
	defer unlock()

	doc, err := d.assigner.Assign(account, collection)
	if err != nil {
		return 0, err
	}
	jmapID := ids.NewJMAPId(prefix, doc)

	next, err := d.nextChangeID(account, collection)
	if err != nil {
		d.assigner.Free(account, collection, doc)
		return 0, err
	}
	entry := changelog.Entry{Created: []ids.JMAPId{jmapID}}

	if d.repl != nil {
		if err := schema.For(collection).Validate(obj); err != nil {
			d.assigner.Free(account, collection, doc)
			return 0, err
		}
		err = d.replicate(account, collection, next, entry, []raftengine.Update{
			{Kind: raftengine.UpdateDocument, Insert: true, JmapID: jmapID, Orm: obj.Serialize()},
		}, schema.Blobs(collection, obj))
	} else {
		b := store.NewWriteBatch()
		if _, err = orm.BuildWriteBatch(b, account, collection, doc, schema.For(collection), nil, obj); err == nil {
			for _, hash := range schema.Blobs(collection, obj) {
				blobstore.LinkOwned(b, hash, account, collection, doc)
			}
			changelog.Append(b, account, collection, next, entry)
			err = b.Commit(d.kv)
		}
	}
	if err != nil {
		d.assigner.Free(account, collection, doc)
		return 0, err
	}

	d.publish(account, collection, next)
	return jmapID, nil
}

// Update rewrites an existing document to the state in obj, diffing
// against its stored ORM. A missing document is NotFound, not an
// implicit insert.
func (d *Store) Update(account ids.AccountId, collection ids.Collection, prefix uint32, doc ids.DocumentId, obj *orm.Object) error {
	unlock := d.kv.Lock(account, collection)
	defer unlock()

	old, err := orm.ReadObject(d.kv, account, collection, doc)
	if err != nil {
		return err
	}
	if old == nil {
		return ids.New(ids.NotFound, "docstore: no document %d in %s/%d", doc, collection, account)
	}

	jmapID := ids.NewJMAPId(prefix, doc)
	next, err := d.nextChangeID(account, collection)
	if err != nil {
		return err
	}
	entry := changelog.Entry{Updated: []ids.JMAPId{jmapID}}
	oldBlobs := schema.Blobs(collection, old)
	newBlobs := schema.Blobs(collection, obj)

	if d.repl != nil {
		if err := schema.For(collection).Validate(obj); err != nil {
			return err
		}
		err = d.replicate(account, collection, next, entry, []raftengine.Update{
			{Kind: raftengine.UpdateDocument, JmapID: jmapID, Orm: obj.Serialize()},
		}, added(oldBlobs, newBlobs))
	} else {
		b := store.NewWriteBatch()
		if _, err = orm.BuildWriteBatch(b, account, collection, doc, schema.For(collection), old, obj); err == nil {
			diffOwnedLinks(b, account, collection, doc, oldBlobs, newBlobs)
			changelog.Append(b, account, collection, next, entry)
			err = b.Commit(d.kv)
		}
	}
	if err != nil {
		return err
	}

	d.reapBlobs(removed(oldBlobs, newBlobs))
	d.publish(account, collection, next)
	return nil
}

// Delete removes a document: indexes, tags, blob links and membership
// all go in one atomic write, then the freed id returns to the
// assigner and any blob left without references is physically deleted.
func (d *Store) Delete(account ids.AccountId, collection ids.Collection, prefix uint32, doc ids.DocumentId) error {
	unlock := d.kv.Lock(account, collection)
	defer unlock()

	old, err := orm.ReadObject(d.kv, account, collection, doc)
	if err != nil {
		return err
	}
	if old == nil {
		return ids.New(ids.NotFound, "docstore: no document %d in %s/%d", doc, collection, account)
	}

	jmapID := ids.NewJMAPId(prefix, doc)
	next, err := d.nextChangeID(account, collection)
	if err != nil {
		return err
	}
	entry := changelog.Entry{Deleted: []ids.JMAPId{jmapID}}
	owned := schema.Blobs(collection, old)

	if d.repl != nil {
		err = d.replicate(account, collection, next, entry, []raftengine.Update{
			{Kind: raftengine.UpdateDelete, DocumentID: doc},
		}, nil)
	} else {
		b := store.NewWriteBatch()
		if _, err = orm.BuildWriteBatch(b, account, collection, doc, schema.For(collection), old, nil); err == nil {
			for _, hash := range owned {
				blobstore.UnlinkOwned(b, hash, account, collection, doc)
			}
			changelog.Append(b, account, collection, next, entry)
			err = b.Commit(d.kv)
		}
	}
	if err != nil {
		return err
	}

	if err := d.assigner.Free(account, collection, doc); err != nil {
		return err
	}
	d.reapBlobs(owned)
	d.publish(account, collection, next)
	return nil
}

// NotifyChildUpdated appends a change-log entry recording that objects
// logically related to the given ids changed — the signal Mailbox uses
// for its counter updates when a message lands in or leaves a folder.
func (d *Store) NotifyChildUpdated(account ids.AccountId, collection ids.Collection, children []ids.JMAPId) error {
	if len(children) == 0 {
		return nil
	}
	unlock := d.kv.Lock(account, collection)
	defer unlock()

	next, err := d.nextChangeID(account, collection)
	if err != nil {
		return err
	}
	entry := changelog.Entry{ChildUpdated: children}

	if d.repl != nil {
		err = d.replicate(account, collection, next, entry, nil, nil)
	} else {
		b := store.NewWriteBatch()
		changelog.Append(b, account, collection, next, entry)
		err = b.Commit(d.kv)
	}
	if err != nil {
		return err
	}

	d.publish(account, collection, next)
	return nil
}

// nextChangeID returns the ChangeId the next append should use. Callers
// hold the tuple's write lock, so head cannot move underneath them.
func (d *Store) nextChangeID(account ids.AccountId, collection ids.Collection) (ids.ChangeId, error) {
	head, err := changelog.Head(d.kv, account, collection)
	if err != nil {
		return 0, err
	}
	if head == ids.NoChangeId {
		return 0, nil
	}
	return head + 1, nil
}

func (d *Store) publish(account ids.AccountId, collection ids.Collection, changeID ids.ChangeId) {
	if d.bus == nil {
		return
	}
	ts, ok := ids.CollectionTypeState(collection)
	if !ok {
		return
	}
	d.bus.Publish(statechange.Change{Account: account, Type: ts, ChangeID: changeID})
}

// replicate assembles and submits the Update stream for one write:
// Begin, blob payloads for prefetch, the document records, and the
// change-log entry followers append verbatim. A raft error surfaces
// as ServerUnavailable — a leader change is in progress or the quorum
// is gone, and the client may retry.
func (d *Store) replicate(account ids.AccountId, collection ids.Collection, changeID ids.ChangeId, entry changelog.Entry, docs []raftengine.Update, blobHashes [][32]byte) error {
	updates := []raftengine.Update{{Kind: raftengine.UpdateBegin, Account: account, Collection: collection}}
	for _, hash := range blobHashes {
		if d.blobs == nil {
			continue
		}
		data, err := d.blobs.Get(hash)
		if err != nil || data == nil {
			continue
		}
		updates = append(updates, raftengine.Update{Kind: raftengine.UpdateBlob, BlobHash: hash, BlobData: data})
	}
	updates = append(updates, docs...)
	updates = append(updates, raftengine.Update{
		Kind:        raftengine.UpdateChange,
		ChangeID:    changeID,
		ChangeBytes: changelog.EncodeEntry(entry),
	})
	if err := d.repl.Replicate(updates); err != nil {
		return ids.Wrap(ids.ServerUnavailable, err, "docstore: replicate write for %s/%d", collection, account)
	}
	return nil
}

// reapBlobs physically deletes any of the given blobs whose last
// reference just went away.
func (d *Store) reapBlobs(hashes [][32]byte) {
	if d.blobs == nil {
		return
	}
	now := time.Now()
	for _, hash := range hashes {
		refs, err := d.blobs.RefCount(hash, now)
		if err != nil || refs > 0 {
			continue
		}
		_, _ = d.blobs.Delete(hash)
	}
}

func diffOwnedLinks(b *store.WriteBatch, account ids.AccountId, collection ids.Collection, doc ids.DocumentId, old, next [][32]byte) {
	for _, hash := range next {
		if !contains(old, hash) {
			blobstore.LinkOwned(b, hash, account, collection, doc)
		}
	}
	for _, hash := range old {
		if !contains(next, hash) {
			blobstore.UnlinkOwned(b, hash, account, collection, doc)
		}
	}
}

func added(old, next [][32]byte) [][32]byte {
	var out [][32]byte
	for _, hash := range next {
		if !contains(old, hash) {
			out = append(out, hash)
		}
	}
	return out
}

func removed(old, next [][32]byte) [][32]byte {
	return added(next, old)
}

func contains(hashes [][32]byte, hash [32]byte) bool {
	for _, h := range hashes {
		if h == hash {
			return true
		}
	}
	return false
}
