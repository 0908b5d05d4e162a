package raftengine

import (
	"encoding/binary"
	"fmt"
	"io"
	"sync"

	"github.com/coremail/engine/pkg/blobstore"
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/orm"
	"github.com/coremail/engine/pkg/schema"
	"github.com/coremail/engine/pkg/store"
	"github.com/hashicorp/raft"
)

// FSM applies the replicated Update stream (see update.go) to a local
// store.Store, the same way every node in the cluster does, so that a
// committed log entry produces bit-identical column-family state on
// leader and followers alike. A Document record carries the serialized
// ORM; the FSM diffs it against local state through the same
// orm.BuildWriteBatch path the leader's write used, which regenerates
// values, indexes, tag bitmaps, ACL entries and blob links without the
// leader shipping raw KV operations.
type FSM struct {
	mu    sync.RWMutex
	store *store.Store
	blobs *blobstore.Store // nil if this deployment has no blob store wired
}

// NewFSM constructs an FSM over s. blobs may be nil; UpdateBlob records
// are then rejected rather than silently dropped.
func NewFSM(s *store.Store, blobs *blobstore.Store) *FSM {
	return &FSM{store: s, blobs: blobs}
}

// Apply decodes log.Data as an Update stream and replays it as a single
// store.WriteBatch, committed atomically. Blob payloads (UpdateBlob) are
// written to the blob backend outside that transaction, matching
// blobstore.Store.Put's own documented non-atomicity with respect to
// the KV store.
func (f *FSM) Apply(log *raft.Log) interface{} {
	updates, err := DecodeStream(log.Data)
	if err != nil {
		return err
	}

	f.mu.Lock()
	defer f.mu.Unlock()

	b := store.NewWriteBatch()
	var account ids.AccountId
	var collection ids.Collection

	for _, u := range updates {
		switch u.Kind {
		case UpdateBegin:
			account, collection = u.Account, u.Collection
		case UpdateChange:
			b.Set(store.BucketLogs, store.ChangeLogKey(account, collection, u.ChangeID), u.ChangeBytes)
		case UpdateDocument:
			if err := f.applyDocument(b, account, collection, u); err != nil {
				return err
			}
		case UpdateDelete:
			if err := f.applyDelete(b, account, collection, u.DocumentID); err != nil {
				return err
			}
		case UpdateBlob:
			if f.blobs == nil {
				return fmt.Errorf("raftengine: received Blob update with no blob store configured")
			}
			if _, err := f.blobs.Put(u.BlobHash, u.BlobData); err != nil {
				return err
			}
		default:
			return fmt.Errorf("raftengine: unknown update kind %d", u.Kind)
		}
	}

	if err := b.Commit(f.store); err != nil {
		return err
	}
	return nil
}

func (f *FSM) applyDocument(b *store.WriteBatch, account ids.AccountId, collection ids.Collection, u Update) error {
	doc := u.JmapID.Document()
	next, err := orm.Deserialize(u.Orm)
	if err != nil {
		return err
	}
	old, err := orm.ReadObject(f.store, account, collection, doc)
	if err != nil {
		return err
	}
	if _, err := orm.BuildWriteBatch(b, account, collection, doc, schema.For(collection), old, next); err != nil {
		return err
	}
	diffBlobLinks(b, account, collection, doc, schema.Blobs(collection, old), schema.Blobs(collection, next))
	return nil
}

func (f *FSM) applyDelete(b *store.WriteBatch, account ids.AccountId, collection ids.Collection, doc ids.DocumentId) error {
	old, err := orm.ReadObject(f.store, account, collection, doc)
	if err != nil {
		return err
	}
	if old == nil {
		return nil // already absent, Delete is idempotent
	}
	if _, err := orm.BuildWriteBatch(b, account, collection, doc, schema.For(collection), old, nil); err != nil {
		return err
	}
	diffBlobLinks(b, account, collection, doc, schema.Blobs(collection, old), nil)
	return nil
}

// diffBlobLinks stages owned-link adds/removes so the Blobs column
// family tracks document ownership identically on every node.
func diffBlobLinks(b *store.WriteBatch, account ids.AccountId, collection ids.Collection, doc ids.DocumentId, old, next [][32]byte) {
	for _, hash := range next {
		if !containsHash(old, hash) {
			blobstore.LinkOwned(b, hash, account, collection, doc)
		}
	}
	for _, hash := range old {
		if !containsHash(next, hash) {
			blobstore.UnlinkOwned(b, hash, account, collection, doc)
		}
	}
}

func containsHash(hashes [][32]byte, hash [32]byte) bool {
	for _, h := range hashes {
		if h == hash {
			return true
		}
	}
	return false
}

// Snapshot captures every column family's raw contents. Raft invokes
// this periodically to let it truncate the log; Restore replays the
// dump in full on a node recovering from one.
func (f *FSM) Snapshot() (raft.FSMSnapshot, error) {
	f.mu.RLock()
	defer f.mu.RUnlock()

	snap := &fsmSnapshot{}
	for _, cf := range [][]byte{store.BucketValues, store.BucketIndexes, store.BucketBitmaps, store.BucketLogs, store.BucketBlobs} {
		cf := cf
		err := f.store.ScanPrefix(cf, nil, func(key, value []byte) bool {
			snap.records = append(snap.records, kvRecord{cf: cf, key: append([]byte(nil), key...), value: append([]byte(nil), value...)})
			return true
		})
		if err != nil {
			return nil, fmt.Errorf("raftengine: snapshot scan %s: %w", cf, err)
		}
	}
	return snap, nil
}

// Restore replaces the store's contents with a previously captured
// snapshot. Existing column-family contents are dropped first so a
// node restoring after divergence does not retain keys the snapshot
// never knew about. It is only ever called before the node starts
// serving traffic.
func (f *FSM) Restore(rc io.ReadCloser) error {
	defer rc.Close()

	f.mu.Lock()
	defer f.mu.Unlock()

	records, err := decodeSnapshot(rc)
	if err != nil {
		return err
	}

	if err := f.store.ResetColumnFamilies(); err != nil {
		return err
	}
	b := store.NewWriteBatch()
	for _, r := range records {
		b.Set(r.cf, r.key, r.value)
	}
	return b.Commit(f.store)
}

type kvRecord struct {
	cf, key, value []byte
}

// fsmSnapshot is a point-in-time dump of every column family. The wire
// format is a flat sequence of length-prefixed (cf, key, value) triples;
// there is no need for JSON here since every field is already raw
// bytes.
type fsmSnapshot struct {
	records []kvRecord
}

func (s *fsmSnapshot) Persist(sink raft.SnapshotSink) error {
	err := func() error {
		for _, r := range s.records {
			if err := writeLenPrefixed(sink, r.cf); err != nil {
				return err
			}
			if err := writeLenPrefixed(sink, r.key); err != nil {
				return err
			}
			if err := writeLenPrefixed(sink, r.value); err != nil {
				return err
			}
		}
		return nil
	}()
	if err != nil {
		sink.Cancel()
		return err
	}
	return sink.Close()
}

func (s *fsmSnapshot) Release() {}

func writeLenPrefixed(w io.Writer, data []byte) error {
	var lenBuf [4]byte
	binary.BigEndian.PutUint32(lenBuf[:], uint32(len(data)))
	if _, err := w.Write(lenBuf[:]); err != nil {
		return err
	}
	_, err := w.Write(data)
	return err
}

func readLenPrefixed(r io.Reader) ([]byte, error) {
	var lenBuf [4]byte
	if _, err := io.ReadFull(r, lenBuf[:]); err != nil {
		return nil, err
	}
	n := binary.BigEndian.Uint32(lenBuf[:])
	buf := make([]byte, n)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, err
	}
	return buf, nil
}

func decodeSnapshot(r io.Reader) ([]kvRecord, error) {
	var out []kvRecord
	for {
		cf, err := readLenPrefixed(r)
		if err == io.EOF {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("raftengine: decode snapshot: %w", err)
		}
		key, err := readLenPrefixed(r)
		if err != nil {
			return nil, fmt.Errorf("raftengine: decode snapshot: %w", err)
		}
		value, err := readLenPrefixed(r)
		if err != nil {
			return nil, fmt.Errorf("raftengine: decode snapshot: %w", err)
		}
		out = append(out, kvRecord{cf: cf, key: key, value: value})
	}
}
