package changelog

import (
	"encoding/binary"
	"sort"

	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/store"
)

// Entry is one change-log record: the sets of JMAPIds created, updated,
// deleted, or whose child relation was touched at a single ChangeId.
type Entry struct {
	Created      []ids.JMAPId
	Updated      []ids.JMAPId
	Deleted      []ids.JMAPId
	ChildUpdated []ids.JMAPId
}

func (e Entry) isEmpty() bool {
	return len(e.Created) == 0 && len(e.Updated) == 0 && len(e.Deleted) == 0 && len(e.ChildUpdated) == 0
}

// Append stages the record for (account, collection) at ChangeId next
// onto b; an empty entry stages nothing. Callers must hold
// store.Store.Lock for this tuple across both the read of the current
// head (via Head) and this Append so ids stay monotonic.
func Append(b *store.WriteBatch, account ids.AccountId, collection ids.Collection, next ids.ChangeId, e Entry) {
	if e.isEmpty() {
		return
	}
	key := store.ChangeLogKey(account, collection, next)
	b.Set(store.BucketLogs, key, encodeEntry(e))
}

// Head returns the most recently assigned ChangeId for (account,
// collection), or ids.NoChangeId if the log is empty.
func Head(s *store.Store, account ids.AccountId, collection ids.Collection) (ids.ChangeId, error) {
	head := ids.ChangeId(ids.NoChangeId)
	prefix := store.ChangeLogPrefix(account, collection)
	err := s.ScanPrefix(store.BucketLogs, prefix, func(key, _ []byte) bool {
		head = decodeChangeID(key)
		return true // ScanPrefix is ascending; keep overwriting until the last key
	})
	return head, err
}

// QueryResult is the answer to a Changes query: the folded id sets plus
// pagination/cursor state.
type QueryResult struct {
	Created      []ids.JMAPId
	Updated      []ids.JMAPId
	Deleted      []ids.JMAPId
	ChildUpdated []ids.JMAPId
	HasMore      bool
	NewState     ids.State
}

// Query answers "what changed since since", folding the raw entry
// stream: if an id was created then later updated, it stays
// created; created-then-deleted drops the id entirely; updated-then-
// deleted keeps only the deletion. maxChanges caps how many distinct
// ids are folded before HasMore is set and NewState becomes an
// Intermediate cursor resuming at the next unfolded ChangeId.
func Query(s *store.Store, account ids.AccountId, collection ids.Collection, since ids.State, maxChanges int) (QueryResult, error) {
	var startAfter ids.ChangeId
	switch since.Kind {
	case ids.StateInitial:
		if v, err := hasAnyEntry(s, account, collection); err != nil {
			return QueryResult{}, err
		} else if !v {
			return QueryResult{NewState: ids.Initial()}, nil
		}
		startAfter = 0 // inclusive scan from the very first change id
	case ids.StateExact, ids.StateIntermediate:
		startAfter = since.Value + 1
	}

	type state struct {
		created, updated, deleted, child bool
	}
	order := make([]ids.JMAPId, 0)
	folded := make(map[ids.JMAPId]*state)

	touch := func(id ids.JMAPId) *state {
		st, ok := folded[id]
		if !ok {
			st = &state{}
			folded[id] = st
			order = append(order, id)
		}
		return st
	}

	prefix := store.ChangeLogPrefix(account, collection)
	var lastChangeID ids.ChangeId = since.Value
	hasMore := false
	var scanErr error
	err := s.ScanPrefix(store.BucketLogs, prefix, func(key, value []byte) bool {
		cid := decodeChangeID(key)
		if since.Kind != ids.StateInitial && cid < startAfter {
			return true
		}
		if maxChanges > 0 && len(order) >= maxChanges {
			hasMore = true
			return false
		}
		e, err := decodeEntry(value)
		if err != nil {
			scanErr = err
			return false
		}
		for _, id := range e.Created {
			st := touch(id)
			st.created = true
		}
		for _, id := range e.Updated {
			st := touch(id)
			if !st.created {
				st.updated = true
			}
		}
		for _, id := range e.Deleted {
			st := touch(id)
			if st.created {
				// created then deleted inside the window: the id was
				// never visible to this client, drop it entirely
				st.created = false
				st.child = false
				continue
			}
			st.updated = false
			st.deleted = true
		}
		for _, id := range e.ChildUpdated {
			st := touch(id)
			st.child = true
		}
		lastChangeID = cid
		return true
	})
	if err != nil {
		return QueryResult{}, err
	}
	if scanErr != nil {
		return QueryResult{}, scanErr
	}

	var result QueryResult
	for _, id := range order {
		st := folded[id]
		switch {
		case st.deleted:
			result.Deleted = append(result.Deleted, id)
		case st.created:
			result.Created = append(result.Created, id)
		case st.updated:
			result.Updated = append(result.Updated, id)
		}
		if st.child && !st.created && !st.deleted {
			result.ChildUpdated = append(result.ChildUpdated, id)
		}
	}
	result.HasMore = hasMore
	if hasMore {
		result.NewState = ids.Intermediate(lastChangeID, uint64(len(order)))
	} else {
		result.NewState = ids.Exact(lastChangeID)
	}
	return result, nil
}

func hasAnyEntry(s *store.Store, account ids.AccountId, collection ids.Collection) (bool, error) {
	found := false
	err := s.ScanPrefix(store.BucketLogs, store.ChangeLogPrefix(account, collection), func(_, _ []byte) bool {
		found = true
		return false
	})
	return found, err
}

func decodeChangeID(key []byte) ids.ChangeId {
	if len(key) < 8 {
		return 0
	}
	return binary.BigEndian.Uint64(key[len(key)-8:])
}

// EncodeEntry renders e into the wire form Append stores. The
// replication layer ships these bytes verbatim so followers append the
// identical log record.
func EncodeEntry(e Entry) []byte { return encodeEntry(e) }

// DecodeEntry parses the wire form produced by EncodeEntry. The
// replication layer's rollback path uses it to census diverged writes
// straight from raw log values.
func DecodeEntry(data []byte) (Entry, error) { return decodeEntry(data) }

// wire format: 4 count-prefixed uint64 slices, in Created/Updated/
// Deleted/ChildUpdated order.
func encodeEntry(e Entry) []byte {
	var buf []byte
	buf = appendIdSlice(buf, e.Created)
	buf = appendIdSlice(buf, e.Updated)
	buf = appendIdSlice(buf, e.Deleted)
	buf = appendIdSlice(buf, e.ChildUpdated)
	return buf
}

func appendIdSlice(buf []byte, s []ids.JMAPId) []byte {
	var tmp [4]byte
	binary.BigEndian.PutUint32(tmp[:], uint32(len(s)))
	buf = append(buf, tmp[:]...)
	sorted := append([]ids.JMAPId(nil), s...)
	sort.Slice(sorted, func(i, j int) bool { return sorted[i] < sorted[j] })
	for _, id := range sorted {
		var idBuf [8]byte
		binary.BigEndian.PutUint64(idBuf[:], uint64(id))
		buf = append(buf, idBuf[:]...)
	}
	return buf
}

func decodeEntry(data []byte) (Entry, error) {
	var e Entry
	rest := data
	for _, dst := range []*[]ids.JMAPId{&e.Created, &e.Updated, &e.Deleted, &e.ChildUpdated} {
		if len(rest) < 4 {
			return e, ids.Corrupt(data, "changelog: truncated entry")
		}
		n := binary.BigEndian.Uint32(rest[:4])
		rest = rest[4:]
		ids_ := make([]ids.JMAPId, 0, n)
		for i := uint32(0); i < n; i++ {
			if len(rest) < 8 {
				return e, ids.Corrupt(data, "changelog: truncated entry")
			}
			ids_ = append(ids_, ids.JMAPId(binary.BigEndian.Uint64(rest[:8])))
			rest = rest[8:]
		}
		*dst = ids_
	}
	return e, nil
}
