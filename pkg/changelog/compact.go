package changelog

import (
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/store"
)

// Compact collapses every change-log entry at or below upTo into a
// single snapshot entry stored at upTo, deleting the collapsed range.
// The snapshot entry carries the same folded created/updated/deleted
// sets a Changes query over the range would have produced, so clients
// whose since-state predates the horizon still converge — they just
// lose the ability to distinguish intermediate steps. Callers must
// hold store.Store.Lock for (account, collection) across the call.
func Compact(s *store.Store, account ids.AccountId, collection ids.Collection, upTo ids.ChangeId) (collapsed int, err error) {
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

	var staleKeys [][]byte
	var scanErr error
	prefix := store.ChangeLogPrefix(account, collection)
	err = s.ScanPrefix(store.BucketLogs, prefix, func(key, value []byte) bool {
		cid := decodeChangeID(key)
		if cid > upTo {
			return false
		}
		e, err := decodeEntry(value)
		if err != nil {
			scanErr = err
			return false
		}
		for _, id := range e.Created {
			touch(id).created = true
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
				// never visible to a client syncing from before the
				// range: drop it from the snapshot entirely
				st.created = false
				st.deleted = false
				st.child = false
			} else {
				st.updated = false
				st.deleted = true
			}
		}
		for _, id := range e.ChildUpdated {
			touch(id).child = true
		}
		staleKeys = append(staleKeys, append([]byte(nil), key...))
		return true
	})
	if err != nil {
		return 0, err
	}
	if scanErr != nil {
		return 0, scanErr
	}
	if len(staleKeys) <= 1 {
		return 0, nil // nothing to collapse
	}

	var snapshot Entry
	for _, id := range order {
		st := folded[id]
		switch {
		case st.deleted:
			snapshot.Deleted = append(snapshot.Deleted, id)
		case st.created:
			snapshot.Created = append(snapshot.Created, id)
		case st.updated:
			snapshot.Updated = append(snapshot.Updated, id)
		}
		if st.child && !st.deleted {
			snapshot.ChildUpdated = append(snapshot.ChildUpdated, id)
		}
	}

	b := store.NewWriteBatch()
	for _, key := range staleKeys {
		b.Delete(store.BucketLogs, key)
	}
	if !snapshot.isEmpty() {
		b.Set(store.BucketLogs, store.ChangeLogKey(account, collection, upTo), encodeEntry(snapshot))
	}
	if err := b.Commit(s); err != nil {
		return 0, err
	}
	return len(staleKeys), nil
}
