package query

import (
	"sort"

	"github.com/coremail/engine/pkg/bitmap"
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/store"
)

// Comparator ranks two documents by one sort key. Descending is true
// for a descending sort on this key.
type Comparator struct {
	FieldID    uint8
	Descending bool
}

// Sort orders docs (typically the output of Filter) by comparators in
// priority order, falling back to ascending DocumentId for a total,
// stable order. Every candidate's sort-key values are read once up
// front so the comparator itself does no I/O.
func Sort(s *store.Store, account ids.AccountId, collection ids.Collection, docs *bitmap.Bitmap, comparators []Comparator) ([]ids.DocumentId, error) {
	ordered := docs.ToSlice()
	docIDs := make([]ids.DocumentId, len(ordered))
	for i, v := range ordered {
		docIDs[i] = ids.DocumentId(v)
	}
	if len(comparators) == 0 {
		return docIDs, nil
	}

	keys := make([]map[ids.DocumentId][]byte, len(comparators))
	for i, c := range comparators {
		keys[i] = make(map[ids.DocumentId][]byte, len(docIDs))
		prefix := store.IndexKeyPrefix(account, collection, c.FieldID)
		err := s.ScanPrefix(store.BucketIndexes, prefix, func(key, _ []byte) bool {
			doc := ids.DocumentId(docIDFromIndexKey(key))
			if _, want := docSet(docIDs)[doc]; want {
				keys[i][doc] = append([]byte(nil), key[len(prefix):len(key)-4]...)
			}
			return true
		})
		if err != nil {
			return nil, err
		}
	}

	sort.SliceStable(docIDs, func(i, j int) bool {
		a, b := docIDs[i], docIDs[j]
		for idx, c := range comparators {
			ka, kb := keys[idx][a], keys[idx][b]
			cmp := compareBytes(ka, kb)
			if c.Descending {
				cmp = -cmp
			}
			if cmp != 0 {
				return cmp < 0
			}
		}
		return a < b
	})
	return docIDs, nil
}

func docSet(docs []ids.DocumentId) map[ids.DocumentId]struct{} {
	m := make(map[ids.DocumentId]struct{}, len(docs))
	for _, d := range docs {
		m[d] = struct{}{}
	}
	return m
}

// GetValue reads a single property for one document.
func GetValue(s *store.Store, account ids.AccountId, collection ids.Collection, doc ids.DocumentId, field uint8) ([]byte, error) {
	return s.Get(store.BucketValues, store.ValueKey(account, collection, doc, field))
}

// GetTag reads the full DocumentId membership bitmap for a single tag.
func GetTag(s *store.Store, account ids.AccountId, collection ids.Collection, field uint8, disc store.TagDiscriminant, tag []byte) (*bitmap.Bitmap, error) {
	return s.GetBitmap(store.BucketBitmaps, store.TagBitmapKey(account, collection, field, disc, tag))
}

// GetDocumentIds returns the live document-id bitmap for (account,
// collection).
func GetDocumentIds(s *store.Store, account ids.AccountId, collection ids.Collection) (*bitmap.Bitmap, error) {
	return s.GetBitmap(store.BucketBitmaps, store.DocumentBitmapKey(account, collection))
}

// Mapper converts a resolved DocumentId into the external id a caller
// wants returned from a query (typically ids.JMAPId, computed from a
// collection-specific prefix such as a thread id).
type Mapper func(ids.DocumentId) ids.JMAPId

// QueryStore composes Filter, Sort, and a Mapper into the final
// ordered list of external ids a JMAP Query method would return.
func QueryStore(s *store.Store, account ids.AccountId, collection ids.Collection, expr Expr, comparators []Comparator, mapper Mapper) ([]ids.JMAPId, error) {
	matched, err := Filter(s, account, collection, expr)
	if err != nil {
		return nil, err
	}
	ordered, err := Sort(s, account, collection, matched, comparators)
	if err != nil {
		return nil, err
	}
	out := make([]ids.JMAPId, len(ordered))
	for i, doc := range ordered {
		out[i] = mapper(doc)
	}
	return out, nil
}
