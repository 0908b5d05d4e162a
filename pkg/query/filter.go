package query

import (
	"github.com/coremail/engine/pkg/bitmap"
	"github.com/coremail/engine/pkg/fulltext"
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/store"
)

// CompareOp is the comparison a Condition applies against an indexed
// field's sortable value.
type CompareOp uint8

const (
	Equal CompareOp = iota
	GreaterThan
	GreaterOrEqual
	LessThan
	LessOrEqual
)

// Expr is the filter algebra: And/Or/Not combinators over leaves that
// are either a Condition, direct tag/document-set membership, or a
// pre-resolved bitmap (e.g. a full-text posting-list union computed by
// the caller).
type Expr struct {
	and       []Expr
	or        []Expr
	not       *Expr
	condition *conditionLeaf
	bitmapSet *bitmap.Bitmap
	fullText  *fullTextLeaf
}

type conditionLeaf struct {
	fieldID uint8
	op      CompareOp
	value   store.SortableValue
}

type fullTextLeaf struct {
	fieldID uint8
	text    string
}

// And combines sub-expressions with AND.
func And(exprs ...Expr) Expr { return Expr{and: exprs} }

// Or combines sub-expressions with OR.
func Or(exprs ...Expr) Expr { return Expr{or: exprs} }

// Not negates e against the full document-id universe at resolution
// time.
func Not(e Expr) Expr { return Expr{not: &e} }

// Cond matches documents whose field's index entry satisfies op
// against value.
func Cond(fieldID uint8, op CompareOp, value store.SortableValue) Expr {
	return Expr{condition: &conditionLeaf{fieldID: fieldID, op: op, value: value}}
}

// Bitmap wraps an already-resolved DocumentId set (e.g. a tag bitmap
// the caller fetched directly, or a full-text posting-list union) as a
// filter leaf.
func Bitmap(bm *bitmap.Bitmap) Expr { return Expr{bitmapSet: bm} }

// Text matches documents whose field's term index contains every term
// of text.
func Text(fieldID uint8, text string) Expr {
	return Expr{fullText: &fullTextLeaf{fieldID: fieldID, text: text}}
}

// Filter resolves expr against the stored indexes for (account,
// collection), returning the matching DocumentId set.
func Filter(s *store.Store, account ids.AccountId, collection ids.Collection, expr Expr) (*bitmap.Bitmap, error) {
	switch {
	case expr.bitmapSet != nil:
		return expr.bitmapSet.Clone(), nil
	case expr.condition != nil:
		return resolveCondition(s, account, collection, *expr.condition)
	case expr.fullText != nil:
		return fulltext.Search(s, account, collection, expr.fullText.fieldID, expr.fullText.text)
	case expr.not != nil:
		universe, err := s.GetBitmap(store.BucketBitmaps, store.DocumentBitmapKey(account, collection))
		if err != nil {
			return nil, err
		}
		inner, err := Filter(s, account, collection, *expr.not)
		if err != nil {
			return nil, err
		}
		return inner.Complement(universe), nil
	case len(expr.and) > 0:
		result, err := Filter(s, account, collection, expr.and[0])
		if err != nil {
			return nil, err
		}
		for _, sub := range expr.and[1:] {
			part, err := Filter(s, account, collection, sub)
			if err != nil {
				return nil, err
			}
			result = result.Intersection(part)
		}
		return result, nil
	case len(expr.or) > 0:
		result := bitmap.New()
		for _, sub := range expr.or {
			part, err := Filter(s, account, collection, sub)
			if err != nil {
				return nil, err
			}
			result = result.Union(part)
		}
		return result, nil
	default:
		return bitmap.New(), nil
	}
}

// resolveCondition scans the field's ordered index for entries
// matching op against value. Every operator, Equal included, pays for
// the index scan; a tag lookup resolves from its bitmap only when passed
// as Bitmap(tagBitmap).
func resolveCondition(s *store.Store, account ids.AccountId, collection ids.Collection, c conditionLeaf) (*bitmap.Bitmap, error) {
	result := bitmap.New()
	prefix := store.IndexKeyPrefix(account, collection, c.fieldID)
	target := c.value.Encode()

	err := s.ScanPrefix(store.BucketIndexes, prefix, func(key, _ []byte) bool {
		if len(key) < 4 {
			return true
		}
		doc := docIDFromIndexKey(key)
		entryValue := key[len(prefix) : len(key)-4]
		if matches(entryValue, target, c.op) {
			result.Add(doc)
		}
		return true
	})
	return result, err
}

func docIDFromIndexKey(key []byte) uint32 {
	n := len(key)
	return uint32(key[n-4])<<24 | uint32(key[n-3])<<16 | uint32(key[n-2])<<8 | uint32(key[n-1])
}

func matches(entry, target []byte, op CompareOp) bool {
	cmp := compareBytes(entry, target)
	switch op {
	case Equal:
		return cmp == 0
	case GreaterThan:
		return cmp > 0
	case GreaterOrEqual:
		return cmp >= 0
	case LessThan:
		return cmp < 0
	case LessOrEqual:
		return cmp <= 0
	default:
		return false
	}
}

func compareBytes(a, b []byte) int {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	for i := 0; i < n; i++ {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return len(a) - len(b)
}
