package orm

import (
	"github.com/coremail/engine/pkg/bitmap"
	"github.com/coremail/engine/pkg/fulltext"
	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/store"
)

// WriteAction is the kind of save being diffed.
type WriteAction uint8

const (
	Insert WriteAction = iota
	Update
	Delete
)

// BuildWriteBatch diffs old (the document's current on-disk state, nil
// for an insert) against next (the desired state, nil for a delete)
// and stages every Set/Delete/Merge operation needed to bring the
// store in line: changed properties in BucketValues, changed sortable
// properties in BucketIndexes, changed tags in BucketBitmaps, and
// document-id bitmap membership. It does not commit the batch or touch
// the change log — callers compose this with changelog.Append into one
// atomic commit.
func BuildWriteBatch(b *store.WriteBatch, account ids.AccountId, collection ids.Collection, doc ids.DocumentId, schema Schema, old, next *Object) (WriteAction, error) {
	switch {
	case old == nil && next == nil:
		return Insert, ids.New(ids.InvalidArguments, "orm: diff requires at least one of old/next")
	case old == nil:
		if err := schema.Validate(next); err != nil {
			return Insert, err
		}
		diffProperties(b, account, collection, doc, schema, nil, next)
		diffTags(b, account, collection, doc, nil, next)
		diffACL(b, account, collection, doc, nil, next)
		b.Set(store.BucketValues, store.ValueKey(account, collection, doc, ObjectField), next.Serialize())
		b.MergeBitmap(store.BucketBitmaps, store.DocumentBitmapKey(account, collection), bitmap.MergeOp{Set: true, Value: uint32(doc)})
		return Insert, nil
	case next == nil:
		diffProperties(b, account, collection, doc, schema, old, nil)
		diffTags(b, account, collection, doc, old, nil)
		diffACL(b, account, collection, doc, old, nil)
		b.Delete(store.BucketValues, store.ValueKey(account, collection, doc, ObjectField))
		b.MergeBitmap(store.BucketBitmaps, store.DocumentBitmapKey(account, collection), bitmap.MergeOp{Set: false, Value: uint32(doc)})
		return Delete, nil
	default:
		if err := schema.Validate(next); err != nil {
			return Update, err
		}
		diffProperties(b, account, collection, doc, schema, old, next)
		diffTags(b, account, collection, doc, old, next)
		diffACL(b, account, collection, doc, old, next)
		b.Set(store.BucketValues, store.ValueKey(account, collection, doc, ObjectField), next.Serialize())
		return Update, nil
	}
}

// diffACL stages grant/revoke writes for every grantee whose mask
// changed between old and next, keyed by store.ACLKey so a grantee's
// mask can be read back with a single point lookup.
func diffACL(b *store.WriteBatch, account ids.AccountId, collection ids.Collection, doc ids.DocumentId, old, next *Object) {
	oldAcl := ACL{}
	if old != nil {
		oldAcl = old.Acl
	}
	nextAcl := ACL{}
	if next != nil {
		nextAcl = next.Acl
	}

	seen := make(map[ids.AccountId]struct{}, len(oldAcl)+len(nextAcl))
	for g := range oldAcl {
		seen[g] = struct{}{}
	}
	for g := range nextAcl {
		seen[g] = struct{}{}
	}

	for grantee := range seen {
		oldMask, hadOld := oldAcl[grantee]
		nextMask, hasNext := nextAcl[grantee]
		key := store.ACLKey(account, collection, doc, grantee)
		switch {
		case hasNext && (!hadOld || oldMask != nextMask):
			var buf [4]byte
			buf[0] = byte(nextMask >> 24)
			buf[1] = byte(nextMask >> 16)
			buf[2] = byte(nextMask >> 8)
			buf[3] = byte(nextMask)
			b.Set(store.BucketValues, key, buf[:])
		case !hasNext && hadOld:
			b.Delete(store.BucketValues, key)
		}
	}
}

func diffProperties(b *store.WriteBatch, account ids.AccountId, collection ids.Collection, doc ids.DocumentId, schema Schema, old, next *Object) {
	oldProps := map[FieldId]Value{}
	if old != nil {
		oldProps = old.Properties
	}
	nextProps := map[FieldId]Value{}
	if next != nil {
		nextProps = next.Properties
	}

	seen := make(map[FieldId]struct{}, len(oldProps)+len(nextProps))
	for f := range oldProps {
		seen[f] = struct{}{}
	}
	for f := range nextProps {
		seen[f] = struct{}{}
	}

	for field := range seen {
		ov, oldHas := oldProps[field]
		nv, nextHas := nextProps[field]
		fullText := schema[field].FullText

		switch {
		case nextHas && (!oldHas || !ov.equal(nv)):
			b.Set(store.BucketValues, store.ValueKey(account, collection, doc, field), nv.encode())
			if oldHas && ov.hasSortable() {
				b.Delete(store.BucketIndexes, store.IndexKey(account, collection, field, ov.sortable(), doc))
			}
			if nv.hasSortable() {
				b.Set(store.BucketIndexes, store.IndexKey(account, collection, field, nv.sortable(), doc), nil)
			}
			if fullText {
				if oldHas && ov.Text != nil {
					fulltext.Unindex(b, account, collection, field, doc, *ov.Text)
				}
				if nv.Text != nil {
					fulltext.Index(b, account, collection, field, doc, *nv.Text)
				}
			}
		case !nextHas && oldHas:
			b.Delete(store.BucketValues, store.ValueKey(account, collection, doc, field))
			if ov.hasSortable() {
				b.Delete(store.BucketIndexes, store.IndexKey(account, collection, field, ov.sortable(), doc))
			}
			if fullText && ov.Text != nil {
				fulltext.Unindex(b, account, collection, field, doc, *ov.Text)
			}
		}
	}
}

func diffTags(b *store.WriteBatch, account ids.AccountId, collection ids.Collection, doc ids.DocumentId, old, next *Object) {
	oldTags := map[FieldId][]Tag{}
	if old != nil {
		oldTags = old.Tags
	}
	nextTags := map[FieldId][]Tag{}
	if next != nil {
		nextTags = next.Tags
	}

	for _, field := range unionFieldIds(oldTags, nextTags) {
		added, removed := diffTagSet(oldTags[field], nextTags[field])
		for _, t := range added {
			b.MergeBitmap(store.BucketBitmaps, t.key(account, collection, field), bitmap.MergeOp{Set: true, Value: uint32(doc)})
		}
		for _, t := range removed {
			b.MergeBitmap(store.BucketBitmaps, t.key(account, collection, field), bitmap.MergeOp{Set: false, Value: uint32(doc)})
		}
	}
}

func diffTagSet(old, next []Tag) (added, removed []Tag) {
	for _, t := range next {
		found := false
		for _, o := range old {
			if o.equal(t) {
				found = true
				break
			}
		}
		if !found {
			added = append(added, t)
		}
	}
	for _, o := range old {
		found := false
		for _, t := range next {
			if o.equal(t) {
				found = true
				break
			}
		}
		if !found {
			removed = append(removed, o)
		}
	}
	return added, removed
}
