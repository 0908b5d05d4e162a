package orm

import (
	"bytes"
	"sort"

	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/store"
)

// FieldId names one property/index/tag slot within a collection. Each
// collection's schema (package schema) assigns its own meaning to
// these small integers; orm only ever treats them as opaque keys.
type FieldId = uint8

// Value is a single stored property. Exactly one of the pointer fields
// is set; Raw carries pre-serialized bytes for properties that aren't
// sortable (e.g. a JSON blob) and never participate in an index.
type Value struct {
	Number *int64
	Text   *string
	Bool   *bool
	Raw    []byte
}

func (v Value) equal(o Value) bool {
	switch {
	case v.Number != nil && o.Number != nil:
		return *v.Number == *o.Number
	case v.Text != nil && o.Text != nil:
		return *v.Text == *o.Text
	case v.Bool != nil && o.Bool != nil:
		return *v.Bool == *o.Bool
	case v.Raw != nil && o.Raw != nil:
		return bytes.Equal(v.Raw, o.Raw)
	}
	return v.Number == nil && o.Number == nil &&
		v.Text == nil && o.Text == nil &&
		v.Bool == nil && o.Bool == nil &&
		v.Raw == nil && o.Raw == nil
}

func (v Value) encode() []byte {
	switch {
	case v.Raw != nil:
		return v.Raw
	case v.Number != nil:
		var buf [8]byte
		n := uint64(*v.Number)
		for i := 7; i >= 0; i-- {
			buf[i] = byte(n)
			n >>= 8
		}
		return buf[:]
	case v.Text != nil:
		return []byte(*v.Text)
	case v.Bool != nil:
		if *v.Bool {
			return []byte{1}
		}
		return []byte{0}
	default:
		return nil
	}
}

func (v Value) sortable() store.SortableValue {
	return store.SortableValue{Number: v.Number, Text: v.Text, Bool: v.Bool}
}

func (v Value) hasSortable() bool {
	return v.Number != nil || v.Text != nil || v.Bool != nil
}

// Tag is a single membership marker within a tagged field (e.g. a
// mailbox id a message belongs to, or a keyword).
type Tag struct {
	Discriminant store.TagDiscriminant
	Bytes        []byte
}

func (t Tag) key(account ids.AccountId, collection ids.Collection, field FieldId) []byte {
	return store.TagBitmapKey(account, collection, field, t.Discriminant, t.Bytes)
}

func (t Tag) equal(o Tag) bool {
	return t.Discriminant == o.Discriminant && bytes.Equal(t.Bytes, o.Bytes)
}

// ACL maps a grantee account to a permission bitmask. A zero mask is
// equivalent to absence and is never stored.
type ACL map[ids.AccountId]uint32

// Object is one document's full property/tag/ACL state, independent of
// any on-disk representation. Two Objects (before and after) are
// diffed by BuildWriteBatch into a WriteBatch.
type Object struct {
	Properties map[FieldId]Value
	Tags       map[FieldId][]Tag
	Acl        ACL
}

// New returns an empty Object ready to accumulate properties before an
// insert.
func New() *Object {
	return &Object{
		Properties: make(map[FieldId]Value),
		Tags:       make(map[FieldId][]Tag),
		Acl:        make(ACL),
	}
}

// SetNumber stages an integer property.
func (o *Object) SetNumber(field FieldId, v int64) *Object {
	o.Properties[field] = Value{Number: &v}
	return o
}

// SetText stages a text property.
func (o *Object) SetText(field FieldId, v string) *Object {
	o.Properties[field] = Value{Text: &v}
	return o
}

// SetBool stages a boolean property.
func (o *Object) SetBool(field FieldId, v bool) *Object {
	o.Properties[field] = Value{Bool: &v}
	return o
}

// SetRaw stages an opaque, non-indexed property.
func (o *Object) SetRaw(field FieldId, v []byte) *Object {
	o.Properties[field] = Value{Raw: v}
	return o
}

// AddTag stages tag membership on field.
func (o *Object) AddTag(field FieldId, t Tag) *Object {
	tags := o.Tags[field]
	for _, existing := range tags {
		if existing.equal(t) {
			return o
		}
	}
	o.Tags[field] = append(tags, t)
	return o
}

// RemoveTag removes tag membership on field, if present.
func (o *Object) RemoveTag(field FieldId, t Tag) *Object {
	tags := o.Tags[field]
	for i, existing := range tags {
		if existing.equal(t) {
			o.Tags[field] = append(tags[:i], tags[i+1:]...)
			return o
		}
	}
	return o
}

// Grant sets an ACL mask for grantee.
func (o *Object) Grant(grantee ids.AccountId, mask uint32) *Object {
	if mask == 0 {
		delete(o.Acl, grantee)
		return o
	}
	o.Acl[grantee] = mask
	return o
}

// unionFieldIds returns every field id with at least one tag entry in
// either map, in ascending order, so diffs are deterministic.
func unionFieldIds(a, b map[FieldId][]Tag) []FieldId {
	seen := make(map[FieldId]struct{})
	for f := range a {
		seen[f] = struct{}{}
	}
	for f := range b {
		seen[f] = struct{}{}
	}
	out := make([]FieldId, 0, len(seen))
	for f := range seen {
		out = append(out, f)
	}
	sort.Slice(out, func(i, j int) bool { return out[i] < out[j] })
	return out
}
