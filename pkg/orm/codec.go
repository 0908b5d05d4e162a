package orm

import (
	"encoding/binary"
	"sort"

	"github.com/coremail/engine/pkg/ids"
	"github.com/coremail/engine/pkg/store"
)

// ObjectField is the reserved field id under which a document's full
// serialized Object is stored in BucketValues, alongside the per-field
// values. Schemas number their own fields from 1, so 0 never collides.
const ObjectField FieldId = 0

const (
	valueNumber byte = iota
	valueText
	valueBool
	valueRaw
)

// Serialize renders the Object into a deterministic byte form: fields,
// tags and ACL entries are emitted in sorted order, so two Objects with
// equal contents always serialize byte-for-byte identically regardless
// of insertion order. The replication layer relies on this to keep
// follower stores bit-identical to the leader's.
func (o *Object) Serialize() []byte {
	var buf []byte

	fields := make([]FieldId, 0, len(o.Properties))
	for f := range o.Properties {
		fields = append(fields, f)
	}
	sort.Slice(fields, func(i, j int) bool { return fields[i] < fields[j] })

	buf = binary.AppendUvarint(buf, uint64(len(fields)))
	for _, f := range fields {
		v := o.Properties[f]
		buf = append(buf, f)
		switch {
		case v.Number != nil:
			buf = append(buf, valueNumber)
			buf = binary.AppendVarint(buf, *v.Number)
		case v.Text != nil:
			buf = append(buf, valueText)
			buf = binary.AppendUvarint(buf, uint64(len(*v.Text)))
			buf = append(buf, *v.Text...)
		case v.Bool != nil:
			buf = append(buf, valueBool)
			if *v.Bool {
				buf = append(buf, 1)
			} else {
				buf = append(buf, 0)
			}
		default:
			buf = append(buf, valueRaw)
			buf = binary.AppendUvarint(buf, uint64(len(v.Raw)))
			buf = append(buf, v.Raw...)
		}
	}

	tagFields := make([]FieldId, 0, len(o.Tags))
	for f, tags := range o.Tags {
		if len(tags) > 0 {
			tagFields = append(tagFields, f)
		}
	}
	sort.Slice(tagFields, func(i, j int) bool { return tagFields[i] < tagFields[j] })

	buf = binary.AppendUvarint(buf, uint64(len(tagFields)))
	for _, f := range tagFields {
		tags := append([]Tag(nil), o.Tags[f]...)
		sort.Slice(tags, func(i, j int) bool {
			if tags[i].Discriminant != tags[j].Discriminant {
				return tags[i].Discriminant < tags[j].Discriminant
			}
			return string(tags[i].Bytes) < string(tags[j].Bytes)
		})
		buf = append(buf, f)
		buf = binary.AppendUvarint(buf, uint64(len(tags)))
		for _, t := range tags {
			buf = append(buf, byte(t.Discriminant))
			buf = binary.AppendUvarint(buf, uint64(len(t.Bytes)))
			buf = append(buf, t.Bytes...)
		}
	}

	grantees := make([]ids.AccountId, 0, len(o.Acl))
	for g := range o.Acl {
		grantees = append(grantees, g)
	}
	sort.Slice(grantees, func(i, j int) bool { return grantees[i] < grantees[j] })

	buf = binary.AppendUvarint(buf, uint64(len(grantees)))
	for _, g := range grantees {
		buf = binary.AppendUvarint(buf, uint64(g))
		buf = binary.AppendUvarint(buf, uint64(o.Acl[g]))
	}
	return buf
}

// Deserialize parses the byte form produced by Serialize.
func Deserialize(data []byte) (*Object, error) {
	o := New()
	r := &reader{buf: data}

	nProps := r.uvarint()
	for i := uint64(0); i < nProps; i++ {
		field := FieldId(r.byte())
		switch r.byte() {
		case valueNumber:
			v := r.varint()
			o.Properties[field] = Value{Number: &v}
		case valueText:
			s := string(r.bytes())
			o.Properties[field] = Value{Text: &s}
		case valueBool:
			b := r.byte() == 1
			o.Properties[field] = Value{Bool: &b}
		case valueRaw:
			o.Properties[field] = Value{Raw: r.bytes()}
		default:
			return nil, ids.Corrupt(data, "orm: unknown value type in serialized object")
		}
		if r.failed {
			return nil, ids.Corrupt(data, "orm: truncated serialized object")
		}
	}

	nTagFields := r.uvarint()
	for i := uint64(0); i < nTagFields; i++ {
		field := FieldId(r.byte())
		nTags := r.uvarint()
		for j := uint64(0); j < nTags; j++ {
			disc := store.TagDiscriminant(r.byte())
			o.Tags[field] = append(o.Tags[field], Tag{Discriminant: disc, Bytes: r.bytes()})
		}
		if r.failed {
			return nil, ids.Corrupt(data, "orm: truncated serialized tags")
		}
	}

	nAcl := r.uvarint()
	for i := uint64(0); i < nAcl; i++ {
		grantee := ids.AccountId(r.uvarint())
		mask := uint32(r.uvarint())
		if r.failed {
			return nil, ids.Corrupt(data, "orm: truncated serialized acl")
		}
		o.Acl[grantee] = mask
	}
	if r.failed {
		return nil, ids.Corrupt(data, "orm: truncated serialized object")
	}
	return o, nil
}

// ReadObject loads a document's full Object from the store, or
// (nil, nil) if no document exists at this id.
func ReadObject(s *store.Store, account ids.AccountId, collection ids.Collection, doc ids.DocumentId) (*Object, error) {
	raw, err := s.Get(store.BucketValues, store.ValueKey(account, collection, doc, ObjectField))
	if err != nil || raw == nil {
		return nil, err
	}
	return Deserialize(raw)
}

type reader struct {
	buf    []byte
	failed bool
}

func (r *reader) byte() byte {
	if len(r.buf) < 1 {
		r.failed = true
		return 0
	}
	b := r.buf[0]
	r.buf = r.buf[1:]
	return b
}

func (r *reader) uvarint() uint64 {
	v, n := binary.Uvarint(r.buf)
	if n <= 0 {
		r.failed = true
		return 0
	}
	r.buf = r.buf[n:]
	return v
}

func (r *reader) varint() int64 {
	v, n := binary.Varint(r.buf)
	if n <= 0 {
		r.failed = true
		return 0
	}
	r.buf = r.buf[n:]
	return v
}

func (r *reader) bytes() []byte {
	n := r.uvarint()
	if r.failed || uint64(len(r.buf)) < n {
		r.failed = true
		return nil
	}
	out := append([]byte(nil), r.buf[:n]...)
	r.buf = r.buf[n:]
	return out
}
