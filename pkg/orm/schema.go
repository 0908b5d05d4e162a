package orm

import "github.com/coremail/engine/pkg/ids"

// FieldSchema describes the validation and indexing behavior of one
// property field within a collection.
type FieldSchema struct {
	Required  bool
	MaxLength int // 0 means unbounded, only meaningful for Text
	Indexed   bool
	Tagged    bool
	FullText  bool // text values additionally feed the term index
}

// Schema is a collection's full field map.
type Schema map[FieldId]FieldSchema

// Validate checks o.Properties against s: every Required field must be
// present, and every Text value must respect its field's MaxLength.
// Tag-only fields and fields absent from the schema are not validated
// here — structural required-ness belongs to the schema's owner
// (package schema), not to generic property storage.
func (s Schema) Validate(o *Object) error {
	for field, fs := range s {
		v, present := o.Properties[field]
		if fs.Required && !present {
			return ids.New(ids.InvalidProperties, "orm: field %d is required", field)
		}
		if !present {
			continue
		}
		if fs.MaxLength > 0 && v.Text != nil && len(*v.Text) > fs.MaxLength {
			return ids.New(ids.InvalidProperties, "orm: field %d exceeds max length %d", field, fs.MaxLength)
		}
	}
	return nil
}
