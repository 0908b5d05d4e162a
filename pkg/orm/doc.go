// Package orm implements the tiny object-relational layer every
// collection is built on: a typed property/tag/ACL map per document,
// diffed against its previous state on save to emit the minimal set of
// store operations (index adds/removes, tag bitmap merges, document
// bitmap membership) needed to bring the store in line.
//
// Nothing here knows about JMAP method semantics. A schema.Collection
// type (package schema) wraps an Object with named accessors; orm only
// understands field ids, sortable values, and tags.
package orm
