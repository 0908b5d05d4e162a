// Package fulltext maintains the term index: per-(account, collection,
// field) posting lists mapping hashed terms to the documents containing
// them, stored as bitmaps in the Bitmaps column family. Indexing is
// staged onto a WriteBatch by the ORM diff path; Search resolves a
// query to a document set usable as a filter leaf.
package fulltext
