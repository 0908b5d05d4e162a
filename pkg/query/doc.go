// Package query implements the filter/sort/get composition the engine
// exposes to collection callers: a small boolean algebra over indexed
// conditions and tag/document-set membership, resolved into a
// bitmap.Bitmap of matching DocumentIds, followed by a stable multi-key
// sort and a mapper from DocumentId to whatever external id the caller
// wants (typically ids.JMAPId).
package query
