// Package idassigner hands out DocumentId values for an (account,
// collection) pair. Each pair keeps a small in-memory cache on top of
// the store: a next_id high-water mark and a set of ids freed by prior
// deletes, so deleted slots get reused before the high-water mark
// advances. On first touch after process start the cache reconstructs
// itself from the collection's live document-id bitmap — there is no
// separate on-disk next_id record to go stale.
package idassigner
