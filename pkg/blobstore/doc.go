// Package blobstore implements the content-addressed blob layer: put
// with idempotent dedup, get/get-range, and two kinds of link
// (document-owned and TTL'd ephemeral) stored as keys under the hash's
// prefix, so a blob's refcount is the count of its live links and
// commits atomically with the document writes that create them.
// Physical bytes live behind a Backend — a local
// filesystem implementation ships here; an object-storage backend is
// an interface stub only, per the deployment choice being fixed at
// initialisation.
package blobstore
