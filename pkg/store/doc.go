/*
Package store is the column-family key-value engine underneath every
other component: documents, indexes, tag and document-id bitmaps, the
change log, and blob metadata and links all live here as bytes under
one of five logical column families, backed by a single BoltDB file per
node. The raft log is not kept here: raftengine stores it in its own
BoltDB files, and blob bytes live in the blob backend.

# Architecture

	┌──────────────────────── STORE ────────────────────────────┐
	│                                                            │
	│  ┌────────────────────────────────────────────┐          │
	│  │              bolt.DB                        │          │
	│  │  - File: <dataDir>/core.db                  │          │
	│  │  - One top-level bucket per column family   │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │         Column Families (buckets)            │          │
	│  │  values   ACCOUNT‖COLLECTION‖DOC‖FIELD      │          │
	│  │  indexes  ACCOUNT‖COLLECTION‖FIELD‖VAL‖DOC  │          │
	│  │  bitmaps  ACCOUNT‖COLLECTION‖FIELD‖TAG      │          │
	│  │  logs     ACCOUNT‖COLLECTION‖CHANGE_ID (BE) │          │
	│  │  blobs    HASH‖... (size, owned/temp links)  │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │            WriteBatch                       │          │
	│  │  - Set / Merge / Delete ops, one bolt.Tx    │          │
	│  │  - commits atomically or not at all         │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │   (account, collection) mutex map            │          │
	│  │  - power-of-two bucket count                │          │
	│  │  - serializes writes per tuple, not globally │          │
	│  └──────────────────┬─────────────────────────┘          │
	│                     │                                      │
	│  ┌──────────────────▼─────────────────────────┐          │
	│  │          blocking worker pool                │          │
	│  │  - runtime.NumCPU() goroutines               │          │
	│  │  - every call above dispatches through it    │          │
	│  └────────────────────────────────────────────┘           │
	└────────────────────────────────────────────────────────────┘

Readers never see a mix of pre- and post-commit state (bbolt's MVCC
view already guarantees that); the mutex map exists to keep change-log
and id-assignment sequencing monotonic per (account, collection) without
forcing unrelated tenants through a single global lock.
*/
package store
