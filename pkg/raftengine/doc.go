// Package raftengine replicates the storage engine across a cluster
// using hashicorp/raft. The replicated payload is not raw KV
// operations but a higher-level Update stream: a sequence of
// Begin/Change/Document/Delete/Blob/Eof records that an
// FSM replays into a store.WriteBatch on every node, so every replica
// reconstructs identical column-family state rather than trusting byte-
// for-byte log shipping of bbolt's own pages.
//
// Divergence recovery lives in rollback.go: a node stepping down with
// log entries beyond the new leader's folds its diverged change-log
// tail into a persisted MergedChanges census, drops the tail-local
// writes, and lets the leader's replay re-mirror it.
package raftengine
