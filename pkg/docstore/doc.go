// Package docstore drives the document write path: a single Insert,
// Update or Delete assigns ids, diffs the ORM, maintains blob links
// and appends the change log as one atomic write under the
// per-(account, collection) lock, then publishes the resulting state
// change.
//
// In a cluster, the raft FSM is the only writer: docstore encodes the
// mutation as an Update stream and submits it to raft, and the write
// reaches the local store when the committed entry passes through the
// FSM — the identical path every follower takes. Single-node
// deployments commit the equivalent batch directly.
package docstore
