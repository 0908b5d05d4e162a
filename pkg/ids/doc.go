/*
Package ids defines the identifier types shared by every layer of the
storage core: account and document identifiers, the collection enum,
the external JMAPId/BlobId/State string encodings, and the error kinds
the engine reports upward.

None of these types touch the KV store or the network — they are pure
value types so pkg/store, pkg/orm, pkg/changelog, pkg/raftengine and
pkg/statechange can all depend on them without a cyclic import.
*/
package ids
