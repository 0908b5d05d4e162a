// Package changelog implements the per-(account, collection) change
// log every collection's Changes/query-with-state operations are built
// on: a monotonically increasing ChangeId stream recording which
// documents were created, updated, destroyed, or had a child updated,
// plus the JMAPState cursor algebra (Initial/Exact/Intermediate) used
// to answer "what changed since state X".
package changelog
