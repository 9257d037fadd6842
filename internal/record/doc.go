// Package record defines the persisted job and flow documents and the
// dependency graph derived from them.
//
// A JobRecord is one version of one job, identified by (uuid, index) and by
// an immutable db_id. A FlowRecord owns job membership, the index-qualified
// parents table and the ids registry of every job version ever created in the
// flow.
//
// # Parents
//
// JobRecord.Parents lists uuids only: once a uuid satisfies a dependency,
// every later index of that uuid keeps satisfying it. FlowRecord.Parents is
// index-qualified (child uuid -> index -> parent uuids) because a dynamic
// mutation may add parents to the new index of a job and not to the old one.
// Indices are string keys on disk.
//
// # Derived views
//
// IndexParents, Children and IDsMapping are computed on first use and cached
// on the FlowRecord. Every mutator of Parents or IDs in this package clears
// the cache; code that edits those fields directly must call Invalidate.
// Nothing refreshes the cache across processes.
//
// FlowRecord is not safe for concurrent use.
package record
