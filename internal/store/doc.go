// Package store provides SQLite-backed storage for job and flow documents.
//
// Every document lives in one table keyed by (collection, key): jobs are
// keyed by db_id, flows by uuid. Documents are stored as canonical JSON, so
// equal documents are byte-identical on disk and can be compared directly.
//
// # Locking
//
// A non-null lock_id marks a document as checked out. AcquireLock is a
// compare-and-set on the stored bytes: it only succeeds if the document is
// unlocked and unchanged since it was read. No lock is ever reclaimed on a
// timer; lock_time is recorded for callers that implement their own policy.
//
// # Database Configuration
//
//   - WAL mode: Concurrent reads during writes
//   - synchronous=NORMAL: Balance durability/performance
//   - busy_timeout=5000: Wait for locks up to 5 seconds
//   - A single open connection serialises writers in the process
//
// # Ordering
//
// All queries end with ORDER BY key COLLATE BINARY ASC (after any requested
// fields) so results are deterministic.
package store
