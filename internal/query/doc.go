// Package query describes document filters and compiles them to SQL over the
// store's documents table.
//
// Predicates address document fields by dotted path ("state",
// "remote.queue_state", "job.name") and compare them with literal document
// values. Paths and values are always passed as parameters, never
// interpolated into the SQL text.
//
// Every compiled query is ordered: first by the requested paths, then by the
// document key, so the same data always comes back in the same order.
package query
