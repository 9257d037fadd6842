// Package projection builds the read-only summaries shown in listings from
// rows returned by the store: one JobSummary per job document and one
// FlowSummary per flow document joined with its job documents.
//
// Summaries are never written back.
package projection
