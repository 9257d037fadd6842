// Package doc provides the storage-safe document value model for flowdoc.
//
// Every record persisted by flowdoc is first converted into a Map built only
// from the types in this package. The set is closed: Null, String, Int,
// Float, Bool, Time, Array and Map. Conversion from Go values happens through
// explicit type switches (see FromGo) and the Marshaler hook, never through
// reflection, so two encoders cannot disagree on the shape of a document.
//
// Documents encode to canonical JSON:
//   - Object keys sorted by UTF-16 code units (RFC 8785)
//   - Strings NFC normalized, no HTML escaping
//   - Floats always carry a fraction or exponent so they decode as floats
//   - Timestamps encode as {"$date": "<RFC 3339, UTC, milliseconds>"}
//
// Partial updates are expressed as an Update: a set of dotted paths
// ("remote.step_attempts", "parents.<uuid>.2") mapped to new values.
package doc
