// Package snapshot persists named, timestamped SQLite snapshots in a kv.Store.
//
// Each Record is stored under its id as a JSON document. The binary snapshot
// is written as an array of byte values and timestamps as RFC 3339 text, so
// the document survives stores and tools that only handle JSON-shaped data.
//
// Reads are lenient: a stored document that cannot be decoded is logged,
// reported to the configured skip observer and treated as absent, so one
// corrupt record never prevents listing the others.
//
// Concurrent Save and Delete calls for the same id are last-write-wins; there
// is no version check.
package snapshot
