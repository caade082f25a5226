// Package kv defines the key-value store the snapshot layer persists into,
// together with an in-memory implementation and a Badger-backed one.
//
// Implementations must be safe for concurrent use. Values are opaque bytes;
// callers own their encoding.
package kv
