// Package kvstore is the device's persistence service: a small set of fixed
// keys, each holding a byte value of fixed maximum size with a default.
//
// Reads are served from an in-memory cache loaded at startup. Writes go to
// the backend first and update the cache only when the backend accepted
// them. Restore resets every key to its default.
//
// Backends: SQLite (the kv_store table, see package migrations) and memory.
package kvstore
