// Package memstore implements a local, in-memory, single-node key-value store
// based on the kv.IStore interface. Data is stored entirely in memory and is
// not persisted between process restarts.
//
// Key Features:
//   - Pure in-memory storage without persistence
//   - Wall-clock TTL and absolute expiration per entry
//   - Cursor-paged prefix listing over a sorted key snapshot
//   - Background garbage collection of expired entries
//   - Thread-safe operations for concurrent access
//
// Implementation Details:
//
//   - Expiration: Every entry carries an optional expiration timestamp in unix
//     epoch seconds. Expired entries are invisible to Get and List immediately;
//     the background collector only reclaims their memory afterwards.
//
//   - Listing: List takes a snapshot of all matching keys, sorts them, and pages
//     through the sorted set. The cursor is the last key of the previous page,
//     so keys inserted behind an in-flight cursor are not revisited. This gives
//     the same "loop until the cursor is empty" semantics as a remote store.
//
// This store is strongly consistent, which is a strict subset of the eventual
// consistency the kv.IStore contract allows. The census core must not rely on
// that: it is exercised against weaker stores in its own tests.
//
// Suitable Use Cases:
//   - Development and test environments
//   - Single-node deployments where counts may be lost on restart
//   - Backing store for a census node that also serves the KV HTTP protocol
package memstore
