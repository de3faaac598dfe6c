// Package kv defines the key-value storage capability consumed by the census
// core. It provides a unified interface (IStore) over different backends with
// TTL/absolute expiration, cursor-paged prefix listing, and standardized error
// reporting.
//
// The package focuses on:
//   - A unified interface (IStore) for key-value operations across different backends
//   - An explicitly eventually-consistent contract: the census core is written
//     against the weakest store the interface admits, not against the strongest
//     implementation available
//
// Key Components:
//
//   - IStore Interface: The core abstraction defining operations for interacting
//     with a key-value store. All implementations share this common interface,
//     allowing the service to switch between storage backends without code
//     changes. Listing is cursor-paged; callers must loop until the returned
//     cursor is empty to observe all matching keys.
//
//   - Error System: A structured error reporting mechanism using typed error
//     codes and descriptive messages. The census core treats RetCUnavailable as
//     a transient condition and degrades to a silent no-op rather than failing
//     the request.
//
// Implementations:
//
//	The module includes two implementations of the IStore interface:
//
//	- Memory Store (memstore): An in-memory, single-node implementation with
//	  wall-clock expiration and a background garbage collector. Suitable for
//	  development, tests and small single-node deployments.
//	  Available in the "github.com/namelessnanashi/census/lib/kv/memstore" package.
//
//	- HTTP Store (httpstore): A client implementation that speaks a minimal
//	  REST protocol against a remote storage node. The api package serves the
//	  same protocol, so any census node can act as a storage node for others.
//	  Available in the "github.com/namelessnanashi/census/lib/kv/httpstore" package.
package kv
