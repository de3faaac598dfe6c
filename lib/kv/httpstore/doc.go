// Package httpstore implements the kv.IStore interface against a remote
// storage node over a minimal HTTP protocol:
//
//	GET    /kv/{key}               -> 200 + value | 404
//	PUT    /kv/{key}               -> 204 (lifecycle via X-Census-* headers)
//	DELETE /kv/{key}               -> 204
//	GET    /kv?prefix=&cursor=     -> 200 + JSON page {keys: [{name}], cursor?}
//
// The api package serves the same protocol, so any census node with a local
// store can act as the storage node for others. Multiple endpoints are
// balanced round-robin and every request is retried a bounded number of times;
// beyond that, errors surface as kv.RetCUnavailable and the census core
// degrades to a silent no-op.
package httpstore
