// Package api is the HTTP boundary of the census service.
//
// Endpoints:
//
//	POST /census        accept one census report; always 204 on valid JSON
//	GET  /census.json   windowed aggregate, ?project= and ?window= filters
//	GET  /healthz       liveness probe
//	GET  /metrics       Prometheus-format metrics
//	/kv/...             KV storage protocol (optional, see lib/kv/httpstore)
//
// The reporting endpoint deliberately collapses every recorder outcome into
// the same 204 No Content: only unsupported content types (415) and malformed
// JSON (400) are distinguished, so callers learn nothing about dedup or
// denylist behavior. The retention sweep is spawned from report handling as a
// detached goroutine and never awaited.
package api
