// Package census implements the counting and deduplication engine of the
// anonymous daily-usage census: the key-space encoding, the dedup+increment
// protocol, the windowed read-side aggregation, and the retention sweep.
//
// The engine is written against the kv.IStore capability and assumes nothing
// stronger than its contract: writes may not be immediately visible, there are
// no transactions, and no ordering holds across the marker and counter
// operations. The protocol is therefore designed to fail safe (under-count or
// skip) rather than fail loud, with exactly one bounded exception: two
// concurrent first reports of the same (day, project, id) can produce one
// duplicate increment before the dedup marker becomes visible. The system
// favors availability and simplicity over exact-once counting under race.
//
// Components:
//
//   - Key space (keys.go): typed keys (SeenKey, CountKey, MarkerKey) with
//     total, tested encode/decode, instead of ad hoc string splitting at call
//     sites. The persisted layout is bit-exact shared state.
//   - Recorder (recorder.go): per-report validation and the dedup+increment
//     protocol. Owns all counter writes.
//   - Aggregator (stats.go): windowed {project -> {day -> count}} aggregation
//     over a cursor-paged prefix listing.
//   - Sweeper (sweeper.go): at-most-once-per-day best-effort deletion of
//     counters past the retention horizon.
//
// All tunables live in Config, loaded once at process start and injected.
package census
