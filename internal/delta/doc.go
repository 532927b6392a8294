// Package delta derives minimal incremental text deltas from cumulative
// engine snapshots.
//
// The execution engine reports the full assistant text on every chunk.
// Sending that over the wire repeats everything the client already has,
// so the thread manager pipes chunks through an Emitter, which tracks
// the last emitted snapshot and yields only the unseen suffix.
//
// When a snapshot does not extend the previous one (the engine restarted
// or branched context), the Emitter emits the entire snapshot. The
// client-visible guarantee either way: concatenating every delta equals
// the final response text.
package delta
