// ABOUTME: Converts cumulative assistant text snapshots into minimal incremental deltas
// ABOUTME: Pure per-stream state machine; one Emitter per response stream

package delta

import "strings"

// Emitter turns a sequence of cumulative text snapshots (each snapshot is
// the full assistant text so far) into the increments a client has not
// yet seen. Not safe for concurrent use; create one Emitter per stream.
type Emitter struct {
	lastSnapshot string
	emitted      strings.Builder
}

// New returns an Emitter with no emitted text.
func New() *Emitter {
	return &Emitter{}
}

// Push takes the next cumulative snapshot and returns the delta to send.
// When the snapshot extends the previous one, the delta is the new
// suffix. When continuity breaks (the engine restarted or switched
// context), the delta is the whole snapshot (a full reset). ok is false
// when there is nothing to emit.
func (e *Emitter) Push(cumulative string) (delta string, ok bool) {
	if strings.HasPrefix(cumulative, e.lastSnapshot) {
		delta = cumulative[len(e.lastSnapshot):]
	} else {
		delta = cumulative
	}
	if delta == "" {
		return "", false
	}
	e.lastSnapshot = cumulative
	e.emitted.WriteString(delta)
	return delta, true
}

// Final returns the authoritative response text. It equals the
// concatenation of every delta returned by Push, so clients that joined
// the deltas hold exactly this string even across resets.
func (e *Emitter) Final() string {
	return e.emitted.String()
}
