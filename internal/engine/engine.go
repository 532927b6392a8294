// ABOUTME: Execution engine boundary consumed by the thread lifecycle manager
// ABOUTME: Defines the Context/Chunk types and the Engine interface; adapters own model policy

package engine

import (
	"context"
	"errors"

	"github.com/2389/strand-gateway/internal/store"
)

// ErrEngineFailure wraps failures of the underlying model call. The
// buffered path surfaces it to the caller; the streaming path converts
// it into a terminal error event.
var ErrEngineFailure = errors.New("engine failure")

// Context identifies what an engine call should resume from. ThreadID is
// always set. A non-empty CheckpointID asks the engine to resume from
// that checkpoint instead of the thread head (time travel); the call
// appends a new checkpoint to that branch without altering history.
type Context struct {
	ThreadID     string
	CheckpointID string
}

// Chunk is one item of an engine response stream. Text is cumulative:
// every chunk carries the full text of its message so far, not an
// increment. A non-nil Err terminates the stream.
type Chunk struct {
	Role store.Role
	Text string
	Err  error
}

// Engine is the boundary to the conversational execution engine. The
// engine owns all model and tool-calling policy, and it, not the thread
// manager, produces the new checkpoint as a side effect of each call.
type Engine interface {
	// Invoke runs one buffered exchange and returns the final assistant
	// text plus the id of the checkpoint the engine settled on.
	Invoke(ctx context.Context, ec Context, query string) (text string, checkpointID string, err error)

	// Stream runs one exchange, delivering cumulative-text chunks tagged
	// by role on the returned channel. The channel closes when the engine
	// completes; a Chunk with Err set reports mid-stream failure. An
	// error return means the call never started.
	Stream(ctx context.Context, ec Context, query string) (<-chan Chunk, error)

	// ResolveCheckpoint reports the current checkpoint id for the
	// context's thread after a call completed.
	ResolveCheckpoint(ctx context.Context, ec Context) (string, error)
}
