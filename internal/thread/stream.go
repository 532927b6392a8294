// ABOUTME: Streaming send: drives the delta emitter against the engine's chunk stream
// ABOUTME: Produces the meta/delta/final/error event protocol consumed by the gateway

package thread

import (
	"context"

	"github.com/google/uuid"

	"github.com/2389/strand-gateway/internal/delta"
	"github.com/2389/strand-gateway/internal/engine"
	"github.com/2389/strand-gateway/internal/store"
)

// EventType discriminates StreamEvent variants.
type EventType int

const (
	// EventMeta opens every stream with the resolved thread context.
	EventMeta EventType = iota
	// EventDelta carries one text increment.
	EventDelta
	// EventFinal closes a successful stream with the full response.
	EventFinal
	// EventError closes a failed stream.
	EventError
)

// StreamEvent is one event of a streaming send. Exactly one Meta is
// emitted first, zero or more Deltas follow, and exactly one terminal
// event (Final or Error) closes the sequence.
type StreamEvent struct {
	Type         EventType
	ThreadID     string // Meta, Final
	CheckpointID string // Meta: resume target; Final: the new checkpoint
	Text         string // Delta
	Response     string // Final: full response text
	Err          string // Error
}

// Stream runs one exchange and returns its event sequence. Context
// resolution matches Send. The stream is always well-terminated: any
// failure during iteration becomes a terminal error event instead of
// propagating to the caller.
func (s *Service) Stream(ctx context.Context, query, threadID, checkpointID string) <-chan StreamEvent {
	if threadID == "" {
		threadID = uuid.New().String()
	}
	ec := engine.Context{ThreadID: threadID, CheckpointID: checkpointID}

	out := make(chan StreamEvent, 16)
	go func() {
		defer close(out)

		// Meta goes out before the engine produces anything, so clients
		// learn their thread id even if generation stalls.
		out <- StreamEvent{Type: EventMeta, ThreadID: threadID, CheckpointID: checkpointID}

		chunks, err := s.engine.Stream(ctx, ec, query)
		if err != nil {
			s.logger.Error("engine stream failed to start", "thread_id", threadID, "error", err)
			out <- StreamEvent{Type: EventError, Err: err.Error()}
			return
		}

		em := delta.New()
		for chunk := range chunks {
			if chunk.Err != nil {
				s.logger.Error("engine stream failed", "thread_id", threadID, "error", chunk.Err)
				out <- StreamEvent{Type: EventError, Err: chunk.Err.Error()}
				return
			}
			if chunk.Role != store.RoleAssistant {
				continue
			}
			d, ok := em.Push(chunk.Text)
			if !ok {
				continue
			}

			select {
			case out <- StreamEvent{Type: EventDelta, Text: d}:
			case <-ctx.Done():
				// Client disconnected: stop pulling chunks. The engine
				// owns draining and persisting whatever it produced.
				go drain(chunks)
				out <- StreamEvent{Type: EventError, Err: ctx.Err().Error()}
				return
			}
		}

		// Zero assistant chunks is a valid, empty response.
		final := StreamEvent{Type: EventFinal, ThreadID: threadID, Response: em.Final()}
		if id, err := s.engine.ResolveCheckpoint(ctx, ec); err == nil {
			final.CheckpointID = id
		} else {
			// A missing checkpoint surfaces as an empty id, not a failure.
			s.logger.Warn("could not resolve checkpoint after stream", "thread_id", threadID, "error", err)
		}
		out <- final
	}()
	return out
}

func drain(ch <-chan engine.Chunk) {
	for range ch {
	}
}
