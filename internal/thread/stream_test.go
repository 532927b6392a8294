// ABOUTME: Tests for the streaming send path
// ABOUTME: Verifies the meta/delta/final/error protocol and delta reconstruction

package thread

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/strand-gateway/internal/engine"
	"github.com/2389/strand-gateway/internal/store"
)

func collect(ch <-chan StreamEvent) []StreamEvent {
	var events []StreamEvent
	for ev := range ch {
		events = append(events, ev)
	}
	return events
}

func TestService_Stream_EventSequence(t *testing.T) {
	eng := &mockEngine{chunks: []engine.Chunk{
		{Role: store.RoleAssistant, Text: "Hel"},
		{Role: store.RoleAssistant, Text: "Hello"},
		{Role: store.RoleAssistant, Text: "Hello world"},
	}}
	svc, _ := setupService(t, eng)

	events := collect(svc.Stream(context.Background(), "greet", "", ""))
	require.GreaterOrEqual(t, len(events), 3)

	assert.Equal(t, EventMeta, events[0].Type)
	assert.NotEmpty(t, events[0].ThreadID)

	final := events[len(events)-1]
	require.Equal(t, EventFinal, final.Type)
	assert.Equal(t, "Hello world", final.Response)
	assert.NotEmpty(t, final.CheckpointID)

	var sb strings.Builder
	for _, ev := range events[1 : len(events)-1] {
		require.Equal(t, EventDelta, ev.Type)
		sb.WriteString(ev.Text)
	}
	assert.Equal(t, final.Response, sb.String(), "concatenated deltas reconstruct the response")
}

func TestService_Stream_ResetChunk(t *testing.T) {
	eng := &mockEngine{chunks: []engine.Chunk{
		{Role: store.RoleAssistant, Text: "working on it"},
		{Role: store.RoleAssistant, Text: "final answer"}, // no shared prefix
	}}
	svc, _ := setupService(t, eng)

	events := collect(svc.Stream(context.Background(), "q", "", ""))
	final := events[len(events)-1]
	require.Equal(t, EventFinal, final.Type)

	var sb strings.Builder
	for _, ev := range events {
		if ev.Type == EventDelta {
			sb.WriteString(ev.Text)
		}
	}
	assert.Equal(t, final.Response, sb.String())
}

func TestService_Stream_FiltersNonAssistantChunks(t *testing.T) {
	eng := &mockEngine{chunks: []engine.Chunk{
		{Role: store.RoleHuman, Text: "echo of the question"},
		{Role: store.RoleTool, Text: `{"results":[]}`},
		{Role: store.RoleAssistant, Text: "actual reply"},
	}}
	svc, _ := setupService(t, eng)

	events := collect(svc.Stream(context.Background(), "q", "", ""))

	var deltas []string
	for _, ev := range events {
		if ev.Type == EventDelta {
			deltas = append(deltas, ev.Text)
		}
	}
	assert.Equal(t, []string{"actual reply"}, deltas)
}

func TestService_Stream_EmptyEngineOutput(t *testing.T) {
	eng := &mockEngine{chunks: []engine.Chunk{}, skipPersist: true}
	svc, _ := setupService(t, eng)

	events := collect(svc.Stream(context.Background(), "q", "t1", ""))
	require.Len(t, events, 2)
	assert.Equal(t, EventMeta, events[0].Type)

	final := events[1]
	assert.Equal(t, EventFinal, final.Type)
	assert.Empty(t, final.Response, "no assistant chunks means an empty response, not an error")
	assert.Empty(t, final.CheckpointID, "nothing was persisted")
}

func TestService_Stream_StartFailure(t *testing.T) {
	eng := &mockEngine{streamStartErr: errors.New("model unavailable")}
	svc, _ := setupService(t, eng)

	events := collect(svc.Stream(context.Background(), "q", "", ""))
	require.Len(t, events, 2)
	assert.Equal(t, EventMeta, events[0].Type)
	assert.Equal(t, EventError, events[1].Type)
	assert.Contains(t, events[1].Err, "model unavailable")
}

func TestService_Stream_MidStreamFailure(t *testing.T) {
	eng := &mockEngine{
		chunks: []engine.Chunk{
			{Role: store.RoleAssistant, Text: "partial"},
			{Err: errors.New("connection reset")},
		},
		skipPersist: true,
	}
	svc, _ := setupService(t, eng)

	events := collect(svc.Stream(context.Background(), "q", "", ""))
	terminal := events[len(events)-1]
	assert.Equal(t, EventError, terminal.Type)
	assert.Contains(t, terminal.Err, "connection reset")

	// The failure is terminal: no final event follows.
	for _, ev := range events[:len(events)-1] {
		assert.NotEqual(t, EventFinal, ev.Type)
	}
}

func TestService_Stream_MetaPrecedesEngineStart(t *testing.T) {
	eng := &mockEngine{streamStartErr: errors.New("boom")}
	svc, _ := setupService(t, eng)

	ch := svc.Stream(context.Background(), "q", "known-thread", "resume-point")
	first := <-ch
	assert.Equal(t, EventMeta, first.Type)
	assert.Equal(t, "known-thread", first.ThreadID)
	assert.Equal(t, "resume-point", first.CheckpointID)
	drainEvents(ch)
}

func drainEvents(ch <-chan StreamEvent) {
	for range ch {
	}
}
