// ABOUTME: Tests for the thread lifecycle manager
// ABOUTME: Uses a scripted engine over a real SQLite store

package thread

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/2389/strand-gateway/internal/engine"
	"github.com/2389/strand-gateway/internal/store"
)

// mockEngine implements engine.Engine with scripted replies. Like the
// real adapter it persists each completed exchange to the checkpoint log.
type mockEngine struct {
	log   store.CheckpointLog
	reply string

	chunks         []engine.Chunk // overrides reply-derived chunks when set
	invokeErr      error
	streamStartErr error
	skipPersist    bool

	contexts []engine.Context
}

func (m *mockEngine) Invoke(ctx context.Context, ec engine.Context, query string) (string, string, error) {
	m.contexts = append(m.contexts, ec)
	if m.invokeErr != nil {
		return "", "", m.invokeErr
	}
	id, err := m.persist(ctx, ec, query, m.reply)
	if err != nil {
		return "", "", err
	}
	return m.reply, id, nil
}

func (m *mockEngine) Stream(ctx context.Context, ec engine.Context, query string) (<-chan engine.Chunk, error) {
	m.contexts = append(m.contexts, ec)
	if m.streamStartErr != nil {
		return nil, m.streamStartErr
	}

	chunks := m.chunks
	if chunks == nil {
		chunks = []engine.Chunk{{Role: store.RoleAssistant, Text: m.reply}}
	}

	ch := make(chan engine.Chunk, len(chunks))
	for _, c := range chunks {
		ch <- c
	}
	close(ch)

	if !m.skipPersist {
		final := ""
		for _, c := range chunks {
			if c.Role == store.RoleAssistant {
				final = c.Text
			}
		}
		if _, err := m.persist(ctx, ec, query, final); err != nil {
			return nil, err
		}
	}
	return ch, nil
}

func (m *mockEngine) ResolveCheckpoint(ctx context.Context, ec engine.Context) (string, error) {
	cp, err := m.log.GetCheckpoint(ctx, ec.ThreadID, "")
	if err != nil {
		return "", err
	}
	return cp.ID, nil
}

func (m *mockEngine) persist(ctx context.Context, ec engine.Context, query, reply string) (string, error) {
	var snapshot []store.Message
	parent := ""
	if cp, err := m.log.GetCheckpoint(ctx, ec.ThreadID, ec.CheckpointID); err == nil {
		snapshot = cp.Messages
		parent = cp.ID
	}
	msgs := append(append([]store.Message{}, snapshot...),
		store.Message{Role: store.RoleHuman, Content: store.TextContent(query)},
		store.Message{Role: store.RoleAssistant, Content: store.TextContent(reply)},
	)
	return m.log.AppendCheckpoint(ctx, ec.ThreadID, parent, msgs)
}

func setupService(t *testing.T, eng *mockEngine) (*Service, *store.SQLiteStore) {
	t.Helper()
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	if eng.log == nil {
		eng.log = s
	}
	return New(s, s, eng, nil), s
}

func TestService_Send_FreshThread(t *testing.T) {
	eng := &mockEngine{reply: "hello back"}
	svc, _ := setupService(t, eng)
	ctx := context.Background()

	res, err := svc.Send(ctx, "hello", "", "")
	require.NoError(t, err)
	assert.Equal(t, "hello back", res.Response)
	assert.NotEmpty(t, res.ThreadID)
	assert.NotEmpty(t, res.CheckpointID)

	// The generated id parses as a UUID.
	require.Len(t, res.ThreadID, 36)
}

func TestService_Send_ContinuesThread(t *testing.T) {
	eng := &mockEngine{reply: "Alice"}
	svc, s := setupService(t, eng)
	ctx := context.Background()

	first, err := svc.Send(ctx, "My name is Alice.", "", "")
	require.NoError(t, err)

	second, err := svc.Send(ctx, "What is my name?", first.ThreadID, "")
	require.NoError(t, err)
	assert.Equal(t, first.ThreadID, second.ThreadID)
	assert.NotEqual(t, first.CheckpointID, second.CheckpointID)

	// The second exchange descends from the first.
	cp, err := s.GetCheckpoint(ctx, second.ThreadID, second.CheckpointID)
	require.NoError(t, err)
	assert.Equal(t, first.CheckpointID, cp.ParentID)
	assert.Len(t, cp.Messages, 4)
}

func TestService_Send_TimeTravel(t *testing.T) {
	eng := &mockEngine{reply: "blue"}
	svc, s := setupService(t, eng)
	ctx := context.Background()

	c1, err := svc.Send(ctx, "My favorite color is blue.", "t1", "")
	require.NoError(t, err)
	c2, err := svc.Send(ctx, "Unrelated message.", "t1", "")
	require.NoError(t, err)

	fork, err := svc.Send(ctx, "What is my favorite color?", "t1", c1.CheckpointID)
	require.NoError(t, err)

	forkCP, err := s.GetCheckpoint(ctx, "t1", fork.CheckpointID)
	require.NoError(t, err)
	assert.Equal(t, c1.CheckpointID, forkCP.ParentID)

	// The sibling branch is still retrievable, unchanged.
	sibling, err := s.GetCheckpoint(ctx, "t1", c2.CheckpointID)
	require.NoError(t, err)
	assert.Equal(t, "Unrelated message.", sibling.Messages[len(sibling.Messages)-2].Content.Text())
}

func TestService_Send_EngineFailurePropagates(t *testing.T) {
	eng := &mockEngine{invokeErr: engine.ErrEngineFailure}
	svc, _ := setupService(t, eng)

	_, err := svc.Send(context.Background(), "q", "", "")
	assert.ErrorIs(t, err, engine.ErrEngineFailure)
}

func TestService_ThreadsAreIsolated(t *testing.T) {
	engA := &mockEngine{reply: "Bob"}
	svc, s := setupService(t, engA)
	ctx := context.Background()

	a, err := svc.Send(ctx, "My name is Bob.", "", "")
	require.NoError(t, err)

	engA.reply = "Carol"
	b, err := svc.Send(ctx, "My name is Carol.", "", "")
	require.NoError(t, err)
	require.NotEqual(t, a.ThreadID, b.ThreadID)

	headA, err := s.GetCheckpoint(ctx, a.ThreadID, "")
	require.NoError(t, err)
	headB, err := s.GetCheckpoint(ctx, b.ThreadID, "")
	require.NoError(t, err)
	assert.Equal(t, "Bob", headA.Messages[1].Content.Text())
	assert.Equal(t, "Carol", headB.Messages[1].Content.Text())
}

func TestService_ListThreads_StoredAndDerivedTitles(t *testing.T) {
	eng := &mockEngine{reply: "answer"}
	svc, s := setupService(t, eng)
	ctx := context.Background()

	res, err := svc.Send(ctx, "What is the weather like?", "", "")
	require.NoError(t, err)

	// A second thread with an explicit title.
	res2, err := svc.Send(ctx, "Other question", "", "")
	require.NoError(t, err)
	require.NoError(t, s.UpsertThreadMeta(ctx, res2.ThreadID, "Weather planning"))

	threads, err := svc.ListThreads(ctx)
	require.NoError(t, err)
	require.Len(t, threads, 2)

	byID := map[string]*store.ThreadMeta{}
	for _, th := range threads {
		byID[th.ThreadID] = th
	}
	assert.Equal(t, "What is the weather like?", byID[res.ThreadID].Title, "derived from first human message")
	assert.Equal(t, "Weather planning", byID[res2.ThreadID].Title)
}

func TestService_ListThreads_DerivedTitleNotPersisted(t *testing.T) {
	eng := &mockEngine{reply: "x"}
	svc, s := setupService(t, eng)
	ctx := context.Background()

	res, err := svc.Send(ctx, "ephemeral title", "", "")
	require.NoError(t, err)

	_, err = svc.ListThreads(ctx)
	require.NoError(t, err)

	metas, err := s.GetThreadMetas(ctx, []string{res.ThreadID})
	require.NoError(t, err)
	assert.Empty(t, metas, "listing must not write metadata")
}

func TestService_ListThreads_NoHumanMessage(t *testing.T) {
	eng := &mockEngine{}
	svc, s := setupService(t, eng)
	ctx := context.Background()

	// A checkpoint that contains only an assistant message.
	_, err := s.AppendCheckpoint(ctx, "odd-thread", "", []store.Message{
		{Role: store.RoleAssistant, Content: store.TextContent("unprompted")},
	})
	require.NoError(t, err)

	threads, err := svc.ListThreads(ctx)
	require.NoError(t, err)
	require.Len(t, threads, 1)
	assert.Equal(t, "odd-thread", threads[0].ThreadID)
	assert.Empty(t, threads[0].Title)
}

func TestService_Messages(t *testing.T) {
	eng := &mockEngine{reply: "pong"}
	svc, _ := setupService(t, eng)
	ctx := context.Background()

	res, err := svc.Send(ctx, "ping", "", "")
	require.NoError(t, err)

	msgs, err := svc.Messages(ctx, res.ThreadID)
	require.NoError(t, err)
	require.Len(t, msgs, 2)
	assert.Equal(t, "ping", msgs[0].Content.Text())

	// Absent thread: empty list, no error.
	msgs, err = svc.Messages(ctx, "no-such-thread")
	require.NoError(t, err)
	assert.Empty(t, msgs)
}

func TestService_Rename(t *testing.T) {
	eng := &mockEngine{reply: "ok"}
	svc, s := setupService(t, eng)
	ctx := context.Background()

	ok, err := svc.Rename(ctx, "missing", "New title")
	require.NoError(t, err)
	assert.False(t, ok)

	res, err := svc.Send(ctx, "hello", "", "")
	require.NoError(t, err)

	ok, err = svc.Rename(ctx, res.ThreadID, "My thread")
	require.NoError(t, err)
	assert.True(t, ok)

	// Idempotent: same title again succeeds and keeps the title stable.
	ok, err = svc.Rename(ctx, res.ThreadID, "My thread")
	require.NoError(t, err)
	assert.True(t, ok)

	metas, err := s.GetThreadMetas(ctx, []string{res.ThreadID})
	require.NoError(t, err)
	require.Contains(t, metas, res.ThreadID)
	meta := metas[res.ThreadID]
	assert.Equal(t, "My thread", meta.Title)
	assert.False(t, meta.UpdatedAt.Before(meta.CreatedAt))
}

func TestService_Delete(t *testing.T) {
	eng := &mockEngine{reply: "ok"}
	svc, _ := setupService(t, eng)
	ctx := context.Background()

	res, err := svc.Send(ctx, "hello", "", "")
	require.NoError(t, err)
	_, err = svc.Rename(ctx, res.ThreadID, "Named")
	require.NoError(t, err)

	ok, err := svc.Delete(ctx, res.ThreadID)
	require.NoError(t, err)
	assert.True(t, ok)

	threads, err := svc.ListThreads(ctx)
	require.NoError(t, err)
	assert.Empty(t, threads)

	msgs, err := svc.Messages(ctx, res.ThreadID)
	require.NoError(t, err)
	assert.Empty(t, msgs)

	// Second delete has nothing left to remove.
	ok, err = svc.Delete(ctx, res.ThreadID)
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestService_History(t *testing.T) {
	eng := &mockEngine{reply: "r"}
	svc, _ := setupService(t, eng)
	ctx := context.Background()

	res, err := svc.Send(ctx, "first", "", "")
	require.NoError(t, err)
	second, err := svc.Send(ctx, "second", res.ThreadID, "")
	require.NoError(t, err)

	var ids []string
	for summary, err := range svc.History(ctx, res.ThreadID) {
		require.NoError(t, err)
		ids = append(ids, summary.ID)
	}
	require.Len(t, ids, 2)
	assert.Equal(t, second.CheckpointID, ids[0], "newest first")
	assert.Equal(t, res.CheckpointID, ids[1])
}

func TestService_Delete_MetadataErrorIsNotFatal(t *testing.T) {
	eng := &mockEngine{reply: "ok"}
	s, err := store.NewSQLiteStore(filepath.Join(t.TempDir(), "test.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	eng.log = s

	svc := New(s, failingMeta{}, eng, nil)
	ctx := context.Background()

	res, err := svc.Send(ctx, "hello", "", "")
	require.NoError(t, err)

	ok, err := svc.Delete(ctx, res.ThreadID)
	require.NoError(t, err)
	assert.True(t, ok, "checkpoint delete succeeded; metadata failure is best-effort")
}

// failingMeta always errors, standing in for a broken metadata store.
type failingMeta struct{}

func (failingMeta) UpsertThreadMeta(ctx context.Context, threadID, title string) error {
	return errors.New("metadata store down")
}

func (failingMeta) GetThreadMetas(ctx context.Context, threadIDs []string) (map[string]*store.ThreadMeta, error) {
	return nil, errors.New("metadata store down")
}

func (failingMeta) DeleteThreadMeta(ctx context.Context, threadID string) error {
	return errors.New("metadata store down")
}
