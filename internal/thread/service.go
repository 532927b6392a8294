// ABOUTME: Thread lifecycle manager orchestrating the checkpoint log, metadata store and engine
// ABOUTME: The only component responsible for cross-store consistency

package thread

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"sort"

	"github.com/google/uuid"

	"github.com/2389/strand-gateway/internal/engine"
	"github.com/2389/strand-gateway/internal/store"
)

// Service composes the two stores and the execution engine into the
// thread lifecycle operations. All dependencies are injected at
// construction; there is no module-level state.
type Service struct {
	log    store.CheckpointLog
	meta   store.ThreadMetadata
	engine engine.Engine
	logger *slog.Logger
}

// New creates a thread Service.
func New(log store.CheckpointLog, meta store.ThreadMetadata, eng engine.Engine, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		log:    log,
		meta:   meta,
		engine: eng,
		logger: logger.With("component", "thread"),
	}
}

// SendResult is the outcome of a buffered send.
type SendResult struct {
	Response     string
	ThreadID     string
	CheckpointID string
}

// Send runs one buffered exchange. An empty threadID starts a fresh
// thread under a new id; the thread comes into existence with the
// engine's first checkpoint, so there is no separate create operation
// and no "thread not found" outcome. A non-empty checkpointID resumes
// from that checkpoint instead of the head (time travel).
func (s *Service) Send(ctx context.Context, query, threadID, checkpointID string) (*SendResult, error) {
	if threadID == "" {
		threadID = uuid.New().String()
	}
	ec := engine.Context{ThreadID: threadID, CheckpointID: checkpointID}

	text, newCheckpointID, err := s.engine.Invoke(ctx, ec, query)
	if err != nil {
		return nil, err
	}

	s.logger.Debug("send completed",
		"thread_id", threadID,
		"checkpoint_id", newCheckpointID,
		"resumed_from", checkpointID)
	return &SendResult{
		Response:     text,
		ThreadID:     threadID,
		CheckpointID: newCheckpointID,
	}, nil
}

// ListThreads returns metadata for every thread known to the checkpoint
// log, most recently updated first. Threads with no stored metadata get
// a transient title derived from the first human message of their head
// checkpoint; the derived title is not persisted.
func (s *Service) ListThreads(ctx context.Context) ([]*store.ThreadMeta, error) {
	ids, err := s.log.ListThreadIDs(ctx)
	if err != nil {
		return nil, err
	}

	metas, err := s.meta.GetThreadMetas(ctx, ids)
	if err != nil {
		return nil, err
	}

	threads := make([]*store.ThreadMeta, 0, len(ids))
	for _, id := range ids {
		if meta, ok := metas[id]; ok {
			threads = append(threads, meta)
			continue
		}
		threads = append(threads, s.deriveMeta(ctx, id))
	}

	sortThreads(threads)
	return threads, nil
}

// deriveMeta builds transient metadata for a thread with no stored
// record, titling it after the first human message of its head
// checkpoint. No human message means an empty title.
func (s *Service) deriveMeta(ctx context.Context, threadID string) *store.ThreadMeta {
	meta := &store.ThreadMeta{ThreadID: threadID}

	head, err := s.log.GetCheckpoint(ctx, threadID, "")
	if err != nil {
		// The thread was listed a moment ago; it may have been deleted
		// concurrently. List it untitled rather than failing the call.
		s.logger.Warn("head checkpoint unavailable for title derivation",
			"thread_id", threadID, "error", err)
		return meta
	}

	meta.CreatedAt = head.CreatedAt
	meta.UpdatedAt = head.CreatedAt
	for _, msg := range head.Messages {
		if msg.Role == store.RoleHuman {
			meta.Title = msg.Content.Text()
			break
		}
	}
	return meta
}

// Messages returns the message list of a thread's head checkpoint.
// An absent thread yields an empty list, not an error.
func (s *Service) Messages(ctx context.Context, threadID string) ([]store.Message, error) {
	head, err := s.log.GetCheckpoint(ctx, threadID, "")
	if errors.Is(err, store.ErrNotFound) {
		return []store.Message{}, nil
	}
	if err != nil {
		return nil, err
	}
	return head.Messages, nil
}

// History yields the thread's checkpoint summaries, newest first.
func (s *Service) History(ctx context.Context, threadID string) iter.Seq2[*store.CheckpointSummary, error] {
	return s.log.History(ctx, threadID)
}

// Rename sets a thread's title. Returns false when the checkpoint log
// holds nothing for the thread: renaming cannot create a thread.
func (s *Service) Rename(ctx context.Context, threadID, title string) (bool, error) {
	if _, err := s.log.GetCheckpoint(ctx, threadID, ""); err != nil {
		if errors.Is(err, store.ErrNotFound) {
			return false, nil
		}
		return false, err
	}

	if err := s.meta.UpsertThreadMeta(ctx, threadID, title); err != nil {
		return false, err
	}
	s.logger.Debug("thread renamed", "thread_id", threadID)
	return true, nil
}

// Delete removes a thread's checkpoints, then best-effort removes its
// metadata. Returns false when the log had nothing to delete. The two
// deletes are not atomic: a crash in between leaves an orphaned
// metadata record, which later Rename/List calls ignore because the
// checkpoint log decides existence.
func (s *Service) Delete(ctx context.Context, threadID string) (bool, error) {
	deleted, err := s.log.DeleteThread(ctx, threadID)
	if err != nil {
		return false, err
	}
	if !deleted {
		return false, nil
	}

	if err := s.meta.DeleteThreadMeta(ctx, threadID); err != nil {
		// Metadata is advisory; the thread is gone either way.
		s.logger.Warn("failed to delete thread metadata", "thread_id", threadID, "error", err)
	}

	s.logger.Debug("thread deleted", "thread_id", threadID)
	return true, nil
}

// sortThreads orders by updated_at descending, thread id as tiebreak.
func sortThreads(threads []*store.ThreadMeta) {
	sort.Slice(threads, func(i, j int) bool {
		a, b := threads[i], threads[j]
		if !a.UpdatedAt.Equal(b.UpdatedAt) {
			return a.UpdatedAt.After(b.UpdatedAt)
		}
		return a.ThreadID < b.ThreadID
	})
}
