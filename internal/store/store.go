// ABOUTME: Store interfaces and data types for strand-gateway persistence
// ABOUTME: Defines Checkpoint, ThreadMeta structs and the CheckpointLog/ThreadMetadata interfaces

package store

import (
	"context"
	"errors"
	"iter"
	"time"
)

// ErrNotFound is returned when a requested entity does not exist
var ErrNotFound = errors.New("not found")

// Checkpoint is an immutable snapshot of a thread's full message history
// at one point in time. Appending never modifies earlier checkpoints, so
// the log forms a branchable history rather than a single mutable cursor.
type Checkpoint struct {
	ID        string
	ThreadID  string
	ParentID  string // checkpoint this one was resumed from, empty for roots
	Messages  []Message
	CreatedAt time.Time
}

// CheckpointSummary is the lightweight per-checkpoint view returned by History.
type CheckpointSummary struct {
	ID           string
	ThreadID     string
	CreatedAt    time.Time
	MessageCount int
	LastRole     Role   // role of the newest message, empty when none
	LastPreview  string // text of the newest message
}

// ThreadMeta holds the human-facing attributes of a thread. The metadata
// table never decides whether a thread exists - the checkpoint log does.
type ThreadMeta struct {
	ThreadID  string    `json:"thread_id"`
	Title     string    `json:"title"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// CheckpointLog is the append-style log of conversation snapshots.
// It is the sole source of truth for which threads exist.
type CheckpointLog interface {
	// AppendCheckpoint stores a new checkpoint and returns its id.
	// parentID records the checkpoint the snapshot descends from (empty
	// for a thread's first checkpoint); the caller computes the snapshot,
	// the log only guarantees uniqueness and durability.
	AppendCheckpoint(ctx context.Context, threadID, parentID string, messages []Message) (string, error)

	// GetCheckpoint returns one checkpoint. An empty checkpointID selects
	// the thread's head (newest checkpoint). Returns ErrNotFound when the
	// thread or checkpoint is absent.
	GetCheckpoint(ctx context.Context, threadID, checkpointID string) (*Checkpoint, error)

	// History yields the thread's checkpoints newest-first. The sequence
	// is lazy and restartable: each range re-queries the log.
	History(ctx context.Context, threadID string) iter.Seq2[*CheckpointSummary, error]

	// ListThreadIDs returns the distinct thread ids present in the log.
	ListThreadIDs(ctx context.Context) ([]string, error)

	// DeleteThread removes every checkpoint and intermediate write record
	// for the thread. Returns false when the thread had no checkpoints.
	DeleteThread(ctx context.Context, threadID string) (bool, error)
}

// ThreadMetadata is the key-value store of thread titles and timestamps.
type ThreadMetadata interface {
	// UpsertThreadMeta inserts a record with fresh timestamps or updates
	// title and updated_at on an existing one. Idempotent.
	UpsertThreadMeta(ctx context.Context, threadID, title string) error

	// GetThreadMetas batch-fetches metadata for the given thread ids.
	// Ids with no stored record are simply absent from the result.
	GetThreadMetas(ctx context.Context, threadIDs []string) (map[string]*ThreadMeta, error)

	// DeleteThreadMeta removes the record if present; no-op otherwise.
	DeleteThreadMeta(ctx context.Context, threadID string) error
}

// Store combines both persistence interfaces plus resource cleanup.
// SQLiteStore implements all of it in a single struct.
type Store interface {
	CheckpointLog
	ThreadMetadata
	Close() error
}
