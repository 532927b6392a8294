// Package store provides persistent storage for strand-gateway using SQLite.
//
// # Architecture
//
// Two interfaces cover the two durable stores:
//
//   - CheckpointLog: append-style log of conversation snapshots, keyed by
//     (thread, checkpoint). The only source of truth for thread existence.
//   - ThreadMetadata: human-facing thread attributes (title, timestamps).
//
// SQLiteStore implements both in a single struct backed by one database
// file. The two tables carry no foreign keys between them; keeping them
// consistent is the thread lifecycle manager's job, not the schema's.
//
// # Data Models
//
//   - Checkpoint: immutable snapshot of a thread's full message history.
//     Checkpoints may name a parent checkpoint, forming branches; resuming
//     from an old checkpoint appends a new head without touching history.
//   - Message: role (human/assistant/tool) plus content that is either a
//     plain string or a sequence of typed blocks. Content.Text() is the
//     single total extraction path; non-text blocks are ignored.
//   - ThreadMeta: title with created/updated timestamps.
//
// # SQLite Configuration
//
// The store uses SQLite with WAL mode for concurrent reads:
//
//	PRAGMA journal_mode=WAL;
//	PRAGMA foreign_keys=ON;
//
// Concurrent request handlers share one store; serialization happens at
// the SQLite layer. Use NewSQLiteStore with a t.TempDir() path in tests.
//
// # Error Handling
//
// ErrNotFound reports an absent thread or checkpoint. All methods accept
// context.Context for cancellation support.
package store
