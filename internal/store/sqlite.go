// ABOUTME: SQLite implementation of CheckpointLog and ThreadMetadata using modernc.org/sqlite
// ABOUTME: One database file holds both tables; schema is created automatically on open

package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"iter"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

const previewRunes = 120

// SQLiteStore implements the Store interface using SQLite
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

// NewSQLiteStore creates a new SQLite store at the given path.
// The schema is automatically created if it doesn't exist.
// Parent directories are created if needed.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	logger := slog.Default().With("component", "store")

	// Ensure parent directory exists
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating database directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	// Enable WAL mode for better concurrent performance
	if _, err := db.Exec("PRAGMA journal_mode=WAL"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling WAL mode: %w", err)
	}

	if _, err := db.Exec("PRAGMA foreign_keys=ON"); err != nil {
		db.Close()
		return nil, fmt.Errorf("enabling foreign keys: %w", err)
	}

	s := &SQLiteStore{
		db:     db,
		logger: logger,
	}

	if err := s.createSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("creating schema: %w", err)
	}

	logger.Info("SQLite store initialized", "path", path)
	return s, nil
}

// createSchema creates the database tables if they don't exist.
// checkpoints and thread_metadata deliberately have no foreign keys
// between them: the checkpoint log alone decides thread existence.
func (s *SQLiteStore) createSchema() error {
	schema := `
		CREATE TABLE IF NOT EXISTS checkpoints (
			id TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			parent_id TEXT,
			messages TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			seq INTEGER PRIMARY KEY AUTOINCREMENT
		);

		CREATE UNIQUE INDEX IF NOT EXISTS idx_checkpoints_thread_id
			ON checkpoints(thread_id, id);

		CREATE INDEX IF NOT EXISTS idx_checkpoints_thread_seq
			ON checkpoints(thread_id, seq);

		CREATE TABLE IF NOT EXISTS checkpoint_writes (
			checkpoint_id TEXT NOT NULL,
			thread_id TEXT NOT NULL,
			idx INTEGER NOT NULL,
			payload TEXT,
			created_at DATETIME NOT NULL,
			PRIMARY KEY (checkpoint_id, idx)
		);

		CREATE INDEX IF NOT EXISTS idx_writes_thread
			ON checkpoint_writes(thread_id);

		CREATE TABLE IF NOT EXISTS thread_metadata (
			thread_id TEXT PRIMARY KEY,
			title TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			updated_at DATETIME NOT NULL
		);
	`

	if _, err := s.db.Exec(schema); err != nil {
		return fmt.Errorf("executing schema: %w", err)
	}
	return nil
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.logger.Info("closing SQLite store")
	return s.db.Close()
}

// AppendCheckpoint stores a new checkpoint and its intermediate write
// record. The monotonic seq column gives within-thread creation order
// even when wall clocks collide.
func (s *SQLiteStore) AppendCheckpoint(ctx context.Context, threadID, parentID string, messages []Message) (string, error) {
	if threadID == "" {
		return "", fmt.Errorf("thread id is required")
	}

	data, err := json.Marshal(messages)
	if err != nil {
		return "", fmt.Errorf("encoding messages: %w", err)
	}

	id := uuid.New().String()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var parent any
	if parentID != "" {
		parent = parentID
	}
	_, err = tx.ExecContext(ctx, `
		INSERT INTO checkpoints (id, thread_id, parent_id, messages, created_at)
		VALUES (?, ?, ?, ?, ?)
	`, id, threadID, parent, string(data), now)
	if err != nil {
		return "", fmt.Errorf("inserting checkpoint: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO checkpoint_writes (checkpoint_id, thread_id, idx, payload, created_at)
		VALUES (?, ?, 0, ?, ?)
	`, id, threadID, string(data), now)
	if err != nil {
		return "", fmt.Errorf("inserting checkpoint write: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("committing checkpoint: %w", err)
	}

	s.logger.Debug("checkpoint appended",
		"thread_id", threadID,
		"checkpoint_id", id,
		"parent_id", parentID,
		"messages", len(messages))
	return id, nil
}

// GetCheckpoint retrieves one checkpoint, or the thread head when
// checkpointID is empty. Returns ErrNotFound if absent.
func (s *SQLiteStore) GetCheckpoint(ctx context.Context, threadID, checkpointID string) (*Checkpoint, error) {
	query := `
		SELECT id, thread_id, parent_id, messages, created_at
		FROM checkpoints
		WHERE thread_id = ?
	`
	args := []any{threadID}
	if checkpointID != "" {
		query += " AND id = ?"
		args = append(args, checkpointID)
	}
	query += " ORDER BY seq DESC LIMIT 1"

	row := s.db.QueryRowContext(ctx, query, args...)
	return scanCheckpoint(row)
}

func scanCheckpoint(row *sql.Row) (*Checkpoint, error) {
	var cp Checkpoint
	var parent sql.NullString
	var messagesJSON, createdAtStr string

	err := row.Scan(&cp.ID, &cp.ThreadID, &parent, &messagesJSON, &createdAtStr)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("querying checkpoint: %w", err)
	}

	cp.ParentID = parent.String
	if err := json.Unmarshal([]byte(messagesJSON), &cp.Messages); err != nil {
		return nil, fmt.Errorf("decoding messages: %w", err)
	}
	cp.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr)
	if err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	return &cp, nil
}

// History yields checkpoint summaries newest-first. Each range over the
// returned sequence runs a fresh query, so the sequence is restartable.
func (s *SQLiteStore) History(ctx context.Context, threadID string) iter.Seq2[*CheckpointSummary, error] {
	return func(yield func(*CheckpointSummary, error) bool) {
		rows, err := s.db.QueryContext(ctx, `
			SELECT id, thread_id, messages, created_at
			FROM checkpoints
			WHERE thread_id = ?
			ORDER BY seq DESC
		`, threadID)
		if err != nil {
			yield(nil, fmt.Errorf("querying history: %w", err))
			return
		}
		defer rows.Close()

		for rows.Next() {
			var id, tid, messagesJSON, createdAtStr string
			if err := rows.Scan(&id, &tid, &messagesJSON, &createdAtStr); err != nil {
				yield(nil, fmt.Errorf("scanning history row: %w", err))
				return
			}

			var messages []Message
			if err := json.Unmarshal([]byte(messagesJSON), &messages); err != nil {
				yield(nil, fmt.Errorf("decoding messages: %w", err))
				return
			}
			createdAt, err := time.Parse(time.RFC3339Nano, createdAtStr)
			if err != nil {
				yield(nil, fmt.Errorf("parsing created_at: %w", err))
				return
			}

			summary := &CheckpointSummary{
				ID:           id,
				ThreadID:     tid,
				CreatedAt:    createdAt,
				MessageCount: len(messages),
			}
			if n := len(messages); n > 0 {
				last := messages[n-1]
				summary.LastRole = last.Role
				summary.LastPreview = last.Preview(previewRunes)
			}

			if !yield(summary, nil) {
				return
			}
		}
		if err := rows.Err(); err != nil {
			yield(nil, fmt.Errorf("iterating history: %w", err))
		}
	}
}

// ListThreadIDs returns the distinct thread ids derived from stored
// checkpoints. There is no separate thread index.
func (s *SQLiteStore) ListThreadIDs(ctx context.Context) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT DISTINCT thread_id FROM checkpoints`)
	if err != nil {
		return nil, fmt.Errorf("querying thread ids: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning thread id: %w", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating thread ids: %w", err)
	}
	return ids, nil
}

// DeleteThread removes all checkpoints and write records for a thread.
// Returns false when the thread had no checkpoints.
func (s *SQLiteStore) DeleteThread(ctx context.Context, threadID string) (bool, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx, `DELETE FROM checkpoints WHERE thread_id = ?`, threadID)
	if err != nil {
		return false, fmt.Errorf("deleting checkpoints: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("checking deleted rows: %w", err)
	}
	if affected == 0 {
		return false, nil
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM checkpoint_writes WHERE thread_id = ?`, threadID); err != nil {
		return false, fmt.Errorf("deleting checkpoint writes: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return false, fmt.Errorf("committing delete: %w", err)
	}

	s.logger.Debug("thread checkpoints deleted", "thread_id", threadID, "checkpoints", affected)
	return true, nil
}

// UpsertThreadMeta inserts or updates a thread's metadata record.
func (s *SQLiteStore) UpsertThreadMeta(ctx context.Context, threadID, title string) error {
	now := time.Now().UTC().Format(time.RFC3339Nano)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO thread_metadata (thread_id, title, created_at, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(thread_id) DO UPDATE SET title = excluded.title, updated_at = excluded.updated_at
	`, threadID, title, now, now)
	if err != nil {
		return fmt.Errorf("upserting thread metadata: %w", err)
	}

	s.logger.Debug("thread metadata upserted", "thread_id", threadID)
	return nil
}

// GetThreadMetas batch-fetches metadata records for the given ids.
func (s *SQLiteStore) GetThreadMetas(ctx context.Context, threadIDs []string) (map[string]*ThreadMeta, error) {
	result := make(map[string]*ThreadMeta, len(threadIDs))
	if len(threadIDs) == 0 {
		return result, nil
	}

	query := `
		SELECT thread_id, title, created_at, updated_at
		FROM thread_metadata
		WHERE thread_id IN (?` + repeatPlaceholder(len(threadIDs)-1) + `)
	`
	args := make([]any, len(threadIDs))
	for i, id := range threadIDs {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying thread metadata: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var meta ThreadMeta
		var createdAtStr, updatedAtStr string
		if err := rows.Scan(&meta.ThreadID, &meta.Title, &createdAtStr, &updatedAtStr); err != nil {
			return nil, fmt.Errorf("scanning thread metadata: %w", err)
		}
		if meta.CreatedAt, err = time.Parse(time.RFC3339Nano, createdAtStr); err != nil {
			return nil, fmt.Errorf("parsing created_at: %w", err)
		}
		if meta.UpdatedAt, err = time.Parse(time.RFC3339Nano, updatedAtStr); err != nil {
			return nil, fmt.Errorf("parsing updated_at: %w", err)
		}
		result[meta.ThreadID] = &meta
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating thread metadata: %w", err)
	}
	return result, nil
}

// DeleteThreadMeta removes a metadata record; absent records are a no-op.
func (s *SQLiteStore) DeleteThreadMeta(ctx context.Context, threadID string) error {
	if _, err := s.db.ExecContext(ctx, `DELETE FROM thread_metadata WHERE thread_id = ?`, threadID); err != nil {
		return fmt.Errorf("deleting thread metadata: %w", err)
	}
	return nil
}

// repeatPlaceholder returns n occurrences of ", ?" for IN clauses.
func repeatPlaceholder(n int) string {
	out := make([]byte, 0, n*3)
	for range n {
		out = append(out, ", ?"...)
	}
	return string(out)
}
