package journal

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"tidesync/internal/activity"
	"tidesync/internal/config"
	"tidesync/internal/status"
)

// Store manages journal persistence backed by SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const schema = `
CREATE TABLE IF NOT EXISTS activity_log (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    created_at TEXT NOT NULL,
    level TEXT NOT NULL,
    action TEXT NOT NULL,
    details TEXT NOT NULL DEFAULT '{}'
);
CREATE INDEX IF NOT EXISTS idx_activity_created ON activity_log(created_at);

CREATE TABLE IF NOT EXISTS transfer_history (
    id INTEGER PRIMARY KEY AUTOINCREMENT,
    transfer_id TEXT NOT NULL,
    filename TEXT NOT NULL,
    size INTEGER NOT NULL,
    target_path TEXT NOT NULL,
    state TEXT NOT NULL,
    error_message TEXT NOT NULL DEFAULT '',
    completed_at TEXT NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_transfer_completed ON transfer_history(completed_at);

CREATE TABLE IF NOT EXISTS meta (
    key TEXT PRIMARY KEY,
    value TEXT NOT NULL
);
`

// Open initializes or connects to the journal database.
func Open(cfg *config.Config) (*Store, error) {
	if err := cfg.EnsureDirectories(); err != nil {
		return nil, fmt.Errorf("ensure directories: %w", err)
	}

	dbPath := filepath.Join(cfg.Daemon.DataDir, "journal.db")
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: dbPath}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

func (s *Store) initSchema(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, schema); err != nil {
		return fmt.Errorf("init journal schema: %w", err)
	}
	return nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Path returns the on-disk database location.
func (s *Store) Path() string {
	return s.path
}

// Record implements activity.Logger.
func (s *Store) Record(event activity.Event) {
	s.insertEntry(event.Time, "info", event.Action, event.Fields)
}

// RecordError implements activity.ErrorSink.
func (s *Store) RecordError(message string) {
	s.insertEntry(time.Now().UTC(), "error", "error", map[string]any{"message": message})
}

func (s *Store) insertEntry(ts time.Time, level, action string, fields map[string]any) {
	details := "{}"
	if len(fields) > 0 {
		if encoded, err := json.Marshal(fields); err == nil {
			details = string(encoded)
		}
	}
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = s.execWithRetry(ctx,
		`INSERT INTO activity_log (created_at, level, action, details) VALUES (?, ?, ?, ?)`,
		ts.UTC().Format(time.RFC3339Nano), level, action, details,
	)
}

// Entry is one persisted activity record.
type Entry struct {
	ID        int64
	CreatedAt time.Time
	Level     string
	Action    string
	Details   map[string]any
}

// RecentEntries returns up to limit activity entries, newest first.
func (s *Store) RecentEntries(ctx context.Context, limit int) ([]Entry, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, created_at, level, action, details
         FROM activity_log ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query activity log: %w", err)
	}
	defer rows.Close()

	var entries []Entry
	for rows.Next() {
		var entry Entry
		var createdAt, details string
		if err := rows.Scan(&entry.ID, &createdAt, &entry.Level, &entry.Action, &details); err != nil {
			return nil, fmt.Errorf("scan activity entry: %w", err)
		}
		if ts, parseErr := time.Parse(time.RFC3339Nano, createdAt); parseErr == nil {
			entry.CreatedAt = ts
		}
		if details != "" {
			_ = json.Unmarshal([]byte(details), &entry.Details)
		}
		entries = append(entries, entry)
	}
	return entries, rows.Err()
}

// RecordTransfer appends a finalized file transfer to the durable history.
// In-progress transfers are not persisted.
func (s *Store) RecordTransfer(ctx context.Context, transfer status.FileTransfer) error {
	if transfer.Status == status.TransferInProgress {
		return nil
	}
	completed := time.Now().UTC()
	if transfer.CompletedAt != nil {
		completed = transfer.CompletedAt.UTC()
	}
	return s.execWithRetry(ctx,
		`INSERT INTO transfer_history (transfer_id, filename, size, target_path, state, error_message, completed_at)
         VALUES (?, ?, ?, ?, ?, ?, ?)`,
		transfer.ID, transfer.Filename, transfer.Size, transfer.TargetPath,
		string(transfer.Status), transfer.ErrorMessage, completed.Format(time.RFC3339Nano),
	)
}

// RecentTransfers returns up to limit finalized transfers, newest first.
func (s *Store) RecentTransfers(ctx context.Context, limit int) ([]status.FileTransfer, error) {
	if limit <= 0 {
		limit = status.RecentTransferLimit
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT transfer_id, filename, size, target_path, state, error_message, completed_at
         FROM transfer_history ORDER BY id DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("query transfer history: %w", err)
	}
	defer rows.Close()

	var transfers []status.FileTransfer
	for rows.Next() {
		var transfer status.FileTransfer
		var state, completedAt string
		if err := rows.Scan(&transfer.ID, &transfer.Filename, &transfer.Size,
			&transfer.TargetPath, &state, &transfer.ErrorMessage, &completedAt); err != nil {
			return nil, fmt.Errorf("scan transfer entry: %w", err)
		}
		transfer.Status = status.TransferStatus(state)
		if ts, parseErr := time.Parse(time.RFC3339Nano, completedAt); parseErr == nil {
			transfer.CompletedAt = &ts
		}
		transfers = append(transfers, transfer)
	}
	return transfers, rows.Err()
}

// SetLastSyncTime persists the completion time of the last successful sync.
func (s *Store) SetLastSyncTime(ctx context.Context, ts time.Time) error {
	return s.execWithRetry(ctx,
		`INSERT INTO meta (key, value) VALUES ('last_sync_time', ?)
         ON CONFLICT(key) DO UPDATE SET value = excluded.value`,
		ts.UTC().Format(time.RFC3339Nano),
	)
}

// LastSyncTime returns the persisted last successful sync time, if any.
func (s *Store) LastSyncTime(ctx context.Context) (time.Time, bool, error) {
	var value string
	err := s.db.QueryRowContext(ctx,
		`SELECT value FROM meta WHERE key = 'last_sync_time'`).Scan(&value)
	if errors.Is(err, sql.ErrNoRows) {
		return time.Time{}, false, nil
	}
	if err != nil {
		return time.Time{}, false, fmt.Errorf("query last sync time: %w", err)
	}
	ts, err := time.Parse(time.RFC3339Nano, value)
	if err != nil {
		return time.Time{}, false, fmt.Errorf("parse last sync time: %w", err)
	}
	return ts, true, nil
}
