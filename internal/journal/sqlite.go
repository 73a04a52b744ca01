package journal

import (
	"database/sql"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteStore implements Store using SQLite
type SQLiteStore struct {
	db      *sql.DB
	closed  atomic.Bool
	writeMu sync.Mutex
}

// NewSQLiteStore creates a new SQLite history store
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	// Configure SQLite for concurrent access
	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_synchronous=NORMAL&_cache_size=2000&_busy_timeout=60000", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	db.SetMaxOpenConns(10)
	db.SetMaxIdleConns(4)
	db.SetConnMaxLifetime(10 * time.Minute)

	store := &SQLiteStore{db: db}
	if err := store.createTables(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return store, nil
}

func (s *SQLiteStore) createTables() error {
	query := `
	CREATE TABLE IF NOT EXISTS batches (
		id TEXT PRIMARY KEY,
		root TEXT NOT NULL,
		prefix TEXT NOT NULL,
		total_files INTEGER NOT NULL,
		uploaded_files INTEGER NOT NULL,
		bytes INTEGER NOT NULL,
		outcome TEXT NOT NULL,
		error TEXT,
		started_at DATETIME NOT NULL,
		finished_at DATETIME NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_batches_finished_at ON batches(finished_at);
	CREATE INDEX IF NOT EXISTS idx_batches_outcome ON batches(outcome);
	`

	_, err := s.db.Exec(query)
	return err
}

// SaveBatch saves or updates a batch record with retry mechanism
func (s *SQLiteStore) SaveBatch(record *BatchRecord) error {
	if s.closed.Load() {
		return fmt.Errorf("journal store is closed")
	}

	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("database connection is not available: %w", err)
	}

	// Serialize writes to avoid SQLITE_BUSY from multiple concurrent writers
	s.writeMu.Lock()
	defer s.writeMu.Unlock()

	return s.retryOnBusy(func() error {
		return s.saveBatchWithTransaction(record)
	})
}

// saveBatchWithTransaction performs the actual save operation in a transaction
func (s *SQLiteStore) saveBatchWithTransaction(record *BatchRecord) error {
	tx, err := s.db.Begin()
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback() // This will be ignored if Commit() succeeds

	// Use UPSERT instead of DELETE+INSERT or REPLACE which increases lock contention
	query := `
    INSERT INTO batches
    (id, root, prefix, total_files, uploaded_files, bytes, outcome, error, started_at, finished_at)
    VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
    ON CONFLICT(id) DO UPDATE SET
        root = excluded.root,
        prefix = excluded.prefix,
        total_files = excluded.total_files,
        uploaded_files = excluded.uploaded_files,
        bytes = excluded.bytes,
        outcome = excluded.outcome,
        error = excluded.error,
        started_at = excluded.started_at,
        finished_at = excluded.finished_at
    `

	_, err = tx.Exec(query,
		record.ID,
		record.Root,
		record.Prefix,
		record.TotalFiles,
		record.Uploaded,
		record.Bytes,
		record.Outcome,
		record.Error,
		record.StartedAt,
		record.FinishedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to execute insert: %w", err)
	}

	return tx.Commit()
}

// ListRecent returns the most recently finished batches, newest first
func (s *SQLiteStore) ListRecent(limit int) ([]*BatchRecord, error) {
	if s.closed.Load() {
		return nil, fmt.Errorf("journal store is closed")
	}
	if limit <= 0 {
		limit = 20
	}

	query := `
	SELECT id, root, prefix, total_files, uploaded_files, bytes, outcome, error, started_at, finished_at
	FROM batches
	ORDER BY finished_at DESC
	LIMIT ?
	`

	rows, err := s.db.Query(query, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []*BatchRecord

	for rows.Next() {
		var record BatchRecord
		var errText sql.NullString

		err := rows.Scan(
			&record.ID,
			&record.Root,
			&record.Prefix,
			&record.TotalFiles,
			&record.Uploaded,
			&record.Bytes,
			&record.Outcome,
			&errText,
			&record.StartedAt,
			&record.FinishedAt,
		)
		if err != nil {
			return nil, err
		}

		if errText.Valid {
			record.Error = errText.String
		}

		records = append(records, &record)
	}

	return records, rows.Err()
}

// retryOnBusy retries the operation if SQLite is busy
func (s *SQLiteStore) retryOnBusy(operation func() error) error {
	maxRetries := 10
	baseDelay := 50 * time.Millisecond

	for attempt := 0; attempt < maxRetries; attempt++ {
		err := operation()
		if err == nil {
			return nil
		}

		if isSQLiteBusyError(err) {
			if attempt < maxRetries-1 {
				// Exponential backoff with a small additive jitter
				delay := baseDelay * time.Duration(1<<uint(attempt))
				jitter := time.Duration(attempt*10) * time.Millisecond
				time.Sleep(delay + jitter)
				continue
			}
		}

		// Return the error if it's not a busy error or we've exhausted retries
		return err
	}

	return nil
}

// isSQLiteBusyError checks if the error is a SQLite busy error
func isSQLiteBusyError(err error) bool {
	if err == nil {
		return false
	}
	errorStr := err.Error()
	return strings.Contains(errorStr, "database is locked") ||
		strings.Contains(errorStr, "SQLITE_BUSY") ||
		strings.Contains(errorStr, "database is closed")
}

// Close closes the database connection
func (s *SQLiteStore) Close() error {
	s.closed.Store(true)
	return s.db.Close()
}
