package storage

import (
	"context"
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "modernc.org/sqlite" // SQLite driver
)

// SQLiteBackend implements Backend using SQLite for persistence. It keeps
// quarantine decisions and failure counters across restarts so a freshly
// started gateway does not hammer credentials it already knows are broken.
//
// The database runs in WAL mode with a single writer connection, which is
// sufficient: key-state writes are small and happen only on status
// transitions and successful calls.
type SQLiteBackend struct {
	db        *sql.DB
	dbPath    string
	mu        sync.RWMutex
	closeOnce sync.Once

	saveStmt    *sql.Stmt
	loadStmt    *sql.Stmt
	loadAllStmt *sql.Stmt
	deleteStmt  *sql.Stmt
}

// NewSQLiteBackend opens (creating if necessary) a key-state database at the
// given path.
func NewSQLiteBackend(dbPath string) (*SQLiteBackend, error) {
	if dbPath == "" {
		return nil, fmt.Errorf("db path cannot be empty")
	}

	dsn := fmt.Sprintf("%s?_journal_mode=WAL&_busy_timeout=5000&_synchronous=NORMAL", dbPath)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite supports a single writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	backend := &SQLiteBackend{
		db:     db,
		dbPath: dbPath,
	}

	if err := backend.initSchema(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	if err := backend.prepareStatements(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to prepare statements: %w", err)
	}

	return backend, nil
}

// initSchema creates the key_states table if it does not exist.
func (s *SQLiteBackend) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS key_states (
		identifier           TEXT PRIMARY KEY,
		status               TEXT NOT NULL,
		consecutive_failures INTEGER NOT NULL DEFAULT 0,
		disabled_at          INTEGER NOT NULL DEFAULT 0,
		last_used_at         INTEGER NOT NULL DEFAULT 0,
		updated_at           INTEGER NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_key_states_status ON key_states(status);
	`
	_, err := s.db.Exec(schema)
	return err
}

// prepareStatements pre-compiles the statements used on the hot path.
func (s *SQLiteBackend) prepareStatements() error {
	var err error

	s.saveStmt, err = s.db.Prepare(`
		INSERT INTO key_states (identifier, status, consecutive_failures, disabled_at, last_used_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(identifier) DO UPDATE SET
			status = excluded.status,
			consecutive_failures = excluded.consecutive_failures,
			disabled_at = excluded.disabled_at,
			last_used_at = excluded.last_used_at,
			updated_at = excluded.updated_at`)
	if err != nil {
		return fmt.Errorf("prepare save: %w", err)
	}

	s.loadStmt, err = s.db.Prepare(`
		SELECT identifier, status, consecutive_failures, disabled_at, last_used_at, updated_at
		FROM key_states WHERE identifier = ?`)
	if err != nil {
		return fmt.Errorf("prepare load: %w", err)
	}

	s.loadAllStmt, err = s.db.Prepare(`
		SELECT identifier, status, consecutive_failures, disabled_at, last_used_at, updated_at
		FROM key_states`)
	if err != nil {
		return fmt.Errorf("prepare load all: %w", err)
	}

	s.deleteStmt, err = s.db.Prepare(`DELETE FROM key_states WHERE identifier = ?`)
	if err != nil {
		return fmt.Errorf("prepare delete: %w", err)
	}

	return nil
}

// Save persists the state for a key.
func (s *SQLiteBackend) Save(ctx context.Context, state *KeyState) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.saveStmt.ExecContext(ctx,
		state.Identifier,
		state.Status,
		state.ConsecutiveFailures,
		unixOrZero(state.DisabledAt),
		unixOrZero(state.LastUsedAt),
		time.Now().Unix(),
	)
	if err != nil {
		return fmt.Errorf("failed to save key state: %w", err)
	}
	return nil
}

// Load retrieves the state for a key identifier, or nil if absent.
func (s *SQLiteBackend) Load(ctx context.Context, identifier string) (*KeyState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.loadStmt.QueryRowContext(ctx, identifier)
	state, err := scanKeyState(row)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load key state: %w", err)
	}
	return state, nil
}

// LoadAll returns the persisted state for every known key.
func (s *SQLiteBackend) LoadAll(ctx context.Context) ([]*KeyState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.loadAllStmt.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to load key states: %w", err)
	}
	defer rows.Close()

	var states []*KeyState
	for rows.Next() {
		state, err := scanKeyState(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan key state: %w", err)
		}
		states = append(states, state)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate key states: %w", err)
	}
	if states == nil {
		states = []*KeyState{}
	}
	return states, nil
}

// Delete removes the state for a key identifier.
func (s *SQLiteBackend) Delete(ctx context.Context, identifier string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, err := s.deleteStmt.ExecContext(ctx, identifier); err != nil {
		return fmt.Errorf("failed to delete key state: %w", err)
	}
	return nil
}

// Close closes the prepared statements and the database.
func (s *SQLiteBackend) Close() error {
	var closeErr error
	s.closeOnce.Do(func() {
		for _, stmt := range []*sql.Stmt{s.saveStmt, s.loadStmt, s.loadAllStmt, s.deleteStmt} {
			if stmt != nil {
				stmt.Close()
			}
		}
		closeErr = s.db.Close()
	})
	return closeErr
}

// scanner covers both *sql.Row and *sql.Rows.
type scanner interface {
	Scan(dest ...any) error
}

func scanKeyState(row scanner) (*KeyState, error) {
	var state KeyState
	var disabledAt, lastUsedAt, updatedAt int64

	if err := row.Scan(
		&state.Identifier,
		&state.Status,
		&state.ConsecutiveFailures,
		&disabledAt,
		&lastUsedAt,
		&updatedAt,
	); err != nil {
		return nil, err
	}

	state.DisabledAt = timeOrZero(disabledAt)
	state.LastUsedAt = timeOrZero(lastUsedAt)
	state.UpdatedAt = timeOrZero(updatedAt)
	return &state, nil
}

func unixOrZero(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.Unix()
}

func timeOrZero(sec int64) time.Time {
	if sec == 0 {
		return time.Time{}
	}
	return time.Unix(sec, 0)
}
