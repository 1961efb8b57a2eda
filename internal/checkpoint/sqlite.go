package checkpoint

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	_ "modernc.org/sqlite" // SQLite driver

	"github.com/chiayu-tsai/uber-receipts-sync/internal/entity"
)

// SQLiteStore persists checkpoint state in a small property table inside a
// per-data-dir SQLite database.
type SQLiteStore struct {
	db     *sql.DB
	logger *slog.Logger
}

const createTable = `
CREATE TABLE IF NOT EXISTS properties (
	prop_key   TEXT PRIMARY KEY,
	prop_value TEXT NOT NULL
)`

// NewSQLiteStore opens (creating if needed) the checkpoint database under
// dataDir.
func NewSQLiteStore(dataDir string, logger *slog.Logger) (*SQLiteStore, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data directory: %w", err)
	}
	dbPath := filepath.Join(dataDir, "checkpoints.db")

	db, err := sql.Open("sqlite", dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if _, err := db.Exec(createTable); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create properties table: %w", err)
	}
	return &SQLiteStore{db: db, logger: logger}, nil
}

func (s *SQLiteStore) Get(label string) (entity.CheckpointState, error) {
	var raw string
	err := s.db.QueryRow(
		`SELECT prop_value FROM properties WHERE prop_key = ?`, PropertyKey(label),
	).Scan(&raw)
	if errors.Is(err, sql.ErrNoRows) {
		return entity.CheckpointState{}, nil
	}
	if err != nil {
		return entity.CheckpointState{}, fmt.Errorf("load checkpoint: %w", err)
	}
	state := decodeState(raw)
	if state == (entity.CheckpointState{}) && raw != "" {
		s.logger.Warn("checkpoint.state.invalid", "label", label)
	}
	return state, nil
}

func (s *SQLiteStore) Save(label string, state entity.CheckpointState) error {
	raw, err := encodeState(state)
	if err != nil {
		return err
	}
	_, err = s.db.Exec(
		`INSERT INTO properties (prop_key, prop_value) VALUES (?, ?)
		 ON CONFLICT(prop_key) DO UPDATE SET prop_value = excluded.prop_value`,
		PropertyKey(label), raw,
	)
	if err != nil {
		return fmt.Errorf("save checkpoint: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Clear(label string) error {
	if _, err := s.db.Exec(`DELETE FROM properties WHERE prop_key = ?`, PropertyKey(label)); err != nil {
		return fmt.Errorf("clear checkpoint: %w", err)
	}
	return nil
}

func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
