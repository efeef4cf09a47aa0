package checkpoint

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // registers the "sqlite" driver

	"github.com/ajitpratap0/sqlpoller/pkg/errors"
)

const checkpointSchema = `CREATE TABLE IF NOT EXISTS sqlpoller_checkpoints (
	name TEXT PRIMARY KEY,
	cursor TEXT NOT NULL,
	updated_at INTEGER NOT NULL
)`

// SQLiteStore keeps cursors in a local sqlite database
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (and if needed creates) the database at path
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		return nil, errors.Configuration("checkpoint.path is required for sqlite checkpoints")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create checkpoint directory").
			WithDetail("path", path)
	}

	db, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)")
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open checkpoint database")
	}
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(checkpointSchema); err != nil {
		_ = db.Close()
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create checkpoint table").
			WithDetail("path", path)
	}
	return &SQLiteStore{db: db}, nil
}

// Load returns the cursor saved for name
func (s *SQLiteStore) Load(ctx context.Context, name string) (string, bool, error) {
	var cursor string
	err := s.db.QueryRowContext(ctx,
		"SELECT cursor FROM sqlpoller_checkpoints WHERE name = ?", name).Scan(&cursor)
	if err == sql.ErrNoRows {
		return "", false, nil
	}
	if err != nil {
		return "", false, errors.Wrap(err, errors.ErrorTypeFile, "failed to load checkpoint").
			WithDetail("name", name)
	}
	return cursor, true, nil
}

// Save stores the cursor for name
func (s *SQLiteStore) Save(ctx context.Context, name, cursor string) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO sqlpoller_checkpoints (name, cursor, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(name) DO UPDATE SET cursor = excluded.cursor, updated_at = excluded.updated_at`,
		name, cursor, time.Now().Unix())
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to save checkpoint").
			WithDetail("name", name)
	}
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}
