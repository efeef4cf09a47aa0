// Package checkpoint persists source cursors across restarts. The scheduler
// saves a cursor only after the sink accepted the batch that advanced it, so a
// restart resumes from the last delivered window.
package checkpoint

import (
	"context"
	"time"

	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/errors"
)

// Store handles checkpoint persistence and retrieval.
type Store interface {
	// Load returns the cursor saved for a source and whether one exists
	Load(ctx context.Context, name string) (cursor string, found bool, err error)

	// Save persists the cursor of a source, replacing the previous one
	Save(ctx context.Context, name string, cursor string) error

	// Close releases any resources held by the store
	Close() error
}

// Entry is one persisted cursor
type Entry struct {
	Cursor    string    `json:"cursor"`
	UpdatedAt time.Time `json:"updated_at"`
}

// New creates the store selected by cfg.Type (memory, file, sqlite)
func New(cfg config.CheckpointConfig) (Store, error) {
	switch cfg.Type {
	case "", "memory":
		return NewMemoryStore(), nil
	case "file":
		s, err := NewFileStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "sqlite":
		s, err := NewSQLiteStore(cfg.Path)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, errors.Configuration("unsupported checkpoint.type").WithDetail("type", cfg.Type)
	}
}
