package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/sqlpoller/pkg/errors"
)

// FileStore keeps all cursors in one JSON document. Every save rewrites the
// document to a temporary file and renames it over the old one.
type FileStore struct {
	path string
	mu   sync.Mutex
}

type fileDocument struct {
	Version int              `json:"version"`
	Sources map[string]Entry `json:"sources"`
}

// NewFileStore creates a store backed by path, creating its directory
func NewFileStore(path string) (*FileStore, error) {
	if path == "" {
		return nil, errors.Configuration("checkpoint.path is required for file checkpoints")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create checkpoint directory").
			WithDetail("path", path)
	}
	return &FileStore{path: path}, nil
}

// Load returns the cursor saved for name
func (s *FileStore) Load(_ context.Context, name string) (string, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return "", false, err
	}
	e, ok := doc.Sources[name]
	return e.Cursor, ok, nil
}

// Save stores the cursor for name
func (s *FileStore) Save(_ context.Context, name, cursor string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	doc, err := s.read()
	if err != nil {
		return err
	}
	doc.Sources[name] = Entry{Cursor: cursor, UpdatedAt: time.Now().UTC()}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeData, "failed to encode checkpoints")
	}

	tmp, err := os.CreateTemp(filepath.Dir(s.path), filepath.Base(s.path)+".*.tmp")
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to create checkpoint file")
	}
	defer os.Remove(tmp.Name()) //nolint:errcheck // gone after a successful rename

	if _, err := tmp.Write(data); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to write checkpoint file")
	}
	if err := tmp.Sync(); err != nil {
		_ = tmp.Close()
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to sync checkpoint file")
	}
	if err := tmp.Close(); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close checkpoint file")
	}
	if err := os.Rename(tmp.Name(), s.path); err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to replace checkpoint file").
			WithDetail("path", s.path)
	}
	return nil
}

// Close is a no-op; nothing is held open between saves
func (s *FileStore) Close() error { return nil }

func (s *FileStore) read() (*fileDocument, error) {
	doc := &fileDocument{Version: 1, Sources: make(map[string]Entry)}

	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return doc, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to read checkpoint file").
			WithDetail("path", s.path)
	}
	if len(data) == 0 {
		return doc, nil
	}
	if err := json.Unmarshal(data, doc); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "corrupt checkpoint file").
			WithDetail("path", s.path)
	}
	if doc.Sources == nil {
		doc.Sources = make(map[string]Entry)
	}
	return doc, nil
}
