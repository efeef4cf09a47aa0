package checkpoint

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/errors"
)

func TestStores(t *testing.T) {
	stores := map[string]func(t *testing.T) Store{
		"memory": func(t *testing.T) Store { return NewMemoryStore() },
		"file": func(t *testing.T) Store {
			s, err := NewFileStore(filepath.Join(t.TempDir(), "state", "checkpoints.json"))
			require.NoError(t, err)
			return s
		},
		"sqlite": func(t *testing.T) Store {
			s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "checkpoints.db"))
			require.NoError(t, err)
			return s
		},
	}

	for name, newStore := range stores {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t)
			defer s.Close()

			_, found, err := s.Load(ctx, "orders")
			require.NoError(t, err)
			assert.False(t, found)

			require.NoError(t, s.Save(ctx, "orders", "1600"))
			require.NoError(t, s.Save(ctx, "users", "42"))
			require.NoError(t, s.Save(ctx, "orders", "1990"))

			cursor, found, err := s.Load(ctx, "orders")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "1990", cursor)

			cursor, found, err = s.Load(ctx, "users")
			require.NoError(t, err)
			assert.True(t, found)
			assert.Equal(t, "42", cursor)
		})
	}
}

func TestFileStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoints.json")

	first, err := NewFileStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, "orders", "1600"))

	second, err := NewFileStore(path)
	require.NoError(t, err)
	cursor, found, err := second.Load(ctx, "orders")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1600", cursor)

	leftovers, err := filepath.Glob(filepath.Join(filepath.Dir(path), "*.tmp"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileStore_Corrupt(t *testing.T) {
	path := filepath.Join(t.TempDir(), "checkpoints.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o600))

	s, err := NewFileStore(path)
	require.NoError(t, err)
	_, _, err = s.Load(context.Background(), "orders")
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeData))
}

func TestSQLiteStore_SurvivesReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "checkpoints.db")

	first, err := NewSQLiteStore(path)
	require.NoError(t, err)
	require.NoError(t, first.Save(ctx, "orders", "1600"))
	require.NoError(t, first.Close())

	second, err := NewSQLiteStore(path)
	require.NoError(t, err)
	defer second.Close()
	cursor, found, err := second.Load(ctx, "orders")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, "1600", cursor)
}

func TestNew(t *testing.T) {
	s, err := New(config.CheckpointConfig{Type: "memory"})
	require.NoError(t, err)
	assert.IsType(t, &MemoryStore{}, s)

	s, err = New(config.CheckpointConfig{Type: "file", Path: filepath.Join(t.TempDir(), "c.json")})
	require.NoError(t, err)
	assert.IsType(t, &FileStore{}, s)

	_, err = New(config.CheckpointConfig{Type: "file"})
	assert.True(t, errors.IsConfiguration(err))

	_, err = New(config.CheckpointConfig{Type: "etcd"})
	assert.True(t, errors.IsConfiguration(err))
}
