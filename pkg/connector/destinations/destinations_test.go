package destinations

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/registry"
)

func TestAllSinksRegistered(t *testing.T) {
	assert.Equal(t, []string{"file", "gcs", "kafka", "s3", "stdout"}, registry.ListSinks())
}

func TestNew_File(t *testing.T) {
	cfg := config.NewConfig("orders")
	cfg.Sink.Type = "file"
	cfg.Sink.File.Path = filepath.Join(t.TempDir(), "orders.jsonl")

	sink, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "file", sink.Name())
	require.NoError(t, sink.Close(context.Background()))
}

func TestNew_Unknown(t *testing.T) {
	cfg := config.NewConfig("orders")
	cfg.Sink.Type = "carrier-pigeon"
	_, err := New(cfg)
	assert.Error(t, err)
}
