package sources

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/registry"
)

func TestSourceRegistered(t *testing.T) {
	assert.Contains(t, registry.ListSources(), "sqlpoll")

	info, err := registry.GetConnectorInfo("sqlpoll")
	require.NoError(t, err)
	assert.Contains(t, info.Capabilities, "bounded_windows")
}

func TestNew(t *testing.T) {
	cfg := config.NewConfig("orders")
	cfg.Connection.Driver = "sqlite"
	cfg.Connection.DSN = "file:" + t.TempDir() + "/orders.db"
	cfg.Query.Template = "SELECT id FROM orders WHERE ts >= $@$ AND ts < $#$"

	src, err := New(cfg)
	require.NoError(t, err)
	assert.Equal(t, "orders", src.Name())
	assert.Equal(t, "0", src.Cursor())
}
