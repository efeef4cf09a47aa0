package registry

import (
	"context"
	stderrors "errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
	"github.com/ajitpratap0/sqlpoller/pkg/errors"
)

type nopSink struct{ name string }

func (s *nopSink) Name() string                                { return s.name }
func (s *nopSink) Write(context.Context, *core.RowBatch) error { return nil }
func (s *nopSink) Close(context.Context) error                 { return nil }

func TestRegistry_Sinks(t *testing.T) {
	r := NewRegistry()

	require.NoError(t, r.RegisterSink("stdout", func(cfg *config.Config) (core.Sink, error) {
		return &nopSink{name: "stdout"}, nil
	}))
	require.NoError(t, r.RegisterSink("kafka", func(cfg *config.Config) (core.Sink, error) {
		return nil, errors.Wrap(stderrors.New("no brokers reachable"), errors.ErrorTypeConnection, "dial")
	}))

	err := r.RegisterSink("stdout", nil)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))

	assert.Equal(t, []string{"kafka", "stdout"}, r.ListSinks())
	assert.True(t, r.HasSink("kafka"))
	assert.False(t, r.HasSink("s3"))

	cfg := config.NewConfig("orders")
	cfg.Sink.Type = ""
	sink, err := r.CreateSink(cfg)
	require.NoError(t, err)
	assert.Equal(t, "stdout", sink.Name(), "empty type defaults to stdout")

	cfg.Sink.Type = "kafka"
	_, err = r.CreateSink(cfg)
	require.Error(t, err)
	assert.True(t, errors.IsConnection(err), "factory error type is kept")

	cfg.Sink.Type = "s3"
	_, err = r.CreateSink(cfg)
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}

func TestRegistry_Sources(t *testing.T) {
	r := NewRegistry()
	require.NoError(t, r.RegisterSource("fake", func(cfg *config.Config) (core.Source, error) {
		return nil, errors.Configuration("window.start_cursor must be an integer")
	}))

	_, err := r.CreateSource("fake", config.NewConfig("x"))
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
	assert.Contains(t, err.Error(), "failed to create source connector fake")

	_, err = r.CreateSource("missing", config.NewConfig("x"))
	require.Error(t, err)
	assert.Equal(t, []string{"fake"}, r.ListSources())
	assert.True(t, r.HasSource("fake"))
}

func TestCatalog(t *testing.T) {
	c := NewConnectorCatalog()
	require.NoError(t, c.Register(&ConnectorInfo{Name: "sqlpoll", Type: core.ConnectorTypeSource}))
	require.Error(t, c.Register(&ConnectorInfo{Name: "sqlpoll"}))

	info, err := c.Get("sqlpoll")
	require.NoError(t, err)
	assert.Equal(t, core.ConnectorTypeSource, info.Type)

	_, err = c.Get("other")
	assert.True(t, errors.IsType(err, errors.ErrorTypeNotFound))
}
