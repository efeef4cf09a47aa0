package logger

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func TestNew(t *testing.T) {
	t.Run("defaults", func(t *testing.T) {
		l, err := New(Config{})
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.InfoLevel))
		assert.False(t, l.Core().Enabled(zapcore.DebugLevel))
	})

	t.Run("invalid level", func(t *testing.T) {
		_, err := New(Config{Level: "chatty"})
		require.Error(t, err)
		assert.Contains(t, err.Error(), "invalid log level")
	})

	t.Run("console development", func(t *testing.T) {
		l, err := New(Config{Level: "debug", Encoding: "console", Development: true})
		require.NoError(t, err)
		assert.True(t, l.Core().Enabled(zapcore.DebugLevel))
	})
}

func TestWithContext(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	restore := ReplaceGlobal(zap.New(core))
	defer restore()

	ctx := context.WithValue(context.Background(), SourceKey, "orders")
	ctx = context.WithValue(ctx, CycleKey, uint64(7))

	WithContext(ctx).Info("cycle finished")

	require.Equal(t, 1, logs.Len())
	fields := logs.All()[0].ContextMap()
	assert.Equal(t, "orders", fields["source"])
	assert.Equal(t, uint64(7), fields["cycle"])
	_, hasSink := fields["sink"]
	assert.False(t, hasSink)
}
