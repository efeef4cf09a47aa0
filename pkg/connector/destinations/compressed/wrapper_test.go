package compressed

import (
	"bytes"
	"testing"

	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/sqlpoller/pkg/compression"
	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
	"github.com/ajitpratap0/sqlpoller/pkg/errors"
	"github.com/ajitpratap0/sqlpoller/pkg/formats/rows"
)

func sampleBatch() *core.RowBatch {
	return &core.RowBatch{
		Source:  "orders",
		Columns: []string{"id"},
		Rows:    []core.Row{{core.Int(1)}, {core.Int(2)}},
		Window:  core.Window{Lower: 1000, Upper: 1600},
	}
}

func TestWrapper_JSONLZstd(t *testing.T) {
	w, err := NewWrapper(config.SinkConfig{Format: "jsonl", Compression: "zstd"}, rows.Options{})
	require.NoError(t, err)
	assert.Equal(t, ".jsonl.zst", w.Extension())
	assert.Equal(t, "application/x-ndjson", w.ContentType())
	assert.Empty(t, w.ContentEncoding())

	payload, err := w.Encode(sampleBatch())
	require.NoError(t, err)

	comp, err := compression.NewCompressor(&compression.Config{Algorithm: compression.Zstd})
	require.NoError(t, err)
	plain, err := comp.Decompress(payload)
	require.NoError(t, err)
	assert.Equal(t,
		"{\"id\":1,\"_window_lower\":1000,\"_window_upper\":1600}\n{\"id\":2,\"_window_lower\":1000,\"_window_upper\":1600}\n",
		string(plain))
}

func TestWrapper_AvroUsesBlockCodec(t *testing.T) {
	w, err := NewWrapper(config.SinkConfig{Format: "avro", Compression: "snappy"}, rows.Options{})
	require.NoError(t, err)
	assert.Equal(t, compression.None, w.Algorithm())
	assert.Equal(t, ".avro", w.Extension())

	payload, err := w.Encode(sampleBatch())
	require.NoError(t, err)

	reader, err := goavro.NewOCFReader(bytes.NewReader(payload))
	require.NoError(t, err)
	assert.Equal(t, goavro.CompressionSnappyLabel, reader.CompressionName())
}

func TestWrapper_ObjectKey(t *testing.T) {
	w, err := NewWrapper(config.SinkConfig{Format: "csv", Compression: "gzip"}, rows.Options{})
	require.NoError(t, err)
	assert.Equal(t, "gzip", w.ContentEncoding())
	assert.Equal(t, "landing/orders/1000-1600.csv.gz", w.ObjectKey("landing", sampleBatch()))
	assert.Equal(t, "orders/1000-1600.csv.gz", w.ObjectKey("", sampleBatch()))
}

func TestWrapper_InvalidSettings(t *testing.T) {
	_, err := NewWrapper(config.SinkConfig{Format: "xml"}, rows.Options{})
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))

	_, err = NewWrapper(config.SinkConfig{Compression: "brotli"}, rows.Options{})
	require.Error(t, err)
	assert.True(t, errors.IsConfiguration(err))
}
