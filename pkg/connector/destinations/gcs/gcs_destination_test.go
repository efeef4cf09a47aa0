package gcs

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
	"github.com/ajitpratap0/sqlpoller/pkg/errors"
	"github.com/ajitpratap0/sqlpoller/pkg/testutil"
)

type memObject struct {
	bytes.Buffer
	name   string
	attrs  ObjectAttrs
	closed bool
	err    error
}

func (o *memObject) Close() error {
	o.closed = true
	return o.err
}

type memBucket struct {
	objects  []*memObject
	closeErr error
}

func (b *memBucket) NewWriter(_ context.Context, object string, attrs ObjectAttrs) io.WriteCloser {
	o := &memObject{name: object, attrs: attrs, err: b.closeErr}
	b.objects = append(b.objects, o)
	return o
}

func gcsConfig() *config.Config {
	cfg := config.NewConfig("orders")
	cfg.Sink.Type = "gcs"
	cfg.Sink.GCS.Bucket = "landing"
	return cfg
}

func TestGCSDestination_Write(t *testing.T) {
	bucket := &memBucket{}
	cfg := gcsConfig()
	cfg.Sink.Format = "csv"

	d, err := NewGCSDestination(context.Background(), cfg, WithBucket(bucket), WithLogger(testutil.TestLogger(t)))
	require.NoError(t, err)

	b := &core.RowBatch{
		Source:  "orders",
		Columns: []string{"id", "note"},
		Rows:    []core.Row{{core.Int(1), core.Null()}},
		Window:  core.Window{Lower: 0, Upper: 600},
	}
	require.NoError(t, d.Write(context.Background(), b))

	require.Len(t, bucket.objects, 1)
	obj := bucket.objects[0]
	assert.Equal(t, "orders/0-600.csv", obj.name)
	assert.True(t, obj.closed)
	assert.Equal(t, "text/csv", obj.attrs.ContentType)
	assert.Equal(t, "600", obj.attrs.Metadata["window_upper"])
	assert.Equal(t, "id,note\n1,\n", obj.String())

	require.NoError(t, d.Close(context.Background()))
}

func TestGCSDestination_CommitFailure(t *testing.T) {
	bucket := &memBucket{closeErr: fmt.Errorf("googleapi: Error 403")}
	d, err := NewGCSDestination(context.Background(), gcsConfig(), WithBucket(bucket))
	require.NoError(t, err)

	err = d.Write(context.Background(), &core.RowBatch{
		Source:  "orders",
		Columns: []string{"id"},
		Rows:    []core.Row{{core.Int(1)}},
		Window:  core.Window{Lower: 0, Upper: 600},
	})
	require.Error(t, err)
	assert.True(t, errors.IsType(err, errors.ErrorTypeSink))
}
