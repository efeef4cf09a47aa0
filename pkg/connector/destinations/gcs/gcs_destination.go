// Package gcs writes one object per row batch to Google Cloud Storage.
package gcs

import (
	"bytes"
	"context"
	"io"
	"strconv"
	"time"

	"cloud.google.com/go/storage"
	"go.uber.org/zap"
	"golang.org/x/oauth2"
	"google.golang.org/api/option"

	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/destinations/compressed"
	"github.com/ajitpratap0/sqlpoller/pkg/errors"
	"github.com/ajitpratap0/sqlpoller/pkg/formats/rows"
	"github.com/ajitpratap0/sqlpoller/pkg/logger"
	"github.com/ajitpratap0/sqlpoller/pkg/metrics"
)

// ObjectAttrs describes an object being written.
type ObjectAttrs struct {
	ContentType     string
	ContentEncoding string
	Metadata        map[string]string
}

// Bucket opens object writers. The returned writer commits the object on
// Close.
type Bucket interface {
	NewWriter(ctx context.Context, object string, attrs ObjectAttrs) io.WriteCloser
}

// storageBucket adapts a storage bucket handle.
type storageBucket struct {
	handle *storage.BucketHandle
}

func (b storageBucket) NewWriter(ctx context.Context, object string, attrs ObjectAttrs) io.WriteCloser {
	w := b.handle.Object(object).NewWriter(ctx)
	w.ContentType = attrs.ContentType
	w.ContentEncoding = attrs.ContentEncoding
	w.Metadata = attrs.Metadata
	return w
}

// GCSDestination writes every batch as prefix/source/<lower>-<upper><ext>.
type GCSDestination struct {
	bucketName string
	prefix     string
	bucket     Bucket
	client     *storage.Client
	wrapper    *compressed.Wrapper
	logger     *zap.Logger

	filesCreated int64
	bytesWritten int64
}

// Option configures a GCSDestination.
type Option func(*GCSDestination)

// WithBucket replaces the storage client bucket.
func WithBucket(b Bucket) Option {
	return func(d *GCSDestination) { d.bucket = b }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *GCSDestination) { d.logger = l }
}

// NewGCSDestination creates the sink. Without WithBucket a storage client is
// created from sink.gcs.credentials_file or application default credentials.
func NewGCSDestination(ctx context.Context, cfg *config.Config, opts ...Option) (*GCSDestination, error) {
	if cfg == nil || cfg.Sink.GCS.Bucket == "" {
		return nil, errors.Configuration("sink.gcs.bucket is required")
	}
	wrapper, err := compressed.NewWrapper(cfg.Sink, rows.Options{})
	if err != nil {
		return nil, err
	}

	d := &GCSDestination{
		bucketName: cfg.Sink.GCS.Bucket,
		prefix:     cfg.Sink.GCS.Prefix,
		wrapper:    wrapper,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Get().With(zap.String("component", "gcs_sink"))
	}
	if d.bucket == nil {
		if err := d.initializeGCSClient(ctx, cfg.Sink.GCS); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create GCS client")
		}
	}
	return d, nil
}

func (d *GCSDestination) initializeGCSClient(ctx context.Context, cfg config.GCSSinkConfig) error {
	var opts []option.ClientOption
	switch {
	case cfg.CredentialsFile != "":
		opts = append(opts, option.WithCredentialsFile(cfg.CredentialsFile))
	case cfg.AccessToken != "":
		opts = append(opts, option.WithTokenSource(oauth2.StaticTokenSource(&oauth2.Token{AccessToken: cfg.AccessToken})))
	}

	client, err := storage.NewClient(ctx, opts...)
	if err != nil {
		return err
	}
	d.client = client
	d.bucket = storageBucket{handle: client.Bucket(cfg.Bucket)}
	return nil
}

// Name implements core.Sink.
func (d *GCSDestination) Name() string { return "gcs" }

// Write uploads one batch. Empty batches are ignored.
func (d *GCSDestination) Write(ctx context.Context, batch *core.RowBatch) error {
	if batch.Empty() {
		return nil
	}
	start := time.Now()

	payload, err := d.wrapper.Encode(batch)
	if err != nil {
		metrics.SinkWrite(d.Name(), err)
		return err
	}

	object := d.wrapper.ObjectKey(d.prefix, batch)
	writer := d.bucket.NewWriter(ctx, object, ObjectAttrs{
		ContentType:     d.wrapper.ContentType(),
		ContentEncoding: d.wrapper.ContentEncoding(),
		Metadata: map[string]string{
			"records":      strconv.Itoa(batch.Len()),
			"format":       string(d.wrapper.Format()),
			"compression":  string(d.wrapper.Algorithm()),
			"window_lower": strconv.FormatInt(batch.Window.Lower, 10),
			"window_upper": strconv.FormatInt(batch.Window.Upper, 10),
		},
	})

	if _, err = io.Copy(writer, bytes.NewReader(payload)); err != nil {
		_ = writer.Close()
	} else {
		err = writer.Close()
	}
	if err != nil {
		err = errors.Wrap(err, errors.ErrorTypeSink, "failed to write to GCS").
			WithDetail("bucket", d.bucketName).
			WithDetail("object", object)
		metrics.SinkWrite(d.Name(), err)
		return err
	}

	d.filesCreated++
	d.bytesWritten += int64(len(payload))
	metrics.SinkWrite(d.Name(), nil)

	d.logger.Info("batch uploaded to GCS",
		zap.String("object", object),
		zap.Int("records", batch.Len()),
		zap.Int("bytes", len(payload)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// Close releases the storage client.
func (d *GCSDestination) Close(ctx context.Context) error {
	d.logger.Info("GCS sink closed",
		zap.String("bucket", d.bucketName),
		zap.Int64("files_created", d.filesCreated),
		zap.Int64("bytes_written", d.bytesWritten))

	if d.client == nil {
		return nil
	}
	err := d.client.Close()
	d.client = nil
	return err
}
