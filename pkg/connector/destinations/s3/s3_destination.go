// Package s3 uploads one object per row batch to Amazon S3.
package s3

import (
	"bytes"
	"context"
	"strconv"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	awsconfig "github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/feature/s3/manager"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.uber.org/zap"

	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/destinations/compressed"
	"github.com/ajitpratap0/sqlpoller/pkg/errors"
	"github.com/ajitpratap0/sqlpoller/pkg/formats/rows"
	"github.com/ajitpratap0/sqlpoller/pkg/logger"
	"github.com/ajitpratap0/sqlpoller/pkg/metrics"
)

const (
	defaultUploadPartSize = 5 * 1024 * 1024 // 5MB
	defaultMaxConcurrency = 4
)

// Uploader is the part of the s3 manager uploader the sink uses.
type Uploader interface {
	Upload(ctx context.Context, input *s3.PutObjectInput, opts ...func(*manager.Uploader)) (*manager.UploadOutput, error)
}

// S3Destination writes every batch as prefix/source/<lower>-<upper><ext>.
type S3Destination struct {
	bucket   string
	prefix   string
	wrapper  *compressed.Wrapper
	uploader Uploader
	logger   *zap.Logger

	filesCreated int64
	bytesWritten int64
}

// Option configures an S3Destination.
type Option func(*S3Destination)

// WithUploader replaces the AWS uploader.
func WithUploader(u Uploader) Option {
	return func(d *S3Destination) { d.uploader = u }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *S3Destination) { d.logger = l }
}

// NewS3Destination creates the sink. Without WithUploader the AWS default
// credential chain is used.
func NewS3Destination(ctx context.Context, cfg *config.Config, opts ...Option) (*S3Destination, error) {
	if cfg == nil || cfg.Sink.S3.Bucket == "" {
		return nil, errors.Configuration("sink.s3.bucket is required")
	}
	wrapper, err := compressed.NewWrapper(cfg.Sink, rows.Options{})
	if err != nil {
		return nil, err
	}

	d := &S3Destination{
		bucket:  cfg.Sink.S3.Bucket,
		prefix:  cfg.Sink.S3.Prefix,
		wrapper: wrapper,
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Get().With(zap.String("component", "s3_sink"))
	}
	if d.uploader == nil {
		if err := d.initializeAWSClients(ctx, cfg.Sink.S3); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to load AWS configuration")
		}
	}
	return d, nil
}

func (d *S3Destination) initializeAWSClients(ctx context.Context, cfg config.S3SinkConfig) error {
	var loadOpts []func(*awsconfig.LoadOptions) error
	if cfg.Region != "" {
		loadOpts = append(loadOpts, awsconfig.WithRegion(cfg.Region))
	}
	awsCfg, err := awsconfig.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return err
	}

	client := s3.NewFromConfig(awsCfg, func(o *s3.Options) {
		if cfg.Endpoint != "" {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
			o.UsePathStyle = true
		}
	})

	partSize := cfg.PartSize
	if partSize < manager.MinUploadPartSize {
		partSize = defaultUploadPartSize
	}
	d.uploader = manager.NewUploader(client, func(u *manager.Uploader) {
		u.PartSize = partSize
		u.Concurrency = defaultMaxConcurrency
	})
	return nil
}

// Name implements core.Sink.
func (d *S3Destination) Name() string { return "s3" }

// Write uploads one batch. Empty batches are ignored.
func (d *S3Destination) Write(ctx context.Context, batch *core.RowBatch) error {
	if batch.Empty() {
		return nil
	}
	start := time.Now()

	payload, err := d.wrapper.Encode(batch)
	if err != nil {
		metrics.SinkWrite(d.Name(), err)
		return err
	}

	key := d.wrapper.ObjectKey(d.prefix, batch)
	input := &s3.PutObjectInput{
		Bucket:      aws.String(d.bucket),
		Key:         aws.String(key),
		Body:        bytes.NewReader(payload),
		ContentType: aws.String(d.wrapper.ContentType()),
		Metadata: map[string]string{
			"records":      strconv.Itoa(batch.Len()),
			"format":       string(d.wrapper.Format()),
			"compression":  string(d.wrapper.Algorithm()),
			"window-lower": strconv.FormatInt(batch.Window.Lower, 10),
			"window-upper": strconv.FormatInt(batch.Window.Upper, 10),
		},
	}
	if enc := d.wrapper.ContentEncoding(); enc != "" {
		input.ContentEncoding = aws.String(enc)
	}

	result, err := d.uploader.Upload(ctx, input)
	if err != nil {
		err = errors.Wrap(err, errors.ErrorTypeSink, "failed to upload to S3").
			WithDetail("bucket", d.bucket).
			WithDetail("key", key)
		metrics.SinkWrite(d.Name(), err)
		return err
	}

	d.filesCreated++
	d.bytesWritten += int64(len(payload))
	metrics.SinkWrite(d.Name(), nil)

	d.logger.Info("batch uploaded to S3",
		zap.String("location", result.Location),
		zap.Int("records", batch.Len()),
		zap.Int("bytes", len(payload)),
		zap.Duration("duration", time.Since(start)))
	return nil
}

// Close implements core.Sink. Uploads are synchronous so nothing is pending.
func (d *S3Destination) Close(ctx context.Context) error {
	d.logger.Info("S3 sink closed",
		zap.String("bucket", d.bucket),
		zap.Int64("files_created", d.filesCreated),
		zap.Int64("bytes_written", d.bytesWritten))
	return nil
}
