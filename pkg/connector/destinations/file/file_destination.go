// Package file appends encoded row batches to a local file or to stdout.
package file

import (
	"bufio"
	"context"
	"io"
	"os"
	"path/filepath"
	"sync"

	"go.uber.org/zap"

	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/destinations/compressed"
	"github.com/ajitpratap0/sqlpoller/pkg/errors"
	"github.com/ajitpratap0/sqlpoller/pkg/formats/rows"
	"github.com/ajitpratap0/sqlpoller/pkg/logger"
	"github.com/ajitpratap0/sqlpoller/pkg/metrics"
)

// StdoutPath selects standard output instead of a file.
const StdoutPath = "-"

// Destination writes each batch as one payload, appended to the output.
type Destination struct {
	name    string
	path    string
	out     io.Writer
	file    *os.File
	wrapper *compressed.Wrapper
	logger  *zap.Logger

	mu             sync.Mutex
	recordsWritten int64
	bytesWritten   int64
}

// Option configures a Destination.
type Option func(*Destination)

// WithWriter sends output to w instead of the configured path.
func WithWriter(w io.Writer) Option {
	return func(d *Destination) { d.out = w }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(d *Destination) { d.logger = l }
}

// NewFileDestination creates the sink. Sink type "stdout" ignores
// sink.file.path.
func NewFileDestination(cfg *config.Config, opts ...Option) (*Destination, error) {
	if cfg == nil {
		return nil, errors.Configuration("file sink requires a configuration")
	}

	wrapper, err := compressed.NewWrapper(cfg.Sink, rows.Options{HeaderOnce: true})
	if err != nil {
		return nil, err
	}
	if !wrapper.Format().Appendable() {
		return nil, errors.Configuration("file sink cannot append " + string(wrapper.Format()) + " batches")
	}

	d := &Destination{
		name:    cfg.Sink.Type,
		path:    cfg.Sink.File.Path,
		wrapper: wrapper,
	}
	if d.name == "" || d.name == "stdout" {
		d.name = "stdout"
		d.path = StdoutPath
	}
	for _, opt := range opts {
		opt(d)
	}
	if d.logger == nil {
		d.logger = logger.Get().With(zap.String("component", "file_sink"))
	}

	if d.out != nil {
		return d, nil
	}
	if d.path == "" || d.path == StdoutPath {
		d.out = os.Stdout
		return d, nil
	}

	if cfg.Sink.File.CreateDirs {
		if err := os.MkdirAll(filepath.Dir(d.path), 0o750); err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to create output directory").
				WithDetail("path", d.path)
		}
	}
	f, err := os.OpenFile(d.path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o640) //nolint:gosec // G304: path comes from the operator
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeFile, "failed to open output file").
			WithDetail("path", d.path)
	}
	d.file = f
	d.out = f
	return d, nil
}

// Name implements core.Sink.
func (d *Destination) Name() string { return d.name }

// Write appends one batch. Empty batches are ignored.
func (d *Destination) Write(ctx context.Context, batch *core.RowBatch) error {
	if batch.Empty() {
		return nil
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	payload, err := d.wrapper.Encode(batch)
	if err != nil {
		metrics.SinkWrite(d.name, err)
		return err
	}

	d.mu.Lock()
	defer d.mu.Unlock()

	w := bufio.NewWriterSize(d.out, 64*1024)
	if _, err = w.Write(payload); err == nil {
		err = w.Flush()
	}
	if err == nil && d.file != nil {
		err = d.file.Sync()
	}
	if err != nil {
		err = errors.Wrap(err, errors.ErrorTypeSink, "failed to write batch").
			WithDetail("path", d.path)
		metrics.SinkWrite(d.name, err)
		return err
	}

	d.recordsWritten += int64(batch.Len())
	d.bytesWritten += int64(len(payload))
	metrics.SinkWrite(d.name, nil)

	d.logger.Debug("batch written",
		zap.String("source", batch.Source),
		zap.Int("rows", batch.Len()),
		zap.Int("bytes", len(payload)),
		zap.String("window", batch.Window.String()))
	return nil
}

// Stats returns the rows and bytes written so far.
func (d *Destination) Stats() (recordsWritten, bytesWritten int64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.recordsWritten, d.bytesWritten
}

// Close closes the output file. Stdout is left open.
func (d *Destination) Close(ctx context.Context) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.file == nil {
		return nil
	}
	err := d.file.Close()
	d.file = nil
	if err != nil {
		return errors.Wrap(err, errors.ErrorTypeFile, "failed to close output file").
			WithDetail("path", d.path)
	}
	d.logger.Info("file sink closed",
		zap.String("path", d.path),
		zap.Int64("records_written", d.recordsWritten),
		zap.Int64("bytes_written", d.bytesWritten))
	return nil
}
