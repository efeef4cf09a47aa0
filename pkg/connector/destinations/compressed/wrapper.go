// Package compressed turns row batches into sink payloads: the batch is
// encoded in the configured row format and then compressed as one frame.
package compressed

import (
	"bytes"
	"fmt"
	"path"

	"github.com/ajitpratap0/sqlpoller/pkg/compression"
	"github.com/ajitpratap0/sqlpoller/pkg/config"
	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
	"github.com/ajitpratap0/sqlpoller/pkg/errors"
	"github.com/ajitpratap0/sqlpoller/pkg/formats/rows"
	"github.com/ajitpratap0/sqlpoller/pkg/pool"
)

// Wrapper encodes and compresses batches for file and object sinks.
// Avro and Parquet compress internally, so no outer frame is added for them.
type Wrapper struct {
	format     rows.Format
	encoder    rows.Encoder
	algorithm  compression.Algorithm
	compressor compression.Compressor
}

// NewWrapper builds a wrapper from the sink configuration.
func NewWrapper(cfg config.SinkConfig, opts rows.Options) (*Wrapper, error) {
	format, err := rows.ParseFormat(cfg.Format)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid sink format")
	}
	algorithm, err := compression.ParseAlgorithm(cfg.Compression)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "invalid sink compression")
	}

	encoder, err := rows.NewEncoder(format, opts)
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create encoder")
	}

	switch format {
	case rows.Avro:
		// snappy and deflate map onto OCF block codecs
		if avro, ok := encoder.(*rows.AvroEncoder); ok {
			switch algorithm {
			case compression.Snappy, compression.Deflate:
				avro.Compression = string(algorithm)
			}
		}
		algorithm = compression.None
	case rows.Parquet:
		algorithm = compression.None
	}

	w := &Wrapper{format: format, encoder: encoder, algorithm: algorithm}
	if algorithm != compression.None {
		w.compressor, err = compression.NewCompressor(&compression.Config{
			Algorithm: algorithm,
			Level:     compression.Default,
		})
		if err != nil {
			return nil, errors.Wrap(err, errors.ErrorTypeConfig, "failed to create compressor")
		}
	}
	return w, nil
}

// Format returns the row format.
func (w *Wrapper) Format() rows.Format { return w.format }

// Algorithm returns the outer compression applied to payloads.
func (w *Wrapper) Algorithm() compression.Algorithm { return w.algorithm }

// Extension returns the payload file suffix, e.g. ".jsonl.zst".
func (w *Wrapper) Extension() string {
	return w.format.Extension() + w.algorithm.Extension()
}

// ContentType returns the MIME type of the uncompressed payload.
func (w *Wrapper) ContentType() string {
	return w.format.ContentType()
}

// ContentEncoding returns the HTTP content encoding for gzip payloads and
// the empty string otherwise.
func (w *Wrapper) ContentEncoding() string {
	if w.algorithm == compression.Gzip {
		return "gzip"
	}
	return ""
}

// Encode renders one batch as a payload.
func (w *Wrapper) Encode(batch *core.RowBatch) ([]byte, error) {
	buf := pool.GetBuffer()
	defer pool.PutBuffer(buf)

	if err := w.encoder.Encode(buf, batch); err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to encode batch").
			WithDetail("format", string(w.format))
	}
	if w.compressor == nil {
		return bytes.Clone(buf.Bytes()), nil
	}
	out, err := w.compressor.Compress(buf.Bytes())
	if err != nil {
		return nil, errors.Wrap(err, errors.ErrorTypeData, "failed to compress batch").
			WithDetail("algorithm", string(w.algorithm))
	}
	return out, nil
}

// ObjectKey names the object holding one batch:
// prefix/source/<lower>-<upper><ext>. Re-delivering a window overwrites the
// same object.
func (w *Wrapper) ObjectKey(prefix string, batch *core.RowBatch) string {
	name := fmt.Sprintf("%d-%d%s", batch.Window.Lower, batch.Window.Upper, w.Extension())
	return path.Join(prefix, batch.Source, name)
}
