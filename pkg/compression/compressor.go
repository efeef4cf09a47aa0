// Package compression frames encoded row batches for file and object sinks.
// Each batch is compressed independently so that a sink output is a sequence
// of self-contained frames (gzip members, zstd frames, lz4 frames, ...).
//
// Algorithm selection:
//   - Snappy/S2: fast, moderate ratio
//   - LZ4: fastest, lower ratio
//   - Zstd: best ratio at good speed
//   - Gzip/Deflate: widest compatibility
//
// Basic usage:
//
//	comp, err := compression.NewCompressor(&compression.Config{Algorithm: compression.Zstd})
//	framed, err := comp.Compress(batch)
package compression

import (
	"bytes"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/flate"
	"github.com/klauspost/compress/gzip"
	"github.com/klauspost/compress/s2"
	"github.com/klauspost/compress/snappy"
	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Algorithm represents a compression algorithm.
type Algorithm string

const (
	// None represents no compression
	None Algorithm = "none"
	// Gzip represents gzip compression
	Gzip Algorithm = "gzip"
	// Snappy represents snappy compression
	Snappy Algorithm = "snappy"
	// LZ4 represents lz4 compression
	LZ4 Algorithm = "lz4"
	// Zstd represents zstandard compression
	Zstd Algorithm = "zstd"
	// S2 represents s2 compression (Snappy compatible)
	S2 Algorithm = "s2"
	// Deflate represents deflate compression
	Deflate Algorithm = "deflate"
)

// Level controls the trade-off between speed and ratio.
type Level int

const (
	// Fastest prioritizes speed over compression ratio
	Fastest Level = 1
	// Default balances speed and compression
	Default Level = 5
	// Better improves compression at cost of speed
	Better Level = 7
	// Best maximizes compression ratio
	Best Level = 9
)

// Algorithms lists every supported algorithm.
var Algorithms = []Algorithm{None, Gzip, Snappy, LZ4, Zstd, S2, Deflate}

// ParseAlgorithm maps a configuration value to an Algorithm. The empty
// string means None.
func ParseAlgorithm(name string) (Algorithm, error) {
	n := Algorithm(strings.ToLower(strings.TrimSpace(name)))
	if n == "" {
		return None, nil
	}
	for _, a := range Algorithms {
		if a == n {
			return a, nil
		}
	}
	return "", fmt.Errorf("unsupported compression algorithm: %s", name)
}

// Extension returns the file suffix conventionally used for the algorithm,
// including the leading dot. None has no suffix.
func (a Algorithm) Extension() string {
	switch a {
	case Gzip:
		return ".gz"
	case Snappy:
		return ".snappy"
	case LZ4:
		return ".lz4"
	case Zstd:
		return ".zst"
	case S2:
		return ".s2"
	case Deflate:
		return ".deflate"
	default:
		return ""
	}
}

// Compressor provides compression and decompression functionality.
// All implementations are safe for concurrent use.
type Compressor interface {
	// Compress compresses data and returns one self-contained frame
	Compress(data []byte) ([]byte, error)
	// Decompress reverses Compress. Concatenated frames are accepted.
	Decompress(data []byte) ([]byte, error)
	// CompressStream compresses from reader to writer
	CompressStream(dst io.Writer, src io.Reader) error
	// DecompressStream decompresses from reader to writer
	DecompressStream(dst io.Writer, src io.Reader) error
	// Algorithm returns the compression algorithm used
	Algorithm() Algorithm
	// Level returns the compression level configured
	Level() Level
}

// Config represents compressor configuration.
type Config struct {
	Algorithm Algorithm
	Level     Level
	// Concurrency is used by zstd for parallel block encoding
	Concurrency int
}

// DefaultConfig returns a snappy compressor configuration.
func DefaultConfig() *Config {
	return &Config{
		Algorithm:   Snappy,
		Level:       Default,
		Concurrency: 1,
	}
}

// NewCompressor creates a compressor for the configured algorithm.
func NewCompressor(config *Config) (Compressor, error) {
	if config == nil {
		config = DefaultConfig()
	}
	if config.Level == 0 {
		config.Level = Default
	}

	switch config.Algorithm {
	case None, "":
		return &noneCompressor{baseCompressor{algorithm: None, level: config.Level}}, nil
	case Gzip:
		return &gzipCompressor{baseCompressor{algorithm: Gzip, level: config.Level}}, nil
	case Snappy:
		return &snappyCompressor{baseCompressor{algorithm: Snappy, level: config.Level}}, nil
	case LZ4:
		return &lz4Compressor{baseCompressor{algorithm: LZ4, level: config.Level}}, nil
	case Zstd:
		return newZstdCompressor(config)
	case S2:
		return &s2Compressor{baseCompressor{algorithm: S2, level: config.Level}}, nil
	case Deflate:
		return &deflateCompressor{baseCompressor{algorithm: Deflate, level: config.Level}}, nil
	default:
		return nil, fmt.Errorf("unsupported compression algorithm: %s", config.Algorithm)
	}
}

type baseCompressor struct {
	algorithm Algorithm
	level     Level
}

func (bc *baseCompressor) Algorithm() Algorithm { return bc.algorithm }
func (bc *baseCompressor) Level() Level         { return bc.level }

// compressWith runs a writer-based encoder over data into a fresh buffer.
func compressWith(data []byte, open func(io.Writer) (io.WriteCloser, error)) ([]byte, error) {
	var buf bytes.Buffer
	buf.Grow(len(data)/2 + 64)
	w, err := open(&buf)
	if err != nil {
		return nil, err
	}
	if _, err := w.Write(data); err != nil {
		_ = w.Close()
		return nil, err
	}
	if err := w.Close(); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func streamWith(dst io.Writer, src io.Reader, open func(io.Writer) (io.WriteCloser, error)) error {
	w, err := open(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(w, src); err != nil {
		_ = w.Close()
		return err
	}
	return w.Close()
}

func readAll(r io.Reader) ([]byte, error) {
	var buf bytes.Buffer
	if _, err := io.Copy(&buf, r); err != nil { //nolint:gosec // G110: input is produced by our own sinks
		return nil, err
	}
	return buf.Bytes(), nil
}

// No compression
type noneCompressor struct {
	baseCompressor
}

func (nc *noneCompressor) Compress(data []byte) ([]byte, error) {
	result := make([]byte, len(data))
	copy(result, data)
	return result, nil
}

func (nc *noneCompressor) Decompress(data []byte) ([]byte, error) {
	return nc.Compress(data)
}

func (nc *noneCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

func (nc *noneCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, src)
	return err
}

// Gzip compressor
type gzipCompressor struct {
	baseCompressor
}

func (gc *gzipCompressor) open(w io.Writer) (io.WriteCloser, error) {
	return gzip.NewWriterLevel(w, mapGzipLevel(gc.level))
}

func (gc *gzipCompressor) Compress(data []byte) ([]byte, error) {
	return compressWith(data, gc.open)
}

func (gc *gzipCompressor) Decompress(data []byte) ([]byte, error) {
	r, err := gzip.NewReader(bytes.NewReader(data))
	if err != nil {
		return nil, err
	}
	defer r.Close()
	return readAll(r)
}

func (gc *gzipCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	return streamWith(dst, src, gc.open)
}

func (gc *gzipCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	r, err := gzip.NewReader(src)
	if err != nil {
		return err
	}
	defer r.Close()
	_, err = io.Copy(dst, r) //nolint:gosec // G110: input is produced by our own sinks
	return err
}

// Snappy compressor, framed so that batches can be concatenated
type snappyCompressor struct {
	baseCompressor
}

func (sc *snappyCompressor) open(w io.Writer) (io.WriteCloser, error) {
	return snappy.NewBufferedWriter(w), nil
}

func (sc *snappyCompressor) Compress(data []byte) ([]byte, error) {
	return compressWith(data, sc.open)
}

func (sc *snappyCompressor) Decompress(data []byte) ([]byte, error) {
	return readAll(snappy.NewReader(bytes.NewReader(data)))
}

func (sc *snappyCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	return streamWith(dst, src, sc.open)
}

func (sc *snappyCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, snappy.NewReader(src))
	return err
}

// LZ4 compressor
type lz4Compressor struct {
	baseCompressor
}

func (lc *lz4Compressor) open(w io.Writer) (io.WriteCloser, error) {
	zw := lz4.NewWriter(w)
	if err := zw.Apply(lz4.CompressionLevelOption(mapLZ4Level(lc.level))); err != nil {
		return nil, err
	}
	return zw, nil
}

func (lc *lz4Compressor) Compress(data []byte) ([]byte, error) {
	return compressWith(data, lc.open)
}

func (lc *lz4Compressor) Decompress(data []byte) ([]byte, error) {
	return readAll(lz4.NewReader(bytes.NewReader(data)))
}

func (lc *lz4Compressor) CompressStream(dst io.Writer, src io.Reader) error {
	return streamWith(dst, src, lc.open)
}

func (lc *lz4Compressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, lz4.NewReader(src))
	return err
}

// Zstd compressor. The encoder and decoder are shared; EncodeAll and
// DecodeAll are safe for concurrent use.
type zstdCompressor struct {
	baseCompressor
	concurrency int
	encoder     *zstd.Encoder
	decoder     *zstd.Decoder
	mu          sync.Mutex
}

func newZstdCompressor(config *Config) (*zstdCompressor, error) {
	concurrency := config.Concurrency
	if concurrency <= 0 {
		concurrency = 1
	}
	encoder, err := zstd.NewWriter(nil,
		zstd.WithEncoderLevel(mapZstdLevel(config.Level)),
		zstd.WithEncoderConcurrency(concurrency))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd encoder: %w", err)
	}
	decoder, err := zstd.NewReader(nil, zstd.WithDecoderConcurrency(concurrency))
	if err != nil {
		return nil, fmt.Errorf("failed to create zstd decoder: %w", err)
	}
	return &zstdCompressor{
		baseCompressor: baseCompressor{algorithm: Zstd, level: config.Level},
		concurrency:    concurrency,
		encoder:        encoder,
		decoder:        decoder,
	}, nil
}

func (zc *zstdCompressor) Compress(data []byte) ([]byte, error) {
	return zc.encoder.EncodeAll(data, make([]byte, 0, len(data)/2+64)), nil
}

func (zc *zstdCompressor) Decompress(data []byte) ([]byte, error) {
	return zc.decoder.DecodeAll(data, nil)
}

func (zc *zstdCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	return streamWith(dst, src, func(w io.Writer) (io.WriteCloser, error) {
		return zstd.NewWriter(w,
			zstd.WithEncoderLevel(mapZstdLevel(zc.level)),
			zstd.WithEncoderConcurrency(zc.concurrency))
	})
}

func (zc *zstdCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	dec, err := zstd.NewReader(src)
	if err != nil {
		return err
	}
	defer dec.Close()
	_, err = io.Copy(dst, dec)
	return err
}

// Close releases the shared zstd encoder and decoder.
func (zc *zstdCompressor) Close() error {
	zc.mu.Lock()
	defer zc.mu.Unlock()
	if zc.decoder != nil {
		zc.decoder.Close()
		zc.decoder = nil
	}
	if zc.encoder != nil {
		err := zc.encoder.Close()
		zc.encoder = nil
		return err
	}
	return nil
}

// S2 compressor, stream framed
type s2Compressor struct {
	baseCompressor
}

func (sc *s2Compressor) open(w io.Writer) (io.WriteCloser, error) {
	opts := []s2.WriterOption{}
	switch sc.level {
	case Best:
		opts = append(opts, s2.WriterBestCompression())
	case Better:
		opts = append(opts, s2.WriterBetterCompression())
	}
	return s2.NewWriter(w, opts...), nil
}

func (sc *s2Compressor) Compress(data []byte) ([]byte, error) {
	return compressWith(data, sc.open)
}

func (sc *s2Compressor) Decompress(data []byte) ([]byte, error) {
	return readAll(s2.NewReader(bytes.NewReader(data)))
}

func (sc *s2Compressor) CompressStream(dst io.Writer, src io.Reader) error {
	return streamWith(dst, src, sc.open)
}

func (sc *s2Compressor) DecompressStream(dst io.Writer, src io.Reader) error {
	_, err := io.Copy(dst, s2.NewReader(src))
	return err
}

// Deflate compressor
type deflateCompressor struct {
	baseCompressor
}

func (dc *deflateCompressor) open(w io.Writer) (io.WriteCloser, error) {
	return flate.NewWriter(w, mapDeflateLevel(dc.level))
}

func (dc *deflateCompressor) Compress(data []byte) ([]byte, error) {
	return compressWith(data, dc.open)
}

func (dc *deflateCompressor) Decompress(data []byte) ([]byte, error) {
	r := flate.NewReader(bytes.NewReader(data))
	defer r.Close()
	return readAll(r)
}

func (dc *deflateCompressor) CompressStream(dst io.Writer, src io.Reader) error {
	return streamWith(dst, src, dc.open)
}

func (dc *deflateCompressor) DecompressStream(dst io.Writer, src io.Reader) error {
	r := flate.NewReader(src)
	defer r.Close()
	_, err := io.Copy(dst, r) //nolint:gosec // G110: input is produced by our own sinks
	return err
}

// Helper functions to map compression levels

func mapGzipLevel(level Level) int {
	switch level {
	case Fastest:
		return gzip.BestSpeed
	case Best:
		return gzip.BestCompression
	default:
		return gzip.DefaultCompression
	}
}

func mapLZ4Level(level Level) lz4.CompressionLevel {
	switch level {
	case Fastest:
		return lz4.Fast
	case Best:
		return lz4.Level9
	default:
		return lz4.Level5
	}
}

func mapZstdLevel(level Level) zstd.EncoderLevel {
	switch level {
	case Fastest:
		return zstd.SpeedFastest
	case Better:
		return zstd.SpeedBetterCompression
	case Best:
		return zstd.SpeedBestCompression
	default:
		return zstd.SpeedDefault
	}
}

func mapDeflateLevel(level Level) int {
	switch level {
	case Fastest:
		return flate.BestSpeed
	case Best:
		return flate.BestCompression
	default:
		return flate.DefaultCompression
	}
}
