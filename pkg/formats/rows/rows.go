// Package rows encodes extracted row batches for sinks.
//
// JSON lines and CSV output can be appended batch after batch to one stream.
// Avro (object container) and Parquet produce one self-contained file per
// batch and are meant for object sinks.
package rows

import (
	"fmt"
	"io"
	"strings"

	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
)

// Format names a batch encoding.
type Format string

const (
	// JSONL writes one JSON object per row
	JSONL Format = "jsonl"
	// CSV writes a header and one record per row
	CSV Format = "csv"
	// Avro writes an object container file per batch
	Avro Format = "avro"
	// Parquet writes a parquet file per batch
	Parquet Format = "parquet"
)

// Metadata columns added to JSON lines, Avro and Parquet output.
const (
	WindowLowerColumn = "_window_lower"
	WindowUpperColumn = "_window_upper"
)

// ParseFormat maps a configuration value to a Format. The empty string
// means JSONL.
func ParseFormat(name string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(name))); f {
	case "":
		return JSONL, nil
	case JSONL, CSV, Avro, Parquet:
		return f, nil
	default:
		return "", fmt.Errorf("unsupported row format: %s", name)
	}
}

// Appendable reports whether encoded batches can be concatenated into one
// stream.
func (f Format) Appendable() bool {
	return f == JSONL || f == CSV
}

// Extension returns the file suffix of the format including the dot.
func (f Format) Extension() string {
	switch f {
	case CSV:
		return ".csv"
	case Avro:
		return ".avro"
	case Parquet:
		return ".parquet"
	default:
		return ".jsonl"
	}
}

// ContentType returns the MIME type used for uploaded objects.
func (f Format) ContentType() string {
	switch f {
	case CSV:
		return "text/csv"
	case Avro:
		return "application/avro"
	case Parquet:
		return "application/vnd.apache.parquet"
	default:
		return "application/x-ndjson"
	}
}

// Encoder writes a batch to w.
type Encoder interface {
	Format() Format
	Encode(w io.Writer, batch *core.RowBatch) error
}

// Options tune encoder behaviour.
type Options struct {
	// HeaderOnce writes the CSV header only for the first batch, for sinks
	// that append every batch to the same stream
	HeaderOnce bool
}

// NewEncoder returns the encoder for a format.
func NewEncoder(format Format, opts Options) (Encoder, error) {
	switch format {
	case JSONL, "":
		return &JSONLEncoder{}, nil
	case CSV:
		return &CSVEncoder{HeaderOnce: opts.HeaderOnce}, nil
	case Avro:
		return &AvroEncoder{}, nil
	case Parquet:
		return &ParquetEncoder{}, nil
	default:
		return nil, fmt.Errorf("unsupported row format: %s", format)
	}
}

// columnKinds infers one kind per column from the non-null cells of a batch.
// Columns mixing Int and Float widen to Float; any other mix, and columns
// holding only nulls, fall back to Text.
func columnKinds(batch *core.RowBatch) []core.CellKind {
	kinds := make([]core.CellKind, len(batch.Columns))
	for _, row := range batch.Rows {
		for i := range kinds {
			if i >= len(row) || row[i].IsNull() {
				continue
			}
			k := row[i].Kind
			switch {
			case kinds[i] == core.KindNull:
				kinds[i] = k
			case kinds[i] == k:
			case numeric(kinds[i]) && numeric(k):
				kinds[i] = core.KindFloat
			default:
				kinds[i] = core.KindText
			}
		}
	}
	for i, k := range kinds {
		if k == core.KindNull {
			kinds[i] = core.KindText
		}
	}
	return kinds
}

func numeric(k core.CellKind) bool {
	return k == core.KindInt || k == core.KindFloat
}

// cellAt tolerates short rows.
func cellAt(row core.Row, i int) core.Cell {
	if i < len(row) {
		return row[i]
	}
	return core.Null()
}

// fieldName turns a column label into an identifier accepted by Avro and
// Parquet schemas.
func fieldName(column string, index int) string {
	var b strings.Builder
	for i, r := range column {
		switch {
		case r == '_', r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z':
			b.WriteRune(r)
		case r >= '0' && r <= '9':
			if i == 0 {
				b.WriteByte('_')
			}
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	if b.Len() == 0 {
		return fmt.Sprintf("col_%d", index)
	}
	return b.String()
}

// fieldNames returns unique identifiers for all columns of a batch. The
// window metadata columns are reserved.
func fieldNames(columns []string) []string {
	names := make([]string, len(columns))
	seen := map[string]int{WindowLowerColumn: 1, WindowUpperColumn: 1}
	for i, c := range columns {
		n := fieldName(c, i)
		if count := seen[n]; count > 0 {
			seen[n] = count + 1
			n = fmt.Sprintf("%s_%d", n, count)
		} else {
			seen[n] = 1
		}
		names[i] = n
	}
	return names
}
