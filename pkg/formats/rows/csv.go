package rows

import (
	"encoding/csv"
	"io"

	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
)

// CSVEncoder writes a header followed by one record per row. Timestamps use
// RFC 3339 and NULL becomes the empty string.
type CSVEncoder struct {
	// HeaderOnce suppresses the header after the first batch
	HeaderOnce bool

	wroteHeader bool
}

// Format implements Encoder.
func (e *CSVEncoder) Format() Format { return CSV }

// Encode implements Encoder.
func (e *CSVEncoder) Encode(w io.Writer, batch *core.RowBatch) error {
	if batch.Empty() {
		return nil
	}

	cw := csv.NewWriter(w)
	if !e.HeaderOnce || !e.wroteHeader {
		if err := cw.Write(batch.Columns); err != nil {
			return err
		}
		e.wroteHeader = true
	}

	record := make([]string, len(batch.Columns))
	for _, row := range batch.Rows {
		for i := range record {
			record[i] = cellAt(row, i).String()
		}
		if err := cw.Write(record); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}
