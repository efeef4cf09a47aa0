package rows

import (
	"bufio"
	"io"
	"strconv"

	"github.com/goccy/go-json"

	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
)

// JSONLEncoder writes one JSON object per row, keys in column order,
// followed by the window bounds the row was read from.
type JSONLEncoder struct{}

// Format implements Encoder.
func (e *JSONLEncoder) Format() Format { return JSONL }

// Encode implements Encoder.
func (e *JSONLEncoder) Encode(w io.Writer, batch *core.RowBatch) error {
	if batch.Empty() {
		return nil
	}
	keys, err := encodeKeys(batch.Columns)
	if err != nil {
		return err
	}

	bw := bufio.NewWriter(w)
	buf := make([]byte, 0, 256)
	for _, row := range batch.Rows {
		buf, err = appendRowObject(buf[:0], keys, row, batch.Window)
		if err != nil {
			return err
		}
		buf = append(buf, '\n')
		if _, err := bw.Write(buf); err != nil {
			return err
		}
	}
	return bw.Flush()
}

// MarshalRow renders a single row the way JSONLEncoder does, without the
// trailing newline.
func MarshalRow(columns []string, row core.Row, window core.Window) ([]byte, error) {
	keys, err := encodeKeys(columns)
	if err != nil {
		return nil, err
	}
	return appendRowObject(make([]byte, 0, 128), keys, row, window)
}

func encodeKeys(columns []string) ([][]byte, error) {
	keys := make([][]byte, len(columns))
	for i, c := range columns {
		k, err := json.Marshal(c)
		if err != nil {
			return nil, err
		}
		keys[i] = k
	}
	return keys, nil
}

func appendRowObject(buf []byte, keys [][]byte, row core.Row, window core.Window) ([]byte, error) {
	buf = append(buf, '{')
	for i, key := range keys {
		v, err := cellAt(row, i).MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf = append(buf, key...)
		buf = append(buf, ':')
		buf = append(buf, v...)
		buf = append(buf, ',')
	}
	buf = append(buf, `"`+WindowLowerColumn+`":`...)
	buf = strconv.AppendInt(buf, window.Lower, 10)
	buf = append(buf, `,"`+WindowUpperColumn+`":`...)
	buf = strconv.AppendInt(buf, window.Upper, 10)
	return append(buf, '}'), nil
}
