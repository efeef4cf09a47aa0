package core

import (
	"fmt"
	"math"
	"strconv"
	"time"

	"github.com/goccy/go-json"
)

// CellKind is the variant of a Cell
type CellKind uint8

const (
	KindNull CellKind = iota
	KindInt
	KindFloat
	KindText
	KindTimestamp
)

// String returns the kind name
func (k CellKind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindInt:
		return "int"
	case KindFloat:
		return "float"
	case KindText:
		return "text"
	case KindTimestamp:
		return "timestamp"
	default:
		return "unknown"
	}
}

// Cell is a single column value of an extracted row. Only the field matching
// Kind is meaningful.
type Cell struct {
	Kind CellKind
	i    int64
	f    float64
	s    string
	t    time.Time
}

// Null returns a NULL cell
func Null() Cell { return Cell{Kind: KindNull} }

// Int returns an integer cell
func Int(v int64) Cell { return Cell{Kind: KindInt, i: v} }

// Float returns a floating point cell
func Float(v float64) Cell { return Cell{Kind: KindFloat, f: v} }

// Text returns a text cell
func Text(v string) Cell { return Cell{Kind: KindText, s: v} }

// Timestamp returns a timestamp cell
func Timestamp(v time.Time) Cell { return Cell{Kind: KindTimestamp, t: v} }

// IsNull reports whether the cell holds NULL
func (c Cell) IsNull() bool { return c.Kind == KindNull }

// Int returns the integer value and whether the cell is an integer
func (c Cell) Int() (int64, bool) { return c.i, c.Kind == KindInt }

// Float returns the float value and whether the cell is a float
func (c Cell) Float() (float64, bool) { return c.f, c.Kind == KindFloat }

// Text returns the text value and whether the cell is text
func (c Cell) Text() (string, bool) { return c.s, c.Kind == KindText }

// Timestamp returns the time value and whether the cell is a timestamp
func (c Cell) Timestamp() (time.Time, bool) { return c.t, c.Kind == KindTimestamp }

// Value returns the cell as a plain Go value (nil, int64, float64, string or time.Time)
func (c Cell) Value() interface{} {
	switch c.Kind {
	case KindInt:
		return c.i
	case KindFloat:
		return c.f
	case KindText:
		return c.s
	case KindTimestamp:
		return c.t
	default:
		return nil
	}
}

// String renders the cell for text encodings. NULL renders as the empty string
// and timestamps as RFC 3339 with nanoseconds.
func (c Cell) String() string {
	switch c.Kind {
	case KindInt:
		return strconv.FormatInt(c.i, 10)
	case KindFloat:
		return strconv.FormatFloat(c.f, 'g', -1, 64)
	case KindText:
		return c.s
	case KindTimestamp:
		return c.t.Format(time.RFC3339Nano)
	default:
		return ""
	}
}

// MarshalJSON encodes the cell as a JSON scalar. Non-finite floats become null.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case KindInt:
		return strconv.AppendInt(nil, c.i, 10), nil
	case KindFloat:
		if math.IsNaN(c.f) || math.IsInf(c.f, 0) {
			return []byte("null"), nil
		}
		return json.Marshal(c.f)
	case KindText:
		return json.Marshal(c.s)
	case KindTimestamp:
		return json.Marshal(c.t.Format(time.RFC3339Nano))
	default:
		return []byte("null"), nil
	}
}

// CellFromValue maps a value scanned by database/sql to a cell without
// interpreting it further. Unknown driver types are rendered as text.
func CellFromValue(v interface{}) Cell {
	switch val := v.(type) {
	case nil:
		return Null()
	case int64:
		return Int(val)
	case int:
		return Int(int64(val))
	case int32:
		return Int(int64(val))
	case int16:
		return Int(int64(val))
	case int8:
		return Int(int64(val))
	case uint64:
		if val > math.MaxInt64 {
			return Text(strconv.FormatUint(val, 10))
		}
		return Int(int64(val))
	case uint32:
		return Int(int64(val))
	case uint16:
		return Int(int64(val))
	case uint8:
		return Int(int64(val))
	case uint:
		if uint64(val) > math.MaxInt64 {
			return Text(strconv.FormatUint(uint64(val), 10))
		}
		return Int(int64(val))
	case bool:
		if val {
			return Int(1)
		}
		return Int(0)
	case float64:
		return Float(val)
	case float32:
		return Float(float64(val))
	case string:
		return Text(val)
	case []byte:
		return Text(string(val))
	case time.Time:
		return Timestamp(val)
	case fmt.Stringer:
		return Text(val.String())
	default:
		return Text(fmt.Sprintf("%v", val))
	}
}

// Row is one extracted row, ordered like RowBatch.Columns
type Row []Cell

// Window is the half-open time range [Lower, Upper) a query covered, in
// seconds since epoch.
type Window struct {
	Lower int64 `json:"lower"`
	Upper int64 `json:"upper"`
}

// Empty reports whether the window covers no time at all
func (w Window) Empty() bool { return w.Upper <= w.Lower }

// String renders the window as "lower-upper"
func (w Window) String() string {
	return strconv.FormatInt(w.Lower, 10) + "-" + strconv.FormatInt(w.Upper, 10)
}

// RowBatch is the result of one extraction cycle
type RowBatch struct {
	Source      string
	Columns     []string
	Rows        []Row
	Window      Window
	ExtractedAt time.Time
}

// Len returns the number of rows in the batch; nil batches are empty
func (b *RowBatch) Len() int {
	if b == nil {
		return 0
	}
	return len(b.Rows)
}

// Empty reports whether the batch carries no rows
func (b *RowBatch) Empty() bool { return b.Len() == 0 }
