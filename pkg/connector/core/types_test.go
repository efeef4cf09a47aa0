package core

import (
	"math"
	"testing"
	"time"

	"github.com/goccy/go-json"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type decimal struct{ v string }

func (d decimal) String() string { return d.v }

func TestCellFromValue(t *testing.T) {
	ts := time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

	tests := []struct {
		name  string
		value interface{}
		kind  CellKind
		text  string
	}{
		{"nil", nil, KindNull, ""},
		{"int64", int64(-42), KindInt, "-42"},
		{"int32", int32(7), KindInt, "7"},
		{"uint8", uint8(255), KindInt, "255"},
		{"huge uint64", uint64(math.MaxUint64), KindText, "18446744073709551615"},
		{"bool true", true, KindInt, "1"},
		{"bool false", false, KindInt, "0"},
		{"float64", 1.5, KindFloat, "1.5"},
		{"float32", float32(0.25), KindFloat, "0.25"},
		{"string", "hello", KindText, "hello"},
		{"decimal bytes", []byte("12.340"), KindText, "12.340"},
		{"time", ts, KindTimestamp, "2024-03-01T12:00:00Z"},
		{"stringer", decimal{"9.99"}, KindText, "9.99"},
		{"other", struct{ A int }{3}, KindText, "{3}"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := CellFromValue(tt.value)
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.text, c.String())
		})
	}
}

func TestCellAccessors(t *testing.T) {
	v, ok := Int(5).Int()
	assert.True(t, ok)
	assert.Equal(t, int64(5), v)

	_, ok = Int(5).Text()
	assert.False(t, ok)

	s, ok := Text("x").Text()
	assert.True(t, ok)
	assert.Equal(t, "x", s)

	assert.True(t, Null().IsNull())
	assert.Nil(t, Null().Value())
	assert.Equal(t, 2.5, Float(2.5).Value())
}

func TestCellMarshalJSON(t *testing.T) {
	row := map[string]Cell{
		"id":      Int(1),
		"price":   Float(9.5),
		"name":    Text(`a "quoted" name`),
		"deleted": Null(),
		"nan":     Float(math.NaN()),
		"at":      Timestamp(time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)),
	}

	data, err := json.Marshal(row)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(1), decoded["id"])
	assert.Equal(t, 9.5, decoded["price"])
	assert.Equal(t, `a "quoted" name`, decoded["name"])
	assert.Nil(t, decoded["deleted"])
	assert.Nil(t, decoded["nan"])
	assert.Equal(t, "2024-01-02T03:04:05Z", decoded["at"])
}

func TestRowBatch(t *testing.T) {
	var nilBatch *RowBatch
	assert.True(t, nilBatch.Empty())

	b := &RowBatch{Rows: []Row{{Int(1)}}, Window: Window{Lower: 10, Upper: 20}}
	assert.Equal(t, 1, b.Len())
	assert.False(t, b.Empty())
	assert.Equal(t, "10-20", b.Window.String())
	assert.True(t, Window{Lower: 5, Upper: 5}.Empty())
}
