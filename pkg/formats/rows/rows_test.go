package rows

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet/file"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"
	"github.com/linkedin/goavro/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
)

func testBatch() *core.RowBatch {
	ts := time.Date(2023, 11, 14, 22, 13, 20, 0, time.UTC)
	return &core.RowBatch{
		Source:  "orders",
		Columns: []string{"id", "name", "amount", "created_at"},
		Rows: []core.Row{
			{core.Int(1), core.Text("a,b"), core.Float(12.5), core.Timestamp(ts)},
			{core.Int(2), core.Null(), core.Int(3), core.Null()},
		},
		Window: core.Window{Lower: 1000, Upper: 1600},
	}
}

func TestParseFormat(t *testing.T) {
	f, err := ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, JSONL, f)

	f, err = ParseFormat("Parquet")
	require.NoError(t, err)
	assert.Equal(t, Parquet, f)
	assert.False(t, f.Appendable())
	assert.Equal(t, ".parquet", f.Extension())

	_, err = ParseFormat("xml")
	assert.Error(t, err)
}

func TestJSONLEncoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONLEncoder{}).Encode(&buf, testBatch()))

	lines := strings.Split(strings.TrimSuffix(buf.String(), "\n"), "\n")
	require.Len(t, lines, 2)
	assert.Equal(t,
		`{"id":1,"name":"a,b","amount":12.5,"created_at":"2023-11-14T22:13:20Z","_window_lower":1000,"_window_upper":1600}`,
		lines[0])
	assert.Equal(t,
		`{"id":2,"name":null,"amount":3,"created_at":null,"_window_lower":1000,"_window_upper":1600}`,
		lines[1])
}

func TestJSONLEncoder_EmptyBatch(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&JSONLEncoder{}).Encode(&buf, &core.RowBatch{Source: "orders"}))
	assert.Zero(t, buf.Len())
}

func TestMarshalRow(t *testing.T) {
	b := testBatch()
	out, err := MarshalRow(b.Columns, b.Rows[1], b.Window)
	require.NoError(t, err)
	assert.Contains(t, string(out), `"id":2`)
	assert.NotContains(t, string(out), "\n")
}

func TestCSVEncoder(t *testing.T) {
	t.Run("header per batch", func(t *testing.T) {
		var buf bytes.Buffer
		enc := &CSVEncoder{}
		require.NoError(t, enc.Encode(&buf, testBatch()))
		require.NoError(t, enc.Encode(&buf, testBatch()))
		assert.Equal(t, 2, strings.Count(buf.String(), "id,name,amount,created_at\n"))
	})

	t.Run("header once", func(t *testing.T) {
		var buf bytes.Buffer
		enc := &CSVEncoder{HeaderOnce: true}
		require.NoError(t, enc.Encode(&buf, testBatch()))
		require.NoError(t, enc.Encode(&buf, testBatch()))
		assert.Equal(t, 1, strings.Count(buf.String(), "id,name,amount,created_at\n"))
		assert.Contains(t, buf.String(), "1,\"a,b\",12.5,2023-11-14T22:13:20Z\n")
		assert.Contains(t, buf.String(), "2,,3,\n")
	})
}

func TestAvroEncoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&AvroEncoder{}).Encode(&buf, testBatch()))

	reader, err := goavro.NewOCFReader(&buf)
	require.NoError(t, err)

	var records []map[string]interface{}
	for reader.Scan() {
		datum, err := reader.Read()
		require.NoError(t, err)
		records = append(records, datum.(map[string]interface{}))
	}
	require.NoError(t, reader.Err())
	require.Len(t, records, 2)

	first := records[0]
	assert.Equal(t, map[string]interface{}{"long": int64(1)}, first["id"])
	assert.Equal(t, map[string]interface{}{"double": 12.5}, first["amount"])
	assert.Equal(t, map[string]interface{}{"long": int64(1700000000000000)}, first["created_at"])
	assert.Equal(t, int64(1600), first[WindowUpperColumn])

	second := records[1]
	assert.Nil(t, second["name"])
	assert.Equal(t, map[string]interface{}{"double": 3.0}, second["amount"], "int widened to double")
}

func TestParquetEncoder(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, (&ParquetEncoder{}).Encode(&buf, testBatch()))

	fr, err := file.NewParquetReader(bytes.NewReader(buf.Bytes()))
	require.NoError(t, err)
	defer fr.Close()
	assert.Equal(t, int64(2), fr.NumRows())

	reader, err := pqarrow.NewFileReader(fr, pqarrow.ArrowReadProperties{}, memory.NewGoAllocator())
	require.NoError(t, err)
	table, err := reader.ReadTable(context.Background())
	require.NoError(t, err)
	defer table.Release()

	schema := table.Schema()
	require.Equal(t, 6, schema.NumFields())
	assert.Equal(t, "id", schema.Field(0).Name)
	assert.Equal(t, "int64", schema.Field(0).Type.String())
	assert.Equal(t, "float64", schema.Field(2).Type.String())
	assert.Equal(t, WindowLowerColumn, schema.Field(4).Name)
}

func TestColumnKinds(t *testing.T) {
	kinds := columnKinds(testBatch())
	assert.Equal(t, []core.CellKind{core.KindInt, core.KindText, core.KindFloat, core.KindTimestamp}, kinds)

	mixed := &core.RowBatch{
		Columns: []string{"v", "empty"},
		Rows:    []core.Row{{core.Int(1), core.Null()}, {core.Text("x"), core.Null()}},
	}
	assert.Equal(t, []core.CellKind{core.KindText, core.KindText}, columnKinds(mixed))
}

func TestFieldNames(t *testing.T) {
	assert.Equal(t,
		[]string{"id", "order_date", "_1st", "col_3", "id_1"},
		fieldNames([]string{"id", "order date", "1st", "", "id"}))
	assert.Equal(t, []string{"_window_lower_1"}, fieldNames([]string{"_window_lower"}))
}
