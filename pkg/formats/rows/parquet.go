package rows

import (
	"fmt"
	"io"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/memory"
	"github.com/apache/arrow-go/v18/parquet"
	"github.com/apache/arrow-go/v18/parquet/compress"
	"github.com/apache/arrow-go/v18/parquet/pqarrow"

	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
)

// ParquetEncoder writes each batch as a snappy compressed Parquet file with
// one row group.
type ParquetEncoder struct{}

// Format implements Encoder.
func (e *ParquetEncoder) Format() Format { return Parquet }

// Encode implements Encoder.
func (e *ParquetEncoder) Encode(w io.Writer, batch *core.RowBatch) error {
	if batch.Empty() {
		return nil
	}

	kinds := columnKinds(batch)
	schema := arrowSchema(fieldNames(batch.Columns), kinds)

	pool := memory.NewGoAllocator()
	builder := array.NewRecordBuilder(pool, schema)
	defer builder.Release()

	for _, row := range batch.Rows {
		for i := range kinds {
			appendCell(builder.Field(i), cellAt(row, i))
		}
		n := len(kinds)
		builder.Field(n).(*array.Int64Builder).Append(batch.Window.Lower)
		builder.Field(n + 1).(*array.Int64Builder).Append(batch.Window.Upper)
	}

	record := builder.NewRecord()
	defer record.Release()

	props := parquet.NewWriterProperties(
		parquet.WithCompression(compress.Codecs.Snappy),
	)
	fw, err := pqarrow.NewFileWriter(schema, w, props, pqarrow.NewArrowWriterProperties(pqarrow.WithAllocator(pool)))
	if err != nil {
		return fmt.Errorf("failed to create Parquet writer: %w", err)
	}
	if err := fw.Write(record); err != nil {
		_ = fw.Close()
		return fmt.Errorf("failed to write record batch: %w", err)
	}
	if err := fw.Close(); err != nil {
		return fmt.Errorf("failed to close Parquet writer: %w", err)
	}
	return nil
}

func arrowType(kind core.CellKind) arrow.DataType {
	switch kind {
	case core.KindInt:
		return arrow.PrimitiveTypes.Int64
	case core.KindFloat:
		return arrow.PrimitiveTypes.Float64
	case core.KindTimestamp:
		return arrow.FixedWidthTypes.Timestamp_us
	default:
		return arrow.BinaryTypes.String
	}
}

func arrowSchema(names []string, kinds []core.CellKind) *arrow.Schema {
	fields := make([]arrow.Field, 0, len(names)+2)
	for i, name := range names {
		fields = append(fields, arrow.Field{Name: name, Type: arrowType(kinds[i]), Nullable: true})
	}
	fields = append(fields,
		arrow.Field{Name: WindowLowerColumn, Type: arrow.PrimitiveTypes.Int64},
		arrow.Field{Name: WindowUpperColumn, Type: arrow.PrimitiveTypes.Int64},
	)
	return arrow.NewSchema(fields, nil)
}

func appendCell(builder array.Builder, c core.Cell) {
	if c.IsNull() {
		builder.AppendNull()
		return
	}
	switch b := builder.(type) {
	case *array.Int64Builder:
		v, _ := c.Int()
		b.Append(v)
	case *array.Float64Builder:
		if v, ok := c.Float(); ok {
			b.Append(v)
			return
		}
		v, _ := c.Int()
		b.Append(float64(v))
	case *array.TimestampBuilder:
		t, _ := c.Timestamp()
		b.Append(arrow.Timestamp(t.UnixMicro()))
	case *array.StringBuilder:
		b.Append(c.String())
	default:
		builder.AppendNull()
	}
}
