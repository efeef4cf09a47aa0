package rows

import (
	"fmt"
	"io"

	"github.com/goccy/go-json"
	"github.com/linkedin/goavro/v2"

	"github.com/ajitpratap0/sqlpoller/pkg/connector/core"
)

// AvroEncoder writes each batch as an Avro object container file. Every
// column is a nullable union; timestamps are stored as microseconds since
// the epoch.
type AvroEncoder struct {
	// Compression is the OCF block codec (null, deflate, snappy)
	Compression string
}

// Format implements Encoder.
func (e *AvroEncoder) Format() Format { return Avro }

// Encode implements Encoder.
func (e *AvroEncoder) Encode(w io.Writer, batch *core.RowBatch) error {
	if batch.Empty() {
		return nil
	}

	kinds := columnKinds(batch)
	names := fieldNames(batch.Columns)
	schema, err := avroSchema(batch.Source, names, kinds)
	if err != nil {
		return err
	}
	codec, err := goavro.NewCodec(schema)
	if err != nil {
		return fmt.Errorf("failed to create Avro codec: %w", err)
	}

	compression := e.Compression
	if compression == "" {
		compression = goavro.CompressionNullLabel
	}
	ocf, err := goavro.NewOCFWriter(goavro.OCFConfig{
		W:               w,
		Codec:           codec,
		CompressionName: compression,
	})
	if err != nil {
		return fmt.Errorf("failed to create Avro writer: %w", err)
	}

	records := make([]interface{}, 0, len(batch.Rows))
	for _, row := range batch.Rows {
		native := make(map[string]interface{}, len(names)+2)
		for i, name := range names {
			native[name] = avroValue(cellAt(row, i), kinds[i])
		}
		native[WindowLowerColumn] = batch.Window.Lower
		native[WindowUpperColumn] = batch.Window.Upper
		records = append(records, native)
	}
	if err := ocf.Append(records); err != nil {
		return fmt.Errorf("failed to write Avro records: %w", err)
	}
	return nil
}

func avroType(kind core.CellKind) string {
	switch kind {
	case core.KindInt, core.KindTimestamp:
		return "long"
	case core.KindFloat:
		return "double"
	default:
		return "string"
	}
}

func avroSchema(source string, names []string, kinds []core.CellKind) (string, error) {
	fields := make([]map[string]interface{}, 0, len(names)+2)
	for i, name := range names {
		field := map[string]interface{}{
			"name":    name,
			"type":    []interface{}{"null", avroType(kinds[i])},
			"default": nil,
		}
		if kinds[i] == core.KindTimestamp {
			field["doc"] = "microseconds since epoch"
		}
		fields = append(fields, field)
	}
	fields = append(fields,
		map[string]interface{}{"name": WindowLowerColumn, "type": "long"},
		map[string]interface{}{"name": WindowUpperColumn, "type": "long"},
	)

	schema, err := json.Marshal(map[string]interface{}{
		"type":      "record",
		"name":      fieldName(source, 0) + "_row",
		"namespace": "sqlpoller",
		"fields":    fields,
	})
	if err != nil {
		return "", err
	}
	return string(schema), nil
}

// avroValue wraps a cell in the union branch of its column.
func avroValue(c core.Cell, kind core.CellKind) interface{} {
	if c.IsNull() {
		return nil
	}
	switch kind {
	case core.KindInt:
		v, _ := c.Int()
		return goavro.Union("long", v)
	case core.KindTimestamp:
		t, _ := c.Timestamp()
		return goavro.Union("long", t.UnixMicro())
	case core.KindFloat:
		if v, ok := c.Float(); ok {
			return goavro.Union("double", v)
		}
		v, _ := c.Int()
		return goavro.Union("double", float64(v))
	default:
		return goavro.Union("string", c.String())
	}
}
