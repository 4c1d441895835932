package exporter

import (
	"fmt"
	"io"
	"time"

	"github.com/parquet-go/parquet-go"

	"csvpulse/internal/table"
)

var unixEpoch = time.Date(1970, 1, 1, 0, 0, 0, 0, time.UTC)

// WriteParquet writes t as a single row group. Every column is optional so
// empty cells survive as nulls: int columns become INT64, float columns
// DOUBLE, date columns DATE and everything else UTF-8 strings. Parquet
// orders the fields of a group by name.
func WriteParquet(w io.Writer, t *table.Table) error {
	schema := parquetSchema(t)

	leaf := make(map[string]int, t.Width())
	for i, path := range schema.Columns() {
		leaf[path[0]] = i
	}

	writer := parquet.NewWriter(w, schema, parquet.Compression(&parquet.Snappy))

	rows := make([]parquet.Row, 0, rowBatch)
	flush := func() error {
		if len(rows) == 0 {
			return nil
		}
		if _, err := writer.WriteRows(rows); err != nil {
			return fmt.Errorf("failed to write parquet rows: %w", err)
		}
		rows = rows[:0]
		return nil
	}

	for i := 0; i < t.Len(); i++ {
		row := make(parquet.Row, t.Width())
		for _, c := range t.Columns() {
			idx := leaf[c.Name()]
			row[idx] = parquetValue(c.Value(i)).Level(0, definitionLevel(c.Value(i)), idx)
		}
		rows = append(rows, row)
		if len(rows) == rowBatch {
			if err := flush(); err != nil {
				return err
			}
		}
	}
	if err := flush(); err != nil {
		return err
	}
	return writer.Close()
}

const rowBatch = 1024

func parquetSchema(t *table.Table) *parquet.Schema {
	group := make(parquet.Group, t.Width())
	for _, c := range t.Columns() {
		var node parquet.Node
		switch c.Kind() {
		case table.KindInt:
			node = parquet.Int(64)
		case table.KindFloat:
			node = parquet.Leaf(parquet.DoubleType)
		case table.KindDate:
			node = parquet.Date()
		default:
			node = parquet.String()
		}
		group[c.Name()] = parquet.Optional(node)
	}
	return parquet.NewSchema("table", group)
}

func parquetValue(v table.Value) parquet.Value {
	if v.IsNull() {
		return parquet.NullValue()
	}
	switch v.Kind() {
	case table.KindInt:
		return parquet.Int64Value(v.Int())
	case table.KindFloat:
		return parquet.DoubleValue(v.Float())
	case table.KindDate:
		days := v.Time().Sub(unixEpoch) / (24 * time.Hour)
		return parquet.Int32Value(int32(days))
	default:
		return parquet.ByteArrayValue([]byte(v.Raw()))
	}
}

func definitionLevel(v table.Value) int {
	if v.IsNull() {
		return 0
	}
	return 1
}
