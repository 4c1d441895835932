package exporter

import (
	"encoding/csv"
	"fmt"
	"io"

	"csvpulse/internal/table"
)

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// WriteOptions configures CSV writing behavior
type WriteOptions struct {
	BOMPrefix bool // Add UTF-8 BOM for Excel compatibility
}

// WriteCSV writes the header row followed by every row of t. Cells are
// written as the raw text they were loaded from, so reloading the output
// yields the same table.
func WriteCSV(w io.Writer, t *table.Table, options WriteOptions) error {
	if options.BOMPrefix {
		if _, err := w.Write(utf8BOM); err != nil {
			return fmt.Errorf("failed to write BOM: %w", err)
		}
	}

	writer := csv.NewWriter(w)

	if err := writer.Write(t.ColumnNames()); err != nil {
		return fmt.Errorf("failed to write headers: %w", err)
	}

	record := make([]string, t.Width())
	columns := t.Columns()
	for i := 0; i < t.Len(); i++ {
		for j, c := range columns {
			record[j] = c.Value(i).Raw()
		}
		if len(record) == 1 && record[0] == "" {
			// a lone empty field would be a blank line, which readers skip
			writer.Flush()
			if _, err := io.WriteString(w, "\"\"\n"); err != nil {
				return fmt.Errorf("failed to write record %d: %w", i, err)
			}
			continue
		}
		if err := writer.Write(record); err != nil {
			return fmt.Errorf("failed to write record %d: %w", i, err)
		}
	}

	writer.Flush()
	return writer.Error()
}
