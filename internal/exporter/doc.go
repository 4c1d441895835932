// Package exporter serializes narrowed tables for download.
//
// CSV is the default format. Cells are written as the raw text they were
// uploaded with, in the original column order, so an export reloads into an
// identical table. Parquet exports carry typed, nullable columns. Either
// format can be gzip-compressed.
//
// Example usage:
//
//	opts := exporter.Options{Format: exporter.FormatCSV}
//	w.Header().Set("Content-Type", exporter.ContentType(opts))
//	err := exporter.Export(w, narrowed, opts)
package exporter
