package exporter

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"

	"github.com/klauspost/compress/gzip"

	apierrors "csvpulse/internal/errors"
	"csvpulse/internal/table"
)

// Format is a download format
type Format string

const (
	FormatCSV     Format = "csv"
	FormatParquet Format = "parquet"
)

// ParseFormat maps a query value to a Format. Empty means CSV.
func ParseFormat(s string) (Format, error) {
	switch Format(strings.ToLower(strings.TrimSpace(s))) {
	case "", FormatCSV:
		return FormatCSV, nil
	case FormatParquet:
		return FormatParquet, nil
	}
	return "", fmt.Errorf("unsupported export format %q", s)
}

// Options selects the serialization of an export
type Options struct {
	Format    Format
	Gzip      bool
	BOMPrefix bool
}

// Export serializes t to w.
func Export(w io.Writer, t *table.Table, opts Options) error {
	if opts.Gzip {
		zw := gzip.NewWriter(w)
		if err := write(zw, t, opts); err != nil {
			zw.Close()
			return err
		}
		return zw.Close()
	}
	return write(w, t, opts)
}

func write(w io.Writer, t *table.Table, opts Options) error {
	switch opts.Format {
	case FormatParquet:
		return WriteParquet(w, t)
	case FormatCSV, "":
		return WriteCSV(w, t, WriteOptions{BOMPrefix: opts.BOMPrefix})
	}
	return fmt.Errorf("unsupported export format %q", opts.Format)
}

// WriteFile exports t to path, creating parent directories as needed.
func WriteFile(path string, t *table.Table, opts Options) error {
	slog.Info("Writing export file",
		slog.String("file_path", path),
		slog.String("format", string(opts.Format)),
		slog.Int("record_count", t.Len()))

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return apierrors.NewStorageError("failed to create directory", err).WithContext("path", dir)
		}
	}

	file, err := os.Create(path)
	if err != nil {
		return apierrors.NewStorageError("failed to create file", err).WithContext("path", path)
	}
	if err := Export(file, t, opts); err != nil {
		file.Close()
		return err
	}
	if err := file.Close(); err != nil {
		return apierrors.NewStorageError("failed to close file", err).WithContext("path", path)
	}
	return nil
}

// FileName derives the download name from a profile's CSV name.
func FileName(base string, opts Options) string {
	if base == "" {
		base = "filtered_data.csv"
	}
	name := strings.TrimSuffix(base, filepath.Ext(base))
	switch opts.Format {
	case FormatParquet:
		name += ".parquet"
	default:
		name += ".csv"
	}
	if opts.Gzip {
		name += ".gz"
	}
	return name
}

// ContentType returns the media type of an export.
func ContentType(opts Options) string {
	switch {
	case opts.Gzip:
		return "application/gzip"
	case opts.Format == FormatParquet:
		return "application/vnd.apache.parquet"
	default:
		return "text/csv; charset=utf-8"
	}
}
