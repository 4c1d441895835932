package dataprocessing

import (
	"bufio"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/xuri/excelize/v2"

	apierrors "csvpulse/internal/errors"
	"csvpulse/internal/table"
)

// Format is an upload file format
type Format string

const (
	FormatCSV  Format = "csv"
	FormatXLSX Format = "xlsx"
)

// ErrEmptyFile is returned when an upload has no header row.
var ErrEmptyFile = errors.New("file is empty")

var utf8BOM = []byte{0xEF, 0xBB, 0xBF}

// DetectFormat picks the loader from the file extension. Anything that is
// not a spreadsheet is read as CSV.
func DetectFormat(fileName string) Format {
	switch strings.ToLower(filepath.Ext(fileName)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX
	default:
		return FormatCSV
	}
}

// Load reads a table in the given format.
func Load(r io.Reader, format Format) (*table.Table, error) {
	switch format {
	case FormatXLSX:
		return LoadXLSX(r)
	case FormatCSV, "":
		return LoadCSV(r)
	default:
		return nil, apierrors.NewUnsupportedError(fmt.Sprintf("unsupported upload format %q", format))
	}
}

// LoadCSV parses a comma separated file with a header row. A leading UTF-8
// byte order mark is ignored.
func LoadCSV(r io.Reader) (*table.Table, error) {
	br := bufio.NewReader(r)
	if head, err := br.Peek(len(utf8BOM)); err == nil && bytes.Equal(head, utf8BOM) {
		_, _ = br.Discard(len(utf8BOM))
	}

	reader := csv.NewReader(br)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, apierrors.NewParsingError("failed to parse CSV", ErrEmptyFile)
	}
	if err != nil {
		return nil, apierrors.NewParsingError("failed to parse CSV header", err)
	}

	var records [][]string
	for {
		rec, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, apierrors.NewParsingError("failed to parse CSV", err)
		}
		records = append(records, rec)
	}

	return build(header, records)
}

// LoadXLSX reads the first worksheet of a spreadsheet. The first row is the header.
func LoadXLSX(r io.Reader) (*table.Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, apierrors.NewParsingError("failed to open spreadsheet", err)
	}
	defer f.Close()

	sheets := f.GetSheetList()
	if len(sheets) == 0 {
		return nil, apierrors.NewParsingError("failed to parse spreadsheet", ErrEmptyFile)
	}

	rows, err := f.GetRows(sheets[0])
	if err != nil {
		return nil, apierrors.NewParsingError(fmt.Sprintf("failed to read sheet %q", sheets[0]), err)
	}

	// skip leading blank rows; GetRows trims trailing empty cells
	for len(rows) > 0 && isBlankRecord(rows[0]) {
		rows = rows[1:]
	}
	if len(rows) == 0 {
		return nil, apierrors.NewParsingError("failed to parse spreadsheet", ErrEmptyFile)
	}

	var records [][]string
	for _, row := range rows[1:] {
		if isBlankRecord(row) {
			continue
		}
		records = append(records, row)
	}
	return build(rows[0], records)
}

func build(header []string, records [][]string) (*table.Table, error) {
	t, err := table.FromRecords(header, records)
	if err != nil {
		var rowErr *table.RowError
		if errors.As(err, &rowErr) {
			return nil, apierrors.NewParsingError("ragged row", err).
				WithContext("row", rowErr.Row).
				WithContext("fields", rowErr.Fields).
				WithContext("expected", rowErr.Expected)
		}
		return nil, apierrors.NewParsingError("failed to build table", err)
	}
	return t, nil
}

func isBlankRecord(rec []string) bool {
	for _, cell := range rec {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}
