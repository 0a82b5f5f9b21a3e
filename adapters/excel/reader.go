package excel

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"io"
	"path/filepath"
	"strconv"
	"strings"

	"labstats/domain/dataset"

	"github.com/xuri/excelize/v2"
)

// zipMagic prefixes every .xlsx payload
var zipMagic = []byte("PK\x03\x04")

// utf8BOM is stripped from the first header cell of CSV payloads
var utf8BOM = []byte("\xef\xbb\xbf")

// DataReader parses uploaded CSV and Excel payloads into tables
type DataReader struct {
	config ReaderConfig
}

// NewDataReader creates a reader with the given config
func NewDataReader(config ReaderConfig) *DataReader {
	if config.Comma == 0 {
		config.Comma = ','
	}
	return &DataReader{config: config}
}

// FileType reports "xlsx" or "csv" from the file name, falling back to content sniffing
func FileType(filename string, payload []byte) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".xlsx", ".xlsm":
		return "xlsx"
	case ".csv", ".txt", ".tsv":
		return "csv"
	}
	if bytes.HasPrefix(payload, zipMagic) {
		return "xlsx"
	}
	return "csv"
}

// Read parses a payload into a table
func (r *DataReader) Read(filename string, payload []byte) (*dataset.Table, error) {
	switch FileType(filename, payload) {
	case "xlsx":
		return r.readExcelData(payload)
	default:
		return r.readCSVData(payload)
	}
}

// readExcelData reads the configured sheet (or the first one)
func (r *DataReader) readExcelData(payload []byte) (*dataset.Table, error) {
	f, err := excelize.OpenReader(bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to open Excel file: %w", err)
	}
	defer f.Close()

	sheet := r.config.Sheet
	if sheet == "" {
		sheets := f.GetSheetList()
		if len(sheets) == 0 {
			return nil, fmt.Errorf("Excel file has no sheets")
		}
		sheet = sheets[0]
	}

	rows, err := f.GetRows(sheet)
	if err != nil {
		return nil, fmt.Errorf("failed to read sheet %q: %w", sheet, err)
	}
	if len(rows) == 0 {
		return nil, fmt.Errorf("no columns to parse from file")
	}

	// Spreadsheet rows may run past the header; extra cells get positional names
	width := len(rows[0])
	for _, row := range rows[1:] {
		if len(row) > width {
			width = len(row)
		}
	}
	header := make([]string, width)
	copy(header, rows[0])

	return r.processRows(header, rows[1:], false)
}

// readCSVData reads comma-separated records
func (r *DataReader) readCSVData(payload []byte) (*dataset.Table, error) {
	payload = bytes.TrimPrefix(payload, utf8BOM)

	reader := csv.NewReader(bytes.NewReader(payload))
	reader.Comma = r.config.Comma
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err == io.EOF {
		return nil, fmt.Errorf("no columns to parse from file")
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read CSV header: %w", err)
	}

	var records [][]string
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read CSV: %w", err)
		}
		records = append(records, record)
	}

	return r.processRows(header, records, true)
}

// processRows normalizes the header and pads every row to the header width
func (r *DataReader) processRows(header []string, records [][]string, strict bool) (*dataset.Table, error) {
	if r.config.MaxRows > 0 && len(records) > r.config.MaxRows {
		return nil, fmt.Errorf("table has %d rows, limit is %d", len(records), r.config.MaxRows)
	}

	columns := normalizeHeader(header)
	rows := make([][]string, 0, len(records))
	for i, record := range records {
		if len(record) > len(columns) {
			if strict {
				return nil, fmt.Errorf("error tokenizing data: expected %d fields in line %d, saw %d",
					len(columns), i+2, len(record))
			}
			record = record[:len(columns)]
		}
		row := make([]string, len(columns))
		copy(row, record)
		rows = append(rows, row)
	}

	return &dataset.Table{Columns: columns, Rows: rows}, nil
}

// normalizeHeader names blank header cells "Unnamed: i" and disambiguates
// duplicates as name.1, name.2, …
func normalizeHeader(header []string) []string {
	columns := make([]string, len(header))
	seen := make(map[string]int, len(header))
	for i, h := range header {
		name := h
		if strings.TrimSpace(name) == "" {
			name = "Unnamed: " + strconv.Itoa(i)
		}
		if n, dup := seen[name]; dup {
			candidate := name + "." + strconv.Itoa(n)
			for {
				if _, taken := seen[candidate]; !taken {
					break
				}
				n++
				candidate = name + "." + strconv.Itoa(n)
			}
			seen[name] = n + 1
			name = candidate
		}
		seen[name]++
		columns[i] = name
	}
	return columns
}
