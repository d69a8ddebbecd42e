// Package parsers reads spreadsheet-like files into raw tables.
//
// Every supported format ends up as a models.RawTable whose first row is the
// header. Cells keep their raw text unless they are plain numbers, which are
// kept exact as decimals. Nothing is inferred about what the columns mean;
// that is left to the mapping and roles packages.
//
// Supported formats, chosen by file extension:
//   - .xlsx, .xlsm: Office Open XML workbooks
//   - .xls: legacy BIFF workbooks
//   - .csv, .txt: delimited text, UTF-8 or Windows-1252
//   - .json: an array of objects or {"columns": [...], "rows": [[...]]}
//
// Example usage:
//
//	reader := parsers.NewReader(parsers.DefaultParseConfig(), log)
//	table, stats, err := reader.Read("vendas.xlsx")
package parsers

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/shopspring/decimal"

	"sales-attribution-service/internal/models"
	"sales-attribution-service/pkg/errors"
	"sales-attribution-service/pkg/logger"
)

// Format identifies a supported input file format
type Format string

const (
	FormatXLSX Format = "xlsx"
	FormatXLS  Format = "xls"
	FormatCSV  Format = "csv"
	FormatJSON Format = "json"
)

// DetectFormat maps a file extension to a Format
func DetectFormat(path string) (Format, bool) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".xlsx", ".xlsm":
		return FormatXLSX, true
	case ".xls":
		return FormatXLS, true
	case ".csv", ".txt":
		return FormatCSV, true
	case ".json":
		return FormatJSON, true
	default:
		return "", false
	}
}

// Reader reads tables from files
type Reader struct {
	config *ParseConfig
	logger logger.Logger
}

// NewReader creates a Reader. A nil config or logger falls back to defaults.
func NewReader(config *ParseConfig, log logger.Logger) *Reader {
	if config == nil {
		config = DefaultParseConfig()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}

	log = log.WithComponent("parser")
	log.WithFields(logger.Fields{
		"sheet":           config.Sheet,
		"delimiter":       string(config.Delimiter),
		"skip_empty_rows": config.SkipEmptyRows,
	}).Debug("Created table reader")

	return &Reader{config: config, logger: log}
}

// ReadTable reads path with the given configuration
func ReadTable(path string, config *ParseConfig) (*models.RawTable, error) {
	table, _, err := NewReader(config, nil).Read(path)
	return table, err
}

// Read parses the file at path into a table
func (r *Reader) Read(path string) (*models.RawTable, *ParseStats, error) {
	if err := r.config.Validate(); err != nil {
		return nil, nil, errors.ConfigurationError(errors.CodeInvalidConfig, "parser", r.config.Delimiter, err)
	}

	format, ok := DetectFormat(path)
	if !ok {
		return nil, nil, errors.FileError(errors.CodeUnsupportedFile, path, nil).
			WithContext("extension", filepath.Ext(path))
	}

	if err := r.checkFile(path); err != nil {
		return nil, nil, err
	}

	log := r.logger.WithFields(logger.Fields{"file_path": path, "format": format})
	log.Debug("Reading table")

	var (
		rows  [][]models.Cell
		table *models.RawTable
		err   error
	)
	switch format {
	case FormatXLSX:
		rows, err = r.readXLSX(path)
	case FormatXLS:
		rows, err = r.readXLS(path)
	case FormatCSV:
		rows, err = r.readCSV(path)
	case FormatJSON:
		table, err = r.readJSON(path)
	}
	if err != nil {
		log.WithError(err).Error("Failed to read table")
		return nil, nil, err
	}

	stats := NewParseStats()
	if table == nil {
		table, err = r.buildTable(path, rows, stats)
		if err != nil {
			return nil, nil, err
		}
	} else {
		stats.Columns = len(table.Columns)
		stats.RowsParsed = table.Len()
	}

	log.WithFields(logger.Fields{
		"columns":      stats.Columns,
		"rows":         stats.RowsParsed,
		"skipped_rows": stats.RowsSkipped,
	}).Info("Table loaded")

	return table, stats, nil
}

// checkFile maps open failures to file errors before any decoder runs
func (r *Reader) checkFile(path string) error {
	file, err := os.Open(path)
	if err != nil {
		r.logger.WithError(err).WithField("file_path", path).Error("Failed to open file")

		if os.IsNotExist(err) {
			return errors.FileError(errors.CodeFileNotFound, path, err)
		}
		if os.IsPermission(err) {
			return errors.FileError(errors.CodeFilePermission, path, err)
		}
		return errors.FileError("", path, err)
	}
	defer file.Close()

	info, err := file.Stat()
	if err != nil {
		return errors.FileError("", path, err)
	}
	if info.IsDir() {
		return errors.FileError(errors.CodeUnsupportedFile, path, fmt.Errorf("%s is a directory", path))
	}
	return nil
}

// buildTable turns decoded rows into a table: the first row is the header,
// the table is as wide as its widest row, and blank headers are named
// "Unnamed: N" after their position.
func (r *Reader) buildTable(path string, rows [][]models.Cell, stats *ParseStats) (*models.RawTable, error) {
	if len(rows) == 0 {
		return nil, errors.ParseError(errors.CodeEmptyTable, path, "", nil)
	}

	width := 0
	for _, row := range rows {
		width = max(width, len(row))
	}

	columns := cleanHeaders(rows[0], width)
	for _, c := range columns {
		if strings.HasPrefix(c, unnamedPrefix) {
			stats.UnnamedColumns++
		}
	}

	table := models.NewRawTable(columns...)
	for _, row := range rows[1:] {
		if r.config.SkipEmptyRows && isEmptyRow(row) {
			stats.RowsSkipped++
			continue
		}
		table.Rows = append(table.Rows, models.Row(row))
	}

	stats.Columns = width
	stats.RowsParsed = table.Len()
	return table, nil
}

const unnamedPrefix = "Unnamed: "

// cleanHeaders trims header names and names blank ones after their position
func cleanHeaders(header []models.Cell, width int) []string {
	columns := make([]string, width)
	for i := range columns {
		var name string
		if i < len(header) {
			name = strings.TrimSpace(header[i].String())
		}
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}
		if name == "" {
			name = fmt.Sprintf("%s%d", unnamedPrefix, i)
		}
		columns[i] = name
	}
	return columns
}

func isEmptyRow(row []models.Cell) bool {
	for _, c := range row {
		if !c.IsMissing() {
			return false
		}
	}
	return true
}

// ParseCell converts raw text into a cell: blank text is empty, plain
// decimal numbers become numeric cells and anything else stays text as is.
func ParseCell(s string) models.Cell {
	trimmed := strings.TrimSpace(s)
	if trimmed == "" {
		return models.Empty()
	}
	if isPlainNumber(trimmed) {
		if d, err := decimal.NewFromString(trimmed); err == nil {
			return models.Number(d)
		}
	}
	return models.Text(s)
}

// isPlainNumber accepts an optional sign, digits and at most one decimal
// point. Exponents, thousands separators and currency are left as text.
func isPlainNumber(s string) bool {
	if s[0] == '+' || s[0] == '-' {
		s = s[1:]
	}
	digits, dots := 0, 0
	for _, r := range s {
		switch {
		case r >= '0' && r <= '9':
			digits++
		case r == '.':
			dots++
		default:
			return false
		}
	}
	return digits > 0 && dots <= 1
}

// ParseStats holds statistics about a read
type ParseStats struct {
	Columns        int `json:"columns"`
	UnnamedColumns int `json:"unnamed_columns"`
	RowsParsed     int `json:"rows_parsed"`
	RowsSkipped    int `json:"rows_skipped"`
}

// NewParseStats creates a new ParseStats instance
func NewParseStats() *ParseStats {
	return &ParseStats{}
}

// String returns a human-readable summary of parsing statistics
func (ps *ParseStats) String() string {
	return fmt.Sprintf("Parsed %d columns (%d unnamed), %d rows (%d skipped)",
		ps.Columns, ps.UnnamedColumns, ps.RowsParsed, ps.RowsSkipped)
}
