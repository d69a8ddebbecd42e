package models

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// CellKind tags the value held by a Cell
type CellKind int

const (
	// CellEmpty is a missing or blank spreadsheet cell
	CellEmpty CellKind = iota
	// CellText holds free text
	CellText
	// CellNumber holds a numeric value
	CellNumber
)

// String returns the string representation of CellKind
func (k CellKind) String() string {
	switch k {
	case CellEmpty:
		return "empty"
	case CellText:
		return "text"
	case CellNumber:
		return "number"
	default:
		return "unknown"
	}
}

// Cell is a single raw spreadsheet value.
type Cell struct {
	Kind   CellKind
	Text   string
	Number decimal.Decimal
}

// Empty returns a missing cell
func Empty() Cell {
	return Cell{Kind: CellEmpty}
}

// Text returns a text cell
func Text(s string) Cell {
	return Cell{Kind: CellText, Text: s}
}

// Number returns a numeric cell
func Number(d decimal.Decimal) Cell {
	return Cell{Kind: CellNumber, Number: d}
}

// Float returns a numeric cell from a float64
func Float(f float64) Cell {
	return Number(decimal.NewFromFloat(f))
}

// String coerces the cell to text. Numbers render without trailing zeros.
func (c Cell) String() string {
	switch c.Kind {
	case CellText:
		return c.Text
	case CellNumber:
		return c.Number.String()
	default:
		return ""
	}
}

// IsMissing reports whether the cell has no usable value: an empty cell or
// text that is blank after trimming.
func (c Cell) IsMissing() bool {
	switch c.Kind {
	case CellEmpty:
		return true
	case CellText:
		return strings.TrimSpace(c.Text) == ""
	default:
		return false
	}
}

// MarshalJSON encodes text as a string, numbers as JSON numbers and empty
// cells as null.
func (c Cell) MarshalJSON() ([]byte, error) {
	switch c.Kind {
	case CellText:
		return json.Marshal(c.Text)
	case CellNumber:
		return []byte(c.Number.String()), nil
	default:
		return []byte("null"), nil
	}
}

// UnmarshalJSON accepts strings, numbers, booleans and null.
func (c *Cell) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 || bytes.Equal(data, []byte("null")) {
		*c = Empty()
		return nil
	}

	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
		*c = Text(s)
		return nil
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return err
		}
		*c = Text(fmt.Sprintf("%t", b))
		return nil
	default:
		d, err := decimal.NewFromString(string(data))
		if err != nil {
			return fmt.Errorf("invalid cell value %s: %w", data, err)
		}
		*c = Number(d)
		return nil
	}
}

// Row is an ordered list of cells aligned with RawTable.Columns.
type Row []Cell

// RawTable is a parsed sheet: ordered column names and rows of raw cells.
// Column names need not be unique; a column is identified by its index.
type RawTable struct {
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// NewRawTable creates a table with the given header
func NewRawTable(columns ...string) *RawTable {
	return &RawTable{Columns: columns}
}

// AddRow appends a row and returns the table for chaining
func (t *RawTable) AddRow(cells ...Cell) *RawTable {
	t.Rows = append(t.Rows, Row(cells))
	return t
}

// Cell returns the cell at (row, col). Ragged rows yield empty cells.
func (t *RawTable) Cell(row, col int) Cell {
	if row < 0 || row >= len(t.Rows) {
		return Empty()
	}
	r := t.Rows[row]
	if col < 0 || col >= len(r) {
		return Empty()
	}
	return r[col]
}

// Column returns the trimmed name of column i
func (t *RawTable) Column(i int) string {
	if i < 0 || i >= len(t.Columns) {
		return ""
	}
	return strings.TrimSpace(t.Columns[i])
}

// Len returns the number of data rows
func (t *RawTable) Len() int {
	return len(t.Rows)
}

// String returns a short description of the table
func (t *RawTable) String() string {
	return fmt.Sprintf("RawTable{Columns: %d, Rows: %d}", len(t.Columns), len(t.Rows))
}
