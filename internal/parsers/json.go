package parsers

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"sales-attribution-service/internal/models"
	"sales-attribution-service/pkg/errors"
)

// readJSON reads a table stored as JSON
func (r *Reader) readJSON(path string) (*models.RawTable, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, errors.FileError("", path, err)
	}
	defer file.Close()

	table, err := DecodeJSONTable(file)
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, "malformed JSON table", err)
	}
	if len(table.Columns) == 0 {
		return nil, errors.ParseError(errors.CodeEmptyTable, path, "", nil)
	}
	return table, nil
}

// DecodeJSONTable decodes either {"columns": [...], "rows": [[...]]} or an
// array of flat objects. For objects, columns follow the order in which keys
// first appear and absent keys become empty cells.
func DecodeJSONTable(rd io.Reader) (*models.RawTable, error) {
	data, err := io.ReadAll(rd)
	if err != nil {
		return nil, err
	}
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, fmt.Errorf("empty document")
	}

	switch data[0] {
	case '{':
		var table models.RawTable
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.DisallowUnknownFields()
		if err := dec.Decode(&table); err != nil {
			return nil, err
		}
		return &table, nil
	case '[':
		return decodeObjects(data)
	default:
		return nil, fmt.Errorf("expected a JSON object or array, got %q", data[0])
	}
}

func decodeObjects(data []byte) (*models.RawTable, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	if _, err := dec.Token(); err != nil {
		return nil, err
	}

	index := make(map[string]int)
	var columns []string
	var records []map[int]models.Cell

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		if delim, ok := tok.(json.Delim); !ok || delim != '{' {
			return nil, fmt.Errorf("row %d is not an object", len(records))
		}

		record := make(map[int]models.Cell)
		for dec.More() {
			keyTok, err := dec.Token()
			if err != nil {
				return nil, err
			}
			key, _ := keyTok.(string)

			var cell models.Cell
			if err := dec.Decode(&cell); err != nil {
				return nil, fmt.Errorf("row %d, key %q: %w", len(records), key, err)
			}

			idx, seen := index[key]
			if !seen {
				idx = len(columns)
				index[key] = idx
				columns = append(columns, key)
			}
			record[idx] = cell
		}
		if _, err := dec.Token(); err != nil {
			return nil, err
		}
		records = append(records, record)
	}

	table := models.NewRawTable(columns...)
	for _, record := range records {
		row := make(models.Row, len(columns))
		for i := range row {
			if c, ok := record[i]; ok {
				row[i] = c
			}
		}
		table.Rows = append(table.Rows, row)
	}
	return table, nil
}
