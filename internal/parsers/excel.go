package parsers

import (
	"fmt"
	"strings"
	"unicode"

	"github.com/extrame/xls"
	"github.com/shopspring/decimal"
	"github.com/xuri/excelize/v2"

	"sales-attribution-service/internal/models"
	"sales-attribution-service/pkg/errors"
	"sales-attribution-service/pkg/logger"
)

// readXLSX reads the configured sheet of an Office Open XML workbook.
// Formatted and raw values are read side by side: a cell is numeric when its
// raw value is a plain number and its displayed text still looks like one,
// so dates and codes keep the text the user sees.
func (r *Reader) readXLSX(path string) ([][]models.Cell, error) {
	f, err := excelize.OpenFile(path)
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, "not a readable xlsx workbook", err)
	}
	defer f.Close()

	sheet, err := r.pickSheet(path, f.GetSheetList())
	if err != nil {
		return nil, err
	}

	shown, err := f.GetRows(sheet)
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, fmt.Sprintf("cannot read sheet %q", sheet), err)
	}
	raw, err := f.GetRows(sheet, excelize.Options{RawCellValue: true})
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, fmt.Sprintf("cannot read sheet %q", sheet), err)
	}

	r.logger.WithFields(logger.Fields{
		"file_path": path,
		"sheet":     sheet,
		"rows":      len(shown),
	}).Debug("Read xlsx sheet")

	rows := make([][]models.Cell, len(shown))
	for i, row := range shown {
		var rawRow []string
		if i < len(raw) {
			rawRow = raw[i]
		}
		cells := make([]models.Cell, len(row))
		for j, text := range row {
			rawText := text
			if j < len(rawRow) {
				rawText = rawRow[j]
			}
			cells[j] = workbookCell(text, rawText)
		}
		rows[i] = cells
	}
	return rows, nil
}

// pickSheet returns the configured sheet, or the first one when none is set
func (r *Reader) pickSheet(path string, sheets []string) (string, error) {
	if len(sheets) == 0 {
		return "", errors.ParseError(errors.CodeEmptyTable, path, "", nil)
	}
	if r.config.Sheet == "" {
		return sheets[0], nil
	}
	for _, s := range sheets {
		if s == r.config.Sheet {
			return s, nil
		}
	}
	return "", errors.ParseError(errors.CodeMissingSheet, path, r.config.Sheet, nil).
		WithContext("sheets", strings.Join(sheets, ", "))
}

func workbookCell(shown, raw string) models.Cell {
	if strings.TrimSpace(shown) == "" && strings.TrimSpace(raw) == "" {
		return models.Empty()
	}
	trimmedRaw := strings.TrimSpace(raw)
	if trimmedRaw != "" && isPlainNumber(trimmedRaw) && looksNumeric(shown) {
		if d, err := decimal.NewFromString(trimmedRaw); err == nil {
			return models.Number(d)
		}
	}
	return ParseCell(shown)
}

// looksNumeric reports whether displayed text is a formatted number such as
// "1,234.50", "R$ 100" or "15%". Dates and free text fail the test.
func looksNumeric(s string) bool {
	s = strings.TrimSpace(s)
	digits := 0
	for i, r := range s {
		switch {
		case unicode.IsDigit(r):
			digits++
		case r == '-' || r == '+':
			if i != 0 {
				return false
			}
		case r == ',' || r == '.' || r == '%' || r == '(' || r == ')' || r == '$' || r == 'R' || r == '€':
		case unicode.IsSpace(r):
		default:
			return false
		}
	}
	return digits > 0
}

// readXLS reads the configured sheet of a legacy BIFF workbook. The decoder
// panics on some malformed files; those panics surface as parse errors.
func (r *Reader) readXLS(path string) (rows [][]models.Cell, err error) {
	defer func() {
		if p := recover(); p != nil {
			rows = nil
			err = errors.ParseError(errors.CodeInvalidFormat, path, "corrupt xls workbook", fmt.Errorf("%v", p))
		}
	}()

	wb, err := xls.Open(path, r.config.Charset)
	if err != nil {
		return nil, errors.ParseError(errors.CodeInvalidFormat, path, "not a readable xls workbook", err)
	}

	names := make([]string, 0, wb.NumSheets())
	for i := 0; i < wb.NumSheets(); i++ {
		if s := wb.GetSheet(i); s != nil {
			names = append(names, s.Name)
		}
	}
	name, err := r.pickSheet(path, names)
	if err != nil {
		return nil, err
	}

	var sheet *xls.WorkSheet
	for i := 0; i < wb.NumSheets(); i++ {
		if s := wb.GetSheet(i); s != nil && s.Name == name {
			sheet = s
			break
		}
	}
	if sheet == nil {
		return nil, errors.ParseError(errors.CodeMissingSheet, path, name, nil)
	}

	for i := 0; i <= int(sheet.MaxRow); i++ {
		row := sheet.Row(i)
		if row == nil {
			rows = append(rows, nil)
			continue
		}
		cells := make([]models.Cell, row.LastCol())
		for j := range cells {
			cells[j] = ParseCell(row.Col(j))
		}
		rows = append(rows, cells)
	}

	// Trailing rows without any value are padding, not data.
	for len(rows) > 0 && isEmptyRow(rows[len(rows)-1]) {
		rows = rows[:len(rows)-1]
	}

	r.logger.WithFields(logger.Fields{
		"file_path": path,
		"sheet":     name,
		"rows":      len(rows),
	}).Debug("Read xls sheet")

	return rows, nil
}
