package parsers

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"sales-attribution-service/internal/models"
	apperrors "sales-attribution-service/pkg/errors"
	"sales-attribution-service/pkg/logger"
)

func newTestReader(config *ParseConfig) *Reader {
	return NewReader(config, logger.Discard())
}

func writeFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func writeWorkbook(t *testing.T, sheets map[string][][]interface{}, order ...string) string {
	t.Helper()
	f := excelize.NewFile()
	defer f.Close()

	for i, name := range order {
		if i == 0 {
			require.NoError(t, f.SetSheetName("Sheet1", name))
		} else {
			_, err := f.NewSheet(name)
			require.NoError(t, err)
		}
		for r, row := range sheets[name] {
			cell, err := excelize.CoordinatesToCellName(1, r+1)
			require.NoError(t, err)
			values := row
			require.NoError(t, f.SetSheetRow(name, cell, &values))
		}
	}

	path := filepath.Join(t.TempDir(), "book.xlsx")
	require.NoError(t, f.SaveAs(path))
	return path
}

func TestDetectFormat(t *testing.T) {
	tests := map[string]Format{
		"a.xlsx":     FormatXLSX,
		"A.XLSM":     FormatXLSX,
		"legacy.xls": FormatXLS,
		"export.csv": FormatCSV,
		"dump.txt":   FormatCSV,
		"api.json":   FormatJSON,
	}
	for path, want := range tests {
		got, ok := DetectFormat(path)
		assert.True(t, ok, path)
		assert.Equal(t, want, got, path)
	}

	_, ok := DetectFormat("notes.pdf")
	assert.False(t, ok)
}

func TestParseCell(t *testing.T) {
	tests := []struct {
		in   string
		kind models.CellKind
		text string
	}{
		{"", models.CellEmpty, ""},
		{"   ", models.CellEmpty, ""},
		{"Acme", models.CellText, "Acme"},
		{" 100 ", models.CellNumber, "100"},
		{"-12.50", models.CellNumber, "-12.5"},
		{"1.234,56", models.CellText, "1.234,56"},
		{"1e5", models.CellText, "1e5"},
		{"R$ 100", models.CellText, "R$ 100"},
		{"2024-01-01", models.CellText, "2024-01-01"},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			c := ParseCell(tt.in)
			assert.Equal(t, tt.kind, c.Kind)
			assert.Equal(t, tt.text, c.String())
		})
	}
}

func TestReadXLSX(t *testing.T) {
	path := writeWorkbook(t, map[string][][]interface{}{
		"Vendas": {
			{"Data Aprovação", "Clientes", "Valor Total", nil, "Obs"},
			{"2024-01-01", "Acme", 100.5, nil, "ok"},
			{nil, nil, nil, nil, nil},
			{"2024-01-02", 4021, 200, nil, nil},
		},
	}, "Vendas")

	table, stats, err := newTestReader(nil).Read(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Data Aprovação", "Clientes", "Valor Total", "Unnamed: 3", "Obs"}, table.Columns)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, 1, stats.RowsSkipped)
	assert.Equal(t, 1, stats.UnnamedColumns)

	amount := table.Cell(0, 2)
	assert.Equal(t, models.CellNumber, amount.Kind)
	assert.True(t, amount.Number.Equal(decimal.RequireFromString("100.5")))

	assert.Equal(t, models.Text("2024-01-01"), table.Cell(0, 0))
	assert.Equal(t, "4021", table.Cell(1, 1).String())
	assert.Equal(t, models.CellEmpty, table.Cell(1, 4).Kind)
}

func TestReadXLSXSheetSelection(t *testing.T) {
	sheets := map[string][][]interface{}{
		"Base":   {{"Vendedor", "Cliente"}, {"Ana", "Acme"}},
		"Vendas": {{"Clientes"}, {"Acme"}},
	}
	path := writeWorkbook(t, sheets, "Base", "Vendas")

	table, err := ReadTable(path, nil)
	require.NoError(t, err)
	assert.Equal(t, []string{"Vendedor", "Cliente"}, table.Columns, "first sheet is the default")

	config := DefaultParseConfig()
	config.Sheet = "Vendas"
	table, err = ReadTable(path, config)
	require.NoError(t, err)
	assert.Equal(t, []string{"Clientes"}, table.Columns)

	config.Sheet = "Missing"
	_, err = ReadTable(path, config)
	appErr, ok := apperrors.AsAppError(err)
	require.True(t, ok)
	assert.Equal(t, apperrors.CodeMissingSheet, appErr.Code)
	assert.Equal(t, "Base, Vendas", appErr.Context["sheets"])
}

func TestReadCSV(t *testing.T) {
	path := writeFile(t, "vendas.csv", "\xef\xbb\xbfData Aprovação;Clientes;Valor Total\n2024-01-01;\"Acme; Filial\";100\n;;\n2024-01-02;Globex;\n")

	table, stats, err := newTestReader(nil).Read(path)
	require.NoError(t, err)

	assert.Equal(t, []string{"Data Aprovação", "Clientes", "Valor Total"}, table.Columns)
	require.Equal(t, 2, table.Len())
	assert.Equal(t, 1, stats.RowsSkipped)
	assert.Equal(t, "Acme; Filial", table.Cell(0, 1).String())
	assert.Equal(t, models.CellNumber, table.Cell(0, 2).Kind)
	assert.Equal(t, models.CellEmpty, table.Cell(1, 2).Kind)
}

func TestReadCSVWindows1252(t *testing.T) {
	// "Aprovação" and "João" encoded as Windows-1252.
	path := writeFile(t, "legacy.csv", "Data Aprova\xe7\xe3o,Clientes\n2024-01-01,Jo\xe3o\n")

	table, err := ReadTable(path, nil)
	require.NoError(t, err)
	assert.Equal(t, "Data Aprovação", table.Columns[0])
	assert.Equal(t, "João", table.Cell(0, 1).String())
}

func TestReadCSVExplicitDelimiter(t *testing.T) {
	path := writeFile(t, "pipes.csv", "a|b;c\n1|2;3\n")

	config := DefaultParseConfig()
	config.Delimiter = ';'
	table, err := ReadTable(path, config)
	require.NoError(t, err)
	assert.Equal(t, []string{"a|b", "c"}, table.Columns)
}

func TestReadJSON(t *testing.T) {
	t.Run("objects", func(t *testing.T) {
		path := writeFile(t, "rows.json", `[
			{"Vendedor": "Ana", "Cliente": "Acme"},
			{"Cliente": "Globex", "Vendedor": "Bruno", "Valor": 10.5}
		]`)

		table, err := ReadTable(path, nil)
		require.NoError(t, err)
		assert.Equal(t, []string{"Vendedor", "Cliente", "Valor"}, table.Columns)
		assert.Equal(t, "Bruno", table.Cell(1, 0).String())
		assert.Equal(t, models.CellEmpty, table.Cell(0, 2).Kind)
		assert.Equal(t, "10.5", table.Cell(1, 2).String())
	})

	t.Run("columns and rows", func(t *testing.T) {
		table, err := DecodeJSONTable(strings.NewReader(`{"columns": ["Vendedor", "Cliente"], "rows": [["Ana", "Acme"], ["Bruno", null]]}`))
		require.NoError(t, err)
		assert.Equal(t, 2, table.Len())
		assert.True(t, table.Cell(1, 1).IsMissing())
	})

	t.Run("malformed", func(t *testing.T) {
		_, err := DecodeJSONTable(strings.NewReader(`"just a string"`))
		assert.Error(t, err)

		_, err = DecodeJSONTable(strings.NewReader(`[1, 2]`))
		assert.Error(t, err)
	})
}

func TestReadErrors(t *testing.T) {
	dir := t.TempDir()

	tests := []struct {
		name     string
		path     string
		category apperrors.ErrorCategory
		code     apperrors.ErrorCode
	}{
		{"missing file", filepath.Join(dir, "missing.xlsx"), apperrors.CategoryFile, apperrors.CodeFileNotFound},
		{"unsupported extension", writeFile(t, "notes.pdf", "x"), apperrors.CategoryFile, apperrors.CodeUnsupportedFile},
		{"corrupt workbook", writeFile(t, "broken.xlsx", "not a zip"), apperrors.CategoryParse, apperrors.CodeInvalidFormat},
		{"empty csv", writeFile(t, "empty.csv", ""), apperrors.CategoryParse, apperrors.CodeEmptyTable},
		{"empty json table", writeFile(t, "empty.json", `[]`), apperrors.CategoryParse, apperrors.CodeEmptyTable},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ReadTable(tt.path, nil)
			appErr, ok := apperrors.AsAppError(err)
			require.True(t, ok, "expected AppError, got %v", err)
			assert.Equal(t, tt.category, appErr.Category)
			assert.Equal(t, tt.code, appErr.Code)
		})
	}
}

func TestParseConfigValidate(t *testing.T) {
	config := DefaultParseConfig()
	assert.NoError(t, config.Validate())

	config.Delimiter = '"'
	assert.Error(t, config.Validate())

	config.Delimiter = ';'
	config.Comment = ';'
	assert.Error(t, config.Validate())

	clone := DefaultParseConfig().Clone()
	clone.Sheet = "X"
	assert.Empty(t, DefaultParseConfig().Sheet)
}
