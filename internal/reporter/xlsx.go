package reporter

import (
	"fmt"
	"io"

	"github.com/xuri/excelize/v2"

	"sales-attribution-service/internal/models"
)

// generateXLSXReport writes the consolidated workbook. The first sheet holds
// the consolidated table; summary and reference sheets follow when enabled.
func (rg *ReportGenerator) generateXLSXReport(report *Report, writer io.Writer) error {
	f := excelize.NewFile()
	defer f.Close()

	if err := f.SetSheetName("Sheet1", SheetConsolidated); err != nil {
		return fmt.Errorf("failed to name sheet: %w", err)
	}

	header, err := f.NewStyle(&excelize.Style{Font: &excelize.Font{Bold: true}})
	if err != nil {
		return fmt.Errorf("failed to create header style: %w", err)
	}

	rows := make([][]interface{}, len(report.Rows))
	for i, row := range report.Rows {
		rows[i] = workbookRow(row)
	}
	if err := writeSheet(f, SheetConsolidated, header, stringsRow(report.Columns), rows); err != nil {
		return err
	}

	if rg.config.IncludeOwners {
		var owners [][]interface{}
		for _, o := range report.Summary.Owners {
			owners = append(owners, []interface{}{o.Owner, o.Rows, o.Amount.InexactFloat64(), o.AverageTicket, o.MedianTicket})
		}
		head := []interface{}{rg.config.OwnerHeader, "Linhas", "Valor Total", "Ticket Médio", "Ticket Mediano"}
		if err := writeSheet(f, SheetSummary, header, head, owners); err != nil {
			return err
		}
	}

	if rg.config.IncludeMapping {
		var entries [][]interface{}
		for _, e := range report.Mapping {
			entries = append(entries, []interface{}{e.Subject, e.Owner})
		}
		head := []interface{}{"Cliente", rg.config.OwnerHeader}
		if err := writeSheet(f, SheetMapping, header, head, entries); err != nil {
			return err
		}
	}

	f.SetActiveSheet(0)
	if err := f.Write(writer); err != nil {
		return fmt.Errorf("failed to write workbook: %w", err)
	}
	return nil
}

func writeSheet(f *excelize.File, name string, headerStyle int, header []interface{}, rows [][]interface{}) error {
	if name != SheetConsolidated {
		if _, err := f.NewSheet(name); err != nil {
			return fmt.Errorf("failed to create sheet %s: %w", name, err)
		}
	}

	sw, err := f.NewStreamWriter(name)
	if err != nil {
		return fmt.Errorf("failed to open sheet %s: %w", name, err)
	}

	if err := sw.SetRow("A1", header, excelize.RowOpts{StyleID: headerStyle}); err != nil {
		return fmt.Errorf("failed to write header of %s: %w", name, err)
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+2)
		if err != nil {
			return err
		}
		if err := sw.SetRow(cell, row); err != nil {
			return fmt.Errorf("failed to write row %d of %s: %w", i+2, name, err)
		}
	}
	return sw.Flush()
}

// workbookRow keeps numbers numeric so spreadsheet formulas work on them
func workbookRow(row models.Row) []interface{} {
	out := make([]interface{}, len(row))
	for i, c := range row {
		switch c.Kind {
		case models.CellNumber:
			out[i] = c.Number.InexactFloat64()
		case models.CellText:
			out[i] = c.Text
		default:
			out[i] = nil
		}
	}
	return out
}

func stringsRow(values []string) []interface{} {
	out := make([]interface{}, len(values))
	for i, v := range values {
		out[i] = v
	}
	return out
}
