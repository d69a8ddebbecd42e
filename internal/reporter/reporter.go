// Package reporter renders attribution reports.
//
// A Report holds the consolidated sales table (the original columns plus the
// owner column) and a summary with counts per match stage and amounts per
// owner. The generator writes it in one of several formats:
//   - xlsx: the consolidated workbook, sheet "Consolidado", plus summary sheets
//   - csv: the consolidated table only
//   - json: the full report for programmatic consumption
//   - console: summary tables for terminal display
//   - markdown, html: a shareable summary document
//
// Example usage:
//
//	report := reporter.NewReport(input, reporter.DefaultOwnerHeader)
//	generator, err := reporter.NewReportGenerator(reporter.DefaultReportConfig())
//	err = generator.GenerateReport(report, os.Stdout)
package reporter

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"
	"time"

	"sales-attribution-service/internal/models"
)

// OutputFormat represents the supported report output formats
type OutputFormat string

const (
	FormatXLSX     OutputFormat = "xlsx"
	FormatCSV      OutputFormat = "csv"
	FormatJSON     OutputFormat = "json"
	FormatConsole  OutputFormat = "console"
	FormatMarkdown OutputFormat = "markdown"
	FormatHTML     OutputFormat = "html"
)

// IsValid checks if the output format is supported
func (f OutputFormat) IsValid() bool {
	switch f {
	case FormatXLSX, FormatCSV, FormatJSON, FormatConsole, FormatMarkdown, FormatHTML:
		return true
	default:
		return false
	}
}

// Extension returns the file extension used for the format
func (f OutputFormat) Extension() string {
	switch f {
	case FormatConsole:
		return ".txt"
	case FormatMarkdown:
		return ".md"
	default:
		return "." + string(f)
	}
}

// IsBinary reports whether the format cannot be written to a terminal
func (f OutputFormat) IsBinary() bool {
	return f == FormatXLSX
}

// DefaultOutputBase is the default report file name, without extension
const DefaultOutputBase = "Relatorio_Vendas_Consolidado"

// Sheet names used in the xlsx report
const (
	SheetConsolidated = "Consolidado"
	SheetSummary      = "Resumo"
	SheetMapping      = "Base Consolidada"
)

// ReportConfig holds configuration options for report generation
type ReportConfig struct {
	Format OutputFormat `json:"format" mapstructure:"format"`

	// OwnerHeader names the derived owner column
	OwnerHeader string `json:"owner_header" mapstructure:"owner_header"`

	// Detail level options
	IncludeMapping   bool `json:"include_mapping" mapstructure:"include_mapping"`
	IncludeUnmatched bool `json:"include_unmatched" mapstructure:"include_unmatched"`
	IncludeOwners    bool `json:"include_owners" mapstructure:"include_owners"`

	// MaxListItems caps the mapping and unmatched listings in text formats;
	// 0 lists everything
	MaxListItems int `json:"max_list_items" mapstructure:"max_list_items"`

	// CSV options
	CSVDelimiter rune `json:"csv_delimiter" mapstructure:"csv_delimiter"`
	CSVHeaders   bool `json:"csv_headers" mapstructure:"csv_headers"`
}

// DefaultReportConfig returns a default report configuration
func DefaultReportConfig() *ReportConfig {
	return &ReportConfig{
		Format:           FormatXLSX,
		OwnerHeader:      DefaultOwnerHeader,
		IncludeMapping:   false,
		IncludeUnmatched: true,
		IncludeOwners:    true,
		MaxListItems:     50,
		CSVDelimiter:     ',',
		CSVHeaders:       true,
	}
}

// Validate validates the report configuration
func (c *ReportConfig) Validate() error {
	if !c.Format.IsValid() {
		return fmt.Errorf("invalid output format: %s", c.Format)
	}

	if strings.TrimSpace(c.OwnerHeader) == "" {
		return fmt.Errorf("owner header cannot be empty")
	}

	if c.MaxListItems < 0 {
		return fmt.Errorf("max list items cannot be negative, got %d", c.MaxListItems)
	}

	if c.CSVDelimiter == 0 || c.CSVDelimiter == '"' || c.CSVDelimiter == '\n' || c.CSVDelimiter == '\r' {
		return fmt.Errorf("invalid CSV delimiter %q", c.CSVDelimiter)
	}

	return nil
}

// Clone creates a copy of the configuration
func (c *ReportConfig) Clone() *ReportConfig {
	if c == nil {
		return nil
	}
	clone := *c
	return &clone
}

// ReportGenerator generates attribution reports in various formats
type ReportGenerator struct {
	config *ReportConfig
}

// NewReportGenerator creates a new report generator with the specified configuration
func NewReportGenerator(config *ReportConfig) (*ReportGenerator, error) {
	if config == nil {
		config = DefaultReportConfig()
	}

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("invalid report configuration: %w", err)
	}

	return &ReportGenerator{
		config: config.Clone(),
	}, nil
}

// GenerateReport writes report to writer in the configured format
func (rg *ReportGenerator) GenerateReport(report *Report, writer io.Writer) error {
	if report == nil {
		return fmt.Errorf("report cannot be nil")
	}

	switch rg.config.Format {
	case FormatXLSX:
		return rg.generateXLSXReport(report, writer)
	case FormatCSV:
		return rg.generateCSVReport(report, writer)
	case FormatJSON:
		return rg.generateJSONReport(report, writer)
	case FormatConsole:
		return rg.generateConsoleReport(report, writer)
	case FormatMarkdown:
		return rg.generateMarkdownReport(report, writer)
	case FormatHTML:
		return rg.generateHTMLReport(report, writer)
	default:
		return fmt.Errorf("unsupported output format: %s", rg.config.Format)
	}
}

// generateJSONReport generates a structured JSON report
func (rg *ReportGenerator) generateJSONReport(report *Report, writer io.Writer) error {
	out := *report
	if !rg.config.IncludeMapping {
		out.Mapping = nil
	}
	if !rg.config.IncludeUnmatched {
		out.Unmatched = nil
	}

	encoder := json.NewEncoder(writer)
	encoder.SetIndent("", "  ")
	return encoder.Encode(out)
}

// generateCSVReport writes the consolidated table
func (rg *ReportGenerator) generateCSVReport(report *Report, writer io.Writer) error {
	csvWriter := csv.NewWriter(writer)
	csvWriter.Comma = rg.config.CSVDelimiter

	if rg.config.CSVHeaders {
		if err := csvWriter.Write(report.Columns); err != nil {
			return fmt.Errorf("failed to write CSV headers: %w", err)
		}
	}

	record := make([]string, len(report.Columns))
	for i, row := range report.Rows {
		for j := range record {
			record[j] = ""
			if j < len(row) {
				record[j] = row[j].String()
			}
		}
		if err := csvWriter.Write(record); err != nil {
			return fmt.Errorf("failed to write CSV record %d: %w", i, err)
		}
	}

	csvWriter.Flush()
	return csvWriter.Error()
}

// generateConsoleReport generates a human-readable console report
func (rg *ReportGenerator) generateConsoleReport(report *Report, writer io.Writer) error {
	fmt.Fprintf(writer, "SALES ATTRIBUTION REPORT\n")
	if report.RunID != "" {
		fmt.Fprintf(writer, "Run ID: %s\n", report.RunID)
	}
	fmt.Fprintf(writer, "Generated: %s\n", report.GeneratedAt.Format(time.RFC3339))
	fmt.Fprintf(writer, "Processing Duration: %v\n\n", report.Summary.ProcessingDuration)

	fmt.Fprintf(writer, "=== SUMMARY ===\n")
	rg.printSummaryTable(report.Summary, writer)
	fmt.Fprintf(writer, "\n")

	if rg.config.IncludeOwners && len(report.Summary.Owners) > 0 {
		fmt.Fprintf(writer, "=== TOTALS BY %s ===\n", strings.ToUpper(rg.config.OwnerHeader))
		rg.printOwnerTotals(report.Summary, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeMapping && len(report.Mapping) > 0 {
		fmt.Fprintf(writer, "=== %s ===\n", strings.ToUpper(SheetMapping))
		rg.printMapping(report.Mapping, writer)
		fmt.Fprintf(writer, "\n")
	}

	if rg.config.IncludeUnmatched && len(report.Unmatched) > 0 {
		fmt.Fprintf(writer, "=== UNMATCHED ROWS ===\n")
		rg.printUnmatched(report.Unmatched, writer)
	}

	return nil
}

// Helper methods for console output formatting

func (rg *ReportGenerator) printSummaryTable(summary Summary, writer io.Writer) {
	s := summary.Stages
	fmt.Fprintf(writer, "Rows:\n")
	fmt.Fprintf(writer, "  Total:          %d\n", s.TotalRows)
	fmt.Fprintf(writer, "  Exact:          %d (%.1f%%)\n", s.Exact, percentage(s.Exact, s.TotalRows))
	fmt.Fprintf(writer, "  Approximate:    %d (%.1f%%)\n", s.Approximate, percentage(s.Approximate, s.TotalRows))
	fmt.Fprintf(writer, "  Not found:      %d (%.1f%%)\n", s.NotFound, percentage(s.NotFound, s.TotalRows))
	fmt.Fprintf(writer, "  Missing client: %d (%.1f%%)\n", s.MissingSubject, percentage(s.MissingSubject, s.TotalRows))
	fmt.Fprintf(writer, "  Matched:        %d (%.1f%%)\n", s.Matched(), summary.MatchRate)

	fmt.Fprintf(writer, "\nReference:\n")
	fmt.Fprintf(writer, "  Column pairs:   %d\n", summary.ReferencePairs)
	fmt.Fprintf(writer, "  Client keys:    %d\n", summary.ReferenceKeys)
	fmt.Fprintf(writer, "  Owners matched: %d\n", summary.DistinctOwners)

	fmt.Fprintf(writer, "\nTotal Amount: %s\n", summary.TotalAmount.StringFixed(2))
	if summary.UnparsedAmounts > 0 {
		fmt.Fprintf(writer, "Unparsed Amounts: %d\n", summary.UnparsedAmounts)
	}
}

func (rg *ReportGenerator) printOwnerTotals(summary Summary, writer io.Writer) {
	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', tabwriter.AlignRight)
	fmt.Fprintf(tw, "%s\tRows\tAmount\tAvg Ticket\tMedian Ticket\t\n", rg.config.OwnerHeader)
	for _, o := range summary.Owners {
		fmt.Fprintf(tw, "%s\t%d\t%s\t%.2f\t%.2f\t\n", displayOwner(o.Owner), o.Rows, o.Amount.StringFixed(2), o.AverageTicket, o.MedianTicket)
	}
	tw.Flush()
}

func (rg *ReportGenerator) printMapping(entries []models.SubjectOwnerEntry, writer io.Writer) {
	fmt.Fprintf(writer, "Total Clients: %d\n\n", len(entries))

	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Cliente\t%s\n", rg.config.OwnerHeader)
	limit := rg.limit(len(entries))
	for _, e := range entries[:limit] {
		fmt.Fprintf(tw, "%s\t%s\n", e.Subject, displayOwner(e.Owner))
	}
	tw.Flush()
	rg.printTruncation(len(entries), limit, writer)
}

func (rg *ReportGenerator) printUnmatched(rows []UnmatchedRow, writer io.Writer) {
	fmt.Fprintf(writer, "Total Unmatched Rows: %d\n\n", len(rows))

	tw := tabwriter.NewWriter(writer, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Row\tClient\tResult\n")
	limit := rg.limit(len(rows))
	for _, r := range rows[:limit] {
		fmt.Fprintf(tw, "%d\t%s\t%s\n", r.RowIndex+1, r.Subject, r.Owner)
	}
	tw.Flush()
	rg.printTruncation(len(rows), limit, writer)
}

func (rg *ReportGenerator) limit(n int) int {
	if rg.config.MaxListItems > 0 && n > rg.config.MaxListItems {
		return rg.config.MaxListItems
	}
	return n
}

func (rg *ReportGenerator) printTruncation(total, shown int, writer io.Writer) {
	if shown < total {
		fmt.Fprintf(writer, "... and %d more\n", total-shown)
	}
}

func displayOwner(owner string) string {
	if owner == "" {
		return "(blank)"
	}
	return owner
}

func percentage(part, total int) float64 {
	if total == 0 {
		return 0
	}
	return float64(part) / float64(total) * 100
}
