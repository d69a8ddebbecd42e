package reporter

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"
)

// generateMarkdownReport writes the summary as a markdown document
func (rg *ReportGenerator) generateMarkdownReport(report *Report, writer io.Writer) error {
	_, err := writer.Write(rg.renderMarkdown(report))
	return err
}

// generateHTMLReport renders the markdown summary as a standalone HTML page
func (rg *ReportGenerator) generateHTMLReport(report *Report, writer io.Writer) error {
	p := parser.NewWithExtensions(parser.CommonExtensions)
	doc := p.Parse(rg.renderMarkdown(report))

	renderer := html.NewRenderer(html.RendererOptions{
		Flags: html.CommonFlags | html.CompletePage,
		Title: "Sales Attribution Report",
	})

	_, err := writer.Write(markdown.Render(doc, renderer))
	return err
}

func (rg *ReportGenerator) renderMarkdown(report *Report) []byte {
	var b bytes.Buffer
	s := report.Summary

	fmt.Fprintf(&b, "# Sales Attribution Report\n\n")
	if report.RunID != "" {
		fmt.Fprintf(&b, "Run `%s`, ", report.RunID)
	}
	fmt.Fprintf(&b, "generated %s.\n\n", report.GeneratedAt.Format("2006-01-02 15:04:05"))

	fmt.Fprintf(&b, "## Summary\n\n")
	fmt.Fprintf(&b, "| Result | Rows | Share |\n|---|---:|---:|\n")
	stages := []struct {
		label string
		n     int
	}{
		{"Exact", s.Stages.Exact},
		{"Approximate", s.Stages.Approximate},
		{"Not found", s.Stages.NotFound},
		{"Missing client", s.Stages.MissingSubject},
	}
	for _, st := range stages {
		fmt.Fprintf(&b, "| %s | %d | %.1f%% |\n", st.label, st.n, percentage(st.n, s.Stages.TotalRows))
	}
	fmt.Fprintf(&b, "| **Total** | **%d** | |\n\n", s.Stages.TotalRows)
	fmt.Fprintf(&b, "Total amount: **%s**", s.TotalAmount.StringFixed(2))
	if s.UnparsedAmounts > 0 {
		fmt.Fprintf(&b, " (%d unparsed amounts)", s.UnparsedAmounts)
	}
	fmt.Fprintf(&b, "\n\n")

	if rg.config.IncludeOwners && len(s.Owners) > 0 {
		fmt.Fprintf(&b, "## Totals by %s\n\n", escapeCell(rg.config.OwnerHeader))
		fmt.Fprintf(&b, "| %s | Rows | Amount | Avg Ticket |\n|---|---:|---:|---:|\n", escapeCell(rg.config.OwnerHeader))
		for _, o := range s.Owners {
			fmt.Fprintf(&b, "| %s | %d | %s | %.2f |\n", escapeCell(displayOwner(o.Owner)), o.Rows, o.Amount.StringFixed(2), o.AverageTicket)
		}
		fmt.Fprintf(&b, "\n")
	}

	if rg.config.IncludeMapping && len(report.Mapping) > 0 {
		fmt.Fprintf(&b, "## %s\n\n| Cliente | %s |\n|---|---|\n", SheetMapping, escapeCell(rg.config.OwnerHeader))
		limit := rg.limit(len(report.Mapping))
		for _, e := range report.Mapping[:limit] {
			fmt.Fprintf(&b, "| %s | %s |\n", escapeCell(e.Subject), escapeCell(displayOwner(e.Owner)))
		}
		fmt.Fprintf(&b, "\n")
	}

	if rg.config.IncludeUnmatched && len(report.Unmatched) > 0 {
		fmt.Fprintf(&b, "## Unmatched rows\n\n| Row | Client | Result |\n|---:|---|---|\n")
		limit := rg.limit(len(report.Unmatched))
		for _, r := range report.Unmatched[:limit] {
			fmt.Fprintf(&b, "| %d | %s | %s |\n", r.RowIndex+1, escapeCell(r.Subject), r.Owner)
		}
		if limit < len(report.Unmatched) {
			fmt.Fprintf(&b, "\n%d more rows not shown.\n", len(report.Unmatched)-limit)
		}
	}

	return b.Bytes()
}

var cellEscaper = strings.NewReplacer("|", `\|`, "\n", " ", "\r", "")

func escapeCell(s string) string {
	return cellEscaper.Replace(s)
}
