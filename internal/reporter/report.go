package reporter

import (
	"sort"
	"strings"
	"time"

	"github.com/montanaflynn/stats"
	"github.com/shopspring/decimal"

	"sales-attribution-service/internal/matcher"
	"sales-attribution-service/internal/models"
)

// DefaultOwnerHeader is the header of the derived owner column
const DefaultOwnerHeader = "Vendedor"

// Report is the consolidated sales table plus its summary. Columns and Rows
// follow the output order: date, client, amount, owner, then every other
// sales column in its original position.
type Report struct {
	RunID        string                     `json:"run_id,omitempty"`
	GeneratedAt  time.Time                  `json:"generated_at"`
	Columns      []string                   `json:"columns"`
	Rows         []models.Row               `json:"rows"`
	Attributions []models.AttributionResult `json:"attributions"`
	Summary      Summary                    `json:"summary"`
	Mapping      []models.SubjectOwnerEntry `json:"mapping,omitempty"`
	Unmatched    []UnmatchedRow             `json:"unmatched,omitempty"`
}

// Summary aggregates an attribution run
type Summary struct {
	Stages             matcher.Summary `json:"stages"`
	MatchRate          float64         `json:"match_rate"`
	ReferencePairs     int             `json:"reference_pairs"`
	ReferenceKeys      int             `json:"reference_keys"`
	DistinctOwners     int             `json:"distinct_owners"`
	TotalAmount        decimal.Decimal `json:"total_amount"`
	UnparsedAmounts    int             `json:"unparsed_amounts"`
	Owners             []OwnerTotal    `json:"owners"`
	ProcessingDuration time.Duration   `json:"processing_duration"`
}

// OwnerTotal is the row count and amount attributed to one owner label.
// Marker labels (NOT_FOUND, MISSING_SUBJECT) get their own totals.
type OwnerTotal struct {
	Owner         string          `json:"owner"`
	Rows          int             `json:"rows"`
	Amount        decimal.Decimal `json:"amount"`
	AverageTicket float64         `json:"average_ticket"`
	MedianTicket  float64         `json:"median_ticket"`
}

// UnmatchedRow describes a row that received a marker instead of an owner
type UnmatchedRow struct {
	RowIndex int               `json:"row_index"`
	Subject  string            `json:"subject"`
	Owner    string            `json:"owner"`
	Stage    models.MatchStage `json:"stage"`
}

// Input is everything a report is built from
type Input struct {
	RunID          string
	Sales          *models.RawTable
	Roles          models.ColumnRoleAssignment
	Results        []models.AttributionResult
	Mapping        *models.SubjectOwnerMap
	ReferencePairs int
	Duration       time.Duration
}

// NewReport assembles the consolidated table and its summary
func NewReport(in Input, ownerHeader string) *Report {
	if ownerHeader == "" {
		ownerHeader = DefaultOwnerHeader
	}

	order := models.OutputColumnOrder(len(in.Sales.Columns), in.Roles)
	columns := make([]string, len(order))
	for i, idx := range order {
		if idx == models.OwnerColumn {
			columns[i] = ownerHeader
			continue
		}
		columns[i] = in.Sales.Column(idx)
	}

	subjectCol, _ := in.Roles.Column(models.RoleSubject)
	amountCol, _ := in.Roles.Column(models.RoleAmount)

	report := &Report{
		RunID:        in.RunID,
		GeneratedAt:  time.Now(),
		Columns:      columns,
		Rows:         make([]models.Row, 0, len(in.Results)),
		Attributions: in.Results,
		Mapping:      in.Mapping.Entries(),
	}

	totals := newOwnerAccumulator()
	summary := Summary{
		Stages:             matcher.Summarize(in.Results),
		ReferencePairs:     in.ReferencePairs,
		ReferenceKeys:      in.Mapping.Len(),
		TotalAmount:        decimal.Zero,
		ProcessingDuration: in.Duration,
	}
	summary.MatchRate = summary.Stages.MatchRate()

	for _, r := range in.Results {
		row := make(models.Row, len(order))
		for i, idx := range order {
			if idx == models.OwnerColumn {
				row[i] = models.Text(r.Owner)
				continue
			}
			row[i] = in.Sales.Cell(r.RowIndex, idx)
		}
		report.Rows = append(report.Rows, row)

		amountCell := in.Sales.Cell(r.RowIndex, amountCol)
		amount, ok := ParseAmount(amountCell)
		if !ok && !amountCell.IsMissing() {
			summary.UnparsedAmounts++
		}
		if ok {
			summary.TotalAmount = summary.TotalAmount.Add(amount)
		}
		totals.add(r.Owner, amount, ok)

		if !r.Stage.IsMatched() {
			report.Unmatched = append(report.Unmatched, UnmatchedRow{
				RowIndex: r.RowIndex,
				Subject:  in.Sales.Cell(r.RowIndex, subjectCol).String(),
				Owner:    r.Owner,
				Stage:    r.Stage,
			})
		}
		if r.Stage.IsMatched() {
			totals.matched[r.Owner] = true
		}
	}

	summary.Owners = totals.list()
	summary.DistinctOwners = len(totals.matched)
	report.Summary = summary
	return report
}

type ownerAccumulator struct {
	order   []string
	totals  map[string]*OwnerTotal
	amounts map[string][]float64
	matched map[string]bool
}

func newOwnerAccumulator() *ownerAccumulator {
	return &ownerAccumulator{
		totals:  make(map[string]*OwnerTotal),
		amounts: make(map[string][]float64),
		matched: make(map[string]bool),
	}
}

func (a *ownerAccumulator) add(owner string, amount decimal.Decimal, ok bool) {
	t, exists := a.totals[owner]
	if !exists {
		t = &OwnerTotal{Owner: owner, Amount: decimal.Zero}
		a.totals[owner] = t
		a.order = append(a.order, owner)
	}
	t.Rows++
	if ok {
		t.Amount = t.Amount.Add(amount)
		a.amounts[owner] = append(a.amounts[owner], amount.InexactFloat64())
	}
}

// list returns owners by descending amount, then by label
func (a *ownerAccumulator) list() []OwnerTotal {
	out := make([]OwnerTotal, 0, len(a.order))
	for _, owner := range a.order {
		t := *a.totals[owner]
		if data := a.amounts[owner]; len(data) > 0 {
			t.AverageTicket, _ = stats.Mean(data)
			t.MedianTicket, _ = stats.Median(data)
		}
		out = append(out, t)
	}
	sort.SliceStable(out, func(i, j int) bool {
		if c := out[i].Amount.Cmp(out[j].Amount); c != 0 {
			return c > 0
		}
		return out[i].Owner < out[j].Owner
	})
	return out
}

var currencyStripper = strings.NewReplacer("R$", "", "US$", "", "$", "", "€", "", " ", "", "\u00a0", "")

// ParseAmount reads a sales amount. Numeric cells are used as is; text is
// parsed leniently: currency symbols and spaces are ignored, "1.234,56" and
// "1,234.56" are both understood, a lone comma is a decimal separator and
// "(100)" is negative.
func ParseAmount(c models.Cell) (decimal.Decimal, bool) {
	switch c.Kind {
	case models.CellNumber:
		return c.Number, true
	case models.CellEmpty:
		return decimal.Zero, false
	}

	s := strings.TrimSpace(c.Text)
	negative := false
	if strings.HasPrefix(s, "(") && strings.HasSuffix(s, ")") {
		negative = true
		s = s[1 : len(s)-1]
	}
	s = currencyStripper.Replace(s)
	if strings.HasPrefix(s, "-") {
		negative = !negative
		s = s[1:]
	}
	if s == "" {
		return decimal.Zero, false
	}

	comma, dot := strings.LastIndex(s, ","), strings.LastIndex(s, ".")
	switch {
	case comma >= 0 && dot >= 0:
		if comma > dot {
			s = strings.ReplaceAll(s, ".", "")
			s = strings.Replace(s, ",", ".", 1)
		} else {
			s = strings.ReplaceAll(s, ",", "")
		}
	case comma >= 0:
		if strings.Count(s, ",") > 1 {
			s = strings.ReplaceAll(s, ",", "")
		} else {
			s = strings.Replace(s, ",", ".", 1)
		}
	case strings.Count(s, ".") > 1:
		s = strings.ReplaceAll(s, ".", "")
	}

	for _, r := range s {
		if (r < '0' || r > '9') && r != '.' {
			return decimal.Zero, false
		}
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Zero, false
	}
	if negative {
		d = d.Neg()
	}
	return d, true
}
