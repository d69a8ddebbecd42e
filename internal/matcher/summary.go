package matcher

import (
	"fmt"

	"sales-attribution-service/internal/models"
)

// Summary provides aggregate statistics about an attribution run
type Summary struct {
	TotalRows      int `json:"total_rows"`
	Exact          int `json:"exact"`
	Approximate    int `json:"approximate"`
	MissingSubject int `json:"missing_subject"`
	NotFound       int `json:"not_found"`
}

// Summarize counts results by stage
func Summarize(results []models.AttributionResult) Summary {
	s := Summary{TotalRows: len(results)}
	for _, r := range results {
		switch r.Stage {
		case models.StageExact:
			s.Exact++
		case models.StageApproximate:
			s.Approximate++
		case models.StageMissingSubject:
			s.MissingSubject++
		case models.StageNotFound:
			s.NotFound++
		}
	}
	return s
}

// Matched returns the number of rows that received an owner label
func (s Summary) Matched() int {
	return s.Exact + s.Approximate
}

// Unmatched returns the number of rows that received a marker
func (s Summary) Unmatched() int {
	return s.MissingSubject + s.NotFound
}

// MatchRate returns the matched share of rows as a percentage
func (s Summary) MatchRate() float64 {
	if s.TotalRows == 0 {
		return 0
	}
	return float64(s.Matched()) / float64(s.TotalRows) * 100
}

// String returns a one-line description of the summary
func (s Summary) String() string {
	return fmt.Sprintf("Summary{Rows: %d, Exact: %d, Approximate: %d, MissingSubject: %d, NotFound: %d}",
		s.TotalRows, s.Exact, s.Approximate, s.MissingSubject, s.NotFound)
}
