// Package mapping builds the client → salesperson dictionary from a
// reference sheet.
//
// Reference sheets repeat "Vendedor | Cliente" blocks side by side. The
// builder scans headers left to right, accepts every client column whose left
// neighbour is a salesperson column, and folds all accepted pairs into one
// SubjectOwnerMap. Later rows and later pairs overwrite earlier ones.
package mapping

import (
	"strings"

	"sales-attribution-service/internal/models"
	"sales-attribution-service/internal/normalize"
	"sales-attribution-service/internal/rules"
	"sales-attribution-service/pkg/errors"
	"sales-attribution-service/pkg/logger"
)

// missingMarker is how a blank cell reads once a dataframe has stringified it.
const missingMarker = "NAN"

// Pair is an accepted (owner column, subject column) pair
type Pair struct {
	OwnerColumn   int    `json:"owner_column"`
	OwnerHeader   string `json:"owner_header"`
	SubjectColumn int    `json:"subject_column"`
	SubjectHeader string `json:"subject_header"`
	Rows          int    `json:"rows"`
}

// Conflict records a subject that was re-assigned to a different owner
type Conflict struct {
	Subject       string `json:"subject"`
	PreviousOwner string `json:"previous_owner"`
	Owner         string `json:"owner"`
	SubjectColumn int    `json:"subject_column"`
	Row           int    `json:"row"`
}

// Result is the outcome of scanning a reference table
type Result struct {
	Map           *models.SubjectOwnerMap `json:"-"`
	PairsFound    int                     `json:"pairs_found"`
	Pairs         []Pair                  `json:"pairs"`
	RowsDiscarded int                     `json:"rows_discarded"`
	EmptyOwners   int                     `json:"empty_owners"`
	Conflicts     []Conflict              `json:"conflicts,omitempty"`
	Columns       []string                `json:"columns"`
}

// Builder discovers column pairs and folds them into a map
type Builder struct {
	rules  rules.ReferenceRules
	logger logger.Logger
}

// NewBuilder creates a builder. A nil rules or logger falls back to defaults.
func NewBuilder(r *rules.Rules, log logger.Logger) *Builder {
	if r == nil {
		r = rules.Default()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Builder{
		rules:  r.Reference,
		logger: log.WithComponent("mapping"),
	}
}

// FindPairs returns the accepted column pairs in left-to-right order
func (b *Builder) FindPairs(table *models.RawTable) []Pair {
	var pairs []Pair
	for i := 1; i < len(table.Columns); i++ {
		if !b.rules.IsSubjectHeader(table.Columns[i]) {
			continue
		}
		if !b.rules.IsOwnerHeader(table.Columns[i-1]) {
			continue
		}
		pairs = append(pairs, Pair{
			OwnerColumn:   i - 1,
			OwnerHeader:   table.Column(i - 1),
			SubjectColumn: i,
			SubjectHeader: table.Column(i),
		})
	}
	return pairs
}

// Build scans table and returns the folded map. When no pair is found the
// result still carries an empty map and the error is ErrNoReferencePairs.
func (b *Builder) Build(table *models.RawTable) (*Result, error) {
	columns := make([]string, len(table.Columns))
	for i := range table.Columns {
		columns[i] = table.Column(i)
	}

	result := &Result{Columns: columns}
	acc := models.NewSubjectOwnerMapBuilder()

	for _, pair := range b.FindPairs(table) {
		for row := range table.Rows {
			subject := normalize.Cell(table.Cell(row, pair.SubjectColumn))
			if subject == "" || subject == missingMarker {
				result.RowsDiscarded++
				continue
			}

			owner := table.Cell(row, pair.OwnerColumn)
			if owner.IsMissing() {
				result.EmptyOwners++
			}
			label := strings.TrimSpace(owner.String())

			if prev, existed := acc.Set(subject, label); existed && prev != label {
				result.Conflicts = append(result.Conflicts, Conflict{
					Subject:       subject,
					PreviousOwner: prev,
					Owner:         label,
					SubjectColumn: pair.SubjectColumn,
					Row:           row,
				})
			}
			pair.Rows++
		}

		b.logger.WithFields(logger.Fields{
			"owner_column":   pair.OwnerHeader,
			"subject_column": pair.SubjectHeader,
			"rows":           pair.Rows,
		}).Debug("Reference pair accepted")
		result.Pairs = append(result.Pairs, pair)
	}

	result.PairsFound = len(result.Pairs)
	result.Map = acc.Build()

	for _, c := range result.Conflicts {
		b.logger.WithFields(logger.Fields{
			"subject":        c.Subject,
			"previous_owner": c.PreviousOwner,
			"owner":          c.Owner,
		}).Warn("Client listed under more than one salesperson, keeping the last one")
	}

	if result.PairsFound == 0 {
		return result, errors.NoReferencePairsError(columns)
	}

	b.logger.WithFields(logger.Fields{
		"pairs":     result.PairsFound,
		"subjects":  result.Map.Len(),
		"discarded": result.RowsDiscarded,
	}).Info("Reference mapping built")

	return result, nil
}

// BuildMapping builds a map with the default rules and returns it with the
// number of accepted pairs. Zero pairs yields an empty map.
func BuildMapping(table *models.RawTable) (*models.SubjectOwnerMap, int) {
	res, _ := NewBuilder(nil, nil).Build(table)
	return res.Map, res.PairsFound
}
