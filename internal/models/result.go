package models

import "fmt"

// Owner markers emitted when a row cannot be attributed
const (
	OwnerNotFound       = "NOT_FOUND"
	OwnerMissingSubject = "MISSING_SUBJECT"
)

// MatchStage records how a row's owner was decided
type MatchStage string

const (
	StageExact          MatchStage = "exact"
	StageApproximate    MatchStage = "approximate"
	StageMissingSubject MatchStage = "missing_subject"
	StageNotFound       MatchStage = "not_found"
)

// IsMatched reports whether the stage produced an owner label
func (s MatchStage) IsMatched() bool {
	return s == StageExact || s == StageApproximate
}

// AttributionResult is one sales row plus the owner attributed to it.
type AttributionResult struct {
	RowIndex   int        `json:"row_index"`
	Owner      string     `json:"owner"`
	Stage      MatchStage `json:"stage"`
	Query      string     `json:"query,omitempty"`
	MatchedKey string     `json:"matched_key,omitempty"`
	Score      float64    `json:"score,omitempty"`
	Row        Row        `json:"-"`
}

// String returns a string representation of the result
func (r AttributionResult) String() string {
	return fmt.Sprintf("AttributionResult{Row: %d, Owner: %s, Stage: %s, Score: %.3f}",
		r.RowIndex, r.Owner, r.Stage, r.Score)
}

// OwnerColumn marks the position of the derived owner column in an output
// column order.
const OwnerColumn = -1

// OutputColumnOrder returns the output layout as source column indexes:
// date, subject, amount, OwnerColumn, then every other column in its
// original order. roles must be complete.
func OutputColumnOrder(columnCount int, roles ColumnRoleAssignment) []int {
	order := make([]int, 0, columnCount+1)
	used := make(map[int]bool, len(RolePriority))
	for _, role := range RolePriority {
		if idx, ok := roles.Column(role); ok {
			order = append(order, idx)
			used[idx] = true
		}
	}
	order = append(order, OwnerColumn)
	for i := 0; i < columnCount; i++ {
		if !used[i] {
			order = append(order, i)
		}
	}
	return order
}
