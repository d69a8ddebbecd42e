// Package roles finds the date, client and amount columns of a sales sheet.
package roles

import (
	"sales-attribution-service/internal/models"
	"sales-attribution-service/internal/rules"
	"sales-attribution-service/pkg/errors"
	"sales-attribution-service/pkg/logger"
)

// Outcome describes what happened to a column during resolution
type Outcome string

const (
	// OutcomeAssigned means the column took a role
	OutcomeAssigned Outcome = "assigned"
	// OutcomeDuplicate means the column's first matching role was already
	// taken by an earlier column
	OutcomeDuplicate Outcome = "duplicate"
	// OutcomeUnmatched means no role rule matched the header
	OutcomeUnmatched Outcome = "unmatched"
)

// Decision records how one column was classified
type Decision struct {
	Column  int         `json:"column"`
	Header  string      `json:"header"`
	Role    models.Role `json:"role,omitempty"`
	Outcome Outcome     `json:"outcome"`
}

// Resolution is the full outcome of a scan
type Resolution struct {
	Assignment models.ColumnRoleAssignment `json:"assignment"`
	Missing    []models.Role               `json:"missing,omitempty"`
	Decisions  []Decision                  `json:"decisions"`
}

// Err returns ErrUnresolvedRole listing the missing roles, or nil.
func (r *Resolution) Err(columns []string) error {
	if len(r.Missing) == 0 {
		return nil
	}
	names := make([]string, len(r.Missing))
	for i, role := range r.Missing {
		names[i] = role.CanonicalHeader()
	}
	return errors.UnresolvedRolesError(names, columns)
}

// Resolver assigns roles to columns using keyword rules
type Resolver struct {
	rules  *rules.Rules
	logger logger.Logger
}

// NewResolver creates a resolver. A nil rules or logger falls back to defaults.
func NewResolver(r *rules.Rules, log logger.Logger) *Resolver {
	if r == nil {
		r = rules.Default()
	}
	if log == nil {
		log = logger.GetGlobalLogger()
	}
	return &Resolver{rules: r, logger: log.WithComponent("roles")}
}

// Resolve scans columns once, left to right. Each column is tested against
// the roles in priority order and stops at the first rule it satisfies; it
// takes that role only if no earlier column holds it.
func (rv *Resolver) Resolve(table *models.RawTable) *Resolution {
	res := &Resolution{Assignment: make(models.ColumnRoleAssignment)}

	for i, header := range table.Columns {
		d := Decision{Column: i, Header: table.Column(i), Outcome: OutcomeUnmatched}

		for _, role := range models.RolePriority {
			if !rv.rules.Roles[role].Matches(header) {
				continue
			}
			d.Role = role
			if _, taken := res.Assignment[role]; taken {
				d.Outcome = OutcomeDuplicate
			} else {
				res.Assignment[role] = i
				d.Outcome = OutcomeAssigned
			}
			break
		}

		if d.Outcome == OutcomeDuplicate {
			rv.logger.WithFields(logger.Fields{
				"column": d.Header,
				"role":   d.Role,
			}).Debug("Column ignored, role already assigned to an earlier column")
		}
		res.Decisions = append(res.Decisions, d)
	}

	res.Missing = res.Assignment.Missing()

	fields := logger.Fields{}
	for role, idx := range res.Assignment {
		fields[string(role)] = table.Column(idx)
	}
	if len(res.Missing) > 0 {
		rv.logger.WithFields(fields).WithField("missing", res.Missing).Warn("Sales columns unresolved")
	} else {
		rv.logger.WithFields(fields).Info("Sales columns resolved")
	}

	return res
}

// ResolveRoles resolves with the default rules and returns the assignment
// and the roles left unassigned.
func ResolveRoles(table *models.RawTable) (models.ColumnRoleAssignment, []models.Role) {
	res := NewResolver(nil, nil).Resolve(table)
	return res.Assignment, res.Missing
}
