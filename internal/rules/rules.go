// Package rules holds the header keyword tables used to discover columns.
//
// The tables are plain data so they can be reviewed and overridden from a
// YAML file without touching code:
//
//	reference:
//	  owner_keywords: [vended, owner]
//	  subject_keywords: [cliente, client]
//	roles:
//	  amount:
//	    exact: ["Valor Total"]
//	    all_of: [[valor, total]]
//
// Keys present in the file replace the defaults; absent keys keep them.
package rules

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"sales-attribution-service/internal/models"
	"sales-attribution-service/internal/normalize"
)

// Rules is the complete keyword configuration
type Rules struct {
	Reference ReferenceRules           `yaml:"reference" json:"reference"`
	Roles     map[models.Role]RoleRule `yaml:"roles" json:"roles"`
}

// ReferenceRules identifies (owner, subject) column pairs in the reference table
type ReferenceRules struct {
	OwnerKeywords   []string `yaml:"owner_keywords" json:"owner_keywords"`
	SubjectKeywords []string `yaml:"subject_keywords" json:"subject_keywords"`
}

// RoleRule decides whether a sales table header plays a role. A header
// matches when it equals one of Exact after trimming, or when its folded form
// contains every keyword of at least one AllOf group.
type RoleRule struct {
	Exact []string   `yaml:"exact" json:"exact"`
	AllOf [][]string `yaml:"all_of" json:"all_of"`
}

// Default returns the built-in rules
func Default() *Rules {
	return &Rules{
		Reference: ReferenceRules{
			OwnerKeywords:   []string{"vended", "owner", "salesperson"},
			SubjectKeywords: []string{"cliente", "client"},
		},
		Roles: map[models.Role]RoleRule{
			models.RoleDate: {
				Exact: []string{"Data Aprovação"},
				AllOf: [][]string{{"data", "aprov"}, {"date", "approv"}},
			},
			models.RoleSubject: {
				Exact: []string{"Clientes", "Cliente"},
				AllOf: [][]string{{"cliente"}, {"client"}},
			},
			models.RoleAmount: {
				Exact: []string{"Valor Total"},
				AllOf: [][]string{{"valor", "total"}, {"value", "total"}},
			},
		},
	}
}

// Load reads a YAML rules file on top of the defaults
func Load(path string) (*Rules, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules file %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML rules on top of the defaults and validates them
func Parse(data []byte) (*Rules, error) {
	r := Default()
	dec := yaml.NewDecoder(bytes.NewReader(data))
	dec.KnownFields(true)
	if err := dec.Decode(r); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("invalid rules: %w", err)
	}
	r.fold()
	if err := r.Validate(); err != nil {
		return nil, err
	}
	return r, nil
}

// fold lower-cases and trims every keyword
func (r *Rules) fold() {
	r.Reference.OwnerKeywords = foldAll(r.Reference.OwnerKeywords)
	r.Reference.SubjectKeywords = foldAll(r.Reference.SubjectKeywords)
	for role, rule := range r.Roles {
		groups := make([][]string, len(rule.AllOf))
		for i, g := range rule.AllOf {
			groups[i] = foldAll(g)
		}
		rule.AllOf = groups
		r.Roles[role] = rule
	}
}

func foldAll(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = normalize.Fold(s)
	}
	return out
}

// Validate checks that every role and both reference sides have a usable rule
func (r *Rules) Validate() error {
	if err := checkKeywords("reference.owner_keywords", r.Reference.OwnerKeywords); err != nil {
		return err
	}
	if err := checkKeywords("reference.subject_keywords", r.Reference.SubjectKeywords); err != nil {
		return err
	}

	for role := range r.Roles {
		if !role.IsValid() {
			return fmt.Errorf("unknown role %q in rules", role)
		}
	}

	for _, role := range models.RolePriority {
		rule, ok := r.Roles[role]
		if !ok || (len(rule.Exact) == 0 && len(rule.AllOf) == 0) {
			return fmt.Errorf("role %s has no exact headers or keyword groups", role)
		}
		for i, g := range rule.AllOf {
			if err := checkKeywords(fmt.Sprintf("roles.%s.all_of[%d]", role, i), g); err != nil {
				return err
			}
		}
	}
	return nil
}

func checkKeywords(field string, kws []string) error {
	if len(kws) == 0 {
		return fmt.Errorf("%s must list at least one keyword", field)
	}
	for _, k := range kws {
		if strings.TrimSpace(k) == "" {
			return fmt.Errorf("%s contains an empty keyword", field)
		}
	}
	return nil
}

// Clone creates a deep copy of the rules
func (r *Rules) Clone() *Rules {
	if r == nil {
		return nil
	}
	out := &Rules{
		Reference: ReferenceRules{
			OwnerKeywords:   append([]string(nil), r.Reference.OwnerKeywords...),
			SubjectKeywords: append([]string(nil), r.Reference.SubjectKeywords...),
		},
		Roles: make(map[models.Role]RoleRule, len(r.Roles)),
	}
	for role, rule := range r.Roles {
		groups := make([][]string, len(rule.AllOf))
		for i, g := range rule.AllOf {
			groups[i] = append([]string(nil), g...)
		}
		out.Roles[role] = RoleRule{Exact: append([]string(nil), rule.Exact...), AllOf: groups}
	}
	return out
}

// Matches reports whether header satisfies the rule
func (rr RoleRule) Matches(header string) bool {
	trimmed := strings.TrimSpace(header)
	for _, e := range rr.Exact {
		if trimmed == strings.TrimSpace(e) {
			return true
		}
	}
	folded := normalize.Fold(header)
	for _, group := range rr.AllOf {
		if containsAll(folded, group) {
			return true
		}
	}
	return false
}

// IsOwnerHeader reports whether header names a salesperson column
func (rr ReferenceRules) IsOwnerHeader(header string) bool {
	return containsAny(normalize.Fold(header), rr.OwnerKeywords)
}

// IsSubjectHeader reports whether header names a client column
func (rr ReferenceRules) IsSubjectHeader(header string) bool {
	return containsAny(normalize.Fold(header), rr.SubjectKeywords)
}

func containsAll(s string, kws []string) bool {
	if len(kws) == 0 {
		return false
	}
	for _, k := range kws {
		if !strings.Contains(s, k) {
			return false
		}
	}
	return true
}

func containsAny(s string, kws []string) bool {
	for _, k := range kws {
		if k != "" && strings.Contains(s, k) {
			return true
		}
	}
	return false
}
