// Package similarity scores how alike two normalized names are.
//
// The default scorer is the Ratcliff/Obershelp "gestalt" ratio: the number of
// characters in the longest common blocks, found recursively, doubled and
// divided by the combined length. It is symmetric in practice for names,
// deterministic, and returns a value in [0, 1].
package similarity

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/agnivade/levenshtein"
	"github.com/pmezard/go-difflib/difflib"
)

// Scorer computes a similarity in [0, 1] between two strings
type Scorer interface {
	Name() string
	Score(a, b string) float64
}

const (
	GestaltName     = "gestalt"
	LevenshteinName = "levenshtein"
)

// ScorerByName returns the scorer registered under name
func ScorerByName(name string) (Scorer, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", GestaltName:
		return Gestalt{}, nil
	case LevenshteinName:
		return Levenshtein{}, nil
	default:
		return nil, fmt.Errorf("unknown similarity scorer %q (valid: %s, %s)", name, GestaltName, LevenshteinName)
	}
}

// Gestalt is the longest-matching-blocks ratio, computed over runes.
type Gestalt struct{}

// Name returns the scorer name
func (Gestalt) Name() string { return GestaltName }

// Score returns 2*M/T where M is the size of all matching blocks and T the
// total rune count. Junk heuristics are off so long names score like short
// ones. Two empty strings score 1.
func (Gestalt) Score(a, b string) float64 {
	m := difflib.NewMatcherWithJunk(strings.Split(a, ""), strings.Split(b, ""), false, nil)
	return m.Ratio()
}

// Levenshtein scores 1 - distance/maxLen over runes.
type Levenshtein struct{}

// Name returns the scorer name
func (Levenshtein) Name() string { return LevenshteinName }

// Score returns the normalized edit similarity of a and b
func (Levenshtein) Score(a, b string) float64 {
	la, lb := utf8.RuneCountInString(a), utf8.RuneCountInString(b)
	longest := la
	if lb > longest {
		longest = lb
	}
	if longest == 0 {
		return 1.0
	}
	return 1.0 - float64(levenshtein.ComputeDistance(a, b))/float64(longest)
}

// Match is the outcome of a best-candidate search
type Match struct {
	Key   string
	Score float64
}

// BestMatch returns the candidate scoring highest against query, provided it
// reaches cutoff. Ties go to the earliest candidate in the given order.
// Candidates whose length alone makes cutoff unreachable are skipped before
// scoring when the scorer is Gestalt.
func BestMatch(query string, candidates []string, cutoff float64, scorer Scorer) (Match, bool) {
	if scorer == nil {
		scorer = Gestalt{}
	}
	_, gestalt := scorer.(Gestalt)
	lq := utf8.RuneCountInString(query)

	best := Match{Score: -1}
	for _, cand := range candidates {
		if gestalt && lengthBound(lq, utf8.RuneCountInString(cand)) < cutoff {
			continue
		}
		score := scorer.Score(query, cand)
		if score > best.Score {
			best = Match{Key: cand, Score: score}
		}
	}

	if best.Score < cutoff || best.Score < 0 {
		return Match{}, false
	}
	return best, true
}

// lengthBound is the highest gestalt ratio two strings of these lengths can reach.
func lengthBound(la, lb int) float64 {
	total := la + lb
	if total == 0 {
		return 1.0
	}
	shortest := la
	if lb < shortest {
		shortest = lb
	}
	return 2.0 * float64(shortest) / float64(total)
}
