package similarity

import (
	"math"
	"strings"
	"testing"
)

func almostEqual(a, b float64) bool {
	return math.Abs(a-b) < 1e-9
}

func TestGestaltScore(t *testing.T) {
	tests := []struct {
		a, b string
		want float64
	}{
		{"ACME CORP", "ACME CORPORATION", 0.72},
		{"TECH SOLUCOES", "TECH SOLUTIONS", 22.0 / 27.0},
		{"ACME", "ACNE", 0.75},
		{"GLOBEX", "GLOBAL", 2.0 / 3.0},
		{"XYZ999", "ACME", 0},
		{"XYZ999", "GLOBEX", 1.0 / 6.0},
		{"PADARIA SAO JOSE", "PADARIA SAO JOAO", 0.875},
		{"SAME", "SAME", 1},
		{"", "", 1},
		{"ABC", "", 0},
	}

	g := Gestalt{}
	for _, tt := range tests {
		t.Run(tt.a+"|"+tt.b, func(t *testing.T) {
			if got := g.Score(tt.a, tt.b); !almostEqual(got, tt.want) {
				t.Errorf("Score(%q, %q) = %v, want %v", tt.a, tt.b, got, tt.want)
			}
			if got := g.Score(tt.b, tt.a); !almostEqual(got, tt.want) {
				t.Errorf("Score(%q, %q) = %v, want %v (reversed)", tt.b, tt.a, got, tt.want)
			}
		})
	}
}

func TestGestaltCountsRunesNotBytes(t *testing.T) {
	// 3 of 4 runes shared on each side: 2*3/8
	if got := (Gestalt{}).Score("ÇÃOX", "ÇÃOY"); !almostEqual(got, 0.75) {
		t.Errorf("expected 0.75, got %v", got)
	}
}

func TestGestaltLongNamesKeepFrequentRunes(t *testing.T) {
	// Over 200 runes every rune is frequent; none may be dropped as junk.
	a := strings.Repeat("AB", 150)
	b := strings.Repeat("AB", 140)
	if got := (Gestalt{}).Score(a, b); !almostEqual(got, 560.0/580.0) {
		t.Errorf("expected %v, got %v", 560.0/580.0, got)
	}
}

func TestLevenshteinScore(t *testing.T) {
	l := Levenshtein{}
	if got := l.Score("ACME", "ACNE"); !almostEqual(got, 0.75) {
		t.Errorf("expected 0.75, got %v", got)
	}
	if got := l.Score("", ""); got != 1 {
		t.Errorf("expected 1 for empty strings, got %v", got)
	}
	if got := l.Score("ABC", "XYZ"); got != 0 {
		t.Errorf("expected 0, got %v", got)
	}
}

func TestScorerByName(t *testing.T) {
	for _, name := range []string{"", "gestalt", " Levenshtein "} {
		if _, err := ScorerByName(name); err != nil {
			t.Errorf("ScorerByName(%q) failed: %v", name, err)
		}
	}
	if _, err := ScorerByName("soundex"); err == nil {
		t.Error("expected error for unknown scorer")
	}
}

func TestBestMatch(t *testing.T) {
	keys := []string{"GLOBEX", "ACME CORPORATION", "INITECH"}

	m, ok := BestMatch("ACME CORP", keys, 0.7, Gestalt{})
	if !ok || m.Key != "ACME CORPORATION" {
		t.Fatalf("expected ACME CORPORATION, got %+v ok=%v", m, ok)
	}
	if !almostEqual(m.Score, 0.72) {
		t.Errorf("expected score 0.72, got %v", m.Score)
	}

	if _, ok := BestMatch("XYZ999", keys, 0.7, Gestalt{}); ok {
		t.Error("expected no match below cutoff")
	}

	if _, ok := BestMatch("ACME", nil, 0.7, nil); ok {
		t.Error("expected no match without candidates")
	}
}

func TestBestMatchTieGoesToFirstCandidate(t *testing.T) {
	// ACME scores 0.75 against both ACNE and ACMO.
	m, ok := BestMatch("ACME", []string{"ACNE", "ACMO"}, 0.7, Gestalt{})
	if !ok || m.Key != "ACNE" {
		t.Errorf("expected first tied candidate ACNE, got %+v", m)
	}

	m, ok = BestMatch("ACME", []string{"ACMO", "ACNE"}, 0.7, Gestalt{})
	if !ok || m.Key != "ACMO" {
		t.Errorf("expected first tied candidate ACMO, got %+v", m)
	}
}

func TestBestMatchCutoffIsInclusive(t *testing.T) {
	if _, ok := BestMatch("ACME", []string{"ACNE"}, 0.75, Gestalt{}); !ok {
		t.Error("expected score equal to cutoff to be accepted")
	}
}

func TestLengthBoundNeverUnderestimates(t *testing.T) {
	pairs := [][2]string{
		{"ACME CORP", "ACME CORPORATION"},
		{"A", "ABCDEFGHIJ"},
		{"TECH SOLUCOES", "TECH SOLUTIONS"},
	}
	for _, p := range pairs {
		score := (Gestalt{}).Score(p[0], p[1])
		bound := lengthBound(len([]rune(p[0])), len([]rune(p[1])))
		if score > bound+1e-12 {
			t.Errorf("bound %v below score %v for %v", bound, score, p)
		}
	}
}
