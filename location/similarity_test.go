package location_test

import (
	"testing"

	"github.com/forkline/delivery-metrics/location"
)

func TestLevenshtein(t *testing.T) {
	// GIVEN: classic edit-distance pairs
	// WHEN: computing distances
	// THEN: known values hold, including the unicode path

	cases := []struct {
		a, b string
		want int
	}{
		{"kitten", "sitting", 3},
		{"", "", 0},
		{"", "abc", 3},
		{"same", "same", 0},
		{"café", "cafe", 1}, // rune-wise, not byte-wise
	}
	for _, c := range cases {
		if got := location.Levenshtein(c.a, c.b); got != c.want {
			t.Errorf("Levenshtein(%q, %q) = %d, want %d", c.a, c.b, got, c.want)
		}
	}
}

func TestSimilarityRatio_Bounds(t *testing.T) {
	// GIVEN: identical, disjoint, and empty string pairs
	// WHEN: computing the ratio
	// THEN: it stays in [0,1] with 1 for identical and both-empty inputs

	if got := location.SimilarityRatio("flamingo", "flamingo"); got != 1.0 {
		t.Errorf("identical ratio = %v, want 1", got)
	}
	if got := location.SimilarityRatio("", ""); got != 1.0 {
		t.Errorf("both-empty ratio = %v, want 1", got)
	}
	if got := location.SimilarityRatio("", "flamingo"); got != 0.0 {
		t.Errorf("empty-vs-nonempty ratio = %v, want 0", got)
	}

	got := location.SimilarityRatio("main st", "main street")
	if got <= 0 || got >= 1 {
		t.Errorf("partial overlap ratio = %v, want in (0,1)", got)
	}
}
