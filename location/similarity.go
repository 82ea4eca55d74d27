/*
similarity.go - String similarity scoring strategy

PURPOSE:
  Name-similarity scoring for Stage 2 of the resolver. Kept as an
  independently tested pure function and injected into the resolver as a
  strategy, so an alternative algorithm (Jaro-Winkler, trigram) can be
  swapped in without touching match-stage orchestration.

RATIO:
  SimilarityRatio(a, b) = (maxLen - Levenshtein(a, b)) / maxLen
  over the raw inputs (callers lowercase/clean first). 1.0 means equal,
  0.0 means nothing in common.
*/
package location

// SimilarityFunc scores how alike two strings are, in [0,1].
type SimilarityFunc func(a, b string) float64

// Levenshtein returns the edit distance between a and b: the minimum
// number of single-character insertions, deletions and substitutions
// turning one into the other. Two-row dynamic programming, O(len(a)*len(b))
// time, O(len(b)) space.
func Levenshtein(a, b string) int {
	ra, rb := []rune(a), []rune(b)
	if len(ra) == 0 {
		return len(rb)
	}
	if len(rb) == 0 {
		return len(ra)
	}

	prev := make([]int, len(rb)+1)
	curr := make([]int, len(rb)+1)
	for j := range prev {
		prev[j] = j
	}

	for i := 1; i <= len(ra); i++ {
		curr[0] = i
		for j := 1; j <= len(rb); j++ {
			cost := 1
			if ra[i-1] == rb[j-1] {
				cost = 0
			}
			curr[j] = min3(
				prev[j]+1,      // deletion
				curr[j-1]+1,    // insertion
				prev[j-1]+cost, // substitution
			)
		}
		prev, curr = curr, prev
	}
	return prev[len(rb)]
}

// SimilarityRatio normalizes Levenshtein distance into [0,1].
func SimilarityRatio(a, b string) float64 {
	maxLen := len([]rune(a))
	if l := len([]rune(b)); l > maxLen {
		maxLen = l
	}
	if maxLen == 0 {
		return 1.0
	}
	return float64(maxLen-Levenshtein(a, b)) / float64(maxLen)
}

func min3(a, b, c int) int {
	if b < a {
		a = b
	}
	if c < a {
		a = c
	}
	return a
}
