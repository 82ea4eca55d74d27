/*
extract.go - Feature extraction from platform location strings

PURPOSE:
  Pulls matchable features out of a platform's free-text store name:
  - a structured store code in parentheses, e.g. "(NV067)"
  - a candidate city (text after a dash, else trailing capitalized words)
  - street keywords (words adjacent to street-type suffixes)

  Extraction never fails; a string that yields nothing simply scores
  nothing in Stage 2.
*/
package location

import (
	"regexp"
	"strings"
	"unicode"
)

// storeCodePattern matches a parenthesized brand store code:
// two uppercase letters (state) followed by digits, e.g. "(NV067)".
var storeCodePattern = regexp.MustCompile(`\(([A-Z]{2}\d+)\)`)

// parentheticalPattern strips any parenthesized fragment.
var parentheticalPattern = regexp.MustCompile(`\([^)]*\)`)

// streetSuffixes are the street-type words whose neighbors count as
// street keywords.
var streetSuffixes = map[string]bool{
	"dr": true, "rd": true, "st": true, "ave": true,
	"blvd": true, "pkwy": true, "hwy": true, "way": true, "ln": true,
}

// ExtractStoreCode returns the parenthesized store code embedded in the
// name, or "" when there is none.
func ExtractStoreCode(name string) string {
	m := storeCodePattern.FindStringSubmatch(name)
	if m == nil {
		return ""
	}
	return m[1]
}

// stripParentheticals removes every parenthesized fragment.
func stripParentheticals(name string) string {
	return strings.TrimSpace(parentheticalPattern.ReplaceAllString(name, " "))
}

// stripBrand removes known brand tokens (case-insensitive) so that
// "Capriotti's Sandwich Shop Main St" scores on "Main St", not the brand.
func stripBrand(name string, brands []string) string {
	out := name
	for _, brand := range brands {
		if brand == "" {
			continue
		}
		lower := strings.ToLower(out)
		needle := strings.ToLower(brand)
		for {
			i := strings.Index(lower, needle)
			if i < 0 {
				break
			}
			out = out[:i] + out[i+len(needle):]
			lower = strings.ToLower(out)
		}
	}
	return strings.Join(strings.Fields(out), " ")
}

// extractCity guesses the city portion of a cleaned platform name.
// Convention one: text after the last dash ("Capriotti's 5th Ave - Reno").
// Convention two: trailing capitalized words not themselves street
// suffixes ("Capriotti's Main St Las Vegas" -> "Las Vegas").
func extractCity(cleaned string) string {
	if i := strings.LastIndex(cleaned, "-"); i >= 0 {
		return strings.TrimSpace(cleaned[i+1:])
	}

	words := strings.Fields(cleaned)
	var tail []string
	for i := len(words) - 1; i >= 0; i-- {
		w := words[i]
		if !startsUpper(w) || isStreetSuffix(w) {
			break
		}
		tail = append([]string{w}, tail...)
		if len(tail) == 2 {
			break
		}
	}
	// A single trailing word that is the whole name is not a city.
	if len(tail) == len(words) {
		return ""
	}
	return strings.Join(tail, " ")
}

// extractStreetKeywords returns the street-type words found in the cleaned
// name plus the word preceding each ("Main St" -> ["main", "st"]).
// Lowercased, deduplicated, original order.
func extractStreetKeywords(cleaned string) []string {
	words := strings.Fields(strings.ToLower(cleaned))
	seen := make(map[string]bool)
	var keys []string
	add := func(w string) {
		w = strings.Trim(w, ".,")
		if w == "" || seen[w] {
			return
		}
		seen[w] = true
		keys = append(keys, w)
	}
	for i, w := range words {
		if !isStreetSuffix(w) {
			continue
		}
		if i > 0 {
			add(words[i-1])
		}
		add(w)
	}
	return keys
}

// cleanName lowercases and strips punctuation for similarity comparison.
func cleanName(name string) string {
	var b strings.Builder
	for _, r := range strings.ToLower(name) {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			b.WriteRune(r)
		case unicode.IsSpace(r):
			b.WriteRune(' ')
		}
	}
	return strings.Join(strings.Fields(b.String()), " ")
}

func isStreetSuffix(w string) bool {
	return streetSuffixes[strings.Trim(strings.ToLower(w), ".,")]
}

func startsUpper(w string) bool {
	for _, r := range w {
		return unicode.IsUpper(r)
	}
	return false
}
