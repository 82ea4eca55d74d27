/*
resolver.go - The location identity resolver

PURPOSE:
  Turns a platform's free-text location string into a canonical location
  reference with a confidence score. Four stages, tried in order:

  Stage 1 - exact code extraction. A parenthesized code like "(NV067)"
    (or a separate store-code field, when the platform ships one) is
    exact-matched against each location's per-platform identifier.
    Authoritative: on a hit, later stages never run.

  Stage 2 - geographic/text scoring. City overlap, street-keyword overlap
    and name similarity produce an additive score per location; the best
    score wins if it clears the acceptance threshold.

  Stage 3 - cross-reference. A secondary platform export keyed by an
    external code bridges names Stage 2 could not score confidently.
    Only consulted when Stage 2 scored below 0.9.

  Stage 4 - unmatched. Confidence 0; callers route the transaction to the
    owner's unmapped bucket.

PURITY:
  Resolve does no I/O and reads only the immutable snapshot passed in.
  Identical inputs always yield the identical candidate, and malformed
  input degrades to unmatched rather than failing. Safe to call in
  parallel across distinct strings.

TUNING:
  The acceptance threshold and the name-similarity floor are fields with
  defaults, not constants. Observed call sites in the wild disagree on
  the exact values; treat them as tunable until product intent settles.

SEE ALSO:
  - extract.go: feature extraction helpers
  - similarity.go: the injected scoring strategy
*/
package location

import (
	"strings"

	"github.com/forkline/delivery-metrics/platform"
)

// =============================================================================
// SCORING WEIGHTS
// =============================================================================

const (
	cityWeight          = 0.5  // extracted city overlaps the location's city
	streetKeywordWeight = 0.25 // per matched street keyword
	streetKeywordCap    = 0.5
	nameSimilarityCap   = 0.3 // scaled by the similarity ratio

	crossRefConfidence = 0.85
	// crossRefOverrideBelow: Stage 3 only replaces a Stage 2 result that
	// scored below this.
	crossRefOverrideBelow = 0.9
)

// =============================================================================
// RESOLVER
// =============================================================================

// Resolver resolves platform location strings against a registry snapshot.
// The zero value is not usable; call NewResolver.
type Resolver struct {
	// Similarity scores cleaned name pairs in [0,1].
	Similarity SimilarityFunc

	// AcceptThreshold is the minimum Stage 2 score accepted as a match.
	AcceptThreshold float64

	// NameSimilarityFloor: similarity ratios below this contribute
	// nothing to the Stage 2 score.
	NameSimilarityFloor float64

	// Brands are tokens stripped from platform names before scoring
	// (every store name embeds the brand; it carries no signal).
	Brands []string
}

// NewResolver returns a resolver with default thresholds and the
// Levenshtein similarity strategy.
func NewResolver(brands ...string) *Resolver {
	return &Resolver{
		Similarity:          SimilarityRatio,
		AcceptThreshold:     0.4,
		NameSimilarityFloor: 0.3,
		Brands:              brands,
	}
}

// Resolve maps one platform location string to a MatchCandidate.
// master is an immutable snapshot of the owner's canonical locations;
// rctx carries optional platform-specific inputs and may be nil.
func (r *Resolver) Resolve(platformName string, p platform.Platform, master []CanonicalLocation, rctx *ResolveContext) MatchCandidate {
	candidate := MatchCandidate{
		PlatformName: platformName,
		Platform:     p,
		Method:       MethodUnmatched,
	}

	// Stage 1: exact code. The embedded code wins over a separately
	// supplied one; either is authoritative on a hit.
	code := ExtractStoreCode(platformName)
	if code == "" && rctx != nil {
		code = strings.TrimSpace(rctx.StoreCode)
	}
	if code != "" {
		candidate.ExtractedCode = code
		for i := range master {
			if master[i].PlatformID(p) == code {
				candidate.LocationID = master[i].ID
				candidate.Method = MethodStoreIDExact
				candidate.Confidence = 1.0
				return candidate
			}
		}
	}

	// Stage 2: geographic/text scoring.
	bestIdx, bestScore := r.scoreAll(platformName, master)

	if bestIdx >= 0 && bestScore >= crossRefOverrideBelow {
		return r.accepted(candidate, master[bestIdx].ID, bestScore)
	}

	// Stage 3: cross-reference, when the platform has a secondary export.
	if rctx != nil && len(rctx.CrossRef) > 0 {
		if id, ok := r.crossRef(platformName, p, master, rctx.CrossRef); ok {
			candidate.LocationID = id
			candidate.Method = MethodCrossRef
			candidate.Confidence = crossRefConfidence
			return candidate
		}
	}

	if bestIdx >= 0 && bestScore >= r.AcceptThreshold {
		return r.accepted(candidate, master[bestIdx].ID, bestScore)
	}

	// Stage 4: unmatched.
	return candidate
}

func (r *Resolver) accepted(c MatchCandidate, locationID string, score float64) MatchCandidate {
	c.LocationID = locationID
	c.Method = MethodAddressCity
	if score > 1.0 {
		score = 1.0
	}
	c.Confidence = score
	return c
}

// scoreAll runs Stage 2 scoring over the snapshot and returns the index
// and score of the best-scoring location (-1 when nothing scored above
// zero). Ties break to first-seen order: later locations must strictly
// beat the incumbent.
func (r *Resolver) scoreAll(platformName string, master []CanonicalLocation) (int, float64) {
	stripped := stripBrand(stripParentheticals(platformName), r.Brands)
	city := extractCity(stripped)
	streetKeys := extractStreetKeywords(stripped)
	cleaned := cleanName(stripped)

	bestIdx, bestScore := -1, 0.0
	for i := range master {
		loc := &master[i]
		if loc.IsUnmappedBucket() {
			continue
		}
		score := r.scoreOne(loc, city, streetKeys, cleaned)
		if score > bestScore {
			bestIdx, bestScore = i, score
		}
	}
	return bestIdx, bestScore
}

func (r *Resolver) scoreOne(loc *CanonicalLocation, city string, streetKeys []string, cleaned string) float64 {
	score := 0.0

	if city != "" && loc.City != "" && containsEither(city, loc.City) {
		score += cityWeight
	}

	if loc.Address != "" && len(streetKeys) > 0 {
		addr := strings.ToLower(loc.Address)
		streetScore := 0.0
		for _, k := range streetKeys {
			if strings.Contains(addr, k) {
				streetScore += streetKeywordWeight
			}
		}
		if streetScore > streetKeywordCap {
			streetScore = streetKeywordCap
		}
		score += streetScore
	}

	if cleaned != "" && loc.Name != "" {
		ratio := r.Similarity(cleaned, cleanName(loc.Name))
		if ratio >= r.NameSimilarityFloor {
			score += nameSimilarityCap * ratio
		}
	}

	return score
}

// crossRef tries substring containment of the platform name against a
// secondary export's name/city, then resolves the entry's external code
// against the snapshot's platform identifiers.
func (r *Resolver) crossRef(platformName string, p platform.Platform, master []CanonicalLocation, entries []CrossRefEntry) (string, bool) {
	nameLower := strings.ToLower(platformName)
	for _, e := range entries {
		if e.Code == "" {
			continue
		}
		entryName := strings.ToLower(strings.TrimSpace(e.Name))
		entryCity := strings.ToLower(strings.TrimSpace(e.City))

		hit := (entryName != "" && (strings.Contains(nameLower, entryName) || strings.Contains(entryName, nameLower))) ||
			(entryCity != "" && strings.Contains(nameLower, entryCity))
		if !hit {
			continue
		}
		for i := range master {
			if master[i].PlatformID(p) == e.Code {
				return master[i].ID, true
			}
		}
	}
	return "", false
}

// containsEither reports case-insensitive substring overlap in either
// direction ("Las Vegas" matches "North Las Vegas" and vice versa).
func containsEither(a, b string) bool {
	la, lb := strings.ToLower(strings.TrimSpace(a)), strings.ToLower(strings.TrimSpace(b))
	if la == "" || lb == "" {
		return false
	}
	return strings.Contains(la, lb) || strings.Contains(lb, la)
}
