/*
Package location provides the canonical location registry and the location
identity resolver.

PURPOSE:
  Every delivery platform names the same physical store differently:
  DoorDash embeds a structured code in the display name, Grubhub sometimes
  ships a separate numeric store code, Uber Eats uses free text. This
  package owns the single source-of-truth record per store
  (CanonicalLocation) and the deterministic pipeline that turns a
  platform's free-text location string into a canonical reference with a
  confidence score.

KEY CONCEPTS IN THIS FILE (types.go):
  - CanonicalLocation: master identity record, with per-platform
    exact-match identifier keys and display names
  - Unmapped bucket: one sentinel location per owner that absorbs
    transactions no stage could resolve, so a transaction's location
    reference is never left empty
  - MatchCandidate: the resolver's output - location id, method, confidence

DESIGN PRINCIPLES:
  1. Determinism: identical inputs always produce the identical candidate
  2. Purity: the resolver does no I/O; callers pass an immutable snapshot
     of the registry
  3. Never fails: malformed input degrades to "unmatched", never an error

SEE ALSO:
  - resolver.go: the four-stage matching pipeline
  - similarity.go: Levenshtein scoring strategy
  - store.go: registry persistence contract and the merge operation
*/
package location

import (
	"github.com/forkline/delivery-metrics/platform"
)

// =============================================================================
// TAGS
// =============================================================================

const (
	// TagUnmappedBucket marks the owner's sentinel location for
	// unresolved transactions. Exactly one per owner.
	TagUnmappedBucket = "unmapped_bucket"

	// TagCorporate marks corporate-owned (non-franchise) stores.
	TagCorporate = "corporate"
)

// UnmappedBucketName is the display name given to auto-created buckets.
const UnmappedBucketName = "Unmapped Locations"

// =============================================================================
// CANONICAL LOCATION
// =============================================================================

// CanonicalLocation is the brand's single source-of-truth record for a
// physical store, independent of any platform's naming.
type CanonicalLocation struct {
	ID      string
	OwnerID string

	// StoreCode is the brand's own master code (e.g. "NV067"), when known.
	StoreCode string

	Name    string
	Address string
	City    string
	State   string
	Zip     string

	// PlatformIDs holds per-platform identifier keys used for exact
	// (Stage 1) matching. Absent entries mean the platform identity is
	// not yet known.
	PlatformIDs map[platform.Platform]string

	// PlatformNames holds the display name each platform uses for this
	// store, back-filled by the resolver on confident matches.
	PlatformNames map[platform.Platform]string

	Verified bool
	Tag      string
}

// IsUnmappedBucket reports whether this is the owner's sentinel bucket.
func (l *CanonicalLocation) IsUnmappedBucket() bool {
	return l.Tag == TagUnmappedBucket
}

// PlatformID returns the exact-match key for the given platform, or "".
func (l *CanonicalLocation) PlatformID(p platform.Platform) string {
	if l.PlatformIDs == nil {
		return ""
	}
	return l.PlatformIDs[p]
}

// SetPlatformName records the display name a platform uses for this store.
func (l *CanonicalLocation) SetPlatformName(p platform.Platform, name string) {
	if l.PlatformNames == nil {
		l.PlatformNames = make(map[platform.Platform]string)
	}
	l.PlatformNames[p] = name
}

// =============================================================================
// MATCH CANDIDATE
// =============================================================================

// MatchMethod identifies which resolver stage produced a candidate.
type MatchMethod string

const (
	// MethodStoreIDExact: a structured code extracted from the platform
	// name (or supplied alongside it) exact-matched a platform identifier.
	// The only authoritative method; always confidence 1.0.
	MethodStoreIDExact MatchMethod = "store_id_exact"

	// MethodAddressCity: geographic/text scoring over city, street
	// keywords and name similarity cleared the acceptance threshold.
	MethodAddressCity MatchMethod = "address_city"

	// MethodCrossRef: a secondary platform export keyed by external code
	// bridged the name to a platform identifier. Confidence 0.85.
	MethodCrossRef MatchMethod = "crossref"

	// MethodUnmatched: no stage produced a match. Callers must route the
	// transaction to the owner's unmapped bucket.
	MethodUnmatched MatchMethod = "unmatched"
)

// MatchCandidate is the resolver's verdict for one distinct platform
// location string. Ephemeral: produced once per distinct string per batch.
type MatchCandidate struct {
	PlatformName  string
	Platform      platform.Platform
	ExtractedCode string
	LocationID    string // empty only when Method == MethodUnmatched
	Method        MatchMethod
	Confidence    float64 // in [0,1]
}

// Matched reports whether the candidate carries a real location id.
func (c MatchCandidate) Matched() bool {
	return c.Method != MethodUnmatched && c.LocationID != ""
}

// =============================================================================
// CROSS-REFERENCE CONTEXT
// =============================================================================

// CrossRefEntry is one row of a platform's secondary authoritative export:
// a store name/city keyed by an external code that can be resolved against
// a CanonicalLocation platform identifier.
type CrossRefEntry struct {
	Name string
	City string
	Code string
}

// ResolveContext carries optional platform-specific inputs to the
// resolver. All fields may be empty.
type ResolveContext struct {
	// StoreCode is a separate code field shipped next to the store name
	// (Grubhub exports do this). Tried by Stage 1 when the name itself
	// embeds no code.
	StoreCode string

	// CrossRef is the platform's secondary export, consulted by Stage 3.
	CrossRef []CrossRefEntry
}
