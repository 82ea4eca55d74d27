/*
store.go - Persistence contract for platform transactions

PURPOSE:
  Defines the storage interface the ingestion pipeline and the reporting
  layer depend on. Implemented by store/sqlite (production) and
  store/memory (tests/dev).

UPSERT SEMANTICS:
  Upserts key on each platform's natural key (types.go) and replace every
  mutable field on conflict. Re-uploading a corrected export for an
  already-imported period is therefore idempotent: row counts and
  aggregates stay stable, nothing duplicates.

SEE ALSO:
  - store/sqlite/sqlite.go: SQL implementation (ON CONFLICT DO UPDATE)
  - store/memory/memory.go: in-memory implementation
*/
package platform

import (
	"context"
	"errors"
	"time"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrUnknownPlatform is returned for a platform string outside the
	// three supported marketplaces.
	ErrUnknownPlatform = errors.New("unknown platform")

	// ErrBadDate is returned when a platform-native date string cannot be
	// parsed by any known layout.
	ErrBadDate = errors.New("unparseable date")

	// ErrConflict is returned when an upsert hits a constraint violation
	// not explained by the natural key (e.g. a dangling location
	// reference). Fatal for that row only.
	ErrConflict = errors.New("upsert conflict")
)

// =============================================================================
// QUERY FILTER
// =============================================================================

// TxFilter scopes a transaction fetch. Zero values mean "no restriction":
// empty OwnerID matches all owners, zero From/To leave the range open,
// nil LocationIDs matches every location.
type TxFilter struct {
	OwnerID     string
	From        time.Time
	To          time.Time
	LocationIDs []string
}

// InRange reports whether day falls inside the filter's date range.
func (f TxFilter) InRange(day time.Time) bool {
	if !f.From.IsZero() && day.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && day.After(f.To) {
		return false
	}
	return true
}

// MatchesLocation reports whether the given location id passes the filter.
func (f TxFilter) MatchesLocation(locationID string) bool {
	if f.LocationIDs == nil {
		return true
	}
	for _, id := range f.LocationIDs {
		if id == locationID {
			return true
		}
	}
	return false
}

// =============================================================================
// RESULTS
// =============================================================================

// UpsertResult tallies one upsert batch. Failed rows are isolated, not
// batch-fatal.
type UpsertResult struct {
	Processed int
	Failed    int
}

func (r *UpsertResult) Merge(other UpsertResult) {
	r.Processed += other.Processed
	r.Failed += other.Failed
}

// NameCount is one distinct platform store name with its row count, used
// for the unmapped-review surface.
type NameCount struct {
	StoreName string
	Platform  Platform
	Rows      int
}

// =============================================================================
// STORE INTERFACE
// =============================================================================

// Store persists and retrieves platform transactions.
type Store interface {
	UpsertDoorDash(ctx context.Context, rows []DoorDashTransaction) (UpsertResult, error)
	UpsertUberEats(ctx context.Context, rows []UberEatsTransaction) (UpsertResult, error)
	UpsertGrubhub(ctx context.Context, rows []GrubhubTransaction) (UpsertResult, error)

	SelectDoorDash(ctx context.Context, f TxFilter) ([]DoorDashTransaction, error)
	SelectUberEats(ctx context.Context, f TxFilter) ([]UberEatsTransaction, error)
	SelectGrubhub(ctx context.Context, f TxFilter) ([]GrubhubTransaction, error)

	// UnmappedNames lists the distinct store names currently routed to the
	// owner's unmapped bucket, for operator review.
	UnmappedNames(ctx context.Context, ownerID, bucketID string) ([]NameCount, error)
}
