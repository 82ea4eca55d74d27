/*
store.go - Registry persistence contract

PURPOSE:
  Defines how canonical locations are stored, looked up and merged.
  Implemented by store/sqlite (production) and store/memory (tests/dev).

THE UNMAPPED BUCKET:
  Exactly one location per owner carries TagUnmappedBucket. Every
  transaction whose store name no resolver stage could place lands there,
  so a transaction's location reference is never empty. EnsureUnmappedBucket
  creates the bucket on first use and is idempotent.

MERGE:
  Merging duplicate locations discovered after the fact is an explicit,
  audited operation: repoint every platform transaction from the source
  ids to the target, then remove the sources. Never implicit, never
  automatic, and the unmapped bucket itself can never be a merge source.

SEE ALSO:
  - store/sqlite/sqlite.go: SQL implementation
  - store/memory/memory.go: in-memory implementation
*/
package location

import (
	"context"
	"errors"
	"fmt"

	"github.com/forkline/delivery-metrics/platform"
)

// =============================================================================
// SENTINEL ERRORS
// =============================================================================

var (
	// ErrNotFound is returned when a referenced location doesn't exist.
	ErrNotFound = errors.New("location not found")

	// ErrNoUnmappedBucket is returned when an owner has no unmapped
	// bucket and the caller refused auto-creation.
	ErrNoUnmappedBucket = errors.New("owner has no unmapped bucket")

	// ErrMergeUnmappedBucket is returned when a merge names the unmapped
	// bucket as a source. The bucket is a structural invariant.
	ErrMergeUnmappedBucket = errors.New("unmapped bucket cannot be merged away")

	// ErrOwnerRequired is returned by operations that must be scoped to a
	// single owner.
	ErrOwnerRequired = errors.New("owner id required")
)

// =============================================================================
// MERGE
// =============================================================================

// MergeResult reports what a merge actually touched.
type MergeResult struct {
	TargetID         string
	SourceIDs        []string
	Repointed        map[platform.Platform]int
	RemovedLocations int
}

func (m *MergeResult) TotalRepointed() int {
	total := 0
	for _, n := range m.Repointed {
		total += n
	}
	return total
}

func (m *MergeResult) String() string {
	return fmt.Sprintf("merged %d location(s) into %s, repointed %d transaction(s)",
		m.RemovedLocations, m.TargetID, m.TotalRepointed())
}

// =============================================================================
// REGISTRY INTERFACE
// =============================================================================

// Registry persists canonical locations.
type Registry interface {
	// List returns the owner's locations in stable creation order.
	// Empty ownerID returns every owner's locations.
	List(ctx context.Context, ownerID string) ([]CanonicalLocation, error)

	Get(ctx context.Context, id string) (*CanonicalLocation, error)

	// Save inserts the location, or replaces it when the id exists.
	Save(ctx context.Context, loc *CanonicalLocation) error

	// EnsureUnmappedBucket returns the owner's sentinel bucket, creating
	// it if missing. Idempotent.
	EnsureUnmappedBucket(ctx context.Context, ownerID string) (*CanonicalLocation, error)

	// Merge repoints all platform transactions referencing sourceIDs to
	// targetID, then removes the source locations. Refuses to merge a
	// bucket away (ErrMergeUnmappedBucket) or to cross owners.
	Merge(ctx context.Context, ownerID string, sourceIDs []string, targetID string) (*MergeResult, error)
}
