// Package memory provides in-memory implementations of the storage
// interfaces (for testing/dev). Semantics mirror store/sqlite: natural-key
// upserts, one unmapped bucket per owner, atomic merge.
package memory

import (
	"context"
	"fmt"
	"sync"

	"github.com/forkline/delivery-metrics/location"
	"github.com/forkline/delivery-metrics/platform"
)

// Store implements location.Registry and platform.Store in memory.
type Store struct {
	mu sync.RWMutex

	locations  []location.CanonicalLocation // creation order
	locationIx map[string]int               // id -> index

	doordash map[string]platform.DoorDashTransaction // natural key -> row
	ubereats map[string]platform.UberEatsTransaction
	grubhub  map[string]platform.GrubhubTransaction

	// insertion order per platform, for deterministic selects
	doordashOrder []string
	ubereatsOrder []string
	grubhubOrder  []string

	nextID int
}

var (
	_ location.Registry = (*Store)(nil)
	_ platform.Store    = (*Store)(nil)
)

func New() *Store {
	return &Store{
		locationIx: make(map[string]int),
		doordash:   make(map[string]platform.DoorDashTransaction),
		ubereats:   make(map[string]platform.UberEatsTransaction),
		grubhub:    make(map[string]platform.GrubhubTransaction),
	}
}

// =============================================================================
// LOCATION REGISTRY
// =============================================================================

func (s *Store) List(_ context.Context, ownerID string) ([]location.CanonicalLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []location.CanonicalLocation
	for _, loc := range s.locations {
		if ownerID == "" || loc.OwnerID == ownerID {
			out = append(out, cloneLocation(loc))
		}
	}
	return out, nil
}

func (s *Store) Get(_ context.Context, id string) (*location.CanonicalLocation, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ix, ok := s.locationIx[id]
	if !ok {
		return nil, location.ErrNotFound
	}
	loc := cloneLocation(s.locations[ix])
	return &loc, nil
}

func (s *Store) Save(_ context.Context, loc *location.CanonicalLocation) error {
	if loc.OwnerID == "" {
		return location.ErrOwnerRequired
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if loc.ID == "" {
		s.nextID++
		loc.ID = fmt.Sprintf("loc_%04d", s.nextID)
	}
	stored := cloneLocation(*loc)
	if ix, ok := s.locationIx[loc.ID]; ok {
		s.locations[ix] = stored
		return nil
	}
	s.locationIx[loc.ID] = len(s.locations)
	s.locations = append(s.locations, stored)
	return nil
}

func (s *Store) EnsureUnmappedBucket(ctx context.Context, ownerID string) (*location.CanonicalLocation, error) {
	if ownerID == "" {
		return nil, location.ErrOwnerRequired
	}

	s.mu.Lock()
	for _, loc := range s.locations {
		if loc.OwnerID == ownerID && loc.IsUnmappedBucket() {
			out := cloneLocation(loc)
			s.mu.Unlock()
			return &out, nil
		}
	}
	s.mu.Unlock()

	bucket := &location.CanonicalLocation{
		OwnerID: ownerID,
		Name:    location.UnmappedBucketName,
		Tag:     location.TagUnmappedBucket,
	}
	if err := s.Save(ctx, bucket); err != nil {
		return nil, err
	}
	return bucket, nil
}

func (s *Store) Merge(_ context.Context, ownerID string, sourceIDs []string, targetID string) (*location.MergeResult, error) {
	if ownerID == "" {
		return nil, location.ErrOwnerRequired
	}
	if len(sourceIDs) == 0 {
		return nil, fmt.Errorf("merge: no source locations")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	targetIx, ok := s.locationIx[targetID]
	if !ok || s.locations[targetIx].OwnerID != ownerID {
		return nil, fmt.Errorf("merge target %s: %w", targetID, location.ErrNotFound)
	}

	sourceSet := make(map[string]bool, len(sourceIDs))
	for _, id := range sourceIDs {
		ix, ok := s.locationIx[id]
		if !ok || s.locations[ix].OwnerID != ownerID {
			return nil, fmt.Errorf("merge source %s: %w", id, location.ErrNotFound)
		}
		if s.locations[ix].IsUnmappedBucket() {
			return nil, location.ErrMergeUnmappedBucket
		}
		if id == targetID {
			return nil, fmt.Errorf("merge: target %s listed as source", targetID)
		}
		sourceSet[id] = true
	}

	result := &location.MergeResult{
		TargetID:  targetID,
		SourceIDs: sourceIDs,
		Repointed: make(map[platform.Platform]int),
	}

	for key, tx := range s.doordash {
		if sourceSet[tx.LocationID] {
			tx.LocationID = targetID
			s.doordash[key] = tx
			result.Repointed[platform.DoorDash]++
		}
	}
	for key, tx := range s.ubereats {
		if sourceSet[tx.LocationID] {
			tx.LocationID = targetID
			s.ubereats[key] = tx
			result.Repointed[platform.UberEats]++
		}
	}
	for key, tx := range s.grubhub {
		if sourceSet[tx.LocationID] {
			tx.LocationID = targetID
			s.grubhub[key] = tx
			result.Repointed[platform.Grubhub]++
		}
	}

	kept := s.locations[:0]
	for _, loc := range s.locations {
		if sourceSet[loc.ID] {
			result.RemovedLocations++
			continue
		}
		kept = append(kept, loc)
	}
	s.locations = kept
	s.locationIx = make(map[string]int, len(s.locations))
	for i, loc := range s.locations {
		s.locationIx[loc.ID] = i
	}

	return result, nil
}

func cloneLocation(loc location.CanonicalLocation) location.CanonicalLocation {
	out := loc
	if loc.PlatformIDs != nil {
		out.PlatformIDs = make(map[platform.Platform]string, len(loc.PlatformIDs))
		for k, v := range loc.PlatformIDs {
			out.PlatformIDs[k] = v
		}
	}
	if loc.PlatformNames != nil {
		out.PlatformNames = make(map[platform.Platform]string, len(loc.PlatformNames))
		for k, v := range loc.PlatformNames {
			out.PlatformNames[k] = v
		}
	}
	return out
}

// =============================================================================
// PLATFORM TRANSACTIONS
// =============================================================================

func (s *Store) UpsertDoorDash(_ context.Context, rows []platform.DoorDashTransaction) (platform.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result platform.UpsertResult
	for _, row := range rows {
		if _, err := row.EffectiveDate(); err != nil {
			result.Failed++
			continue
		}
		key := row.NaturalKey()
		if _, exists := s.doordash[key]; !exists {
			s.doordashOrder = append(s.doordashOrder, key)
		}
		s.doordash[key] = row
		result.Processed++
	}
	return result, nil
}

func (s *Store) UpsertUberEats(_ context.Context, rows []platform.UberEatsTransaction) (platform.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result platform.UpsertResult
	for _, row := range rows {
		if _, err := row.EffectiveDate(); err != nil {
			result.Failed++
			continue
		}
		key := row.NaturalKey()
		if _, exists := s.ubereats[key]; !exists {
			s.ubereatsOrder = append(s.ubereatsOrder, key)
		}
		s.ubereats[key] = row
		result.Processed++
	}
	return result, nil
}

func (s *Store) UpsertGrubhub(_ context.Context, rows []platform.GrubhubTransaction) (platform.UpsertResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var result platform.UpsertResult
	for _, row := range rows {
		if _, err := row.EffectiveDate(); err != nil {
			result.Failed++
			continue
		}
		key := row.NaturalKey()
		if _, exists := s.grubhub[key]; !exists {
			s.grubhubOrder = append(s.grubhubOrder, key)
		}
		s.grubhub[key] = row
		result.Processed++
	}
	return result, nil
}

func (s *Store) SelectDoorDash(_ context.Context, f platform.TxFilter) ([]platform.DoorDashTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []platform.DoorDashTransaction
	for _, key := range s.doordashOrder {
		row := s.doordash[key]
		if !matchesFilter(f, row.OwnerID, row.LocationID, row.Date, platform.DoorDash) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *Store) SelectUberEats(_ context.Context, f platform.TxFilter) ([]platform.UberEatsTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []platform.UberEatsTransaction
	for _, key := range s.ubereatsOrder {
		row := s.ubereats[key]
		if !matchesFilter(f, row.OwnerID, row.LocationID, row.Date, platform.UberEats) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func (s *Store) SelectGrubhub(_ context.Context, f platform.TxFilter) ([]platform.GrubhubTransaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []platform.GrubhubTransaction
	for _, key := range s.grubhubOrder {
		row := s.grubhub[key]
		if !matchesFilter(f, row.OwnerID, row.LocationID, row.Date, platform.Grubhub) {
			continue
		}
		out = append(out, row)
	}
	return out, nil
}

func matchesFilter(f platform.TxFilter, ownerID, locationID, rawDate string, p platform.Platform) bool {
	if f.OwnerID != "" && ownerID != f.OwnerID {
		return false
	}
	if !f.MatchesLocation(locationID) {
		return false
	}
	if !f.From.IsZero() || !f.To.IsZero() {
		day, err := platform.NormalizeDate(p, rawDate)
		if err != nil {
			return false
		}
		if !f.InRange(day) {
			return false
		}
	}
	return true
}

func (s *Store) UnmappedNames(_ context.Context, ownerID, bucketID string) ([]platform.NameCount, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var out []platform.NameCount
	count := func(name string, counts map[string]int, order *[]string) {
		if _, seen := counts[name]; !seen {
			*order = append(*order, name)
		}
		counts[name]++
	}

	ddCounts, ddOrder := make(map[string]int), []string{}
	for _, key := range s.doordashOrder {
		row := s.doordash[key]
		if row.OwnerID == ownerID && row.LocationID == bucketID {
			count(row.StoreName, ddCounts, &ddOrder)
		}
	}
	for _, name := range ddOrder {
		out = append(out, platform.NameCount{StoreName: name, Platform: platform.DoorDash, Rows: ddCounts[name]})
	}

	ueCounts, ueOrder := make(map[string]int), []string{}
	for _, key := range s.ubereatsOrder {
		row := s.ubereats[key]
		if row.OwnerID == ownerID && row.LocationID == bucketID {
			count(row.StoreName, ueCounts, &ueOrder)
		}
	}
	for _, name := range ueOrder {
		out = append(out, platform.NameCount{StoreName: name, Platform: platform.UberEats, Rows: ueCounts[name]})
	}

	ghCounts, ghOrder := make(map[string]int), []string{}
	for _, key := range s.grubhubOrder {
		row := s.grubhub[key]
		if row.OwnerID == ownerID && row.LocationID == bucketID {
			count(row.StoreName, ghCounts, &ghOrder)
		}
	}
	for _, name := range ghOrder {
		out = append(out, platform.NameCount{StoreName: name, Platform: platform.Grubhub, Rows: ghCounts[name]})
	}

	return out, nil
}
