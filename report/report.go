/*
Package report composes normalized per-platform metrics into dashboard
views.

PURPOSE:
  Three views over the same underlying tuples:
  - Overview: brand-wide totals plus a per-platform breakdown
  - LocationMetrics: one row per (location, platform) for drill-down
  - ConsolidatedLocationMetrics: one row per canonical location with a
    nested per-platform breakdown

SUM-THEN-RATIO:
  Totals sum each platform's RAW metric buckets and recompute the four
  derived ratios over the sums. Averaging per-platform ratios produces a
  materially different, wrong number (two platforms with ROAS 10 and 1 do
  not blend to 5.5).

GROUPING SCOPE:
  Consolidation groups by (owner, canonical name), never name alone:
  every owner has a location literally named "Unmapped Locations" and
  those must not merge across owners.

CONCURRENCY:
  The three platform fetch+calculate legs are pure over pre-fetched row
  sets and fan out on an errgroup; only the final summation is sequential.

SEE ALSO:
  - metrics/: the per-platform calculators
  - location/store.go: the registry the tag filter resolves against
*/
package report

import (
	"context"
	"sort"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/forkline/delivery-metrics/location"
	"github.com/forkline/delivery-metrics/metrics"
	"github.com/forkline/delivery-metrics/platform"
)

// =============================================================================
// FILTERS
// =============================================================================

// Filters scopes every report view. Zero values widen the scope: empty
// OwnerID covers all owners, nil Platform covers all three platforms,
// zero From/To leave the date range open.
type Filters struct {
	OwnerID     string
	Platform    *platform.Platform
	From        time.Time
	To          time.Time
	LocationTag string
}

func (f Filters) platforms() []platform.Platform {
	if f.Platform != nil {
		return []platform.Platform{*f.Platform}
	}
	return platform.All()
}

// =============================================================================
// VIEW TYPES
// =============================================================================

// PlatformMetrics is one platform's slice of a view.
type PlatformMetrics struct {
	Platform platform.Platform
	Metrics  metrics.NormalizedMetrics
	Derived  metrics.Derived
}

// Overview is the dashboard headline view.
type Overview struct {
	Totals    metrics.NormalizedMetrics
	Derived   metrics.Derived
	Platforms []PlatformMetrics
}

// LocationRow is one (location, platform) drill-down row.
type LocationRow struct {
	LocationID   string
	OwnerID      string
	LocationName string
	Tag          string
	Platform     platform.Platform
	Metrics      metrics.NormalizedMetrics
	Derived      metrics.Derived
}

// ConsolidatedRow is one canonical location summed across platforms.
type ConsolidatedRow struct {
	OwnerID      string
	LocationName string
	Metrics      metrics.NormalizedMetrics
	Derived      metrics.Derived
	Platforms    []PlatformMetrics
}

// =============================================================================
// SERVICE
// =============================================================================

// Service computes report views from stored transactions.
type Service struct {
	Locations    location.Registry
	Transactions platform.Store
	UberEats     metrics.UberEatsConfig
}

func NewService(reg location.Registry, store platform.Store) *Service {
	return &Service{
		Locations:    reg,
		Transactions: store,
		UberEats:     metrics.DefaultUberEatsConfig(),
	}
}

// Overview sums each platform's raw buckets and recomputes the derived
// ratios over the sums.
func (s *Service) Overview(ctx context.Context, f Filters) (*Overview, error) {
	txf, emptyScope, err := s.txFilter(ctx, f)
	if err != nil {
		return nil, err
	}
	out := &Overview{Totals: metrics.Zero()}
	if emptyScope {
		// A tag filter that matches no locations yields an explicit
		// zero-valued result, never a silently unfiltered one.
		out.Derived = out.Totals.Derived()
		return out, nil
	}

	perPlatform, err := s.calculate(ctx, f.platforms(), txf)
	if err != nil {
		return nil, err
	}

	for _, pm := range perPlatform {
		out.Totals = out.Totals.Add(pm.Metrics)
	}
	out.Derived = out.Totals.Derived()
	out.Platforms = perPlatform
	return out, nil
}

// LocationMetrics returns one row per (location, platform) for drill-down.
func (s *Service) LocationMetrics(ctx context.Context, f Filters) ([]LocationRow, error) {
	txf, emptyScope, err := s.txFilter(ctx, f)
	if err != nil {
		return nil, err
	}
	if emptyScope {
		return []LocationRow{}, nil
	}

	locs, err := s.Locations.List(ctx, f.OwnerID)
	if err != nil {
		return nil, err
	}
	byID := make(map[string]*location.CanonicalLocation, len(locs))
	for i := range locs {
		byID[locs[i].ID] = &locs[i]
	}

	grouped, err := s.calculateByLocation(ctx, f.platforms(), txf)
	if err != nil {
		return nil, err
	}

	var rows []LocationRow
	for _, g := range grouped {
		row := LocationRow{
			LocationID: g.locationID,
			Platform:   g.platform,
			Metrics:    g.metrics,
			Derived:    g.metrics.Derived(),
		}
		if loc := byID[g.locationID]; loc != nil {
			row.OwnerID = loc.OwnerID
			row.LocationName = loc.Name
			row.Tag = loc.Tag
		}
		rows = append(rows, row)
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].OwnerID != rows[j].OwnerID {
			return rows[i].OwnerID < rows[j].OwnerID
		}
		if rows[i].LocationName != rows[j].LocationName {
			return rows[i].LocationName < rows[j].LocationName
		}
		return rows[i].Platform < rows[j].Platform
	})
	return rows, nil
}

// ConsolidatedLocationMetrics groups drill-down rows by (owner, canonical
// name), sums raw buckets across platforms per group and recomputes the
// ratios over the sums.
func (s *Service) ConsolidatedLocationMetrics(ctx context.Context, f Filters) ([]ConsolidatedRow, error) {
	rows, err := s.LocationMetrics(ctx, f)
	if err != nil {
		return nil, err
	}

	type groupKey struct {
		ownerID string
		name    string
	}
	groups := make(map[groupKey]*ConsolidatedRow)
	var order []groupKey

	for _, row := range rows {
		k := groupKey{ownerID: row.OwnerID, name: row.LocationName}
		g, ok := groups[k]
		if !ok {
			g = &ConsolidatedRow{
				OwnerID:      row.OwnerID,
				LocationName: row.LocationName,
				Metrics:      metrics.Zero(),
			}
			groups[k] = g
			order = append(order, k)
		}
		g.Metrics = g.Metrics.Add(row.Metrics)
		g.Platforms = append(g.Platforms, PlatformMetrics{
			Platform: row.Platform,
			Metrics:  row.Metrics,
			Derived:  row.Derived,
		})
	}

	out := make([]ConsolidatedRow, 0, len(order))
	for _, k := range order {
		g := groups[k]
		g.Derived = g.Metrics.Derived()
		out = append(out, *g)
	}
	return out, nil
}

// =============================================================================
// INTERNALS
// =============================================================================

// txFilter translates report filters into a store filter, resolving a tag
// filter into explicit location ids. emptyScope is true when the tag
// matched nothing.
func (s *Service) txFilter(ctx context.Context, f Filters) (platform.TxFilter, bool, error) {
	txf := platform.TxFilter{OwnerID: f.OwnerID, From: f.From, To: f.To}
	if f.LocationTag == "" {
		return txf, false, nil
	}

	locs, err := s.Locations.List(ctx, f.OwnerID)
	if err != nil {
		return txf, false, err
	}
	ids := []string{}
	for i := range locs {
		if locs[i].Tag == f.LocationTag {
			ids = append(ids, locs[i].ID)
		}
	}
	if len(ids) == 0 {
		return txf, true, nil
	}
	txf.LocationIDs = ids
	return txf, false, nil
}

// calculate fans the platform legs out and returns per-platform metrics
// in the input platform order.
func (s *Service) calculate(ctx context.Context, platforms []platform.Platform, txf platform.TxFilter) ([]PlatformMetrics, error) {
	results := make([]metrics.NormalizedMetrics, len(platforms))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range platforms {
		i, p := i, p
		g.Go(func() error {
			m, err := s.calculateOne(gctx, p, txf)
			if err != nil {
				return err
			}
			results[i] = m
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	out := make([]PlatformMetrics, len(platforms))
	for i, p := range platforms {
		out[i] = PlatformMetrics{Platform: p, Metrics: results[i], Derived: results[i].Derived()}
	}
	return out, nil
}

func (s *Service) calculateOne(ctx context.Context, p platform.Platform, txf platform.TxFilter) (metrics.NormalizedMetrics, error) {
	switch p {
	case platform.DoorDash:
		rows, err := s.Transactions.SelectDoorDash(ctx, txf)
		if err != nil {
			return metrics.Zero(), err
		}
		return metrics.CalculateDoorDash(rows), nil
	case platform.UberEats:
		rows, err := s.Transactions.SelectUberEats(ctx, txf)
		if err != nil {
			return metrics.Zero(), err
		}
		return metrics.CalculateUberEats(rows, s.UberEats), nil
	case platform.Grubhub:
		rows, err := s.Transactions.SelectGrubhub(ctx, txf)
		if err != nil {
			return metrics.Zero(), err
		}
		return metrics.CalculateGrubhub(rows), nil
	}
	return metrics.Zero(), platform.ErrUnknownPlatform
}

type locationGroup struct {
	locationID string
	platform   platform.Platform
	metrics    metrics.NormalizedMetrics
}

// calculateByLocation fetches each platform's rows, groups them by
// location id and runs the calculator per group.
func (s *Service) calculateByLocation(ctx context.Context, platforms []platform.Platform, txf platform.TxFilter) ([]locationGroup, error) {
	perPlatform := make([][]locationGroup, len(platforms))

	g, gctx := errgroup.WithContext(ctx)
	for i, p := range platforms {
		i, p := i, p
		g.Go(func() error {
			groups, err := s.groupOne(gctx, p, txf)
			if err != nil {
				return err
			}
			perPlatform[i] = groups
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	var all []locationGroup
	for _, groups := range perPlatform {
		all = append(all, groups...)
	}
	return all, nil
}

func (s *Service) groupOne(ctx context.Context, p platform.Platform, txf platform.TxFilter) ([]locationGroup, error) {
	switch p {
	case platform.DoorDash:
		rows, err := s.Transactions.SelectDoorDash(ctx, txf)
		if err != nil {
			return nil, err
		}
		byLoc := make(map[string][]platform.DoorDashTransaction)
		var order []string
		for _, row := range rows {
			if _, ok := byLoc[row.LocationID]; !ok {
				order = append(order, row.LocationID)
			}
			byLoc[row.LocationID] = append(byLoc[row.LocationID], row)
		}
		groups := make([]locationGroup, 0, len(order))
		for _, id := range order {
			groups = append(groups, locationGroup{id, p, metrics.CalculateDoorDash(byLoc[id])})
		}
		return groups, nil

	case platform.UberEats:
		rows, err := s.Transactions.SelectUberEats(ctx, txf)
		if err != nil {
			return nil, err
		}
		byLoc := make(map[string][]platform.UberEatsTransaction)
		var order []string
		for _, row := range rows {
			if _, ok := byLoc[row.LocationID]; !ok {
				order = append(order, row.LocationID)
			}
			byLoc[row.LocationID] = append(byLoc[row.LocationID], row)
		}
		groups := make([]locationGroup, 0, len(order))
		for _, id := range order {
			groups = append(groups, locationGroup{id, p, metrics.CalculateUberEats(byLoc[id], s.UberEats)})
		}
		return groups, nil

	case platform.Grubhub:
		rows, err := s.Transactions.SelectGrubhub(ctx, txf)
		if err != nil {
			return nil, err
		}
		byLoc := make(map[string][]platform.GrubhubTransaction)
		var order []string
		for _, row := range rows {
			if _, ok := byLoc[row.LocationID]; !ok {
				order = append(order, row.LocationID)
			}
			byLoc[row.LocationID] = append(byLoc[row.LocationID], row)
		}
		groups := make([]locationGroup, 0, len(order))
		for _, id := range order {
			groups = append(groups, locationGroup{id, p, metrics.CalculateGrubhub(byLoc[id])})
		}
		return groups, nil
	}
	return nil, platform.ErrUnknownPlatform
}
