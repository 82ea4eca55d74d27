/*
pipeline.go - Batch ingestion orchestration

PURPOSE:
  Runs one export file through parse -> resolve -> upsert:

  1. Parse the file into canonical rows, then typed transactions.
     Row-level failures are tallied, never batch-fatal.
  2. Collect the distinct set of platform location strings and resolve
     each ONCE, memoized. A 10,000-row batch typically carries only tens
     of distinct strings; resolving per-row would be wasted work.
  3. Map every row to its location id via the memo. Unresolved strings
     route to the owner's unmapped bucket - an ingested row never has an
     empty location reference.
  4. Upsert in chunks keyed by the platform's natural key, replacing all
     mutable fields on conflict. Re-uploading a corrected export is
     idempotent. Chunk boundaries are throughput-only: a fatal mid-batch
     error aborts remaining chunks but leaves committed chunks intact,
     and the run is safely re-runnable.

AUDITABILITY:
  Every run reports counts (parsed, failed, matched, routed to unmapped)
  so import quality is visible without log inspection.

STATES:
  Parsed -> LocationsResolved -> Upserted -> Done | PartialFailure
*/
package ingest

import (
	"context"
	"fmt"
	"io"

	"github.com/forkline/delivery-metrics/location"
	"github.com/forkline/delivery-metrics/platform"
)

// =============================================================================
// RUN STATES AND REPORT
// =============================================================================

type Stage string

const (
	StageParsed            Stage = "parsed"
	StageLocationsResolved Stage = "locations_resolved"
	StageUpserted          Stage = "upserted"
	StageDone              Stage = "done"
	StagePartialFailure    Stage = "partial_failure"
)

// Report is the auditable outcome of one ingestion run.
type Report struct {
	OwnerID  string
	Platform platform.Platform
	Stage    Stage

	RowsParsed   int // rows decoded into typed transactions
	RowsFailed   int // parse/decode failures, isolated per row
	RowsUpserted int
	RowsMatched  int // rows resolved to a real location
	RowsUnmapped int // rows routed to the unmapped bucket

	DistinctNames int
	// Candidates holds one resolver verdict per distinct location string,
	// for operator review of match quality.
	Candidates []location.MatchCandidate

	RowErrors []RowError
}

// =============================================================================
// PIPELINE
// =============================================================================

const (
	defaultChunkSize          = 500
	defaultBackfillConfidence = 0.8
)

// Pipeline ingests platform export files. Single writer per file; two
// racing runs for the same (owner, platform) are reconciled by the
// natural-key uniqueness constraint on upsert.
type Pipeline struct {
	Registry     location.Registry
	Transactions platform.Store
	Resolver     *location.Resolver

	// CrossRef supplies Stage 3 secondary exports per platform. Optional.
	CrossRef map[platform.Platform][]location.CrossRefEntry

	// ChunkSize bounds upsert batches. Throughput-only; no semantics.
	ChunkSize int

	// BackfillConfidence: matches at or above it write the platform
	// display name back onto the canonical location and mark it verified.
	BackfillConfidence float64
}

func NewPipeline(reg location.Registry, store platform.Store, resolver *location.Resolver) *Pipeline {
	return &Pipeline{
		Registry:           reg,
		Transactions:       store,
		Resolver:           resolver,
		ChunkSize:          defaultChunkSize,
		BackfillConfidence: defaultBackfillConfidence,
	}
}

// Run ingests one export file for (ownerID, p). The returned report is
// non-nil whenever parsing got far enough to count anything, even when
// err is non-nil (partial failure).
func (pl *Pipeline) Run(ctx context.Context, ownerID string, p platform.Platform, file io.Reader) (*Report, error) {
	if ownerID == "" {
		return nil, location.ErrOwnerRequired
	}
	if !p.Valid() {
		return nil, fmt.Errorf("%w: %q", platform.ErrUnknownPlatform, p)
	}

	report := &Report{OwnerID: ownerID, Platform: p}

	// Parse + decode.
	rows, rowErrs, err := ParseCSV(file, p)
	if err != nil {
		return nil, err
	}
	report.RowErrors = rowErrs

	b, decodeErrs := pl.decodeBatch(ownerID, p, rows)
	report.RowErrors = append(report.RowErrors, decodeErrs...)
	report.RowsParsed = b.len()
	report.RowsFailed = len(report.RowErrors)
	report.Stage = StageParsed

	// Resolve distinct location strings once, memoized.
	bucket, err := pl.Registry.EnsureUnmappedBucket(ctx, ownerID)
	if err != nil {
		return report, err
	}
	master, err := pl.Registry.List(ctx, ownerID)
	if err != nil {
		return report, err
	}

	var rctxCrossRef []location.CrossRefEntry
	if pl.CrossRef != nil {
		rctxCrossRef = pl.CrossRef[p]
	}

	memo := make(map[string]location.MatchCandidate)
	for i := 0; i < b.len(); i++ {
		name, code := b.key(i)
		memoKey := name + "\x00" + code
		candidate, seen := memo[memoKey]
		if !seen {
			candidate = pl.Resolver.Resolve(name, p, master, &location.ResolveContext{
				StoreCode: code,
				CrossRef:  rctxCrossRef,
			})
			memo[memoKey] = candidate
			report.Candidates = append(report.Candidates, candidate)
		}

		if candidate.Matched() {
			b.setLocation(i, candidate.LocationID)
			report.RowsMatched++
		} else {
			b.setLocation(i, bucket.ID)
			report.RowsUnmapped++
		}
	}
	report.DistinctNames = len(memo)
	report.Stage = StageLocationsResolved

	if err := pl.backfill(ctx, p, master, report.Candidates); err != nil {
		return report, err
	}

	// Chunked idempotent upsert.
	chunk := pl.ChunkSize
	if chunk <= 0 {
		chunk = defaultChunkSize
	}
	for from := 0; from < b.len(); from += chunk {
		to := from + chunk
		if to > b.len() {
			to = b.len()
		}
		result, err := b.upsert(ctx, pl.Transactions, from, to)
		report.RowsUpserted += result.Processed
		report.RowsFailed += result.Failed
		if err != nil {
			// Committed chunks stay; the run is re-runnable.
			report.Stage = StagePartialFailure
			return report, err
		}
	}
	report.Stage = StageUpserted

	if report.RowsFailed > 0 {
		report.Stage = StagePartialFailure
	} else {
		report.Stage = StageDone
	}
	return report, nil
}

// backfill writes platform display names onto confidently matched
// locations and marks them verified.
func (pl *Pipeline) backfill(ctx context.Context, p platform.Platform, master []location.CanonicalLocation, candidates []location.MatchCandidate) error {
	byID := make(map[string]*location.CanonicalLocation, len(master))
	for i := range master {
		byID[master[i].ID] = &master[i]
	}

	done := make(map[string]bool)
	for _, c := range candidates {
		if !c.Matched() || c.Confidence < pl.BackfillConfidence {
			continue
		}
		loc := byID[c.LocationID]
		if loc == nil || done[loc.ID] {
			continue
		}
		if loc.PlatformNames[p] == c.PlatformName && loc.Verified {
			continue
		}
		loc.SetPlatformName(p, c.PlatformName)
		loc.Verified = true
		if err := pl.Registry.Save(ctx, loc); err != nil {
			return err
		}
		done[loc.ID] = true
	}
	return nil
}

// =============================================================================
// TYPED BATCHES
// =============================================================================

// batch abstracts the per-platform transaction slice behind what the
// pipeline actually needs: row keys, location assignment, chunked upsert.
type batch interface {
	len() int
	key(i int) (storeName, storeCode string)
	setLocation(i int, locationID string)
	upsert(ctx context.Context, store platform.Store, from, to int) (platform.UpsertResult, error)
}

func (pl *Pipeline) decodeBatch(ownerID string, p platform.Platform, rows []Row) (batch, []RowError) {
	var errs []RowError
	switch p {
	case platform.UberEats:
		b := &uberEatsBatch{}
		for i, row := range rows {
			tx, err := decodeUberEats(ownerID, row)
			if err != nil {
				errs = append(errs, RowError{Line: i + 1, Err: err})
				continue
			}
			b.rows = append(b.rows, tx)
		}
		return b, errs
	case platform.Grubhub:
		b := &grubhubBatch{}
		for i, row := range rows {
			tx, err := decodeGrubhub(ownerID, row)
			if err != nil {
				errs = append(errs, RowError{Line: i + 1, Err: err})
				continue
			}
			b.rows = append(b.rows, tx)
		}
		return b, errs
	default: // DoorDash; Run already rejected unknown platforms
		b := &doorDashBatch{}
		for i, row := range rows {
			tx, err := decodeDoorDash(ownerID, row)
			if err != nil {
				errs = append(errs, RowError{Line: i + 1, Err: err})
				continue
			}
			b.rows = append(b.rows, tx)
		}
		return b, errs
	}
}

type doorDashBatch struct{ rows []platform.DoorDashTransaction }

func (b *doorDashBatch) len() int { return len(b.rows) }
func (b *doorDashBatch) key(i int) (string, string) { return b.rows[i].StoreName, "" }
func (b *doorDashBatch) setLocation(i int, id string) { b.rows[i].LocationID = id }
func (b *doorDashBatch) upsert(ctx context.Context, store platform.Store, from, to int) (platform.UpsertResult, error) {
	return store.UpsertDoorDash(ctx, b.rows[from:to])
}

type uberEatsBatch struct{ rows []platform.UberEatsTransaction }

func (b *uberEatsBatch) len() int { return len(b.rows) }
func (b *uberEatsBatch) key(i int) (string, string) { return b.rows[i].StoreName, "" }
func (b *uberEatsBatch) setLocation(i int, id string) { b.rows[i].LocationID = id }
func (b *uberEatsBatch) upsert(ctx context.Context, store platform.Store, from, to int) (platform.UpsertResult, error) {
	return store.UpsertUberEats(ctx, b.rows[from:to])
}

type grubhubBatch struct{ rows []platform.GrubhubTransaction }

func (b *grubhubBatch) len() int { return len(b.rows) }
func (b *grubhubBatch) key(i int) (string, string) {
	return b.rows[i].StoreName, b.rows[i].StoreCode
}
func (b *grubhubBatch) setLocation(i int, id string) { b.rows[i].LocationID = id }
func (b *grubhubBatch) upsert(ctx context.Context, store platform.Store, from, to int) (platform.UpsertResult, error) {
	return store.UpsertGrubhub(ctx, b.rows[from:to])
}
