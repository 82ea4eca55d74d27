package ingest_test

import (
	"context"
	"strings"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/forkline/delivery-metrics/ingest"
	"github.com/forkline/delivery-metrics/location"
	"github.com/forkline/delivery-metrics/platform"
	"github.com/forkline/delivery-metrics/store/memory"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func newTestPipeline(t *testing.T) (*ingest.Pipeline, *memory.Store) {
	t.Helper()
	store := memory.New()
	pl := ingest.NewPipeline(store, store, location.NewResolver("Capriotti's"))
	return pl, store
}

func seedVegas(t *testing.T, store *memory.Store) *location.CanonicalLocation {
	t.Helper()
	loc := &location.CanonicalLocation{
		OwnerID: "acct_1",
		Name:    "Flamingo Road",
		Address: "4105 Flamingo Rd",
		City:    "Las Vegas",
		PlatformIDs: map[platform.Platform]string{
			platform.DoorDash: "NV067",
		},
	}
	require.NoError(t, store.Save(context.Background(), loc))
	return loc
}

const doorDashExport = "Store Name,Order ID,Date,Status,Sales (Excl. Tax),Offers on Items,Net Payout\n" +
	"Capriotti's Flamingo (NV067),dd-1,3/5/24,Completed,$50.00,(5.00),$45.00\n" +
	"Mystery Kiosk,dd-2,3/6/24,Completed,$20.00,,$18.00\n"

// =============================================================================
// PIPELINE RUNS
// =============================================================================

func TestPipelineRun_MatchesAndRoutesUnmapped(t *testing.T) {
	// GIVEN: a registry knowing one store, an export with a coded row and
	//        an unknown store name
	// WHEN: running the pipeline
	// THEN: the coded row lands on the store, the unknown row lands in the
	//       owner's unmapped bucket, and the report tallies both

	ctx := context.Background()
	pl, store := newTestPipeline(t)
	vegas := seedVegas(t, store)

	rep, err := pl.Run(ctx, "acct_1", platform.DoorDash, strings.NewReader(doorDashExport))
	require.NoError(t, err)

	assert.Equal(t, ingest.StageDone, rep.Stage)
	assert.Equal(t, 2, rep.RowsParsed)
	assert.Equal(t, 0, rep.RowsFailed)
	assert.Equal(t, 2, rep.RowsUpserted)
	assert.Equal(t, 1, rep.RowsMatched)
	assert.Equal(t, 1, rep.RowsUnmapped)
	assert.Equal(t, 2, rep.DistinctNames)

	rows, err := store.SelectDoorDash(ctx, platform.TxFilter{OwnerID: "acct_1"})
	require.NoError(t, err)
	require.Len(t, rows, 2)

	bucket, err := store.EnsureUnmappedBucket(ctx, "acct_1")
	require.NoError(t, err)
	byOrder := map[string]string{}
	for _, row := range rows {
		byOrder[row.OrderID] = row.LocationID
	}
	assert.Equal(t, vegas.ID, byOrder["dd-1"])
	assert.Equal(t, bucket.ID, byOrder["dd-2"])
}

func TestPipelineRun_ReIngestIsIdempotent(t *testing.T) {
	// GIVEN: an export already ingested
	// WHEN: running the exact same file again
	// THEN: row counts in storage do not grow; the upsert replaces in place

	ctx := context.Background()
	pl, store := newTestPipeline(t)
	seedVegas(t, store)

	_, err := pl.Run(ctx, "acct_1", platform.DoorDash, strings.NewReader(doorDashExport))
	require.NoError(t, err)
	rep, err := pl.Run(ctx, "acct_1", platform.DoorDash, strings.NewReader(doorDashExport))
	require.NoError(t, err)

	assert.Equal(t, ingest.StageDone, rep.Stage)
	assert.Equal(t, 2, rep.RowsUpserted)

	rows, err := store.SelectDoorDash(ctx, platform.TxFilter{OwnerID: "acct_1"})
	require.NoError(t, err)
	assert.Len(t, rows, 2, "re-ingest must not duplicate rows")
}

func TestPipelineRun_CorrectedReUploadReplacesFields(t *testing.T) {
	// GIVEN: an ingested row, then a corrected export for the same order
	// WHEN: re-running with the corrected file
	// THEN: the stored row carries the corrected values

	ctx := context.Background()
	pl, store := newTestPipeline(t)
	seedVegas(t, store)

	_, err := pl.Run(ctx, "acct_1", platform.DoorDash, strings.NewReader(doorDashExport))
	require.NoError(t, err)

	corrected := strings.Replace(doorDashExport, "$50.00", "$55.00", 1)
	_, err = pl.Run(ctx, "acct_1", platform.DoorDash, strings.NewReader(corrected))
	require.NoError(t, err)

	rows, err := store.SelectDoorDash(ctx, platform.TxFilter{OwnerID: "acct_1"})
	require.NoError(t, err)
	for _, row := range rows {
		if row.OrderID == "dd-1" {
			assert.True(t, row.SalesExclTax.Equal(decimal.NewFromInt(55)),
				"SalesExclTax = %s, want 55", row.SalesExclTax)
		}
	}
}

func TestPipelineRun_RowFailuresAreIsolated(t *testing.T) {
	// GIVEN: an export where one row carries an unparseable date
	// WHEN: running the pipeline
	// THEN: the bad row is reported, the good row is stored, and the run
	//       ends in partial failure rather than aborting

	ctx := context.Background()
	pl, store := newTestPipeline(t)
	seedVegas(t, store)

	export := "Store Name,Order ID,Date,Status\n" +
		"Capriotti's (NV067),dd-1,3/5/24,Completed\n" +
		"Capriotti's (NV067),dd-2,not-a-date,Completed\n"

	rep, err := pl.Run(ctx, "acct_1", platform.DoorDash, strings.NewReader(export))
	require.NoError(t, err)

	assert.Equal(t, ingest.StagePartialFailure, rep.Stage)
	assert.Equal(t, 1, rep.RowsParsed)
	assert.Equal(t, 1, rep.RowsFailed)
	require.Len(t, rep.RowErrors, 1)
	assert.Equal(t, 2, rep.RowErrors[0].Line)

	rows, err := store.SelectDoorDash(ctx, platform.TxFilter{OwnerID: "acct_1"})
	require.NoError(t, err)
	assert.Len(t, rows, 1)
}

func TestPipelineRun_BackfillsVerifiedPlatformName(t *testing.T) {
	// GIVEN: a confident (exact-code) match for a location with no stored
	//        platform display name
	// WHEN: running the pipeline
	// THEN: the platform's display name is written back and the location
	//       is marked verified

	ctx := context.Background()
	pl, store := newTestPipeline(t)
	vegas := seedVegas(t, store)

	_, err := pl.Run(ctx, "acct_1", platform.DoorDash, strings.NewReader(doorDashExport))
	require.NoError(t, err)

	got, err := store.Get(ctx, vegas.ID)
	require.NoError(t, err)
	assert.True(t, got.Verified)
	assert.Equal(t, "Capriotti's Flamingo (NV067)", got.PlatformNames[platform.DoorDash])
}

func TestPipelineRun_RequiresOwnerAndKnownPlatform(t *testing.T) {
	// GIVEN: a pipeline
	// WHEN: running without an owner or with a bogus platform
	// THEN: both are rejected before any I/O

	ctx := context.Background()
	pl, _ := newTestPipeline(t)

	_, err := pl.Run(ctx, "", platform.DoorDash, strings.NewReader(doorDashExport))
	assert.ErrorIs(t, err, location.ErrOwnerRequired)

	_, err = pl.Run(ctx, "acct_1", platform.Platform("faxmachine"), strings.NewReader(doorDashExport))
	assert.ErrorIs(t, err, platform.ErrUnknownPlatform)
}

func TestPipelineRun_GrubhubStoreCodeColumn(t *testing.T) {
	// GIVEN: a Grubhub export whose store code arrives in its own column
	// WHEN: running the pipeline
	// THEN: the code resolves through the platform identifier map

	ctx := context.Background()
	pl, store := newTestPipeline(t)

	loc := &location.CanonicalLocation{
		OwnerID: "acct_1",
		Name:    "Flamingo Road",
		PlatformIDs: map[platform.Platform]string{
			platform.Grubhub: "10423",
		},
	}
	require.NoError(t, store.Save(ctx, loc))

	export := "Store Name,Store Number,Transaction ID,Date,Transaction Type,Subtotal,Merchant Net Total\n" +
		"Capriotti's,10423,gh-1,2024-03-05,Prepaid Order,$30.00,$26.00\n"

	rep, err := pl.Run(ctx, "acct_1", platform.Grubhub, strings.NewReader(export))
	require.NoError(t, err)
	assert.Equal(t, 1, rep.RowsMatched)

	rows, err := store.SelectGrubhub(ctx, platform.TxFilter{OwnerID: "acct_1"})
	require.NoError(t, err)
	require.Len(t, rows, 1)
	assert.Equal(t, loc.ID, rows[0].LocationID)
}
