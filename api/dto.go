/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  JSON structures for API communication, decoupling the internal domain
  model from the external contract. Monetary decimals are rendered as
  float64 rounded to cents for dashboard consumption; the exact values
  live in storage.

NAMING CONVENTION:
  - *DTO: response types returned to clients
  - *Request: request body types from clients

SEE ALSO:
  - handlers.go: uses these types
*/
package api

import (
	"github.com/shopspring/decimal"

	"github.com/forkline/delivery-metrics/ingest"
	"github.com/forkline/delivery-metrics/location"
	"github.com/forkline/delivery-metrics/metrics"
	"github.com/forkline/delivery-metrics/platform"
	"github.com/forkline/delivery-metrics/report"
)

// =============================================================================
// METRICS
// =============================================================================

// MetricsDTO flattens raw buckets and derived ratios into one object.
type MetricsDTO struct {
	TotalOrders          int64   `json:"total_orders"`
	TotalSales           float64 `json:"total_sales"`
	MarketingDrivenSales float64 `json:"marketing_driven_sales"`
	AdSpend              float64 `json:"ad_spend"`
	OfferDiscountValue   float64 `json:"offer_discount_value"`
	NetPayout            float64 `json:"net_payout"`
	OrdersFromMarketing  int64   `json:"orders_from_marketing"`

	AOV                      float64 `json:"aov"`
	TotalMarketingInvestment float64 `json:"total_marketing_investment"`
	MarketingROAS            float64 `json:"marketing_roas"`
	NetPayoutPercent         float64 `json:"net_payout_percent"`
}

func cents(d decimal.Decimal) float64 {
	return d.Round(2).InexactFloat64()
}

func toMetricsDTO(m metrics.NormalizedMetrics, d metrics.Derived) MetricsDTO {
	return MetricsDTO{
		TotalOrders:          m.TotalOrders,
		TotalSales:           cents(m.TotalSales),
		MarketingDrivenSales: cents(m.MarketingDrivenSales),
		AdSpend:              cents(m.AdSpend),
		OfferDiscountValue:   cents(m.OfferDiscountValue),
		NetPayout:            cents(m.NetPayout),
		OrdersFromMarketing:  m.OrdersFromMarketing,

		AOV:                      cents(d.AOV),
		TotalMarketingInvestment: cents(d.TotalMarketingInvestment),
		MarketingROAS:            d.MarketingROAS.Round(4).InexactFloat64(),
		NetPayoutPercent:         d.NetPayoutPercent.Round(2).InexactFloat64(),
	}
}

// PlatformMetricsDTO is one platform's slice of a view.
type PlatformMetricsDTO struct {
	Platform platform.Platform `json:"platform"`
	Metrics  MetricsDTO        `json:"metrics"`
}

// OverviewDTO is the dashboard headline response.
type OverviewDTO struct {
	Totals    MetricsDTO           `json:"totals"`
	Platforms []PlatformMetricsDTO `json:"platforms"`
}

// LocationRowDTO is one (location, platform) drill-down row.
type LocationRowDTO struct {
	LocationID   string            `json:"location_id"`
	OwnerID      string            `json:"owner_id"`
	LocationName string            `json:"location_name"`
	Tag          string            `json:"tag,omitempty"`
	Platform     platform.Platform `json:"platform"`
	Metrics      MetricsDTO        `json:"metrics"`
}

// ConsolidatedRowDTO is one canonical location summed across platforms.
type ConsolidatedRowDTO struct {
	OwnerID      string               `json:"owner_id"`
	LocationName string               `json:"location_name"`
	Metrics      MetricsDTO           `json:"metrics"`
	Platforms    []PlatformMetricsDTO `json:"platforms"`
}

func toPlatformMetricsDTOs(in []report.PlatformMetrics) []PlatformMetricsDTO {
	out := make([]PlatformMetricsDTO, len(in))
	for i, pm := range in {
		out[i] = PlatformMetricsDTO{
			Platform: pm.Platform,
			Metrics:  toMetricsDTO(pm.Metrics, pm.Derived),
		}
	}
	return out
}

// =============================================================================
// LOCATIONS
// =============================================================================

// LocationDTO represents a canonical location in API responses.
type LocationDTO struct {
	ID            string            `json:"id"`
	OwnerID       string            `json:"owner_id"`
	StoreCode     string            `json:"store_code,omitempty"`
	Name          string            `json:"name"`
	Address       string            `json:"address,omitempty"`
	City          string            `json:"city,omitempty"`
	State         string            `json:"state,omitempty"`
	Zip           string            `json:"zip,omitempty"`
	PlatformIDs   map[string]string `json:"platform_ids,omitempty"`
	PlatformNames map[string]string `json:"platform_names,omitempty"`
	Verified      bool              `json:"verified"`
	Tag           string            `json:"tag,omitempty"`
}

func toLocationDTO(loc *location.CanonicalLocation) LocationDTO {
	dto := LocationDTO{
		ID:        loc.ID,
		OwnerID:   loc.OwnerID,
		StoreCode: loc.StoreCode,
		Name:      loc.Name,
		Address:   loc.Address,
		City:      loc.City,
		State:     loc.State,
		Zip:       loc.Zip,
		Verified:  loc.Verified,
		Tag:       loc.Tag,
	}
	if len(loc.PlatformIDs) > 0 {
		dto.PlatformIDs = make(map[string]string, len(loc.PlatformIDs))
		for p, id := range loc.PlatformIDs {
			dto.PlatformIDs[string(p)] = id
		}
	}
	if len(loc.PlatformNames) > 0 {
		dto.PlatformNames = make(map[string]string, len(loc.PlatformNames))
		for p, name := range loc.PlatformNames {
			dto.PlatformNames[string(p)] = name
		}
	}
	return dto
}

// CreateLocationRequest is the request to create or update a location.
type CreateLocationRequest struct {
	ID            string            `json:"id,omitempty"`
	OwnerID       string            `json:"owner_id"`
	StoreCode     string            `json:"store_code,omitempty"`
	Name          string            `json:"name"`
	Address       string            `json:"address,omitempty"`
	City          string            `json:"city,omitempty"`
	State         string            `json:"state,omitempty"`
	Zip           string            `json:"zip,omitempty"`
	PlatformIDs   map[string]string `json:"platform_ids,omitempty"`
	PlatformNames map[string]string `json:"platform_names,omitempty"`
	Tag           string            `json:"tag,omitempty"`
}

// MergeRequest is the request to merge duplicate locations.
type MergeRequest struct {
	OwnerID   string   `json:"owner_id"`
	SourceIDs []string `json:"source_ids"`
	TargetID  string   `json:"target_id"`
}

// MergeResultDTO reports what a merge touched.
type MergeResultDTO struct {
	TargetID         string         `json:"target_id"`
	SourceIDs        []string       `json:"source_ids"`
	Repointed        map[string]int `json:"repointed"`
	RemovedLocations int            `json:"removed_locations"`
}

// UnmappedNameDTO is one distinct unresolved store name for review.
type UnmappedNameDTO struct {
	StoreName string            `json:"store_name"`
	Platform  platform.Platform `json:"platform"`
	Rows      int               `json:"rows"`
}

// =============================================================================
// INGESTION
// =============================================================================

// ImportReportDTO is the auditable outcome of one ingestion run.
type ImportReportDTO struct {
	OwnerID       string            `json:"owner_id"`
	Platform      platform.Platform `json:"platform"`
	Stage         ingest.Stage      `json:"stage"`
	RowsParsed    int               `json:"rows_parsed"`
	RowsFailed    int               `json:"rows_failed"`
	RowsUpserted  int               `json:"rows_upserted"`
	RowsMatched   int               `json:"rows_matched"`
	RowsUnmapped  int               `json:"rows_unmapped"`
	DistinctNames int               `json:"distinct_names"`
	Candidates    []CandidateDTO    `json:"candidates,omitempty"`
	RowErrors     []string          `json:"row_errors,omitempty"`
}

// CandidateDTO is one resolver verdict, for operator review.
type CandidateDTO struct {
	PlatformName  string  `json:"platform_name"`
	ExtractedCode string  `json:"extracted_code,omitempty"`
	LocationID    string  `json:"location_id,omitempty"`
	Method        string  `json:"method"`
	Confidence    float64 `json:"confidence"`
}

func toImportReportDTO(r *ingest.Report) ImportReportDTO {
	dto := ImportReportDTO{
		OwnerID:       r.OwnerID,
		Platform:      r.Platform,
		Stage:         r.Stage,
		RowsParsed:    r.RowsParsed,
		RowsFailed:    r.RowsFailed,
		RowsUpserted:  r.RowsUpserted,
		RowsMatched:   r.RowsMatched,
		RowsUnmapped:  r.RowsUnmapped,
		DistinctNames: r.DistinctNames,
	}
	for _, c := range r.Candidates {
		dto.Candidates = append(dto.Candidates, CandidateDTO{
			PlatformName:  c.PlatformName,
			ExtractedCode: c.ExtractedCode,
			LocationID:    c.LocationID,
			Method:        string(c.Method),
			Confidence:    c.Confidence,
		})
	}
	for _, e := range r.RowErrors {
		dto.RowErrors = append(dto.RowErrors, e.Error())
	}
	return dto
}
