/*
handlers.go - HTTP API handlers for the delivery metrics engine

PURPOSE:
  Exposes ingestion, location management, and dashboard reporting via
  REST API. Handles HTTP request/response, JSON serialization, and
  delegates to domain logic.

ENDPOINTS:
  Imports:
    POST   /api/imports/{platform}                Ingest one export file

  Dashboard:
    GET    /api/dashboard/overview                Blended totals + per platform
    GET    /api/dashboard/locations               Per (location, platform) rows
    GET    /api/dashboard/locations/consolidated  Per location across platforms

  Locations:
    GET    /api/locations                         List canonical locations
    POST   /api/locations                         Create or update a location
    POST   /api/locations/merge                   Merge duplicates
    GET    /api/locations/unmapped-names          Unresolved names for review

REQUEST FLOW:
  1. Parse HTTP request (query filters, JSON or CSV body)
  2. Validate input
  3. Call domain logic (pipeline, registry, report service)
  4. Serialize response
  5. Handle errors

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Validation errors, invalid input
  - 404: Location not found
  - 409: Merge conflicts (unmapped bucket as source)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/forkline/delivery-metrics/ingest"
	"github.com/forkline/delivery-metrics/location"
	"github.com/forkline/delivery-metrics/platform"
	"github.com/forkline/delivery-metrics/report"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Registry     location.Registry
	Transactions platform.Store
	Pipeline     *ingest.Pipeline
	Reports      *report.Service
}

// NewHandler wires the handler from a combined store (both interfaces are
// usually served by the same backend).
func NewHandler(registry location.Registry, transactions platform.Store) *Handler {
	return &Handler{
		Registry:     registry,
		Transactions: transactions,
		Pipeline:     ingest.NewPipeline(registry, transactions, location.NewResolver()),
		Reports:      report.NewService(registry, transactions),
	}
}

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// IMPORT HANDLERS
// =============================================================================

// ImportFile ingests one platform export file.
// POST /api/imports/{platform}?owner_id=...
//
// Accepts the CSV either as the raw request body or as a multipart form
// field named "file".
func (h *Handler) ImportFile(w http.ResponseWriter, r *http.Request) {
	p, err := platform.Parse(chi.URLParam(r, "platform"))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Unknown platform", err)
		return
	}

	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required", nil)
		return
	}

	file, err := importBody(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read upload", err)
		return
	}
	defer file.Close()

	rep, err := h.Pipeline.Run(r.Context(), ownerID, p, file)
	if err != nil {
		status := http.StatusInternalServerError
		if errors.Is(err, ingest.ErrNoHeader) || errors.Is(err, ingest.ErrMissingColumn) {
			status = http.StatusBadRequest
		}
		if rep != nil {
			// Partial failure: committed chunks stay, report what happened.
			writeError(w, status, fmt.Sprintf("Import failed at stage %s", rep.Stage), err)
			return
		}
		writeError(w, status, "Import failed", err)
		return
	}

	writeJSON(w, http.StatusOK, toImportReportDTO(rep))
}

// importBody returns the CSV payload, handling both raw and multipart uploads.
func importBody(r *http.Request) (io.ReadCloser, error) {
	ct, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
	if !strings.HasPrefix(ct, "multipart/") {
		return r.Body, nil
	}
	file, _, err := r.FormFile("file")
	if err != nil {
		return nil, fmt.Errorf("multipart field %q: %w", "file", err)
	}
	return file, nil
}

// =============================================================================
// DASHBOARD HANDLERS
// =============================================================================

// GetOverview returns blended totals plus the per-platform breakdown.
// GET /api/dashboard/overview
func (h *Handler) GetOverview(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filters", err)
		return
	}

	overview, err := h.Reports.Overview(r.Context(), filters)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute overview", err)
		return
	}

	writeJSON(w, http.StatusOK, OverviewDTO{
		Totals:    toMetricsDTO(overview.Totals, overview.Derived),
		Platforms: toPlatformMetricsDTOs(overview.Platforms),
	})
}

// GetLocationMetrics returns one row per (location, platform).
// GET /api/dashboard/locations
func (h *Handler) GetLocationMetrics(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filters", err)
		return
	}

	rows, err := h.Reports.LocationMetrics(r.Context(), filters)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute location metrics", err)
		return
	}

	dtos := make([]LocationRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = LocationRowDTO{
			LocationID:   row.LocationID,
			OwnerID:      row.OwnerID,
			LocationName: row.LocationName,
			Tag:          row.Tag,
			Platform:     row.Platform,
			Metrics:      toMetricsDTO(row.Metrics, row.Derived),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetConsolidatedMetrics returns one row per canonical location, summed
// across platforms. Grouping is scoped by owner so same-named locations
// of different owners never collapse into one row.
// GET /api/dashboard/locations/consolidated
func (h *Handler) GetConsolidatedMetrics(w http.ResponseWriter, r *http.Request) {
	filters, err := parseFilters(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid filters", err)
		return
	}

	rows, err := h.Reports.ConsolidatedLocationMetrics(r.Context(), filters)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to compute consolidated metrics", err)
		return
	}

	dtos := make([]ConsolidatedRowDTO, len(rows))
	for i, row := range rows {
		dtos[i] = ConsolidatedRowDTO{
			OwnerID:      row.OwnerID,
			LocationName: row.LocationName,
			Metrics:      toMetricsDTO(row.Metrics, row.Derived),
			Platforms:    toPlatformMetricsDTOs(row.Platforms),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// parseFilters reads the shared dashboard query parameters.
func parseFilters(r *http.Request) (report.Filters, error) {
	q := r.URL.Query()
	filters := report.Filters{
		OwnerID:     q.Get("owner_id"),
		LocationTag: q.Get("tag"),
	}

	if raw := q.Get("platform"); raw != "" {
		p, err := platform.Parse(raw)
		if err != nil {
			return filters, err
		}
		filters.Platform = &p
	}
	if raw := q.Get("from"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filters, fmt.Errorf("from: %w", err)
		}
		filters.From = t
	}
	if raw := q.Get("to"); raw != "" {
		t, err := time.Parse("2006-01-02", raw)
		if err != nil {
			return filters, fmt.Errorf("to: %w", err)
		}
		filters.To = t
	}
	return filters, nil
}

// =============================================================================
// LOCATION HANDLERS
// =============================================================================

// ListLocations returns canonical locations, optionally scoped to an owner.
// GET /api/locations?owner_id=...
func (h *Handler) ListLocations(w http.ResponseWriter, r *http.Request) {
	locs, err := h.Registry.List(r.Context(), r.URL.Query().Get("owner_id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list locations", err)
		return
	}

	dtos := make([]LocationDTO, len(locs))
	for i := range locs {
		dtos[i] = toLocationDTO(&locs[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// CreateLocation creates or updates a canonical location.
// POST /api/locations
func (h *Handler) CreateLocation(w http.ResponseWriter, r *http.Request) {
	var req CreateLocationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}
	if req.OwnerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required", nil)
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required", nil)
		return
	}

	loc := &location.CanonicalLocation{
		ID:        req.ID,
		OwnerID:   req.OwnerID,
		StoreCode: req.StoreCode,
		Name:      req.Name,
		Address:   req.Address,
		City:      req.City,
		State:     req.State,
		Zip:       req.Zip,
		Tag:       req.Tag,
	}
	for raw, id := range req.PlatformIDs {
		p, err := platform.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid platform in platform_ids", err)
			return
		}
		if loc.PlatformIDs == nil {
			loc.PlatformIDs = make(map[platform.Platform]string)
		}
		loc.PlatformIDs[p] = id
	}
	for raw, name := range req.PlatformNames {
		p, err := platform.Parse(raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "Invalid platform in platform_names", err)
			return
		}
		loc.SetPlatformName(p, name)
	}

	if err := h.Registry.Save(r.Context(), loc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save location", err)
		return
	}
	writeJSON(w, http.StatusCreated, toLocationDTO(loc))
}

// MergeLocations merges duplicate locations into a surviving target.
// POST /api/locations/merge
func (h *Handler) MergeLocations(w http.ResponseWriter, r *http.Request) {
	var req MergeRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	result, err := h.Registry.Merge(r.Context(), req.OwnerID, req.SourceIDs, req.TargetID)
	if err != nil {
		switch {
		case errors.Is(err, location.ErrNotFound):
			writeError(w, http.StatusNotFound, "Location not found", err)
		case errors.Is(err, location.ErrMergeUnmappedBucket):
			writeError(w, http.StatusConflict, "Unmapped bucket cannot be merged", err)
		case errors.Is(err, location.ErrOwnerRequired):
			writeError(w, http.StatusBadRequest, "owner_id is required", err)
		default:
			writeError(w, http.StatusBadRequest, "Merge failed", err)
		}
		return
	}

	dto := MergeResultDTO{
		TargetID:         result.TargetID,
		SourceIDs:        result.SourceIDs,
		Repointed:        make(map[string]int, len(result.Repointed)),
		RemovedLocations: result.RemovedLocations,
	}
	for p, n := range result.Repointed {
		dto.Repointed[string(p)] = n
	}
	writeJSON(w, http.StatusOK, dto)
}

// ListUnmappedNames returns the distinct store names sitting in the
// owner's unmapped bucket, by row volume, so an operator can fix the
// mapping and re-import.
// GET /api/locations/unmapped-names?owner_id=...
func (h *Handler) ListUnmappedNames(w http.ResponseWriter, r *http.Request) {
	ownerID := r.URL.Query().Get("owner_id")
	if ownerID == "" {
		writeError(w, http.StatusBadRequest, "owner_id is required", nil)
		return
	}

	bucket, err := h.Registry.EnsureUnmappedBucket(r.Context(), ownerID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to resolve unmapped bucket", err)
		return
	}

	names, err := h.Transactions.UnmappedNames(r.Context(), ownerID, bucket.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list unmapped names", err)
		return
	}

	dtos := make([]UnmappedNameDTO, len(names))
	for i, n := range names {
		dtos[i] = UnmappedNameDTO{StoreName: n.StoreName, Platform: n.Platform, Rows: n.Rows}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
