/*
handlers.go - HTTP API handlers for the forecast split service

PURPOSE:
  Exposes the split validators and cutoff generator via REST API. Handles
  HTTP request/response, JSON serialization, and delegates to package split.

ENDPOINTS:
  Validation:
    POST   /api/validate/train-val     Check a train/validation split
    POST   /api/validate/cv            Check a cross-validation plan
    POST   /api/cutoffs                Check a plan, then return its cutoffs

  Plans:
    GET    /api/plans                  List saved plans
    POST   /api/plans                  Partition a JSON plan and save it
    GET    /api/plans/{id}             Saved plan with its partition
    DELETE /api/plans/{id}             Delete a saved plan

  Audit:
    GET    /api/runs                   Recent validation runs (?plan_id=&limit=)

  Reference:
    GET    /api/frequencies            Supported frequency units and aliases

ARCHITECTURE:
  Handler struct holds all dependencies:
  - Store: Saved plans and the validation audit log
  - PlanFactory: JSON to Plan conversion
  - Metrics: Prometheus recorder
  - The active ValidationConfig (swappable at runtime, see SetConfig)

REQUEST FLOW:
  1. Parse HTTP request
  2. Parse frequency and timestamps (400 on failure)
  3. Run the validator (422 on rejection)
  4. Record the run in the audit log and metrics
  5. Serialize response

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, unparsable timestamp or frequency
  - 404: Plan not found
  - 422: Split rejected by a validation rule (code + hint in body)
  - 500: Internal errors

SEE ALSO:
  - dto.go: Request/response data structures
  - scenarios.go: Example plan bundles
  - server.go: Router setup and middleware
*/
package api

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/warp/forecast-split/factory"
	"github.com/warp/forecast-split/split"
	"github.com/warp/forecast-split/store/sqlite"
	"github.com/warp/forecast-split/timeseries"
)

// Run kinds recorded in the audit log.
const (
	kindTrainVal   = "train_val"
	kindCV         = "cv"
	kindCutoffs    = "cutoffs"
	kindPlan       = "plan"
	kindRevalidate = "revalidate"
)

const (
	defaultRunLimit = 50
	maxPlanBytes    = 64 << 10
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store       *sqlite.Store
	PlanFactory *factory.PlanFactory
	Metrics     *Recorder

	mu  sync.RWMutex
	cfg split.ValidationConfig

	// Track currently loaded scenario
	currentScenario string
}

// NewHandler creates a new handler with the given store and thresholds.
func NewHandler(store *sqlite.Store, cfg split.ValidationConfig) *Handler {
	return &Handler{
		Store:       store,
		PlanFactory: factory.NewPlanFactory(),
		Metrics:     NewRecorder(),
		cfg:         cfg,
	}
}

// Config returns the active validation thresholds.
func (h *Handler) Config() split.ValidationConfig {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.cfg
}

// SetConfig swaps the validation thresholds. Requests already running keep
// the thresholds they started with.
func (h *Handler) SetConfig(cfg split.ValidationConfig) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.cfg = cfg
}

// =============================================================================
// VALIDATION HANDLERS
// =============================================================================

// ValidateTrainVal checks that a validation window follows its training
// window and that both hold enough samples.
func (h *Handler) ValidateTrainVal(w http.ResponseWriter, r *http.Request) {
	var req TrainValRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	freq, err := timeseries.ParseFrequency(req.Freq)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid freq", err)
		return
	}
	train, err := parsePeriod("train", req.Train, freq)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid train period", err)
		return
	}
	val, err := parsePeriod("val", req.Val, freq)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid val period", err)
		return
	}

	start := time.Now()
	err = split.ValidateTrainVal(train, val, h.Config())
	h.recordRun(r.Context(), kindTrainVal, "", err, time.Since(start))
	if err != nil {
		writeValidationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, ValidationResponse{
		Valid:        true,
		Freq:         freq.String(),
		TrainSamples: train.Samples(),
		ValSamples:   val.Samples(),
	})
}

// ValidateCV checks that a cross-validation plan fits its training window.
func (h *Handler) ValidateCV(w http.ResponseWriter, r *http.Request) {
	plan, ok := decodeCVPlan(w, r)
	if !ok {
		return
	}

	start := time.Now()
	err := split.ValidateCVPlan(plan, h.Config())
	h.recordRun(r.Context(), kindCV, "", err, time.Since(start))
	if err != nil {
		writeValidationError(w, err)
		return
	}

	cutoffs := split.ComputeCutoffs(plan)
	writeJSON(w, http.StatusOK, ValidationResponse{
		Valid:          true,
		Freq:           plan.Freq.String(),
		TrainSamples:   plan.Train.Samples(),
		EarliestCutoff: timeseries.FormatTimestamp(cutoffs[len(cutoffs)-1]),
	})
}

// ComputeCutoffs validates a cross-validation plan and returns its cutoffs
// (latest first) and folds (earliest first).
func (h *Handler) ComputeCutoffs(w http.ResponseWriter, r *http.Request) {
	plan, ok := decodeCVPlan(w, r)
	if !ok {
		return
	}

	start := time.Now()
	err := split.ValidateCVPlan(plan, h.Config())
	var resp CutoffsResponse
	if err == nil {
		resp = CutoffsResponse{
			Freq:     plan.Freq.String(),
			Cutoffs:  toTimestamps(split.ComputeCutoffs(plan)),
			Folds:    toFoldDTOs(split.Folds(plan)),
			Coverage: split.Coverage(plan).StringFixed(4),
		}
	}
	h.recordRun(r.Context(), kindCutoffs, "", err, time.Since(start))
	if err != nil {
		writeValidationError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, resp)
}

func decodeCVPlan(w http.ResponseWriter, r *http.Request) (split.CVPlan, bool) {
	var req CVRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return split.CVPlan{}, false
	}

	freq, err := timeseries.ParseFrequency(req.Freq)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid freq", err)
		return split.CVPlan{}, false
	}
	train, err := parsePeriod("train", req.Train, freq)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid train period", err)
		return split.CVPlan{}, false
	}

	return split.CVPlan{
		Train:   train,
		NFolds:  req.NFolds,
		Horizon: req.Horizon,
		Freq:    freq,
	}, true
}

// =============================================================================
// PLAN HANDLERS
// =============================================================================

// ListPlans returns all saved plans.
func (h *Handler) ListPlans(w http.ResponseWriter, r *http.Request) {
	records, err := h.Store.ListPlans(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list plans", err)
		return
	}
	h.Metrics.RecordSavedPlans(len(records))

	dtos := make([]PlanDTO, 0, len(records))
	for _, rec := range records {
		plan, err := h.PlanFactory.ParsePlan(rec.ConfigJSON)
		if err != nil {
			log.Printf("[API] Skipping unreadable plan %s: %v", rec.ID, err)
			continue
		}
		dtos = append(dtos, h.toPlanDTO(rec, plan, nil))
	}

	writeJSON(w, http.StatusOK, dtos)
}

// CreatePlan partitions a JSON plan and saves it when every rule passes.
// A plan with an existing ID is overwritten and its version bumped.
func (h *Handler) CreatePlan(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxPlanBytes))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Failed to read request body", err)
		return
	}

	plan, err := h.PlanFactory.ParsePlan(string(body))
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid plan", err)
		return
	}

	rec, res, err := h.admitPlan(r.Context(), plan)
	if err != nil {
		if split.IsClientError(err) {
			writeValidationError(w, err)
			return
		}
		writeError(w, http.StatusInternalServerError, "Failed to save plan", err)
		return
	}

	writeJSON(w, http.StatusCreated, h.toPlanDTO(*rec, plan, &res))
}

// GetPlan returns a saved plan partitioned with the active thresholds.
// A plan that no longer passes them is returned with the rejection in
// "issue" instead of a partition.
func (h *Handler) GetPlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	rec, err := h.Store.GetPlan(r.Context(), id)
	if errors.Is(err, sqlite.ErrPlanNotFound) {
		writeError(w, http.StatusNotFound, "Plan not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get plan", err)
		return
	}

	plan, err := h.PlanFactory.ParsePlan(rec.ConfigJSON)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Stored plan is unreadable", err)
		return
	}

	res, err := split.Partition(plan.Dates, h.Config())
	dto := h.toPlanDTO(*rec, plan, &res)
	if err != nil {
		dto.Partition = nil
		dto.Issue = validationErrorResponse(err)
	}

	writeJSON(w, http.StatusOK, dto)
}

// DeletePlan removes a saved plan.
func (h *Handler) DeletePlan(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")

	err := h.Store.DeletePlan(r.Context(), id)
	if errors.Is(err, sqlite.ErrPlanNotFound) {
		writeError(w, http.StatusNotFound, "Plan not found", nil)
		return
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to delete plan", err)
		return
	}

	log.Printf("[API] Deleted plan %s", id)
	w.WriteHeader(http.StatusNoContent)
}

// admitPlan partitions plan with the active thresholds and saves it when
// accepted. Every attempt is recorded, accepted or not.
func (h *Handler) admitPlan(ctx context.Context, plan *factory.Plan) (*sqlite.PlanRecord, split.Result, error) {
	if plan.ID == "" {
		plan.ID = uuid.NewString()
		if plan.Name == "" {
			plan.Name = plan.ID
		}
	}

	start := time.Now()
	res, err := split.Partition(plan.Dates, h.Config())
	h.recordRun(ctx, kindPlan, plan.ID, err, time.Since(start))
	if err != nil {
		return nil, split.Result{}, err
	}

	configJSON, err := h.PlanFactory.ToJSONString(plan)
	if err != nil {
		return nil, split.Result{}, err
	}
	if err := h.Store.SavePlan(ctx, sqlite.PlanRecord{
		ID:         plan.ID,
		Name:       plan.Name,
		Freq:       plan.Dates.Freq.String(),
		ConfigJSON: configJSON,
	}); err != nil {
		return nil, split.Result{}, fmt.Errorf("save plan %s: %w", plan.ID, err)
	}

	rec, err := h.Store.GetPlan(ctx, plan.ID)
	if err != nil {
		return nil, split.Result{}, err
	}
	log.Printf("[API] Saved plan %s (v%d, %s)", rec.ID, rec.Version, rec.Freq)
	return rec, res, nil
}

func (h *Handler) toPlanDTO(rec sqlite.PlanRecord, plan *factory.Plan, res *split.Result) PlanDTO {
	dto := PlanDTO{
		ID:        rec.ID,
		Name:      rec.Name,
		Freq:      rec.Freq,
		Version:   rec.Version,
		Plan:      h.PlanFactory.ToJSON(plan),
		CreatedAt: rec.CreatedAt.Format(time.RFC3339),
		UpdatedAt: rec.UpdatedAt.Format(time.RFC3339),
	}
	if res != nil {
		dto.Partition = toPartitionDTO(*res)
	}
	return dto
}

// =============================================================================
// AUDIT AND REFERENCE HANDLERS
// =============================================================================

// ListRuns returns recent validation runs, latest first.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	limit := defaultRunLimit
	if s := r.URL.Query().Get("limit"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n < 1 {
			writeError(w, http.StatusBadRequest, "Invalid limit", err)
			return
		}
		limit = n
	}

	runs, err := h.Store.ListValidationRuns(r.Context(), r.URL.Query().Get("plan_id"), limit)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}

	dtos := make([]RunDTO, len(runs))
	for i, run := range runs {
		dtos[i] = toRunDTO(run)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// ListFrequencies returns the supported frequency units.
func (h *Handler) ListFrequencies(w http.ResponseWriter, r *http.Request) {
	dtos := make([]FrequencyDTO, len(timeseries.Units))
	for i, u := range timeseries.Units {
		dtos[i] = FrequencyDTO{
			Unit:     string(u),
			Name:     u.Name(),
			Anchored: u.Anchored(),
			Aliases:  u.Aliases(),
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// HELPERS
// =============================================================================

// recordRun appends a run to the audit log and the metrics. A failed write
// is logged and never fails the request.
func (h *Handler) recordRun(ctx context.Context, kind, planID string, err error, elapsed time.Duration) {
	h.Metrics.RecordValidation(kind, err, elapsed)

	run := sqlite.ValidationRun{
		ID:      uuid.NewString(),
		PlanID:  planID,
		Kind:    kind,
		Outcome: outcomeOf(err),
		Code:    codeOf(err),
	}
	if err != nil {
		run.Message = err.Error()
	}
	if saveErr := h.Store.SaveValidationRun(ctx, run); saveErr != nil {
		log.Printf("[API] Failed to record %s run: %v", kind, saveErr)
	}
}

func parsePeriod(role string, p PeriodDTO, freq timeseries.Frequency) (timeseries.Period, error) {
	if p.Start == "" || p.End == "" {
		return timeseries.Period{}, fmt.Errorf("%s.start and %s.end are required", role, role)
	}
	start, err := timeseries.ParseTimestamp(p.Start)
	if err != nil {
		return timeseries.Period{}, fmt.Errorf("%s.start: %w", role, err)
	}
	end, err := timeseries.ParseTimestamp(p.End)
	if err != nil {
		return timeseries.Period{}, fmt.Errorf("%s.end: %w", role, err)
	}
	return timeseries.NewPeriod(start, end, freq), nil
}

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

// writeValidationError maps a rejected split to 422 and anything else to 500.
func writeValidationError(w http.ResponseWriter, err error) {
	if !split.IsClientError(err) {
		writeError(w, http.StatusInternalServerError, "Validation failed", err)
		return
	}
	writeJSON(w, http.StatusUnprocessableEntity, validationErrorResponse(err))
}

func validationErrorResponse(err error) *ErrorResponse {
	return &ErrorResponse{
		Error:   "Split rejected",
		Code:    codeOf(err),
		Details: err.Error(),
		Hint:    split.HintOf(err),
	}
}
