/*
scenarios.go - Example plan bundles for testing and demonstrations

PURPOSE:

	Provides pre-built plan bundles that populate the store with realistic
	split plans. Each bundle is run through the same admission path as
	POST /api/plans: accepted plans are saved, rejected ones only show up
	in the validation audit log with their rule code.

AVAILABLE SCENARIOS:

	worked-examples: The three canonical cases (two rejections, one accept)
	daily-retail:    Daily sales with validation windows and monthly folds
	calendar-ends:   Month, quarter and year-end series across leap years

HOW SCENARIOS WORK:
 1. Reset database (clear plans and runs)
 2. Parse each plan JSON via the factory
 3. Partition with the active thresholds
 4. Save accepted plans, record every run

USAGE VIA API:

	POST /api/scenarios/load
	{"scenario_id": "worked-examples"}

NOTE:

	Scenarios reset the database. Only use in development/demo environments.

SEE ALSO:
  - handlers.go: admitPlan
  - factory/plan.go: Plan JSON definitions
*/
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"

	"github.com/warp/forecast-split/factory"
	"github.com/warp/forecast-split/split"
)

// =============================================================================
// SCENARIO DEFINITIONS
// =============================================================================

type scenario struct {
	ScenarioDTO
	plans []string
}

var scenarios = []scenario{
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "worked-examples",
			Name:        "Worked Examples",
			Description: "Short hourly training window, oversized hourly folds, and a daily plan that fits",
		},
		plans: []string{
			`{"id":"hourly-short-train","name":"Hourly, 13 training points","freq":"H",
			  "train":{"start":"2021-01-01 00:00:00","end":"2021-01-01 12:00:00"},
			  "val":{"start":"2021-01-01 13:00:00","end":"2021-01-01 15:00:00"}}`,
			`{"id":"hourly-folds-too-long","name":"Hourly, 7 folds of 3 hours in one day","freq":"H",
			  "train":{"start":"2021-01-01 00:00:00","end":"2021-01-02 00:00:00"},
			  "cv":{"n_folds":7,"horizon":3}}`,
			factory.DailyPlanJSON("daily-12x30", "Daily, 12 folds of 30 days",
				"2020-01-01", "2021-01-01", "2021-01-02", "2021-03-01", 12),
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "daily-retail",
			Name:        "Daily Retail",
			Description: "Daily store sales: two years of history, a quarter of validation, monthly folds",
		},
		plans: []string{
			factory.DailyPlanJSON("retail-2y", "Retail, 2 years",
				"2019-01-01", "2020-12-31", "2021-01-01", "2021-03-31", 6),
			factory.DailyPlanJSON("retail-1y", "Retail, 1 year",
				"2020-01-01", "2020-12-31", "2021-01-01", "2021-01-31", 3),
			`{"id":"retail-weekly","name":"Retail, weekly rollup","freq":"W-SUN",
			  "train":{"start":"2017-01-01","end":"2020-12-27"},
			  "val":{"start":"2021-01-03","end":"2021-03-28"},
			  "cv":{"n_folds":8,"horizon":13}}`,
		},
	},
	{
		ScenarioDTO: ScenarioDTO{
			ID:          "calendar-ends",
			Name:        "Calendar Ends",
			Description: "Month, quarter and year-end anchored series, including leap-day cutoffs",
		},
		plans: []string{
			`{"id":"monthly-revenue","name":"Monthly revenue","freq":"M",
			  "train":{"start":"2010-01-31","end":"2020-12-31"},
			  "val":{"start":"2021-01-31","end":"2021-06-30"},
			  "cv":{"n_folds":6,"horizon":3}}`,
			`{"id":"quarterly-gdp","name":"Quarterly GDP","freq":"Q",
			  "train":{"start":"1950-03-31","end":"2020-12-31"},
			  "cv":{"n_folds":5,"horizon":4}}`,
			`{"id":"yearly-leap","name":"Yearly from a leap day","freq":"Y",
			  "train":{"start":"1980-02-29","end":"2024-02-29"},
			  "cv":{"n_folds":6,"horizon":1}}`,
		},
	},
}

// ListScenarios returns available scenarios.
func (h *Handler) ListScenarios(w http.ResponseWriter, r *http.Request) {
	dtos := make([]ScenarioDTO, len(scenarios))
	for i, s := range scenarios {
		dtos[i] = s.ScenarioDTO
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetCurrentScenario returns the currently loaded scenario, if any.
func (h *Handler) GetCurrentScenario(w http.ResponseWriter, r *http.Request) {
	h.mu.RLock()
	current := h.currentScenario
	h.mu.RUnlock()

	for _, s := range scenarios {
		if s.ID == current {
			writeJSON(w, http.StatusOK, s.ScenarioDTO)
			return
		}
	}
	writeJSON(w, http.StatusOK, nil)
}

// LoadScenarioRequest selects a scenario to load.
type LoadScenarioRequest struct {
	ScenarioID string `json:"scenario_id"`
}

// LoadScenarioResponse summarizes a loaded scenario.
type LoadScenarioResponse struct {
	Scenario string            `json:"scenario"`
	Saved    []string          `json:"saved"`
	Rejected map[string]string `json:"rejected"` // Plan ID to rule code
}

// LoadScenario resets the store and loads a scenario's plans.
func (h *Handler) LoadScenario(w http.ResponseWriter, r *http.Request) {
	var req LoadScenarioRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request body", err)
		return
	}

	var found *scenario
	for i := range scenarios {
		if scenarios[i].ID == req.ScenarioID {
			found = &scenarios[i]
			break
		}
	}
	if found == nil {
		writeError(w, http.StatusNotFound, "Unknown scenario: "+req.ScenarioID, nil)
		return
	}

	ctx := r.Context()
	if err := h.Store.Reset(ctx); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	resp, err := h.loadScenario(ctx, found)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load scenario", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = found.ID
	h.mu.Unlock()

	log.Printf("[API] Loaded scenario %s: %d saved, %d rejected", found.ID, len(resp.Saved), len(resp.Rejected))
	writeJSON(w, http.StatusOK, resp)
}

// ResetDatabase clears all plans and runs.
func (h *Handler) ResetDatabase(w http.ResponseWriter, r *http.Request) {
	if err := h.Store.Reset(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to reset database", err)
		return
	}

	h.mu.Lock()
	h.currentScenario = ""
	h.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

func (h *Handler) loadScenario(ctx context.Context, s *scenario) (LoadScenarioResponse, error) {
	resp := LoadScenarioResponse{
		Scenario: s.ID,
		Saved:    []string{},
		Rejected: map[string]string{},
	}

	for _, jsonStr := range s.plans {
		plan, err := h.PlanFactory.ParsePlan(jsonStr)
		if err != nil {
			return resp, fmt.Errorf("scenario %s: %w", s.ID, err)
		}

		rec, _, err := h.admitPlan(ctx, plan)
		switch {
		case err == nil:
			resp.Saved = append(resp.Saved, rec.ID)
		case split.IsClientError(err):
			resp.Rejected[plan.ID] = codeOf(err)
		default:
			return resp, err
		}
	}
	return resp, nil
}
