/*
handlers_test.go - HTTP tests for the split API

Tests for:
- Status mapping (200 / 201 / 204 / 400 / 404 / 422)
- Rule codes and hints in rejection bodies
- Plan lifecycle and the validation audit log
- Metrics exposition
*/
package api

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/forecast-split/factory"
	"github.com/warp/forecast-split/split"
	"github.com/warp/forecast-split/store/sqlite"
)

func setupTestHandler(t *testing.T) *Handler {
	t.Helper()
	store, err := sqlite.New(":memory:")
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return NewHandler(store, split.DefaultValidationConfig())
}

func do(t *testing.T, h *Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	rec := httptest.NewRecorder()
	NewRouter(h, RouterOptions{}).ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

const dailyYearCV = `{"freq":"D","train":{"start":"2020-01-01","end":"2021-01-01"},"n_folds":12,"horizon":30}`

// =============================================================================
// VALIDATORS
// =============================================================================

func TestValidateTrainVal_Accepted(t *testing.T) {
	h := setupTestHandler(t)

	rec := do(t, h, "POST", "/api/validate/train-val", `{
		"freq": "D",
		"train": {"start": "2020-01-01", "end": "2021-01-01"},
		"val": {"start": "2021-01-02", "end": "2021-03-01"}
	}`)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[ValidationResponse](t, rec)
	assert.True(t, resp.Valid)
	assert.Equal(t, 367, resp.TrainSamples)
	assert.Equal(t, 59, resp.ValSamples)
}

func TestValidateTrainVal_Rejected(t *testing.T) {
	tests := []struct {
		name string
		body string
		code string
	}{
		{
			"hourly train of 13 points",
			`{"freq":"H","train":{"start":"2021-01-01 00:00:00","end":"2021-01-01 12:00:00"},"val":{"start":"2021-01-02","end":"2021-01-05"}}`,
			"insufficient_samples",
		},
		{
			"val starts on train end",
			`{"freq":"D","train":{"start":"2020-01-01","end":"2021-01-01"},"val":{"start":"2021-01-01","end":"2021-02-01"}}`,
			"overlap_or_precedence",
		},
		{
			"single val point",
			`{"freq":"D","train":{"start":"2020-01-01","end":"2021-01-01"},"val":{"start":"2021-01-02","end":"2021-01-02"}}`,
			"insufficient_samples",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTestHandler(t)

			rec := do(t, h, "POST", "/api/validate/train-val", tt.body)

			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			resp := decode[ErrorResponse](t, rec)
			assert.Equal(t, tt.code, resp.Code)
			assert.NotEmpty(t, resp.Details)
			assert.NotEmpty(t, resp.Hint)
		})
	}
}

func TestValidate_BadInput(t *testing.T) {
	tests := []struct {
		name string
		path string
		body string
	}{
		{"malformed body", "/api/validate/train-val", `{"freq":`},
		{"unknown freq", "/api/validate/train-val", `{"freq":"fortnight","train":{"start":"2020-01-01","end":"2021-01-01"},"val":{"start":"2021-01-02","end":"2021-02-01"}}`},
		{"bad timestamp", "/api/validate/train-val", `{"freq":"D","train":{"start":"yesterday","end":"2021-01-01"},"val":{"start":"2021-01-02","end":"2021-02-01"}}`},
		{"missing val", "/api/validate/train-val", `{"freq":"D","train":{"start":"2020-01-01","end":"2021-01-01"}}`},
		{"missing freq", "/api/validate/cv", `{"train":{"start":"2020-01-01","end":"2021-01-01"},"n_folds":3,"horizon":1}`},
		{"missing train", "/api/cutoffs", `{"freq":"D","n_folds":3,"horizon":1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := setupTestHandler(t)

			rec := do(t, h, "POST", tt.path, tt.body)

			assert.Equal(t, http.StatusBadRequest, rec.Code, rec.Body.String())
		})
	}
}

func TestValidateCV(t *testing.T) {
	h := setupTestHandler(t)

	t.Run("daily year fits 12 folds", func(t *testing.T) {
		rec := do(t, h, "POST", "/api/validate/cv", dailyYearCV)

		require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
		resp := decode[ValidationResponse](t, rec)
		assert.Equal(t, "2020-01-07", resp.EarliestCutoff)
	})

	t.Run("hourly day cannot fit 7 folds of 3 hours", func(t *testing.T) {
		rec := do(t, h, "POST", "/api/validate/cv",
			`{"freq":"H","train":{"start":"2021-01-01 00:00:00","end":"2021-01-02 00:00:00"},"n_folds":7,"horizon":3}`)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "folds_exceed_train_window", decode[ErrorResponse](t, rec).Code)
	})

	t.Run("zero folds", func(t *testing.T) {
		rec := do(t, h, "POST", "/api/validate/cv",
			`{"freq":"D","train":{"start":"2020-01-01","end":"2021-01-01"},"n_folds":0,"horizon":30}`)

		require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
		assert.Equal(t, "invalid_fold_count", decode[ErrorResponse](t, rec).Code)
	})
}

func TestComputeCutoffs(t *testing.T) {
	// GIVEN: A year of daily data and 12 folds of 30 days
	// WHEN: Requesting cutoffs
	// THEN: Latest first, folds earliest first, coverage of the training span
	h := setupTestHandler(t)

	rec := do(t, h, "POST", "/api/cutoffs", dailyYearCV)

	require.Equal(t, http.StatusOK, rec.Code, rec.Body.String())
	resp := decode[CutoffsResponse](t, rec)
	require.Len(t, resp.Cutoffs, 12)
	assert.Equal(t, "2020-12-02", resp.Cutoffs[0])
	assert.Equal(t, "2020-01-07", resp.Cutoffs[11])
	require.Len(t, resp.Folds, 12)
	assert.Equal(t, "2020-01-07", resp.Folds[0].Cutoff)
	assert.Equal(t, "2020-01-01", resp.Folds[0].Train.Start)
	assert.Equal(t, "2021-01-01", resp.Folds[11].Horizon.End)
	assert.Equal(t, "0.9836", resp.Coverage)
}

func TestComputeCutoffs_OversizedPlans(t *testing.T) {
	// GIVEN: Fold plans far larger than their training window
	// WHEN: Requesting cutoffs or saving them as plans
	// THEN: 422 with the rule code, and nothing is saved
	h := setupTestHandler(t)

	tests := []struct {
		name string
		body string
		code string
	}{
		{"hourly horizon 1<<50",
			`{"freq":"H","train":{"start":"2020-01-01","end":"2021-01-01"},"n_folds":2,"horizon":1125899906842624}`,
			"folds_exceed_train_window"},
		{"daily horizon 1<<62",
			`{"freq":"D","train":{"start":"2020-01-01","end":"2021-01-01"},"n_folds":2,"horizon":4611686018427387904}`,
			"folds_exceed_train_window"},
		{"a billion folds",
			`{"freq":"D","train":{"start":"0001-01-01","end":"9999-12-31"},"n_folds":1000000000,"horizon":1}`,
			"invalid_fold_count"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rec := do(t, h, "POST", "/api/cutoffs", tt.body)

			require.Equal(t, http.StatusUnprocessableEntity, rec.Code, rec.Body.String())
			assert.Equal(t, tt.code, decode[ErrorResponse](t, rec).Code)
		})
	}

	rec := do(t, h, "POST", "/api/plans",
		`{"id":"huge","freq":"H","train":{"start":"2020-01-01","end":"2021-01-01"},"cv":{"n_folds":2,"horizon":1125899906842624}}`)
	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, "GET", "/api/plans/huge", "").Code)
}

// =============================================================================
// PLANS
// =============================================================================

func TestPlans_Lifecycle(t *testing.T) {
	h := setupTestHandler(t)
	body := factory.DailyPlanJSON("daily-cv", "Daily CV", "2020-01-01", "2021-01-01", "2021-01-02", "2021-03-01", 12)

	// Create
	rec := do(t, h, "POST", "/api/plans", body)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	created := decode[PlanDTO](t, rec)
	assert.Equal(t, "daily-cv", created.ID)
	assert.Equal(t, 1, created.Version)
	require.NotNil(t, created.Partition)
	assert.Equal(t, "2020-01-07", created.Partition.Cutoffs[0], "partition cutoffs ascending")
	require.NotNil(t, created.Partition.Val)
	assert.Equal(t, "2021-01-02", created.Partition.Val.Start)

	// Overwrite bumps the version
	rec = do(t, h, "POST", "/api/plans", body)
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, 2, decode[PlanDTO](t, rec).Version)

	// Get
	rec = do(t, h, "GET", "/api/plans/daily-cv", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[PlanDTO](t, rec)
	assert.Equal(t, "Daily CV", got.Name)
	assert.Equal(t, 12, got.Plan.CV.NFolds)
	assert.Nil(t, got.Issue)

	// List
	rec = do(t, h, "GET", "/api/plans", "")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Len(t, decode[[]PlanDTO](t, rec), 1)

	// Delete
	rec = do(t, h, "DELETE", "/api/plans/daily-cv", "")
	assert.Equal(t, http.StatusNoContent, rec.Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, "GET", "/api/plans/daily-cv", "").Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, "DELETE", "/api/plans/daily-cv", "").Code)
}

func TestGetPlan_KeepsTimestampOffsets(t *testing.T) {
	// GIVEN: A plan saved with +05:00 timestamps
	// WHEN: Read back from the store
	// THEN: The stored definition and its partition keep the offset
	h := setupTestHandler(t)
	body := `{"id":"karachi","name":"Karachi hourly","freq":"H",
		"train":{"start":"2020-01-01T00:00:00+05:00","end":"2020-03-01T00:00:00+05:00"},
		"val":{"start":"2020-03-01T01:00:00+05:00","end":"2020-03-02T00:00:00+05:00"}}`

	require.Equal(t, http.StatusCreated, do(t, h, "POST", "/api/plans", body).Code)

	rec := do(t, h, "GET", "/api/plans/karachi", "")
	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[PlanDTO](t, rec)
	assert.Equal(t, "2020-01-01T00:00:00+05:00", got.Plan.Train.Start)
	require.NotNil(t, got.Partition)
	assert.Equal(t, "2020-01-01T00:00:00+05:00", got.Partition.Train.Start)
	assert.Equal(t, "2020-03-01T01:00:00+05:00", got.Partition.Val.Start)
}

func TestCreatePlan_RejectedPlanIsNotSaved(t *testing.T) {
	h := setupTestHandler(t)

	rec := do(t, h, "POST", "/api/plans",
		factory.DailyPlanJSON("too-many", "Too many folds", "2020-01-01", "2021-01-01", "2021-01-02", "2021-03-01", 13))

	require.Equal(t, http.StatusUnprocessableEntity, rec.Code)
	assert.Equal(t, "folds_exceed_train_window", decode[ErrorResponse](t, rec).Code)
	assert.Equal(t, http.StatusNotFound, do(t, h, "GET", "/api/plans/too-many", "").Code)
}

func TestCreatePlan_BadInput(t *testing.T) {
	h := setupTestHandler(t)

	assert.Equal(t, http.StatusBadRequest, do(t, h, "POST", "/api/plans", `{"id":`).Code)
	assert.Equal(t, http.StatusBadRequest, do(t, h, "POST", "/api/plans",
		`{"id":"x","freq":"D","train":{"start":"2020-01-01"}}`).Code)
}

func TestCreatePlan_GeneratesID(t *testing.T) {
	h := setupTestHandler(t)

	rec := do(t, h, "POST", "/api/plans",
		`{"freq":"W","train":{"start":"2015-01-01","end":"2020-12-31"},"cv":{"n_folds":4,"horizon":13}}`)

	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	plan := decode[PlanDTO](t, rec)
	assert.Len(t, plan.ID, 36)
	assert.Equal(t, plan.ID, plan.Name)
}

func TestGetPlan_ReportsIssueUnderStricterThresholds(t *testing.T) {
	// GIVEN: A plan accepted under the default thresholds
	// WHEN: The thresholds are raised past what the plan holds
	// THEN: GET returns the plan with the rejection instead of a partition
	h := setupTestHandler(t)
	body := factory.DailyPlanJSON("daily-cv", "Daily CV", "2020-01-01", "2021-01-01", "2021-01-02", "2021-03-01", 12)
	require.Equal(t, http.StatusCreated, do(t, h, "POST", "/api/plans", body).Code)

	cfg := split.DefaultValidationConfig()
	cfg.MinValPoints = 90
	h.SetConfig(cfg)

	rec := do(t, h, "GET", "/api/plans/daily-cv", "")

	require.Equal(t, http.StatusOK, rec.Code)
	got := decode[PlanDTO](t, rec)
	assert.Nil(t, got.Partition)
	require.NotNil(t, got.Issue)
	assert.Equal(t, "insufficient_samples", got.Issue.Code)
}

// =============================================================================
// AUDIT, REFERENCE, METRICS
// =============================================================================

func TestListRuns_RecordsEveryValidation(t *testing.T) {
	h := setupTestHandler(t)

	do(t, h, "POST", "/api/validate/cv", dailyYearCV)
	do(t, h, "POST", "/api/validate/cv",
		`{"freq":"D","train":{"start":"2020-01-01","end":"2021-01-01"},"n_folds":1,"horizon":0}`)
	do(t, h, "POST", "/api/cutoffs", dailyYearCV)

	rec := do(t, h, "GET", "/api/runs?limit=2", "")

	require.Equal(t, http.StatusOK, rec.Code)
	runs := decode[[]RunDTO](t, rec)
	require.Len(t, runs, 2)
	assert.Equal(t, "cutoffs", runs[0].Kind)
	assert.Equal(t, "accepted", runs[0].Outcome)
	assert.Equal(t, "cv", runs[1].Kind)
	assert.Equal(t, "rejected", runs[1].Outcome)
	assert.Equal(t, "invalid_horizon", runs[1].Code)

	assert.Equal(t, http.StatusBadRequest, do(t, h, "GET", "/api/runs?limit=zero", "").Code)
}

func TestListFrequencies(t *testing.T) {
	h := setupTestHandler(t)

	rec := do(t, h, "GET", "/api/frequencies", "")

	require.Equal(t, http.StatusOK, rec.Code)
	freqs := decode[[]FrequencyDTO](t, rec)
	require.Len(t, freqs, 6)
	assert.Equal(t, "H", freqs[0].Unit)
	assert.False(t, freqs[0].Anchored)
	assert.Equal(t, "week", freqs[2].Name)
	assert.True(t, freqs[2].Anchored)
	assert.Contains(t, freqs[2].Aliases, "W-SUN")
}

func TestMetrics_CountsRejectionsByCode(t *testing.T) {
	h := setupTestHandler(t)
	do(t, h, "POST", "/api/validate/train-val",
		`{"freq":"H","train":{"start":"2021-01-01 00:00:00","end":"2021-01-01 12:00:00"},"val":{"start":"2021-01-02","end":"2021-01-05"}}`)

	rec := do(t, h, "GET", "/metrics", "")

	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(),
		`forecast_split_validations_total{code="insufficient_samples",kind="train_val",outcome="rejected"} 1`)
	assert.Contains(t, rec.Body.String(), "forecast_split_validation_duration_seconds")
}
