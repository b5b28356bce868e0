package api

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/forecast-split/factory"
	"github.com/warp/forecast-split/split"
)

func TestRevalidation_FlagsPlansBrokenByNewThresholds(t *testing.T) {
	// GIVEN: Two saved plans, one with a short validation window
	// WHEN: The validation minimum is raised and a pass runs
	// THEN: Only the short plan is rejected, and both runs are logged
	h := setupTestHandler(t)
	ctx := context.Background()

	for _, body := range []string{
		factory.DailyPlanJSON("short-val", "Short val", "2020-01-01", "2021-01-01", "2021-01-02", "2021-01-10", 3),
		factory.DailyPlanJSON("long-val", "Long val", "2020-01-01", "2021-01-01", "2021-01-02", "2021-03-01", 3),
	} {
		plan, err := h.PlanFactory.ParsePlan(body)
		require.NoError(t, err)
		_, _, err = h.admitPlan(ctx, plan)
		require.NoError(t, err)
	}

	cfg := split.DefaultValidationConfig()
	cfg.MinValPoints = 30
	h.SetConfig(cfg)

	scheduler := NewRevalidationScheduler(h.Store, h)
	summary := scheduler.RunNow(ctx)

	assert.Equal(t, RevalidationSummary{Accepted: 1, Rejected: 1}, summary)

	runs, err := h.Store.ListValidationRuns(ctx, "short-val", 1)
	require.NoError(t, err)
	require.Len(t, runs, 1)
	assert.Equal(t, kindRevalidate, runs[0].Kind)
	assert.Equal(t, "rejected", runs[0].Outcome)
	assert.Equal(t, "insufficient_samples", runs[0].Code)
}

func TestRevalidationScheduler_StartStop(t *testing.T) {
	h := setupTestHandler(t)
	scheduler := NewRevalidationScheduler(h.Store, h)
	scheduler.CheckInterval = 10 * time.Millisecond

	scheduler.Start()
	scheduler.Start() // no second loop
	time.Sleep(30 * time.Millisecond)
	scheduler.Stop()
	scheduler.Stop() // idempotent
}

func TestRevalidationScheduler_DisabledDoesNotStart(t *testing.T) {
	h := setupTestHandler(t)
	scheduler := NewRevalidationScheduler(h.Store, h)
	scheduler.CheckInterval = 0

	scheduler.Start()

	assert.Nil(t, scheduler.ticker)
}
