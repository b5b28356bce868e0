/*
scheduler.go - Periodic revalidation of saved plans

PURPOSE:
  Saved plans were accepted under the thresholds active when they were
  saved. Thresholds change (a new config file, a SIGHUP reload), so the
  scheduler re-partitions every saved plan with the active thresholds and
  records the outcome in the audit log. Plans that stopped passing show up
  as "revalidate" runs with outcome "rejected".

DESIGN:
  - Runs a background goroutine with configurable check interval
  - Plans are never modified or deleted, only re-checked
  - RunNow triggers an immediate pass (used after a config reload)

CONFIGURATION:
  - CheckInterval: How often to check (default: 1 hour)
  - Enabled: Whether scheduler is active (default: true)

USAGE:
  scheduler := NewRevalidationScheduler(store, handler)
  scheduler.Start()
  // ... later
  scheduler.Stop()

SEE ALSO:
  - handlers.go: GetPlan (on-demand revalidation)
  - cmd/server/main.go: Config reload
*/
package api

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/warp/forecast-split/split"
	"github.com/warp/forecast-split/store/sqlite"
)

// RevalidationScheduler re-checks saved plans against the active thresholds.
type RevalidationScheduler struct {
	Store         *sqlite.Store
	Handler       *Handler
	CheckInterval time.Duration
	Enabled       bool

	ticker *time.Ticker
	stop   chan struct{}
	wg     sync.WaitGroup
	mu     sync.Mutex
	passMu sync.Mutex
}

// RevalidationSummary counts the outcome of one pass.
type RevalidationSummary struct {
	Accepted   int
	Rejected   int
	Unreadable int
}

// NewRevalidationScheduler creates a new scheduler.
func NewRevalidationScheduler(store *sqlite.Store, handler *Handler) *RevalidationScheduler {
	return &RevalidationScheduler{
		Store:         store,
		Handler:       handler,
		CheckInterval: 1 * time.Hour,
		Enabled:       true,
	}
}

// Start begins the scheduler.
func (rs *RevalidationScheduler) Start() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if !rs.Enabled || rs.CheckInterval <= 0 {
		log.Println("[Scheduler] Disabled, not starting")
		return
	}
	if rs.ticker != nil {
		return
	}

	rs.ticker = time.NewTicker(rs.CheckInterval)
	rs.stop = make(chan struct{})
	rs.wg.Add(1)

	go rs.run(rs.ticker, rs.stop)

	log.Printf("[Scheduler] Started with check interval: %v", rs.CheckInterval)
}

// Stop stops the scheduler and waits for a pass in progress.
func (rs *RevalidationScheduler) Stop() {
	rs.mu.Lock()
	defer rs.mu.Unlock()

	if rs.ticker != nil {
		rs.ticker.Stop()
		close(rs.stop)
		rs.wg.Wait()
		rs.ticker = nil
		log.Println("[Scheduler] Stopped")
	}
}

func (rs *RevalidationScheduler) run(ticker *time.Ticker, stop <-chan struct{}) {
	defer rs.wg.Done()

	for {
		select {
		case <-ticker.C:
			rs.RunNow(context.Background())
		case <-stop:
			return
		}
	}
}

// RunNow re-partitions every saved plan once. Passes never overlap.
func (rs *RevalidationScheduler) RunNow(ctx context.Context) RevalidationSummary {
	rs.passMu.Lock()
	defer rs.passMu.Unlock()

	var summary RevalidationSummary

	records, err := rs.Store.ListPlans(ctx)
	if err != nil {
		log.Printf("[Scheduler] Error listing plans: %v", err)
		return summary
	}
	rs.Handler.Metrics.RecordSavedPlans(len(records))

	cfg := rs.Handler.Config()
	for _, rec := range records {
		plan, err := rs.Handler.PlanFactory.ParsePlan(rec.ConfigJSON)
		if err != nil {
			log.Printf("[Scheduler] Plan %s is unreadable: %v", rec.ID, err)
			summary.Unreadable++
			continue
		}

		start := time.Now()
		_, err = split.Partition(plan.Dates, cfg)
		rs.Handler.recordRun(ctx, kindRevalidate, rec.ID, err, time.Since(start))
		if err != nil {
			log.Printf("[Scheduler] Plan %s no longer passes: %v", rec.ID, err)
			summary.Rejected++
			continue
		}
		summary.Accepted++
	}

	if len(records) > 0 {
		log.Printf("[Scheduler] Revalidated %d plans: %d accepted, %d rejected, %d unreadable",
			len(records), summary.Accepted, summary.Rejected, summary.Unreadable)
	}
	return summary
}
