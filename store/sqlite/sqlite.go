/*
Package sqlite provides a SQLite-backed store for split plans and the
validation audit log.

PURPOSE:
  The split core is stateless. What the service keeps is:
  - Saved split plans, so a partition can be replayed by ID
  - A log of validation runs, so rejected configurations can be reviewed

KEY TABLES:
  split_plans:     Named plan definitions (JSON, versioned on overwrite)
  validation_runs: One row per validator invocation (accepted or rejected)

INDEXES:
  - idx_runs_plan: Runs for a saved plan
  - idx_runs_code: Rejections by rule code

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. The connection pool is limited to a
  single connection so ":memory:" databases are shared by every query.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging): readers don't block the
  single writer.

USAGE:
  store, err := sqlite.New("./data/splits.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

SEE ALSO:
  - factory/plan.go: ConfigJSON format
  - api/handlers.go: Writes runs on every validation request
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// ErrPlanNotFound is returned when a referenced plan doesn't exist.
var ErrPlanNotFound = errors.New("plan not found")

// Store persists split plans and validation runs.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Saved split plans
	CREATE TABLE IF NOT EXISTS split_plans (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		freq TEXT NOT NULL,
		config_json TEXT NOT NULL,
		version INTEGER DEFAULT 1,
		created_at TEXT NOT NULL,
		updated_at TEXT NOT NULL
	);

	-- Validation audit log
	CREATE TABLE IF NOT EXISTS validation_runs (
		id TEXT PRIMARY KEY,
		plan_id TEXT,
		kind TEXT NOT NULL,
		outcome TEXT NOT NULL,
		code TEXT,
		message TEXT,
		created_at TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_runs_plan
		ON validation_runs(plan_id) WHERE plan_id IS NOT NULL;
	CREATE INDEX IF NOT EXISTS idx_runs_code
		ON validation_runs(code) WHERE code IS NOT NULL;
	`
	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// PLANS
// =============================================================================

// PlanRecord is a saved split plan.
type PlanRecord struct {
	ID         string
	Name       string
	Freq       string
	ConfigJSON string
	Version    int
	CreatedAt  time.Time
	UpdatedAt  time.Time
}

// SavePlan inserts a plan, or overwrites it and bumps its version.
func (s *Store) SavePlan(ctx context.Context, plan PlanRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	query := `
		INSERT INTO split_plans (id, name, freq, config_json, version, created_at, updated_at)
		VALUES (?, ?, ?, ?, 1, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			freq = excluded.freq,
			config_json = excluded.config_json,
			version = split_plans.version + 1,
			updated_at = excluded.updated_at
	`

	now := time.Now().UTC().Format(time.RFC3339)
	_, err := s.db.ExecContext(ctx, query,
		plan.ID, plan.Name, plan.Freq, plan.ConfigJSON, now, now,
	)
	return err
}

// GetPlan retrieves a plan by ID. Returns ErrPlanNotFound if absent.
func (s *Store) GetPlan(ctx context.Context, id string) (*PlanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var p PlanRecord
	var createdAt, updatedAt string

	err := s.db.QueryRowContext(ctx,
		"SELECT id, name, freq, config_json, version, created_at, updated_at FROM split_plans WHERE id = ?",
		id,
	).Scan(&p.ID, &p.Name, &p.Freq, &p.ConfigJSON, &p.Version, &createdAt, &updatedAt)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlanNotFound
	}
	if err != nil {
		return nil, err
	}

	p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
	p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
	return &p, nil
}

// ListPlans returns all plans ordered by name.
func (s *Store) ListPlans(ctx context.Context) ([]PlanRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		"SELECT id, name, freq, config_json, version, created_at, updated_at FROM split_plans ORDER BY name, id",
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var plans []PlanRecord
	for rows.Next() {
		var p PlanRecord
		var createdAt, updatedAt string
		if err := rows.Scan(&p.ID, &p.Name, &p.Freq, &p.ConfigJSON, &p.Version, &createdAt, &updatedAt); err != nil {
			return nil, err
		}
		p.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		p.UpdatedAt, _ = time.Parse(time.RFC3339, updatedAt)
		plans = append(plans, p)
	}
	return plans, rows.Err()
}

// DeletePlan removes a plan. Its validation runs are kept.
func (s *Store) DeletePlan(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, "DELETE FROM split_plans WHERE id = ?", id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrPlanNotFound
	}
	return nil
}

// =============================================================================
// VALIDATION RUNS
// =============================================================================

// ValidationRun records one validator invocation.
type ValidationRun struct {
	ID        string
	PlanID    string // Empty for ad-hoc requests
	Kind      string // train_val, cv, cutoffs, plan
	Outcome   string // accepted, rejected
	Code      string // Rule code when rejected
	Message   string
	CreatedAt time.Time
}

// SaveValidationRun appends a run to the audit log.
func (s *Store) SaveValidationRun(ctx context.Context, r ValidationRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if r.CreatedAt.IsZero() {
		r.CreatedAt = time.Now().UTC()
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO validation_runs (id, plan_id, kind, outcome, code, message, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)
	`,
		r.ID, nullString(r.PlanID), r.Kind, r.Outcome, nullString(r.Code), r.Message,
		r.CreatedAt.Format(time.RFC3339),
	)
	return err
}

// ListValidationRuns returns the most recent runs first. planID filters by
// plan when non-empty; limit <= 0 means no limit.
func (s *Store) ListValidationRuns(ctx context.Context, planID string, limit int) ([]ValidationRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := "SELECT id, plan_id, kind, outcome, code, message, created_at FROM validation_runs"
	var args []any
	if planID != "" {
		query += " WHERE plan_id = ?"
		args = append(args, planID)
	}
	query += " ORDER BY rowid DESC"
	if limit > 0 {
		query += " LIMIT ?"
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var runs []ValidationRun
	for rows.Next() {
		var r ValidationRun
		var planID, code, message sql.NullString
		var createdAt string
		if err := rows.Scan(&r.ID, &planID, &r.Kind, &r.Outcome, &code, &message, &createdAt); err != nil {
			return nil, err
		}
		r.PlanID = planID.String
		r.Code = code.String
		r.Message = message.String
		r.CreatedAt, _ = time.Parse(time.RFC3339, createdAt)
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// =============================================================================
// UTILITIES
// =============================================================================

// Reset clears all data (for testing/demo).
func (s *Store) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, table := range []string{"validation_runs", "split_plans"} {
		if _, err := s.db.ExecContext(ctx, "DELETE FROM "+table); err != nil {
			return err
		}
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}
