/*
Package factory provides JSON to Go split plan conversion.

PURPOSE:
  Converts JSON split plan definitions into split.Dates values. Plans can be
  saved, shared and replayed without code changes: the UI (or a notebook)
  posts a JSON document and the factory builds the request the validators
  understand.

JSON SCHEMA:
  {
    "id": "daily-cv",
    "name": "Daily sales, monthly folds",
    "freq": "D",
    "train": {"start": "2020-01-01", "end": "2021-01-01"},
    "val":   {"start": "2021-01-02", "end": "2021-03-01"},
    "cv":    {"n_folds": 12, "horizon": 30}
  }

  - "val" and "cv" are optional.
  - Timestamps accept "YYYY-MM-DD", "YYYY-MM-DD HH:MM:SS" or RFC3339.
  - "freq" accepts the aliases of timeseries.ParseFrequency ("H", "4D", "W"...).

KEY FEATURES:
  - Rejects malformed JSON, timestamps and frequencies with wrapped errors
  - Does NOT validate the split itself: that is split.Partition's job, so a
    structurally valid plan always round-trips even if its dates are unsound

SEE ALSO:
  - split/dates.go: Dates and Partition
  - api/handlers.go: POST /api/plans
*/
package factory

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/warp/forecast-split/split"
	"github.com/warp/forecast-split/timeseries"
)

// =============================================================================
// JSON SCHEMA TYPES
// =============================================================================

// PlanJSON is the JSON representation of a split plan.
type PlanJSON struct {
	ID    string      `json:"id"`
	Name  string      `json:"name"`
	Freq  string      `json:"freq"`
	Train PeriodJSON  `json:"train"`
	Val   *PeriodJSON `json:"val,omitempty"`
	CV    *CVJSON     `json:"cv,omitempty"`
}

// PeriodJSON is a closed date range.
type PeriodJSON struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// CVJSON is the cross-validation section.
type CVJSON struct {
	NFolds  int `json:"n_folds"`
	Horizon int `json:"horizon"` // In units of freq
}

// Plan is a named split request.
type Plan struct {
	ID    string
	Name  string
	Dates split.Dates
}

// ErrMissingField is returned when a required JSON field is empty.
var ErrMissingField = errors.New("missing required field")

// =============================================================================
// PLAN FACTORY
// =============================================================================

// PlanFactory converts JSON plans to Go structs.
type PlanFactory struct{}

// NewPlanFactory creates a new plan factory.
func NewPlanFactory() *PlanFactory {
	return &PlanFactory{}
}

// ParsePlan parses a JSON string into a Plan.
func (f *PlanFactory) ParsePlan(jsonStr string) (*Plan, error) {
	var pj PlanJSON
	if err := json.Unmarshal([]byte(jsonStr), &pj); err != nil {
		return nil, fmt.Errorf("failed to parse plan JSON: %w", err)
	}
	return f.FromJSON(pj)
}

// FromJSON converts PlanJSON to a Plan.
func (f *PlanFactory) FromJSON(pj PlanJSON) (*Plan, error) {
	if strings.TrimSpace(pj.Freq) == "" {
		return nil, fmt.Errorf("%w: freq", ErrMissingField)
	}
	freq, err := timeseries.ParseFrequency(pj.Freq)
	if err != nil {
		return nil, err
	}

	trainStart, trainEnd, err := parsePeriod("train", pj.Train)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		ID:   pj.ID,
		Name: pj.Name,
		Dates: split.Dates{
			TrainStart: trainStart,
			TrainEnd:   trainEnd,
			Freq:       freq,
		},
	}
	if plan.Name == "" {
		plan.Name = plan.ID
	}

	if pj.Val != nil {
		plan.Dates.ValStart, plan.Dates.ValEnd, err = parsePeriod("val", *pj.Val)
		if err != nil {
			return nil, err
		}
	}

	if pj.CV != nil {
		plan.Dates.NFolds = pj.CV.NFolds
		plan.Dates.FoldsHorizon = pj.CV.Horizon
	}

	return plan, nil
}

// ToJSON converts a Plan back to PlanJSON.
func (f *PlanFactory) ToJSON(plan *Plan) PlanJSON {
	d := plan.Dates
	pj := PlanJSON{
		ID:   plan.ID,
		Name: plan.Name,
		Freq: d.Freq.String(),
		Train: PeriodJSON{
			Start: timeseries.FormatTimestamp(d.TrainStart),
			End:   timeseries.FormatTimestamp(d.TrainEnd),
		},
	}
	if d.HasValidation() {
		pj.Val = &PeriodJSON{
			Start: timeseries.FormatTimestamp(d.ValStart),
			End:   timeseries.FormatTimestamp(d.ValEnd),
		}
	}
	if d.HasCrossValidation() {
		pj.CV = &CVJSON{NFolds: d.NFolds, Horizon: d.FoldsHorizon}
	}
	return pj
}

// ToJSONString is ToJSON followed by json.Marshal.
func (f *PlanFactory) ToJSONString(plan *Plan) (string, error) {
	data, err := json.Marshal(f.ToJSON(plan))
	if err != nil {
		return "", err
	}
	return string(data), nil
}

func parsePeriod(role string, pj PeriodJSON) (start, end time.Time, err error) {
	if pj.Start == "" || pj.End == "" {
		return start, end, fmt.Errorf("%w: %s.start and %s.end", ErrMissingField, role, role)
	}
	if start, err = timeseries.ParseTimestamp(pj.Start); err != nil {
		return start, end, fmt.Errorf("%s.start: %w", role, err)
	}
	if end, err = timeseries.ParseTimestamp(pj.End); err != nil {
		return start, end, fmt.Errorf("%s.end: %w", role, err)
	}
	return start, end, nil
}

// =============================================================================
// PRESETS
// =============================================================================

// DailyPlanJSON returns a daily plan with a validation window and monthly
// (30-day) folds, the layout most daily datasets start from.
func DailyPlanJSON(id, name, trainStart, trainEnd, valStart, valEnd string, nFolds int) string {
	return fmt.Sprintf(`{
		"id": %q,
		"name": %q,
		"freq": "D",
		"train": {"start": %q, "end": %q},
		"val": {"start": %q, "end": %q},
		"cv": {"n_folds": %d, "horizon": 30}
	}`, id, name, trainStart, trainEnd, valStart, valEnd, nFolds)
}
