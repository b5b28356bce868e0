/*
dto.go - Data Transfer Objects for the HTTP API

PURPOSE:
  Defines request/response structures for JSON serialization.
  Decouples the API contract from the split core types.

NAMING CONVENTION:
  - XxxDTO:      Response object for entity Xxx
  - XxxRequest:  Request body for creating/validating Xxx
  - XxxResponse: Response for a specific operation

JSON CONVENTIONS:
  - snake_case field names (Go convention for JSON APIs)
  - Timestamps as "YYYY-MM-DD" at midnight, "YYYY-MM-DD HH:MM:SS" otherwise
  - Decimal shares as strings ("0.9836") so no precision is lost
  - Optional fields use omitempty

SEE ALSO:
  - handlers.go: Uses these DTOs
  - factory/plan.go: Saved plan JSON schema
*/
package api

import (
	"time"

	"github.com/warp/forecast-split/factory"
	"github.com/warp/forecast-split/split"
	"github.com/warp/forecast-split/store/sqlite"
	"github.com/warp/forecast-split/timeseries"
)

// =============================================================================
// REQUESTS
// =============================================================================

// PeriodDTO is a closed date range.
type PeriodDTO struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// TrainValRequest asks whether a train/validation split is sound.
type TrainValRequest struct {
	Freq  string    `json:"freq"`
	Train PeriodDTO `json:"train"`
	Val   PeriodDTO `json:"val"`
}

// CVRequest describes a cross-validation plan over a training window.
type CVRequest struct {
	Freq    string    `json:"freq"`
	Train   PeriodDTO `json:"train"`
	NFolds  int       `json:"n_folds"`
	Horizon int       `json:"horizon"`
}

// =============================================================================
// RESPONSES
// =============================================================================

// ValidationResponse is returned when a validator accepts its input.
type ValidationResponse struct {
	Valid        bool   `json:"valid"`
	Freq         string `json:"freq"`
	TrainSamples int    `json:"train_samples"`
	ValSamples   int    `json:"val_samples,omitempty"`
	// Earliest cutoff of a cross-validation plan
	EarliestCutoff string `json:"earliest_cutoff,omitempty"`
}

// FoldDTO is one materialized cross-validation fold.
type FoldDTO struct {
	Index          int       `json:"index"`
	Cutoff         string    `json:"cutoff"`
	Train          PeriodDTO `json:"train"`
	Horizon        PeriodDTO `json:"horizon"`
	TrainSamples   int       `json:"train_samples"`
	HorizonSamples int       `json:"horizon_samples"`
}

// CutoffsResponse lists the cutoffs of an accepted plan.
type CutoffsResponse struct {
	Freq     string    `json:"freq"`
	Cutoffs  []string  `json:"cutoffs"` // Descending, latest first
	Folds    []FoldDTO `json:"folds"`   // Ascending by cutoff
	Coverage string    `json:"coverage"`
}

// PartitionDTO is the result of partitioning a saved plan.
type PartitionDTO struct {
	Train    PeriodDTO  `json:"train"`
	Val      *PeriodDTO `json:"val,omitempty"`
	Cutoffs  []string   `json:"cutoffs"` // Ascending
	Folds    []FoldDTO  `json:"folds"`
	Coverage string     `json:"coverage"`
}

// PlanDTO represents a saved split plan.
type PlanDTO struct {
	ID        string           `json:"id"`
	Name      string           `json:"name"`
	Freq      string           `json:"freq"`
	Version   int              `json:"version"`
	Plan      factory.PlanJSON `json:"plan"`
	Partition *PartitionDTO    `json:"partition,omitempty"`
	Issue     *ErrorResponse   `json:"issue,omitempty"` // Rejection under the active thresholds
	CreatedAt string           `json:"created_at"`
	UpdatedAt string           `json:"updated_at"`
}

// RunDTO represents one validation run from the audit log.
type RunDTO struct {
	ID        string `json:"id"`
	PlanID    string `json:"plan_id,omitempty"`
	Kind      string `json:"kind"`
	Outcome   string `json:"outcome"`
	Code      string `json:"code,omitempty"`
	Message   string `json:"message,omitempty"`
	CreatedAt string `json:"created_at"`
}

// FrequencyDTO describes a supported frequency unit.
type FrequencyDTO struct {
	Unit     string   `json:"unit"`
	Name     string   `json:"name"`
	Anchored bool     `json:"anchored"`
	Aliases  []string `json:"aliases"`
}

// ScenarioDTO represents a bundle of example plans.
type ScenarioDTO struct {
	ID          string `json:"id"`
	Name        string `json:"name"`
	Description string `json:"description"`
}

// ErrorResponse is the standard error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Code    string `json:"code,omitempty"`
	Details any    `json:"details,omitempty"`
	Hint    string `json:"hint,omitempty"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func toPeriodDTO(p timeseries.Period) PeriodDTO {
	return PeriodDTO{
		Start: timeseries.FormatTimestamp(p.Start),
		End:   timeseries.FormatTimestamp(p.End),
	}
}

func toTimestamps(ts []time.Time) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = timeseries.FormatTimestamp(t)
	}
	return out
}

func toFoldDTOs(folds []split.Fold) []FoldDTO {
	dtos := make([]FoldDTO, len(folds))
	for i, f := range folds {
		dtos[i] = FoldDTO{
			Index:          f.Index,
			Cutoff:         timeseries.FormatTimestamp(f.Cutoff),
			Train:          toPeriodDTO(f.Train),
			Horizon:        toPeriodDTO(f.Horizon),
			TrainSamples:   f.Train.Samples(),
			HorizonSamples: f.Horizon.Samples(),
		}
	}
	return dtos
}

func toPartitionDTO(res split.Result) *PartitionDTO {
	dto := &PartitionDTO{
		Train:    toPeriodDTO(res.Train),
		Cutoffs:  toTimestamps(res.Cutoffs),
		Folds:    toFoldDTOs(res.Folds),
		Coverage: res.Coverage.StringFixed(4),
	}
	if res.Val != nil {
		val := toPeriodDTO(*res.Val)
		dto.Val = &val
	}
	return dto
}

func toRunDTO(r sqlite.ValidationRun) RunDTO {
	return RunDTO{
		ID:        r.ID,
		PlanID:    r.PlanID,
		Kind:      r.Kind,
		Outcome:   r.Outcome,
		Code:      r.Code,
		Message:   r.Message,
		CreatedAt: r.CreatedAt.Format(time.RFC3339),
	}
}
