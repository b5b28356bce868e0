package split

import (
	"time"

	"github.com/shopspring/decimal"
	"github.com/warp/forecast-split/timeseries"
)

// =============================================================================
// DATES - A complete partition request
// =============================================================================

// Dates bundles everything a partition request carries. The validation
// window is optional (zero ValStart and ValEnd), and so is cross-validation
// (NFolds == 0).
type Dates struct {
	TrainStart   time.Time
	TrainEnd     time.Time
	ValStart     time.Time
	ValEnd       time.Time
	NFolds       int
	FoldsHorizon int
	Freq         timeseries.Frequency
}

func (d Dates) Train() timeseries.Period {
	return timeseries.NewPeriod(d.TrainStart, d.TrainEnd, d.Freq)
}

func (d Dates) Val() timeseries.Period {
	return timeseries.NewPeriod(d.ValStart, d.ValEnd, d.Freq)
}

func (d Dates) HasValidation() bool {
	return !d.ValStart.IsZero() || !d.ValEnd.IsZero()
}

func (d Dates) HasCrossValidation() bool {
	return d.NFolds != 0 || d.FoldsHorizon != 0
}

func (d Dates) CVPlan() CVPlan {
	return CVPlan{Train: d.Train(), NFolds: d.NFolds, Horizon: d.FoldsHorizon, Freq: d.Freq}
}

// =============================================================================
// PARTITION - Validators first, then the cutoff generator
// =============================================================================

// Result is an accepted partition.
type Result struct {
	Train   timeseries.Period
	Val     *timeseries.Period
	Cutoffs []time.Time // Ascending
	Folds   []Fold

	// Coverage is the share of the training span reserved for fold
	// horizons, in [0, 1).
	Coverage decimal.Decimal
}

// Partition validates d and, when every check passes, computes its folds.
// The first failing rule is returned and nothing is computed.
func Partition(d Dates, cfg ValidationConfig) (Result, error) {
	if err := d.Freq.Validate(); err != nil {
		return Result{}, err
	}

	result := Result{Train: d.Train(), Coverage: decimal.Zero}

	if d.HasValidation() {
		val := d.Val()
		if err := ValidateTrainVal(result.Train, val, cfg); err != nil {
			return Result{}, err
		}
		result.Val = &val
	}

	if d.HasCrossValidation() {
		plan := d.CVPlan()
		if err := ValidateCVPlan(plan, cfg); err != nil {
			return Result{}, err
		}
		result.Cutoffs = SortAscending(ComputeCutoffs(plan))
		result.Folds = Folds(plan)
		result.Coverage = Coverage(plan)
	}

	// Without a validation window the training minimum is still enforced,
	// after the fold rules so a plan that cannot fit its folds says so.
	if !d.HasValidation() {
		if err := checkSamples(result.Train, RoleTrain, cfg.minTrain(), cfg); err != nil {
			return Result{}, err
		}
	}
	return result, nil
}

// Coverage returns the share of the training span taken by the plan's fold
// horizons, rounded to 4 places. Zero for an empty or inverted span.
func Coverage(plan CVPlan) decimal.Decimal {
	span := plan.Train.Span()
	if span <= 0 || plan.NFolds < 1 {
		return decimal.Zero
	}
	reserved := plan.Train.End.Sub(plan.cutoffAt(plan.NFolds - 1))
	return decimal.NewFromInt(int64(reserved)).
		Div(decimal.NewFromInt(int64(span))).
		Round(4)
}
