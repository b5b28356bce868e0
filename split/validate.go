/*
Package split decides whether a proposed time partitioning of a forecasting
dataset is legal and, if so, where its boundaries are.

PURPOSE:
  Before a forecasting model is fitted, the user picks a training window, an
  optional validation window, and optionally a cross-validation scheme
  (N folds of H periods each). This package answers two questions:
    1. Is the split sound?          ValidateTrainVal, ValidateCVPlan
    2. Where are the fold cutoffs?  ComputeCutoffs, Folds

FAIL-FAST:
  Each validator stops at the first violated rule and returns a typed error
  (see errors.go). Partition runs the validators in order and only computes
  cutoffs when every check passed.

CONSISTENCY:
  ValidateCVPlan and ComputeCutoffs share CVPlan.cutoffAt. A plan accepted by
  the validator is exactly the plan the generator realizes: the earliest
  cutoff the validator checks is the last cutoff the generator returns.

CONCURRENCY:
  Everything here is a pure function over immutable values. Safe to call
  from any number of goroutines.

SEE ALSO:
  - timeseries/frequency.go: Calendar-aware offsets
  - config.go: Thresholds and hints
*/
package split

import (
	"github.com/warp/forecast-split/timeseries"
)

// =============================================================================
// DATE RANGE VALIDATOR
// =============================================================================

// ValidateTrainVal checks a train/validation split. Rules, in order:
//  1. Both periods share one frequency
//  2. val starts strictly after train ends
//  3. val has enough samples
//  4. train has enough samples
func ValidateTrainVal(train, val timeseries.Period, cfg ValidationConfig) error {
	if train.Freq != val.Freq {
		return &DateError{
			Code:  CodeFrequencyMismatch,
			Role:  RoleVal,
			Bound: val.Start,
			Hint:  cfg.hint(CodeFrequencyMismatch),
		}
	}

	if !val.Start.After(train.End) {
		return &DateError{
			Code:  CodeOverlapOrPrecedence,
			Role:  RoleVal,
			Bound: val.Start,
			Hint:  cfg.hint(CodeOverlapOrPrecedence),
		}
	}

	if err := checkSamples(val, RoleVal, cfg.minVal(), cfg); err != nil {
		return err
	}
	return checkSamples(train, RoleTrain, cfg.minTrain(), cfg)
}

func checkSamples(p timeseries.Period, role Role, required int, cfg ValidationConfig) error {
	samples := p.Samples()
	if samples >= required {
		return nil
	}
	return &DateError{
		Code:     CodeInsufficientSamples,
		Role:     role,
		Bound:    p.Start,
		Samples:  samples,
		Required: required,
		Hint:     cfg.hint(CodeInsufficientSamples),
	}
}

// =============================================================================
// CROSS-VALIDATION RANGE VALIDATOR
// =============================================================================

// ValidateCVPlan checks that NFolds horizons fit inside the training period
// with enough samples left before the earliest cutoff to train the first
// fold. NFolds is capped by ValidationConfig.MaxFolds. A zero or malformed
// frequency returns timeseries.ErrInvalidFrequency.
func ValidateCVPlan(plan CVPlan, cfg ValidationConfig) error {
	freq := plan.frequency()
	base := CVError{
		NFolds:     plan.NFolds,
		Horizon:    plan.Horizon,
		Freq:       freq,
		TrainStart: plan.Train.Start,
	}

	if plan.NFolds < 1 {
		return base.with(CodeInvalidFoldCount, cfg)
	}
	if plan.NFolds > cfg.maxFolds() {
		base.Required = cfg.maxFolds()
		return base.with(CodeInvalidFoldCount, cfg)
	}
	if plan.Horizon < 1 {
		return base.with(CodeInvalidHorizon, cfg)
	}
	if err := freq.Validate(); err != nil {
		return err
	}

	// NFolds*Horizon steps cannot fit in fewer steps than the period spans.
	// Checked by division so oversized inputs never reach Shift.
	budget := freq.StepsBetween(plan.Train.Start, plan.Train.End) + 1
	if budget < 1 || plan.Horizon > budget/plan.NFolds {
		return base.with(CodeFoldsExceedTrainWindow, cfg)
	}

	earliest := plan.cutoffAt(plan.NFolds - 1)
	base.EarliestCutoff = earliest
	if !earliest.After(plan.Train.Start) {
		return base.with(CodeFoldsExceedTrainWindow, cfg)
	}

	base.Samples = freq.Count(plan.Train.Start, earliest)
	base.Required = cfg.minFoldTrain()
	if base.Samples < base.Required {
		return base.with(CodeFoldsExceedTrainWindow, cfg)
	}
	return nil
}

func (e CVError) with(code Code, cfg ValidationConfig) *CVError {
	e.Code = code
	e.Hint = cfg.hint(code)
	return &e
}
