/*
errors.go - Error types for date-range and cross-validation checks

PURPOSE:
  Every validation failure is a typed value the caller can inspect. The core
  never halts execution: it reports WHICH rule failed and the offending bound,
  and the caller (HTTP layer, CLI, UI) decides how to present or abort.

ERROR CATEGORIES:
  1. DateError - Train/validation split is chronologically or
     quantitatively unsound
  2. CVError   - Cross-validation plan cannot fit inside the training window

USAGE:
  Match the category with errors.As, the rule with errors.Is:

    var dateErr *split.DateError
    if errors.As(err, &dateErr) && dateErr.Role == split.RoleTrain { ... }

    if errors.Is(err, split.ErrFoldsExceedTrainWindow) { ... }

SEE ALSO:
  - validate.go: Produces these errors
  - api/handlers.go: Maps them to HTTP 422 responses
*/
package split

import (
	"errors"
	"fmt"
	"time"

	"github.com/warp/forecast-split/timeseries"
)

// =============================================================================
// SENTINEL ERRORS - Use with errors.Is()
// =============================================================================

var (
	// ErrOverlapOrPrecedence is returned when the validation period does not
	// start strictly after the training period ends.
	ErrOverlapOrPrecedence = errors.New("validation period must start after training period ends")

	// ErrInsufficientSamples is returned when a period holds too few sample
	// points at its frequency to train or evaluate on.
	ErrInsufficientSamples = errors.New("insufficient samples")

	// ErrFrequencyMismatch is returned when train and validation periods are
	// sampled at different frequencies.
	ErrFrequencyMismatch = errors.New("train and validation frequencies differ")

	ErrInvalidFoldCount = errors.New("invalid number of folds")
	ErrInvalidHorizon   = errors.New("folds horizon must be at least 1")

	// ErrFoldsExceedTrainWindow is returned when n_folds * horizon does not
	// fit inside the training period.
	ErrFoldsExceedTrainWindow = errors.New("cross-validation folds exceed training window")
)

// Code identifies a validation rule in API responses and config hints.
type Code string

const (
	CodeOverlapOrPrecedence    Code = "overlap_or_precedence"
	CodeInsufficientSamples    Code = "insufficient_samples"
	CodeFrequencyMismatch      Code = "frequency_mismatch"
	CodeInvalidFoldCount       Code = "invalid_fold_count"
	CodeInvalidHorizon         Code = "invalid_horizon"
	CodeFoldsExceedTrainWindow Code = "folds_exceed_train_window"
)

var sentinels = map[Code]error{
	CodeOverlapOrPrecedence:    ErrOverlapOrPrecedence,
	CodeInsufficientSamples:    ErrInsufficientSamples,
	CodeFrequencyMismatch:      ErrFrequencyMismatch,
	CodeInvalidFoldCount:       ErrInvalidFoldCount,
	CodeInvalidHorizon:         ErrInvalidHorizon,
	CodeFoldsExceedTrainWindow: ErrFoldsExceedTrainWindow,
}

// Role names which period of a split an error refers to.
type Role string

const (
	RoleTrain Role = "train"
	RoleVal   Role = "val"
)

// =============================================================================
// STRUCTURED ERRORS - Carry the offending bound
// =============================================================================

// DateError describes a rejected train/validation split.
type DateError struct {
	Code     Code
	Role     Role      // Period the rule failed on
	Bound    time.Time // Offending boundary (val start, or the period start)
	Samples  int       // Samples found, for insufficient_samples
	Required int       // Samples required, for insufficient_samples
	Hint     string
}

func (e *DateError) Error() string {
	switch e.Code {
	case CodeOverlapOrPrecedence:
		return fmt.Sprintf("%v: validation starts at %s", ErrOverlapOrPrecedence, timeseries.FormatTimestamp(e.Bound))
	case CodeInsufficientSamples:
		return fmt.Sprintf("%v: %s period has %d sample(s), at least %d required",
			ErrInsufficientSamples, e.Role, e.Samples, e.Required)
	default:
		return e.Unwrap().Error()
	}
}

func (e *DateError) Unwrap() error {
	if err, ok := sentinels[e.Code]; ok {
		return err
	}
	return errors.New(string(e.Code))
}

// CVError describes a rejected cross-validation plan.
type CVError struct {
	Code           Code
	NFolds         int
	Horizon        int
	Freq           timeseries.Frequency
	TrainStart     time.Time
	EarliestCutoff time.Time // Zero unless the plan was shifted
	Samples        int       // Samples before the earliest cutoff
	Required       int       // Samples required, or the fold ceiling for invalid_fold_count
	Hint           string
}

func (e *CVError) Error() string {
	switch e.Code {
	case CodeInvalidFoldCount:
		if e.NFolds < 1 {
			return fmt.Sprintf("%v: must be at least 1, got %d", ErrInvalidFoldCount, e.NFolds)
		}
		return fmt.Sprintf("%v: %d requested, at most %d allowed", ErrInvalidFoldCount, e.NFolds, e.Required)
	case CodeInvalidHorizon:
		return fmt.Sprintf("%v, got %d", ErrInvalidHorizon, e.Horizon)
	case CodeFoldsExceedTrainWindow:
		if e.EarliestCutoff.IsZero() {
			return fmt.Sprintf("%v: %d folds of %d x %s are longer than the training period starting at %s",
				ErrFoldsExceedTrainWindow, e.NFolds, e.Horizon, e.Freq, timeseries.FormatTimestamp(e.TrainStart))
		}
		if !e.EarliestCutoff.After(e.TrainStart) {
			return fmt.Sprintf("%v: %d folds of %d x %s reach back to %s, training starts at %s",
				ErrFoldsExceedTrainWindow, e.NFolds, e.Horizon, e.Freq,
				timeseries.FormatTimestamp(e.EarliestCutoff), timeseries.FormatTimestamp(e.TrainStart))
		}
		return fmt.Sprintf("%v: earliest fold trains on %d sample(s), at least %d required",
			ErrFoldsExceedTrainWindow, e.Samples, e.Required)
	default:
		return e.Unwrap().Error()
	}
}

func (e *CVError) Unwrap() error {
	if err, ok := sentinels[e.Code]; ok {
		return err
	}
	return errors.New(string(e.Code))
}

// =============================================================================
// ERROR HELPERS
// =============================================================================

// IsDateError returns true if err is a rejected train/validation split.
func IsDateError(err error) bool {
	var target *DateError
	return errors.As(err, &target)
}

// IsCVError returns true if err is a rejected cross-validation plan.
func IsCVError(err error) bool {
	var target *CVError
	return errors.As(err, &target)
}

// IsClientError returns true if the error is due to invalid caller input.
// None of these are retryable: the same input always fails the same way.
func IsClientError(err error) bool {
	return IsDateError(err) || IsCVError(err) || errors.Is(err, timeseries.ErrInvalidFrequency)
}

// CodeOf returns the rule code carried by err, or "" for other errors.
func CodeOf(err error) Code {
	var dateErr *DateError
	if errors.As(err, &dateErr) {
		return dateErr.Code
	}
	var cvErr *CVError
	if errors.As(err, &cvErr) {
		return cvErr.Code
	}
	return ""
}

// HintOf returns the configured hint carried by err, if any.
func HintOf(err error) string {
	var dateErr *DateError
	if errors.As(err, &dateErr) {
		return dateErr.Hint
	}
	var cvErr *CVError
	if errors.As(err, &cvErr) {
		return cvErr.Hint
	}
	return ""
}
