package split

import (
	"sort"
	"time"

	"github.com/warp/forecast-split/timeseries"
)

// =============================================================================
// CV PLAN - Cross-validation request over a training period
// =============================================================================

// CVPlan asks for NFolds folds of Horizon frequency units each, carved
// backward from the end of Train.
type CVPlan struct {
	Train   timeseries.Period
	NFolds  int
	Horizon int
	// Freq is the resampling frequency. Zero means Train.Freq.
	Freq timeseries.Frequency
}

func (p CVPlan) frequency() timeseries.Frequency {
	if p.Freq.IsZero() {
		return p.Train.Freq
	}
	return p.Freq
}

// cutoffAt returns the i-th cutoff (0 = latest). It is shifted directly from
// Train.End so month-end clamping never accumulates across folds.
// ValidateCVPlan and ComputeCutoffs both go through here.
func (p CVPlan) cutoffAt(i int) time.Time {
	return p.frequency().Shift(p.Train.End, -(i+1)*p.Horizon)
}

// =============================================================================
// CUTOFF GENERATOR
// =============================================================================

// ComputeCutoffs returns the NFolds fold cutoffs in descending order: the
// i-th (0 = latest) is Train.End minus (i+1) horizons. Each cutoff is offset
// from Train.End rather than from the previous cutoff, which only differs
// after a month-day clamp: from a 2020-03-30 end with monthly horizons the
// second cutoff is Jan 30, where stepping from the clamped Feb 29 (a
// month-end) would give Jan 31. It never fails; call ValidateCVPlan first to know the plan fits
// and is of a bounded size.
func ComputeCutoffs(plan CVPlan) []time.Time {
	if plan.NFolds < 1 {
		return []time.Time{}
	}
	cutoffs := make([]time.Time, plan.NFolds)
	for i := range cutoffs {
		cutoffs[i] = plan.cutoffAt(i)
	}
	return cutoffs
}

// SortAscending returns a sorted copy of cutoffs, earliest first.
func SortAscending(cutoffs []time.Time) []time.Time {
	out := make([]time.Time, len(cutoffs))
	copy(out, cutoffs)
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}

// =============================================================================
// FOLDS - Materialized train / horizon windows
// =============================================================================

// Fold is one cross-validation split. The model trains on Train and is
// evaluated on Horizon, which runs from the cutoff to the next cutoff (or to
// the end of the training period for the latest fold).
type Fold struct {
	Index   int
	Cutoff  time.Time
	Train   timeseries.Period
	Horizon timeseries.Period
}

// Folds materializes the plan's folds, earliest cutoff first.
func Folds(plan CVPlan) []Fold {
	cutoffs := SortAscending(ComputeCutoffs(plan))
	freq := plan.frequency()

	folds := make([]Fold, len(cutoffs))
	for i, cutoff := range cutoffs {
		end := plan.Train.End
		if i+1 < len(cutoffs) {
			end = cutoffs[i+1]
		}
		folds[i] = Fold{
			Index:   i,
			Cutoff:  cutoff,
			Train:   timeseries.NewPeriod(plan.Train.Start, cutoff, freq),
			Horizon: timeseries.NewPeriod(cutoff, end, freq),
		}
	}
	return folds
}
