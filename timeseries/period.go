package timeseries

import (
	"fmt"
	"strings"
	"time"
)

// =============================================================================
// PERIOD - A sampled window of the dataset
// =============================================================================

// Period is the closed interval [Start, End] sampled at Freq.
//
// Examples:
//   - Daily training window: 2020-01-01 .. 2021-01-01, "D"
//   - Hourly validation window: 2021-01-01 00:00 .. 2021-01-05 00:00, "H"
type Period struct {
	Start time.Time
	End   time.Time
	Freq  Frequency
}

// NewPeriod builds a Period.
func NewPeriod(start, end time.Time, freq Frequency) Period {
	return Period{Start: start, End: end, Freq: freq}
}

// Contains returns true if t is within [Start, End].
func (p Period) Contains(t time.Time) bool {
	return !t.Before(p.Start) && !t.After(p.End)
}

// Span returns End - Start. Negative for an inverted period.
func (p Period) Span() time.Duration {
	return p.End.Sub(p.Start)
}

// Samples returns the number of sample points of Freq within [Start, End].
func (p Period) Samples() int {
	return p.Freq.Count(p.Start, p.End)
}

// Points returns every sample point within [Start, End], ascending.
func (p Period) Points() []time.Time {
	if p.Freq.Validate() != nil || p.End.Before(p.Start) {
		return nil
	}
	first := p.Freq.Rollforward(p.Start)
	var points []time.Time
	for k := 0; ; k++ {
		t := p.Freq.Shift(first, k)
		if t.After(p.End) {
			break
		}
		points = append(points, t)
	}
	return points
}

func (p Period) String() string {
	return "[" + FormatTimestamp(p.Start) + ", " + FormatTimestamp(p.End) + "] @" + p.Freq.String()
}

// =============================================================================
// SAMPLE COUNTING
// =============================================================================

// Count returns how many sample points of f fall within [start, end].
// Anchored frequencies start at the first anchor on or after start; every
// point is derived from that anchor directly so month-end clamping never
// accumulates. The count is computed arithmetically, so spans of any length
// cost the same.
func (f Frequency) Count(start, end time.Time) int {
	if f.Validate() != nil || end.Before(start) {
		return 0
	}
	first := f.Rollforward(start)
	if first.After(end) {
		return 0
	}

	// StepsBetween ignores clock time below the unit; settle the last step
	// against the real offsets.
	n := f.StepsBetween(first, end)
	for n > 0 && f.Shift(first, n).After(end) {
		n--
	}
	for !f.Shift(first, n+1).After(end) {
		n++
	}
	return n + 1
}

// StepsBetween returns how many whole steps of f separate start from end on
// the unit's own calendar (hours of elapsed time, calendar days, calendar
// months). Clock time below the unit is ignored, so the result can be one
// step above the number of Shift calls that stay within the span. Negative
// when end precedes start.
func (f Frequency) StepsBetween(start, end time.Time) int {
	if f.Validate() != nil {
		return 0
	}
	var units int64
	switch f.Unit {
	case UnitHour:
		units = (end.Unix() - start.Unix()) / 3600
	case UnitDay:
		units = civilDays(start, end)
	case UnitWeek:
		units = civilDays(start, end) / 7
	default:
		months := int64(end.Year()-start.Year())*12 + int64(end.Month()-start.Month())
		units = months / int64(f.Unit.months())
	}
	return int(units / int64(f.N))
}

// civilDays counts calendar days from a's date to b's date.
func civilDays(a, b time.Time) int64 {
	ya, ma, da := a.Date()
	yb, mb, db := b.Date()
	from := time.Date(ya, ma, da, 0, 0, 0, 0, time.UTC).Unix()
	to := time.Date(yb, mb, db, 0, 0, 0, 0, time.UTC).Unix()
	return (to - from) / 86400
}

// =============================================================================
// TIMESTAMP PARSING
// =============================================================================

var timestampLayouts = []string{
	time.RFC3339Nano,
	"2006-01-02T15:04:05",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp accepts RFC3339, "YYYY-MM-DD HH:MM[:SS]" and "YYYY-MM-DD".
// Timestamps without an offset are read as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timestampLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("invalid timestamp %q (use YYYY-MM-DD or RFC3339)", s)
}

// FormatTimestamp prints UTC midnight timestamps as dates and other UTC
// timestamps down to the second. Anything with an offset or sub-second
// precision is printed as RFC3339 so ParseTimestamp reads back the same
// instant.
func FormatTimestamp(t time.Time) string {
	if _, offset := t.Zone(); offset != 0 || t.Nanosecond() != 0 {
		return t.Format(time.RFC3339Nano)
	}
	if h, m, s := t.Clock(); h == 0 && m == 0 && s == 0 && t.Nanosecond() == 0 {
		return t.Format("2006-01-02")
	}
	return t.Format("2006-01-02 15:04:05")
}
