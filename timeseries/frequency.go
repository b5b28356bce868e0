/*
Package timeseries provides the calendar primitives used to partition a
sampled dataset: sampling frequencies, calendar-aware offsets and periods.

PURPOSE:
  A forecasting dataset is a series of timestamps sampled at a fixed
  frequency (hourly, daily, weekly, monthly, quarterly, yearly, or a multiple
  such as every 4 days). Splitting that series into train / validation /
  cross-validation windows needs exactly three operations:
    1. Shift a timestamp by N frequency units (forward or backward)
    2. Anchor a timestamp onto the frequency grid (week-ends, month-ends...)
    3. Count how many samples fall inside a closed interval

CALENDAR SEMANTICS:
  Hour and day offsets are exact. Week offsets are 7 calendar days.
  Month, quarter and year offsets follow the calendar, NOT a fixed day count:
    - 2021-03-31 minus 1 month = 2021-02-28 (day clamped to month length)
    - 2021-02-28 minus 1 month = 2021-01-31 (month-end stays on month-end)
    - 2020-02-29 minus 1 year  = 2019-02-28
  Time of day is preserved by every offset.

ALIASES:
  Frequencies are written the way forecasting tooling writes them:
    "H", "D", "W", "W-SUN", "M", "ME", "Q", "QE", "Q-DEC", "Y", "YE", "A", "A-DEC"
  with an optional positive multiplier prefix: "4D", "2W", "3M".

SEE ALSO:
  - period.go: Period type and sample counting
  - split/cutoffs.go: Uses Shift to compute fold cutoffs
*/
package timeseries

import (
	"errors"
	"fmt"
	"regexp"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jinzhu/now"
)

// ErrInvalidFrequency is returned when a frequency alias cannot be parsed or
// a zero Frequency is used where one is required.
var ErrInvalidFrequency = errors.New("invalid frequency")

// =============================================================================
// UNIT - Base sampling granularity
// =============================================================================

type Unit string

const (
	UnitHour    Unit = "H"
	UnitDay     Unit = "D"
	UnitWeek    Unit = "W"
	UnitMonth   Unit = "M"
	UnitQuarter Unit = "Q"
	UnitYear    Unit = "Y"
)

// Units lists the supported units from finest to coarsest.
var Units = []Unit{UnitHour, UnitDay, UnitWeek, UnitMonth, UnitQuarter, UnitYear}

// Name returns a human readable name ("hour", "day", ...).
func (u Unit) Name() string {
	switch u {
	case UnitHour:
		return "hour"
	case UnitDay:
		return "day"
	case UnitWeek:
		return "week"
	case UnitMonth:
		return "month"
	case UnitQuarter:
		return "quarter"
	case UnitYear:
		return "year"
	default:
		return string(u)
	}
}

// Anchored reports whether samples of this unit sit on a calendar anchor
// (Sunday, month-end, quarter-end, year-end) rather than on the start date.
func (u Unit) Anchored() bool {
	return u == UnitWeek || u == UnitMonth || u == UnitQuarter || u == UnitYear
}

// months returns the length of the unit in calendar months, 0 for units that
// are not month based.
func (u Unit) months() int {
	switch u {
	case UnitMonth:
		return 1
	case UnitQuarter:
		return 3
	case UnitYear:
		return 12
	default:
		return 0
	}
}

var unitAliases = map[string]Unit{
	"H":     UnitHour,
	"h":     UnitHour,
	"D":     UnitDay,
	"d":     UnitDay,
	"W":     UnitWeek,
	"W-SUN": UnitWeek,
	"M":     UnitMonth,
	"ME":    UnitMonth,
	"Q":     UnitQuarter,
	"QE":    UnitQuarter,
	"Q-DEC": UnitQuarter,
	"Y":     UnitYear,
	"YE":    UnitYear,
	"Y-DEC": UnitYear,
	"A":     UnitYear,
	"A-DEC": UnitYear,
}

// Aliases returns the accepted spellings of u, sorted.
func (u Unit) Aliases() []string {
	var out []string
	for alias, unit := range unitAliases {
		if unit == u {
			out = append(out, alias)
		}
	}
	sort.Strings(out)
	return out
}

// =============================================================================
// FREQUENCY - N units of a base granularity
// =============================================================================

// Frequency is a sampling frequency: N units of a base Unit.
// The zero value is invalid; use ParseFrequency or Every.
type Frequency struct {
	N    int
	Unit Unit
}

// Common single-unit frequencies.
var (
	Hourly    = Frequency{N: 1, Unit: UnitHour}
	Daily     = Frequency{N: 1, Unit: UnitDay}
	Weekly    = Frequency{N: 1, Unit: UnitWeek}
	Monthly   = Frequency{N: 1, Unit: UnitMonth}
	Quarterly = Frequency{N: 1, Unit: UnitQuarter}
	Yearly    = Frequency{N: 1, Unit: UnitYear}
)

// Every returns a frequency of n units.
func Every(n int, unit Unit) Frequency {
	return Frequency{N: n, Unit: unit}
}

var frequencyPattern = regexp.MustCompile(`^(\d*)([A-Za-z]+(?:-[A-Za-z]+)?)$`)

// ParseFrequency parses an alias such as "D", "4D", "W-SUN" or "3M".
func ParseFrequency(s string) (Frequency, error) {
	m := frequencyPattern.FindStringSubmatch(strings.TrimSpace(s))
	if m == nil {
		return Frequency{}, fmt.Errorf("%w: %q", ErrInvalidFrequency, s)
	}

	n := 1
	if m[1] != "" {
		v, err := strconv.Atoi(m[1])
		if err != nil || v < 1 {
			return Frequency{}, fmt.Errorf("%w: multiplier must be positive in %q", ErrInvalidFrequency, s)
		}
		n = v
	}

	alias := m[2]
	unit, ok := unitAliases[alias]
	if !ok {
		unit, ok = unitAliases[strings.ToUpper(alias)]
	}
	if !ok {
		return Frequency{}, fmt.Errorf("%w: unknown unit %q", ErrInvalidFrequency, alias)
	}
	return Frequency{N: n, Unit: unit}, nil
}

// MustParseFrequency is ParseFrequency for literals known to be valid.
func MustParseFrequency(s string) Frequency {
	f, err := ParseFrequency(s)
	if err != nil {
		panic(err)
	}
	return f
}

// Validate returns ErrInvalidFrequency for a zero or malformed frequency.
func (f Frequency) Validate() error {
	if f.N < 1 {
		return fmt.Errorf("%w: multiplier must be positive, got %d", ErrInvalidFrequency, f.N)
	}
	for _, u := range Units {
		if f.Unit == u {
			return nil
		}
	}
	return fmt.Errorf("%w: unknown unit %q", ErrInvalidFrequency, f.Unit)
}

func (f Frequency) IsZero() bool { return f == Frequency{} }

func (f Frequency) String() string {
	if f.N == 1 {
		return string(f.Unit)
	}
	return strconv.Itoa(f.N) + string(f.Unit)
}

func (f Frequency) MarshalText() ([]byte, error) {
	if f.IsZero() {
		return []byte{}, nil
	}
	return []byte(f.String()), nil
}

func (f *Frequency) UnmarshalText(text []byte) error {
	if len(text) == 0 {
		*f = Frequency{}
		return nil
	}
	parsed, err := ParseFrequency(string(text))
	if err != nil {
		return err
	}
	*f = parsed
	return nil
}

// =============================================================================
// OFFSETS - The one place calendar arithmetic happens
// =============================================================================

// Shift moves t by k steps of this frequency (k*N units). Negative k moves
// backward. Month based units use calendar semantics: a month-end stays on
// the month-end and an overflowing day is clamped to the target month.
func (f Frequency) Shift(t time.Time, k int) time.Time {
	units := k * f.N
	switch f.Unit {
	case UnitHour:
		return addHours(t, units)
	case UnitDay:
		return t.AddDate(0, 0, units)
	case UnitWeek:
		return t.AddDate(0, 0, 7*units)
	case UnitMonth, UnitQuarter, UnitYear:
		return AddMonths(t, units*f.Unit.months())
	default:
		return t
	}
}

// hourChunk keeps each time.Add below the ~292 year range of time.Duration.
const hourChunk = 100 * 365 * 24

func addHours(t time.Time, n int) time.Time {
	for n > hourChunk {
		t = t.Add(hourChunk * time.Hour)
		n -= hourChunk
	}
	for n < -hourChunk {
		t = t.Add(-hourChunk * time.Hour)
		n += hourChunk
	}
	return t.Add(time.Duration(n) * time.Hour)
}

// AddMonths adds n calendar months to t without overflowing into the next
// month. Month-end dates map to month-end dates.
func AddMonths(t time.Time, n int) time.Time {
	year, month, day := t.Date()
	hour, min, sec := t.Clock()

	onMonthEnd := day == lastDayOfMonth(year, month, t.Location())

	first := time.Date(year, month+time.Month(n), 1, 0, 0, 0, 0, t.Location())
	last := lastDayOfMonth(first.Year(), first.Month(), t.Location())
	if onMonthEnd || day > last {
		day = last
	}
	return time.Date(first.Year(), first.Month(), day, hour, min, sec, t.Nanosecond(), t.Location())
}

// Rollforward moves t onto the next anchor of the frequency, or returns t if
// it already sits on one. Unanchored units (hour, day) return t unchanged.
func (f Frequency) Rollforward(t time.Time) time.Time {
	switch f.Unit {
	case UnitWeek:
		return t.AddDate(0, 0, (7-int(t.Weekday()))%7)
	case UnitMonth:
		return withDate(t, now.With(t).EndOfMonth())
	case UnitQuarter:
		return withDate(t, now.With(t).EndOfQuarter())
	case UnitYear:
		return withDate(t, now.With(t).EndOfYear())
	default:
		return t
	}
}

// OnAnchor reports whether t is a sample point of an anchored frequency.
func (f Frequency) OnAnchor(t time.Time) bool {
	return f.Rollforward(t).Equal(t)
}

func lastDayOfMonth(year int, month time.Month, loc *time.Location) int {
	return now.With(time.Date(year, month, 1, 0, 0, 0, 0, loc)).EndOfMonth().Day()
}

// withDate keeps the clock of t and takes the calendar date of d.
func withDate(t, d time.Time) time.Time {
	hour, min, sec := t.Clock()
	return time.Date(d.Year(), d.Month(), d.Day(), hour, min, sec, t.Nanosecond(), t.Location())
}
