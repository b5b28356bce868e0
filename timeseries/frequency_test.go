package timeseries_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/warp/forecast-split/timeseries"
)

func date(year int, month time.Month, day int) time.Time {
	return time.Date(year, month, day, 0, 0, 0, 0, time.UTC)
}

func hour(year int, month time.Month, day, h int) time.Time {
	return time.Date(year, month, day, h, 0, 0, 0, time.UTC)
}

// =============================================================================
// PARSING
// =============================================================================

func TestParseFrequency_Aliases(t *testing.T) {
	tests := []struct {
		in   string
		want timeseries.Frequency
	}{
		{"H", timeseries.Hourly},
		{"h", timeseries.Hourly},
		{"D", timeseries.Daily},
		{"4D", timeseries.Every(4, timeseries.UnitDay)},
		{"W", timeseries.Weekly},
		{"W-SUN", timeseries.Weekly},
		{"2W", timeseries.Every(2, timeseries.UnitWeek)},
		{"M", timeseries.Monthly},
		{"ME", timeseries.Monthly},
		{"3M", timeseries.Every(3, timeseries.UnitMonth)},
		{"Q", timeseries.Quarterly},
		{"Q-DEC", timeseries.Quarterly},
		{"Y", timeseries.Yearly},
		{"A", timeseries.Yearly},
		{" 12H ", timeseries.Every(12, timeseries.UnitHour)},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := timeseries.ParseFrequency(tt.in)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestParseFrequency_Rejects(t *testing.T) {
	for _, in := range []string{"", "0D", "X", "W-MON", "MS", "D4", "-1D"} {
		t.Run(in, func(t *testing.T) {
			_, err := timeseries.ParseFrequency(in)
			assert.ErrorIs(t, err, timeseries.ErrInvalidFrequency)
		})
	}
}

func TestFrequency_StringAndText(t *testing.T) {
	assert.Equal(t, "D", timeseries.Daily.String())
	assert.Equal(t, "4D", timeseries.Every(4, timeseries.UnitDay).String())

	var payload struct {
		Freq timeseries.Frequency `json:"freq"`
	}
	require.NoError(t, json.Unmarshal([]byte(`{"freq":"2W"}`), &payload))
	assert.Equal(t, timeseries.Every(2, timeseries.UnitWeek), payload.Freq)

	out, err := json.Marshal(payload)
	require.NoError(t, err)
	assert.JSONEq(t, `{"freq":"2W"}`, string(out))

	assert.Error(t, json.Unmarshal([]byte(`{"freq":"fortnight"}`), &payload))
}

func TestFrequency_Validate(t *testing.T) {
	assert.NoError(t, timeseries.Quarterly.Validate())
	assert.ErrorIs(t, timeseries.Frequency{}.Validate(), timeseries.ErrInvalidFrequency)
	assert.ErrorIs(t, timeseries.Frequency{N: 1, Unit: "S"}.Validate(), timeseries.ErrInvalidFrequency)
}

// =============================================================================
// OFFSETS - Calendar semantics across month / quarter / year boundaries
// =============================================================================

func TestShift_FixedUnits(t *testing.T) {
	assert.Equal(t, hour(2019, time.December, 31, 21), timeseries.Hourly.Shift(hour(2020, time.January, 1, 0), -3))
	assert.Equal(t, date(2020, time.December, 2), timeseries.Daily.Shift(date(2021, time.January, 1), -30))
	assert.Equal(t, date(2020, time.February, 29), timeseries.Daily.Shift(date(2020, time.February, 28), 1))
	assert.Equal(t, date(2020, time.December, 12), timeseries.Every(4, timeseries.UnitDay).Shift(date(2021, time.January, 1), -5))
	assert.Equal(t, date(2020, time.December, 18), timeseries.Weekly.Shift(date(2021, time.January, 1), -2))
}

func TestShift_HoursBeyondDurationRange(t *testing.T) {
	// 400 Gregorian years are exactly 146097 days, more hours than a
	// time.Duration can hold.
	hours := 146097 * 24

	assert.Equal(t, date(2400, time.January, 1), timeseries.Hourly.Shift(date(2000, time.January, 1), hours))
	assert.Equal(t, date(1600, time.January, 1), timeseries.Hourly.Shift(date(2000, time.January, 1), -hours))
	assert.Equal(t, date(1600, time.January, 1), timeseries.Every(2, timeseries.UnitHour).Shift(date(2000, time.January, 1), -hours/2))
}

func TestShift_MonthEndStaysOnMonthEnd(t *testing.T) {
	// GIVEN: Month-end dates
	// WHEN: Stepping back whole months
	// THEN: Every result is the prior month's last day, leap years included
	tests := []struct {
		name string
		from time.Time
		k    int
		freq timeseries.Frequency
		want time.Time
	}{
		{"feb to jan", date(2021, time.February, 28), -1, timeseries.Monthly, date(2021, time.January, 31)},
		{"mar to feb", date(2021, time.March, 31), -1, timeseries.Monthly, date(2021, time.February, 28)},
		{"mar to leap feb", date(2020, time.March, 31), -1, timeseries.Monthly, date(2020, time.February, 29)},
		{"leap feb to jan", date(2020, time.February, 29), -1, timeseries.Monthly, date(2020, time.January, 31)},
		{"apr30 to mar31", date(2021, time.April, 30), -1, timeseries.Monthly, date(2021, time.March, 31)},
		{"quarter end", date(2021, time.June, 30), -1, timeseries.Quarterly, date(2021, time.March, 31)},
		{"quarter across year", date(2021, time.March, 31), -1, timeseries.Quarterly, date(2020, time.December, 31)},
		{"leap year end", date(2020, time.February, 29), -1, timeseries.Yearly, date(2019, time.February, 28)},
		{"year end", date(2020, time.December, 31), -4, timeseries.Yearly, date(2016, time.December, 31)},
		{"forward to leap", date(2019, time.February, 28), 1, timeseries.Yearly, date(2020, time.February, 29)},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.freq.Shift(tt.from, tt.k))
		})
	}
}

func TestShift_ClampsOverflowingDay(t *testing.T) {
	// Mid-month 30th clamps into February instead of spilling into March.
	assert.Equal(t, date(2021, time.February, 28), timeseries.Monthly.Shift(date(2021, time.March, 30), -1))
	assert.Equal(t, date(2021, time.January, 30), timeseries.Monthly.Shift(date(2021, time.March, 30), -2))
	assert.Equal(t, date(2020, time.July, 1), timeseries.Every(6, timeseries.UnitMonth).Shift(date(2021, time.January, 1), -1))
	assert.Equal(t, date(2020, time.November, 30), timeseries.Quarterly.Shift(date(2020, time.August, 30), 1))
}

func TestShift_PreservesClock(t *testing.T) {
	from := time.Date(2021, time.March, 31, 13, 45, 0, 0, time.UTC)
	assert.Equal(t, time.Date(2021, time.February, 28, 13, 45, 0, 0, time.UTC), timeseries.Monthly.Shift(from, -1))
}

func TestShift_RoundTripsOnMonthEnds(t *testing.T) {
	start := date(2019, time.December, 31)
	for k := 1; k <= 30; k++ {
		back := timeseries.Monthly.Shift(start, -k)
		assert.Equal(t, start, timeseries.Monthly.Shift(back, k), "k=%d", k)
	}
}

// =============================================================================
// ANCHORS
// =============================================================================

func TestRollforward(t *testing.T) {
	// 2020-01-01 is a Wednesday
	assert.Equal(t, date(2020, time.January, 5), timeseries.Weekly.Rollforward(date(2020, time.January, 1)))
	assert.Equal(t, date(2020, time.January, 5), timeseries.Weekly.Rollforward(date(2020, time.January, 5)))
	assert.Equal(t, date(2020, time.February, 29), timeseries.Monthly.Rollforward(date(2020, time.February, 3)))
	assert.Equal(t, date(2020, time.June, 30), timeseries.Quarterly.Rollforward(date(2020, time.April, 1)))
	assert.Equal(t, date(2020, time.March, 31), timeseries.Quarterly.Rollforward(date(2020, time.March, 31)))
	assert.Equal(t, date(2015, time.December, 31), timeseries.Yearly.Rollforward(date(2015, time.January, 1)))
	assert.Equal(t, hour(2020, time.January, 1, 7), timeseries.Hourly.Rollforward(hour(2020, time.January, 1, 7)))

	assert.True(t, timeseries.Monthly.OnAnchor(date(2021, time.April, 30)))
	assert.False(t, timeseries.Monthly.OnAnchor(date(2021, time.April, 29)))
}
