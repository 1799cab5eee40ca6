package dates_test

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath/tutorbill/dates"
)

func TestParse_PinsUTCMidnight(t *testing.T) {
	d, err := dates.Parse("2025-01-07")
	require.NoError(t, err)
	assert.Equal(t, time.Date(2025, time.January, 7, 0, 0, 0, 0, time.UTC), d.Time)
}

func TestParse_Invalid(t *testing.T) {
	_, err := dates.Parse("01/07/2025")
	assert.Error(t, err)
}

func TestFromTime_TruncatesToUTCDay(t *testing.T) {
	// GIVEN: 11pm EST on Jan 6 (4am UTC Jan 7)
	// THEN: the UTC calendar day is Jan 7, not Jan 6
	est := time.FixedZone("EST", -5*3600)
	d := dates.FromTime(time.Date(2025, time.January, 6, 23, 0, 0, 0, est))
	assert.Equal(t, "2025-01-07", d.String())
}

func TestWeekdayCount(t *testing.T) {
	tests := []struct {
		name     string
		from, to string
		want     int
	}{
		{"full work week Mon-Fri", "2025-01-06", "2025-01-10", 5},
		{"Tue-Thu", "2025-01-07", "2025-01-09", 3},
		{"weekend only", "2025-01-04", "2025-01-05", 0},
		{"single weekday", "2025-01-08", "2025-01-08", 1},
		{"spanning weekend", "2025-01-10", "2025-01-13", 2}, // Fri + Mon
		{"from after to", "2025-01-10", "2025-01-06", 0},
		{"full month Jan 2025", "2025-01-01", "2025-01-31", 23},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			from, err := dates.Parse(tc.from)
			require.NoError(t, err)
			to, err := dates.Parse(tc.to)
			require.NoError(t, err)
			assert.Equal(t, tc.want, dates.WeekdayCount(from, to))
		})
	}
}

func TestPeriodOverlap(t *testing.T) {
	jan := dates.MonthPeriod(2025, time.January)

	t.Run("contained", func(t *testing.T) {
		inner := dates.Period{Start: dates.New(2025, time.January, 10), End: dates.New(2025, time.January, 20)}
		got, ok := jan.Overlap(inner)
		require.True(t, ok)
		assert.Equal(t, inner, got)
	})

	t.Run("partial", func(t *testing.T) {
		span := dates.Period{Start: dates.New(2024, time.December, 15), End: dates.New(2025, time.January, 10)}
		got, ok := jan.Overlap(span)
		require.True(t, ok)
		assert.Equal(t, dates.New(2025, time.January, 1), got.Start)
		assert.Equal(t, dates.New(2025, time.January, 10), got.End)
	})

	t.Run("disjoint", func(t *testing.T) {
		feb := dates.MonthPeriod(2025, time.February)
		_, ok := jan.Overlap(feb)
		assert.False(t, ok)
	})
}

func TestPeriodValidate(t *testing.T) {
	bad := dates.Period{Start: dates.New(2025, time.March, 10), End: dates.New(2025, time.March, 1)}
	assert.ErrorIs(t, bad.Validate(), dates.ErrInvalidPeriod)

	single := dates.Period{Start: dates.New(2025, time.March, 10), End: dates.New(2025, time.March, 10)}
	assert.NoError(t, single.Validate())
}

func TestMonthPeriod(t *testing.T) {
	feb := dates.MonthPeriod(2024, time.February) // leap year
	assert.Equal(t, "2024-02-01", feb.Start.String())
	assert.Equal(t, "2024-02-29", feb.End.String())
	assert.Equal(t, 29, feb.Days())
}

func TestWeekOf(t *testing.T) {
	// Wed Jan 8 2025 -> Mon Jan 6 .. Sun Jan 12
	week := dates.WeekOf(dates.New(2025, time.January, 8))
	assert.Equal(t, "2025-01-06", week.Start.String())
	assert.Equal(t, "2025-01-12", week.End.String())

	// Sunday belongs to the week starting the previous Monday
	week = dates.WeekOf(dates.New(2025, time.January, 12))
	assert.Equal(t, "2025-01-06", week.Start.String())
}

func TestPeriodLabel(t *testing.T) {
	assert.Equal(t, "Jan 2025", dates.MonthPeriod(2025, time.January).Label())
	odd := dates.Period{Start: dates.New(2025, time.January, 5), End: dates.New(2025, time.January, 9)}
	assert.Equal(t, "2025-01-05 to 2025-01-09", odd.Label())
}

func TestDateJSON(t *testing.T) {
	d := dates.New(2025, time.July, 4)
	b, err := json.Marshal(d)
	require.NoError(t, err)
	assert.Equal(t, `"2025-07-04"`, string(b))

	var back dates.Date
	require.NoError(t, json.Unmarshal(b, &back))
	assert.True(t, back.Equal(d))
}
