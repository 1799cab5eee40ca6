package payroll_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/payroll"
)

func d(y int, m time.Month, day int) dates.Date { return dates.New(y, m, day) }

func dPtr(y int, m time.Month, day int) *dates.Date {
	v := dates.New(y, m, day)
	return &v
}

func dec(s string) decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return v
}

func decPtr(s string) *decimal.Decimal {
	v := dec(s)
	return &v
}

func TestProrateHours_NilHoursIsVariable(t *testing.T) {
	// GIVEN: an assignment with untracked hours
	// THEN: {0, variable} regardless of any date inputs
	period := dates.Period{Start: d(2026, time.January, 5), End: d(2026, time.January, 9)}

	got := payroll.ProrateHours(nil, period, nil, nil)
	assert.True(t, got.IsVariable)
	assert.True(t, got.Hours.IsZero())

	// Even with a window that does not overlap the period at all.
	got = payroll.ProrateHours(nil, period, dPtr(2027, time.March, 1), dPtr(2027, time.March, 31))
	assert.True(t, got.IsVariable)
	assert.True(t, got.Hours.IsZero())
}

func TestProrateHours_FullContainment(t *testing.T) {
	// GIVEN: assignment active over the whole period
	// THEN: hours = hoursPerWeek * weekdays/5
	period := dates.Period{Start: d(2026, time.January, 5), End: d(2026, time.January, 9)} // Mon-Fri
	got := payroll.ProrateHours(decPtr("25"), period, dPtr(2025, time.September, 1), nil)
	assert.False(t, got.IsVariable)
	assert.True(t, got.Hours.Equal(dec("25")), "got %s", got.Hours)
}

func TestProrateHours_PartialOverlapAtStart(t *testing.T) {
	// GIVEN: pay period Mon Jan 5 - Fri Jan 9 2026 (5 weekdays),
	//        assignment active Jan 7 - Jan 9 only, 25 hours/week
	// THEN: overlap Jan 7-9 = 3 weekdays -> 25/5*3 = 15.00
	period := dates.Period{Start: d(2026, time.January, 5), End: d(2026, time.January, 9)}
	got := payroll.ProrateHours(decPtr("25"), period, dPtr(2026, time.January, 7), dPtr(2026, time.January, 9))
	assert.False(t, got.IsVariable)
	assert.True(t, got.Hours.Equal(dec("15")), "got %s", got.Hours)
}

func TestProrateHours_NoOverlap(t *testing.T) {
	// GIVEN: assignment that ended before the period starts
	// THEN: zero hours, NOT variable
	period := dates.Period{Start: d(2026, time.February, 2), End: d(2026, time.February, 6)}
	got := payroll.ProrateHours(decPtr("10"), period, dPtr(2025, time.September, 1), dPtr(2026, time.January, 30))
	assert.False(t, got.IsVariable)
	assert.True(t, got.Hours.IsZero())
}

func TestProrateHours_MonthlyPeriodPartialWeeks(t *testing.T) {
	// Jan 2026 has 22 weekdays (Jan 1 is a Thursday).
	period := dates.MonthPeriod(2026, time.January)
	got := payroll.ProrateHours(decPtr("10"), period, nil, nil)
	// 10/5 * 22 = 44
	assert.True(t, got.Hours.Equal(dec("44")), "got %s", got.Hours)
}

func TestProrateHours_RoundsToTwoDecimals(t *testing.T) {
	// 7/5 * 3 = 4.2; 7.5/5*1 = 1.5; and a case that truly needs rounding:
	// 10/3... hours-per-week values are arbitrary decimals.
	period := dates.Period{Start: d(2026, time.January, 7), End: d(2026, time.January, 9)} // Wed-Fri, 3 weekdays
	got := payroll.ProrateHours(decPtr("8.33"), period, nil, nil)
	// 8.33/5*3 = 4.998 -> 5.00
	assert.True(t, got.Hours.Equal(dec("5")), "got %s", got.Hours)

	got = payroll.ProrateHours(decPtr("7.77"), period, nil, nil)
	// 7.77/5*3 = 4.662 -> 4.66
	assert.True(t, got.Hours.Equal(dec("4.66")), "got %s", got.Hours)
}

func TestProrateHours_AssignmentStartsAfterPeriodEnd(t *testing.T) {
	period := dates.Period{Start: d(2026, time.January, 5), End: d(2026, time.January, 9)}
	got := payroll.ProrateHours(decPtr("25"), period, dPtr(2026, time.January, 12), nil)
	assert.False(t, got.IsVariable)
	assert.True(t, got.Hours.IsZero())
}

func TestProrateHours_WeekendOnlyOverlap(t *testing.T) {
	// Overlap exists but contains no weekdays.
	period := dates.Period{Start: d(2026, time.January, 3), End: d(2026, time.January, 4)} // Sat-Sun
	got := payroll.ProrateHours(decPtr("25"), period, nil, nil)
	assert.False(t, got.IsVariable)
	assert.True(t, got.Hours.IsZero())
}
