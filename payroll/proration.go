/*
proration.go - Period-hours proration engine

PURPOSE:
  Computes how many hours a recurring weekly-hours assignment contributes
  within a pay period, accounting for the assignment's own active window.

ALGORITHM:
  1. nil hours-per-week means variable/untracked hours: {0, variable}.
     That is "fill in manually", NOT zero pay.
  2. Clamp the pay period to the assignment's [start, end] window. A nil
     bound is open on that side. No overlap at all: {0, not variable}.
  3. Count Monday-Friday days in the overlap window, all in UTC.
  4. hours = hoursPerWeek / 5 * weekdayCount, rounded to 2 decimal places
     half-away-from-zero.

WHY WEEKDAYS:
  Teachers are assumed to work a 5-day week. Prorating by weekday count
  rather than calendar days handles partial weeks and mid-week assignment
  starts/ends without a calendar-of-sessions model.

EXAMPLE:
  Pay period Mon Jan 5 - Fri Jan 9 2026 (5 weekdays), assignment active
  Jan 7 - Jan 9 only, 25 hours/week:
  overlap = Jan 7-9 (3 weekdays), hours = 25/5*3 = 15.00
*/
package payroll

import (
	"github.com/shopspring/decimal"

	"github.com/brightpath/tutorbill/dates"
)

var five = decimal.NewFromInt(5)

// Proration is the outcome of prorating one assignment over one period.
type Proration struct {
	Hours decimal.Decimal

	// IsVariable marks untracked-hours assignments whose hours must be
	// entered manually before the run is approved.
	IsVariable bool
}

// ProrateHours computes the hours an assignment earns within a pay period.
// assignStart/assignEnd are the assignment's inclusive active bounds; nil
// means unbounded on that side.
func ProrateHours(hoursPerWeek *decimal.Decimal, period dates.Period, assignStart, assignEnd *dates.Date) Proration {
	if hoursPerWeek == nil {
		return Proration{Hours: decimal.Zero, IsVariable: true}
	}

	window := period
	if assignStart != nil {
		window.Start = dates.Max(window.Start, *assignStart)
	}
	if assignEnd != nil {
		window.End = dates.Min(window.End, *assignEnd)
	}
	if window.Start.After(window.End) {
		return Proration{Hours: decimal.Zero}
	}

	weekdays := dates.WeekdayCount(window.Start, window.End)
	hours := hoursPerWeek.Div(five).Mul(decimal.NewFromInt(int64(weekdays))).Round(2)
	return Proration{Hours: hours}
}
