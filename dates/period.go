package dates

import (
	"errors"
	"fmt"
	"time"
)

// =============================================================================
// PERIOD - Inclusive date range
// =============================================================================

// ErrInvalidPeriod is returned when a period ends before it starts.
var ErrInvalidPeriod = errors.New("invalid period: end before start")

// Period is an inclusive [Start, End] date range. Pay periods and billing
// months are both Periods.
type Period struct {
	Start Date `json:"start"`
	End   Date `json:"end"`
}

// Validate checks Start <= End.
func (p Period) Validate() error {
	if p.Start.After(p.End) {
		return ErrInvalidPeriod
	}
	return nil
}

// Contains reports whether the date falls within [Start, End].
func (p Period) Contains(d Date) bool {
	return d.AfterOrEqual(p.Start) && d.BeforeOrEqual(p.End)
}

// Overlap clamps this period to another. ok is false when they do not
// intersect at all.
func (p Period) Overlap(other Period) (Period, bool) {
	start := Max(p.Start, other.Start)
	end := Min(p.End, other.End)
	if start.After(end) {
		return Period{}, false
	}
	return Period{Start: start, End: end}, true
}

// Days returns the inclusive day count.
func (p Period) Days() int { return DaysBetween(p.Start, p.End) + 1 }

// Weekdays returns the Monday-Friday day count within the period.
func (p Period) Weekdays() int { return WeekdayCount(p.Start, p.End) }

func (p Period) String() string {
	return fmt.Sprintf("%s to %s", p.Start, p.End)
}

// Label is the short human form used on consolidated invoice line items,
// e.g. "Jan 2025" for a calendar month, otherwise the full range.
func (p Period) Label() string {
	if p.Start.Day() == 1 && p.End.Equal(MonthPeriod(p.Start.Year(), p.Start.Month()).End) {
		return p.Start.Time.Format("Jan 2006")
	}
	return p.String()
}

// =============================================================================
// PERIOD CONSTRUCTORS
// =============================================================================

// MonthPeriod returns the calendar month as a period.
func MonthPeriod(year int, month time.Month) Period {
	start := New(year, month, 1)
	return Period{Start: start, End: start.AddMonths(1).AddDays(-1)}
}

// MonthOf returns the calendar month containing the date.
func MonthOf(d Date) Period { return MonthPeriod(d.Year(), d.Month()) }

// WeekOf returns the Monday-Sunday week containing the date.
func WeekOf(d Date) Period {
	offset := int(d.Weekday()+6) % 7 // Monday = 0
	start := d.AddDays(-offset)
	return Period{Start: start, End: start.AddDays(6)}
}
