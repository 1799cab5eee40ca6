/*
Package dates provides UTC-safe calendar dates and inclusive periods.

PURPOSE:
  Billing and payroll math works on whole calendar days. Constructing dates
  in local time invites off-by-one errors at period boundaries (a midnight
  EST date is "yesterday" in UTC). Every Date here is pinned to UTC midnight,
  and all arithmetic stays in UTC.

KEY CONCEPTS:
  - Date: a calendar day at UTC midnight
  - Period: an inclusive [Start, End] date range (pay periods, billing months)
  - WeekdayCount: Monday-Friday day counting used by hour proration

USAGE:
  period := dates.Period{Start: dates.New(2025, time.January, 5), End: dates.New(2025, time.January, 9)}
  n := dates.WeekdayCount(period.Start, period.End) // 5

SEE ALSO:
  - payroll: prorates weekly hours over Period overlap windows
  - invoicing: billing period labels and consolidation spans
*/
package dates

import (
	"fmt"
	"time"
)

// =============================================================================
// DATE - A calendar day at UTC midnight
// =============================================================================

// Date is a calendar day. The underlying time is always UTC midnight.
type Date struct {
	Time time.Time
}

// New constructs a Date at UTC midnight.
func New(year int, month time.Month, day int) Date {
	return Date{Time: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// FromTime truncates any time to its UTC calendar day.
func FromTime(t time.Time) Date {
	u := t.UTC()
	return New(u.Year(), u.Month(), u.Day())
}

// Parse reads an ISO date ("2006-01-02").
func Parse(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", s)
	if err != nil {
		return Date{}, fmt.Errorf("invalid date %q: %w", s, err)
	}
	return Date{Time: t.UTC()}, nil
}

// Today returns the current UTC calendar day.
func Today() Date { return FromTime(time.Now()) }

// Comparison
func (d Date) Before(other Date) bool        { return d.Time.Before(other.Time) }
func (d Date) After(other Date) bool         { return d.Time.After(other.Time) }
func (d Date) Equal(other Date) bool         { return d.Time.Equal(other.Time) }
func (d Date) BeforeOrEqual(other Date) bool { return !d.After(other) }
func (d Date) AfterOrEqual(other Date) bool  { return !d.Before(other) }

// Arithmetic
func (d Date) AddDays(n int) Date   { return FromTime(d.Time.AddDate(0, 0, n)) }
func (d Date) AddMonths(n int) Date { return FromTime(d.Time.AddDate(0, n, 0)) }

// Properties
func (d Date) Year() int             { return d.Time.Year() }
func (d Date) Month() time.Month     { return d.Time.Month() }
func (d Date) Day() int              { return d.Time.Day() }
func (d Date) Weekday() time.Weekday { return d.Time.Weekday() }
func (d Date) IsZero() bool          { return d.Time.IsZero() }

// IsWeekday reports whether the date is Monday through Friday.
func (d Date) IsWeekday() bool {
	wd := d.Weekday()
	return wd != time.Saturday && wd != time.Sunday
}

func (d Date) String() string { return d.Time.Format("2006-01-02") }

// MarshalJSON encodes as an ISO date string.
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts an ISO date string.
func (d *Date) UnmarshalJSON(data []byte) error {
	s := string(data)
	if len(s) < 2 || s[0] != '"' || s[len(s)-1] != '"' {
		return fmt.Errorf("invalid date literal %s", s)
	}
	parsed, err := Parse(s[1 : len(s)-1])
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Max returns the later of two dates.
func Max(a, b Date) Date {
	if a.After(b) {
		return a
	}
	return b
}

// Min returns the earlier of two dates.
func Min(a, b Date) Date {
	if a.Before(b) {
		return a
	}
	return b
}

// DaysBetween counts whole days from one date to another (positive when
// `to` is later).
func DaysBetween(from, to Date) int {
	return int(to.Time.Sub(from.Time).Hours() / 24)
}

// WeekdayCount counts Monday-Friday days in [from, to] inclusive.
// Returns 0 when from is after to.
func WeekdayCount(from, to Date) int {
	count := 0
	for d := from; d.BeforeOrEqual(to); d = d.AddDays(1) {
		if d.IsWeekday() {
			count++
		}
	}
	return count
}
