package payroll

import (
	"sort"

	"github.com/shopspring/decimal"
)

// =============================================================================
// WORKLOAD AGGREGATION - Weekly committed hours per teacher
// =============================================================================

// TeacherWorkload summarizes a teacher's weekly commitment across active
// assignments.
type TeacherWorkload struct {
	TeacherID   string
	TeacherName string

	// WeeklyHours sums tracked hours-per-week figures.
	WeeklyHours decimal.Decimal

	// AssignmentCount is the number of active assignments.
	AssignmentCount int

	// VariableCount is how many of those have untracked hours and are
	// therefore NOT reflected in WeeklyHours.
	VariableCount int
}

// AggregateWorkload rolls up active assignments by teacher, ordered by
// descending weekly hours.
func AggregateWorkload(assignments []AssignmentContext) []TeacherWorkload {
	byTeacher := map[string]*TeacherWorkload{}
	for _, actx := range assignments {
		w, ok := byTeacher[actx.Teacher.ID]
		if !ok {
			w = &TeacherWorkload{
				TeacherID:   actx.Teacher.ID,
				TeacherName: actx.Teacher.Name,
				WeeklyHours: decimal.Zero,
			}
			byTeacher[actx.Teacher.ID] = w
		}
		w.AssignmentCount++
		if actx.Assignment.HoursPerWeek == nil {
			w.VariableCount++
			continue
		}
		w.WeeklyHours = w.WeeklyHours.Add(*actx.Assignment.HoursPerWeek)
	}

	out := make([]TeacherWorkload, 0, len(byTeacher))
	for _, w := range byTeacher {
		out = append(out, *w)
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].WeeklyHours.Equal(out[j].WeeklyHours) {
			return out[i].WeeklyHours.GreaterThan(out[j].WeeklyHours)
		}
		return out[i].TeacherID < out[j].TeacherID
	})
	return out
}
