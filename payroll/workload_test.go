package payroll_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath/tutorbill/domain"
	"github.com/brightpath/tutorbill/payroll"
)

func TestAggregateWorkload_RollsUpByTeacher(t *testing.T) {
	// GIVEN: Alice with 10 + 4 tracked hours, Bob with one tracked and one
	// variable assignment
	alice := domain.Teacher{ID: "t-alice", Name: "Alice"}
	bob := domain.Teacher{ID: "t-bob", Name: "Bob"}

	assignments := []payroll.AssignmentContext{
		{Teacher: alice, Assignment: domain.TeacherAssignment{ID: "a1", TeacherID: "t-alice", HoursPerWeek: decPtr("10")}},
		{Teacher: alice, Assignment: domain.TeacherAssignment{ID: "a2", TeacherID: "t-alice", HoursPerWeek: decPtr("4")}},
		{Teacher: bob, Assignment: domain.TeacherAssignment{ID: "a3", TeacherID: "t-bob", HoursPerWeek: decPtr("6")}},
		{Teacher: bob, Assignment: domain.TeacherAssignment{ID: "a4", TeacherID: "t-bob"}},
	}

	// WHEN: aggregating
	workloads := payroll.AggregateWorkload(assignments)

	// THEN: teachers are ordered by descending weekly hours
	require.Len(t, workloads, 2)
	assert.Equal(t, "t-alice", workloads[0].TeacherID)
	assert.Equal(t, "14", workloads[0].WeeklyHours.String())
	assert.Equal(t, 2, workloads[0].AssignmentCount)
	assert.Equal(t, 0, workloads[0].VariableCount)

	// AND: variable assignments count but do not add hours
	assert.Equal(t, "t-bob", workloads[1].TeacherID)
	assert.Equal(t, "6", workloads[1].WeeklyHours.String())
	assert.Equal(t, 2, workloads[1].AssignmentCount)
	assert.Equal(t, 1, workloads[1].VariableCount)
}

func TestAggregateWorkload_EmptyInput(t *testing.T) {
	assert.Empty(t, payroll.AggregateWorkload(nil))
}
