package payroll_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/brightpath/tutorbill/domain"
	"github.com/brightpath/tutorbill/money"
	"github.com/brightpath/tutorbill/payroll"
)

func mPtr(m money.Money) *money.Money { return &m }

func TestResolveRate_FallbackOrder(t *testing.T) {
	service := &domain.Service{ID: "svc-1", DefaultTeacherRate: mPtr(money.FromDollars(30))}
	teacher := domain.Teacher{ID: "t-1", DefaultHourlyRate: mPtr(money.FromDollars(20))}

	tests := []struct {
		name       string
		assignment domain.TeacherAssignment
		service    *domain.Service
		teacher    domain.Teacher
		wantRate   money.Money
		wantSource payroll.RateSource
	}{
		{
			"assignment rate wins",
			domain.TeacherAssignment{HourlyRateTeacher: mPtr(money.FromDollars(45))},
			service, teacher,
			money.FromDollars(45), payroll.RateFromAssignment,
		},
		{
			"unset assignment falls to service",
			domain.TeacherAssignment{},
			service, teacher,
			money.FromDollars(30), payroll.RateFromService,
		},
		{
			"zero assignment rate falls through, not treated as set",
			domain.TeacherAssignment{HourlyRateTeacher: mPtr(money.FromDollars(0))},
			service, teacher,
			money.FromDollars(30), payroll.RateFromService,
		},
		{
			"unset service falls to teacher default",
			domain.TeacherAssignment{},
			&domain.Service{ID: "svc-2"}, teacher,
			money.FromDollars(20), payroll.RateFromTeacher,
		},
		{
			"zero service rate falls through",
			domain.TeacherAssignment{},
			&domain.Service{ID: "svc-2", DefaultTeacherRate: mPtr(money.FromDollars(0))}, teacher,
			money.FromDollars(20), payroll.RateFromTeacher,
		},
		{
			"nil service falls to teacher default",
			domain.TeacherAssignment{},
			nil, teacher,
			money.FromDollars(20), payroll.RateFromTeacher,
		},
		{
			"nothing set resolves to explicit zero with teacher source",
			domain.TeacherAssignment{},
			&domain.Service{ID: "svc-2"}, domain.Teacher{ID: "t-2"},
			money.Zero, payroll.RateFromTeacher,
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rate, source := payroll.ResolveRate(tc.assignment, tc.service, tc.teacher)
			assert.Equal(t, tc.wantRate, rate)
			assert.Equal(t, tc.wantSource, source)
		})
	}
}

func TestResolveRate_NegativeRatesNeverWin(t *testing.T) {
	// A negative stored rate is bad data; it must fall through like unset.
	teacher := domain.Teacher{ID: "t-1", DefaultHourlyRate: mPtr(money.FromDollars(20))}
	a := domain.TeacherAssignment{HourlyRateTeacher: mPtr(money.FromDollars(-5))}
	rate, source := payroll.ResolveRate(a, nil, teacher)
	assert.Equal(t, money.FromDollars(20), rate)
	assert.Equal(t, payroll.RateFromTeacher, source)
}
