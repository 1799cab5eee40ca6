package invoicing_test

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/domain"
	"github.com/brightpath/tutorbill/invoicing"
	"github.com/brightpath/tutorbill/money"
)

// =============================================================================
// TEST HELPERS
// =============================================================================

func d(y int, m time.Month, day int) dates.Date { return dates.New(y, m, day) }

func mPtr(m money.Money) *money.Money { return &m }

func decPtr(s string) *decimal.Decimal {
	v, err := decimal.NewFromString(s)
	if err != nil {
		panic(err)
	}
	return &v
}

func coachingService() domain.Service {
	return domain.Service{
		ID:               "svc-coach",
		Name:             "Academic Coaching",
		Code:             domain.CodeAcademicCoaching,
		BillingFrequency: domain.BillMonthly,
	}
}

// =============================================================================
// PRICING TESTS
// =============================================================================

func TestPriceEnrollment_CoachingIgnoresBillingFrequency(t *testing.T) {
	// GIVEN: an academic coaching enrollment, 5 hrs/week at $40/hr
	// THEN: the bill is 5 x $40 = $200 under EVERY billing frequency
	e := domain.Enrollment{
		HoursPerWeek:       decPtr("5"),
		HourlyRateCustomer: mPtr(money.FromDollars(40)),
		// Stale rate fields that must never win for coaching.
		MonthlyRate:   mPtr(money.FromDollars(999)),
		WeeklyTuition: mPtr(money.FromDollars(888)),
	}

	frequencies := []domain.BillingFrequency{
		domain.BillPerSession, domain.BillWeekly, domain.BillMonthly,
		domain.BillBiMonthly, domain.BillAnnual, domain.BillOneTime,
	}
	for _, freq := range frequencies {
		svc := coachingService()
		svc.BillingFrequency = freq

		priced := invoicing.PriceEnrollment(e, svc)
		assert.Equal(t, money.FromDollars(200), priced.Amount, "frequency %s", freq)
		assert.Equal(t, money.FromDollars(40), priced.UnitPrice, "frequency %s", freq)
	}
}

func TestPriceEnrollment_CoachingUnsetFieldsBillZero(t *testing.T) {
	// GIVEN: coaching with no hours or no rate
	// THEN: zero amount, never a fallback to another rate field
	svc := coachingService()

	noHours := domain.Enrollment{HourlyRateCustomer: mPtr(money.FromDollars(40))}
	assert.True(t, invoicing.PriceEnrollment(noHours, svc).Amount.IsZero())

	noRate := domain.Enrollment{HoursPerWeek: decPtr("5")}
	assert.True(t, invoicing.PriceEnrollment(noRate, svc).Amount.IsZero())
}

func TestPriceEnrollment_PerSessionUsesDailyRate(t *testing.T) {
	// GIVEN: a per_session service
	svc := domain.Service{ID: "svc-1", Name: "Drop-in", BillingFrequency: domain.BillPerSession}

	// WHEN: the enrollment has a daily rate
	withRate := domain.Enrollment{DailyRate: mPtr(money.FromDollars(75))}
	assert.Equal(t, money.FromDollars(75), invoicing.PriceEnrollment(withRate, svc).Amount)

	// WHEN: the daily rate is unset
	// THEN: the $100 default applies
	assert.Equal(t, invoicing.DefaultSessionRate, invoicing.PriceEnrollment(domain.Enrollment{}, svc).Amount)

	// WHEN: the daily rate is explicitly zero
	// THEN: zero is billed, not the default
	zeroRate := domain.Enrollment{DailyRate: mPtr(money.Zero)}
	assert.True(t, invoicing.PriceEnrollment(zeroRate, svc).Amount.IsZero())
}

func TestPriceEnrollment_HubServiceBillsSessionRateRegardlessOfFrequency(t *testing.T) {
	// GIVEN: an eaton_hub service configured as monthly
	svc := domain.Service{
		ID:               "svc-hub",
		Name:             "Eaton Hub",
		Code:             domain.CodeEatonHub,
		BillingFrequency: domain.BillMonthly,
	}
	e := domain.Enrollment{
		DailyRate:   mPtr(money.FromDollars(60)),
		MonthlyRate: mPtr(money.FromDollars(999)),
	}

	// THEN: the session rate wins over the monthly rate
	assert.Equal(t, money.FromDollars(60), invoicing.PriceEnrollment(e, svc).Amount)
}

func TestPriceEnrollment_WeeklyAndMonthlyFallbacks(t *testing.T) {
	weekly := domain.Service{ID: "svc-w", Name: "Weekly Tutoring", BillingFrequency: domain.BillWeekly}
	monthly := domain.Service{ID: "svc-m", Name: "Tuition", BillingFrequency: domain.BillMonthly}

	// Weekly uses weekly_tuition, 0 when unset.
	assert.Equal(t, money.FromDollars(120),
		invoicing.PriceEnrollment(domain.Enrollment{WeeklyTuition: mPtr(money.FromDollars(120))}, weekly).Amount)
	assert.True(t, invoicing.PriceEnrollment(domain.Enrollment{}, weekly).Amount.IsZero())

	// Monthly-style frequencies use monthly_rate, 0 when unset.
	assert.Equal(t, money.FromDollars(450),
		invoicing.PriceEnrollment(domain.Enrollment{MonthlyRate: mPtr(money.FromDollars(450))}, monthly).Amount)
	assert.True(t, invoicing.PriceEnrollment(domain.Enrollment{}, monthly).Amount.IsZero())

	// bi_monthly, annual, and one_time all take the monthly-rate path.
	for _, freq := range []domain.BillingFrequency{domain.BillBiMonthly, domain.BillAnnual, domain.BillOneTime} {
		svc := domain.Service{ID: "svc-x", Name: "Program", BillingFrequency: freq}
		e := domain.Enrollment{MonthlyRate: mPtr(money.FromDollars(300))}
		assert.Equal(t, money.FromDollars(300), invoicing.PriceEnrollment(e, svc).Amount, "frequency %s", freq)
	}
}
