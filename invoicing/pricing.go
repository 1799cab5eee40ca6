/*
pricing.go - Service-specific billed-amount rules

PURPOSE:
  Computes the amount billed for one enrollment in one billing cycle. The
  rules are checked in a fixed order; the first match wins:

  1. academic_coaching services ALWAYS bill hours_per_week x
     hourly_rate_customer, regardless of billing frequency.
  2. eaton_hub services and any per_session frequency bill the daily rate,
     or a fixed $100 default when unset.
  3. weekly frequency bills the weekly tuition (or 0).
  4. everything else (monthly, bi_monthly, annual, one_time) bills the
     monthly rate (or 0).

  Amounts are normative. Quantity/unit-price/description are presentation
  and may change without affecting what a family owes.

ZERO vs UNSET:
  Rate fields are nullable; nil means unset and selects the fallback (or a
  zero amount). An explicitly zero rate bills zero - it is never replaced
  by a default.
*/
package invoicing

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/brightpath/tutorbill/domain"
	"github.com/brightpath/tutorbill/money"
)

// DefaultSessionRate is billed for per-session services with no daily rate.
var DefaultSessionRate = money.FromDollars(100)

var one = decimal.NewFromInt(1)

// PricedLine is the billed amount plus its line item presentation.
type PricedLine struct {
	Description string
	Quantity    decimal.Decimal
	UnitPrice   money.Money
	Amount      money.Money
}

// PriceEnrollment applies the pricing rules for one enrollment.
func PriceEnrollment(e domain.Enrollment, svc domain.Service) PricedLine {
	// Rule 1: coaching is always hours x hourly rate.
	if svc.Code == domain.CodeAcademicCoaching {
		hours := decimal.Zero
		if e.HoursPerWeek != nil {
			hours = *e.HoursPerWeek
		}
		rate := money.Zero
		if e.HourlyRateCustomer != nil {
			rate = *e.HourlyRateCustomer
		}
		return PricedLine{
			Description: fmt.Sprintf("%s (%s hrs x %s/hr)", svc.Name, hours.String(), rate),
			Quantity:    hours,
			UnitPrice:   rate,
			Amount:      rate.MulDecimal(hours),
		}
	}

	// Rule 2: hub services and per-session billing use the daily rate.
	if svc.Code == domain.CodeEatonHub || svc.BillingFrequency == domain.BillPerSession {
		rate := DefaultSessionRate
		if e.DailyRate != nil {
			rate = *e.DailyRate
		}
		return PricedLine{
			Description: svc.Name + " - session",
			Quantity:    one,
			UnitPrice:   rate,
			Amount:      rate,
		}
	}

	// Rule 3: weekly tuition.
	if svc.BillingFrequency == domain.BillWeekly {
		rate := money.Zero
		if e.WeeklyTuition != nil {
			rate = *e.WeeklyTuition
		}
		return PricedLine{
			Description: svc.Name + " - weekly tuition",
			Quantity:    one,
			UnitPrice:   rate,
			Amount:      rate,
		}
	}

	// Rule 4: monthly-style billing (monthly, bi_monthly, annual, one_time).
	rate := money.Zero
	if e.MonthlyRate != nil {
		rate = *e.MonthlyRate
	}
	return PricedLine{
		Description: fmt.Sprintf("%s - %s tuition", svc.Name, svc.BillingFrequency),
		Quantity:    one,
		UnitPrice:   rate,
		Amount:      rate,
	}
}
