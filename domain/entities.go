/*
Package domain holds the shared business entities.

PURPOSE:
  Families, students, teachers, services, enrollments, and teacher
  assignments are referenced by both the payroll and invoicing engines, so
  they live in one place. Fields are reduced to what the calculations touch;
  the persistence layer owns everything else.

NULLABILITY:
  Optional rate and date fields are pointers. A nil rate means "unset"; a
  zero rate means "deliberately zero". The two are never conflated: fallback
  chains check nil and positivity explicitly, never truthiness.

SEE ALSO:
  - payroll: rate resolution and hour proration over TeacherAssignment
  - invoicing: service-specific pricing over Enrollment
*/
package domain

import (
	"errors"

	"github.com/shopspring/decimal"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/money"
)

// =============================================================================
// PEOPLE
// =============================================================================

// Family is the billing party. Invoices are issued per family.
type Family struct {
	ID    string
	Name  string
	Email string
}

// Student belongs to a family and is the subject of enrollments.
type Student struct {
	ID       string
	FamilyID string
	Name     string
}

// Teacher is paid through payroll runs.
type Teacher struct {
	ID   string
	Name string

	// DefaultHourlyRate is the last resort of the pay rate fallback chain.
	// nil = unset.
	DefaultHourlyRate *money.Money
}

// =============================================================================
// SERVICES
// =============================================================================

// BillingFrequency drives which enrollment rate field is authoritative.
type BillingFrequency string

const (
	BillPerSession BillingFrequency = "per_session"
	BillWeekly     BillingFrequency = "weekly"
	BillMonthly    BillingFrequency = "monthly"
	BillBiMonthly  BillingFrequency = "bi_monthly"
	BillAnnual     BillingFrequency = "annual"
	BillOneTime    BillingFrequency = "one_time"
)

// Service codes that trigger special-case pricing.
const (
	CodeAcademicCoaching = "academic_coaching"
	CodeEatonHub         = "eaton_hub"
)

// Service defines billing behavior and default rates for a kind of tuition.
type Service struct {
	ID               string
	Name             string
	Code             string
	BillingFrequency BillingFrequency

	// Defaults used when enrollment/assignment rates are unset. nil = unset.
	DefaultCustomerRate *money.Money
	DefaultTeacherRate  *money.Money
}

// =============================================================================
// ENROLLMENT - A billing relationship
// =============================================================================

// Enrollment ties a student/family to a service. It carries several rate
// fields; only the one selected by the service's billing frequency (or
// special-case code) is authoritative at invoicing time. The others are
// unused or stale.
type Enrollment struct {
	ID        string
	StudentID string
	FamilyID  string
	ServiceID string

	// Rate fields. nil = unset.
	MonthlyRate        *money.Money
	WeeklyTuition      *money.Money
	HourlyRateCustomer *money.Money
	DailyRate          *money.Money

	// HoursPerWeek for coaching-style services. nil = variable/untracked.
	HoursPerWeek *decimal.Decimal

	// ClassTitle is matched against pending registration-fee orders.
	ClassTitle string

	IsActive bool
}

// =============================================================================
// TEACHER ASSIGNMENT - Who teaches what, for how many hours
// =============================================================================

// ErrAssignmentScope is returned when an assignment does not reference
// exactly one of enrollment or service.
var ErrAssignmentScope = errors.New("assignment must reference exactly one of enrollment or service")

// TeacherAssignment links a teacher to either an enrollment
// (student-specific) or a service (general). Exactly one of EnrollmentID /
// ServiceID is set, never both, never neither.
type TeacherAssignment struct {
	ID        string
	TeacherID string

	EnrollmentID *string
	ServiceID    *string

	// HourlyRateTeacher overrides service and teacher defaults. nil = unset.
	HourlyRateTeacher *money.Money

	// HoursPerWeek drives proration. nil = variable/untracked hours, which
	// means "fill in manually", not zero pay.
	HoursPerWeek *decimal.Decimal

	// Active lifetime, inclusive bounds. nil = unbounded on that side.
	StartDate *dates.Date
	EndDate   *dates.Date

	IsActive bool
}

// Validate enforces the exactly-one-scope invariant.
func (a TeacherAssignment) Validate() error {
	if (a.EnrollmentID == nil) == (a.ServiceID == nil) {
		return ErrAssignmentScope
	}
	return nil
}

// IsEnrollmentScoped reports whether the assignment targets a specific
// student enrollment.
func (a TeacherAssignment) IsEnrollmentScoped() bool { return a.EnrollmentID != nil }
