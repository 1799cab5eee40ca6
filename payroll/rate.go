/*
rate.go - Pay rate fallback hierarchy

PURPOSE:
  Resolves the effective hourly pay rate for a teacher assignment. The
  winning level is recorded as a RateSource and persisted on the line item
  so a reviewer can always tell where a rate came from.

FALLBACK ORDER (strict):
  1. assignment.HourlyRateTeacher  (set and > 0)  -> source "assignment"
  2. service.DefaultTeacherRate    (set and > 0)  -> source "service"
  3. teacher.DefaultHourlyRate     (set and > 0)  -> source "teacher"
  4. zero                                          -> source "teacher"

ZERO vs UNSET:
  A rate of exactly 0 at any level falls through to the next level - zero
  is treated the same as unset in the hierarchy. The terminal zero-rate
  outcome is not an error; it is surfaced so a human reviews the line item
  rather than a teacher being silently paid nothing.
*/
package payroll

import (
	"github.com/brightpath/tutorbill/domain"
	"github.com/brightpath/tutorbill/money"
)

// RateSource is the audit tag recording which fallback level produced an
// assignment's effective pay rate.
type RateSource string

const (
	RateFromAssignment RateSource = "assignment"
	RateFromService    RateSource = "service"
	RateFromTeacher    RateSource = "teacher"
)

// ResolveRate walks the fallback hierarchy. service may be nil for
// assignments whose service could not be resolved.
func ResolveRate(a domain.TeacherAssignment, service *domain.Service, teacher domain.Teacher) (money.Money, RateSource) {
	if a.HourlyRateTeacher != nil && a.HourlyRateTeacher.IsPositive() {
		return *a.HourlyRateTeacher, RateFromAssignment
	}
	if service != nil && service.DefaultTeacherRate != nil && service.DefaultTeacherRate.IsPositive() {
		return *service.DefaultTeacherRate, RateFromService
	}
	if teacher.DefaultHourlyRate != nil && teacher.DefaultHourlyRate.IsPositive() {
		return *teacher.DefaultHourlyRate, RateFromTeacher
	}
	return money.Zero, RateFromTeacher
}
