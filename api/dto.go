/*
dto.go - Data Transfer Objects for API requests and responses

PURPOSE:
  Defines the JSON structures for API communication. These types decouple
  the internal domain model from the external API contract, allowing:
  - Field renaming without breaking clients
  - API-specific validation
  - Version evolution

NAMING CONVENTION:
  - *DTO: Response types returned to clients
  - *Request: Request body types from clients

WIRE FORMATS:
  Money fields serialize as 2-decimal dollar numbers, dates as
  "YYYY-MM-DD" strings, hour quantities as decimal strings. Request
  bodies carry dollar amounts as numbers and dates as strings.

VALIDATION:
  Struct tags drive go-playground/validator; handlers call validate()
  before touching domain logic.

SEE ALSO:
  - handlers.go: Uses these types
  - server.go: Route wiring
*/
package api

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/invoicing"
	"github.com/brightpath/tutorbill/money"
	"github.com/brightpath/tutorbill/payroll"
)

// ErrorResponse is the JSON error envelope.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// =============================================================================
// PAYROLL TYPES
// =============================================================================

// CreateRunRequest starts a payroll run for a period.
type CreateRunRequest struct {
	PeriodStart string `json:"period_start" validate:"required,datetime=2006-01-02"`
	PeriodEnd   string `json:"period_end" validate:"required,datetime=2006-01-02"`
}

// RunDTO represents a payroll run in API responses.
type RunDTO struct {
	ID              string          `json:"id"`
	PeriodStart     dates.Date      `json:"period_start"`
	PeriodEnd       dates.Date      `json:"period_end"`
	Status          string          `json:"status"`
	TotalCalculated money.Money     `json:"total_calculated"`
	TotalAdjusted   money.Money     `json:"total_adjusted"`
	TotalHours      decimal.Decimal `json:"total_hours"`
	TeacherCount    int             `json:"teacher_count"`
	ApprovedBy      string          `json:"approved_by,omitempty"`
	ApprovedAt      *time.Time      `json:"approved_at,omitempty"`
	PaidAt          *time.Time      `json:"paid_at,omitempty"`
	Warnings        []string        `json:"warnings,omitempty"`
}

// RunItemDTO represents one payroll line item.
type RunItemDTO struct {
	ID               string          `json:"id"`
	TeacherID        string          `json:"teacher_id"`
	AssignmentID     *string         `json:"assignment_id,omitempty"`
	Description      string          `json:"description"`
	CalculatedHours  decimal.Decimal `json:"calculated_hours"`
	ActualHours      decimal.Decimal `json:"actual_hours"`
	IsVariable       bool            `json:"is_variable"`
	HourlyRate       money.Money     `json:"hourly_rate"`
	RateSource       string          `json:"rate_source"`
	CalculatedAmount money.Money     `json:"calculated_amount"`
	AdjustmentAmount money.Money     `json:"adjustment_amount"`
	AdjustmentNote   string          `json:"adjustment_note,omitempty"`
	FinalAmount      money.Money     `json:"final_amount"`
}

// OverrideHoursRequest sets a line item's actual hours.
type OverrideHoursRequest struct {
	Hours string `json:"hours" validate:"required"`
}

// SetAdjustmentRequest sets a line item's adjustment. Amount is a pointer
// so an explicit zero (clearing the adjustment) passes the presence check.
type SetAdjustmentRequest struct {
	Amount *float64 `json:"amount" validate:"required"`
	Note   string   `json:"note"`
}

// BulkHoursRequest keys in hours for several teachers at once.
type BulkHoursRequest struct {
	TeacherIDs []string `json:"teacher_ids" validate:"required,min=1"`
	Hours      string   `json:"hours" validate:"required"`
}

// ManualItemRequest adds an ad-hoc payroll line item.
type ManualItemRequest struct {
	TeacherID   string  `json:"teacher_id" validate:"required"`
	Description string  `json:"description" validate:"required"`
	Hours       string  `json:"hours" validate:"required"`
	HourlyRate  float64 `json:"hourly_rate" validate:"gte=0"`
}

// CreateAdjustmentRequest records a carry-forward credit/debit.
type CreateAdjustmentRequest struct {
	TeacherID   string  `json:"teacher_id" validate:"required"`
	Amount      float64 `json:"amount" validate:"required"`
	Note        string  `json:"note"`
	SourceRunID *string `json:"source_run_id,omitempty"`
}

// AdvanceStatusRequest moves a run one lifecycle step forward.
type AdvanceStatusRequest struct {
	Status string `json:"status" validate:"required,oneof=review approved paid"`
}

// WorkloadDTO summarizes a teacher's weekly commitment.
type WorkloadDTO struct {
	TeacherID       string          `json:"teacher_id"`
	TeacherName     string          `json:"teacher_name"`
	WeeklyHours     decimal.Decimal `json:"weekly_hours"`
	AssignmentCount int             `json:"assignment_count"`
	VariableCount   int             `json:"variable_count"`
}

// =============================================================================
// INVOICING TYPES
// =============================================================================

// GenerateDraftsRequest starts an invoice draft run.
type GenerateDraftsRequest struct {
	PeriodStart string `json:"period_start" validate:"required,datetime=2006-01-02"`
	PeriodEnd   string `json:"period_end" validate:"required,datetime=2006-01-02"`
	IssueDate   string `json:"issue_date" validate:"required,datetime=2006-01-02"`
	DueDate     string `json:"due_date" validate:"required,datetime=2006-01-02"`
	Monthly     bool   `json:"monthly"`
}

// InvoiceDTO represents an invoice in API responses.
type InvoiceDTO struct {
	ID               string      `json:"id"`
	FamilyID         string      `json:"family_id"`
	Number           string      `json:"number"`
	PeriodStart      *dates.Date `json:"period_start,omitempty"`
	PeriodEnd        *dates.Date `json:"period_end,omitempty"`
	IssueDate        dates.Date  `json:"issue_date"`
	DueDate          dates.Date  `json:"due_date"`
	Subtotal         money.Money `json:"subtotal"`
	TotalAmount      money.Money `json:"total_amount"`
	AmountPaid       money.Money `json:"amount_paid"`
	BalanceDue       money.Money `json:"balance_due"`
	Status           string      `json:"status"`
	ConsolidatedInto *string     `json:"consolidated_into,omitempty"`
}

// InvoiceItemDTO represents one invoice line item.
type InvoiceItemDTO struct {
	ID           string          `json:"id"`
	EnrollmentID *string         `json:"enrollment_id,omitempty"`
	Description  string          `json:"description"`
	Quantity     decimal.Decimal `json:"quantity"`
	UnitPrice    money.Money     `json:"unit_price"`
	Amount       money.Money     `json:"amount"`
}

// DraftResultDTO reports a (possibly partial) generation outcome.
type DraftResultDTO struct {
	Created  []InvoiceDTO    `json:"created"`
	Failures []FamilyFailure `json:"failures,omitempty"`
	Warnings []string        `json:"warnings,omitempty"`
}

// FamilyFailure mirrors invoicing.FamilyFailure on the wire.
type FamilyFailure struct {
	FamilyID string `json:"family_id"`
	Reason   string `json:"reason"`
}

// ConsolidateRequest merges outstanding invoices.
type ConsolidateRequest struct {
	InvoiceIDs []string `json:"invoice_ids" validate:"required,min=2"`
	IssueDate  string   `json:"issue_date" validate:"required,datetime=2006-01-02"`
}

// RecordPaymentRequest records a payment against an invoice.
type RecordPaymentRequest struct {
	Amount float64 `json:"amount" validate:"required,gt=0"`
	PaidAt string  `json:"paid_at" validate:"required,datetime=2006-01-02"`
	Method string  `json:"method"`
	Note   string  `json:"note"`
}

// InvoiceItemRequest adds or updates an invoice line item. Amount is a
// pointer so an explicit zero (a comped item) passes the presence check.
type InvoiceItemRequest struct {
	Description string   `json:"description" validate:"required"`
	Amount      *float64 `json:"amount" validate:"required"`
}

// ReminderResultDTO reports a bulk reminder send.
type ReminderResultDTO struct {
	Sent   int      `json:"sent"`
	Failed []string `json:"failed,omitempty"`
}

// =============================================================================
// CONVERSIONS
// =============================================================================

func runDTO(run *payroll.PayrollRun, warnings []string) RunDTO {
	return RunDTO{
		ID:              run.ID,
		PeriodStart:     run.Period.Start,
		PeriodEnd:       run.Period.End,
		Status:          string(run.Status),
		TotalCalculated: run.TotalCalculated,
		TotalAdjusted:   run.TotalAdjusted,
		TotalHours:      run.TotalHours,
		TeacherCount:    run.TeacherCount,
		ApprovedBy:      run.ApprovedBy,
		ApprovedAt:      run.ApprovedAt,
		PaidAt:          run.PaidAt,
		Warnings:        warnings,
	}
}

func runItemDTO(item payroll.PayrollLineItem) RunItemDTO {
	return RunItemDTO{
		ID:               item.ID,
		TeacherID:        item.TeacherID,
		AssignmentID:     item.AssignmentID,
		Description:      item.Description,
		CalculatedHours:  item.CalculatedHours,
		ActualHours:      item.ActualHours,
		IsVariable:       item.IsVariable,
		HourlyRate:       item.HourlyRate,
		RateSource:       string(item.RateSource),
		CalculatedAmount: item.CalculatedAmount,
		AdjustmentAmount: item.AdjustmentAmount,
		AdjustmentNote:   item.AdjustmentNote,
		FinalAmount:      item.FinalAmount,
	}
}

func invoiceDTO(inv *invoicing.Invoice) InvoiceDTO {
	dto := InvoiceDTO{
		ID:               inv.ID,
		FamilyID:         inv.FamilyID,
		Number:           inv.Number,
		IssueDate:        inv.IssueDate,
		DueDate:          inv.DueDate,
		Subtotal:         inv.Subtotal,
		TotalAmount:      inv.TotalAmount,
		AmountPaid:       inv.AmountPaid,
		BalanceDue:       inv.BalanceDue(),
		Status:           string(inv.Status),
		ConsolidatedInto: inv.ConsolidatedInto,
	}
	if inv.Period != nil {
		dto.PeriodStart = &inv.Period.Start
		dto.PeriodEnd = &inv.Period.End
	}
	return dto
}

func invoiceItemDTO(item invoicing.InvoiceLineItem) InvoiceItemDTO {
	return InvoiceItemDTO{
		ID:           item.ID,
		EnrollmentID: item.EnrollmentID,
		Description:  item.Description,
		Quantity:     item.Quantity,
		UnitPrice:    item.UnitPrice,
		Amount:       item.Amount,
	}
}
