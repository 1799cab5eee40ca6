/*
Package invoicing generates, consolidates, and reconciles family invoices.

PURPOSE:
  Converts billable enrollments into per-family invoice drafts using
  service-specific pricing rules, merges outstanding invoices into
  consolidated bills, and keeps cached payment aggregates repairable.

KEY CONCEPTS:
  Invoice:         per-family bill with cached amount_paid/balance fields
  InvoiceLineItem: one charge; amount is authoritative, quantity and unit
                   price are presentation (not every path keeps
                   amount == quantity x unit_price)
  Payment:         a recorded payment row; the source of truth the cached
                   aggregates can be repaired from
  AdHocOrder:      a registration-fee charge awaiting absorption into a
                   monthly invoice

SEE ALSO:
  - pricing.go: per-enrollment billed-amount rules
  - generator.go: per-family draft generation with partial failure
  - consolidate.go: merging outstanding invoices
  - payments.go: payment recording and balance repair
*/
package invoicing

import (
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/money"
)

// =============================================================================
// ERRORS
// =============================================================================

var (
	// ErrTooFewInvoices is returned when consolidating fewer than two invoices.
	ErrTooFewInvoices = errors.New("consolidation requires at least two invoices")

	// ErrCrossFamilyConsolidation is returned when selected invoices span
	// more than one family.
	ErrCrossFamilyConsolidation = errors.New("cannot consolidate invoices across families")

	// ErrNotOutstanding is returned when a selected invoice is not in an
	// outstanding status (sent, partial, overdue).
	ErrNotOutstanding = errors.New("only outstanding invoices can be consolidated")

	// ErrInvoiceNotFound is returned for unknown invoice IDs.
	ErrInvoiceNotFound = errors.New("invoice not found")

	// ErrInvoiceVoid is returned when editing line items of a void invoice.
	ErrInvoiceVoid = errors.New("invoice is void")

	// ErrNoFamiliesBilled is returned when draft generation fails for every
	// family. Partial failure is NOT an error; see DraftResult.
	ErrNoFamiliesBilled = errors.New("draft generation failed for all families")
)

// =============================================================================
// INVOICE
// =============================================================================

type InvoiceStatus string

const (
	StatusDraft   InvoiceStatus = "draft"
	StatusSent    InvoiceStatus = "sent"
	StatusPaid    InvoiceStatus = "paid"
	StatusPartial InvoiceStatus = "partial"
	StatusOverdue InvoiceStatus = "overdue"
	StatusVoid    InvoiceStatus = "void"
)

// Outstanding reports whether the invoice still carries collectible debt.
func (s InvoiceStatus) Outstanding() bool {
	return s == StatusSent || s == StatusPartial || s == StatusOverdue
}

// Invoice is a per-family bill. AmountPaid and the derived balance are
// cached aggregates over payment rows; RecalculateBalance repairs drift.
type Invoice struct {
	ID       string
	FamilyID string
	Number   string

	// Period is the billing span. nil for ad-hoc invoices.
	Period    *dates.Period
	IssueDate dates.Date
	DueDate   dates.Date

	Subtotal    money.Money
	TotalAmount money.Money
	AmountPaid  money.Money
	Status      InvoiceStatus

	// ConsolidatedInto points to the replacement invoice when this one was
	// voided by consolidation.
	ConsolidatedInto *string

	CreatedAt time.Time
}

// BalanceDue is always derived, never stored.
func (i *Invoice) BalanceDue() money.Money { return i.TotalAmount.Sub(i.AmountPaid) }

// applyPaymentTotal sets AmountPaid (capped at TotalAmount) and derives
// the paid/partial status. Void invoices are never touched.
func (i *Invoice) applyPaymentTotal(paid money.Money) {
	if i.Status == StatusVoid {
		return
	}
	i.AmountPaid = money.Min(paid, i.TotalAmount)
	switch {
	case i.TotalAmount.IsPositive() && i.AmountPaid.Cents() >= i.TotalAmount.Cents():
		i.Status = StatusPaid
	case i.AmountPaid.IsPositive():
		i.Status = StatusPartial
	}
}

// =============================================================================
// LINE ITEMS
// =============================================================================

// InvoiceLineItem is one charge on an invoice. Amount is the authoritative
// billed value; Quantity and UnitPrice describe it for the reader. Custom
// overrides may set Amount independently, so amount == quantity x unit_price
// is not a system-wide invariant.
type InvoiceLineItem struct {
	ID        string
	InvoiceID string

	// EnrollmentID is nil for ad-hoc, registration-fee, and consolidated
	// history items.
	EnrollmentID *string

	Description string
	Quantity    decimal.Decimal
	UnitPrice   money.Money
	Amount      money.Money
}

// =============================================================================
// PAYMENTS
// =============================================================================

// Payment is a recorded payment against an invoice.
type Payment struct {
	ID        string
	InvoiceID string
	Amount    money.Money
	PaidAt    dates.Date
	Method    string
	Note      string
}

// =============================================================================
// AD-HOC ORDERS (registration fees, event orders)
// =============================================================================

// AdHocOrder is a one-off charge (typically a class registration fee)
// raised outside the enrollment billing cycle. InvoiceID stays nil until a
// monthly draft run absorbs it.
type AdHocOrder struct {
	ID         string
	FamilyID   string
	ClassTitle string
	Amount     money.Money
	InvoiceID  *string
	CreatedAt  time.Time
}

// Pending reports whether the order has not been attached to an invoice.
func (o AdHocOrder) Pending() bool { return o.InvoiceID == nil }
