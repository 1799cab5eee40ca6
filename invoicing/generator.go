/*
generator.go - Invoice draft generation

PURPOSE:
  Converts billable enrollments into one draft invoice per family for a
  billing period.

PARTIAL FAILURE POLICY:
  Processing is per-family. A failure while building one family's invoice
  (invoice insert, line item insert, or total update) compensates - deletes
  whatever was partially created for that family - records the failure, and
  moves on to the next family. Only a 100% failure is an error; mixed
  outcomes return both the created invoices and the failure list, so
  callers must treat "call succeeded" and "all invoices generated" as
  separate questions.

REGISTRATION FEES:
  Monthly runs absorb pending registration-fee orders. An order attaches to
  the family invoice when its class title fuzzy-matches (case-insensitive
  substring, either direction) an elective enrollment's class title. Orders
  are marked linked after the invoice is fully created; a linkage failure
  is a warning, never a rollback.
*/
package invoicing

import (
	"context"
	"fmt"
	"sort"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/money"
	"github.com/brightpath/tutorbill/saga"
)

// Generator builds invoice drafts from enrollment state.
type Generator struct {
	Store Store
}

// NewGenerator returns a Generator backed by the given store.
func NewGenerator(store Store) *Generator { return &Generator{Store: store} }

// GenerateOptions controls one draft generation run.
type GenerateOptions struct {
	Period    dates.Period
	IssueDate dates.Date
	DueDate   dates.Date

	// Monthly runs also absorb pending registration-fee orders.
	Monthly bool
}

// FamilyFailure records why one family's invoice could not be created.
type FamilyFailure struct {
	FamilyID string
	Reason   string
}

// DraftResult reports a (possibly partial) generation outcome.
type DraftResult struct {
	Created  []Invoice
	Failures []FamilyFailure
	Warnings []string
}

// GenerateDrafts creates one draft invoice per family with billable
// enrollments. now stamps CreatedAt.
func (g *Generator) GenerateDrafts(ctx context.Context, opts GenerateOptions, now time.Time) (*DraftResult, error) {
	if err := opts.Period.Validate(); err != nil {
		return nil, err
	}

	billables, err := g.Store.BillableEnrollments(ctx)
	if err != nil {
		return nil, fmt.Errorf("loading billable enrollments: %w", err)
	}

	byFamily := map[string][]BillableEnrollment{}
	for _, b := range billables {
		byFamily[b.Family.ID] = append(byFamily[b.Family.ID], b)
	}
	familyIDs := make([]string, 0, len(byFamily))
	for id := range byFamily {
		familyIDs = append(familyIDs, id)
	}
	sort.Strings(familyIDs)

	result := &DraftResult{}
	for _, familyID := range familyIDs {
		inv, warnings, err := g.generateForFamily(ctx, familyID, byFamily[familyID], opts, now)
		result.Warnings = append(result.Warnings, warnings...)
		if err != nil {
			result.Failures = append(result.Failures, FamilyFailure{FamilyID: familyID, Reason: err.Error()})
			continue
		}
		result.Created = append(result.Created, *inv)
	}

	if len(byFamily) > 0 && len(result.Created) == 0 {
		return result, ErrNoFamiliesBilled
	}
	return result, nil
}

func (g *Generator) generateForFamily(ctx context.Context, familyID string, billables []BillableEnrollment, opts GenerateOptions, now time.Time) (*Invoice, []string, error) {
	period := opts.Period
	inv := &Invoice{
		ID:        uuid.NewString(),
		FamilyID:  familyID,
		Number:    newInvoiceNumber(),
		Period:    &period,
		IssueDate: opts.IssueDate,
		DueDate:   opts.DueDate,
		Status:    StatusDraft,
		CreatedAt: now,
	}

	var items []InvoiceLineItem
	for _, b := range billables {
		priced := PriceEnrollment(b.Enrollment, b.Service)
		enrollmentID := b.Enrollment.ID
		items = append(items, InvoiceLineItem{
			ID:           uuid.NewString(),
			InvoiceID:    inv.ID,
			EnrollmentID: &enrollmentID,
			Description:  priced.Description,
			Quantity:     priced.Quantity,
			UnitPrice:    priced.UnitPrice,
			Amount:       priced.Amount,
		})
	}

	// Monthly runs absorb pending registration fees whose class title
	// matches an elective enrollment.
	var absorbed []AdHocOrder
	var warnings []string
	if opts.Monthly {
		orders, err := g.Store.PendingOrdersForFamily(ctx, familyID)
		if err != nil {
			warnings = append(warnings, fmt.Sprintf("family %s: could not load pending registration fees: %v", familyID, err))
		} else {
			for _, order := range orders {
				if !matchesEnrollmentClass(order, billables) {
					continue
				}
				items = append(items, InvoiceLineItem{
					ID:          uuid.NewString(),
					InvoiceID:   inv.ID,
					Description: "Registration fee - " + order.ClassTitle,
					Quantity:    one,
					UnitPrice:   order.Amount,
					Amount:      order.Amount,
				})
				absorbed = append(absorbed, order)
			}
		}
	}

	comp := saga.New()
	if err := g.Store.InsertInvoice(ctx, inv); err != nil {
		return nil, warnings, fmt.Errorf("inserting invoice: %w", err)
	}
	comp.Add("delete invoice "+inv.ID, func(ctx context.Context) error {
		return g.Store.DeleteInvoice(ctx, inv.ID)
	})

	if err := g.Store.InsertInvoiceLineItems(ctx, items); err != nil {
		warnings = appendErrors(warnings, comp.Compensate(ctx))
		return nil, warnings, fmt.Errorf("inserting line items: %w", err)
	}
	comp.Add("delete line items for invoice "+inv.ID, func(ctx context.Context) error {
		return g.Store.DeleteLineItemsForInvoice(ctx, inv.ID)
	})

	amounts := make([]money.Money, len(items))
	for i, li := range items {
		amounts[i] = li.Amount
	}
	inv.Subtotal = money.Sum(amounts...)
	inv.TotalAmount = inv.Subtotal
	if err := g.Store.UpdateInvoice(ctx, inv); err != nil {
		warnings = appendErrors(warnings, comp.Compensate(ctx))
		return nil, warnings, fmt.Errorf("updating invoice totals: %w", err)
	}
	comp.Discard()

	// Secondary effect: mark absorbed orders as linked. Failures are
	// warnings; the invoice already carries the fee.
	for _, order := range absorbed {
		if err := g.Store.LinkOrderToInvoice(ctx, order.ID, inv.ID); err != nil {
			warnings = append(warnings, fmt.Sprintf("invoice %s: registration order %s billed but not marked linked: %v", inv.Number, order.ID, err))
		}
	}

	return inv, warnings, nil
}

// matchesEnrollmentClass applies the fuzzy title match: case-insensitive
// substring in either direction against elective enrollments.
func matchesEnrollmentClass(order AdHocOrder, billables []BillableEnrollment) bool {
	title := strings.ToLower(strings.TrimSpace(order.ClassTitle))
	if title == "" {
		return false
	}
	for _, b := range billables {
		class := strings.ToLower(strings.TrimSpace(b.Enrollment.ClassTitle))
		if class == "" {
			continue
		}
		if strings.Contains(class, title) || strings.Contains(title, class) {
			return true
		}
	}
	return false
}

func appendErrors(warnings []string, errs []error) []string {
	for _, err := range errs {
		warnings = append(warnings, err.Error())
	}
	return warnings
}

func newInvoiceNumber() string {
	return "INV-" + strings.ToUpper(uuid.NewString()[:8])
}
