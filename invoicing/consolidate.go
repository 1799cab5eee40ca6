/*
consolidate.go - Merging outstanding invoices

PURPOSE:
  Merges two or more outstanding invoices for one family into a single
  replacement invoice, preserving total monetary value.

RULES:
  - Validations run before any write: >= 2 invoices, one family, all in an
    outstanding status (sent, partial, overdue).
  - The new invoice spans earliest period_start to latest period_end and
    takes the EARLIEST due date - consolidating must not dilute the
    oldest debt's urgency.
  - Line items are copied from the sources in period order, each prefixed
    with its source period label (or invoice number when the source has no
    period) so the consolidated bill stays auditable per period.
  - Payments are MOVED, never copied. Double counting a payment is worse
    than any failure mode here.
  - Sources are voided and their amount_paid reset to 0 only after the new
    invoice is created and totaled. A failure while voiding is reported as
    a warning, not rolled back: the consolidated invoice already exists
    and is correct.
*/
package invoicing

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/google/uuid"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/money"
	"github.com/brightpath/tutorbill/saga"
)

// Consolidator merges outstanding invoices.
type Consolidator struct {
	Store Store
}

// NewConsolidator returns a Consolidator backed by the given store.
func NewConsolidator(store Store) *Consolidator { return &Consolidator{Store: store} }

// ConsolidationResult is the outcome of a merge.
type ConsolidationResult struct {
	Invoice  *Invoice
	Warnings []string
}

// Consolidate merges the given invoices into one new invoice.
func (c *Consolidator) Consolidate(ctx context.Context, invoiceIDs []string, issueDate dates.Date, now time.Time) (*ConsolidationResult, error) {
	if len(invoiceIDs) < 2 {
		return nil, ErrTooFewInvoices
	}

	sources := make([]*Invoice, 0, len(invoiceIDs))
	for _, id := range invoiceIDs {
		inv, err := c.Store.GetInvoice(ctx, id)
		if err != nil {
			return nil, err
		}
		if inv == nil {
			return nil, fmt.Errorf("%w: %s", ErrInvoiceNotFound, id)
		}
		sources = append(sources, inv)
	}

	familyID := sources[0].FamilyID
	for _, src := range sources {
		if src.FamilyID != familyID {
			return nil, ErrCrossFamilyConsolidation
		}
		if !src.Status.Outstanding() {
			return nil, fmt.Errorf("%w: invoice %s is %s", ErrNotOutstanding, src.Number, src.Status)
		}
	}

	// Sort sources by period start (no-period sources last, by number) so
	// copied line items read chronologically.
	sort.SliceStable(sources, func(i, j int) bool {
		pi, pj := sources[i].Period, sources[j].Period
		switch {
		case pi == nil && pj == nil:
			return sources[i].Number < sources[j].Number
		case pi == nil:
			return false
		case pj == nil:
			return true
		default:
			return pi.Start.Before(pj.Start)
		}
	})

	span := spanOf(sources)
	dueDate := sources[0].DueDate
	for _, src := range sources[1:] {
		dueDate = dates.Min(dueDate, src.DueDate)
	}

	merged := &Invoice{
		ID:        uuid.NewString(),
		FamilyID:  familyID,
		Number:    newInvoiceNumber(),
		Period:    span,
		IssueDate: issueDate,
		DueDate:   dueDate,
		Status:    StatusDraft,
		CreatedAt: now,
	}

	var items []InvoiceLineItem
	for _, src := range sources {
		srcItems, err := c.Store.LineItemsForInvoice(ctx, src.ID)
		if err != nil {
			return nil, fmt.Errorf("loading line items of %s: %w", src.Number, err)
		}
		prefix := src.Number
		if src.Period != nil {
			prefix = src.Period.Label()
		}
		for _, li := range srcItems {
			items = append(items, InvoiceLineItem{
				ID:           uuid.NewString(),
				InvoiceID:    merged.ID,
				EnrollmentID: li.EnrollmentID,
				Description:  prefix + ": " + li.Description,
				Quantity:     li.Quantity,
				UnitPrice:    li.UnitPrice,
				Amount:       li.Amount,
			})
		}
	}

	amounts := make([]money.Money, len(items))
	for i, li := range items {
		amounts[i] = li.Amount
	}
	merged.Subtotal = money.Sum(amounts...)
	merged.TotalAmount = merged.Subtotal

	comp := saga.New()
	if err := c.Store.InsertInvoice(ctx, merged); err != nil {
		return nil, fmt.Errorf("inserting consolidated invoice: %w", err)
	}
	comp.Add("delete consolidated invoice "+merged.ID, func(ctx context.Context) error {
		return c.Store.DeleteInvoice(ctx, merged.ID)
	})

	if err := c.Store.InsertInvoiceLineItems(ctx, items); err != nil {
		comp.Compensate(ctx)
		return nil, fmt.Errorf("inserting consolidated line items: %w", err)
	}
	comp.Add("delete consolidated line items", func(ctx context.Context) error {
		return c.Store.DeleteLineItemsForInvoice(ctx, merged.ID)
	})

	// Sum what the sources hold so the new status can be derived from the
	// transferred total before anything moves.
	sourceIDs := make([]string, len(sources))
	transferred := money.Zero
	for i, src := range sources {
		sourceIDs[i] = src.ID
		payments, err := c.Store.PaymentsForInvoice(ctx, src.ID)
		if err != nil {
			comp.Compensate(ctx)
			return nil, fmt.Errorf("loading payments of %s: %w", src.Number, err)
		}
		for _, p := range payments {
			transferred = transferred.Add(p.Amount)
		}
	}

	merged.applyPaymentTotal(transferred)
	if err := c.Store.UpdateInvoice(ctx, merged); err != nil {
		comp.Compensate(ctx)
		return nil, fmt.Errorf("updating consolidated invoice totals: %w", err)
	}

	// Move payments last. A failure here compensates cleanly: nothing has
	// moved yet, so deleting the merged invoice leaves every payment on its
	// source. Re-pointing before the totals write would strand the payments
	// on a compensated (deleted) invoice.
	if err := c.Store.ReassignPayments(ctx, sourceIDs, merged.ID); err != nil {
		comp.Compensate(ctx)
		return nil, fmt.Errorf("moving payments: %w", err)
	}
	comp.Discard()

	// Void the sources. The consolidated invoice is already correct, so
	// failures here are advisory.
	result := &ConsolidationResult{Invoice: merged}
	for _, src := range sources {
		src.Status = StatusVoid
		src.AmountPaid = money.Zero
		src.ConsolidatedInto = &merged.ID
		if err := c.Store.UpdateInvoice(ctx, src); err != nil {
			result.Warnings = append(result.Warnings, fmt.Sprintf("source invoice %s could not be voided: %v", src.Number, err))
		}
	}

	return result, nil
}

// spanOf computes earliest start to latest end over the sources that carry
// a period. nil when none do.
func spanOf(sources []*Invoice) *dates.Period {
	var span *dates.Period
	for _, src := range sources {
		if src.Period == nil {
			continue
		}
		if span == nil {
			p := *src.Period
			span = &p
			continue
		}
		span.Start = dates.Min(span.Start, src.Period.Start)
		span.End = dates.Max(span.End, src.Period.End)
	}
	return span
}
