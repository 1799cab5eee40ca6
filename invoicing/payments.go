/*
payments.go - Payment recording, balance repair, and line item edits

PURPOSE:
  RecordPayment appends a payment row and updates the invoice's cached
  aggregates, capping amount_paid at total_amount. RecalculateBalance is
  the explicit, user-triggered repair that rebuilds the cached aggregates
  from payment rows - drift between the cache and the rows is an accepted,
  recoverable condition, not a reason to make every write transactional.
*/
package invoicing

import (
	"context"
	"fmt"

	"github.com/google/uuid"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/money"
)

// Ledger performs payment and line-item mutations on invoices.
type Ledger struct {
	Store Store
}

// NewLedger returns a Ledger backed by the given store.
func NewLedger(store Store) *Ledger { return &Ledger{Store: store} }

// RecordPayment appends a payment and updates the invoice aggregates.
// amount_paid is capped at total_amount; overpayment is kept in the
// payment rows but never inflates the cached aggregate.
func (l *Ledger) RecordPayment(ctx context.Context, invoiceID string, amount money.Money, paidAt dates.Date, method, note string) (*Payment, error) {
	inv, err := l.Store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvoiceNotFound, invoiceID)
	}
	if inv.Status == StatusVoid {
		return nil, ErrInvoiceVoid
	}

	p := &Payment{
		ID:        uuid.NewString(),
		InvoiceID: invoiceID,
		Amount:    amount,
		PaidAt:    paidAt,
		Method:    method,
		Note:      note,
	}
	if err := l.Store.InsertPayment(ctx, p); err != nil {
		return nil, fmt.Errorf("inserting payment: %w", err)
	}

	inv.applyPaymentTotal(inv.AmountPaid.Add(amount))
	if err := l.Store.UpdateInvoice(ctx, inv); err != nil {
		return nil, fmt.Errorf("updating invoice aggregates: %w", err)
	}
	return p, nil
}

// RecalculateBalance rebuilds amount_paid and status from the payment
// rows. Explicit repair operation, invoked by a human.
func (l *Ledger) RecalculateBalance(ctx context.Context, invoiceID string) (*Invoice, error) {
	inv, err := l.Store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvoiceNotFound, invoiceID)
	}

	payments, err := l.Store.PaymentsForInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	total := money.Zero
	for _, p := range payments {
		total = total.Add(p.Amount)
	}

	// Reset below the cap first: applyPaymentTotal only moves status
	// forward to partial/paid, so clear a stale partial/paid when the
	// payments no longer support it.
	inv.AmountPaid = money.Zero
	if inv.Status == StatusPaid || inv.Status == StatusPartial {
		inv.Status = StatusSent
	}
	inv.applyPaymentTotal(total)

	return inv, l.Store.UpdateInvoice(ctx, inv)
}

// MarkSent moves a draft invoice to sent with the given issue date.
func (l *Ledger) MarkSent(ctx context.Context, invoiceID string, issueDate dates.Date) (*Invoice, error) {
	inv, err := l.Store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvoiceNotFound, invoiceID)
	}
	if inv.Status == StatusVoid {
		return nil, ErrInvoiceVoid
	}
	if inv.Status == StatusDraft {
		inv.Status = StatusSent
		inv.IssueDate = issueDate
	}
	return inv, l.Store.UpdateInvoice(ctx, inv)
}

// =============================================================================
// LINE ITEM EDITS - allowed while the parent invoice is not void
// =============================================================================

// UpdateLineItem replaces a line item's description, quantity, unit price,
// and amount, then rebuilds the invoice totals. Amount is taken as given -
// custom overrides need not equal quantity x unit price.
func (l *Ledger) UpdateLineItem(ctx context.Context, item *InvoiceLineItem) (*Invoice, error) {
	inv, err := l.editableInvoice(ctx, item.InvoiceID)
	if err != nil {
		return nil, err
	}
	if err := l.Store.UpdateInvoiceLineItem(ctx, item); err != nil {
		return nil, err
	}
	return inv, l.refreshTotals(ctx, inv)
}

// AddLineItem appends an ad-hoc line item (no enrollment) to an invoice.
func (l *Ledger) AddLineItem(ctx context.Context, invoiceID, description string, amount money.Money) (*InvoiceLineItem, error) {
	inv, err := l.editableInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	item := &InvoiceLineItem{
		ID:          uuid.NewString(),
		InvoiceID:   invoiceID,
		Description: description,
		Quantity:    one,
		UnitPrice:   amount,
		Amount:      amount,
	}
	if err := l.Store.InsertInvoiceLineItems(ctx, []InvoiceLineItem{*item}); err != nil {
		return nil, err
	}
	return item, l.refreshTotals(ctx, inv)
}

// DeleteLineItem removes a line item and rebuilds totals.
func (l *Ledger) DeleteLineItem(ctx context.Context, itemID string) (*Invoice, error) {
	item, err := l.Store.GetInvoiceLineItem(ctx, itemID)
	if err != nil {
		return nil, err
	}
	if item == nil {
		return nil, fmt.Errorf("line item not found: %s", itemID)
	}
	inv, err := l.editableInvoice(ctx, item.InvoiceID)
	if err != nil {
		return nil, err
	}
	if err := l.Store.DeleteInvoiceLineItem(ctx, itemID); err != nil {
		return nil, err
	}
	return inv, l.refreshTotals(ctx, inv)
}

func (l *Ledger) editableInvoice(ctx context.Context, invoiceID string) (*Invoice, error) {
	inv, err := l.Store.GetInvoice(ctx, invoiceID)
	if err != nil {
		return nil, err
	}
	if inv == nil {
		return nil, fmt.Errorf("%w: %s", ErrInvoiceNotFound, invoiceID)
	}
	if inv.Status == StatusVoid {
		return nil, ErrInvoiceVoid
	}
	return inv, nil
}

func (l *Ledger) refreshTotals(ctx context.Context, inv *Invoice) error {
	items, err := l.Store.LineItemsForInvoice(ctx, inv.ID)
	if err != nil {
		return err
	}
	amounts := make([]money.Money, len(items))
	for i, li := range items {
		amounts[i] = li.Amount
	}
	inv.Subtotal = money.Sum(amounts...)
	inv.TotalAmount = inv.Subtotal
	inv.applyPaymentTotal(inv.AmountPaid)
	return l.Store.UpdateInvoice(ctx, inv)
}
