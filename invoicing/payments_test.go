package invoicing_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/invoicing"
	"github.com/brightpath/tutorbill/money"
	"github.com/brightpath/tutorbill/store/memory"
)

// =============================================================================
// PAYMENT RECORDING TESTS
// =============================================================================

func TestRecordPayment_DerivesStatusAndCapsOverpayment(t *testing.T) {
	// GIVEN: a $100 sent invoice
	store := memory.New()
	seedInvoice(t, store, "inv", "fam-a", dates.MonthPeriod(2026, time.January), d(2026, time.February, 15), 100)
	ledger := invoicing.NewLedger(store)
	ctx := context.Background()

	// WHEN: $40 is paid
	_, err := ledger.RecordPayment(ctx, "inv", money.FromDollars(40), d(2026, time.February, 3), "check", "")
	require.NoError(t, err)

	inv, err := store.GetInvoice(ctx, "inv")
	require.NoError(t, err)
	assert.Equal(t, invoicing.StatusPartial, inv.Status)
	assert.Equal(t, money.FromDollars(40), inv.AmountPaid)
	assert.Equal(t, money.FromDollars(60), inv.BalanceDue())

	// WHEN: another $80 is paid ($120 total on a $100 bill)
	_, err = ledger.RecordPayment(ctx, "inv", money.FromDollars(80), d(2026, time.February, 10), "card", "")
	require.NoError(t, err)

	// THEN: amount_paid is capped at the total and the invoice is paid;
	// the payment rows keep the real $120
	inv, err = store.GetInvoice(ctx, "inv")
	require.NoError(t, err)
	assert.Equal(t, invoicing.StatusPaid, inv.Status)
	assert.Equal(t, money.FromDollars(100), inv.AmountPaid)

	payments, err := store.PaymentsForInvoice(ctx, "inv")
	require.NoError(t, err)
	var total money.Money
	for _, p := range payments {
		total = total.Add(p.Amount)
	}
	assert.Equal(t, money.FromDollars(120), total)
}

func TestRecordPayment_RejectsVoidAndUnknownInvoices(t *testing.T) {
	store := memory.New()
	seedInvoice(t, store, "inv", "fam-a", dates.MonthPeriod(2026, time.January), d(2026, time.February, 15), 100)
	ledger := invoicing.NewLedger(store)
	ctx := context.Background()

	inv, err := store.GetInvoice(ctx, "inv")
	require.NoError(t, err)
	inv.Status = invoicing.StatusVoid
	require.NoError(t, store.UpdateInvoice(ctx, inv))

	_, err = ledger.RecordPayment(ctx, "inv", money.FromDollars(10), d(2026, time.February, 3), "check", "")
	assert.ErrorIs(t, err, invoicing.ErrInvoiceVoid)

	_, err = ledger.RecordPayment(ctx, "nope", money.FromDollars(10), d(2026, time.February, 3), "check", "")
	assert.ErrorIs(t, err, invoicing.ErrInvoiceNotFound)
}

func TestRecalculateBalance_RepairsDriftedAggregates(t *testing.T) {
	// GIVEN: a $100 invoice whose cached aggregates drifted from its two
	// $30 payment rows
	store := memory.New()
	seedInvoice(t, store, "inv", "fam-a", dates.MonthPeriod(2026, time.January), d(2026, time.February, 15), 100, 30, 30)
	ctx := context.Background()

	inv, err := store.GetInvoice(ctx, "inv")
	require.NoError(t, err)
	inv.AmountPaid = money.FromDollars(100)
	inv.Status = invoicing.StatusPaid
	require.NoError(t, store.UpdateInvoice(ctx, inv))

	// WHEN: recalculating from payment rows
	ledger := invoicing.NewLedger(store)
	repaired, err := ledger.RecalculateBalance(ctx, "inv")
	require.NoError(t, err)

	// THEN: the cache matches the rows again
	assert.Equal(t, money.FromDollars(60), repaired.AmountPaid)
	assert.Equal(t, invoicing.StatusPartial, repaired.Status)
	assert.Equal(t, money.FromDollars(40), repaired.BalanceDue())
}

// =============================================================================
// LINE ITEM EDIT TESTS
// =============================================================================

func TestLineItemEdits_RefreshTotals(t *testing.T) {
	// GIVEN: a $100 invoice with one line item
	store := memory.New()
	seedInvoice(t, store, "inv", "fam-a", dates.MonthPeriod(2026, time.January), d(2026, time.February, 15), 100)
	ledger := invoicing.NewLedger(store)
	ctx := context.Background()

	// WHEN: adding a $25 ad-hoc item
	item, err := ledger.AddLineItem(ctx, "inv", "Materials fee", money.FromDollars(25))
	require.NoError(t, err)
	assert.Nil(t, item.EnrollmentID)

	inv, err := store.GetInvoice(ctx, "inv")
	require.NoError(t, err)
	assert.Equal(t, money.FromDollars(125), inv.TotalAmount)

	// WHEN: overriding the original item's amount to $80. The override is
	// taken as given even though quantity x unit price still says $100.
	orig, err := store.GetInvoiceLineItem(ctx, "li-inv")
	require.NoError(t, err)
	orig.Amount = money.FromDollars(80)
	_, err = ledger.UpdateLineItem(ctx, orig)
	require.NoError(t, err)

	inv, err = store.GetInvoice(ctx, "inv")
	require.NoError(t, err)
	assert.Equal(t, money.FromDollars(105), inv.TotalAmount)

	// WHEN: deleting the ad-hoc item
	_, err = ledger.DeleteLineItem(ctx, item.ID)
	require.NoError(t, err)

	inv, err = store.GetInvoice(ctx, "inv")
	require.NoError(t, err)
	assert.Equal(t, money.FromDollars(80), inv.TotalAmount)
}

func TestLineItemEdits_RejectVoidInvoices(t *testing.T) {
	// GIVEN: a void invoice
	store := memory.New()
	seedInvoice(t, store, "inv", "fam-a", dates.MonthPeriod(2026, time.January), d(2026, time.February, 15), 100)
	ctx := context.Background()

	inv, err := store.GetInvoice(ctx, "inv")
	require.NoError(t, err)
	inv.Status = invoicing.StatusVoid
	require.NoError(t, store.UpdateInvoice(ctx, inv))

	// THEN: every line item mutation is rejected
	ledger := invoicing.NewLedger(store)
	_, err = ledger.AddLineItem(ctx, "inv", "Materials fee", money.FromDollars(25))
	assert.ErrorIs(t, err, invoicing.ErrInvoiceVoid)

	orig, err := store.GetInvoiceLineItem(ctx, "li-inv")
	require.NoError(t, err)
	_, err = ledger.UpdateLineItem(ctx, orig)
	assert.ErrorIs(t, err, invoicing.ErrInvoiceVoid)

	_, err = ledger.DeleteLineItem(ctx, "li-inv")
	assert.ErrorIs(t, err, invoicing.ErrInvoiceVoid)
}
