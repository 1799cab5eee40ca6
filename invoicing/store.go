package invoicing

import (
	"context"

	"github.com/brightpath/tutorbill/domain"
)

// =============================================================================
// STORE INTERFACES - Persistence collaborator for the invoicing engine
// =============================================================================

// BillableEnrollment bundles an active enrollment with the joined rows the
// draft generator needs.
type BillableEnrollment struct {
	Enrollment domain.Enrollment
	Service    domain.Service
	Family     domain.Family
}

// Store is the persistence collaborator for invoices. Multi-step
// operations issue sequential writes and compensate on failure; the store
// only promises read-your-writes consistency per request.
type Store interface {
	// BillableEnrollments returns all active enrollments with joined
	// service and family.
	BillableEnrollments(ctx context.Context) ([]BillableEnrollment, error)

	// Invoices
	InsertInvoice(ctx context.Context, inv *Invoice) error
	UpdateInvoice(ctx context.Context, inv *Invoice) error
	DeleteInvoice(ctx context.Context, invoiceID string) error
	GetInvoice(ctx context.Context, invoiceID string) (*Invoice, error)
	ListInvoicesByFamily(ctx context.Context, familyID string) ([]Invoice, error)
	ListInvoicesByStatus(ctx context.Context, statuses ...InvoiceStatus) ([]Invoice, error)

	// Line items
	InsertInvoiceLineItems(ctx context.Context, items []InvoiceLineItem) error
	UpdateInvoiceLineItem(ctx context.Context, item *InvoiceLineItem) error
	DeleteInvoiceLineItem(ctx context.Context, itemID string) error
	DeleteLineItemsForInvoice(ctx context.Context, invoiceID string) error
	GetInvoiceLineItem(ctx context.Context, itemID string) (*InvoiceLineItem, error)
	LineItemsForInvoice(ctx context.Context, invoiceID string) ([]InvoiceLineItem, error)

	// Payments
	InsertPayment(ctx context.Context, p *Payment) error
	PaymentsForInvoice(ctx context.Context, invoiceID string) ([]Payment, error)
	// ReassignPayments re-points every payment on the source invoices to
	// the target invoice. A strict move, never a copy.
	ReassignPayments(ctx context.Context, fromInvoiceIDs []string, toInvoiceID string) error

	// Ad-hoc orders
	PendingOrdersForFamily(ctx context.Context, familyID string) ([]AdHocOrder, error)
	LinkOrderToInvoice(ctx context.Context, orderID, invoiceID string) error
}
