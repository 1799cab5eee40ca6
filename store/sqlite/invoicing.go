/*
invoicing.go - invoicing.Store implementation

Invoice line items are listed in rowid order (insertion order). Payments
move between invoices only through ReassignPayments, a single UPDATE, so
a payment can never be double-counted mid-consolidation.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/invoicing"
)

// Interface check.
var _ invoicing.Store = (*Store)(nil)

// =============================================================================
// BILLABLE ENROLLMENTS
// =============================================================================

func (s *Store) BillableEnrollments(ctx context.Context) ([]invoicing.BillableEnrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT e.id, e.student_id, e.family_id, e.service_id,
		       e.monthly_rate_cents, e.weekly_tuition_cents, e.hourly_rate_customer_cents, e.daily_rate_cents,
		       e.hours_per_week, e.class_title, e.is_active,
		       sv.id, sv.name, sv.code, sv.billing_frequency, sv.default_customer_rate_cents, sv.default_teacher_rate_cents,
		       f.id, f.name, f.email
		FROM enrollments e
		JOIN services sv ON sv.id = e.service_id
		JOIN families f ON f.id = e.family_id
		WHERE e.is_active
		ORDER BY e.id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying billable enrollments: %w", err)
	}
	defer rows.Close()

	var out []invoicing.BillableEnrollment
	for rows.Next() {
		var (
			b invoicing.BillableEnrollment
			e = &b.Enrollment

			monthly, weekly, hourly, daily sql.NullInt64
			hoursPerWeek                   sql.NullString
			svcCustRate, svcTeachRate      sql.NullInt64
			familyEmail                    sql.NullString
		)
		if err := rows.Scan(
			&e.ID, &e.StudentID, &e.FamilyID, &e.ServiceID,
			&monthly, &weekly, &hourly, &daily,
			&hoursPerWeek, &e.ClassTitle, &e.IsActive,
			&b.Service.ID, &b.Service.Name, &b.Service.Code, &b.Service.BillingFrequency, &svcCustRate, &svcTeachRate,
			&b.Family.ID, &b.Family.Name, &familyEmail,
		); err != nil {
			return nil, fmt.Errorf("scanning billable enrollment: %w", err)
		}

		e.MonthlyRate = moneyPtr(monthly)
		e.WeeklyTuition = moneyPtr(weekly)
		e.HourlyRateCustomer = moneyPtr(hourly)
		e.DailyRate = moneyPtr(daily)
		if e.HoursPerWeek, err = decimalPtr(hoursPerWeek); err != nil {
			return nil, fmt.Errorf("enrollment %s hours_per_week: %w", e.ID, err)
		}
		b.Service.DefaultCustomerRate = moneyPtr(svcCustRate)
		b.Service.DefaultTeacherRate = moneyPtr(svcTeachRate)
		if familyEmail.Valid {
			b.Family.Email = familyEmail.String
		}
		out = append(out, b)
	}
	return out, rows.Err()
}

// =============================================================================
// INVOICES
// =============================================================================

const invoiceColumns = `id, family_id, number, period_start, period_end,
	issue_date, due_date, subtotal_cents, total_amount_cents, amount_paid_cents,
	status, consolidated_into, created_at`

func (s *Store) InsertInvoice(ctx context.Context, inv *invoicing.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var periodStart, periodEnd any
	if inv.Period != nil {
		periodStart = dateCol(inv.Period.Start)
		periodEnd = dateCol(inv.Period.End)
	}

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO invoices (`+invoiceColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		inv.ID, inv.FamilyID, inv.Number, periodStart, periodEnd,
		dateCol(inv.IssueDate), dateCol(inv.DueDate),
		moneyCol(inv.Subtotal), moneyCol(inv.TotalAmount), moneyCol(inv.AmountPaid),
		inv.Status, ptrStr(inv.ConsolidatedInto), timeCol(inv.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting invoice: %w", err)
	}
	return nil
}

func (s *Store) UpdateInvoice(ctx context.Context, inv *invoicing.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var periodStart, periodEnd any
	if inv.Period != nil {
		periodStart = dateCol(inv.Period.Start)
		periodEnd = dateCol(inv.Period.End)
	}

	res, err := s.db.ExecContext(ctx, `
		UPDATE invoices SET
			family_id = ?, number = ?, period_start = ?, period_end = ?,
			issue_date = ?, due_date = ?,
			subtotal_cents = ?, total_amount_cents = ?, amount_paid_cents = ?,
			status = ?, consolidated_into = ?
		WHERE id = ?`,
		inv.FamilyID, inv.Number, periodStart, periodEnd,
		dateCol(inv.IssueDate), dateCol(inv.DueDate),
		moneyCol(inv.Subtotal), moneyCol(inv.TotalAmount), moneyCol(inv.AmountPaid),
		inv.Status, ptrStr(inv.ConsolidatedInto),
		inv.ID,
	)
	if err != nil {
		return fmt.Errorf("updating invoice: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return invoicing.ErrInvoiceNotFound
	}
	return nil
}

func (s *Store) DeleteInvoice(ctx context.Context, invoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM invoices WHERE id = ?`, invoiceID)
	return err
}

func (s *Store) GetInvoice(ctx context.Context, invoiceID string) (*invoicing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+invoiceColumns+` FROM invoices WHERE id = ?`, invoiceID)
	inv, err := scanInvoice(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return inv, err
}

func (s *Store) ListInvoicesByFamily(ctx context.Context, familyID string) ([]invoicing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE family_id = ? ORDER BY created_at ASC, number ASC`, familyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvoices(rows)
}

func (s *Store) ListInvoicesByStatus(ctx context.Context, statuses ...invoicing.InvoiceStatus) ([]invoicing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(statuses) == 0 {
		return nil, nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(statuses)), ", ")
	args := make([]any, len(statuses))
	for i, st := range statuses {
		args[i] = string(st)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invoiceColumns+` FROM invoices WHERE status IN (`+placeholders+`) ORDER BY due_date ASC, number ASC`, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	return collectInvoices(rows)
}

func collectInvoices(rows *sql.Rows) ([]invoicing.Invoice, error) {
	var out []invoicing.Invoice
	for rows.Next() {
		inv, err := scanInvoice(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *inv)
	}
	return out, rows.Err()
}

func scanInvoice(row rowScanner) (*invoicing.Invoice, error) {
	var (
		inv                        invoicing.Invoice
		periodStart, periodEnd     sql.NullString
		issueStr, dueStr           string
		subtotal, total, paid      int64
		consolidatedInto           sql.NullString
		createdStr                 string
	)
	if err := row.Scan(
		&inv.ID, &inv.FamilyID, &inv.Number, &periodStart, &periodEnd,
		&issueStr, &dueStr, &subtotal, &total, &paid,
		&inv.Status, &consolidatedInto, &createdStr,
	); err != nil {
		return nil, err
	}

	var err error
	if periodStart.Valid && periodEnd.Valid {
		var p dates.Period
		if p.Start, err = dates.Parse(periodStart.String); err != nil {
			return nil, err
		}
		if p.End, err = dates.Parse(periodEnd.String); err != nil {
			return nil, err
		}
		inv.Period = &p
	}
	if inv.IssueDate, err = dates.Parse(issueStr); err != nil {
		return nil, err
	}
	if inv.DueDate, err = dates.Parse(dueStr); err != nil {
		return nil, err
	}
	if inv.CreatedAt, err = parseTime(createdStr); err != nil {
		return nil, err
	}
	inv.Subtotal = fromCents(subtotal)
	inv.TotalAmount = fromCents(total)
	inv.AmountPaid = fromCents(paid)
	inv.ConsolidatedInto = strPtr(consolidatedInto)
	return &inv, nil
}

// =============================================================================
// LINE ITEMS
// =============================================================================

const invoiceItemColumns = `id, invoice_id, enrollment_id, description, quantity, unit_price_cents, amount_cents`

func (s *Store) InsertInvoiceLineItems(ctx context.Context, items []invoicing.InvoiceLineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range items {
		item := &items[i]
		_, err := tx.ExecContext(ctx, `
			INSERT INTO invoice_line_items (`+invoiceItemColumns+`)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			item.ID, item.InvoiceID, ptrStr(item.EnrollmentID), item.Description,
			decimalCol(item.Quantity), moneyCol(item.UnitPrice), moneyCol(item.Amount),
		)
		if err != nil {
			return fmt.Errorf("inserting invoice line item: %w", err)
		}
	}
	return tx.Commit()
}

func (s *Store) UpdateInvoiceLineItem(ctx context.Context, item *invoicing.InvoiceLineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE invoice_line_items SET
			description = ?, quantity = ?, unit_price_cents = ?, amount_cents = ?
		WHERE id = ?`,
		item.Description, decimalCol(item.Quantity), moneyCol(item.UnitPrice), moneyCol(item.Amount),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("updating invoice line item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("invoice line item not found: %s", item.ID)
	}
	return nil
}

func (s *Store) DeleteInvoiceLineItem(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM invoice_line_items WHERE id = ?`, itemID)
	return err
}

func (s *Store) DeleteLineItemsForInvoice(ctx context.Context, invoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM invoice_line_items WHERE invoice_id = ?`, invoiceID)
	return err
}

func (s *Store) GetInvoiceLineItem(ctx context.Context, itemID string) (*invoicing.InvoiceLineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+invoiceItemColumns+` FROM invoice_line_items WHERE id = ?`, itemID)
	item, err := scanInvoiceItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

func (s *Store) LineItemsForInvoice(ctx context.Context, invoiceID string) ([]invoicing.InvoiceLineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+invoiceItemColumns+` FROM invoice_line_items WHERE invoice_id = ? ORDER BY rowid ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []invoicing.InvoiceLineItem
	for rows.Next() {
		item, err := scanInvoiceItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

func scanInvoiceItem(row rowScanner) (*invoicing.InvoiceLineItem, error) {
	var (
		item              invoicing.InvoiceLineItem
		enrollmentID      sql.NullString
		quantity          string
		unitPrice, amount int64
	)
	if err := row.Scan(
		&item.ID, &item.InvoiceID, &enrollmentID, &item.Description,
		&quantity, &unitPrice, &amount,
	); err != nil {
		return nil, err
	}

	item.EnrollmentID = strPtr(enrollmentID)
	item.UnitPrice = fromCents(unitPrice)
	item.Amount = fromCents(amount)

	var err error
	if item.Quantity, err = parseDecimal(quantity); err != nil {
		return nil, err
	}
	return &item, nil
}

// =============================================================================
// PAYMENTS
// =============================================================================

func (s *Store) InsertPayment(ctx context.Context, p *invoicing.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payments (id, invoice_id, amount_cents, paid_at, method, note)
		VALUES (?, ?, ?, ?, ?, ?)`,
		p.ID, p.InvoiceID, moneyCol(p.Amount), dateCol(p.PaidAt), p.Method, p.Note,
	)
	if err != nil {
		return fmt.Errorf("inserting payment: %w", err)
	}
	return nil
}

func (s *Store) PaymentsForInvoice(ctx context.Context, invoiceID string) ([]invoicing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, invoice_id, amount_cents, paid_at, method, note
		FROM payments WHERE invoice_id = ?
		ORDER BY paid_at ASC, id ASC`, invoiceID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []invoicing.Payment
	for rows.Next() {
		var (
			p       invoicing.Payment
			amount  int64
			paidStr string
		)
		if err := rows.Scan(&p.ID, &p.InvoiceID, &amount, &paidStr, &p.Method, &p.Note); err != nil {
			return nil, err
		}
		p.Amount = fromCents(amount)
		if p.PaidAt, err = dates.Parse(paidStr); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

// ReassignPayments re-points every payment on the source invoices to the
// target invoice in one statement.
func (s *Store) ReassignPayments(ctx context.Context, fromInvoiceIDs []string, toInvoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if len(fromInvoiceIDs) == 0 {
		return nil
	}
	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(fromInvoiceIDs)), ", ")
	args := make([]any, 0, len(fromInvoiceIDs)+1)
	args = append(args, toInvoiceID)
	for _, id := range fromInvoiceIDs {
		args = append(args, id)
	}

	_, err := s.db.ExecContext(ctx,
		`UPDATE payments SET invoice_id = ? WHERE invoice_id IN (`+placeholders+`)`, args...)
	if err != nil {
		return fmt.Errorf("reassigning payments: %w", err)
	}
	return nil
}

// =============================================================================
// AD-HOC ORDERS
// =============================================================================

func (s *Store) InsertOrder(ctx context.Context, o *invoicing.AdHocOrder) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ad_hoc_orders (id, family_id, class_title, amount_cents, invoice_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		o.ID, o.FamilyID, o.ClassTitle, moneyCol(o.Amount), ptrStr(o.InvoiceID), timeCol(o.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting order: %w", err)
	}
	return nil
}

func (s *Store) PendingOrdersForFamily(ctx context.Context, familyID string) ([]invoicing.AdHocOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, family_id, class_title, amount_cents, invoice_id, created_at
		FROM ad_hoc_orders
		WHERE family_id = ? AND invoice_id IS NULL
		ORDER BY created_at ASC, id ASC`, familyID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []invoicing.AdHocOrder
	for rows.Next() {
		var (
			o          invoicing.AdHocOrder
			amount     int64
			invoiceID  sql.NullString
			createdStr string
		)
		if err := rows.Scan(&o.ID, &o.FamilyID, &o.ClassTitle, &amount, &invoiceID, &createdStr); err != nil {
			return nil, err
		}
		o.Amount = fromCents(amount)
		o.InvoiceID = strPtr(invoiceID)
		if o.CreatedAt, err = parseTime(createdStr); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

func (s *Store) LinkOrderToInvoice(ctx context.Context, orderID, invoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx,
		`UPDATE ad_hoc_orders SET invoice_id = ? WHERE id = ?`, invoiceID, orderID)
	if err != nil {
		return fmt.Errorf("linking order to invoice: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("order not found: %s", orderID)
	}
	return nil
}
