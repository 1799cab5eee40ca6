/*
payroll.go - payroll.Store implementation

Line items are listed in rowid order, which matches insertion order for
this table (no deletes are interleaved with reads in practice).
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/domain"
	"github.com/brightpath/tutorbill/payroll"
)

// Interface check.
var _ payroll.Store = (*Store)(nil)

// =============================================================================
// ACTIVE ASSIGNMENTS
// =============================================================================

// ActiveAssignments returns all active teacher assignments with joined
// teacher, service (direct or via enrollment), and student context.
func (s *Store) ActiveAssignments(ctx context.Context) ([]payroll.AssignmentContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	query := `
		SELECT a.id, a.teacher_id, a.enrollment_id, a.service_id,
		       a.hourly_rate_teacher_cents, a.hours_per_week, a.start_date, a.end_date, a.is_active,
		       t.id, t.name, t.default_hourly_rate_cents,
		       sv.id, sv.name, sv.code, sv.billing_frequency, sv.default_customer_rate_cents, sv.default_teacher_rate_cents,
		       st.id, st.family_id, st.name
		FROM teacher_assignments a
		JOIN teachers t ON t.id = a.teacher_id
		LEFT JOIN enrollments e ON e.id = a.enrollment_id
		LEFT JOIN services sv ON sv.id = COALESCE(a.service_id, e.service_id)
		LEFT JOIN students st ON st.id = e.student_id
		WHERE a.is_active
		ORDER BY a.id ASC
	`

	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("querying active assignments: %w", err)
	}
	defer rows.Close()

	var out []payroll.AssignmentContext
	for rows.Next() {
		var (
			actx payroll.AssignmentContext
			a    = &actx.Assignment

			enrollmentID, serviceID        sql.NullString
			rateCents                      sql.NullInt64
			hoursPerWeek, startStr, endStr sql.NullString

			teacherRate sql.NullInt64

			svcID, svcName, svcCode, svcFreq sql.NullString
			svcCustRate, svcTeachRate        sql.NullInt64

			stuID, stuFamilyID, stuName sql.NullString
		)
		if err := rows.Scan(
			&a.ID, &a.TeacherID, &enrollmentID, &serviceID,
			&rateCents, &hoursPerWeek, &startStr, &endStr, &a.IsActive,
			&actx.Teacher.ID, &actx.Teacher.Name, &teacherRate,
			&svcID, &svcName, &svcCode, &svcFreq, &svcCustRate, &svcTeachRate,
			&stuID, &stuFamilyID, &stuName,
		); err != nil {
			return nil, fmt.Errorf("scanning assignment: %w", err)
		}

		a.EnrollmentID = strPtr(enrollmentID)
		a.ServiceID = strPtr(serviceID)
		a.HourlyRateTeacher = moneyPtr(rateCents)
		if a.HoursPerWeek, err = decimalPtr(hoursPerWeek); err != nil {
			return nil, fmt.Errorf("assignment %s hours_per_week: %w", a.ID, err)
		}
		if a.StartDate, err = datePtr(startStr); err != nil {
			return nil, fmt.Errorf("assignment %s start_date: %w", a.ID, err)
		}
		if a.EndDate, err = datePtr(endStr); err != nil {
			return nil, fmt.Errorf("assignment %s end_date: %w", a.ID, err)
		}
		actx.Teacher.DefaultHourlyRate = moneyPtr(teacherRate)

		if svcID.Valid {
			actx.Service = &domain.Service{
				ID:                  svcID.String,
				Name:                svcName.String,
				Code:                svcCode.String,
				BillingFrequency:    domain.BillingFrequency(svcFreq.String),
				DefaultCustomerRate: moneyPtr(svcCustRate),
				DefaultTeacherRate:  moneyPtr(svcTeachRate),
			}
		}
		if stuID.Valid {
			actx.Student = &domain.Student{
				ID:       stuID.String,
				FamilyID: stuFamilyID.String,
				Name:     stuName.String,
			}
		}
		out = append(out, actx)
	}
	return out, rows.Err()
}

// =============================================================================
// RUNS
// =============================================================================

const runColumns = `id, period_start, period_end, status,
	total_calculated_cents, total_adjusted_cents, total_hours, teacher_count,
	approved_by, approved_at, paid_at, created_at`

func (s *Store) InsertRun(ctx context.Context, run *payroll.PayrollRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payroll_runs (`+runColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		run.ID, dateCol(run.Period.Start), dateCol(run.Period.End), run.Status,
		moneyCol(run.TotalCalculated), moneyCol(run.TotalAdjusted),
		decimalCol(run.TotalHours), run.TeacherCount,
		run.ApprovedBy, ptrTime(run.ApprovedAt), ptrTime(run.PaidAt), timeCol(run.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting payroll run: %w", err)
	}
	return nil
}

func (s *Store) UpdateRun(ctx context.Context, run *payroll.PayrollRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE payroll_runs SET
			period_start = ?, period_end = ?, status = ?,
			total_calculated_cents = ?, total_adjusted_cents = ?,
			total_hours = ?, teacher_count = ?,
			approved_by = ?, approved_at = ?, paid_at = ?
		WHERE id = ?`,
		dateCol(run.Period.Start), dateCol(run.Period.End), run.Status,
		moneyCol(run.TotalCalculated), moneyCol(run.TotalAdjusted),
		decimalCol(run.TotalHours), run.TeacherCount,
		run.ApprovedBy, ptrTime(run.ApprovedAt), ptrTime(run.PaidAt),
		run.ID,
	)
	if err != nil {
		return fmt.Errorf("updating payroll run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return payroll.ErrRunNotFound
	}
	return nil
}

func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM payroll_runs WHERE id = ?`, runID)
	return err
}

func (s *Store) GetRun(ctx context.Context, runID string) (*payroll.PayrollRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx, `SELECT `+runColumns+` FROM payroll_runs WHERE id = ?`, runID)
	run, err := scanRun(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return run, err
}

func (s *Store) ListRuns(ctx context.Context) ([]payroll.PayrollRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT `+runColumns+` FROM payroll_runs ORDER BY period_start ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.PayrollRun
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *run)
	}
	return out, rows.Err()
}

func (s *Store) OverlappingRunExists(ctx context.Context, period dates.Period) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var n int
	err := s.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM payroll_runs
		WHERE period_start <= ? AND period_end >= ?`,
		dateCol(period.End), dateCol(period.Start),
	).Scan(&n)
	return n > 0, err
}

type rowScanner interface {
	Scan(dest ...any) error
}

func scanRun(row rowScanner) (*payroll.PayrollRun, error) {
	var (
		run                              payroll.PayrollRun
		startStr, endStr                 string
		hoursStr                         string
		approvedAt, paidAt               sql.NullString
		createdStr                       string
		totalCalculated, totalAdjusted   int64
	)
	if err := row.Scan(
		&run.ID, &startStr, &endStr, &run.Status,
		&totalCalculated, &totalAdjusted, &hoursStr, &run.TeacherCount,
		&run.ApprovedBy, &approvedAt, &paidAt, &createdStr,
	); err != nil {
		return nil, err
	}

	var err error
	if run.Period.Start, err = dates.Parse(startStr); err != nil {
		return nil, err
	}
	if run.Period.End, err = dates.Parse(endStr); err != nil {
		return nil, err
	}
	if run.TotalHours, err = parseDecimal(hoursStr); err != nil {
		return nil, err
	}
	if run.ApprovedAt, err = timePtr(approvedAt); err != nil {
		return nil, err
	}
	if run.PaidAt, err = timePtr(paidAt); err != nil {
		return nil, err
	}
	if run.CreatedAt, err = parseTime(createdStr); err != nil {
		return nil, err
	}
	run.TotalCalculated = fromCents(totalCalculated)
	run.TotalAdjusted = fromCents(totalAdjusted)
	return &run, nil
}

// =============================================================================
// LINE ITEMS
// =============================================================================

const payrollItemColumns = `id, run_id, teacher_id, assignment_id, description,
	calculated_hours, actual_hours, is_variable,
	hourly_rate_cents, rate_source,
	calculated_amount_cents, adjustment_amount_cents, adjustment_note, final_amount_cents`

func (s *Store) InsertLineItems(ctx context.Context, items []payroll.PayrollLineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	for i := range items {
		if err := insertPayrollItem(ctx, tx, &items[i]); err != nil {
			return err
		}
	}
	return tx.Commit()
}

func (s *Store) InsertLineItem(ctx context.Context, item *payroll.PayrollLineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return insertPayrollItem(ctx, s.db, item)
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func insertPayrollItem(ctx context.Context, db execer, item *payroll.PayrollLineItem) error {
	_, err := db.ExecContext(ctx, `
		INSERT INTO payroll_line_items (`+payrollItemColumns+`)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		item.ID, item.RunID, item.TeacherID, ptrStr(item.AssignmentID), item.Description,
		decimalCol(item.CalculatedHours), decimalCol(item.ActualHours), item.IsVariable,
		moneyCol(item.HourlyRate), string(item.RateSource),
		moneyCol(item.CalculatedAmount), moneyCol(item.AdjustmentAmount),
		item.AdjustmentNote, moneyCol(item.FinalAmount),
	)
	if err != nil {
		return fmt.Errorf("inserting payroll line item: %w", err)
	}
	return nil
}

func (s *Store) UpdateLineItem(ctx context.Context, item *payroll.PayrollLineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	res, err := s.db.ExecContext(ctx, `
		UPDATE payroll_line_items SET
			description = ?, calculated_hours = ?, actual_hours = ?, is_variable = ?,
			hourly_rate_cents = ?, rate_source = ?,
			calculated_amount_cents = ?, adjustment_amount_cents = ?,
			adjustment_note = ?, final_amount_cents = ?
		WHERE id = ?`,
		item.Description, decimalCol(item.CalculatedHours), decimalCol(item.ActualHours), item.IsVariable,
		moneyCol(item.HourlyRate), string(item.RateSource),
		moneyCol(item.CalculatedAmount), moneyCol(item.AdjustmentAmount),
		item.AdjustmentNote, moneyCol(item.FinalAmount),
		item.ID,
	)
	if err != nil {
		return fmt.Errorf("updating payroll line item: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return payroll.ErrLineItemNotFound
	}
	return nil
}

func (s *Store) DeleteLineItem(ctx context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM payroll_line_items WHERE id = ?`, itemID)
	return err
}

func (s *Store) DeleteLineItemsForRun(ctx context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `DELETE FROM payroll_line_items WHERE run_id = ?`, runID)
	return err
}

func (s *Store) GetLineItem(ctx context.Context, itemID string) (*payroll.PayrollLineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRowContext(ctx,
		`SELECT `+payrollItemColumns+` FROM payroll_line_items WHERE id = ?`, itemID)
	item, err := scanPayrollItem(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	return item, err
}

func (s *Store) LineItemsForRun(ctx context.Context, runID string) ([]payroll.PayrollLineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT `+payrollItemColumns+` FROM payroll_line_items WHERE run_id = ? ORDER BY rowid ASC`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.PayrollLineItem
	for rows.Next() {
		item, err := scanPayrollItem(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *item)
	}
	return out, rows.Err()
}

func scanPayrollItem(row rowScanner) (*payroll.PayrollLineItem, error) {
	var (
		item                     payroll.PayrollLineItem
		assignmentID             sql.NullString
		calcHours, actualHours   string
		rate, calc, adj, final   int64
		rateSource               string
	)
	if err := row.Scan(
		&item.ID, &item.RunID, &item.TeacherID, &assignmentID, &item.Description,
		&calcHours, &actualHours, &item.IsVariable,
		&rate, &rateSource,
		&calc, &adj, &item.AdjustmentNote, &final,
	); err != nil {
		return nil, err
	}

	item.AssignmentID = strPtr(assignmentID)
	item.RateSource = payroll.RateSource(rateSource)
	item.HourlyRate = fromCents(rate)
	item.CalculatedAmount = fromCents(calc)
	item.AdjustmentAmount = fromCents(adj)
	item.FinalAmount = fromCents(final)

	var err error
	if item.CalculatedHours, err = parseDecimal(calcHours); err != nil {
		return nil, err
	}
	if item.ActualHours, err = parseDecimal(actualHours); err != nil {
		return nil, err
	}
	return &item, nil
}

// =============================================================================
// ADJUSTMENTS
// =============================================================================

func (s *Store) InsertAdjustment(ctx context.Context, adj *payroll.PayrollAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		INSERT INTO payroll_adjustments (id, teacher_id, amount_cents, note, source_run_id, target_run_id, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		adj.ID, adj.TeacherID, moneyCol(adj.Amount), adj.Note,
		ptrStr(adj.SourceRunID), ptrStr(adj.TargetRunID), timeCol(adj.CreatedAt),
	)
	if err != nil {
		return fmt.Errorf("inserting payroll adjustment: %w", err)
	}
	return nil
}

func (s *Store) UpdateAdjustment(ctx context.Context, adj *payroll.PayrollAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.ExecContext(ctx, `
		UPDATE payroll_adjustments SET
			teacher_id = ?, amount_cents = ?, note = ?, source_run_id = ?, target_run_id = ?
		WHERE id = ?`,
		adj.TeacherID, moneyCol(adj.Amount), adj.Note,
		ptrStr(adj.SourceRunID), ptrStr(adj.TargetRunID), adj.ID,
	)
	if err != nil {
		return fmt.Errorf("updating payroll adjustment: %w", err)
	}
	return nil
}

func (s *Store) PendingAdjustments(ctx context.Context) ([]payroll.PayrollAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, teacher_id, amount_cents, note, source_run_id, target_run_id, created_at
		FROM payroll_adjustments
		WHERE target_run_id IS NULL
		ORDER BY created_at ASC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []payroll.PayrollAdjustment
	for rows.Next() {
		var (
			adj                   payroll.PayrollAdjustment
			amount                int64
			sourceRun, targetRun  sql.NullString
			createdStr            string
		)
		if err := rows.Scan(&adj.ID, &adj.TeacherID, &amount, &adj.Note, &sourceRun, &targetRun, &createdStr); err != nil {
			return nil, err
		}
		adj.Amount = fromCents(amount)
		adj.SourceRunID = strPtr(sourceRun)
		adj.TargetRunID = strPtr(targetRun)
		if adj.CreatedAt, err = parseTime(createdStr); err != nil {
			return nil, err
		}
		out = append(out, adj)
	}
	return out, rows.Err()
}
