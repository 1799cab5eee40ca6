/*
entities.go - CRUD for the shared business entities

Upserts are idempotent (INSERT OR REPLACE): the API exposes PUT-style
writes and the seed tooling re-runs safely.
*/
package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/domain"
)

// =============================================================================
// FAMILIES / STUDENTS / TEACHERS
// =============================================================================

func (s *Store) UpsertFamily(ctx context.Context, f *domain.Family) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO families (id, name, email) VALUES (?, ?, ?)`,
		f.ID, f.Name, nullString(f.Email))
	return err
}

func (s *Store) GetFamily(ctx context.Context, id string) (*domain.Family, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		f     domain.Family
		email sql.NullString
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, email FROM families WHERE id = ?`, id).Scan(&f.ID, &f.Name, &email)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	if email.Valid {
		f.Email = email.String
	}
	return &f, nil
}

func (s *Store) ListFamilies(ctx context.Context) ([]domain.Family, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `SELECT id, name, email FROM families ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Family
	for rows.Next() {
		var (
			f     domain.Family
			email sql.NullString
		)
		if err := rows.Scan(&f.ID, &f.Name, &email); err != nil {
			return nil, err
		}
		if email.Valid {
			f.Email = email.String
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *Store) UpsertStudent(ctx context.Context, st *domain.Student) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO students (id, family_id, name) VALUES (?, ?, ?)`,
		st.ID, st.FamilyID, st.Name)
	return err
}

func (s *Store) UpsertTeacher(ctx context.Context, t *domain.Teacher) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx,
		`INSERT OR REPLACE INTO teachers (id, name, default_hourly_rate_cents) VALUES (?, ?, ?)`,
		t.ID, t.Name, ptrMoney(t.DefaultHourlyRate))
	return err
}

func (s *Store) GetTeacher(ctx context.Context, id string) (*domain.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var (
		t    domain.Teacher
		rate sql.NullInt64
	)
	err := s.db.QueryRowContext(ctx,
		`SELECT id, name, default_hourly_rate_cents FROM teachers WHERE id = ?`, id).Scan(&t.ID, &t.Name, &rate)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	t.DefaultHourlyRate = moneyPtr(rate)
	return &t, nil
}

func (s *Store) ListTeachers(ctx context.Context) ([]domain.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, name, default_hourly_rate_cents FROM teachers ORDER BY name ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Teacher
	for rows.Next() {
		var (
			t    domain.Teacher
			rate sql.NullInt64
		)
		if err := rows.Scan(&t.ID, &t.Name, &rate); err != nil {
			return nil, err
		}
		t.DefaultHourlyRate = moneyPtr(rate)
		out = append(out, t)
	}
	return out, rows.Err()
}

// =============================================================================
// SERVICES / ENROLLMENTS / ASSIGNMENTS
// =============================================================================

func (s *Store) UpsertService(ctx context.Context, svc *domain.Service) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO services
			(id, name, code, billing_frequency, default_customer_rate_cents, default_teacher_rate_cents)
		VALUES (?, ?, ?, ?, ?, ?)`,
		svc.ID, svc.Name, svc.Code, svc.BillingFrequency,
		ptrMoney(svc.DefaultCustomerRate), ptrMoney(svc.DefaultTeacherRate))
	return err
}

func (s *Store) UpsertEnrollment(ctx context.Context, e *domain.Enrollment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO enrollments
			(id, student_id, family_id, service_id,
			 monthly_rate_cents, weekly_tuition_cents, hourly_rate_customer_cents, daily_rate_cents,
			 hours_per_week, class_title, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.StudentID, e.FamilyID, e.ServiceID,
		ptrMoney(e.MonthlyRate), ptrMoney(e.WeeklyTuition),
		ptrMoney(e.HourlyRateCustomer), ptrMoney(e.DailyRate),
		ptrDecimal(e.HoursPerWeek), e.ClassTitle, e.IsActive)
	return err
}

func (s *Store) UpsertAssignment(ctx context.Context, a *domain.TeacherAssignment) error {
	if err := a.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO teacher_assignments
			(id, teacher_id, enrollment_id, service_id,
			 hourly_rate_teacher_cents, hours_per_week, start_date, end_date, is_active)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		a.ID, a.TeacherID, ptrStr(a.EnrollmentID), ptrStr(a.ServiceID),
		ptrMoney(a.HourlyRateTeacher), ptrDecimal(a.HoursPerWeek),
		ptrDate(a.StartDate), ptrDate(a.EndDate), a.IsActive)
	return err
}

// =============================================================================
// LEADS
// =============================================================================

func (s *Store) UpsertLead(ctx context.Context, l *domain.Lead) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, err := s.db.ExecContext(ctx, `
		INSERT OR REPLACE INTO leads
			(id, name, email, status, requested_service, last_contact_date, created_date)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		l.ID, l.Name, l.Email, l.Status, l.RequestedService,
		ptrDate(l.LastContactDate), dateCol(l.CreatedDate))
	return err
}

func (s *Store) ListLeads(ctx context.Context) ([]domain.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.QueryContext(ctx, `
		SELECT id, name, email, status, requested_service, last_contact_date, created_date
		FROM leads ORDER BY created_date DESC, id ASC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []domain.Lead
	for rows.Next() {
		var (
			l           domain.Lead
			lastContact sql.NullString
			createdStr  string
		)
		if err := rows.Scan(&l.ID, &l.Name, &l.Email, &l.Status, &l.RequestedService, &lastContact, &createdStr); err != nil {
			return nil, err
		}
		if l.LastContactDate, err = datePtr(lastContact); err != nil {
			return nil, fmt.Errorf("lead %s last_contact_date: %w", l.ID, err)
		}
		if l.CreatedDate, err = dates.Parse(createdStr); err != nil {
			return nil, fmt.Errorf("lead %s created_date: %w", l.ID, err)
		}
		out = append(out, l)
	}
	return out, rows.Err()
}
