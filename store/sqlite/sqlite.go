/*
Package sqlite provides a SQLite-backed implementation of the storage interfaces.

PURPOSE:
  Implements all persistence interfaces (payroll.Store, invoicing.Store,
  plus entity CRUD used by the API) using SQLite. In production, the same
  patterns apply to PostgreSQL - only minor SQL dialect differences.

KEY TABLES:
  families, students, teachers:  billing and payroll parties
  services, enrollments:         what is billed, and at which rates
  teacher_assignments:           who teaches what, for how many hours
  payroll_runs / payroll_line_items / payroll_adjustments
  invoices / invoice_line_items / payments / ad_hoc_orders
  leads:                         intake pipeline records

MONEY AND DATES:
  Monetary columns store integer cents (suffix _cents). Dates store ISO
  "2006-01-02" text; timestamps store RFC3339 text. Decimal quantities
  (hours) store their exact string form - never floats.

CONCURRENCY:
  Uses sync.RWMutex for thread-safety. In production with PostgreSQL,
  database-level concurrency control handles this instead.

WAL MODE:
  SQLite is opened with WAL (Write-Ahead Logging) for better concurrency:
  - Multiple readers don't block
  - Single writer at a time
  - Better crash recovery

USAGE:
  store, err := sqlite.New("./data/tutorbill.db")
  if err != nil {
      log.Fatal(err)
  }
  defer store.Close()

MIGRATION:
  Schema is auto-migrated on New(). For production, use a proper
  migration tool (golang-migrate, goose) with versioned migrations.

SEE ALSO:
  - payroll/store.go, invoicing/store.go: interface definitions
  - store/memory: in-memory implementation for testing
*/
package sqlite

import (
	"database/sql"
	"fmt"
	"sync"
	"time"

	_ "github.com/mattn/go-sqlite3"
	"github.com/shopspring/decimal"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/money"
)

// Store implements all storage interfaces using SQLite.
type Store struct {
	db *sql.DB
	mu sync.RWMutex
}

// New creates a new SQLite store with the given database path.
// Use ":memory:" for an in-memory database.
func New(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_foreign_keys=on&_journal_mode=WAL")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	store := &Store{db: db}
	if err := store.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return store, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

// migrate creates the database schema.
func (s *Store) migrate() error {
	schema := `
	-- Parties
	CREATE TABLE IF NOT EXISTS families (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT
	);

	CREATE TABLE IF NOT EXISTS students (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL REFERENCES families(id),
		name TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_students_family ON students(family_id);

	CREATE TABLE IF NOT EXISTS teachers (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		default_hourly_rate_cents INTEGER
	);

	-- Services and enrollments
	CREATE TABLE IF NOT EXISTS services (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		code TEXT NOT NULL DEFAULT '',
		billing_frequency TEXT NOT NULL,
		default_customer_rate_cents INTEGER,
		default_teacher_rate_cents INTEGER
	);

	CREATE TABLE IF NOT EXISTS enrollments (
		id TEXT PRIMARY KEY,
		student_id TEXT NOT NULL REFERENCES students(id),
		family_id TEXT NOT NULL REFERENCES families(id),
		service_id TEXT NOT NULL REFERENCES services(id),
		monthly_rate_cents INTEGER,
		weekly_tuition_cents INTEGER,
		hourly_rate_customer_cents INTEGER,
		daily_rate_cents INTEGER,
		hours_per_week TEXT,
		class_title TEXT NOT NULL DEFAULT '',
		is_active BOOLEAN NOT NULL DEFAULT TRUE
	);
	CREATE INDEX IF NOT EXISTS idx_enrollments_family ON enrollments(family_id);
	CREATE INDEX IF NOT EXISTS idx_enrollments_active ON enrollments(is_active);

	-- Teacher assignments
	CREATE TABLE IF NOT EXISTS teacher_assignments (
		id TEXT PRIMARY KEY,
		teacher_id TEXT NOT NULL REFERENCES teachers(id),
		enrollment_id TEXT REFERENCES enrollments(id),
		service_id TEXT REFERENCES services(id),
		hourly_rate_teacher_cents INTEGER,
		hours_per_week TEXT,
		start_date TEXT,
		end_date TEXT,
		is_active BOOLEAN NOT NULL DEFAULT TRUE,
		-- Exactly one scope: enrollment or service
		CHECK ((enrollment_id IS NULL) != (service_id IS NULL))
	);
	CREATE INDEX IF NOT EXISTS idx_assignments_teacher ON teacher_assignments(teacher_id);
	CREATE INDEX IF NOT EXISTS idx_assignments_active ON teacher_assignments(is_active);

	-- Payroll
	CREATE TABLE IF NOT EXISTS payroll_runs (
		id TEXT PRIMARY KEY,
		period_start TEXT NOT NULL,
		period_end TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		total_calculated_cents INTEGER NOT NULL DEFAULT 0,
		total_adjusted_cents INTEGER NOT NULL DEFAULT 0,
		total_hours TEXT NOT NULL DEFAULT '0',
		teacher_count INTEGER NOT NULL DEFAULT 0,
		approved_by TEXT NOT NULL DEFAULT '',
		approved_at TEXT,
		paid_at TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_payroll_runs_period ON payroll_runs(period_start, period_end);

	CREATE TABLE IF NOT EXISTS payroll_line_items (
		id TEXT PRIMARY KEY,
		run_id TEXT NOT NULL REFERENCES payroll_runs(id),
		teacher_id TEXT NOT NULL,
		assignment_id TEXT,
		description TEXT NOT NULL DEFAULT '',
		calculated_hours TEXT NOT NULL DEFAULT '0',
		actual_hours TEXT NOT NULL DEFAULT '0',
		is_variable BOOLEAN NOT NULL DEFAULT FALSE,
		hourly_rate_cents INTEGER NOT NULL DEFAULT 0,
		rate_source TEXT NOT NULL DEFAULT '',
		calculated_amount_cents INTEGER NOT NULL DEFAULT 0,
		adjustment_amount_cents INTEGER NOT NULL DEFAULT 0,
		adjustment_note TEXT NOT NULL DEFAULT '',
		final_amount_cents INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_payroll_items_run ON payroll_line_items(run_id);

	CREATE TABLE IF NOT EXISTS payroll_adjustments (
		id TEXT PRIMARY KEY,
		teacher_id TEXT NOT NULL,
		amount_cents INTEGER NOT NULL,
		note TEXT NOT NULL DEFAULT '',
		source_run_id TEXT,
		target_run_id TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_payroll_adjustments_pending
		ON payroll_adjustments(target_run_id) WHERE target_run_id IS NULL;

	-- Invoicing
	CREATE TABLE IF NOT EXISTS invoices (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL REFERENCES families(id),
		number TEXT NOT NULL UNIQUE,
		period_start TEXT,
		period_end TEXT,
		issue_date TEXT NOT NULL,
		due_date TEXT NOT NULL,
		subtotal_cents INTEGER NOT NULL DEFAULT 0,
		total_amount_cents INTEGER NOT NULL DEFAULT 0,
		amount_paid_cents INTEGER NOT NULL DEFAULT 0,
		status TEXT NOT NULL DEFAULT 'draft',
		consolidated_into TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_invoices_family ON invoices(family_id);
	CREATE INDEX IF NOT EXISTS idx_invoices_status ON invoices(status);

	CREATE TABLE IF NOT EXISTS invoice_line_items (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL REFERENCES invoices(id),
		enrollment_id TEXT,
		description TEXT NOT NULL DEFAULT '',
		quantity TEXT NOT NULL DEFAULT '1',
		unit_price_cents INTEGER NOT NULL DEFAULT 0,
		amount_cents INTEGER NOT NULL DEFAULT 0
	);
	CREATE INDEX IF NOT EXISTS idx_invoice_items_invoice ON invoice_line_items(invoice_id);

	CREATE TABLE IF NOT EXISTS payments (
		id TEXT PRIMARY KEY,
		invoice_id TEXT NOT NULL REFERENCES invoices(id),
		amount_cents INTEGER NOT NULL,
		paid_at TEXT NOT NULL,
		method TEXT NOT NULL DEFAULT '',
		note TEXT NOT NULL DEFAULT ''
	);
	CREATE INDEX IF NOT EXISTS idx_payments_invoice ON payments(invoice_id);

	CREATE TABLE IF NOT EXISTS ad_hoc_orders (
		id TEXT PRIMARY KEY,
		family_id TEXT NOT NULL REFERENCES families(id),
		class_title TEXT NOT NULL DEFAULT '',
		amount_cents INTEGER NOT NULL,
		invoice_id TEXT,
		created_at TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_orders_family_pending
		ON ad_hoc_orders(family_id) WHERE invoice_id IS NULL;

	-- Leads
	CREATE TABLE IF NOT EXISTS leads (
		id TEXT PRIMARY KEY,
		name TEXT NOT NULL,
		email TEXT NOT NULL DEFAULT '',
		status TEXT NOT NULL DEFAULT 'new',
		requested_service TEXT NOT NULL DEFAULT '',
		last_contact_date TEXT,
		created_date TEXT NOT NULL
	);
	CREATE INDEX IF NOT EXISTS idx_leads_status ON leads(status);
	`

	_, err := s.db.Exec(schema)
	return err
}

// =============================================================================
// COLUMN CONVERSION HELPERS
// =============================================================================

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

func strPtr(ns sql.NullString) *string {
	if !ns.Valid {
		return nil
	}
	s := ns.String
	return &s
}

func ptrStr(p *string) any {
	if p == nil {
		return nil
	}
	return *p
}

func moneyCol(m money.Money) int64 { return m.Cents() }

func fromCents(cents int64) money.Money { return money.FromCents(cents) }

func ptrMoney(p *money.Money) any {
	if p == nil {
		return nil
	}
	return p.Cents()
}

func moneyPtr(ni sql.NullInt64) *money.Money {
	if !ni.Valid {
		return nil
	}
	m := money.FromCents(ni.Int64)
	return &m
}

func decimalCol(d decimal.Decimal) string { return d.String() }

func ptrDecimal(p *decimal.Decimal) any {
	if p == nil {
		return nil
	}
	return p.String()
}

func parseDecimal(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}

func decimalPtr(ns sql.NullString) (*decimal.Decimal, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := decimal.NewFromString(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func dateCol(d dates.Date) string { return d.String() }

func ptrDate(p *dates.Date) any {
	if p == nil {
		return nil
	}
	return p.String()
}

func datePtr(ns sql.NullString) (*dates.Date, error) {
	if !ns.Valid {
		return nil, nil
	}
	d, err := dates.Parse(ns.String)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func timeCol(t time.Time) string { return t.UTC().Format(time.RFC3339) }

func ptrTime(p *time.Time) any {
	if p == nil {
		return nil
	}
	return timeCol(*p)
}

func timePtr(ns sql.NullString) (*time.Time, error) {
	if !ns.Valid {
		return nil, nil
	}
	t, err := time.Parse(time.RFC3339, ns.String)
	if err != nil {
		return nil, err
	}
	return &t, nil
}

func parseTime(s string) (time.Time, error) {
	if s == "" {
		return time.Time{}, nil
	}
	return time.Parse(time.RFC3339, s)
}
