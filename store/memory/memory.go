// Package memory provides an in-memory store implementation (for testing/dev).
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/domain"
	"github.com/brightpath/tutorbill/invoicing"
	"github.com/brightpath/tutorbill/payroll"
)

// =============================================================================
// MEMORY STORE - Implements payroll.Store and invoicing.Store
// =============================================================================

// Store keeps everything in maps behind one RWMutex. Reads return copies so
// callers can mutate results freely; line items additionally carry a sequence
// number so listing preserves insertion order.
type Store struct {
	mu sync.RWMutex

	families    map[string]domain.Family
	students    map[string]domain.Student
	teachers    map[string]domain.Teacher
	services    map[string]domain.Service
	enrollments map[string]domain.Enrollment
	assignments map[string]domain.TeacherAssignment
	leads       map[string]domain.Lead

	runs           map[string]payroll.PayrollRun
	payrollItems   map[string]seqPayrollItem
	payAdjustments map[string]payroll.PayrollAdjustment

	invoices     map[string]invoicing.Invoice
	invoiceItems map[string]seqInvoiceItem
	payments     map[string]invoicing.Payment
	orders       map[string]invoicing.AdHocOrder

	seq int64
}

type seqPayrollItem struct {
	item payroll.PayrollLineItem
	seq  int64
}

type seqInvoiceItem struct {
	item invoicing.InvoiceLineItem
	seq  int64
}

func New() *Store {
	return &Store{
		families:       make(map[string]domain.Family),
		students:       make(map[string]domain.Student),
		teachers:       make(map[string]domain.Teacher),
		services:       make(map[string]domain.Service),
		enrollments:    make(map[string]domain.Enrollment),
		assignments:    make(map[string]domain.TeacherAssignment),
		leads:          make(map[string]domain.Lead),
		runs:           make(map[string]payroll.PayrollRun),
		payrollItems:   make(map[string]seqPayrollItem),
		payAdjustments: make(map[string]payroll.PayrollAdjustment),
		invoices:       make(map[string]invoicing.Invoice),
		invoiceItems:   make(map[string]seqInvoiceItem),
		payments:       make(map[string]invoicing.Payment),
		orders:         make(map[string]invoicing.AdHocOrder),
	}
}

func (s *Store) nextSeq() int64 {
	s.seq++
	return s.seq
}

// =============================================================================
// ENTITY SEEDING / LOOKUP
// =============================================================================

func (s *Store) PutFamily(f domain.Family) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.families[f.ID] = f
}

func (s *Store) PutStudent(st domain.Student) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.students[st.ID] = st
}

func (s *Store) PutTeacher(t domain.Teacher) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.teachers[t.ID] = t
}

func (s *Store) PutService(svc domain.Service) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.services[svc.ID] = svc
}

func (s *Store) PutEnrollment(e domain.Enrollment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.enrollments[e.ID] = e
}

func (s *Store) PutAssignment(a domain.TeacherAssignment) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.assignments[a.ID] = a
}

func (s *Store) PutLead(l domain.Lead) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.leads[l.ID] = l
}

func (s *Store) PutOrder(o invoicing.AdHocOrder) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.orders[o.ID] = o
}

func (s *Store) GetFamily(_ context.Context, id string) (*domain.Family, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if f, ok := s.families[id]; ok {
		return &f, nil
	}
	return nil, nil
}

func (s *Store) GetTeacher(_ context.Context, id string) (*domain.Teacher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if t, ok := s.teachers[id]; ok {
		return &t, nil
	}
	return nil, nil
}

func (s *Store) ListLeads(_ context.Context) ([]domain.Lead, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]domain.Lead, 0, len(s.leads))
	for _, l := range s.leads {
		out = append(out, l)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) GetOrder(_ context.Context, id string) (*invoicing.AdHocOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if o, ok := s.orders[id]; ok {
		return &o, nil
	}
	return nil, nil
}

// =============================================================================
// PAYROLL STORE
// =============================================================================

// ActiveAssignments joins each active assignment to its teacher and, when
// resolvable, its service and student. Missing joins come back nil; the run
// builder decides what to do with them.
func (s *Store) ActiveAssignments(_ context.Context) ([]payroll.AssignmentContext, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.assignments))
	for id := range s.assignments {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []payroll.AssignmentContext
	for _, id := range ids {
		a := s.assignments[id]
		if !a.IsActive {
			continue
		}
		actx := payroll.AssignmentContext{
			Assignment: a,
			Teacher:    s.teachers[a.TeacherID],
		}
		switch {
		case a.ServiceID != nil:
			if svc, ok := s.services[*a.ServiceID]; ok {
				actx.Service = &svc
			}
		case a.EnrollmentID != nil:
			if e, ok := s.enrollments[*a.EnrollmentID]; ok {
				if svc, ok := s.services[e.ServiceID]; ok {
					actx.Service = &svc
				}
				if st, ok := s.students[e.StudentID]; ok {
					actx.Student = &st
				}
			}
		}
		out = append(out, actx)
	}
	return out, nil
}

func (s *Store) InsertRun(_ context.Context, run *payroll.PayrollRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.runs[run.ID] = *run
	return nil
}

func (s *Store) UpdateRun(_ context.Context, run *payroll.PayrollRun) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.runs[run.ID]; !ok {
		return payroll.ErrRunNotFound
	}
	s.runs[run.ID] = *run
	return nil
}

func (s *Store) DeleteRun(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.runs, runID)
	return nil
}

func (s *Store) GetRun(_ context.Context, runID string) (*payroll.PayrollRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if r, ok := s.runs[runID]; ok {
		return &r, nil
	}
	return nil, nil
}

func (s *Store) ListRuns(_ context.Context) ([]payroll.PayrollRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]payroll.PayrollRun, 0, len(s.runs))
	for _, r := range s.runs {
		out = append(out, r)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Period.Start.Before(out[j].Period.Start) })
	return out, nil
}

func (s *Store) OverlappingRunExists(_ context.Context, period dates.Period) (bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, r := range s.runs {
		if _, ok := r.Period.Overlap(period); ok {
			return true, nil
		}
	}
	return false, nil
}

func (s *Store) InsertLineItems(_ context.Context, items []payroll.PayrollLineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range items {
		s.payrollItems[items[i].ID] = seqPayrollItem{item: items[i], seq: s.nextSeq()}
	}
	return nil
}

func (s *Store) InsertLineItem(_ context.Context, item *payroll.PayrollLineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payrollItems[item.ID] = seqPayrollItem{item: *item, seq: s.nextSeq()}
	return nil
}

func (s *Store) UpdateLineItem(_ context.Context, item *payroll.PayrollLineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.payrollItems[item.ID]
	if !ok {
		return payroll.ErrLineItemNotFound
	}
	rec.item = *item
	s.payrollItems[item.ID] = rec
	return nil
}

func (s *Store) DeleteLineItem(_ context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.payrollItems, itemID)
	return nil
}

func (s *Store) DeleteLineItemsForRun(_ context.Context, runID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.payrollItems {
		if rec.item.RunID == runID {
			delete(s.payrollItems, id)
		}
	}
	return nil
}

func (s *Store) GetLineItem(_ context.Context, itemID string) (*payroll.PayrollLineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.payrollItems[itemID]; ok {
		item := rec.item
		return &item, nil
	}
	return nil, nil
}

func (s *Store) LineItemsForRun(_ context.Context, runID string) ([]payroll.PayrollLineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var recs []seqPayrollItem
	for _, rec := range s.payrollItems {
		if rec.item.RunID == runID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	out := make([]payroll.PayrollLineItem, len(recs))
	for i, rec := range recs {
		out[i] = rec.item
	}
	return out, nil
}

func (s *Store) InsertAdjustment(_ context.Context, adj *payroll.PayrollAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payAdjustments[adj.ID] = *adj
	return nil
}

func (s *Store) UpdateAdjustment(_ context.Context, adj *payroll.PayrollAdjustment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payAdjustments[adj.ID] = *adj
	return nil
}

func (s *Store) PendingAdjustments(_ context.Context) ([]payroll.PayrollAdjustment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []payroll.PayrollAdjustment
	for _, adj := range s.payAdjustments {
		if adj.Pending() {
			out = append(out, adj)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

// =============================================================================
// INVOICING STORE
// =============================================================================

func (s *Store) BillableEnrollments(_ context.Context) ([]invoicing.BillableEnrollment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	ids := make([]string, 0, len(s.enrollments))
	for id := range s.enrollments {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	var out []invoicing.BillableEnrollment
	for _, id := range ids {
		e := s.enrollments[id]
		if !e.IsActive {
			continue
		}
		out = append(out, invoicing.BillableEnrollment{
			Enrollment: e,
			Service:    s.services[e.ServiceID],
			Family:     s.families[e.FamilyID],
		})
	}
	return out, nil
}

func (s *Store) InsertInvoice(_ context.Context, inv *invoicing.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.invoices[inv.ID] = *inv
	return nil
}

func (s *Store) UpdateInvoice(_ context.Context, inv *invoicing.Invoice) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.invoices[inv.ID]; !ok {
		return invoicing.ErrInvoiceNotFound
	}
	s.invoices[inv.ID] = *inv
	return nil
}

func (s *Store) DeleteInvoice(_ context.Context, invoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.invoices, invoiceID)
	return nil
}

func (s *Store) GetInvoice(_ context.Context, invoiceID string) (*invoicing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if inv, ok := s.invoices[invoiceID]; ok {
		return &inv, nil
	}
	return nil, nil
}

func (s *Store) ListInvoicesByFamily(_ context.Context, familyID string) ([]invoicing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []invoicing.Invoice
	for _, inv := range s.invoices {
		if inv.FamilyID == familyID {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *Store) ListInvoicesByStatus(_ context.Context, statuses ...invoicing.InvoiceStatus) ([]invoicing.Invoice, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	want := make(map[invoicing.InvoiceStatus]bool, len(statuses))
	for _, st := range statuses {
		want[st] = true
	}
	var out []invoicing.Invoice
	for _, inv := range s.invoices {
		if want[inv.Status] {
			out = append(out, inv)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

func (s *Store) InsertInvoiceLineItems(_ context.Context, items []invoicing.InvoiceLineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range items {
		s.invoiceItems[items[i].ID] = seqInvoiceItem{item: items[i], seq: s.nextSeq()}
	}
	return nil
}

func (s *Store) UpdateInvoiceLineItem(_ context.Context, item *invoicing.InvoiceLineItem) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.invoiceItems[item.ID]
	if !ok {
		return invoicing.ErrInvoiceNotFound
	}
	rec.item = *item
	s.invoiceItems[item.ID] = rec
	return nil
}

func (s *Store) DeleteInvoiceLineItem(_ context.Context, itemID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.invoiceItems, itemID)
	return nil
}

func (s *Store) DeleteLineItemsForInvoice(_ context.Context, invoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for id, rec := range s.invoiceItems {
		if rec.item.InvoiceID == invoiceID {
			delete(s.invoiceItems, id)
		}
	}
	return nil
}

func (s *Store) GetInvoiceLineItem(_ context.Context, itemID string) (*invoicing.InvoiceLineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if rec, ok := s.invoiceItems[itemID]; ok {
		item := rec.item
		return &item, nil
	}
	return nil, nil
}

func (s *Store) LineItemsForInvoice(_ context.Context, invoiceID string) ([]invoicing.InvoiceLineItem, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var recs []seqInvoiceItem
	for _, rec := range s.invoiceItems {
		if rec.item.InvoiceID == invoiceID {
			recs = append(recs, rec)
		}
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].seq < recs[j].seq })
	out := make([]invoicing.InvoiceLineItem, len(recs))
	for i, rec := range recs {
		out[i] = rec.item
	}
	return out, nil
}

func (s *Store) InsertPayment(_ context.Context, p *invoicing.Payment) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.payments[p.ID] = *p
	return nil
}

func (s *Store) PaymentsForInvoice(_ context.Context, invoiceID string) ([]invoicing.Payment, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []invoicing.Payment
	for _, p := range s.payments {
		if p.InvoiceID == invoiceID {
			out = append(out, p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) ReassignPayments(_ context.Context, fromInvoiceIDs []string, toInvoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	from := make(map[string]bool, len(fromInvoiceIDs))
	for _, id := range fromInvoiceIDs {
		from[id] = true
	}
	for id, p := range s.payments {
		if from[p.InvoiceID] {
			p.InvoiceID = toInvoiceID
			s.payments[id] = p
		}
	}
	return nil
}

func (s *Store) PendingOrdersForFamily(_ context.Context, familyID string) ([]invoicing.AdHocOrder, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []invoicing.AdHocOrder
	for _, o := range s.orders {
		if o.FamilyID == familyID && o.Pending() {
			out = append(out, o)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (s *Store) LinkOrderToInvoice(_ context.Context, orderID, invoiceID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	o, ok := s.orders[orderID]
	if !ok {
		return fmt.Errorf("order not found: %s", orderID)
	}
	id := invoiceID
	o.InvoiceID = &id
	s.orders[orderID] = o
	return nil
}

// Compile-time interface checks.
var (
	_ payroll.Store   = (*Store)(nil)
	_ invoicing.Store = (*Store)(nil)
)
