/*
entities.go - CRUD-lite handlers for the shared business entities

PURPOSE:
  Teachers, families, students, services, enrollments, assignments, ad-hoc
  orders, and leads feed the payroll and invoicing engines. Writes are
  upserts: POST with an id updates, POST without one creates.

SEE ALSO:
  - handlers.go: Payroll and invoicing handlers, shared helpers
  - store/sqlite/entities.go: Persistence
*/
package api

import (
	"net/http"
	"sort"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/domain"
	"github.com/brightpath/tutorbill/invoicing"
	"github.com/brightpath/tutorbill/money"
)

// =============================================================================
// REQUEST TYPES
// =============================================================================

// TeacherRequest creates or updates a teacher.
type TeacherRequest struct {
	ID                string   `json:"id"`
	Name              string   `json:"name" validate:"required"`
	DefaultHourlyRate *float64 `json:"default_hourly_rate,omitempty"`
}

// FamilyRequest creates or updates a family.
type FamilyRequest struct {
	ID    string `json:"id"`
	Name  string `json:"name" validate:"required"`
	Email string `json:"email" validate:"omitempty,email"`
}

// StudentRequest creates or updates a student under a family.
type StudentRequest struct {
	ID   string `json:"id"`
	Name string `json:"name" validate:"required"`
}

// ServiceRequest creates or updates a service.
type ServiceRequest struct {
	ID                  string   `json:"id"`
	Name                string   `json:"name" validate:"required"`
	Code                string   `json:"code"`
	BillingFrequency    string   `json:"billing_frequency" validate:"required,oneof=per_session weekly monthly bi_monthly annual one_time"`
	DefaultCustomerRate *float64 `json:"default_customer_rate,omitempty"`
	DefaultTeacherRate  *float64 `json:"default_teacher_rate,omitempty"`
}

// EnrollmentRequest creates or updates an enrollment.
type EnrollmentRequest struct {
	ID                 string   `json:"id"`
	StudentID          string   `json:"student_id" validate:"required"`
	FamilyID           string   `json:"family_id" validate:"required"`
	ServiceID          string   `json:"service_id" validate:"required"`
	MonthlyRate        *float64 `json:"monthly_rate,omitempty"`
	WeeklyTuition      *float64 `json:"weekly_tuition,omitempty"`
	HourlyRateCustomer *float64 `json:"hourly_rate_customer,omitempty"`
	DailyRate          *float64 `json:"daily_rate,omitempty"`
	HoursPerWeek       *string  `json:"hours_per_week,omitempty"`
	ClassTitle         string   `json:"class_title"`
	IsActive           bool     `json:"is_active"`
}

// AssignmentRequest creates or updates a teacher assignment. Exactly one of
// enrollment_id / service_id must be set.
type AssignmentRequest struct {
	ID                string   `json:"id"`
	TeacherID         string   `json:"teacher_id" validate:"required"`
	EnrollmentID      *string  `json:"enrollment_id,omitempty"`
	ServiceID         *string  `json:"service_id,omitempty"`
	HourlyRateTeacher *float64 `json:"hourly_rate_teacher,omitempty"`
	HoursPerWeek      *string  `json:"hours_per_week,omitempty"`
	StartDate         *string  `json:"start_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	EndDate           *string  `json:"end_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
	IsActive          bool     `json:"is_active"`
}

// OrderRequest records a one-off charge awaiting an invoice.
type OrderRequest struct {
	FamilyID   string  `json:"family_id" validate:"required"`
	ClassTitle string  `json:"class_title" validate:"required"`
	Amount     float64 `json:"amount" validate:"required,gt=0"`
}

// LeadRequest creates or updates a lead.
type LeadRequest struct {
	ID               string  `json:"id"`
	Name             string  `json:"name" validate:"required"`
	Email            string  `json:"email" validate:"omitempty,email"`
	Status           string  `json:"status" validate:"required,oneof=new contacted trial_booked converted lost"`
	RequestedService string  `json:"requested_service"`
	LastContactDate  *string `json:"last_contact_date,omitempty" validate:"omitempty,datetime=2006-01-02"`
}

// LeadDTO is a lead plus its computed follow-up score.
type LeadDTO struct {
	ID               string      `json:"id"`
	Name             string      `json:"name"`
	Email            string      `json:"email,omitempty"`
	Status           string      `json:"status"`
	RequestedService string      `json:"requested_service,omitempty"`
	LastContactDate  *dates.Date `json:"last_contact_date,omitempty"`
	CreatedDate      dates.Date  `json:"created_date"`
	Score            int         `json:"score"`
}

// =============================================================================
// CONVERSION HELPERS
// =============================================================================

func orID(id string) string {
	if id != "" {
		return id
	}
	return uuid.New().String()
}

func dollarsPtr(v *float64) *money.Money {
	if v == nil {
		return nil
	}
	m := money.FromDollars(*v)
	return &m
}

func hoursPtr(s *string) (*decimal.Decimal, error) {
	if s == nil {
		return nil, nil
	}
	d, err := decimal.NewFromString(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

func isoDatePtr(s *string) (*dates.Date, error) {
	if s == nil {
		return nil, nil
	}
	d, err := dates.Parse(*s)
	if err != nil {
		return nil, err
	}
	return &d, nil
}

// =============================================================================
// TEACHERS / FAMILIES / STUDENTS
// =============================================================================

func (h *Handler) UpsertTeacher(w http.ResponseWriter, r *http.Request) {
	var req TeacherRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	t := &domain.Teacher{
		ID:                orID(req.ID),
		Name:              req.Name,
		DefaultHourlyRate: dollarsPtr(req.DefaultHourlyRate),
	}
	if err := h.Store.UpsertTeacher(r.Context(), t); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save teacher", err)
		return
	}
	writeJSON(w, http.StatusCreated, t)
}

func (h *Handler) ListTeachers(w http.ResponseWriter, r *http.Request) {
	teachers, err := h.Store.ListTeachers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list teachers", err)
		return
	}
	writeJSON(w, http.StatusOK, teachers)
}

func (h *Handler) UpsertFamily(w http.ResponseWriter, r *http.Request) {
	var req FamilyRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	f := &domain.Family{ID: orID(req.ID), Name: req.Name, Email: req.Email}
	if err := h.Store.UpsertFamily(r.Context(), f); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save family", err)
		return
	}
	writeJSON(w, http.StatusCreated, f)
}

func (h *Handler) ListFamilies(w http.ResponseWriter, r *http.Request) {
	families, err := h.Store.ListFamilies(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list families", err)
		return
	}
	writeJSON(w, http.StatusOK, families)
}

func (h *Handler) UpsertStudent(w http.ResponseWriter, r *http.Request) {
	var req StudentRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	familyID := chi.URLParam(r, "id")
	family, err := h.Store.GetFamily(r.Context(), familyID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to look up family", err)
		return
	}
	if family == nil {
		writeError(w, http.StatusNotFound, "Family not found", nil)
		return
	}

	st := &domain.Student{ID: orID(req.ID), FamilyID: familyID, Name: req.Name}
	if err := h.Store.UpsertStudent(r.Context(), st); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save student", err)
		return
	}
	writeJSON(w, http.StatusCreated, st)
}

// =============================================================================
// SERVICES / ENROLLMENTS / ASSIGNMENTS
// =============================================================================

func (h *Handler) UpsertService(w http.ResponseWriter, r *http.Request) {
	var req ServiceRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	svc := &domain.Service{
		ID:                  orID(req.ID),
		Name:                req.Name,
		Code:                req.Code,
		BillingFrequency:    domain.BillingFrequency(req.BillingFrequency),
		DefaultCustomerRate: dollarsPtr(req.DefaultCustomerRate),
		DefaultTeacherRate:  dollarsPtr(req.DefaultTeacherRate),
	}
	if err := h.Store.UpsertService(r.Context(), svc); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save service", err)
		return
	}
	writeJSON(w, http.StatusCreated, svc)
}

func (h *Handler) UpsertEnrollment(w http.ResponseWriter, r *http.Request) {
	var req EnrollmentRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	hpw, err := hoursPtr(req.HoursPerWeek)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hours_per_week", err)
		return
	}

	e := &domain.Enrollment{
		ID:                 orID(req.ID),
		StudentID:          req.StudentID,
		FamilyID:           req.FamilyID,
		ServiceID:          req.ServiceID,
		MonthlyRate:        dollarsPtr(req.MonthlyRate),
		WeeklyTuition:      dollarsPtr(req.WeeklyTuition),
		HourlyRateCustomer: dollarsPtr(req.HourlyRateCustomer),
		DailyRate:          dollarsPtr(req.DailyRate),
		HoursPerWeek:       hpw,
		ClassTitle:         req.ClassTitle,
		IsActive:           req.IsActive,
	}
	if err := h.Store.UpsertEnrollment(r.Context(), e); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save enrollment", err)
		return
	}
	writeJSON(w, http.StatusCreated, e)
}

func (h *Handler) UpsertAssignment(w http.ResponseWriter, r *http.Request) {
	var req AssignmentRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	hpw, err := hoursPtr(req.HoursPerWeek)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hours_per_week", err)
		return
	}
	start, err := isoDatePtr(req.StartDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid start_date", err)
		return
	}
	end, err := isoDatePtr(req.EndDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid end_date", err)
		return
	}

	a := &domain.TeacherAssignment{
		ID:                orID(req.ID),
		TeacherID:         req.TeacherID,
		EnrollmentID:      req.EnrollmentID,
		ServiceID:         req.ServiceID,
		HourlyRateTeacher: dollarsPtr(req.HourlyRateTeacher),
		HoursPerWeek:      hpw,
		StartDate:         start,
		EndDate:           end,
		IsActive:          req.IsActive,
	}
	if err := h.Store.UpsertAssignment(r.Context(), a); err != nil {
		writeDomainError(w, "Failed to save assignment", err)
		return
	}
	writeJSON(w, http.StatusCreated, a)
}

// =============================================================================
// ORDERS / LEADS
// =============================================================================

func (h *Handler) CreateOrder(w http.ResponseWriter, r *http.Request) {
	var req OrderRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	order := &invoicing.AdHocOrder{
		ID:         uuid.New().String(),
		FamilyID:   req.FamilyID,
		ClassTitle: req.ClassTitle,
		Amount:     money.FromDollars(req.Amount),
		CreatedAt:  time.Now().UTC(),
	}
	if err := h.Store.InsertOrder(r.Context(), order); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save order", err)
		return
	}
	writeJSON(w, http.StatusCreated, order)
}

func (h *Handler) UpsertLead(w http.ResponseWriter, r *http.Request) {
	var req LeadRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	lastContact, err := isoDatePtr(req.LastContactDate)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid last_contact_date", err)
		return
	}

	l := &domain.Lead{
		ID:               orID(req.ID),
		Name:             req.Name,
		Email:            req.Email,
		Status:           domain.LeadStatus(req.Status),
		RequestedService: req.RequestedService,
		LastContactDate:  lastContact,
		CreatedDate:      dates.Today(),
	}
	if err := h.Store.UpsertLead(r.Context(), l); err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to save lead", err)
		return
	}
	writeJSON(w, http.StatusCreated, leadDTO(*l, dates.Today()))
}

// ListLeads returns all leads with follow-up scores, highest first.
func (h *Handler) ListLeads(w http.ResponseWriter, r *http.Request) {
	leads, err := h.Store.ListLeads(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list leads", err)
		return
	}

	asOf := dates.Today()
	dtos := make([]LeadDTO, len(leads))
	for i, l := range leads {
		dtos[i] = leadDTO(l, asOf)
	}
	sort.SliceStable(dtos, func(i, j int) bool { return dtos[i].Score > dtos[j].Score })
	writeJSON(w, http.StatusOK, dtos)
}

func leadDTO(l domain.Lead, asOf dates.Date) LeadDTO {
	return LeadDTO{
		ID:               l.ID,
		Name:             l.Name,
		Email:            l.Email,
		Status:           string(l.Status),
		RequestedService: l.RequestedService,
		LastContactDate:  l.LastContactDate,
		CreatedDate:      l.CreatedDate,
		Score:            l.Score(asOf),
	}
}
