/*
handlers.go - HTTP API handlers for the billing and payroll engine

PURPOSE:
  Exposes the payroll and invoicing engines via REST API. Handles HTTP
  request/response, JSON serialization, and delegates to domain logic.

ENDPOINTS:
  Payroll:
    POST   /api/payroll/runs                 Create a run for a period
    GET    /api/payroll/runs                 List runs
    GET    /api/payroll/runs/{id}            Run with line items
    POST   /api/payroll/runs/{id}/status     Advance lifecycle (X-Actor-ID)
    POST   /api/payroll/runs/{id}/items      Add ad-hoc line item
    POST   /api/payroll/runs/{id}/bulk-hours Bulk hour entry
    PUT    /api/payroll/items/{id}/hours     Override actual hours
    PUT    /api/payroll/items/{id}/adjustment Set adjustment
    DELETE /api/payroll/items/{id}           Delete ad-hoc item
    POST   /api/payroll/adjustments          Carry-forward adjustment
    GET    /api/payroll/workload             Weekly hours per teacher

  Invoicing:
    POST   /api/invoices/generate            Generate drafts per family
    GET    /api/invoices                     List (?family_id= or ?status=)
    GET    /api/invoices/{id}                Invoice with line items
    POST   /api/invoices/consolidate         Merge outstanding invoices
    POST   /api/invoices/{id}/send           Mark sent
    POST   /api/invoices/{id}/payments       Record payment
    POST   /api/invoices/{id}/recalculate    Repair cached balance
    POST   /api/invoices/{id}/items          Add line item
    PUT    /api/invoices/items/{id}          Update line item
    DELETE /api/invoices/items/{id}          Delete line item
    POST   /api/invoices/reminders           Send payment reminders

ERROR HANDLING:
  Errors are returned as JSON with appropriate HTTP status:
  - 400: Malformed body, failed validation
  - 404: Resource not found
  - 409: Conflict (overlapping payroll period)
  - 422: Domain rule violations (lifecycle, consolidation eligibility)
  - 500: Internal errors

IDENTITY:
  No ambient identity. Operations that record an actor (run approval)
  read the X-Actor-ID header explicitly.

SEE ALSO:
  - dto.go: Request/response data structures
  - server.go: Router setup and middleware
  - entities.go: Entity CRUD-lite handlers
*/
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"
	"github.com/shopspring/decimal"
	"github.com/sirupsen/logrus"

	"github.com/brightpath/tutorbill/dates"
	"github.com/brightpath/tutorbill/domain"
	"github.com/brightpath/tutorbill/invoicing"
	"github.com/brightpath/tutorbill/money"
	"github.com/brightpath/tutorbill/notify"
	"github.com/brightpath/tutorbill/payroll"
	"github.com/brightpath/tutorbill/store/sqlite"
)

// =============================================================================
// HANDLER CONTEXT
// =============================================================================

// Handler holds all dependencies for HTTP handlers.
type Handler struct {
	Store    *sqlite.Store
	Log      *logrus.Logger
	Notifier notify.Notifier

	builder      *payroll.Builder
	editor       *payroll.Editor
	generator    *invoicing.Generator
	consolidator *invoicing.Consolidator
	ledger       *invoicing.Ledger

	validate *validator.Validate
}

// NewHandler creates a new handler with the given store.
func NewHandler(store *sqlite.Store, log *logrus.Logger, notifier notify.Notifier) *Handler {
	if notifier == nil {
		notifier = notify.Noop{}
	}
	return &Handler{
		Store:        store,
		Log:          log,
		Notifier:     notifier,
		builder:      payroll.NewBuilder(store),
		editor:       payroll.NewEditor(store),
		generator:    invoicing.NewGenerator(store),
		consolidator: invoicing.NewConsolidator(store),
		ledger:       invoicing.NewLedger(store),
		validate:     validator.New(),
	}
}

// decodeAndValidate parses the JSON body and runs struct validation.
func (h *Handler) decodeAndValidate(r *http.Request, dst any) error {
	if err := json.NewDecoder(r.Body).Decode(dst); err != nil {
		return fmt.Errorf("invalid request body: %w", err)
	}
	return h.validate.Struct(dst)
}

func actor(r *http.Request) string {
	if a := r.Header.Get("X-Actor-ID"); a != "" {
		return a
	}
	return "unknown"
}

// =============================================================================
// PAYROLL HANDLERS
// =============================================================================

// CreateRun builds a payroll run for a period.
func (h *Handler) CreateRun(w http.ResponseWriter, r *http.Request) {
	var req CreateRunRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	period, err := parsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}

	result, err := h.builder.CreateRun(r.Context(), period, time.Now().UTC())
	if err != nil {
		writeDomainError(w, "Failed to create payroll run", err)
		return
	}

	h.Log.WithFields(logrus.Fields{
		"run_id":   result.Run.ID,
		"period":   result.Run.Period.String(),
		"items":    len(result.Items),
		"warnings": len(result.Warnings),
	}).Info("payroll run created")

	writeJSON(w, http.StatusCreated, runDTO(result.Run, result.Warnings))
}

// ListRuns returns all payroll runs.
func (h *Handler) ListRuns(w http.ResponseWriter, r *http.Request) {
	runs, err := h.Store.ListRuns(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list runs", err)
		return
	}
	dtos := make([]RunDTO, len(runs))
	for i := range runs {
		dtos[i] = runDTO(&runs[i], nil)
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetRun returns one run with its line items.
func (h *Handler) GetRun(w http.ResponseWriter, r *http.Request) {
	runID := chi.URLParam(r, "id")
	run, err := h.Store.GetRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get run", err)
		return
	}
	if run == nil {
		writeError(w, http.StatusNotFound, "Payroll run not found", nil)
		return
	}

	items, err := h.Store.LineItemsForRun(r.Context(), runID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load line items", err)
		return
	}
	payroll.SortItemsByTeacher(items)

	itemDTOs := make([]RunItemDTO, len(items))
	for i, item := range items {
		itemDTOs[i] = runItemDTO(item)
	}
	writeJSON(w, http.StatusOK, struct {
		RunDTO
		Items []RunItemDTO `json:"items"`
	}{runDTO(run, nil), itemDTOs})
}

// AdvanceStatus moves a run one lifecycle step forward.
func (h *Handler) AdvanceStatus(w http.ResponseWriter, r *http.Request) {
	var req AdvanceStatusRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	run, err := h.editor.AdvanceStatus(r.Context(), chi.URLParam(r, "id"),
		payroll.RunStatus(req.Status), actor(r), time.Now().UTC())
	if err != nil {
		writeDomainError(w, "Failed to advance run status", err)
		return
	}
	writeJSON(w, http.StatusOK, runDTO(run, nil))
}

// OverrideHours sets a line item's actual hours.
func (h *Handler) OverrideHours(w http.ResponseWriter, r *http.Request) {
	var req OverrideHoursRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	hours, err := decimal.NewFromString(req.Hours)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hours value", err)
		return
	}

	item, err := h.editor.OverrideHours(r.Context(), chi.URLParam(r, "id"), hours)
	if err != nil {
		writeDomainError(w, "Failed to override hours", err)
		return
	}
	writeJSON(w, http.StatusOK, runItemDTO(*item))
}

// SetAdjustment sets a line item's adjustment amount and note.
func (h *Handler) SetAdjustment(w http.ResponseWriter, r *http.Request) {
	var req SetAdjustmentRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	item, err := h.editor.SetAdjustment(r.Context(), chi.URLParam(r, "id"),
		money.FromDollars(*req.Amount), req.Note)
	if err != nil {
		writeDomainError(w, "Failed to set adjustment", err)
		return
	}
	writeJSON(w, http.StatusOK, runItemDTO(*item))
}

// BulkHours keys in hours for several teachers at once.
func (h *Handler) BulkHours(w http.ResponseWriter, r *http.Request) {
	var req BulkHoursRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	hours, err := decimal.NewFromString(req.Hours)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hours value", err)
		return
	}

	updated, err := h.editor.BulkSetHours(r.Context(), chi.URLParam(r, "id"), req.TeacherIDs, hours)
	if err != nil {
		writeDomainError(w, "Failed to set hours", err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]int{"updated": updated})
}

// AddManualItem inserts an ad-hoc payroll line item.
func (h *Handler) AddManualItem(w http.ResponseWriter, r *http.Request) {
	var req ManualItemRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	hours, err := decimal.NewFromString(req.Hours)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid hours value", err)
		return
	}

	item, err := h.editor.AddManualItem(r.Context(), chi.URLParam(r, "id"),
		req.TeacherID, req.Description, hours, money.FromDollars(req.HourlyRate))
	if err != nil {
		writeDomainError(w, "Failed to add line item", err)
		return
	}
	writeJSON(w, http.StatusCreated, runItemDTO(*item))
}

// DeleteManualItem removes an ad-hoc line item.
func (h *Handler) DeleteManualItem(w http.ResponseWriter, r *http.Request) {
	if err := h.editor.DeleteManualItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete line item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateAdjustment records a carry-forward credit/debit.
func (h *Handler) CreateAdjustment(w http.ResponseWriter, r *http.Request) {
	var req CreateAdjustmentRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	adj, err := h.editor.CreateAdjustment(r.Context(), req.TeacherID,
		money.FromDollars(req.Amount), req.Note, req.SourceRunID, time.Now().UTC())
	if err != nil {
		writeDomainError(w, "Failed to create adjustment", err)
		return
	}
	writeJSON(w, http.StatusCreated, adj)
}

// Workload returns weekly committed hours per teacher.
func (h *Handler) Workload(w http.ResponseWriter, r *http.Request) {
	assignments, err := h.Store.ActiveAssignments(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load assignments", err)
		return
	}

	workloads := payroll.AggregateWorkload(assignments)
	dtos := make([]WorkloadDTO, len(workloads))
	for i, wl := range workloads {
		dtos[i] = WorkloadDTO{
			TeacherID:       wl.TeacherID,
			TeacherName:     wl.TeacherName,
			WeeklyHours:     wl.WeeklyHours,
			AssignmentCount: wl.AssignmentCount,
			VariableCount:   wl.VariableCount,
		}
	}
	writeJSON(w, http.StatusOK, dtos)
}

// =============================================================================
// INVOICING HANDLERS
// =============================================================================

// GenerateDrafts creates one draft invoice per billable family.
func (h *Handler) GenerateDrafts(w http.ResponseWriter, r *http.Request) {
	var req GenerateDraftsRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	period, err := parsePeriod(req.PeriodStart, req.PeriodEnd)
	if err != nil {
		writeError(w, http.StatusBadRequest, "Invalid period", err)
		return
	}
	issueDate, _ := dates.Parse(req.IssueDate)
	dueDate, _ := dates.Parse(req.DueDate)

	result, err := h.generator.GenerateDrafts(r.Context(), invoicing.GenerateOptions{
		Period:    period,
		IssueDate: issueDate,
		DueDate:   dueDate,
		Monthly:   req.Monthly,
	}, time.Now().UTC())
	if err != nil && !errors.Is(err, invoicing.ErrNoFamiliesBilled) {
		writeDomainError(w, "Failed to generate drafts", err)
		return
	}

	dto := DraftResultDTO{Warnings: result.Warnings}
	for i := range result.Created {
		dto.Created = append(dto.Created, invoiceDTO(&result.Created[i]))
	}
	for _, f := range result.Failures {
		dto.Failures = append(dto.Failures, FamilyFailure{FamilyID: f.FamilyID, Reason: f.Reason})
	}

	h.Log.WithFields(logrus.Fields{
		"created":  len(dto.Created),
		"failures": len(dto.Failures),
	}).Info("invoice drafts generated")

	status := http.StatusCreated
	if errors.Is(err, invoicing.ErrNoFamiliesBilled) {
		status = http.StatusUnprocessableEntity
	}
	writeJSON(w, status, dto)
}

// ListInvoices filters by family_id or status query parameters.
func (h *Handler) ListInvoices(w http.ResponseWriter, r *http.Request) {
	var (
		invoices []invoicing.Invoice
		err      error
	)
	switch {
	case r.URL.Query().Get("family_id") != "":
		invoices, err = h.Store.ListInvoicesByFamily(r.Context(), r.URL.Query().Get("family_id"))
	case r.URL.Query().Get("status") != "":
		invoices, err = h.Store.ListInvoicesByStatus(r.Context(), invoicing.InvoiceStatus(r.URL.Query().Get("status")))
	default:
		invoices, err = h.Store.ListInvoicesByStatus(r.Context(),
			invoicing.StatusDraft, invoicing.StatusSent, invoicing.StatusPartial,
			invoicing.StatusOverdue, invoicing.StatusPaid)
	}
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list invoices", err)
		return
	}

	dtos := make([]InvoiceDTO, len(invoices))
	for i := range invoices {
		dtos[i] = invoiceDTO(&invoices[i])
	}
	writeJSON(w, http.StatusOK, dtos)
}

// GetInvoice returns one invoice with its line items.
func (h *Handler) GetInvoice(w http.ResponseWriter, r *http.Request) {
	invoiceID := chi.URLParam(r, "id")
	inv, err := h.Store.GetInvoice(r.Context(), invoiceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get invoice", err)
		return
	}
	if inv == nil {
		writeError(w, http.StatusNotFound, "Invoice not found", nil)
		return
	}

	items, err := h.Store.LineItemsForInvoice(r.Context(), invoiceID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to load line items", err)
		return
	}
	itemDTOs := make([]InvoiceItemDTO, len(items))
	for i, item := range items {
		itemDTOs[i] = invoiceItemDTO(item)
	}
	writeJSON(w, http.StatusOK, struct {
		InvoiceDTO
		Items []InvoiceItemDTO `json:"items"`
	}{invoiceDTO(inv), itemDTOs})
}

// Consolidate merges outstanding invoices into one.
func (h *Handler) Consolidate(w http.ResponseWriter, r *http.Request) {
	var req ConsolidateRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	issueDate, _ := dates.Parse(req.IssueDate)

	result, err := h.consolidator.Consolidate(r.Context(), req.InvoiceIDs, issueDate, time.Now().UTC())
	if err != nil {
		writeDomainError(w, "Failed to consolidate invoices", err)
		return
	}

	h.Log.WithFields(logrus.Fields{
		"invoice_id": result.Invoice.ID,
		"sources":    len(req.InvoiceIDs),
		"warnings":   len(result.Warnings),
	}).Info("invoices consolidated")

	writeJSON(w, http.StatusCreated, struct {
		InvoiceDTO
		Warnings []string `json:"warnings,omitempty"`
	}{invoiceDTO(result.Invoice), result.Warnings})
}

// MarkSent moves a draft invoice to sent.
func (h *Handler) MarkSent(w http.ResponseWriter, r *http.Request) {
	inv, err := h.ledger.MarkSent(r.Context(), chi.URLParam(r, "id"), dates.Today())
	if err != nil {
		writeDomainError(w, "Failed to mark invoice sent", err)
		return
	}
	writeJSON(w, http.StatusOK, invoiceDTO(inv))
}

// RecordPayment records a payment against an invoice.
func (h *Handler) RecordPayment(w http.ResponseWriter, r *http.Request) {
	var req RecordPaymentRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}
	paidAt, _ := dates.Parse(req.PaidAt)

	p, err := h.ledger.RecordPayment(r.Context(), chi.URLParam(r, "id"),
		money.FromDollars(req.Amount), paidAt, req.Method, req.Note)
	if err != nil {
		writeDomainError(w, "Failed to record payment", err)
		return
	}
	writeJSON(w, http.StatusCreated, p)
}

// RecalculateBalance rebuilds the cached aggregates from payment rows.
func (h *Handler) RecalculateBalance(w http.ResponseWriter, r *http.Request) {
	inv, err := h.ledger.RecalculateBalance(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeDomainError(w, "Failed to recalculate balance", err)
		return
	}
	writeJSON(w, http.StatusOK, invoiceDTO(inv))
}

// AddInvoiceItem appends an ad-hoc line item.
func (h *Handler) AddInvoiceItem(w http.ResponseWriter, r *http.Request) {
	var req InvoiceItemRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	item, err := h.ledger.AddLineItem(r.Context(), chi.URLParam(r, "id"),
		req.Description, money.FromDollars(*req.Amount))
	if err != nil {
		writeDomainError(w, "Failed to add line item", err)
		return
	}
	writeJSON(w, http.StatusCreated, invoiceItemDTO(*item))
}

// UpdateInvoiceItem replaces a line item's description and amount.
func (h *Handler) UpdateInvoiceItem(w http.ResponseWriter, r *http.Request) {
	var req InvoiceItemRequest
	if err := h.decodeAndValidate(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "Invalid request", err)
		return
	}

	item, err := h.Store.GetInvoiceLineItem(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to get line item", err)
		return
	}
	if item == nil {
		writeError(w, http.StatusNotFound, "Line item not found", nil)
		return
	}

	item.Description = req.Description
	item.Amount = money.FromDollars(*req.Amount)
	inv, err := h.ledger.UpdateLineItem(r.Context(), item)
	if err != nil {
		writeDomainError(w, "Failed to update line item", err)
		return
	}
	writeJSON(w, http.StatusOK, struct {
		Item    InvoiceItemDTO `json:"item"`
		Invoice InvoiceDTO     `json:"invoice"`
	}{invoiceItemDTO(*item), invoiceDTO(inv)})
}

// DeleteInvoiceItem removes a line item and rebuilds totals.
func (h *Handler) DeleteInvoiceItem(w http.ResponseWriter, r *http.Request) {
	if _, err := h.ledger.DeleteLineItem(r.Context(), chi.URLParam(r, "id")); err != nil {
		writeDomainError(w, "Failed to delete line item", err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// SendReminders sends a payment reminder for every outstanding invoice.
func (h *Handler) SendReminders(w http.ResponseWriter, r *http.Request) {
	invoices, err := h.Store.ListInvoicesByStatus(r.Context(),
		invoicing.StatusSent, invoicing.StatusPartial, invoicing.StatusOverdue)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to list outstanding invoices", err)
		return
	}

	var msgs []notify.Message
	for i := range invoices {
		inv := &invoices[i]
		family, err := h.Store.GetFamily(r.Context(), inv.FamilyID)
		if err != nil || family == nil || family.Email == "" {
			continue
		}
		msgs = append(msgs, notify.Message{
			Recipient: family.Email,
			Subject:   fmt.Sprintf("Payment reminder: invoice %s", inv.Number),
			Body: fmt.Sprintf("Invoice %s has a balance of %s, due %s.",
				inv.Number, inv.BalanceDue(), inv.DueDate),
			Kind: "payment_reminder",
		})
	}

	batcher := notify.NewBatcher(h.Notifier)
	result, err := batcher.SendAll(r.Context(), msgs)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Reminder send interrupted", err)
		return
	}

	dto := ReminderResultDTO{Sent: result.Sent}
	for _, f := range result.Failed {
		dto.Failed = append(dto.Failed, f.Recipient+": "+f.Reason)
	}
	writeJSON(w, http.StatusOK, dto)
}

// =============================================================================
// SHARED HELPERS
// =============================================================================

func parsePeriod(start, end string) (dates.Period, error) {
	s, err := dates.Parse(start)
	if err != nil {
		return dates.Period{}, err
	}
	e, err := dates.Parse(end)
	if err != nil {
		return dates.Period{}, err
	}
	p := dates.Period{Start: s, End: e}
	return p, p.Validate()
}

// writeDomainError maps sentinel errors to HTTP statuses.
func writeDomainError(w http.ResponseWriter, message string, err error) {
	switch {
	case errors.Is(err, payroll.ErrRunNotFound),
		errors.Is(err, payroll.ErrLineItemNotFound),
		errors.Is(err, invoicing.ErrInvoiceNotFound):
		writeError(w, http.StatusNotFound, message, err)
	case errors.Is(err, payroll.ErrPeriodOverlap):
		writeError(w, http.StatusConflict, message, err)
	case errors.Is(err, payroll.ErrRunNotEditable),
		errors.Is(err, payroll.ErrInvalidTransition),
		errors.Is(err, payroll.ErrLineItemHasAssignment),
		errors.Is(err, invoicing.ErrInvoiceVoid),
		errors.Is(err, invoicing.ErrTooFewInvoices),
		errors.Is(err, invoicing.ErrCrossFamilyConsolidation),
		errors.Is(err, invoicing.ErrNotOutstanding),
		errors.Is(err, invoicing.ErrNoFamiliesBilled),
		errors.Is(err, domain.ErrAssignmentScope),
		errors.Is(err, dates.ErrInvalidPeriod):
		writeError(w, http.StatusUnprocessableEntity, message, err)
	default:
		writeError(w, http.StatusInternalServerError, message, err)
	}
}

func writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := ErrorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
