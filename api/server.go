/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

ROUTER: chi
  Chi was chosen for:
  - Lightweight and fast
  - Context-based
  - Middleware support
  - RESTful route patterns

MIDDLEWARE STACK:
  1. Logger:     Request logging
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. RequestID:  Unique ID per request for tracing
  4. CORS:       Cross-origin requests for frontend

ROUTE GROUPS:
  /api/payroll/*       Payroll runs, line items, adjustments, workload
  /api/invoices/*      Invoice drafts, payments, consolidation, reminders
  /api/teachers/*      Teacher management
  /api/families/*      Family management
  /api/services/*      Service catalog
  /api/enrollments/*   Enrollments
  /api/assignments/*   Teacher assignments
  /api/orders/*        Ad-hoc orders (registration fees, materials)
  /api/leads/*         Lead pipeline with follow-up scores

SECURITY NOTE:
  No authentication middleware currently. All endpoints are public.
  Operations that record an actor read the X-Actor-ID header.

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{"http://localhost:5173", "http://localhost:8080"},
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Actor-ID"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Payroll routes
		r.Route("/payroll", func(r chi.Router) {
			r.Route("/runs", func(r chi.Router) {
				r.Get("/", h.ListRuns)
				r.Post("/", h.CreateRun)
				r.Get("/{id}", h.GetRun)
				r.Post("/{id}/status", h.AdvanceStatus)
				r.Post("/{id}/items", h.AddManualItem)
				r.Post("/{id}/bulk-hours", h.BulkHours)
			})
			r.Route("/items", func(r chi.Router) {
				r.Put("/{id}/hours", h.OverrideHours)
				r.Put("/{id}/adjustment", h.SetAdjustment)
				r.Delete("/{id}", h.DeleteManualItem)
			})
			r.Post("/adjustments", h.CreateAdjustment)
			r.Get("/workload", h.Workload)
		})

		// Invoice routes
		r.Route("/invoices", func(r chi.Router) {
			r.Get("/", h.ListInvoices)
			r.Post("/generate", h.GenerateDrafts)
			r.Post("/consolidate", h.Consolidate)
			r.Post("/reminders", h.SendReminders)
			r.Get("/{id}", h.GetInvoice)
			r.Post("/{id}/send", h.MarkSent)
			r.Post("/{id}/payments", h.RecordPayment)
			r.Post("/{id}/recalculate", h.RecalculateBalance)
			r.Post("/{id}/items", h.AddInvoiceItem)
			r.Route("/items", func(r chi.Router) {
				r.Put("/{id}", h.UpdateInvoiceItem)
				r.Delete("/{id}", h.DeleteInvoiceItem)
			})
		})

		// Entity routes
		r.Route("/teachers", func(r chi.Router) {
			r.Get("/", h.ListTeachers)
			r.Post("/", h.UpsertTeacher)
		})
		r.Route("/families", func(r chi.Router) {
			r.Get("/", h.ListFamilies)
			r.Post("/", h.UpsertFamily)
			r.Post("/{id}/students", h.UpsertStudent)
		})
		r.Post("/services", h.UpsertService)
		r.Post("/enrollments", h.UpsertEnrollment)
		r.Post("/assignments", h.UpsertAssignment)
		r.Post("/orders", h.CreateOrder)
		r.Route("/leads", func(r chi.Router) {
			r.Get("/", h.ListLeads)
			r.Post("/", h.UpsertLead)
		})
	})

	return r
}
