/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route definitions.
  This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Logger:     zerolog request line (request_id, method, path, status, latency)
  3. Recoverer:  Panic recovery (500 instead of crash)
  4. CORS:       Cross-origin requests for the frontend

ROUTE GROUPS:
  /api/auth/login, /api/auth/stores    Public
  everything else under /api           Bearer token required
  stores, users, approvals, VIP,
  dashboard, revenue, impersonation,
  scenarios, audit                     Administrator only

SEE ALSO:
  - handlers.go: Handler implementations
  - middleware.go: Authentication and request logging
  - cmd/server/main.go: Server startup
*/
package api

import (
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
)

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(requestLogger(h.Log))
	r.Use(middleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Content-Disposition"},
		AllowCredentials: true,
	}))

	r.Route("/api", func(r chi.Router) {
		// Public routes
		r.Post("/auth/login", h.Login)
		r.Get("/auth/stores", h.ListStoreOptions)

		r.Group(func(r chi.Router) {
			r.Use(h.authenticate)

			r.Get("/auth/me", h.Me)

			// Customer routes
			r.Route("/customers", func(r chi.Router) {
				r.Get("/", h.ListCustomers)
				r.Post("/", h.CreateCustomer)
				r.Put("/{id}", h.UpdateCustomer)
				r.Delete("/{id}", h.DeleteCustomer)
			})

			// Credit routes
			r.Route("/credits", func(r chi.Router) {
				r.Get("/", h.ListCredits)
				r.Post("/", h.RequestCredit)
				r.Get("/{id}", h.GetCredit)
				r.Post("/{id}/consumptions", h.RecordConsumption)
				r.Post("/{id}/payments", h.RecordPayment)
				r.With(requireAdmin).Post("/{id}/approve", h.ApproveCredit)
			})
			r.Post("/credit-requests", h.SubmitApplication)

			// History routes
			r.Get("/consumptions", h.ListConsumptions)
			r.Get("/payments", h.ListPayments)

			// Report routes
			r.Route("/reports", func(r chi.Router) {
				r.Get("/consumption", h.ConsumptionReport)
				r.Get("/revenue", h.RevenueReport)
				r.Get("/statement", h.StatementReport)
				r.Get("/statement.pdf", h.StatementPDF)
			})

			// Admin routes
			r.Group(func(r chi.Router) {
				r.Use(requireAdmin)

				r.Route("/stores", func(r chi.Router) {
					r.Get("/", h.ListStores)
					r.Post("/", h.CreateStore)
					r.Put("/{id}", h.UpdateStore)
					r.Delete("/{id}", h.DeleteStore)
				})

				r.Route("/users", func(r chi.Router) {
					r.Get("/", h.ListUsers)
					r.Post("/", h.CreateUser)
					r.Put("/{id}", h.UpdateUser)
					r.Delete("/{id}", h.DeleteUser)
				})

				r.Post("/vip-credits", h.OpenVIPCredit)
				r.Post("/impersonate/{storeID}", h.Impersonate)
				r.Get("/dashboard", h.Dashboard)
				r.Get("/revenue/monthly", h.MonthlyRevenue)

				r.Route("/audit", func(r chi.Router) {
					r.Get("/", h.RunAudit)
					r.Get("/runs", h.ListAuditRuns)
				})

				r.Route("/scenarios", func(r chi.Router) {
					r.Get("/", h.ListScenarios)
					r.Get("/current", h.GetCurrentScenario)
					r.Post("/load", h.LoadScenario)
				})
			})
		})
	})

	return r
}
