/*
server.go - HTTP router and middleware configuration

PURPOSE:
  Configures the HTTP router (chi), middleware stack, and route
  definitions. This is the wiring layer that connects URLs to handlers.

MIDDLEWARE STACK:
  1. RequestID:  Unique ID per request for tracing
  2. Recoverer:  Panic recovery (500 instead of crash)
  3. logrus:     Structured request logging
  4. CORS:       Cross-origin requests for the frontend
  5. PIN gate:   Single shared secret; /api/health is exempt

AUTHENTICATION:
  This is a single-tenant application: one PIN, carried on every request
  in the X-Registro-Pin header. An empty configured PIN disables the
  gate (local development).

SEE ALSO:
  - handlers.go: Handler implementations
  - cmd/server/main.go: Server startup
*/
package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/sirupsen/logrus"
)

// Options carries the router's environment-dependent settings.
type Options struct {
	PIN            string
	AllowedOrigins []string
	Logger         *logrus.Logger
}

// NewRouter creates a new router with all routes configured.
func NewRouter(h *Handler, opts Options) *chi.Mux {
	log := opts.Logger
	if log == nil {
		log = logrus.StandardLogger()
	}
	origins := opts.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://localhost:8080"}
	}

	r := chi.NewRouter()

	// Middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(requestLogger(log))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   origins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Registro-Pin"},
		AllowCredentials: true,
	}))
	r.Use(pinGate(opts.PIN))

	// API routes
	r.Route("/api", func(r chi.Router) {
		r.Get("/health", h.Health)

		r.Route("/product-types", func(r chi.Router) {
			r.Get("/", h.ListProductTypes)
			r.Post("/", h.CreateProductType)
			r.Put("/{id}", h.UpdateProductType)
			r.Delete("/{id}", h.DeleteProductType)
		})

		r.Route("/products", func(r chi.Router) {
			r.Get("/", h.ListProducts)
			r.Post("/", h.CreateProduct)
			r.Get("/{id}", h.GetProduct)
			r.Put("/{id}", h.UpdateProduct)
			r.Put("/{id}/active", h.SetProductActive)
			r.Delete("/{id}", h.DeleteProduct)
			r.Get("/{id}/stock", h.GetProductStock)
		})

		r.Route("/entities", func(r chi.Router) {
			r.Get("/", h.ListEntities)
			r.Post("/", h.CreateEntity)
			r.Put("/{id}", h.UpdateEntity)
			r.Delete("/{id}", h.DeleteEntity)
			r.Get("/{id}/stock", h.GetEntityStock)
		})

		r.Route("/warehouses", func(r chi.Router) {
			r.Get("/", h.ListWarehouses)
			r.Post("/", h.CreateWarehouse)
			r.Delete("/{id}", h.DeleteWarehouse)
			r.Get("/{id}/stock", h.GetWarehouseStock)
			r.Get("/{id}/deficit", h.GetWarehouseDeficit)
			r.Get("/{id}/summary", h.GetWarehouseSummary)
		})

		r.Route("/portfolios", func(r chi.Router) {
			r.Get("/", h.ListPortfolios)
			r.Post("/", h.CreatePortfolio)
			r.Delete("/{id}", h.DeletePortfolio)
			r.Get("/{id}/balance", h.GetPortfolioBalance)
			r.Post("/{id}/balance/preview", h.PreviewPortfolioBalance)
		})

		r.Route("/customers", func(r chi.Router) {
			r.Get("/", h.ListCustomers)
			r.Post("/", h.CreateCustomer)
			r.Put("/{id}", h.UpdateCustomer)
			r.Delete("/{id}", h.DeleteCustomer)
			r.Get("/{id}/balance", h.GetCustomerBalance)
		})

		r.Route("/transaction-types", func(r chi.Router) {
			r.Get("/", h.ListTransactionTypes)
			r.Post("/", h.CreateTransactionType)
			r.Delete("/{id}", h.DeleteTransactionType)
		})

		r.Route("/transactions", func(r chi.Router) {
			r.Get("/", h.ListTransactions)
			r.Post("/", h.CreateTransaction)
			r.Get("/{id}", h.GetTransaction)
			r.Put("/{id}", h.UpdateTransaction)
			r.Delete("/{id}", h.DeleteTransaction)
			r.Post("/{id}/settle", h.SettleDebt)
		})

		r.Route("/balances", func(r chi.Router) {
			r.Get("/pair", h.GetPairBalance)
			r.Get("/company", h.GetCompanyBalance)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Get("/schema", h.GetSchemaVersion)
			r.Post("/rebuild", h.TriggerRebuild)
		})
	})

	return r
}

// requestLogger logs one structured line per request.
func requestLogger(log *logrus.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			log.WithFields(logrus.Fields{
				"method":     r.Method,
				"path":       r.URL.Path,
				"status":     ww.Status(),
				"bytes":      ww.BytesWritten(),
				"duration":   time.Since(start).String(),
				"request_id": middleware.GetReqID(r.Context()),
			}).Info("request")
		})
	}
}

// pinGate rejects requests without the shared PIN. Health stays open so
// deploy probes work unauthenticated.
func pinGate(pin string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if pin == "" || r.URL.Path == "/api/health" || r.Method == http.MethodOptions {
				next.ServeHTTP(w, r)
				return
			}
			if r.Header.Get("X-Registro-Pin") != pin {
				writeError(w, http.StatusUnauthorized, "missing or invalid PIN", nil)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
