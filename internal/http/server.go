// Package http exposes the JSON API over a stdlib mux: account and
// transaction CRUD, the carry-forward month endpoints and FX lookups.
package http

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"finify/internal/log"
	"finify/internal/services"
)

type Server struct {
	http.Server
	accounts     *services.AccountService
	months       *services.MonthService
	transactions *services.TransactionService
	baseCurrency string
}

// NewServer configures routes and middleware, returning a
// ready-to-run http.Server.
func NewServer(addr string, accounts *services.AccountService, months *services.MonthService, transactions *services.TransactionService, baseCurrency string, logger *log.Logger) *Server {
	s := &Server{
		accounts:     accounts,
		months:       months,
		transactions: transactions,
		baseCurrency: baseCurrency,
	}

	mux := http.NewServeMux()

	mux.HandleFunc("GET /healthz", func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
	})
	mux.Handle("GET /metrics", promhttp.Handler())

	api := http.NewServeMux()
	api.HandleFunc("POST /api/v1/accounts", s.handleCreateAccount)
	api.HandleFunc("GET /api/v1/accounts", s.handleListAccounts)
	api.HandleFunc("GET /api/v1/accounts/{id}", s.handleGetAccount)
	api.HandleFunc("PATCH /api/v1/accounts/{id}", s.handleUpdateAccount)

	api.HandleFunc("POST /api/v1/categories", s.handleCreateCategory)
	api.HandleFunc("GET /api/v1/categories", s.handleListCategories)

	api.HandleFunc("GET /api/v1/settings", s.handleGetSettings)
	api.HandleFunc("PUT /api/v1/settings", s.handlePutSettings)

	api.HandleFunc("POST /api/v1/months/ensure", s.handleEnsureMonth)
	api.HandleFunc("GET /api/v1/months/preview", s.handlePreviewMonth)
	api.HandleFunc("GET /api/v1/months", s.handleMonthsInRange)
	api.HandleFunc("GET /api/v1/months/{id}/summary", s.handleMonthSummary)

	api.HandleFunc("POST /api/v1/budgets", s.handleUpsertBudget)
	api.HandleFunc("GET /api/v1/budgets", s.handleListBudgets)

	api.HandleFunc("POST /api/v1/transactions", s.handleCreateTransaction)
	api.HandleFunc("GET /api/v1/transactions", s.handleListTransactions)
	api.HandleFunc("GET /api/v1/transactions/{id}", s.handleGetTransaction)
	api.HandleFunc("PUT /api/v1/transactions/{id}", s.handleUpdateTransaction)
	api.HandleFunc("DELETE /api/v1/transactions/{id}", s.handleDeleteTransaction)

	api.HandleFunc("POST /api/v1/transfers", s.handleCreateTransfer)
	api.HandleFunc("DELETE /api/v1/transfers/{movementID}", s.handleDeleteTransfer)

	api.HandleFunc("GET /api/v1/fx/rate", s.handleGetRate)

	mux.Handle("/api/v1/", requireUser(api))

	s.Server = http.Server{
		Addr:    addr,
		Handler: log.Middleware(logger)(mux),
	}
	return s
}
