package http

import (
	"net/http"

	"finify/internal/core"
)

type createAccountRequest struct {
	Name     string `json:"name"`
	Currency string `json:"currency"`
	Kind     string `json:"kind"`
	CoinID   string `json:"coin_id"`
}

func (s *Server) handleCreateAccount(w http.ResponseWriter, r *http.Request) {
	var req createAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	account, err := s.accounts.CreateAccount(r.Context(), core.Account{
		UserID:   userFromContext(r.Context()),
		Name:     req.Name,
		Currency: req.Currency,
		Kind:     core.AccountKind(req.Kind),
		CoinID:   req.CoinID,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toAccountDTO(account))
}

func (s *Server) handleListAccounts(w http.ResponseWriter, r *http.Request) {
	activeOnly := r.URL.Query().Get("active") == "true"
	accounts, err := s.accounts.ListAccounts(r.Context(), userFromContext(r.Context()), activeOnly)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTOs(accounts))
}

func (s *Server) handleGetAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	account, err := s.accounts.GetAccount(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(account))
}

type updateAccountRequest struct {
	Name     *string `json:"name"`
	Currency *string `json:"currency"`
	Kind     *string `json:"kind"`
	CoinID   *string `json:"coin_id"`
	Active   *bool   `json:"active"`
}

func (s *Server) handleUpdateAccount(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req updateAccountRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	userID := userFromContext(r.Context())
	account, err := s.accounts.GetAccount(r.Context(), userID, id)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	if req.Name != nil {
		account.Name = *req.Name
	}
	if req.Currency != nil {
		account.Currency = *req.Currency
	}
	if req.Kind != nil {
		account.Kind = core.AccountKind(*req.Kind)
	}
	if req.CoinID != nil {
		account.CoinID = *req.CoinID
	}
	if req.Active != nil {
		account.Active = *req.Active
	}

	updated, err := s.accounts.UpdateAccount(r.Context(), account)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toAccountDTO(updated))
}

type createCategoryRequest struct {
	Name string `json:"name"`
	Type string `json:"type"`
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req createCategoryRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	category, err := s.accounts.CreateCategory(r.Context(), core.Category{
		UserID: userFromContext(r.Context()),
		Name:   req.Name,
		Type:   req.Type,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, categoryDTO{ID: category.ID, Name: category.Name, Type: category.Type})
}

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	categories, err := s.accounts.ListCategories(r.Context(), userFromContext(r.Context()))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	out := make([]categoryDTO, len(categories))
	for i, c := range categories {
		out[i] = categoryDTO{ID: c.ID, Name: c.Name, Type: c.Type}
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	settings, err := s.accounts.GetSettings(r.Context(), userFromContext(r.Context()), s.baseCurrency)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsDTO{BaseCurrency: settings.BaseCurrency})
}

func (s *Server) handlePutSettings(w http.ResponseWriter, r *http.Request) {
	var req settingsDTO
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	err := s.accounts.PutSettings(r.Context(), core.Settings{
		UserID:       userFromContext(r.Context()),
		BaseCurrency: req.BaseCurrency,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, settingsDTO{BaseCurrency: req.BaseCurrency})
}

type upsertBudgetRequest struct {
	MonthID      int64 `json:"month_id"`
	CategoryID   int64 `json:"category_id"`
	PlannedCents int64 `json:"planned_cents"`
}

func (s *Server) handleUpsertBudget(w http.ResponseWriter, r *http.Request) {
	var req upsertBudgetRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	budget, err := s.accounts.UpsertBudget(r.Context(), core.Budget{
		UserID:       userFromContext(r.Context()),
		MonthID:      req.MonthID,
		CategoryID:   req.CategoryID,
		PlannedCents: req.PlannedCents,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, budgetDTO{
		ID: budget.ID, MonthID: budget.MonthID, CategoryID: budget.CategoryID, PlannedCents: budget.PlannedCents,
	})
}

func (s *Server) handleListBudgets(w http.ResponseWriter, r *http.Request) {
	monthID, err := queryInt(r, "month_id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	budgets, err := s.accounts.ListBudgets(r.Context(), userFromContext(r.Context()), int64(monthID))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	out := make([]budgetDTO, len(budgets))
	for i, b := range budgets {
		out[i] = budgetDTO{ID: b.ID, MonthID: b.MonthID, CategoryID: b.CategoryID, PlannedCents: b.PlannedCents}
	}
	writeJSON(w, http.StatusOK, out)
}
