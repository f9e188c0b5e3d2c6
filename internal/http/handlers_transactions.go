package http

import (
	"fmt"
	"net/http"
	"time"

	"finify/internal/core"
	"finify/internal/services"
)

// movementRequest takes the amount either as integer cents or as a
// decimal string like "12.34"; the string form wins when both are set.
type movementRequest struct {
	AccountID   int64  `json:"account_id"`
	AmountCents int64  `json:"amount_cents"`
	Amount      string `json:"amount,omitempty"`
}

func (m movementRequest) cents() (int64, error) {
	if m.Amount == "" {
		return m.AmountCents, nil
	}
	return core.ParseDecimalToCents(m.Amount)
}

type transactionRequest struct {
	CategoryID *int64            `json:"category_id"`
	Note       string            `json:"note"`
	OccurredAt time.Time         `json:"occurred_at"`
	Movements  []movementRequest `json:"movements"`
}

func (req transactionRequest) toInput() (services.TransactionInput, error) {
	input := services.TransactionInput{
		CategoryID: req.CategoryID,
		Note:       req.Note,
		OccurredAt: req.OccurredAt,
		Movements:  make([]services.MovementInput, len(req.Movements)),
	}
	for i, m := range req.Movements {
		cents, err := m.cents()
		if err != nil {
			return services.TransactionInput{}, fmt.Errorf("movement %d: %w", i, err)
		}
		input.Movements[i] = services.MovementInput{AccountID: m.AccountID, AmountCents: cents}
	}
	return input, nil
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	input, err := req.toInput()
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	res, err := s.transactions.CreateTransaction(r.Context(), userFromContext(r.Context()), input)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(res))
}

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	year, month := parseYearMonth(r)
	list, err := s.transactions.ListTransactions(r.Context(), userFromContext(r.Context()), year, month)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	out := make([]transactionDTO, len(list))
	for i, t := range list {
		out[i] = toTransactionDTO(t)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleGetTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	res, err := s.transactions.GetTransaction(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(res))
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	var req transactionRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	input, err := req.toInput()
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	res, err := s.transactions.UpdateTransaction(r.Context(), userFromContext(r.Context()), id, input)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toTransactionDTO(res))
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := s.transactions.DeleteTransaction(r.Context(), userFromContext(r.Context()), id); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type transferRequest struct {
	FromAccountID int64     `json:"from_account_id"`
	ToAccountID   int64     `json:"to_account_id"`
	AmountCents   int64     `json:"amount_cents"`
	Amount        string    `json:"amount,omitempty"`
	Note          string    `json:"note"`
	OccurredAt    time.Time `json:"occurred_at"`
}

func (s *Server) handleCreateTransfer(w http.ResponseWriter, r *http.Request) {
	var req transferRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}
	cents, err := movementRequest{AmountCents: req.AmountCents, Amount: req.Amount}.cents()
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	res, err := s.transactions.CreateTransfer(r.Context(), userFromContext(r.Context()), services.TransferInput{
		FromAccountID: req.FromAccountID,
		ToAccountID:   req.ToAccountID,
		AmountCents:   cents,
		Note:          req.Note,
		OccurredAt:    req.OccurredAt,
	})
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toTransactionDTO(res))
}

func (s *Server) handleDeleteTransfer(w http.ResponseWriter, r *http.Request) {
	movementID, err := pathID(r, "movementID")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	if err := s.transactions.DeleteTransfer(r.Context(), userFromContext(r.Context()), movementID); err != nil {
		writeError(r.Context(), w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
