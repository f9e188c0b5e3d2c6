package http

import (
	"net/http"
)

type ensureMonthRequest struct {
	Year  int `json:"year"`
	Month int `json:"month"`
}

type ensureMonthResponse struct {
	monthDTO
	Created bool `json:"created"`
}

// handleEnsureMonth rolls the ledger forward into the requested month.
// Repeated calls return the existing month with created=false.
func (s *Server) handleEnsureMonth(w http.ResponseWriter, r *http.Request) {
	var req ensureMonthRequest
	if err := decodeJSON(r, &req); err != nil {
		badRequest(w, "invalid request body")
		return
	}

	month, created, err := s.months.EnsureMonth(r.Context(), userFromContext(r.Context()), req.Year, req.Month)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	status := http.StatusOK
	if created {
		status = http.StatusCreated
	}
	writeJSON(w, status, ensureMonthResponse{monthDTO: toMonthDTO(month), Created: created})
}

func (s *Server) handlePreviewMonth(w http.ResponseWriter, r *http.Request) {
	preview, err := s.months.PreviewNextMonth(r.Context(), userFromContext(r.Context()))
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toPreviewDTO(preview))
}

func (s *Server) handleMonthsInRange(w http.ResponseWriter, r *http.Request) {
	startYear, startMonth, err := parseMonthKey(r.URL.Query().Get("start"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	endYear, endMonth, err := parseMonthKey(r.URL.Query().Get("end"))
	if err != nil {
		badRequest(w, err.Error())
		return
	}

	months, err := s.months.GetMonthsInRange(r.Context(), userFromContext(r.Context()),
		startYear, startMonth, endYear, endMonth)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	out := make([]monthDTO, len(months))
	for i, m := range months {
		out[i] = toMonthDTO(m)
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleMonthSummary(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r, "id")
	if err != nil {
		badRequest(w, err.Error())
		return
	}
	summary, err := s.months.Summary(r.Context(), userFromContext(r.Context()), id)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}
	writeJSON(w, http.StatusOK, toSummaryDTO(summary))
}
