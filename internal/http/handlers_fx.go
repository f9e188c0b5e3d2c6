package http

import (
	"net/http"
	"strings"
	"time"
)

// handleGetRate resolves a rate directly: identity, then the persisted
// cache, then the provider. An omitted date means the latest rate.
func (s *Server) handleGetRate(w http.ResponseWriter, r *http.Request) {
	from := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("from")))
	to := strings.ToUpper(strings.TrimSpace(r.URL.Query().Get("to")))

	var date time.Time
	if raw := strings.TrimSpace(r.URL.Query().Get("date")); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			badRequest(w, "invalid date, want YYYY-MM-DD")
			return
		}
		date = parsed
	}

	res, err := s.months.ResolveRate(r.Context(), date, from, to)
	if err != nil {
		writeError(r.Context(), w, err)
		return
	}

	dto := rateDTO{
		From:      from,
		To:        to,
		Rate:      res.Rate.String(),
		FromCache: res.FromCache,
		Stored:    res.Stored,
	}
	if !date.IsZero() {
		dto.Date = date.Format("2006-01-02")
	}
	writeJSON(w, http.StatusOK, dto)
}
