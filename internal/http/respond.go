package http

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"finify/internal/core"
	"finify/internal/fx"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if v != nil {
		if err := json.NewEncoder(w).Encode(v); err != nil {
			slog.Error("Failed to encode response", "error", err)
		}
	}
}

// writeError maps domain errors onto HTTP status codes. Unknown errors
// become opaque 500s; their details stay in the log, not the response.
func writeError(ctx context.Context, w http.ResponseWriter, err error) {
	status := http.StatusInternalServerError

	switch {
	case errors.Is(err, core.ErrNotAuthenticated):
		status = http.StatusUnauthorized
	case errors.Is(err, core.ErrNotFound):
		status = http.StatusNotFound
	case errors.Is(err, core.ErrInvalidMonth),
		errors.Is(err, core.ErrInvalidRange),
		errors.Is(err, core.ErrInvalidCurrency),
		errors.Is(err, core.ErrInvalidAmount),
		errors.Is(err, core.ErrEmptyName),
		errors.Is(err, core.ErrNotTransfer),
		errors.Is(err, core.ErrSameAccount):
		status = http.StatusBadRequest
	case errors.Is(err, fx.ErrRateUnavailable),
		errors.Is(err, fx.ErrSpotUnavailable):
		status = http.StatusBadGateway
	}

	if status == http.StatusInternalServerError {
		slog.ErrorContext(ctx, "Request failed", "error", err)
		writeJSON(w, status, errorResponse{Error: "internal error"})
		return
	}
	writeJSON(w, status, errorResponse{Error: err.Error()})
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	return dec.Decode(v)
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, errorResponse{Error: msg})
}
