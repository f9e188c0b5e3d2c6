package http

import (
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"
)

func pathID(r *http.Request, name string) (int64, error) {
	raw := r.PathValue(name)
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid %s %q", name, raw)
	}
	return id, nil
}

func queryInt(r *http.Request, name string) (int, error) {
	raw := strings.TrimSpace(r.URL.Query().Get(name))
	if raw == "" {
		return 0, fmt.Errorf("missing query parameter %q", name)
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid query parameter %q", name)
	}
	return v, nil
}

// parseYearMonth reads year and month query parameters, defaulting to
// the current calendar month.
func parseYearMonth(r *http.Request) (year, month int) {
	now := time.Now()
	year = now.Year()
	month = int(now.Month())

	if y, err := queryInt(r, "year"); err == nil {
		year = y
	}
	if m, err := queryInt(r, "month"); err == nil {
		month = m
	}
	return year, month
}

// parseMonthKey splits "2024-03" style range bounds.
func parseMonthKey(raw string) (year, month int, err error) {
	parts := strings.SplitN(strings.TrimSpace(raw), "-", 2)
	if len(parts) != 2 {
		return 0, 0, fmt.Errorf("invalid month %q, want YYYY-MM", raw)
	}
	year, err = strconv.Atoi(parts[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q, want YYYY-MM", raw)
	}
	month, err = strconv.Atoi(parts[1])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid month %q, want YYYY-MM", raw)
	}
	return year, month, nil
}
