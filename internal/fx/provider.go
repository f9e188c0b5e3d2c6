package fx

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"context"

	"github.com/shopspring/decimal"

	"finify/internal/metrics"
)

// ErrRateUnavailable is returned when the provider has no rate for the
// requested pair and date. Callers must never substitute a default.
var ErrRateUnavailable = errors.New("exchange rate unavailable")

// Provider fetches a historical conversion rate from an external source.
type Provider interface {
	FetchRate(ctx context.Context, date time.Time, from, to string) (decimal.Decimal, error)
}

// HTTPProvider talks to a frankfurter-style historical rates API:
// GET {base}/{yyyy-MM-dd|latest}?from=EUR&to=USD returning a JSON body
// with a "rates" object keyed by target currency.
type HTTPProvider struct {
	baseURL string
	client  *http.Client
}

// NewHTTPProvider creates a provider with an explicit request timeout.
// A context deadline shorter than the timeout still wins.
func NewHTTPProvider(baseURL string, timeout time.Duration) *HTTPProvider {
	return &HTTPProvider{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
	}
}

type ratesResponse struct {
	Base  string             `json:"base"`
	Date  string             `json:"date"`
	Rates map[string]float64 `json:"rates"`
}

// FetchRate requests from→to for the given date. A zero date means the
// provider's latest published rate.
func (p *HTTPProvider) FetchRate(ctx context.Context, date time.Time, from, to string) (decimal.Decimal, error) {
	metrics.FxProviderRequests.Inc()

	datePart := "latest"
	if !date.IsZero() {
		datePart = date.Format("2006-01-02")
	}

	q := url.Values{}
	q.Set("from", from)
	q.Set("to", to)
	reqURL := fmt.Sprintf("%s/%s?%s", p.baseURL, datePart, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("build rate request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := p.client.Do(req)
	if err != nil {
		// Timeouts and transport failures all mean the same thing to
		// callers: no rate.
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrRateUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decimal.Decimal{}, fmt.Errorf("%w: provider returned status %d", ErrRateUnavailable, resp.StatusCode)
	}

	var body ratesResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: decode response: %v", ErrRateUnavailable, err)
	}

	rate, ok := body.Rates[to]
	if !ok || rate == 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: no rate for %s->%s on %s", ErrRateUnavailable, from, to, datePart)
	}

	return decimal.NewFromFloat(rate), nil
}
