package fx

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"finify/internal/cache"
	"finify/internal/metrics"
)

// ErrSpotUnavailable is returned when the spot-price provider has no
// price for the requested coin and fiat target.
var ErrSpotUnavailable = errors.New("spot price unavailable")

// SpotClient fetches current crypto spot prices from a public
// coingecko-style API: GET {base}/simple/price?ids=bitcoin&vs_currencies=eur.
// Prices feed current-value display only, never carry-forward math, so
// a short-lived process-wide cache is fine.
type SpotClient struct {
	baseURL string
	client  *http.Client
	prices  *cache.LRU[string, decimal.Decimal]
}

// NewSpotClient creates a spot client with its own price cache.
func NewSpotClient(baseURL string, timeout, cacheTTL time.Duration) *SpotClient {
	return &SpotClient{
		baseURL: baseURL,
		client:  &http.Client{Timeout: timeout},
		prices:  cache.NewLRU[string, decimal.Decimal](256, cacheTTL),
	}
}

// Price returns the current price of one coin in the given fiat
// currency, served from cache when fresh.
func (s *SpotClient) Price(ctx context.Context, coinID, vsCurrency string) (decimal.Decimal, error) {
	coinID = strings.ToLower(strings.TrimSpace(coinID))
	vs := strings.ToLower(strings.TrimSpace(vsCurrency))
	if coinID == "" || vs == "" {
		return decimal.Decimal{}, fmt.Errorf("%w: empty coin or currency", ErrSpotUnavailable)
	}

	key := coinID + "|" + vs
	if price, ok := s.prices.Get(key); ok {
		return price, nil
	}

	metrics.SpotRequests.Inc()

	q := url.Values{}
	q.Set("ids", coinID)
	q.Set("vs_currencies", vs)
	reqURL := fmt.Sprintf("%s/simple/price?%s", s.baseURL, q.Encode())

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("build spot request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(req)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %v", ErrSpotUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decimal.Decimal{}, fmt.Errorf("%w: provider returned status %d", ErrSpotUnavailable, resp.StatusCode)
	}

	var body map[string]map[string]float64
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: decode response: %v", ErrSpotUnavailable, err)
	}

	price, ok := body[coinID][vs]
	if !ok || price == 0 {
		return decimal.Decimal{}, fmt.Errorf("%w: no price for %s in %s", ErrSpotUnavailable, coinID, vs)
	}

	d := decimal.NewFromFloat(price)
	s.prices.Put(key, d)
	return d, nil
}

// StartSweep drops stale cached prices every interval until ctx is
// cancelled. Reads already skip stale entries, so this only reclaims
// memory for coins nobody asks about anymore.
func (s *SpotClient) StartSweep(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				if removed := s.prices.Purge(); removed > 0 {
					slog.Debug("Swept stale spot prices",
						"removed", removed,
						"cached", s.prices.Len())
				}
			}
		}
	}()
}
