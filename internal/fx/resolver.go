// Package fx resolves exchange rates against an external rates API.
// Historical rates go through a persisted write-through cache; latest
// rates are always fetched live.
package fx

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/sync/singleflight"

	"finify/internal/core"
	"finify/internal/metrics"
)

var one = decimal.NewFromInt(1)

// CacheStore is the persisted rate cache. GetRate returns
// core.ErrNotFound on a miss; PutRate must tolerate concurrent inserts
// of the same key.
type CacheStore interface {
	GetRate(ctx context.Context, date time.Time, from, to, source string) (decimal.Decimal, error)
	PutRate(ctx context.Context, date time.Time, from, to, source string, rate decimal.Decimal) error
}

// Resolution carries a resolved rate plus where it came from, so
// callers can tell "value obtained" apart from "value obtained and
// cached" (a cache write failure is soft).
type Resolution struct {
	Rate      decimal.Decimal
	FromCache bool
	Stored    bool
}

// Resolver implements the lookup order: identity, persisted cache,
// external provider. Concurrent misses for the same key share a single
// provider call.
type Resolver struct {
	store    CacheStore
	provider Provider
	source   string
	timeout  time.Duration
	group    singleflight.Group
}

// NewResolver wires a resolver. source labels cache rows so rates from
// different providers never mix; timeout bounds each provider call.
func NewResolver(store CacheStore, provider Provider, source string, timeout time.Duration) *Resolver {
	if source == "" {
		source = "default"
	}
	return &Resolver{
		store:    store,
		provider: provider,
		source:   source,
		timeout:  timeout,
	}
}

// Resolve returns the conversion rate for from→to on the given date.
//
// Identity pairs return 1 with zero I/O. A cache hit never touches the
// provider. On a miss the provider is called with a deadline; a fetched
// rate is persisted best-effort and returned even when persisting
// fails.
//
// A zero date means the latest rate. Latest rates change all day, so
// they never touch the persisted cache in either direction: every
// dateless resolution asks the provider, and only a per-operation
// Batch dedupes repeats.
func (r *Resolver) Resolve(ctx context.Context, date time.Time, from, to string) (Resolution, error) {
	if err := core.ValidateCurrency(from); err != nil {
		return Resolution{}, fmt.Errorf("from currency %q: %w", from, err)
	}
	if err := core.ValidateCurrency(to); err != nil {
		return Resolution{}, fmt.Errorf("to currency %q: %w", to, err)
	}

	if from == to {
		metrics.FxLookups.WithLabelValues("identity").Inc()
		return Resolution{Rate: one, FromCache: false, Stored: false}, nil
	}

	if date.IsZero() {
		res, err := r.fetchAndStore(ctx, date, from, to, false)
		if err != nil {
			metrics.FxLookups.WithLabelValues("error").Inc()
			return Resolution{}, err
		}
		metrics.FxLookups.WithLabelValues("live").Inc()
		return res, nil
	}

	rate, err := r.store.GetRate(ctx, date, from, to, r.source)
	if err == nil {
		metrics.FxLookups.WithLabelValues("cache").Inc()
		return Resolution{Rate: rate, FromCache: true, Stored: true}, nil
	}
	if !errors.Is(err, core.ErrNotFound) {
		metrics.FxLookups.WithLabelValues("error").Inc()
		return Resolution{}, fmt.Errorf("read rate cache: %w", err)
	}

	key := cacheKey(date, from, to, r.source)
	v, err, _ := r.group.Do(key, func() (any, error) {
		return r.fetchAndStore(ctx, date, from, to, true)
	})
	if err != nil {
		metrics.FxLookups.WithLabelValues("error").Inc()
		return Resolution{}, err
	}

	metrics.FxLookups.WithLabelValues("provider").Inc()
	return v.(Resolution), nil
}

func (r *Resolver) fetchAndStore(ctx context.Context, date time.Time, from, to string, persist bool) (Resolution, error) {
	fetchCtx := ctx
	if r.timeout > 0 {
		var cancel context.CancelFunc
		fetchCtx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	rate, err := r.provider.FetchRate(fetchCtx, date, from, to)
	if err != nil {
		if errors.Is(fetchCtx.Err(), context.DeadlineExceeded) {
			return Resolution{}, fmt.Errorf("%w: provider timed out", ErrRateUnavailable)
		}
		return Resolution{}, err
	}

	res := Resolution{Rate: rate}
	if !persist {
		return res, nil
	}
	if err := r.store.PutRate(ctx, date, from, to, r.source, rate); err != nil {
		// Availability over caching completeness: the rate is still
		// good, the next caller just pays for another fetch.
		metrics.FxCacheWriteFailures.Inc()
		slog.WarnContext(ctx, "FX cache write failed",
			"date", date.Format("2006-01-02"),
			"from", from,
			"to", to,
			"error", err)
	} else {
		res.Stored = true
	}

	return res, nil
}

func cacheKey(date time.Time, from, to, source string) string {
	return date.Format("2006-01-02") + "|" + from + "|" + to + "|" + source
}
