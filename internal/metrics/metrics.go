// Package metrics exposes Prometheus counters for the hot paths worth
// watching in production: FX resolution and month creation.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// FxLookups counts rate resolutions by outcome: identity, memo,
	// cache, provider, error.
	FxLookups = promauto.NewCounterVec(prometheus.CounterOpts{
		Namespace: "finify",
		Subsystem: "fx",
		Name:      "lookups_total",
		Help:      "FX rate lookups by outcome",
	}, []string{"outcome"})

	// FxProviderRequests counts outbound calls to the rate provider.
	FxProviderRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "finify",
		Subsystem: "fx",
		Name:      "provider_requests_total",
		Help:      "HTTP requests issued to the external rate provider",
	})

	// FxCacheWriteFailures counts soft-failed cache persists.
	FxCacheWriteFailures = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "finify",
		Subsystem: "fx",
		Name:      "cache_write_failures_total",
		Help:      "FX cache inserts that failed and were swallowed",
	})

	// MonthsCreated counts carry-forward runs that created a new month.
	MonthsCreated = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "finify",
		Subsystem: "months",
		Name:      "created_total",
		Help:      "Months created by the carry-forward engine",
	})

	// SpotRequests counts outbound calls to the spot-price provider.
	SpotRequests = promauto.NewCounter(prometheus.CounterOpts{
		Namespace: "finify",
		Subsystem: "spot",
		Name:      "provider_requests_total",
		Help:      "HTTP requests issued to the spot-price provider",
	})
)
