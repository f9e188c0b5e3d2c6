package fx

import (
	"context"
	"sync"
	"time"

	"finify/internal/metrics"
)

// Batch memoizes resolutions for one logical operation, such as valuing
// every account on a dashboard render. It is scoped to that operation
// and must not be shared across requests; create one per unit of work
// and let it go out of scope.
type Batch struct {
	resolver *Resolver
	mu       sync.Mutex
	memo     map[string]Resolution
}

// NewBatch creates an empty per-operation memo over the resolver.
func (r *Resolver) NewBatch() *Batch {
	return &Batch{
		resolver: r,
		memo:     make(map[string]Resolution),
	}
}

// Resolve behaves like Resolver.Resolve but answers repeated keys from
// the memo, so N accounts in the same currency cost one lookup.
// Failures are not memoized.
func (b *Batch) Resolve(ctx context.Context, date time.Time, from, to string) (Resolution, error) {
	if from == to {
		return b.resolver.Resolve(ctx, date, from, to)
	}

	key := cacheKey(date, from, to, b.resolver.source)

	b.mu.Lock()
	if res, ok := b.memo[key]; ok {
		b.mu.Unlock()
		metrics.FxLookups.WithLabelValues("memo").Inc()
		return res, nil
	}
	b.mu.Unlock()

	res, err := b.resolver.Resolve(ctx, date, from, to)
	if err != nil {
		return Resolution{}, err
	}

	b.mu.Lock()
	b.memo[key] = res
	b.mu.Unlock()

	return res, nil
}
