package rtprovider

import (
	"context"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/couchcryptid/region-metrics-etl/internal/domain"
	"github.com/couchcryptid/region-metrics-etl/internal/observability"
)

// CachedProvider wraps an InfectionRateProvider with an in-memory LRU cache
// keyed by FIPS code. Entries expire after ttl since the model republishes
// estimates daily.
type CachedProvider struct {
	inner   domain.InfectionRateProvider
	cache   *expirable.LRU[string, *domain.InfectionRateEstimate]
	metrics *observability.Metrics
}

// NewCachedProvider creates a cache decorator around a provider.
func NewCachedProvider(inner domain.InfectionRateProvider, maxEntries int, ttl time.Duration, metrics *observability.Metrics) *CachedProvider {
	return &CachedProvider{
		inner:   inner,
		cache:   expirable.NewLRU[string, *domain.InfectionRateEstimate](maxEntries, nil, ttl),
		metrics: metrics,
	}
}

func (c *CachedProvider) InfectionRate(ctx context.Context, region domain.Region) (*domain.InfectionRateEstimate, error) {
	if est, ok := c.cache.Get(region.FIPS); ok {
		c.metrics.RtCache.WithLabelValues("hit").Inc()
		return est, nil
	}
	c.metrics.RtCache.WithLabelValues("miss").Inc()

	est, err := c.inner.InfectionRate(ctx, region)
	if err != nil {
		return nil, err
	}
	// Only cache real estimates so a region the model has not covered yet is retried.
	if !est.Empty() {
		c.cache.Add(region.FIPS, est)
	}
	return est, nil
}

// Len returns the number of cached estimates.
func (c *CachedProvider) Len() int { return c.cache.Len() }
