package currency

import (
	"context"
	"time"

	"fintrack/internal/core"

	gocache "github.com/patrickmn/go-cache"
	"github.com/shopspring/decimal"
)

// CachedProvider keeps fetched tables for a fixed TTL. Failures are never
// cached.
type CachedProvider struct {
	next  RateProvider
	cache *gocache.Cache
}

func NewCachedProvider(next RateProvider, ttl time.Duration) *CachedProvider {
	return &CachedProvider{
		next:  next,
		cache: gocache.New(ttl, 2*ttl),
	}
}

func (c *CachedProvider) FetchRates(ctx context.Context, base string) (map[string]decimal.Decimal, error) {
	key := core.NormalizeUnit(base)
	if v, ok := c.cache.Get(key); ok {
		return v.(map[string]decimal.Decimal), nil
	}
	rates, err := c.next.FetchRates(ctx, key)
	if err != nil {
		return nil, err
	}
	c.cache.SetDefault(key, rates)
	return rates, nil
}

// Flush drops every cached table.
func (c *CachedProvider) Flush() {
	c.cache.Flush()
}
