package currency

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCachedProvider(t *testing.T) {
	p := &countingProvider{rates: map[string]decimal.Decimal{"EUR": dec("0.5")}}
	c := NewCachedProvider(p, time.Minute)

	for i := 0; i < 3; i++ {
		rates, err := c.FetchRates(context.Background(), "usd")
		require.NoError(t, err)
		assert.True(t, rates["EUR"].Equal(dec("0.5")))
	}
	assert.Equal(t, 1, p.calls)

	c.Flush()
	_, err := c.FetchRates(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls)
}

func TestCachedProviderDoesNotCacheFailures(t *testing.T) {
	p := &countingProvider{err: errors.New("boom")}
	c := NewCachedProvider(p, time.Minute)

	_, err := c.FetchRates(context.Background(), "USD")
	require.Error(t, err)

	p.err = nil
	p.rates = map[string]decimal.Decimal{"EUR": dec("0.5")}
	_, err = c.FetchRates(context.Background(), "USD")
	require.NoError(t, err)
	assert.Equal(t, 2, p.calls)
}

func TestCachedProviderExpires(t *testing.T) {
	p := &countingProvider{rates: map[string]decimal.Decimal{"EUR": dec("0.5")}}
	c := NewCachedProvider(p, 20*time.Millisecond)

	_, _ = c.FetchRates(context.Background(), "USD")
	time.Sleep(40 * time.Millisecond)
	_, _ = c.FetchRates(context.Background(), "USD")
	assert.Equal(t, 2, p.calls)
}
