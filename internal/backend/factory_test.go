package backend

import (
	"context"
	"path/filepath"
	"testing"

	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/currency"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func staticRates() currency.StaticRates {
	return currency.StaticRates{"EUR": decimal.RequireFromString("0.5")}
}

func TestCreateBackend(t *testing.T) {
	tests := []struct {
		name   string
		config func(t *testing.T) Config
	}{
		{"memory", func(t *testing.T) Config {
			return Config{Type: MemoryBackend, RateProvider: staticRates(), StatsCacheSize: 8}
		}},
		{"sqlite", func(t *testing.T) Config {
			return Config{
				Type:         SQLiteBackend,
				SQLiteDBPath: filepath.Join(t.TempDir(), "fintrack.db"),
				RateProvider: staticRates(),
			}
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ctx := context.Background()
			result, err := NewFactory(nil).CreateBackend(ctx, tt.config(t))
			require.NoError(t, err)
			defer func() { assert.NoError(t, result.Cleanup()) }()

			b := result.Backend
			assert.Nil(t, b.Events)
			require.NoError(t, b.Store.Ping(ctx))

			goal, err := b.Ledger.CreateAccount(ctx, "u1", core.KindGoal, core.AccountInput{
				Label: "Holiday", Amount: decimal.RequireFromString("50"), Unit: "EUR",
			})
			require.NoError(t, err)
			assert.True(t, goal.Target.Equal(decimal.RequireFromString("100")))
		})
	}
}

func TestCreateBackendRejectsBadConfig(t *testing.T) {
	_, err := NewFactory(nil).CreateBackend(context.Background(), Config{Type: "sheets"})
	assert.Error(t, err)

	_, err = NewFactory(nil).CreateBackend(context.Background(), Config{Type: SQLiteBackend, RateAPIURL: "http://x"})
	assert.ErrorContains(t, err, "SQLite database path is required")

	_, err = NewFactory(nil).CreateBackend(context.Background(), Config{Type: MemoryBackend})
	assert.ErrorContains(t, err, "rate API URL is required")
}

func TestFromAppConfig(t *testing.T) {
	_, err := FromAppConfig(nil)
	assert.Error(t, err)

	app := &config.Config{DataBackend: "memory", RateAPIURL: "https://rates.example.com", StatsCacheSize: 3}
	cfg, err := FromAppConfig(app)
	require.NoError(t, err)
	assert.Equal(t, MemoryBackend, cfg.Type)
	assert.Equal(t, 3, cfg.StatsCacheSize)
	assert.NoError(t, cfg.Validate())

	app.DataBackend = "sheets"
	_, err = FromAppConfig(app)
	assert.Error(t, err)
}
