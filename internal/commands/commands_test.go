package commands

import (
	"bytes"
	"context"
	"path/filepath"
	"testing"
	"time"

	"fintrack/internal/config"
	"fintrack/internal/core"
	"fintrack/internal/currency"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testDeps(t *testing.T) Deps {
	t.Helper()
	cfg := config.Load()
	cfg.DataBackend = "sqlite"
	cfg.SQLiteDBPath = filepath.Join(t.TempDir(), "fintrack.db")
	return Deps{
		Config: cfg,
		RateProvider: currency.StaticRates{
			"EUR": decimal.RequireFromString("0.5"),
			"GBP": decimal.RequireFromString("0.8"),
		},
	}
}

func run(t *testing.T, deps Deps, args ...string) (string, error) {
	t.Helper()
	var out bytes.Buffer
	cmd := NewRootCommand(deps)
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestNormalizeCommand(t *testing.T) {
	deps := testDeps(t)

	out, err := run(t, deps, "normalize", "12,5", "eur")
	require.NoError(t, err)
	assert.Equal(t, "12.5 EUR = 25.00 USD\n", out)

	_, err = run(t, deps, "normalize", "1", "XYZ")
	assert.ErrorIs(t, err, core.ErrInvalidUnit)

	_, err = run(t, deps, "normalize", "1")
	assert.Error(t, err)
}

func TestRatesCommand(t *testing.T) {
	out, err := run(t, testDeps(t), "rates")
	require.NoError(t, err)
	assert.Contains(t, out, "EUR")
	assert.Contains(t, out, "0.8")
	assert.Less(t, bytes.Index([]byte(out), []byte("EUR")), bytes.Index([]byte(out), []byte("GBP")))

	_, err = run(t, testDeps(t), "rates", "--base", "EUR")
	assert.ErrorIs(t, err, core.ErrRateProviderUnavailable)
}

func TestMigrateAndReconcile(t *testing.T) {
	deps := testDeps(t)

	out, err := run(t, deps, "migrate")
	require.NoError(t, err)
	assert.Contains(t, out, "dirty=false")

	out, err = run(t, deps, "reconcile", "--owner", "nobody")
	require.NoError(t, err)
	assert.Contains(t, out, "checked=0 repaired=0 failed=0")
}

func TestElapsed(t *testing.T) {
	assert.Equal(t, "under a millisecond", elapsed(300*time.Microsecond))
	assert.Equal(t, "1 second 250 milliseconds", elapsed(1250*time.Millisecond))
	assert.Equal(t, "2 minutes 5 seconds", elapsed(2*time.Minute+5*time.Second+40*time.Millisecond))
}
