package core

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func tx(kind TransactionKind, amount string, cat string, at time.Time) Transaction {
	return Transaction{Kind: kind, Amount: d(amount), CategoryID: cat, CreatedAt: at}
}

func TestMonthlyStats(t *testing.T) {
	jan := time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC)
	mar := time.Date(2025, 3, 20, 0, 0, 0, 0, time.UTC)
	txs := []Transaction{
		tx(Income, "100", "", mar),
		tx(Expense, "0.1", "", jan),
		tx(Expense, "0.2", "", jan),
		tx(Income, "5", "", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)),
	}

	stats := MonthlyStats(txs, 2025, time.UTC)
	assert.Equal(t, []MonthlyStat{
		{Month: "Jan", Income: "0.00", Expenses: "0.30"},
		{Month: "Mar", Income: "100.00", Expenses: "0.00"},
	}, stats)

	assert.Empty(t, MonthlyStats(nil, 2025, time.UTC))
}

func TestMonthlyStatsUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+2", 2*60*60)
	// 23:00 UTC on Jan 31 is Feb 1 in UTC+2
	at := time.Date(2025, 1, 31, 23, 0, 0, 0, time.UTC)
	stats := MonthlyStats([]Transaction{tx(Expense, "1", "", at)}, 2025, loc)
	require.Len(t, stats, 1)
	assert.Equal(t, "Feb", stats[0].Month)
}

func TestCategoryStats(t *testing.T) {
	at := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	names := map[string]string{"c1": "Salary", "c2": "Food", "c3": "Rent"}
	txs := []Transaction{
		tx(Expense, "20", "c2", at),
		tx(Income, "1000", "c1", at),
		tx(Expense, "500", "c3", at),
		tx(Expense, "7.5", "gone", at),
		tx(Expense, "2.5", "also-gone", at),
		tx(Income, "3", "c2", at),
	}

	stats := CategoryStats(txs, names)
	require.Len(t, stats, 4)

	assert.Equal(t, "Salary", *stats[0].Name)
	assert.Equal(t, "Food", *stats[1].Name)
	assert.True(t, stats[1].TotalIncome.Equal(d("3")))
	assert.True(t, stats[1].TotalExpense.Equal(d("20")))
	assert.Equal(t, "Rent", *stats[2].Name)
	assert.Nil(t, stats[3].Name)
	assert.True(t, stats[3].TotalExpense.Equal(d("10")))
}
