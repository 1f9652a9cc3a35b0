package core

import (
	"sort"
	"time"

	"github.com/shopspring/decimal"
)

var monthNames = [12]string{"Jan", "Feb", "Mar", "Apr", "May", "Jun", "Jul", "Aug", "Sep", "Oct", "Nov", "Dec"}

// MonthlyStat is the income/expense bar for one calendar month.
type MonthlyStat struct {
	Month    string `json:"month"`
	Income   string `json:"income"`
	Expenses string `json:"expenses"`
}

// CategoryStat sums one category's transactions. Name is nil for
// transactions whose category no longer exists.
type CategoryStat struct {
	Name         *string         `json:"category"`
	TotalIncome  decimal.Decimal `json:"totalIncome"`
	TotalExpense decimal.Decimal `json:"totalExpense"`
}

// MonthlyStats buckets transactions of the given year by calendar month in
// loc. Months without transactions are left out.
func MonthlyStats(txs []Transaction, year int, loc *time.Location) []MonthlyStat {
	var income, expense [12]decimal.Decimal
	var seen [12]bool
	for _, t := range txs {
		at := t.CreatedAt.In(loc)
		if at.Year() != year {
			continue
		}
		m := int(at.Month()) - 1
		seen[m] = true
		switch t.Kind {
		case Income:
			income[m] = income[m].Add(t.Amount)
		case Expense:
			expense[m] = expense[m].Add(t.Amount)
		}
	}

	stats := []MonthlyStat{}
	for m := 0; m < 12; m++ {
		if !seen[m] {
			continue
		}
		stats = append(stats, MonthlyStat{
			Month:    monthNames[m],
			Income:   FormatAmount(income[m]),
			Expenses: FormatAmount(expense[m]),
		})
	}
	return stats
}

// CategoryStats groups transactions by category name using names, a map
// from category id to name. Results are ordered by income then expense,
// both descending.
func CategoryStats(txs []Transaction, names map[string]string) []CategoryStat {
	const orphan = "\x00"
	buckets := map[string]*CategoryStat{}
	var order []string

	for _, t := range txs {
		key := orphan
		var name *string
		if n, ok := names[t.CategoryID]; ok {
			key = n
			nn := n
			name = &nn
		}
		b, ok := buckets[key]
		if !ok {
			b = &CategoryStat{Name: name, TotalIncome: decimal.Zero, TotalExpense: decimal.Zero}
			buckets[key] = b
			order = append(order, key)
		}
		switch t.Kind {
		case Income:
			b.TotalIncome = b.TotalIncome.Add(t.Amount)
		case Expense:
			b.TotalExpense = b.TotalExpense.Add(t.Amount)
		}
	}

	stats := make([]CategoryStat, 0, len(order))
	for _, key := range order {
		stats = append(stats, *buckets[key])
	}
	sort.SliceStable(stats, func(i, j int) bool {
		if c := stats[i].TotalIncome.Cmp(stats[j].TotalIncome); c != 0 {
			return c > 0
		}
		return stats[i].TotalExpense.GreaterThan(stats[j].TotalExpense)
	})
	return stats
}
