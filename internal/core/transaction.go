package core

import (
	"fmt"
	"sort"
	"strings"
	"time"
)

const (
	PeriodToday     Period = "today"
	PeriodThisWeek  Period = "thisWeek"
	PeriodThisMonth Period = "thisMonth"
	PeriodThisYear  Period = "thisYear"
)

// Period is a named window that starts at a calendar boundary and is open
// ended towards the future.
type Period string

// Start returns the first instant of the period containing now, in now's
// location. Weeks start on Sunday.
func (p Period) Start(now time.Time) (time.Time, error) {
	y, m, d := now.Date()
	loc := now.Location()
	switch p {
	case PeriodToday:
		return time.Date(y, m, d, 0, 0, 0, 0, loc), nil
	case PeriodThisWeek:
		return time.Date(y, m, d-int(now.Weekday()), 0, 0, 0, 0, loc), nil
	case PeriodThisMonth:
		return time.Date(y, m, 1, 0, 0, 0, 0, loc), nil
	case PeriodThisYear:
		return time.Date(y, time.January, 1, 0, 0, 0, 0, loc), nil
	default:
		return time.Time{}, fmt.Errorf("unknown period %q: %w", p, ErrValidation)
	}
}

// TransactionQuery is what a caller asks for. A Period takes precedence
// over Start/End.
type TransactionQuery struct {
	CategoryID string
	Kind       TransactionKind
	Period     Period
	Start      time.Time
	End        time.Time
}

// TransactionFilter is the resolved, store-facing form of a query.
// Zero bounds are open; both bounds are inclusive.
type TransactionFilter struct {
	CategoryID string
	Kind       TransactionKind
	From       time.Time
	To         time.Time
}

// Resolve turns the query into concrete bounds relative to now.
func (q TransactionQuery) Resolve(now time.Time) (TransactionFilter, error) {
	f := TransactionFilter{
		CategoryID: strings.TrimSpace(q.CategoryID),
		Kind:       q.Kind,
	}
	if f.Kind != "" && !f.Kind.Valid() {
		return TransactionFilter{}, fmt.Errorf("transaction type %q: %w", f.Kind, ErrValidation)
	}
	if q.Period != "" {
		start, err := q.Period.Start(now)
		if err != nil {
			return TransactionFilter{}, err
		}
		f.From = start
		return f, nil
	}
	f.From, f.To = q.Start, q.End
	if !f.From.IsZero() && !f.To.IsZero() && f.To.Before(f.From) {
		return TransactionFilter{}, fmt.Errorf("end date before start date: %w", ErrValidation)
	}
	return f, nil
}

// YearFilter selects every transaction created during year in loc.
func YearFilter(year int, loc *time.Location) TransactionFilter {
	return TransactionFilter{
		From: time.Date(year, time.January, 1, 0, 0, 0, 0, loc),
		To:   time.Date(year+1, time.January, 1, 0, 0, 0, 0, loc).Add(-time.Nanosecond),
	}
}

// Matches reports whether t passes the filter.
func (f TransactionFilter) Matches(t Transaction) bool {
	if f.CategoryID != "" && t.CategoryID != f.CategoryID {
		return false
	}
	if f.Kind != "" && t.Kind != f.Kind {
		return false
	}
	if !f.From.IsZero() && t.CreatedAt.Before(f.From) {
		return false
	}
	if !f.To.IsZero() && t.CreatedAt.After(f.To) {
		return false
	}
	return true
}

// SortNewestFirst orders transactions by creation time, newest first.
// Ties fall back to id so the order is stable across reads.
func SortNewestFirst(txs []Transaction) {
	sort.SliceStable(txs, func(i, j int) bool {
		if !txs[i].CreatedAt.Equal(txs[j].CreatedAt) {
			return txs[i].CreatedAt.After(txs[j].CreatedAt)
		}
		return txs[i].ID > txs[j].ID
	})
}
