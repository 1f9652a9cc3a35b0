package services

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"
	"time"

	"fintrack/internal/cache"
	"fintrack/internal/core"
	"fintrack/internal/ports"

	"github.com/google/uuid"
)

// TransactionService records categorized income and expenses and answers
// the aggregate queries over them.
type TransactionService struct {
	transactions ports.TransactionStore
	categories   ports.CategoryStore
	normalizer   AmountNormalizer
	stats        cache.Cache[[]core.MonthlyStat]
	loc          *time.Location

	// statsGen counts invalidations per stats key. A load only fills the
	// cache if no invalidation happened while it was reading.
	genMu    sync.Mutex
	statsGen map[string]uint64

	now   func() time.Time
	newID func() string
}

// NewTransactionService wires the service. stats may be nil to disable
// caching of monthly aggregates.
func NewTransactionService(
	transactions ports.TransactionStore,
	categories ports.CategoryStore,
	normalizer AmountNormalizer,
	stats cache.Cache[[]core.MonthlyStat],
) *TransactionService {
	return &TransactionService{
		transactions: transactions,
		categories:   categories,
		normalizer:   normalizer,
		stats:        stats,
		loc:          time.UTC,
		statsGen:     make(map[string]uint64),
		now:          func() time.Time { return time.Now().UTC() },
		newID:        uuid.NewString,
	}
}

func statsKey(ownerID string, year int) string {
	return ownerID + "|" + strconv.Itoa(year)
}

func (s *TransactionService) invalidate(ownerID string, at ...time.Time) {
	if s.stats == nil {
		return
	}
	s.genMu.Lock()
	defer s.genMu.Unlock()
	for _, t := range at {
		key := statsKey(ownerID, t.In(s.loc).Year())
		s.statsGen[key]++
		s.stats.Delete(key)
	}
}

func (s *TransactionService) statsGeneration(key string) uint64 {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	return s.statsGen[key]
}

// storeStats caches stats unless key was invalidated after gen was read.
func (s *TransactionService) storeStats(key string, gen uint64, stats []core.MonthlyStat) bool {
	s.genMu.Lock()
	defer s.genMu.Unlock()
	if s.statsGen[key] != gen {
		return false
	}
	s.stats.Set(key, stats)
	return true
}

func (s *TransactionService) checkCategory(ctx context.Context, ownerID, categoryID string) error {
	ok, err := s.categories.CategoryExists(ctx, ownerID, categoryID)
	if err != nil {
		return fmt.Errorf("check category: %w", err)
	}
	if !ok {
		return fmt.Errorf("category %s: %w", categoryID, core.ErrCategoryNotFound)
	}
	return nil
}

func (s *TransactionService) Create(ctx context.Context, ownerID string, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkCategory(ctx, ownerID, in.CategoryID); err != nil {
		return core.Transaction{}, err
	}
	amount, err := normalizePositive(ctx, s.normalizer, in.Amount, in.Unit)
	if err != nil {
		return core.Transaction{}, err
	}

	now := s.now()
	t := core.Transaction{
		ID:         s.newID(),
		OwnerID:    ownerID,
		CategoryID: strings.TrimSpace(in.CategoryID),
		Label:      strings.TrimSpace(in.Label),
		Amount:     amount,
		Kind:       in.Kind,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.transactions.CreateTransaction(ctx, t); err != nil {
		return core.Transaction{}, fmt.Errorf("create transaction: %w", err)
	}
	s.invalidate(ownerID, t.CreatedAt)

	slog.InfoContext(ctx, "Transaction created",
		"owner_id", ownerID, "transaction_id", t.ID, "type", t.Kind, "amount", t.Amount.String())
	return t, nil
}

// Update rewrites label, amount, kind and category. The creation time, and
// with it the month the transaction is reported under, does not change.
func (s *TransactionService) Update(ctx context.Context, ownerID, id string, in core.TransactionInput) (core.Transaction, error) {
	if err := in.Validate(); err != nil {
		return core.Transaction{}, err
	}
	cur, err := s.transactions.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return core.Transaction{}, err
	}
	if err := s.checkCategory(ctx, ownerID, in.CategoryID); err != nil {
		return core.Transaction{}, err
	}
	amount, err := normalizePositive(ctx, s.normalizer, in.Amount, in.Unit)
	if err != nil {
		return core.Transaction{}, err
	}

	cur.CategoryID = strings.TrimSpace(in.CategoryID)
	cur.Label = strings.TrimSpace(in.Label)
	cur.Amount = amount
	cur.Kind = in.Kind
	cur.UpdatedAt = s.now()
	if err := s.transactions.UpdateTransaction(ctx, cur); err != nil {
		return core.Transaction{}, err
	}
	s.invalidate(ownerID, cur.CreatedAt)

	slog.InfoContext(ctx, "Transaction updated", "owner_id", ownerID, "transaction_id", id)
	return cur, nil
}

func (s *TransactionService) Delete(ctx context.Context, ownerID, id string) error {
	cur, err := s.transactions.GetTransaction(ctx, ownerID, id)
	if err != nil {
		return err
	}
	if err := s.transactions.DeleteTransaction(ctx, ownerID, id); err != nil {
		return err
	}
	s.invalidate(ownerID, cur.CreatedAt)

	slog.InfoContext(ctx, "Transaction deleted", "owner_id", ownerID, "transaction_id", id)
	return nil
}

// TransactionDetail is a transaction with its category attached. Category
// is nil when the category has since been deleted.
type TransactionDetail struct {
	core.Transaction
	Category *core.Category
}

// Query lists the owner's transactions matching q, newest first.
func (s *TransactionService) Query(ctx context.Context, ownerID string, q core.TransactionQuery) ([]core.Transaction, error) {
	f, err := q.Resolve(s.now().In(s.loc))
	if err != nil {
		return nil, err
	}
	return s.transactions.ListTransactions(ctx, ownerID, f)
}

// QueryDetailed is Query with each transaction's category joined in.
func (s *TransactionService) QueryDetailed(ctx context.Context, ownerID string, q core.TransactionQuery) ([]TransactionDetail, error) {
	txs, err := s.Query(ctx, ownerID, q)
	if err != nil {
		return nil, err
	}
	if len(txs) == 0 {
		return []TransactionDetail{}, nil
	}
	cats, err := s.categoryIndex(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	details := make([]TransactionDetail, 0, len(txs))
	for _, t := range txs {
		d := TransactionDetail{Transaction: t}
		if c, ok := cats[t.CategoryID]; ok {
			d.Category = &c
		}
		details = append(details, d)
	}
	return details, nil
}

func (s *TransactionService) categoryIndex(ctx context.Context, ownerID string) (map[string]core.Category, error) {
	cats, err := s.categories.ListCategories(ctx, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	index := make(map[string]core.Category, len(cats))
	for _, c := range cats {
		index[c.ID] = c
	}
	return index, nil
}

// MonthlyStats returns income and expense per calendar month of year.
func (s *TransactionService) MonthlyStats(ctx context.Context, ownerID string, year int) ([]core.MonthlyStat, error) {
	key := statsKey(ownerID, year)
	var gen uint64
	if s.stats != nil {
		if stats, ok := s.stats.Get(key); ok {
			slog.DebugContext(ctx, "Monthly stats cache hit", "owner_id", ownerID, "year", year)
			return stats, nil
		}
		gen = s.statsGeneration(key)
	}

	txs, err := s.transactions.ListTransactions(ctx, ownerID, core.YearFilter(year, s.loc))
	if err != nil {
		return nil, fmt.Errorf("list transactions for %d: %w", year, err)
	}
	stats := core.MonthlyStats(txs, year, s.loc)
	if s.stats != nil && !s.storeStats(key, gen, stats) {
		slog.DebugContext(ctx, "Monthly stats changed during load, not cached", "owner_id", ownerID, "year", year)
	}
	return stats, nil
}

// CategoryStats totals income and expense per category. kind may be empty.
func (s *TransactionService) CategoryStats(ctx context.Context, ownerID string, kind core.TransactionKind) ([]core.CategoryStat, error) {
	if kind != "" && !kind.Valid() {
		return nil, fmt.Errorf("transaction type %q: %w", kind, core.ErrValidation)
	}
	txs, err := s.transactions.ListTransactions(ctx, ownerID, core.TransactionFilter{Kind: kind})
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	cats, err := s.categoryIndex(ctx, ownerID)
	if err != nil {
		return nil, err
	}
	names := make(map[string]string, len(cats))
	for id, c := range cats {
		names[id] = c.Name
	}
	return core.CategoryStats(txs, names), nil
}
