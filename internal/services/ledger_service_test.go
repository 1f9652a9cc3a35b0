package services

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"fintrack/internal/amqp"
	"fintrack/internal/core"
	"fintrack/internal/currency"
	"fintrack/internal/storage/memory"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const owner = "user-1"

func dec(s string) decimal.Decimal { return decimal.RequireFromString(s) }

type recordingPublisher struct {
	mu     sync.Mutex
	events []*amqp.LedgerEventMessage
	err    error
}

func (p *recordingPublisher) PublishLedgerEvent(_ context.Context, msg *amqp.LedgerEventMessage) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, msg)
	return p.err
}

func (p *recordingPublisher) types() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, 0, len(p.events))
	for _, e := range p.events {
		out = append(out, e.Type)
	}
	return out
}

type failingRates struct{ calls int }

func (f *failingRates) FetchRates(context.Context, string) (map[string]decimal.Decimal, error) {
	f.calls++
	return nil, errors.New("connection refused")
}

var testRates = currency.StaticRates{"EUR": dec("0.5"), "LBP": dec("89500")}

func newLedger(t *testing.T) (*LedgerService, *memory.Store, *recordingPublisher) {
	t.Helper()
	store := memory.New()
	pub := &recordingPublisher{}
	svc := NewLedgerService(store, currency.NewNormalizer(testRates), pub)
	return svc, store, pub
}

func usd(amount string) core.EntryInput {
	return core.EntryInput{Amount: dec(amount), Unit: "USD"}
}

func createGoal(t *testing.T, svc *LedgerService, title, target string) *core.LedgerAccount {
	t.Helper()
	a, err := svc.CreateAccount(context.Background(), owner, core.KindGoal, core.AccountInput{
		Label: title, Amount: dec(target), Unit: "USD",
	})
	require.NoError(t, err)
	return a
}

func TestLedgerService_CreateAccount(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newLedger(t)

	goal, err := svc.CreateAccount(ctx, owner, core.KindGoal, core.AccountInput{
		Label: "  Vacation ", Amount: dec("100"), Unit: "eur",
	})
	require.NoError(t, err)
	assert.Equal(t, "Vacation", goal.Label)
	assert.True(t, goal.Target.Equal(dec("200")), "100 EUR at 0.5 is 200 USD")
	assert.True(t, goal.Total.IsZero())

	_, err = svc.CreateAccount(ctx, owner, core.KindGoal, core.AccountInput{
		Label: "Vacation", Amount: dec("10"), Unit: "USD",
	})
	assert.ErrorIs(t, err, core.ErrDuplicateLabel)

	// same label is fine for another kind and another owner
	_, err = svc.CreateAccount(ctx, owner, core.KindDebt, core.AccountInput{
		Label: "Vacation", Amount: dec("10"), Unit: "USD",
	})
	assert.NoError(t, err)
	_, err = svc.CreateAccount(ctx, "user-2", core.KindGoal, core.AccountInput{
		Label: "Vacation", Amount: dec("10"), Unit: "USD",
	})
	assert.NoError(t, err)

	assert.Equal(t, []string{amqp.EventAccountCreated, amqp.EventAccountCreated, amqp.EventAccountCreated}, pub.types())
}

func TestLedgerService_CreateAccountRejects(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newLedger(t)

	tests := []struct {
		name string
		in   core.AccountInput
		want error
	}{
		{"short title", core.AccountInput{Label: "ab", Amount: dec("10"), Unit: "USD"}, core.ErrValidation},
		{"no unit", core.AccountInput{Label: "Laptop", Amount: dec("10")}, core.ErrValidation},
		{"tiny raw amount", core.AccountInput{Label: "Laptop", Amount: dec("0.001"), Unit: "USD"}, core.ErrValidation},
		{"unknown unit", core.AccountInput{Label: "Laptop", Amount: dec("10"), Unit: "XYZ"}, core.ErrInvalidUnit},
		{"rounds to zero", core.AccountInput{Label: "Laptop", Amount: dec("10"), Unit: "LBP"}, core.ErrAmountTooSmall},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.CreateAccount(ctx, owner, core.KindGoal, tt.in)
			assert.ErrorIs(t, err, tt.want)
		})
	}

	list, err := svc.ListAccounts(ctx, owner, core.KindGoal)
	require.NoError(t, err)
	assert.Empty(t, list)
}

// A goal of 100 takes 40, refuses 70, accepts an update of the first
// entry to 90 and a delete that brings it back to zero.
func TestLedgerService_EntryLifecycle(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newLedger(t)
	goal := createGoal(t, svc, "Laptop", "100")

	a, e1, err := svc.AddEntry(ctx, owner, core.KindGoal, goal.ID, usd("40"))
	require.NoError(t, err)
	assert.True(t, a.Total.Equal(dec("40")))

	_, _, err = svc.AddEntry(ctx, owner, core.KindGoal, goal.ID, usd("70"))
	assert.ErrorIs(t, err, core.ErrExceedsRemaining)

	a, err = svc.UpdateEntry(ctx, owner, core.KindGoal, goal.ID, e1.ID, usd("90"))
	require.NoError(t, err)
	assert.True(t, a.Total.Equal(dec("90")))

	_, err = svc.UpdateEntry(ctx, owner, core.KindGoal, goal.ID, e1.ID, usd("150"))
	assert.ErrorIs(t, err, core.ErrExceedsRemaining)

	a, err = svc.DeleteEntry(ctx, owner, core.KindGoal, goal.ID, e1.ID)
	require.NoError(t, err)
	assert.True(t, a.Total.IsZero())

	stored, err := svc.GetAccount(ctx, owner, core.KindGoal, goal.ID)
	require.NoError(t, err)
	assert.NoError(t, stored.CheckInvariant())
	assert.Empty(t, stored.Entries)

	assert.Equal(t, []string{
		amqp.EventAccountCreated, amqp.EventEntryAdded, amqp.EventEntryUpdated, amqp.EventEntryDeleted,
	}, pub.types())
	last := pub.events[len(pub.events)-1]
	assert.Equal(t, e1.ID, last.EntryID)
	assert.Equal(t, "0.00", last.Total)
}

func TestLedgerService_ListEntriesKeepsInsertionOrder(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newLedger(t)
	goal := createGoal(t, svc, "Laptop", "100")

	var ids []string
	for _, amt := range []string{"5", "1", "3"} {
		_, e, err := svc.AddEntry(ctx, owner, core.KindGoal, goal.ID, usd(amt))
		require.NoError(t, err)
		ids = append(ids, e.ID)
	}
	_, err := svc.UpdateEntry(ctx, owner, core.KindGoal, goal.ID, ids[0], usd("2"))
	require.NoError(t, err)

	entries, err := svc.ListEntries(ctx, owner, core.KindGoal, goal.ID)
	require.NoError(t, err)
	require.Len(t, entries, 3)
	for i, e := range entries {
		assert.Equal(t, ids[i], e.ID)
	}
}

func TestLedgerService_NotFound(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newLedger(t)
	goal := createGoal(t, svc, "Laptop", "100")

	_, _, err := svc.AddEntry(ctx, owner, core.KindGoal, "missing", usd("1"))
	assert.ErrorIs(t, err, core.ErrNotFound)

	_, _, err = svc.AddEntry(ctx, "someone-else", core.KindGoal, goal.ID, usd("1"))
	assert.ErrorIs(t, err, core.ErrNotFound, "accounts are owner-scoped")

	_, _, err = svc.AddEntry(ctx, owner, core.KindDebt, goal.ID, usd("1"))
	assert.ErrorIs(t, err, core.ErrNotFound, "a goal is not a debt")

	_, err = svc.UpdateEntry(ctx, owner, core.KindGoal, goal.ID, "nope", usd("1"))
	assert.ErrorIs(t, err, core.ErrEntryNotFound)

	_, err = svc.DeleteEntry(ctx, owner, core.KindGoal, goal.ID, "nope")
	assert.ErrorIs(t, err, core.ErrEntryNotFound)

	assert.ErrorIs(t, svc.DeleteAccount(ctx, owner, core.KindGoal, "missing"), core.ErrNotFound)
}

func TestLedgerService_RateFailureLeavesNoTrace(t *testing.T) {
	ctx := context.Background()
	store := memory.New()
	rates := &failingRates{}
	svc := NewLedgerService(store, currency.NewNormalizer(rates), nil)
	goal := createGoal(t, svc, "Laptop", "100")

	_, _, err := svc.AddEntry(ctx, owner, core.KindGoal, goal.ID, core.EntryInput{Amount: dec("10"), Unit: "EUR"})
	assert.ErrorIs(t, err, core.ErrRateProviderUnavailable)
	assert.NotErrorIs(t, err, core.ErrInvalidUnit)
	assert.Equal(t, 1, rates.calls)

	a, err := svc.GetAccount(ctx, owner, core.KindGoal, goal.ID)
	require.NoError(t, err)
	assert.Empty(t, a.Entries)
	assert.True(t, a.Total.IsZero())
	assert.Equal(t, goal.Version, a.Version)
}

func TestLedgerService_MissingEntryCheckedBeforeRates(t *testing.T) {
	ctx := context.Background()
	rates := &failingRates{}
	svc := NewLedgerService(memory.New(), currency.NewNormalizer(rates), nil)
	goal := createGoal(t, svc, "Laptop", "100")

	_, err := svc.UpdateEntry(ctx, owner, core.KindGoal, goal.ID, "nope", core.EntryInput{Amount: dec("1"), Unit: "EUR"})
	assert.ErrorIs(t, err, core.ErrEntryNotFound)
	assert.Zero(t, rates.calls)
}

func TestLedgerService_UpdateAccount(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newLedger(t)
	goal := createGoal(t, svc, "Laptop", "100")
	createGoal(t, svc, "Bicycle", "100")

	_, _, err := svc.AddEntry(ctx, owner, core.KindGoal, goal.ID, usd("60"))
	require.NoError(t, err)

	_, err = svc.UpdateAccount(ctx, owner, core.KindGoal, goal.ID, core.AccountInput{Label: "Bicycle", Amount: dec("100"), Unit: "USD"})
	assert.ErrorIs(t, err, core.ErrDuplicateLabel)

	_, err = svc.UpdateAccount(ctx, owner, core.KindGoal, goal.ID, core.AccountInput{Label: "Laptop", Amount: dec("50"), Unit: "USD"})
	assert.ErrorIs(t, err, core.ErrExceedsRemaining)

	a, err := svc.UpdateAccount(ctx, owner, core.KindGoal, goal.ID, core.AccountInput{Label: "New laptop", Amount: dec("60"), Unit: "EUR"})
	require.NoError(t, err)
	assert.Equal(t, "New laptop", a.Label)
	assert.True(t, a.Target.Equal(dec("120")))
	assert.True(t, a.Total.Equal(dec("60")))

	_, err = svc.UpdateAccount(ctx, owner, core.KindGoal, "missing", core.AccountInput{Label: "Whatever", Amount: dec("1"), Unit: "USD"})
	assert.ErrorIs(t, err, core.ErrNotFound)
}

func TestLedgerService_DeleteAccount(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newLedger(t)
	goal := createGoal(t, svc, "Laptop", "100")

	require.NoError(t, svc.DeleteAccount(ctx, owner, core.KindGoal, goal.ID))
	_, err := svc.GetAccount(ctx, owner, core.KindGoal, goal.ID)
	assert.ErrorIs(t, err, core.ErrNotFound)
	assert.Contains(t, pub.types(), amqp.EventAccountDeleted)
}

func TestLedgerService_PublishFailureDoesNotFailWrite(t *testing.T) {
	ctx := context.Background()
	svc, _, pub := newLedger(t)
	pub.err = amqp.ErrCircuitOpen
	goal := createGoal(t, svc, "Laptop", "100")

	a, _, err := svc.AddEntry(ctx, owner, core.KindGoal, goal.ID, usd("10"))
	require.NoError(t, err)
	assert.True(t, a.Total.Equal(dec("10")))
}

// Concurrent adds on one account must never push the total past the target.
func TestLedgerService_ConcurrentAddsRespectTarget(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newLedger(t)
	goal := createGoal(t, svc, "Laptop", "100")

	var (
		wg       sync.WaitGroup
		mu       sync.Mutex
		accepted int
	)
	for i := 0; i < 25; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, _, err := svc.AddEntry(ctx, owner, core.KindGoal, goal.ID, usd("10"))
			if err == nil {
				mu.Lock()
				accepted++
				mu.Unlock()
				return
			}
			assert.ErrorIs(t, err, core.ErrExceedsRemaining)
		}()
	}
	wg.Wait()

	assert.Equal(t, 10, accepted)
	a, err := svc.GetAccount(ctx, owner, core.KindGoal, goal.ID)
	require.NoError(t, err)
	assert.True(t, a.Total.Equal(dec("100")))
	assert.NoError(t, a.CheckInvariant())
}

// conflictingStore loses the first n conditional writes.
type conflictingStore struct {
	*memory.Store
	n int
}

func (s *conflictingStore) ApplyEntryChange(ctx context.Context, a *core.LedgerAccount, change core.EntryChange, expected int64) error {
	if s.n > 0 {
		s.n--
		return fmt.Errorf("simulated: %w", core.ErrVersionConflict)
	}
	return s.Store.ApplyEntryChange(ctx, a, change, expected)
}

func TestLedgerService_RetriesVersionConflicts(t *testing.T) {
	ctx := context.Background()
	store := &conflictingStore{Store: memory.New(), n: 2}
	svc := NewLedgerService(store, currency.NewNormalizer(testRates), nil)
	goal := createGoal(t, svc, "Laptop", "100")

	a, _, err := svc.AddEntry(ctx, owner, core.KindGoal, goal.ID, usd("10"))
	require.NoError(t, err)
	assert.True(t, a.Total.Equal(dec("10")))

	store.n = maxWriteAttempts
	_, _, err = svc.AddEntry(ctx, owner, core.KindGoal, goal.ID, usd("10"))
	assert.ErrorIs(t, err, core.ErrVersionConflict)

	stored, err := svc.GetAccount(ctx, owner, core.KindGoal, goal.ID)
	require.NoError(t, err)
	assert.Len(t, stored.Entries, 1)
}

func TestLedgerService_Debts(t *testing.T) {
	ctx := context.Background()
	svc, _, _ := newLedger(t)

	_, err := svc.CreateAccount(ctx, owner, core.KindDebt, core.AccountInput{Label: "Al", Amount: dec("50"), Unit: "USD"})
	assert.ErrorIs(t, err, core.ErrValidation)

	debt, err := svc.CreateAccount(ctx, owner, core.KindDebt, core.AccountInput{Label: "Alice from work", Amount: dec("50"), Unit: "USD"})
	require.NoError(t, err)

	_, _, err = svc.AddEntry(ctx, owner, core.KindDebt, debt.ID, usd("50"))
	require.NoError(t, err)
	_, _, err = svc.AddEntry(ctx, owner, core.KindDebt, debt.ID, usd("0.01"))
	assert.ErrorIs(t, err, core.ErrExceedsRemaining)
}

func TestLedgerService_AccountLocksAreBounded(t *testing.T) {
	svc := NewLedgerService(memory.New(), currency.NewNormalizer(testRates), nil)

	first := svc.accountLock(owner, core.KindGoal, "g1")
	assert.Same(t, first, svc.accountLock(owner, core.KindGoal, "g1"))

	seen := map[*sync.Mutex]bool{}
	for i := 0; i < 10*lockStripes; i++ {
		seen[svc.accountLock(owner, core.KindGoal, fmt.Sprintf("g%d", i))] = true
	}
	assert.LessOrEqual(t, len(seen), lockStripes)
}
