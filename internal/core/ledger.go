package core

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

// ErrDrift reports a stored total that no longer matches its entries.
var ErrDrift = errors.New("ledger total does not match entries")

const (
	EntryAdded   EntryOp = "entry_added"
	EntryUpdated EntryOp = "entry_updated"
	EntryDeleted EntryOp = "entry_deleted"
)

type (
	EntryOp string

	// Entry is one saved amount (goals) or paid amount (debts).
	Entry struct {
		ID         string
		Amount     decimal.Decimal
		OccurredAt time.Time
	}

	// EntryChange describes the single entry write produced by a mutation.
	// Previous holds the amount the entry had before an update or delete.
	EntryChange struct {
		Op       EntryOp
		Entry    Entry
		Previous decimal.Decimal
	}

	// LedgerAccount is a goal or a debt: a target, a running total and the
	// entries backing that total.
	LedgerAccount struct {
		ID        string
		OwnerID   string
		Kind      AccountKind
		Label     string
		Target    decimal.Decimal
		Total     decimal.Decimal
		ImageRef  string
		Entries   []Entry
		Version   int64
		CreatedAt time.Time
		UpdatedAt time.Time

		index map[string]int
	}
)

// NewLedgerAccount returns an empty account with total zero.
func NewLedgerAccount(id, ownerID string, kind AccountKind, label string, target decimal.Decimal, now time.Time) (*LedgerAccount, error) {
	if !kind.Valid() {
		return nil, fmt.Errorf("account kind %q: %w", kind, ErrValidation)
	}
	if !target.IsPositive() {
		return nil, fmt.Errorf("target %s: %w", target, ErrAmountTooSmall)
	}
	return &LedgerAccount{
		ID:        id,
		OwnerID:   ownerID,
		Kind:      kind,
		Label:     strings.TrimSpace(label),
		Target:    target,
		Total:     decimal.Zero,
		Entries:   []Entry{},
		CreatedAt: now,
		UpdatedAt: now,
	}, nil
}

// Clone returns a deep copy that shares no slices with a.
func (a *LedgerAccount) Clone() *LedgerAccount {
	c := *a
	c.Entries = make([]Entry, len(a.Entries))
	copy(c.Entries, a.Entries)
	c.index = nil
	return &c
}

// Sum adds up the live entries.
func (a *LedgerAccount) Sum() decimal.Decimal {
	total := decimal.Zero
	for _, e := range a.Entries {
		total = total.Add(e.Amount)
	}
	return total
}

// Remaining is the capacity left before the target is reached.
func (a *LedgerAccount) Remaining() decimal.Decimal {
	return a.Target.Sub(a.Total)
}

// CheckInvariant verifies total == sum(entries) and 0 <= total <= target.
func (a *LedgerAccount) CheckInvariant() error {
	sum := a.Sum()
	if !a.Total.Equal(sum) {
		return fmt.Errorf("account %s: total %s, entries %s: %w", a.ID, a.Total, sum, ErrDrift)
	}
	if a.Total.IsNegative() || a.Total.GreaterThan(a.Target) {
		return fmt.Errorf("account %s: total %s outside [0, %s]: %w", a.ID, a.Total, a.Target, ErrDrift)
	}
	return nil
}

// Resum re-derives the total from the entries and reports whether it moved.
func (a *LedgerAccount) Resum() bool {
	sum := a.Sum()
	if a.Total.Equal(sum) {
		return false
	}
	a.Total = sum
	return true
}

// Entry looks an entry up by id.
func (a *LedgerAccount) Entry(id string) (Entry, bool) {
	i, ok := a.lookup(id)
	if !ok {
		return Entry{}, false
	}
	return a.Entries[i], true
}

func (a *LedgerAccount) lookup(id string) (int, bool) {
	if a.index == nil || len(a.index) != len(a.Entries) {
		a.reindex()
	}
	i, ok := a.index[id]
	if !ok || i >= len(a.Entries) || a.Entries[i].ID != id {
		a.reindex()
		i, ok = a.index[id]
	}
	return i, ok
}

func (a *LedgerAccount) reindex() {
	idx := make(map[string]int, len(a.Entries))
	for i, e := range a.Entries {
		idx[e.ID] = i
	}
	a.index = idx
}

// AddEntry appends a new entry after checking it fits under the target.
func (a *LedgerAccount) AddEntry(id string, amount decimal.Decimal, at time.Time) (EntryChange, error) {
	if !amount.IsPositive() {
		return EntryChange{}, ErrAmountTooSmall
	}
	current := a.Sum()
	if amount.GreaterThan(a.Target.Sub(current)) {
		return EntryChange{}, fmt.Errorf("add %s with %s remaining: %w", amount, a.Target.Sub(current), ErrExceedsRemaining)
	}

	entry := Entry{ID: id, Amount: amount, OccurredAt: at}
	entries := make([]Entry, len(a.Entries), len(a.Entries)+1)
	copy(entries, a.Entries)
	a.Entries = append(entries, entry)
	a.Total = current.Add(amount)
	a.UpdatedAt = at
	a.reindex()

	return EntryChange{Op: EntryAdded, Entry: entry, Previous: decimal.Zero}, nil
}

// UpdateEntry replaces the amount of an existing entry in place.
// The bound check uses the delta from the entry's prior amount.
func (a *LedgerAccount) UpdateEntry(id string, amount decimal.Decimal, at time.Time) (EntryChange, error) {
	i, ok := a.lookup(id)
	if !ok {
		return EntryChange{}, ErrEntryNotFound
	}
	if !amount.IsPositive() {
		return EntryChange{}, ErrAmountTooSmall
	}

	old := a.Entries[i]
	delta := amount.Sub(old.Amount)
	current := a.Sum()
	if current.Add(delta).GreaterThan(a.Target) {
		return EntryChange{}, fmt.Errorf("update %s by %s with %s remaining: %w", id, delta, a.Target.Sub(current), ErrExceedsRemaining)
	}

	updated := old
	updated.Amount = amount
	entries := make([]Entry, len(a.Entries))
	copy(entries, a.Entries)
	entries[i] = updated
	a.Entries = entries
	a.Total = current.Add(delta)
	a.UpdatedAt = at

	return EntryChange{Op: EntryUpdated, Entry: updated, Previous: old.Amount}, nil
}

// DeleteEntry removes an entry and subtracts its amount.
func (a *LedgerAccount) DeleteEntry(id string, at time.Time) (EntryChange, error) {
	i, ok := a.lookup(id)
	if !ok {
		return EntryChange{}, ErrEntryNotFound
	}

	removed := a.Entries[i]
	entries := make([]Entry, 0, len(a.Entries)-1)
	entries = append(entries, a.Entries[:i]...)
	entries = append(entries, a.Entries[i+1:]...)
	a.Entries = entries
	a.Total = a.Sum()
	a.UpdatedAt = at
	a.reindex()

	return EntryChange{Op: EntryDeleted, Entry: removed, Previous: removed.Amount}, nil
}

// SetTarget changes the target. It may not drop below what is already
// recorded against the account.
func (a *LedgerAccount) SetTarget(target decimal.Decimal) error {
	if !target.IsPositive() {
		return fmt.Errorf("target %s: %w", target, ErrAmountTooSmall)
	}
	if current := a.Sum(); target.LessThan(current) {
		return fmt.Errorf("target %s below total %s: %w", target, current, ErrExceedsRemaining)
	}
	a.Target = target
	return nil
}
