// Package memory is a process-local ports.Store used by tests and by the
// memory backend. State is lost on restart.
package memory

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

var _ ports.Store = (*Store)(nil)

type Store struct {
	mu           sync.Mutex
	accounts     map[string]*core.LedgerAccount
	transactions map[string]core.Transaction
	categories   map[string]core.Category
}

func New() *Store {
	return &Store{
		accounts:     map[string]*core.LedgerAccount{},
		transactions: map[string]core.Transaction{},
		categories:   map[string]core.Category{},
	}
}

func (s *Store) Ping(context.Context) error { return nil }
func (s *Store) Close() error              { return nil }

func (s *Store) account(ownerID string, kind core.AccountKind, id string) (*core.LedgerAccount, error) {
	a, ok := s.accounts[id]
	if !ok || a.OwnerID != ownerID || a.Kind != kind {
		return nil, fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	return a, nil
}

func (s *Store) labelTaken(ownerID string, kind core.AccountKind, label, excludeID string) bool {
	for _, a := range s.accounts {
		if a.OwnerID == ownerID && a.Kind == kind && a.Label == label && a.ID != excludeID {
			return true
		}
	}
	return false
}

func (s *Store) CreateAccount(_ context.Context, a *core.LedgerAccount) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.labelTaken(a.OwnerID, a.Kind, a.Label, a.ID) {
		return fmt.Errorf("%s %q: %w", a.Kind, a.Label, core.ErrDuplicateLabel)
	}
	if _, ok := s.accounts[a.ID]; ok {
		return fmt.Errorf("account %s already exists", a.ID)
	}
	s.accounts[a.ID] = a.Clone()
	return nil
}

func (s *Store) GetAccount(_ context.Context, ownerID string, kind core.AccountKind, id string) (*core.LedgerAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	a, err := s.account(ownerID, kind, id)
	if err != nil {
		return nil, err
	}
	return a.Clone(), nil
}

func (s *Store) ListAccounts(_ context.Context, ownerID string, kind core.AccountKind) ([]*core.LedgerAccount, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []*core.LedgerAccount{}
	for _, a := range s.accounts {
		if a.OwnerID == ownerID && a.Kind == kind {
			out = append(out, a.Clone())
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) ListAccountRefs(_ context.Context, ownerID string) ([]ports.AccountRef, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var refs []ports.AccountRef
	for _, a := range s.accounts {
		if ownerID == "" || a.OwnerID == ownerID {
			refs = append(refs, ports.AccountRef{OwnerID: a.OwnerID, Kind: a.Kind, ID: a.ID})
		}
	}
	sort.Slice(refs, func(i, j int) bool { return refs[i].ID < refs[j].ID })
	return refs, nil
}

func (s *Store) LabelTaken(_ context.Context, ownerID string, kind core.AccountKind, label, excludeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.labelTaken(ownerID, kind, label, excludeID), nil
}

// checkVersion must be called with s.mu held.
func (s *Store) checkVersion(a *core.LedgerAccount, expectedVersion int64) (*core.LedgerAccount, error) {
	cur, err := s.account(a.OwnerID, a.Kind, a.ID)
	if err != nil {
		return nil, err
	}
	if cur.Version != expectedVersion {
		return nil, fmt.Errorf("%s %s at version %d: %w", a.Kind, a.ID, expectedVersion, core.ErrVersionConflict)
	}
	if s.labelTaken(a.OwnerID, a.Kind, a.Label, a.ID) {
		return nil, fmt.Errorf("%s %q: %w", a.Kind, a.Label, core.ErrDuplicateLabel)
	}
	return cur, nil
}

func (s *Store) UpdateAccount(_ context.Context, a *core.LedgerAccount, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.checkVersion(a, expectedVersion)
	if err != nil {
		return err
	}
	next := cur.Clone()
	next.Label = a.Label
	next.Target = a.Target
	next.Total = a.Total
	next.ImageRef = a.ImageRef
	next.UpdatedAt = a.UpdatedAt
	next.Version = expectedVersion + 1
	s.accounts[a.ID] = next
	a.Version = next.Version
	return nil
}

func (s *Store) ApplyEntryChange(_ context.Context, a *core.LedgerAccount, change core.EntryChange, expectedVersion int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, err := s.checkVersion(a, expectedVersion)
	if err != nil {
		return err
	}

	next := cur.Clone()
	switch change.Op {
	case core.EntryAdded:
		next.Entries = append(next.Entries, change.Entry)
	case core.EntryUpdated, core.EntryDeleted:
		i := -1
		for k, e := range next.Entries {
			if e.ID == change.Entry.ID {
				i = k
				break
			}
		}
		if i < 0 {
			return fmt.Errorf("entry %s: %w", change.Entry.ID, core.ErrEntryNotFound)
		}
		if change.Op == core.EntryUpdated {
			next.Entries[i] = change.Entry
		} else {
			next.Entries = append(next.Entries[:i], next.Entries[i+1:]...)
		}
	default:
		return fmt.Errorf("unknown entry operation %q", change.Op)
	}
	next.Total = a.Total
	next.UpdatedAt = a.UpdatedAt
	next.Version = expectedVersion + 1
	s.accounts[a.ID] = next
	a.Version = next.Version
	return nil
}

func (s *Store) DeleteAccount(_ context.Context, ownerID string, kind core.AccountKind, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, err := s.account(ownerID, kind, id); err != nil {
		return err
	}
	delete(s.accounts, id)
	return nil
}

func (s *Store) CreateTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.transactions[t.ID]; ok {
		return fmt.Errorf("transaction %s already exists", t.ID)
	}
	s.transactions[t.ID] = t
	return nil
}

func (s *Store) GetTransaction(_ context.Context, ownerID, id string) (core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok || t.OwnerID != ownerID {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	return t, nil
}

func (s *Store) UpdateTransaction(_ context.Context, t core.Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.transactions[t.ID]
	if !ok || cur.OwnerID != t.OwnerID {
		return fmt.Errorf("transaction %s: %w", t.ID, core.ErrNotFound)
	}
	t.CreatedAt = cur.CreatedAt
	s.transactions[t.ID] = t
	return nil
}

func (s *Store) DeleteTransaction(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	t, ok := s.transactions[id]
	if !ok || t.OwnerID != ownerID {
		return fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	delete(s.transactions, id)
	return nil
}

func (s *Store) ListTransactions(_ context.Context, ownerID string, f core.TransactionFilter) ([]core.Transaction, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Transaction{}
	for _, t := range s.transactions {
		if t.OwnerID == ownerID && f.Matches(t) {
			out = append(out, t)
		}
	}
	core.SortNewestFirst(out)
	return out, nil
}

func (s *Store) nameTaken(ownerID, name, excludeID string) bool {
	for _, c := range s.categories {
		if c.OwnerID == ownerID && c.Name == name && c.ID != excludeID {
			return true
		}
	}
	return false
}

func (s *Store) CreateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nameTaken(c.OwnerID, c.Name, c.ID) {
		return fmt.Errorf("category %q: %w", c.Name, core.ErrDuplicateLabel)
	}
	s.categories[c.ID] = c
	return nil
}

func (s *Store) GetCategory(_ context.Context, ownerID, id string) (core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok || c.OwnerID != ownerID {
		return core.Category{}, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	return c, nil
}

func (s *Store) ListCategories(_ context.Context, ownerID string) ([]core.Category, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := []core.Category{}
	for _, c := range s.categories {
		if c.OwnerID == ownerID {
			out = append(out, c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (s *Store) UpdateCategory(_ context.Context, c core.Category) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	cur, ok := s.categories[c.ID]
	if !ok || cur.OwnerID != c.OwnerID {
		return fmt.Errorf("category %s: %w", c.ID, core.ErrNotFound)
	}
	if s.nameTaken(c.OwnerID, c.Name, c.ID) {
		return fmt.Errorf("category %q: %w", c.Name, core.ErrDuplicateLabel)
	}
	c.CreatedAt = cur.CreatedAt
	s.categories[c.ID] = c
	return nil
}

func (s *Store) DeleteCategory(_ context.Context, ownerID, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	if !ok || c.OwnerID != ownerID {
		return fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	delete(s.categories, id)
	return nil
}

func (s *Store) CategoryExists(_ context.Context, ownerID, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	c, ok := s.categories[id]
	return ok && c.OwnerID == ownerID, nil
}

func (s *Store) CategoryNameTaken(_ context.Context, ownerID, name, excludeID string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nameTaken(ownerID, name, excludeID), nil
}
