// Package porttest holds a behavioural suite every ports.Store must pass.
package porttest

import (
	"context"
	"fmt"
	"time"

	"fintrack/internal/core"
	"fintrack/internal/ports"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/suite"
)

// StoreSuite runs against a fresh store per test.
type StoreSuite struct {
	suite.Suite

	NewStore func() ports.Store

	store ports.Store
	ctx   context.Context
	now   time.Time
}

func (s *StoreSuite) SetupTest() {
	s.store = s.NewStore()
	s.ctx = context.Background()
	s.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func (s *StoreSuite) TearDownTest() {
	s.Require().NoError(s.store.Close())
}

func dec(v string) decimal.Decimal { return decimal.RequireFromString(v) }

func (s *StoreSuite) newAccount(id, owner string, kind core.AccountKind, label string, at time.Time) *core.LedgerAccount {
	a, err := core.NewLedgerAccount(id, owner, kind, label, dec("100"), at)
	s.Require().NoError(err)
	s.Require().NoError(s.store.CreateAccount(s.ctx, a))
	return a
}

func (s *StoreSuite) TestCreateAndGetAccount() {
	s.newAccount("g1", "u1", core.KindGoal, "Car", s.now)

	got, err := s.store.GetAccount(s.ctx, "u1", core.KindGoal, "g1")
	s.Require().NoError(err)
	s.Equal("Car", got.Label)
	s.True(got.Target.Equal(dec("100")))
	s.True(got.Total.IsZero())
	s.Empty(got.Entries)
	s.True(got.CreatedAt.Equal(s.now))

	_, err = s.store.GetAccount(s.ctx, "u2", core.KindGoal, "g1")
	s.ErrorIs(err, core.ErrNotFound, "other owners cannot see it")
	_, err = s.store.GetAccount(s.ctx, "u1", core.KindDebt, "g1")
	s.ErrorIs(err, core.ErrNotFound, "kinds are separate")
}

func (s *StoreSuite) TestDuplicateLabel() {
	s.newAccount("g1", "u1", core.KindGoal, "Car", s.now)

	dup, err := core.NewLedgerAccount("g2", "u1", core.KindGoal, "Car", dec("5"), s.now)
	s.Require().NoError(err)
	s.ErrorIs(s.store.CreateAccount(s.ctx, dup), core.ErrDuplicateLabel)

	s.newAccount("d1", "u1", core.KindDebt, "Car", s.now)
	s.newAccount("g3", "u2", core.KindGoal, "Car", s.now)
	s.newAccount("g4", "u1", core.KindGoal, "car", s.now)

	taken, err := s.store.LabelTaken(s.ctx, "u1", core.KindGoal, "Car", "")
	s.Require().NoError(err)
	s.True(taken)
	taken, err = s.store.LabelTaken(s.ctx, "u1", core.KindGoal, "Car", "g1")
	s.Require().NoError(err)
	s.False(taken, "the account itself is excluded")
}

func (s *StoreSuite) TestApplyEntryChanges() {
	a := s.newAccount("g1", "u1", core.KindGoal, "Car", s.now)

	for i, amt := range []string{"10", "20", "30"} {
		v := a.Version
		change, err := a.AddEntry(fmt.Sprintf("e%d", i+1), dec(amt), s.now.Add(time.Duration(i)*time.Minute))
		s.Require().NoError(err)
		s.Require().NoError(s.store.ApplyEntryChange(s.ctx, a, change, v))
		s.Equal(v+1, a.Version)
	}

	v := a.Version
	change, err := a.UpdateEntry("e2", dec("25"), s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.ApplyEntryChange(s.ctx, a, change, v))

	v = a.Version
	change, err = a.DeleteEntry("e1", s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.ApplyEntryChange(s.ctx, a, change, v))

	got, err := s.store.GetAccount(s.ctx, "u1", core.KindGoal, "g1")
	s.Require().NoError(err)
	s.Require().Len(got.Entries, 2)
	s.Equal("e2", got.Entries[0].ID)
	s.True(got.Entries[0].Amount.Equal(dec("25")))
	s.Equal("e3", got.Entries[1].ID)
	s.True(got.Total.Equal(dec("55")))
	s.Equal(int64(5), got.Version)
	s.NoError(got.CheckInvariant())
}

func (s *StoreSuite) TestStaleVersionIsRejected() {
	a := s.newAccount("g1", "u1", core.KindGoal, "Car", s.now)
	stale := a.Clone()

	change, err := a.AddEntry("e1", dec("60"), s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.ApplyEntryChange(s.ctx, a, change, 0))

	change, err = stale.AddEntry("e2", dec("60"), s.now)
	s.Require().NoError(err, "passes against the stale total")
	s.ErrorIs(s.store.ApplyEntryChange(s.ctx, stale, change, 0), core.ErrVersionConflict)

	got, err := s.store.GetAccount(s.ctx, "u1", core.KindGoal, "g1")
	s.Require().NoError(err)
	s.Len(got.Entries, 1)
	s.True(got.Total.Equal(dec("60")))
}

func (s *StoreSuite) TestUpdateAccount() {
	a := s.newAccount("g1", "u1", core.KindGoal, "Car", s.now)
	s.newAccount("g2", "u1", core.KindGoal, "House", s.now)

	a.Label = "Bike"
	s.Require().NoError(a.SetTarget(dec("300")))
	s.Require().NoError(s.store.UpdateAccount(s.ctx, a, 0))
	s.Equal(int64(1), a.Version)

	got, err := s.store.GetAccount(s.ctx, "u1", core.KindGoal, "g1")
	s.Require().NoError(err)
	s.Equal("Bike", got.Label)
	s.True(got.Target.Equal(dec("300")))

	a.Label = "House"
	s.ErrorIs(s.store.UpdateAccount(s.ctx, a, 1), core.ErrDuplicateLabel)
	a.Label = "Bike"
	s.ErrorIs(s.store.UpdateAccount(s.ctx, a, 0), core.ErrVersionConflict)

	missing := a.Clone()
	missing.ID = "nope"
	s.ErrorIs(s.store.UpdateAccount(s.ctx, missing, 0), core.ErrNotFound)
}

func (s *StoreSuite) TestListAndDeleteAccounts() {
	older := s.newAccount("g1", "u1", core.KindGoal, "Old", s.now)
	s.newAccount("g2", "u1", core.KindGoal, "New", s.now.Add(time.Hour))
	s.newAccount("d1", "u1", core.KindDebt, "Bob", s.now)
	s.newAccount("g3", "u2", core.KindGoal, "Other", s.now)

	change, err := older.AddEntry("e1", dec("1"), s.now)
	s.Require().NoError(err)
	s.Require().NoError(s.store.ApplyEntryChange(s.ctx, older, change, 0))

	goals, err := s.store.ListAccounts(s.ctx, "u1", core.KindGoal)
	s.Require().NoError(err)
	s.Require().Len(goals, 2)
	s.Equal("g2", goals[0].ID)
	s.Equal("g1", goals[1].ID)
	s.Len(goals[1].Entries, 1)

	refs, err := s.store.ListAccountRefs(s.ctx, "")
	s.Require().NoError(err)
	s.Len(refs, 4)
	refs, err = s.store.ListAccountRefs(s.ctx, "u2")
	s.Require().NoError(err)
	s.Len(refs, 1)

	s.ErrorIs(s.store.DeleteAccount(s.ctx, "u2", core.KindGoal, "g1"), core.ErrNotFound)
	s.Require().NoError(s.store.DeleteAccount(s.ctx, "u1", core.KindGoal, "g1"))
	_, err = s.store.GetAccount(s.ctx, "u1", core.KindGoal, "g1")
	s.ErrorIs(err, core.ErrNotFound)
}

func (s *StoreSuite) TestCategories() {
	c := core.Category{ID: "c1", OwnerID: "u1", Name: "Food", CreatedAt: s.now, UpdatedAt: s.now}
	s.Require().NoError(s.store.CreateCategory(s.ctx, c))
	s.ErrorIs(s.store.CreateCategory(s.ctx, core.Category{ID: "c2", OwnerID: "u1", Name: "Food", CreatedAt: s.now, UpdatedAt: s.now}), core.ErrDuplicateLabel)
	s.Require().NoError(s.store.CreateCategory(s.ctx, core.Category{ID: "c3", OwnerID: "u2", Name: "Food", CreatedAt: s.now, UpdatedAt: s.now}))

	ok, err := s.store.CategoryExists(s.ctx, "u1", "c1")
	s.Require().NoError(err)
	s.True(ok)
	ok, err = s.store.CategoryExists(s.ctx, "u2", "c1")
	s.Require().NoError(err)
	s.False(ok)

	c.Name = "Groceries"
	c.ImageRef = "img/groceries.png"
	s.Require().NoError(s.store.UpdateCategory(s.ctx, c))
	got, err := s.store.GetCategory(s.ctx, "u1", "c1")
	s.Require().NoError(err)
	s.Equal("Groceries", got.Name)
	s.Equal("img/groceries.png", got.ImageRef)

	taken, err := s.store.CategoryNameTaken(s.ctx, "u1", "Groceries", "c1")
	s.Require().NoError(err)
	s.False(taken)

	cats, err := s.store.ListCategories(s.ctx, "u1")
	s.Require().NoError(err)
	s.Len(cats, 1)

	s.Require().NoError(s.store.DeleteCategory(s.ctx, "u1", "c1"))
	s.ErrorIs(s.store.DeleteCategory(s.ctx, "u1", "c1"), core.ErrNotFound)
}

func (s *StoreSuite) TestTransactions() {
	mk := func(id string, kind core.TransactionKind, cat string, at time.Time) core.Transaction {
		return core.Transaction{ID: id, OwnerID: "u1", CategoryID: cat, Label: "t " + id, Amount: dec("10.50"), Kind: kind, CreatedAt: at, UpdatedAt: at}
	}
	s.Require().NoError(s.store.CreateTransaction(s.ctx, mk("t1", core.Income, "c1", s.now.Add(-48*time.Hour))))
	s.Require().NoError(s.store.CreateTransaction(s.ctx, mk("t2", core.Expense, "c2", s.now)))
	s.Require().NoError(s.store.CreateTransaction(s.ctx, mk("t3", core.Expense, "c1", s.now.Add(-time.Hour))))
	other := mk("t4", core.Expense, "c1", s.now)
	other.OwnerID = "u2"
	s.Require().NoError(s.store.CreateTransaction(s.ctx, other))

	all, err := s.store.ListTransactions(s.ctx, "u1", core.TransactionFilter{})
	s.Require().NoError(err)
	s.Require().Len(all, 3)
	s.Equal([]string{"t2", "t3", "t1"}, []string{all[0].ID, all[1].ID, all[2].ID})
	s.True(all[0].Amount.Equal(dec("10.5")))

	byCat, err := s.store.ListTransactions(s.ctx, "u1", core.TransactionFilter{CategoryID: "c1", Kind: core.Expense})
	s.Require().NoError(err)
	s.Require().Len(byCat, 1)
	s.Equal("t3", byCat[0].ID)

	window, err := s.store.ListTransactions(s.ctx, "u1", core.TransactionFilter{From: s.now.Add(-2 * time.Hour), To: s.now.Add(-time.Hour)})
	s.Require().NoError(err)
	s.Require().Len(window, 1)
	s.Equal("t3", window[0].ID)

	t2 := all[0]
	t2.Amount = dec("99")
	t2.Kind = core.Income
	s.Require().NoError(s.store.UpdateTransaction(s.ctx, t2))
	got, err := s.store.GetTransaction(s.ctx, "u1", "t2")
	s.Require().NoError(err)
	s.True(got.Amount.Equal(dec("99")))
	s.Equal(core.Income, got.Kind)
	s.True(got.CreatedAt.Equal(s.now))

	_, err = s.store.GetTransaction(s.ctx, "u2", "t2")
	s.ErrorIs(err, core.ErrNotFound)
	s.ErrorIs(s.store.DeleteTransaction(s.ctx, "u2", "t2"), core.ErrNotFound)
	s.Require().NoError(s.store.DeleteTransaction(s.ctx, "u1", "t2"))
	s.ErrorIs(s.store.UpdateTransaction(s.ctx, t2), core.ErrNotFound)
}
