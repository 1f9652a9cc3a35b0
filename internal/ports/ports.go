// Package ports declares the persistence contracts the services depend on.
// Both the SQLite repository and the in-memory store implement Store.
package ports

import (
	"context"

	"fintrack/internal/core"
)

// Ports for outbound adapters.
type (
	// AccountRef identifies an account without loading it.
	AccountRef struct {
		OwnerID string
		Kind    core.AccountKind
		ID      string
	}

	AccountStore interface {
		// CreateAccount inserts a new account. It fails with
		// core.ErrDuplicateLabel when the label is already used.
		CreateAccount(ctx context.Context, a *core.LedgerAccount) error

		// GetAccount loads an account with its entries in stored order.
		GetAccount(ctx context.Context, ownerID string, kind core.AccountKind, id string) (*core.LedgerAccount, error)

		// ListAccounts returns the owner's accounts of one kind, newest first.
		ListAccounts(ctx context.Context, ownerID string, kind core.AccountKind) ([]*core.LedgerAccount, error)

		// ListAccountRefs enumerates accounts; an empty ownerID means all owners.
		ListAccountRefs(ctx context.Context, ownerID string) ([]AccountRef, error)

		LabelTaken(ctx context.Context, ownerID string, kind core.AccountKind, label, excludeID string) (bool, error)

		// UpdateAccount writes label, target, image and total if the stored
		// version still equals expectedVersion, else core.ErrVersionConflict.
		UpdateAccount(ctx context.Context, a *core.LedgerAccount, expectedVersion int64) error

		// ApplyEntryChange persists one entry write together with the new
		// total, atomically and under the same version check.
		ApplyEntryChange(ctx context.Context, a *core.LedgerAccount, change core.EntryChange, expectedVersion int64) error

		DeleteAccount(ctx context.Context, ownerID string, kind core.AccountKind, id string) error
	}

	TransactionStore interface {
		CreateTransaction(ctx context.Context, t core.Transaction) error
		GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error)
		UpdateTransaction(ctx context.Context, t core.Transaction) error
		DeleteTransaction(ctx context.Context, ownerID, id string) error
		// ListTransactions returns matches newest first.
		ListTransactions(ctx context.Context, ownerID string, f core.TransactionFilter) ([]core.Transaction, error)
	}

	CategoryStore interface {
		CreateCategory(ctx context.Context, c core.Category) error
		GetCategory(ctx context.Context, ownerID, id string) (core.Category, error)
		ListCategories(ctx context.Context, ownerID string) ([]core.Category, error)
		UpdateCategory(ctx context.Context, c core.Category) error
		DeleteCategory(ctx context.Context, ownerID, id string) error
		CategoryExists(ctx context.Context, ownerID, id string) (bool, error)
		CategoryNameTaken(ctx context.Context, ownerID, name, excludeID string) (bool, error)
	}

	Store interface {
		AccountStore
		TransactionStore
		CategoryStore
		Ping(ctx context.Context) error
		Close() error
	}
)
