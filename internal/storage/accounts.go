package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"

	"fintrack/internal/core"
	"fintrack/internal/ports"
)

const accountColumns = `id, owner_id, kind, label, target, total, image_ref, version, created_at, updated_at`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanAccount(row rowScanner) (*core.LedgerAccount, error) {
	var (
		a                    core.LedgerAccount
		kind, target, total  string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&a.ID, &a.OwnerID, &kind, &a.Label, &target, &total, &a.ImageRef, &a.Version, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	var err error
	if a.Target, err = parseDecimal("target", target); err != nil {
		return nil, err
	}
	if a.Total, err = parseDecimal("total", total); err != nil {
		return nil, err
	}
	a.Kind = core.AccountKind(kind)
	a.CreatedAt = fromUnix(createdAt)
	a.UpdatedAt = fromUnix(updatedAt)
	a.Entries = []core.Entry{}
	return &a, nil
}

func scanEntry(row rowScanner) (string, core.Entry, error) {
	var (
		accountID, amount string
		occurredAt        int64
		e                 core.Entry
	)
	if err := row.Scan(&accountID, &e.ID, &amount, &occurredAt); err != nil {
		return "", core.Entry{}, err
	}
	a, err := parseDecimal("entry amount", amount)
	if err != nil {
		return "", core.Entry{}, err
	}
	e.Amount = a
	e.OccurredAt = fromUnix(occurredAt)
	return accountID, e, nil
}

// CreateAccount implements ports.AccountStore
func (r *SQLiteRepository) CreateAccount(ctx context.Context, a *core.LedgerAccount) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO ledger_accounts (`+accountColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			a.ID, a.OwnerID, string(a.Kind), a.Label, a.Target.String(), a.Total.String(), a.ImageRef,
			a.Version, toUnix(a.CreatedAt), toUnix(a.UpdatedAt))
		if isUniqueViolation(err) {
			return fmt.Errorf("%s %q: %w", a.Kind, a.Label, core.ErrDuplicateLabel)
		}
		if err != nil {
			return fmt.Errorf("insert account: %w", err)
		}
		for i, e := range a.Entries {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO ledger_entries (id, account_id, seq, amount, occurred_at) VALUES (?, ?, ?, ?, ?)`,
				e.ID, a.ID, i+1, e.Amount.String(), toUnix(e.OccurredAt)); err != nil {
				return fmt.Errorf("insert entry %s: %w", e.ID, err)
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("create account: %w", err)
	}

	slog.InfoContext(ctx, "Ledger account saved to SQLite",
		"account_id", a.ID,
		"kind", a.Kind,
		"target", a.Target.String())
	return nil
}

// GetAccount implements ports.AccountStore
func (r *SQLiteRepository) GetAccount(ctx context.Context, ownerID string, kind core.AccountKind, id string) (*core.LedgerAccount, error) {
	a, err := scanAccount(r.db.QueryRowContext(ctx,
		`SELECT `+accountColumns+` FROM ledger_accounts WHERE id = ? AND owner_id = ? AND kind = ?`,
		id, ownerID, string(kind)))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("get account: %w", err)
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT account_id, id, amount, occurred_at FROM ledger_entries WHERE account_id = ? ORDER BY seq`, id)
	if err != nil {
		return nil, fmt.Errorf("get entries: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		_, e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		a.Entries = append(a.Entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return a, nil
}

// ListAccounts implements ports.AccountStore
func (r *SQLiteRepository) ListAccounts(ctx context.Context, ownerID string, kind core.AccountKind) ([]*core.LedgerAccount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+accountColumns+` FROM ledger_accounts WHERE owner_id = ? AND kind = ? ORDER BY created_at DESC, id DESC`,
		ownerID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list accounts: %w", err)
	}

	accounts := []*core.LedgerAccount{}
	byID := map[string]*core.LedgerAccount{}
	for rows.Next() {
		a, err := scanAccount(rows)
		if err != nil {
			rows.Close()
			return nil, fmt.Errorf("scan account: %w", err)
		}
		accounts = append(accounts, a)
		byID[a.ID] = a
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate accounts: %w", err)
	}
	if len(accounts) == 0 {
		return accounts, nil
	}

	entryRows, err := r.db.QueryContext(ctx,
		`SELECT e.account_id, e.id, e.amount, e.occurred_at
		   FROM ledger_entries e
		   JOIN ledger_accounts a ON a.id = e.account_id
		  WHERE a.owner_id = ? AND a.kind = ?
		  ORDER BY e.account_id, e.seq`,
		ownerID, string(kind))
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	defer entryRows.Close()

	for entryRows.Next() {
		accountID, e, err := scanEntry(entryRows)
		if err != nil {
			return nil, fmt.Errorf("scan entry: %w", err)
		}
		if a, ok := byID[accountID]; ok {
			a.Entries = append(a.Entries, e)
		}
	}
	if err := entryRows.Err(); err != nil {
		return nil, fmt.Errorf("iterate entries: %w", err)
	}
	return accounts, nil
}

// ListAccountRefs implements ports.AccountStore
func (r *SQLiteRepository) ListAccountRefs(ctx context.Context, ownerID string) ([]ports.AccountRef, error) {
	query := `SELECT owner_id, kind, id FROM ledger_accounts`
	var args []any
	if ownerID != "" {
		query += ` WHERE owner_id = ?`
		args = append(args, ownerID)
	}
	query += ` ORDER BY created_at, id`

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list account refs: %w", err)
	}
	defer rows.Close()

	var refs []ports.AccountRef
	for rows.Next() {
		var ref ports.AccountRef
		var kind string
		if err := rows.Scan(&ref.OwnerID, &kind, &ref.ID); err != nil {
			return nil, fmt.Errorf("scan account ref: %w", err)
		}
		ref.Kind = core.AccountKind(kind)
		refs = append(refs, ref)
	}
	return refs, rows.Err()
}

// LabelTaken implements ports.AccountStore
func (r *SQLiteRepository) LabelTaken(ctx context.Context, ownerID string, kind core.AccountKind, label, excludeID string) (bool, error) {
	taken, err := exists(ctx, r.db,
		`SELECT EXISTS (SELECT 1 FROM ledger_accounts WHERE owner_id = ? AND kind = ? AND label = ? AND id <> ?)`,
		ownerID, string(kind), label, excludeID)
	if err != nil {
		return false, fmt.Errorf("check label: %w", err)
	}
	return taken, nil
}

// bumpVersion moves the account row forward one version, writing the
// mutable columns. Zero affected rows means a lost race or a missing row.
func bumpVersion(ctx context.Context, tx *sql.Tx, a *core.LedgerAccount, expectedVersion int64) error {
	res, err := tx.ExecContext(ctx,
		`UPDATE ledger_accounts
		    SET label = ?, target = ?, total = ?, image_ref = ?, version = version + 1, updated_at = ?
		  WHERE id = ? AND owner_id = ? AND kind = ? AND version = ?`,
		a.Label, a.Target.String(), a.Total.String(), a.ImageRef, toUnix(a.UpdatedAt),
		a.ID, a.OwnerID, string(a.Kind), expectedVersion)
	if isUniqueViolation(err) {
		return fmt.Errorf("%s %q: %w", a.Kind, a.Label, core.ErrDuplicateLabel)
	}
	if err != nil {
		return fmt.Errorf("update account: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 1 {
		return nil
	}

	found, err := exists(ctx, tx,
		`SELECT EXISTS (SELECT 1 FROM ledger_accounts WHERE id = ? AND owner_id = ? AND kind = ?)`,
		a.ID, a.OwnerID, string(a.Kind))
	if err != nil {
		return fmt.Errorf("check account: %w", err)
	}
	if !found {
		return fmt.Errorf("%s %s: %w", a.Kind, a.ID, core.ErrNotFound)
	}
	return fmt.Errorf("%s %s at version %d: %w", a.Kind, a.ID, expectedVersion, core.ErrVersionConflict)
}

// UpdateAccount implements ports.AccountStore
func (r *SQLiteRepository) UpdateAccount(ctx context.Context, a *core.LedgerAccount, expectedVersion int64) error {
	if err := r.withTx(ctx, func(tx *sql.Tx) error {
		return bumpVersion(ctx, tx, a, expectedVersion)
	}); err != nil {
		return err
	}
	a.Version = expectedVersion + 1
	return nil
}

// ApplyEntryChange implements ports.AccountStore
func (r *SQLiteRepository) ApplyEntryChange(ctx context.Context, a *core.LedgerAccount, change core.EntryChange, expectedVersion int64) error {
	err := r.withTx(ctx, func(tx *sql.Tx) error {
		if err := bumpVersion(ctx, tx, a, expectedVersion); err != nil {
			return err
		}

		var (
			res sql.Result
			err error
		)
		switch change.Op {
		case core.EntryAdded:
			res, err = tx.ExecContext(ctx,
				`INSERT INTO ledger_entries (id, account_id, seq, amount, occurred_at)
				 VALUES (?, ?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM ledger_entries WHERE account_id = ?), ?, ?)`,
				change.Entry.ID, a.ID, a.ID, change.Entry.Amount.String(), toUnix(change.Entry.OccurredAt))
		case core.EntryUpdated:
			res, err = tx.ExecContext(ctx,
				`UPDATE ledger_entries SET amount = ? WHERE id = ? AND account_id = ?`,
				change.Entry.Amount.String(), change.Entry.ID, a.ID)
		case core.EntryDeleted:
			res, err = tx.ExecContext(ctx,
				`DELETE FROM ledger_entries WHERE id = ? AND account_id = ?`,
				change.Entry.ID, a.ID)
		default:
			return fmt.Errorf("unknown entry operation %q", change.Op)
		}
		if err != nil {
			return fmt.Errorf("%s: %w", change.Op, err)
		}
		if n, err := res.RowsAffected(); err != nil {
			return fmt.Errorf("rows affected: %w", err)
		} else if n != 1 {
			return fmt.Errorf("entry %s: %w", change.Entry.ID, core.ErrEntryNotFound)
		}
		return nil
	})
	if err != nil {
		return err
	}
	a.Version = expectedVersion + 1

	slog.InfoContext(ctx, "Ledger entry change saved to SQLite",
		"account_id", a.ID,
		"entry_id", change.Entry.ID,
		"op", change.Op,
		"total", a.Total.String(),
		"version", a.Version)
	return nil
}

// DeleteAccount implements ports.AccountStore
func (r *SQLiteRepository) DeleteAccount(ctx context.Context, ownerID string, kind core.AccountKind, id string) error {
	return r.withTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx,
			`DELETE FROM ledger_accounts WHERE id = ? AND owner_id = ? AND kind = ?`,
			id, ownerID, string(kind))
		if err != nil {
			return fmt.Errorf("delete account: %w", err)
		}
		n, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("rows affected: %w", err)
		}
		if n == 0 {
			return fmt.Errorf("%s %s: %w", kind, id, core.ErrNotFound)
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM ledger_entries WHERE account_id = ?`, id); err != nil {
			return fmt.Errorf("delete entries: %w", err)
		}
		return nil
	})
}
