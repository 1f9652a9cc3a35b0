package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"fintrack/internal/core"
)

const transactionColumns = `id, owner_id, category_id, label, amount, kind, created_at, updated_at`

func scanTransaction(row rowScanner) (core.Transaction, error) {
	var (
		t                    core.Transaction
		amount, kind         string
		createdAt, updatedAt int64
	)
	if err := row.Scan(&t.ID, &t.OwnerID, &t.CategoryID, &t.Label, &amount, &kind, &createdAt, &updatedAt); err != nil {
		return core.Transaction{}, err
	}
	a, err := parseDecimal("transaction amount", amount)
	if err != nil {
		return core.Transaction{}, err
	}
	t.Amount = a
	t.Kind = core.TransactionKind(kind)
	t.CreatedAt = fromUnix(createdAt)
	t.UpdatedAt = fromUnix(updatedAt)
	return t, nil
}

// CreateTransaction implements ports.TransactionStore
func (r *SQLiteRepository) CreateTransaction(ctx context.Context, t core.Transaction) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		t.ID, t.OwnerID, t.CategoryID, t.Label, t.Amount.String(), string(t.Kind),
		toUnix(t.CreatedAt), toUnix(t.UpdatedAt))
	if err != nil {
		return fmt.Errorf("create transaction: %w", err)
	}

	slog.InfoContext(ctx, "Transaction saved to SQLite",
		"id", t.ID,
		"kind", t.Kind,
		"amount", t.Amount.String(),
		"category_id", t.CategoryID)
	return nil
}

// GetTransaction implements ports.TransactionStore
func (r *SQLiteRepository) GetTransaction(ctx context.Context, ownerID, id string) (core.Transaction, error) {
	t, err := scanTransaction(r.db.QueryRowContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Transaction{}, fmt.Errorf("transaction %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Transaction{}, fmt.Errorf("get transaction: %w", err)
	}
	return t, nil
}

// UpdateTransaction implements ports.TransactionStore
func (r *SQLiteRepository) UpdateTransaction(ctx context.Context, t core.Transaction) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE transactions SET category_id = ?, label = ?, amount = ?, kind = ?, updated_at = ?
		  WHERE id = ? AND owner_id = ?`,
		t.CategoryID, t.Label, t.Amount.String(), string(t.Kind), toUnix(t.UpdatedAt), t.ID, t.OwnerID)
	if err != nil {
		return fmt.Errorf("update transaction: %w", err)
	}
	return expectOneRow(res, "transaction", t.ID)
}

// DeleteTransaction implements ports.TransactionStore
func (r *SQLiteRepository) DeleteTransaction(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM transactions WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete transaction: %w", err)
	}
	return expectOneRow(res, "transaction", id)
}

// ListTransactions implements ports.TransactionStore
func (r *SQLiteRepository) ListTransactions(ctx context.Context, ownerID string, f core.TransactionFilter) ([]core.Transaction, error) {
	where := []string{"owner_id = ?"}
	args := []any{ownerID}
	if f.CategoryID != "" {
		where = append(where, "category_id = ?")
		args = append(args, f.CategoryID)
	}
	if f.Kind != "" {
		where = append(where, "kind = ?")
		args = append(args, string(f.Kind))
	}
	if !f.From.IsZero() {
		where = append(where, "created_at >= ?")
		args = append(args, toUnix(f.From))
	}
	if !f.To.IsZero() {
		where = append(where, "created_at <= ?")
		args = append(args, toUnix(f.To))
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT `+transactionColumns+` FROM transactions WHERE `+strings.Join(where, " AND ")+
			` ORDER BY created_at DESC, id DESC`, args...)
	if err != nil {
		return nil, fmt.Errorf("list transactions: %w", err)
	}
	defer rows.Close()

	txs := []core.Transaction{}
	for rows.Next() {
		t, err := scanTransaction(rows)
		if err != nil {
			return nil, fmt.Errorf("scan transaction: %w", err)
		}
		txs = append(txs, t)
	}
	return txs, rows.Err()
}

const categoryColumns = `id, owner_id, name, image_ref, created_at, updated_at`

func scanCategory(row rowScanner) (core.Category, error) {
	var (
		c                    core.Category
		createdAt, updatedAt int64
	)
	if err := row.Scan(&c.ID, &c.OwnerID, &c.Name, &c.ImageRef, &createdAt, &updatedAt); err != nil {
		return core.Category{}, err
	}
	c.CreatedAt = fromUnix(createdAt)
	c.UpdatedAt = fromUnix(updatedAt)
	return c, nil
}

// CreateCategory implements ports.CategoryStore
func (r *SQLiteRepository) CreateCategory(ctx context.Context, c core.Category) error {
	_, err := r.db.ExecContext(ctx,
		`INSERT INTO categories (`+categoryColumns+`) VALUES (?, ?, ?, ?, ?, ?)`,
		c.ID, c.OwnerID, c.Name, c.ImageRef, toUnix(c.CreatedAt), toUnix(c.UpdatedAt))
	if isUniqueViolation(err) {
		return fmt.Errorf("category %q: %w", c.Name, core.ErrDuplicateLabel)
	}
	if err != nil {
		return fmt.Errorf("create category: %w", err)
	}
	slog.InfoContext(ctx, "Category saved to SQLite", "id", c.ID, "name", c.Name)
	return nil
}

// GetCategory implements ports.CategoryStore
func (r *SQLiteRepository) GetCategory(ctx context.Context, ownerID, id string) (core.Category, error) {
	c, err := scanCategory(r.db.QueryRowContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE id = ? AND owner_id = ?`, id, ownerID))
	if errors.Is(err, sql.ErrNoRows) {
		return core.Category{}, fmt.Errorf("category %s: %w", id, core.ErrNotFound)
	}
	if err != nil {
		return core.Category{}, fmt.Errorf("get category: %w", err)
	}
	return c, nil
}

// ListCategories implements ports.CategoryStore
func (r *SQLiteRepository) ListCategories(ctx context.Context, ownerID string) ([]core.Category, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+categoryColumns+` FROM categories WHERE owner_id = ? ORDER BY created_at DESC, id DESC`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list categories: %w", err)
	}
	defer rows.Close()

	cats := []core.Category{}
	for rows.Next() {
		c, err := scanCategory(rows)
		if err != nil {
			return nil, fmt.Errorf("scan category: %w", err)
		}
		cats = append(cats, c)
	}
	return cats, rows.Err()
}

// UpdateCategory implements ports.CategoryStore
func (r *SQLiteRepository) UpdateCategory(ctx context.Context, c core.Category) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE categories SET name = ?, image_ref = ?, updated_at = ? WHERE id = ? AND owner_id = ?`,
		c.Name, c.ImageRef, toUnix(c.UpdatedAt), c.ID, c.OwnerID)
	if isUniqueViolation(err) {
		return fmt.Errorf("category %q: %w", c.Name, core.ErrDuplicateLabel)
	}
	if err != nil {
		return fmt.Errorf("update category: %w", err)
	}
	return expectOneRow(res, "category", c.ID)
}

// DeleteCategory implements ports.CategoryStore
func (r *SQLiteRepository) DeleteCategory(ctx context.Context, ownerID, id string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM categories WHERE id = ? AND owner_id = ?`, id, ownerID)
	if err != nil {
		return fmt.Errorf("delete category: %w", err)
	}
	return expectOneRow(res, "category", id)
}

// CategoryExists implements ports.CategoryStore
func (r *SQLiteRepository) CategoryExists(ctx context.Context, ownerID, id string) (bool, error) {
	found, err := exists(ctx, r.db,
		`SELECT EXISTS (SELECT 1 FROM categories WHERE id = ? AND owner_id = ?)`, id, ownerID)
	if err != nil {
		return false, fmt.Errorf("check category: %w", err)
	}
	return found, nil
}

// CategoryNameTaken implements ports.CategoryStore
func (r *SQLiteRepository) CategoryNameTaken(ctx context.Context, ownerID, name, excludeID string) (bool, error) {
	taken, err := exists(ctx, r.db,
		`SELECT EXISTS (SELECT 1 FROM categories WHERE owner_id = ? AND name = ? AND id <> ?)`,
		ownerID, name, excludeID)
	if err != nil {
		return false, fmt.Errorf("check category name: %w", err)
	}
	return taken, nil
}

func expectOneRow(res sql.Result, what, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", what, id, core.ErrNotFound)
	}
	return nil
}
