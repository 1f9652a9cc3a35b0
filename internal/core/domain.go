package core

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/shopspring/decimal"
)

const (
	KindGoal AccountKind = "goal"
	KindDebt AccountKind = "debt"

	Income  TransactionKind = "income"
	Expense TransactionKind = "expense"
)

type (
	AccountKind     string
	TransactionKind string

	Category struct {
		ID        string
		OwnerID   string
		Name      string
		ImageRef  string
		CreatedAt time.Time
		UpdatedAt time.Time
	}

	Transaction struct {
		ID         string
		OwnerID    string
		CategoryID string
		Label      string
		Amount     decimal.Decimal // canonical currency
		Kind       TransactionKind
		CreatedAt  time.Time
		UpdatedAt  time.Time
	}

	// AccountInput is the caller-supplied shape for creating or updating a
	// goal or a debt. Amount is in Unit and still has to be normalized.
	AccountInput struct {
		Label    string
		Amount   decimal.Decimal
		Unit     string
		ImageRef string
	}

	// EntryInput carries a raw saved or paid amount.
	EntryInput struct {
		Amount decimal.Decimal
		Unit   string
	}

	TransactionInput struct {
		CategoryID string
		Label      string
		Amount     decimal.Decimal
		Unit       string
		Kind       TransactionKind
	}

	CategoryInput struct {
		Name     string
		ImageRef string
	}
)

func (k AccountKind) Valid() bool {
	return k == KindGoal || k == KindDebt
}

// LabelField is the wire name of the label for this kind of account.
func (k AccountKind) LabelField() string {
	if k == KindDebt {
		return "forWhom"
	}
	return "title"
}

func (k TransactionKind) Valid() bool {
	return k == Income || k == Expense
}

// ParseTransactionKind accepts "income" or "expense" in any case.
func ParseTransactionKind(s string) (TransactionKind, error) {
	k := TransactionKind(strings.ToLower(strings.TrimSpace(s)))
	if !k.Valid() {
		return "", fmt.Errorf("transaction type %q: %w", s, ErrValidation)
	}
	return k, nil
}

func validateRawAmount(v *ValidationError, amount decimal.Decimal, unit string) {
	if amount.LessThan(MinInputAmount) {
		v.Add("amount", "Amount must be greater than 0")
	}
	if NormalizeUnit(unit) == "" {
		v.Add("unit", "Unit is required")
	}
}

func validateLength(v *ValidationError, path, label, value string, min, max int) {
	n := utf8.RuneCountInString(strings.TrimSpace(value))
	switch {
	case n == 0:
		v.Add(path, label+" is required")
	case n < min:
		v.Add(path, fmt.Sprintf("%s must be at least %d characters", label, min))
	case max > 0 && n > max:
		v.Add(path, fmt.Sprintf("%s must be less than %d characters", label, max))
	}
}

// Validate checks the input shape for an account of the given kind.
func (in AccountInput) Validate(kind AccountKind) error {
	v := &ValidationError{}
	switch kind {
	case KindGoal:
		validateLength(v, "title", "Title", in.Label, 3, 50)
	case KindDebt:
		validateLength(v, "forWhom", "For whom", in.Label, 3, 0)
	default:
		v.Add("kind", fmt.Sprintf("unknown account kind %q", kind))
	}
	validateRawAmount(v, in.Amount, in.Unit)
	return v.OrNil()
}

func (in EntryInput) Validate() error {
	v := &ValidationError{}
	validateRawAmount(v, in.Amount, in.Unit)
	return v.OrNil()
}

func (in TransactionInput) Validate() error {
	v := &ValidationError{}
	validateLength(v, "title", "Title", in.Label, 3, 50)
	validateRawAmount(v, in.Amount, in.Unit)
	if !in.Kind.Valid() {
		v.Add("type", "Type must be either income or expense")
	}
	if strings.TrimSpace(in.CategoryID) == "" {
		v.Add("categoryId", "Category is required")
	}
	return v.OrNil()
}

func (in CategoryInput) Validate() error {
	v := &ValidationError{}
	validateLength(v, "name", "Name", in.Name, 3, 20)
	return v.OrNil()
}
