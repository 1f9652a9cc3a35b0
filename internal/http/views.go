package http

import (
	"time"

	"fintrack/internal/core"
	"fintrack/internal/services"
)

type accountView struct {
	ID        string    `json:"id"`
	Title     string    `json:"title,omitempty"`
	ForWhom   string    `json:"forWhom,omitempty"`
	Amount    string    `json:"amount"`
	Total     string    `json:"total"`
	Remaining string    `json:"remaining"`
	Image     string    `json:"image,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

func newAccountView(a *core.LedgerAccount) accountView {
	v := accountView{
		ID:        a.ID,
		Amount:    core.FormatAmount(a.Target),
		Total:     core.FormatAmount(a.Total),
		Remaining: core.FormatAmount(a.Remaining()),
		Image:     a.ImageRef,
		CreatedAt: a.CreatedAt,
		UpdatedAt: a.UpdatedAt,
	}
	if a.Kind == core.KindDebt {
		v.ForWhom = a.Label
	} else {
		v.Title = a.Label
	}
	return v
}

type entryView struct {
	ID     string    `json:"id"`
	Amount string    `json:"amount"`
	Date   time.Time `json:"date"`
}

func newEntryViews(entries []core.Entry) []entryView {
	views := make([]entryView, 0, len(entries))
	for _, e := range entries {
		views = append(views, entryView{ID: e.ID, Amount: core.FormatAmount(e.Amount), Date: e.OccurredAt})
	}
	return views
}

type transactionView struct {
	ID         string        `json:"id"`
	Title      string        `json:"title"`
	Amount     string        `json:"amount"`
	Type       string        `json:"type"`
	CategoryID string        `json:"categoryId"`
	Category   *categoryView `json:"category"`
	CreatedAt  time.Time     `json:"createdAt"`
	UpdatedAt  time.Time     `json:"updatedAt"`
}

// newTransactionDetailView embeds the category; a deleted one renders as null.
func newTransactionDetailView(d services.TransactionDetail) transactionView {
	v := newTransactionView(d.Transaction)
	if d.Category != nil {
		c := newCategoryView(*d.Category)
		v.Category = &c
	}
	return v
}

func newTransactionView(t core.Transaction) transactionView {
	return transactionView{
		ID:         t.ID,
		Title:      t.Label,
		Amount:     core.FormatAmount(t.Amount),
		Type:       string(t.Kind),
		CategoryID: t.CategoryID,
		CreatedAt:  t.CreatedAt,
		UpdatedAt:  t.UpdatedAt,
	}
}

type categoryView struct {
	ID    string `json:"id"`
	Name  string `json:"name"`
	Image string `json:"image,omitempty"`
}

func newCategoryView(c core.Category) categoryView {
	return categoryView{ID: c.ID, Name: c.Name, Image: c.ImageRef}
}

type categoryStatView struct {
	Category     *string `json:"category"`
	TotalIncome  string  `json:"totalIncome"`
	TotalExpense string  `json:"totalExpense"`
}

type createdView struct {
	ID string `json:"id"`
}
