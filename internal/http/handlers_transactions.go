package http

import (
	"net/http"
	"strings"

	"fintrack/internal/core"
)

func (s *Server) handleListTransactions(w http.ResponseWriter, r *http.Request) {
	q, err := parseTransactionQuery(r.URL.Query(), s.loc)
	if err != nil {
		s.fail(w, r, transactionResource, err)
		return
	}
	txs, err := s.transactions.QueryDetailed(r.Context(), ownerFrom(r.Context()), q)
	if err != nil {
		s.fail(w, r, transactionResource, err)
		return
	}
	if len(txs) == 0 {
		NotFoundError("No transactions found").Write(w)
		return
	}
	views := make([]transactionView, 0, len(txs))
	for _, t := range txs {
		views = append(views, newTransactionDetailView(t))
	}
	OK(views).Write(w)
}

func (s *Server) handleCreateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, transactionResource, err)
		return
	}
	t, err := s.transactions.Create(r.Context(), ownerFrom(r.Context()), req.input())
	if err != nil {
		s.fail(w, r, transactionResource, err)
		return
	}
	Created("Transaction added successfully").Data(createdView{ID: t.ID}).Write(w)
}

func (s *Server) handleUpdateTransaction(w http.ResponseWriter, r *http.Request) {
	var req transactionRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, transactionResource, err)
		return
	}
	if _, err := s.transactions.Update(r.Context(), ownerFrom(r.Context()), r.PathValue("id"), req.input()); err != nil {
		s.fail(w, r, transactionResource, err)
		return
	}
	OK(nil).Message("Transaction updated successfully").Write(w)
}

func (s *Server) handleDeleteTransaction(w http.ResponseWriter, r *http.Request) {
	if err := s.transactions.Delete(r.Context(), ownerFrom(r.Context()), r.PathValue("id")); err != nil {
		s.fail(w, r, transactionResource, err)
		return
	}
	OK(nil).Message("Transaction deleted successfully").Write(w)
}

func (s *Server) handleMonthlyStats(w http.ResponseWriter, r *http.Request) {
	year, err := parseYear(r.URL.Query(), s.now().In(s.loc))
	if err != nil {
		s.fail(w, r, transactionResource, err)
		return
	}
	stats, err := s.transactions.MonthlyStats(r.Context(), ownerFrom(r.Context()), year)
	if err != nil {
		s.fail(w, r, transactionResource, err)
		return
	}
	OK(stats).Write(w)
}

func (s *Server) handleCategoryStats(w http.ResponseWriter, r *http.Request) {
	var kind core.TransactionKind
	if v := strings.TrimSpace(r.URL.Query().Get("type")); v != "" {
		k, err := core.ParseTransactionKind(v)
		if err != nil {
			s.fail(w, r, transactionResource, err)
			return
		}
		kind = k
	}
	stats, err := s.transactions.CategoryStats(r.Context(), ownerFrom(r.Context()), kind)
	if err != nil {
		s.fail(w, r, transactionResource, err)
		return
	}
	views := make([]categoryStatView, 0, len(stats))
	for _, st := range stats {
		views = append(views, categoryStatView{
			Category:     st.Name,
			TotalIncome:  core.FormatAmount(st.TotalIncome),
			TotalExpense: core.FormatAmount(st.TotalExpense),
		})
	}
	OK(views).Write(w)
}
