package http

import (
	"net/http"
	"strings"

	"fintrack/internal/core"
	applog "fintrack/internal/log"
)

// registerAccountRoutes mounts the CRUD and entry routes for one account
// kind. entrySegment is "saved-amount" for goals and "paid" for debts.
func (s *Server) registerAccountRoutes(mux *http.ServeMux, base, entrySegment string, kind core.AccountKind) {
	entries := base + "/" + entrySegment + "/{id}"

	mux.Handle("GET "+base, s.requireOwner(s.handleListAccounts(kind)))
	mux.Handle("POST "+base, s.requireOwner(s.handleCreateAccount(kind)))
	mux.Handle("GET "+base+"/{id}", s.requireOwner(s.handleGetAccount(kind)))
	mux.Handle("PUT "+base+"/{id}", s.requireOwner(s.handleUpdateAccount(kind)))
	mux.Handle("DELETE "+base+"/{id}", s.requireOwner(s.handleDeleteAccount(kind)))

	mux.Handle("GET "+entries, s.requireOwner(s.handleListEntries(kind)))
	mux.Handle("POST "+entries, s.requireOwner(s.handleAddEntry(kind)))
	mux.Handle("PUT "+entries+"/{entryId}", s.requireOwner(s.handleUpdateEntry(kind)))
	mux.Handle("DELETE "+entries+"/{entryId}", s.requireOwner(s.handleDeleteEntry(kind)))
}

func plural(res resource) string {
	return strings.ToLower(res.name) + "s"
}

func (s *Server) handleListAccounts(kind core.AccountKind) http.HandlerFunc {
	res := resourceFor(kind)
	return func(w http.ResponseWriter, r *http.Request) {
		accounts, err := s.ledger.ListAccounts(r.Context(), ownerFrom(r.Context()), kind)
		if err != nil {
			s.fail(w, r, res, err)
			return
		}
		if len(accounts) == 0 {
			NotFoundError("No " + plural(res) + " found").Write(w)
			return
		}
		views := make([]accountView, 0, len(accounts))
		for _, a := range accounts {
			views = append(views, newAccountView(a))
		}
		OK(views).Write(w)
	}
}

func (s *Server) handleGetAccount(kind core.AccountKind) http.HandlerFunc {
	res := resourceFor(kind)
	return func(w http.ResponseWriter, r *http.Request) {
		a, err := s.ledger.GetAccount(r.Context(), ownerFrom(r.Context()), kind, r.PathValue("id"))
		if err != nil {
			s.fail(w, r, res, err)
			return
		}
		OK(newAccountView(a)).Write(w)
	}
}

func (s *Server) handleCreateAccount(kind core.AccountKind) http.HandlerFunc {
	res := resourceFor(kind)
	return func(w http.ResponseWriter, r *http.Request) {
		var req accountRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.fail(w, r, res, err)
			return
		}
		owner := ownerFrom(r.Context())
		a, err := s.ledger.CreateAccount(r.Context(), owner, kind, req.input(kind))
		if err != nil {
			s.fail(w, r, res, err)
			return
		}
		s.mutations.LogLedgerMutation(r.Context(), applog.OpCreate, owner, string(kind), a.ID, "", core.FormatAmount(a.Total))
		Created(res.name + " added successfully").Data(createdView{ID: a.ID}).Write(w)
	}
}

func (s *Server) handleUpdateAccount(kind core.AccountKind) http.HandlerFunc {
	res := resourceFor(kind)
	return func(w http.ResponseWriter, r *http.Request) {
		var req accountRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.fail(w, r, res, err)
			return
		}
		owner := ownerFrom(r.Context())
		a, err := s.ledger.UpdateAccount(r.Context(), owner, kind, r.PathValue("id"), req.input(kind))
		if err != nil {
			s.fail(w, r, res, err)
			return
		}
		s.mutations.LogLedgerMutation(r.Context(), applog.OpUpdate, owner, string(kind), a.ID, "", core.FormatAmount(a.Total))
		OK(nil).Message(res.name + " updated successfully").Write(w)
	}
}

func (s *Server) handleDeleteAccount(kind core.AccountKind) http.HandlerFunc {
	res := resourceFor(kind)
	return func(w http.ResponseWriter, r *http.Request) {
		owner, id := ownerFrom(r.Context()), r.PathValue("id")
		if err := s.ledger.DeleteAccount(r.Context(), owner, kind, id); err != nil {
			s.fail(w, r, res, err)
			return
		}
		s.mutations.LogLedgerMutation(r.Context(), applog.OpDelete, owner, string(kind), id, "", "")
		OK(nil).Message(res.name + " deleted successfully").Write(w)
	}
}

func (s *Server) handleListEntries(kind core.AccountKind) http.HandlerFunc {
	res := resourceFor(kind)
	return func(w http.ResponseWriter, r *http.Request) {
		entries, err := s.ledger.ListEntries(r.Context(), ownerFrom(r.Context()), kind, r.PathValue("id"))
		if err != nil {
			s.fail(w, r, res, err)
			return
		}
		OK(newEntryViews(entries)).Message(res.entry + "s retrieved successfully").Write(w)
	}
}

func (s *Server) handleAddEntry(kind core.AccountKind) http.HandlerFunc {
	res := resourceFor(kind)
	return func(w http.ResponseWriter, r *http.Request) {
		var req entryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.fail(w, r, res, err)
			return
		}
		owner := ownerFrom(r.Context())
		a, entry, err := s.ledger.AddEntry(r.Context(), owner, kind, r.PathValue("id"), req.input())
		if err != nil {
			s.fail(w, r, res, err)
			return
		}
		s.mutations.LogLedgerMutation(r.Context(), applog.OpAddEntry, owner, string(kind), a.ID, entry.ID, core.FormatAmount(a.Total))
		Created(res.entry + " added successfully").Data(createdView{ID: entry.ID}).Write(w)
	}
}

func (s *Server) handleUpdateEntry(kind core.AccountKind) http.HandlerFunc {
	res := resourceFor(kind)
	return func(w http.ResponseWriter, r *http.Request) {
		var req entryRequest
		if err := decodeJSON(w, r, &req); err != nil {
			s.fail(w, r, res, err)
			return
		}
		owner, entryID := ownerFrom(r.Context()), r.PathValue("entryId")
		a, err := s.ledger.UpdateEntry(r.Context(), owner, kind, r.PathValue("id"), entryID, req.input())
		if err != nil {
			s.fail(w, r, res, err)
			return
		}
		s.mutations.LogLedgerMutation(r.Context(), applog.OpUpdateEntry, owner, string(kind), a.ID, entryID, core.FormatAmount(a.Total))
		OK(nil).Message(res.entry + " updated successfully").Write(w)
	}
}

func (s *Server) handleDeleteEntry(kind core.AccountKind) http.HandlerFunc {
	res := resourceFor(kind)
	return func(w http.ResponseWriter, r *http.Request) {
		owner, entryID := ownerFrom(r.Context()), r.PathValue("entryId")
		a, err := s.ledger.DeleteEntry(r.Context(), owner, kind, r.PathValue("id"), entryID)
		if err != nil {
			s.fail(w, r, res, err)
			return
		}
		s.mutations.LogLedgerMutation(r.Context(), applog.OpDeleteEntry, owner, string(kind), a.ID, entryID, core.FormatAmount(a.Total))
		OK(nil).Message(res.entry + " deleted successfully").Write(w)
	}
}
