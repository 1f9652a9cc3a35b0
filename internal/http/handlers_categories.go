package http

import (
	"net/http"
)

func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.categories.List(r.Context(), ownerFrom(r.Context()))
	if err != nil {
		s.fail(w, r, categoryResource, err)
		return
	}
	if len(cats) == 0 {
		NotFoundError("No categories found").Write(w)
		return
	}
	views := make([]categoryView, 0, len(cats))
	for _, c := range cats {
		views = append(views, newCategoryView(c))
	}
	OK(views).Write(w)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, categoryResource, err)
		return
	}
	c, err := s.categories.Create(r.Context(), ownerFrom(r.Context()), req.input())
	if err != nil {
		s.fail(w, r, categoryResource, err)
		return
	}
	Created("Category added successfully").Data(createdView{ID: c.ID}).Write(w)
}

func (s *Server) handleUpdateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decodeJSON(w, r, &req); err != nil {
		s.fail(w, r, categoryResource, err)
		return
	}
	if _, err := s.categories.Update(r.Context(), ownerFrom(r.Context()), r.PathValue("id"), req.input()); err != nil {
		s.fail(w, r, categoryResource, err)
		return
	}
	OK(nil).Message("Category updated successfully").Write(w)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	if err := s.categories.Delete(r.Context(), ownerFrom(r.Context()), r.PathValue("id")); err != nil {
		s.fail(w, r, categoryResource, err)
		return
	}
	OK(nil).Message("Category deleted successfully").Write(w)
}
