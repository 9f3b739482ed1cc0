package api

import (
	"net/http"

	"github.com/Veraticus/spice-ledger/internal/model"
)

type categoryRequest struct {
	Name string             `json:"name"`
	Type model.CategoryType `json:"type"`
}

// handleListCategories returns the caller's categories, bootstrapping the
// income category when it is missing.
func (s *Server) handleListCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := s.categories.EnsureIncome(r.Context(), caller(r))
	if err != nil {
		writeError(w, r, err)
		return
	}
	if cats == nil {
		cats = []model.Category{}
	}
	writeJSON(w, r, http.StatusOK, cats)
}

func (s *Server) handleCreateCategory(w http.ResponseWriter, r *http.Request) {
	var req categoryRequest
	if err := decode(w, r, &req); err != nil {
		writeError(w, r, err)
		return
	}

	cat, err := s.categories.Create(r.Context(), caller(r), req.Name, req.Type)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, r, http.StatusCreated, cat)
}

func (s *Server) handleDeleteCategory(w http.ResponseWriter, r *http.Request) {
	id, err := pathID(r)
	if err != nil {
		writeError(w, r, err)
		return
	}
	if err := s.categories.Delete(r.Context(), caller(r), id); err != nil {
		writeError(w, r, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
