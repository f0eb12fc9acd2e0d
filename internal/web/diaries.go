package web

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/conorfennell/memodeck/internal/domain"
)

func (s *Server) handleListDiaries(w http.ResponseWriter, r *http.Request) {
	list, err := s.db.Diaries(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, list)
}

func (s *Server) handleAddDiary(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Text   string   `json:"text"`
		Images []string `json:"images"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	entry, err := domain.NewDiaryEntry(req.Text, req.Images, s.now())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if err := s.db.AddDiary(r.Context(), entry); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, entry)
}

func (s *Server) handleDeleteDiary(w http.ResponseWriter, r *http.Request) {
	if err := s.db.DeleteDiary(r.Context(), chi.URLParam(r, "id")); err != nil {
		s.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
