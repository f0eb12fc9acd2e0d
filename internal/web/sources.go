package web

import (
	"database/sql"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/conorfennell/memodeck/internal/storage"
	decksync "github.com/conorfennell/memodeck/internal/sync"
)

type sourceView struct {
	ID          int64      `json:"id"`
	Path        string     `json:"path"`
	Type        string     `json:"type"`
	LastScanned *time.Time `json:"lastScanned,omitempty"`
}

func newSourceView(src storage.Source) sourceView {
	v := sourceView{ID: src.ID, Path: src.Path, Type: src.Type}
	if src.LastScanned.Valid {
		t := src.LastScanned.Time
		v.LastScanned = &t
	}
	return v
}

func (s *Server) handleListSources(w http.ResponseWriter, r *http.Request) {
	sources, err := s.db.GetAllSources(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	views := make([]sourceView, 0, len(sources))
	for _, src := range sources {
		views = append(views, newSourceView(src))
	}
	writeJSON(w, http.StatusOK, views)
}

func (s *Server) handleAddSource(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Path string `json:"path"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	if req.Path == "" {
		writeError(w, http.StatusBadRequest, "path required")
		return
	}

	src, err := decksync.AddSource(r.Context(), s.db, req.Path)
	switch {
	case errors.Is(err, decksync.ErrSourceExists):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, decksync.ErrSourceNotFound):
		writeError(w, http.StatusBadRequest, err.Error())
	case err != nil:
		s.writeFailure(w, err)
	default:
		writeJSON(w, http.StatusCreated, newSourceView(*src))
	}
}

func (s *Server) handleDeleteSource(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil {
		writeError(w, http.StatusBadRequest, "invalid source id")
		return
	}
	if err := s.db.DeleteSource(r.Context(), id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			writeError(w, http.StatusNotFound, "source not found")
			return
		}
		s.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// handlePostSync runs a sync in the foreground so the caller sees its result.
func (s *Server) handlePostSync(w http.ResponseWriter, r *http.Request) {
	summary, err := decksync.RunSync(r.Context(), s.db, s.lib, s.reposDir)
	body := map[string]any{
		"sources":  summary.Sources,
		"parsed":   summary.Parsed,
		"imported": summary.Imported,
		"deleted":  summary.Deleted,
		"errors":   summary.Errors,
	}
	if err != nil {
		s.logger.Warn("sync finished with errors", "error", err)
		body["error"] = err.Error()
		writeJSON(w, http.StatusInternalServerError, body)
		return
	}
	writeJSON(w, http.StatusOK, body)
}
