package web

import (
	"io"
	"net/http"
	"net/url"

	"github.com/go-chi/chi/v5"

	"github.com/conorfennell/memodeck/internal/domain"
)

const maxUploadBytes = 32 << 20

// deckName reads the {name} parameter. Names containing a slash arrive
// percent-encoded.
func deckName(r *http.Request) (string, bool) {
	name, err := url.PathUnescape(chi.URLParam(r, "name"))
	if err != nil || name == "" {
		return "", false
	}
	return name, true
}

func (s *Server) handleListDecks(w http.ResponseWriter, r *http.Request) {
	decks, err := s.lib.List(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if decks == nil {
		decks = []domain.DeckInfo{}
	}
	writeJSON(w, http.StatusOK, decks)
}

func (s *Server) handleUploadDeck(w http.ResponseWriter, r *http.Request) {
	r.Body = http.MaxBytesReader(w, r.Body, maxUploadBytes)
	if err := r.ParseMultipartForm(maxUploadBytes); err != nil {
		writeError(w, http.StatusBadRequest, "invalid multipart form")
		return
	}
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, "file required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "read file failed")
		return
	}

	info, err := s.lib.Upload(r.Context(), header.Filename, data)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, info)
}

func (s *Server) handleDeleteDeck(w http.ResponseWriter, r *http.Request) {
	name, ok := deckName(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "deck name required")
		return
	}
	if err := s.lib.Delete(r.Context(), name); err != nil {
		s.writeFailure(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleGetPools(w http.ResponseWriter, r *http.Request) {
	name, ok := deckName(r)
	if !ok {
		writeError(w, http.StatusBadRequest, "deck name required")
		return
	}
	pools, err := s.db.Pools(r.Context(), name)
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]domain.Collection{
		"remaining":  {Data: nonNil(pools.Remaining)},
		"remembered": {Data: nonNil(pools.Remembered)},
	})
}

func nonNil(rows []domain.Row) []domain.Row {
	if rows == nil {
		return []domain.Row{}
	}
	return rows
}

type preferencesRequest struct {
	TimerInterval *int    `json:"timerInterval"`
	PlayMode      *string `json:"playMode"`
	FontSize      *int    `json:"fontSize"`
}

func (s *Server) handleGetPreferences(w http.ResponseWriter, r *http.Request) {
	prefs, err := s.db.Preferences(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}

// handlePutPreferences applies the fields present in the body. Open
// sessions keep their own policy and interval until they are reloaded.
func (s *Server) handlePutPreferences(w http.ResponseWriter, r *http.Request) {
	var req preferencesRequest
	if !decodeBody(w, r, &req) {
		return
	}

	prefs, err := s.db.Preferences(r.Context())
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	if req.TimerInterval != nil {
		prefs.IntervalSeconds = *req.TimerInterval
	}
	if req.PlayMode != nil {
		policy, err := domain.ParsePolicy(*req.PlayMode)
		if err != nil {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		prefs.Policy = policy
	}
	if req.FontSize != nil {
		prefs.FontSize = *req.FontSize
	}

	if err := s.db.SavePreferences(r.Context(), prefs); err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, prefs)
}
