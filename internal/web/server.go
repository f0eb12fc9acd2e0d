package web

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-playground/validator/v10"

	"github.com/conorfennell/memodeck/internal/domain"
	"github.com/conorfennell/memodeck/internal/library"
	"github.com/conorfennell/memodeck/internal/remote"
	"github.com/conorfennell/memodeck/internal/review"
	"github.com/conorfennell/memodeck/internal/storage"
)

// Server holds the dependencies for the HTTP server.
type Server struct {
	db       *storage.DB
	lib      *library.Library
	router   chi.Router
	reposDir string
	started  time.Time
	logger   *slog.Logger

	engineOpts []review.Option
	sessionTTL time.Duration
	now        func() time.Time

	mu       sync.Mutex
	sessions map[string]*session
	done     chan struct{}
	closing  sync.Once
}

// Option configures a Server.
type Option func(*Server)

// WithReposDir sets where POST /api/sync clones git sources.
func WithReposDir(dir string) Option {
	return func(s *Server) { s.reposDir = dir }
}

// WithEngineOptions passes options to every review session the server
// starts.
func WithEngineOptions(opts ...review.Option) Option {
	return func(s *Server) { s.engineOpts = append(s.engineOpts, opts...) }
}

// WithSessionTTL closes review sessions left idle for longer than d. Zero
// keeps sessions until they are deleted or end on their own.
func WithSessionTTL(d time.Duration) Option {
	return func(s *Server) { s.sessionTTL = d }
}

// WithLogger sets the request and session logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Server) { s.logger = l }
}

// NewServer creates and configures a new server.
func NewServer(db *storage.DB, lib *library.Library, opts ...Option) *Server {
	s := &Server{
		db:         db,
		lib:        lib,
		reposDir:   "repos",
		started:    time.Now(),
		logger:     slog.Default(),
		sessionTTL: DefaultSessionTTL,
		now:        time.Now,
		sessions:   make(map[string]*session),
		done:       make(chan struct{}),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.routes()
	if s.sessionTTL > 0 {
		go s.reapLoop(reapInterval(s.sessionTTL))
	}
	return s
}

// ServeHTTP implements the http.Handler interface.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops the idle reaper and ends every open review session.
func (s *Server) Close() {
	s.closing.Do(func() { close(s.done) })

	s.mu.Lock()
	sessions := s.sessions
	s.sessions = make(map[string]*session)
	s.mu.Unlock()

	for _, sess := range sessions {
		sess.engine.Close()
	}
}

func (s *Server) routes() {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RealIP)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)

		r.Get("/decks", s.handleListDecks)
		r.Post("/decks", s.handleUploadDeck)
		r.Delete("/decks/{name}", s.handleDeleteDeck)
		r.Get("/decks/{name}/pools", s.handleGetPools)

		r.Get("/preferences", s.handleGetPreferences)
		r.Put("/preferences", s.handlePutPreferences)

		r.Get("/sources", s.handleListSources)
		r.Post("/sources", s.handleAddSource)
		r.Delete("/sources/{id}", s.handleDeleteSource)
		r.Post("/sync", s.handlePostSync)

		r.Get("/diaries", s.handleListDiaries)
		r.Post("/diaries", s.handleAddDiary)
		r.Delete("/diaries/{id}", s.handleDeleteDiary)

		r.Post("/sessions", s.handleCreateSession)
		r.Route("/sessions/{id}", func(r chi.Router) {
			r.Get("/", s.handleGetSession)
			r.Delete("/", s.handleDeleteSession)
			r.Post("/advance", s.handleAdvance)
			r.Post("/mark", s.handleMark)
			r.Post("/pause", s.handlePause)
			r.Put("/tab", s.handleSetTab)
			r.Put("/policy", s.handleSetPolicy)
			r.Put("/interval", s.handleSetInterval)
		})
	})

	s.router = r
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	dbOK := s.db.Ping(r.Context()) == nil

	s.mu.Lock()
	open := len(s.sessions)
	s.mu.Unlock()

	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"uptime":   time.Since(s.started).Seconds(),
		"db":       dbOK,
		"db_path":  s.db.Path,
		"sessions": open,
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}

// writeFailure maps an operation error to its HTTP status.
func (s *Server) writeFailure(w http.ResponseWriter, err error) {
	var empty *review.EmptyPoolError
	var verrs validator.ValidationErrors
	switch {
	case errors.As(err, &empty):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error(), "tab": string(empty.Tab)})
	case errors.As(err, &verrs),
		errors.Is(err, review.ErrInvalidInterval),
		errors.Is(err, review.ErrInvalidDeck),
		errors.Is(err, library.ErrNotSpreadsheet),
		errors.Is(err, library.ErrEmptyDeck),
		errors.Is(err, domain.ErrEmptyDiary):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, library.ErrDuplicateDeck),
		errors.Is(err, review.ErrClosed),
		errors.Is(err, review.ErrNoCurrentRow):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, storage.ErrDeckNotFound),
		errors.Is(err, storage.ErrDiaryNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, remote.ErrParseFailed):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		s.logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return false
	}
	return true
}
