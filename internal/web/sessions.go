package web

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"

	"github.com/conorfennell/memodeck/internal/domain"
	"github.com/conorfennell/memodeck/internal/review"
)

// DefaultSessionTTL is how long a review session may sit idle before the
// server closes it.
const DefaultSessionTTL = 30 * time.Minute

// session is an open review engine and the last time a request used it.
type session struct {
	engine   *review.Engine
	lastSeen time.Time
}

type sessionView struct {
	ID         string      `json:"id"`
	Deck       string      `json:"deck"`
	State      string      `json:"state"`
	Tab        domain.Tab  `json:"tab"`
	PlayMode   string      `json:"playMode"`
	Interval   int         `json:"timerInterval"`
	Countdown  int         `json:"countdown"`
	Paused     bool        `json:"paused"`
	Current    *domain.Row `json:"current"`
	Remaining  int         `json:"remaining"`
	Remembered int         `json:"remembered"`
}

func newSessionView(id string, snap review.Snapshot) sessionView {
	return sessionView{
		ID:         id,
		Deck:       snap.Deck,
		State:      snap.State.String(),
		Tab:        snap.Tab,
		PlayMode:   snap.Policy.PlayMode(),
		Interval:   snap.IntervalSeconds,
		Countdown:  snap.Countdown,
		Paused:     snap.Paused(),
		Current:    snap.Current,
		Remaining:  snap.Remaining,
		Remembered: snap.Remembered,
	}
}

// session looks up the {id} session, writing a 404 when it is unknown.
func (s *Server) session(w http.ResponseWriter, r *http.Request) (string, *review.Engine, bool) {
	id := chi.URLParam(r, "id")
	s.mu.Lock()
	sess, ok := s.sessions[id]
	if ok {
		sess.lastSeen = s.now()
	}
	s.mu.Unlock()
	if !ok {
		writeError(w, http.StatusNotFound, "session not found")
		return "", nil, false
	}
	return id, sess.engine, true
}

// forget drops the entry for id when it still refers to e. Engines that
// close themselves, through an ending empty pool or otherwise, leave the
// registry this way.
func (s *Server) forget(id string, e *review.Engine) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if sess, ok := s.sessions[id]; ok && sess.engine == e {
		delete(s.sessions, id)
		s.logger.Info("review session ended", "id", id)
	}
}

// reapIdle closes every session not used since now minus the TTL.
func (s *Server) reapIdle(now time.Time) int {
	cutoff := now.Add(-s.sessionTTL)
	var idle []*review.Engine
	s.mu.Lock()
	for id, sess := range s.sessions {
		if sess.lastSeen.Before(cutoff) {
			delete(s.sessions, id)
			idle = append(idle, sess.engine)
			s.logger.Info("closing idle review session", "id", id, "idle", now.Sub(sess.lastSeen))
		}
	}
	s.mu.Unlock()

	for _, e := range idle {
		e.Close()
	}
	return len(idle)
}

func (s *Server) reapLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-s.done:
			return
		case <-ticker.C:
			s.reapIdle(s.now())
		}
	}
}

func reapInterval(ttl time.Duration) time.Duration {
	return min(max(ttl/4, time.Second), time.Minute)
}

func (s *Server) handleCreateSession(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Deck string `json:"deck"`
	}
	if !decodeBody(w, r, &req) {
		return
	}

	id := uuid.NewString()
	var e *review.Engine
	opts := append([]review.Option{
		review.WithLogger(s.logger),
		review.WithObserver(s.lib.Observe),
		review.WithObserver(func(ev review.Event) {
			if ev.Kind == review.EventClosed {
				s.forget(id, e)
			}
		}),
	}, s.engineOpts...)
	e = review.New(s.db, s.db, opts...)

	// An empty deck still opens a session; the caller sees no current row.
	if err := e.Load(r.Context(), req.Deck); err != nil && !errors.Is(err, review.ErrEmptyPool) {
		e.Close()
		s.writeFailure(w, err)
		return
	}

	s.mu.Lock()
	s.sessions[id] = &session{engine: e, lastSeen: s.now()}
	s.mu.Unlock()
	s.logger.Info("review session started", "id", id, "deck", req.Deck)

	writeJSON(w, http.StatusCreated, newSessionView(id, e.Snapshot()))
}

func (s *Server) handleGetSession(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.session(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(id, e.Snapshot()))
}

func (s *Server) handleDeleteSession(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.session(w, r)
	if !ok {
		return
	}
	e.Close()
	s.forget(id, e)
	w.WriteHeader(http.StatusNoContent)
}

// respond writes the session state after a gesture, or the gesture's error.
func (s *Server) respond(w http.ResponseWriter, id string, e *review.Engine, err error) {
	if err != nil {
		s.writeFailure(w, err)
		return
	}
	writeJSON(w, http.StatusOK, newSessionView(id, e.Snapshot()))
}

func (s *Server) handleAdvance(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.session(w, r)
	if !ok {
		return
	}
	s.respond(w, id, e, e.Advance(r.Context()))
}

func (s *Server) handleMark(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.session(w, r)
	if !ok {
		return
	}
	s.respond(w, id, e, e.Mark(r.Context()))
}

func (s *Server) handlePause(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.session(w, r)
	if !ok {
		return
	}
	_, err := e.TogglePause()
	s.respond(w, id, e, err)
}

func (s *Server) handleSetTab(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Tab string `json:"tab"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	tab, err := domain.ParseTab(req.Tab)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respond(w, id, e, e.SwitchTab(r.Context(), tab))
}

func (s *Server) handleSetPolicy(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		PlayMode string `json:"playMode"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	policy, err := domain.ParsePolicy(req.PlayMode)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	s.respond(w, id, e, e.SetPolicy(r.Context(), policy))
}

func (s *Server) handleSetInterval(w http.ResponseWriter, r *http.Request) {
	id, e, ok := s.session(w, r)
	if !ok {
		return
	}
	var req struct {
		Seconds int `json:"timerInterval"`
	}
	if !decodeBody(w, r, &req) {
		return
	}
	s.respond(w, id, e, e.SetInterval(r.Context(), req.Seconds))
}
