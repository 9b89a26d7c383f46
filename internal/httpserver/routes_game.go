// internal/httpserver/routes_game.go
//
// HTTP routes for playing Simon.
//   - POST   /game/new    → create a session, return its token
//   - POST   /game/start  → start a game (409 while one is active)
//   - POST   /game/reset  → stop everything, back to idle
//   - POST   /game/strict → set strict mode
//   - POST   /game/input  → submit one signal
//   - GET    /game/state  → current snapshot
//   - DELETE /game        → end the session
//   - GET    /game/ws     → websocket stream (mounted in server.go)
//
// The same operations are reachable from websocket clients through the hub
// handler installed by handleNewGame.

package httpserver

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/itxchy/simon/internal/board"
	"github.com/itxchy/simon/internal/daily"
	"github.com/itxchy/simon/internal/hub"
	"github.com/itxchy/simon/internal/palette"
	"github.com/itxchy/simon/internal/simon"
	"github.com/itxchy/simon/internal/store"
)

var errUnknownSignal = errors.New("unknown signal")

// mountGame registers all /game routes except the websocket.
func (s *Server) mountGame(r chi.Router) {
	r.Post("/game/new", s.handleNewGame)
	r.Group(func(r chi.Router) {
		r.Use(s.requireSession())
		r.Post("/game/start", s.handleStart)
		r.Post("/game/reset", s.handleReset)
		r.Post("/game/strict", s.handleStrict)
		r.Post("/game/input", s.handleInput)
		r.Get("/game/state", s.handleState)
		r.Delete("/game", s.handleEnd)
	})
}

// -----------------------------------------------------------------------------
// /game/new

type newGameReq struct {
	Strict bool `json:"strict"`
	Daily  bool `json:"daily"` // draw today's shared sequence
}

type newGameRes struct {
	SessionID string         `json:"sessionId"`
	Token     string         `json:"token"`
	ExpiresAt int64          `json:"expiresAt"`
	Daily     string         `json:"daily,omitempty"`
	MaxLength int            `json:"maxLength"`
	Signals   []palette.Spec `json:"signals"`
}

// handleNewGame creates a session: hub, board publisher and an idle engine.
func (s *Server) handleNewGame(w http.ResponseWriter, r *http.Request) {
	var req newGameReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && !errors.Is(err, io.EOF) {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}

	sess, err := s.newSession(req)
	if err != nil {
		s.log.Error().Err(err).Msg("create session")
		writeError(w, http.StatusInternalServerError, "create_failed")
		return
	}
	if err := s.store.Save(r.Context(), sess); err != nil {
		sess.Hub.Close()
		s.log.Error().Err(err).Msg("save session")
		writeError(w, http.StatusInternalServerError, "save_failed")
		return
	}
	tok, exp, err := s.sign(sess.ID)
	if err != nil {
		_ = s.store.Delete(r.Context(), sess.ID)
		s.log.Error().Err(err).Str("session", sess.ID).Msg("sign session")
		writeError(w, http.StatusInternalServerError, "sign_failed")
		return
	}
	s.log.Info().Str("session", sess.ID).Bool("strict", req.Strict).Str("daily", sess.Daily).Msg("session created")

	writeJSON(w, http.StatusCreated, newGameRes{
		SessionID: sess.ID,
		Token:     tok,
		ExpiresAt: exp.Unix(),
		Daily:     sess.Daily,
		MaxLength: s.opts.Engine.MaxLength,
		Signals:   s.pal.Specs(),
	})
}

// newSession wires hub, board and engine for one player. The board both
// publishes to the hub and logs each command at debug level.
func (s *Server) newSession(req newGameReq) (*store.Session, error) {
	id := store.NewID()
	lg := s.log.With().Str("session", id).Logger()
	h := hub.New(lg.With().Str("component", "hub").Logger(), s.opts.ClientOrigin)

	opts := []simon.Option{
		simon.WithScheduler(s.opts.Scheduler),
		simon.WithLogger(lg.With().Str("component", "engine").Logger()),
		simon.WithObserver(func(e simon.Event) { h.Publish(e) }),
		simon.WithStrict(req.Strict),
		simon.WithClock(s.opts.Now),
	}
	sess := &store.Session{ID: id, Hub: h, CreatedAt: s.opts.Now()}
	if req.Daily {
		now := s.opts.Now()
		sess.Daily = daily.DateKey(now)
		opts = append(opts, simon.WithPicker(daily.NewPicker(now, s.opts.DailySalt)))
	}

	signals := s.pal.Signals()
	b := board.Fanout{
		board.NewPublisher(h, signals...),
		board.NewLogger(lg.With().Str("component", "board").Logger(), signals...),
	}
	eng, err := simon.New(b, s.opts.Engine, opts...)
	if err != nil {
		return nil, err
	}
	sess.Engine = eng
	h.SetHandler(func(in hub.Inbound) { s.handleInbound(sess, in) })
	go h.Run(s.ctx)
	return sess, nil
}

// -----------------------------------------------------------------------------
// session routes

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := sess.Engine.StartGame(); err != nil {
		if errors.Is(err, simon.ErrInvalidState) {
			writeError(w, http.StatusConflict, "invalid_state")
			return
		}
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, sess.Engine.Snapshot())
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	sess.Engine.ResetGame()
	writeJSON(w, http.StatusOK, sess.Engine.Snapshot())
}

type strictReq struct {
	Strict bool `json:"strict"`
}

func (s *Server) handleStrict(w http.ResponseWriter, r *http.Request) {
	var req strictReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sess := sessionFrom(r)
	sess.Engine.SetStrictMode(req.Strict)
	writeJSON(w, http.StatusOK, sess.Engine.Snapshot())
}

type inputReq struct {
	Signal string `json:"signal"`
}

type inputRes struct {
	Outcome simon.Outcome `json:"outcome"`
	Ignored bool          `json:"ignored,omitempty"`
	State   simon.State   `json:"state"`
}

func (s *Server) handleInput(w http.ResponseWriter, r *http.Request) {
	var req inputReq
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_json")
		return
	}
	sess := sessionFrom(r)
	out, err := s.submit(sess, req.Signal)
	switch {
	case errors.Is(err, errUnknownSignal):
		writeError(w, http.StatusBadRequest, "unknown_signal")
	case errors.Is(err, simon.ErrIgnoredInput):
		writeJSON(w, http.StatusAccepted, inputRes{Outcome: out, Ignored: true, State: sess.Engine.Snapshot()})
	case err != nil:
		writeError(w, http.StatusInternalServerError, err.Error())
	default:
		writeJSON(w, http.StatusOK, inputRes{Outcome: out, State: sess.Engine.Snapshot()})
	}
}

func (s *Server) handleState(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, sessionFrom(r).Engine.Snapshot())
}

func (s *Server) handleEnd(w http.ResponseWriter, r *http.Request) {
	sess := sessionFrom(r)
	if err := s.store.Delete(r.Context(), sess.ID); err != nil && !errors.Is(err, store.ErrNotFound) {
		writeError(w, http.StatusInternalServerError, "delete_failed")
		return
	}
	s.log.Info().Str("session", sess.ID).Msg("session ended")
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleWS(w http.ResponseWriter, r *http.Request) {
	sessionFrom(r).Hub.ServeWS(w, r)
}

// submit validates the signal name against the palette and forwards it.
func (s *Server) submit(sess *store.Session, name string) (simon.Outcome, error) {
	spec, ok := s.pal.Lookup(name)
	if !ok {
		return simon.OutcomeContinue, errUnknownSignal
	}
	return sess.Engine.SubmitInput(spec.Name)
}

// handleInbound applies a websocket client command to the session.
// Problems are reported back on the same stream.
func (s *Server) handleInbound(sess *store.Session, in hub.Inbound) {
	var err error
	switch in.Type {
	case "start":
		err = sess.Engine.StartGame()
	case "reset":
		sess.Engine.ResetGame()
	case "strict":
		sess.Engine.SetStrictMode(in.Strict)
	case "input":
		_, err = s.submit(sess, in.Signal)
		if errors.Is(err, simon.ErrIgnoredInput) {
			err = nil
		}
	default:
		err = errors.New("unknown command")
	}
	if err != nil {
		s.log.Debug().Err(err).Str("session", sess.ID).Str("command", in.Type).Msg("client command rejected")
		sess.Hub.Publish(map[string]string{"type": "error", "command": in.Type, "error": err.Error()})
	}
}
