// internal/httpserver/server.go
//
// HTTP server wiring for the Simon backend.
// Responsibilities:
//   - Router + middleware (JSON, CORS, timeouts, panic recovery, request IDs,
//     zerolog access logs).
//   - Public endpoints: "/", "/health", "/signals", POST /game/new.
//   - Session endpoints (session token required): /game/* and the
//     websocket stream at /game/ws.
//
// Notes:
//   - CORS is origin-aware and credentials-enabled.
//   - Each session owns one turn engine and one websocket hub. Board commands
//     and engine events are published to the hub; the hub's clients may send
//     commands back (start/reset/strict/input).
//   - Sessions live as long as their token. A background sweep removes the
//     ones whose token has expired.

package httpserver

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/rs/zerolog/log"

	"github.com/itxchy/simon/internal/palette"
	"github.com/itxchy/simon/internal/schedule"
	"github.com/itxchy/simon/internal/simon"
	"github.com/itxchy/simon/internal/store"
)

// Options configures a Server.
type Options struct {
	Engine       simon.Config
	ClientOrigin string
	JWTSecret    string
	JWTTTL       time.Duration
	DailySalt    string

	// Scheduler drives playback timers; nil uses the wall clock.
	Scheduler schedule.Scheduler
	// Now returns the current time; nil uses time.Now.
	Now func() time.Time
	// Logger is the base logger; zero value uses the global zerolog logger.
	Logger *zerolog.Logger
	// SweepEvery is the interval between expired-session sweeps; zero means
	// one minute, negative disables the background sweep.
	SweepEvery time.Duration
}

// Server bundles router, session store and palette.
type Server struct {
	r     *chi.Mux
	store store.Store
	pal   *palette.Palette
	opts  Options
	log   zerolog.Logger

	ctx    context.Context // parent of every hub's Run loop and the sweeper
	cancel context.CancelFunc

	sign func(id string) (string, time.Time, error)
}

// New constructs a Server, installs middleware, and registers routes.
func New(st store.Store, pal *palette.Palette, opts Options) *Server {
	if opts.Scheduler == nil {
		opts.Scheduler = schedule.Real{}
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	if opts.JWTTTL <= 0 {
		opts.JWTTTL = 12 * time.Hour
	}
	if opts.SweepEvery == 0 {
		opts.SweepEvery = time.Minute
	}
	lg := log.Logger
	if opts.Logger != nil {
		lg = *opts.Logger
	}
	ctx, cancel := context.WithCancel(context.Background())
	s := &Server{r: chi.NewRouter(), store: st, pal: pal, opts: opts, log: lg, ctx: ctx, cancel: cancel}
	s.sign = s.signSession

	// --- middleware ---
	s.r.Use(chimw.RequestID) // add X-Request-ID
	s.r.Use(chimw.RealIP)    // set RemoteAddr from X-Forwarded-For etc.
	s.r.Use(chimw.Recoverer) // recover from panics
	s.r.Use(hlog.NewHandler(lg))
	s.r.Use(hlog.AccessHandler(accessLog))
	s.r.Use(s.cors)

	// Websocket upgrades must not sit behind the handler timeout.
	s.r.With(s.requireSession()).Get("/game/ws", s.handleWS)

	s.r.Group(func(r chi.Router) {
		r.Use(chimw.Timeout(10 * time.Second)) // bound handler time
		r.Use(jsonContentType)                 // default JSON responses

		// --- diagnostics ---
		r.Get("/", func(w http.ResponseWriter, r *http.Request) {
			_, _ = w.Write([]byte(`{"service":"simon-go","endpoints":["/health","/signals","POST /game/new","/game/*"]}`))
		})
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(map[string]any{"ok": true, "sessions": s.store.Len()})
		})
		r.Get("/signals", func(w http.ResponseWriter, r *http.Request) {
			_ = json.NewEncoder(w).Encode(s.pal.Specs())
		})

		s.mountGame(r)

		// JSON 404 for easier debugging
		r.NotFound(func(w http.ResponseWriter, r *http.Request) {
			writeError(w, http.StatusNotFound, "not_found")
		})
	})

	if opts.SweepEvery > 0 {
		go s.sweepLoop(opts.SweepEvery)
	}
	return s
}

// sweepLoop calls sweep every interval until the server is closed.
func (s *Server) sweepLoop(every time.Duration) {
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-s.ctx.Done():
			return
		case <-t.C:
			s.sweep()
		}
	}
}

// sweep deletes sessions whose token has expired.
func (s *Server) sweep() int {
	n := s.store.Expire(s.ctx, s.opts.Now().Add(-s.opts.JWTTTL))
	if n > 0 {
		s.log.Info().Int("expired", n).Int("sessions", s.store.Len()).Msg("sessions swept")
	}
	return n
}

// Start begins serving HTTP on addr.
func (s *Server) Start(addr string) error { return http.ListenAndServe(addr, s.r) }

// Close stops the sweeper and every session hub.
func (s *Server) Close() { s.cancel() }

// Router exposes the internal router (useful for tests).
func (s *Server) Router() chi.Router { return s.r }

// ----------------------------- middleware ----------------------------------

// jsonContentType sets a default JSON Content-Type header on all responses.
func jsonContentType(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		next.ServeHTTP(w, r)
	})
}

// cors enables credentialed CORS for the configured origin.
func (s *Server) cors(next http.Handler) http.Handler {
	origin := s.opts.ClientOrigin
	if origin == "" {
		origin = "http://localhost:5173"
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Vary", "Origin")
		w.Header().Set("Access-Control-Allow-Origin", origin)
		w.Header().Set("Access-Control-Allow-Credentials", "true")
		w.Header().Set("Access-Control-Allow-Methods", "GET,POST,DELETE,OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// accessLog writes one line per request.
func accessLog(r *http.Request, status, size int, dur time.Duration) {
	hlog.FromRequest(r).Info().
		Str("method", r.Method).
		Str("path", r.URL.Path).
		Str("req_id", chimw.GetReqID(r.Context())).
		Int("status", status).
		Int("bytes", size).
		Dur("dur", dur).
		Msg("http")
}

// writeError writes a JSON error body with status.
func writeError(w http.ResponseWriter, status int, code string) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]string{"error": code})
}

// writeJSON writes v with status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
