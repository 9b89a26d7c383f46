package httpserver

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/itxchy/simon/internal/palette"
	"github.com/itxchy/simon/internal/schedule"
	"github.com/itxchy/simon/internal/simon"
	"github.com/itxchy/simon/internal/store"
)

type testEnv struct {
	t     *testing.T
	srv   *Server
	store store.Store
	clock *schedule.Manual
	now   time.Time
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	pal, err := palette.Default()
	if err != nil {
		t.Fatalf("palette: %v", err)
	}
	env := &testEnv{
		t:     t,
		store: store.NewMemoryStore(),
		clock: schedule.NewManual(),
		now:   time.Date(2024, 6, 1, 9, 0, 0, 0, time.UTC),
	}
	nop := zerolog.Nop()
	env.srv = New(env.store, pal, Options{
		Engine: simon.Config{
			MaxLength: 2,
			LeadIn:    10 * time.Millisecond,
			Highlight: 10 * time.Millisecond,
			Gap:       10 * time.Millisecond,
		},
		JWTSecret: "test_secret",
		JWTTTL:    time.Hour,
		DailySalt: "salt",
		Scheduler: env.clock,
		Now:       func() time.Time { return env.now },
		Logger:    &nop,
		// Sweeps run explicitly through env.srv.sweep.
		SweepEvery: -1,
	})
	t.Cleanup(env.srv.Close)
	return env
}

func (e *testEnv) do(method, path, token string, body any) *httptest.ResponseRecorder {
	e.t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			e.t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rec := httptest.NewRecorder()
	e.srv.Router().ServeHTTP(rec, req)
	return rec
}

func (e *testEnv) newGame(body any) newGameRes {
	e.t.Helper()
	rec := e.do(http.MethodPost, "/game/new", "", body)
	if rec.Code != http.StatusCreated {
		e.t.Fatalf("POST /game/new = %d %s", rec.Code, rec.Body)
	}
	var res newGameRes
	if err := json.NewDecoder(rec.Body).Decode(&res); err != nil {
		e.t.Fatalf("decode: %v", err)
	}
	return res
}

func (e *testEnv) engine(id string) *simon.Engine {
	e.t.Helper()
	sess, err := e.store.Get(context.Background(), id)
	if err != nil {
		e.t.Fatalf("store.Get: %v", err)
	}
	return sess.Engine
}

type stateBody struct {
	Phase        string `json:"phase"`
	Length       int    `json:"length"`
	Cursor       int    `json:"cursor"`
	RetryGranted bool   `json:"retryGranted"`
	Strict       bool   `json:"strict"`
	MaxLength    int    `json:"maxLength"`
}

type inputBody struct {
	Outcome string    `json:"outcome"`
	Ignored bool      `json:"ignored"`
	State   stateBody `json:"state"`
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decode %q: %v", rec.Body.String(), err)
	}
	return v
}

func TestHealthAndSignals(t *testing.T) {
	env := newTestEnv(t)

	rec := env.do(http.MethodGet, "/health", "", nil)
	if rec.Code != http.StatusOK || !strings.Contains(rec.Body.String(), `"ok":true`) {
		t.Fatalf("/health = %d %s", rec.Code, rec.Body)
	}

	rec = env.do(http.MethodGet, "/signals", "", nil)
	specs := decode[[]palette.Spec](t, rec)
	if len(specs) != 4 || specs[0].Name != "nw" {
		t.Fatalf("/signals = %+v", specs)
	}

	rec = env.do(http.MethodGet, "/nope", "", nil)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("/nope = %d", rec.Code)
	}
}

func TestPlayFullGame(t *testing.T) {
	env := newTestEnv(t)
	g := env.newGame(nil)
	if g.MaxLength != 2 || len(g.Signals) != 4 || g.Token == "" {
		t.Fatalf("new game = %+v", g)
	}

	rec := env.do(http.MethodPost, "/game/start", g.Token, nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("start = %d %s", rec.Code, rec.Body)
	}
	if st := decode[stateBody](t, rec); st.Phase != "playing" || st.Length != 1 {
		t.Fatalf("state after start = %+v", st)
	}

	if rec := env.do(http.MethodPost, "/game/start", g.Token, nil); rec.Code != http.StatusConflict {
		t.Fatalf("second start = %d", rec.Code)
	}

	// Presses during playback are dropped.
	rec = env.do(http.MethodPost, "/game/input", g.Token, inputReq{Signal: "nw"})
	if rec.Code != http.StatusAccepted || !decode[inputBody](t, rec).Ignored {
		t.Fatalf("input during playback = %d", rec.Code)
	}

	eng := env.engine(g.SessionID)
	for round := 1; round <= 2; round++ {
		env.clock.RunAll(1000)
		target := eng.Snapshot().Target
		var last inputBody
		for _, s := range target {
			rec := env.do(http.MethodPost, "/game/input", g.Token, inputReq{Signal: strings.ToUpper(string(s))})
			if rec.Code != http.StatusOK {
				t.Fatalf("input %s = %d %s", s, rec.Code, rec.Body)
			}
			last = decode[inputBody](t, rec)
		}
		want := "round_won"
		if round == 2 {
			want = "game_won"
		}
		if last.Outcome != want {
			t.Fatalf("round %d outcome = %q, want %q", round, last.Outcome, want)
		}
	}

	rec = env.do(http.MethodGet, "/game/state", g.Token, nil)
	if st := decode[stateBody](t, rec); st.Phase != "idle" || st.Length != 2 {
		t.Fatalf("final state = %+v", st)
	}
}

func TestInputValidationAndRetry(t *testing.T) {
	env := newTestEnv(t)
	g := env.newGame(map[string]bool{"strict": false})
	env.do(http.MethodPost, "/game/start", g.Token, nil)
	env.clock.RunAll(1000)

	rec := env.do(http.MethodPost, "/game/input", g.Token, inputReq{Signal: "center"})
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("unknown signal = %d", rec.Code)
	}
	rec = env.do(http.MethodPost, "/game/input", g.Token, "not an object")
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("bad body = %d", rec.Code)
	}

	want := env.engine(g.SessionID).Snapshot().Target[0]
	wrong := "nw"
	if want == "nw" {
		wrong = "se"
	}
	rec = env.do(http.MethodPost, "/game/input", g.Token, inputReq{Signal: wrong})
	res := decode[inputBody](t, rec)
	if res.Outcome != "retry" || !res.State.RetryGranted || res.State.Phase != "playing" {
		t.Fatalf("wrong input = %+v", res)
	}

	env.clock.RunAll(1000)
	rec = env.do(http.MethodPost, "/game/input", g.Token, inputReq{Signal: wrong})
	if res := decode[inputBody](t, rec); res.Outcome != "game_lost" || res.State.Phase != "idle" {
		t.Fatalf("second wrong input = %+v", res)
	}
}

func TestStrictResetAndEnd(t *testing.T) {
	env := newTestEnv(t)
	g := env.newGame(nil)

	rec := env.do(http.MethodPost, "/game/strict", g.Token, strictReq{Strict: true})
	if st := decode[stateBody](t, rec); !st.Strict {
		t.Fatalf("strict state = %+v", st)
	}

	env.do(http.MethodPost, "/game/start", g.Token, nil)
	rec = env.do(http.MethodPost, "/game/reset", g.Token, nil)
	if st := decode[stateBody](t, rec); st.Phase != "idle" || st.Length != 0 || !st.Strict {
		t.Fatalf("state after reset = %+v", st)
	}
	if n := env.clock.Pending(); n != 0 {
		t.Fatalf("%d playback callbacks pending after reset", n)
	}

	if rec := env.do(http.MethodDelete, "/game", g.Token, nil); rec.Code != http.StatusNoContent {
		t.Fatalf("DELETE /game = %d", rec.Code)
	}
	if rec := env.do(http.MethodGet, "/game/state", g.Token, nil); rec.Code != http.StatusNotFound {
		t.Fatalf("state after delete = %d", rec.Code)
	}
}

func TestSessionTokens(t *testing.T) {
	env := newTestEnv(t)
	g := env.newGame(nil)

	cases := []struct {
		name  string
		token string
		want  int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"garbage", "abc.def.ghi", http.StatusUnauthorized},
		{"valid", g.Token, http.StatusOK},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if rec := env.do(http.MethodGet, "/game/state", tc.token, nil); rec.Code != tc.want {
				t.Fatalf("status = %d, want %d", rec.Code, tc.want)
			}
		})
	}

	req := httptest.NewRequest(http.MethodGet, "/game/state?token="+g.Token, nil)
	rec := httptest.NewRecorder()
	env.srv.Router().ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("query token = %d", rec.Code)
	}

	env.now = env.now.Add(2 * time.Hour)
	if rec := env.do(http.MethodGet, "/game/state", g.Token, nil); rec.Code != http.StatusUnauthorized {
		t.Fatalf("expired token = %d", rec.Code)
	}
}

func TestExpiredSessionsAreSwept(t *testing.T) {
	env := newTestEnv(t)
	var old []newGameRes
	for i := 0; i < 3; i++ {
		old = append(old, env.newGame(nil))
	}
	env.now = env.now.Add(30 * time.Minute)
	fresh := env.newGame(nil)

	var hubs []<-chan struct{}
	for _, g := range old {
		sess, err := env.store.Get(context.Background(), g.SessionID)
		if err != nil {
			t.Fatalf("store.Get: %v", err)
		}
		hubs = append(hubs, sess.Hub.Done())
	}

	if n := env.srv.sweep(); n != 0 {
		t.Fatalf("sweep before expiry removed %d", n)
	}

	env.now = env.now.Add(30 * time.Minute)
	if n := env.srv.sweep(); n != 3 {
		t.Fatalf("sweep removed %d, want 3", n)
	}
	if env.store.Len() != 1 {
		t.Fatalf("store.Len() = %d, want 1", env.store.Len())
	}
	for i, done := range hubs {
		select {
		case <-done:
		default:
			t.Fatalf("hub %d still open after sweep", i)
		}
	}
	if rec := env.do(http.MethodGet, "/game/state", fresh.Token, nil); rec.Code != http.StatusOK {
		t.Fatalf("fresh session state = %d", rec.Code)
	}
}

func TestSignFailureDropsSession(t *testing.T) {
	env := newTestEnv(t)
	env.srv.sign = func(string) (string, time.Time, error) {
		return "", time.Time{}, errors.New("signer down")
	}

	rec := env.do(http.MethodPost, "/game/new", "", nil)
	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("POST /game/new = %d, want 500", rec.Code)
	}
	if env.store.Len() != 0 {
		t.Fatalf("store.Len() = %d, want 0", env.store.Len())
	}
}

func TestDailySessionsShareSequence(t *testing.T) {
	env := newTestEnv(t)
	a := env.newGame(newGameReq{Daily: true})
	b := env.newGame(newGameReq{Daily: true})
	if a.Daily != "2024-06-01" || a.Daily != b.Daily {
		t.Fatalf("daily keys = %q, %q", a.Daily, b.Daily)
	}

	for _, g := range []newGameRes{a, b} {
		env.do(http.MethodPost, "/game/start", g.Token, nil)
	}
	ta := env.engine(a.SessionID).Snapshot().Target
	tb := env.engine(b.SessionID).Snapshot().Target
	if len(ta) != 1 || ta[0] != tb[0] {
		t.Fatalf("daily targets differ: %v vs %v", ta, tb)
	}
}

func TestWebsocketStream(t *testing.T) {
	env := newTestEnv(t)
	ts := httptest.NewServer(env.srv.Router())
	defer ts.Close()

	g := env.newGame(nil)
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/game/ws?token=" + g.Token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	sess, _ := env.store.Get(context.Background(), g.SessionID)
	waitUntil(t, func() bool { return sess.Hub.Clients() == 1 })

	if err := conn.WriteJSON(map[string]string{"type": "start"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitUntil(t, func() bool { return sess.Engine.Phase() == simon.PhasePlaying })
	env.clock.RunAll(1000)
	first := sess.Engine.Snapshot().Target[0]

	var sawLength, sawActivate bool
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	for !(sawLength && sawActivate) {
		var msg map[string]any
		if err := conn.ReadJSON(&msg); err != nil {
			t.Fatalf("read: %v (length=%v activate=%v)", err, sawLength, sawActivate)
		}
		switch msg["type"] {
		case "length":
			sawLength = msg["length"] == float64(1)
		case "activate":
			sawActivate = msg["signal"] == string(first)
		}
	}

	if err := conn.WriteJSON(map[string]string{"type": "input", "signal": string(first)}); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitUntil(t, func() bool { return sess.Engine.Snapshot().Length == 2 })
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met within 2s")
		}
		time.Sleep(5 * time.Millisecond)
	}
}
