// internal/simon/engine.go
//
// Turn engine for a single Simon game.
// Responsibilities:
//   - Grow the target sequence by one random signal per won round.
//   - Play the target back through the Board with fixed timing.
//   - Validate player input against the target, one signal at a time.
//   - Resolve retry (lenient mode), round and game outcomes.
//
// State machine:
//
//	idle → extending → playing → listening → (extending | playing | idle)
//
// Notes:
//   - Every entry point and every timer callback takes e.mu, so the engine
//     handles one event to completion before the next.
//   - Timer callbacks carry the epoch they were scheduled in. ResetGame and
//     game end bump the epoch, so a callback that already fired but is still
//     waiting on the lock does nothing.
//   - Board failures are logged and playback keeps its timeline.
package simon

import (
	"crypto/rand"
	"fmt"
	"io"
	"math/big"
	mrand "math/rand/v2"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/itxchy/simon/internal/schedule"
)

// DefaultMaxLength is the target length that wins the game.
const DefaultMaxLength = 20

// Config holds the engine's fixed game parameters.
type Config struct {
	MaxLength int           // target length that wins the game
	LeadIn    time.Duration // pause before the first step of a playback
	Highlight time.Duration // how long each signal stays active
	Gap       time.Duration // pause after each signal is deactivated
}

// DefaultConfig returns the timing of the classic game.
func DefaultConfig() Config {
	return Config{
		MaxLength: DefaultMaxLength,
		LeadIn:    500 * time.Millisecond,
		Highlight: 500 * time.Millisecond,
		Gap:       500 * time.Millisecond,
	}
}

func (c Config) validate() error {
	if c.MaxLength < 1 {
		return fmt.Errorf("%w: max length %d", ErrInvalidConfig, c.MaxLength)
	}
	if c.LeadIn < 0 || c.Highlight < 0 || c.Gap < 0 {
		return fmt.Errorf("%w: negative duration", ErrInvalidConfig)
	}
	return nil
}

// Option customizes an Engine.
type Option func(*Engine)

// WithScheduler replaces the wall-clock scheduler.
func WithScheduler(s schedule.Scheduler) Option { return func(e *Engine) { e.sched = s } }

// WithPicker replaces the crypto/rand signal picker.
func WithPicker(p Picker) Option { return func(e *Engine) { e.picker = p } }

// WithLogger sets the engine logger.
func WithLogger(l zerolog.Logger) Option { return func(e *Engine) { e.log = l } }

// WithObserver registers an event observer. May be given more than once.
func WithObserver(o Observer) Option {
	return func(e *Engine) { e.observers = append(e.observers, o) }
}

// WithStrict sets the initial strict mode.
func WithStrict(strict bool) Option { return func(e *Engine) { e.strict = strict } }

// WithClock overrides the timestamp source for events.
func WithClock(now func() time.Time) Option { return func(e *Engine) { e.now = now } }

// Engine owns one game's lifecycle.
type Engine struct {
	mu sync.Mutex

	board     Board
	signals   []Signal
	cfg       Config
	sched     schedule.Scheduler
	picker    Picker
	log       zerolog.Logger
	observers []Observer
	now       func() time.Time

	round  RoundState
	phase  Phase
	strict bool

	epoch uint64         // bumped to invalidate pending callbacks
	timer schedule.Timer // pending playback callback, if any
	step  int            // playback index into round.Target
	lit   Signal         // signal currently active on the board
	isLit bool
}

// New builds an idle engine for board. The board's signal set is read once here.
func New(board Board, cfg Config, opts ...Option) (*Engine, error) {
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	signals := append([]Signal(nil), board.Signals()...)
	if len(signals) == 0 {
		return nil, ErrNoSignals
	}
	e := &Engine{
		board:   board,
		signals: signals,
		cfg:     cfg,
		sched:   schedule.Real{},
		log:     zerolog.Nop(),
		now:     time.Now,
		phase:   PhaseIdle,
	}
	e.round.clear()
	for _, o := range opts {
		o(e)
	}
	if e.picker == nil {
		e.picker = cryptoPicker{src: rand.Reader, log: &e.log}
	}
	return e, nil
}

// Signals returns the signal set the engine draws from.
func (e *Engine) Signals() []Signal {
	return append([]Signal(nil), e.signals...)
}

// StartGame begins a new game from idle.
func (e *Engine) StartGame() error {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseIdle {
		return fmt.Errorf("start game in %s phase: %w", e.phase, ErrInvalidState)
	}
	e.round.clear()
	e.log.Debug().Bool("strict", e.strict).Msg("game started")
	e.extend()
	return nil
}

// ResetGame returns to idle from any phase, clearing the round and cancelling
// scheduled playback. Calling it repeatedly is safe.
func (e *Engine) ResetGame() {
	e.mu.Lock()
	defer e.mu.Unlock()

	wasActive := e.phase != PhaseIdle || len(e.round.Target) > 0
	e.halt()
	e.round.clear()
	e.phase = PhaseIdle
	if wasActive {
		e.log.Debug().Msg("game reset")
		e.emit(EventReset)
	}
}

// SetStrictMode toggles strict mode. It only affects mismatches that happen
// after the call.
func (e *Engine) SetStrictMode(strict bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.strict == strict {
		return
	}
	e.strict = strict
	e.emit(EventStrict)
}

// Strict reports the current strict mode.
func (e *Engine) Strict() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.strict
}

// Phase reports the current phase.
func (e *Engine) Phase() Phase {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.phase
}

// Snapshot returns a copy of the current state.
func (e *Engine) Snapshot() State {
	e.mu.Lock()
	defer e.mu.Unlock()
	return State{
		Phase:        e.phase,
		Target:       e.round.Target.Clone(),
		Length:       len(e.round.Target),
		Cursor:       e.round.Cursor,
		RetryGranted: e.round.RetryGranted,
		Strict:       e.strict,
		MaxLength:    e.cfg.MaxLength,
	}
}

// SubmitInput checks one player input against the target.
// Outside the listening phase the input is dropped and ErrIgnoredInput is
// returned; callers normally discard that error.
func (e *Engine) SubmitInput(s Signal) (Outcome, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	if e.phase != PhaseListening {
		return OutcomeContinue, fmt.Errorf("input %q in %s phase: %w", s, e.phase, ErrIgnoredInput)
	}

	if s != e.round.Target[e.round.Cursor] {
		return e.mismatch(s), nil
	}

	e.round.Cursor++
	if e.round.Cursor < len(e.round.Target) {
		e.emit(EventProgress)
		return OutcomeContinue, nil
	}

	if len(e.round.Target) >= e.cfg.MaxLength {
		e.finish(EventGameWon)
		return OutcomeGameWon, nil
	}
	e.round.RetryGranted = false
	e.emit(EventRoundWon)
	e.extend()
	return OutcomeRoundWon, nil
}

func (e *Engine) mismatch(s Signal) Outcome {
	want := e.round.Target[e.round.Cursor]
	switch {
	case e.strict:
		e.log.Debug().Str("want", string(want)).Str("got", string(s)).Msg("mismatch, strict")
		e.finish(EventGameLost)
		return OutcomeGameLost
	case e.round.RetryGranted:
		e.log.Debug().Str("want", string(want)).Str("got", string(s)).Msg("mismatch, retry spent")
		e.finish(EventGameLost)
		return OutcomeGameLost
	default:
		e.log.Debug().Str("want", string(want)).Str("got", string(s)).Msg("mismatch, retry granted")
		e.round.RetryGranted = true
		e.round.Cursor = 0
		e.emit(EventRetry)
		e.play()
		return OutcomeRetry
	}
}

// extend appends one random signal and starts playback.
func (e *Engine) extend() {
	e.setPhase(PhaseExtending)
	if len(e.round.Target) >= e.cfg.MaxLength {
		// A full-length target is only reachable through a won round,
		// which already ends the game.
		e.finish(EventGameWon)
		return
	}
	next := e.signals[e.pick()]
	e.round.Target = append(e.round.Target, next)
	e.emit(EventLength)
	e.play()
}

func (e *Engine) pick() int {
	n := len(e.signals)
	i := e.picker.Pick(n)
	if i < 0 || i >= n {
		e.log.Warn().Int("index", i).Int("n", n).Msg("picker out of range")
		i = ((i % n) + n) % n
	}
	return i
}

// play starts a playback of the whole target from step 0.
func (e *Engine) play() {
	e.setPhase(PhasePlaying)
	e.round.Cursor = 0
	e.step = 0
	e.after(e.cfg.LeadIn, e.activateStep)
}

func (e *Engine) activateStep() {
	if e.step == len(e.round.Target) {
		e.listen()
		return
	}
	s := e.round.Target[e.step]
	if err := e.board.Activate(s); err != nil {
		e.log.Warn().Err(err).Str("signal", string(s)).Int("step", e.step).Msg("board activate failed")
	}
	e.lit, e.isLit = s, true
	e.after(e.cfg.Highlight, e.deactivateStep)
}

func (e *Engine) deactivateStep() {
	s := e.round.Target[e.step]
	e.unlight(s)
	e.step++
	e.after(e.cfg.Gap, e.activateStep)
}

func (e *Engine) listen() {
	e.round.Cursor = 0
	e.setPhase(PhaseListening)
}

// finish ends the game with a GameWon or GameLost event.
// The target stays readable until the next start or reset.
func (e *Engine) finish(t EventType) {
	e.halt()
	e.round.RetryGranted = false
	e.phase = PhaseIdle
	e.log.Debug().Str("event", string(t)).Int("length", len(e.round.Target)).Msg("game over")
	e.emit(t)
}

// halt cancels pending playback and clears the board.
func (e *Engine) halt() {
	e.epoch++
	if e.timer != nil {
		e.timer.Stop()
		e.timer = nil
	}
	if e.isLit {
		e.unlight(e.lit)
	}
	e.step = 0
}

func (e *Engine) unlight(s Signal) {
	if err := e.board.Deactivate(s); err != nil {
		e.log.Warn().Err(err).Str("signal", string(s)).Msg("board deactivate failed")
	}
	e.isLit = false
}

// after schedules fn under the engine lock, bound to the current epoch.
func (e *Engine) after(d time.Duration, fn func()) {
	epoch := e.epoch
	e.timer = e.sched.AfterFunc(d, func() {
		e.mu.Lock()
		defer e.mu.Unlock()
		if e.epoch != epoch {
			return
		}
		e.timer = nil
		fn()
	})
}

func (e *Engine) setPhase(p Phase) {
	if e.phase == p {
		return
	}
	e.phase = p
	e.emit(EventPhase)
}

func (e *Engine) emit(t EventType) {
	if len(e.observers) == 0 {
		return
	}
	ev := Event{
		Type:      t,
		Phase:     e.phase,
		Length:    len(e.round.Target),
		Cursor:    e.round.Cursor,
		Remaining: len(e.round.Target) - e.round.Cursor,
		Strict:    e.strict,
		At:        e.now(),
	}
	for _, o := range e.observers {
		o(ev)
	}
}

// cryptoPicker draws indices from src, normally crypto/rand. If src fails
// the pick falls back to math/rand/v2 and the failure is logged.
type cryptoPicker struct {
	src io.Reader
	log *zerolog.Logger
}

func (p cryptoPicker) Pick(n int) int {
	v, err := rand.Int(p.src, big.NewInt(int64(n)))
	if err != nil {
		p.log.Warn().Err(err).Msg("crypto/rand failed, using math/rand")
		return mrand.IntN(n)
	}
	return int(v.Int64())
}
