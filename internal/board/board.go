// internal/board/board.go
//
// SignalBoard implementations driven by the turn engine.
// Provides:
//   - Recorder:  keeps every command in memory (tests, replays).
//   - Publisher: forwards commands to a Sink such as a websocket hub.
//   - Logger:    writes each command to a zerolog logger at debug level.
//   - Fanout:    sends each command to several boards (e.g. publisher + logger).
//
// All boards report the signal set they were built with.

package board

import (
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/itxchy/simon/internal/simon"
)

// Kind is the type of a board command.
type Kind string

const (
	KindActivate   Kind = "activate"
	KindDeactivate Kind = "deactivate"
)

// Command is one instruction sent to the board.
type Command struct {
	Kind   Kind         `json:"type"`
	Signal simon.Signal `json:"signal"`
	At     time.Time    `json:"at"`
}

// ErrInjected is returned by a Recorder set up to fail.
var ErrInjected = errors.New("injected board failure")

// Recorder records commands. Safe for concurrent use.
type Recorder struct {
	mu       sync.Mutex
	signals  []simon.Signal
	commands []Command
	failOn   map[simon.Signal]bool
	now      func() time.Time
}

// NewRecorder returns a Recorder exposing signals.
func NewRecorder(signals ...simon.Signal) *Recorder {
	return &Recorder{
		signals: append([]simon.Signal(nil), signals...),
		failOn:  map[simon.Signal]bool{},
		now:     time.Now,
	}
}

// FailOn makes Activate and Deactivate for s return ErrInjected.
// The command is still recorded.
func (r *Recorder) FailOn(s simon.Signal) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.failOn[s] = true
}

// Signals implements simon.Board.
func (r *Recorder) Signals() []simon.Signal {
	return append([]simon.Signal(nil), r.signals...)
}

// Activate implements simon.Board.
func (r *Recorder) Activate(s simon.Signal) error { return r.record(KindActivate, s) }

// Deactivate implements simon.Board.
func (r *Recorder) Deactivate(s simon.Signal) error { return r.record(KindDeactivate, s) }

func (r *Recorder) record(k Kind, s simon.Signal) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = append(r.commands, Command{Kind: k, Signal: s, At: r.now()})
	if r.failOn[s] {
		return fmt.Errorf("%s %s: %w", k, s, ErrInjected)
	}
	return nil
}

// Commands returns a copy of the recorded commands.
func (r *Recorder) Commands() []Command {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]Command(nil), r.commands...)
}

// Activated returns the signals activated so far, in order.
func (r *Recorder) Activated() simon.Sequence {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out simon.Sequence
	for _, c := range r.commands {
		if c.Kind == KindActivate {
			out = append(out, c.Signal)
		}
	}
	return out
}

// Reset forgets recorded commands.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.commands = nil
}

// Sink receives published values.
type Sink interface {
	Publish(v any)
}

// Publisher turns board commands into messages for a Sink.
type Publisher struct {
	signals []simon.Signal
	sink    Sink
	now     func() time.Time
}

// NewPublisher returns a board that publishes to sink.
func NewPublisher(sink Sink, signals ...simon.Signal) *Publisher {
	return &Publisher{signals: append([]simon.Signal(nil), signals...), sink: sink, now: time.Now}
}

// Signals implements simon.Board.
func (p *Publisher) Signals() []simon.Signal { return append([]simon.Signal(nil), p.signals...) }

// Activate implements simon.Board.
func (p *Publisher) Activate(s simon.Signal) error {
	p.sink.Publish(Command{Kind: KindActivate, Signal: s, At: p.now()})
	return nil
}

// Deactivate implements simon.Board.
func (p *Publisher) Deactivate(s simon.Signal) error {
	p.sink.Publish(Command{Kind: KindDeactivate, Signal: s, At: p.now()})
	return nil
}

// Logger is a board that only logs the commands it receives.
type Logger struct {
	signals []simon.Signal
	log     zerolog.Logger
}

// NewLogger returns a board that logs to l.
func NewLogger(l zerolog.Logger, signals ...simon.Signal) *Logger {
	return &Logger{signals: append([]simon.Signal(nil), signals...), log: l}
}

// Signals implements simon.Board.
func (b *Logger) Signals() []simon.Signal { return append([]simon.Signal(nil), b.signals...) }

// Activate implements simon.Board.
func (b *Logger) Activate(s simon.Signal) error {
	b.log.Debug().Str("signal", string(s)).Msg("board activate")
	return nil
}

// Deactivate implements simon.Board.
func (b *Logger) Deactivate(s simon.Signal) error {
	b.log.Debug().Str("signal", string(s)).Msg("board deactivate")
	return nil
}

// Fanout forwards each command to every child board. The signal set is the
// first child's.
type Fanout []simon.Board

// Signals implements simon.Board.
func (f Fanout) Signals() []simon.Signal {
	if len(f) == 0 {
		return nil
	}
	return f[0].Signals()
}

// Activate implements simon.Board. Every child is called even if one fails.
func (f Fanout) Activate(s simon.Signal) error {
	var errs []error
	for _, b := range f {
		if err := b.Activate(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}

// Deactivate implements simon.Board. Every child is called even if one fails.
func (f Fanout) Deactivate(s simon.Signal) error {
	var errs []error
	for _, b := range f {
		if err := b.Deactivate(s); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
