// internal/simon/types.go
//
// Core type definitions for the Simon turn engine.
// Defines:
//   - Signal / Sequence: what the device plays and the player repeats.
//   - RoundState: the round record owned by one Engine.
//   - Phase: state machine position (idle/extending/playing/listening).
//   - Outcome: result of a player input.
//   - Event: notifications for a UI layer (progress, length, strict light).
//   - Board / Picker: collaborators the engine calls into.

package simon

import (
	"fmt"
	"time"
)

// Signal identifies one selectable game element ("nw", "ne", ...).
// The engine treats it as opaque.
type Signal string

// Sequence is an ordered list of signals.
type Sequence []Signal

// Clone returns an independent copy.
func (s Sequence) Clone() Sequence {
	if s == nil {
		return Sequence{}
	}
	out := make(Sequence, len(s))
	copy(out, s)
	return out
}

// RoundState is the mutable round record.
type RoundState struct {
	Target       Sequence // sequence the player must reproduce
	Cursor       int      // index of the next expected signal, in [0, len(Target)]
	RetryGranted bool     // lenient retry already spent on this target
}

func (r *RoundState) clear() {
	r.Target = Sequence{}
	r.Cursor = 0
	r.RetryGranted = false
}

// Phase is the engine's position in the round state machine.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseExtending
	PhasePlaying
	PhaseListening
)

func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "idle"
	case PhaseExtending:
		return "extending"
	case PhasePlaying:
		return "playing"
	case PhaseListening:
		return "listening"
	}
	return fmt.Sprintf("phase(%d)", int(p))
}

// MarshalText renders the phase name in JSON payloads.
func (p Phase) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// Outcome is the result of a single player input.
type Outcome int

const (
	// OutcomeContinue: correct input, more steps remain.
	OutcomeContinue Outcome = iota
	// OutcomeRetry: wrong input in lenient mode; the same target replays.
	OutcomeRetry
	// OutcomeRoundWon: target reproduced; the target grows by one.
	OutcomeRoundWon
	// OutcomeGameWon: target of maximum length reproduced.
	OutcomeGameWon
	// OutcomeGameLost: wrong input in strict mode, or a second wrong input
	// on the same target in lenient mode.
	OutcomeGameLost
)

func (o Outcome) String() string {
	switch o {
	case OutcomeContinue:
		return "continue"
	case OutcomeRetry:
		return "retry"
	case OutcomeRoundWon:
		return "round_won"
	case OutcomeGameWon:
		return "game_won"
	case OutcomeGameLost:
		return "game_lost"
	}
	return fmt.Sprintf("outcome(%d)", int(o))
}

// MarshalText renders the outcome name in JSON payloads.
func (o Outcome) MarshalText() ([]byte, error) { return []byte(o.String()), nil }

// EventType names a notification emitted to observers.
type EventType string

const (
	EventProgress EventType = "progress"  // correct input; Remaining steps left
	EventRetry    EventType = "retry"     // lenient retry granted
	EventRoundWon EventType = "round_won" // target reproduced, extending
	EventGameWon  EventType = "game_won"
	EventGameLost EventType = "game_lost"
	EventLength   EventType = "length" // target length changed (step-count display)
	EventStrict   EventType = "strict" // strict indicator changed
	EventPhase    EventType = "phase"
	EventReset    EventType = "reset"
)

// Event is one notification for the UI layer.
type Event struct {
	Type      EventType `json:"type"`
	Phase     Phase     `json:"phase"`
	Length    int       `json:"length"`
	Cursor    int       `json:"cursor"`
	Remaining int       `json:"remaining"`
	Strict    bool      `json:"strict"`
	At        time.Time `json:"at"`
}

// Observer receives events. It is called with the engine locked and must not
// call back into the engine.
type Observer func(Event)

// Board is the display the engine drives during playback.
// Activate/Deactivate cover both the highlight and the tone for a signal.
type Board interface {
	Activate(s Signal) error
	Deactivate(s Signal) error
	// Signals enumerates the available signals; read once by New.
	Signals() []Signal
}

// Picker selects a uniformly random index in [0, n).
type Picker interface {
	Pick(n int) int
}

// PickerFunc adapts a function to Picker.
type PickerFunc func(n int) int

// Pick implements Picker.
func (f PickerFunc) Pick(n int) int { return f(n) }

// State is a point-in-time copy of the engine's state.
type State struct {
	Phase        Phase    `json:"phase"`
	Target       Sequence `json:"-"`
	Length       int      `json:"length"`
	Cursor       int      `json:"cursor"`
	RetryGranted bool     `json:"retryGranted"`
	Strict       bool     `json:"strict"`
	MaxLength    int      `json:"maxLength"`
}
