package simon

import "errors"

var (
	// ErrInvalidState is returned when an operation is not valid in the
	// current phase, e.g. StartGame while a round is active.
	ErrInvalidState = errors.New("invalid state")

	// ErrIgnoredInput is returned by SubmitInput outside the listening phase.
	// It is not a failure: presses during playback are expected and dropped.
	ErrIgnoredInput = errors.New("input ignored")

	// ErrNoSignals is returned by New when the board offers no signals.
	ErrNoSignals = errors.New("board has no signals")

	// ErrInvalidConfig is returned by New for unusable timing or length settings.
	ErrInvalidConfig = errors.New("invalid engine config")
)
