package engine

import "errors"

var (
	// ErrNotRunning is returned for events delivered while the engine is IDLE,
	// and by Stop when it is already IDLE.
	ErrNotRunning = errors.New("engine not running")

	// ErrAlreadyRunning is returned by Start while RUNNING.
	ErrAlreadyRunning = errors.New("engine already running")

	// ErrRunning is returned by operations that require the engine to be IDLE.
	ErrRunning = errors.New("engine is running")

	// ErrInvalidOutcome is returned by ManualClose for an unknown outcome.
	ErrInvalidOutcome = errors.New("invalid outcome")

	// ErrInvalidCandidate is returned for a candidate without a mint.
	ErrInvalidCandidate = errors.New("invalid candidate")
)
