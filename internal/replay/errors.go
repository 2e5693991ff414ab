package replay

import "errors"

var (
	// ErrInvalidEvent is returned for a script line that cannot be applied.
	ErrInvalidEvent = errors.New("invalid replay event")

	// ErrInvalidOrdering is returned when events are not properly ordered.
	ErrInvalidOrdering = errors.New("events are not in deterministic order")
)
