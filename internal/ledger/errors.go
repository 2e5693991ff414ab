package ledger

import "errors"

var (
	// ErrCapacityExceeded is returned by Open when the maximum number of
	// concurrent positions is already open.
	ErrCapacityExceeded = errors.New("position capacity exceeded")

	// ErrNotFound is returned when no open position has the given ID.
	// A price tick racing a close produces it; callers treat it as benign.
	ErrNotFound = errors.New("position not found")

	// ErrAlreadyOpen is returned by Open when the ID is already held.
	ErrAlreadyOpen = errors.New("position already open")

	// ErrInvalidValuation is returned when an entry valuation is not > 0
	// or a valuation update is negative.
	ErrInvalidValuation = errors.New("invalid valuation")
)
