package domain

import "errors"

var (
	// ErrInvalidInput indicates a malformed or out-of-range field, such as a
	// negative step count or a non-positive attack amount.
	ErrInvalidInput = errors.New("invalid input")
	// ErrNotFound indicates an unknown user, boss, journey, or template id.
	ErrNotFound = errors.New("not found")
	// ErrConflict indicates a duplicate active journey or an exhausted
	// concurrency-retry budget.
	ErrConflict = errors.New("conflict")
	// ErrUnavailable indicates an entity that exists but cannot accept the
	// operation, such as a defeated boss or a finished journey.
	ErrUnavailable = errors.New("unavailable")

	// ErrVersionConflict is returned by stores when a conditional commit lost
	// a race. Services retry on it; it never escapes a Service method.
	ErrVersionConflict = errors.New("version conflict")
)
