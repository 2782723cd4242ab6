package errors

import "errors"

var (
	// ErrTimeout is returned when a polling acquisition runs past its deadline.
	ErrTimeout = errors.New("spin: timeout")
	// ErrNotHeld is returned when releasing a key the caller does not hold.
	ErrNotHeld = errors.New("spin: lock not held")
	// ErrInvalidStrategy is returned when a strategy name cannot be parsed.
	ErrInvalidStrategy = errors.New("spin: invalid strategy")
)
