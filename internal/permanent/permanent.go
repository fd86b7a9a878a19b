package permanent

import (
	"errors"
	"fmt"
)

// Error marks failures that retrying or reloading cannot fix, such as a corrupt session record.
// Params: wrapped root cause.
// Returns: typed permanent error marker.
type Error struct {
	Err error
}

func (e Error) Error() string {
	if e.Err == nil {
		return "permanent error"
	}
	return e.Err.Error()
}

func (e Error) Unwrap() error {
	return e.Err
}

// Permanent reports the marker; any error type exposing it is treated as permanent.
func (Error) Permanent() bool {
	return true
}

// Mark wraps error with permanent marker.
// Params: source error.
// Returns: wrapped error or nil.
func Mark(err error) error {
	if err == nil {
		return nil
	}
	return Error{Err: err}
}

// Errorf formats a new error and marks it permanent.
func Errorf(format string, args ...any) error {
	return Mark(fmt.Errorf(format, args...))
}

// Is reports whether error chain carries the permanent marker.
// Params: candidate error.
// Returns: true when the failure cannot be fixed by retrying.
func Is(err error) bool {
	if err == nil {
		return false
	}
	type marker interface {
		Permanent() bool
	}
	var tagged marker
	if !errors.As(err, &tagged) {
		return false
	}
	return tagged.Permanent()
}
