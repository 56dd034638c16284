package rttest

import (
	"errors"
	"fmt"
)

// Error kinds. Every error returned by this package matches exactly one of
// these through errors.Is.
var (
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrPermission        = errors.New("permission denied")
	ErrResourceExhausted = errors.New("resource exhausted")
	ErrClock             = errors.New("clock failure")
	ErrInvalidState      = errors.New("invalid state")
	ErrUsage             = errors.New("resource usage unavailable")
	ErrUnsupported       = errors.New("unsupported on this platform")
)

// Error describes a failed operation. Kind is one of the Err* sentinels and
// Err, when set, is the underlying cause (usually a syscall errno).
type Error struct {
	Op   string
	Kind error
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("rttest: %s: %v", e.Op, e.Kind)
	}
	return fmt.Sprintf("rttest: %s: %v: %v", e.Op, e.Kind, e.Err)
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

// ExitCode maps the error kind to a process exit status.
func (e *Error) ExitCode() int {
	return exitCode(e.Kind)
}

// ExitCode returns the process exit status for err: 0 for nil, a distinct
// non-zero value per error kind, and 1 for anything else.
func ExitCode(err error) int {
	if err == nil {
		return 0
	}
	for _, kind := range kinds {
		if errors.Is(err, kind) {
			return exitCode(kind)
		}
	}
	return 1
}

var kinds = []error{
	ErrInvalidArgument,
	ErrPermission,
	ErrResourceExhausted,
	ErrClock,
	ErrInvalidState,
	ErrUsage,
	ErrUnsupported,
}

func exitCode(kind error) int {
	for i, k := range kinds {
		if k == kind {
			return i + 2
		}
	}
	return 1
}

func newError(op string, kind, cause error) *Error {
	return &Error{Op: op, Kind: kind, Err: cause}
}

func invalidArgument(op, format string, args ...any) *Error {
	return newError(op, ErrInvalidArgument, fmt.Errorf(format, args...))
}

func invalidState(op, format string, args ...any) *Error {
	return newError(op, ErrInvalidState, fmt.Errorf(format, args...))
}
