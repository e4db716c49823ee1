package listeners

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrNilArgument is returned when a required listener, handler, or manager
	// type is missing.
	ErrNilArgument = errors.New("required argument is nil")

	// ErrTypeMismatch is returned when a value does not have the type an
	// operation requires: a registry slot that isn't a List, or a delivery
	// target that can't receive events.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrIndexOutOfRange is matched by every *RangeError.
	ErrIndexOutOfRange = errors.New("index out of range")
)

// RangeError reports an index outside [0, Count).
type RangeError struct {
	Index int
	Count int
}

func (e *RangeError) Error() string {
	return fmt.Sprintf("index %d out of range [0, %d)", e.Index, e.Count)
}

// Is allows errors.Is to match a RangeError with ErrIndexOutOfRange.
func (e *RangeError) Is(target error) bool {
	return target == ErrIndexOutOfRange
}

// mismatch wraps ErrTypeMismatch with a description and a stack trace.
func mismatch(format string, args ...any) error {
	return errors.Wrapf(ErrTypeMismatch, format, args...)
}
