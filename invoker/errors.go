package invoker

import (
	"errors"
	"fmt"
)

var (
	// ErrUnknownOperation is matched by every UnknownOperationError
	ErrUnknownOperation = errors.New("invoker: unknown operation")
	// ErrInvalidArguments is matched by every ArgumentError
	ErrInvalidArguments = errors.New("invoker: invalid arguments")
)

// UnknownOperationError is returned when a target does not expose the requested member
type UnknownOperationError struct {
	Name   string // Requested member
	Target string // Dynamic type of the target
}

func (e *UnknownOperationError) Error() string {
	return fmt.Sprintf("unknown operation: %s is not defined on %s", e.Name, e.Target)
}

func (e *UnknownOperationError) Unwrap() error {
	return ErrUnknownOperation
}

// ArgumentError is returned when arguments cannot be passed to a member
type ArgumentError struct {
	Method string
	Index  int // -1 when the argument count is wrong
	Reason string
}

func (e *ArgumentError) Error() string {
	if e.Index < 0 {
		return fmt.Sprintf("invalid arguments for %s: %s", e.Method, e.Reason)
	}
	return fmt.Sprintf("invalid argument %d for %s: %s", e.Index, e.Method, e.Reason)
}

func (e *ArgumentError) Unwrap() error {
	return ErrInvalidArguments
}

// IsUnknownOperation checks if an error reports a missing member
func IsUnknownOperation(err error) bool {
	return errors.Is(err, ErrUnknownOperation)
}
