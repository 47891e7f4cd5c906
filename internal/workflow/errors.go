package workflow

import (
	"errors"
	"fmt"
)

// ErrInvalidTransition is matched by every rejection the engine returns.
var ErrInvalidTransition = errors.New("invalid transition")

// InvalidTransitionError explains why a requested status change was refused.
type InvalidTransitionError struct {
	From   Status
	To     Status
	Reason string
}

func (e *InvalidTransitionError) Error() string {
	if e.From == "" {
		return fmt.Sprintf("invalid transition to %s: %s", e.To, e.Reason)
	}
	return fmt.Sprintf("invalid transition %s -> %s: %s", e.From, e.To, e.Reason)
}

// Is lets errors.Is match ErrInvalidTransition.
func (e *InvalidTransitionError) Is(target error) bool {
	return target == ErrInvalidTransition
}

// ErrorKind classifies the error for API status mapping.
func (e *InvalidTransitionError) ErrorKind() string {
	return "validation"
}

func reject(from, to Status, format string, args ...any) error {
	return &InvalidTransitionError{From: from, To: to, Reason: fmt.Sprintf(format, args...)}
}
