package engine

import (
	"errors"
	"fmt"
)

// RuntimeError represents a failure of the engine itself, as opposed to a
// registry error returned for a command.
type RuntimeError struct {
	// Code identifies the error category.
	Code RuntimeErrorCode

	// Message is a human-readable description.
	Message string

	// RequestID identifies the affected command, if any.
	RequestID string
}

// RuntimeErrorCode categorizes runtime errors.
type RuntimeErrorCode string

const (
	// ErrCodeStopped indicates the engine no longer accepts commands.
	ErrCodeStopped RuntimeErrorCode = "ENGINE_STOPPED"

	// ErrCodeUnknownCommand indicates a command kind the engine cannot run.
	ErrCodeUnknownCommand RuntimeErrorCode = "UNKNOWN_COMMAND"
)

// Error implements the error interface.
func (e *RuntimeError) Error() string {
	if e.RequestID != "" {
		return fmt.Sprintf("%s: %s (request=%s)", e.Code, e.Message, e.RequestID)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// IsStopped returns true if err reports a stopped engine.
// Uses errors.As to handle wrapped errors.
func IsStopped(err error) bool {
	var re *RuntimeError
	if errors.As(err, &re) {
		return re.Code == ErrCodeStopped
	}
	return false
}

// NewStoppedError creates a RuntimeError for a command submitted after Stop.
func NewStoppedError(requestID string) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeStopped,
		Message:   "engine is not accepting commands",
		RequestID: requestID,
	}
}

// NewUnknownCommandError creates a RuntimeError for an unroutable command.
func NewUnknownCommandError(requestID string, kind CommandKind) *RuntimeError {
	return &RuntimeError{
		Code:      ErrCodeUnknownCommand,
		Message:   fmt.Sprintf("unknown command kind %d", kind),
		RequestID: requestID,
	}
}
