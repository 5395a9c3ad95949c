package domain

import (
	"errors"
	"fmt"
)

// ErrToolNotFound is returned when a tool definition cannot be found. It is terminal and never retried.
var ErrToolNotFound = errors.New("tool not found")

// ErrStateNotFound is returned by state stores when nothing has been persisted yet.
// Callers at the load boundary translate it into "not yet initialized".
var ErrStateNotFound = errors.New("state not found")

// ErrNotLoaded is returned when an operation requires a loaded tool.
var ErrNotLoaded = errors.New("tool not loaded")

// ErrInvalidDeploymentID is returned when a deployment id cannot be parsed.
var ErrInvalidDeploymentID = errors.New("invalid deployment id")

// ErrUnknownElement is returned when an action targets an element that is not part of the composition.
var ErrUnknownElement = errors.New("unknown element")

// TransportError wraps a network or timeout failure at a boundary call.
// These are retried by the runtime before being surfaced.
type TransportError struct {
	Op         string // "load", "save", "execute", "subscribe"
	StatusCode int    // 0 when no response was received
	Err        error
}

func (e *TransportError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: transport error (status %d): %v", e.Op, e.StatusCode, e.Err)
	}
	return fmt.Sprintf("%s: transport error: %v", e.Op, e.Err)
}

func (e *TransportError) Unwrap() error { return e.Err }

// ExecutionError is an action failure reported by the execution boundary as an error body.
type ExecutionError struct {
	StatusCode int
	Message    string
}

func (e *ExecutionError) Error() string {
	return fmt.Sprintf("execution failed (status %d): %s", e.StatusCode, e.Message)
}

// IsTransient reports whether err is worth retrying.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrToolNotFound) {
		return false
	}
	var te *TransportError
	return errors.As(err, &te)
}
