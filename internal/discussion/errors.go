package discussion

import (
	"errors"
	"fmt"

	"basegraph.app/boardroom/internal/model"
)

// ErrCancelled is the failure of a discussion stopped by its caller between turns.
var ErrCancelled = errors.New("discussion cancelled")

// TurnError names the role whose turn ended the discussion.
type TurnError struct {
	Role  model.Role
	Index int
	Err   error
}

func (e *TurnError) Error() string {
	return fmt.Sprintf("%s turn %d failed: %v", e.Role, e.Index, e.Err)
}

func (e *TurnError) Unwrap() error {
	return e.Err
}

// PanicError is a backend call that panicked instead of returning.
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	return fmt.Sprintf("backend panicked: %v", e.Value)
}

// Failure reasons reported on a failed discussion.
const (
	ReasonCancelled         = "cancelled"
	ReasonInvalidRequest    = "invalid_request"
	ReasonBackendsExhausted = "backends_exhausted"
	ReasonRunFailed         = "run_failed"
	ReasonRunTimeout        = "run_timeout"
	ReasonEmptyResponse     = "empty_response"
	ReasonMalformedOutput   = "malformed_output"
	ReasonSession           = "session_failed"
	ReasonBackend           = "backend_error"
	ReasonInternal          = "internal"
)
