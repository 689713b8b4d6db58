package fallback

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"basegraph.app/boardroom/common/llm"
	"basegraph.app/boardroom/internal/extract"
)

var ErrNoCandidates = errors.New("no backend candidates configured")

// FailureKind classifies why a single candidate did not produce a result.
type FailureKind string

const (
	FailureNetwork   FailureKind = "network"
	FailureStatus    FailureKind = "status"
	FailureTimeout   FailureKind = "timeout"
	FailureMalformed FailureKind = "malformed"
)

// CandidateFailure records one candidate's failure inside a fallback chain.
type CandidateFailure struct {
	Candidate string
	Position  int // 0-based position in the chain
	Kind      FailureKind
	Status    int // provider status code for FailureStatus
	Err       error
}

func (f CandidateFailure) Error() string {
	return fmt.Sprintf("%s (%s): %v", f.Candidate, f.Kind, f.Err)
}

func (f CandidateFailure) Unwrap() error {
	return f.Err
}

// AllBackendsExhaustedError is returned when every candidate failed.
// Failures are in candidate order, one per candidate.
type AllBackendsExhaustedError struct {
	Failures []CandidateFailure
}

func (e *AllBackendsExhaustedError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("[%d] %s", i+1, f.Error())
	}
	return fmt.Sprintf("all %d backend candidates failed: %s", len(e.Failures), strings.Join(parts, "; "))
}

func (e *AllBackendsExhaustedError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f
	}
	return errs
}

// Causes renders each failure on its own line for error payloads.
func (e *AllBackendsExhaustedError) Causes() []string {
	out := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		out[i] = f.Error()
	}
	return out
}

func classify(err error) (FailureKind, int) {
	if extract.IsMalformed(err) {
		return FailureMalformed, 0
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return FailureTimeout, 0
	}
	var provErr *llm.ProviderError
	if errors.As(err, &provErr) && provErr.Status > 0 {
		return FailureStatus, provErr.Status
	}
	return FailureNetwork, 0
}
