// Package fallback tries an ordered list of backend candidates until one yields
// usable structured output.
package fallback

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"basegraph.app/boardroom/common/llm"
	"basegraph.app/boardroom/common/logger"
	"basegraph.app/boardroom/internal/extract"
)

const DefaultTimeout = 60 * time.Second

// Candidate is one backend configuration in a fallback chain. Candidates are stateless and
// may be shared across concurrent discussions.
type Candidate interface {
	Name() string
	Invoke(ctx context.Context, prompt string) (string, error)
}

// Attempt describes one candidate invocation. Failure is nil on success.
type Attempt struct {
	Candidate string
	Position  int
	Duration  time.Duration
	Failure   *CandidateFailure
}

// Recorder observes attempts, e.g. for analytics. Implementations must not block for long;
// their errors are their own concern.
type Recorder interface {
	RecordAttempt(ctx context.Context, attempt Attempt)
}

type Client struct {
	timeout  time.Duration
	recorder Recorder
}

type Option func(*Client)

// WithTimeout bounds every single candidate invocation.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

func New(opts ...Option) *Client {
	c := &Client{timeout: DefaultTimeout}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Result is the first usable output of a chain.
type Result[T any] struct {
	Value     T
	Raw       string
	Candidate string
	// Failures are the candidates tried and rejected before Candidate succeeded.
	Failures []CandidateFailure
}

// Generate tries candidates strictly in order, one at a time, each exactly once. The first
// output that extracts into T is returned and later candidates are never invoked. When all
// fail the error is an *AllBackendsExhaustedError listing every failure in order.
func Generate[T any, P interface {
	*T
	extract.Payload
}](ctx context.Context, c *Client, prompt string, candidates []Candidate) (Result[T], error) {
	if len(candidates) == 0 {
		return Result[T]{}, ErrNoCandidates
	}

	var failures []CandidateFailure
	for i, cand := range candidates {
		value, raw, failure := invoke[T, P](ctx, c, i, cand, prompt)
		if failure == nil {
			if len(failures) > 0 {
				slog.InfoContext(ctx, "fallback candidate succeeded after failures",
					"candidate", cand.Name(),
					"position", i,
					"failed_candidates", len(failures))
			}
			return Result[T]{Value: value, Raw: raw, Candidate: cand.Name(), Failures: failures}, nil
		}
		failures = append(failures, *failure)
	}

	return Result[T]{}, &AllBackendsExhaustedError{Failures: failures}
}

func invoke[T any, P interface {
	*T
	extract.Payload
}](ctx context.Context, c *Client, position int, cand Candidate, prompt string) (T, string, *CandidateFailure) {
	var zero T
	name := cand.Name()

	ctx = logger.WithLogFields(ctx, logger.LogFields{Candidate: &name})
	sc := logger.StartSpan(ctx, "fallback.candidate", trace.WithAttributes(
		attribute.String("candidate", name),
		attribute.Int("position", position),
	))
	defer sc.End()
	ctx = sc.Context()

	callCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	start := time.Now()
	raw, err := cand.Invoke(callCtx, prompt)
	if err == nil {
		var value T
		value, err = extract.Extract[T, P](raw)
		if err == nil {
			c.record(ctx, Attempt{Candidate: name, Position: position, Duration: time.Since(start)})
			return value, raw, nil
		}
		slog.WarnContext(ctx, "candidate returned malformed output",
			"raw", logger.Truncate(raw, 300))
	}
	duration := time.Since(start)

	kind, status := classify(err)
	failure := &CandidateFailure{
		Candidate: name,
		Position:  position,
		Kind:      kind,
		Status:    status,
		Err:       fmt.Errorf("invoking %s: %w", name, err),
	}
	sc.RecordError(err)
	slog.WarnContext(ctx, "fallback candidate failed",
		"position", position,
		"failure_kind", kind,
		"status_code", status,
		"duration_ms", duration.Milliseconds(),
		"retryable", llm.IsRetryable(ctx, err),
		"error", err)

	c.record(ctx, Attempt{Candidate: name, Position: position, Duration: duration, Failure: failure})
	return zero, raw, failure
}

func (c *Client) record(ctx context.Context, attempt Attempt) {
	if c.recorder == nil {
		return
	}
	c.recorder.RecordAttempt(ctx, attempt)
}
