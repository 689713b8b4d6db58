// Package poller drives the submit/poll/fetch protocol of asynchronous assistant runs.
package poller

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"basegraph.app/boardroom/common/llm"
)

const (
	DefaultInterval    = time.Second
	DefaultMaxAttempts = 30
)

// RunClient is the part of a thread-based provider the poller needs.
type RunClient interface {
	SubmitRun(ctx context.Context, threadID, assistantID, instructions string) (string, error)
	PollRun(ctx context.Context, threadID, runID string) (llm.RunStatus, error)
	FetchLatestMessage(ctx context.Context, threadID string) (string, error)
}

type Poller struct {
	client      RunClient
	interval    time.Duration
	maxAttempts int
}

type Option func(*Poller)

func WithInterval(d time.Duration) Option {
	return func(p *Poller) {
		if d > 0 {
			p.interval = d
		}
	}
}

func WithMaxAttempts(n int) Option {
	return func(p *Poller) {
		if n > 0 {
			p.maxAttempts = n
		}
	}
}

func New(client RunClient, opts ...Option) *Poller {
	p := &Poller{
		client:      client,
		interval:    DefaultInterval,
		maxAttempts: DefaultMaxAttempts,
	}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

func (p *Poller) Submit(ctx context.Context, threadID, assistantID, instructions string) (string, error) {
	runID, err := p.client.SubmitRun(ctx, threadID, assistantID, instructions)
	if err != nil {
		return "", fmt.Errorf("submitting run on thread %s: %w", threadID, err)
	}
	slog.DebugContext(ctx, "run submitted", "thread_id", threadID, "run_id", runID, "assistant_id", assistantID)
	return runID, nil
}

func (p *Poller) Poll(ctx context.Context, threadID, runID string) (llm.RunStatus, error) {
	status, err := p.client.PollRun(ctx, threadID, runID)
	if err != nil {
		return "", fmt.Errorf("polling run %s: %w", runID, err)
	}
	return status, nil
}

// FetchResult returns the latest assistant reply on the thread.
func (p *Poller) FetchResult(ctx context.Context, threadID string) (string, error) {
	text, err := p.client.FetchLatestMessage(ctx, threadID)
	if err != nil {
		return "", fmt.Errorf("fetching result from thread %s: %w", threadID, err)
	}
	if strings.TrimSpace(text) == "" {
		return "", ErrEmptyResponse
	}
	return text, nil
}

// Await polls the run until it is terminal, making at most maxAttempts polls spaced by the
// interval. Any terminal status other than completed is a *RunFailedError.
func (p *Poller) Await(ctx context.Context, threadID, runID string) error {
	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	var status llm.RunStatus
	for attempt := 1; ; attempt++ {
		var err error
		status, err = p.Poll(ctx, threadID, runID)
		if err != nil {
			return err
		}
		if status.IsTerminal() {
			slog.DebugContext(ctx, "run finished", "run_id", runID, "status", status, "polls", attempt)
			if status != llm.RunStatusCompleted {
				return &RunFailedError{RunID: runID, Status: status}
			}
			return nil
		}
		if attempt >= p.maxAttempts {
			break
		}

		select {
		case <-ctx.Done():
			return fmt.Errorf("waiting for run %s: %w", runID, ctx.Err())
		case <-ticker.C:
		}
	}

	return &RunTimeoutError{RunID: runID, Attempts: p.maxAttempts, LastStatus: status}
}

// Run submits a run, waits for it and returns the reply text.
func (p *Poller) Run(ctx context.Context, threadID, assistantID, instructions string) (string, error) {
	runID, err := p.Submit(ctx, threadID, assistantID, instructions)
	if err != nil {
		return "", err
	}
	if err := p.Await(ctx, threadID, runID); err != nil {
		return "", err
	}
	return p.FetchResult(ctx, threadID)
}
