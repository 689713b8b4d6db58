package store

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"basegraph.app/boardroom/common/logger"
	"basegraph.app/boardroom/internal/fallback"
	"basegraph.app/boardroom/internal/model"
)

const recordTimeout = 5 * time.Second

// AttemptRecorder turns fallback attempts into analytics rows. Rows are written in the
// background so a slow store never delays a turn. Writes never fail the caller; errors are logged.
type AttemptRecorder struct {
	store   AttemptStore
	newID   func() int64
	now     func() time.Time
	pending sync.WaitGroup
}

func NewAttemptRecorder(s AttemptStore, newID func() int64) *AttemptRecorder {
	return &AttemptRecorder{
		store: s,
		newID: newID,
		now:   func() time.Time { return time.Now().UTC() },
	}
}

func (r *AttemptRecorder) RecordAttempt(ctx context.Context, attempt fallback.Attempt) {
	fields := logger.GetLogFields(ctx)
	row := &model.GenerationAttempt{
		ID:           r.newID(),
		DiscussionID: fields.DiscussionID,
		Role:         fields.Role,
		Candidate:    attempt.Candidate,
		Position:     attempt.Position,
		Outcome:      model.AttemptOutcomeSuccess,
		LatencyMs:    attempt.Duration.Milliseconds(),
		CreatedAt:    r.now(),
	}
	if f := attempt.Failure; f != nil {
		row.Outcome = model.AttemptOutcomeFailure
		row.FailureKind = logger.Ptr(string(f.Kind))
		row.Error = logger.Ptr(logger.Truncate(f.Err.Error(), 2000))
	}

	writeCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), recordTimeout)
	r.pending.Add(1)
	go func() {
		defer r.pending.Done()
		defer cancel()
		if err := r.store.Create(writeCtx, row); err != nil {
			slog.WarnContext(writeCtx, "failed to record generation attempt",
				"candidate", attempt.Candidate,
				"error", err)
		}
	}()
}

// Wait blocks until every queued write has finished or ctx ends.
func (r *AttemptRecorder) Wait(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		r.pending.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for attempt writes: %w", ctx.Err())
	}
}
