// Package discussion runs executive discussions: roles speak one at a time, in order, each
// seeing everything said before it.
package discussion

import (
	"context"
	"errors"
	"log/slog"
	"runtime/debug"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"basegraph.app/boardroom/common/logger"
	"basegraph.app/boardroom/internal/broadcast"
	"basegraph.app/boardroom/internal/extract"
	"basegraph.app/boardroom/internal/fallback"
	"basegraph.app/boardroom/internal/model"
	"basegraph.app/boardroom/internal/persona"
	"basegraph.app/boardroom/internal/poller"
)

const component = "boardroom.discussion.sequencer"

// Sequencer drives discussions over one backend. It holds only read-only configuration and
// may run many discussions concurrently; the state of each run is private to that run.
type Sequencer struct {
	backend     Backend
	personas    *persona.Catalog
	broadcaster broadcast.Broadcaster
	now         func() time.Time
}

type SequencerOption func(*Sequencer)

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) SequencerOption {
	return func(s *Sequencer) {
		s.now = now
	}
}

func NewSequencer(backend Backend, personas *persona.Catalog, b broadcast.Broadcaster, opts ...SequencerOption) *Sequencer {
	if personas == nil {
		personas = persona.Default()
	}
	if b == nil {
		b = broadcast.Nop{}
	}
	s := &Sequencer{
		backend:     backend,
		personas:    personas,
		broadcaster: b,
		now:         func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *Sequencer) Backend() string {
	return s.backend.Name()
}

// Run executes one discussion to a terminal state and returns it. It moves pending ->
// in_progress -> completed|failed. Cancelling ctx stops the discussion before the next turn;
// a turn already being generated runs to completion or to its own timeout.
func (s *Sequencer) Run(ctx context.Context, discussionID int64, topic string, roles []model.Role) *model.DiscussionState {
	r := &run{
		seq: s,
		state: &model.DiscussionState{
			ID:        discussionID,
			Topic:     topic,
			Roles:     append([]model.Role(nil), roles...),
			Turns:     []model.Turn{},
			Status:    model.DiscussionStatusPending,
			StartedAt: s.now(),
		},
		acc: NewAccumulator(s.personas, topic, roles),
	}

	backendName := s.backend.Name()
	ctx = logger.WithLogFields(ctx, logger.LogFields{
		DiscussionID: &discussionID,
		Backend:      &backendName,
		Component:    component,
	})
	sc := logger.StartSpan(ctx, "discussion.run", trace.WithAttributes(
		attribute.Int64("discussion_id", discussionID),
		attribute.Int("roles", len(roles)),
		attribute.String("backend", backendName),
	))
	defer sc.End()
	ctx = sc.Context()

	r.execute(ctx)

	if r.state.Err != nil {
		sc.RecordError(r.state.Err)
	}
	sc.SetAttributes(
		attribute.String("status", string(r.state.Status)),
		attribute.Int("turns", len(r.state.Turns)),
	)
	return r.state
}

// run is the state of a single discussion.
type run struct {
	seq   *Sequencer
	state *model.DiscussionState
	acc   *Accumulator
}

func (r *run) execute(ctx context.Context) {
	if strings.TrimSpace(r.state.Topic) == "" || len(r.state.Roles) == 0 {
		r.fail(ctx, "", ReasonInvalidRequest, errors.New("topic and at least one role are required"))
		return
	}

	r.state.Status = model.DiscussionStatusInProgress
	slog.InfoContext(ctx, "discussion started", "roles", len(r.state.Roles))

	// Backend work ignores caller cancellation; it is checked between turns instead.
	session, err := r.seq.backend.NewSession(context.WithoutCancel(ctx), r.state.ID)
	if err != nil {
		r.fail(ctx, r.state.Roles[0], ReasonSession, err)
		return
	}

	for {
		role, index, ok := r.acc.Next()
		if !ok {
			break
		}
		if ctx.Err() != nil {
			r.fail(ctx, role, ReasonCancelled, ErrCancelled)
			return
		}
		if err := r.turn(ctx, session, role, index); err != nil {
			r.fail(ctx, role, failureReason(err), err)
			return
		}
	}

	completed := r.seq.now()
	r.state.Status = model.DiscussionStatusCompleted
	r.state.CompletedAt = &completed
	slog.InfoContext(ctx, "discussion completed",
		"turns", len(r.state.Turns),
		"duration_ms", completed.Sub(r.state.StartedAt).Milliseconds())
	r.publish(ctx, model.Event{Type: model.EventDiscussionCompleted, Index: len(r.state.Turns)})
}

func (r *run) turn(ctx context.Context, session Session, role model.Role, index int) error {
	roleName := role.String()
	ctx = logger.WithLogFields(ctx, logger.LogFields{Role: &roleName, TurnIndex: &index})
	sc := logger.StartSpan(ctx, "discussion.turn", trace.WithAttributes(
		attribute.String("role", roleName),
		attribute.Int("index", index),
	))
	defer sc.End()
	ctx = sc.Context()

	r.publish(ctx, model.Event{Type: model.EventTurnStarted, Role: role, Index: index})

	_, prompt, _ := r.acc.NextPrompt()
	start := time.Now()
	gen, err := generate(context.WithoutCancel(ctx), session, TurnRequest{
		Role:    role,
		Index:   index,
		Persona: r.seq.personas.Get(role),
		Prompt:  prompt,
	})
	if err != nil {
		sc.RecordError(err)
		return &TurnError{Role: role, Index: index, Err: err}
	}

	keyPoints := gen.KeyPoints
	if keyPoints == nil {
		keyPoints = []string{}
	}
	turn := model.Turn{
		Role:          role,
		Text:          gen.Text,
		KeyPoints:     keyPoints,
		SequenceIndex: index,
		Backend:       gen.Backend,
		CreatedAt:     r.seq.now(),
	}
	if err := r.acc.Append(turn); err != nil {
		sc.RecordError(err)
		return &TurnError{Role: role, Index: index, Err: err}
	}
	r.state.Turns = r.acc.Turns()

	sc.SetAttributes(attribute.String("produced_by", gen.Backend))
	slog.InfoContext(ctx, "turn completed",
		"produced_by", gen.Backend,
		"duration_ms", time.Since(start).Milliseconds(),
		"text_len", len(turn.Text))
	r.publish(ctx, model.Event{Type: model.EventTurnCompleted, Role: role, Index: index, Turn: &turn})
	return nil
}

// generate calls the session, turning a panic into a *PanicError so the discussion still ends.
func generate(ctx context.Context, session Session, req TurnRequest) (gen Generation, err error) {
	defer func() {
		if v := recover(); v != nil {
			slog.ErrorContext(ctx, "backend panicked", "panic", v, "stack", string(debug.Stack()))
			err = &PanicError{Value: v}
		}
	}()
	return session.GenerateTurn(ctx, req)
}

func (r *run) fail(ctx context.Context, role model.Role, reason string, err error) {
	completed := r.seq.now()
	failure := &model.DiscussionFailure{
		Role:    role,
		Reason:  reason,
		Message: err.Error(),
		Causes:  causes(err),
	}
	r.state.Status = model.DiscussionStatusFailed
	r.state.Failure = failure
	r.state.Err = err
	r.state.CompletedAt = &completed

	if reason == ReasonCancelled {
		slog.InfoContext(ctx, "discussion cancelled", "next_role", role, "turns", len(r.state.Turns))
	} else {
		slog.ErrorContext(ctx, "discussion failed",
			"failed_role", role,
			"reason", reason,
			"turns", len(r.state.Turns),
			"error", err)
	}

	f := *failure
	r.publish(ctx, model.Event{Type: model.EventDiscussionFailed, Role: role, Index: len(r.state.Turns), Failure: &f})
}

// publish is best effort: a broadcast failure never stops the discussion.
func (r *run) publish(ctx context.Context, event model.Event) {
	event.DiscussionID = r.state.ID
	event.At = r.seq.now()
	if err := r.seq.broadcaster.Publish(context.WithoutCancel(ctx), r.state.ID, event); err != nil {
		slog.WarnContext(ctx, "failed to broadcast discussion event",
			"event_type", event.Type,
			"error", err)
	}
}

func failureReason(err error) string {
	var (
		exhausted *fallback.AllBackendsExhaustedError
		failed    *poller.RunFailedError
		timeout   *poller.RunTimeoutError
		order     *OutOfOrderAppendError
		panicked  *PanicError
	)
	switch {
	case errors.As(err, &exhausted):
		return ReasonBackendsExhausted
	case errors.As(err, &failed):
		return ReasonRunFailed
	case errors.As(err, &timeout):
		return ReasonRunTimeout
	case errors.Is(err, poller.ErrEmptyResponse):
		return ReasonEmptyResponse
	case extract.IsMalformed(err):
		return ReasonMalformedOutput
	case errors.As(err, &order), errors.As(err, &panicked):
		return ReasonInternal
	default:
		return ReasonBackend
	}
}

// causes lists the underlying failures of err, one per backend candidate when a fallback
// chain was exhausted.
func causes(err error) []string {
	var exhausted *fallback.AllBackendsExhaustedError
	if errors.As(err, &exhausted) {
		return exhausted.Causes()
	}
	var turnErr *TurnError
	if errors.As(err, &turnErr) {
		return []string{turnErr.Err.Error()}
	}
	return nil
}
