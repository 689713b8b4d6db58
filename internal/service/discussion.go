// Package service coordinates discussions for the HTTP and CLI surfaces.
package service

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"
	"strings"
	"sync"
	"time"

	"basegraph.app/boardroom/common/id"
	"basegraph.app/boardroom/common/logger"
	"basegraph.app/boardroom/internal/broadcast"
	"basegraph.app/boardroom/internal/discussion"
	"basegraph.app/boardroom/internal/extract"
	"basegraph.app/boardroom/internal/fallback"
	"basegraph.app/boardroom/internal/model"
	"basegraph.app/boardroom/internal/persona"
	"basegraph.app/boardroom/internal/store"
)

const (
	maxTopicLength     = 4000
	maxRoles           = 20
	defaultRetention   = time.Hour
	defaultConcurrency = 16
)

type StartRequest struct {
	Topic string
	Roles []string
}

// DiscussionService runs discussions and serves their current state.
type DiscussionService interface {
	// Start validates req and runs the discussion in the background.
	Start(ctx context.Context, req StartRequest) (*model.DiscussionState, error)
	// Run validates req and runs the discussion to completion before returning.
	Run(ctx context.Context, req StartRequest) (*model.DiscussionState, error)
	Get(ctx context.Context, id int64) (*model.DiscussionState, error)
	// Cancel stops a discussion before its next turn.
	Cancel(ctx context.Context, id int64) (*model.DiscussionState, error)
	Summarize(ctx context.Context, id int64) (*model.Summary, error)
	Attempts(ctx context.Context, id int64) ([]model.GenerationAttempt, error)
	// Shutdown cancels running discussions and waits for them to stop.
	Shutdown(ctx context.Context) error
}

// Options configure a DiscussionService. Zero values select defaults.
type Options struct {
	MaxConcurrent int
	// Retention is how long finished discussions stay readable.
	Retention time.Duration
	// SummaryCandidates enable Summarize when non-empty.
	SummaryCandidates []fallback.Candidate
	Fallback          *fallback.Client
	Attempts          store.AttemptStore
	NewID             func() int64
	// OnEvict is called when a finished discussion is dropped, e.g. to release its stream.
	OnEvict func(id int64)
}

type discussionService struct {
	sequencer   *discussion.Sequencer
	broadcaster broadcast.Broadcaster
	opts        Options
	slots       chan struct{}
	now         func() time.Time

	mu           sync.Mutex
	discussions  map[int64]*entry
	running      sync.WaitGroup
	shuttingDown bool
}

// entry is the service's view of one discussion. The sequencer owns the authoritative state
// while running; entry holds a snapshot fed by its events.
type entry struct {
	mu     sync.Mutex
	state  *model.DiscussionState
	cancel context.CancelFunc
	done   chan struct{}

	summaryMu sync.Mutex
	summary   *model.Summary
}

func NewDiscussionService(backend discussion.Backend, personas *persona.Catalog, b broadcast.Broadcaster, opts Options) DiscussionService {
	if opts.MaxConcurrent <= 0 {
		opts.MaxConcurrent = defaultConcurrency
	}
	if opts.Retention <= 0 {
		opts.Retention = defaultRetention
	}
	if opts.Fallback == nil {
		opts.Fallback = fallback.New()
	}
	if opts.NewID == nil {
		opts.NewID = id.New
	}
	if opts.Attempts == nil {
		opts.Attempts = store.NewNopAttemptStore()
	}
	if b == nil {
		b = broadcast.Nop{}
	}

	s := &discussionService{
		opts:        opts,
		slots:       make(chan struct{}, opts.MaxConcurrent),
		now:         func() time.Time { return time.Now().UTC() },
		discussions: make(map[int64]*entry),
	}
	// The tracker runs first so a subscriber reacting to an event already sees it in Get.
	s.broadcaster = broadcast.Multi{tracker{s}, b}
	s.sequencer = discussion.NewSequencer(backend, personas, s.broadcaster)
	return s
}

func (s *discussionService) Start(ctx context.Context, req StartRequest) (*model.DiscussionState, error) {
	topic, roles, err := validate(req)
	if err != nil {
		return nil, err
	}
	e, runCtx, err := s.register(context.WithoutCancel(ctx), topic, roles)
	if err != nil {
		return nil, err
	}
	snapshot := e.snapshot()

	go s.execute(runCtx, e, topic, roles)
	return snapshot, nil
}

func (s *discussionService) Run(ctx context.Context, req StartRequest) (*model.DiscussionState, error) {
	topic, roles, err := validate(req)
	if err != nil {
		return nil, err
	}
	e, runCtx, err := s.register(ctx, topic, roles)
	if err != nil {
		return nil, err
	}
	s.execute(runCtx, e, topic, roles)
	return e.snapshot(), nil
}

func (s *discussionService) register(parent context.Context, topic string, roles []model.Role) (*entry, context.Context, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.shuttingDown {
		return nil, nil, ErrServiceShuttingDown
	}
	select {
	case s.slots <- struct{}{}:
	default:
		return nil, nil, ErrTooManyDiscussions
	}

	id := s.opts.NewID()
	ctx, cancel := context.WithCancel(parent)
	ctx = logger.WithLogFields(ctx, logger.LogFields{DiscussionID: &id})

	e := &entry{
		state: &model.DiscussionState{
			ID:        id,
			Topic:     topic,
			Roles:     roles,
			Turns:     []model.Turn{},
			Status:    model.DiscussionStatusPending,
			StartedAt: s.now(),
		},
		cancel: cancel,
		done:   make(chan struct{}),
	}
	s.discussions[id] = e
	s.running.Add(1)
	return e, ctx, nil
}

func (s *discussionService) execute(ctx context.Context, e *entry, topic string, roles []model.Role) {
	id := e.snapshot().ID
	defer func() {
		if v := recover(); v != nil {
			slog.ErrorContext(ctx, "discussion panicked", "panic", v, "stack", string(debug.Stack()))
			s.abort(ctx, e, v)
		}
		e.cancel()
		close(e.done)
		<-s.slots
		s.running.Done()
		time.AfterFunc(s.opts.Retention, func() { s.evict(id) })
	}()

	final := s.sequencer.Run(ctx, id, topic, roles)

	e.mu.Lock()
	e.state = final.Clone()
	e.mu.Unlock()
}

// abort fails a discussion whose run panicked, naming the role that was in flight.
func (s *discussionService) abort(ctx context.Context, e *entry, v any) {
	state := e.snapshot()
	if state.Status.IsTerminal() {
		return
	}
	var role model.Role
	if n := len(state.Turns); n < len(state.Roles) {
		role = state.Roles[n]
	}
	event := model.Event{
		Type:         model.EventDiscussionFailed,
		DiscussionID: state.ID,
		Role:         role,
		Index:        len(state.Turns),
		Failure: &model.DiscussionFailure{
			Role:    role,
			Reason:  discussion.ReasonInternal,
			Message: "discussion stopped unexpectedly",
		},
		At: s.now(),
	}

	// A broadcaster may panic again; the entry still ends failed.
	defer func() {
		if r := recover(); r != nil {
			slog.ErrorContext(ctx, "broadcasting discussion failure panicked", "panic", r)
			e.apply(event)
		}
		e.mu.Lock()
		e.state.Err = &discussion.PanicError{Value: v}
		e.mu.Unlock()
	}()
	if err := s.broadcaster.Publish(context.WithoutCancel(ctx), state.ID, event); err != nil {
		slog.WarnContext(ctx, "broadcasting discussion failure failed", "error", err)
	}
}

func (s *discussionService) evict(id int64) {
	s.mu.Lock()
	delete(s.discussions, id)
	s.mu.Unlock()
	if s.opts.OnEvict != nil {
		s.opts.OnEvict(id)
	}
}

func (s *discussionService) lookup(id int64) (*entry, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	e, ok := s.discussions[id]
	if !ok {
		return nil, ErrNotFound
	}
	return e, nil
}

func (s *discussionService) Get(_ context.Context, id int64) (*model.DiscussionState, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	return e.snapshot(), nil
}

func (s *discussionService) Cancel(ctx context.Context, id int64) (*model.DiscussionState, error) {
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}
	snapshot := e.snapshot()
	if !snapshot.Status.IsTerminal() {
		slog.InfoContext(ctx, "cancelling discussion", "discussion_id", id)
		e.cancel()
	}
	return snapshot, nil
}

func (s *discussionService) Summarize(ctx context.Context, id int64) (*model.Summary, error) {
	if len(s.opts.SummaryCandidates) == 0 {
		return nil, ErrSummaryDisabled
	}
	e, err := s.lookup(id)
	if err != nil {
		return nil, err
	}

	e.summaryMu.Lock()
	defer e.summaryMu.Unlock()
	if e.summary != nil {
		return e.summary, nil
	}
	state := e.snapshot()
	if state.Status != model.DiscussionStatusCompleted {
		return nil, ErrNotCompleted
	}

	ctx = logger.WithLogFields(ctx, logger.LogFields{DiscussionID: &id, Component: "boardroom.service.summary"})
	prompt := discussion.BuildSummaryPrompt(state.Topic, state.Turns)
	res, err := fallback.Generate[extract.SummaryPayload](ctx, s.opts.Fallback, prompt, s.opts.SummaryCandidates)
	if err != nil {
		return nil, fmt.Errorf("summarising discussion %d: %w", id, err)
	}

	e.summary = &model.Summary{
		DiscussionID: id,
		Summary:      res.Value.Summary,
		Decisions:    res.Value.Decisions,
		ActionItems:  res.Value.ActionItems,
		Backend:      res.Candidate,
		CreatedAt:    s.now(),
	}
	slog.InfoContext(ctx, "discussion summarised", "produced_by", res.Candidate, "decisions", len(res.Value.Decisions))
	return e.summary, nil
}

func (s *discussionService) Attempts(ctx context.Context, id int64) ([]model.GenerationAttempt, error) {
	attempts, err := s.opts.Attempts.ListByDiscussion(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("listing attempts for discussion %d: %w", id, err)
	}
	return attempts, nil
}

func (s *discussionService) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.shuttingDown = true
	for _, e := range s.discussions {
		e.cancel()
	}
	s.mu.Unlock()

	done := make(chan struct{})
	go func() {
		s.running.Wait()
		close(done)
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		return fmt.Errorf("waiting for discussions: %w", ctx.Err())
	}
}

func (e *entry) snapshot() *model.DiscussionState {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.state.Clone()
}

// apply folds a published event into the snapshot.
func (e *entry) apply(event model.Event) {
	e.mu.Lock()
	defer e.mu.Unlock()

	st := e.state
	switch event.Type {
	case model.EventTurnStarted:
		st.Status = model.DiscussionStatusInProgress
	case model.EventTurnCompleted:
		if event.Turn != nil && event.Turn.SequenceIndex == len(st.Turns) {
			st.Turns = append(st.Turns, *event.Turn)
		}
	case model.EventDiscussionCompleted:
		at := event.At
		st.Status = model.DiscussionStatusCompleted
		st.CompletedAt = &at
	case model.EventDiscussionFailed:
		at := event.At
		st.Status = model.DiscussionStatusFailed
		st.Failure = event.Failure
		st.CompletedAt = &at
	}
}

// tracker keeps entry snapshots current as the sequencer publishes.
type tracker struct {
	s *discussionService
}

func (t tracker) Publish(_ context.Context, discussionID int64, event model.Event) error {
	e, err := t.s.lookup(discussionID)
	if err != nil {
		return nil
	}
	e.apply(event)
	return nil
}

func validate(req StartRequest) (string, []model.Role, error) {
	fields := map[string]string{}

	topic := req.Topic
	switch {
	case strings.TrimSpace(topic) == "":
		fields["topic"] = "is required"
	case len(topic) > maxTopicLength:
		fields["topic"] = fmt.Sprintf("must be at most %d characters", maxTopicLength)
	}

	var roles []model.Role
	switch {
	case len(req.Roles) == 0:
		fields["roles"] = "at least one role is required"
	case len(req.Roles) > maxRoles:
		fields["roles"] = fmt.Sprintf("at most %d roles are allowed", maxRoles)
	default:
		parsed, err := model.ParseRoles(req.Roles)
		if err != nil {
			fields["roles"] = err.Error()
		}
		roles = parsed
	}

	if len(fields) > 0 {
		return "", nil, &ValidationError{Fields: fields}
	}
	return topic, roles, nil
}
