package handler_test

import (
	"context"

	"basegraph.app/boardroom/internal/model"
	"basegraph.app/boardroom/internal/service"
)

type mockDiscussionService struct {
	startFn     func(ctx context.Context, req service.StartRequest) (*model.DiscussionState, error)
	runFn       func(ctx context.Context, req service.StartRequest) (*model.DiscussionState, error)
	getFn       func(ctx context.Context, id int64) (*model.DiscussionState, error)
	cancelFn    func(ctx context.Context, id int64) (*model.DiscussionState, error)
	summarizeFn func(ctx context.Context, id int64) (*model.Summary, error)
	attemptsFn  func(ctx context.Context, id int64) ([]model.GenerationAttempt, error)

	startCount int
	runCount   int
}

func (m *mockDiscussionService) Start(ctx context.Context, req service.StartRequest) (*model.DiscussionState, error) {
	m.startCount++
	if m.startFn != nil {
		return m.startFn(ctx, req)
	}
	return &model.DiscussionState{ID: 1, Status: model.DiscussionStatusPending}, nil
}

func (m *mockDiscussionService) Run(ctx context.Context, req service.StartRequest) (*model.DiscussionState, error) {
	m.runCount++
	if m.runFn != nil {
		return m.runFn(ctx, req)
	}
	return &model.DiscussionState{ID: 1, Status: model.DiscussionStatusCompleted}, nil
}

func (m *mockDiscussionService) Get(ctx context.Context, id int64) (*model.DiscussionState, error) {
	if m.getFn != nil {
		return m.getFn(ctx, id)
	}
	return &model.DiscussionState{ID: id, Status: model.DiscussionStatusInProgress}, nil
}

func (m *mockDiscussionService) Cancel(ctx context.Context, id int64) (*model.DiscussionState, error) {
	if m.cancelFn != nil {
		return m.cancelFn(ctx, id)
	}
	return &model.DiscussionState{ID: id, Status: model.DiscussionStatusInProgress}, nil
}

func (m *mockDiscussionService) Summarize(ctx context.Context, id int64) (*model.Summary, error) {
	if m.summarizeFn != nil {
		return m.summarizeFn(ctx, id)
	}
	return &model.Summary{DiscussionID: id, Summary: "ok", Decisions: []string{}, ActionItems: []string{}}, nil
}

func (m *mockDiscussionService) Attempts(ctx context.Context, id int64) ([]model.GenerationAttempt, error) {
	if m.attemptsFn != nil {
		return m.attemptsFn(ctx, id)
	}
	return nil, nil
}

func (m *mockDiscussionService) Shutdown(context.Context) error { return nil }
