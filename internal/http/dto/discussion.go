package dto

import (
	"time"

	"basegraph.app/boardroom/internal/model"
)

type CreateDiscussionRequest struct {
	Topic string   `json:"topic"`
	Roles []string `json:"roles"`
}

type CreateDiscussionResponse struct {
	ID     int64                  `json:"id,string"`
	Status model.DiscussionStatus `json:"status"`
}

type DiscussionResponse struct {
	ID          int64                    `json:"id,string"`
	Topic       string                   `json:"topic"`
	Roles       []model.Role             `json:"roles"`
	Status      model.DiscussionStatus   `json:"status"`
	Turns       []model.Turn             `json:"turns"`
	Failure     *model.DiscussionFailure `json:"failure,omitempty"`
	StartedAt   time.Time                `json:"started_at"`
	CompletedAt *time.Time               `json:"completed_at,omitempty"`
}

func ToDiscussionResponse(s *model.DiscussionState) *DiscussionResponse {
	turns := s.Turns
	if turns == nil {
		turns = []model.Turn{}
	}
	return &DiscussionResponse{
		ID:          s.ID,
		Topic:       s.Topic,
		Roles:       s.Roles,
		Status:      s.Status,
		Turns:       turns,
		Failure:     s.Failure,
		StartedAt:   s.StartedAt,
		CompletedAt: s.CompletedAt,
	}
}

type SummaryResponse struct {
	DiscussionID int64     `json:"discussion_id,string"`
	Summary      string    `json:"summary"`
	Decisions    []string  `json:"decisions"`
	ActionItems  []string  `json:"action_items"`
	Backend      string    `json:"backend"`
	CreatedAt    time.Time `json:"created_at"`
}

func ToSummaryResponse(s *model.Summary) *SummaryResponse {
	return &SummaryResponse{
		DiscussionID: s.DiscussionID,
		Summary:      s.Summary,
		Decisions:    s.Decisions,
		ActionItems:  s.ActionItems,
		Backend:      s.Backend,
		CreatedAt:    s.CreatedAt,
	}
}

type AttemptResponse struct {
	ID          int64     `json:"id,string"`
	Role        *string   `json:"role,omitempty"`
	Candidate   string    `json:"candidate"`
	Position    int       `json:"position"`
	Outcome     string    `json:"outcome"`
	FailureKind *string   `json:"failure_kind,omitempty"`
	Error       *string   `json:"error,omitempty"`
	LatencyMs   int64     `json:"latency_ms"`
	CreatedAt   time.Time `json:"created_at"`
}

func ToAttemptResponses(attempts []model.GenerationAttempt) []AttemptResponse {
	out := make([]AttemptResponse, len(attempts))
	for i, a := range attempts {
		out[i] = AttemptResponse{
			ID:          a.ID,
			Role:        a.Role,
			Candidate:   a.Candidate,
			Position:    a.Position,
			Outcome:     string(a.Outcome),
			FailureKind: a.FailureKind,
			Error:       a.Error,
			LatencyMs:   a.LatencyMs,
			CreatedAt:   a.CreatedAt,
		}
	}
	return out
}
