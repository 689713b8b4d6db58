package model

import "time"

type DiscussionStatus string

const (
	DiscussionStatusPending    DiscussionStatus = "pending"
	DiscussionStatusInProgress DiscussionStatus = "in_progress"
	DiscussionStatusCompleted  DiscussionStatus = "completed"
	DiscussionStatusFailed     DiscussionStatus = "failed"
)

func (s DiscussionStatus) IsTerminal() bool {
	return s == DiscussionStatusCompleted || s == DiscussionStatusFailed
}

// Turn is one role's contribution. Turns are created once and never mutated.
type Turn struct {
	Role          Role      `json:"role"`
	Text          string    `json:"text"`
	KeyPoints     []string  `json:"key_points,omitempty"`
	SequenceIndex int       `json:"sequence_index"`
	Backend       string    `json:"backend,omitempty"`
	CreatedAt     time.Time `json:"created_at"`
}

// DiscussionFailure describes why a discussion stopped.
type DiscussionFailure struct {
	Role    Role     `json:"role,omitempty"`
	Reason  string   `json:"reason"`
	Message string   `json:"message"`
	Causes  []string `json:"causes,omitempty"`
}

type DiscussionState struct {
	ID          int64              `json:"id,string"`
	Topic       string             `json:"topic"`
	Roles       []Role             `json:"roles"`
	Turns       []Turn             `json:"turns"`
	Status      DiscussionStatus   `json:"status"`
	Failure     *DiscussionFailure `json:"failure,omitempty"`
	Err         error              `json:"-"`
	StartedAt   time.Time          `json:"started_at"`
	CompletedAt *time.Time         `json:"completed_at,omitempty"`
}

// Clone returns a copy that shares no mutable slices with s.
func (s *DiscussionState) Clone() *DiscussionState {
	if s == nil {
		return nil
	}
	out := *s
	out.Roles = append([]Role(nil), s.Roles...)
	out.Turns = append([]Turn(nil), s.Turns...)
	if s.Failure != nil {
		f := *s.Failure
		f.Causes = append([]string(nil), s.Failure.Causes...)
		out.Failure = &f
	}
	if s.CompletedAt != nil {
		t := *s.CompletedAt
		out.CompletedAt = &t
	}
	return &out
}

// Summary is the post-discussion digest generated from the completed turns.
type Summary struct {
	DiscussionID int64     `json:"discussion_id,string"`
	Summary      string    `json:"summary"`
	Decisions    []string  `json:"decisions"`
	ActionItems  []string  `json:"action_items"`
	Backend      string    `json:"backend"`
	CreatedAt    time.Time `json:"created_at"`
}
