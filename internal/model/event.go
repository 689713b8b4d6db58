package model

import "time"

type EventType string

const (
	EventTurnStarted         EventType = "turn_started"
	EventTurnCompleted       EventType = "turn_completed"
	EventDiscussionCompleted EventType = "discussion_completed"
	EventDiscussionFailed    EventType = "discussion_failed"
)

// Event is published to realtime subscribers of a discussion.
// Role is set for turn_started and discussion_failed, Turn for turn_completed,
// Failure for discussion_failed.
type Event struct {
	Type         EventType          `json:"type"`
	DiscussionID int64              `json:"discussion_id,string"`
	Role         Role               `json:"role,omitempty"`
	Index        int                `json:"index"`
	Turn         *Turn              `json:"turn,omitempty"`
	Failure      *DiscussionFailure `json:"failure,omitempty"`
	At           time.Time          `json:"at"`
}

func (e Event) IsTerminal() bool {
	return e.Type == EventDiscussionCompleted || e.Type == EventDiscussionFailed
}
