package model

import "time"

type AttemptOutcome string

const (
	AttemptOutcomeSuccess AttemptOutcome = "success"
	AttemptOutcomeFailure AttemptOutcome = "failure"
)

// GenerationAttempt records one backend candidate invocation for analytics.
type GenerationAttempt struct {
	ID           int64
	DiscussionID *int64
	Role         *string
	Candidate    string
	Position     int
	Outcome      AttemptOutcome
	FailureKind  *string
	Error        *string
	LatencyMs    int64
	CreatedAt    time.Time
}
