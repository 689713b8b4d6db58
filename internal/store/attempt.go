package store

import (
	"context"
	"fmt"

	"basegraph.app/boardroom/internal/model"
)

const insertAttempt = `
INSERT INTO generation_attempts
    (id, discussion_id, role, candidate, position, outcome, failure_kind, error, latency_ms, created_at)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

const listAttemptsByDiscussion = `
SELECT id, discussion_id, role, candidate, position, outcome, failure_kind, error, latency_ms, created_at
FROM generation_attempts
WHERE discussion_id = $1
ORDER BY created_at, position`

type attemptStore struct {
	db DBTX
}

func NewAttemptStore(db DBTX) AttemptStore {
	return &attemptStore{db: db}
}

func (s *attemptStore) Create(ctx context.Context, a *model.GenerationAttempt) error {
	_, err := s.db.Exec(ctx, insertAttempt,
		a.ID,
		a.DiscussionID,
		a.Role,
		a.Candidate,
		int32(a.Position),
		string(a.Outcome),
		a.FailureKind,
		a.Error,
		a.LatencyMs,
		a.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("insert generation attempt: %w", err)
	}
	return nil
}

func (s *attemptStore) ListByDiscussion(ctx context.Context, discussionID int64) ([]model.GenerationAttempt, error) {
	rows, err := s.db.Query(ctx, listAttemptsByDiscussion, discussionID)
	if err != nil {
		return nil, fmt.Errorf("list generation attempts: %w", err)
	}
	defer rows.Close()

	out := []model.GenerationAttempt{}
	for rows.Next() {
		var (
			a        model.GenerationAttempt
			position int32
			outcome  string
		)
		if err := rows.Scan(
			&a.ID,
			&a.DiscussionID,
			&a.Role,
			&a.Candidate,
			&position,
			&outcome,
			&a.FailureKind,
			&a.Error,
			&a.LatencyMs,
			&a.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan generation attempt: %w", err)
		}
		a.Position = int(position)
		a.Outcome = model.AttemptOutcome(outcome)
		out = append(out, a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("list generation attempts: %w", err)
	}
	return out, nil
}
