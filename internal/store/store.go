// Package store persists generation analytics to Postgres.
package store

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"basegraph.app/boardroom/internal/model"
)

// DBTX is the query surface shared by *pgxpool.Pool and pgx.Tx.
type DBTX interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

// AttemptStore records backend candidate attempts.
type AttemptStore interface {
	Create(ctx context.Context, attempt *model.GenerationAttempt) error
	ListByDiscussion(ctx context.Context, discussionID int64) ([]model.GenerationAttempt, error)
}

type nopAttemptStore struct{}

// NewNopAttemptStore returns a store that keeps nothing, for running without a database.
func NewNopAttemptStore() AttemptStore {
	return nopAttemptStore{}
}

func (nopAttemptStore) Create(context.Context, *model.GenerationAttempt) error { return nil }

func (nopAttemptStore) ListByDiscussion(context.Context, int64) ([]model.GenerationAttempt, error) {
	return []model.GenerationAttempt{}, nil
}
