package store_test

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"basegraph.app/boardroom/common/logger"
	"basegraph.app/boardroom/internal/fallback"
	"basegraph.app/boardroom/internal/model"
	"basegraph.app/boardroom/internal/store"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("AttemptStore", func() {
	var (
		ctx context.Context
		db  *mockDB
		s   store.AttemptStore
	)

	BeforeEach(func() {
		ctx = context.Background()
		db = &mockDB{}
		s = store.NewAttemptStore(db)
	})

	It("inserts one row per attempt", func() {
		created := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
		attempt := &model.GenerationAttempt{
			ID:           11,
			DiscussionID: logger.Ptr(int64(7)),
			Role:         logger.Ptr("CFO"),
			Candidate:    "openai:gpt-4o",
			Position:     1,
			Outcome:      model.AttemptOutcomeFailure,
			FailureKind:  logger.Ptr("timeout"),
			Error:        logger.Ptr("context deadline exceeded"),
			LatencyMs:    60000,
			CreatedAt:    created,
		}

		Expect(s.Create(ctx, attempt)).To(Succeed())

		Expect(db.execSQL).To(HaveLen(1))
		Expect(db.execSQL[0]).To(ContainSubstring("INSERT INTO generation_attempts"))
		args := db.execArgs[0]
		Expect(args).To(HaveLen(10))
		Expect(args[0]).To(Equal(int64(11)))
		Expect(args[3]).To(Equal("openai:gpt-4o"))
		Expect(args[4]).To(Equal(int32(1)))
		Expect(args[5]).To(Equal("failure"))
		Expect(args[9]).To(Equal(created))
	})

	It("wraps database errors", func() {
		db.execFn = func(context.Context, string, ...any) (pgconn.CommandTag, error) {
			return pgconn.CommandTag{}, errors.New("relation does not exist")
		}

		err := s.Create(ctx, &model.GenerationAttempt{})
		Expect(err).To(MatchError(ContainSubstring("insert generation attempt")))
	})

	It("lists the attempts of a discussion", func() {
		created := time.Date(2026, 1, 5, 9, 0, 0, 0, time.UTC)
		rows := &mockRows{rows: [][]any{
			{int64(1), logger.Ptr(int64(7)), logger.Ptr("CEO"), "openai:gpt-4o", int32(0), "failure", logger.Ptr("status"), logger.Ptr("503"), int64(120), created},
			{int64(2), logger.Ptr(int64(7)), logger.Ptr("CEO"), "openai:gpt-4o-mini", int32(1), "success", (*string)(nil), (*string)(nil), int64(80), created},
		}}
		var gotArgs []any
		db.queryFn = func(_ context.Context, _ string, args ...any) (pgx.Rows, error) {
			gotArgs = args
			return rows, nil
		}

		attempts, err := s.ListByDiscussion(ctx, 7)

		Expect(err).NotTo(HaveOccurred())
		Expect(gotArgs).To(Equal([]any{int64(7)}))
		Expect(attempts).To(HaveLen(2))
		Expect(attempts[0].Outcome).To(Equal(model.AttemptOutcomeFailure))
		Expect(*attempts[0].FailureKind).To(Equal("status"))
		Expect(attempts[1].Position).To(Equal(1))
		Expect(attempts[1].FailureKind).To(BeNil())
		Expect(rows.closed).To(BeTrue())
	})

	It("reports iteration errors", func() {
		db.queryFn = func(context.Context, string, ...any) (pgx.Rows, error) {
			return &mockRows{err: errors.New("conn reset")}, nil
		}

		_, err := s.ListByDiscussion(ctx, 7)
		Expect(err).To(MatchError(ContainSubstring("conn reset")))
	})
})

var _ = Describe("AttemptRecorder", func() {
	var (
		attempts *mockAttemptStore
		recorder *store.AttemptRecorder
		nextID   int64
	)

	BeforeEach(func() {
		attempts = &mockAttemptStore{}
		nextID = 100
		recorder = store.NewAttemptRecorder(attempts, func() int64 {
			nextID++
			return nextID
		})
	})

	It("tags attempts with the discussion and role from the context", func() {
		ctx := logger.WithLogFields(context.Background(), logger.LogFields{
			DiscussionID: logger.Ptr(int64(7)),
			Role:         logger.Ptr("CTO"),
		})

		recorder.RecordAttempt(ctx, fallback.Attempt{Candidate: "openai:gpt-4o", Position: 0, Duration: 1500 * time.Millisecond})
		Expect(recorder.Wait(context.Background())).To(Succeed())

		Expect(attempts.rows()).To(HaveLen(1))
		row := attempts.rows()[0]
		Expect(row.ID).To(Equal(int64(101)))
		Expect(*row.DiscussionID).To(Equal(int64(7)))
		Expect(*row.Role).To(Equal("CTO"))
		Expect(row.Outcome).To(Equal(model.AttemptOutcomeSuccess))
		Expect(row.LatencyMs).To(Equal(int64(1500)))
		Expect(row.FailureKind).To(BeNil())
	})

	It("records the failure kind and message", func() {
		recorder.RecordAttempt(context.Background(), fallback.Attempt{
			Candidate: "anthropic:claude",
			Position:  2,
			Failure: &fallback.CandidateFailure{
				Candidate: "anthropic:claude",
				Kind:      fallback.FailureMalformed,
				Err:       errors.New("malformed output: expected a JSON object"),
			},
		})
		Expect(recorder.Wait(context.Background())).To(Succeed())

		row := attempts.rows()[0]
		Expect(row.Outcome).To(Equal(model.AttemptOutcomeFailure))
		Expect(*row.FailureKind).To(Equal("malformed"))
		Expect(*row.Error).To(ContainSubstring("expected a JSON object"))
		Expect(row.DiscussionID).To(BeNil())
	})

	It("swallows store errors", func() {
		attempts.createFn = func(context.Context, *model.GenerationAttempt) error {
			return errors.New("db down")
		}

		Expect(func() {
			recorder.RecordAttempt(context.Background(), fallback.Attempt{Candidate: "openai:gpt-4o"})
		}).NotTo(Panic())
		Expect(recorder.Wait(context.Background())).To(Succeed())
		Expect(attempts.rows()).To(HaveLen(1))
	})

	It("returns before a slow write finishes", func() {
		release := make(chan struct{})
		var (
			writeErr    error
			hasDeadline bool
		)
		attempts.createFn = func(ctx context.Context, _ *model.GenerationAttempt) error {
			<-release
			writeErr = ctx.Err()
			_, hasDeadline = ctx.Deadline()
			return nil
		}
		ctx, cancel := context.WithCancel(context.Background())

		returned := make(chan struct{})
		go func() {
			recorder.RecordAttempt(ctx, fallback.Attempt{Candidate: "openai:gpt-4o"})
			close(returned)
		}()
		Eventually(returned).Should(BeClosed())
		cancel()

		waitCtx, stop := context.WithTimeout(context.Background(), 20*time.Millisecond)
		defer stop()
		Expect(recorder.Wait(waitCtx)).To(MatchError(context.DeadlineExceeded))

		close(release)
		Expect(recorder.Wait(context.Background())).To(Succeed())
		Expect(writeErr).NotTo(HaveOccurred())
		Expect(hasDeadline).To(BeTrue())
	})
})

var _ = Describe("NopAttemptStore", func() {
	It("accepts writes and lists nothing", func() {
		s := store.NewNopAttemptStore()

		Expect(s.Create(context.Background(), &model.GenerationAttempt{})).To(Succeed())
		attempts, err := s.ListByDiscussion(context.Background(), 1)
		Expect(err).NotTo(HaveOccurred())
		Expect(attempts).To(BeEmpty())
	})
})
