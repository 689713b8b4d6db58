package logger_test

import (
	"bytes"
	"context"
	"log/slog"

	"basegraph.app/boardroom/common/logger"
	"basegraph.app/boardroom/core/config"
	. "github.com/onsi/ginkgo/v2"
	. "github.com/onsi/gomega"
)

var _ = Describe("WithLogFields", func() {
	It("merges fields with newer values winning", func() {
		ctx := logger.WithLogFields(context.Background(), logger.LogFields{
			DiscussionID: logger.Ptr(int64(7)),
			Role:         logger.Ptr("CEO"),
			Component:    "boardroom.discussion.sequencer",
		})
		ctx = logger.WithLogFields(ctx, logger.LogFields{
			Role:      logger.Ptr("CFO"),
			Candidate: logger.Ptr("openai:gpt-4o"),
		})

		fields := logger.GetLogFields(ctx)
		Expect(*fields.DiscussionID).To(Equal(int64(7)))
		Expect(*fields.Role).To(Equal("CFO"))
		Expect(*fields.Candidate).To(Equal("openai:gpt-4o"))
		Expect(fields.Component).To(Equal("boardroom.discussion.sequencer"))
	})

	It("returns empty fields for a bare context", func() {
		Expect(logger.GetLogFields(context.Background())).To(Equal(logger.LogFields{}))
	})
})

var _ = Describe("TraceHandler", func() {
	It("adds context fields to every record", func() {
		var buf bytes.Buffer
		log := slog.New(logger.NewTraceHandler(slog.NewTextHandler(&buf, nil)))
		ctx := logger.WithLogFields(context.Background(), logger.LogFields{
			DiscussionID: logger.Ptr(int64(42)),
			TurnIndex:    logger.Ptr(1),
			Backend:      logger.Ptr("chain"),
		})

		log.InfoContext(ctx, "turn completed")

		Expect(buf.String()).To(ContainSubstring("discussion_id=42"))
		Expect(buf.String()).To(ContainSubstring("turn_index=1"))
		Expect(buf.String()).To(ContainSubstring("backend=chain"))
	})
})

var _ = Describe("Truncate", func() {
	DescribeTable("limits long strings",
		func(in string, n int, want string) {
			Expect(logger.Truncate(in, n)).To(Equal(want))
		},
		Entry("short unchanged", "abc", 5, "abc"),
		Entry("exact unchanged", "abcde", 5, "abcde"),
		Entry("long cut", "abcdef", 3, "abc..."),
	)
})

var _ = Describe("SetupTo", func() {
	var previous *slog.Logger

	BeforeEach(func() {
		previous = slog.Default()
	})

	AfterEach(func() {
		slog.SetDefault(previous)
	})

	It("writes debug text logs in development", func() {
		var buf bytes.Buffer
		logger.SetupTo(config.Config{Env: "development"}, &buf)

		slog.DebugContext(context.Background(), "polling run", "attempt", 3)

		Expect(buf.String()).To(ContainSubstring("level=DEBUG"))
		Expect(buf.String()).To(ContainSubstring("attempt=3"))
	})

	It("writes JSON at info level in production", func() {
		var buf bytes.Buffer
		logger.SetupTo(config.Config{Env: "production"}, &buf)

		slog.DebugContext(context.Background(), "hidden")
		slog.InfoContext(context.Background(), "discussion completed")

		Expect(buf.String()).NotTo(ContainSubstring("hidden"))
		Expect(buf.String()).To(ContainSubstring(`"msg":"discussion completed"`))
	})
})
