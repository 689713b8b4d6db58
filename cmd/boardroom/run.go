package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"basegraph.app/boardroom/common/id"
	"basegraph.app/boardroom/common/logger"
	"basegraph.app/boardroom/core/config"
	"basegraph.app/boardroom/internal/backend"
	"basegraph.app/boardroom/internal/discussion"
	"basegraph.app/boardroom/internal/fallback"
	"basegraph.app/boardroom/internal/model"
	"basegraph.app/boardroom/internal/persona"
	"basegraph.app/boardroom/internal/service"
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run one discussion and print each turn as it completes",
	Example: `  boardroom run --topic "Should we expand into Europe next year?" --roles CEO,CFO,CTO
  boardroom run --topic "Q4 budget" --roles cfo,ceo --backend threads --summary`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

var runFlags struct {
	topic   string
	roles   []string
	backend string
	summary bool
	json    bool
}

func init() {
	runCmd.Flags().StringVarP(&runFlags.topic, "topic", "t", "", "discussion topic (required)")
	runCmd.Flags().StringSliceVarP(&runFlags.roles, "roles", "r", []string{"CEO", "CFO", "CTO", "CMO"}, "speaking order, repeats allowed")
	runCmd.Flags().StringVar(&runFlags.backend, "backend", "", "backend family: chain or threads (default: DISCUSSION_BACKEND)")
	runCmd.Flags().BoolVar(&runFlags.summary, "summary", false, "summarise the discussion once it completes")
	runCmd.Flags().BoolVar(&runFlags.json, "json", false, "print events as JSON lines")
	_ = runCmd.MarkFlagRequired("topic")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	cfg, err := config.Load(config.ServiceTypeCLI)
	if err != nil {
		return err
	}
	if runFlags.backend != "" {
		cfg.Discussion.Backend = config.BackendFamily(runFlags.backend)
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	logger.SetupTo(cfg, cmd.ErrOrStderr())
	if err := id.Init(1); err != nil {
		return fmt.Errorf("initializing id generator: %w", err)
	}

	b, err := backend.FromConfig(cfg, nil, nil)
	if err != nil {
		return err
	}
	personas, err := loadPersonas(cfg.Discussion.PersonasFile)
	if err != nil {
		return err
	}

	var summaryCandidates []fallback.Candidate
	if runFlags.summary {
		summaryCandidates, err = backend.SummaryCandidates(cfg, nil)
		if err != nil {
			return err
		}
	}

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	return runDiscussion(ctx, cmd.OutOrStdout(), b, personas, runOptions{
		Topic:             runFlags.topic,
		Roles:             runFlags.roles,
		JSON:              runFlags.json,
		Summary:           runFlags.summary,
		SummaryCandidates: summaryCandidates,
		Fallback:          fallback.New(fallback.WithTimeout(cfg.Discussion.CandidateTimeout)),
	})
}

type runOptions struct {
	Topic             string
	Roles             []string
	JSON              bool
	Summary           bool
	SummaryCandidates []fallback.Candidate
	Fallback          *fallback.Client
	NewID             func() int64
}

// runDiscussion runs one discussion to completion, printing events to out. Interrupting ctx
// stops the discussion after the turn in flight.
func runDiscussion(ctx context.Context, out io.Writer, b discussion.Backend, personas *persona.Catalog, opts runOptions) error {
	svc := service.NewDiscussionService(b, personas, &printer{out: out, json: opts.JSON}, service.Options{
		MaxConcurrent:     1,
		SummaryCandidates: opts.SummaryCandidates,
		Fallback:          opts.Fallback,
		NewID:             opts.NewID,
	})
	defer svc.Shutdown(context.WithoutCancel(ctx)) //nolint:errcheck

	state, err := svc.Run(ctx, service.StartRequest{Topic: opts.Topic, Roles: opts.Roles})
	if err != nil {
		return err
	}
	if state.Status == model.DiscussionStatusFailed {
		return fmt.Errorf("discussion failed: %w", state.Err)
	}
	if !opts.Summary {
		return nil
	}

	summary, err := svc.Summarize(ctx, state.ID)
	if err != nil {
		return fmt.Errorf("summarizing discussion: %w", err)
	}
	return printSummary(out, summary, opts.JSON)
}
