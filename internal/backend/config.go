package backend

import (
	"fmt"

	"basegraph.app/boardroom/common/llm"
	"basegraph.app/boardroom/core/config"
	"basegraph.app/boardroom/internal/discussion"
	"basegraph.app/boardroom/internal/fallback"
	"basegraph.app/boardroom/internal/poller"
)

// FromConfig builds the discussion backend selected by DISCUSSION_BACKEND. rec, when set,
// receives every chain candidate attempt.
func FromConfig(cfg config.Config, newClient ClientFactory, rec fallback.Recorder) (discussion.Backend, error) {
	switch cfg.Discussion.Backend {
	case config.BackendChain:
		candidates, err := Candidates(cfg, newClient, TurnCandidateOptions(), false)
		if err != nil {
			return nil, err
		}
		opts := []fallback.Option{fallback.WithTimeout(cfg.Discussion.CandidateTimeout)}
		if rec != nil {
			opts = append(opts, fallback.WithRecorder(rec))
		}
		return NewChain(fallback.New(opts...), candidates), nil

	case config.BackendThreads:
		assistants, err := AssistantsFromConfig(cfg.Discussion.AssistantIDs)
		if err != nil {
			return nil, err
		}
		client, err := llm.NewAssistantsClient(llm.Config{
			Provider: "openai",
			APIKey:   cfg.OpenAI.APIKey,
			BaseURL:  cfg.OpenAI.BaseURL,
		})
		if err != nil {
			return nil, fmt.Errorf("creating assistants client: %w", err)
		}
		p := poller.New(client,
			poller.WithInterval(cfg.Discussion.PollInterval),
			poller.WithMaxAttempts(cfg.Discussion.PollMaxAttempts),
		)
		return NewThreads(client, p, assistants), nil

	default:
		return nil, fmt.Errorf("unsupported backend family %q", cfg.Discussion.Backend)
	}
}

// SummaryCandidates builds the summary chain from the same candidate list, skipping
// providers without credentials.
func SummaryCandidates(cfg config.Config, newClient ClientFactory) ([]fallback.Candidate, error) {
	if !cfg.Discussion.SummaryEnabled {
		return nil, nil
	}
	return Candidates(cfg, newClient, SummaryCandidateOptions(), true)
}
