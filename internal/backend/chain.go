// Package backend implements the generation families a discussion can run on.
package backend

import (
	"context"
	"fmt"

	"basegraph.app/boardroom/common/llm"
	"basegraph.app/boardroom/core/config"
	"basegraph.app/boardroom/internal/discussion"
	"basegraph.app/boardroom/internal/extract"
	"basegraph.app/boardroom/internal/fallback"
)

// Chain generates every turn synchronously through an ordered fallback chain.
type Chain struct {
	client     *fallback.Client
	candidates []fallback.Candidate
}

func NewChain(client *fallback.Client, candidates []fallback.Candidate) *Chain {
	return &Chain{client: client, candidates: candidates}
}

func (c *Chain) Name() string {
	return string(config.BackendChain)
}

// NewSession is free: chain candidates keep no per-discussion state.
func (c *Chain) NewSession(context.Context, int64) (discussion.Session, error) {
	return c, nil
}

func (c *Chain) GenerateTurn(ctx context.Context, req discussion.TurnRequest) (discussion.Generation, error) {
	res, err := fallback.Generate[extract.TurnPayload](ctx, c.client, req.Prompt, c.candidates)
	if err != nil {
		return discussion.Generation{}, err
	}
	return discussion.Generation{
		Text:      res.Value.Text,
		KeyPoints: res.Value.KeyPoints,
		Backend:   res.Candidate,
	}, nil
}

// ClientFactory builds a completion client for one candidate.
type ClientFactory func(cfg llm.Config) (llm.TextClient, error)

// Candidates builds the configured fallback chain, most capable first. Candidates whose
// provider has no credentials are skipped when skipUnconfigured is set and are an error
// otherwise.
func Candidates(cfg config.Config, newClient ClientFactory, opts fallback.CandidateOptions, skipUnconfigured bool) ([]fallback.Candidate, error) {
	if newClient == nil {
		newClient = llm.NewTextClient
	}

	out := make([]fallback.Candidate, 0, len(cfg.Discussion.Candidates))
	for _, cand := range cfg.Discussion.Candidates {
		provider := cfg.ProviderFor(cand.Provider)
		if !provider.Enabled() && skipUnconfigured {
			continue
		}
		client, err := newClient(llm.Config{
			Provider:  cand.Provider,
			APIKey:    provider.APIKey,
			BaseURL:   provider.BaseURL,
			Model:     cand.Model,
			MaxTokens: provider.MaxTokens,
		})
		if err != nil {
			return nil, fmt.Errorf("candidate %s: %w", cand.Name(), err)
		}
		out = append(out, fallback.NewLLMCandidate(client, opts))
	}
	return out, nil
}

// TurnCandidateOptions asks candidates for a turn payload.
func TurnCandidateOptions() fallback.CandidateOptions {
	return fallback.CandidateOptions{
		SystemPrompt: "You are an executive in a leadership meeting. Stay in character and answer only with the requested JSON object.",
		SchemaName:   "discussion_turn",
		Schema:       llm.GenerateSchema[extract.TurnPayload](),
		Temperature:  llm.Temp(0.7),
	}
}

// SummaryCandidateOptions asks candidates for a discussion summary payload.
func SummaryCandidateOptions() fallback.CandidateOptions {
	return fallback.CandidateOptions{
		SystemPrompt: "You are the meeting secretary. Summarise faithfully and answer only with the requested JSON object.",
		SchemaName:   "discussion_summary",
		Schema:       llm.GenerateSchema[extract.SummaryPayload](),
		Temperature:  llm.Temp(0.2),
	}
}
