package fallback

import (
	"context"

	"basegraph.app/boardroom/common/llm"
)

// CandidateOptions shape how an LLM candidate phrases its request.
type CandidateOptions struct {
	SystemPrompt string
	SchemaName   string
	Schema       any
	MaxTokens    int
	Temperature  *float64
}

type llmCandidate struct {
	client llm.TextClient
	opts   CandidateOptions
}

// NewLLMCandidate adapts a synchronous completion client to a Candidate named
// "<provider>:<model>".
func NewLLMCandidate(client llm.TextClient, opts CandidateOptions) Candidate {
	return &llmCandidate{client: client, opts: opts}
}

func (c *llmCandidate) Name() string {
	return c.client.Provider() + ":" + c.client.Model()
}

func (c *llmCandidate) Invoke(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Complete(ctx, llm.CompletionRequest{
		SystemPrompt: c.opts.SystemPrompt,
		UserPrompt:   prompt,
		SchemaName:   c.opts.SchemaName,
		Schema:       c.opts.Schema,
		MaxTokens:    c.opts.MaxTokens,
		Temperature:  c.opts.Temperature,
	})
	if err != nil {
		return "", err
	}
	return resp.Content, nil
}
