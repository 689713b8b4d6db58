package llm

import (
	"context"
	"fmt"
	"strings"

	"github.com/openai/openai-go"
)

// RunStatus is the lifecycle state of an asynchronous assistant run.
type RunStatus string

const (
	RunStatusQueued     RunStatus = "queued"
	RunStatusInProgress RunStatus = "in_progress"
	RunStatusCompleted  RunStatus = "completed"
	RunStatusFailed     RunStatus = "failed"
	RunStatusCancelled  RunStatus = "cancelled"
	RunStatusExpired    RunStatus = "expired"
	RunStatusIncomplete RunStatus = "incomplete"
)

// IsTerminal reports whether no further status change is expected.
func (s RunStatus) IsTerminal() bool {
	switch s {
	case RunStatusCompleted, RunStatusFailed, RunStatusCancelled, RunStatusExpired, RunStatusIncomplete:
		return true
	}
	return false
}

// ThreadClient is the thread-based provider family: work is submitted as a run on a thread,
// polled until terminal, and the answer is read back as the thread's latest message.
type ThreadClient interface {
	CreateThread(ctx context.Context) (string, error)
	AddMessage(ctx context.Context, threadID, text string) error
	SubmitRun(ctx context.Context, threadID, assistantID, instructions string) (string, error)
	PollRun(ctx context.Context, threadID, runID string) (RunStatus, error)
	FetchLatestMessage(ctx context.Context, threadID string) (string, error)
}

type assistantsClient struct {
	client openai.Client
}

// NewAssistantsClient creates a ThreadClient backed by the OpenAI Assistants API.
func NewAssistantsClient(cfg Config) (ThreadClient, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("API key is required")
	}
	return &assistantsClient{
		client: openai.NewClient(openAIOptions(cfg.APIKey, cfg.BaseURL)...),
	}, nil
}

func (c *assistantsClient) CreateThread(ctx context.Context) (string, error) {
	thread, err := c.client.Beta.Threads.New(ctx, openai.BetaThreadNewParams{})
	if err != nil {
		return "", wrapOpenAIError("creating thread", err)
	}
	return thread.ID, nil
}

func (c *assistantsClient) AddMessage(ctx context.Context, threadID, text string) error {
	_, err := c.client.Beta.Threads.Messages.New(ctx, threadID, openai.BetaThreadMessageNewParams{
		Role: openai.BetaThreadMessageNewParamsRoleUser,
		Content: openai.BetaThreadMessageNewParamsContentUnion{
			OfString: openai.String(text),
		},
	})
	if err != nil {
		return wrapOpenAIError("adding message", err)
	}
	return nil
}

func (c *assistantsClient) SubmitRun(ctx context.Context, threadID, assistantID, instructions string) (string, error) {
	params := openai.BetaThreadRunNewParams{
		AssistantID: assistantID,
	}
	if instructions != "" {
		params.Instructions = openai.String(instructions)
	}

	run, err := c.client.Beta.Threads.Runs.New(ctx, threadID, params)
	if err != nil {
		return "", wrapOpenAIError("submitting run", err)
	}
	return run.ID, nil
}

func (c *assistantsClient) PollRun(ctx context.Context, threadID, runID string) (RunStatus, error) {
	run, err := c.client.Beta.Threads.Runs.Get(ctx, threadID, runID)
	if err != nil {
		return "", wrapOpenAIError("polling run", err)
	}
	return RunStatus(run.Status), nil
}

func (c *assistantsClient) FetchLatestMessage(ctx context.Context, threadID string) (string, error) {
	page, err := c.client.Beta.Threads.Messages.List(ctx, threadID, openai.BetaThreadMessageListParams{
		Order: openai.BetaThreadMessageListParamsOrderDesc,
		Limit: openai.Int(1),
	})
	if err != nil {
		return "", wrapOpenAIError("listing messages", err)
	}
	// The newest message is the user prompt when the run produced no reply.
	if len(page.Data) == 0 || page.Data[0].Role != openai.MessageRoleAssistant {
		return "", nil
	}

	var text strings.Builder
	for _, part := range page.Data[0].Content {
		if part.Type == "text" {
			text.WriteString(part.Text.Value)
		}
	}
	return text.String(), nil
}
