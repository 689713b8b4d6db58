package backend

import (
	"context"
	"fmt"

	"basegraph.app/boardroom/core/config"
	"basegraph.app/boardroom/internal/discussion"
	"basegraph.app/boardroom/internal/extract"
	"basegraph.app/boardroom/internal/model"
	"basegraph.app/boardroom/internal/poller"
)

// ThreadClient is the thread side of an assistants provider. Run handling goes through the
// poller.
type ThreadClient interface {
	CreateThread(ctx context.Context) (string, error)
	AddMessage(ctx context.Context, threadID, text string) error
}

// Threads runs each turn as an assistant run on one provider thread per discussion. Each
// role speaks through its own assistant.
type Threads struct {
	client     ThreadClient
	poller     *poller.Poller
	assistants map[model.Role]string
}

func NewThreads(client ThreadClient, p *poller.Poller, assistants map[model.Role]string) *Threads {
	return &Threads{client: client, poller: p, assistants: assistants}
}

// AssistantsFromConfig maps ASSISTANT_ID_<ROLE> values to roles.
func AssistantsFromConfig(ids map[string]string) (map[model.Role]string, error) {
	out := make(map[model.Role]string, len(ids))
	for k, id := range ids {
		role, err := model.ParseRole(k)
		if err != nil {
			return nil, fmt.Errorf("assistant id for %q: %w", k, err)
		}
		out[role] = id
	}
	return out, nil
}

func (t *Threads) Name() string {
	return string(config.BackendThreads)
}

func (t *Threads) NewSession(ctx context.Context, _ int64) (discussion.Session, error) {
	threadID, err := t.client.CreateThread(ctx)
	if err != nil {
		return nil, fmt.Errorf("creating discussion thread: %w", err)
	}
	return &threadSession{threads: t, threadID: threadID}, nil
}

type threadSession struct {
	threads  *Threads
	threadID string
}

func (s *threadSession) GenerateTurn(ctx context.Context, req discussion.TurnRequest) (discussion.Generation, error) {
	assistantID, ok := s.threads.assistants[req.Role]
	if !ok {
		return discussion.Generation{}, fmt.Errorf("no assistant configured for %s", req.Role)
	}

	if err := s.threads.client.AddMessage(ctx, s.threadID, req.Prompt); err != nil {
		return discussion.Generation{}, fmt.Errorf("adding %s prompt to thread: %w", req.Role, err)
	}

	raw, err := s.threads.poller.Run(ctx, s.threadID, assistantID, req.Persona.Instructions)
	if err != nil {
		return discussion.Generation{}, err
	}

	payload, err := extract.Extract[extract.TurnPayload](raw)
	if err != nil {
		return discussion.Generation{}, err
	}
	return discussion.Generation{
		Text:      payload.Text,
		KeyPoints: payload.KeyPoints,
		Backend:   "threads:" + assistantID,
	}, nil
}
