package discussion

import (
	"context"

	"basegraph.app/boardroom/internal/model"
	"basegraph.app/boardroom/internal/persona"
)

// TurnRequest is everything a backend needs to generate one turn.
type TurnRequest struct {
	Role    model.Role
	Index   int
	Persona persona.Persona
	Prompt  string
}

// Generation is the structured output of one turn.
type Generation struct {
	Text      string
	KeyPoints []string
	// Backend names what produced the turn, e.g. "openai:gpt-4o" or "threads:asst_123".
	Backend string
}

// Backend is one generation family. A discussion uses exactly one backend for all its turns.
type Backend interface {
	Name() string
	NewSession(ctx context.Context, discussionID int64) (Session, error)
}

// Session carries per-discussion backend state, such as a provider thread.
type Session interface {
	GenerateTurn(ctx context.Context, req TurnRequest) (Generation, error)
}
