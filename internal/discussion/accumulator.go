package discussion

import (
	"fmt"
	"strings"

	"basegraph.app/boardroom/internal/model"
	"basegraph.app/boardroom/internal/persona"
)

// OutOfOrderAppendError means a turn was appended for a role other than the next one
// in the configured sequence. It indicates a programming error.
type OutOfOrderAppendError struct {
	Index    int
	Expected model.Role // empty when every role has already spoken
	Got      model.Role
}

func (e *OutOfOrderAppendError) Error() string {
	if e.Expected == "" {
		return fmt.Sprintf("turn %d appended for %s after the last role", e.Index, e.Got)
	}
	return fmt.Sprintf("turn %d appended for %s, expected %s", e.Index, e.Got, e.Expected)
}

// Accumulator holds the shared context of one discussion: its topic and the turns produced
// so far. It is owned by a single sequencer run.
type Accumulator struct {
	personas *persona.Catalog
	topic    string
	roles    []model.Role
	turns    []model.Turn
}

func NewAccumulator(personas *persona.Catalog, topic string, roles []model.Role) *Accumulator {
	return &Accumulator{
		personas: personas,
		topic:    topic,
		roles:    append([]model.Role(nil), roles...),
		turns:    make([]model.Turn, 0, len(roles)),
	}
}

// BuildPrompt renders the prompt for role given the turns before it. It depends only on its
// arguments and the persona catalog, so equal inputs give equal prompts.
func (a *Accumulator) BuildPrompt(role model.Role, topic string, prior []model.Turn) string {
	p := a.personas.Get(role)

	var b strings.Builder
	fmt.Fprintf(&b, "You are the %s (%s) taking part in an executive discussion.\n", p.Title, role)
	b.WriteString(strings.TrimSpace(p.Instructions))
	b.WriteString("\n\nTopic: ")
	b.WriteString(topic)
	b.WriteString("\n\n")

	if len(prior) == 0 {
		b.WriteString("No one has spoken yet. You open the discussion.\n")
	} else {
		b.WriteString("Discussion so far:\n")
		for _, t := range prior {
			fmt.Fprintf(&b, "%s said: %s\n", t.Role, t.Text)
		}
		b.WriteString("\nBuild on what was said. Agree or push back where your role demands it.\n")
	}

	b.WriteString("\nReply with only a JSON object of the form ")
	b.WriteString(`{"text": "<your contribution>", "key_points": ["<point>", ...]}`)
	b.WriteString(".\n")
	return b.String()
}

// Next returns the role and sequence index that speaks next. ok is false once every role
// has spoken.
func (a *Accumulator) Next() (role model.Role, index int, ok bool) {
	index = len(a.turns)
	if index >= len(a.roles) {
		return "", index, false
	}
	return a.roles[index], index, true
}

// NextPrompt builds the prompt for the next role from the turns accumulated so far.
func (a *Accumulator) NextPrompt() (model.Role, string, bool) {
	role, _, ok := a.Next()
	if !ok {
		return "", "", false
	}
	return role, a.BuildPrompt(role, a.topic, a.turns), true
}

// Append records turn. The turn must belong to the next expected role and carry the next
// sequence index.
func (a *Accumulator) Append(turn model.Turn) error {
	expected, index, ok := a.Next()
	if !ok || turn.Role != expected || turn.SequenceIndex != index {
		return &OutOfOrderAppendError{Index: turn.SequenceIndex, Expected: expected, Got: turn.Role}
	}
	a.turns = append(a.turns, turn)
	return nil
}

// Turns returns a copy of the accumulated turns in order.
func (a *Accumulator) Turns() []model.Turn {
	return append([]model.Turn(nil), a.turns...)
}

func (a *Accumulator) Topic() string {
	return a.topic
}
