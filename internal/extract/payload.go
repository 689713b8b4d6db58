package extract

import (
	"errors"
	"strings"
)

// TurnPayload is the shape a role's turn is generated in.
type TurnPayload struct {
	Text      string   `json:"text" jsonschema:"required,description=What this executive says in the discussion, in first person."`
	KeyPoints []string `json:"key_points" jsonschema:"required,description=Short bullet points summarising the contribution. May be empty."`
}

func (p *TurnPayload) Normalize() error {
	p.Text = strings.TrimSpace(p.Text)
	if p.Text == "" {
		return errors.New("turn text is empty")
	}
	if p.KeyPoints == nil {
		p.KeyPoints = []string{}
	}
	return nil
}

// SummaryPayload is the digest produced once every role has spoken.
type SummaryPayload struct {
	Summary     string   `json:"summary" jsonschema:"required,description=A short neutral summary of the discussion."`
	Decisions   []string `json:"decisions" jsonschema:"required,description=Decisions the executives converged on. May be empty."`
	ActionItems []string `json:"action_items" jsonschema:"required,description=Concrete follow-ups with an owner role where possible. May be empty."`
}

func (p *SummaryPayload) Normalize() error {
	p.Summary = strings.TrimSpace(p.Summary)
	if p.Summary == "" {
		return errors.New("summary is empty")
	}
	if p.Decisions == nil {
		p.Decisions = []string{}
	}
	if p.ActionItems == nil {
		p.ActionItems = []string{}
	}
	return nil
}
