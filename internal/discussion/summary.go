package discussion

import (
	"fmt"
	"strings"

	"basegraph.app/boardroom/internal/model"
)

// BuildSummaryPrompt renders the request for a post-discussion digest of turns.
func BuildSummaryPrompt(topic string, turns []model.Turn) string {
	var b strings.Builder
	b.WriteString("Summarise the executive discussion below for the board.\n\nTopic: ")
	b.WriteString(topic)
	b.WriteString("\n\nTranscript:\n")
	for _, t := range turns {
		fmt.Fprintf(&b, "%s said: %s\n", t.Role, t.Text)
	}
	b.WriteString("\nList only decisions the executives actually converged on. Prefix each action item with the role that owns it.\n")
	b.WriteString("Reply with only a JSON object of the form ")
	b.WriteString(`{"summary": "<paragraph>", "decisions": ["<decision>", ...], "action_items": ["<ROLE: item>", ...]}`)
	b.WriteString(".\n")
	return b.String()
}
