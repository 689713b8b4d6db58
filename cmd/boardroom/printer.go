package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"sync"

	"basegraph.app/boardroom/internal/model"
)

// printer is a broadcaster that writes events for a human, or as JSON lines.
type printer struct {
	mu   sync.Mutex
	out  io.Writer
	json bool
}

func (p *printer) Publish(_ context.Context, _ int64, event model.Event) error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.json {
		return json.NewEncoder(p.out).Encode(event)
	}

	var err error
	switch event.Type {
	case model.EventTurnStarted:
		_, err = fmt.Fprintf(p.out, "[%d] %s is speaking...\n", event.Index+1, event.Role)
	case model.EventTurnCompleted:
		turn := event.Turn
		if turn == nil {
			return nil
		}
		var b strings.Builder
		fmt.Fprintf(&b, "%s: %s\n", turn.Role, turn.Text)
		for _, kp := range turn.KeyPoints {
			fmt.Fprintf(&b, "  - %s\n", kp)
		}
		b.WriteString("\n")
		_, err = io.WriteString(p.out, b.String())
	case model.EventDiscussionCompleted:
		_, err = fmt.Fprintln(p.out, "Discussion completed.")
	case model.EventDiscussionFailed:
		msg := "discussion failed"
		if event.Failure != nil {
			msg = event.Failure.Message
		}
		_, err = fmt.Fprintf(p.out, "Discussion failed: %s\n", msg)
	}
	return err
}

func printSummary(out io.Writer, s *model.Summary, asJSON bool) error {
	if asJSON {
		return json.NewEncoder(out).Encode(s)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "\nSummary\n%s\n", s.Summary)
	writeList(&b, "Decisions", s.Decisions)
	writeList(&b, "Action items", s.ActionItems)
	_, err := io.WriteString(out, b.String())
	return err
}

func writeList(b *strings.Builder, title string, items []string) {
	if len(items) == 0 {
		return
	}
	fmt.Fprintf(b, "\n%s\n", title)
	for _, item := range items {
		fmt.Fprintf(b, "  - %s\n", item)
	}
}
