// Package broadcast delivers discussion events to realtime subscribers.
//
// Events published for one discussion reach subscribers in publish order. Delivery is best
// effort to currently connected subscribers; nothing here is durable.
package broadcast

import (
	"context"

	"basegraph.app/boardroom/internal/model"
)

// FromStart asks a subscription to replay every retained event of the discussion.
const FromStart = "0"

// Broadcaster publishes events on a discussion-scoped channel.
type Broadcaster interface {
	Publish(ctx context.Context, discussionID int64, event model.Event) error
}

// Message is one delivered event. ID is an opaque cursor usable to resume a subscription.
// Err is set when the transport failed; the subscription stays open after an error.
type Message struct {
	ID    string
	Event model.Event
	Err   error
}

// Subscriber opens ordered event streams. The returned channel is closed after a terminal
// event has been delivered or when ctx is done.
type Subscriber interface {
	Subscribe(ctx context.Context, discussionID int64, lastID string) (<-chan Message, error)
}

// Multi fans one publish out to several broadcasters. All are attempted; the first error
// is returned.
type Multi []Broadcaster

func (m Multi) Publish(ctx context.Context, discussionID int64, event model.Event) error {
	var first error
	for _, b := range m {
		if err := b.Publish(ctx, discussionID, event); err != nil && first == nil {
			first = err
		}
	}
	return first
}

// Nop drops every event.
type Nop struct{}

func (Nop) Publish(context.Context, int64, model.Event) error { return nil }
