package broadcast

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"sync"

	"basegraph.app/boardroom/internal/model"
)

const (
	defaultHistory    = 1000
	subscriberBacklog = 64
)

// Hub is an in-process broadcaster and subscriber. It keeps a bounded history per discussion
// so subscribers that connect late can replay from the start.
type Hub struct {
	mu         sync.Mutex
	topics     map[int64]*topic
	maxHistory int
}

type topic struct {
	seq         int64
	history     []Message
	subscribers map[*subscription]struct{}
	done        bool
}

type subscription struct {
	ch     chan Message
	done   chan struct{}
	closed bool
}

func NewHub(maxHistory int) *Hub {
	if maxHistory <= 0 {
		maxHistory = defaultHistory
	}
	return &Hub{
		topics:     make(map[int64]*topic),
		maxHistory: maxHistory,
	}
}

func (h *Hub) topicLocked(id int64) *topic {
	t, ok := h.topics[id]
	if !ok {
		t = &topic{subscribers: make(map[*subscription]struct{})}
		h.topics[id] = t
	}
	return t
}

// Publish never blocks on subscribers. A subscriber whose backlog is full is dropped.
func (h *Hub) Publish(ctx context.Context, discussionID int64, event model.Event) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	t := h.topicLocked(discussionID)
	t.seq++
	msg := Message{ID: strconv.FormatInt(t.seq, 10), Event: event}

	t.history = append(t.history, msg)
	if len(t.history) > h.maxHistory {
		t.history = t.history[len(t.history)-h.maxHistory:]
	}

	for sub := range t.subscribers {
		select {
		case sub.ch <- msg:
		default:
			slog.WarnContext(ctx, "dropping slow discussion subscriber",
				"discussion_id", discussionID, "event_type", event.Type)
			h.closeLocked(t, sub)
			continue
		}
		if event.IsTerminal() {
			h.closeLocked(t, sub)
		}
	}
	if event.IsTerminal() {
		t.done = true
	}
	return nil
}

// Subscribe replays retained events after lastID and then follows new ones. An empty lastID
// replays from the start, like RedisSubscriber; "$" follows only new events.
func (h *Hub) Subscribe(ctx context.Context, discussionID int64, lastID string) (<-chan Message, error) {
	if lastID == "" {
		lastID = FromStart
	}
	after := int64(-1)
	if lastID != "$" {
		n, err := strconv.ParseInt(lastID, 10, 64)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("invalid last_id %q", lastID)
		}
		after = n
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	t := h.topicLocked(discussionID)
	var replay []Message
	if after >= 0 {
		for _, msg := range t.history {
			if n, _ := strconv.ParseInt(msg.ID, 10, 64); n > after {
				replay = append(replay, msg)
			}
		}
	}

	sub := &subscription{
		ch:   make(chan Message, len(replay)+subscriberBacklog),
		done: make(chan struct{}),
	}
	for _, msg := range replay {
		sub.ch <- msg
	}
	if t.done {
		h.closeLocked(t, sub)
		return sub.ch, nil
	}

	t.subscribers[sub] = struct{}{}
	go func() {
		select {
		case <-ctx.Done():
		case <-sub.done:
			return
		}
		h.mu.Lock()
		defer h.mu.Unlock()
		h.closeLocked(t, sub)
	}()
	return sub.ch, nil
}

func (h *Hub) closeLocked(t *topic, sub *subscription) {
	if sub.closed {
		return
	}
	sub.closed = true
	delete(t.subscribers, sub)
	close(sub.ch)
	close(sub.done)
}

// Forget drops the retained history of a discussion and closes its subscribers.
func (h *Hub) Forget(discussionID int64) {
	h.mu.Lock()
	defer h.mu.Unlock()

	t, ok := h.topics[discussionID]
	if !ok {
		return
	}
	for sub := range t.subscribers {
		h.closeLocked(t, sub)
	}
	delete(h.topics, discussionID)
}
