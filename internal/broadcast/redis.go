package broadcast

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"basegraph.app/boardroom/internal/model"
)

const (
	DefaultStreamPrefix = "discussion-stream"

	fieldEvent = "event"
	fieldType  = "type"

	readBlock     = 25 * time.Second
	readCount     = 100
	forgetTimeout = 5 * time.Second
)

// StreamClient is the subset of *redis.Client used for discussion streams.
type StreamClient interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
	XRead(ctx context.Context, a *redis.XReadArgs) *redis.XStreamSliceCmd
	Del(ctx context.Context, keys ...string) *redis.IntCmd
}

// StreamKey names the Redis stream of one discussion.
func StreamKey(prefix string, discussionID int64) string {
	if prefix == "" {
		prefix = DefaultStreamPrefix
	}
	return fmt.Sprintf("%s:%d", prefix, discussionID)
}

// RedisBroadcaster appends each event to a per-discussion Redis stream. Stream order is
// publish order.
type RedisBroadcaster struct {
	client StreamClient
	prefix string
	maxLen int64
}

func NewRedisBroadcaster(client StreamClient, prefix string, maxLen int64) *RedisBroadcaster {
	return &RedisBroadcaster{client: client, prefix: prefix, maxLen: maxLen}
}

func (b *RedisBroadcaster) Publish(ctx context.Context, discussionID int64, event model.Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal %s event: %w", event.Type, err)
	}

	args := &redis.XAddArgs{
		Stream: StreamKey(b.prefix, discussionID),
		Values: map[string]any{
			fieldEvent: string(payload),
			fieldType:  string(event.Type),
		},
	}
	if b.maxLen > 0 {
		args.MaxLen = b.maxLen
		args.Approx = true
	}

	id, err := b.client.XAdd(ctx, args).Result()
	if err != nil {
		return fmt.Errorf("publish %s event: %w", event.Type, err)
	}
	slog.DebugContext(ctx, "published discussion event",
		"discussion_id", discussionID, "event_type", event.Type, "stream_id", id)
	return nil
}

// Forget deletes the discussion's stream once nobody needs to replay it.
func (b *RedisBroadcaster) Forget(discussionID int64) {
	ctx, cancel := context.WithTimeout(context.Background(), forgetTimeout)
	defer cancel()

	stream := StreamKey(b.prefix, discussionID)
	if err := b.client.Del(ctx, stream).Err(); err != nil {
		slog.WarnContext(ctx, "failed to delete discussion stream",
			"discussion_id", discussionID, "stream", stream, "error", err)
		return
	}
	slog.DebugContext(ctx, "deleted discussion stream", "discussion_id", discussionID, "stream", stream)
}

// RedisSubscriber follows a discussion stream with blocking XREAD calls.
type RedisSubscriber struct {
	client StreamClient
	prefix string
	block  time.Duration
}

func NewRedisSubscriber(client StreamClient, prefix string) *RedisSubscriber {
	return &RedisSubscriber{client: client, prefix: prefix, block: readBlock}
}

// Subscribe reads from lastID, defaulting to the start of the stream.
func (s *RedisSubscriber) Subscribe(ctx context.Context, discussionID int64, lastID string) (<-chan Message, error) {
	if lastID == "" {
		lastID = FromStart
	}
	stream := StreamKey(s.prefix, discussionID)
	out := make(chan Message, readCount)

	go func() {
		defer close(out)
		for {
			if ctx.Err() != nil {
				return
			}

			res, err := s.client.XRead(ctx, &redis.XReadArgs{
				Streams: []string{stream, lastID},
				Block:   s.block,
				Count:   readCount,
			}).Result()
			if err != nil {
				if errors.Is(err, redis.Nil) {
					continue
				}
				if ctx.Err() != nil {
					return
				}
				if !send(ctx, out, Message{Err: fmt.Errorf("read %s: %w", stream, err)}) {
					return
				}
				if !sleep(ctx, time.Second) {
					return
				}
				continue
			}

			for _, streamRes := range res {
				for _, xmsg := range streamRes.Messages {
					lastID = xmsg.ID
					msg := decodeMessage(xmsg)
					if !send(ctx, out, msg) {
						return
					}
					if msg.Err == nil && msg.Event.IsTerminal() {
						return
					}
				}
			}
		}
	}()
	return out, nil
}

func decodeMessage(xmsg redis.XMessage) Message {
	msg := Message{ID: xmsg.ID}
	raw, ok := xmsg.Values[fieldEvent].(string)
	if !ok {
		msg.Err = fmt.Errorf("stream entry %s has no %s field", xmsg.ID, fieldEvent)
		return msg
	}
	if err := json.Unmarshal([]byte(raw), &msg.Event); err != nil {
		msg.Err = fmt.Errorf("decode stream entry %s: %w", xmsg.ID, err)
	}
	return msg
}

func send(ctx context.Context, out chan<- Message, msg Message) bool {
	select {
	case out <- msg:
		return true
	case <-ctx.Done():
		return false
	}
}

func sleep(ctx context.Context, d time.Duration) bool {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}
