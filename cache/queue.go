package cache

import (
	"context"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"
)

const queueKey = "punishlog:action_queue"

// Action kinds understood by the scheduler's queue drain.
const (
	ActionDeleteMessage = "delete_message"
	ActionEditMessage   = "edit_message"
)

// Action is a deferred Discord operation. The queue buffers work that should
// not run inline (forum cleanup deletions, retried edits); it never drives
// the punishment workflows themselves.
type Action struct {
	Kind      string    `json:"kind"`
	ChannelID string    `json:"channelId"`
	MessageID string    `json:"messageId"`
	QueuedAt  time.Time `json:"queuedAt"`
	NotBefore time.Time `json:"notBefore,omitempty"` // grace delay, zero = immediately
}

// Enqueue pushes an action onto the queue. A disabled provider drops it; the
// queue is best effort by design.
func (c *Client) Enqueue(ctx context.Context, action Action) {
	if !c.enabled {
		return
	}
	payload, err := sonic.Marshal(action)
	if err != nil {
		c.logger.Error("Failed to marshal queued action", zap.Error(err))
		return
	}
	err = c.client.Do(ctx, c.client.B().Lpush().Key(queueKey).Element(string(payload)).Build()).Error()
	if err != nil {
		c.logger.Warn("Failed to enqueue action", zap.Error(err))
	}
}

// Dequeue pops the oldest action, returning false when the queue is empty or
// the provider is disabled.
func (c *Client) Dequeue(ctx context.Context) (Action, bool) {
	if !c.enabled {
		return Action{}, false
	}
	payload, err := c.client.Do(ctx, c.client.B().Rpop().Key(queueKey).Build()).ToString()
	if err != nil {
		return Action{}, false
	}
	var action Action
	if err := sonic.Unmarshal([]byte(payload), &action); err != nil {
		c.logger.Error("Failed to unmarshal queued action", zap.Error(err))
		return Action{}, false
	}
	return action, true
}

// Requeue puts an action back at the consuming end, used when its grace
// delay has not passed yet.
func (c *Client) Requeue(ctx context.Context, action Action) {
	if !c.enabled {
		return
	}
	payload, err := sonic.Marshal(action)
	if err != nil {
		c.logger.Error("Failed to marshal queued action", zap.Error(err))
		return
	}
	err = c.client.Do(ctx, c.client.B().Rpush().Key(queueKey).Element(string(payload)).Build()).Error()
	if err != nil {
		c.logger.Warn("Failed to requeue action", zap.Error(err))
	}
}

// QueueLen reports the queue depth for the admin queue command.
func (c *Client) QueueLen(ctx context.Context) int {
	if !c.enabled {
		return 0
	}
	n, err := c.client.Do(ctx, c.client.B().Llen().Key(queueKey).Build()).ToInt64()
	if err != nil {
		c.logger.Warn("Failed to read queue length", zap.Error(err))
		return 0
	}
	return int(n)
}
