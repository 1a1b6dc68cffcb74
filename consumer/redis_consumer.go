package consumer

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

// Event represents a domain event from the stream.
type Event struct {
	// MessageID is the Redis Stream message ID.
	MessageID string
	// EventID is the unique event identifier.
	EventID string
	// EventType is the type of event.
	EventType string
	// Source is the service that produced the event.
	Source string
	// CreatedAt is when the event was created.
	CreatedAt time.Time
	// Payload is the event-specific data.
	Payload json.RawMessage
	// Metadata contains additional context.
	Metadata map[string]string
}

// Consumer consumes events from Redis Streams.
type Consumer struct {
	client    redis.UniversalClient
	config    Config
	handler   *SyncEventHandler
	logger    *slog.Logger
	lastClaim time.Time

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewConsumer creates a new Redis Streams consumer.
func NewConsumer(config Config, client redis.UniversalClient, handler *SyncEventHandler, logger *slog.Logger) *Consumer {
	if logger == nil {
		logger = slog.Default()
	}
	return &Consumer{
		client:  client,
		config:  config,
		handler: handler,
		logger:  logger,
		stop:    make(chan struct{}),
		done:    make(chan struct{}),
	}
}

// Start ensures the consumer group exists and begins consuming in the background.
func (c *Consumer) Start(ctx context.Context) error {
	if !c.config.Enabled {
		c.logger.Info("consumer disabled, not starting")
		close(c.done)
		return nil
	}

	if err := c.ensureConsumerGroup(ctx); err != nil {
		close(c.done)
		return err
	}

	c.logger.Info("starting consumer",
		"stream", c.config.StreamKey,
		"group", c.config.GroupName,
		"consumer", c.config.ConsumerName,
	)

	go c.consumeLoop(ctx)
	return nil
}

// Stop ends the loop, flushes what is buffered and waits for the loop to exit.
func (c *Consumer) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
	<-c.done
}

// IsEnabled returns true if the consumer is enabled.
func (c *Consumer) IsEnabled() bool {
	return c.config.Enabled
}

// ensureConsumerGroup creates the consumer group if it doesn't exist.
func (c *Consumer) ensureConsumerGroup(ctx context.Context) error {
	err := c.client.XGroupCreateMkStream(ctx, c.config.StreamKey, c.config.GroupName, "0").Err()
	if err != nil && !strings.HasPrefix(err.Error(), "BUSYGROUP") {
		return err
	}
	return nil
}

// consumeLoop continuously reads, buffers and flushes events.
func (c *Consumer) consumeLoop(ctx context.Context) {
	defer close(c.done)
	defer c.flush(context.WithoutCancel(ctx))

	for {
		select {
		case <-ctx.Done():
			c.logger.Info("consumer context cancelled, stopping")
			return
		case <-c.stop:
			c.logger.Info("consumer shutdown requested, stopping")
			return
		default:
		}

		if err := c.readAndBuffer(ctx); err != nil && ctx.Err() == nil {
			c.logger.Error("error reading events", "error", err)
			select {
			case <-ctx.Done():
			case <-c.stop:
			case <-time.After(time.Second):
			}
		}
		if c.handler.Ready(time.Now()) {
			c.flush(ctx)
		}
	}
}

// readAndBuffer reclaims idle pending messages when due, then reads new ones.
// The read blocks no longer than the buffered batch may wait.
func (c *Consumer) readAndBuffer(ctx context.Context) error {
	if time.Since(c.lastClaim) >= c.config.ClaimIdleTime {
		c.lastClaim = time.Now()
		claimed, _, err := c.client.XAutoClaim(ctx, &redis.XAutoClaimArgs{
			Stream:   c.config.StreamKey,
			Group:    c.config.GroupName,
			Consumer: c.config.ConsumerName,
			MinIdle:  c.config.ClaimIdleTime,
			Start:    "0-0",
			Count:    c.config.BatchSize,
		}).Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			c.logger.Warn("failed to claim pending messages", "error", err)
		}
		if len(claimed) > 0 {
			c.logger.Info("claimed pending messages", "count", len(claimed))
			c.buffer(ctx, claimed)
		}
	}

	block := c.config.BlockTimeout
	if c.handler.Pending() {
		block = min(block, c.handler.Wait(time.Now()))
	}

	streams, err := c.client.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    c.config.GroupName,
		Consumer: c.config.ConsumerName,
		Streams:  []string{c.config.StreamKey, ">"},
		Count:    c.config.BatchSize,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil
	}
	if err != nil {
		return err
	}

	for _, stream := range streams {
		c.buffer(ctx, stream.Messages)
	}
	return nil
}

func (c *Consumer) buffer(ctx context.Context, messages []redis.XMessage) {
	now := time.Now()
	for _, message := range messages {
		event := parseEvent(message)
		if err := c.handler.Add(event, now); err != nil {
			// A payload that cannot be decoded never will be; drop it.
			c.logger.Error("dropping malformed event",
				"message_id", message.ID,
				"event_type", event.EventType,
				"error", err,
			)
			c.ack(ctx, message.ID)
		}
	}
}

func (c *Consumer) flush(ctx context.Context) {
	acked, err := c.handler.Flush(ctx)
	if err != nil {
		// Unacknowledged messages are claimed again after ClaimIdleTime.
		c.logger.Error("failed to apply event batch", "error", err)
		return
	}
	c.ack(ctx, acked...)
}

func (c *Consumer) ack(ctx context.Context, ids ...string) {
	if len(ids) == 0 {
		return
	}
	if err := c.client.XAck(ctx, c.config.StreamKey, c.config.GroupName, ids...).Err(); err != nil {
		c.logger.Error("failed to acknowledge messages",
			"count", len(ids),
			"error", err,
		)
	}
}

// parseEvent converts a Redis Stream message to an Event.
func parseEvent(message redis.XMessage) Event {
	event := Event{
		MessageID: message.ID,
		Metadata:  make(map[string]string),
	}

	if v, ok := message.Values["event_id"].(string); ok {
		event.EventID = v
	}
	if v, ok := message.Values["event_type"].(string); ok {
		event.EventType = v
	}
	if v, ok := message.Values["source"].(string); ok {
		event.Source = v
	}
	if v, ok := message.Values["created_at"].(string); ok {
		event.CreatedAt, _ = time.Parse(time.RFC3339, v)
	}
	if v, ok := message.Values["payload"].(string); ok {
		event.Payload = json.RawMessage(v)
	}
	if v, ok := message.Values["metadata"].(string); ok {
		_ = json.Unmarshal([]byte(v), &event.Metadata)
	}

	return event
}
