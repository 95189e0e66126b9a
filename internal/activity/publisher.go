// Package activity provides transfer event capture and processing.
package activity

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tokentill/tokentill/internal/metrics"
)

const (
	// StreamKey is the Redis stream for transfer events.
	StreamKey = "stream:transfer_events"

	// DeadLetterStreamKey is the Redis stream for poison messages.
	DeadLetterStreamKey = "stream:transfer_events:dlq"

	// MaxStreamLen is the approximate max length of the stream.
	MaxStreamLen = 100000

	// PublishTimeout is the max time to wait for Redis publish.
	PublishTimeout = 100 * time.Millisecond
)

// TransferEventPayload is the compressed event format for Redis stream.
type TransferEventPayload struct {
	TransferID string `json:"tid"`         // transfer_id
	From       string `json:"f,omitempty"` // from_address (empty for credits)
	To         string `json:"t"`           // to_address
	Amount     uint64 `json:"a"`           // amount in smallest units
	Fee        uint64 `json:"fee"`         // fee in smallest units
	OccurredAt int64  `json:"ts"`          // Unix milliseconds
}

// Publisher enqueues transfer events to Redis stream.
type Publisher struct {
	redis   *redis.Client
	logger  *slog.Logger
	metrics metrics.Recorder
}

// NewPublisher creates a new activity event publisher.
func NewPublisher(client *redis.Client, logger *slog.Logger, recorder metrics.Recorder) *Publisher {
	if recorder == nil {
		recorder = metrics.NewNoop()
	}
	return &Publisher{
		redis:   client,
		logger:  logger.With("component", "activity.publisher"),
		metrics: recorder,
	}
}

// Publish adds a transfer event to the stream synchronously.
func (p *Publisher) Publish(ctx context.Context, event TransferEventPayload) (string, error) {
	data, err := json.Marshal(event)
	if err != nil {
		return "", fmt.Errorf("marshal event: %w", err)
	}

	result, err := p.redis.XAdd(ctx, &redis.XAddArgs{
		Stream: StreamKey,
		MaxLen: MaxStreamLen,
		Approx: true, // ~MAXLEN for performance
		ID:     "*",  // Auto-generate ID
		Values: map[string]interface{}{
			"payload": string(data),
		},
	}).Result()

	if err != nil {
		return "", fmt.Errorf("xadd: %w", err)
	}

	return result, nil
}

// PublishAsync publishes without blocking the caller.
// Errors are logged but not returned (fire-and-forget).
func (p *Publisher) PublishAsync(event TransferEventPayload) {
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), PublishTimeout)
		defer cancel()

		streamID, err := p.Publish(ctx, event)
		if err != nil {
			p.logger.Warn("failed to publish transfer event",
				"transfer_id", event.TransferID,
				"error", err,
			)
			p.metrics.IncActivityEventPublished("dropped")
			return
		}

		p.logger.Debug("transfer event published",
			"transfer_id", event.TransferID,
			"stream_id", streamID,
		)
		p.metrics.IncActivityEventPublished("success")
	}()
}
