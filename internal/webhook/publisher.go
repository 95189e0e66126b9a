package webhook

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/tokentill/tokentill/internal/model"
)

// Publisher creates webhook delivery records when events occur.
type Publisher struct {
	repo   *Repository
	logger *slog.Logger
}

// NewPublisher creates a new webhook publisher.
func NewPublisher(repo *Repository, logger *slog.Logger) *Publisher {
	return &Publisher{
		repo:   repo,
		logger: logger.With("component", "webhook.publisher"),
	}
}

// PublishTransferEvent creates webhook deliveries for a transfer.
// It fans out to the transfer-subscribed endpoints of every affected
// user, the sender's and the receiver's alike.
func (p *Publisher) PublishTransferEvent(ctx context.Context, userIDs []string, transfer *model.Transfer) error {
	payload := model.WebhookPayload{
		EventType: string(model.EventTypeTransfer),
		EventID:   transfer.ID,
		Timestamp: transfer.CreatedAt,
		Data: map[string]any{
			"transfer_id": transfer.ID,
			"from":        transfer.FromAddress,
			"to":          transfer.ToAddress,
			"amount":      transfer.Amount,
			"fee":         transfer.Fee,
		},
	}

	return p.publish(ctx, userIDs, model.EventTypeTransfer, transfer.ID, payload)
}

// PublishAccountEvent creates webhook deliveries for an account
// lifecycle event (created or deactivated).
func (p *Publisher) PublishAccountEvent(ctx context.Context, userID string, eventType model.EventType, account *model.Account) error {
	payload := model.WebhookPayload{
		EventType: string(eventType),
		EventID:   account.ID,
		Timestamp: account.UpdatedAt,
		Data: map[string]any{
			"address":   account.Address,
			"authority": account.Authority,
			"active":    account.Active,
		},
	}

	return p.publish(ctx, []string{userID}, eventType, account.ID, payload)
}

// publish fans a payload out to the subscribed endpoints of every
// listed user. Duplicate and empty user IDs are skipped.
func (p *Publisher) publish(ctx context.Context, userIDs []string, eventType model.EventType, eventID string, payload model.WebhookPayload) error {
	var endpoints []*model.WebhookEndpoint
	seen := make(map[string]bool, len(userIDs))
	for _, userID := range userIDs {
		if userID == "" || seen[userID] {
			continue
		}
		seen[userID] = true

		found, err := p.repo.ListActiveEndpointsByUserAndEvent(ctx, userID, eventType)
		if err != nil {
			return fmt.Errorf("list active endpoints: %w", err)
		}
		endpoints = append(endpoints, found...)
	}

	if len(endpoints) == 0 {
		return nil // No webhooks configured
	}

	// Build payload once, reuse for all endpoints
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("marshal payload: %w", err)
	}

	// Create delivery for each endpoint
	now := time.Now()
	for _, endpoint := range endpoints {
		delivery := &model.WebhookDelivery{
			ID:           ulid.Make().String(),
			EndpointID:   endpoint.ID,
			EventID:      eventID,
			EventType:    eventType,
			PayloadJSON:  string(payloadJSON),
			Status:       model.DeliveryStatusPending,
			AttemptCount: 0,
			MaxAttempts:  DefaultMaxAttempts,
			NextRetryAt:  now, // Immediate delivery
			CreatedAt:    now,
			UpdatedAt:    now,
		}

		if err := p.repo.CreateDelivery(ctx, delivery); err != nil {
			p.logger.Warn("failed to create delivery",
				"endpoint_id", endpoint.ID,
				"event_id", eventID,
				"error", err,
			)
			// Continue with other endpoints
			continue
		}

		p.logger.Debug("webhook delivery created",
			"delivery_id", delivery.ID,
			"endpoint_id", endpoint.ID,
			"event_id", eventID,
		)
	}

	return nil
}
