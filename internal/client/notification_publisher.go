// Package client holds outbound integrations: the NATS event publisher.
package client

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/nats-io/nats.go"
	"github.com/rs/zerolog"
)

// NotificationPublisher publishes claim lifecycle events to NATS for
// consumption by downstream notification and reporting services.
//
// Subject convention: notifications.claims.<event_type>
// Event types: claim_created, claim_status_changed, document_uploaded
//
// All publish operations are non-fatal — errors are logged but never
// propagated to the caller, so notification failures never interrupt
// claim operations.
type NotificationPublisher struct {
	nc  *nats.Conn
	log zerolog.Logger
}

// NotificationEvent is the JSON schema published to NATS.
type NotificationEvent struct {
	EventType string         `json:"event_type"`
	ClaimID   string         `json:"claim_id"`
	ActorID   string         `json:"actor_id"`
	Payload   map[string]any `json:"payload,omitempty"`
}

// NewNotificationPublisher creates a publisher backed by the given NATS
// connection. A nil connection yields a publisher that drops everything.
func NewNotificationPublisher(nc *nats.Conn, log zerolog.Logger) *NotificationPublisher {
	return &NotificationPublisher{nc: nc, log: log}
}

// PublishClaimEvent publishes a claim event.
// Subject: notifications.claims.<eventType>
func (p *NotificationPublisher) PublishClaimEvent(ctx context.Context, eventType, claimID, actorID string, payload map[string]any) {
	if p.nc == nil {
		return
	}

	event := &NotificationEvent{
		EventType: eventType,
		ClaimID:   claimID,
		ActorID:   actorID,
		Payload:   payload,
	}

	data, err := json.Marshal(event)
	if err != nil {
		p.log.Warn().Err(err).Str("event_type", eventType).Msg("notification: failed to marshal event")
		return
	}

	subject := fmt.Sprintf("notifications.claims.%s", eventType)
	if err := p.nc.Publish(subject, data); err != nil {
		p.log.Warn().Err(err).
			Str("subject", subject).
			Str("claim_id", claimID).
			Msg("notification: failed to publish NATS event (non-fatal)")
		return
	}

	p.log.Debug().
		Str("subject", subject).
		Str("claim_id", claimID).
		Msg("notification: event published")
}
