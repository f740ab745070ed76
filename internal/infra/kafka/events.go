package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/IBM/sarama"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/yuanzhaoK/admin-platform-auth/internal/core/domain"
	"github.com/yuanzhaoK/admin-platform-auth/internal/core/port"
	"github.com/yuanzhaoK/admin-platform-auth/internal/infra/config"
)

const schemaVersion = "1.0"

// EventPublisher implements port.EventPublisher using Kafka.
type EventPublisher struct {
	producer *Producer
	logger   *zap.Logger
	appCfg   config.AppSettings
}

// NewEventPublisher constructs a Kafka-backed event publisher.
func NewEventPublisher(producer *Producer, appCfg config.AppSettings, logger *zap.Logger) *EventPublisher {
	return &EventPublisher{producer: producer, appCfg: appCfg, logger: logger}
}

type envelopeMetadata map[string]string

type eventEnvelope struct {
	EventID   string           `json:"event_id"`
	EventType string           `json:"event_type"`
	UserID    string           `json:"user_id,omitempty"`
	Timestamp time.Time        `json:"timestamp"`
	Version   string           `json:"version"`
	Payload   any              `json:"payload"`
	Metadata  envelopeMetadata `json:"metadata,omitempty"`
}

func (p *EventPublisher) publish(ctx context.Context, eventID, eventType, userID string, ts time.Time, payload any) error {
	if ts.IsZero() {
		ts = time.Now().UTC()
	}

	id := eventID
	if id == "" {
		id = uuid.NewString()
	}

	envelope := eventEnvelope{
		EventID:   id,
		EventType: eventType,
		UserID:    userID,
		Timestamp: ts.UTC(),
		Version:   schemaVersion,
		Payload:   payload,
		Metadata: envelopeMetadata{
			"service":     p.appCfg.Name,
			"environment": p.appCfg.Env,
		},
	}

	bytes, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshal event envelope: %w", err)
	}

	message := &sarama.ProducerMessage{
		Topic: p.producer.TopicName(eventType),
		Value: sarama.ByteEncoder(bytes),
	}

	select {
	case p.producer.Producer().Input() <- message:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// PublishLoginSucceeded publishes auth.login.succeeded events.
func (p *EventPublisher) PublishLoginSucceeded(ctx context.Context, event domain.LoginSucceededEvent) error {
	payload := struct {
		UserID    string    `json:"user_id"`
		Identity  string    `json:"identity"`
		Role      string    `json:"role"`
		SessionID string    `json:"session_id"`
		DeviceID  string    `json:"device_id,omitempty"`
		IPAddress string    `json:"ip_address,omitempty"`
		LoggedAt  time.Time `json:"logged_at"`
	}{
		UserID:    event.UserID,
		Identity:  event.Identity,
		Role:      event.Role,
		SessionID: event.SessionID,
		DeviceID:  event.DeviceID,
		IPAddress: event.IP,
		LoggedAt:  event.At.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.login.succeeded", event.UserID, event.At, payload)
}

// PublishLoginFailed publishes auth.login.failed events.
func (p *EventPublisher) PublishLoginFailed(ctx context.Context, event domain.LoginFailedEvent) error {
	payload := struct {
		Identity  string    `json:"identity"`
		Role      string    `json:"role"`
		Reason    string    `json:"reason"`
		IPAddress string    `json:"ip_address,omitempty"`
		Attempts  int       `json:"attempts"`
		FailedAt  time.Time `json:"failed_at"`
	}{
		Identity:  event.Identity,
		Role:      event.Role,
		Reason:    event.Reason,
		IPAddress: event.IP,
		Attempts:  event.Attempts,
		FailedAt:  event.At.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.login.failed", "", event.At, payload)
}

// PublishSessionRevoked publishes auth.session.revoked events.
func (p *EventPublisher) PublishSessionRevoked(ctx context.Context, event domain.SessionRevokedEvent) error {
	payload := struct {
		SessionID string    `json:"session_id"`
		UserID    string    `json:"user_id"`
		Reason    string    `json:"reason"`
		RevokedBy string    `json:"revoked_by"`
		RevokedAt time.Time `json:"revoked_at"`
	}{
		SessionID: event.SessionID,
		UserID:    event.UserID,
		Reason:    event.Reason,
		RevokedBy: event.RevokedBy,
		RevokedAt: event.RevokedAt.UTC(),
	}

	return p.publish(ctx, event.EventID, "auth.session.revoked", event.UserID, event.RevokedAt, payload)
}

var _ port.EventPublisher = (*EventPublisher)(nil)
