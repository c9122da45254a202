// Package events publishes profile lifecycle events to Kafka.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/FACorreiaa/gigs-profile-service/config"
	"github.com/FACorreiaa/gigs-profile-service/internal/types"
)

const TypeProfileFinalized = "profile.finalized"

// ProfileFinalized is the payload of a profile.finalized message.
type ProfileFinalized struct {
	EventID              uuid.UUID           `json:"eventId"`
	Type                 string              `json:"type"`
	UserID               uuid.UUID           `json:"userId"`
	Email                string              `json:"email"`
	Status               types.ProfileStatus `json:"status"`
	CompletionPercentage int                 `json:"completionPercentage"`
	OccurredAt           time.Time           `json:"occurredAt"`
}

// Publisher announces profile changes to other services.
type Publisher interface {
	ProfileFinalized(ctx context.Context, p *types.Profile) error
	Close() error
}

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

var (
	_ Publisher = (*KafkaPublisher)(nil)
	_ Publisher = NoopPublisher{}
)

type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
	now    func() time.Time
}

// NewPublisher returns a Kafka publisher, or a NoopPublisher when no broker
// is configured.
func NewPublisher(cfg config.KafkaConfig, logger *slog.Logger) Publisher {
	if len(cfg.Brokers) == 0 {
		logger.Info("Kafka brokers not configured, profile events disabled")
		return NoopPublisher{}
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		MaxAttempts:  3,
		WriteTimeout: cfg.WriteTimeout,
		Compression:  kafka.Snappy,
		Logger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Debug(fmt.Sprintf(msg, args...))
		}),
		ErrorLogger: kafka.LoggerFunc(func(msg string, args ...interface{}) {
			logger.Error(fmt.Sprintf(msg, args...))
		}),
	}
	return newKafkaPublisher(writer, cfg.Topic, logger)
}

func newKafkaPublisher(w messageWriter, topic string, logger *slog.Logger) *KafkaPublisher {
	return &KafkaPublisher{writer: w, topic: topic, logger: logger, now: time.Now}
}

// ProfileFinalized implements Publisher. Messages are keyed by user so a
// user's events stay ordered within a partition.
func (p *KafkaPublisher) ProfileFinalized(ctx context.Context, profile *types.Profile) error {
	ctx, span := otel.Tracer("EventPublisher").Start(ctx, "ProfileFinalized", trace.WithAttributes(
		attribute.String("messaging.system", "kafka"),
		attribute.String("messaging.destination.name", p.topic),
		attribute.String("user.id", profile.UserID.String()),
	))
	defer span.End()

	evt := ProfileFinalized{
		EventID:              uuid.New(),
		Type:                 TypeProfileFinalized,
		UserID:               profile.UserID,
		Email:                profile.Data.String("email"),
		Status:               profile.Status,
		CompletionPercentage: profile.CompletionPercentage,
		OccurredAt:           p.now().UTC(),
	}
	value, err := json.Marshal(evt)
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("encoding %s event: %w", evt.Type, err)
	}

	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(profile.UserID.String()),
		Value: value,
		Headers: []kafka.Header{
			{Key: "event-type", Value: []byte(evt.Type)},
		},
	})
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, "Publish failed")
		return fmt.Errorf("publishing %s event: %w", evt.Type, err)
	}

	p.logger.DebugContext(ctx, "Event published",
		slog.String("type", evt.Type), slog.String("eventID", evt.EventID.String()))
	span.SetStatus(codes.Ok, "Event published")
	return nil
}

func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

// NoopPublisher drops every event.
type NoopPublisher struct{}

func (NoopPublisher) ProfileFinalized(context.Context, *types.Profile) error { return nil }

func (NoopPublisher) Close() error { return nil }
