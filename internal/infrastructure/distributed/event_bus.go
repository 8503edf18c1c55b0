package distributed

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"telecall/internal/core/domain"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// EventType represents the type of event
type EventType string

const (
	EventParticipantJoined EventType = "call.participant_joined"
	EventParticipantLeft   EventType = "call.participant_left"
	EventConsultationEnded EventType = "call.consultation_ended"
	EventRecordingStarted  EventType = "call.recording_started"
	EventRecordingStopped  EventType = "call.recording_stopped"
)

const eventsChannel = "telecall:events"

// Event is a call lifecycle notification fanned out over Redis pub/sub
// so billing and audit services can follow calls without polling.
type Event struct {
	Type           EventType             `json:"type"`
	InstanceID     string                `json:"instance_id"`
	Timestamp      time.Time             `json:"timestamp"`
	ConsultationID domain.ConsultationID `json:"consultation_id"`
	ParticipantID  string                `json:"participant_id,omitempty"`
}

// EventBus publishes and consumes call lifecycle events.
type EventBus struct {
	client     *redis.Client
	instanceID string
	logger     *zap.SugaredLogger
	pubsub     *redis.PubSub
}

func NewEventBus(client *redis.Client, instanceID string, logger *zap.SugaredLogger) *EventBus {
	return &EventBus{
		client:     client,
		instanceID: instanceID,
		logger:     logger,
	}
}

// Publish sends an event, stamping instance and time.
func (eb *EventBus) Publish(ctx context.Context, event *Event) error {
	event.InstanceID = eb.instanceID
	event.Timestamp = time.Now()

	data, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	if err := eb.client.Publish(ctx, eventsChannel, data).Err(); err != nil {
		return fmt.Errorf("failed to publish event: %w", err)
	}

	eb.logger.Debugw("published event",
		"type", event.Type,
		"consultation_id", event.ConsultationID,
		"participant_id", event.ParticipantID,
	)
	return nil
}

// Subscribe consumes events until ctx is cancelled, skipping our own.
func (eb *EventBus) Subscribe(ctx context.Context, handler func(*Event) error) error {
	if eb.pubsub != nil {
		return fmt.Errorf("already subscribed")
	}

	eb.pubsub = eb.client.Subscribe(ctx, eventsChannel)
	defer eb.pubsub.Close()

	ch := eb.pubsub.Channel()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case msg := <-ch:
			var event Event
			if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
				eb.logger.Warnw("failed to unmarshal event",
					"error", err,
					"payload", msg.Payload,
				)
				continue
			}

			if event.InstanceID == eb.instanceID {
				continue
			}

			if err := handler(&event); err != nil {
				eb.logger.Warnw("error handling event",
					"type", event.Type,
					"error", err,
				)
			}
		}
	}
}

// ParticipantJoined publishes a join event.
func (eb *EventBus) ParticipantJoined(ctx context.Context, id domain.ConsultationID, participantID string) error {
	return eb.Publish(ctx, &Event{Type: EventParticipantJoined, ConsultationID: id, ParticipantID: participantID})
}

// ParticipantLeft publishes a leave event.
func (eb *EventBus) ParticipantLeft(ctx context.Context, id domain.ConsultationID, participantID string) error {
	return eb.Publish(ctx, &Event{Type: EventParticipantLeft, ConsultationID: id, ParticipantID: participantID})
}

// ConsultationEnded publishes a consultation end event.
func (eb *EventBus) ConsultationEnded(ctx context.Context, id domain.ConsultationID) error {
	return eb.Publish(ctx, &Event{Type: EventConsultationEnded, ConsultationID: id})
}

// RecordingStarted publishes a recording start event.
func (eb *EventBus) RecordingStarted(ctx context.Context, id domain.ConsultationID) error {
	return eb.Publish(ctx, &Event{Type: EventRecordingStarted, ConsultationID: id})
}

// RecordingStopped publishes a recording stop event.
func (eb *EventBus) RecordingStopped(ctx context.Context, id domain.ConsultationID) error {
	return eb.Publish(ctx, &Event{Type: EventRecordingStopped, ConsultationID: id})
}

// Close closes the subscription if any.
func (eb *EventBus) Close() error {
	if eb.pubsub != nil {
		return eb.pubsub.Close()
	}
	return nil
}
