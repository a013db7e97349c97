// Package events publishes appointment lifecycle events to Kafka. Publishing
// is best-effort and happens after the state transition has committed; a
// broker outage never fails a booking.
package events

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"

	"github.com/tutorhq/tutorbook/internal/kafkax"
	"github.com/tutorhq/tutorbook/internal/model"
)

const (
	TypeBooked       = "booking.appointment.booked.v1"
	TypeApproved     = "booking.appointment.approved.v1"
	TypeRejected     = "booking.appointment.rejected.v1"
	TypeCancelled    = "booking.appointment.cancelled.v1"
	TypeRescheduled  = "booking.appointment.rescheduled.v1"
	TypeReminderSent = "booking.reminder.sent.v1"
)

type Publisher struct {
	writer *kafka.Writer
	logger *slog.Logger
}

// NewPublisher returns nil when no brokers are configured; a nil Publisher is
// safe to call and publishes nothing.
func NewPublisher(brokers string, logger *slog.Logger) *Publisher {
	list := kafkax.SplitBrokers(brokers)
	if len(list) == 0 {
		return nil
	}
	writer := &kafka.Writer{
		Addr:         kafka.TCP(list...),
		Balancer:     &kafka.Hash{},
		WriteTimeout: 5 * time.Second,
	}
	return &Publisher{writer: writer, logger: logger}
}

func (p *Publisher) Close() {
	if p != nil && p.writer != nil {
		_ = p.writer.Close()
	}
}

// Publish emits one event keyed by appointment id. The Kafka topic name equals
// the event type.
func (p *Publisher) Publish(ctx context.Context, eventType string, appt model.Appointment) {
	if p == nil || p.writer == nil {
		return
	}

	payload, err := json.Marshal(map[string]any{
		"appointment_id": appt.ID,
		"status":         string(appt.Status),
		"start_time":     appt.Start.UTC().Format(time.RFC3339),
		"reminder_sent":  appt.ReminderSent,
	})
	if err != nil {
		p.logger.Error("event payload encode failed", "event_type", eventType, "err", err)
		return
	}

	msg := kafka.Message{
		Topic: eventType,
		Key:   []byte(appt.ID),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_id", Value: []byte(uuid.NewString())},
			{Key: "event_type", Value: []byte(eventType)},
		},
	}
	msg.Headers = kafkax.InjectTraceHeaders(ctx, msg.Headers)

	go func() {
		writeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := p.writer.WriteMessages(writeCtx, msg); err != nil {
			p.logger.Error("event publish failed", "event_type", eventType, "appointment_id", appt.ID, "err", err)
		}
	}()
}
