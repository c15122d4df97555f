// Package events publishes booking lifecycle events for downstream consumers
// such as mailers and analytics.
package events

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/segmentio/kafka-go"
	"github.com/sirupsen/logrus"

	"consultlaw-api/internal/model"
)

type BookingEvent struct {
	Type      string              `json:"type"`
	BookingID string              `json:"booking_id"`
	ClientID  string              `json:"client_id"`
	LawyerID  string              `json:"lawyer_id"`
	Date      string              `json:"date"`
	Time      string              `json:"time"`
	Status    model.BookingStatus `json:"status"`
	ActorID   string              `json:"actor_id,omitempty"`
	Reason    string              `json:"reason,omitempty"`
	At        time.Time           `json:"at"`
}

// FromBooking builds the event for b entering its current status.
func FromBooking(b *model.Booking, actorID string, at time.Time) BookingEvent {
	return BookingEvent{
		Type:      "booking." + string(b.Status),
		BookingID: b.ID,
		ClientID:  b.ClientID,
		LawyerID:  b.LawyerID,
		Date:      model.FormatDate(b.Date),
		Time:      b.Time.String(),
		Status:    b.Status,
		ActorID:   actorID,
		Reason:    b.CancelReason,
		At:        at.UTC(),
	}
}

type Publisher interface {
	Publish(ctx context.Context, e BookingEvent) error
	Close() error
}

type Kafka struct {
	writer *kafka.Writer
}

// NewKafka returns an asynchronous publisher. Publish does not wait for broker
// acks; a batch the writer gives up on is reported to log.
func NewKafka(brokers []string, topic string, log logrus.FieldLogger) *Kafka {
	return &Kafka{writer: &kafka.Writer{
		Addr:         kafka.TCP(brokers...),
		Topic:        topic,
		Balancer:     &kafka.LeastBytes{},
		RequiredAcks: kafka.RequireOne,
		BatchTimeout: 10 * time.Millisecond,
		Async:        true,
		Completion:   completion(log),
	}}
}

func completion(log logrus.FieldLogger) func([]kafka.Message, error) {
	return func(msgs []kafka.Message, err error) {
		if err == nil {
			return
		}
		for _, m := range msgs {
			log.WithError(err).WithField("booking", string(m.Key)).Warn("booking event dropped")
		}
	}
}

// Publish keys messages by booking so that one booking's events stay ordered.
func (k *Kafka) Publish(ctx context.Context, e BookingEvent) error {
	value, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("marshal event: %w", err)
	}
	if err := k.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(e.BookingID),
		Value: value,
	}); err != nil {
		return fmt.Errorf("produce %s: %w", e.Type, err)
	}
	return nil
}

// Close flushes pending events.
func (k *Kafka) Close() error { return k.writer.Close() }

// Log writes events to the service log; used when no broker is configured.
type Log struct {
	log logrus.FieldLogger
}

func NewLog(log logrus.FieldLogger) *Log { return &Log{log: log} }

func (l *Log) Publish(_ context.Context, e BookingEvent) error {
	l.log.WithFields(logrus.Fields{
		"event":   e.Type,
		"booking": e.BookingID,
		"actor":   e.ActorID,
	}).Info("booking event")
	return nil
}

func (l *Log) Close() error { return nil }
