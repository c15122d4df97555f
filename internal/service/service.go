// Package service sequences booking and messaging operations with the
// notifications they cause. A domain error from the booking engine or the
// message checks returns before anything is notified; a notification failure
// is logged and never fails the request that caused it.
package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"consultlaw-api/internal/booking"
	"consultlaw-api/internal/events"
	"consultlaw-api/internal/metrics"
	"consultlaw-api/internal/model"
	"consultlaw-api/internal/notify"
	"consultlaw-api/internal/payment"
	"consultlaw-api/internal/realtime"
	"consultlaw-api/internal/triage"
)

const followUpTimeout = 10 * time.Second

type Messages interface {
	CreateMessage(ctx context.Context, m *model.Message) error
	Conversation(ctx context.Context, a, b string) ([]model.Message, error)
	MarkMessageRead(ctx context.Context, id, recipientID string) error
}

type Users interface {
	UserByID(ctx context.Context, id string) (*model.User, error)
}

type Deps struct {
	Bookings *booking.Engine
	Notifier *notify.Dispatcher
	Messages Messages
	Users    Users
	Payments payment.Provider
	Currency string
	Events   events.Publisher
	Log      logrus.FieldLogger
	Metrics  *metrics.Metrics
	Now      func() time.Time
}

type Service struct {
	bookings *booking.Engine
	notifier *notify.Dispatcher
	messages Messages
	users    Users
	payments payment.Provider
	currency string
	events   events.Publisher
	log      logrus.FieldLogger
	metrics  *metrics.Metrics
	now      func() time.Time
}

func New(d Deps) *Service {
	s := &Service{
		bookings: d.Bookings,
		notifier: d.Notifier,
		messages: d.Messages,
		users:    d.Users,
		payments: d.Payments,
		currency: d.Currency,
		events:   d.Events,
		log:      d.Log,
		metrics:  d.Metrics,
		now:      d.Now,
	}
	if s.now == nil {
		s.now = time.Now
	}
	if s.payments == nil {
		s.payments = payment.Disabled{}
	}
	if s.events == nil {
		s.events = events.NewLog(d.Log)
	}
	return s
}

func (s *Service) Bookings() *booking.Engine { return s.bookings }

func (s *Service) CreateBookingRequest(ctx context.Context, client model.Identity, req booking.Request) (*model.Booking, error) {
	b, err := s.bookings.Create(ctx, client, req)
	if err != nil {
		return nil, err
	}
	ctx, cancel := committed(ctx)
	defer cancel()
	s.notify(ctx, b.LawyerID, fmt.Sprintf("New booking from %s for %s at %s",
		s.displayName(ctx, client.ID), model.FormatDate(b.Date), b.Time))
	s.transitioned(ctx, b, client.ID)
	return b, nil
}

func (s *Service) CancelBookingRequest(ctx context.Context, actor model.Identity, id, reason string) (*model.Booking, error) {
	b, err := s.bookings.Cancel(ctx, actor, id, strings.TrimSpace(reason))
	if err != nil {
		return nil, err
	}
	ctx, cancel := committed(ctx)
	defer cancel()
	shown := b.CancelReason
	if shown == "" {
		shown = "no reason given"
	}
	s.notify(ctx, b.Counterparty(actor.ID), "Booking cancelled: "+shown)
	s.transitioned(ctx, b, actor.ID)
	return b, nil
}

func (s *Service) ConfirmBookingRequest(ctx context.Context, actor model.Identity, id string) (*model.Booking, error) {
	b, err := s.bookings.Confirm(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := committed(ctx)
	defer cancel()
	s.notify(ctx, b.ClientID, fmt.Sprintf("Booking confirmed for %s at %s", model.FormatDate(b.Date), b.Time))
	s.transitioned(ctx, b, actor.ID)
	return b, nil
}

// CompleteElapsed is the periodic sweep that closes out confirmed bookings
// whose slot has passed.
func (s *Service) CompleteElapsed(ctx context.Context) (int, error) {
	done, err := s.bookings.CompleteElapsed(ctx)
	for i := range done {
		s.transitioned(ctx, &done[i], "")
	}
	return len(done), err
}

func (s *Service) SendMessage(ctx context.Context, sender model.Identity, recipientID, content string) (*model.Message, error) {
	recipientID = strings.TrimSpace(recipientID)
	if recipientID == "" {
		return nil, model.Errorf(model.ErrValidation, "recipient is required")
	}
	if recipientID == sender.ID {
		return nil, model.Errorf(model.ErrValidation, "you cannot message yourself")
	}
	if strings.TrimSpace(content) == "" {
		return nil, model.Errorf(model.ErrValidation, "message content is required")
	}
	if _, err := s.users.UserByID(ctx, recipientID); err != nil {
		if errors.Is(err, model.ErrNotFound) {
			return nil, model.Errorf(model.ErrValidation, "unknown recipient %s", recipientID)
		}
		return nil, err
	}

	m := &model.Message{
		ID:          uuid.New().String(),
		SenderID:    sender.ID,
		RecipientID: recipientID,
		Content:     content,
		Timestamp:   s.now().UTC(),
	}
	if err := s.messages.CreateMessage(ctx, m); err != nil {
		return nil, fmt.Errorf("persist message: %w", err)
	}
	ctx, cancel := committed(ctx)
	defer cancel()
	s.notifier.Push(ctx, recipientID, realtime.ChatFrame(m))
	s.notify(ctx, recipientID, "New message from "+s.displayName(ctx, sender.ID))
	return m, nil
}

// HandleInbound serves chat frames arriving on a live session.
func (s *Service) HandleInbound(ctx context.Context, from model.Identity, in realtime.Inbound) error {
	_, err := s.SendMessage(ctx, from, in.Recipient, in.Content)
	return err
}

// Conversation returns the messages exchanged with other, oldest first.
func (s *Service) Conversation(ctx context.Context, actor model.Identity, other string) ([]model.Message, error) {
	if other == "" {
		return nil, model.Errorf(model.ErrValidation, "user is required")
	}
	return s.messages.Conversation(ctx, actor.ID, other)
}

func (s *Service) MarkMessageRead(ctx context.Context, actor model.Identity, id string) error {
	if id == "" {
		return model.Errorf(model.ErrValidation, "message id is required")
	}
	return s.messages.MarkMessageRead(ctx, id, actor.ID)
}

// CreatePaymentIntent charges the booking fee for one of the client's pending
// bookings.
func (s *Service) CreatePaymentIntent(ctx context.Context, client model.Identity, bookingID string) (*payment.Intent, error) {
	if client.Role != model.RoleClient {
		return nil, model.Errorf(model.ErrRole, "only clients can pay for bookings")
	}
	if bookingID == "" {
		return nil, model.Errorf(model.ErrValidation, "booking_id is required")
	}
	b, err := s.bookings.Get(ctx, client, bookingID)
	if err != nil {
		return nil, err
	}
	if b.ClientID != client.ID {
		return nil, model.ErrNotFound
	}
	if b.Status != model.StatusPending {
		return nil, model.Errorf(model.ErrInvalidTransition, "booking already paid or cancelled")
	}
	if b.FeeMinor <= 0 {
		return nil, model.Errorf(model.ErrValidation, "booking has no fee")
	}
	intent, err := s.payments.CreateIntent(ctx, b.FeeMinor, s.currency, map[string]string{"booking_id": b.ID})
	if err != nil {
		return nil, err
	}
	s.log.WithFields(logrus.Fields{"booking": b.ID, "intent": intent.ID}).Info("payment intent created")
	return intent, nil
}

func (s *Service) Triage(description string) (triage.Result, error) {
	if strings.TrimSpace(description) == "" {
		return triage.Result{}, model.Errorf(model.ErrValidation, "description is required")
	}
	return triage.Classify(description), nil
}

// committed returns the context for work that follows a successful write. It
// outlives the caller so that a dropped request still gets its notification.
func committed(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), followUpTimeout)
}

func (s *Service) notify(ctx context.Context, userID, content string) {
	if _, err := s.notifier.Notify(ctx, userID, content); err != nil {
		s.log.WithError(err).WithField("user", userID).Error("notification failed")
	}
}

func (s *Service) transitioned(ctx context.Context, b *model.Booking, actorID string) {
	s.metrics.BookingTransitions.WithLabelValues(string(b.Status)).Inc()
	if err := s.events.Publish(ctx, events.FromBooking(b, actorID, s.now())); err != nil {
		s.log.WithError(err).WithField("booking", b.ID).Warn("booking event not published")
	}
}

func (s *Service) displayName(ctx context.Context, id string) string {
	u, err := s.users.UserByID(ctx, id)
	if err != nil {
		return id
	}
	return u.DisplayName()
}
