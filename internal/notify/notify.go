// Package notify persists user notifications and pushes them to the user's
// live sessions. Persistence always happens first; the push is best effort.
package notify

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"consultlaw-api/internal/metrics"
	"consultlaw-api/internal/model"
	"consultlaw-api/internal/realtime"
)

type Repository interface {
	CreateNotification(ctx context.Context, n *model.Notification) error
	ListNotifications(ctx context.Context, userID string) ([]model.Notification, error)
	MarkNotificationRead(ctx context.Context, id, userID string) error
}

type Dispatcher struct {
	repo    Repository
	bc      Broadcaster
	log     logrus.FieldLogger
	metrics *metrics.Metrics
	now     func() time.Time
}

type Option func(*Dispatcher)

func WithClock(now func() time.Time) Option {
	return func(d *Dispatcher) { d.now = now }
}

func New(repo Repository, bc Broadcaster, log logrus.FieldLogger, m *metrics.Metrics, opts ...Option) *Dispatcher {
	d := &Dispatcher{repo: repo, bc: bc, log: log, metrics: m, now: time.Now}
	for _, o := range opts {
		o(d)
	}
	return d
}

// Notify stores one notification for userID and pushes it to every open
// session of that user. The returned error only reflects persistence.
func (d *Dispatcher) Notify(ctx context.Context, userID, content string) (*model.Notification, error) {
	if userID == "" {
		return nil, model.Errorf(model.ErrValidation, "notification recipient is required")
	}
	if strings.TrimSpace(content) == "" {
		return nil, model.Errorf(model.ErrValidation, "notification content is required")
	}
	n := &model.Notification{
		ID:        uuid.New().String(),
		UserID:    userID,
		Content:   content,
		Timestamp: d.now().UTC(),
	}
	if err := d.repo.CreateNotification(ctx, n); err != nil {
		return nil, fmt.Errorf("persist notification: %w", err)
	}
	d.metrics.NotificationsPersisted.Inc()
	d.log.WithFields(logrus.Fields{"user": userID, "notification": n.ID}).Debug("notification stored")

	d.bc.Broadcast(ctx, userID, realtime.NotificationFrame(n))
	return n, nil
}

// Push sends an arbitrary frame to userID's sessions without storing anything.
func (d *Dispatcher) Push(ctx context.Context, userID string, env realtime.Envelope) {
	d.bc.Broadcast(ctx, userID, env)
}

// List returns the caller's notifications, newest first.
func (d *Dispatcher) List(ctx context.Context, actor model.Identity) ([]model.Notification, error) {
	return d.repo.ListNotifications(ctx, actor.ID)
}

// MarkRead flags one of the caller's notifications as read. Notifications of
// other users are reported as not found.
func (d *Dispatcher) MarkRead(ctx context.Context, actor model.Identity, id string) error {
	if id == "" {
		return model.Errorf(model.ErrValidation, "notification id is required")
	}
	return d.repo.MarkNotificationRead(ctx, id, actor.ID)
}
