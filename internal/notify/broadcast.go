package notify

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/nats-io/nats.go"
	"github.com/sirupsen/logrus"

	"consultlaw-api/internal/metrics"
	"consultlaw-api/internal/realtime"
)

// Broadcaster pushes a frame to every open session of a user. Delivery is
// best effort; failures are logged and counted, never returned.
type Broadcaster interface {
	Broadcast(ctx context.Context, userID string, env realtime.Envelope)
}

// Local delivers to the sessions registered on this instance.
type Local struct {
	reg     *realtime.Registry
	log     logrus.FieldLogger
	metrics *metrics.Metrics
}

func NewLocal(reg *realtime.Registry, log logrus.FieldLogger, m *metrics.Metrics) *Local {
	return &Local{reg: reg, log: log, metrics: m}
}

func (l *Local) Broadcast(_ context.Context, userID string, env realtime.Envelope) {
	for _, h := range l.reg.SessionsFor(userID) {
		if err := h.Send(env); err != nil {
			reason := metrics.ReasonClosed
			if errors.Is(err, realtime.ErrBacklog) {
				reason = metrics.ReasonBacklog
			}
			l.metrics.PushesFailed.WithLabelValues(reason).Inc()
			l.log.WithError(err).WithFields(logrus.Fields{
				"user":    userID,
				"session": h.ID(),
				"type":    env.Type,
			}).Warn("push dropped")
			continue
		}
		l.metrics.PushesDelivered.WithLabelValues(env.Type).Inc()
	}
}

const subjectPrefix = "consultlaw.user."

// Subject is the NATS subject frames for userID are published on.
func Subject(userID string) string { return subjectPrefix + userID }

// NATS fans frames out through a NATS subject so that every instance delivers
// to the sessions it holds. Each instance subscribes once to all users.
type NATS struct {
	nc    *nats.Conn
	sub   *nats.Subscription
	local *Local
	log   logrus.FieldLogger
}

func NewNATS(nc *nats.Conn, local *Local, log logrus.FieldLogger) (*NATS, error) {
	n := &NATS{nc: nc, local: local, log: log}
	sub, err := nc.Subscribe(subjectPrefix+"*", n.deliver)
	if err != nil {
		return nil, fmt.Errorf("subscribe %s*: %w", subjectPrefix, err)
	}
	n.sub = sub
	return n, nil
}

func (n *NATS) Broadcast(ctx context.Context, userID string, env realtime.Envelope) {
	data, err := json.Marshal(env)
	if err != nil {
		n.log.WithError(err).Error("marshal frame")
		return
	}
	if err := n.nc.Publish(Subject(userID), data); err != nil {
		// still reach whoever is connected here
		n.log.WithError(err).WithField("user", userID).Warn("nats publish failed, delivering locally")
		n.local.Broadcast(ctx, userID, env)
	}
}

func (n *NATS) deliver(msg *nats.Msg) {
	userID := strings.TrimPrefix(msg.Subject, subjectPrefix)
	var env realtime.Envelope
	if err := json.Unmarshal(msg.Data, &env); err != nil {
		n.log.WithError(err).WithField("subject", msg.Subject).Warn("bad frame on bus")
		return
	}
	n.local.Broadcast(context.Background(), userID, env)
}

func (n *NATS) Close() error {
	return n.sub.Unsubscribe()
}
