package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"time"

	"github.com/sirupsen/logrus"

	"consultlaw-api/internal/metrics"
	"consultlaw-api/internal/model"
)

// Conn is a framed, JSON-speaking connection. *websocket.Conn satisfies it;
// the gRPC stream is adapted to it.
type Conn interface {
	ReadJSON(v any) error
	WriteJSON(v any) error
	Close() error
}

// InboundHandler processes frames a client sends over its session.
type InboundHandler interface {
	HandleInbound(ctx context.Context, from model.Identity, in Inbound) error
}

// DefaultWriterDrain bounds how long a finished session waits for its writer.
const DefaultWriterDrain = 5 * time.Second

type Hub struct {
	reg     *Registry
	handler InboundHandler
	log     logrus.FieldLogger
	metrics *metrics.Metrics
	queue   int
	drain   time.Duration
}

type HubOption func(*Hub)

// WithWriterDrain sets how long Serve waits for a blocked write after the
// reader has finished.
func WithWriterDrain(d time.Duration) HubOption {
	return func(h *Hub) { h.drain = d }
}

func NewHub(reg *Registry, handler InboundHandler, log logrus.FieldLogger, m *metrics.Metrics, opts ...HubOption) *Hub {
	h := &Hub{reg: reg, handler: handler, log: log, metrics: m, queue: DefaultQueueSize, drain: DefaultWriterDrain}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

func (h *Hub) Registry() *Registry { return h.reg }

// Serve runs one authenticated session until the peer goes away or a write
// fails. The session is registered for the whole call and unregistered
// before Serve returns.
func (h *Hub) Serve(ctx context.Context, who model.Identity, conn Conn) error {
	s := NewSession(who, h.queue)
	log := h.log.WithFields(logrus.Fields{"user": who.ID, "session": s.ID()})

	h.reg.Register(who.ID, s)
	h.metrics.SessionsOpen.Set(float64(h.reg.Count()))
	log.Debug("session opened")

	writerDone := make(chan struct{})
	go func() {
		defer close(writerDone)
		h.writeLoop(s, conn, log)
	}()

	err := h.readLoop(ctx, s, who, conn, log)

	h.reg.Unregister(who.ID, s)
	h.metrics.SessionsOpen.Set(float64(h.reg.Count()))
	s.Close()
	conn.Close()
	// a transport whose Close cannot interrupt a write only unblocks once
	// Serve returns
	select {
	case <-writerDone:
	case <-time.After(h.drain):
		log.Warn("writer still blocked, leaving it to the transport")
	}
	log.WithError(err).Debug("session closed")
	return err
}

func (h *Hub) readLoop(ctx context.Context, s *Session, who model.Identity, conn Conn, log logrus.FieldLogger) error {
	for {
		var in Inbound
		err := conn.ReadJSON(&in)
		if err != nil {
			var syntax *json.SyntaxError
			var typ *json.UnmarshalTypeError
			// an empty or cut-off frame decodes as io.ErrUnexpectedEOF
			if errors.As(err, &syntax) || errors.As(err, &typ) || errors.Is(err, io.ErrUnexpectedEOF) {
				h.reject(s, "malformed frame", log)
				continue
			}
			select {
			case <-s.Done():
				// writer gave up first
				return nil
			default:
			}
			return err
		}
		if err := h.handler.HandleInbound(ctx, who, in); err != nil {
			log.WithError(err).Info("inbound frame rejected")
			h.reject(s, PublicError(err), log)
		}
	}
}

func (h *Hub) writeLoop(s *Session, conn Conn, log logrus.FieldLogger) {
	for {
		select {
		case <-s.Done():
			return
		case env := <-s.Outbound():
			if err := conn.WriteJSON(env); err != nil {
				h.metrics.PushesFailed.WithLabelValues(metrics.ReasonRemote).Inc()
				log.WithError(err).Warn("write failed, closing session")
				s.Close()
				conn.Close()
				return
			}
		}
	}
}

func (h *Hub) reject(s *Session, msg string, log logrus.FieldLogger) {
	if err := s.Send(Envelope{Type: TypeError, Error: msg}); err != nil {
		log.WithError(err).Debug("error frame dropped")
	}
}

// PublicError is the text a client may see for err. Domain errors keep their
// detail; anything else is reported generically.
func PublicError(err error) string {
	for _, kind := range []error{
		model.ErrValidation,
		model.ErrRole,
		model.ErrUnavailable,
		model.ErrNotFound,
		model.ErrInvalidTransition,
		model.ErrConflict,
	} {
		if errors.Is(err, kind) {
			return err.Error()
		}
	}
	return "internal error"
}
