// Package realtime keeps track of live client connections and moves frames
// between them and the rest of the service.
//
// Each session has one reader (inbound chat frames) and one writer (queued
// pushes). Pushes never block the caller: a full queue or a closed session
// drops the frame with model.ErrDelivery.
package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"consultlaw-api/internal/model"
)

const (
	TypeChatMessage  = "chat_message"
	TypeNotification = "notification"
	TypeError        = "error"
)

// Envelope is every server to client frame.
type Envelope struct {
	Type    string              `json:"type"`
	Message *model.Message      `json:"message,omitempty"`
	Data    *model.Notification `json:"data,omitempty"`
	Error   string              `json:"error,omitempty"`
}

func ChatFrame(m *model.Message) Envelope {
	return Envelope{Type: TypeChatMessage, Message: m}
}

func NotificationFrame(n *model.Notification) Envelope {
	return Envelope{Type: TypeNotification, Data: n}
}

// Inbound is the only client to server frame: a direct message.
type Inbound struct {
	Recipient string `json:"recipient"`
	Content   string `json:"content"`
}

var (
	ErrSessionClosed = model.Errorf(model.ErrDelivery, "session closed")
	ErrBacklog       = model.Errorf(model.ErrDelivery, "session send queue full")
)

const DefaultQueueSize = 32

type Session struct {
	id       string
	identity model.Identity
	openedAt time.Time

	out  chan Envelope
	done chan struct{}
	once sync.Once
}

func NewSession(identity model.Identity, queue int) *Session {
	if queue <= 0 {
		queue = DefaultQueueSize
	}
	return &Session{
		id:       uuid.New().String(),
		identity: identity,
		openedAt: time.Now(),
		out:      make(chan Envelope, queue),
		done:     make(chan struct{}),
	}
}

func (s *Session) ID() string               { return s.id }
func (s *Session) Identity() model.Identity { return s.identity }
func (s *Session) OpenedAt() time.Time      { return s.openedAt }

// Send queues env for the writer without blocking.
func (s *Session) Send(env Envelope) error {
	select {
	case <-s.done:
		return ErrSessionClosed
	default:
	}
	select {
	case s.out <- env:
		return nil
	case <-s.done:
		return ErrSessionClosed
	default:
		return ErrBacklog
	}
}

// Close is idempotent. Frames still queued are discarded.
func (s *Session) Close() {
	s.once.Do(func() { close(s.done) })
}

func (s *Session) Done() <-chan struct{} { return s.done }

// Outbound delivers queued frames to the writer.
func (s *Session) Outbound() <-chan Envelope { return s.out }
