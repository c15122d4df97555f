package realtime_test

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/sirupsen/logrus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"consultlaw-api/internal/metrics"
	"consultlaw-api/internal/model"
	"consultlaw-api/internal/realtime"
)

var alice = model.Identity{ID: "alice", Role: model.RoleClient}

type fakeHandle struct{ id string }

func (f fakeHandle) ID() string                   { return f.id }
func (f fakeHandle) Send(realtime.Envelope) error { return nil }

func TestRegistryIdempotent(t *testing.T) {
	r := realtime.NewRegistry()
	h := fakeHandle{"s1"}

	r.Register("u1", h)
	r.Register("u1", h)
	if got := len(r.SessionsFor("u1")); got != 1 {
		t.Fatalf("expected 1 session, got %d", got)
	}
	if r.Count() != 1 {
		t.Errorf("count: got %d", r.Count())
	}

	r.Register("u1", fakeHandle{"s2"})
	if got := len(r.SessionsFor("u1")); got != 2 {
		t.Fatalf("expected 2 sessions, got %d", got)
	}

	r.Unregister("u1", h)
	r.Unregister("u1", h)
	r.Unregister("nobody", h)
	if got := len(r.SessionsFor("u1")); got != 1 {
		t.Fatalf("expected 1 session after unregister, got %d", got)
	}
	if r.Count() != 1 {
		t.Errorf("count: got %d", r.Count())
	}
	if got := r.SessionsFor("nobody"); len(got) != 0 {
		t.Errorf("expected empty set, got %v", got)
	}
}

func TestRegistryConcurrent(t *testing.T) {
	r := realtime.NewRegistry()
	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			user := fmt.Sprintf("u%d", i%5)
			h := fakeHandle{fmt.Sprintf("s%d", i)}
			r.Register(user, h)
			_ = r.SessionsFor(user)
			if i%2 == 0 {
				r.Unregister(user, h)
			}
		}(i)
	}
	wg.Wait()
	if r.Count() != 25 {
		t.Errorf("expected 25 sessions left, got %d", r.Count())
	}
}

func TestSessionSend(t *testing.T) {
	s := realtime.NewSession(alice, 1)
	if err := s.Send(realtime.Envelope{Type: "x"}); err != nil {
		t.Fatalf("first send: %v", err)
	}
	if err := s.Send(realtime.Envelope{Type: "y"}); !errors.Is(err, realtime.ErrBacklog) {
		t.Fatalf("expected backlog, got %v", err)
	}
	s.Close()
	s.Close()
	err := s.Send(realtime.Envelope{Type: "z"})
	if !errors.Is(err, realtime.ErrSessionClosed) || !errors.Is(err, model.ErrDelivery) {
		t.Fatalf("expected closed delivery error, got %v", err)
	}
}

// pipeConn is an in-memory Conn.
type pipeConn struct {
	in     chan string
	out    chan string
	closed chan struct{}
	once   sync.Once
}

func newPipe() *pipeConn {
	return &pipeConn{in: make(chan string, 8), out: make(chan string, 8), closed: make(chan struct{})}
}

func (p *pipeConn) ReadJSON(v any) error {
	select {
	case s, ok := <-p.in:
		if !ok {
			return io.EOF
		}
		return json.Unmarshal([]byte(s), v)
	case <-p.closed:
		return io.EOF
	}
}

func (p *pipeConn) WriteJSON(v any) error {
	b, err := json.Marshal(v)
	if err != nil {
		return err
	}
	select {
	case p.out <- string(b):
		return nil
	case <-p.closed:
		return io.ErrClosedPipe
	}
}

func (p *pipeConn) Close() error {
	p.once.Do(func() { close(p.closed) })
	return nil
}

func (p *pipeConn) next(t *testing.T) realtime.Envelope {
	t.Helper()
	select {
	case s := <-p.out:
		var env realtime.Envelope
		if err := json.Unmarshal([]byte(s), &env); err != nil {
			t.Fatalf("decode frame: %v", err)
		}
		return env
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for frame")
	}
	return realtime.Envelope{}
}

type recordingHandler struct {
	mu  sync.Mutex
	got []realtime.Inbound
}

func (r *recordingHandler) HandleInbound(_ context.Context, from model.Identity, in realtime.Inbound) error {
	if in.Recipient == from.ID {
		return model.Errorf(model.ErrValidation, "you cannot message yourself")
	}
	if in.Recipient == "boom" {
		return errors.New("db exploded")
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	r.got = append(r.got, in)
	return nil
}

func (r *recordingHandler) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.got)
}

func newHub(h realtime.InboundHandler) (*realtime.Hub, *metrics.Metrics) {
	log, _ := logtest.NewNullLogger()
	m := metrics.New(prometheus.NewRegistry())
	return realtime.NewHub(realtime.NewRegistry(), h, log, m), m
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met in time")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestHubSessionLifecycle(t *testing.T) {
	hub, m := newHub(&recordingHandler{})
	conn := newPipe()

	done := make(chan error, 1)
	go func() { done <- hub.Serve(context.Background(), alice, conn) }()

	waitFor(t, func() bool { return len(hub.Registry().SessionsFor(alice.ID)) == 1 })
	if got := testutil.ToFloat64(m.SessionsOpen); got != 1 {
		t.Errorf("sessions gauge: got %v", got)
	}

	handle := hub.Registry().SessionsFor(alice.ID)[0]
	n := &model.Notification{ID: "n1", UserID: alice.ID, Content: "hello"}
	if err := handle.Send(realtime.NotificationFrame(n)); err != nil {
		t.Fatalf("send: %v", err)
	}
	env := conn.next(t)
	if env.Type != realtime.TypeNotification || env.Data == nil || env.Data.ID != "n1" {
		t.Fatalf("unexpected frame %+v", env)
	}

	close(conn.in)
	select {
	case err := <-done:
		if err != io.EOF {
			t.Errorf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return")
	}

	if got := hub.Registry().SessionsFor(alice.ID); len(got) != 0 {
		t.Fatalf("session still registered: %v", got)
	}
	if got := testutil.ToFloat64(m.SessionsOpen); got != 0 {
		t.Errorf("sessions gauge: got %v", got)
	}
	if err := handle.Send(realtime.NotificationFrame(n)); !errors.Is(err, realtime.ErrSessionClosed) {
		t.Fatalf("expected closed after unregister, got %v", err)
	}
}

func TestHubInboundFrames(t *testing.T) {
	rec := &recordingHandler{}
	hub, _ := newHub(rec)
	conn := newPipe()
	go hub.Serve(context.Background(), alice, conn)
	defer conn.Close()

	conn.in <- `{"recipient":"bob","content":"hi"}`
	waitFor(t, func() bool { return rec.count() == 1 })

	tests := []struct {
		frame string
		want  string
	}{
		{`{"recipient":"alice","content":"me"}`, "cannot message yourself"},
		{`not json`, "malformed frame"},
		{`{"recipient":"boom","content":"x"}`, "internal error"},
	}
	for _, tt := range tests {
		conn.in <- tt.frame
		env := conn.next(t)
		if env.Type != realtime.TypeError || !strings.Contains(env.Error, tt.want) {
			t.Errorf("%s: unexpected frame %+v", tt.frame, env)
		}
	}
	if rec.count() != 1 {
		t.Errorf("rejected frames must not reach the handler: %d", rec.count())
	}
}

func TestHubConnCloseEndsSession(t *testing.T) {
	hub, _ := newHub(&recordingHandler{})
	conn := newPipe()
	done := make(chan error, 1)
	go func() { done <- hub.Serve(context.Background(), alice, conn) }()
	waitFor(t, func() bool { return hub.Registry().Count() == 1 })

	conn.Close()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("serve did not return")
	}
	if hub.Registry().Count() != 0 {
		t.Error("session not unregistered")
	}
}

// stuckConn never completes a write and ignores Close, like a stream whose
// peer stopped reading.
type stuckConn struct {
	in      chan string
	writing chan struct{}
	release chan struct{}
	once    sync.Once
}

func (c *stuckConn) ReadJSON(v any) error {
	s, ok := <-c.in
	if !ok {
		return io.EOF
	}
	return json.Unmarshal([]byte(s), v)
}

func (c *stuckConn) WriteJSON(any) error {
	c.once.Do(func() { close(c.writing) })
	<-c.release
	return io.ErrClosedPipe
}

func (c *stuckConn) Close() error { return nil }

func TestServeReturnsWhenWriterIsStuck(t *testing.T) {
	log, hook := logtest.NewNullLogger()
	hub := realtime.NewHub(realtime.NewRegistry(), &recordingHandler{}, log,
		metrics.New(prometheus.NewRegistry()), realtime.WithWriterDrain(50*time.Millisecond))
	conn := &stuckConn{in: make(chan string), writing: make(chan struct{}), release: make(chan struct{})}
	defer close(conn.release)

	done := make(chan error, 1)
	go func() { done <- hub.Serve(context.Background(), alice, conn) }()
	waitFor(t, func() bool { return hub.Registry().Count() == 1 })

	for _, h := range hub.Registry().SessionsFor(alice.ID) {
		if err := h.Send(realtime.Envelope{Type: realtime.TypeNotification}); err != nil {
			t.Fatal(err)
		}
	}
	<-conn.writing
	close(conn.in)

	select {
	case err := <-done:
		if err != io.EOF {
			t.Errorf("serve: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("serve waited on a blocked writer")
	}
	if hub.Registry().Count() != 0 {
		t.Error("session not unregistered")
	}
	var warned bool
	for _, e := range hook.AllEntries() {
		warned = warned || e.Level == logrus.WarnLevel
	}
	if !warned {
		t.Error("abandoned writer not logged")
	}
}

func TestWebSocketTransport(t *testing.T) {
	rec := &recordingHandler{}
	hub, _ := newHub(rec)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hub.ServeWebSocket(w, r, alice)
	}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	ws, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer ws.Close()

	waitFor(t, func() bool { return hub.Registry().Count() == 1 })

	if err := ws.WriteJSON(realtime.Inbound{Recipient: "bob", Content: "hello"}); err != nil {
		t.Fatalf("write: %v", err)
	}
	waitFor(t, func() bool { return rec.count() == 1 })

	for _, frame := range []string{"", `{"recipient":`} {
		if err := ws.WriteMessage(websocket.TextMessage, []byte(frame)); err != nil {
			t.Fatalf("write %q: %v", frame, err)
		}
		ws.SetReadDeadline(time.Now().Add(2 * time.Second))
		var env realtime.Envelope
		if err := ws.ReadJSON(&env); err != nil {
			t.Fatalf("frame %q closed the session: %v", frame, err)
		}
		if env.Type != realtime.TypeError || env.Error != "malformed frame" {
			t.Fatalf("frame %q: unexpected reply %+v", frame, env)
		}
	}
	if hub.Registry().Count() != 1 {
		t.Fatal("malformed frame ended the session")
	}

	msg := &model.Message{ID: "m1", SenderID: "bob", RecipientID: alice.ID, Content: "yo"}
	for _, h := range hub.Registry().SessionsFor(alice.ID) {
		if err := h.Send(realtime.ChatFrame(msg)); err != nil {
			t.Fatalf("push: %v", err)
		}
	}

	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var env realtime.Envelope
	if err := ws.ReadJSON(&env); err != nil {
		t.Fatalf("read: %v", err)
	}
	if env.Type != realtime.TypeChatMessage || env.Message == nil || env.Message.Content != "yo" {
		t.Fatalf("unexpected frame %+v", env)
	}

	ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""))
	ws.Close()
	waitFor(t, func() bool { return hub.Registry().Count() == 0 })
}

func TestPublicError(t *testing.T) {
	if got := realtime.PublicError(model.Errorf(model.ErrNotFound, "booking")); !strings.Contains(got, "booking") {
		t.Errorf("domain error detail lost: %s", got)
	}
	if got := realtime.PublicError(errors.New("pq: password authentication failed")); got != "internal error" {
		t.Errorf("internal error leaked: %s", got)
	}
}
