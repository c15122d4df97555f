package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	logtest "github.com/sirupsen/logrus/hooks/test"

	"consultlaw-api/internal/availability"
	"consultlaw-api/internal/booking"
	"consultlaw-api/internal/handler"
	"consultlaw-api/internal/metrics"
	"consultlaw-api/internal/middleware"
	"consultlaw-api/internal/model"
	"consultlaw-api/internal/notify"
	"consultlaw-api/internal/payment"
	"consultlaw-api/internal/profile"
	"consultlaw-api/internal/realtime"
	"consultlaw-api/internal/service"
	"consultlaw-api/internal/store/memstore"
)

const secret = "test-secret"

type stubPayments struct{}

func (stubPayments) CreateIntent(_ context.Context, amount int64, currency string, _ map[string]string) (*payment.Intent, error) {
	return &payment.Intent{ID: "pi_test", ClientSecret: "pi_test_secret", AmountMinor: amount, Currency: currency}, nil
}

type env struct {
	srv   *httptest.Server
	store *memstore.Store
	hub   *realtime.Hub
}

func setup(t *testing.T) *env {
	t.Helper()
	log, _ := logtest.NewNullLogger()
	st := memstore.New()
	m := metrics.New(prometheus.NewRegistry())
	reg := realtime.NewRegistry()
	notifier := notify.New(st, notify.NewLocal(reg, log, m), log, m)
	avail := availability.New(st)
	svc := service.New(service.Deps{
		Bookings: booking.New(st, st, avail, log),
		Notifier: notifier,
		Messages: st,
		Users:    st,
		Payments: stubPayments{},
		Currency: "pkr",
		Log:      log,
		Metrics:  m,
	})
	hub := realtime.NewHub(reg, svc, log, m)
	limiter := middleware.NewRateLimiter(1000, 1000)
	t.Cleanup(limiter.Close)

	h := handler.New(handler.Deps{
		Users:        st,
		Availability: avail,
		Profiles:     profile.New(st),
		Service:      svc,
		Notifier:     notifier,
		Hub:          hub,
		Metrics:      m,
		Limiter:      limiter,
		DB:           st,
		Secret:       secret,
		Log:          log,
	})
	srv := httptest.NewServer(h.Routes())
	t.Cleanup(srv.Close)
	return &env{srv: srv, store: st, hub: hub}
}

func (e *env) do(t *testing.T, method, path, token string, body any) (int, []byte) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req, err := http.NewRequest(method, e.srv.URL+path, &buf)
	if err != nil {
		t.Fatal(err)
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	var out bytes.Buffer
	out.ReadFrom(resp.Body)
	return resp.StatusCode, out.Bytes()
}

type account struct {
	ID    string
	Token string
}

func (e *env) register(t *testing.T, role, first string) account {
	t.Helper()
	code, body := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":      fmt.Sprintf("%s-%s@test.com", first, uuid.New().String()[:8]),
		"password":   "testpass123",
		"first_name": first,
		"role":       role,
	})
	if code != http.StatusCreated {
		t.Fatalf("register %s: %d %s", role, code, body)
	}
	var res struct {
		Token string `json:"token"`
		User  struct {
			ID string `json:"id"`
		} `json:"user"`
	}
	if err := json.Unmarshal(body, &res); err != nil {
		t.Fatal(err)
	}
	return account{ID: res.User.ID, Token: res.Token}
}

// nextMonday is strictly after today so the booking is always upcoming.
func nextMonday() string {
	d := model.DateOf(time.Now().UTC())
	ahead := (int(time.Monday) - int(d.Weekday()) + 7) % 7
	if ahead == 0 {
		ahead = 7
	}
	return model.FormatDate(d.AddDate(0, 0, ahead))
}

func TestRegisterAndLogin(t *testing.T) {
	e := setup(t)
	email := "login-" + uuid.New().String()[:8] + "@test.com"
	creds := map[string]string{"email": email, "password": "testpass123"}

	if code, _ := e.do(t, http.MethodPost, "/auth/register", "", creds); code != http.StatusCreated {
		t.Fatalf("register: %d", code)
	}
	if code, _ := e.do(t, http.MethodPost, "/auth/register", "", creds); code != http.StatusConflict {
		t.Errorf("duplicate: %d", code)
	}

	tests := []struct {
		name string
		body map[string]string
		want int
	}{
		{"ok", creds, http.StatusOK},
		{"wrong password", map[string]string{"email": email, "password": "nope-nope"}, http.StatusUnauthorized},
		{"unknown email", map[string]string{"email": "ghost@test.com", "password": "testpass123"}, http.StatusUnauthorized},
		{"missing fields", map[string]string{"email": email}, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, body := e.do(t, http.MethodPost, "/auth/login", "", tt.body); code != tt.want {
				t.Errorf("code %d, want %d: %s", code, tt.want, body)
			}
		})
	}
}

func TestRegisterValidation(t *testing.T) {
	e := setup(t)
	tests := []struct {
		name string
		body map[string]string
	}{
		{"short password", map[string]string{"email": "a@test.com", "password": "short"}},
		{"admin", map[string]string{"email": "b@test.com", "password": "testpass123", "role": "admin"}},
		{"mixed case role", map[string]string{"email": "c@test.com", "password": "testpass123", "role": "Client"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if code, _ := e.do(t, http.MethodPost, "/auth/register", "", tt.body); code != http.StatusBadRequest {
				t.Errorf("code %d", code)
			}
		})
	}
}

func TestMe(t *testing.T) {
	e := setup(t)
	a := e.register(t, "lawyer", "Lee")
	code, body := e.do(t, http.MethodGet, "/auth/me", a.Token, nil)
	if code != http.StatusOK || !strings.Contains(string(body), `"role":"lawyer"`) {
		t.Errorf("me: %d %s", code, body)
	}
	if code, _ := e.do(t, http.MethodGet, "/auth/me", "", nil); code != http.StatusUnauthorized {
		t.Errorf("anonymous me: %d", code)
	}
	if code, _ := e.do(t, http.MethodGet, "/auth/me", "garbage", nil); code != http.StatusUnauthorized {
		t.Errorf("bad token: %d", code)
	}
}

func TestMeIncludesContactDetails(t *testing.T) {
	e := setup(t)
	code, body := e.do(t, http.MethodPost, "/auth/register", "", map[string]string{
		"email":    "contact-" + uuid.New().String()[:8] + "@test.com",
		"password": "testpass123",
		"phone":    "+92 300 1234567",
		"address":  "12 Mall Road, Lahore",
	})
	if code != http.StatusCreated {
		t.Fatalf("register: %d %s", code, body)
	}
	var res struct {
		Token string `json:"token"`
	}
	json.Unmarshal(body, &res)

	code, body = e.do(t, http.MethodGet, "/auth/me", res.Token, nil)
	if code != http.StatusOK || !strings.Contains(string(body), `"phone":"+92 300 1234567"`) ||
		!strings.Contains(string(body), `"address":"12 Mall Road, Lahore"`) {
		t.Errorf("me: %d %s", code, body)
	}
}

func TestLawyerProfilesAndDirectory(t *testing.T) {
	e := setup(t)
	sara := e.register(t, "lawyer", "Sara")
	omar := e.register(t, "lawyer", "Omar")
	e.register(t, "lawyer", "Nia") // no profile, not listed
	client := e.register(t, "client", "Ann")

	if code, _ := e.do(t, http.MethodGet, "/lawyer/profile", sara.Token, nil); code != http.StatusNotFound {
		t.Errorf("profile before create: %d", code)
	}
	if code, _ := e.do(t, http.MethodPost, "/lawyer/profile", client.Token, map[string]any{
		"specialties": "Family Law", "languages": "English", "fee": "100.00",
	}); code != http.StatusForbidden {
		t.Errorf("client create: %d", code)
	}
	if code, _ := e.do(t, http.MethodPost, "/lawyer/profile", "", map[string]any{}); code != http.StatusUnauthorized {
		t.Errorf("anonymous create: %d", code)
	}
	if code, _ := e.do(t, http.MethodPost, "/lawyer/profile", sara.Token, map[string]any{
		"specialties": "Family Law", "languages": "English",
	}); code != http.StatusBadRequest {
		t.Errorf("missing fee: %d", code)
	}

	code, body := e.do(t, http.MethodPost, "/lawyer/profile", sara.Token, map[string]any{
		"bio": "Family courts since 2015", "specialties": "Family Law, Property Law",
		"experience_years": 10, "languages": "English, Urdu", "fee": "5000.00",
	})
	if code != http.StatusCreated || !strings.Contains(string(body), `"fee":"5000.00"`) {
		t.Fatalf("create: %d %s", code, body)
	}
	if code, _ := e.do(t, http.MethodPost, "/lawyer/profile", sara.Token, map[string]any{
		"specialties": "Tax", "languages": "English", "fee": 1,
	}); code != http.StatusConflict {
		t.Errorf("second create: %d", code)
	}
	if code, _ := e.do(t, http.MethodPost, "/lawyer/profile", omar.Token, map[string]any{
		"specialties": "Corporate Law", "languages": "English", "fee": 15000,
	}); code != http.StatusCreated {
		t.Fatalf("create omar: %d", code)
	}
	code, body = e.do(t, http.MethodPut, "/lawyer/profile", omar.Token, map[string]any{
		"specialties": "Corporate Law", "languages": "English, Arabic", "fee": "15000",
	})
	if code != http.StatusOK || !strings.Contains(string(body), "Arabic") {
		t.Errorf("update: %d %s", code, body)
	}

	tests := []struct {
		query string
		want  []string
	}{
		{"", []string{omar.ID, sara.ID}},
		{"?specialty=property", []string{sara.ID}},
		{"?language=arabic", []string{omar.ID}},
		{"?min_fee=6000", []string{omar.ID}},
		{"?max_fee=5000", []string{sara.ID}},
		{"?search=family", []string{sara.ID}},
		{"?specialty=maritime", nil},
	}
	for _, tt := range tests {
		t.Run("lawyers"+tt.query, func(t *testing.T) {
			code, body := e.do(t, http.MethodGet, "/lawyers"+tt.query, "", nil)
			if code != http.StatusOK {
				t.Fatalf("code %d: %s", code, body)
			}
			var got []struct {
				ID      string `json:"id"`
				Email   string `json:"email"`
				Profile struct {
					Fee string `json:"fee"`
				} `json:"lawyer_profile"`
			}
			if err := json.Unmarshal(body, &got); err != nil {
				t.Fatal(err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %s, want %v", body, tt.want)
			}
			for i := range got {
				if got[i].ID != tt.want[i] || got[i].Profile.Fee == "" || got[i].Email != "" {
					t.Errorf("entry %d: %+v", i, got[i])
				}
			}
		})
	}
	if code, _ := e.do(t, http.MethodGet, "/lawyers?min_fee=abc", "", nil); code != http.StatusBadRequest {
		t.Errorf("bad fee filter: %d", code)
	}
}

func TestBookingFlow(t *testing.T) {
	e := setup(t)
	lawyer := e.register(t, "lawyer", "Lee")
	client := e.register(t, "client", "Ann")
	monday := nextMonday()

	window := map[string]string{"day": "Monday", "start_time": "09:00", "end_time": "17:00"}
	if code, _ := e.do(t, http.MethodPost, "/availability", client.Token, window); code != http.StatusForbidden {
		t.Errorf("client adding window: %d", code)
	}
	if code, body := e.do(t, http.MethodPost, "/availability", lawyer.Token, window); code != http.StatusCreated {
		t.Fatalf("add window: %d %s", code, body)
	}
	code, body := e.do(t, http.MethodGet, "/availability?lawyer="+lawyer.ID, "", nil)
	if code != http.StatusOK || !strings.Contains(string(body), `"start_time":"09:00:00"`) {
		t.Errorf("list windows: %d %s", code, body)
	}
	if _, body := e.do(t, http.MethodGet, "/availability", "", nil); strings.TrimSpace(string(body)) != "[]" {
		t.Errorf("list without lawyer: %s", body)
	}

	book := func(at string) (int, []byte) {
		return e.do(t, http.MethodPost, "/bookings", client.Token, map[string]any{
			"lawyer": lawyer.ID, "date": monday, "time": at, "fee": "1500.00",
		})
	}
	if code, body := book("08:59"); code != http.StatusBadRequest {
		t.Errorf("outside window: %d %s", code, body)
	}
	code, body = book("09:00")
	if code != http.StatusCreated {
		t.Fatalf("book: %d %s", code, body)
	}
	var b struct {
		ID     string `json:"id"`
		Status string `json:"status"`
		Fee    string `json:"fee"`
		Time   string `json:"time"`
	}
	json.Unmarshal(body, &b)
	if b.Status != "pending" || b.Fee != "1500.00" || b.Time != "09:00:00" {
		t.Errorf("unexpected booking %s", body)
	}

	if code, _ := e.do(t, http.MethodPost, "/bookings", lawyer.Token, map[string]any{
		"lawyer": lawyer.ID, "date": monday, "time": "10:00",
	}); code != http.StatusForbidden {
		t.Errorf("lawyer booking: %d", code)
	}

	if code, body := e.do(t, http.MethodGet, "/bookings?filter=upcoming", client.Token, nil); code != http.StatusOK || !strings.Contains(string(body), b.ID) {
		t.Errorf("upcoming: %d %s", code, body)
	}
	if code, _ := e.do(t, http.MethodGet, "/bookings?filter=someday", client.Token, nil); code != http.StatusBadRequest {
		t.Errorf("bad filter: %d", code)
	}
	if code, _ := e.do(t, http.MethodGet, "/bookings/"+b.ID, lawyer.Token, nil); code != http.StatusOK {
		t.Errorf("get booking: %d", code)
	}

	if code, body := e.do(t, http.MethodPost, "/payments/intent", client.Token, map[string]string{"booking_id": b.ID}); code != http.StatusOK || !strings.Contains(string(body), "pi_test_secret") {
		t.Errorf("payment intent: %d %s", code, body)
	}

	if code, _ := e.do(t, http.MethodPost, "/bookings/confirm", lawyer.Token, map[string]string{"booking_id": b.ID}); code != http.StatusOK {
		t.Errorf("confirm: %d", code)
	}
	if code, body := e.do(t, http.MethodGet, "/lawyer/dashboard", lawyer.Token, nil); code != http.StatusOK || !strings.Contains(string(body), b.ID) {
		t.Errorf("dashboard: %d %s", code, body)
	}
	if code, _ := e.do(t, http.MethodGet, "/lawyer/dashboard", client.Token, nil); code != http.StatusForbidden {
		t.Errorf("client dashboard: %d", code)
	}

	cancel := map[string]string{"booking_id": b.ID, "reason": "emergency"}
	if code, _ := e.do(t, http.MethodPost, "/bookings/cancel", lawyer.Token, cancel); code != http.StatusOK {
		t.Errorf("cancel: %d", code)
	}
	if code, _ := e.do(t, http.MethodPost, "/bookings/cancel", lawyer.Token, cancel); code != http.StatusBadRequest {
		t.Errorf("second cancel: %d", code)
	}
	if code, _ := e.do(t, http.MethodPost, "/bookings/cancel", lawyer.Token, map[string]string{"booking_id": "missing"}); code != http.StatusNotFound {
		t.Errorf("missing booking: %d", code)
	}

	code, body = e.do(t, http.MethodGet, "/notifications", client.Token, nil)
	if code != http.StatusOK {
		t.Fatalf("notifications: %d", code)
	}
	var ns []model.Notification
	json.Unmarshal(body, &ns)
	if len(ns) != 2 || ns[0].Content != "Booking cancelled: emergency" {
		t.Fatalf("client notifications: %s", body)
	}
	if code, _ := e.do(t, http.MethodPost, "/notifications/"+ns[0].ID+"/read", lawyer.Token, nil); code != http.StatusNotFound {
		t.Errorf("foreign read: %d", code)
	}
	if code, _ := e.do(t, http.MethodPost, "/notifications/"+ns[0].ID+"/read", client.Token, nil); code != http.StatusNoContent {
		t.Errorf("mark read: %d", code)
	}
}

func TestMessages(t *testing.T) {
	e := setup(t)
	lawyer := e.register(t, "lawyer", "Lee")
	client := e.register(t, "client", "Ann")

	if code, _ := e.do(t, http.MethodPost, "/messages", client.Token, map[string]string{"recipient": client.ID, "content": "me"}); code != http.StatusBadRequest {
		t.Errorf("self message: %d", code)
	}
	if e.store.MessageCount() != 0 || e.store.NotificationCount(client.ID) != 0 {
		t.Error("self message left records")
	}

	code, body := e.do(t, http.MethodPost, "/messages", client.Token, map[string]string{"recipient": lawyer.ID, "content": "hello"})
	if code != http.StatusCreated {
		t.Fatalf("send: %d %s", code, body)
	}
	var m model.Message
	json.Unmarshal(body, &m)

	if code, _ := e.do(t, http.MethodPost, "/messages/"+m.ID+"/read", lawyer.Token, nil); code != http.StatusNoContent {
		t.Errorf("mark read: %d", code)
	}
	code, body = e.do(t, http.MethodGet, "/messages?user="+lawyer.ID, client.Token, nil)
	if code != http.StatusOK || !strings.Contains(string(body), `"read":true`) {
		t.Errorf("conversation: %d %s", code, body)
	}
}

func TestWebSocketReceivesBookingNotification(t *testing.T) {
	e := setup(t)
	lawyer := e.register(t, "lawyer", "Lee")
	client := e.register(t, "client", "Ann")
	e.do(t, http.MethodPost, "/availability", lawyer.Token, map[string]string{"day": "Monday", "start_time": "09:00", "end_time": "17:00"})

	url := "ws" + strings.TrimPrefix(e.srv.URL, "http") + "/ws"
	if _, resp, err := websocket.DefaultDialer.Dial(url, nil); err == nil || resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("anonymous handshake must be rejected: %v", err)
	}

	var conns []*websocket.Conn
	for i := 0; i < 2; i++ {
		c, _, err := websocket.DefaultDialer.Dial(url+"?token="+lawyer.Token, nil)
		if err != nil {
			t.Fatalf("dial: %v", err)
		}
		defer c.Close()
		conns = append(conns, c)
	}
	deadline := time.Now().Add(2 * time.Second)
	for len(e.hub.Registry().SessionsFor(lawyer.ID)) != 2 {
		if time.Now().After(deadline) {
			t.Fatal("sessions not registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if code, body := e.do(t, http.MethodPost, "/bookings", client.Token, map[string]any{
		"lawyer": lawyer.ID, "date": nextMonday(), "time": "17:00",
	}); code != http.StatusCreated {
		t.Fatalf("book: %d %s", code, body)
	}

	var frames []realtime.Envelope
	for _, c := range conns {
		c.SetReadDeadline(time.Now().Add(2 * time.Second))
		var f realtime.Envelope
		if err := c.ReadJSON(&f); err != nil {
			t.Fatalf("read: %v", err)
		}
		frames = append(frames, f)
	}
	if frames[0].Type != realtime.TypeNotification || frames[0].Data == nil || frames[1].Data == nil || frames[0].Data.ID != frames[1].Data.ID {
		t.Fatalf("sessions disagree: %+v / %+v", frames[0], frames[1])
	}
	if !strings.HasPrefix(frames[0].Data.Content, "New booking from Ann for ") {
		t.Errorf("content %q", frames[0].Data.Content)
	}
	if got := e.store.NotificationCount(lawyer.ID); got != 1 {
		t.Errorf("expected one stored notification, got %d", got)
	}
}

func TestTriageHealthAndMetrics(t *testing.T) {
	e := setup(t)
	code, body := e.do(t, http.MethodPost, "/assistant/triage", "", map[string]string{"description": "Child custody dispute"})
	if code != http.StatusOK || !strings.Contains(string(body), "Family Law") {
		t.Errorf("triage: %d %s", code, body)
	}
	if code, _ := e.do(t, http.MethodPost, "/assistant/triage", "", map[string]string{}); code != http.StatusBadRequest {
		t.Errorf("empty triage: %d", code)
	}
	if code, _ := e.do(t, http.MethodGet, "/healthz", "", nil); code != http.StatusOK {
		t.Errorf("healthz: %d", code)
	}
	code, body = e.do(t, http.MethodGet, "/metrics", "", nil)
	if code != http.StatusOK || !strings.Contains(string(body), "consultlaw_http_requests_total") {
		t.Errorf("metrics: %d", code)
	}
}
