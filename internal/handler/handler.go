// Package handler is the JSON over HTTP surface of the service, plus the
// WebSocket handshake and operational endpoints.
package handler

import (
	"context"
	"net/http"

	"github.com/sirupsen/logrus"

	"consultlaw-api/internal/availability"
	"consultlaw-api/internal/metrics"
	"consultlaw-api/internal/middleware"
	"consultlaw-api/internal/model"
	"consultlaw-api/internal/notify"
	"consultlaw-api/internal/profile"
	"consultlaw-api/internal/realtime"
	"consultlaw-api/internal/service"
)

type Users interface {
	CreateUser(ctx context.Context, u *model.User) error
	UserByEmail(ctx context.Context, email string) (*model.User, error)
	UserByID(ctx context.Context, id string) (*model.User, error)
}

type Pinger interface {
	Ping(ctx context.Context) error
}

type Deps struct {
	Users        Users
	Availability *availability.Store
	Profiles     *profile.Directory
	Service      *service.Service
	Notifier     *notify.Dispatcher
	Hub          *realtime.Hub
	Metrics      *metrics.Metrics
	Limiter      *middleware.RateLimiter
	DB           Pinger
	Secret       string
	Log          logrus.FieldLogger
}

type Handler struct {
	users    Users
	avail    *availability.Store
	profiles *profile.Directory
	svc      *service.Service
	notifier *notify.Dispatcher
	hub      *realtime.Hub
	metrics  *metrics.Metrics
	limiter  *middleware.RateLimiter
	db       Pinger
	secret   string
	log      logrus.FieldLogger
}

func New(d Deps) *Handler {
	return &Handler{
		users:    d.Users,
		avail:    d.Availability,
		profiles: d.Profiles,
		svc:      d.Service,
		notifier: d.Notifier,
		hub:      d.Hub,
		metrics:  d.Metrics,
		limiter:  d.Limiter,
		db:       d.DB,
		secret:   d.Secret,
		log:      d.Log,
	}
}

// Routes returns the full HTTP surface with authentication and request
// logging applied.
func (h *Handler) Routes() http.Handler {
	mux := http.NewServeMux()
	auth := middleware.Require
	limit := h.limiter.Limit

	mux.HandleFunc("POST /auth/register", limit(h.Register))
	mux.HandleFunc("POST /auth/login", limit(h.Login))
	mux.HandleFunc("GET /auth/me", auth(h.Me))

	mux.HandleFunc("GET /lawyers", h.ListLawyers)
	mux.HandleFunc("POST /lawyer/profile", auth(h.CreateProfile))
	mux.HandleFunc("GET /lawyer/profile", auth(h.MyProfile))
	mux.HandleFunc("PUT /lawyer/profile", auth(h.UpdateProfile))

	mux.HandleFunc("POST /availability", auth(h.AddWindow))
	mux.HandleFunc("GET /availability", h.ListWindows)
	mux.HandleFunc("DELETE /availability/{id}", auth(h.DeleteWindow))

	mux.HandleFunc("POST /bookings", auth(h.CreateBooking))
	mux.HandleFunc("POST /bookings/cancel", auth(h.CancelBooking))
	mux.HandleFunc("POST /bookings/confirm", auth(h.ConfirmBooking))
	mux.HandleFunc("GET /bookings", auth(h.ListBookings))
	mux.HandleFunc("GET /bookings/{id}", auth(h.GetBooking))
	mux.HandleFunc("GET /lawyer/dashboard", auth(h.Dashboard))

	mux.HandleFunc("POST /messages", auth(h.SendMessage))
	mux.HandleFunc("GET /messages", auth(h.Conversation))
	mux.HandleFunc("POST /messages/{id}/read", auth(h.MarkMessageRead))
	mux.HandleFunc("GET /notifications", auth(h.ListNotifications))
	mux.HandleFunc("POST /notifications/{id}/read", auth(h.MarkNotificationRead))

	mux.HandleFunc("POST /payments/intent", auth(h.CreatePaymentIntent))
	mux.HandleFunc("POST /assistant/triage", h.Triage)

	mux.HandleFunc("GET /ws", limit(auth(h.WebSocket)))
	mux.Handle("GET /metrics", h.metrics.Handler())
	mux.HandleFunc("GET /healthz", h.Health)

	var out http.Handler = mux
	out = middleware.Authenticate(h.secret)(out)
	out = middleware.Logger(h.log, h.metrics)(out)
	return out
}

// principal is only called behind middleware.Require.
func principal(r *http.Request) model.Identity {
	id, _ := middleware.PrincipalFrom(r.Context())
	return id
}

func (h *Handler) WebSocket(w http.ResponseWriter, r *http.Request) {
	h.hub.ServeWebSocket(w, r, principal(r))
}

func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	if err := h.db.Ping(r.Context()); err != nil {
		h.log.WithError(err).Warn("health check: database unreachable")
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": h.hub.Registry().Count(),
	})
}
