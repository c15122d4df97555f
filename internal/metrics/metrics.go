package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "consultlaw"

// Push failure reasons.
const (
	ReasonClosed  = "closed"
	ReasonBacklog = "backlog"
	ReasonRemote  = "remote"
)

type Metrics struct {
	SessionsOpen           prometheus.Gauge
	NotificationsPersisted prometheus.Counter
	PushesDelivered        *prometheus.CounterVec
	PushesFailed           *prometheus.CounterVec
	BookingTransitions     *prometheus.CounterVec
	Requests               *prometheus.CounterVec

	gatherer prometheus.Gatherer
}

// New registers every collector on reg. Passing a fresh prometheus.NewRegistry
// keeps tests isolated from the global default registry.
func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		SessionsOpen: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "sessions_open",
			Help:      "Number of live real-time sessions on this instance.",
		}),
		NotificationsPersisted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "notify",
			Name:      "notifications_persisted_total",
			Help:      "Notifications written to the store.",
		}),
		PushesDelivered: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "pushes_delivered_total",
			Help:      "Frames queued to a live session, by frame type.",
		}, []string{"type"}),
		PushesFailed: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "realtime",
			Name:      "pushes_failed_total",
			Help:      "Best-effort pushes that were dropped, by reason.",
		}, []string{"reason"}),
		BookingTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "booking",
			Name:      "transitions_total",
			Help:      "Bookings entering a status.",
		}, []string{"status"}),
		Requests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "HTTP requests by method and status code.",
		}, []string{"method", "code"}),
		gatherer: reg,
	}
	reg.MustRegister(
		m.SessionsOpen,
		m.NotificationsPersisted,
		m.PushesDelivered,
		m.PushesFailed,
		m.BookingTransitions,
		m.Requests,
	)
	return m
}

// Handler exposes the registry the metrics were created on.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}
