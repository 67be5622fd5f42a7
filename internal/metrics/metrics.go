// internal/metrics/metrics.go
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics holds the server's Prometheus collectors. A nil *Metrics is valid
// and records nothing.
type Metrics struct {
	ConnectedUsers    prometheus.Gauge
	ActiveConnections prometheus.Gauge
	EventsHandled     *prometheus.CounterVec
	EventLatency      *prometheus.HistogramVec
	GamesStarted      prometheus.Counter
	GamesFinished     *prometheus.CounterVec
	RoomsSwept        prometheus.Counter

	gatherer prometheus.Gatherer
}

// New builds the collectors and registers them on reg. Tests pass a fresh
// prometheus.NewRegistry() so repeated construction does not collide.
func New(namespace string, reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		ConnectedUsers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected_users",
			Help:      "Number of users with at least one open websocket",
		}),
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_connections",
			Help:      "Number of open websocket connections",
		}),
		EventsHandled: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "events_handled_total",
			Help:      "Client events handled, by event type and outcome",
		}, []string{"event", "outcome"}),
		EventLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "event_latency_seconds",
			Help:      "Client event processing latency",
			Buckets:   prometheus.ExponentialBuckets(0.001, 2, 10),
		}, []string{"event"}),
		GamesStarted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_started_total",
			Help:      "Matches that left the placement phase",
		}),
		GamesFinished: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "games_finished_total",
			Help:      "Finished matches, by reason",
		}, []string{"reason"}),
		RoomsSwept: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "rooms_swept_total",
			Help:      "Stale rooms removed by the sweeper",
		}),
		gatherer: reg,
	}

	reg.MustRegister(
		m.ConnectedUsers,
		m.ActiveConnections,
		m.EventsHandled,
		m.EventLatency,
		m.GamesStarted,
		m.GamesFinished,
		m.RoomsSwept,
	)
	return m
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.gatherer, promhttp.HandlerOpts{})
}

func (m *Metrics) ObserveEvent(event, outcome string, took time.Duration) {
	if m == nil {
		return
	}
	m.EventsHandled.WithLabelValues(event, outcome).Inc()
	m.EventLatency.WithLabelValues(event).Observe(took.Seconds())
}

func (m *Metrics) GameStarted() {
	if m == nil {
		return
	}
	m.GamesStarted.Inc()
}

func (m *Metrics) GameFinished(reason string) {
	if m == nil {
		return
	}
	m.GamesFinished.WithLabelValues(reason).Inc()
}

func (m *Metrics) Swept(rooms int) {
	if m == nil {
		return
	}
	m.RoomsSwept.Add(float64(rooms))
}

// SetConnections records the connection manager's current counts.
func (m *Metrics) SetConnections(users, conns int) {
	if m == nil {
		return
	}
	m.ConnectedUsers.Set(float64(users))
	m.ActiveConnections.Set(float64(conns))
}
