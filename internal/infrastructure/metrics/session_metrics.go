package metrics

import (
	"net/http"
	"time"

	"wallet_session/internal/app/port"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "wallet_session"

// SessionMetrics реализует port.SessionMetrics поверх Prometheus.
type SessionMetrics struct {
	registry *prometheus.Registry

	connectAttempts *prometheus.CounterVec
	connectDuration *prometheus.HistogramVec
	providerEvents  *prometheus.CounterVec
	connected       prometheus.Gauge
}

var _ port.SessionMetrics = (*SessionMetrics)(nil)

// NewSessionMetrics registers the session collectors, plus Go and process collectors,
// on a private registry.
func NewSessionMetrics() *SessionMetrics {
	m := &SessionMetrics{
		registry: prometheus.NewRegistry(),
		connectAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "connect_attempts_total",
			Help:      "Connect attempts by result.",
		}, []string{"result"}),
		connectDuration: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "connect_duration_seconds",
			Help:      "Time from the start of a connect attempt to its outcome.",
			Buckets:   []float64{.05, .1, .25, .5, 1, 2.5, 5, 10, 30, 60, 120},
		}, []string{"result"}),
		providerEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "provider_events_total",
			Help:      "Wallet provider events handled by the session store.",
		}, []string{"event"}),
		connected: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "connected",
			Help:      "1 while the session holds a connected account.",
		}),
	}

	m.registry.MustRegister(
		m.connectAttempts,
		m.connectDuration,
		m.providerEvents,
		m.connected,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *SessionMetrics) ObserveConnect(result string, duration time.Duration) {
	m.connectAttempts.WithLabelValues(result).Inc()
	m.connectDuration.WithLabelValues(result).Observe(duration.Seconds())
}

func (m *SessionMetrics) ObserveProviderEvent(name string) {
	m.providerEvents.WithLabelValues(name).Inc()
}

func (m *SessionMetrics) SetConnected(connected bool) {
	if connected {
		m.connected.Set(1)
		return
	}
	m.connected.Set(0)
}

// Handler serves the registry in the Prometheus exposition format.
func (m *SessionMetrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}
