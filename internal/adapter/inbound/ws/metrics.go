package ws

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the Prometheus metrics for the WebSocket transport.
// Pass to the handler and supervisors that record them.
type Metrics struct {
	AuthDecisions     *prometheus.CounterVec
	ActiveConnections prometheus.Gauge
	LivenessChecks    *prometheus.CounterVec
	ConnectionsClosed *prometheus.CounterVec
	SessionsSwept     prometheus.Counter
}

// NewMetrics creates and registers all metrics with the given registry.
func NewMetrics(reg prometheus.Registerer) *Metrics {
	return &Metrics{
		AuthDecisions: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "chatgate",
				Name:      "auth_decisions_total",
				Help:      "Authentication decisions at upgrade time",
			},
			[]string{"reason"}, // accepted, missing_credential, token_expired, ...
		),
		ActiveConnections: promauto.With(reg).NewGauge(
			prometheus.GaugeOpts{
				Namespace: "chatgate",
				Name:      "active_connections",
				Help:      "Number of live WebSocket connections",
			},
		),
		LivenessChecks: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "chatgate",
				Name:      "liveness_checks_total",
				Help:      "Periodic session liveness checks by outcome",
			},
			[]string{"result"}, // valid, invalid, error
		),
		ConnectionsClosed: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Namespace: "chatgate",
				Name:      "connections_closed_total",
				Help:      "Connections closed by terminal state",
			},
			[]string{"cause"}, // revoked, expired, closed_by_peer, active
		),
		SessionsSwept: promauto.With(reg).NewCounter(
			prometheus.CounterOpts{
				Namespace: "chatgate",
				Name:      "sessions_swept_total",
				Help:      "Expired sessions removed by the background sweep",
			},
		),
	}
}
