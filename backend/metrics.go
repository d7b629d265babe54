package backend

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

const metricsNamespace = "lab"

const backendSubsystem = "backend"

type metrics struct {
	VoicesCreated      prometheus.Counter
	VoicesDisposed     prometheus.Counter
	EdgesConnected     prometheus.Counter
	EdgesDisconnected  prometheus.Counter
	LiveEdges          prometheus.Gauge
	LiveVoices         prometheus.Gauge
	DisconnectFailures *prometheus.CounterVec
}

func newMetrics(reg prometheus.Registerer) *metrics {
	f := promauto.With(reg)
	return &metrics{
		VoicesCreated: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: backendSubsystem,
			Name:      "voices_created_total",
			Help:      "Total voices created",
		}),
		VoicesDisposed: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: backendSubsystem,
			Name:      "voices_disposed_total",
			Help:      "Total voices disposed",
		}),
		EdgesConnected: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: backendSubsystem,
			Name:      "edges_connected_total",
			Help:      "Total voice-level edges connected",
		}),
		EdgesDisconnected: f.NewCounter(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: backendSubsystem,
			Name:      "edges_disconnected_total",
			Help:      "Total voice-level edges disconnected",
		}),
		LiveEdges: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: backendSubsystem,
			Name:      "live_edges",
			Help:      "Voice-level edges currently connected",
		}),
		LiveVoices: f.NewGauge(prometheus.GaugeOpts{
			Namespace: metricsNamespace,
			Subsystem: backendSubsystem,
			Name:      "live_voices",
			Help:      "Voices created and not yet disposed",
		}),
		DisconnectFailures: f.NewCounterVec(prometheus.CounterOpts{
			Namespace: metricsNamespace,
			Subsystem: backendSubsystem,
			Name:      "disconnect_failures_total",
			Help:      "Disconnects refused by reason",
		}, []string{"reason"}),
	}
}
