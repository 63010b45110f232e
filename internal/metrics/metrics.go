package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds the backend's Prometheus collectors. Each instance owns its
// registry so several can coexist in one process.
type Metrics struct {
	Registry *prometheus.Registry

	// Session metrics
	SessionsStarted prometheus.Counter
	SessionsEnded   *prometheus.CounterVec
	ActiveSessions  prometheus.Gauge

	// Ingest metrics
	ChunksPushed prometheus.Counter
	BytesPushed  prometheus.Counter

	// Finalize metrics
	FinalizeDuration      prometheus.Histogram
	AudioSeconds          prometheus.Histogram
	TranscriptionFailures *prometheus.CounterVec
	NotificationFailures  *prometheus.CounterVec
}

func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)
	return &Metrics{
		Registry: reg,

		SessionsStarted: factory.NewCounter(prometheus.CounterOpts{
			Name: "kikitori_sessions_started_total",
			Help: "Total number of recording sessions started",
		}),
		SessionsEnded: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kikitori_sessions_ended_total",
			Help: "Total number of recording sessions ended, by final state",
		}, []string{"state"}),
		ActiveSessions: factory.NewGauge(prometheus.GaugeOpts{
			Name: "kikitori_active_sessions",
			Help: "Number of sessions currently recording or finalizing",
		}),

		ChunksPushed: factory.NewCounter(prometheus.CounterOpts{
			Name: "kikitori_chunks_pushed_total",
			Help: "Total number of encoded chunks appended to sessions",
		}),
		BytesPushed: factory.NewCounter(prometheus.CounterOpts{
			Name: "kikitori_bytes_pushed_total",
			Help: "Total number of encoded bytes appended to sessions",
		}),

		FinalizeDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kikitori_finalize_duration_seconds",
			Help:    "Time from end request to transcript",
			Buckets: []float64{0.5, 1, 2.5, 5, 10, 30, 60, 120, 300, 600},
		}),
		AudioSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Name:    "kikitori_audio_seconds",
			Help:    "Duration of normalized audio handed to the transcriber",
			Buckets: []float64{1, 5, 15, 30, 60, 120, 300, 900, 1800, 3600},
		}),
		TranscriptionFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kikitori_finalize_failures_total",
			Help: "Total number of failed finalizations, by stage",
		}, []string{"stage"}),
		NotificationFailures: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "kikitori_notification_failures_total",
			Help: "Total number of completion listener failures, by listener",
		}, []string{"listener"}),
	}
}
