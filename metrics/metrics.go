// Package metrics defines the relay's Prometheus instrumentation.
package metrics

import (
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// ChunksTotal counts inbound chunks by admission decision.
	ChunksTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicerelay_chunks_total",
			Help: "Inbound audio chunks by admission decision",
		},
		[]string{"decision"},
	)

	// ActiveSessions tracks in-flight relay sessions.
	ActiveSessions = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "voicerelay_active_sessions",
			Help: "Relay sessions currently in flight",
		},
	)

	// AudioSecondsTotal counts client-declared audio seconds committed to usage.
	AudioSecondsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voicerelay_audio_seconds_total",
			Help: "Audio seconds committed to the usage ledger",
		},
	)

	// UpstreamErrors counts failed upstream transcription calls.
	UpstreamErrors = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "voicerelay_upstream_errors_total",
			Help: "Upstream transcription provider failures",
		},
	)

	// FramesDropped counts upstream frames skipped during translation.
	FramesDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "voicerelay_frames_dropped_total",
			Help: "Upstream frames skipped during translation",
		},
		[]string{"reason"},
	)

	// SessionDuration observes wall-clock relay session duration.
	SessionDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "voicerelay_session_duration_seconds",
			Help:    "Relay session duration in seconds",
			Buckets: []float64{.1, .25, .5, 1, 2.5, 5, 10, 30},
		},
	)
)

// Register registers all relay metrics with the given registry.
func Register(reg prometheus.Registerer) {
	reg.MustRegister(
		ChunksTotal,
		ActiveSessions,
		AudioSecondsTotal,
		UpstreamErrors,
		FramesDropped,
		SessionDuration,
	)
}

// Handler returns a gin handler serving the default Prometheus registry.
func Handler() gin.HandlerFunc {
	h := promhttp.Handler()
	return func(c *gin.Context) {
		h.ServeHTTP(c.Writer, c.Request)
	}
}
