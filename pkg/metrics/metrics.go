package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Pulse metrics
	PulsesTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "calyx_pulses_total",
			Help: "Total number of pulses run",
		},
	)

	PulseDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "calyx_pulse_duration_seconds",
			Help:    "Pulse duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
	)

	EventsIngestedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "calyx_events_ingested_total",
			Help: "Total telemetry events ingested across all pulses",
		},
	)

	// Intent metrics
	IntentsQueued = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "calyx_intents_queued",
			Help: "Intents currently in the queue",
		},
	)

	IntentRejectionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calyx_intent_rejections_total",
			Help: "Total intents rejected at the artifact gate by reason",
		},
		[]string{"reason"},
	)

	// Execution metrics
	ExecutionsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "calyx_executions_total",
			Help: "Total engine executions by outcome status",
		},
		[]string{"status"},
	)

	CapabilityConfidence = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "calyx_capability_confidence",
			Help: "Current per-capability confidence",
		},
		[]string{"capability"},
	)

	// Escalation metrics
	StallsDetectedTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "calyx_stalls_detected_total",
			Help: "Total stalled executions detected",
		},
	)

	EscalationsActive = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "calyx_escalations_active",
			Help: "Unresolved escalations on disk",
		},
	)
)

func init() {
	// Register all metrics
	prometheus.MustRegister(PulsesTotal)
	prometheus.MustRegister(PulseDuration)
	prometheus.MustRegister(EventsIngestedTotal)
	prometheus.MustRegister(IntentsQueued)
	prometheus.MustRegister(IntentRejectionsTotal)
	prometheus.MustRegister(ExecutionsTotal)
	prometheus.MustRegister(CapabilityConfidence)
	prometheus.MustRegister(StallsDetectedTotal)
	prometheus.MustRegister(EscalationsActive)
}

// Handler returns the Prometheus HTTP handler
func Handler() http.Handler {
	return promhttp.Handler()
}
