/*
Package metrics provides Prometheus metrics collection and exposition for Calyx.

The metrics package defines and registers all Calyx metrics using the Prometheus
client library, providing observability into pulse execution, intent flow,
capability confidence, and escalation pressure. Metrics are exposed via HTTP
endpoint for scraping by Prometheus servers.

# Architecture

Metrics are registered once at package init and updated inline by the
components that own them:

	┌──────────────────── METRICS SYSTEM ──────────────────────┐
	│                                                           │
	│  ┌────────────────────────────────────────────┐           │
	│  │          Prometheus Registry               │           │
	│  │  - Global DefaultRegistry                  │           │
	│  │  - MustRegister at package init            │           │
	│  │  - Automatic Go runtime metrics            │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │           Metric Categories                │           │
	│  │                                            │           │
	│  │  Pulse: count, duration, events ingested   │           │
	│  │  Intents: queue depth, rejections          │           │
	│  │  Executions: outcome counts by status      │           │
	│  │  Confidence: per-capability gauge          │           │
	│  │  Escalations: stalls, active files         │           │
	│  └──────────────────┬─────────────────────────┘           │
	│                     │                                     │
	│  ┌──────────────────▼─────────────────────────┐           │
	│  │          HTTP Metrics Endpoint             │           │
	│  │  - Path: /metrics                          │           │
	│  │  - Format: Prometheus text exposition      │           │
	│  │  - Handler: promhttp.Handler()             │           │
	│  └────────────────────────────────────────────┘           │
	└───────────────────────────────────────────────────────────┘

# Core Components

Counters track monotonically increasing values:

  - PulsesTotal: pulses completed since process start
  - EventsIngestedTotal: telemetry events read during reflection
  - IntentRejectionsTotal: intents refused at the gate, by reason
  - ExecutionsTotal: execution outcomes, by status
  - StallsDetectedTotal: stall warnings raised by the tracker

Gauges track instantaneous values:

  - IntentsQueued: intents currently waiting in the pipeline
  - EscalationsActive: unresolved escalation files on disk
  - CapabilityConfidence: verifier confidence per capability

Histograms track distributions:

  - PulseDuration: wall-clock seconds per pulse, default buckets

# Usage

Components push updates inline at the point where the measured thing
happens, then the serve loop exposes the registry over HTTP:

	timer := metrics.NewTimer()
	// ... run the pulse ...
	timer.ObserveDuration(metrics.PulseDuration)
	metrics.PulsesTotal.Inc()
	metrics.ExecutionsTotal.WithLabelValues("done").Inc()

	http.Handle("/metrics", metrics.Handler())

# Health Checks

Beyond Prometheus metrics, the package tracks component-level health for
the /health, /ready, and /live endpoints. Components report their status
with SetComponentHealth, and readiness requires every critical component
(state core, intent pipeline, artifact registry) to be healthy:

	metrics.SetComponentHealth("state_core", metrics.HealthStatusHealthy, "")
	status := metrics.GetHealthStatus()

RecordPulse stamps the time of the most recent completed pulse so the
health payload can show liveness of the pulse loop itself.

# Timer Utility

Timer measures elapsed time for histogram observation:

	timer := metrics.NewTimer()
	defer timer.ObserveDuration(metrics.PulseDuration)

# See Also

  - Package coordinator: pushes pulse and execution metrics
  - Package intent: pushes rejection counters
  - Package verify: source of the confidence values exported here
*/
package metrics
