/*
Package coordinator runs the Station Calyx pulse loop.

The coordinator is the orchestrator: it owns one station root and drives
every other subsystem through a fixed seven-stage cycle called a pulse.
A pulse is synchronous, non-overlapping, and never raises; whatever goes
wrong inside a stage is absorbed into the returned report.

# Architecture

	┌─────────────────────── ONE PULSE ────────────────────────┐
	│                                                          │
	│  1. REFLECT      telemetry.IngestRecent                  │
	│                  state.UpdateFromEvents                  │
	│                          │                               │
	│  2. GUARDRAILS   state.CheckGuardrails (report only)     │
	│                          │                               │
	│  3. AGE          intents.ExpireIntents                   │
	│                          │                               │
	│  4. PRIORITIZE   intents.Prioritized(limit)              │
	│                          │                               │
	│  5. STALLS       tracker.CheckStalls ──▶ Escalate        │
	│                          │                               │
	│  6. EXECUTE      engine.ExecuteIntent (≤ max per pulse,  │
	│                  gated by autonomy mode)                 │
	│                          │                               │
	│  7. REPORT       last_pulse_report.json                  │
	│                  execution_audit_summary.json            │
	│                  dialog.log / coord_debug.log            │
	└──────────────────────────────────────────────────────────┘

# Autonomy Gating

Stage 6 runs only when the state core's autonomy mode grants it:

  - suggest: observe only, no execution
  - guide: execute intents not demanding execute-level autonomy
  - execute: execute any prioritized intent with a matching domain

Guardrail violations do not block stage 6; each domain self-gates
through its CanExecute check against the state snapshot.

# Queue Discipline

An intent that produced a non-skipped outcome is removed from the queue
after execution, success or not, so one intent never runs twice. The
RetainFailedIntents policy softens this: failed and errored intents stay
queued for a later pulse.

# Serve Mode

Serve wraps Pulse in a long-running loop: an interval ticker, an
optional fsnotify watcher that pulses when heartbeat lock files change,
and optional HTTP exposition of Prometheus metrics and health probes.
All triggers feed one goroutine; pulses never overlap.

# Usage

	cfg := config.Default()
	cfg.StationRoot = "/var/lib/calyx"

	c, err := coordinator.New(cfg)
	if err != nil {
		log.Fatal(err.Error())
	}
	defer c.Close()

	report := c.Pulse(ctx)        // one cycle
	err = c.Serve(ctx)            // or loop until canceled

# See Also

  - Package engine: per-intent execution invoked in stage 6
  - Package state: world model consulted in stages 1, 2, and 6
  - Package intent: queue consumed in stages 3 and 4
  - Package escalate: stall tracking behind stage 5
*/
package coordinator
