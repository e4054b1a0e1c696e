/*
Package telemetry converts heterogeneous on-disk station artifacts into a
uniform stream of event envelopes.

Two intake channels exist:

  - Overseer heartbeat (outgoing/cbo.lock): one status envelope per pulse
    when the file's mtime is within the freshness window. The payload
    carries the overseer's metrics, gates, locks, and capacity maps.
  - Metrics CSV (logs/agent_metrics.csv): up to five metric envelopes per
    pulse from the file tail, with numeric columns coerced to float64.

# Policies

Malformed input never surfaces. Unreadable files yield empty results;
rows with short fields or failing numeric parses are dropped one at a
time; partial reads produce partial batches. IngestRecent has no error
return on purpose: the state core must receive whatever could be read,
and a dead overseer must not stop a pulse.

The heartbeat freshness window is wall-clock file mtime. Payload
timestamps are informational only; an agent with a wrong clock still
counts as alive if it keeps touching its heartbeat file.

# Usage

	reader := telemetry.NewReader(layout, 5*time.Minute)
	events := reader.IngestRecent()
	stateCore.UpdateFromEvents(events)

Ordering is heartbeat first, then CSV rows in file order; the state core
applies envelopes in exactly this order.
*/
package telemetry
