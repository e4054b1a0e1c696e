/*
Package state maintains the coordinator's shared world model.

The Core owns state/coordinator_state.json: resource headroom flags,
gate values, per-agent status, the TES summary, failure streaks, and the
system-wide autonomy mode. Everything the pulse decides is decided
against a Snapshot() of this state.

# Persistence Discipline

The state file is always valid JSON on disk. Writes go to a temp file in
the same directory followed by a rename, so a concurrent reader sees
either the old snapshot or the new one, never a torn write. Loading an
absent, empty, or corrupt file yields a defaulted state with autonomy
mode suggest; construction cannot fail.

last_updated is monotonically non-decreasing. The state is a snapshot,
not a log: when several coordinator processes share one station, last
writer wins, which is acceptable because every pulse rebuilds the
snapshot from live telemetry anyway.

# Event Application

UpdateFromEvents applies envelopes in ingestion order:

  - status envelopes (overseer heartbeat) overwrite gates, resource
    headroom (from capacity), and agent status (from locks)
  - metric envelopes update failure streaks: any non-success status
    increments failure_<autonomy_mode>; a success resets every streak
    to zero; tes values fold into the TES summary

# Guardrails

CheckGuardrails is a pure read producing one violation per false
resource flag and one per failure streak at or above the limit.
Violations are reported in the pulse report; the coordinator does not
refuse execution on them. Each autonomous domain self-gates through its
CanExecute check instead.

# Usage

	core := state.NewCore(layout.StateFile())
	if err := core.UpdateFromEvents(events); err != nil {
		log.Errorf("state update failed", err)
	}
	guard := core.CheckGuardrails()
	st := core.Snapshot()
*/
package state
