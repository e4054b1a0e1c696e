/*
Package escalate surfaces stalled or failing executions to humans.

It has two halves. The tracker is an in-memory map of execution start
times: Track on dispatch, Untrack on completion, and CheckStalls sweeps
for anything running longer than the stall threshold. Being in-memory is
the point. A crashed coordinator loses its tracker, and the orphaned
manifest claims simply age out of their window.

Escalations are the durable half: one JSON file per escalation under
outgoing/escalations/, carrying a full intent snapshot, the reason,
severity, and resolution state. The files are the queue a human works
through; Resolve writes the decision back into the same file, and
Active lists whatever is still open.

IDs are epoch seconds (esc-1761234567), suffixed -1, -2 when two
escalations land in the same second.

# Usage

	mgr := escalate.NewManager(layout, 15*time.Minute)

	mgr.Track(intent.ID)
	defer mgr.Untrack(intent.ID)

	for _, stall := range mgr.CheckStalls() {
		mgr.Escalate(intent, fmt.Sprintf("execution stalled for %.1f minutes", stall.ElapsedMinutes))
	}

# See Also

  - pkg/engine: tracks and untracks around each execution
  - pkg/coordinator: sweeps stalls once per pulse
*/
package escalate
