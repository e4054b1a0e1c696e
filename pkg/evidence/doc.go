/*
Package evidence appends typed events to the station's append-only
evidence stream (evidence/events.jsonl).

The coordinator writes evidence when it refuses work: the three
INTENT_REJECTED_* types record why an intent never entered the queue.
Collaborator processes (governance tooling, dashboards) consume the
stream; nothing in the pulse path ever reads it back.

Every event carries a UUID, a timestamp, the emitting node role, and the
coordinator's session ID, so one process's rejections can be grouped even
when several coordinators share a station.

A nil *Recorder is valid and drops events. This keeps construction sites
clean: components accept a recorder and never check it.

	rec := evidence.NewRecorder(layout.EvidenceLog())
	rec.Append(evidence.NewEvent(
		evidence.TypeIntentRejectedUnclarified,
		"coordinator",
		"intent i-7 rejected: artifact not clarified",
		map[string]interface{}{"intent_id": "i-7"},
		[]string{"intent", "gate"},
		sessionID,
	))
*/
package evidence
