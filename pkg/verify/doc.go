/*
Package verify closes the loop on executions: it decides whether a run
succeeded and converts that verdict into per-capability trust.

Success is the domain's word against the record: a result with status
done passed, anything else failed. Each verdict nudges the capability's
confidence by a bounded step (+0.02 on success, -0.05 on failure,
clamped to [0.3, 1.0], starting at 0.8). The asymmetry is deliberate
pacing: one bad run costs more than two good runs earn, but no streak
of failures can drive trust to zero and no streak of successes can
promise certainty.

Two artifacts persist across pulses:

	state/coordinator_confidence.json   the current trust map
	state/coordinator_history.jsonl     one record per verified execution

The confidence map is rewritten atomically after every update; the
history is append-only. Neither write can fail a verification, errors
are logged and the verdict still returns.

# Usage

	v := verify.NewVerifier(layout)

	verdict := v.VerifyExecution(intent, result)
	if !verdict.Success {
		// engine rolls back and marks the manifest failed
	}

	v.Confidence("log_rotation")  // 0.8 until proven otherwise

# See Also

  - pkg/engine: calls VerifyExecution after every domain run
  - pkg/domain: produces the results being verified
*/
package verify
