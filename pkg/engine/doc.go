/*
Package engine drives the execute step of a pulse: one intent in, at
most one completed execution out.

The engine is deliberately thin. Capability resolution belongs to the
domain registry, exclusivity to manifests, trust to verification, and
stall accounting to the escalation tracker. What the engine owns is the
order of operations and the guarantee that no path leaks state:

 1. Resolve the first capability whose domain volunteers via CanExecute.
    No volunteer means a skipped outcome, nothing was claimed.
 2. Create the content-addressed manifest and claim it. A lost claim
    means another process (or an earlier pulse) owns this exact action;
    the outcome is skipped, not failed.
 3. Track the execution, run the domain inside a recover guard. A panic
    marks the manifest failed and surfaces as an error outcome instead
    of taking the pulse down.
 4. Let the domain's own post-check demote a done result, then hand the
    result to verification. Success completes the manifest; anything
    else triggers rollback and marks it failed.

The stall tracker is cleared on every exit path, so an entry that
survives an ExecuteIntent call means the call itself never returned.

# Outcome statuses

	done     executed and verified
	failed   executed but verification rejected it (rollback attempted)
	error    the attempt itself blew up (panic, manifest io)
	skipped  nothing ran (no domain, or manifest already claimed)

# See Also

  - pkg/coordinator: invokes the engine for the top prioritized intents
  - pkg/manifest: the claim semantics the engine leans on
*/
package engine
