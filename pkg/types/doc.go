/*
Package types defines the core data structures used throughout Station Calyx.

This package contains all fundamental types of the coordinator's domain
model: event envelopes, intents, system state, manifests, execution
outcomes, escalations, and pulse reports. Every other package consumes
these types; none of them imports anything above this package.

# Architecture

The types package is the foundation of the coordinator's data model. It
defines:

  - Telemetry normalization (EventEnvelope, EventCategory)
  - Intent semantics, policy, and risk (Intent, Risk, AutonomyMode)
  - The shared world model (SystemState, AgentStatus, GuardrailReport)
  - Execution tokens (Manifest, ManifestStatus)
  - Execution results (DomainResult, ExecutionOutcome, ExecStatus)
  - Learning records (Verification, ExecutionRecord)
  - Human escalation artifacts (Escalation, Stall, Severity)
  - Pulse output (PulseReport, AuditEntry)

All persisted types carry snake_case JSON tags. The on-disk artifacts are
shared with non-Go collaborator processes (agents, dashboards, governance
tools), so the wire names are part of the station's contract and must not
drift.

# Core Types

Telemetry:
  - EventEnvelope: normalized unit of ingested telemetry
  - EventCategory: status, metric, alert, completion

Intents:
  - Intent: identity, semantics, policy, and risk of one declared goal
  - AutonomyMode: suggest, guide, execute (ordered permission ladder)
  - Risk: impact x likelihood scoring

World model:
  - SystemState: resource headroom, gates, agent status, failure streaks
  - GuardrailReport: violations derived from state, reported per pulse

Execution:
  - Manifest: content-addressed execution token with claim lifecycle
  - DomainResult: what a domain's Execute returns
  - ExecutionOutcome: the engine's per-intent verdict
  - ExecutionRecord: one appended history line per verified execution

Escalation:
  - Stall: an execution in flight past the stall threshold
  - Escalation: filed artifact requesting human review

# Usage

Creating an Intent:

	expiry := time.Now().Add(6 * time.Hour)
	intent := types.Intent{
		ID:                   "i-rotate-logs",
		Origin:               "operator",
		Version:              "i1",
		Description:          "rotate stale agent logs",
		RequiredCapabilities: []string{"log_rotation"},
		DesiredOutcome:       "logs/ holds fewer than 20 live files",
		PriorityHint:         40,
		Expiry:               &expiry,
		AutonomyRequired:     types.AutonomyGuide,
		Risk:                 types.Risk{Impact: 0.2, Likelihood: 0.9, Score: 0.18},
	}

Checking autonomy gates:

	if mode.AtLeast(intent.AutonomyRequired) {
		// the current mode covers what the intent asked for
	}

# Intent State Machine

From the coordinator's viewpoint an intent moves through:

	proposed → accepted → [aged | prioritized] → executing → {done, failed, error} → removed
	                                           ↘ stalled → escalated
	                                           ↘ expired → removed

Escalation is a side branch, not a terminal state; the terminal state from
the queue's perspective is always removal.

# Design Patterns

Enumeration pattern:

	All enums use typed string constants:
	  type ExecStatus string
	  const (
	      StatusDone    ExecStatus = "done"
	      StatusSkipped ExecStatus = "skipped"
	  )

Optional fields:

	Timestamps that may be unset use pointers (*time.Time) so the JSON
	artifacts omit them rather than writing zero times:
	  - Intent.Expiry: nil = never expires
	  - Manifest.ClaimedAt / CompletedAt / FailedAt: nil = not yet

Payload maps:

	Envelope payloads and manifest content are map[string]interface{}
	because their shape is owned by external collaborators. Everything the
	coordinator itself owns is a named struct field.

# Integration Points

This package integrates with:

  - pkg/telemetry: produces EventEnvelope values
  - pkg/state: owns SystemState and GuardrailReport
  - pkg/intent: owns the Intent queue
  - pkg/manifest: owns Manifest lifecycle
  - pkg/domain: consumes SystemState, produces DomainResult
  - pkg/engine: produces ExecutionOutcome
  - pkg/verify: produces Verification and ExecutionRecord
  - pkg/escalate: owns Stall and Escalation
  - pkg/coordinator: assembles PulseReport

# Thread Safety

Types here are plain values with no internal locking. Owning packages
synchronize access and hand out copies; mutating a value obtained from
another component never affects that component's state.

# See Also

  - pkg/coordinator for how these types flow through one pulse
  - pkg/manifest for the content-address identity rules
*/
package types
