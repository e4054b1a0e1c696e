package types

import (
	"time"
)

// EventEnvelope is the normalized form of every telemetry artifact the
// coordinator ingests. All readers produce envelopes; the state core
// consumes them in order.
type EventEnvelope struct {
	Timestamp  time.Time              `json:"timestamp"`
	Source     string                 `json:"source"`
	Category   EventCategory          `json:"category"`
	Payload    map[string]interface{} `json:"payload"`
	Confidence float64                `json:"confidence"` // [0,1]
	Version    string                 `json:"version"`
}

// EventCategory classifies an event envelope
type EventCategory string

const (
	CategoryStatus     EventCategory = "status"
	CategoryMetric     EventCategory = "metric"
	CategoryAlert      EventCategory = "alert"
	CategoryCompletion EventCategory = "completion"
)

// AutonomyMode is the system-wide permission level for autonomous execution
type AutonomyMode string

const (
	// AutonomySuggest observes and reports only; nothing is executed
	AutonomySuggest AutonomyMode = "suggest"

	// AutonomyGuide executes intents that declared suggest or guide;
	// intents requiring execute stay queued
	AutonomyGuide AutonomyMode = "guide"

	// AutonomyExecute executes any prioritized intent with a matching domain
	AutonomyExecute AutonomyMode = "execute"
)

// Valid reports whether m is one of the three defined modes.
func (m AutonomyMode) Valid() bool {
	switch m {
	case AutonomySuggest, AutonomyGuide, AutonomyExecute:
		return true
	}
	return false
}

// AtLeast reports whether m grants at least the permission level of other.
// Ordering: suggest < guide < execute. Unknown modes rank below suggest.
func (m AutonomyMode) AtLeast(other AutonomyMode) bool {
	return m.rank() >= other.rank()
}

func (m AutonomyMode) rank() int {
	switch m {
	case AutonomySuggest:
		return 1
	case AutonomyGuide:
		return 2
	case AutonomyExecute:
		return 3
	}
	return 0
}

// Risk scores an intent's blast radius
type Risk struct {
	Impact     float64 `json:"impact"`     // [0,1]
	Likelihood float64 `json:"likelihood"` // [0,1]
	Score      float64 `json:"score"`      // impact * likelihood
}

// Intent is a declarative statement of something the operator or an
// internal policy wants done. Intents are scored and prioritized, never
// commanded. An intent is immutable once accepted; a changed intent is a
// new intent.
type Intent struct {
	ID                   string       `json:"id"`
	Origin               string       `json:"origin"`
	Version              string       `json:"version"`
	Description          string       `json:"description"`
	RequiredCapabilities []string     `json:"required_capabilities"`
	DesiredOutcome       string       `json:"desired_outcome"`
	PriorityHint         float64      `json:"priority_hint"` // [0,100]
	Expiry               *time.Time   `json:"expiry,omitempty"`
	AutonomyRequired     AutonomyMode `json:"autonomy_required"`
	Risk                 Risk         `json:"risk"`
	SimilarTo            string       `json:"similar_to,omitempty"`
	CreatedAt            time.Time    `json:"created_at"`
}

// AgentStatus is the per-agent liveness snapshot derived from heartbeat
// lock files. TS is epoch seconds as written by the agent.
type AgentStatus struct {
	Status string  `json:"status"`
	Phase  string  `json:"phase"`
	TS     float64 `json:"ts"`
}

// SystemState is the shared world model. One JSON file on disk, rewritten
// in full per pulse. LastUpdated never decreases.
type SystemState struct {
	LastUpdated      time.Time              `json:"last_updated"`
	ResourceHeadroom map[string]bool        `json:"resource_headroom"`
	Gates            map[string]interface{} `json:"gates"`
	AgentStatus      map[string]AgentStatus `json:"agent_status"`
	TESSummary       map[string]float64     `json:"tes_summary"`
	FailureStreaks   map[string]int         `json:"failure_streaks"`
	AutonomyMode     AutonomyMode           `json:"autonomy_mode"`
}

// GuardrailReport lists health violations derived from current state.
// Violations are reported per pulse; enforcement is delegated to domain
// CanExecute checks.
type GuardrailReport struct {
	Violations []string `json:"violations"`
	OK         bool     `json:"ok"`
}

// ManifestStatus represents the lifecycle state of an execution manifest
type ManifestStatus string

const (
	ManifestCreated  ManifestStatus = "created"
	ManifestClaimed  ManifestStatus = "claimed"
	ManifestComplete ManifestStatus = "complete"
	ManifestFailed   ManifestStatus = "failed"
)

// Manifest is a content-addressed execution token. Two proposals with
// byte-identical canonical content share a ManifestID, which is what makes
// duplicate dispatch across pulses and processes impossible.
type Manifest struct {
	ManifestID  string                 `json:"manifest_id"`
	IntentID    string                 `json:"intent_id"`
	CreatedAt   time.Time              `json:"created_at"`
	Content     map[string]interface{} `json:"content"`
	Status      ManifestStatus         `json:"status"`
	ClaimedAt   *time.Time             `json:"claimed_at,omitempty"`
	CompletedAt *time.Time             `json:"completed_at,omitempty"`
	FailedAt    *time.Time             `json:"failed_at,omitempty"`
	Result      *DomainResult          `json:"result,omitempty"`
	Error       string                 `json:"error,omitempty"`
}

// ExecStatus represents the outcome status of a domain execution or an
// engine invocation. Domains return done, error, or skipped; the engine
// additionally produces failed when verification rejects a result.
type ExecStatus string

const (
	StatusDone    ExecStatus = "done"
	StatusFailed  ExecStatus = "failed"
	StatusError   ExecStatus = "error"
	StatusSkipped ExecStatus = "skipped"
)

// DomainResult is what a domain's Execute returns. Detail carries
// domain-specific counts and paths.
type DomainResult struct {
	Status ExecStatus             `json:"status"`
	Detail map[string]interface{} `json:"detail,omitempty"`
	Error  string                 `json:"error,omitempty"`
}

// Verification is the verdict of the verification loop for one execution
type Verification struct {
	Success    bool    `json:"success"`
	Confidence float64 `json:"confidence"`
	Capability string  `json:"capability"`
}

// ExecutionOutcome is the engine's per-intent result, embedded in pulse
// reports and the audit summary.
type ExecutionOutcome struct {
	IntentID   string        `json:"intent_id"`
	Status     ExecStatus    `json:"status"`
	Reason     string        `json:"reason,omitempty"`
	ManifestID string        `json:"manifest_id,omitempty"`
	Domain     string        `json:"domain,omitempty"`
	Result     *DomainResult `json:"result,omitempty"`
	Error      string        `json:"error,omitempty"`
	Confidence float64       `json:"confidence,omitempty"`
	Rollback   *DomainResult `json:"rollback,omitempty"`
}

// ExecutionRecord is one line of the append-only execution history
type ExecutionRecord struct {
	Timestamp         time.Time     `json:"timestamp"`
	IntentID          string        `json:"intent_id"`
	IntentDescription string        `json:"intent_description"`
	Result            *DomainResult `json:"result"`
	Success           bool          `json:"success"`
}

// Stall describes an execution that has been in flight longer than the
// stall threshold without completing.
type Stall struct {
	IntentID       string  `json:"intent_id"`
	ElapsedMinutes float64 `json:"elapsed_minutes"`
	Status         string  `json:"status"`
}

// Severity grades an escalation
type Severity string

const (
	SeverityLow      Severity = "low"
	SeverityMedium   Severity = "medium"
	SeverityHigh     Severity = "high"
	SeverityCritical Severity = "critical"
)

// Escalation is an artifact filed to request human review of a stall or
// unresolved condition. One file per escalation.
type Escalation struct {
	ID             string     `json:"id"`
	Timestamp      time.Time  `json:"timestamp"`
	Intent         Intent     `json:"intent"`
	Reason         string     `json:"reason"`
	Severity       Severity   `json:"severity"`
	ActionRequired string     `json:"action_required"`
	Resolved       bool       `json:"resolved"`
	Resolution     string     `json:"resolution,omitempty"`
	ResolvedAt     *time.Time `json:"resolved_at,omitempty"`
}

// AuditEntry is one row of the compact execution audit summary
type AuditEntry struct {
	IntentID   string     `json:"intent_id"`
	Status     ExecStatus `json:"status"`
	ManifestID string     `json:"manifest_id,omitempty"`
	Domain     string     `json:"domain,omitempty"`
}

// PulseReport is the full structured result of one pulse. It is returned
// to the caller and written to the bridge directory; it is never an error.
type PulseReport struct {
	Timestamp         time.Time          `json:"timestamp"`
	EventsIngested    int                `json:"events_ingested"`
	IntentsExpired    int                `json:"intents_expired"`
	IntentsQueued     int                `json:"intents_queued"`
	Guardrails        GuardrailReport    `json:"guardrails"`
	TopIntents        []Intent           `json:"top_intents"`
	Stalls            []Stall            `json:"stalls"`
	Executions        []ExecutionOutcome `json:"executions"`
	ActiveEscalations int                `json:"active_escalations"`
	Errors            []string           `json:"errors,omitempty"`
}

// Event is an in-process notification published on the broker (for serve
// mode and tests; never persisted).
type Event struct {
	Type      string                 `json:"type"`
	Timestamp time.Time              `json:"timestamp"`
	IntentID  string                 `json:"intent_id,omitempty"`
	Message   string                 `json:"message,omitempty"`
	Data      map[string]interface{} `json:"data,omitempty"`
}
