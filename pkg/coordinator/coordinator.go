package coordinator

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/stationcalyx/calyx/pkg/artifact"
	"github.com/stationcalyx/calyx/pkg/config"
	"github.com/stationcalyx/calyx/pkg/domain"
	"github.com/stationcalyx/calyx/pkg/engine"
	"github.com/stationcalyx/calyx/pkg/escalate"
	"github.com/stationcalyx/calyx/pkg/events"
	"github.com/stationcalyx/calyx/pkg/evidence"
	"github.com/stationcalyx/calyx/pkg/intent"
	"github.com/stationcalyx/calyx/pkg/log"
	"github.com/stationcalyx/calyx/pkg/manifest"
	"github.com/stationcalyx/calyx/pkg/metrics"
	"github.com/stationcalyx/calyx/pkg/state"
	"github.com/stationcalyx/calyx/pkg/telemetry"
	"github.com/stationcalyx/calyx/pkg/types"
	"github.com/stationcalyx/calyx/pkg/verify"
)

// topIntentCount bounds how many intent snapshots a pulse report carries
const topIntentCount = 3

// Coordinator owns one station's pulse loop. It wires the telemetry
// reader, state core, intent pipeline, domain registry, execution engine,
// verifier, and escalation tracker over a single station root, and runs
// the seven-stage pulse against them.
type Coordinator struct {
	cfg       *config.Config
	layout    config.Layout
	state     *state.Core
	telemetry *telemetry.Reader
	artifacts *artifact.BoltRegistry
	recorder  *evidence.Recorder
	intents   *intent.Pipeline
	domains   *domain.Registry
	manifests *manifest.Store
	verifier  *verify.Verifier
	tracker   *escalate.Manager
	engine    *engine.Engine
	broker    *events.Broker
	sessionID string
}

// New builds a coordinator rooted at cfg.StationRoot, creating the
// station directory tree when absent. The returned coordinator holds an
// open artifact database; call Close when done with it.
func New(cfg *config.Config) (*Coordinator, error) {
	layout := config.NewLayout(cfg.StationRoot)
	if err := layout.EnsureDirs(); err != nil {
		return nil, fmt.Errorf("failed to prepare station directories: %w", err)
	}

	artifacts, err := artifact.NewBoltRegistry(layout.ArtifactDB())
	if err != nil {
		return nil, err
	}
	metrics.RegisterComponent("artifact_registry", true, "")

	sessionID := uuid.New().String()
	recorder := evidence.NewRecorder(layout.EvidenceLog())

	stateCore := state.NewCore(layout.StateFile())
	metrics.RegisterComponent("state_core", true, "")

	intents := intent.NewPipeline(layout.IntentsFile(), artifacts, recorder, sessionID)
	metrics.RegisterComponent("intent_pipeline", true, "")

	domains := domain.DefaultRegistry(layout)
	manifests := manifest.NewStore(layout.ManifestDir(), cfg.Pulse.ClaimWindow())
	verifier := verify.NewVerifier(layout)
	tracker := escalate.NewManager(layout, cfg.Pulse.StallThreshold())

	broker := events.NewBroker()
	broker.Start()

	c := &Coordinator{
		cfg:       cfg,
		layout:    layout,
		state:     stateCore,
		telemetry: telemetry.NewReader(layout, cfg.Pulse.TelemetryWindow()),
		artifacts: artifacts,
		recorder:  recorder,
		intents:   intents,
		domains:   domains,
		manifests: manifests,
		verifier:  verifier,
		tracker:   tracker,
		engine:    engine.NewEngine(domains, manifests, verifier, tracker),
		broker:    broker,
		sessionID: sessionID,
	}
	metrics.RegisterComponent("coordinator", true, "")

	logger := log.WithComponent("coordinator")
	logger.Info().
		Str("station_root", cfg.StationRoot).
		Str("session_id", sessionID).
		Msg("coordinator ready")

	return c, nil
}

// Close stops the event broker and releases the artifact database
func (c *Coordinator) Close() error {
	c.broker.Stop()
	return c.artifacts.Close()
}

// AddIntent queues an intent through the pipeline's artifact gate and
// announces accepted intents on the broker. Gate rejections and dedups
// return false without error.
func (c *Coordinator) AddIntent(in types.Intent) (bool, error) {
	added, err := c.intents.Add(in)
	if added {
		c.broker.Publish(&types.Event{
			Type:     events.EventIntentAdded,
			IntentID: in.ID,
			Message:  in.Description,
		})
	}
	return added, err
}

// State returns the state core
func (c *Coordinator) State() *state.Core { return c.state }

// Intents returns the intent pipeline
func (c *Coordinator) Intents() *intent.Pipeline { return c.intents }

// Artifacts returns the intent artifact registry
func (c *Coordinator) Artifacts() *artifact.BoltRegistry { return c.artifacts }

// Escalations returns the stall tracker and escalation manager
func (c *Coordinator) Escalations() *escalate.Manager { return c.tracker }

// Verifier returns the verification loop
func (c *Coordinator) Verifier() *verify.Verifier { return c.verifier }

// Broker returns the in-process event broker
func (c *Coordinator) Broker() *events.Broker { return c.broker }

// Layout returns the station directory layout
func (c *Coordinator) Layout() config.Layout { return c.layout }

// Pulse runs one seven-stage cycle: reflect, guardrails, age, prioritize,
// stall detection, execution, report. It never panics and never returns
// an error; every stage failure is folded into the report's Errors.
func (c *Coordinator) Pulse(ctx context.Context) types.PulseReport {
	timer := metrics.NewTimer()
	logger := log.WithComponent("coordinator")

	report := types.PulseReport{Timestamp: time.Now()}
	c.broker.Publish(&types.Event{Type: events.EventPulseStarted, Message: "pulse started"})

	// 1. Reflect
	envelopes := c.telemetry.IngestRecent()
	report.EventsIngested = len(envelopes)
	metrics.EventsIngestedTotal.Add(float64(len(envelopes)))
	if err := c.state.UpdateFromEvents(envelopes); err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("state update: %v", err))
		metrics.UpdateComponent("state_core", false, err.Error())
	} else {
		metrics.UpdateComponent("state_core", true, "")
	}

	// 2. Guardrails. Violations are reported; enforcement is delegated
	// to domain CanExecute checks.
	report.Guardrails = c.state.CheckGuardrails()

	// 3. Age
	report.IntentsExpired = c.intents.ExpireIntents()
	if report.IntentsExpired > 0 {
		c.broker.Publish(&types.Event{
			Type:    events.EventIntentExpired,
			Message: fmt.Sprintf("%d intents expired", report.IntentsExpired),
			Data:    map[string]interface{}{"count": report.IntentsExpired},
		})
	}

	// 4. Prioritize. IntentsQueued snapshots the queue here, after
	// expiry and before execution removals.
	prioritized := c.intents.Prioritized(c.cfg.Pulse.PrioritizeLimit)
	report.IntentsQueued = c.intents.Count()
	if len(prioritized) > topIntentCount {
		report.TopIntents = prioritized[:topIntentCount]
	} else {
		report.TopIntents = prioritized
	}

	// 5. Detect stalls
	for _, stall := range c.tracker.CheckStalls() {
		report.Stalls = append(report.Stalls, stall)
		metrics.StallsDetectedTotal.Inc()
		c.broker.Publish(&types.Event{
			Type:     events.EventStallDetected,
			IntentID: stall.IntentID,
			Message:  fmt.Sprintf("execution in flight for %.1f minutes", stall.ElapsedMinutes),
		})
		c.escalateStall(stall, &report)
	}

	// 6. Execute
	if mode := c.state.AutonomyMode(); mode.AtLeast(types.AutonomyGuide) {
		c.executePrioritized(mode, prioritized, &report)
	} else {
		logger.Debug().Str("autonomy_mode", string(mode)).Msg("execution disabled by autonomy mode")
	}

	// 7. Report and audit
	report.ActiveEscalations = len(c.tracker.Active())
	c.writeAudit(&report)

	metrics.PulsesTotal.Inc()
	timer.ObserveDuration(metrics.PulseDuration)
	metrics.IntentsQueued.Set(float64(c.intents.Count()))
	metrics.EscalationsActive.Set(float64(report.ActiveEscalations))
	for capability, score := range c.verifier.ConfidenceMap() {
		metrics.CapabilityConfidence.WithLabelValues(capability).Set(score)
	}
	metrics.RecordPulse()

	c.broker.Publish(&types.Event{
		Type:    events.EventPulseCompleted,
		Message: "pulse completed",
		Data: map[string]interface{}{
			"events_ingested": report.EventsIngested,
			"intents_queued":  report.IntentsQueued,
			"executions":      len(report.Executions),
			"stalls":          len(report.Stalls),
		},
	})

	logger.Info().
		Int("events_ingested", report.EventsIngested).
		Int("intents_expired", report.IntentsExpired).
		Int("intents_queued", report.IntentsQueued).
		Int("executions", len(report.Executions)).
		Int("stalls", len(report.Stalls)).
		Bool("guardrails_ok", report.Guardrails.OK).
		Dur("duration", timer.Duration()).
		Msg("pulse complete")

	return report
}

// executePrioritized dispatches up to MaxExecutions of the prioritized
// intents through the engine. In guide mode, intents that demand execute
// autonomy are considered but not dispatched. Any non-skipped outcome
// removes the intent from the queue so it cannot run twice; the
// RetainFailedIntents policy keeps failed and errored intents queued for
// another attempt.
func (c *Coordinator) executePrioritized(mode types.AutonomyMode, prioritized []types.Intent, report *types.PulseReport) {
	st := c.state.Snapshot()

	considered := prioritized
	if len(considered) > c.cfg.Pulse.MaxExecutions {
		considered = considered[:c.cfg.Pulse.MaxExecutions]
	}

	for _, in := range considered {
		canExec := c.canExecuteNow(in, st)
		c.traceDecision(in, canExec, report)

		if mode == types.AutonomyGuide && in.AutonomyRequired == types.AutonomyExecute {
			logger := log.WithIntentID(in.ID)
			logger.Debug().Msg("intent requires execute autonomy, holding in guide mode")
			continue
		}

		outcome := c.engine.ExecuteIntent(in, st)
		report.Executions = append(report.Executions, outcome)
		metrics.ExecutionsTotal.WithLabelValues(string(outcome.Status)).Inc()

		c.broker.Publish(&types.Event{
			Type:     events.EventExecutionFinished,
			IntentID: in.ID,
			Message:  fmt.Sprintf("execution finished with status %s", outcome.Status),
			Data: map[string]interface{}{
				"status":      string(outcome.Status),
				"manifest_id": outcome.ManifestID,
				"domain":      outcome.Domain,
			},
		})

		if outcome.Status == types.StatusSkipped {
			continue
		}
		if c.cfg.Pulse.RetainFailedIntents && outcome.Status != types.StatusDone {
			logger := log.WithIntentID(in.ID)
			logger.Info().Str("status", string(outcome.Status)).Msg("retaining intent after unsuccessful execution")
			continue
		}
		c.intents.Remove(in.ID)
	}
}

// canExecuteNow reports whether some registered domain covers one of the
// intent's capabilities and accepts the current state.
func (c *Coordinator) canExecuteNow(in types.Intent, st types.SystemState) bool {
	for _, capability := range in.RequiredCapabilities {
		if dom, ok := c.domains.Get(capability); ok && dom.CanExecute(st) {
			return true
		}
	}
	return false
}

// escalateStall files an escalation for a stalled execution. The queue
// intent is snapshotted when still present; a stub stands in when the
// intent is already gone.
func (c *Coordinator) escalateStall(stall types.Stall, report *types.PulseReport) {
	in, ok := c.intents.Get(stall.IntentID)
	if !ok {
		in = types.Intent{
			ID:          stall.IntentID,
			Description: "intent no longer queued",
		}
	}

	reason := fmt.Sprintf("Execution stalled for %.1f minutes", stall.ElapsedMinutes)
	id, err := c.tracker.Escalate(in, reason)
	if err != nil {
		report.Errors = append(report.Errors, fmt.Sprintf("escalation for %s: %v", stall.IntentID, err))
		return
	}

	c.broker.Publish(&types.Event{
		Type:     events.EventEscalationCreated,
		IntentID: stall.IntentID,
		Message:  reason,
		Data:     map[string]interface{}{"escalation_id": id},
	})
}
