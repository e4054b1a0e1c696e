package engine

import (
	"fmt"

	"github.com/stationcalyx/calyx/pkg/domain"
	"github.com/stationcalyx/calyx/pkg/escalate"
	"github.com/stationcalyx/calyx/pkg/log"
	"github.com/stationcalyx/calyx/pkg/manifest"
	"github.com/stationcalyx/calyx/pkg/types"
	"github.com/stationcalyx/calyx/pkg/verify"
)

// Engine turns one prioritized intent into at most one completed
// execution. Per process it is single-threaded; manifests provide the
// cross-process exclusivity.
type Engine struct {
	domains   *domain.Registry
	manifests *manifest.Store
	verifier  *verify.Verifier
	tracker   *escalate.Manager
}

// NewEngine creates an execution engine
func NewEngine(domains *domain.Registry, manifests *manifest.Store, verifier *verify.Verifier, tracker *escalate.Manager) *Engine {
	return &Engine{
		domains:   domains,
		manifests: manifests,
		verifier:  verifier,
		tracker:   tracker,
	}
}

// ExecuteIntent resolves the intent's capabilities against the registry,
// claims a manifest, runs the domain under a panic guard, and routes the
// result through verification. Every path clears the stall tracker.
func (e *Engine) ExecuteIntent(intent types.Intent, st types.SystemState) types.ExecutionOutcome {
	outcome := types.ExecutionOutcome{IntentID: intent.ID}
	logger := log.WithIntentID(intent.ID)

	var dom domain.Domain
	for _, capability := range intent.RequiredCapabilities {
		d, ok := e.domains.Get(capability)
		if !ok {
			continue
		}
		if d.CanExecute(st) {
			dom = d
			break
		}
	}
	if dom == nil {
		outcome.Status = types.StatusSkipped
		outcome.Reason = "no matching autonomous domain"
		return outcome
	}
	outcome.Domain = dom.Name()

	manifestID, err := e.manifests.Create(intent.ID, map[string]interface{}{
		"intent_id":   intent.ID,
		"capability":  dom.Name(),
		"description": intent.Description,
	})
	if err != nil {
		outcome.Status = types.StatusError
		outcome.Error = fmt.Sprintf("failed to create manifest: %v", err)
		return outcome
	}
	outcome.ManifestID = manifestID

	if !e.manifests.Claim(manifestID) {
		outcome.Status = types.StatusSkipped
		outcome.Reason = "manifest already claimed"
		return outcome
	}

	e.tracker.Track(intent.ID)
	defer e.tracker.Untrack(intent.ID)

	result, panicMsg := e.runDomain(dom, intent)
	if panicMsg != "" {
		if err := e.manifests.MarkFailed(manifestID, panicMsg); err != nil {
			logger.Warn().Err(err).Msg("Failed to mark manifest failed")
		}
		outcome.Status = types.StatusError
		outcome.Error = panicMsg
		return outcome
	}

	// The domain's own post-check can demote a done result before
	// verification sees it
	if result.Status == types.StatusDone && !dom.VerifySuccess(result) {
		result.Status = types.StatusFailed
		if result.Error == "" {
			result.Error = "domain post-check rejected the result"
		}
	}

	verification := e.verifier.VerifyExecution(intent, result)
	if verification.Success {
		if err := e.manifests.MarkComplete(manifestID, &result); err != nil {
			logger.Warn().Err(err).Msg("Failed to mark manifest complete")
		}
		outcome.Status = types.StatusDone
		outcome.Result = &result
		outcome.Confidence = verification.Confidence
		return outcome
	}

	rollback := dom.Rollback(result)
	errMsg := result.Error
	if errMsg == "" {
		errMsg = fmt.Sprintf("verification rejected %s result", result.Status)
	}
	if err := e.manifests.MarkFailed(manifestID, errMsg); err != nil {
		logger.Warn().Err(err).Msg("Failed to mark manifest failed")
	}
	outcome.Status = types.StatusFailed
	outcome.Result = &result
	outcome.Rollback = &rollback
	return outcome
}

// runDomain invokes Execute with a recover guard so a panicking domain
// cannot take the pulse down with it
func (e *Engine) runDomain(dom domain.Domain, intent types.Intent) (result types.DomainResult, panicMsg string) {
	defer func() {
		if r := recover(); r != nil {
			panicMsg = fmt.Sprintf("domain %s panicked: %v", dom.Name(), r)
			logger := log.WithComponent("engine")
			logger.Error().Str("domain", dom.Name()).Str("intent_id", intent.ID).Msgf("Recovered domain panic: %v", r)
		}
	}()
	result = dom.Execute(intent)
	return result, ""
}
