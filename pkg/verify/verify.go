package verify

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"
	"time"

	"github.com/stationcalyx/calyx/pkg/config"
	"github.com/stationcalyx/calyx/pkg/log"
	"github.com/stationcalyx/calyx/pkg/types"
)

const (
	// defaultConfidence is the starting trust for an unseen capability
	defaultConfidence = 0.8

	// successDelta and failurePenalty are the bounded per-execution
	// updates. Failures cost more than successes earn, so trust is
	// slow to build and quick to dent.
	successDelta   = 0.02
	failurePenalty = 0.05

	minConfidence = 0.3
	maxConfidence = 1.0
)

// Verifier assesses execution results and maintains per-capability
// confidence plus the append-only execution history.
type Verifier struct {
	mu             sync.Mutex
	confidencePath string
	historyPath    string
	confidence     map[string]float64
	now            func() time.Time
}

// NewVerifier creates a verifier over the station layout, loading any
// existing confidence map. A missing or corrupt map starts empty.
func NewVerifier(layout config.Layout) *Verifier {
	v := &Verifier{
		confidencePath: layout.ConfidenceFile(),
		historyPath:    layout.HistoryFile(),
		confidence:     make(map[string]float64),
		now:            time.Now,
	}
	v.load()
	return v
}

// VerifyExecution assesses one result: success means the domain reported
// done. The capability's confidence is updated, persisted, and a history
// record appended. Bookkeeping failures are logged, never returned, so
// verification cannot abort a pulse.
func (v *Verifier) VerifyExecution(intent types.Intent, result types.DomainResult) types.Verification {
	v.mu.Lock()
	defer v.mu.Unlock()

	success := result.Status == types.StatusDone
	capability := "unknown"
	if len(intent.RequiredCapabilities) > 0 {
		capability = intent.RequiredCapabilities[0]
	}

	conf, ok := v.confidence[capability]
	if !ok {
		conf = defaultConfidence
	}
	if success {
		conf += successDelta
	} else {
		conf -= failurePenalty
	}
	if conf > maxConfidence {
		conf = maxConfidence
	}
	if conf < minConfidence {
		conf = minConfidence
	}
	v.confidence[capability] = conf

	if err := v.saveConfidence(); err != nil {
		logger := log.WithComponent("verify")
		logger.Warn().Err(err).Msg("Failed to persist confidence map")
	}
	if err := v.appendHistory(types.ExecutionRecord{
		Timestamp:         v.now(),
		IntentID:          intent.ID,
		IntentDescription: intent.Description,
		Result:            &result,
		Success:           success,
	}); err != nil {
		logger := log.WithComponent("verify")
		logger.Warn().Err(err).Msg("Failed to append execution history")
	}

	return types.Verification{
		Success:    success,
		Confidence: conf,
		Capability: capability,
	}
}

// Confidence returns the current trust in a capability, or the default
// for one that has never executed
func (v *Verifier) Confidence(capability string) float64 {
	v.mu.Lock()
	defer v.mu.Unlock()
	if conf, ok := v.confidence[capability]; ok {
		return conf
	}
	return defaultConfidence
}

// ConfidenceMap returns a copy of the full confidence map
func (v *Verifier) ConfidenceMap() map[string]float64 {
	v.mu.Lock()
	defer v.mu.Unlock()

	out := make(map[string]float64, len(v.confidence))
	for k, val := range v.confidence {
		out[k] = val
	}
	return out
}

func (v *Verifier) load() {
	data, err := os.ReadFile(v.confidencePath)
	if err != nil {
		return
	}
	loaded := make(map[string]float64)
	if err := json.Unmarshal(data, &loaded); err != nil {
		logger := log.WithComponent("verify")
		logger.Warn().Err(err).Str("path", v.confidencePath).Msg("Ignoring corrupt confidence map")
		return
	}
	v.confidence = loaded
}

// saveConfidence writes the map via temp file and rename
func (v *Verifier) saveConfidence() error {
	data, err := json.MarshalIndent(v.confidence, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode confidence map: %w", err)
	}
	tmp := v.confidencePath + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write confidence map: %w", err)
	}
	return os.Rename(tmp, v.confidencePath)
}

func (v *Verifier) appendHistory(rec types.ExecutionRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("failed to encode history record: %w", err)
	}
	f, err := os.OpenFile(v.historyPath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open history file: %w", err)
	}
	defer f.Close()
	_, err = f.Write(append(data, '\n'))
	return err
}
