package intent

import (
	"bufio"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/stationcalyx/calyx/pkg/artifact"
	"github.com/stationcalyx/calyx/pkg/evidence"
	"github.com/stationcalyx/calyx/pkg/log"
	"github.com/stationcalyx/calyx/pkg/metrics"
	"github.com/stationcalyx/calyx/pkg/types"
)

const (
	// maxFreshnessBoost caps the expiry-derived priority bonus
	maxFreshnessBoost = 20.0

	// DefaultPrioritizeLimit bounds how many intents one pulse considers
	DefaultPrioritizeLimit = 5
)

// Pipeline maintains the ordered set of pending intents. Persistence is
// a JSONL file rewritten on every mutation; the in-memory slice is the
// authority between mutations.
type Pipeline struct {
	mu        sync.Mutex
	path      string
	artifacts artifact.Registry
	recorder  *evidence.Recorder
	sessionID string
	intents   []types.Intent
}

// NewPipeline loads the intent file at path. Unparseable lines are
// skipped; a missing file is an empty queue. artifacts backs the
// clarification gate and must not be nil; recorder may be nil.
func NewPipeline(path string, artifacts artifact.Registry, recorder *evidence.Recorder, sessionID string) *Pipeline {
	p := &Pipeline{
		path:      path,
		artifacts: artifacts,
		recorder:  recorder,
		sessionID: sessionID,
	}
	p.load()
	return p
}

func (p *Pipeline) load() {
	f, err := os.Open(p.path)
	if err != nil {
		return
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := scanner.Bytes()
		if len(line) == 0 {
			continue
		}
		var in types.Intent
		if err := json.Unmarshal(line, &in); err != nil {
			logger := log.WithComponent("intent")
			logger.Debug().Err(err).Msg("skipping unparseable intent line")
			continue
		}
		p.intents = append(p.intents, in)
	}
}

// Add runs the artifact gate and dedup check, then appends and persists.
// Returns true only when the intent entered the queue. The error is
// non-nil only for persistence failures; gate rejections and dedups are
// policy outcomes, not errors.
func (p *Pipeline) Add(in types.Intent) (bool, error) {
	if !p.passGate(in) {
		return false, nil
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	for _, existing := range p.intents {
		if existing.Description == in.Description && equalCapabilities(existing.RequiredCapabilities, in.RequiredCapabilities) {
			logger := log.WithIntentID(in.ID)
			logger.Debug().Msg("duplicate intent ignored")
			return false, nil
		}
	}

	normalize(&in)

	next := append(append([]types.Intent{}, p.intents...), in)
	if err := p.persist(next); err != nil {
		return false, err
	}
	p.intents = next
	return true, nil
}

// passGate checks the intent artifact registry. Each rejection appends a
// typed evidence event; evidence write failures are logged, never
// surfaced.
func (p *Pipeline) passGate(in types.Intent) bool {
	a, err := p.artifacts.Load(in.ID)

	switch {
	case errors.Is(err, artifact.ErrNotFound):
		p.reject(in, evidence.TypeIntentRejectedNoArtifact,
			fmt.Sprintf("intent %s rejected: no artifact on record", in.ID))
		return false
	case err != nil:
		p.reject(in, evidence.TypeIntentRejectedArtifactError,
			fmt.Sprintf("intent %s rejected: artifact registry error: %v", in.ID, err))
		return false
	case !a.Clarified:
		p.reject(in, evidence.TypeIntentRejectedUnclarified,
			fmt.Sprintf("intent %s rejected: artifact not clarified", in.ID))
		return false
	}
	return true
}

func (p *Pipeline) reject(in types.Intent, eventType, summary string) {
	metrics.IntentRejectionsTotal.WithLabelValues(rejectionReason(eventType)).Inc()

	ev := evidence.NewEvent(eventType, "coordinator", summary,
		map[string]interface{}{
			"intent_id":   in.ID,
			"description": in.Description,
			"origin":      in.Origin,
		},
		[]string{"intent", "gate"},
		p.sessionID)
	if err := p.recorder.Append(ev); err != nil {
		logger := log.WithComponent("intent")
		logger.Error().Err(err).Str("event_type", eventType).Msg("failed to append rejection evidence")
	}
}

func rejectionReason(eventType string) string {
	switch eventType {
	case evidence.TypeIntentRejectedNoArtifact:
		return "no_artifact"
	case evidence.TypeIntentRejectedUnclarified:
		return "unclarified"
	case evidence.TypeIntentRejectedArtifactError:
		return "artifact_error"
	}
	return "other"
}

func normalize(in *types.Intent) {
	if in.CreatedAt.IsZero() {
		in.CreatedAt = time.Now()
	}
	if in.Version == "" {
		in.Version = "i1"
	}
	if in.AutonomyRequired == "" {
		in.AutonomyRequired = types.AutonomySuggest
	} else if !in.AutonomyRequired.Valid() {
		// unknown levels gate at the strictest rung
		logger := log.WithIntentID(in.ID)
		logger.Warn().Str("autonomy_required", string(in.AutonomyRequired)).Msg("unknown autonomy level, requiring execute")
		in.AutonomyRequired = types.AutonomyExecute
	}
	if in.Risk.Score == 0 {
		in.Risk.Score = in.Risk.Impact * in.Risk.Likelihood
	}
}

func equalCapabilities(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

// Prioritized returns the top intents by computed priority, descending.
// Ties keep insertion order. The returned intents are copies.
func (p *Pipeline) Prioritized(limit int) []types.Intent {
	if limit <= 0 {
		limit = DefaultPrioritizeLimit
	}

	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	ordered := make([]types.Intent, len(p.intents))
	copy(ordered, p.intents)

	sort.SliceStable(ordered, func(i, j int) bool {
		return Priority(ordered[i], now) > Priority(ordered[j], now)
	})

	if len(ordered) > limit {
		ordered = ordered[:limit]
	}

	out := make([]types.Intent, len(ordered))
	for i, in := range ordered {
		out[i] = copyIntent(in)
	}
	return out
}

// Priority computes an intent's score at a point in time:
// priority_hint + 10*impact + 5*likelihood + freshness boost. The boost
// is min(20, hours_until_expiry * 2) for future expiries, else 0.
func Priority(in types.Intent, now time.Time) float64 {
	p := in.PriorityHint + 10*in.Risk.Impact + 5*in.Risk.Likelihood

	if in.Expiry != nil && in.Expiry.After(now) {
		boost := in.Expiry.Sub(now).Hours() * 2
		if boost > maxFreshnessBoost {
			boost = maxFreshnessBoost
		}
		p += boost
	}
	return p
}

// ExpireIntents removes intents whose expiry has passed and returns how
// many were dropped. Idempotent when no time passes.
func (p *Pipeline) ExpireIntents() int {
	p.mu.Lock()
	defer p.mu.Unlock()

	now := time.Now()
	kept := p.intents[:0:0]
	expired := 0
	for _, in := range p.intents {
		if in.Expiry != nil && in.Expiry.Before(now) {
			expired++
			continue
		}
		kept = append(kept, in)
	}

	if expired == 0 {
		return 0
	}

	if err := p.persist(kept); err != nil {
		logger := log.WithComponent("intent")
		logger.Error().Err(err).Msg("failed to persist after expiry")
		return 0
	}
	p.intents = kept
	return expired
}

// Remove drops an intent by ID. Returns false when no such intent is
// queued.
func (p *Pipeline) Remove(id string) bool {
	p.mu.Lock()
	defer p.mu.Unlock()

	for i, in := range p.intents {
		if in.ID != id {
			continue
		}
		next := append(append([]types.Intent{}, p.intents[:i]...), p.intents[i+1:]...)
		if err := p.persist(next); err != nil {
			logger := log.WithComponent("intent")
			logger.Error().Err(err).Str("intent_id", id).Msg("failed to persist after removal")
			return false
		}
		p.intents = next
		return true
	}
	return false
}

// Get returns a copy of the intent with the given ID
func (p *Pipeline) Get(id string) (types.Intent, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, in := range p.intents {
		if in.ID == id {
			return copyIntent(in), true
		}
	}
	return types.Intent{}, false
}

// Count returns the number of queued intents
func (p *Pipeline) Count() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.intents)
}

// All returns copies of every queued intent in insertion order
func (p *Pipeline) All() []types.Intent {
	p.mu.Lock()
	defer p.mu.Unlock()

	out := make([]types.Intent, len(p.intents))
	for i, in := range p.intents {
		out[i] = copyIntent(in)
	}
	return out
}

func copyIntent(in types.Intent) types.Intent {
	out := in
	out.RequiredCapabilities = append([]string{}, in.RequiredCapabilities...)
	if in.Expiry != nil {
		e := *in.Expiry
		out.Expiry = &e
	}
	return out
}

// persist rewrites the JSONL file via temp-then-rename. Callers hold
// the lock.
func (p *Pipeline) persist(intents []types.Intent) error {
	dir := filepath.Dir(p.path)
	tmp, err := os.CreateTemp(dir, ".intents-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp intent file: %w", err)
	}
	tmpName := tmp.Name()

	w := bufio.NewWriter(tmp)
	for _, in := range intents {
		data, err := json.Marshal(in)
		if err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("failed to marshal intent %s: %w", in.ID, err)
		}
		if _, err := w.Write(append(data, '\n')); err != nil {
			tmp.Close()
			os.Remove(tmpName)
			return fmt.Errorf("failed to write intent file: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to flush intent file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close intent file: %w", err)
	}
	if err := os.Rename(tmpName, p.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace intent file: %w", err)
	}
	return nil
}
