package escalate

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/stationcalyx/calyx/pkg/config"
	"github.com/stationcalyx/calyx/pkg/log"
	"github.com/stationcalyx/calyx/pkg/types"
)

// Manager tracks in-flight executions in memory and persists escalations
// for humans under outgoing/escalations/. The tracker does not survive a
// restart; escalation files do.
type Manager struct {
	mu        sync.Mutex
	dir       string
	threshold time.Duration
	started   map[string]time.Time
	now       func() time.Time
}

// NewManager creates an escalation manager. threshold is how long an
// execution may run before it counts as stalled.
func NewManager(layout config.Layout, threshold time.Duration) *Manager {
	return &Manager{
		dir:       layout.EscalationDir(),
		threshold: threshold,
		started:   make(map[string]time.Time),
		now:       time.Now,
	}
}

// Track records that an execution for the intent has started
func (m *Manager) Track(intentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started[intentID] = m.now()
}

// TrackAt records an execution start at an explicit time, for callers
// reconstructing tracker state they learned about after the fact.
func (m *Manager) TrackAt(intentID string, started time.Time) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.started[intentID] = started
}

// Untrack clears the execution record for the intent
func (m *Manager) Untrack(intentID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.started, intentID)
}

// CheckStalls returns every tracked execution older than the threshold,
// sorted by intent ID
func (m *Manager) CheckStalls() []types.Stall {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	var stalls []types.Stall
	for intentID, started := range m.started {
		elapsed := now.Sub(started)
		if elapsed <= m.threshold {
			continue
		}
		stalls = append(stalls, types.Stall{
			IntentID:       intentID,
			ElapsedMinutes: elapsed.Minutes(),
			Status:         "stalled",
		})
	}
	sort.Slice(stalls, func(i, j int) bool {
		return stalls[i].IntentID < stalls[j].IntentID
	})
	return stalls
}

// Escalate writes an escalation file with a full intent snapshot and
// returns its ID. IDs are epoch-based; a second escalation in the same
// second gets a numeric suffix.
func (m *Manager) Escalate(intent types.Intent, reason string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	id := fmt.Sprintf("esc-%d", now.Unix())
	for n := 1; ; n++ {
		if _, err := os.Stat(m.path(id)); os.IsNotExist(err) {
			break
		}
		id = fmt.Sprintf("esc-%d-%d", now.Unix(), n)
	}

	esc := types.Escalation{
		ID:             id,
		Timestamp:      now,
		Intent:         intent,
		Reason:         reason,
		Severity:       types.SeverityMedium,
		ActionRequired: "human_review",
		Resolved:       false,
	}
	data, err := json.MarshalIndent(esc, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode escalation: %w", err)
	}
	if err := os.WriteFile(m.path(id), data, 0644); err != nil {
		return "", fmt.Errorf("failed to write escalation: %w", err)
	}

	logger := log.WithComponent("escalate")
	logger.Warn().Str("escalation_id", id).Str("intent_id", intent.ID).Str("reason", reason).Msg("Escalated to human review")
	return id, nil
}

// Resolve marks an escalation resolved with the human's decision
func (m *Manager) Resolve(id, decision string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	data, err := os.ReadFile(m.path(id))
	if err != nil {
		return fmt.Errorf("escalation not found: %s", id)
	}
	var esc types.Escalation
	if err := json.Unmarshal(data, &esc); err != nil {
		return fmt.Errorf("failed to parse escalation %s: %w", id, err)
	}

	now := m.now()
	esc.Resolved = true
	esc.Resolution = decision
	esc.ResolvedAt = &now

	out, err := json.MarshalIndent(esc, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode escalation: %w", err)
	}
	return os.WriteFile(m.path(id), out, 0644)
}

// Active returns the unresolved escalations sorted by ID. Unreadable
// files are skipped.
func (m *Manager) Active() []types.Escalation {
	return m.list(false)
}

// All returns every escalation on disk, resolved included, sorted by ID
func (m *Manager) All() []types.Escalation {
	return m.list(true)
}

func (m *Manager) list(includeResolved bool) []types.Escalation {
	m.mu.Lock()
	defer m.mu.Unlock()

	entries, err := os.ReadDir(m.dir)
	if err != nil {
		return nil
	}

	var escalations []types.Escalation
	for _, entry := range entries {
		name := entry.Name()
		if entry.IsDir() || !strings.HasPrefix(name, "esc-") || !strings.HasSuffix(name, ".json") {
			continue
		}
		data, err := os.ReadFile(filepath.Join(m.dir, name))
		if err != nil {
			continue
		}
		var esc types.Escalation
		if err := json.Unmarshal(data, &esc); err != nil {
			logger := log.WithComponent("escalate")
			logger.Debug().Str("file", name).Msg("Skipping unparseable escalation file")
			continue
		}
		if includeResolved || !esc.Resolved {
			escalations = append(escalations, esc)
		}
	}
	sort.Slice(escalations, func(i, j int) bool {
		return escalations[i].ID < escalations[j].ID
	})
	return escalations
}

func (m *Manager) path(id string) string {
	return filepath.Join(m.dir, id+".json")
}
