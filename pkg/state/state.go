package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"time"

	"github.com/stationcalyx/calyx/pkg/log"
	"github.com/stationcalyx/calyx/pkg/types"
)

// failureStreakLimit is the consecutive-failure count that trips the
// guardrail
const failureStreakLimit = 3

// Core is the single source of truth for the shared world model. One
// JSON file on disk, rewritten in full after each event batch.
type Core struct {
	mu      sync.RWMutex
	path    string
	current types.SystemState
}

// NewCore loads the state file at path. An absent, empty, or corrupt
// file yields a defaulted state with autonomy mode suggest; the state
// core never fails to construct.
func NewCore(path string) *Core {
	c := &Core{
		path:    path,
		current: defaultState(),
	}
	c.load()
	return c
}

func defaultState() types.SystemState {
	return types.SystemState{
		ResourceHeadroom: map[string]bool{},
		Gates:            map[string]interface{}{},
		AgentStatus:      map[string]types.AgentStatus{},
		TESSummary:       map[string]float64{},
		FailureStreaks:   map[string]int{},
		AutonomyMode:     types.AutonomySuggest,
	}
}

func (c *Core) load() {
	data, err := os.ReadFile(c.path)
	if err != nil || len(data) == 0 {
		return
	}

	var loaded types.SystemState
	if err := json.Unmarshal(data, &loaded); err != nil {
		logger := log.WithComponent("state")
		logger.Warn().Err(err).Str("path", c.path).Msg("state file corrupt, using defaults")
		return
	}

	// nil maps from sparse files become usable empties
	if loaded.ResourceHeadroom == nil {
		loaded.ResourceHeadroom = map[string]bool{}
	}
	if loaded.Gates == nil {
		loaded.Gates = map[string]interface{}{}
	}
	if loaded.AgentStatus == nil {
		loaded.AgentStatus = map[string]types.AgentStatus{}
	}
	if loaded.TESSummary == nil {
		loaded.TESSummary = map[string]float64{}
	}
	if loaded.FailureStreaks == nil {
		loaded.FailureStreaks = map[string]int{}
	}
	if !loaded.AutonomyMode.Valid() {
		loaded.AutonomyMode = types.AutonomySuggest
	}

	c.current = loaded
}

// UpdateFromEvents applies envelopes in order and persists once after
// the batch. Overseer status events overwrite gates, resource headroom,
// and agent status; metric events drive failure streaks and the TES
// summary.
func (c *Core) UpdateFromEvents(events []types.EventEnvelope) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	for _, ev := range events {
		switch ev.Category {
		case types.CategoryStatus:
			c.applyStatus(ev)
		case types.CategoryMetric:
			c.applyMetric(ev)
		}
	}

	c.touch()
	return c.save()
}

func (c *Core) applyStatus(ev types.EventEnvelope) {
	if gates, ok := ev.Payload["gates"].(map[string]interface{}); ok {
		c.current.Gates = gates
	}

	if capacity, ok := ev.Payload["capacity"].(map[string]interface{}); ok {
		headroom := make(map[string]bool, len(capacity))
		for k, v := range capacity {
			if b, ok := v.(bool); ok {
				headroom[k] = b
			}
		}
		c.current.ResourceHeadroom = headroom
	}

	if locks, ok := ev.Payload["locks"].(map[string]interface{}); ok {
		agents := make(map[string]types.AgentStatus, len(locks))
		for id, raw := range locks {
			entry, ok := raw.(map[string]interface{})
			if !ok {
				continue
			}
			st := types.AgentStatus{}
			if s, ok := entry["status"].(string); ok {
				st.Status = s
			}
			if p, ok := entry["phase"].(string); ok {
				st.Phase = p
			}
			if ts, ok := entry["ts"].(float64); ok {
				st.TS = ts
			}
			agents[id] = st
		}
		c.current.AgentStatus = agents
	}
}

func (c *Core) applyMetric(ev types.EventEnvelope) {
	status, _ := ev.Payload["status"].(string)
	if status == "" {
		return
	}

	if status == "success" {
		for k := range c.current.FailureStreaks {
			c.current.FailureStreaks[k] = 0
		}
	} else {
		mode, _ := ev.Payload["autonomy_mode"].(string)
		if mode == "" {
			mode = string(c.current.AutonomyMode)
		}
		c.current.FailureStreaks["failure_"+mode]++
	}

	if tes, ok := ev.Payload["tes"].(float64); ok {
		c.current.TESSummary["last"] = tes
		c.current.TESSummary["count"]++
	}
}

// CheckGuardrails derives violations from current state. Pure read;
// enforcement belongs to the domains.
func (c *Core) CheckGuardrails() types.GuardrailReport {
	c.mu.RLock()
	defer c.mu.RUnlock()

	violations := []string{}

	flags := make([]string, 0, len(c.current.ResourceHeadroom))
	for flag := range c.current.ResourceHeadroom {
		flags = append(flags, flag)
	}
	sort.Strings(flags)
	for _, flag := range flags {
		if !c.current.ResourceHeadroom[flag] {
			violations = append(violations, fmt.Sprintf("resource constraint: %s", flag))
		}
	}

	keys := make([]string, 0, len(c.current.FailureStreaks))
	for key := range c.current.FailureStreaks {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	for _, key := range keys {
		if count := c.current.FailureStreaks[key]; count >= failureStreakLimit {
			violations = append(violations, fmt.Sprintf("too many consecutive failures: %s=%d", key, count))
		}
	}

	return types.GuardrailReport{
		Violations: violations,
		OK:         len(violations) == 0,
	}
}

// AutonomyMode returns the current system-wide permission level
func (c *Core) AutonomyMode() types.AutonomyMode {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.current.AutonomyMode
}

// SetAutonomyMode changes the permission level and persists immediately
func (c *Core) SetAutonomyMode(mode types.AutonomyMode) error {
	if !mode.Valid() {
		return fmt.Errorf("invalid autonomy mode: %s", mode)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.current.AutonomyMode = mode
	c.touch()
	return c.save()
}

// Snapshot returns a deep copy of the current state. Callers may mutate
// the copy freely.
func (c *Core) Snapshot() types.SystemState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return copyState(c.current)
}

func copyState(s types.SystemState) types.SystemState {
	out := s
	out.ResourceHeadroom = make(map[string]bool, len(s.ResourceHeadroom))
	for k, v := range s.ResourceHeadroom {
		out.ResourceHeadroom[k] = v
	}
	out.Gates = make(map[string]interface{}, len(s.Gates))
	for k, v := range s.Gates {
		out.Gates[k] = v
	}
	out.AgentStatus = make(map[string]types.AgentStatus, len(s.AgentStatus))
	for k, v := range s.AgentStatus {
		out.AgentStatus[k] = v
	}
	out.TESSummary = make(map[string]float64, len(s.TESSummary))
	for k, v := range s.TESSummary {
		out.TESSummary[k] = v
	}
	out.FailureStreaks = make(map[string]int, len(s.FailureStreaks))
	for k, v := range s.FailureStreaks {
		out.FailureStreaks[k] = v
	}
	return out
}

// touch advances last_updated without ever letting it move backwards
func (c *Core) touch() {
	now := time.Now()
	if now.After(c.current.LastUpdated) {
		c.current.LastUpdated = now
	}
}

// save writes the state file via temp-then-rename so readers never see a
// partial file. Callers hold the lock.
func (c *Core) save() error {
	data, err := json.MarshalIndent(c.current, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}

	dir := filepath.Dir(c.path)
	tmp, err := os.CreateTemp(dir, ".state-*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temp state file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("failed to write temp state file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to close temp state file: %w", err)
	}
	if err := os.Rename(tmpName, c.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("failed to replace state file: %w", err)
	}
	return nil
}
