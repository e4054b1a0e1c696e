package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Layout derives every station path from a single root directory. No
// other package hardcodes a path; everything below flows from here.
//
// Station tree:
//
//	<root>/
//	  outgoing/              heartbeats and coordinator output
//	    <agent>.lock         per-agent heartbeat files
//	    cbo.lock             overseer heartbeat
//	    coordinator/         one manifest file per manifest ID
//	    bridge/              pulse reports, audit, dialog, debug trace
//	    escalations/         esc-<epoch>.json artifacts
//	    rebuild_embeddings.marker
//	  logs/                  agent logs and the metrics CSV
//	    archive/             rotated logs
//	  state/                 coordinator-owned state files
//	  evidence/              append-only evidence event stream
type Layout struct {
	Root string
}

// NewLayout returns a Layout rooted at dir
func NewLayout(dir string) Layout {
	return Layout{Root: dir}
}

func (l Layout) OutgoingDir() string { return filepath.Join(l.Root, "outgoing") }

func (l Layout) OverseerHeartbeat() string { return filepath.Join(l.OutgoingDir(), "cbo.lock") }

func (l Layout) ManifestDir() string { return filepath.Join(l.OutgoingDir(), "coordinator") }

func (l Layout) BridgeDir() string { return filepath.Join(l.OutgoingDir(), "bridge") }

func (l Layout) EscalationDir() string { return filepath.Join(l.OutgoingDir(), "escalations") }

func (l Layout) PulseReportFile() string {
	return filepath.Join(l.BridgeDir(), "last_pulse_report.json")
}

func (l Layout) AuditSummaryFile() string {
	return filepath.Join(l.BridgeDir(), "execution_audit_summary.json")
}

func (l Layout) DialogLog() string { return filepath.Join(l.BridgeDir(), "dialog.log") }

func (l Layout) DebugLog() string { return filepath.Join(l.BridgeDir(), "coord_debug.log") }

func (l Layout) LogsDir() string { return filepath.Join(l.Root, "logs") }

func (l Layout) ArchiveDir() string { return filepath.Join(l.LogsDir(), "archive") }

func (l Layout) MetricsCSV() string { return filepath.Join(l.LogsDir(), "agent_metrics.csv") }

func (l Layout) StateDir() string { return filepath.Join(l.Root, "state") }

func (l Layout) StateFile() string { return filepath.Join(l.StateDir(), "coordinator_state.json") }

func (l Layout) IntentsFile() string {
	return filepath.Join(l.StateDir(), "coordinator_intents.jsonl")
}

func (l Layout) HistoryFile() string {
	return filepath.Join(l.StateDir(), "coordinator_history.jsonl")
}

func (l Layout) ConfidenceFile() string {
	return filepath.Join(l.StateDir(), "coordinator_confidence.json")
}

func (l Layout) ArtifactDB() string { return filepath.Join(l.StateDir(), "artifacts.db") }

func (l Layout) TESSummaryFile() string { return filepath.Join(l.StateDir(), "tes_summary.json") }

func (l Layout) EvidenceDir() string { return filepath.Join(l.Root, "evidence") }

func (l Layout) EvidenceLog() string { return filepath.Join(l.EvidenceDir(), "events.jsonl") }

func (l Layout) EmbeddingsMarker() string {
	return filepath.Join(l.OutgoingDir(), "rebuild_embeddings.marker")
}

// EnsureDirs creates every directory the coordinator writes into.
// Idempotent; safe to call on every start.
func (l Layout) EnsureDirs() error {
	dirs := []string{
		l.OutgoingDir(),
		l.ManifestDir(),
		l.BridgeDir(),
		l.EscalationDir(),
		l.LogsDir(),
		l.ArchiveDir(),
		l.StateDir(),
		l.EvidenceDir(),
	}
	for _, dir := range dirs {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create %s: %w", dir, err)
		}
	}
	return nil
}
