package coordinator

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/stationcalyx/calyx/pkg/log"
	"github.com/stationcalyx/calyx/pkg/types"
)

// writeAudit persists the pulse's audit artifacts: the full report, the
// compact execution summary, and one dialog line per execution. Write
// failures are logged and folded into report.Errors; they never escape
// the pulse.
func (c *Coordinator) writeAudit(report *types.PulseReport) {
	logger := log.WithComponent("audit")

	if err := writeJSONAtomic(c.layout.PulseReportFile(), report); err != nil {
		logger.Warn().Err(err).Msg("failed to write pulse report")
		report.Errors = append(report.Errors, fmt.Sprintf("pulse report: %v", err))
	}

	summary := make([]types.AuditEntry, 0, len(report.Executions))
	for _, ex := range report.Executions {
		summary = append(summary, types.AuditEntry{
			IntentID:   ex.IntentID,
			Status:     ex.Status,
			ManifestID: ex.ManifestID,
			Domain:     ex.Domain,
		})
	}
	if err := writeJSONAtomic(c.layout.AuditSummaryFile(), summary); err != nil {
		logger.Warn().Err(err).Msg("failed to write audit summary")
		report.Errors = append(report.Errors, fmt.Sprintf("audit summary: %v", err))
	}

	for _, ex := range report.Executions {
		if err := appendLine(c.layout.DialogLog(), dialogLine(ex)); err != nil {
			logger.Warn().Err(err).Str("intent_id", ex.IntentID).Msg("failed to append dialog line")
			report.Errors = append(report.Errors, fmt.Sprintf("dialog log: %v", err))
		}
	}
}

// traceDecision appends one decision-trace line for a considered intent
// to the debug log
func (c *Coordinator) traceDecision(in types.Intent, canExec bool, report *types.PulseReport) {
	line := fmt.Sprintf("%s intent=%s autonomy_required=%s can_execute=%t\n",
		time.Now().UTC().Format(time.RFC3339), in.ID, in.AutonomyRequired, canExec)
	if err := appendLine(c.layout.DebugLog(), line); err != nil {
		logger := log.WithComponent("audit")
		logger.Warn().Err(err).Str("intent_id", in.ID).Msg("failed to append debug trace")
		report.Errors = append(report.Errors, fmt.Sprintf("debug log: %v", err))
	}
}

// dialogLine renders one human-readable audit line for an execution.
// Optional fields are omitted when empty.
func dialogLine(ex types.ExecutionOutcome) string {
	line := fmt.Sprintf("%s COORD> intent=%s status=%s",
		time.Now().UTC().Format(time.RFC3339), ex.IntentID, ex.Status)
	if ex.ManifestID != "" {
		line += " manifest=" + ex.ManifestID
	}
	if ex.Domain != "" {
		line += " domain=" + ex.Domain
	}
	if ex.Error != "" {
		line += " error=" + ex.Error
	}
	return line + "\n"
}

func writeJSONAtomic(path string, v interface{}) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode %s: %w", path, err)
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", tmp, err)
	}
	return os.Rename(tmp, path)
}

func appendLine(path, line string) error {
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0644)
	if err != nil {
		return fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()
	_, err = f.WriteString(line)
	return err
}
