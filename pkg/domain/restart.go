package domain

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stationcalyx/calyx/pkg/config"
	"github.com/stationcalyx/calyx/pkg/types"
)

// heartbeatStaleAfter is the heartbeat age past which an agent is
// reported as stale
const heartbeatStaleAfter = 900 * time.Second

// AutoRestart scans agent heartbeat files and reports stale ones. It
// never kills or restarts anything itself, that call belongs to a human.
type AutoRestart struct {
	layout config.Layout
	now    func() time.Time
}

// NewAutoRestart creates the auto_restart domain for a station layout
func NewAutoRestart(layout config.Layout) *AutoRestart {
	return &AutoRestart{
		layout: layout,
		now:    time.Now,
	}
}

// Name returns the capability name
func (d *AutoRestart) Name() string { return "auto_restart" }

// CanExecute always allows the scan, it only reads
func (d *AutoRestart) CanExecute(st types.SystemState) bool { return true }

// Execute reports every heartbeat file whose mtime is older than the
// staleness threshold
func (d *AutoRestart) Execute(intent types.Intent) types.DomainResult {
	locks, err := filepath.Glob(filepath.Join(d.layout.OutgoingDir(), "*.lock"))
	if err != nil {
		return errorResult(fmt.Sprintf("failed to list heartbeat files: %v", err))
	}

	now := d.now()
	scanned := 0
	var stale []map[string]interface{}
	for _, path := range locks {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		scanned++
		age := now.Sub(info.ModTime())
		if age > heartbeatStaleAfter {
			stale = append(stale, map[string]interface{}{
				"file":        filepath.Base(path),
				"age_seconds": age.Seconds(),
			})
		}
	}

	detail := map[string]interface{}{
		"scanned":     scanned,
		"stale_count": len(stale),
	}
	if len(stale) > 0 {
		detail["stale"] = stale
	}
	return doneResult(detail)
}

// VerifySuccess accepts any completed scan
func (d *AutoRestart) VerifySuccess(result types.DomainResult) bool {
	return result.Status == types.StatusDone
}

// Rollback has nothing to reverse for a report-only scan
func (d *AutoRestart) Rollback(result types.DomainResult) types.DomainResult {
	return skippedResult("nothing to roll back")
}
