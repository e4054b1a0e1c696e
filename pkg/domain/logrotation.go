package domain

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/stationcalyx/calyx/pkg/config"
	"github.com/stationcalyx/calyx/pkg/log"
	"github.com/stationcalyx/calyx/pkg/types"
)

const (
	// rotateThreshold is the live log count above which rotation runs
	rotateThreshold = 20

	// rotateMaxAge is how old a log file must be before it is archived
	rotateMaxAge = 7 * 24 * time.Hour
)

// LogRotation moves aged log files from logs/ into logs/archive/
type LogRotation struct {
	layout config.Layout
	now    func() time.Time
}

// NewLogRotation creates the log_rotation domain for a station layout
func NewLogRotation(layout config.Layout) *LogRotation {
	return &LogRotation{
		layout: layout,
		now:    time.Now,
	}
}

// Name returns the capability name
func (d *LogRotation) Name() string { return "log_rotation" }

// CanExecute reports whether the live log count is above the rotation
// threshold
func (d *LogRotation) CanExecute(st types.SystemState) bool {
	logs, err := filepath.Glob(filepath.Join(d.layout.LogsDir(), "*.log"))
	if err != nil {
		return false
	}
	return len(logs) > rotateThreshold
}

// Execute archives every log file older than the rotation age
func (d *LogRotation) Execute(intent types.Intent) types.DomainResult {
	logs, err := filepath.Glob(filepath.Join(d.layout.LogsDir(), "*.log"))
	if err != nil {
		return errorResult(fmt.Sprintf("failed to list log files: %v", err))
	}

	cutoff := d.now().Add(-rotateMaxAge)
	var eligible []string
	for _, path := range logs {
		info, err := os.Stat(path)
		if err != nil {
			continue
		}
		if info.ModTime().Before(cutoff) {
			eligible = append(eligible, path)
		}
	}
	if len(eligible) == 0 {
		return skippedResult("no log files older than the rotation age")
	}

	if err := os.MkdirAll(d.layout.ArchiveDir(), 0755); err != nil {
		return errorResult(fmt.Sprintf("failed to create archive directory: %v", err))
	}

	var moved []string
	for _, path := range eligible {
		dest := filepath.Join(d.layout.ArchiveDir(), filepath.Base(path))
		if err := os.Rename(path, dest); err != nil {
			logger := log.WithComponent("log_rotation")
			logger.Warn().Err(err).Str("file", path).Msg("Failed to archive log file")
			continue
		}
		moved = append(moved, filepath.Base(path))
	}
	if len(moved) == 0 {
		return errorResult("no eligible log files could be archived")
	}

	return doneResult(map[string]interface{}{
		"rotated":       len(moved),
		"rotated_files": moved,
		"archive_dir":   d.layout.ArchiveDir(),
	})
}

// VerifySuccess confirms every rotated file landed in the archive
func (d *LogRotation) VerifySuccess(result types.DomainResult) bool {
	if result.Status != types.StatusDone {
		return false
	}
	for _, name := range stringSlice(result.Detail["rotated_files"]) {
		if _, err := os.Stat(filepath.Join(d.layout.ArchiveDir(), name)); err != nil {
			return false
		}
	}
	return true
}

// Rollback moves archived files back into the live log directory
func (d *LogRotation) Rollback(result types.DomainResult) types.DomainResult {
	restored := 0
	for _, name := range stringSlice(result.Detail["rotated_files"]) {
		src := filepath.Join(d.layout.ArchiveDir(), name)
		dest := filepath.Join(d.layout.LogsDir(), name)
		if err := os.Rename(src, dest); err != nil {
			logger := log.WithComponent("log_rotation")
			logger.Warn().Err(err).Str("file", name).Msg("Failed to restore archived log file")
			continue
		}
		restored++
	}
	return doneResult(map[string]interface{}{"restored": restored})
}
