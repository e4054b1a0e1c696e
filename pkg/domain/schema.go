package domain

import (
	"encoding/json"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/stationcalyx/calyx/pkg/config"
	"github.com/stationcalyx/calyx/pkg/types"
)

const (
	// jsonSampleSize is how many of the newest .json files are parsed
	jsonSampleSize = 10

	// jsonlSampleSize is how many of the newest .jsonl files are parsed
	jsonlSampleSize = 5
)

// SchemaValidation parses the newest JSON artifacts under outgoing/ and
// the newest JSONL journals under state/ and reports parse errors
type SchemaValidation struct {
	layout config.Layout
}

// NewSchemaValidation creates the schema_validation domain for a station
// layout
func NewSchemaValidation(layout config.Layout) *SchemaValidation {
	return &SchemaValidation{layout: layout}
}

// Name returns the capability name
func (d *SchemaValidation) Name() string { return "schema_validation" }

// CanExecute always allows validation, it only reads
func (d *SchemaValidation) CanExecute(st types.SystemState) bool { return true }

// Execute validates the sampled files. Parse errors are findings in the
// result detail, not an execution failure.
func (d *SchemaValidation) Execute(intent types.Intent) types.DomainResult {
	checked := 0
	var findings []map[string]interface{}

	for _, path := range newestFiles(d.layout.OutgoingDir(), ".json", jsonSampleSize) {
		checked++
		if err := validateJSONFile(path); err != nil {
			findings = append(findings, map[string]interface{}{
				"file":  path,
				"error": err.Error(),
			})
		}
	}
	for _, path := range newestFiles(d.layout.StateDir(), ".jsonl", jsonlSampleSize) {
		checked++
		if err := validateJSONLFile(path); err != nil {
			findings = append(findings, map[string]interface{}{
				"file":  path,
				"error": err.Error(),
			})
		}
	}

	detail := map[string]interface{}{
		"files_checked": checked,
		"error_count":   len(findings),
	}
	if len(findings) > 0 {
		detail["errors"] = findings
	}
	return doneResult(detail)
}

// VerifySuccess accepts any completed validation run
func (d *SchemaValidation) VerifySuccess(result types.DomainResult) bool {
	return result.Status == types.StatusDone
}

// Rollback has nothing to reverse for a read-only validation
func (d *SchemaValidation) Rollback(result types.DomainResult) types.DomainResult {
	return skippedResult("nothing to roll back")
}

// newestFiles walks root and returns the newest files with the given
// extension, most recent first, at most limit entries.
func newestFiles(root, ext string, limit int) []string {
	type entry struct {
		path  string
		mtime time.Time
	}
	var entries []entry

	_ = filepath.WalkDir(root, func(path string, de fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if de.IsDir() || !strings.HasSuffix(de.Name(), ext) {
			return nil
		}
		info, err := de.Info()
		if err != nil {
			return nil
		}
		entries = append(entries, entry{path: path, mtime: info.ModTime()})
		return nil
	})

	sort.Slice(entries, func(i, j int) bool {
		return entries[i].mtime.After(entries[j].mtime)
	})
	if len(entries) > limit {
		entries = entries[:limit]
	}

	paths := make([]string, len(entries))
	for i, e := range entries {
		paths[i] = e.path
	}
	return paths
}

func validateJSONFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unreadable: %v", err)
	}
	if !json.Valid(data) {
		return fmt.Errorf("invalid JSON")
	}
	return nil
}

func validateJSONLFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("unreadable: %v", err)
	}
	for i, line := range strings.Split(string(data), "\n") {
		trimmed := strings.TrimSpace(line)
		if trimmed == "" {
			continue
		}
		if !json.Valid([]byte(trimmed)) {
			return fmt.Errorf("line %d: invalid JSON", i+1)
		}
	}
	return nil
}
