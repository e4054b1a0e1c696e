package domain

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"github.com/stationcalyx/calyx/pkg/config"
	"github.com/stationcalyx/calyx/pkg/types"
)

// MemoryEmbeddings signals an embeddings rebuild by writing a marker
// file. The rebuild itself is a collaborator's job, the marker is the
// whole contract.
type MemoryEmbeddings struct {
	layout config.Layout
	now    func() time.Time
}

// NewMemoryEmbeddings creates the memory_embeddings domain for a station
// layout
func NewMemoryEmbeddings(layout config.Layout) *MemoryEmbeddings {
	return &MemoryEmbeddings{
		layout: layout,
		now:    time.Now,
	}
}

// Name returns the capability name
func (d *MemoryEmbeddings) Name() string { return "memory_embeddings" }

// CanExecute requires both CPU and memory headroom
func (d *MemoryEmbeddings) CanExecute(st types.SystemState) bool {
	return st.ResourceHeadroom["cpu_ok"] && st.ResourceHeadroom["mem_ok"]
}

// Execute writes the rebuild marker unless one is already pending
func (d *MemoryEmbeddings) Execute(intent types.Intent) types.DomainResult {
	marker := d.layout.EmbeddingsMarker()
	if _, err := os.Stat(marker); err == nil {
		return skippedResult("rebuild marker already present")
	}

	body, err := json.MarshalIndent(map[string]interface{}{
		"requested_at": d.now().Format(time.RFC3339),
		"intent_id":    intent.ID,
		"description":  intent.Description,
	}, "", "  ")
	if err != nil {
		return errorResult(fmt.Sprintf("failed to encode marker body: %v", err))
	}
	if err := os.WriteFile(marker, body, 0644); err != nil {
		return errorResult(fmt.Sprintf("failed to write rebuild marker: %v", err))
	}

	return doneResult(map[string]interface{}{"marker": marker})
}

// VerifySuccess confirms the marker exists on disk
func (d *MemoryEmbeddings) VerifySuccess(result types.DomainResult) bool {
	if result.Status != types.StatusDone {
		return false
	}
	_, err := os.Stat(d.layout.EmbeddingsMarker())
	return err == nil
}

// Rollback removes the rebuild marker
func (d *MemoryEmbeddings) Rollback(result types.DomainResult) types.DomainResult {
	if err := os.Remove(d.layout.EmbeddingsMarker()); err != nil && !os.IsNotExist(err) {
		return errorResult(fmt.Sprintf("failed to remove rebuild marker: %v", err))
	}
	return doneResult(map[string]interface{}{"removed": d.layout.EmbeddingsMarker()})
}
