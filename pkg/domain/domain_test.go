package domain

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationcalyx/calyx/pkg/config"
	"github.com/stationcalyx/calyx/pkg/log"
	"github.com/stationcalyx/calyx/pkg/types"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel})
	os.Exit(m.Run())
}

func newTestLayout(t *testing.T) config.Layout {
	t.Helper()
	layout := config.NewLayout(t.TempDir())
	require.NoError(t, layout.EnsureDirs())
	return layout
}

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
}

func ageFile(t *testing.T, path string, age time.Duration) {
	t.Helper()
	old := time.Now().Add(-age)
	require.NoError(t, os.Chtimes(path, old, old))
}

func TestDefaultRegistry(t *testing.T) {
	reg := DefaultRegistry(newTestLayout(t))

	assert.Equal(t, []string{
		"auto_restart",
		"log_rotation",
		"memory_embeddings",
		"metrics_summary",
		"schema_validation",
	}, reg.Capabilities())

	for _, name := range reg.Capabilities() {
		d, ok := reg.Get(name)
		require.True(t, ok)
		assert.Equal(t, name, d.Name())
	}
}

func TestRegistryGetMissing(t *testing.T) {
	reg := NewRegistry()
	_, ok := reg.Get("time_travel")
	assert.False(t, ok)
}

func TestLogRotationCanExecute(t *testing.T) {
	layout := newTestLayout(t)
	d := NewLogRotation(layout)

	for i := 0; i < rotateThreshold; i++ {
		writeFile(t, filepath.Join(layout.LogsDir(), fmt.Sprintf("agent-%d.log", i)), "x")
	}
	assert.False(t, d.CanExecute(types.SystemState{}))

	writeFile(t, filepath.Join(layout.LogsDir(), "one-more.log"), "x")
	assert.True(t, d.CanExecute(types.SystemState{}))
}

func TestLogRotationExecute(t *testing.T) {
	layout := newTestLayout(t)
	d := NewLogRotation(layout)

	for i := 0; i < 25; i++ {
		path := filepath.Join(layout.LogsDir(), fmt.Sprintf("agent-%d.log", i))
		writeFile(t, path, "x")
		if i < 5 {
			ageFile(t, path, 8*24*time.Hour)
		}
	}

	result := d.Execute(types.Intent{ID: "i-1"})
	require.Equal(t, types.StatusDone, result.Status)
	assert.Equal(t, 5, result.Detail["rotated"])
	assert.Len(t, stringSlice(result.Detail["rotated_files"]), 5)

	// Aged files moved, fresh files stayed
	_, err := os.Stat(filepath.Join(layout.LogsDir(), "agent-0.log"))
	assert.True(t, os.IsNotExist(err))
	_, err = os.Stat(filepath.Join(layout.ArchiveDir(), "agent-0.log"))
	assert.NoError(t, err)
	_, err = os.Stat(filepath.Join(layout.LogsDir(), "agent-10.log"))
	assert.NoError(t, err)

	assert.True(t, d.VerifySuccess(result))
}

func TestLogRotationNothingToRotate(t *testing.T) {
	layout := newTestLayout(t)
	d := NewLogRotation(layout)

	writeFile(t, filepath.Join(layout.LogsDir(), "fresh.log"), "x")

	result := d.Execute(types.Intent{ID: "i-1"})
	assert.Equal(t, types.StatusSkipped, result.Status)
	assert.Equal(t, "no log files older than the rotation age", result.Detail["reason"])
}

func TestLogRotationRollback(t *testing.T) {
	layout := newTestLayout(t)
	d := NewLogRotation(layout)

	path := filepath.Join(layout.LogsDir(), "old.log")
	writeFile(t, path, "x")
	ageFile(t, path, 8*24*time.Hour)

	result := d.Execute(types.Intent{ID: "i-1"})
	require.Equal(t, types.StatusDone, result.Status)

	rb := d.Rollback(result)
	assert.Equal(t, types.StatusDone, rb.Status)
	assert.Equal(t, 1, rb.Detail["restored"])
	_, err := os.Stat(path)
	assert.NoError(t, err)
}

func TestLogRotationVerifyDetectsMissingArchive(t *testing.T) {
	layout := newTestLayout(t)
	d := NewLogRotation(layout)

	path := filepath.Join(layout.LogsDir(), "old.log")
	writeFile(t, path, "x")
	ageFile(t, path, 8*24*time.Hour)

	result := d.Execute(types.Intent{ID: "i-1"})
	require.Equal(t, types.StatusDone, result.Status)

	require.NoError(t, os.Remove(filepath.Join(layout.ArchiveDir(), "old.log")))
	assert.False(t, d.VerifySuccess(result))
}

func writeMetricsCSV(t *testing.T, layout config.Layout, tesValues []float64) {
	t.Helper()
	content := "iso_ts,autonomy_mode,tes\n"
	for i, v := range tesValues {
		content += fmt.Sprintf("2026-01-01T00:%02d:00Z,suggest,%g\n", i%60, v)
	}
	writeFile(t, layout.MetricsCSV(), content)
}

func TestMetricsSummaryCanExecute(t *testing.T) {
	layout := newTestLayout(t)
	d := NewMetricsSummary(layout)

	// No summary yet
	assert.True(t, d.CanExecute(types.SystemState{}))

	writeFile(t, layout.TESSummaryFile(), "{}")
	assert.False(t, d.CanExecute(types.SystemState{}))

	ageFile(t, layout.TESSummaryFile(), 2*time.Hour)
	assert.True(t, d.CanExecute(types.SystemState{}))
}

func TestMetricsSummaryExecute(t *testing.T) {
	layout := newTestLayout(t)
	d := NewMetricsSummary(layout)

	values := make([]float64, 25)
	for i := range values {
		values[i] = float64(i + 1)
	}
	writeMetricsCSV(t, layout, values)

	result := d.Execute(types.Intent{ID: "i-1"})
	require.Equal(t, types.StatusDone, result.Status)

	// Only the trailing 20 samples count: 6..25
	assert.Equal(t, 20, result.Detail["count"])
	assert.InDelta(t, 15.5, result.Detail["mean"].(float64), 0.0001)
	assert.Equal(t, 6.0, result.Detail["min"])
	assert.Equal(t, 25.0, result.Detail["max"])

	data, err := os.ReadFile(layout.TESSummaryFile())
	require.NoError(t, err)
	var summary tesSummary
	require.NoError(t, json.Unmarshal(data, &summary))
	assert.Equal(t, 20, summary.Count)
	assert.InDelta(t, 15.5, summary.Mean, 0.0001)

	assert.True(t, d.VerifySuccess(result))
}

func TestMetricsSummarySkips(t *testing.T) {
	tests := []struct {
		name   string
		setup  func(t *testing.T, layout config.Layout)
		reason string
	}{
		{
			name:   "no csv",
			setup:  func(t *testing.T, layout config.Layout) {},
			reason: "metrics csv not found",
		},
		{
			name: "header only",
			setup: func(t *testing.T, layout config.Layout) {
				writeFile(t, layout.MetricsCSV(), "iso_ts,autonomy_mode,tes\n")
			},
			reason: "no tes samples recorded",
		},
		{
			name: "no tes column",
			setup: func(t *testing.T, layout config.Layout) {
				writeFile(t, layout.MetricsCSV(), "iso_ts,autonomy_mode\n2026-01-01T00:00:00Z,suggest\n")
			},
			reason: "metrics csv has no tes column",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			layout := newTestLayout(t)
			tt.setup(t, layout)

			result := NewMetricsSummary(layout).Execute(types.Intent{ID: "i-1"})
			assert.Equal(t, types.StatusSkipped, result.Status)
			assert.Equal(t, tt.reason, result.Detail["reason"])
		})
	}
}

func TestMetricsSummaryRollback(t *testing.T) {
	layout := newTestLayout(t)
	d := NewMetricsSummary(layout)

	writeMetricsCSV(t, layout, []float64{80, 90})
	result := d.Execute(types.Intent{ID: "i-1"})
	require.Equal(t, types.StatusDone, result.Status)

	rb := d.Rollback(result)
	assert.Equal(t, types.StatusDone, rb.Status)
	_, err := os.Stat(layout.TESSummaryFile())
	assert.True(t, os.IsNotExist(err))

	// Removing again still succeeds
	rb = d.Rollback(result)
	assert.Equal(t, types.StatusDone, rb.Status)
}

func TestSchemaValidationExecute(t *testing.T) {
	layout := newTestLayout(t)
	d := NewSchemaValidation(layout)

	writeFile(t, filepath.Join(layout.OutgoingDir(), "good.json"), `{"ok": true}`)
	writeFile(t, filepath.Join(layout.OutgoingDir(), "bad.json"), `{broken`)
	writeFile(t, filepath.Join(layout.ManifestDir(), "nested.json"), `[1, 2, 3]`)
	writeFile(t, filepath.Join(layout.StateDir(), "journal.jsonl"), "{\"a\":1}\n{bad line\n")

	result := d.Execute(types.Intent{ID: "i-1"})
	require.Equal(t, types.StatusDone, result.Status)
	assert.Equal(t, 4, result.Detail["files_checked"])
	assert.Equal(t, 2, result.Detail["error_count"])

	var files []string
	for _, finding := range result.Detail["errors"].([]map[string]interface{}) {
		files = append(files, filepath.Base(finding["file"].(string)))
	}
	assert.ElementsMatch(t, []string{"bad.json", "journal.jsonl"}, files)

	assert.True(t, d.VerifySuccess(result))
}

func TestSchemaValidationSamplesNewest(t *testing.T) {
	layout := newTestLayout(t)
	d := NewSchemaValidation(layout)

	// Two invalid files pushed outside the newest-10 window by age
	for i := 0; i < 2; i++ {
		path := filepath.Join(layout.OutgoingDir(), fmt.Sprintf("ancient-%d.json", i))
		writeFile(t, path, `{broken`)
		ageFile(t, path, time.Duration(48+i)*time.Hour)
	}
	for i := 0; i < 10; i++ {
		writeFile(t, filepath.Join(layout.OutgoingDir(), fmt.Sprintf("recent-%d.json", i)), `{"ok": true}`)
	}

	result := d.Execute(types.Intent{ID: "i-1"})
	require.Equal(t, types.StatusDone, result.Status)
	assert.Equal(t, 10, result.Detail["files_checked"])
	assert.Equal(t, 0, result.Detail["error_count"])
}

func TestSchemaValidationEmptyStation(t *testing.T) {
	d := NewSchemaValidation(newTestLayout(t))

	result := d.Execute(types.Intent{ID: "i-1"})
	assert.Equal(t, types.StatusDone, result.Status)
	assert.Equal(t, 0, result.Detail["files_checked"])

	rb := d.Rollback(result)
	assert.Equal(t, types.StatusSkipped, rb.Status)
}

func TestAutoRestartExecute(t *testing.T) {
	layout := newTestLayout(t)
	d := NewAutoRestart(layout)

	writeFile(t, filepath.Join(layout.OutgoingDir(), "cbo.lock"), "{}")
	stalePath := filepath.Join(layout.OutgoingDir(), "scribe.lock")
	writeFile(t, stalePath, "{}")
	ageFile(t, stalePath, 20*time.Minute)

	result := d.Execute(types.Intent{ID: "i-1"})
	require.Equal(t, types.StatusDone, result.Status)
	assert.Equal(t, 2, result.Detail["scanned"])
	assert.Equal(t, 1, result.Detail["stale_count"])

	stale := result.Detail["stale"].([]map[string]interface{})
	require.Len(t, stale, 1)
	assert.Equal(t, "scribe.lock", stale[0]["file"])
	assert.Greater(t, stale[0]["age_seconds"].(float64), 900.0)

	// Stale files are reported, never touched
	_, err := os.Stat(stalePath)
	assert.NoError(t, err)
}

func TestAutoRestartNoHeartbeats(t *testing.T) {
	d := NewAutoRestart(newTestLayout(t))

	result := d.Execute(types.Intent{ID: "i-1"})
	assert.Equal(t, types.StatusDone, result.Status)
	assert.Equal(t, 0, result.Detail["scanned"])
	assert.Equal(t, 0, result.Detail["stale_count"])
}

func TestMemoryEmbeddingsCanExecute(t *testing.T) {
	d := NewMemoryEmbeddings(newTestLayout(t))

	tests := []struct {
		name     string
		headroom map[string]bool
		want     bool
	}{
		{"both ok", map[string]bool{"cpu_ok": true, "mem_ok": true}, true},
		{"cpu constrained", map[string]bool{"cpu_ok": false, "mem_ok": true}, false},
		{"mem constrained", map[string]bool{"cpu_ok": true, "mem_ok": false}, false},
		{"no headroom data", nil, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			st := types.SystemState{ResourceHeadroom: tt.headroom}
			assert.Equal(t, tt.want, d.CanExecute(st))
		})
	}
}

func TestMemoryEmbeddingsExecute(t *testing.T) {
	layout := newTestLayout(t)
	d := NewMemoryEmbeddings(layout)

	result := d.Execute(types.Intent{ID: "i-1", Description: "rebuild embeddings"})
	require.Equal(t, types.StatusDone, result.Status)
	assert.Equal(t, layout.EmbeddingsMarker(), result.Detail["marker"])
	assert.True(t, d.VerifySuccess(result))

	data, err := os.ReadFile(layout.EmbeddingsMarker())
	require.NoError(t, err)
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &body))
	assert.Equal(t, "i-1", body["intent_id"])

	// A pending marker blocks a second request
	again := d.Execute(types.Intent{ID: "i-2"})
	assert.Equal(t, types.StatusSkipped, again.Status)
	assert.Equal(t, "rebuild marker already present", again.Detail["reason"])
}

func TestMemoryEmbeddingsRollback(t *testing.T) {
	layout := newTestLayout(t)
	d := NewMemoryEmbeddings(layout)

	result := d.Execute(types.Intent{ID: "i-1"})
	require.Equal(t, types.StatusDone, result.Status)

	rb := d.Rollback(result)
	assert.Equal(t, types.StatusDone, rb.Status)
	_, err := os.Stat(layout.EmbeddingsMarker())
	assert.True(t, os.IsNotExist(err))
	assert.False(t, d.VerifySuccess(result))
}
