package telemetry

import (
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

func writeHeartbeat(t *testing.T, layout config.Layout, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(layout.OverseerHeartbeat(), []byte(body), 0644))
}

func writeMetrics(t *testing.T, layout config.Layout, body string) {
	t.Helper()
	require.NoError(t, os.WriteFile(layout.MetricsCSV(), []byte(body), 0644))
}

func TestIngestRecentHeartbeat(t *testing.T) {
	layout := newTestLayout(t)
	writeHeartbeat(t, layout, `{
		"ts": 1700000000,
		"metrics": {"pulse_count": 12},
		"gates": {"deploy": true},
		"locks": {"agent-a": {"status": "ok", "phase": "run", "ts": 1700000000}},
		"capacity": {"cpu_ok": true, "mem_ok": true}
	}`)

	reader := NewReader(layout, 5*time.Minute)
	events := reader.IngestRecent()

	require.Len(t, events, 1)
	ev := events[0]
	assert.Equal(t, types.CategoryStatus, ev.Category)
	assert.Equal(t, "cbo", ev.Source)
	assert.Equal(t, 1.0, ev.Confidence)
	assert.Equal(t, "e1", ev.Version)
	assert.Contains(t, ev.Payload, "gates")
	assert.Contains(t, ev.Payload, "capacity")
	assert.Contains(t, ev.Payload, "locks")
	assert.Contains(t, ev.Payload, "metrics")
}

func TestIngestRecentStaleHeartbeat(t *testing.T) {
	layout := newTestLayout(t)
	writeHeartbeat(t, layout, `{"ts": 1, "gates": {}}`)

	old := time.Now().Add(-10 * time.Minute)
	require.NoError(t, os.Chtimes(layout.OverseerHeartbeat(), old, old))

	reader := NewReader(layout, 5*time.Minute)
	assert.Empty(t, reader.IngestRecent())
}

func TestIngestRecentMissingFiles(t *testing.T) {
	layout := newTestLayout(t)
	reader := NewReader(layout, 5*time.Minute)
	assert.Empty(t, reader.IngestRecent())
}

func TestIngestRecentEmptyHeartbeat(t *testing.T) {
	layout := newTestLayout(t)
	writeHeartbeat(t, layout, "")

	reader := NewReader(layout, 5*time.Minute)
	assert.Empty(t, reader.IngestRecent())
}

func TestIngestRecentMalformedHeartbeat(t *testing.T) {
	layout := newTestLayout(t)
	writeHeartbeat(t, layout, `{"ts": truncated`)

	reader := NewReader(layout, 5*time.Minute)
	assert.Empty(t, reader.IngestRecent())
}

func TestMetricsTailBounded(t *testing.T) {
	layout := newTestLayout(t)

	csv := "iso_ts,tes,duration_s,status,changed_files,autonomy_mode\n"
	for i := 0; i < 8; i++ {
		csv += "2026-08-24T10:00:00Z,0.5,1.0,success,2,guide\n"
	}
	csv += "2026-08-24T11:00:00Z,0.9,2.0,success,3,guide\n"
	writeMetrics(t, layout, csv)

	reader := NewReader(layout, 5*time.Minute)
	events := reader.IngestRecent()

	require.Len(t, events, 5)
	last := events[len(events)-1]
	assert.Equal(t, types.CategoryMetric, last.Category)
	assert.Equal(t, "agent_metrics", last.Source)
	assert.Equal(t, 0.9, last.Confidence)
	assert.Equal(t, 0.9, last.Payload["tes"])
	assert.Equal(t, 3.0, last.Payload["changed_files"])
	assert.Equal(t, "success", last.Payload["status"])
}

func TestMetricsTailShortFile(t *testing.T) {
	layout := newTestLayout(t)
	writeMetrics(t, layout,
		"iso_ts,tes,duration_s,status,changed_files,autonomy_mode\n"+
			"2026-08-24T10:00:00Z,0.4,1.5,failed,0,suggest\n"+
			"2026-08-24T10:01:00Z,0.6,1.2,success,1,suggest\n")

	reader := NewReader(layout, 5*time.Minute)
	events := reader.IngestRecent()

	require.Len(t, events, 2)
	assert.Equal(t, "failed", events[0].Payload["status"])
	assert.Equal(t, "success", events[1].Payload["status"])
}

func TestMetricsBadRowsSkipped(t *testing.T) {
	layout := newTestLayout(t)
	writeMetrics(t, layout,
		"iso_ts,tes,duration_s,status,changed_files,autonomy_mode\n"+
			"2026-08-24T10:00:00Z,not-a-number,1.0,success,2,guide\n"+ // numeric parse failure
			"2026-08-24T10:01:00Z,0.7\n"+ // short row
			"2026-08-24T10:02:00Z,0.8,1.1,success,1,guide\n")

	reader := NewReader(layout, 5*time.Minute)
	events := reader.IngestRecent()

	require.Len(t, events, 1)
	assert.Equal(t, 0.8, events[0].Payload["tes"])
}

func TestMetricsHeaderOnly(t *testing.T) {
	layout := newTestLayout(t)
	writeMetrics(t, layout, "iso_ts,tes,duration_s,status,changed_files,autonomy_mode\n")

	reader := NewReader(layout, 5*time.Minute)
	assert.Empty(t, reader.IngestRecent())
}

func TestRowTimestampParsed(t *testing.T) {
	layout := newTestLayout(t)
	writeMetrics(t, layout,
		"iso_ts,tes,duration_s,status,changed_files,autonomy_mode\n"+
			"2026-08-24T10:00:00Z,0.5,1.0,success,2,guide\n")

	reader := NewReader(layout, 5*time.Minute)
	events := reader.IngestRecent()

	require.Len(t, events, 1)
	want, _ := time.Parse(time.RFC3339, "2026-08-24T10:00:00Z")
	assert.True(t, events[0].Timestamp.Equal(want))
}

func TestHeartbeatOrderBeforeMetrics(t *testing.T) {
	layout := newTestLayout(t)
	writeHeartbeat(t, layout, `{"ts": 1, "capacity": {"cpu_ok": true}}`)
	writeMetrics(t, layout,
		"iso_ts,tes,duration_s,status,changed_files,autonomy_mode\n"+
			"2026-08-24T10:00:00Z,0.5,1.0,success,2,guide\n")

	reader := NewReader(layout, 5*time.Minute)
	events := reader.IngestRecent()

	require.Len(t, events, 2)
	assert.Equal(t, types.CategoryStatus, events[0].Category)
	assert.Equal(t, types.CategoryMetric, events[1].Category)
}
