package escalate

import (
	"encoding/json"
	"os"
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

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	layout := config.NewLayout(t.TempDir())
	require.NoError(t, layout.EnsureDirs())
	return NewManager(layout, 15*time.Minute)
}

func TestCheckStalls(t *testing.T) {
	m := newTestManager(t)
	start := time.Now()

	m.now = func() time.Time { return start }
	m.Track("i-slow")
	m.Track("i-fast")

	// Nothing stalls inside the threshold
	m.now = func() time.Time { return start.Add(10 * time.Minute) }
	assert.Empty(t, m.CheckStalls())

	m.Untrack("i-fast")

	m.now = func() time.Time { return start.Add(16 * time.Minute) }
	stalls := m.CheckStalls()
	require.Len(t, stalls, 1)
	assert.Equal(t, "i-slow", stalls[0].IntentID)
	assert.Equal(t, "stalled", stalls[0].Status)
	assert.InDelta(t, 16.0, stalls[0].ElapsedMinutes, 0.01)
}

func TestCheckStallsSorted(t *testing.T) {
	m := newTestManager(t)
	start := time.Now()

	m.now = func() time.Time { return start }
	m.Track("i-b")
	m.Track("i-a")
	m.Track("i-c")

	m.now = func() time.Time { return start.Add(time.Hour) }
	stalls := m.CheckStalls()
	require.Len(t, stalls, 3)
	assert.Equal(t, "i-a", stalls[0].IntentID)
	assert.Equal(t, "i-b", stalls[1].IntentID)
	assert.Equal(t, "i-c", stalls[2].IntentID)
}

func TestEscalate(t *testing.T) {
	m := newTestManager(t)

	intent := types.Intent{ID: "i-1", Description: "rotate logs", Origin: "operator"}
	id, err := m.Escalate(intent, "execution stalled for 16.0 minutes")
	require.NoError(t, err)
	assert.Regexp(t, `^esc-\d+$`, id)

	data, err := os.ReadFile(m.path(id))
	require.NoError(t, err)

	var esc types.Escalation
	require.NoError(t, json.Unmarshal(data, &esc))
	assert.Equal(t, id, esc.ID)
	assert.Equal(t, "i-1", esc.Intent.ID)
	assert.Equal(t, "rotate logs", esc.Intent.Description)
	assert.Equal(t, "execution stalled for 16.0 minutes", esc.Reason)
	assert.Equal(t, types.SeverityMedium, esc.Severity)
	assert.Equal(t, "human_review", esc.ActionRequired)
	assert.False(t, esc.Resolved)
}

func TestEscalateSameSecond(t *testing.T) {
	m := newTestManager(t)
	frozen := time.Now()
	m.now = func() time.Time { return frozen }

	id1, err := m.Escalate(types.Intent{ID: "i-1"}, "first")
	require.NoError(t, err)
	id2, err := m.Escalate(types.Intent{ID: "i-2"}, "second")
	require.NoError(t, err)
	id3, err := m.Escalate(types.Intent{ID: "i-3"}, "third")
	require.NoError(t, err)

	assert.Equal(t, id1+"-1", id2)
	assert.Equal(t, id1+"-2", id3)
	assert.Len(t, m.Active(), 3)
}

func TestResolve(t *testing.T) {
	m := newTestManager(t)

	id, err := m.Escalate(types.Intent{ID: "i-1"}, "stalled")
	require.NoError(t, err)
	require.Len(t, m.Active(), 1)

	require.NoError(t, m.Resolve(id, "restarted the agent by hand"))

	assert.Empty(t, m.Active())

	data, err := os.ReadFile(m.path(id))
	require.NoError(t, err)
	var esc types.Escalation
	require.NoError(t, json.Unmarshal(data, &esc))
	assert.True(t, esc.Resolved)
	assert.Equal(t, "restarted the agent by hand", esc.Resolution)
	require.NotNil(t, esc.ResolvedAt)
}

func TestResolveMissing(t *testing.T) {
	m := newTestManager(t)
	err := m.Resolve("esc-0", "whatever")
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "escalation not found")
}

func TestAllIncludesResolved(t *testing.T) {
	m := newTestManager(t)

	id1, err := m.Escalate(types.Intent{ID: "i-1"}, "stalled")
	require.NoError(t, err)
	_, err = m.Escalate(types.Intent{ID: "i-2"}, "stalled")
	require.NoError(t, err)

	require.NoError(t, m.Resolve(id1, "handled"))

	assert.Len(t, m.Active(), 1)
	all := m.All()
	require.Len(t, all, 2)

	resolved := 0
	for _, esc := range all {
		if esc.Resolved {
			resolved++
		}
	}
	assert.Equal(t, 1, resolved)
}

func TestActiveSkipsCorruptFiles(t *testing.T) {
	m := newTestManager(t)

	_, err := m.Escalate(types.Intent{ID: "i-1"}, "real")
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(m.path("esc-99"), []byte("{broken"), 0644))

	active := m.Active()
	require.Len(t, active, 1)
	assert.Equal(t, "i-1", active[0].Intent.ID)
}

func TestActiveEmptyWhenDirMissing(t *testing.T) {
	layout := config.NewLayout(t.TempDir())
	m := NewManager(layout, 15*time.Minute)
	assert.Empty(t, m.Active())
}
