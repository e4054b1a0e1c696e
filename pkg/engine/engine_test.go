package engine

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stationcalyx/calyx/pkg/config"
	"github.com/stationcalyx/calyx/pkg/domain"
	"github.com/stationcalyx/calyx/pkg/escalate"
	"github.com/stationcalyx/calyx/pkg/log"
	"github.com/stationcalyx/calyx/pkg/manifest"
	"github.com/stationcalyx/calyx/pkg/types"
	"github.com/stationcalyx/calyx/pkg/verify"
)

func TestMain(m *testing.M) {
	log.Init(log.Config{Level: log.ErrorLevel})
	os.Exit(m.Run())
}

// fakeDomain scripts one capability for engine tests
type fakeDomain struct {
	name       string
	canExecute bool
	result     types.DomainResult
	panicWith  string
	verifyOK   bool
	executed   int
	rolledBack int
}

func (f *fakeDomain) Name() string                            { return f.name }
func (f *fakeDomain) CanExecute(st types.SystemState) bool    { return f.canExecute }
func (f *fakeDomain) VerifySuccess(r types.DomainResult) bool { return f.verifyOK }

func (f *fakeDomain) Execute(intent types.Intent) types.DomainResult {
	f.executed++
	if f.panicWith != "" {
		panic(f.panicWith)
	}
	return f.result
}

func (f *fakeDomain) Rollback(r types.DomainResult) types.DomainResult {
	f.rolledBack++
	return types.DomainResult{Status: types.StatusDone, Detail: map[string]interface{}{"undone": true}}
}

func happyDomain(name string) *fakeDomain {
	return &fakeDomain{
		name:       name,
		canExecute: true,
		verifyOK:   true,
		result:     types.DomainResult{Status: types.StatusDone, Detail: map[string]interface{}{"n": 1}},
	}
}

type testRig struct {
	engine    *Engine
	manifests *manifest.Store
	tracker   *escalate.Manager
	verifier  *verify.Verifier
	registry  *domain.Registry
}

func newRig(t *testing.T, domains ...domain.Domain) *testRig {
	t.Helper()
	layout := config.NewLayout(t.TempDir())
	require.NoError(t, layout.EnsureDirs())

	reg := domain.NewRegistry()
	for _, d := range domains {
		reg.Register(d)
	}
	manifests := manifest.NewStore(layout.ManifestDir(), 5*time.Minute)
	verifier := verify.NewVerifier(layout)
	tracker := escalate.NewManager(layout, 0)

	return &testRig{
		engine:    NewEngine(reg, manifests, verifier, tracker),
		manifests: manifests,
		tracker:   tracker,
		verifier:  verifier,
		registry:  reg,
	}
}

func testIntent(caps ...string) types.Intent {
	return types.Intent{
		ID:                   "i-1",
		Description:          "test action",
		RequiredCapabilities: caps,
	}
}

func TestExecuteIntentDone(t *testing.T) {
	d := happyDomain("log_rotation")
	rig := newRig(t, d)

	outcome := rig.engine.ExecuteIntent(testIntent("log_rotation"), types.SystemState{})

	assert.Equal(t, types.StatusDone, outcome.Status)
	assert.Equal(t, "i-1", outcome.IntentID)
	assert.Equal(t, "log_rotation", outcome.Domain)
	assert.NotEmpty(t, outcome.ManifestID)
	assert.InDelta(t, 0.82, outcome.Confidence, 0.0001)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, 1, d.executed)
	assert.Equal(t, 0, d.rolledBack)

	m, err := rig.manifests.Get(outcome.ManifestID)
	require.NoError(t, err)
	assert.Equal(t, types.ManifestComplete, m.Status)

	// A zero stall threshold flags anything still tracked
	assert.Empty(t, rig.tracker.CheckStalls())
}

func TestExecuteIntentNoDomain(t *testing.T) {
	rig := newRig(t, happyDomain("log_rotation"))

	outcome := rig.engine.ExecuteIntent(testIntent("time_travel"), types.SystemState{})

	assert.Equal(t, types.StatusSkipped, outcome.Status)
	assert.Equal(t, "no matching autonomous domain", outcome.Reason)
	assert.Empty(t, outcome.ManifestID)
}

func TestExecuteIntentGuardRefuses(t *testing.T) {
	d := happyDomain("memory_embeddings")
	d.canExecute = false
	rig := newRig(t, d)

	outcome := rig.engine.ExecuteIntent(testIntent("memory_embeddings"), types.SystemState{})

	assert.Equal(t, types.StatusSkipped, outcome.Status)
	assert.Equal(t, "no matching autonomous domain", outcome.Reason)
	assert.Equal(t, 0, d.executed)
}

func TestExecuteIntentFallsThroughCapabilities(t *testing.T) {
	first := happyDomain("log_rotation")
	first.canExecute = false
	second := happyDomain("schema_validation")
	rig := newRig(t, first, second)

	outcome := rig.engine.ExecuteIntent(testIntent("log_rotation", "schema_validation"), types.SystemState{})

	assert.Equal(t, types.StatusDone, outcome.Status)
	assert.Equal(t, "schema_validation", outcome.Domain)
	assert.Equal(t, 0, first.executed)
	assert.Equal(t, 1, second.executed)
}

func TestExecuteIntentSecondClaimSkips(t *testing.T) {
	d := happyDomain("log_rotation")
	rig := newRig(t, d)
	intent := testIntent("log_rotation")

	first := rig.engine.ExecuteIntent(intent, types.SystemState{})
	require.Equal(t, types.StatusDone, first.Status)

	// Completed manifests are terminal, the claim is refused
	second := rig.engine.ExecuteIntent(intent, types.SystemState{})
	assert.Equal(t, types.StatusSkipped, second.Status)
	assert.Equal(t, "manifest already claimed", second.Reason)
	assert.Equal(t, first.ManifestID, second.ManifestID)
	assert.Equal(t, 1, d.executed)
}

func TestExecuteIntentPanicRecovered(t *testing.T) {
	d := happyDomain("log_rotation")
	d.panicWith = "disk on fire"
	rig := newRig(t, d)

	outcome := rig.engine.ExecuteIntent(testIntent("log_rotation"), types.SystemState{})

	assert.Equal(t, types.StatusError, outcome.Status)
	assert.Contains(t, outcome.Error, "panicked")
	assert.Contains(t, outcome.Error, "disk on fire")

	m, err := rig.manifests.Get(outcome.ManifestID)
	require.NoError(t, err)
	assert.Equal(t, types.ManifestFailed, m.Status)

	assert.Empty(t, rig.tracker.CheckStalls())
}

func TestExecuteIntentPostCheckDemotes(t *testing.T) {
	d := happyDomain("log_rotation")
	d.verifyOK = false
	rig := newRig(t, d)

	outcome := rig.engine.ExecuteIntent(testIntent("log_rotation"), types.SystemState{})

	assert.Equal(t, types.StatusFailed, outcome.Status)
	require.NotNil(t, outcome.Result)
	assert.Equal(t, types.StatusFailed, outcome.Result.Status)
	assert.Equal(t, 1, d.rolledBack)
	require.NotNil(t, outcome.Rollback)
	assert.Equal(t, true, outcome.Rollback.Detail["undone"])

	m, err := rig.manifests.Get(outcome.ManifestID)
	require.NoError(t, err)
	assert.Equal(t, types.ManifestFailed, m.Status)
	assert.Equal(t, "domain post-check rejected the result", m.Error)

	// Trust took the failure hit
	assert.InDelta(t, 0.75, rig.verifier.Confidence("log_rotation"), 0.0001)
}

func TestExecuteIntentErrorResultFails(t *testing.T) {
	d := happyDomain("log_rotation")
	d.result = types.DomainResult{Status: types.StatusError, Error: "no space left"}
	rig := newRig(t, d)

	outcome := rig.engine.ExecuteIntent(testIntent("log_rotation"), types.SystemState{})

	assert.Equal(t, types.StatusFailed, outcome.Status)
	assert.Equal(t, 1, d.rolledBack)

	m, err := rig.manifests.Get(outcome.ManifestID)
	require.NoError(t, err)
	assert.Equal(t, types.ManifestFailed, m.Status)
	assert.Equal(t, "no space left", m.Error)
	assert.InDelta(t, 0.75, rig.verifier.Confidence("log_rotation"), 0.0001)
}

func TestExecuteIntentSkippedResultFails(t *testing.T) {
	d := happyDomain("metrics_summary")
	d.result = types.DomainResult{
		Status: types.StatusSkipped,
		Detail: map[string]interface{}{"reason": "no tes samples recorded"},
	}
	rig := newRig(t, d)

	outcome := rig.engine.ExecuteIntent(testIntent("metrics_summary"), types.SystemState{})

	// A skip at execute time still counts against the capability
	assert.Equal(t, types.StatusFailed, outcome.Status)
	assert.InDelta(t, 0.75, rig.verifier.Confidence("metrics_summary"), 0.0001)
}
