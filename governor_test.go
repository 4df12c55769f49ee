package governor

import (
	"sync"
	"testing"
	"time"
)

// recordingHooks captures pipeline-facing events.
type recordingHooks struct {
	mu          sync.Mutex
	tiers       []Tier
	settings    []RenderSettings
	emergencies []EmergencyState
	explode     bool
}

func (h *recordingHooks) OnTierChanged(tier Tier, settings RenderSettings) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.tiers = append(h.tiers, tier)
	h.settings = append(h.settings, settings)
	if h.explode {
		panic("host hook exploded")
	}
}

func (h *recordingHooks) OnEmergency(state EmergencyState) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.emergencies = append(h.emergencies, state)
}

func (h *recordingHooks) lastTier() (Tier, bool) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if len(h.tiers) == 0 {
		return 0, false
	}
	return h.tiers[len(h.tiers)-1], true
}

// desktopQuery simulates a discrete desktop GPU.
type desktopQuery struct{}

func (desktopQuery) QueryCapabilities() (Capabilities, error) {
	return Capabilities{AdapterName: "Fake GPU", DiscreteGPU: true, ComputeShaders: true}, nil
}

func newTestGovernor(t *testing.T, hooks PipelineHooks, extra ...Option) *Governor {
	t.Helper()
	opts := append([]Option{
		WithQuery(desktopQuery{}),
		WithClock(newFakeClock()),
		WithSampleWindow(10, 5),
		WithoutSweeper(),
	}, extra...)
	g := New(hooks, opts...)
	t.Cleanup(g.Stop)
	return g
}

func TestGovernorSeedsTierFromProbe(t *testing.T) {
	g := newTestGovernor(t, nil)
	if got := g.Tier(); got != TierOptimal {
		t.Errorf("initial tier = %v, want optimal for discrete desktop", got)
	}
	if got := g.Profile().AdapterName; got != "Fake GPU" {
		t.Errorf("adapter = %q, want Fake GPU", got)
	}
	if got := g.EmergencyState(); got != StateNormal {
		t.Errorf("state = %v, want normal", got)
	}
}

// Sustained slow frames must walk the tier down and deliver each change,
// with its settings, to the host pipeline.
func TestGovernorDowngradesUnderLoad(t *testing.T) {
	hooks := &recordingHooks{}
	g := newTestGovernor(t, hooks)

	for i := 0; i < 15; i++ { // three 5-frame windows at 200ms
		g.OnFrameRendered(200)
	}
	tier, ok := hooks.lastTier()
	if !ok {
		t.Fatal("no tier change delivered to hooks")
	}
	if tier != g.Tier() {
		t.Errorf("hook tier %v != governor tier %v", tier, g.Tier())
	}
	if g.Tier() >= TierOptimal {
		t.Errorf("tier = %v after sustained 200ms frames, want below optimal", g.Tier())
	}
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	for i, s := range hooks.settings {
		if s == nil {
			t.Errorf("tier change %d delivered nil settings", i)
		}
	}
}

// A critical memory edge downgrades immediately, between windows.
func TestGovernorMemoryEdgeDowngradesImmediately(t *testing.T) {
	hooks := &recordingHooks{}
	g := newTestGovernor(t, hooks)

	ceiling := DefaultTierTable()[TierOptimal].Thresholds.MaxMemoryBytes
	g.Allocate(Allocation{ID: "huge", Kind: ResourceTexture, SizeBytes: ceiling})
	if got := g.Tier(); got != TierGood {
		t.Errorf("tier = %v right after memory edge, want good", got)
	}
}

// Scenario: three context losses disable the session; a restore afterwards
// is refused and everything observable stays pinned.
func TestGovernorRepeatedContextLossDisables(t *testing.T) {
	hooks := &recordingHooks{}
	store := NewMemorySessionStore()
	g := newTestGovernor(t, hooks, WithSessionStore(store))

	for i := 0; i < 3; i++ {
		g.OnContextLost()
		g.OnContextRestored()
	}
	if got := g.EmergencyState(); got != StateDisabled {
		t.Fatalf("state = %v after 3 losses, want disabled", got)
	}
	if got := g.Tier(); got != TierMinimum {
		t.Errorf("tier = %v, want minimum", got)
	}
	if g.recovery.Attached() {
		t.Error("recovery should stay detached once disabled")
	}

	// No amount of good news re-enables anything.
	g.OnContextRestored()
	for i := 0; i < 100; i++ {
		g.OnFrameRendered(1)
	}
	if got := g.EmergencyState(); got != StateDisabled {
		t.Errorf("state = %v, want disabled forever", got)
	}
	if got := g.Tier(); got != TierMinimum {
		t.Errorf("tier = %v, want minimum forever", got)
	}

	// And the next boot in this session short-circuits without probing.
	g2 := newTestGovernor(t, &recordingHooks{}, WithSessionStore(store))
	if got := g2.EmergencyState(); got != StateDisabled {
		t.Errorf("second boot state = %v, want disabled from store", got)
	}
	if got := g2.Tier(); got != TierMinimum {
		t.Errorf("second boot tier = %v, want minimum", got)
	}
}

func TestGovernorInitFailureIsTerminal(t *testing.T) {
	hooks := &recordingHooks{}
	g := newTestGovernor(t, hooks)

	g.OnInitFailure("shader compile failed")
	if got := g.EmergencyState(); got != StateDisabled {
		t.Fatalf("state = %v, want disabled", got)
	}
	hooks.mu.Lock()
	defer hooks.mu.Unlock()
	if len(hooks.emergencies) != 1 || hooks.emergencies[0] != StateDisabled {
		t.Errorf("emergencies = %v, want [disabled]", hooks.emergencies)
	}
}

// A runtime error storm degrades: the host is told to swap to its static
// presentation and the tier is forced to minimum.
func TestGovernorRuntimeErrorStormDegrades(t *testing.T) {
	hooks := &recordingHooks{}
	g := newTestGovernor(t, hooks)

	for i := 0; i < 10; i++ {
		g.OnRuntimeError("tick exploded")
	}
	if got := g.EmergencyState(); got != StateDegraded {
		t.Fatalf("state = %v after error storm, want degraded", got)
	}
	if got := g.Tier(); got != TierMinimum {
		t.Errorf("tier = %v, want minimum", got)
	}
}

// A panicking host hook must not escape the governor's public API; it is
// converted into a runtime failure record.
func TestGovernorSurvivesPanickingHooks(t *testing.T) {
	hooks := &recordingHooks{explode: true}
	g := newTestGovernor(t, hooks)

	for i := 0; i < 10; i++ { // enough windows to force a tier change
		g.OnFrameRendered(200)
	}
	if got := g.breaker.Snapshot().TotalByKind[FailureRuntime]; got == 0 {
		t.Error("hook panic was not recorded as a runtime failure")
	}
}

func TestGovernorStopIsIdempotent(t *testing.T) {
	g := New(nil, WithQuery(desktopQuery{}), WithSweep(time.Millisecond, time.Minute))
	g.Stop()
	g.Stop()

	// Inbound methods keep working after Stop.
	g.OnFrameRendered(10)
	g.Allocate(Allocation{ID: "post-stop", SizeBytes: 1})
	g.Release("post-stop")
}

func TestGovernorForceTierRespectsEmergency(t *testing.T) {
	g := newTestGovernor(t, nil)

	if err := g.ForceTier(TierAcceptable); err != nil {
		t.Fatalf("ForceTier = %v", err)
	}
	if got := g.Tier(); got != TierAcceptable {
		t.Errorf("tier = %v, want acceptable", got)
	}

	g.OnInitFailure("dead")
	if err := g.ForceTier(TierGood); err == nil {
		t.Error("ForceTier above minimum should fail once disabled")
	}
}

func TestGovernorManualSweep(t *testing.T) {
	clk := newFakeClock()
	g := New(nil, WithQuery(desktopQuery{}), WithClock(clk), WithoutSweeper())
	defer g.Stop()

	g.Allocate(Allocation{ID: "leak", Kind: ResourceBuffer, SizeBytes: 4096})
	clk.Advance(time.Hour)
	if got := g.SweepStale(time.Minute); got != 1 {
		t.Errorf("sweep released %d, want 1", got)
	}
}
