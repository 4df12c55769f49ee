package governor

import (
	"context"
	"fmt"
	"sync"
	"time"
)

// PipelineHooks is the outbound contract to the host rendering pipeline.
// Both methods are invoked synchronously from governor calls; the pipeline
// must apply tier settings before the next frame and swap to a zero-GPU
// static presentation when the emergency state is degraded or disabled.
//
// Implementations must not call back into the Governor from these hooks.
type PipelineHooks interface {
	// OnTierChanged delivers the new tier and its opaque render settings.
	OnTierChanged(tier Tier, settings RenderSettings)

	// OnEmergency delivers forward-only emergency state changes.
	OnEmergency(state EmergencyState)
}

// Governor is the adaptive rendering performance governor. It keeps a
// decorative GPU rendering layer running acceptably across heterogeneous
// hardware: it picks an initial quality tier from a one-shot capability
// probe, adjusts the tier from live frame timing and resource telemetry,
// breaks the circuit on repeated failures, and survives context loss.
//
// All inbound methods are guaranteed never to panic; any internal panic is
// recovered at the boundary and recorded as a runtime-error failure.
// The Governor is safe for concurrent use, though hosts typically drive it
// from a single render thread.
type Governor struct {
	cfg     config
	profile DeviceProfile

	sampler    *Sampler
	monitor    *Monitor
	controller *Controller
	breaker    *Breaker
	recovery   *Recovery

	hooks PipelineHooks

	stopOnce sync.Once
	stopped  chan struct{}
	sweepWG  sync.WaitGroup
}

// New creates and starts a governor. The capability probe runs once,
// before any other component, bounded by the probe timeout; if the session
// store says a previous run disabled the governor, probing is skipped and
// the governor comes up disabled at the minimum tier.
//
// hooks may be nil for a host that only polls Tier()/EmergencyState().
func New(hooks PipelineHooks, opts ...Option) *Governor {
	cfg := defaultConfig()
	for _, opt := range opts {
		opt(&cfg)
	}
	if err := cfg.table.Validate(); err != nil {
		Logger().Warn("invalid tier table, using defaults", "err", err)
		cfg.table = DefaultTierTable()
	}

	g := &Governor{
		cfg:     cfg,
		hooks:   hooks,
		stopped: make(chan struct{}),
	}

	g.breaker = NewBreaker(BreakerConfig{
		Window:            cfg.failureWindow,
		RuntimeWindow:     cfg.runtimeWindow,
		ContextLostLimit:  cfg.lostLimit,
		RuntimeErrorLimit: cfg.runtimeLimit,
		PerformanceLimit:  cfg.perfLimit,
		Clock:             cfg.clock,
		Store:             cfg.store,
		OnEscalate:        g.onEscalate,
	})

	disabled := g.breaker.State() == StateDisabled
	if disabled {
		g.profile = conservativeProfile()
	} else {
		probe := NewProbe(cfg.query, cfg.probeTimeout)
		g.profile = probe.Detect(context.Background())
	}

	g.sampler = NewSampler(cfg.sampleCapacity, cfg.evalEvery, cfg.clock)
	g.controller = NewController(ControllerConfig{
		Table:          cfg.table,
		Initial:        g.profile.RecommendedTier,
		DwellWindows:   cfg.dwellWindows,
		WarnWindows:    cfg.warnWindows,
		UpgradeWindows: cfg.upgradeWindows,
		HistoryLimit:   cfg.historyLimit,
		Clock:          cfg.clock,
		Emergency:      g.breaker.State,
		OnChange:       g.onTierChanged,
	})
	g.monitor = NewMonitor(cfg.table[g.profile.RecommendedTier].Thresholds.MaxMemoryBytes, cfg.clock)
	g.recovery = NewRecovery(g.sampler, g.controller, g.breaker.State)

	if disabled {
		g.sampler.setPaused(true)
		if hooks != nil {
			hooks.OnEmergency(StateDisabled)
		}
	}

	if cfg.sweeper {
		g.sweepWG.Add(1)
		go g.sweepLoop()
	}
	return g
}

// Profile returns the device profile the probe produced at startup.
func (g *Governor) Profile() DeviceProfile { return g.profile }

// Tier returns the currently active quality tier.
func (g *Governor) Tier() Tier { return g.controller.Current() }

// EmergencyState returns the breaker's current state.
func (g *Governor) EmergencyState() EmergencyState { return g.breaker.State() }

// History returns the bounded tier-transition history, oldest first.
func (g *Governor) History() []Transition { return g.controller.History() }

// OnFrameRendered is the per-frame input from the host pipeline. Within an
// evaluation window the components run in a fixed order: sampler, then
// monitor, then controller, then breaker, so a tier decision always sees
// the freshest resource data and a breaker escalation always sees (and can
// override) the freshest tier decision.
func (g *Governor) OnFrameRendered(frameTimeMs float64) {
	defer g.guard("OnFrameRendered")

	perf := g.sampler.Tick(frameTimeMs, g.controller.CurrentThresholds())
	if !perf.Evaluated {
		return
	}
	mem := g.monitor.Signal()
	g.controller.Evaluate(perf, mem)
	if perf.Level == SignalCritical && g.controller.Current() == TierMinimum {
		// Nothing left to degrade to; let the breaker decide whether the
		// feature should keep running at all.
		g.breaker.RecordFailure(FailurePerformance,
			fmt.Sprintf("avg %.1fms at minimum tier", perf.AvgFrameTimeMs))
	}
}

// Allocate reports a GPU-side resource allocation. A critical memory edge
// downgrades immediately rather than waiting for the next window.
func (g *Governor) Allocate(rec Allocation) {
	defer g.guard("Allocate")

	sig := g.monitor.RecordAllocation(rec)
	if sig.Changed && sig.Level == SignalCritical {
		g.controller.NoteMemoryCritical()
	}
}

// Release reports that a GPU-side resource was freed.
func (g *Governor) Release(id string) {
	defer g.guard("Release")
	g.monitor.RecordRelease(id)
}

// OnContextLost reports that the platform invalidated the rendering
// context. The loss is recorded with the breaker first (so repeated losses
// can disable the session even if recovery never completes), then the
// coordinator detaches and pauses sampling.
func (g *Governor) OnContextLost() {
	defer g.guard("OnContextLost")

	g.breaker.RecordFailure(FailureContextLost, "")
	g.recovery.ContextLost()
}

// OnContextRestored reports that the platform restored the rendering
// context. Recovery is refused once the session is disabled.
func (g *Governor) OnContextRestored() {
	defer g.guard("OnContextRestored")
	g.recovery.ContextRestored()
}

// OnRuntimeError reports an exception during a rendering tick.
func (g *Governor) OnRuntimeError(detail string) {
	defer g.guard("OnRuntimeError")
	g.breaker.RecordFailure(FailureRuntime, detail)
}

// OnInitFailure reports that first-frame pipeline setup failed. One init
// failure disables the session: initialization is assumed deterministic
// for a given device.
func (g *Governor) OnInitFailure(detail string) {
	defer g.guard("OnInitFailure")
	g.breaker.RecordFailure(FailureInit, detail)
}

// ForceTier pins the tier on behalf of a host debug surface. It fails with
// ErrDisabled once the governor is degraded or disabled, and with
// ErrUnknownTier for values outside the four tiers.
func (g *Governor) ForceTier(t Tier) error {
	return g.controller.ForceTier(t)
}

// SweepStale force-releases tracked resources older than maxAge and
// returns the number released. The background sweeper calls this on its
// own cadence; hosts using WithoutSweeper call it directly.
func (g *Governor) SweepStale(maxAge time.Duration) int {
	return g.monitor.SweepStale(maxAge)
}

// Stop halts the background sweeper. It is idempotent and always safe to
// call; inbound methods called after Stop still work, they just no longer
// get leak protection.
func (g *Governor) Stop() {
	g.stopOnce.Do(func() {
		close(g.stopped)
	})
	g.sweepWG.Wait()
}

// sweepLoop runs the low-frequency stale-resource sweep until Stop.
func (g *Governor) sweepLoop() {
	defer g.sweepWG.Done()
	ticker := time.NewTicker(g.cfg.sweepInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			g.monitor.SweepStale(g.cfg.staleAge)
		case <-g.stopped:
			return
		}
	}
}

// onTierChanged forwards controller transitions to the host and realigns
// the monitor's ceiling with the new tier.
func (g *Governor) onTierChanged(t Tier, settings RenderSettings) {
	g.monitor.SetCeiling(g.cfg.table[t].Thresholds.MaxMemoryBytes)
	if g.hooks != nil {
		g.hooks.OnTierChanged(t, settings)
	}
}

// onEscalate reacts to breaker escalation: degraded and disabled both
// force the minimum tier, and the host is told to swap to its static
// presentation.
func (g *Governor) onEscalate(state EmergencyState) {
	g.controller.ForceMinimum(ReasonEmergency)
	if state == StateDisabled {
		g.sampler.setPaused(true)
	}
	if g.hooks != nil {
		g.hooks.OnEmergency(state)
	}
}

// guard converts an internal panic into a runtime-error failure record so
// the public API never throws into the host's frame loop.
func (g *Governor) guard(op string) {
	if r := recover(); r != nil {
		Logger().Warn("internal panic recovered", "op", op, "panic", r)
		g.breaker.RecordFailure(FailureRuntime, fmt.Sprintf("%s: panic: %v", op, r))
	}
}
