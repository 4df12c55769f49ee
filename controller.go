package governor

import (
	"fmt"
	"sync"
)

// ErrDisabled is returned by operations that cannot proceed once the
// circuit breaker has disabled the governor for the session.
var ErrDisabled = fmt.Errorf("governor: disabled for this session")

// ErrUnknownTier is returned when a caller passes a tier outside the four
// defined values.
var ErrUnknownTier = fmt.Errorf("governor: unknown tier")

// Controller is the hysteretic state machine over quality tiers. It
// consumes sampler and monitor signals once per evaluation window and
// requests tier transitions, never moving more than one tier per window.
//
// Downgrades are never blocked: safety degradation is always immediate.
// Upgrades require a sustained ok streak, a dwell period since the last
// transition of any kind, and a normal emergency state.
type Controller struct {
	mu sync.Mutex

	table TierTable
	tier  Tier

	warnStreak   int
	okStreak     int
	sinceChange  int  // evaluation windows since the last transition
	changedThisW bool // a transition already happened in the current window

	dwellWindows   int
	warnWindows    int
	upgradeWindows int

	history     []Transition
	historyCap  int
	transitions uint64

	clock Clock

	// emergency re-reads the breaker's state. It is the single source of
	// truth and is consulted last in every evaluation so a concurrent
	// escalation is never acted on stale.
	emergency func() EmergencyState

	// onChange is invoked outside critical decisions but under the
	// controller lock, with the new tier and its settings. The governor
	// forwards it to the host pipeline.
	onChange func(Tier, RenderSettings)
}

// ControllerConfig carries the controller's tunables. Zero values fall
// back to defaults.
type ControllerConfig struct {
	Table          TierTable
	Initial        Tier
	DwellWindows   int
	WarnWindows    int
	UpgradeWindows int
	HistoryLimit   int
	Clock          Clock
	Emergency      func() EmergencyState
	OnChange       func(Tier, RenderSettings)
}

// NewController creates a tier controller starting at cfg.Initial.
func NewController(cfg ControllerConfig) *Controller {
	if cfg.DwellWindows <= 0 {
		cfg.DwellWindows = defaultDwellWindows
	}
	if cfg.WarnWindows <= 0 {
		cfg.WarnWindows = defaultWarnWindows
	}
	if cfg.UpgradeWindows <= 0 {
		cfg.UpgradeWindows = defaultUpgradeWindows
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = defaultHistoryLimit
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	if cfg.Emergency == nil {
		cfg.Emergency = func() EmergencyState { return StateNormal }
	}
	if !cfg.Initial.valid() {
		cfg.Initial = TierMinimum
	}
	return &Controller{
		table:          cfg.Table,
		tier:           cfg.Initial,
		dwellWindows:   cfg.DwellWindows,
		warnWindows:    cfg.WarnWindows,
		upgradeWindows: cfg.UpgradeWindows,
		historyCap:     cfg.HistoryLimit,
		clock:          cfg.Clock,
		emergency:      cfg.Emergency,
		onChange:       cfg.OnChange,
		sinceChange:    cfg.DwellWindows, // the initial tier is not a transition
	}
}

// Current returns the active tier.
func (c *Controller) Current() Tier {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.tier
}

// CurrentThresholds returns the active tier's thresholds.
func (c *Controller) CurrentThresholds() Thresholds {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.table[c.tier].Thresholds
}

// Settings returns the render settings for tier t.
func (c *Controller) Settings(t Tier) RenderSettings {
	if !t.valid() {
		return nil
	}
	return c.table[t].Settings
}

// Evaluate consumes one window's performance and memory signals and
// applies at most one tier transition. The emergency state is re-read
// after the candidate decision, never cached, so a breaker escalation that
// raced this window still wins.
func (c *Controller) Evaluate(perf PerfSignal, mem MemSignal) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.sinceChange++
	c.changedThisW = false
	c.evaluateLocked(perf, mem)

	// Re-read the emergency state after the decision: once disabled, the
	// controller only ever reports the minimum tier, even if the breaker
	// escalated between signal production and this evaluation.
	if c.emergency() == StateDisabled && c.tier != TierMinimum {
		c.transitionLocked(TierMinimum, ReasonEmergency)
	}
}

// evaluateLocked computes and applies the candidate transition for one
// window. Caller holds c.mu.
func (c *Controller) evaluateLocked(perf PerfSignal, mem MemSignal) {
	level := maxLevel(perf.Level, mem.Level)
	switch level {
	case SignalCritical:
		c.warnStreak = 0
		c.okStreak = 0
		reason := ReasonPerformanceCritical
		if mem.Level == SignalCritical && perf.Level != SignalCritical {
			reason = ReasonMemoryCritical
		}
		c.downgradeLocked(reason)
		return
	case SignalWarn:
		c.okStreak = 0
		c.warnStreak++
		if c.warnStreak >= c.warnWindows {
			c.warnStreak = 0
			c.downgradeLocked(ReasonPerformanceWarn)
		}
		return
	}

	// ok: count toward an upgrade only while actually hitting the current
	// tier's target, not merely staying under the warn threshold.
	c.warnStreak = 0
	if perf.AvgFrameTimeMs > c.table[c.tier].Thresholds.TargetFrameTimeMs {
		c.okStreak = 0
		return
	}
	c.okStreak++
	if c.okStreak < c.upgradeWindows || c.sinceChange <= c.dwellWindows {
		return
	}
	if c.tier >= TierOptimal {
		return
	}
	// EmergencyState is consulted last so a concurrent escalation is never
	// acted on stale; any state above normal vetoes upgrades.
	if c.emergency() != StateNormal {
		c.okStreak = 0
		return
	}
	c.okStreak = 0
	c.transitionLocked(c.tier+1, ReasonUpgrade)
}

// NoteMemoryCritical applies an immediate downgrade in response to a
// memory signal edge, without waiting for the next evaluation window.
// At most one transition per window still holds: if this window already
// transitioned, the signal is absorbed (the next window re-reads usage).
func (c *Controller) NoteMemoryCritical() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.changedThisW {
		return
	}
	c.warnStreak = 0
	c.okStreak = 0
	c.downgradeLocked(ReasonMemoryCritical)
}

// ForceMinimum drops straight to the minimum tier. The breaker invokes it
// on escalation. Idempotent: already at minimum is a no-op.
func (c *Controller) ForceMinimum(reason TransitionReason) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.tier == TierMinimum {
		return
	}
	c.warnStreak = 0
	c.okStreak = 0
	c.transitionLocked(TierMinimum, reason)
}

// ForceTier pins the controller to t on behalf of a host debug surface.
// It refuses unknown tiers, and refuses anything above minimum once the
// governor is degraded or disabled.
func (c *Controller) ForceTier(t Tier) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !t.valid() {
		return ErrUnknownTier
	}
	if t > TierMinimum && c.emergency() != StateNormal {
		return ErrDisabled
	}
	if t == c.tier {
		return nil
	}
	c.warnStreak = 0
	c.okStreak = 0
	c.transitionLocked(t, ReasonForced)
	return nil
}

// ReenterBelow re-enters the state machine one tier below the current one
// after a context restore. Never resumes at the same tier immediately
// after a loss.
func (c *Controller) ReenterBelow() Tier {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.warnStreak = 0
	c.okStreak = 0
	if c.tier > TierMinimum {
		c.transitionLocked(c.tier-1, ReasonRecovery)
	}
	return c.tier
}

// downgradeLocked moves one tier down unless already at the floor.
// Downgrades carry no dwell requirement. Caller holds c.mu.
func (c *Controller) downgradeLocked(reason TransitionReason) {
	if c.tier == TierMinimum {
		return
	}
	c.transitionLocked(c.tier-1, reason)
}

// transitionLocked applies the tier change, appends it to the bounded
// history and notifies the host. Caller holds c.mu.
func (c *Controller) transitionLocked(to Tier, reason TransitionReason) {
	from := c.tier
	c.tier = to
	c.sinceChange = 0
	c.changedThisW = true
	c.transitions++

	tr := Transition{From: from, To: to, Reason: reason, At: c.clock.Now()}
	c.history = append(c.history, tr)
	if len(c.history) > c.historyCap {
		c.history = c.history[len(c.history)-c.historyCap:]
	}

	Logger().Info("tier transition", "from", from, "to", to, "reason", reason)
	if c.onChange != nil {
		c.onChange(to, c.table[to].Settings)
	}
}

// History returns a copy of the bounded transition history, oldest first.
func (c *Controller) History() []Transition {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Transition, len(c.history))
	copy(out, c.history)
	return out
}

// Transitions returns the total number of transitions since boot,
// including those evicted from the bounded history.
func (c *Controller) Transitions() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.transitions
}
