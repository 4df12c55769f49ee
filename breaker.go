package governor

import (
	"sync"
	"time"
)

// EmergencyState is the governor-wide health state owned by the circuit
// breaker. It only ever moves forward within a session:
// normal -> degraded -> disabled.
type EmergencyState int

const (
	// StateNormal means the governor is operating and upgrades are allowed.
	StateNormal EmergencyState = iota

	// StateDegraded means repeated runtime failures forced the minimum
	// tier. The host should already be showing its cheap presentation.
	StateDegraded

	// StateDisabled is terminal for the session. It is persisted to the
	// session store so a reload does not retry a hardware class known to
	// fail.
	StateDisabled
)

// String returns the emergency state name.
func (s EmergencyState) String() string {
	switch s {
	case StateNormal:
		return "normal"
	case StateDegraded:
		return "degraded"
	case StateDisabled:
		return "disabled"
	default:
		return "unknown"
	}
}

// FailureKind labels an abnormal event recorded with the breaker.
type FailureKind int

const (
	// FailureInit is a capability-detection or first-frame setup failure.
	// Initialization is assumed deterministic for a given device, so there
	// is no retry budget: one init failure disables the session.
	FailureInit FailureKind = iota

	// FailureRuntime is an exception during a rendering tick.
	FailureRuntime

	// FailureContextLost is a GPU context invalidated by the platform.
	FailureContextLost

	// FailurePerformance is sustained critical performance while already
	// at the minimum tier, meaning degradation has nothing left to give.
	FailurePerformance
)

// String returns the failure kind name.
func (k FailureKind) String() string {
	switch k {
	case FailureInit:
		return "init_failure"
	case FailureRuntime:
		return "runtime_error"
	case FailureContextLost:
		return "context_lost"
	case FailurePerformance:
		return "performance_critical"
	default:
		return "unknown"
	}
}

// FailureRecord is one abnormal event kept in the breaker's sliding window.
type FailureRecord struct {
	Kind   FailureKind
	Detail string
	At     time.Time
}

// BreakerConfig carries the circuit breaker's tunables. Zero values fall
// back to defaults.
type BreakerConfig struct {
	// Window is the sliding window failures are counted over.
	Window time.Duration

	// RuntimeWindow is the tighter window for runtime-error rate checks.
	RuntimeWindow time.Duration

	ContextLostLimit  int
	RuntimeErrorLimit int
	PerformanceLimit  int

	Clock Clock
	Store SessionStore

	// OnEscalate is invoked, outside the breaker lock, whenever the state
	// moves forward. The governor uses it to force the minimum tier and
	// notify the host.
	OnEscalate func(EmergencyState)
}

// Breaker watches for repeated failures across a sliding time window and
// escalates to drastic, possibly irreversible, actions. Escalations are
// idempotent and monotonic; disabled is a one-way door within a session.
type Breaker struct {
	mu      sync.Mutex
	records []FailureRecord
	state   EmergencyState

	counts     map[FailureKind]uint64 // totals since boot, for telemetry
	degradedAt time.Time

	window        time.Duration
	runtimeWindow time.Duration
	lostLimit     int
	runtimeLimit  int
	perfLimit     int

	clock Clock
	store SessionStore

	onEscalate func(EmergencyState)
}

// NewBreaker creates a circuit breaker. If the session store already holds
// the disabled flag, the breaker starts (and stays) disabled.
func NewBreaker(cfg BreakerConfig) *Breaker {
	if cfg.Window <= 0 {
		cfg.Window = defaultFailureWindow
	}
	if cfg.RuntimeWindow <= 0 {
		cfg.RuntimeWindow = defaultRuntimeErrorWindow
	}
	if cfg.ContextLostLimit <= 0 {
		cfg.ContextLostLimit = defaultContextLostLimit
	}
	if cfg.RuntimeErrorLimit <= 0 {
		cfg.RuntimeErrorLimit = defaultRuntimeErrorLimit
	}
	if cfg.PerformanceLimit <= 0 {
		cfg.PerformanceLimit = defaultPerformanceLimit
	}
	if cfg.Clock == nil {
		cfg.Clock = systemClock{}
	}
	b := &Breaker{
		state:         StateNormal,
		counts:        make(map[FailureKind]uint64),
		window:        cfg.Window,
		runtimeWindow: cfg.RuntimeWindow,
		lostLimit:     cfg.ContextLostLimit,
		runtimeLimit:  cfg.RuntimeErrorLimit,
		perfLimit:     cfg.PerformanceLimit,
		clock:         cfg.Clock,
		store:         cfg.Store,
		onEscalate:    cfg.OnEscalate,
	}
	if b.store != nil {
		if v, ok := b.store.Get(disabledKey); ok && v == "true" {
			b.state = StateDisabled
			Logger().Info("governor disabled flag found in session store")
		}
	}
	return b
}

// State returns the current emergency state. Every other component re-reads
// this instead of caching: the breaker is the single source of truth.
func (b *Breaker) State() EmergencyState {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state
}

// RecordFailure appends one abnormal event and applies the escalation
// policy. It returns the resulting state and never fails; recording while
// already disabled only updates counters.
func (b *Breaker) RecordFailure(kind FailureKind, detail string) EmergencyState {
	b.mu.Lock()
	prev := b.state

	now := b.clock.Now()
	b.counts[kind]++
	b.pruneLocked(now)
	b.records = append(b.records, FailureRecord{Kind: kind, Detail: detail, At: now})

	if b.state == StateDisabled {
		b.mu.Unlock()
		return StateDisabled
	}

	switch kind {
	case FailureInit:
		b.escalateLocked(StateDisabled, "init failure")

	case FailureContextLost:
		if b.countLocked(FailureContextLost, now.Add(-b.window)) >= b.lostLimit {
			b.escalateLocked(StateDisabled, "repeated context loss")
		}

	case FailureRuntime:
		n := b.countLocked(FailureRuntime, now.Add(-b.runtimeWindow))
		if n < b.runtimeLimit {
			break
		}
		if b.state == StateNormal {
			b.escalateLocked(StateDegraded, "runtime error rate")
			break
		}
		// Already degraded: errors continuing at the same rate after the
		// degradation point exhaust the budget for good.
		since := b.degradedAt
		if cutoff := now.Add(-b.runtimeWindow); cutoff.After(since) {
			since = cutoff
		}
		if b.countLocked(FailureRuntime, since) >= b.runtimeLimit {
			b.escalateLocked(StateDisabled, "runtime errors persisted after degradation")
		}

	case FailurePerformance:
		if b.countLocked(FailurePerformance, now.Add(-b.window)) >= b.perfLimit {
			b.escalateLocked(StateDegraded, "sustained critical performance at minimum tier")
		}
	}

	state := b.state
	b.mu.Unlock()

	// The escalation callback runs outside the breaker lock: it forces the
	// controller to the minimum tier, and the controller reads breaker
	// state under its own lock.
	if state != prev && b.onEscalate != nil {
		b.onEscalate(state)
	}
	return state
}

// countLocked counts window records of a kind at or after cutoff.
// Caller holds b.mu.
func (b *Breaker) countLocked(kind FailureKind, cutoff time.Time) int {
	n := 0
	for _, r := range b.records {
		if r.Kind == kind && !r.At.Before(cutoff) {
			n++
		}
	}
	return n
}

// pruneLocked drops records older than the sliding window.
// Caller holds b.mu.
func (b *Breaker) pruneLocked(now time.Time) {
	cutoff := now.Add(-b.window)
	i := 0
	for ; i < len(b.records); i++ {
		if !b.records[i].At.Before(cutoff) {
			break
		}
	}
	if i > 0 {
		b.records = append(b.records[:0], b.records[i:]...)
	}
}

// escalateLocked moves the state forward. Monotonic and idempotent: a
// target at or below the current state is a no-op. Caller holds b.mu.
func (b *Breaker) escalateLocked(target EmergencyState, why string) {
	if target <= b.state {
		return
	}
	b.state = target
	if target == StateDegraded {
		b.degradedAt = b.clock.Now()
	}
	Logger().Warn("circuit breaker escalated", "state", target, "reason", why)

	if target == StateDisabled && b.store != nil {
		if err := b.store.Set(disabledKey, "true"); err != nil {
			// Persistence failing must never break the fallback itself.
			Logger().Warn("failed to persist disabled flag", "err", err)
		}
	}
}

// BreakerStats is a cheap copy-out of breaker counters.
type BreakerStats struct {
	State         EmergencyState
	WindowRecords int
	TotalByKind   map[FailureKind]uint64
}

// Snapshot returns a copy of the breaker's counters.
func (b *Breaker) Snapshot() BreakerStats {
	b.mu.Lock()
	defer b.mu.Unlock()
	totals := make(map[FailureKind]uint64, len(b.counts))
	for k, v := range b.counts {
		totals[k] = v
	}
	return BreakerStats{
		State:         b.state,
		WindowRecords: len(b.records),
		TotalByKind:   totals,
	}
}
