package governor

import "sync"

// Recovery reacts to rendering-context loss and restoration events from
// the host pipeline. It is a two-state machine: attached (normal
// operation) and detached (context gone, sampler paused).
//
// Recovery itself never records failures with the circuit breaker; the
// governor does that when the host reports a loss, so the breaker still
// sees every event even if recovery is refused.
type Recovery struct {
	mu       sync.Mutex
	attached bool

	sampler    *Sampler
	controller *Controller
	emergency  func() EmergencyState
}

// NewRecovery creates a coordinator in the attached state.
func NewRecovery(sampler *Sampler, controller *Controller, emergency func() EmergencyState) *Recovery {
	if emergency == nil {
		emergency = func() EmergencyState { return StateNormal }
	}
	return &Recovery{
		attached:   true,
		sampler:    sampler,
		controller: controller,
		emergency:  emergency,
	}
}

// Attached reports whether the coordinator considers the rendering context
// live.
func (r *Recovery) Attached() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.attached
}

// ContextLost transitions to detached and pauses the sampler so stale
// frame times from a dying context are not recorded. Idempotent.
func (r *Recovery) ContextLost() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if !r.attached {
		return
	}
	r.attached = false
	r.sampler.setPaused(true)
	Logger().Warn("rendering context lost, sampler paused")
}

// ContextRestored re-enters normal operation after the platform restores
// the context: sampler history is cleared (a fresh context must not be
// judged against pre-loss samples), the capability probe's original result
// is reused rather than re-detecting, and the controller re-enters one
// tier below where it left off.
//
// If the breaker has already disabled the session, recovery is refused and
// the coordinator stays detached for the rest of the session.
func (r *Recovery) ContextRestored() bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.attached {
		return true
	}
	if r.emergency() == StateDisabled {
		Logger().Info("context restored but governor is disabled, staying detached")
		return false
	}

	r.sampler.Clear()
	r.sampler.setPaused(false)
	tier := r.controller.ReenterBelow()
	r.attached = true
	Logger().Info("rendering context restored", "tier", tier)
	return true
}
