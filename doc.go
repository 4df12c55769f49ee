// Package governor keeps a decorative GPU rendering layer running
// acceptably across heterogeneous hardware without freezing, leaking, or
// crashing the host.
//
// # Overview
//
// governor is a control system, not a renderer: it assumes a rendering
// pipeline already exists and exposes hooks the governor can observe and
// throttle. It decides, from live telemetry, which quality tier the
// pipeline should run at, detects and survives rendering-context loss,
// caps runaway resource growth, and, if all else fails, permanently and
// silently falls back to a zero-risk static presentation for the rest of
// the session.
//
// # Quick Start
//
//	g := governor.New(hooks, governor.WithQuery(wgpuquery.New()))
//	defer g.Stop()
//
//	// Called by the pipeline once per rendered frame:
//	g.OnFrameRendered(frameTimeMs)
//
//	// Resource bookkeeping:
//	g.Allocate(governor.Allocation{ID: id, Kind: governor.ResourceTexture, SizeBytes: n})
//	g.Release(id)
//
//	// Lifecycle events:
//	g.OnContextLost()
//	g.OnContextRestored()
//	g.OnRuntimeError(detail)
//
// The host receives decisions through the PipelineHooks it passed to New:
// OnTierChanged with opaque per-tier render settings, and OnEmergency when
// the circuit breaker degrades or disables the feature.
//
// # Architecture
//
// Components run leaf-first on the host's frame callback, in a fixed order
// per evaluation window: Sampler (frame timing) -> Monitor (resource
// ledger) -> Controller (hysteretic tier state machine) -> Breaker
// (failure window and escalation). A one-shot capability Probe seeds the
// initial tier; Recovery drives re-entry after context loss.
//
// # Failure Model
//
// Public methods never panic and never return errors on the frame path.
// Performance and memory pressure are handled internally by tier
// downgrades. Init failures, repeated context losses, and runtime error
// storms escalate through the circuit breaker: degraded forces the minimum
// tier, disabled is terminal for the session and survives reload through a
// SessionStore.
package governor
