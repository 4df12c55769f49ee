package governor

import (
	"fmt"
	"time"
)

// Tier is a discrete quality level for the rendering pipeline.
// Tiers are ordered: TierMinimum is the cheapest configuration and
// TierOptimal the most expensive. The zero value is TierMinimum so an
// uninitialized tier is always the safe one.
type Tier int

const (
	// TierMinimum is the cheapest configuration. It is the floor the
	// controller degrades to and the tier reported while disabled.
	TierMinimum Tier = iota

	// TierAcceptable trades visible quality for headroom on weak devices.
	TierAcceptable

	// TierGood is the default for mid-range hardware.
	TierGood

	// TierOptimal enables every effect. Reserved for discrete desktop GPUs.
	TierOptimal
)

// tierCount is the number of quality tiers.
const tierCount = 4

// String returns the tier name.
func (t Tier) String() string {
	switch t {
	case TierMinimum:
		return "minimum"
	case TierAcceptable:
		return "acceptable"
	case TierGood:
		return "good"
	case TierOptimal:
		return "optimal"
	default:
		return "unknown"
	}
}

// valid reports whether t is one of the four defined tiers.
func (t Tier) valid() bool { return t >= TierMinimum && t <= TierOptimal }

// RenderSettings is the opaque per-tier payload forwarded to the host
// pipeline on every tier change. The governor never interprets it; the
// pipeline applies it before the next frame.
type RenderSettings map[string]any

// Thresholds holds the numeric targets a tier is evaluated against.
// Frame times are in milliseconds. The ordering
// Target <= Warn < Critical must hold for classification to be meaningful;
// TierTable.Validate enforces it.
type Thresholds struct {
	TargetFrameTimeMs   float64
	WarnFrameTimeMs     float64
	CriticalFrameTimeMs float64
	MaxMemoryBytes      uint64
}

// TierSpec binds a tier's thresholds to its render settings.
type TierSpec struct {
	Thresholds Thresholds
	Settings   RenderSettings
}

// TierTable maps every tier to its spec. It is resolved once at boot and
// read-only afterwards.
type TierTable [tierCount]TierSpec

// DefaultTierTable returns the built-in tier configuration.
//
// The frame-time ladder is arranged so that a frame time which is
// critical at one tier is ordinarily tolerable one or two tiers below,
// letting a single downgrade actually relieve pressure instead of
// cascading straight to the floor.
func DefaultTierTable() TierTable {
	return TierTable{
		TierMinimum: {
			Thresholds: Thresholds{
				TargetFrameTimeMs:   50,
				WarnFrameTimeMs:     80,
				CriticalFrameTimeMs: 120,
				MaxMemoryBytes:      64 << 20,
			},
			Settings: RenderSettings{
				"particles": 0,
				"blur":      false,
				"animate":   false,
			},
		},
		TierAcceptable: {
			Thresholds: Thresholds{
				TargetFrameTimeMs:   33.3,
				WarnFrameTimeMs:     45,
				CriticalFrameTimeMs: 60,
				MaxMemoryBytes:      128 << 20,
			},
			Settings: RenderSettings{
				"particles": 64,
				"blur":      false,
				"animate":   true,
			},
		},
		TierGood: {
			Thresholds: Thresholds{
				TargetFrameTimeMs:   25,
				WarnFrameTimeMs:     30,
				CriticalFrameTimeMs: 38,
				MaxMemoryBytes:      192 << 20,
			},
			Settings: RenderSettings{
				"particles": 256,
				"blur":      true,
				"animate":   true,
			},
		},
		TierOptimal: {
			Thresholds: Thresholds{
				TargetFrameTimeMs:   16.7,
				WarnFrameTimeMs:     20,
				CriticalFrameTimeMs: 33,
				MaxMemoryBytes:      256 << 20,
			},
			Settings: RenderSettings{
				"particles": 1024,
				"blur":      true,
				"animate":   true,
			},
		},
	}
}

// Validate checks internal consistency of the table: every tier must have
// positive frame-time thresholds in Target <= Warn < Critical order and a
// non-zero memory ceiling.
func (tt TierTable) Validate() error {
	for t := TierMinimum; t <= TierOptimal; t++ {
		th := tt[t].Thresholds
		if th.TargetFrameTimeMs <= 0 {
			return fmt.Errorf("governor: tier %s: target frame time must be positive", t)
		}
		if th.WarnFrameTimeMs < th.TargetFrameTimeMs {
			return fmt.Errorf("governor: tier %s: warn threshold below target", t)
		}
		if th.CriticalFrameTimeMs <= th.WarnFrameTimeMs {
			return fmt.Errorf("governor: tier %s: critical threshold must exceed warn", t)
		}
		if th.MaxMemoryBytes == 0 {
			return fmt.Errorf("governor: tier %s: memory ceiling must be non-zero", t)
		}
	}
	return nil
}

// TransitionReason explains why the controller moved between tiers.
type TransitionReason string

const (
	ReasonPerformanceCritical TransitionReason = "performance_critical"
	ReasonPerformanceWarn     TransitionReason = "performance_warn"
	ReasonMemoryCritical      TransitionReason = "memory_critical"
	ReasonUpgrade             TransitionReason = "upgrade"
	ReasonRecovery            TransitionReason = "recovery"
	ReasonEmergency           TransitionReason = "emergency"
	ReasonForced              TransitionReason = "forced"
)

// Transition records one tier change for diagnostics and anti-oscillation
// checks. Transitions are kept in a bounded history inside the controller.
type Transition struct {
	From   Tier
	To     Tier
	Reason TransitionReason
	At     time.Time
}
