package governor

import (
	"strings"
	"testing"
)

const tierYAML = `
tiers:
  minimum:
    target_frame_time_ms: 50
    warn_frame_time_ms: 80
    critical_frame_time_ms: 120
    max_memory_bytes: 1000000
    settings:
      particles: 0
  acceptable:
    target_frame_time_ms: 33.3
    warn_frame_time_ms: 45
    critical_frame_time_ms: 60
    max_memory_bytes: 2000000
  good:
    target_frame_time_ms: 25
    warn_frame_time_ms: 30
    critical_frame_time_ms: 38
    max_memory_bytes: 3000000
  optimal:
    target_frame_time_ms: 16.7
    warn_frame_time_ms: 20
    critical_frame_time_ms: 33
    max_memory_bytes: 4000000
    settings:
      particles: 512
      blur: true
`

func TestLoadTierTable(t *testing.T) {
	tt, err := LoadTierTable(strings.NewReader(tierYAML))
	if err != nil {
		t.Fatalf("LoadTierTable: %v", err)
	}

	if got := tt[TierOptimal].Thresholds.TargetFrameTimeMs; got != 16.7 {
		t.Errorf("optimal target = %v, want 16.7", got)
	}
	if got := tt[TierMinimum].Thresholds.MaxMemoryBytes; got != 1000000 {
		t.Errorf("minimum ceiling = %v, want 1000000", got)
	}
	if got := tt[TierOptimal].Settings["blur"]; got != true {
		t.Errorf("optimal blur setting = %v, want true", got)
	}
	if tt[TierAcceptable].Settings != nil {
		t.Errorf("acceptable settings = %v, want nil (omitted in file)", tt[TierAcceptable].Settings)
	}
}

func TestLoadTierTableRejectsBadOrdering(t *testing.T) {
	bad := strings.Replace(tierYAML, "critical_frame_time_ms: 33", "critical_frame_time_ms: 10", 1)
	if _, err := LoadTierTable(strings.NewReader(bad)); err == nil {
		t.Error("expected error for critical below warn")
	}
}

func TestLoadTierTableRejectsMissingTier(t *testing.T) {
	// Drop the optimal block entirely: its zero thresholds must fail
	// validation.
	idx := strings.Index(tierYAML, "  optimal:")
	if _, err := LoadTierTable(strings.NewReader(tierYAML[:idx])); err == nil {
		t.Error("expected error for missing tier")
	}
}

func TestLoadTierTableRejectsGarbage(t *testing.T) {
	if _, err := LoadTierTable(strings.NewReader("{not yaml")); err == nil {
		t.Error("expected parse error")
	}
}

func TestLoadTierTableFileMissing(t *testing.T) {
	if _, err := LoadTierTableFile("/does/not/exist.yaml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestDefaultTierTableIsValid(t *testing.T) {
	if err := DefaultTierTable().Validate(); err != nil {
		t.Errorf("default table invalid: %v", err)
	}
}
