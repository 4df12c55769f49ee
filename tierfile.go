package governor

import (
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"
)

// tierFile is the YAML document shape for an external tier table.
//
//	tiers:
//	  optimal:
//	    target_frame_time_ms: 16.7
//	    warn_frame_time_ms: 20
//	    critical_frame_time_ms: 33
//	    max_memory_bytes: 268435456
//	    settings:
//	      particles: 1024
//	  good: ...
//	  acceptable: ...
//	  minimum: ...
type tierFile struct {
	Tiers struct {
		Minimum    tierEntry `yaml:"minimum"`
		Acceptable tierEntry `yaml:"acceptable"`
		Good       tierEntry `yaml:"good"`
		Optimal    tierEntry `yaml:"optimal"`
	} `yaml:"tiers"`
}

type tierEntry struct {
	TargetFrameTimeMs   float64        `yaml:"target_frame_time_ms"`
	WarnFrameTimeMs     float64        `yaml:"warn_frame_time_ms"`
	CriticalFrameTimeMs float64        `yaml:"critical_frame_time_ms"`
	MaxMemoryBytes      uint64         `yaml:"max_memory_bytes"`
	Settings            map[string]any `yaml:"settings"`
}

func (e tierEntry) spec() TierSpec {
	return TierSpec{
		Thresholds: Thresholds{
			TargetFrameTimeMs:   e.TargetFrameTimeMs,
			WarnFrameTimeMs:     e.WarnFrameTimeMs,
			CriticalFrameTimeMs: e.CriticalFrameTimeMs,
			MaxMemoryBytes:      e.MaxMemoryBytes,
		},
		Settings: RenderSettings(e.Settings),
	}
}

// LoadTierTable parses a YAML tier table from r and validates it. All four
// tiers must be present. The returned table is meant to be passed to
// WithTierTable once at boot; the governor never re-reads configuration.
func LoadTierTable(r io.Reader) (TierTable, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return TierTable{}, fmt.Errorf("governor: read tier table: %w", err)
	}
	var f tierFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return TierTable{}, fmt.Errorf("governor: parse tier table: %w", err)
	}

	tt := TierTable{
		TierMinimum:    f.Tiers.Minimum.spec(),
		TierAcceptable: f.Tiers.Acceptable.spec(),
		TierGood:       f.Tiers.Good.spec(),
		TierOptimal:    f.Tiers.Optimal.spec(),
	}
	if err := tt.Validate(); err != nil {
		return TierTable{}, err
	}
	return tt, nil
}

// LoadTierTableFile is LoadTierTable for a file path.
func LoadTierTableFile(path string) (TierTable, error) {
	f, err := os.Open(path)
	if err != nil {
		return TierTable{}, fmt.Errorf("governor: open tier table: %w", err)
	}
	defer f.Close()
	return LoadTierTable(f)
}
