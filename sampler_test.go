package governor

import (
	"testing"
)

// testThresholds is a convenient tier spec for sampler tests:
// warn at 20ms, critical at 33ms.
func testThresholds() Thresholds {
	return Thresholds{
		TargetFrameTimeMs:   16.7,
		WarnFrameTimeMs:     20,
		CriticalFrameTimeMs: 33,
		MaxMemoryBytes:      8_000_000,
	}
}

func TestClassifyFrameTime(t *testing.T) {
	th := testThresholds()
	tests := []struct {
		avgMs float64
		want  SignalLevel
	}{
		{0, SignalOK},
		{16.7, SignalOK},
		{19.9, SignalOK},
		{20, SignalWarn},
		{32.9, SignalWarn},
		{33, SignalCritical},
		{100, SignalCritical},
	}
	for _, tt := range tests {
		if got := classifyFrameTime(tt.avgMs, th); got != tt.want {
			t.Errorf("classifyFrameTime(%v) = %v, want %v", tt.avgMs, got, tt.want)
		}
	}
}

func TestSamplerEvaluatesOnWindowBoundary(t *testing.T) {
	s := NewSampler(60, 3, newFakeClock())
	th := testThresholds()

	if sig := s.Tick(10, th); sig.Evaluated {
		t.Error("frame 1 should not close a window")
	}
	if sig := s.Tick(10, th); sig.Evaluated {
		t.Error("frame 2 should not close a window")
	}
	sig := s.Tick(10, th)
	if !sig.Evaluated {
		t.Fatal("frame 3 should close a window")
	}
	if sig.Level != SignalOK {
		t.Errorf("level = %v, want ok", sig.Level)
	}
	if sig.AvgFrameTimeMs != 10 {
		t.Errorf("avg = %v, want 10", sig.AvgFrameTimeMs)
	}
	if sig.Window != 1 {
		t.Errorf("window = %d, want 1", sig.Window)
	}
}

func TestSamplerRollingAverageEvictsOldest(t *testing.T) {
	s := NewSampler(4, 4, newFakeClock())
	th := testThresholds()

	// Fill the ring with 10ms frames, then overwrite with 30ms frames.
	for i := 0; i < 4; i++ {
		s.Tick(10, th)
	}
	var sig PerfSignal
	for i := 0; i < 4; i++ {
		sig = s.Tick(30, th)
	}
	if sig.AvgFrameTimeMs != 30 {
		t.Errorf("avg = %v, want 30 (old samples must be evicted)", sig.AvgFrameTimeMs)
	}
}

func TestSamplerClassifiesCriticalAverage(t *testing.T) {
	s := NewSampler(60, 2, newFakeClock())
	sig := PerfSignal{}
	for i := 0; i < 2; i++ {
		sig = s.Tick(40, testThresholds())
	}
	if !sig.Evaluated || sig.Level != SignalCritical {
		t.Errorf("got %+v, want evaluated critical", sig)
	}
}

func TestSamplerClearDiscardsHistory(t *testing.T) {
	s := NewSampler(60, 4, newFakeClock())
	th := testThresholds()
	for i := 0; i < 3; i++ {
		s.Tick(100, th)
	}
	s.Clear()

	// After Clear the next window must be judged only on fresh samples.
	var sig PerfSignal
	for i := 0; i < 4; i++ {
		sig = s.Tick(10, th)
	}
	if !sig.Evaluated {
		t.Fatal("expected a full fresh window after Clear")
	}
	if sig.Level != SignalOK {
		t.Errorf("level = %v, want ok (pre-clear samples leaked in)", sig.Level)
	}
	if sig.AvgFrameTimeMs != 10 {
		t.Errorf("avg = %v, want 10", sig.AvgFrameTimeMs)
	}
}

func TestSamplerPausedIgnoresTicks(t *testing.T) {
	s := NewSampler(60, 2, newFakeClock())
	th := testThresholds()

	s.setPaused(true)
	for i := 0; i < 5; i++ {
		if sig := s.Tick(40, th); sig.Evaluated {
			t.Fatal("paused sampler must not evaluate windows")
		}
	}
	if got := s.Stats().Frames; got != 0 {
		t.Errorf("frames = %d, want 0 while paused", got)
	}

	s.setPaused(false)
	s.Tick(10, th)
	if got := s.Stats().Frames; got != 1 {
		t.Errorf("frames = %d, want 1 after resume", got)
	}
}

func TestSamplerClampsNegativeInput(t *testing.T) {
	s := NewSampler(60, 1, newFakeClock())
	sig := s.Tick(-5, testThresholds())
	if sig.AvgFrameTimeMs != 0 {
		t.Errorf("avg = %v, want 0 for clamped negative input", sig.AvgFrameTimeMs)
	}
}
