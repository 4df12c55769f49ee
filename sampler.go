package governor

import (
	"sync"
	"time"
)

// SignalLevel classifies a measurement against the current tier's
// thresholds. Levels are ordered by severity so callers can combine a
// performance and a memory signal with max().
type SignalLevel int

const (
	// SignalOK means the measurement is below the warn threshold.
	SignalOK SignalLevel = iota

	// SignalWarn means the measurement is between warn and critical.
	SignalWarn

	// SignalCritical means the measurement is at or past critical.
	SignalCritical
)

// String returns the signal level name.
func (l SignalLevel) String() string {
	switch l {
	case SignalOK:
		return "ok"
	case SignalWarn:
		return "warn"
	case SignalCritical:
		return "critical"
	default:
		return "unknown"
	}
}

// maxLevel returns the more severe of two levels.
func maxLevel(a, b SignalLevel) SignalLevel {
	if a > b {
		return a
	}
	return b
}

// PerfSignal is the sampler's answer to one Tick. Evaluated is true only
// on window boundaries (every K frames); between boundaries Level carries
// the previous window's classification and AvgFrameTimeMs the running
// average so far.
type PerfSignal struct {
	Level          SignalLevel
	AvgFrameTimeMs float64
	Evaluated      bool
	Window         uint64
}

// sample is one frame-time observation.
type sample struct {
	frameTimeMs float64
	at          time.Time
}

// Sampler collects per-frame timings in a bounded ring buffer and
// classifies the rolling average against tier thresholds every evaluation
// window. It is push-driven: the host pipeline calls Tick once per
// rendered frame, the sampler never polls.
type Sampler struct {
	mu sync.Mutex

	ring  []sample
	head  int // next write position
	count int // live samples, <= len(ring)

	evalEvery int // frames per evaluation window
	sinceEval int
	window    uint64
	lastLevel SignalLevel
	paused    bool
	frames    uint64
	clock     Clock
}

// NewSampler creates a sampler holding up to capacity samples and
// evaluating every evalEvery frames. Non-positive arguments fall back to
// the defaults (60 and 60).
func NewSampler(capacity, evalEvery int, clock Clock) *Sampler {
	if capacity <= 0 {
		capacity = defaultSampleCapacity
	}
	if evalEvery <= 0 {
		evalEvery = defaultEvalEvery
	}
	if clock == nil {
		clock = systemClock{}
	}
	return &Sampler{
		ring:      make([]sample, capacity),
		evalEvery: evalEvery,
		clock:     clock,
	}
}

// Tick records one frame time and classifies the rolling average against
// th on window boundaries. It never fails; while paused (after context
// loss) it ignores the sample and reports the last known state.
func (s *Sampler) Tick(frameTimeMs float64, th Thresholds) PerfSignal {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.paused {
		return PerfSignal{Level: s.lastLevel, Window: s.window}
	}

	// Negative or NaN-ish input from a misbehaving host clamps to zero
	// rather than poisoning the average.
	if !(frameTimeMs >= 0) {
		frameTimeMs = 0
	}

	s.ring[s.head] = sample{frameTimeMs: frameTimeMs, at: s.clock.Now()}
	s.head = (s.head + 1) % len(s.ring)
	if s.count < len(s.ring) {
		s.count++
	}
	s.frames++
	s.sinceEval++

	avg := s.averageLocked()
	if s.sinceEval < s.evalEvery {
		return PerfSignal{Level: s.lastLevel, AvgFrameTimeMs: avg, Window: s.window}
	}

	s.sinceEval = 0
	s.window++
	s.lastLevel = classifyFrameTime(avg, th)
	Logger().Debug("performance window evaluated",
		"window", s.window, "avg_ms", avg, "level", s.lastLevel)
	return PerfSignal{
		Level:          s.lastLevel,
		AvgFrameTimeMs: avg,
		Evaluated:      true,
		Window:         s.window,
	}
}

// classifyFrameTime maps an average frame time onto a signal level.
func classifyFrameTime(avgMs float64, th Thresholds) SignalLevel {
	switch {
	case avgMs >= th.CriticalFrameTimeMs:
		return SignalCritical
	case avgMs >= th.WarnFrameTimeMs:
		return SignalWarn
	default:
		return SignalOK
	}
}

// averageLocked returns the rolling average over live samples.
// Caller holds s.mu.
func (s *Sampler) averageLocked() float64 {
	if s.count == 0 {
		return 0
	}
	var sum float64
	for i := 0; i < s.count; i++ {
		sum += s.ring[(s.head-1-i+len(s.ring)*2)%len(s.ring)].frameTimeMs
	}
	return sum / float64(s.count)
}

// Clear discards all history and window progress. The recovery coordinator
// calls it after a context restore so a fresh context is not judged
// against pre-loss samples.
func (s *Sampler) Clear() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.head = 0
	s.count = 0
	s.sinceEval = 0
	s.lastLevel = SignalOK
}

// setPaused toggles sample intake. Paused ticks are ignored entirely.
func (s *Sampler) setPaused(paused bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = paused
}

// SamplerStats is a cheap copy-out of sampler counters.
type SamplerStats struct {
	Frames         uint64
	Windows        uint64
	LiveSamples    int
	AvgFrameTimeMs float64
	Paused         bool
}

// Stats returns a snapshot of the sampler's counters.
func (s *Sampler) Stats() SamplerStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return SamplerStats{
		Frames:         s.frames,
		Windows:        s.window,
		LiveSamples:    s.count,
		AvgFrameTimeMs: s.averageLocked(),
		Paused:         s.paused,
	}
}
