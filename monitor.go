package governor

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// memoryWarnFraction is the share of the tier ceiling at which the monitor
// starts emitting warning signals.
const memoryWarnFraction = 0.7

// ResourceKind labels what a tracked GPU-side allocation is.
type ResourceKind int

const (
	ResourceBuffer ResourceKind = iota
	ResourceTexture
	ResourceOther
)

// String returns the resource kind name.
func (k ResourceKind) String() string {
	switch k {
	case ResourceBuffer:
		return "buffer"
	case ResourceTexture:
		return "texture"
	default:
		return "other"
	}
}

// Allocation describes one live GPU-side resource reported by the host
// pipeline. ID must be unique among live allocations; reusing a live ID
// replaces the previous record in the ledger.
type Allocation struct {
	ID        string
	Kind      ResourceKind
	SizeBytes uint64
	CreatedAt time.Time
}

// MemSignal is the monitor's advisory signal. It is consumed by the tier
// controller and circuit breaker; the monitor itself never escalates.
// Changed is true when the level differs from the previous emission, so
// consumers can act on edges instead of every allocation.
type MemSignal struct {
	Level      SignalLevel
	UsageBytes uint64
	Changed    bool
}

// Monitor tracks GPU-side resource allocations reported by the host
// pipeline and enforces the current tier's memory ceiling advisorily.
//
// Invariant: the running total always equals the sum of live records. Only
// the monitor mutates its own ledger; the controller reads usage through
// CurrentUsage.
type Monitor struct {
	mu      sync.Mutex
	records map[string]Allocation
	total   uint64
	ceiling uint64
	level   SignalLevel
	sweeps  uint64
	swept   uint64
	clock   Clock

	// warnLog throttles repetitive pressure warnings on the frame path.
	warnLog rate.Sometimes
}

// NewMonitor creates a monitor with the given initial memory ceiling.
func NewMonitor(ceiling uint64, clock Clock) *Monitor {
	if clock == nil {
		clock = systemClock{}
	}
	return &Monitor{
		records: make(map[string]Allocation),
		ceiling: ceiling,
		clock:   clock,
		warnLog: rate.Sometimes{Interval: 10 * time.Second},
	}
}

// RecordAllocation adds rec to the ledger and returns the advisory signal
// for the new usage. A zero CreatedAt is filled with the current time.
// Re-recording a live ID replaces the old record (the total stays exact).
func (m *Monitor) RecordAllocation(rec Allocation) MemSignal {
	m.mu.Lock()
	defer m.mu.Unlock()

	if rec.CreatedAt.IsZero() {
		rec.CreatedAt = m.clock.Now()
	}
	if old, ok := m.records[rec.ID]; ok {
		m.total -= old.SizeBytes
	}
	m.records[rec.ID] = rec
	m.total += rec.SizeBytes
	return m.signalLocked()
}

// RecordRelease removes the allocation with the given ID. It reports
// whether the ID was live; releasing an unknown ID is a no-op so a
// double-release in the host cannot corrupt the total.
func (m *Monitor) RecordRelease(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()

	rec, ok := m.records[id]
	if !ok {
		return false
	}
	delete(m.records, id)
	m.total -= rec.SizeBytes
	m.signalLocked()
	return true
}

// CurrentUsage returns the total live bytes.
func (m *Monitor) CurrentUsage() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.total
}

// Signal returns the current advisory signal without mutating the ledger.
// The governor reads it once per evaluation window.
func (m *Monitor) Signal() MemSignal {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MemSignal{Level: m.level, UsageBytes: m.total}
}

// SetCeiling switches the monitor to a new tier's memory ceiling and
// returns the re-evaluated signal. Called by the governor on tier changes.
func (m *Monitor) SetCeiling(bytes uint64) MemSignal {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ceiling = bytes
	return m.signalLocked()
}

// SweepStale force-releases every record older than maxAge and returns the
// number released. It is the safety net against leak bugs in the host
// pipeline and the only place the monitor actively forces cleanup.
func (m *Monitor) SweepStale(maxAge time.Duration) int {
	m.mu.Lock()
	defer m.mu.Unlock()

	cutoff := m.clock.Now().Add(-maxAge)
	released := 0
	for id, rec := range m.records {
		if rec.CreatedAt.Before(cutoff) || rec.CreatedAt.Equal(cutoff) {
			delete(m.records, id)
			m.total -= rec.SizeBytes
			released++
		}
	}
	if released > 0 {
		m.sweeps++
		m.swept += uint64(released)
		Logger().Warn("swept stale GPU resources",
			"released", released, "max_age", maxAge, "usage", m.total)
		m.signalLocked()
	}
	return released
}

// signalLocked re-evaluates the advisory level against the ceiling.
// Caller holds m.mu.
func (m *Monitor) signalLocked() MemSignal {
	level := SignalOK
	if m.ceiling > 0 {
		switch {
		case m.total >= m.ceiling:
			level = SignalCritical
		case float64(m.total) >= float64(m.ceiling)*memoryWarnFraction:
			level = SignalWarn
		}
	}
	changed := level != m.level
	m.level = level
	if changed && level > SignalOK {
		m.warnLog.Do(func() {
			Logger().Warn("GPU memory pressure",
				"level", level, "usage", m.total, "ceiling", m.ceiling)
		})
	}
	return MemSignal{Level: level, UsageBytes: m.total, Changed: changed}
}

// MonitorStats is a cheap copy-out of monitor counters.
type MonitorStats struct {
	LiveRecords int
	TotalBytes  uint64
	Ceiling     uint64
	Sweeps      uint64
	SweptTotal  uint64
}

// Stats returns a snapshot of the monitor's counters.
func (m *Monitor) Stats() MonitorStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	return MonitorStats{
		LiveRecords: len(m.records),
		TotalBytes:  m.total,
		Ceiling:     m.ceiling,
		Sweeps:      m.sweeps,
		SweptTotal:  m.swept,
	}
}
