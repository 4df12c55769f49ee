package governor

import (
	"fmt"
	"testing"
	"time"
)

func alloc(id string, size uint64) Allocation {
	return Allocation{ID: id, Kind: ResourceBuffer, SizeBytes: size}
}

func TestMonitorTotalsMatchLedger(t *testing.T) {
	m := NewMonitor(1<<30, newFakeClock())

	m.RecordAllocation(alloc("a", 100))
	m.RecordAllocation(alloc("b", 200))
	m.RecordAllocation(alloc("c", 300))
	if got := m.CurrentUsage(); got != 600 {
		t.Errorf("usage = %d, want 600", got)
	}

	if !m.RecordRelease("b") {
		t.Error("release of live id should report true")
	}
	if got := m.CurrentUsage(); got != 400 {
		t.Errorf("usage = %d, want 400", got)
	}

	// Releasing an unknown or already-released id must not corrupt totals.
	if m.RecordRelease("b") {
		t.Error("double release should report false")
	}
	if m.RecordRelease("nope") {
		t.Error("unknown release should report false")
	}
	if got := m.CurrentUsage(); got != 400 {
		t.Errorf("usage = %d after bogus releases, want 400", got)
	}
}

func TestMonitorReRecordingLiveIDReplaces(t *testing.T) {
	m := NewMonitor(1<<30, newFakeClock())
	m.RecordAllocation(alloc("a", 100))
	m.RecordAllocation(alloc("a", 250))
	if got := m.CurrentUsage(); got != 250 {
		t.Errorf("usage = %d, want 250 (re-record must replace)", got)
	}
}

// Ten 1 MB allocations against an 8 MB ceiling: the critical signal must
// appear exactly when usage reaches the ceiling, on the 8th allocation.
func TestMonitorCriticalExactlyAtCeiling(t *testing.T) {
	m := NewMonitor(8_000_000, newFakeClock())

	firstCritical := 0
	for i := 1; i <= 10; i++ {
		sig := m.RecordAllocation(alloc(fmt.Sprintf("r%d", i), 1_000_000))
		if sig.Level == SignalCritical && firstCritical == 0 {
			firstCritical = i
			if !sig.Changed {
				t.Error("first critical signal should report Changed")
			}
		}
	}
	if firstCritical != 8 {
		t.Errorf("first critical at allocation %d, want 8", firstCritical)
	}
}

func TestMonitorWarnAtSeventyPercent(t *testing.T) {
	m := NewMonitor(1000, newFakeClock())

	sig := m.RecordAllocation(alloc("a", 699))
	if sig.Level != SignalOK {
		t.Errorf("level = %v below 70%%, want ok", sig.Level)
	}
	sig = m.RecordAllocation(alloc("b", 1))
	if sig.Level != SignalWarn || !sig.Changed {
		t.Errorf("got %+v at 70%%, want changed warn", sig)
	}
}

// Leak bound: N allocations with no releases must be fully reclaimed by a
// sweep once they exceed the maximum age.
func TestMonitorSweepStaleReclaimsEverything(t *testing.T) {
	clk := newFakeClock()
	m := NewMonitor(1<<30, clk)

	const n = 5
	for i := 0; i < n; i++ {
		m.RecordAllocation(alloc(fmt.Sprintf("leak%d", i), 1000))
	}

	// Nothing is stale yet.
	if got := m.SweepStale(time.Minute); got != 0 {
		t.Errorf("premature sweep released %d, want 0", got)
	}

	clk.Advance(time.Minute)
	if got := m.SweepStale(time.Minute); got != n {
		t.Errorf("sweep released %d, want %d", got, n)
	}
	if got := m.CurrentUsage(); got != 0 {
		t.Errorf("usage = %d after sweep, want 0", got)
	}
}

func TestMonitorSweepSparesFreshRecords(t *testing.T) {
	clk := newFakeClock()
	m := NewMonitor(1<<30, clk)

	m.RecordAllocation(alloc("old", 100))
	clk.Advance(2 * time.Minute)
	m.RecordAllocation(alloc("fresh", 50))

	if got := m.SweepStale(time.Minute); got != 1 {
		t.Errorf("sweep released %d, want 1", got)
	}
	if got := m.CurrentUsage(); got != 50 {
		t.Errorf("usage = %d, want 50 (fresh record kept)", got)
	}
}

func TestMonitorSetCeilingReclassifies(t *testing.T) {
	m := NewMonitor(1000, newFakeClock())
	m.RecordAllocation(alloc("a", 500))

	// Dropping the ceiling below current usage flips straight to critical.
	sig := m.SetCeiling(400)
	if sig.Level != SignalCritical || !sig.Changed {
		t.Errorf("got %+v after ceiling drop, want changed critical", sig)
	}

	sig = m.SetCeiling(10_000)
	if sig.Level != SignalOK || !sig.Changed {
		t.Errorf("got %+v after ceiling raise, want changed ok", sig)
	}
}
