package governor

import "time"

// Defaults for every tunable. The escalation logic is load-bearing; these
// numbers are not, and hosts override them per deployment.
const (
	defaultSampleCapacity     = 60
	defaultEvalEvery          = 60
	defaultDwellWindows       = 5
	defaultWarnWindows        = 2
	defaultUpgradeWindows     = 10
	defaultHistoryLimit       = 32
	defaultProbeTimeout       = 5 * time.Second
	defaultFailureWindow      = 5 * time.Minute
	defaultRuntimeErrorWindow = time.Minute
	defaultContextLostLimit   = 3
	defaultRuntimeErrorLimit  = 10
	defaultPerformanceLimit   = 30
	defaultSweepInterval      = 30 * time.Second
	defaultStaleResourceAge   = 2 * time.Minute
)

// config holds resolved governor configuration. Populated once in New and
// read-only afterwards.
type config struct {
	table          TierTable
	sampleCapacity int
	evalEvery      int
	dwellWindows   int
	warnWindows    int
	upgradeWindows int
	historyLimit   int

	probeTimeout  time.Duration
	failureWindow time.Duration
	runtimeWindow time.Duration
	lostLimit     int
	runtimeLimit  int
	perfLimit     int

	sweepInterval time.Duration
	staleAge      time.Duration
	sweeper       bool

	query HardwareCapabilityQuery
	store SessionStore
	clock Clock
}

func defaultConfig() config {
	return config{
		table:          DefaultTierTable(),
		sampleCapacity: defaultSampleCapacity,
		evalEvery:      defaultEvalEvery,
		dwellWindows:   defaultDwellWindows,
		warnWindows:    defaultWarnWindows,
		upgradeWindows: defaultUpgradeWindows,
		historyLimit:   defaultHistoryLimit,
		probeTimeout:   defaultProbeTimeout,
		failureWindow:  defaultFailureWindow,
		runtimeWindow:  defaultRuntimeErrorWindow,
		lostLimit:      defaultContextLostLimit,
		runtimeLimit:   defaultRuntimeErrorLimit,
		perfLimit:      defaultPerformanceLimit,
		sweepInterval:  defaultSweepInterval,
		staleAge:       defaultStaleResourceAge,
		sweeper:        true,
		store:          NewMemorySessionStore(),
		clock:          systemClock{},
	}
}

// Option configures a Governor during creation.
//
// Example:
//
//	g := governor.New(hooks,
//	    governor.WithQuery(wgpuquery.New()),
//	    governor.WithDwellWindows(8),
//	)
type Option func(*config)

// WithTierTable replaces the built-in tier configuration. The table is
// validated in New; an invalid table falls back to the default.
func WithTierTable(tt TierTable) Option {
	return func(c *config) { c.table = tt }
}

// WithQuery injects the hardware capability query used by the probe.
// Without it the probe reports the most conservative profile, so hosts
// that want anything above the minimum tier must provide one (see the
// wgpuquery subpackage for the platform default).
func WithQuery(q HardwareCapabilityQuery) Option {
	return func(c *config) { c.query = q }
}

// WithSessionStore injects the session-scoped store for the disabled flag.
// Defaults to an in-memory store.
func WithSessionStore(s SessionStore) Option {
	return func(c *config) { c.store = s }
}

// WithClock injects a clock, for deterministic tests.
func WithClock(clk Clock) Option {
	return func(c *config) { c.clock = clk }
}

// WithProbeTimeout bounds capability detection.
func WithProbeTimeout(d time.Duration) Option {
	return func(c *config) {
		if d > 0 {
			c.probeTimeout = d
		}
	}
}

// WithSampleWindow sets the ring-buffer capacity and the number of frames
// per evaluation window.
func WithSampleWindow(capacity, evalEvery int) Option {
	return func(c *config) {
		if capacity > 0 {
			c.sampleCapacity = capacity
		}
		if evalEvery > 0 {
			c.evalEvery = evalEvery
		}
	}
}

// WithDwellWindows sets the minimum number of evaluation windows between
// an upgrade and the previous transition of any kind.
func WithDwellWindows(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.dwellWindows = n
		}
	}
}

// WithStreaks sets how many consecutive warn windows force a downgrade and
// how many consecutive on-target windows are needed before an upgrade.
func WithStreaks(warnWindows, upgradeWindows int) Option {
	return func(c *config) {
		if warnWindows > 0 {
			c.warnWindows = warnWindows
		}
		if upgradeWindows > 0 {
			c.upgradeWindows = upgradeWindows
		}
	}
}

// WithFailureWindow sets the breaker's sliding window and the tighter
// runtime-error rate window.
func WithFailureWindow(window, runtimeWindow time.Duration) Option {
	return func(c *config) {
		if window > 0 {
			c.failureWindow = window
		}
		if runtimeWindow > 0 {
			c.runtimeWindow = runtimeWindow
		}
	}
}

// WithFailureLimits sets the escalation thresholds: context losses per
// window to disable, runtime errors per rate window to degrade, and
// critical-performance windows to degrade.
func WithFailureLimits(contextLost, runtimeErrors, performance int) Option {
	return func(c *config) {
		if contextLost > 0 {
			c.lostLimit = contextLost
		}
		if runtimeErrors > 0 {
			c.runtimeLimit = runtimeErrors
		}
		if performance > 0 {
			c.perfLimit = performance
		}
	}
}

// WithSweep configures the background stale-resource sweep.
func WithSweep(interval, maxAge time.Duration) Option {
	return func(c *config) {
		if interval > 0 {
			c.sweepInterval = interval
		}
		if maxAge > 0 {
			c.staleAge = maxAge
		}
	}
}

// WithoutSweeper disables the background sweep timer. The host can still
// call SweepStale through the monitor on its own cadence.
func WithoutSweeper() Option {
	return func(c *config) { c.sweeper = false }
}

// WithHistoryLimit bounds the tier-transition history.
func WithHistoryLimit(n int) Option {
	return func(c *config) {
		if n > 0 {
			c.historyLimit = n
		}
	}
}
