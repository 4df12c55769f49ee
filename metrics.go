package governor

import (
	"github.com/prometheus/client_golang/prometheus"
)

// collector exposes governor telemetry as a prometheus.Collector. All
// metrics are read from component snapshots at scrape time; collecting
// never blocks the frame path beyond the snapshot mutexes.
type collector struct {
	g *Governor

	tier        *prometheus.Desc
	transitions *prometheus.Desc
	frames      *prometheus.Desc
	windows     *prometheus.Desc
	avgFrame    *prometheus.Desc
	resBytes    *prometheus.Desc
	resRecords  *prometheus.Desc
	sweptTotal  *prometheus.Desc
	failures    *prometheus.Desc
	emergency   *prometheus.Desc
}

// Collector returns a prometheus.Collector over this governor's telemetry,
// for hosts that scrape. Registering it is optional and changes no
// behavior.
func (g *Governor) Collector() prometheus.Collector {
	return &collector{
		g: g,
		tier: prometheus.NewDesc("governor_tier",
			"Current quality tier (0=minimum .. 3=optimal).", nil, nil),
		transitions: prometheus.NewDesc("governor_tier_transitions_total",
			"Total tier transitions since boot.", nil, nil),
		frames: prometheus.NewDesc("governor_frames_total",
			"Total frames sampled.", nil, nil),
		windows: prometheus.NewDesc("governor_evaluation_windows_total",
			"Total evaluation windows completed.", nil, nil),
		avgFrame: prometheus.NewDesc("governor_frame_time_avg_ms",
			"Rolling average frame time in milliseconds.", nil, nil),
		resBytes: prometheus.NewDesc("governor_resource_bytes",
			"Live tracked GPU resource bytes.", nil, nil),
		resRecords: prometheus.NewDesc("governor_resource_records",
			"Live tracked GPU resource records.", nil, nil),
		sweptTotal: prometheus.NewDesc("governor_resources_swept_total",
			"Total stale resources force-released by the sweeper.", nil, nil),
		failures: prometheus.NewDesc("governor_failures_total",
			"Total failures recorded, by kind.", []string{"kind"}, nil),
		emergency: prometheus.NewDesc("governor_emergency_state",
			"Emergency state (0=normal, 1=degraded, 2=disabled).", nil, nil),
	}
}

func (c *collector) Describe(ch chan<- *prometheus.Desc) {
	ch <- c.tier
	ch <- c.transitions
	ch <- c.frames
	ch <- c.windows
	ch <- c.avgFrame
	ch <- c.resBytes
	ch <- c.resRecords
	ch <- c.sweptTotal
	ch <- c.failures
	ch <- c.emergency
}

func (c *collector) Collect(ch chan<- prometheus.Metric) {
	ss := c.g.sampler.Stats()
	ms := c.g.monitor.Stats()
	bs := c.g.breaker.Snapshot()

	ch <- prometheus.MustNewConstMetric(c.tier, prometheus.GaugeValue,
		float64(c.g.controller.Current()))
	ch <- prometheus.MustNewConstMetric(c.transitions, prometheus.CounterValue,
		float64(c.g.controller.Transitions()))
	ch <- prometheus.MustNewConstMetric(c.frames, prometheus.CounterValue,
		float64(ss.Frames))
	ch <- prometheus.MustNewConstMetric(c.windows, prometheus.CounterValue,
		float64(ss.Windows))
	ch <- prometheus.MustNewConstMetric(c.avgFrame, prometheus.GaugeValue,
		ss.AvgFrameTimeMs)
	ch <- prometheus.MustNewConstMetric(c.resBytes, prometheus.GaugeValue,
		float64(ms.TotalBytes))
	ch <- prometheus.MustNewConstMetric(c.resRecords, prometheus.GaugeValue,
		float64(ms.LiveRecords))
	ch <- prometheus.MustNewConstMetric(c.sweptTotal, prometheus.CounterValue,
		float64(ms.SweptTotal))
	ch <- prometheus.MustNewConstMetric(c.emergency, prometheus.GaugeValue,
		float64(bs.State))

	for _, kind := range []FailureKind{FailureInit, FailureRuntime, FailureContextLost, FailurePerformance} {
		ch <- prometheus.MustNewConstMetric(c.failures, prometheus.CounterValue,
			float64(bs.TotalByKind[kind]), kind.String())
	}
}
