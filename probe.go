package governor

import (
	"context"
	"fmt"
	"time"
)

// Capabilities is the raw answer from a HardwareCapabilityQuery before it
// is interpreted into a DeviceProfile.
type Capabilities struct {
	// AdapterName is the GPU name as reported by the platform, if any.
	AdapterName string

	// DiscreteGPU and IntegratedGPU report the adapter type. Both false
	// means a software or virtual adapter.
	DiscreteGPU   bool
	IntegratedGPU bool

	// ComputeShaders reports whether compute-class pipelines are usable.
	ComputeShaders bool

	// Battery reports whether the device is battery powered. Queries that
	// cannot tell should leave it false.
	Battery bool
}

// HardwareCapabilityQuery answers the probe's one capability question.
// The default platform implementation lives in the wgpuquery subpackage;
// tests substitute a deterministic fake.
//
// QueryCapabilities may block, return an error, or panic: the probe bounds
// it with a timeout and converts every failure mode into the most
// conservative profile.
type HardwareCapabilityQuery interface {
	QueryCapabilities() (Capabilities, error)
}

// Probe performs one-shot device capability detection. It is constructed by
// the Governor and runs exactly once per session, before any other
// component starts.
type Probe struct {
	query   HardwareCapabilityQuery
	timeout time.Duration
}

// NewProbe creates a probe around the given query. A zero timeout falls
// back to the default (5s).
func NewProbe(query HardwareCapabilityQuery, timeout time.Duration) *Probe {
	if timeout <= 0 {
		timeout = defaultProbeTimeout
	}
	return &Probe{query: query, timeout: timeout}
}

// Detect runs capability detection and classifies the result.
//
// Detect never fails: on a nil query, a query error, a panic inside the
// query, a timeout, or context cancellation it returns the conservative
// profile (lowEnd, none, minimum tier) instead of propagating an error.
// The query keeps running in its goroutine after a timeout; its eventual
// result is discarded.
func (p *Probe) Detect(ctx context.Context) DeviceProfile {
	if p.query == nil {
		return conservativeProfile()
	}

	type answer struct {
		caps Capabilities
		err  error
	}
	ch := make(chan answer, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				ch <- answer{err: fmt.Errorf("governor: capability query panic: %v", r)}
			}
		}()
		caps, err := p.query.QueryCapabilities()
		ch <- answer{caps: caps, err: err}
	}()

	timer := time.NewTimer(p.timeout)
	defer timer.Stop()

	select {
	case a := <-ch:
		if a.err != nil {
			Logger().Warn("capability detection failed, assuming low-end device", "err", a.err)
			return conservativeProfile()
		}
		return classify(a.caps)
	case <-timer.C:
		Logger().Warn("capability detection timed out, assuming low-end device", "timeout", p.timeout)
		return conservativeProfile()
	case <-ctx.Done():
		Logger().Warn("capability detection canceled, assuming low-end device", "err", ctx.Err())
		return conservativeProfile()
	}
}

// classify maps raw capabilities onto a DeviceProfile.
func classify(caps Capabilities) DeviceProfile {
	var api APIGeneration
	switch {
	case caps.ComputeShaders:
		api = APIAdvanced
	case caps.DiscreteGPU || caps.IntegratedGPU:
		api = APIBasic
	default:
		api = APINone
	}

	var class DeviceClass
	switch {
	case caps.Battery:
		class = DeviceMobile
	case caps.DiscreteGPU:
		class = DeviceDesktop
	case caps.IntegratedGPU:
		class = DeviceDesktop
	default:
		class = DeviceLowEnd
	}

	profile := DeviceProfile{
		Class:           class,
		API:             api,
		AdapterName:     caps.AdapterName,
		RecommendedTier: RecommendTier(class, api),
	}
	Logger().Info("device capability detected",
		"adapter", profile.AdapterName,
		"class", profile.Class,
		"api", profile.API,
		"tier", profile.RecommendedTier)
	return profile
}
