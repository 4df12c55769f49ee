// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

package wgpuquery

import (
	"fmt"

	"github.com/gogpu/gpucontext"

	"github.com/gogpu/governor"
)

// ProviderQuery answers the capability question from a live
// gpucontext.DeviceProvider instead of creating a throwaway instance.
// Hosts that already own a GPU device (a gogpu window) use this to avoid a
// second instance during probing; a working provider is direct evidence of
// an advanced-generation API.
type ProviderQuery struct {
	provider gpucontext.DeviceProvider
}

// FromProvider wraps an existing device provider as a capability query.
func FromProvider(p gpucontext.DeviceProvider) *ProviderQuery {
	return &ProviderQuery{provider: p}
}

var _ governor.HardwareCapabilityQuery = (*ProviderQuery)(nil)

// QueryCapabilities reports capabilities derived from the provider. The
// adapter type cannot be recovered from a gpucontext handle, so the device
// is reported as integrated; the sampler corrects any optimism within the
// first few evaluation windows.
func (q *ProviderQuery) QueryCapabilities() (governor.Capabilities, error) {
	if q.provider == nil || q.provider.Device() == nil {
		return governor.Capabilities{}, fmt.Errorf("wgpuquery: nil device provider")
	}
	return governor.Capabilities{
		IntegratedGPU:  true,
		ComputeShaders: true,
	}, nil
}
