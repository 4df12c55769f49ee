// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

//go:build !nogpu

package wgpuquery

import (
	"fmt"

	"github.com/gogpu/gputypes"
	"github.com/gogpu/wgpu/hal"

	// Import Vulkan backend so it registers via init().
	_ "github.com/gogpu/wgpu/hal/vulkan"

	"github.com/gogpu/governor"
)

// Query implements governor.HardwareCapabilityQuery by enumerating wgpu/hal
// adapters. The probe bounds it with a timeout and handles every failure
// mode, so Query can simply report errors when no usable adapter exists.
type Query struct{}

// New creates the default platform capability query.
func New() *Query { return &Query{} }

var _ governor.HardwareCapabilityQuery = (*Query)(nil)

// QueryCapabilities creates a throwaway instance, enumerates adapters, and
// reports the best one found. Discrete GPUs win over integrated, which win
// over software adapters. The instance is destroyed before returning; the
// probe must not hold GPU state.
func (q *Query) QueryCapabilities() (governor.Capabilities, error) {
	backend, ok := hal.GetBackend(gputypes.BackendVulkan)
	if !ok {
		return governor.Capabilities{}, fmt.Errorf("wgpuquery: vulkan backend not available")
	}
	instance, err := backend.CreateInstance(&hal.InstanceDescriptor{Flags: 0})
	if err != nil {
		return governor.Capabilities{}, fmt.Errorf("wgpuquery: create instance: %w", err)
	}
	defer instance.Destroy()

	adapters := instance.EnumerateAdapters(nil)
	if len(adapters) == 0 {
		return governor.Capabilities{}, fmt.Errorf("wgpuquery: no GPU adapters found")
	}

	selected := &adapters[0]
	for i := range adapters {
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeDiscreteGPU {
			selected = &adapters[i]
			break
		}
		if adapters[i].Info.DeviceType == gputypes.DeviceTypeIntegratedGPU {
			selected = &adapters[i]
		}
	}

	caps := governor.Capabilities{
		AdapterName:   selected.Info.Name,
		DiscreteGPU:   selected.Info.DeviceType == gputypes.DeviceTypeDiscreteGPU,
		IntegratedGPU: selected.Info.DeviceType == gputypes.DeviceTypeIntegratedGPU,
		// A Vulkan-class adapter implies compute pipelines.
		ComputeShaders: selected.Info.DeviceType == gputypes.DeviceTypeDiscreteGPU ||
			selected.Info.DeviceType == gputypes.DeviceTypeIntegratedGPU,
	}
	governor.Logger().Debug("wgpuquery: adapter selected",
		"name", caps.AdapterName, "discrete", caps.DiscreteGPU)
	return caps, nil
}
