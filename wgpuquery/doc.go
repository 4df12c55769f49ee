// Copyright 2026 The gogpu Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package wgpuquery provides the default hardware capability query for
// governor, backed by wgpu/hal adapter enumeration.
//
// Hosts pass it to the governor at construction:
//
//	g := governor.New(hooks, governor.WithQuery(wgpuquery.New()))
//
// If GPU probing is undesirable (headless CI, servers), build with the
// nogpu tag or simply omit the query; the governor then assumes the most
// conservative device profile.
package wgpuquery
