// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

// Package inspect provides the metric-level inspection surface: a tap
// that serializes a packet stream into device-time order through a
// reorder window, and a bounded registry that resolves emitted metrics
// back to the packet they arrived in.
package inspect
