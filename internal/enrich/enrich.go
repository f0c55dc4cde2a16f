// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

// Package enrich applies the pure per-packet transform between decode and
// fan-out: metric sorting, time formatting, and display line rendering.
// Given the same input packet (including its receive time) the output is
// bit-identical, which the archive round-trip relies on.
package enrich

import (
	"fmt"
	"sort"

	"github.com/tomtom215/telegraphus/internal/models"
)

// displayNameWidth is the column the metric name is padded to in display
// lines.
const displayNameWidth = 20

// noDeviceTime is the placeholder rendered when a metric has no
// reconstructable device time.
const noDeviceTime = "--:--.---"

// Apply enriches a decoded packet in place and returns it. The three
// stages run in order: sort, format times, build display lines. Errored
// packets pass through untouched.
func Apply(pkt *models.Packet) *models.Packet {
	if pkt.Errored() {
		return pkt
	}
	sortMetrics(pkt.Metrics)
	formatTimes(pkt)
	buildDisplayLines(pkt)
	return pkt
}

// sortMetrics orders metrics by device time ascending, stable. Metrics
// without a device time sort after all timed ones, keeping their arrival
// order.
func sortMetrics(ms []models.Metric) {
	sort.SliceStable(ms, func(i, j int) bool {
		a, b := ms[i].DeviceTimeUS, ms[j].DeviceTimeUS
		switch {
		case a == nil:
			return false
		case b == nil:
			return true
		default:
			return *a < *b
		}
	})
}

// formatTimes fills the packet's wall time string and each metric's
// device time string.
func formatTimes(pkt *models.Packet) {
	pkt.WallTimeStr = pkt.ReceivedAt().Format("15:04:05.000")
	for i := range pkt.Metrics {
		if us := pkt.Metrics[i].DeviceTimeUS; us != nil {
			pkt.Metrics[i].DeviceTimeStr = FormatDeviceTime(*us)
		}
	}
}

// FormatDeviceTime renders an absolute device time in microseconds as
// `MM:SS.mmm`. Minutes widen past two digits rather than wrap.
func FormatDeviceTime(us int64) string {
	neg := us < 0
	if neg {
		us = -us
	}
	ms := us / 1000
	out := fmt.Sprintf("%02d:%02d.%03d", ms/60000, (ms%60000)/1000, ms%1000)
	if neg {
		return "-" + out
	}
	return out
}

// buildDisplayLines renders one human-readable line per metric:
// `[<wall> | <dev>] <name> = <value>`.
func buildDisplayLines(pkt *models.Packet) {
	if len(pkt.Metrics) == 0 {
		pkt.DisplayLines = nil
		return
	}
	lines := make([]string, 0, len(pkt.Metrics))
	for i := range pkt.Metrics {
		m := &pkt.Metrics[i]
		dev := m.DeviceTimeStr
		if dev == "" {
			dev = noDeviceTime
		}
		lines = append(lines, fmt.Sprintf("[%s | %s] %-*s = %s",
			pkt.WallTimeStr, dev, displayNameWidth, m.Name, renderValue(m)))
	}
	pkt.DisplayLines = lines
}

// renderValue formats the kind-specific payload of a metric.
func renderValue(m *models.Metric) string {
	switch m.Kind {
	case models.KindNumeric:
		if m.Value == nil {
			return ""
		}
		return m.Value.String()
	case models.KindError:
		return "ERROR: " + m.ErrMsg
	case models.KindStructured:
		return m.Fields.String()
	default:
		return m.Raw
	}
}
