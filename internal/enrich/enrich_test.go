// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package enrich

import (
	"io"
	"strings"
	"testing"

	"github.com/tomtom215/telegraphus/internal/logging"
	"github.com/tomtom215/telegraphus/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func numericMetric(name string, value int64, deviceTimeUS *int64) models.Metric {
	v := models.IntScalar(value)
	return models.Metric{
		Name:         name,
		Kind:         models.KindNumeric,
		DeviceTimeUS: deviceTimeUS,
		Value:        &v,
	}
}

func TestApplySortsByDeviceTime(t *testing.T) {
	pkt := &models.Packet{
		Sender:       "printer-1",
		ReceivedAtMS: 1700000000000,
		Metrics: []models.Metric{
			numericMetric("late", 1, models.I64(3000)),
			numericMetric("early", 2, models.I64(1000)),
			numericMetric("untimed-a", 3, nil),
			numericMetric("mid", 4, models.I64(2000)),
			numericMetric("untimed-b", 5, nil),
		},
	}

	Apply(pkt)

	var names []string
	for _, m := range pkt.Metrics {
		names = append(names, m.Name)
	}
	// Untimed metrics sort last, keeping their arrival order.
	want := "early,mid,late,untimed-a,untimed-b"
	if got := strings.Join(names, ","); got != want {
		t.Errorf("order = %s, want %s", got, want)
	}
}

func TestApplyIsIdempotent(t *testing.T) {
	pkt := &models.Packet{
		Sender:       "printer-1",
		ReceivedAtMS: 1700000000000,
		Metrics: []models.Metric{
			numericMetric("b", 1, models.I64(2000)),
			numericMetric("a", 2, models.I64(1000)),
		},
	}

	Apply(pkt)
	first := append([]string(nil), pkt.DisplayLines...)
	Apply(pkt)

	if len(first) != len(pkt.DisplayLines) {
		t.Fatalf("line count changed: %d -> %d", len(first), len(pkt.DisplayLines))
	}
	for i := range first {
		if first[i] != pkt.DisplayLines[i] {
			t.Errorf("line %d changed:\n  %s\n  %s", i, first[i], pkt.DisplayLines[i])
		}
	}
}

func TestApplySkipsErroredPackets(t *testing.T) {
	pkt := &models.Packet{
		Sender:    "printer-1",
		DecodeErr: "payload is not valid UTF-8",
	}

	Apply(pkt)

	if pkt.WallTimeStr != "" || pkt.DisplayLines != nil {
		t.Errorf("errored packet was enriched: %+v", pkt)
	}
}

func TestFormatDeviceTime(t *testing.T) {
	tests := []struct {
		us   int64
		want string
	}{
		{0, "00:00.000"},
		{1000, "00:00.001"},
		{1500000, "00:01.500"},
		{61000000, "01:01.000"},
		{-2500000, "-00:02.500"},
		// Minutes widen past two digits instead of wrapping.
		{6000000000, "100:00.000"},
	}

	for _, tt := range tests {
		if got := FormatDeviceTime(tt.us); got != tt.want {
			t.Errorf("FormatDeviceTime(%d) = %q, want %q", tt.us, got, tt.want)
		}
	}
}

func TestDisplayLines(t *testing.T) {
	errMetric := models.Metric{Name: "hotend", Kind: models.KindError, ErrMsg: "thermal runaway"}
	structured := models.Metric{
		Name: "pos",
		Kind: models.KindStructured,
		Fields: models.Fields{
			{Key: "x", Value: models.FloatScalar(1.5)},
			{Key: "y", Value: models.IntScalar(2)},
		},
		DeviceTimeUS: models.I64(1000000),
	}
	pkt := &models.Packet{
		Sender:       "printer-1",
		ReceivedAtMS: 1700000000000,
		Metrics: []models.Metric{
			numericMetric("temp", 25, models.I64(500000)),
			structured,
			errMetric,
		},
	}

	Apply(pkt)

	if len(pkt.DisplayLines) != 3 {
		t.Fatalf("len(DisplayLines) = %d, want 3", len(pkt.DisplayLines))
	}
	if !strings.Contains(pkt.DisplayLines[0], "temp") ||
		!strings.HasSuffix(pkt.DisplayLines[0], "= 25") {
		t.Errorf("numeric line = %q", pkt.DisplayLines[0])
	}
	if !strings.Contains(pkt.DisplayLines[1], "x=1.500, y=2") {
		t.Errorf("structured line = %q", pkt.DisplayLines[1])
	}
	if !strings.Contains(pkt.DisplayLines[2], "ERROR: thermal runaway") {
		t.Errorf("error line = %q", pkt.DisplayLines[2])
	}
	// A metric without a device time renders the placeholder.
	if !strings.Contains(pkt.DisplayLines[2], "--:--.---") {
		t.Errorf("untimed line = %q, want placeholder", pkt.DisplayLines[2])
	}
	if pkt.WallTimeStr == "" {
		t.Error("WallTimeStr not set")
	}
}
