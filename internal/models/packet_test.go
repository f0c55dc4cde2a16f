// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package models

import (
	"strings"
	"testing"

	"github.com/goccy/go-json"
)

func TestPacketID(t *testing.T) {
	pkt := &Packet{
		Sender:       "printer-1",
		ReceivedAtMS: 1700000000000,
		Prelude:      Prelude{MsgID: U64(42)},
	}

	id := pkt.ID()
	if id.MsgID != 42 || id.Sender != "printer-1" || id.ReceivedAtMS != 1700000000000 {
		t.Errorf("ID = %+v", id)
	}
	if got := id.String(); got != "42/printer-1/1700000000000" {
		t.Errorf("String = %q", got)
	}
}

func TestPacketIDWithoutMsgID(t *testing.T) {
	pkt := &Packet{Sender: "printer-1", ReceivedAtMS: 5}

	if id := pkt.ID(); id.MsgID != 0 {
		t.Errorf("MsgID = %d, want 0", id.MsgID)
	}
}

func TestPacketReceivedAt(t *testing.T) {
	pkt := &Packet{ReceivedAtMS: 1700000000000}

	if got := pkt.ReceivedAt().UnixMilli(); got != 1700000000000 {
		t.Errorf("ReceivedAt = %d", got)
	}
}

func TestPacketErrored(t *testing.T) {
	if (&Packet{}).Errored() {
		t.Error("clean packet reported errored")
	}
	if !(&Packet{DecodeErr: "boom"}).Errored() {
		t.Error("errored packet not reported")
	}
}

func TestDeviceTime(t *testing.T) {
	tests := []struct {
		name   string
		base   *uint64
		offset *int64
		want   int64
		ok     bool
	}{
		{"both present", U64(1000000), I64(10), 1010000, true},
		{"negative offset", U64(1000000), I64(-500), 500000, true},
		{"zero offset", U64(5000), I64(0), 5000, true},
		{"missing base", nil, I64(10), 0, false},
		{"missing offset", U64(1000000), nil, 0, false},
		{"both missing", nil, nil, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := DeviceTime(tt.base, tt.offset)
			if got != tt.want || ok != tt.ok {
				t.Errorf("DeviceTime = %d, %v, want %d, %v", got, ok, tt.want, tt.ok)
			}
		})
	}
}

func TestPacketJSONOmitsDiagnostics(t *testing.T) {
	pkt := &Packet{
		Sender:       "printer-1",
		ReceivedAtMS: 1,
		RawText:      "raw payload",
		DecodeErr:    "boom",
	}

	data, err := json.Marshal(pkt)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	if strings.Contains(s, "raw payload") || strings.Contains(s, "boom") {
		t.Errorf("diagnostics leaked into JSON: %s", s)
	}
}

func TestMetricJSONOmitsAbsentOptionals(t *testing.T) {
	v := IntScalar(25)
	m := Metric{Name: "temp", Kind: KindNumeric, Value: &v}

	data, err := json.Marshal(m)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	s := string(data)
	for _, key := range []string{"offset_ms", "device_time_us", "error", "fields", "raw"} {
		if strings.Contains(s, key) {
			t.Errorf("absent field %q serialized: %s", key, s)
		}
	}
}

func TestPreludeJSONRoundTrip(t *testing.T) {
	p := Prelude{MsgID: U64(42), BaseTimeUS: U64(1000000), Version: U32(3)}

	data, err := json.Marshal(p)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	var got Prelude
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.MsgID == nil || *got.MsgID != 42 ||
		got.BaseTimeUS == nil || *got.BaseTimeUS != 1000000 ||
		got.Version == nil || *got.Version != 3 {
		t.Errorf("round trip = %+v", got)
	}

	// An empty prelude serializes to an empty object.
	data, err = json.Marshal(Prelude{})
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if string(data) != "{}" {
		t.Errorf("empty prelude = %s, want {}", data)
	}
}
