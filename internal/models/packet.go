// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package models

import (
	"fmt"
	"time"
)

// MetricKind classifies a parsed metric line.
type MetricKind string

const (
	KindNumeric    MetricKind = "numeric"
	KindError      MetricKind = "error"
	KindStructured MetricKind = "structured"
	KindUnknown    MetricKind = "unknown"
)

// Prelude is the optional header of a packet carrying the message id, the
// base device time in microseconds, and a firmware version. Any field may
// be absent; absence is represented by a nil pointer so the wire encoding
// can omit it.
type Prelude struct {
	MsgID      *uint64 `json:"msg,omitempty"`
	BaseTimeUS *uint64 `json:"tm,omitempty"`
	Version    *uint32 `json:"v,omitempty"`
}

// Metric is one parsed line within a packet. Kind selects which of the
// payload fields is populated: Value for numeric, ErrMsg for error,
// Fields for structured, Raw for unknown.
type Metric struct {
	Name          string     `json:"name"`
	Kind          MetricKind `json:"kind"`
	OffsetMS      *int64     `json:"offset_ms,omitempty"`
	DeviceTimeUS  *int64     `json:"device_time_us,omitempty"`
	DeviceTimeStr string     `json:"device_time_str,omitempty"`
	Value         *Scalar    `json:"value,omitempty"`
	ErrMsg        string     `json:"error,omitempty"`
	Fields        Fields     `json:"fields,omitempty"`
	Raw           string     `json:"raw,omitempty"`
}

// Packet is one UDP datagram's worth of telemetry, post-decode.
// RawText and DecodeErr are diagnostics and never serialized; an errored
// packet (DecodeErr != "") always has empty Metrics and is filtered out
// before the reorder window and the archive writer.
type Packet struct {
	Sender       string   `json:"sender"`
	ReceivedAtMS int64    `json:"received_at"`
	Prelude      Prelude  `json:"prelude"`
	WallTimeStr  string   `json:"wall_time_str,omitempty"`
	Metrics      []Metric `json:"metrics"`
	DisplayLines []string `json:"display_lines,omitempty"`

	RawText   string `json:"-"`
	DecodeErr string `json:"-"`
}

// PacketID identifies a packet for provenance across the hub: metrics
// emitted by the reorder window carry one so they can be interpreted in
// isolation, and the inspector registry keys on it.
type PacketID struct {
	MsgID        uint64 `json:"msg"`
	Sender       string `json:"sender"`
	ReceivedAtMS int64  `json:"received_at"`
}

// String renders the id as `msg/sender/received_at_ms`.
func (id PacketID) String() string {
	return fmt.Sprintf("%d/%s/%d", id.MsgID, id.Sender, id.ReceivedAtMS)
}

// ID derives the packet's provenance key. MsgID is zero when the prelude
// carried none.
func (p *Packet) ID() PacketID {
	var msgID uint64
	if p.Prelude.MsgID != nil {
		msgID = *p.Prelude.MsgID
	}
	return PacketID{MsgID: msgID, Sender: p.Sender, ReceivedAtMS: p.ReceivedAtMS}
}

// ReceivedAt reconstructs the wall-clock receive instant.
func (p *Packet) ReceivedAt() time.Time {
	return time.UnixMilli(p.ReceivedAtMS)
}

// Errored reports whether the packet failed to decode.
func (p *Packet) Errored() bool {
	return p.DecodeErr != ""
}

// DeviceTime computes a metric's absolute device time in microseconds
// from the packet's prelude base time and the metric offset. Both parts
// must be present; otherwise ok is false.
func DeviceTime(base *uint64, offsetMS *int64) (int64, bool) {
	if base == nil || offsetMS == nil {
		return 0, false
	}
	return int64(*base) + *offsetMS*1000, true
}

// U64 returns a pointer to v, for building optional prelude fields.
func U64(v uint64) *uint64 { return &v }

// U32 returns a pointer to v.
func U32(v uint32) *uint32 { return &v }

// I64 returns a pointer to v, for optional offsets and device times.
func I64(v int64) *int64 { return &v }
