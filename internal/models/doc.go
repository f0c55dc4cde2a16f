// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

// Package models defines the core telemetry data types shared by every
// pipeline stage: Packet (one datagram post-decode), Metric (one parsed
// line), the Scalar tagged variant, and PacketID provenance keys.
//
// A Packet is created by the decoder, enriched exactly once, and is
// immutable from the moment it enters the broadcast hub. The JSON encoding
// produced here is the single wire format: it is what WebSocket clients
// receive and what archive records store, so it must round-trip.
package models
