// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

// Package ingest receives telemetry datagrams over UDP and feeds them
// through the decode pipeline into the hub.
//
// The listener and the pipeline are separate suture services joined by
// a bounded queue. The listener never blocks on a slow pipeline: when
// the queue is full the oldest datagram is dropped and counted, the
// same policy the hub applies to slow subscribers. One datagram is one
// packet; datagrams are never merged or split.
package ingest
