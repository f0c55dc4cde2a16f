// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

// Package websocket streams enriched packets to browser clients.
//
// The fan-out service drains one hub subscription, encodes each packet
// once and pushes the prepared frame into every client's bounded send
// buffer. A client that cannot keep up loses its own oldest frames; it
// never slows the subscription or the other clients.
//
// Clients only send pings; every other inbound message is ignored.
package websocket
