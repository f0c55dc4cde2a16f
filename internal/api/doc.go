// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

// Package api serves the HTTP surface: archive listing and retrieval,
// the live WebSocket endpoint, health and Prometheus metrics.
//
// Routing uses chi with the production middleware stack (request IDs,
// real IP, panic recovery, CORS, per-IP rate limiting). Handlers return
// JSON encoded with goccy/go-json.
package api
