// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

// Package logging provides centralized zerolog-based logging for Telegraphus.
//
// All components log through the global logger configured here. The package
// offers:
//
//   - Zero-allocation structured logging via zerolog
//   - JSON output for production, console output for development
//   - A slog.Handler adapter so slog-consuming libraries (sutureslog)
//     write into the same sink
//
// # Quick Start
//
//	logging.Init(logging.Config{Level: "info", Format: "json"})
//	logging.Info().Str("component", "ingest").Msg("listener started")
//
// Always terminate log chains with .Msg() or .Send(); a dangling event is
// never emitted.
package logging
