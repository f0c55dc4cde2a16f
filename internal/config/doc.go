// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

// Package config loads and validates the application configuration.
//
// Configuration is layered with koanf: built-in defaults first, then an
// optional YAML config file, then environment variables. Environment
// variables use the TELEGRAPHUS_ prefix; the first underscore after the
// prefix separates the section from the key and later underscores stay
// in the key (TELEGRAPHUS_SERVER_HTTP_PORT -> server.http_port). The
// legacy TELEMETRY_ARCHIVE_DIR variable is honored as an alias for
// archive.dir.
//
// Config is immutable after Load and safe for concurrent reads.
package config
