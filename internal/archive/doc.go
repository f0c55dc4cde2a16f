// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

// Package archive persists enriched packets into per-print, append-only
// record files and serves them back for offline scrubbing.
//
// The writer side maintains one ActivePrint per sender: a sticky print
// filename that subsequent filename-less packets inherit until the
// sender has been silent for longer than the configured print-end
// timeout. Records are single JSON lines under
// <root>/<YYYY-MM-DD>/<sanitized>.records; the reader tolerates a
// truncated trailing line, so a crash mid-append loses at most one
// record.
//
// Readers open files independently of the writer and never coordinate
// with it.
package archive
