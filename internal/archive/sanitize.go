// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package archive

import (
	"regexp"
	"strings"
)

var (
	whitespaceRun = regexp.MustCompile(`\s+`)
	unsafeChar    = regexp.MustCompile(`[^A-Za-z0-9 _.\-]`)
)

// SanitizeFilename maps a printer-reported filename onto a safe on-disk
// name: whitespace runs collapse to a single underscore and every
// character outside [A-Za-z0-9 _.-] becomes an underscore. The result
// never contains a path separator.
func SanitizeFilename(name string) string {
	s := strings.TrimSpace(name)
	s = whitespaceRun.ReplaceAllString(s, "_")
	s = unsafeChar.ReplaceAllString(s, "_")
	return strings.Trim(s, "_")
}
