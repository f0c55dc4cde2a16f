// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package archive

import "testing"

func TestSanitizeFilename(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"plain", "cube.gcode", "cube.gcode"},
		{"kept characters", "Big-Cube_v2.gcode", "Big-Cube_v2.gcode"},
		{"surrounding whitespace", "  cube.gcode  ", "cube.gcode"},
		{"inner whitespace run", "big\t \ncube.gcode", "big_cube.gcode"},
		{"path separators", "../../etc/passwd", ".._.._etc_passwd"},
		{"unicode", "würfel.gcode", "w_rfel.gcode"},
		{"shell metacharacters", "a;rm -rf$.gcode", "a_rm_-rf_.gcode"},
		{"only unsafe characters", "???", ""},
		{"empty", "", ""},
		{"trimmed underscores", "__cube__", "cube"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := SanitizeFilename(tt.in); got != tt.want {
				t.Errorf("SanitizeFilename(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}
