// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

// Package decoder turns raw datagram payloads into structured Packets.
//
// The wire format is newline-delimited UTF-8 text. The first line may
// carry a prelude (`msg=<u64>,tm=<u64>,v=<u32>`); every following
// non-blank line is one metric: a name, a payload, and a trailing offset
// in milliseconds relative to the prelude's base time. The offset may be
// negative when the metric was sampled before the packet was assembled.
//
// Decode never panics outward: any failure produces a Packet whose
// DecodeErr is set and whose metric list is empty, with the raw payload
// preserved for diagnostics.
package decoder

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tomtom215/telegraphus/internal/metrics"
	"github.com/tomtom215/telegraphus/internal/models"
)

var (
	// A bare `v=<n>` first line is indistinguishable from a numeric metric
	// payload, so prelude detection keys on msg= or tm= only.
	preludeDetectRe = regexp.MustCompile(`(?:^|\s)(?:msg|tm)=\d+`)
	preludeMsgRe    = regexp.MustCompile(`(?:^|\s|,)msg=(\d+)`)
	preludeTmRe     = regexp.MustCompile(`(?:^|\s|,)\s*tm=(\d+)`)
	preludeVerRe    = regexp.MustCompile(`(?:^|\s|,)\s*v=(\d+)`)
	errorPayloadRe  = regexp.MustCompile(`error="([^"]*)"`)
)

// Decode parses one datagram payload received from sender at the given
// instant. It always returns a packet; decode failures are reported
// through the packet's DecodeErr field, never as a Go error or panic.
func Decode(payload []byte, sender string, receivedAt time.Time) (pkt *models.Packet) {
	pkt = &models.Packet{
		Sender:       sender,
		ReceivedAtMS: receivedAt.UnixMilli(),
		RawText:      string(payload),
	}

	// A malformed line must never take the listener down with it.
	defer func() {
		if r := recover(); r != nil {
			pkt.Metrics = nil
			pkt.DecodeErr = fmt.Sprintf("decode panic: %v", r)
			metrics.DecodeErrors.Inc()
		}
	}()

	if !utf8.Valid(payload) {
		pkt.DecodeErr = "payload is not valid UTF-8"
		metrics.DecodeErrors.Inc()
		return pkt
	}

	text := strings.ReplaceAll(pkt.RawText, "\r\n", "\n")
	lines := strings.Split(text, "\n")

	rest := lines
	if len(lines) > 0 && preludeDetectRe.MatchString(lines[0]) {
		pkt.Prelude = parsePrelude(lines[0])
		rest = lines[1:]
	}

	for _, line := range rest {
		line = strings.TrimSpace(line)
		if line == "" {
			continue
		}
		pkt.Metrics = append(pkt.Metrics, parseMetricLine(line, pkt.Prelude.BaseTimeUS))
	}

	return pkt
}

// parsePrelude extracts whichever of the msg/tm/v fields are present.
// Each field fills only its own slot; a partial prelude is valid.
func parsePrelude(line string) models.Prelude {
	var p models.Prelude
	if m := preludeMsgRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseUint(m[1], 10, 64); err == nil {
			p.MsgID = models.U64(v)
		}
	}
	if m := preludeTmRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseUint(m[1], 10, 64); err == nil {
			p.BaseTimeUS = models.U64(v)
		}
	}
	if m := preludeVerRe.FindStringSubmatch(line); m != nil {
		if v, err := strconv.ParseUint(m[1], 10, 32); err == nil {
			p.Version = models.U32(uint32(v))
		}
	}
	return p
}

// parseMetricLine tokenizes one metric line and classifies it by its
// second token. The last token is always the millisecond offset; a line
// whose offset does not parse becomes an unknown metric carrying the raw
// text and no timestamp.
func parseMetricLine(line string, baseTimeUS *uint64) models.Metric {
	tokens := strings.Fields(line)
	name := tokens[0]

	if len(tokens) < 3 {
		return unknownMetric(name, line)
	}

	offset, err := strconv.ParseInt(tokens[len(tokens)-1], 10, 64)
	if err != nil {
		return unknownMetric(name, line)
	}

	m := models.Metric{Name: name, OffsetMS: models.I64(offset)}
	if us, ok := models.DeviceTime(baseTimeUS, m.OffsetMS); ok {
		m.DeviceTimeUS = models.I64(us)
	}

	payload := tokens[1 : len(tokens)-1]
	switch {
	case strings.HasPrefix(payload[0], "v="):
		m.Kind = models.KindNumeric
		val := models.ScalarFromWire(strings.TrimPrefix(payload[0], "v="))
		m.Value = &val

	case strings.HasPrefix(payload[0], "error="):
		m.Kind = models.KindError
		if match := errorPayloadRe.FindStringSubmatch(strings.Join(payload, " ")); match != nil {
			m.ErrMsg = match[1]
		}

	default:
		// Structured payloads may contain quoted strings with embedded
		// whitespace, so the middle tokens are rejoined before parsing.
		m.Kind = models.KindStructured
		fields := parseStructured(strings.Join(payload, " "))
		if len(fields) == 0 {
			return unknownMetric(name, line)
		}
		m.Fields = fields
	}

	return m
}

// unknownMetric wraps an unparseable line. It carries no timestamp.
func unknownMetric(name, line string) models.Metric {
	return models.Metric{Name: name, Kind: models.KindUnknown, Raw: line}
}

// parseStructured parses `k=v[,k=v...]` where values follow the scalar
// grammar and quoted values may contain commas and spaces.
func parseStructured(payload string) models.Fields {
	var fields models.Fields
	for _, pair := range splitOutsideQuotes(payload, ',') {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		eq := strings.IndexByte(pair, '=')
		if eq <= 0 {
			continue
		}
		key := strings.TrimSpace(pair[:eq])
		val := strings.TrimSpace(pair[eq+1:])
		fields = append(fields, models.Field{Key: key, Value: models.ScalarFromWire(val)})
	}
	return fields
}

// splitOutsideQuotes splits s on sep, ignoring separators inside
// double-quoted runs.
func splitOutsideQuotes(s string, sep byte) []string {
	var (
		parts   []string
		start   int
		inQuote bool
	)
	for i := 0; i < len(s); i++ {
		switch {
		case s[i] == '"':
			inQuote = !inQuote
		case s[i] == sep && !inQuote:
			parts = append(parts, s[start:i])
			start = i + 1
		}
	}
	parts = append(parts, s[start:])
	return parts
}
