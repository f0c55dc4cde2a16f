// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package models

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/goccy/go-json"
)

// ScalarType discriminates the arms of the Scalar variant.
type ScalarType int

const (
	// ScalarInt holds an int64 (wire form: digits with an `i` suffix).
	ScalarInt ScalarType = iota

	// ScalarFloat holds a float64.
	ScalarFloat

	// ScalarString holds a string (quoted or bare on the wire).
	ScalarString
)

// Scalar is the tagged variant carried by numeric metric values and
// structured metric fields. Exactly one arm is populated; the zero value
// is the integer 0.
type Scalar struct {
	typ ScalarType
	i   int64
	f   float64
	s   string
}

// IntScalar returns a Scalar holding an int64.
func IntScalar(v int64) Scalar { return Scalar{typ: ScalarInt, i: v} }

// FloatScalar returns a Scalar holding a float64.
func FloatScalar(v float64) Scalar { return Scalar{typ: ScalarFloat, f: v} }

// StringScalar returns a Scalar holding a string.
func StringScalar(v string) Scalar { return Scalar{typ: ScalarString, s: v} }

// Type returns the populated arm.
func (s Scalar) Type() ScalarType { return s.typ }

// Int returns the int64 arm. Valid only when Type() == ScalarInt.
func (s Scalar) Int() int64 { return s.i }

// Float returns the float64 arm. Valid only when Type() == ScalarFloat.
func (s Scalar) Float() float64 { return s.f }

// Str returns the string arm. Valid only when Type() == ScalarString.
func (s Scalar) Str() string { return s.s }

// String renders the scalar for display lines: integers in decimal,
// floats with three decimals, strings as-is.
func (s Scalar) String() string {
	switch s.typ {
	case ScalarInt:
		return strconv.FormatInt(s.i, 10)
	case ScalarFloat:
		return strconv.FormatFloat(s.f, 'f', 3, 64)
	default:
		return s.s
	}
}

// Equal reports whether two scalars have the same arm and value.
func (s Scalar) Equal(other Scalar) bool {
	if s.typ != other.typ {
		return false
	}
	switch s.typ {
	case ScalarInt:
		return s.i == other.i
	case ScalarFloat:
		return s.f == other.f
	default:
		return s.s == other.s
	}
}

// MarshalJSON encodes the populated arm directly: integers and floats as
// JSON numbers, strings as JSON strings.
func (s Scalar) MarshalJSON() ([]byte, error) {
	switch s.typ {
	case ScalarInt:
		return []byte(strconv.FormatInt(s.i, 10)), nil
	case ScalarFloat:
		return json.Marshal(s.f)
	default:
		return json.Marshal(s.s)
	}
}

// UnmarshalJSON decodes a JSON number or string back into a Scalar.
// A number without a fractional part or exponent becomes an int64; the
// reader therefore tolerates the permitted int-to-float widening only in
// the direction the encoder can produce.
func (s *Scalar) UnmarshalJSON(data []byte) error {
	trimmed := strings.TrimSpace(string(data))
	if trimmed == "" {
		return fmt.Errorf("scalar: empty JSON value")
	}
	if trimmed[0] == '"' {
		var str string
		if err := json.Unmarshal(data, &str); err != nil {
			return fmt.Errorf("scalar: %w", err)
		}
		*s = StringScalar(str)
		return nil
	}
	if !strings.ContainsAny(trimmed, ".eE") {
		if i, err := strconv.ParseInt(trimmed, 10, 64); err == nil {
			*s = IntScalar(i)
			return nil
		}
	}
	f, err := strconv.ParseFloat(trimmed, 64)
	if err != nil {
		return fmt.Errorf("scalar: %q is neither number nor string", trimmed)
	}
	*s = FloatScalar(f)
	return nil
}

// ScalarFromWire parses the wire scalar grammar used by metric payloads:
// `<digits>i` is an int64, a decimal carrying a `.` or an exponent is a
// float64, anything else (including a bare unsuffixed integer) is a
// string with surrounding double quotes stripped.
func ScalarFromWire(raw string) Scalar {
	if v, ok := parseWireInt(raw); ok {
		return IntScalar(v)
	}
	if strings.ContainsAny(raw, ".eE") {
		if f, err := strconv.ParseFloat(raw, 64); err == nil {
			return FloatScalar(f)
		}
	}
	return StringScalar(StripQuotes(raw))
}

// parseWireInt recognizes the `i`-suffixed integer form, e.g. `25i` or
// `-3i`.
func parseWireInt(raw string) (int64, bool) {
	if len(raw) < 2 || raw[len(raw)-1] != 'i' {
		return 0, false
	}
	v, err := strconv.ParseInt(raw[:len(raw)-1], 10, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

// StripQuotes removes one pair of surrounding double quotes, if present.
func StripQuotes(s string) string {
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		return s[1 : len(s)-1]
	}
	return s
}
