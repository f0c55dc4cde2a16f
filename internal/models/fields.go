// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package models

import (
	"bytes"
	"fmt"

	"github.com/goccy/go-json"
)

// Field is one key/value pair of a structured metric.
type Field struct {
	Key   string
	Value Scalar
}

// Fields is the ordered key-to-scalar mapping carried by structured
// metrics. Order is wire order; a Go map would lose it, so Fields keeps a
// slice and encodes to a JSON object whose keys appear in that order.
type Fields []Field

// Get returns the value for key and whether it was present. First match
// wins when a key repeats.
func (f Fields) Get(key string) (Scalar, bool) {
	for _, fld := range f {
		if fld.Key == key {
			return fld.Value, true
		}
	}
	return Scalar{}, false
}

// String renders the fields for display lines as `k1=v1, k2=v2`.
func (f Fields) String() string {
	var buf bytes.Buffer
	for i, fld := range f {
		if i > 0 {
			buf.WriteString(", ")
		}
		buf.WriteString(fld.Key)
		buf.WriteByte('=')
		buf.WriteString(fld.Value.String())
	}
	return buf.String()
}

// Equal reports whether two field sequences match key-for-key in order.
func (f Fields) Equal(other Fields) bool {
	if len(f) != len(other) {
		return false
	}
	for i := range f {
		if f[i].Key != other[i].Key || !f[i].Value.Equal(other[i].Value) {
			return false
		}
	}
	return true
}

// MarshalJSON encodes the fields as a JSON object, preserving order.
func (f Fields) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, fld := range f {
		if i > 0 {
			buf.WriteByte(',')
		}
		key, err := json.Marshal(fld.Key)
		if err != nil {
			return nil, err
		}
		buf.Write(key)
		buf.WriteByte(':')
		val, err := fld.Value.MarshalJSON()
		if err != nil {
			return nil, err
		}
		buf.Write(val)
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// UnmarshalJSON decodes a JSON object into ordered fields using the
// token stream, since decoding through a map would scramble key order.
func (f *Fields) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("fields: %w", err)
	}
	if delim, ok := tok.(json.Delim); !ok || delim != '{' {
		return fmt.Errorf("fields: expected JSON object, got %v", tok)
	}

	out := Fields{}
	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("fields: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("fields: non-string key %v", keyTok)
		}

		valTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("fields: %w", err)
		}
		val, err := scalarFromToken(valTok)
		if err != nil {
			return fmt.Errorf("fields: key %q: %w", key, err)
		}
		out = append(out, Field{Key: key, Value: val})
	}

	if _, err := dec.Token(); err != nil {
		return fmt.Errorf("fields: %w", err)
	}
	*f = out
	return nil
}

// scalarFromToken converts a decoded JSON token into a Scalar.
func scalarFromToken(tok json.Token) (Scalar, error) {
	switch v := tok.(type) {
	case string:
		return StringScalar(v), nil
	case json.Number:
		raw := v.String()
		var s Scalar
		if err := s.UnmarshalJSON([]byte(raw)); err != nil {
			return Scalar{}, err
		}
		return s, nil
	default:
		return Scalar{}, fmt.Errorf("unsupported field value %v", tok)
	}
}
