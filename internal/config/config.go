// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package config

import (
	"time"
)

// Config holds all application configuration.
//
// Loading order (koanf v2):
//  1. Defaults: built-in values for every setting
//  2. Config file: optional YAML file (config.yaml)
//  3. Environment variables: override any setting
type Config struct {
	Server    ServerConfig    `koanf:"server"`
	Ingest    IngestConfig    `koanf:"ingest"`
	Hub       HubConfig       `koanf:"hub"`
	Archive   ArchiveConfig   `koanf:"archive"`
	Reorder   ReorderConfig   `koanf:"reorder"`
	WebSocket WebSocketConfig `koanf:"websocket"`
	API       APIConfig       `koanf:"api"`
	Logging   LoggingConfig   `koanf:"logging"`
}

// ServerConfig holds the listen addresses for both transports.
type ServerConfig struct {
	// Host is the bind address shared by the UDP and HTTP listeners.
	Host string `koanf:"host" validate:"required"`

	// UDPPort receives telemetry datagrams.
	UDPPort int `koanf:"udp_port" validate:"min=1,max=65535"`

	// HTTPPort serves the REST API, WebSocket endpoint and metrics.
	HTTPPort int `koanf:"http_port" validate:"min=1,max=65535"`

	// ReadTimeout bounds reading an HTTP request. There is no server
	// write timeout; the WebSocket endpoint manages its own deadlines
	// after the hijack and the REST responses are small.
	ReadTimeout time.Duration `koanf:"read_timeout" validate:"min=0"`

	// ShutdownTimeout bounds graceful shutdown of the HTTP server.
	ShutdownTimeout time.Duration `koanf:"shutdown_timeout" validate:"min=0"`
}

// IngestConfig tunes the UDP receive path.
type IngestConfig struct {
	// QueueSize is the bounded queue between the UDP reader and the
	// decode pipeline. When full, the oldest datagram is dropped.
	QueueSize int `koanf:"queue_size" validate:"min=1"`

	// MaxDatagramSize is the receive buffer per datagram. Larger
	// datagrams are truncated by the kernel.
	MaxDatagramSize int `koanf:"max_datagram_size" validate:"min=512"`

	// ReadBufferBytes requests a kernel socket receive buffer size.
	// Zero keeps the system default.
	ReadBufferBytes int `koanf:"read_buffer_bytes" validate:"min=0"`
}

// HubConfig tunes the broadcast hub.
type HubConfig struct {
	// SubscriberBuffer is the per-subscriber bounded buffer capacity.
	SubscriberBuffer int `koanf:"subscriber_buffer" validate:"min=1"`
}

// ArchiveConfig tunes the archive writer.
type ArchiveConfig struct {
	// Dir is the archive root directory. The legacy
	// TELEMETRY_ARCHIVE_DIR environment variable overrides it.
	Dir string `koanf:"dir" validate:"required"`

	// PrintEndTimeout is the sender idle window after which an active
	// print expires.
	PrintEndTimeout time.Duration `koanf:"print_end_timeout" validate:"min=1s"`

	// SyncEveryWrite forces an fsync after every appended record.
	SyncEveryWrite bool `koanf:"sync_every_write"`
}

// ReorderConfig tunes the device-time reorder window used by inspection
// taps.
type ReorderConfig struct {
	// WindowSize is the number of packets held back before their
	// metrics are released in device-time order.
	WindowSize int `koanf:"window_size" validate:"min=1"`
}

// WebSocketConfig tunes the live fan-out endpoint.
type WebSocketConfig struct {
	// SendBuffer is the per-client outbound message buffer. A client
	// that cannot keep up loses its own oldest messages.
	SendBuffer int `koanf:"send_buffer" validate:"min=1"`

	// WriteTimeout bounds a single frame write to a client.
	WriteTimeout time.Duration `koanf:"write_timeout" validate:"min=1s"`

	// PingInterval is how often the server pings idle clients. It must
	// be shorter than PongTimeout for the liveness check to work.
	PingInterval time.Duration `koanf:"ping_interval" validate:"min=1s"`

	// PongTimeout is how long the server waits for a pong before
	// dropping the client.
	PongTimeout time.Duration `koanf:"pong_timeout" validate:"min=1s"`
}

// APIConfig tunes the REST surface.
type APIConfig struct {
	// RateLimitReqs is the per-IP request budget per RateLimitWindow.
	// Zero disables rate limiting.
	RateLimitReqs   int           `koanf:"rate_limit_reqs" validate:"min=0"`
	RateLimitWindow time.Duration `koanf:"rate_limit_window" validate:"min=0"`

	// CORSOrigins lists allowed origins for browser clients.
	CORSOrigins []string `koanf:"cors_origins"`
}

// LoggingConfig controls log output.
type LoggingConfig struct {
	// Level is one of trace, debug, info, warn, error.
	Level string `koanf:"level" validate:"oneof=trace debug info warn error"`

	// Format is json or console.
	Format string `koanf:"format" validate:"oneof=json console"`

	// Caller adds file:line to every event.
	Caller bool `koanf:"caller"`
}
