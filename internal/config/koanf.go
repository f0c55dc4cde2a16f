// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/tomtom215/telegraphus/internal/archive"
	"github.com/tomtom215/telegraphus/internal/hub"
	"github.com/tomtom215/telegraphus/internal/reorder"
)

// DefaultConfigPaths lists where config files are searched, in order.
// The first file found wins.
var DefaultConfigPaths = []string{
	"config.yaml",
	"config.yml",
	"/etc/telegraphus/config.yaml",
	"/etc/telegraphus/config.yml",
}

// ConfigPathEnvVar overrides the config file search path.
const ConfigPathEnvVar = "CONFIG_PATH"

// EnvPrefix is the prefix for all telegraphus environment variables.
const EnvPrefix = "TELEGRAPHUS_"

// LegacyArchiveDirEnvVar is the pre-rename archive directory variable,
// still honored for existing deployments.
const LegacyArchiveDirEnvVar = "TELEMETRY_ARCHIVE_DIR"

// Default listen ports. The CLI may override both.
const (
	DefaultUDPPort  = 8514
	DefaultHTTPPort = 8080
)

// defaultConfig returns a Config with every setting at its built-in
// default. Defaults load first and are overridden by file and env.
func defaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:            "0.0.0.0",
			UDPPort:         DefaultUDPPort,
			HTTPPort:        DefaultHTTPPort,
			ReadTimeout:     15 * time.Second,
			ShutdownTimeout: 10 * time.Second,
		},
		Ingest: IngestConfig{
			QueueSize:       1000,
			MaxDatagramSize: 64 * 1024,
			ReadBufferBytes: 0,
		},
		Hub: HubConfig{
			SubscriberBuffer: hub.DefaultSubscriberBuffer,
		},
		Archive: ArchiveConfig{
			Dir:             "/data/archive",
			PrintEndTimeout: archive.DefaultPrintEndTimeout,
			SyncEveryWrite:  false,
		},
		Reorder: ReorderConfig{
			WindowSize: reorder.DefaultWindowSize,
		},
		WebSocket: WebSocketConfig{
			SendBuffer:   256,
			WriteTimeout: 10 * time.Second,
			PingInterval: 30 * time.Second,
			PongTimeout:  60 * time.Second,
		},
		API: APIConfig{
			RateLimitReqs:   100,
			RateLimitWindow: time.Minute,
			CORSOrigins:     []string{"*"},
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
			Caller: false,
		},
	}
}

// Load builds the configuration from defaults, an optional YAML file
// and environment variables, then validates it.
func Load() (*Config, error) {
	k := koanf.New(".")

	if err := k.Load(structs.Provider(defaultConfig(), "koanf"), nil); err != nil {
		return nil, fmt.Errorf("loading defaults: %w", err)
	}

	if path := findConfigFile(); path != "" {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("loading config file %s: %w", path, err)
		}
	}

	envProvider := env.Provider(EnvPrefix, ".", envTransformFunc)
	if err := k.Load(envProvider, nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	// The legacy variable carries no prefix, so the provider above
	// never sees it.
	if dir := os.Getenv(LegacyArchiveDirEnvVar); dir != "" {
		if err := k.Set("archive.dir", dir); err != nil {
			return nil, fmt.Errorf("applying %s: %w", LegacyArchiveDirEnvVar, err)
		}
	}

	if err := processSliceFields(k); err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling configuration: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return cfg, nil
}

// Validate checks every field against its struct tags plus the
// cross-field constraints the tags cannot express.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("invalid %s: failed %q constraint", fe.Namespace(), fe.Tag())
		}
		return err
	}
	if c.Server.UDPPort == c.Server.HTTPPort {
		return fmt.Errorf("udp_port and http_port must differ (both %d)", c.Server.UDPPort)
	}
	if c.WebSocket.PingInterval >= c.WebSocket.PongTimeout {
		return fmt.Errorf("websocket ping_interval (%s) must be shorter than pong_timeout (%s)",
			c.WebSocket.PingInterval, c.WebSocket.PongTimeout)
	}
	return nil
}

// findConfigFile returns the first existing config file, or empty.
func findConfigFile() string {
	if envPath := os.Getenv(ConfigPathEnvVar); envPath != "" {
		if _, err := os.Stat(envPath); err == nil {
			return envPath
		}
	}
	for _, path := range DefaultConfigPaths {
		if _, err := os.Stat(path); err == nil {
			return path
		}
	}
	return ""
}

// sliceConfigPaths lists config paths parsed as comma-separated slices
// when they arrive as env strings.
var sliceConfigPaths = []string{
	"api.cors_origins",
}

// processSliceFields converts comma-separated env strings into slices
// for the known slice fields. YAML-sourced slices pass through.
func processSliceFields(k *koanf.Koanf) error {
	for _, path := range sliceConfigPaths {
		val := k.Get(path)
		strVal, ok := val.(string)
		if !ok || strVal == "" {
			continue
		}
		parts := strings.Split(strVal, ",")
		trimmed := make([]string, 0, len(parts))
		for _, p := range parts {
			if p = strings.TrimSpace(p); p != "" {
				trimmed = append(trimmed, p)
			}
		}
		if len(trimmed) > 0 {
			if err := k.Set(path, trimmed); err != nil {
				return fmt.Errorf("setting %s: %w", path, err)
			}
		}
	}
	return nil
}

// envTransformFunc maps environment variable names to koanf paths.
//
// Examples:
//   - TELEGRAPHUS_SERVER_UDP_PORT -> server.udp_port
//   - TELEGRAPHUS_ARCHIVE_PRINT_END_TIMEOUT -> archive.print_end_timeout
//   - TELEGRAPHUS_LOGGING_LEVEL -> logging.level
//
// Only the first underscore separates the section from the key; keys
// themselves keep their underscores.
func envTransformFunc(key string) string {
	key = strings.ToLower(strings.TrimPrefix(key, EnvPrefix))
	section, rest, found := strings.Cut(key, "_")
	if !found {
		return key
	}
	return section + "." + rest
}
