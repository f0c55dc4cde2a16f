// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

// Package main is the telegraphus server entry point.
//
// Telegraphus receives printer telemetry datagrams over UDP, decodes
// and enriches them, fans them out to live WebSocket clients and
// archives them into per-print record files.
//
// Usage:
//
//	telegraphus serve [udp-port] [http-port]
//
// Both ports are optional and default to 8514 (UDP) and 8080 (HTTP).
// All other settings come from config.yaml and TELEGRAPHUS_* environment
// variables; the legacy TELEMETRY_ARCHIVE_DIR variable still selects
// the archive directory.
//
// The process exits non-zero when either listener cannot bind. SIGINT
// and SIGTERM trigger graceful shutdown: queued datagrams are decoded,
// buffered records are written and the reorder windows are flushed
// before the process stops.
package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"os/signal"
	"strconv"
	"syscall"

	"github.com/tomtom215/telegraphus/internal/api"
	"github.com/tomtom215/telegraphus/internal/archive"
	"github.com/tomtom215/telegraphus/internal/config"
	"github.com/tomtom215/telegraphus/internal/hub"
	"github.com/tomtom215/telegraphus/internal/ingest"
	"github.com/tomtom215/telegraphus/internal/inspect"
	"github.com/tomtom215/telegraphus/internal/logging"
	"github.com/tomtom215/telegraphus/internal/reorder"
	"github.com/tomtom215/telegraphus/internal/supervisor"
	"github.com/tomtom215/telegraphus/internal/websocket"
)

func main() {
	os.Exit(run(os.Args[1:]))
}

func run(args []string) int {
	cfg, err := config.Load()
	if err != nil {
		logging.Err(err).Msg("failed to load configuration")
		return 1
	}
	if err := applyCLIArgs(cfg, args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		fmt.Fprintln(os.Stderr, "usage: telegraphus serve [udp-port] [http-port]")
		return 2
	}

	logging.Init(logging.Config{
		Level:  cfg.Logging.Level,
		Format: cfg.Logging.Format,
		Caller: cfg.Logging.Caller,
	})
	logging.Info().
		Int("udp_port", cfg.Server.UDPPort).
		Int("http_port", cfg.Server.HTTPPort).
		Str("archive_dir", cfg.Archive.Dir).
		Msg("starting telegraphus")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	tree := supervisor.NewTree(logging.NewSlogLogger(), supervisor.TreeConfig{
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	})

	// Ingest: UDP listener feeding the decode pipeline through a
	// bounded queue.
	h := hub.New()
	listener := ingest.NewListener(ingest.ListenerConfig{
		Addr:            net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.UDPPort)),
		MaxDatagramSize: cfg.Ingest.MaxDatagramSize,
		ReadBufferBytes: cfg.Ingest.ReadBufferBytes,
		QueueSize:       cfg.Ingest.QueueSize,
	})
	tree.AddIngestService(listener)
	tree.AddIngestService(ingest.NewPipeline(listener.Queue(), h))

	// Delivery: archive writer, WebSocket fan-out and the inspection
	// tap, each on its own hub subscription.
	writer := archive.NewWriter(archive.WriterConfig{
		Root:            cfg.Archive.Dir,
		PrintEndTimeout: cfg.Archive.PrintEndTimeout,
		SyncEveryWrite:  cfg.Archive.SyncEveryWrite,
	})
	tree.AddDeliveryService(&archive.Service{
		Writer: writer,
		Sub:    h.Subscribe("archive", cfg.Hub.SubscriberBuffer),
	})

	fanout := websocket.NewFanout(websocket.FanoutConfig{
		SendBuffer: cfg.WebSocket.SendBuffer,
		Timing: websocket.Timing{
			WriteWait:  cfg.WebSocket.WriteTimeout,
			PongWait:   cfg.WebSocket.PongTimeout,
			PingPeriod: cfg.WebSocket.PingInterval,
		},
	}, h.Subscribe("websocket", cfg.Hub.SubscriberBuffer))
	tree.AddDeliveryService(fanout)

	registry := inspect.NewRegistry(0)
	tap := inspect.NewTap(
		h.Subscribe("inspect", cfg.Hub.SubscriberBuffer),
		reorder.NewWindow(cfg.Reorder.WindowSize),
		registry, 0)
	tree.AddDeliveryService(tap)
	tree.AddDeliveryService(inspect.NewTracer(tap))

	// API: archive reader plus the live endpoints.
	handler := api.NewHandler(archive.NewReader(cfg.Archive.Dir), h)
	router := api.NewRouter(handler, api.MiddlewareConfig{
		CORSAllowedOrigins: cfg.API.CORSOrigins,
		RateLimitRequests:  cfg.API.RateLimitReqs,
		RateLimitWindow:    cfg.API.RateLimitWindow,
	}, fanout)
	tree.AddAPIService(api.NewServer(api.ServerConfig{
		Addr:            net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.HTTPPort)),
		ReadTimeout:     cfg.Server.ReadTimeout,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
	}, router.Setup()))

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		sig := <-sigCh
		logging.Info().Str("signal", sig.String()).Msg("received shutdown signal")
		cancel()
	}()

	errCh := tree.ServeBackground(ctx)

	exit := 0
	for err := range errCh {
		if err != nil && !errors.Is(err, context.Canceled) {
			logging.Err(err).Msg("supervisor tree failed")
			exit = 1
		}
	}
	h.Close()

	unstopped, _ := tree.UnstoppedServiceReport()
	for _, svc := range unstopped {
		logging.Warn().Str("service", svc.Name).Msg("service failed to stop in time")
	}

	logging.Info().Msg("telegraphus stopped")
	return exit
}

// applyCLIArgs overlays the serve subcommand's positional ports onto
// the loaded configuration.
func applyCLIArgs(cfg *config.Config, args []string) error {
	if len(args) == 0 {
		return nil
	}
	if args[0] != "serve" {
		return fmt.Errorf("unknown command %q", args[0])
	}
	ports := args[1:]
	if len(ports) > 2 {
		return fmt.Errorf("too many arguments")
	}
	if len(ports) >= 1 {
		p, err := parsePort(ports[0])
		if err != nil {
			return fmt.Errorf("invalid udp port %q: %w", ports[0], err)
		}
		cfg.Server.UDPPort = p
	}
	if len(ports) == 2 {
		p, err := parsePort(ports[1])
		if err != nil {
			return fmt.Errorf("invalid http port %q: %w", ports[1], err)
		}
		cfg.Server.HTTPPort = p
	}
	if cfg.Server.UDPPort == cfg.Server.HTTPPort {
		return fmt.Errorf("udp and http ports must differ (both %d)", cfg.Server.UDPPort)
	}
	return nil
}

func parsePort(s string) (int, error) {
	p, err := strconv.Atoi(s)
	if err != nil {
		return 0, err
	}
	if p < 1 || p > 65535 {
		return 0, fmt.Errorf("out of range")
	}
	return p, nil
}
