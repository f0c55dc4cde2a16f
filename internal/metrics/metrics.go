// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

// Package metrics provides Prometheus instrumentation for the telemetry
// pipeline: datagram intake, decode outcomes, hub fan-out, archive
// writes, and WebSocket connections. Everything is registered on the
// default registry and exposed via /metrics.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Ingest

	DatagramsReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_datagrams_received_total",
			Help: "Total number of UDP datagrams read from the socket",
		},
	)

	DatagramsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_datagrams_dropped_total",
			Help: "Datagrams dropped from the inbound queue under overload",
		},
	)

	InboundQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "telemetry_inbound_queue_depth",
			Help: "Current number of datagrams waiting for decode",
		},
	)

	PacketsDecoded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_packets_decoded_total",
			Help: "Packets successfully decoded and enriched",
		},
	)

	DecodeErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_decode_errors_total",
			Help: "Datagrams that failed to decode",
		},
	)

	MetricsParsed = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_metrics_parsed_total",
			Help: "Individual metric lines parsed out of packets",
		},
	)

	// Hub

	HubPublishes = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_hub_publishes_total",
			Help: "Packets published to the broadcast hub",
		},
	)

	HubSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "telemetry_hub_subscribers",
			Help: "Current number of live hub subscriptions",
		},
	)

	SubscriberDrops = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_subscriber_drops_total",
			Help: "Packets dropped from a full subscriber buffer (oldest first)",
		},
		[]string{"subscriber"},
	)

	// Archive

	ArchiveWrites = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_archive_writes_total",
			Help: "Records appended to archive files",
		},
	)

	ArchiveWriteErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_archive_write_errors_total",
			Help: "Failed archive append attempts",
		},
	)

	ArchiveBytesWritten = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_archive_bytes_written_total",
			Help: "Bytes appended to archive files",
		},
	)

	ActivePrints = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "telemetry_active_prints",
			Help: "Senders with a currently active print",
		},
	)

	// Transport

	WebSocketClients = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "telemetry_websocket_clients",
			Help: "Currently connected WebSocket clients",
		},
	)

	WebSocketSendErrors = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "telemetry_websocket_send_errors_total",
			Help: "WebSocket send failures (each closes its connection)",
		},
	)

	APIRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "telemetry_api_requests_total",
			Help: "Total number of API requests",
		},
		[]string{"method", "endpoint", "status_code"},
	)

	APIRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "telemetry_api_request_duration_seconds",
			Help:    "API request duration in seconds",
			Buckets: []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5},
		},
		[]string{"method", "endpoint"},
	)
)
