// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package ingest

import (
	"context"
	"time"

	"golang.org/x/time/rate"

	"github.com/tomtom215/telegraphus/internal/decoder"
	"github.com/tomtom215/telegraphus/internal/enrich"
	"github.com/tomtom215/telegraphus/internal/hub"
	"github.com/tomtom215/telegraphus/internal/logging"
	"github.com/tomtom215/telegraphus/internal/metrics"
)

// Pipeline is a suture service that drains the listener queue, decodes
// and enriches each datagram and publishes the packet to the hub.
// Errored packets are published too; consumers that only want clean
// data skip them.
type Pipeline struct {
	queue   <-chan Datagram
	hub     *hub.Hub
	errWarn *rate.Limiter
}

// NewPipeline wires a listener queue to a hub.
func NewPipeline(queue <-chan Datagram, h *hub.Hub) *Pipeline {
	return &Pipeline{
		queue:   queue,
		hub:     h,
		errWarn: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
}

// Serve processes datagrams until the context is canceled. On shutdown
// it drains what the queue still buffers so accepted datagrams are not
// lost.
func (p *Pipeline) Serve(ctx context.Context) error {
	logging.Info().Msg("decode pipeline started")
	for {
		select {
		case <-ctx.Done():
			p.drainRemaining()
			logging.Info().Msg("decode pipeline stopped")
			return ctx.Err()
		case d := <-p.queue:
			p.process(d)
		}
	}
}

// drainRemaining consumes the queue without blocking.
func (p *Pipeline) drainRemaining() {
	for {
		select {
		case d := <-p.queue:
			p.process(d)
		default:
			return
		}
	}
}

// process turns one datagram into a published packet.
func (p *Pipeline) process(d Datagram) {
	pkt := decoder.Decode(d.Payload, d.Sender, d.ReceivedAt)
	if pkt.Errored() {
		if p.errWarn.Allow() {
			logging.Warn().Str("sender", pkt.Sender).Str("error", pkt.DecodeErr).
				Msg("datagram failed to decode")
		}
	} else {
		enrich.Apply(pkt)
		metrics.PacketsDecoded.Inc()
		metrics.MetricsParsed.Add(float64(len(pkt.Metrics)))
	}
	p.hub.Publish(pkt)
	metrics.InboundQueueDepth.Set(float64(len(p.queue)))
}
