// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package inspect

import (
	"context"

	"github.com/tomtom215/telegraphus/internal/hub"
	"github.com/tomtom215/telegraphus/internal/logging"
	"github.com/tomtom215/telegraphus/internal/reorder"
)

// DefaultTapBuffer is the emitted-metric buffer capacity used when a
// caller passes a non-positive capacity.
const DefaultTapBuffer = 512

// Tap couples one hub subscription to a reorder window and exposes the
// resulting device-time-ordered metric stream on a bounded channel.
// When the channel is full the oldest emitted metric is dropped, the
// same policy the hub applies upstream.
type Tap struct {
	sub      *hub.Subscription
	window   *reorder.Window
	registry *Registry
	out      chan reorder.Emitted
}

// NewTap creates a tap. The registry may be nil when callers do not
// need packet resolution.
func NewTap(sub *hub.Subscription, window *reorder.Window, registry *Registry, buffer int) *Tap {
	if buffer <= 0 {
		buffer = DefaultTapBuffer
	}
	return &Tap{
		sub:      sub,
		window:   window,
		registry: registry,
		out:      make(chan reorder.Emitted, buffer),
	}
}

// C returns the ordered metric stream. It is closed when the tap stops.
func (t *Tap) C() <-chan reorder.Emitted { return t.out }

// Serve drains the subscription through the window until the context is
// canceled, then flushes the window so the stream tail is not lost.
// Implements suture.Service.
func (t *Tap) Serve(ctx context.Context) error {
	logging.Info().Int("window", t.window.Size()).Msg("inspection tap started")
	defer close(t.out)

	for {
		select {
		case <-ctx.Done():
			t.emit(t.window.Flush())
			logging.Info().Msg("inspection tap stopped")
			return ctx.Err()
		case pkt, ok := <-t.sub.C():
			if !ok {
				t.emit(t.window.Flush())
				logging.Info().Msg("inspection tap subscription closed")
				return nil
			}
			if t.registry != nil && pkt != nil && !pkt.Errored() {
				t.registry.Add(pkt)
			}
			t.emit(t.window.Push(pkt))
		}
	}
}

// emit pushes released metrics onto the output, dropping the oldest
// buffered metric when full. Only the Serve goroutine sends.
func (t *Tap) emit(released []reorder.Emitted) {
	for _, em := range released {
		select {
		case t.out <- em:
		default:
			select {
			case <-t.out:
			default:
			}
			select {
			case t.out <- em:
			default:
			}
		}
	}
}
