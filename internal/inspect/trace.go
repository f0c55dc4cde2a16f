// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package inspect

import (
	"context"

	"github.com/tomtom215/telegraphus/internal/logging"
	"github.com/tomtom215/telegraphus/internal/models"
)

// Tracer drains a tap and logs every released metric at debug level,
// giving a device-time-ordered trace of the stream without attaching a
// client. Implements suture.Service.
type Tracer struct {
	tap *Tap
}

// NewTracer creates a tracer over the given tap.
func NewTracer(tap *Tap) *Tracer {
	return &Tracer{tap: tap}
}

// Serve logs emitted metrics until the tap closes or the context is
// canceled.
func (t *Tracer) Serve(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case em, ok := <-t.tap.C():
			if !ok {
				return nil
			}
			ev := logging.Debug().
				Str("metric", em.Metric.Name).
				Str("kind", string(em.Metric.Kind)).
				Str("packet", em.Packet.String())
			if em.Metric.DeviceTimeUS != nil {
				ev = ev.Int64("device_time_us", *em.Metric.DeviceTimeUS)
			}
			if em.Metric.Kind == models.KindNumeric && em.Metric.Value != nil {
				ev = ev.Str("value", em.Metric.Value.String())
			}
			ev.Msg("metric trace")
		}
	}
}
