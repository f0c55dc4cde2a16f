// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

// Package hub implements the single-producer, many-subscriber broadcast
// primitive at the center of the pipeline.
//
// Every subscriber owns a bounded buffer. Publish performs a non-blocking
// enqueue into each buffer and, when one is full, drops that buffer's
// oldest packet. A slow consumer therefore loses its own oldest data and
// nothing else: the producer never blocks and the other subscribers are
// unaffected.
package hub

import (
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/tomtom215/telegraphus/internal/logging"
	"github.com/tomtom215/telegraphus/internal/metrics"
	"github.com/tomtom215/telegraphus/internal/models"
)

// DefaultSubscriberBuffer is the per-subscriber buffer capacity used when
// a caller passes a non-positive capacity.
const DefaultSubscriberBuffer = 100

// Subscription is one consumer's independently buffered view of the
// packet stream. Packets published after Subscribe are visible; nothing
// is replayed.
type Subscription struct {
	id   string
	name string
	ch   chan *models.Packet
	hub  *Hub

	closed bool // guarded by hub.mu

	drops    atomic.Uint64
	dropCtr  prometheus.Counter
	received atomic.Uint64
}

// ID returns the subscription's unique identifier.
func (s *Subscription) ID() string { return s.id }

// Name returns the human-readable label the subscription was created
// with.
func (s *Subscription) Name() string { return s.name }

// C returns the receive channel. It is closed when the subscription or
// the hub is closed.
func (s *Subscription) C() <-chan *models.Packet { return s.ch }

// Drops returns how many packets were discarded from this subscription's
// buffer because it was full.
func (s *Subscription) Drops() uint64 { return s.drops.Load() }

// Close detaches the subscription and closes its channel. Any buffered
// packets not yet consumed are discarded. Closing twice is a no-op.
func (s *Subscription) Close() {
	s.hub.remove(s)
}

// Hub fans one packet stream out to every live subscription.
type Hub struct {
	mu sync.Mutex
	// subs is kept in subscription order so publish iterates
	// deterministically.
	subs   []*Subscription
	closed bool
}

// New creates an empty hub.
func New() *Hub {
	return &Hub{}
}

// Subscribe registers a new consumer with its own buffer of the given
// capacity and returns its subscription. The name labels logs and the
// per-subscriber drop counter.
func (h *Hub) Subscribe(name string, capacity int) *Subscription {
	if capacity <= 0 {
		capacity = DefaultSubscriberBuffer
	}
	sub := &Subscription{
		id:      uuid.New().String()[:8],
		name:    name,
		ch:      make(chan *models.Packet, capacity),
		hub:     h,
		dropCtr: metrics.SubscriberDrops.WithLabelValues(name),
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		// Late subscribers to a closed hub get an already-closed channel
		// rather than an error, mirroring publish-after-close semantics.
		close(sub.ch)
		sub.closed = true
		return sub
	}
	h.subs = append(h.subs, sub)
	metrics.HubSubscribers.Set(float64(len(h.subs)))
	logging.Debug().Str("subscriber", name).Str("id", sub.id).
		Int("capacity", capacity).Msg("hub subscription opened")
	return sub
}

// Publish delivers the packet to every live subscription. A full buffer
// drops its oldest entry to make room; the producer never blocks and
// never sees an error. Publishing to a closed hub is a no-op.
func (h *Hub) Publish(pkt *models.Packet) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}

	metrics.HubPublishes.Inc()
	for _, sub := range h.subs {
		select {
		case sub.ch <- pkt:
			sub.received.Add(1)
		default:
			// Buffer full: drop the oldest entry, then retry once. The
			// second send cannot block because this publisher is the only
			// writer and holds the lock.
			select {
			case <-sub.ch:
				sub.drops.Add(1)
				sub.dropCtr.Inc()
			default:
			}
			select {
			case sub.ch <- pkt:
				sub.received.Add(1)
			default:
			}
		}
	}
}

// SubscriberCount returns the number of live subscriptions.
func (h *Hub) SubscriberCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.subs)
}

// Close closes every subscription and refuses further publishes.
// Idempotent.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.closed {
		return
	}
	h.closed = true
	for _, sub := range h.subs {
		if !sub.closed {
			sub.closed = true
			close(sub.ch)
		}
	}
	count := len(h.subs)
	h.subs = nil
	metrics.HubSubscribers.Set(0)
	logging.Info().Int("subscribers_closed", count).Msg("hub closed")
}

// remove detaches one subscription (Subscription.Close path).
func (h *Hub) remove(target *Subscription) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if target.closed {
		return
	}
	target.closed = true
drain:
	for {
		select {
		case <-target.ch:
		default:
			break drain
		}
	}
	close(target.ch)
	for i, sub := range h.subs {
		if sub == target {
			h.subs = append(h.subs[:i], h.subs[i+1:]...)
			break
		}
	}
	metrics.HubSubscribers.Set(float64(len(h.subs)))
	logging.Debug().Str("subscriber", target.name).Str("id", target.id).
		Uint64("drops", target.Drops()).Msg("hub subscription closed")
}
