// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

// Package reorder serializes metrics from adjacent packets into a single
// stream ordered by absolute device time.
//
// Metric offsets may be negative, so a later packet can carry metrics
// that are earlier in device time than metrics from the packet before it.
// The window holds the last W packets in a merged, device-time-sorted
// buffer. When a packet falls out of the window, the sorted prefix up to
// that packet's last timed metric is released, followed by that packet's
// metrics without a device time: by then every packet that could
// legally interleave with it has been merged in, so the prefix is final.
//
// The window size is a correctness knob trading latency for tolerance to
// out-of-order metrics: once a metric has been emitted, no later metric
// with a smaller device time will follow unless it arrives more than W
// packets behind.
package reorder

import (
	"github.com/tomtom215/telegraphus/internal/models"
)

// DefaultWindowSize is the number of packets held back before emission.
const DefaultWindowSize = 2

// Emitted is one metric released from the window, tagged with the
// identity of the packet it came from so it can be interpreted in
// isolation (the inspector registry resolves the full packet when
// needed).
type Emitted struct {
	Metric models.Metric   `json:"metric"`
	Packet models.PacketID `json:"packet"`
}

// entry pairs a buffered metric with its FIFO sequence number, so that
// eviction can extract exactly one packet's metrics from the merged
// buffer while preserving the merged order.
type entry struct {
	em  Emitted
	seq uint64
}

// Window buffers the last up-to-W packets and their device-time-sorted
// metrics. Not safe for concurrent use; each consumer owns its own
// instance.
type Window struct {
	size    int
	nextSeq uint64
	fifo    []uint64 // sequence numbers of buffered packets, oldest first
	buf     []entry  // merged, sorted by device time (absent time last, stable)
}

// NewWindow creates a window of the given size. Sizes below one fall
// back to DefaultWindowSize.
func NewWindow(size int) *Window {
	if size < 1 {
		size = DefaultWindowSize
	}
	return &Window{size: size}
}

// Size returns the fixed window size.
func (w *Window) Size() int { return w.size }

// Pending returns the number of packets currently buffered.
func (w *Window) Pending() int { return len(w.fifo) }

// Push inserts a packet and returns any metrics released by the
// resulting eviction. Errored packets are ignored. Packets with no
// metrics still occupy a window slot; their eviction emits nothing.
func (w *Window) Push(pkt *models.Packet) []Emitted {
	if pkt == nil || pkt.Errored() {
		return nil
	}

	seq := w.nextSeq
	w.nextSeq++
	w.fifo = append(w.fifo, seq)

	id := pkt.ID()
	for i := range pkt.Metrics {
		w.merge(entry{em: Emitted{Metric: pkt.Metrics[i], Packet: id}, seq: seq})
	}

	if len(w.fifo) > w.size {
		return w.evictOldest()
	}
	return nil
}

// Flush evicts every buffered packet and returns the remaining metrics
// in buffer order. Used at shutdown so the stream tail is not lost.
func (w *Window) Flush() []Emitted {
	var out []Emitted
	for len(w.fifo) > 0 {
		out = append(out, w.evictOldest()...)
	}
	return out
}

// merge inserts an entry into the sorted buffer. Entries without a
// device time sort after all timed entries; ties and absent times keep
// insertion order, which preserves each packet's internal ordering.
func (w *Window) merge(e entry) {
	pos := len(w.buf)
	for pos > 0 && less(e, w.buf[pos-1]) {
		pos--
	}
	w.buf = append(w.buf, entry{})
	copy(w.buf[pos+1:], w.buf[pos:])
	w.buf[pos] = e
}

// less reports a strict device-time ordering. An absent device time is
// infinitely late: a timed entry sorts before any untimed one, two
// untimed entries never reorder, and the strict inequality keeps equal
// times in insertion order.
func less(a, b entry) bool {
	at, bt := a.em.Metric.DeviceTimeUS, b.em.Metric.DeviceTimeUS
	if at == nil {
		return false
	}
	if bt == nil {
		return true
	}
	return *at < *bt
}

// evictOldest removes the oldest packet from the FIFO and releases the
// merged buffer's sorted prefix through that packet's last timed metric.
// Releasing the whole prefix, not just the packet's own metrics, is what
// keeps the global emission non-decreasing: a newer packet's earlier
// metrics leave the buffer before the evicted packet's later ones. The
// packet's untimed metrics are extracted separately and emitted last.
func (w *Window) evictOldest() []Emitted {
	oldest := w.fifo[0]
	w.fifo = w.fifo[1:]

	cut := -1
	for i, e := range w.buf {
		if e.seq == oldest && e.em.Metric.DeviceTimeUS != nil {
			cut = i
		}
	}

	var out []Emitted
	for _, e := range w.buf[:cut+1] {
		out = append(out, e.em)
	}

	kept := w.buf[:0]
	for _, e := range w.buf[cut+1:] {
		if e.seq == oldest {
			// Untimed straggler of the evicted packet.
			out = append(out, e.em)
		} else {
			kept = append(kept, e)
		}
	}
	w.buf = kept
	return out
}
