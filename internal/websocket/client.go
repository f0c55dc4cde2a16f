// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package websocket

import (
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/tomtom215/telegraphus/internal/logging"
	"github.com/tomtom215/telegraphus/internal/metrics"
)

// maxInboundMessageSize caps what a client may send. Clients only send
// pings, so anything large is misbehavior.
const maxInboundMessageSize = 4 * 1024

// clientIDCounter hands out unique client IDs for log correlation.
var clientIDCounter atomic.Uint64

// Timing bounds the client pumps operate under.
type Timing struct {
	// WriteWait bounds a single frame write.
	WriteWait time.Duration

	// PongWait is how long a client may stay silent before it is
	// presumed dead.
	PongWait time.Duration

	// PingPeriod is how often the server pings. Must be shorter than
	// PongWait.
	PingPeriod time.Duration
}

// DefaultTiming returns the pump timings used when a zero Timing is
// supplied.
func DefaultTiming() Timing {
	return Timing{
		WriteWait:  10 * time.Second,
		PongWait:   60 * time.Second,
		PingPeriod: 54 * time.Second,
	}
}

// Client is the middleman between one websocket connection and the
// fan-out.
type Client struct {
	id     uint64
	fanout *Fanout
	conn   *websocket.Conn
	timing Timing

	// send carries frames already encoded by the fan-out.
	send chan []byte

	drops atomic.Uint64
}

// newClient wires a connection to the fan-out.
func newClient(f *Fanout, conn *websocket.Conn, sendBuffer int, timing Timing) *Client {
	if timing == (Timing{}) {
		timing = DefaultTiming()
	}
	if sendBuffer <= 0 {
		sendBuffer = 256
	}
	return &Client{
		id:     clientIDCounter.Add(1),
		fanout: f,
		conn:   conn,
		timing: timing,
		send:   make(chan []byte, sendBuffer),
	}
}

// ID returns the client's unique identifier.
func (c *Client) ID() uint64 { return c.id }

// Drops returns how many frames this client lost to a full send buffer.
func (c *Client) Drops() uint64 { return c.drops.Load() }

// enqueue offers a frame without blocking; a full buffer drops its
// oldest frame first. The fan-out goroutine is the only sender.
func (c *Client) enqueue(frame []byte) {
	select {
	case c.send <- frame:
	default:
		select {
		case <-c.send:
			c.drops.Add(1)
		default:
		}
		select {
		case c.send <- frame:
		default:
		}
	}
}

// readPump discards inbound messages while keeping the pong-based
// liveness check running.
func (c *Client) readPump() {
	defer func() {
		c.fanout.unregister <- c
		_ = c.conn.Close()
	}()

	c.conn.SetReadLimit(maxInboundMessageSize)
	if err := c.conn.SetReadDeadline(time.Now().Add(c.timing.PongWait)); err != nil {
		logging.Err(err).Uint64("client", c.id).Msg("failed to set read deadline")
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(c.timing.PongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway, websocket.CloseNormalClosure, websocket.CloseAbnormalClosure) {
				logging.Warn().Err(err).Uint64("client", c.id).Msg("unexpected websocket close")
			}
			return
		}
	}
}

// writePump sends queued frames and periodic pings.
func (c *Client) writePump() {
	ticker := time.NewTicker(c.timing.PingPeriod)
	defer func() {
		ticker.Stop()
		_ = c.conn.Close()
	}()

	for {
		select {
		case frame, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.timing.WriteWait)); err != nil {
				return
			}
			if !ok {
				// The fan-out closed the channel.
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, frame); err != nil {
				metrics.WebSocketSendErrors.Inc()
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(c.timing.WriteWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

// start launches both pumps.
func (c *Client) start() {
	go c.writePump()
	go c.readPump()
}
