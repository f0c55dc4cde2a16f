// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package websocket

import (
	"context"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/gorilla/websocket"

	"github.com/tomtom215/telegraphus/internal/hub"
	"github.com/tomtom215/telegraphus/internal/logging"
	"github.com/tomtom215/telegraphus/internal/metrics"
	"github.com/tomtom215/telegraphus/internal/models"
)

// Message types sent to clients.
const (
	MessageTypePacket = "packet"
)

// Message is the envelope every outbound frame carries.
type Message struct {
	Type string      `json:"type"`
	Data interface{} `json:"data"`
}

// FanoutConfig configures the fan-out service.
type FanoutConfig struct {
	// SendBuffer is the per-client frame buffer capacity.
	SendBuffer int

	// Timing is passed to every client's pumps.
	Timing Timing
}

// Fanout owns the client set and broadcasts each subscribed packet to
// every client. It is a suture service; the HTTP layer attaches
// connections through ServeHTTP.
type Fanout struct {
	cfg        FanoutConfig
	sub        *hub.Subscription
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	upgrader   websocket.Upgrader
}

// NewFanout creates a fan-out over the given subscription.
func NewFanout(cfg FanoutConfig, sub *hub.Subscription) *Fanout {
	if cfg.SendBuffer <= 0 {
		cfg.SendBuffer = 256
	}
	if cfg.Timing == (Timing{}) {
		cfg.Timing = DefaultTiming()
	}
	return &Fanout{
		cfg:        cfg,
		sub:        sub,
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 16 * 1024,
			// Origin filtering happens in the CORS middleware upstream.
			CheckOrigin: func(*http.Request) bool { return true },
		},
	}
}

// ServeHTTP upgrades the request and hands the connection to the
// fan-out loop.
func (f *Fanout) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := f.upgrader.Upgrade(w, r, nil)
	if err != nil {
		logging.Err(err).Str("remote", r.RemoteAddr).Msg("websocket upgrade failed")
		return
	}
	client := newClient(f, conn, f.cfg.SendBuffer, f.cfg.Timing)
	client.start()
	f.register <- client
}

// Serve runs the fan-out loop until the context is canceled. Lifecycle
// events take priority over broadcasts so the client set is consistent
// before each frame goes out.
func (f *Fanout) Serve(ctx context.Context) error {
	logging.Info().Int("send_buffer", f.cfg.SendBuffer).Msg("websocket fanout started")
	defer f.closeAll()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case client := <-f.register:
			f.add(client)
			continue
		case client := <-f.unregister:
			f.remove(client)
			continue
		default:
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case client := <-f.register:
			f.add(client)
		case client := <-f.unregister:
			f.remove(client)
		case pkt, ok := <-f.sub.C():
			if !ok {
				logging.Info().Msg("websocket fanout subscription closed")
				return nil
			}
			f.broadcast(pkt)
		}
	}
}

// broadcast encodes the packet once and enqueues the frame everywhere.
// Errored packets are not forwarded to clients.
func (f *Fanout) broadcast(pkt *models.Packet) {
	if pkt == nil || pkt.Errored() {
		return
	}
	frame, err := json.Marshal(Message{Type: MessageTypePacket, Data: pkt})
	if err != nil {
		logging.Err(err).Str("sender", pkt.Sender).Msg("failed to encode websocket frame")
		return
	}
	for client := range f.clients {
		client.enqueue(frame)
	}
}

func (f *Fanout) add(client *Client) {
	f.clients[client] = struct{}{}
	metrics.WebSocketClients.Set(float64(len(f.clients)))
	logging.Info().Uint64("client", client.ID()).
		Int("total_clients", len(f.clients)).Msg("websocket client connected")
}

func (f *Fanout) remove(client *Client) {
	if _, ok := f.clients[client]; !ok {
		return
	}
	delete(f.clients, client)
	close(client.send)
	metrics.WebSocketClients.Set(float64(len(f.clients)))
	logging.Info().Uint64("client", client.ID()).Uint64("drops", client.Drops()).
		Int("total_clients", len(f.clients)).Msg("websocket client disconnected")
}

// closeAll closes every client at shutdown.
func (f *Fanout) closeAll() {
	count := len(f.clients)
	for client := range f.clients {
		delete(f.clients, client)
		close(client.send)
	}
	metrics.WebSocketClients.Set(0)
	if count > 0 {
		logging.Info().Int("clients_closed", count).Msg("websocket fanout stopped")
	}
}
