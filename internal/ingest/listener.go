// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package ingest

import (
	"context"
	"errors"
	"net"
	"time"

	"github.com/thejerf/suture/v4"
	"golang.org/x/time/rate"

	"github.com/tomtom215/telegraphus/internal/logging"
	"github.com/tomtom215/telegraphus/internal/metrics"
)

// Datagram is one received UDP payload plus its receive metadata. Sender
// is the remote address in host:port form and identifies the printer end
// to end.
type Datagram struct {
	Payload    []byte
	Sender     string
	ReceivedAt time.Time
}

// ListenerConfig configures the UDP listener.
type ListenerConfig struct {
	// Addr is the host:port to bind.
	Addr string

	// MaxDatagramSize is the receive buffer per datagram.
	MaxDatagramSize int

	// ReadBufferBytes requests a kernel socket buffer size; zero keeps
	// the system default.
	ReadBufferBytes int

	// QueueSize bounds the queue toward the pipeline.
	QueueSize int
}

// Listener is a suture service that reads datagrams into a bounded
// queue. A full queue drops its oldest datagram so the socket is always
// drained.
type Listener struct {
	cfg      ListenerConfig
	queue    chan Datagram
	dropWarn *rate.Limiter
}

// NewListener creates a listener. The socket is bound in Serve, not
// here, so supervision covers bind failures.
func NewListener(cfg ListenerConfig) *Listener {
	if cfg.MaxDatagramSize <= 0 {
		cfg.MaxDatagramSize = 64 * 1024
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 1000
	}
	return &Listener{
		cfg:      cfg,
		queue:    make(chan Datagram, cfg.QueueSize),
		dropWarn: rate.NewLimiter(rate.Every(5*time.Second), 1),
	}
}

// Queue returns the receive end of the datagram queue.
func (l *Listener) Queue() <-chan Datagram { return l.queue }

// Serve binds the socket and reads datagrams until the context is
// canceled. A bind failure terminates the whole tree: a telemetry
// receiver that cannot receive has nothing to supervise.
func (l *Listener) Serve(ctx context.Context) error {
	var lc net.ListenConfig
	conn, err := lc.ListenPacket(ctx, "udp", l.cfg.Addr)
	if err != nil {
		logging.Err(err).Str("addr", l.cfg.Addr).Msg("udp bind failed")
		return errors.Join(err, suture.ErrTerminateSupervisorTree)
	}
	defer func() { _ = conn.Close() }()

	if l.cfg.ReadBufferBytes > 0 {
		if uc, ok := conn.(*net.UDPConn); ok {
			if err := uc.SetReadBuffer(l.cfg.ReadBufferBytes); err != nil {
				logging.Warn().Err(err).Int("bytes", l.cfg.ReadBufferBytes).
					Msg("could not set socket read buffer")
			}
		}
	}

	logging.Info().Str("addr", l.cfg.Addr).
		Int("max_datagram", l.cfg.MaxDatagramSize).
		Int("queue", l.cfg.QueueSize).Msg("udp listener started")

	// Unblock the read loop on cancellation.
	go func() {
		<-ctx.Done()
		_ = conn.Close()
	}()

	buf := make([]byte, l.cfg.MaxDatagramSize)
	for {
		n, addr, err := conn.ReadFrom(buf)
		if err != nil {
			if ctx.Err() != nil || errors.Is(err, net.ErrClosed) {
				logging.Info().Msg("udp listener stopped")
				return ctx.Err()
			}
			logging.Err(err).Msg("udp read failed")
			continue
		}

		metrics.DatagramsReceived.Inc()
		payload := make([]byte, n)
		copy(payload, buf[:n])
		l.enqueue(Datagram{
			Payload:    payload,
			Sender:     addr.String(),
			ReceivedAt: time.Now(),
		})
	}
}

// enqueue performs a non-blocking send; when the queue is full the
// oldest datagram is discarded to make room. Only this goroutine sends,
// so the retry cannot block.
func (l *Listener) enqueue(d Datagram) {
	select {
	case l.queue <- d:
	default:
		select {
		case <-l.queue:
			metrics.DatagramsDropped.Inc()
			if l.dropWarn.Allow() {
				logging.Warn().Int("queue", cap(l.queue)).
					Msg("ingest queue full, dropping oldest datagram")
			}
		default:
		}
		select {
		case l.queue <- d:
		default:
		}
	}
	metrics.InboundQueueDepth.Set(float64(len(l.queue)))
}
