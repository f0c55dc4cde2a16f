// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package ingest

import (
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/tomtom215/telegraphus/internal/hub"
	"github.com/tomtom215/telegraphus/internal/logging"
	"github.com/tomtom215/telegraphus/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func TestPipelineDecodesAndPublishes(t *testing.T) {
	queue := make(chan Datagram, 4)
	h := hub.New()
	defer h.Close()
	sub := h.Subscribe("test", 4)
	p := NewPipeline(queue, h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx) }()

	queue <- Datagram{
		Payload:    []byte("msg=1,tm=1000000\ntemp v=25i 10\n"),
		Sender:     "10.0.0.7",
		ReceivedAt: time.UnixMilli(1700000000000),
	}

	var pkt *models.Packet
	select {
	case pkt = <-sub.C():
	case <-time.After(2 * time.Second):
		t.Fatal("no packet published")
	}
	cancel()
	<-done

	if pkt.Errored() {
		t.Fatalf("unexpected decode error: %s", pkt.DecodeErr)
	}
	if pkt.Sender != "10.0.0.7" {
		t.Errorf("Sender = %q", pkt.Sender)
	}
	if len(pkt.Metrics) != 1 || pkt.Metrics[0].Name != "temp" {
		t.Fatalf("metrics = %+v", pkt.Metrics)
	}
	// Enrichment ran: the metric has a formatted device time.
	if pkt.Metrics[0].DeviceTimeStr == "" {
		t.Error("DeviceTimeStr not set, enrichment skipped")
	}
	if pkt.WallTimeStr == "" {
		t.Error("WallTimeStr not set, enrichment skipped")
	}
}

func TestPipelinePublishesErroredPackets(t *testing.T) {
	queue := make(chan Datagram, 4)
	h := hub.New()
	defer h.Close()
	sub := h.Subscribe("test", 4)
	p := NewPipeline(queue, h)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- p.Serve(ctx) }()

	queue <- Datagram{
		Payload:    []byte{0xff, 0xfe},
		Sender:     "10.0.0.7",
		ReceivedAt: time.Now(),
	}

	select {
	case pkt := <-sub.C():
		if !pkt.Errored() {
			t.Error("expected an errored packet")
		}
	case <-time.After(2 * time.Second):
		t.Fatal("errored packet was not published")
	}
	cancel()
	<-done
}

func TestPipelineDrainsQueueOnShutdown(t *testing.T) {
	queue := make(chan Datagram, 4)
	h := hub.New()
	defer h.Close()
	sub := h.Subscribe("test", 8)
	p := NewPipeline(queue, h)

	// Fill the queue before the pipeline starts, then cancel
	// immediately: the shutdown drain must still process everything.
	for i := 0; i < 3; i++ {
		queue <- Datagram{Payload: []byte("temp v=1i 0\n"), Sender: "10.0.0.7", ReceivedAt: time.Now()}
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Serve(ctx); err != context.Canceled {
		t.Fatalf("Serve = %v, want context.Canceled", err)
	}

	for i := 0; i < 3; i++ {
		select {
		case <-sub.C():
		default:
			t.Fatalf("packet %d not published during drain", i)
		}
	}
}

func TestListenerEnqueueDropsOldest(t *testing.T) {
	l := NewListener(ListenerConfig{QueueSize: 2})

	for i := 0; i < 4; i++ {
		l.enqueue(Datagram{Sender: "10.0.0.7", Payload: []byte{byte(i)}})
	}

	// The queue kept the newest two datagrams.
	first := <-l.Queue()
	second := <-l.Queue()
	if first.Payload[0] != 2 || second.Payload[0] != 3 {
		t.Errorf("kept payloads %d, %d, want 2, 3", first.Payload[0], second.Payload[0])
	}
	select {
	case d := <-l.Queue():
		t.Errorf("unexpected extra datagram %v", d)
	default:
	}
}

func TestListenerReceives(t *testing.T) {
	l := NewListener(ListenerConfig{Addr: "127.0.0.1:0", QueueSize: 4})

	// Bind on an ephemeral port by hand so the test knows where to send.
	conn, err := net.ListenPacket("udp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	addr := conn.LocalAddr().String()
	_ = conn.Close()
	l.cfg.Addr = addr

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- l.Serve(ctx) }()

	client, err := net.Dial("udp", addr)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = client.Close() }()

	payload := []byte("temp v=25i 10\n")
	deadline := time.After(2 * time.Second)
	for {
		if _, err := client.Write(payload); err != nil {
			t.Fatal(err)
		}
		select {
		case d := <-l.Queue():
			if string(d.Payload) != string(payload) {
				t.Errorf("payload = %q", d.Payload)
			}
			if d.Sender != client.LocalAddr().String() {
				t.Errorf("sender = %q, want %q", d.Sender, client.LocalAddr().String())
			}
			if d.ReceivedAt.IsZero() {
				t.Error("ReceivedAt not set")
			}
			cancel()
			if err := <-done; err != context.Canceled {
				t.Errorf("Serve = %v, want context.Canceled", err)
			}
			return
		case <-time.After(50 * time.Millisecond):
			// Datagram may have raced the listener startup; resend.
		case <-deadline:
			t.Fatal("listener never delivered the datagram")
		}
	}
}
