// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package archive

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/telegraphus/internal/hub"
	"github.com/tomtom215/telegraphus/internal/logging"
	"github.com/tomtom215/telegraphus/internal/metrics"
	"github.com/tomtom215/telegraphus/internal/models"
)

// DefaultPrintEndTimeout is how long a sender may stay silent before its
// active print expires.
const DefaultPrintEndTimeout = 10 * time.Minute

// filenameMetric is the metric name printers use to announce the file
// they are printing.
const filenameMetric = "print_filename"

// structuredFilenameKeys are the structured-payload field names the
// writer recognizes as carrying a filename, in preference order.
var structuredFilenameKeys = []string{"filename", "file", "name", "value"}

// WriterConfig configures the archive writer.
type WriterConfig struct {
	// Root is the archive directory; per-print files land in
	// <Root>/<YYYY-MM-DD>/.
	Root string

	// PrintEndTimeout is the idle window after which a sender's active
	// print expires. Zero selects DefaultPrintEndTimeout.
	PrintEndTimeout time.Duration

	// SyncEveryWrite forces an fsync after each appended record. Off by
	// default; the format already tolerates a torn trailing record.
	SyncEveryWrite bool
}

// activePrint tracks the sticky filename for one sender.
type activePrint struct {
	filename string
	lastSeen time.Time
}

// Writer owns the per-sender ActivePrint table and appends enriched
// packets to per-print record files. All state is confined to the single
// goroutine draining the hub subscription, so no locking is needed.
type Writer struct {
	cfg    WriterConfig
	active map[string]*activePrint
	now    func() time.Time
}

// NewWriter creates an archive writer. The now function is the clock;
// tests substitute a fake.
func NewWriter(cfg WriterConfig) *Writer {
	if cfg.PrintEndTimeout <= 0 {
		cfg.PrintEndTimeout = DefaultPrintEndTimeout
	}
	return &Writer{
		cfg:    cfg,
		active: make(map[string]*activePrint),
		now:    time.Now,
	}
}

// Service couples a writer to its hub subscription as a suture.Service.
type Service struct {
	Writer *Writer
	Sub    *hub.Subscription
}

// Serve drains the subscription until the context is canceled or the
// hub closes the channel.
func (s *Service) Serve(ctx context.Context) error {
	logging.Info().Str("root", s.Writer.cfg.Root).
		Dur("print_end_timeout", s.Writer.cfg.PrintEndTimeout).
		Msg("archive writer started")
	for {
		select {
		case <-ctx.Done():
			s.drain()
			logging.Info().Msg("archive writer stopped")
			return ctx.Err()
		case pkt, ok := <-s.Sub.C():
			if !ok {
				logging.Info().Msg("archive writer subscription closed")
				return nil
			}
			s.Writer.HandlePacket(pkt)
		}
	}
}

// drain consumes whatever the subscription buffer still holds without
// blocking, so shutdown does not discard accepted packets.
func (s *Service) drain() {
	for {
		select {
		case pkt, ok := <-s.Sub.C():
			if !ok {
				return
			}
			s.Writer.HandlePacket(pkt)
		default:
			return
		}
	}
}

// HandlePacket runs one packet through the per-sender state machine and
// persists it if a print is active. Errored packets are published to the
// hub like any other packet and are dropped here.
func (w *Writer) HandlePacket(pkt *models.Packet) {
	if pkt == nil || pkt.Errored() {
		return
	}

	now := w.now()
	filename := extractFilename(pkt)
	state := w.active[pkt.Sender]

	switch {
	case state == nil:
		// Idle: only a packet that announces a filename starts a print.
		if filename == "" {
			return
		}
		w.active[pkt.Sender] = &activePrint{filename: filename, lastSeen: now}
		metrics.ActivePrints.Set(float64(len(w.active)))
		logging.Info().Str("sender", pkt.Sender).Str("filename", filename).
			Msg("print started")

	case filename != "" && filename != state.filename:
		// A new filename supersedes the previous print immediately.
		logging.Info().Str("sender", pkt.Sender).
			Str("previous", state.filename).Str("filename", filename).
			Msg("print superseded")
		state.filename = filename
		state.lastSeen = now

	case filename != "":
		state.lastSeen = now

	case now.Sub(state.lastSeen) > w.cfg.PrintEndTimeout:
		// The sender went quiet past the timeout: the print is over and
		// this straggler is dropped.
		delete(w.active, pkt.Sender)
		metrics.ActivePrints.Set(float64(len(w.active)))
		logging.Info().Str("sender", pkt.Sender).Str("filename", state.filename).
			Dur("idle", now.Sub(state.lastSeen)).Msg("print ended by timeout")
		return

	default:
		// Sticky filename: persist under the active print.
		state.lastSeen = now
	}

	w.persist(pkt, w.active[pkt.Sender].filename)
}

// persist appends one record to the active print's file. Failures log
// and leave state untouched so the next packet retries implicitly.
func (w *Writer) persist(pkt *models.Packet, filename string) {
	sanitized := SanitizeFilename(filename)
	if sanitized == "" {
		logging.Warn().Str("filename", filename).Msg("filename sanitized to nothing, dropping record")
		return
	}

	dir := filepath.Join(w.cfg.Root, pkt.ReceivedAt().Format("2006-01-02"))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		metrics.ArchiveWriteErrors.Inc()
		logging.Err(err).Str("dir", dir).Msg("failed to create archive directory")
		return
	}

	record, err := json.Marshal(pkt)
	if err != nil {
		metrics.ArchiveWriteErrors.Inc()
		logging.Err(err).Str("sender", pkt.Sender).Msg("failed to encode archive record")
		return
	}

	path := filepath.Join(dir, sanitized+recordsExt)
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		metrics.ArchiveWriteErrors.Inc()
		logging.Err(err).Str("path", path).Msg("failed to open archive file")
		return
	}
	defer func() { _ = f.Close() }()

	n, err := f.Write(append(record, '\n'))
	if err != nil {
		metrics.ArchiveWriteErrors.Inc()
		logging.Err(err).Str("path", path).Msg("failed to append archive record")
		return
	}
	if w.cfg.SyncEveryWrite {
		if err := f.Sync(); err != nil {
			logging.Err(err).Str("path", path).Msg("fsync failed")
		}
	}

	metrics.ArchiveWrites.Inc()
	metrics.ArchiveBytesWritten.Add(float64(n))
}

// ActivePrintCount returns the number of senders with an active print.
// Only meaningful from the writer goroutine.
func (w *Writer) ActivePrintCount() int {
	return len(w.active)
}

// extractFilename scans a packet for the print_filename metric and
// returns its cleaned value, or empty when absent.
func extractFilename(pkt *models.Packet) string {
	for i := range pkt.Metrics {
		m := &pkt.Metrics[i]
		if m.Name != filenameMetric {
			continue
		}
		switch m.Kind {
		case models.KindNumeric:
			if m.Value != nil {
				return cleanFilename(m.Value.String())
			}
		case models.KindStructured:
			for _, key := range structuredFilenameKeys {
				if v, ok := m.Fields.Get(key); ok {
					return cleanFilename(v.String())
				}
			}
			if len(m.Fields) > 0 {
				return cleanFilename(m.Fields[0].Value.String())
			}
		}
	}
	return ""
}

// cleanFilename strips surrounding quotes and whitespace; an empty
// result means "no filename".
func cleanFilename(raw string) string {
	return strings.TrimSpace(models.StripQuotes(strings.TrimSpace(raw)))
}
