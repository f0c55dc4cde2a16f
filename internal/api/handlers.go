// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package api

import (
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/tomtom215/telegraphus/internal/archive"
	"github.com/tomtom215/telegraphus/internal/hub"
	"github.com/tomtom215/telegraphus/internal/logging"
	"github.com/tomtom215/telegraphus/internal/models"
)

// Handler bundles the dependencies the HTTP handlers read from.
type Handler struct {
	Reader  *archive.Reader
	Hub     *hub.Hub
	started time.Time
}

// NewHandler creates a handler set. The start time anchors the uptime
// reported by Health.
func NewHandler(reader *archive.Reader, h *hub.Hub) *Handler {
	return &Handler{Reader: reader, Hub: h, started: time.Now()}
}

// healthResponse is the Health endpoint body.
type healthResponse struct {
	Status        string  `json:"status"`
	UptimeSeconds float64 `json:"uptime_seconds"`
	Subscribers   int     `json:"subscribers"`
}

// Health reports liveness. It always returns 200; a process that can
// answer is alive.
func (h *Handler) Health(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:        "ok",
		UptimeSeconds: time.Since(h.started).Seconds(),
		Subscribers:   h.Hub.SubscriberCount(),
	})
}

// Archives lists every archived print as a JSON array.
func (h *Handler) Archives(w http.ResponseWriter, r *http.Request) {
	infos, err := h.Reader.List()
	if err != nil {
		logging.Err(err).Msg("archive listing failed")
		writeError(w, http.StatusInternalServerError, "failed to list archives")
		return
	}
	if infos == nil {
		infos = []archive.Info{}
	}
	writeJSON(w, http.StatusOK, infos)
}

// ArchiveRecords returns one archived print as a JSON array of enriched
// packets in arrival order.
func (h *Handler) ArchiveRecords(w http.ResponseWriter, r *http.Request) {
	date := chi.URLParam(r, "date")
	filename := chi.URLParam(r, "filename")

	packets, err := h.Reader.Read(date, filename)
	if err != nil {
		if errors.Is(err, archive.ErrNotFound) {
			writeError(w, http.StatusNotFound, "archive not found")
			return
		}
		logging.Err(err).Str("date", date).Str("filename", filename).
			Msg("archive read failed")
		writeError(w, http.StatusInternalServerError, "failed to read archive")
		return
	}
	if packets == nil {
		packets = []*models.Packet{}
	}
	writeJSON(w, http.StatusOK, packets)
}

// errorResponse is the uniform error body.
type errorResponse struct {
	Error string `json:"error"`
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		logging.Err(err).Msg("failed to encode response")
	}
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
