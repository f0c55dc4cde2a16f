// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package api

import (
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/telegraphus/internal/archive"
	"github.com/tomtom215/telegraphus/internal/hub"
	"github.com/tomtom215/telegraphus/internal/logging"
	"github.com/tomtom215/telegraphus/internal/models"
)

//nolint:gochecknoinits // init ensures consistent logging for tests
func init() {
	logging.Init(logging.Config{Level: "info", Format: "console", Output: io.Discard})
}

func testMiddlewareConfig() MiddlewareConfig {
	return MiddlewareConfig{
		CORSAllowedOrigins: []string{"*"},
		RateLimitRequests:  0,
		RateLimitWindow:    time.Minute,
	}
}

func newTestServer(t *testing.T, root string, h *hub.Hub) *httptest.Server {
	t.Helper()
	if h == nil {
		h = hub.New()
		t.Cleanup(h.Close)
	}
	handler := NewHandler(archive.NewReader(root), h)
	ws := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusSwitchingProtocols)
	})
	srv := httptest.NewServer(NewRouter(handler, testMiddlewareConfig(), ws).Setup())
	t.Cleanup(srv.Close)
	return srv
}

func getJSON(t *testing.T, url string, wantStatus int, out interface{}) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatalf("GET %s: %v", url, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != wantStatus {
		t.Fatalf("GET %s status = %d, want %d", url, resp.StatusCode, wantStatus)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		t.Fatalf("decoding %s response: %v", url, err)
	}
}

func writeArchiveRecord(t *testing.T, root, date, filename string, pkt *models.Packet) {
	t.Helper()
	dir := filepath.Join(root, date)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatal(err)
	}
	data, err := json.Marshal(pkt)
	if err != nil {
		t.Fatal(err)
	}
	path := filepath.Join(dir, filename+".records")
	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = f.Close() }()
	if _, err := f.Write(append(data, '\n')); err != nil {
		t.Fatal(err)
	}
}

func TestHealth(t *testing.T) {
	h := hub.New()
	defer h.Close()
	sub := h.Subscribe("probe", 1)
	defer sub.Close()
	srv := newTestServer(t, t.TempDir(), h)

	var body struct {
		Status        string  `json:"status"`
		UptimeSeconds float64 `json:"uptime_seconds"`
		Subscribers   int     `json:"subscribers"`
	}
	getJSON(t, srv.URL+"/api/health", http.StatusOK, &body)

	if body.Status != "ok" {
		t.Errorf("status = %q, want ok", body.Status)
	}
	if body.UptimeSeconds < 0 {
		t.Errorf("uptime_seconds = %f", body.UptimeSeconds)
	}
	if body.Subscribers != 1 {
		t.Errorf("subscribers = %d, want 1", body.Subscribers)
	}
}

func TestArchivesEmpty(t *testing.T) {
	srv := newTestServer(t, t.TempDir(), nil)

	var body []archive.Info
	getJSON(t, srv.URL+"/api/archives", http.StatusOK, &body)

	if len(body) != 0 {
		t.Errorf("body = %+v, want empty listing", body)
	}
}

func TestArchivesListing(t *testing.T) {
	root := t.TempDir()
	pkt := &models.Packet{Sender: "printer-1", ReceivedAtMS: 1}
	writeArchiveRecord(t, root, "2026-01-01", "cube", pkt)
	writeArchiveRecord(t, root, "2026-01-02", "benchy", pkt)
	srv := newTestServer(t, root, nil)

	var body []archive.Info
	getJSON(t, srv.URL+"/api/archives", http.StatusOK, &body)

	if len(body) != 2 {
		t.Fatalf("body = %+v, want 2 archives", body)
	}
	if body[0].Filename != "cube" || body[1].Filename != "benchy" {
		t.Errorf("order = %s, %s", body[0].Filename, body[1].Filename)
	}
}

func TestArchiveRecords(t *testing.T) {
	root := t.TempDir()
	v := models.IntScalar(42)
	pkt := &models.Packet{
		Sender:       "printer-1",
		ReceivedAtMS: 1700000000000,
		Metrics: []models.Metric{
			{Name: "temp", Kind: models.KindNumeric, Value: &v},
		},
	}
	writeArchiveRecord(t, root, "2026-01-01", "cube", pkt)
	writeArchiveRecord(t, root, "2026-01-01", "cube", pkt)
	srv := newTestServer(t, root, nil)

	var body []*models.Packet
	getJSON(t, srv.URL+"/api/archive/2026-01-01/cube", http.StatusOK, &body)

	if len(body) != 2 {
		t.Fatalf("records = %d, want 2", len(body))
	}
	if body[0].Sender != "printer-1" {
		t.Errorf("record sender = %q", body[0].Sender)
	}
	if len(body[0].Metrics) != 1 || body[0].Metrics[0].Value.Int() != 42 {
		t.Errorf("record metrics = %+v", body[0].Metrics)
	}
}

func TestArchiveRecordsNotFound(t *testing.T) {
	srv := newTestServer(t, t.TempDir(), nil)

	urls := []string{
		srv.URL + "/api/archive/2026-01-01/missing",
		srv.URL + "/api/archive/not-a-date/cube",
	}
	for _, url := range urls {
		var body struct {
			Error string `json:"error"`
		}
		getJSON(t, url, http.StatusNotFound, &body)
		if body.Error == "" {
			t.Errorf("GET %s: empty error body", url)
		}
	}
}

func TestMetricsEndpoint(t *testing.T) {
	srv := newTestServer(t, t.TempDir(), nil)

	resp, err := http.Get(srv.URL + "/metrics")
	if err != nil {
		t.Fatalf("GET /metrics: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}
	if body, _ := io.ReadAll(resp.Body); len(body) == 0 {
		t.Error("metrics body is empty")
	}
}

func TestUnknownRoute(t *testing.T) {
	srv := newTestServer(t, t.TempDir(), nil)

	resp, err := http.Get(srv.URL + "/api/nope")
	if err != nil {
		t.Fatalf("GET: %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestCORSHeaders(t *testing.T) {
	srv := newTestServer(t, t.TempDir(), nil)

	req, err := http.NewRequest(http.MethodGet, srv.URL+"/api/health", nil)
	if err != nil {
		t.Fatal(err)
	}
	req.Header.Set("Origin", "http://dashboard.local")
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	defer func() { _ = resp.Body.Close() }()

	if got := resp.Header.Get("Access-Control-Allow-Origin"); got != "*" {
		t.Errorf("Access-Control-Allow-Origin = %q, want *", got)
	}
}
