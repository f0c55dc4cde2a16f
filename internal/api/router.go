// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Router assembles the chi route tree.
type Router struct {
	handler    *Handler
	middleware MiddlewareConfig

	// WebSocketHandler serves GET /ws. Typically the fan-out service.
	WebSocketHandler http.Handler
}

// NewRouter creates a router over the given handlers.
func NewRouter(handler *Handler, mw MiddlewareConfig, ws http.Handler) *Router {
	return &Router{handler: handler, middleware: mw, WebSocketHandler: ws}
}

// Setup builds the full route tree.
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Global stack, applied to every route in order.
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(rt.middleware.CORS())
	r.Use(RequestLogging)

	r.Route("/api", func(r chi.Router) {
		r.Use(rt.middleware.RateLimit())
		r.Use(RequestMetrics)

		r.Get("/health", rt.handler.Health)
		r.Get("/archives", rt.handler.Archives)
		r.Get("/archive/{date}/{filename}", rt.handler.ArchiveRecords)
	})

	// The WebSocket endpoint skips rate limiting: one upgrade is one
	// long-lived connection, not a request stream.
	r.With(RequestMetrics).Get("/ws", rt.WebSocketHandler.ServeHTTP)

	r.Handle("/metrics", promhttp.Handler())

	return r
}
