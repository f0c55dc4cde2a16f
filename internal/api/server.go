// Telegraphus - 3D Printer Telemetry Ingest and Archival
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/telegraphus

package api

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/thejerf/suture/v4"

	"github.com/tomtom215/telegraphus/internal/logging"
)

// ServerConfig configures the HTTP server service.
type ServerConfig struct {
	Addr            string
	ReadTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// Server runs the HTTP listener as a suture service with graceful
// shutdown.
type Server struct {
	cfg     ServerConfig
	handler http.Handler
}

// NewServer creates the service. The handler is typically
// Router.Setup().
func NewServer(cfg ServerConfig, handler http.Handler) *Server {
	if cfg.ShutdownTimeout <= 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	return &Server{cfg: cfg, handler: handler}
}

// Serve binds and serves until the context is canceled. A bind failure
// terminates the whole tree; an API that cannot listen cannot recover
// by restarting.
func (s *Server) Serve(ctx context.Context) error {
	srv := &http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.handler,
		// WriteTimeout stays unset so the WebSocket endpoint can hold
		// its connection; per-frame deadlines bound the writes instead.
		ReadTimeout:       s.cfg.ReadTimeout,
		ReadHeaderTimeout: 5 * time.Second,
		BaseContext:       func(net.Listener) context.Context { return ctx },
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		logging.Err(err).Str("addr", s.cfg.Addr).Msg("http bind failed")
		return errors.Join(err, suture.ErrTerminateSupervisorTree)
	}
	logging.Info().Str("addr", s.cfg.Addr).Msg("http server started")

	errCh := make(chan error, 1)
	go func() { errCh <- srv.Serve(ln) }()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			logging.Warn().Err(err).Msg("http shutdown incomplete, closing")
			_ = srv.Close()
		}
		<-errCh
		logging.Info().Msg("http server stopped")
		return ctx.Err()
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
