// Package server exposes the HTTP surface: session CRUD, model listing,
// search and the streaming chat endpoints.
package server

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/go-go-golems/lampwick/pkg/chat"
	"github.com/go-go-golems/lampwick/pkg/inference"
	"github.com/go-go-golems/lampwick/pkg/search"
	"github.com/go-go-golems/lampwick/pkg/store"
	"github.com/go-go-golems/lampwick/pkg/streams"
)

// Config wires the server's collaborators.
type Config struct {
	Addr     string
	Store    store.Store
	Registry inference.Registry
	Relay    *chat.Relay
	Search   *search.Client
	Broker   *streams.Broker
}

// Server owns HTTP handlers and the streaming fan-out.
type Server struct {
	cfg      Config
	mux      *http.ServeMux
	server   *http.Server
	upgrader websocket.Upgrader
}

func New(cfg Config) *Server {
	s := &Server{
		cfg: cfg,
		mux: http.NewServeMux(),
		// no auth boundary; any origin may connect
		upgrader: websocket.Upgrader{CheckOrigin: func(r *http.Request) bool { return true }},
	}
	s.registerRoutes()
	s.server = &http.Server{
		Addr:              cfg.Addr,
		Handler:           cors.AllowAll().Handler(s.mux),
		ReadHeaderTimeout: 5 * time.Second,
		// WriteTimeout stays 0: /stream holds the connection open for the
		// whole inference run and no timeout is enforced on that call.
		IdleTimeout: 120 * time.Second,
	}
	return s
}

// Run starts the HTTP server and blocks until ctx is cancelled or a signal
// arrives, then drains gracefully.
func (s *Server) Run(ctx context.Context) error {
	eg := errgroup.Group{}
	srvCtx, srvCancel := context.WithCancel(ctx)
	defer srvCancel()

	eg.Go(func() error {
		sigChan := make(chan os.Signal, 1)
		signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)
		select {
		case <-sigChan:
			log.Info().Msg("received interrupt signal, shutting down gracefully...")
		case <-srvCtx.Done():
		}
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()
		if err := s.server.Shutdown(shutdownCtx); err != nil {
			log.Error().Err(err).Msg("server shutdown error")
			return err
		}
		log.Info().Msg("server shutdown complete")
		return nil
	})

	eg.Go(func() error {
		log.Info().Str("addr", s.cfg.Addr).Msg("starting lampwick server")
		if err := s.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error().Err(err).Msg("server listen error")
			return err
		}
		srvCancel()
		return nil
	})

	return eg.Wait()
}

// Handler exposes the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler {
	return s.server.Handler
}
