package http

import (
	"context"
	"fmt"
	"net/http"

	"github.com/rs/zerolog"

	"saas-payment-core/internal/config"
)

// Server wraps the stdlib listener with the configured timeouts and a
// graceful shutdown hook. The routes come assembled from the web package.
type Server struct {
	cfg     config.ServerConfig
	handler http.Handler
	server  *http.Server
	log     *zerolog.Logger
}

func NewServer(cfg config.ServerConfig, handler http.Handler, logger *zerolog.Logger) *Server {
	return &Server{cfg: cfg, handler: handler, log: logger}
}

func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.cfg.Port),
		Handler:      s.handler,
		ReadTimeout:  s.cfg.ReadTimeout,
		WriteTimeout: s.cfg.WriteTimeout,
	}

	s.log.Info().Int("port", s.cfg.Port).Msg("HTTP server listening")
	return s.server.ListenAndServe()
}

func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	return s.server.Shutdown(ctx)
}
