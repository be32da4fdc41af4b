package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"go.uber.org/zap"
)

// Server serves the status and metrics endpoints next to the pipeline.
type Server struct {
	httpServer *http.Server
	addr       string
	logger     *zap.Logger
}

func New(addr string, h http.Handler, logger *zap.Logger) *Server {
	return &Server{
		httpServer: &http.Server{
			Addr:         addr,
			Handler:      h,
			ReadTimeout:  10 * time.Second,
			WriteTimeout: 10 * time.Second,
		},
		logger: logger.Named("http"),
	}
}

// Start listens on the configured address and serves in the background.
// Listen errors are returned synchronously.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	s.addr = ln.Addr().String()
	s.logger.Info("Status server listening", zap.String("addr", s.addr))

	go func() {
		if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.logger.Error("Status server stopped", zap.Error(err))
		}
	}()
	return nil
}

// Addr is the bound listen address, valid after Start.
func (s *Server) Addr() string { return s.addr }

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
