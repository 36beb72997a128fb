// Package http serves the in-memory backend over a real listener.
package http

import (
	"context"
	"errors"
	"net"
	"net/http"
	"sync"
	"time"

	"chatsync/internal/fakeapi"

	"go.uber.org/zap"
)

const APIPrefix = "/api"

type DevServer struct {
	server *http.Server
	logger *zap.Logger
	wg     sync.WaitGroup
}

func NewDevServer(backend *fakeapi.Backend, addr string, logger *zap.Logger) *DevServer {
	if addr == "" {
		addr = ":8080"
	}

	return &DevServer{
		server: &http.Server{
			Addr:              addr,
			Handler:           backend.Handler(APIPrefix),
			ReadHeaderTimeout: 5 * time.Second,
		},
		logger: logger,
	}
}

// Start listens on the configured address and blocks until the server is
// shut down.
func (s *DevServer) Start() error {
	ln, err := net.Listen("tcp", s.server.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

func (s *DevServer) Serve(ln net.Listener) error {
	s.wg.Add(1)
	defer s.wg.Done()

	s.logger.Info("dev server started", zap.String("addr", ln.Addr().String()), zap.String("prefix", APIPrefix))
	if err := s.server.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (s *DevServer) Shutdown(ctx context.Context) error {
	defer s.wg.Wait()
	return s.server.Shutdown(ctx)
}
