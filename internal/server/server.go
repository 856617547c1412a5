// Package server manages the lifecycle of the HTTP API server.
package server

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"go.uber.org/zap"

	"github.com/BaSui01/roboforge/config"
)

// Manager wraps an http.Server with asynchronous startup and graceful
// shutdown.
type Manager struct {
	server *http.Server
	errCh  chan error
	logger *zap.Logger
	mu     sync.Mutex
	closed bool
}

// NewManager builds a server for the given handler.
func NewManager(handler http.Handler, cfg config.ServerConfig, logger *zap.Logger) *Manager {
	return &Manager{
		server: &http.Server{
			Addr:         cfg.Addr,
			Handler:      handler,
			ReadTimeout:  cfg.ReadTimeout,
			WriteTimeout: cfg.WriteTimeout,
			IdleTimeout:  cfg.IdleTimeout,
		},
		errCh:  make(chan error, 1),
		logger: logger.With(zap.String("component", "http_server")),
	}
}

// Start begins serving in a background goroutine. Startup or serve errors
// arrive on Err.
func (m *Manager) Start() {
	m.logger.Info("http server starting", zap.String("addr", m.server.Addr))
	go func() {
		if err := m.server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			m.errCh <- err
		}
	}()
}

// Err exposes fatal server errors.
func (m *Manager) Err() <-chan error {
	return m.errCh
}

// Shutdown drains in-flight requests within the context deadline.
func (m *Manager) Shutdown(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return nil
	}
	m.closed = true
	m.logger.Info("http server shutting down")
	return m.server.Shutdown(ctx)
}
