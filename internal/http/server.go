package http

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/davidbz/modelarena/internal/config"
	"github.com/davidbz/modelarena/internal/http/middleware"
	"github.com/davidbz/modelarena/internal/observability"
	"github.com/davidbz/modelarena/internal/ws"
)

// Server represents the HTTP server.
type Server struct {
	config      *config.ServerConfig
	handler     *Handler
	gateway     *ws.Gateway
	middlewares middleware.Middleware
	srv         *http.Server
}

// NewServer creates a new HTTP server.
func NewServer(
	cfg *config.ServerConfig,
	handler *Handler,
	gateway *ws.Gateway,
	middlewares middleware.Middleware,
) *Server {
	return &Server{
		config:      cfg,
		handler:     handler,
		gateway:     gateway,
		middlewares: middlewares,
		srv:         nil,
	}
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	mux := http.NewServeMux()

	// Register routes.
	mux.Handle("/ws", s.gateway)
	mux.HandleFunc("GET /v1/models", s.handler.HandleModels)
	mux.HandleFunc("GET /v1/history", s.handler.HandleHistoryList)
	mux.HandleFunc("DELETE /v1/history", s.handler.HandleHistoryDeleteAll)
	mux.HandleFunc("GET /v1/history/{id}", s.handler.HandleHistoryItem)
	mux.HandleFunc("DELETE /v1/history/{id}", s.handler.HandleHistoryDelete)
	mux.HandleFunc("/health", s.handler.HandleHealth)

	// Apply middleware chain.
	handlerWithMiddleware := s.middlewares(mux)

	// Create server with timeouts. The write timeout bounds the lifetime of
	// every connection, WebSocket upgrades included, so it runs long.
	s.srv = &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      handlerWithMiddleware,
		ReadTimeout:  time.Duration(s.config.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(s.config.WriteTimeout) * time.Second,
	}

	ctx := context.Background()
	observability.FromContext(ctx).Info("starting HTTP server", observability.Int("port", s.config.Port))

	if err := s.srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return fmt.Errorf("server failed: %w", err)
	}
	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	observability.FromContext(ctx).Info("shutting down HTTP server")

	if s.srv == nil {
		return nil
	}

	if err := s.srv.Shutdown(ctx); err != nil {
		return fmt.Errorf("failed to shutdown server: %w", err)
	}

	return nil
}
