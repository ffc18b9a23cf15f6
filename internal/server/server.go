package server

import (
	"context"
	"net/http"
	"time"

	"github.com/loginportal/backend/internal/auth"
	"github.com/loginportal/backend/internal/config"
	"github.com/loginportal/backend/internal/http/handlers"
	"github.com/loginportal/backend/internal/middleware"
	"github.com/loginportal/backend/internal/storage"
)

// Server wraps an http.Server with configured routes.
type Server struct {
	inner *http.Server
}

// New wires up middleware, routes, and returns a ready server.
func New(cfg config.Config, store storage.UserStore) *Server {
	mux := http.NewServeMux()
	health := handlers.NewHealthHandler(time.Now())
	health.Register(mux)
	sessions := auth.NewSessionManager(cfg.SessionSecret, cfg.SessionIssuer, cfg.SessionTTL)
	authHandler := handlers.NewAuthHandler(store, sessions)
	authHandler.Register(mux)
	pages := handlers.NewPagesHandler(cfg.RequireLogin)
	pages.Register(mux)

	var handler http.Handler = middleware.WithUser(store, sessions, mux)
	handler = middleware.CORS(cfg.CORSOrigins, middleware.Logging(handler))
	handler = middleware.Recover(handler)

	httpServer := &http.Server{
		Addr:              cfg.HTTPAddress(),
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
		ReadTimeout:       10 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	return &Server{inner: httpServer}
}

// Start begins serving HTTP traffic.
func (s *Server) Start() error {
	return s.inner.ListenAndServe()
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.inner.Shutdown(ctx)
}
