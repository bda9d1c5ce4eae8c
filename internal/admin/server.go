// Package admin implements the read-mostly operator dashboard: liveness,
// recent delivery statistics, a log tail, and a view/edit surface for the
// admin-config document.
package admin

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/krultra/smtp-agent/internal/config"
	"github.com/krultra/smtp-agent/internal/store"
)

// Server wraps the admin HTTP surface.
type Server struct {
	httpServer *http.Server
	store      store.Adapter
	overlay    *config.Overlay
	logPath    string
	version    string
	startedAt  time.Time
}

// Options configures the admin server.
type Options struct {
	ListenAddr string
	Username   string
	Password   string
	LogPath    string
	Version    string
}

func NewServer(adapter store.Adapter, overlay *config.Overlay, opts Options) *Server {
	s := &Server{
		store:     adapter,
		overlay:   overlay,
		logPath:   opts.LogPath,
		version:   opts.Version,
		startedAt: time.Now(),
	}

	r := chi.NewRouter()
	r.Use(requestIDMiddleware)
	r.Use(requestLogger)
	r.Use(middleware.Recoverer)
	r.Use(basicAuth(opts.Username, opts.Password))

	r.Get("/health", s.handleHealth)
	r.Get("/", s.handleDashboard)
	r.Get("/stats", s.handleStats)
	r.Post("/status/reset", s.handleStatusReset)
	r.Get("/emails", s.handleEmailsList)
	r.Get("/emails/{id}", s.handleEmailDetail)
	r.Get("/logs", s.handleLogs)
	r.Get("/config", s.handleConfigGet)
	r.Post("/config", s.handleConfigPost)

	s.httpServer = &http.Server{
		Addr:         opts.ListenAddr,
		Handler:      r,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 15 * time.Second,
	}
	return s
}

func (s *Server) ListenAndServe() error { return s.httpServer.ListenAndServe() }

func (s *Server) Shutdown(ctx context.Context) error { return s.httpServer.Shutdown(ctx) }
