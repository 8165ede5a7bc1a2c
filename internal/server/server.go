// Package server exposes the session registry and the notification hub over
// HTTP and a WebSocket push channel.
package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"

	"github.com/timvw/command-center/internal/config"
	"github.com/timvw/command-center/internal/evaluator"
	"github.com/timvw/command-center/internal/events"
	"github.com/timvw/command-center/internal/model"
	ccotel "github.com/timvw/command-center/internal/otel"
)

// Sessions is the part of the session registry the server exposes.
type Sessions interface {
	Launch(ctx context.Context, req model.LaunchRequest) (model.Session, error)
	Kill(ctx context.Context, id string) error
	ListAll(ctx context.Context) []model.Session
	Status(ctx context.Context, id string) (model.Session, error)
	Get(id string) (model.Session, error)
	Capture(ctx context.Context, id string, lines int) (string, error)
	SendInput(ctx context.Context, id, text string) error
	SendKeys(ctx context.Context, id string, keys ...string) error
}

// Server holds the collaborators behind the HTTP surface. Set the exported
// fields before calling Handler or ListenAndServe.
type Server struct {
	Sessions Sessions
	Events   *events.Hub
	Gate     *events.Gate
	// Assessor is nil when the LLM evaluator is disabled.
	Assessor *evaluator.Assessor
	Metrics  *ccotel.Metrics
	Logger   *log.Logger
	// StaticDir, when set, is served at / for the browser dashboard.
	StaticDir string

	mu       sync.RWMutex
	projects []model.Project
	settings config.Settings
}

// SetCatalog replaces the project catalogue and the settings view. It is
// safe to call while serving.
func (s *Server) SetCatalog(projects []model.Project, settings config.Settings) {
	p := make([]model.Project, len(projects))
	copy(p, projects)
	s.mu.Lock()
	s.projects = p
	s.settings = settings
	s.mu.Unlock()
}

func (s *Server) catalog() ([]model.Project, config.Settings) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p := make([]model.Project, len(s.projects))
	copy(p, s.projects)
	return p, s.settings
}

// Handler builds the router.
func (s *Server) Handler() http.Handler {
	logger := s.logger()
	r := chi.NewRouter()
	r.Use(CORS)
	r.Use(RequestID)
	r.Use(Logger(logger))
	r.Use(Recovery(logger))

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", s.handleHealth)
		r.Get("/projects", s.handleProjects)
		r.Get("/settings", s.handleSettings)

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", s.handleListSessions)
			r.Post("/launch", s.handleLaunch)
			r.Route("/{id}", func(r chi.Router) {
				r.Delete("/", s.handleKill)
				r.Get("/status", s.handleStatus)
				r.Get("/output", s.handleOutput)
				r.Post("/input", s.handleInput)
				r.Post("/keys", s.handleKeys)
				r.Get("/evaluate", s.handleEvaluate)
			})
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", s.handleNotifications)
			r.Post("/read", s.handleMarkAllRead)
			r.Post("/{id}/read", s.handleMarkRead)
		})
	})

	r.Get("/ws", s.handleWS)

	if s.StaticDir != "" {
		r.Handle("/*", http.FileServer(http.Dir(s.StaticDir)))
	}
	return r
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 15 * time.Second,
		IdleTimeout:       60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger().Info("listening", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("shutdown: %w", err)
		}
		return nil
	case err, ok := <-errCh:
		if !ok {
			return nil
		}
		return fmt.Errorf("listen %s: %w", addr, err)
	}
}

func (s *Server) logger() *log.Logger {
	if s.Logger != nil {
		return s.Logger
	}
	return log.Default()
}
