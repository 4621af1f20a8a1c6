// Package server provides the HTTP server implementation.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/aivanceworks/leadform/internal/config"
	"github.com/aivanceworks/leadform/internal/forms"
	"github.com/aivanceworks/leadform/internal/handlers"
	"github.com/aivanceworks/leadform/internal/metrics"
	"github.com/aivanceworks/leadform/internal/middleware"
	"github.com/aivanceworks/leadform/internal/ratelimit"
	"github.com/aivanceworks/leadform/pkg/logger"
)

// Server represents the HTTP server.
type Server struct {
	cfg               *config.Config
	log               *logger.Logger
	httpServer        *http.Server
	healthHandler     *handlers.HealthHandler
	contactHandler    *handlers.ContactHandler
	newsletterHandler *handlers.NewsletterHandler
	apiLimiter        ratelimit.Limiter
	listener          net.Listener
	running           bool
	mu                sync.RWMutex
}

// New creates a new Server instance. Form pipelines are attached with
// SetContactService and SetNewsletterService before Start.
func New(cfg *config.Config, log *logger.Logger) *Server {
	s := &Server{
		cfg:           cfg,
		log:           log,
		healthHandler: handlers.NewHealthHandler(),
	}

	if cfg.API.Enabled() {
		limiter, err := ratelimit.NewSlidingWindow(ratelimit.Config{
			Requests:        cfg.API.Requests,
			Window:          cfg.API.Window,
			CleanupInterval: cfg.API.CleanupInterval,
		})
		if err != nil {
			log.Error("API rate limit disabled", "error", err)
		} else {
			s.apiLimiter = limiter
			log.Info("API rate limiting enabled",
				"requests", cfg.API.Requests,
				"window", cfg.API.Window.String(),
			)
		}
	}

	mux := http.NewServeMux()
	s.registerRoutes(mux)

	s.httpServer = &http.Server{
		Addr:         cfg.Server.Address(),
		Handler:      s.buildMiddlewareChain(mux),
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	return s
}

// buildMiddlewareChain creates the middleware chain for the server.
func (s *Server) buildMiddlewareChain(handler http.Handler) http.Handler {
	return middleware.New(
		middleware.Recover(s.log),
		middleware.Metrics(),
		middleware.RequestID(),
		middleware.ClientIP(s.cfg.ClientIP.UseRemoteAddr),
		middleware.Logging(s.log),
	).Then(handler)
}

// registerRoutes sets up the HTTP routes.
func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /health", s.healthHandler.Health)
	mux.HandleFunc("GET /ready", s.healthHandler.Ready)
	mux.Handle("GET /metrics", metrics.Handler())

	api := middleware.New()
	if s.apiLimiter != nil {
		api = api.Append(middleware.RateLimit(s.apiLimiter, "api"))
	}

	mux.Handle("POST /api/contact", api.ThenFunc(s.handleContact))
	mux.Handle("POST /api/newsletter", api.ThenFunc(s.handleNewsletter))
	mux.Handle("POST /api/newsletter/unsubscribe", api.ThenFunc(s.handleUnsubscribe))
}

// handleContact routes to the contact handler.
func (s *Server) handleContact(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	h := s.contactHandler
	s.mu.RUnlock()

	if h == nil {
		s.writeUnavailable(w)
		return
	}
	h.Submit(w, r)
}

// handleNewsletter routes to the newsletter handler.
func (s *Server) handleNewsletter(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	h := s.newsletterHandler
	s.mu.RUnlock()

	if h == nil {
		s.writeUnavailable(w)
		return
	}
	h.Subscribe(w, r)
}

// handleUnsubscribe routes to the newsletter handler's removal endpoint.
func (s *Server) handleUnsubscribe(w http.ResponseWriter, r *http.Request) {
	s.mu.RLock()
	h := s.newsletterHandler
	s.mu.RUnlock()

	if h == nil {
		s.writeUnavailable(w)
		return
	}
	h.Unsubscribe(w, r)
}

// writeUnavailable answers a form route whose pipeline is not wired.
func (s *Server) writeUnavailable(w http.ResponseWriter) {
	msg := "This form is temporarily unavailable."
	if addr := s.cfg.Email.TeamAddress; addr != "" {
		msg = fmt.Sprintf("This form is temporarily unavailable. Please email us at %s.", addr)
	}
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusServiceUnavailable)
	_ = json.NewEncoder(w).Encode(forms.Failed(forms.OutcomeUnexpected, msg))
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	addr := s.cfg.Server.Address()

	// Create listener first to get the actual address (important when port is 0)
	listener, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("failed to create listener: %w", err)
	}

	s.mu.Lock()
	s.listener = listener
	s.running = true
	s.mu.Unlock()

	s.log.Info("server starting", "address", listener.Addr().String())

	err = s.httpServer.Serve(listener)
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		s.mu.Lock()
		s.running = false
		s.mu.Unlock()
		return fmt.Errorf("server error: %w", err)
	}

	return nil
}

// Shutdown gracefully shuts down the server.
func (s *Server) Shutdown(ctx context.Context) error {
	s.log.Info("server shutting down")

	// Mark as not ready during shutdown
	s.healthHandler.SetReady(false)

	err := s.httpServer.Shutdown(ctx)

	if s.apiLimiter != nil {
		if closeErr := s.apiLimiter.Close(); closeErr != nil {
			s.log.Error("failed to close rate limiter", "error", closeErr)
		}
	}

	s.mu.Lock()
	s.running = false
	s.mu.Unlock()

	if err != nil {
		s.log.Error("shutdown error", "error", err)
		return err
	}

	s.log.Info("server stopped")
	return nil
}

// IsRunning returns whether the server is running.
func (s *Server) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.running
}

// Addr returns the server's address.
func (s *Server) Addr() string {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.listener != nil {
		return s.listener.Addr().String()
	}
	return ""
}

// Handler returns the fully wrapped HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

// HealthHandler returns the health handler.
func (s *Server) HealthHandler() *handlers.HealthHandler {
	return s.healthHandler
}

// SetContactService wires the contact pipeline to POST /api/contact.
func (s *Server) SetContactService(svc handlers.ContactSubmitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.contactHandler = handlers.NewContactHandler(svc, s.cfg.Server.MaxBodyBytes, s.cfg.Email.TeamAddress, s.log)
}

// SetNewsletterService wires the newsletter pipeline to POST /api/newsletter.
func (s *Server) SetNewsletterService(svc handlers.NewsletterSubscriber) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.newsletterHandler = handlers.NewNewsletterHandler(svc, s.cfg.Server.MaxBodyBytes, s.cfg.Email.TeamAddress, s.log)
}
