// Package server sets up the HTTP server, router, and all route definitions.
//
// This is the composition root: New builds every service and handler from
// the configuration and the already-open store, and setupRoutes decides which
// URL maps to which handler and which middleware wraps it.
//
//	main.go:      config.Load → backend.Open → server.New → Start
//	server.New:   TokenService, GitHubProvider → AuthService   → AuthHandler
//	              KeyValueStore                → CounterService → CounterHandler
package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"

	"github.com/sakif/blog-edge/internal/auth"
	"github.com/sakif/blog-edge/internal/config"
	"github.com/sakif/blog-edge/internal/handler"
	"github.com/sakif/blog-edge/internal/middleware"
	"github.com/sakif/blog-edge/internal/repository"
	"github.com/sakif/blog-edge/internal/service"
)

const (
	readTimeout     = 15 * time.Second
	writeTimeout    = 15 * time.Second
	idleTimeout     = 60 * time.Second
	shutdownTimeout = 30 * time.Second
)

// Server represents the HTTP server and all its dependencies.
//
// The Server owns the store: Start closes it after the listener has drained.
type Server struct {
	router *chi.Mux
	config *config.Config
	logger *slog.Logger
	store  repository.KeyValueStore
}

// New wires the application onto a chi router.
func New(cfg *config.Config, store repository.KeyValueStore, logger *slog.Logger) (*Server, error) {
	tokens, err := auth.NewTokenService(cfg.Auth.JWTSecret)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}

	github := auth.NewGitHubProvider(auth.GitHubConfig{
		ClientID:     cfg.Auth.GitHubClientID,
		ClientSecret: cfg.Auth.GitHubClientSecret,
		CallbackURL:  cfg.CallbackURL(),
		Timeout:      cfg.Auth.UpstreamTimeout,
	})

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		store:  store,
	}
	s.setupRoutes(tokens, github)
	return s, nil
}

// Handler returns the root handler. Tests drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// setupRoutes configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
// GET     /healthz               → store ping
// GET     /api/auth/login        → redirect to GitHub
// GET     /api/auth/callback     → finish login, set session cookie
// POST    /api/auth/logout       → clear session cookie
// GET     /api/auth/user         → current identity or null
// GET     /api/visits/{slug}     → view count
// POST    /api/visits/{slug}     → record a view          (rate limited)
// OPTIONS /api/visits/{slug}     → CORS preflight
// GET     /api/likes/{slug}      → like count + hasLiked
// POST    /api/likes/{slug}      → toggle like            (rate limited)
//
// MIDDLEWARE ORDER:
// 1. RequestID: unique ID per request, read by the logger
// 2. RealIP: client IP from proxy headers, only with server.trust_proxy;
//    otherwise the socket address is the client IP for logger and limiter
// 3. Logger
// 4. Recoverer: a panic becomes a 500 instead of killing the process
// 5. CORS (API routes only)
// 6. OptionalAuth: attaches the session to the context (API routes only)
func (s *Server) setupRoutes(tokens *auth.TokenService, github *auth.GitHubProvider) {
	s.router.Use(chimiddleware.RequestID)
	if s.config.Server.TrustProxy {
		s.router.Use(chimiddleware.RealIP)
	}
	s.router.Use(middleware.Logger(s.logger))
	s.router.Use(chimiddleware.Recoverer)
	s.router.NotFound(handler.NotFound)

	counters := service.NewCounterService(s.store, s.config.Store.Timeout, s.logger)
	authService := service.NewAuthService(github, tokens, s.logger)

	authHandler := handler.NewAuthHandler(authService, auth.CookieOptions{Secure: s.config.Auth.CookieSecure}, s.logger)
	counterHandler := handler.NewCounterHandler(counters, s.logger)
	healthHandler := handler.NewHealthHandler(counters, s.logger)

	limiter := middleware.NewIPRateLimiter(
		s.config.RateLimit.Requests,
		s.config.RateLimit.Window,
		s.config.RateLimit.Burst,
		0,
	)
	limited := middleware.RateLimit(limiter, s.logger)

	s.router.Get("/healthz", healthHandler.HandleHealth)

	s.router.Route("/api", func(r chi.Router) {
		r.Use(middleware.CORS(s.config.CORS.AllowOrigin))
		r.Use(auth.OptionalAuth(tokens, s.logger))

		r.Route("/auth", func(r chi.Router) {
			r.Get("/login", authHandler.HandleLogin)
			r.Get("/callback", authHandler.HandleCallback)
			r.Post("/logout", authHandler.HandleLogout)
			r.Get("/user", authHandler.HandleUser)
		})

		r.Route("/visits/{slug}", func(r chi.Router) {
			r.Get("/", counterHandler.HandleGetViews)
			r.With(limited).Post("/", counterHandler.HandleIncrementViews)
			r.Options("/", counterHandler.HandleViewsPreflight)
		})

		r.Route("/likes/{slug}", func(r chi.Router) {
			r.Get("/", counterHandler.HandleGetLikes)
			r.With(limited).Post("/", counterHandler.HandleToggleLike)
		})
	})
}

// Start runs the HTTP server until SIGINT or SIGTERM, then shuts down
// gracefully:
//  1. Stop accepting new connections
//  2. Wait up to 30s for in-flight requests
//  3. Close the store
func (s *Server) Start() error {
	defer s.store.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Server.Port),
		Handler:      s.router,
		ReadTimeout:  readTimeout,
		WriteTimeout: writeTimeout,
		IdleTimeout:  idleTimeout,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)
	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Server.Port),
			slog.String("baseURL", s.config.Server.BaseURL),
			slog.String("store", s.config.Store.Backend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}
