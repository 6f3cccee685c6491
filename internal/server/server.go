// Package server sets up the HTTP server, router, and all route definitions.
//
// SERVER ARCHITECTURE:
// This package is the "wiring" layer. It connects handlers, middleware and
// routes, and decides:
// - Which URL patterns map to which handler functions
// - What middleware runs on which routes
// - How the server starts and stops gracefully
//
// DEPENDENCY INJECTION FLOW:
// cmd/server opens the store, the asset host and Redis, then hands them to
// New in a Deps value:
//
//	Deps.Store (repositories) → services → handlers → routes
//
// This is the "composition root" pattern: every dependency is wired in one
// place instead of being reached for through package-level globals.
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
	"github.com/go-chi/cors"
	"github.com/redis/go-redis/v9"

	"github.com/sakif/projectshelf/internal/auth"
	"github.com/sakif/projectshelf/internal/config"
	"github.com/sakif/projectshelf/internal/handler"
	"github.com/sakif/projectshelf/internal/media"
	"github.com/sakif/projectshelf/internal/metrics"
	"github.com/sakif/projectshelf/internal/middleware"
	"github.com/sakif/projectshelf/internal/repository"
	"github.com/sakif/projectshelf/internal/service"
)

const (
	shutdownTimeout = 30 * time.Second
	authRateBucket  = "auth"
)

// Store groups the three repositories of one backend.
type Store struct {
	Users     repository.UserRepository
	Projects  repository.ProjectRepository
	Analytics repository.AnalyticsRepository
}

// Deps is everything the server needs from the outside world. Media and
// Redis are optional: a nil Media turns the media routes into 501s and a nil
// Redis disables rate limiting.
type Deps struct {
	Config  *config.Config
	Store   Store
	Media   media.Host
	Redis   *redis.Client
	Metrics *metrics.Metrics
	Logger  *slog.Logger
}

// Server represents the HTTP server and its router. Resources in Deps are
// owned by the caller, which closes them after Start returns.
type Server struct {
	router http.Handler
	config *config.Config
	logger *slog.Logger
}

// New builds the services and handlers and wires the routes.
func New(deps Deps) (*Server, error) {
	if deps.Config == nil {
		return nil, errors.New("server: config is required")
	}
	if deps.Logger == nil {
		deps.Logger = slog.Default()
	}
	if deps.Metrics == nil {
		deps.Metrics = metrics.New()
	}

	router, err := newRouter(deps)
	if err != nil {
		return nil, err
	}

	return &Server{
		router: router,
		config: deps.Config,
		logger: deps.Logger,
	}, nil
}

// Handler exposes the router, mainly so tests can drive it with httptest.
func (s *Server) Handler() http.Handler {
	return s.router
}

// newRouter configures all middleware and route handlers.
//
// ROUTE STRUCTURE:
//
//	GET    /healthz, /metrics
//	       /api/auth/*        register, login, google, google/callback, me
//	       /api/projects/*    CRUD, public view, engagement and view counters
//	       /api/users/*       profile, theme, portfolio, public profile
//	       /api/analytics/*   page-view, project-view, dashboard, user
//	       /api/media/*       upload, video-url, delete
//
// MIDDLEWARE ORDER MATTERS:
// Middleware executes in the order it's added. Logger and Metrics wrap
// Recoverer so a panic is still logged and counted as a 500.
func newRouter(deps Deps) (http.Handler, error) {
	cfg, logger := deps.Config, deps.Logger

	// === Auth primitives ===
	tokens, err := auth.NewTokenService(cfg.JWTSecret, cfg.TokenTTL)
	if err != nil {
		return nil, fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService(cfg.BcryptCost)

	var google *auth.GoogleProvider
	if cfg.GoogleEnabled() {
		google = auth.NewGoogleProvider(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleCallbackURL)
	} else {
		logger.Info("google sign-in not configured, /api/auth/google answers 501")
	}

	// === Services ===
	store := deps.Store
	analyticsService := service.NewAnalyticsService(store.Users, store.Projects, store.Analytics, deps.Metrics, logger)
	authService := service.NewAuthService(store.Users, tokens, passwords, deps.Metrics, logger)
	userService := service.NewUserService(store.Users, store.Projects, passwords, analyticsService, logger)
	projectService := service.NewProjectService(store.Projects, store.Users, analyticsService, cfg.CountOwnerViews, logger)
	mediaService := service.NewMediaService(deps.Media, deps.Metrics, logger)

	// === Handlers ===
	authHandler := handler.NewAuthHandler(authService, google, cfg.ClientURL, logger)
	projectHandler := handler.NewProjectHandler(projectService, logger)
	userHandler := handler.NewUserHandler(userService, logger)
	analyticsHandler := handler.NewAnalyticsHandler(analyticsService, logger)
	mediaHandler := handler.NewMediaHandler(mediaService, cfg.MaxUploadBytes(), logger)

	requireAuth := auth.RequireAuth(tokens, store.Users)
	optionalAuth := auth.OptionalAuth(tokens, store.Users)
	limiter := middleware.NewRateLimiter(deps.Redis, cfg.AuthRateLimit, cfg.AuthRateWindow, deps.Metrics, logger)

	// === Global Middleware ===
	r := chi.NewRouter()
	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(middleware.Logger(logger))
	r.Use(middleware.Metrics(deps.Metrics))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.DebugErrors(cfg.IsDevelopment()))
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   []string{cfg.ClientURL},
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Retry-After"},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	r.Get("/healthz", handler.HandleHealth)
	r.Handle("/metrics", deps.Metrics.Handler())

	// === API Routes ===
	r.Route("/api", func(r chi.Router) {
		r.Route("/auth", func(r chi.Router) {
			r.With(limiter.Limit(authRateBucket)).Post("/register", authHandler.HandleRegister)
			r.With(limiter.Limit(authRateBucket)).Post("/login", authHandler.HandleLogin)
			r.Get("/google", authHandler.HandleGoogleLogin)
			r.Get("/google/callback", authHandler.HandleGoogleCallback)
			r.With(requireAuth).Get("/me", authHandler.HandleMe)
		})

		r.Route("/projects", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/", projectHandler.HandleList)
				r.Post("/", projectHandler.HandleCreate)
				r.Put("/{id}", projectHandler.HandleUpdate)
				r.Delete("/{id}", projectHandler.HandleDelete)
			})
			r.Group(func(r chi.Router) {
				r.Use(optionalAuth)
				r.Get("/{id}", projectHandler.HandleGet)
				r.Get("/{id}/public", projectHandler.HandleGetPublic)
			})
			r.Put("/{id}/engagement", projectHandler.HandleEngagement)
			r.Post("/{id}/analytics/view", projectHandler.HandleView)
			r.Post("/{id}/analytics/engage", projectHandler.HandleEngagement)
		})

		r.Route("/users", func(r chi.Router) {
			r.Group(func(r chi.Router) {
				r.Use(requireAuth)
				r.Get("/profile", userHandler.HandleGetProfile)
				r.Put("/profile", userHandler.HandleUpdateProfile)
				r.Put("/theme", userHandler.HandleUpdateTheme)
			})
			r.Get("/portfolio/{username}", userHandler.HandlePortfolio)
			r.Get("/{username}", userHandler.HandlePublicProfile)
		})

		r.Route("/analytics", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/page-view", analyticsHandler.HandlePageView)
			r.Post("/project-view/{projectId}", analyticsHandler.HandleProjectView)
			r.Get("/dashboard", analyticsHandler.HandleDashboard)
			r.Get("/user", analyticsHandler.HandleUserAnalytics)
		})

		r.Route("/media", func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/upload", mediaHandler.HandleUpload)
			r.Post("/video-url", mediaHandler.HandleVideoURL)
			r.Delete("/*", mediaHandler.HandleDelete)
		})
	})

	return r, nil
}

// Start serves HTTP until ctx is cancelled, SIGINT/SIGTERM arrives or the
// listener fails.
//
// GRACEFUL SHUTDOWN:
// 1. Stop accepting new HTTP connections
// 2. Wait for in-flight requests to finish (30s timeout)
// 3. Return, so the caller can close the store and other clients
func (s *Server) Start(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.config.Addr(),
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
		ReadTimeout:       60 * time.Second, // media uploads
		WriteTimeout:      60 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.String("addr", srv.Addr),
			slog.String("env", s.config.Env),
			slog.String("db_driver", s.config.DBDriver),
			slog.String("media_backend", s.config.MediaBackend),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))
	case <-ctx.Done():
		s.logger.Info("shutdown requested", slog.String("reason", ctx.Err().Error()))
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("graceful shutdown failed: %w", err)
	}
	s.logger.Info("server stopped gracefully")
	return nil
}
