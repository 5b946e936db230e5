// Package server wires the application together: database, services,
// handlers, middleware, routes, and the HTTP server lifecycle.
//
// This is the composition root — every dependency is constructed and
// connected here, so the rest of the codebase receives its collaborators
// instead of reaching for globals.
package server

import (
	"context"
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

	"github.com/chiral-app/chiral-server/internal/auth"
	"github.com/chiral-app/chiral-server/internal/devto"
	"github.com/chiral-app/chiral-server/internal/gemini"
	"github.com/chiral-app/chiral-server/internal/handler"
	"github.com/chiral-app/chiral-server/internal/middleware"
	sqliteRepo "github.com/chiral-app/chiral-server/internal/repository/sqlite"
	"github.com/chiral-app/chiral-server/internal/service"
)

// Config holds everything the server needs from the environment.
type Config struct {
	Port      int
	DBPath    string
	StaticDir string // optional: built SPA to serve at /, empty disables

	JWTSecret string

	GeminiAPIKey string
	GeminiAPIURL string // optional override, tests and regional endpoints

	GoogleClientID     string
	GoogleClientSecret string
	GoogleCallbackURL  string

	DevToAPIKey string
	DevToAPIURL string // optional override

	ClientURL string // CORS origin of the SPA
}

// Server owns the router and the resources that must be released on
// shutdown (currently just the database).
type Server struct {
	router *chi.Mux
	config Config
	logger *slog.Logger
	db     *sqliteRepo.DB
}

// New builds the full dependency graph and registers all routes.
func New(cfg Config, logger *slog.Logger) (*Server, error) {
	db, err := sqliteRepo.New(cfg.DBPath)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}

	s := &Server{
		router: chi.NewRouter(),
		config: cfg,
		logger: logger,
		db:     db,
	}

	if err := s.setupRoutes(); err != nil {
		db.Close()
		return nil, fmt.Errorf("setting up routes: %w", err)
	}

	return s, nil
}

func (s *Server) setupRoutes() error {
	// Global middleware, in order: request ID first so the logger can use
	// it, recoverer last-but-before-logger so panics still produce a log
	// line with a 500 status.
	s.router.Use(chimiddleware.RequestID)
	s.router.Use(chimiddleware.RealIP)
	s.router.Use(chimiddleware.Recoverer)
	s.router.Use(middleware.Logger(s.logger))

	if s.config.ClientURL != "" {
		s.router.Use(cors.Handler(cors.Options{
			AllowedOrigins:   []string{s.config.ClientURL},
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}

	// === auth plumbing ===
	tokens, err := auth.NewTokenService(s.config.JWTSecret)
	if err != nil {
		return fmt.Errorf("creating token service: %w", err)
	}
	passwords := auth.NewPasswordService()
	google := auth.NewGoogleProvider(
		s.config.GoogleClientID,
		s.config.GoogleClientSecret,
		s.config.GoogleCallbackURL,
	)

	// === outbound clients ===
	geminiClient := gemini.New(s.config.GeminiAPIKey)
	if s.config.GeminiAPIURL != "" {
		geminiClient = gemini.NewWithBaseURL(s.config.GeminiAPIKey, s.config.GeminiAPIURL)
	}
	devtoClient := devto.New(s.config.DevToAPIKey, s.logger)
	if s.config.DevToAPIURL != "" {
		devtoClient = devto.NewWithBaseURL(s.config.DevToAPIURL, s.logger)
	}

	// === services ===
	// s.db implements every repository interface; services only see the
	// interface they need.
	authService := service.NewAuthService(s.db, tokens, passwords, google, s.logger)
	highlightService := service.NewHighlightService(s.db, geminiClient, s.logger)
	noteService := service.NewNoteService(s.db, s.logger)
	savedService := service.NewSavedArticleService(s.db, s.logger)

	// === handlers ===
	authHandler := handler.NewAuthHandler(authService, s.logger)
	highlightHandler := handler.NewHighlightHandler(highlightService, s.logger)
	noteHandler := handler.NewNoteHandler(noteService, s.logger)
	articleHandler := handler.NewArticleHandler(devtoClient, savedService, s.logger)
	geminiHandler := handler.NewGeminiHandler(geminiClient, s.logger)

	requireAuth := auth.RequireAuth(tokens, s.db)

	s.router.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok"}`))
	})

	s.router.Route("/api", func(r chi.Router) {
		// Public: account creation, login, and the article proxy.
		r.Post("/auth/register", authHandler.HandleRegister)
		r.Post("/auth/login", authHandler.HandleLogin)
		r.Post("/google-login", authHandler.HandleGoogleLogin)
		r.Get("/articles", articleHandler.HandleList)

		// Static path must be registered alongside the {id} pattern; chi
		// matches the literal segment first.
		r.With(requireAuth).Get("/articles/by-interests", articleHandler.HandleByInterests)
		r.Get("/articles/{id}", articleHandler.HandleGet)

		// Everything below requires a valid bearer token.
		r.Group(func(r chi.Router) {
			r.Use(requireAuth)

			r.Get("/auth/profile", authHandler.HandleProfile)
			r.Put("/auth/interests", authHandler.HandleUpdateInterests)

			r.Post("/highlights", highlightHandler.HandleCreate)
			r.Get("/highlights", highlightHandler.HandleList)
			r.Get("/highlights/article/{articleId}", highlightHandler.HandleListByArticle)
			r.Get("/highlights/{id}", highlightHandler.HandleGet)
			r.Put("/highlights/{id}", highlightHandler.HandleUpdate)
			r.Delete("/highlights/{id}", highlightHandler.HandleDelete)
			r.Post("/highlights/{id}/explain", highlightHandler.HandleExplain)

			r.Post("/notes", noteHandler.HandleCreate)
			r.Get("/notes", noteHandler.HandleList)
			r.Get("/notes/{id}", noteHandler.HandleGet)
			r.Put("/notes/{id}", noteHandler.HandleUpdate)
			r.Delete("/notes/{id}", noteHandler.HandleDelete)
			r.Get("/notes/{id}/markdown", noteHandler.HandleMarkdown)

			r.Post("/saved-articles", articleHandler.HandleSave)
			r.Get("/saved-articles", articleHandler.HandleSavedList)
			r.Delete("/saved-articles/{id}", articleHandler.HandleSavedDelete)

			r.Post("/gemini/explain", geminiHandler.HandleExplain)
		})
	})

	// Optionally serve the built SPA. API routes above take precedence.
	if s.config.StaticDir != "" {
		fileServer := http.FileServer(http.Dir(s.config.StaticDir))
		s.router.Handle("/*", fileServer)
	}

	return nil
}

// Start runs the HTTP server until SIGINT/SIGTERM, then drains in-flight
// requests (30s budget) and closes the database so the WAL is flushed.
func (s *Server) Start() error {
	defer s.db.Close()

	srv := &http.Server{
		Addr:         fmt.Sprintf(":%d", s.config.Port),
		Handler:      s.router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second, // explanation calls can be slow
		IdleTimeout:  60 * time.Second,
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)

	serverErrors := make(chan error, 1)

	go func() {
		s.logger.Info("server starting",
			slog.Int("port", s.config.Port),
			slog.String("database", s.config.DBPath),
		)
		serverErrors <- srv.ListenAndServe()
	}()

	select {
	case err := <-serverErrors:
		if err != http.ErrServerClosed {
			return fmt.Errorf("server error: %w", err)
		}

	case sig := <-quit:
		s.logger.Info("shutdown signal received", slog.String("signal", sig.String()))

		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if err := srv.Shutdown(ctx); err != nil {
			return fmt.Errorf("graceful shutdown failed: %w", err)
		}
		s.logger.Info("server stopped gracefully")
	}

	return nil
}

// Router exposes the configured router for httptest-driven integration tests.
func (s *Server) Router() http.Handler {
	return s.router
}
