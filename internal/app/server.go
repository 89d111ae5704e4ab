package app

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog/log"

	"github.com/markdave123-py/Stratus/internal/api/handlers"
	appMiddleware "github.com/markdave123-py/Stratus/internal/api/middlewares"
	"github.com/markdave123-py/Stratus/internal/config"
	"github.com/markdave123-py/Stratus/internal/core/auth"
	"github.com/markdave123-py/Stratus/internal/metrics"
	"github.com/markdave123-py/Stratus/internal/services"
)

// Server wraps the HTTP server instance and its handlers.
type Server struct {
	httpServer *http.Server
}

// NewServer builds and wires all routes.
func NewServer(cfg *config.Config, users *services.UserService, docs *services.DocumentService, tokens *auth.TokenManager, reg *prometheus.Registry) *Server {
	return &Server{httpServer: &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewRouter(cfg, users, docs, tokens, reg),
		ReadHeaderTimeout: 10 * time.Second,
	}}
}

// NewRouter returns the full route tree.
func NewRouter(cfg *config.Config, users *services.UserService, docs *services.DocumentService, tokens *auth.TokenManager, reg *prometheus.Registry) http.Handler {
	authHandler := handlers.NewAuthHandler(users)
	docHandler := handlers.NewDocumentHandler(docs, cfg.MaxDirectUploadBytes)
	authLimiter := appMiddleware.NewRateLimiter(cfg.AuthRatePerMinute, cfg.AuthRateBurst)

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(appMiddleware.Logging)
	r.Use(appMiddleware.Recover)
	r.Use(metrics.Instrument)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		AllowCredentials: true,
	}))

	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"healthy"}`))
	})
	r.Handle("/metrics", metrics.Handler(reg))

	// API routes
	r.Route("/api", func(api chi.Router) {
		// public endpoints
		api.Group(func(public chi.Router) {
			public.Use(middleware.Timeout(30 * time.Second))
			public.Use(authLimiter.ByIP)
			public.Post("/signup", authHandler.Signup)
			public.Post("/login", authHandler.Login)
		})

		// protected endpoints
		api.Group(func(protected chi.Router) {
			protected.Use(appMiddleware.JWTMiddleware(tokens))

			protected.Group(func(short chi.Router) {
				short.Use(middleware.Timeout(60 * time.Second))
				short.Get("/get-upload-url/", docHandler.GetUploadURL)
				short.Get("/documents", docHandler.GetDocuments)
				short.Get("/documents/{id}", docHandler.GetDocument)
				short.Delete("/documents/{id}", docHandler.DeleteDocument)
			})

			// body transfers are bounded by size, not by wall clock
			protected.Post("/upload/", docHandler.UploadDocument)
			protected.Get("/documents/{id}/download", docHandler.DownloadDocument)
		})
	})

	return r
}

// Start runs the HTTP server until Shutdown is called.
func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln.
func (s *Server) Serve(ln net.Listener) error {
	log.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")
	if err := s.httpServer.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	log.Info().Msg("shutting down HTTP server")
	return s.httpServer.Shutdown(ctx)
}
