// Package api provides the HTTP API server and handlers for the book review feed.
package api

import (
	"log/slog"
	"net/http"

	"github.com/danielgtaylor/huma/v2"
	"github.com/danielgtaylor/huma/v2/adapters/humachi"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/listenupapp/bookreviews-server/internal/dto"
	"github.com/listenupapp/bookreviews-server/internal/ratelimit"
	"github.com/listenupapp/bookreviews-server/internal/sse"
	"github.com/listenupapp/bookreviews-server/internal/validation"
)

// Options configures the server surface.
type Options struct {
	Title       string
	Version     string
	CORSOrigins []string

	// RegisterRPS and RegisterBurst limit user registration per client IP.
	RegisterRPS   float64
	RegisterBurst int
}

// Server holds dependencies for HTTP handlers.
type Server struct {
	services   *Services
	sseManager *sse.Manager
	sseHandler *sse.Handler
	validator  *validation.Validator
	limiter    *ratelimit.KeyedRateLimiter
	router     *chi.Mux
	api        huma.API
	logger     *slog.Logger
}

// NewServer creates a new HTTP server with all routes configured.
func NewServer(services *Services, sseManager *sse.Manager, opts Options, logger *slog.Logger) *Server {
	if opts.Title == "" {
		opts.Title = "Book Reviews API"
	}
	if opts.Version == "" {
		opts.Version = "1.0.0"
	}
	if opts.RegisterRPS <= 0 {
		opts.RegisterRPS = 1
	}
	if opts.RegisterBurst <= 0 {
		opts.RegisterBurst = 5
	}

	s := &Server{
		services:   services,
		sseManager: sseManager,
		validator:  validation.New(),
		limiter:    ratelimit.New(opts.RegisterRPS, opts.RegisterBurst),
		router:     chi.NewRouter(),
		logger:     logger,
	}
	if sseManager != nil {
		s.sseHandler = sse.NewHandler(sseManager, UserIDFromRequest, logger)
	}

	s.setupMiddleware(opts.CORSOrigins)

	humaConfig := huma.DefaultConfig(opts.Title, opts.Version)
	humaConfig.Components.SecuritySchemes = map[string]*huma.SecurityScheme{
		"bearer": {
			Type:         "http",
			Scheme:       "bearer",
			BearerFormat: "JWT",
		},
	}
	humaConfig.Transformers = append(humaConfig.Transformers, EnvelopeTransformer)

	s.api = humachi.New(s.router, humaConfig)
	RegisterErrorHandler()

	s.setupRoutes()

	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// Close stops background work owned by the server.
func (s *Server) Close() {
	s.limiter.Stop()
}

// setupMiddleware configures middleware stack.
func (s *Server) setupMiddleware(origins []string) {
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	s.router.Use(middleware.RequestID)
	s.router.Use(middleware.RealIP)
	s.router.Use(middleware.Recoverer)
	s.router.Use(cors.Handler(cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type", "If-None-Match"},
		ExposedHeaders: []string{"ETag"},
		MaxAge:         300,
	}))
	s.router.Use(authMiddleware(s.services.Verifier))
}

// setupRoutes configures all HTTP routes.
func (s *Server) setupRoutes() {
	s.registerHealthRoutes()
	s.registerFeedRoutes()
	s.registerReviewRoutes()
	s.registerEditRoutes()
	s.registerUserRoutes()
	s.registerBookRoutes()
	s.registerSessionRoutes()

	// Binary and streaming routes bypass huma.
	s.router.Get(dto.CoverRoute, s.handleGetCover)
	s.router.Get(dto.AvatarRoute+"{userID}", s.handleGetAvatar)
	if s.sseHandler != nil {
		s.router.Get("/api/v1/sync/stream", s.sseHandler.ServeHTTP)
	}
}
