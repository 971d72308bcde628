// Package api serves the flight-history REST API and the job websocket.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/unklstewy/flighttrail/internal/auth"
	"github.com/unklstewy/flighttrail/internal/collector"
	"github.com/unklstewy/flighttrail/internal/db"
	"github.com/unklstewy/flighttrail/internal/history"
	"github.com/unklstewy/flighttrail/pkg/opensky"
	"go.uber.org/zap"
)

// StatsSource reports ledger statistics.
type StatsSource interface {
	GetStats(ctx context.Context) (*db.Stats, error)
}

// Options are the dependencies of a Server. Nil collaborators disable the
// routes that need them.
type Options struct {
	Feed           collector.Feed
	Limits         *opensky.RateLimitTracker
	FeedConfigured bool // OAuth2 credentials are set

	Writer        *history.Writer
	Reconstructor *history.Reconstructor
	Settings      *history.SettingsCache
	Collector     *collector.Collector
	Stats         StatsSource
	Health        func(ctx context.Context) error

	Auth           *auth.Service
	Hub            *Hub
	AllowedOrigins []string
	Logger         *zap.Logger
}

// Server holds the HTTP router and its dependencies
type Server struct {
	router chi.Router
	opts   Options
	logger *zap.Logger
	now    func() time.Time
}

// NewServer creates a server with all routes registered.
func NewServer(opts Options) *Server {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Limits == nil {
		opts.Limits = opensky.NewRateLimitTracker()
	}
	if opts.Writer == nil {
		opts.Writer = history.NewWriter(nil, opts.Logger)
	}
	if opts.Reconstructor == nil {
		opts.Reconstructor = history.NewReconstructor(nil, opts.Logger)
	}
	if opts.Settings == nil {
		opts.Settings = history.NewSettingsCache(nil, 0, opts.Logger)
	}
	if opts.Auth == nil {
		opts.Auth = auth.NewService(auth.Config{})
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}

	s := &Server{
		router: chi.NewRouter(),
		opts:   opts,
		logger: opts.Logger.Named("api"),
		now:    time.Now,
	}
	s.setupRoutes()
	return s
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() {
	r := s.router

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.RequestLogger(&middleware.DefaultLogFormatter{
		Logger:  zap.NewStdLog(s.logger.Named("http")),
		NoColor: true,
	}))
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins: s.opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}))

	r.Get("/healthz", s.handleHealth)

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Compress(5))

		r.Get("/flights", s.handleGetFlights)
		r.Post("/positions", s.handlePostPositions)

		r.Get("/trajectories", s.handleGetTrajectories)
		r.Get("/trajectories/{icao}", s.handleGetTrajectory)
		r.Get("/trajectories/{icao}/position", s.handleGetCurrentPosition)
		r.Get("/aircraft/{icao}/history", s.handleGetHistory)

		r.Get("/stats", s.handleGetStats)
		r.Get("/settings", s.handleGetSettings)
		r.With(s.opts.Auth.Require(auth.RoleAdmin)).Put("/settings", s.handlePutSetting)
	})

	r.With(s.opts.Auth.Require(auth.RoleCron)).Get("/api/cron/flights", s.handleCron)
	r.Get("/api/opensky/status", s.handleFeedStatus)

	if s.opts.Hub != nil {
		r.Get("/ws", s.opts.Hub.ServeHTTP)
	}
}

func respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func respondError(w http.ResponseWriter, status int, message string) {
	respondJSON(w, status, map[string]string{"error": message})
}
