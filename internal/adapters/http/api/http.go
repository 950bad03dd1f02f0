// Package api declares HTTP contracts and route registration helpers.
package api

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	service "github.com/okian/allot/internal/app"
	"github.com/okian/allot/internal/domain/model"
	"github.com/okian/allot/pkg/logger"
)

// Dependencies required by HTTP handlers. Using an interface bundle keeps
// the handler layer loosely coupled to implementations in other packages.
type Dependencies interface {
	PhaseDependencies
	ProjectDependencies
	StatsProvider

	Healthy(ctx context.Context) error
}

// PhaseDependencies covers the phase lifecycle and allocation triggers.
type PhaseDependencies interface {
	CreatePhase(ctx context.Context, in service.PhaseInput) (model.Phase, error)
	ListPhases(ctx context.Context) ([]model.Phase, error)
	GetPhase(ctx context.Context, id string) (model.Phase, error)
	DeletePhase(ctx context.Context, id string) error
	SetPhaseEmployees(ctx context.Context, id string, members []model.Member) (model.Phase, error)
	SetPhaseProjects(ctx context.Context, id string, titles []string) (model.Phase, error)
	SetActive(ctx context.Context, id string, active bool) (model.Phase, error)
	AllocatePhase(ctx context.Context, id string) (service.AllocationResult, error)
	ResetPhase(ctx context.Context, id string) (model.Phase, error)
	RecomputeStats(ctx context.Context, id string) (model.PhaseStats, error)
}

// ProjectDependencies covers project reads and closing.
type ProjectDependencies interface {
	ListProjects(ctx context.Context) ([]model.Project, error)
	GetProject(ctx context.Context, title string) (model.Project, error)
	CloseProject(ctx context.Context, title string) ([]string, error)
}

// Server wires HTTP routes for the business API.
type Server struct {
	healthHandler  *HealthHandler
	statsHandler   *StatsHandler
	phaseHandler   *PhaseHandler
	projectHandler *ProjectHandler

	corsOrigins    []string
	requestTimeout time.Duration
	logger         logger.Logger
}

// Option configures a Server.
type Option func(*Server)

// WithCORSOrigins sets the allowed CORS origins. Empty allows any origin.
func WithCORSOrigins(origins []string) Option {
	return func(s *Server) {
		s.corsOrigins = origins
	}
}

// WithRequestTimeout bounds every request's context.
func WithRequestTimeout(d time.Duration) Option {
	return func(s *Server) {
		if d > 0 {
			s.requestTimeout = d
		}
	}
}

// WithLogger sets the request logger.
func WithLogger(l logger.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewServer creates a new API server with all handlers.
func NewServer(deps Dependencies, opts ...Option) *Server {
	s := &Server{
		healthHandler:  NewHealthHandler(deps),
		statsHandler:   NewStatsHandler(deps),
		phaseHandler:   NewPhaseHandler(deps),
		projectHandler: NewProjectHandler(deps),
		requestTimeout: 60 * time.Second,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = logger.Get().Named("http")
	}
	return s
}

// Router builds the chi router carrying every route.
func (s *Server) Router() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(s.loggingMiddleware)
	r.Use(middleware.Timeout(s.requestTimeout))
	r.Use(cors.Handler(s.corsOptions()))

	s.Register(r)
	return r
}

// Register attaches all HTTP routes to r.
func (s *Server) Register(r chi.Router) {
	r.Get("/healthz", MetricsMiddleware(s.healthHandler.HandleHealth, "healthz"))
	r.Handle("/metrics", s.healthHandler.MetricsHandler())
	r.Get("/stats", MetricsMiddleware(s.statsHandler.HandleStats, "stats"))

	r.Route("/phases", func(r chi.Router) {
		r.Post("/", MetricsMiddleware(s.phaseHandler.HandleCreate, "phases.create"))
		r.Get("/", MetricsMiddleware(s.phaseHandler.HandleList, "phases.list"))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", MetricsMiddleware(s.phaseHandler.HandleGet, "phases.get"))
			r.Delete("/", MetricsMiddleware(s.phaseHandler.HandleDelete, "phases.delete"))
			r.Put("/employees", MetricsMiddleware(s.phaseHandler.HandleSetEmployees, "phases.employees"))
			r.Put("/projects", MetricsMiddleware(s.phaseHandler.HandleSetProjects, "phases.projects"))
			r.Patch("/active", MetricsMiddleware(s.phaseHandler.HandleSetActive, "phases.active"))
			r.Post("/allocate", MetricsMiddleware(s.phaseHandler.HandleAllocate, "phases.allocate"))
			r.Post("/reset", MetricsMiddleware(s.phaseHandler.HandleReset, "phases.reset"))
			r.Post("/stats", MetricsMiddleware(s.phaseHandler.HandleStats, "phases.stats"))
		})
	})

	r.Route("/projects", func(r chi.Router) {
		r.Get("/", MetricsMiddleware(s.projectHandler.HandleList, "projects.list"))
		r.Get("/{title}", MetricsMiddleware(s.projectHandler.HandleGet, "projects.get"))
		r.Post("/{title}/close", MetricsMiddleware(s.projectHandler.HandleClose, "projects.close"))
	})
}

func (s *Server) corsOptions() cors.Options {
	origins := s.corsOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}
	return cors.Options{
		AllowedOrigins: origins,
		AllowedMethods: []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Authorization", "Content-Type"},
		MaxAge:         300,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func decodeJSON(r *http.Request, v any) error {
	dec := json.NewDecoder(r.Body)
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return badRequest(err)
	}
	return nil
}
