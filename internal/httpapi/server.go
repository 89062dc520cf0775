// Package httpapi exposes the automation pipeline and the editorial
// workflow over HTTP.
package httpapi

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"TravelReport/internal/domain"
	"TravelReport/internal/metrics"
	"TravelReport/internal/ports"
	"TravelReport/internal/usecase"
)

// Ingestor triggers automation runs and reports cumulative counters.
type Ingestor interface {
	IngestContent(ctx context.Context) (*domain.RunReport, error)
	Stats() usecase.Stats
}

// Reviewer handles submission intake and review.
type Reviewer interface {
	Submit(ctx context.Context, sub domain.Submission) (domain.Submission, error)
	Approve(ctx context.Context, id string, overrides usecase.ApprovalOverrides) (domain.Story, error)
	Reject(ctx context.Context, id, reviewer, reason string) (domain.Submission, error)
}

// Server is the HTTP control surface.
type Server struct {
	ingestor Ingestor
	reviewer Reviewer
	repo     ports.StoryRepository
	metrics  *metrics.Metrics
	logger   *slog.Logger
	router   chi.Router
}

// NewServer builds the router. Metrics may be nil; /metrics then returns 404.
func NewServer(ingestor Ingestor, reviewer Reviewer, repo ports.StoryRepository, m *metrics.Metrics, logger *slog.Logger) *Server {
	s := &Server{
		ingestor: ingestor,
		reviewer: reviewer,
		repo:     repo,
		metrics:  m,
		logger:   logger,
	}
	s.router = s.routes()
	return s
}

// Handler returns the root handler for an http.Server.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(120 * time.Second))

	r.Route("/api", func(r chi.Router) {
		r.Route("/automation", func(r chi.Router) {
			r.Post("/ingest", makeHandler(s.logger, s.handleIngest))
			r.Get("/stats", makeHandler(s.logger, s.handleStats))
		})
		r.Route("/submissions", func(r chi.Router) {
			r.Post("/", makeHandler(s.logger, s.handleSubmit))
			r.Post("/{id}/approve", makeHandler(s.logger, s.handleApprove))
			r.Post("/{id}/reject", makeHandler(s.logger, s.handleReject))
		})
		r.Route("/stories", func(r chi.Router) {
			r.Get("/", makeHandler(s.logger, s.handleListStories))
			r.Get("/{slug}", makeHandler(s.logger, s.handleGetStory))
		})
	})

	if s.metrics != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(
			s.metrics.Registry(), promhttp.HandlerOpts{}))
	}
	return r
}
