// Package app wires configuration into the running service.
package app

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	_ "github.com/lib/pq"

	"TravelReport/internal/config"
	"TravelReport/internal/httpapi"
	"TravelReport/internal/infrastructure/feed"
	"TravelReport/internal/infrastructure/llm"
	"TravelReport/internal/infrastructure/scheduler"
	"TravelReport/internal/infrastructure/unsplash"
	"TravelReport/internal/logging"
	"TravelReport/internal/metrics"
	"TravelReport/internal/ports"
	"TravelReport/internal/quality"
	"TravelReport/internal/rewrite"
	"TravelReport/internal/storage"
	"TravelReport/internal/usecase"
)

// Application wires configs to use cases and lifecycle orchestration.
type Application struct {
	cfg          config.Config
	logger       *slog.Logger
	orchestrator *usecase.Orchestrator
	scheduler    ports.Scheduler
	server       *http.Server
}

// New builds the full service graph. An empty database DSN selects the
// in-memory repository.
func New(ctx context.Context, cfg config.Config, baseLogger *slog.Logger) (*Application, error) {
	if baseLogger == nil {
		baseLogger = logging.New(cfg.Logging.Level)
	}

	repo, err := buildRepository(ctx, cfg, baseLogger)
	if err != nil {
		return nil, err
	}

	var (
		chat    ports.ChatCompleter
		classer ports.Classifier
	)
	if cfg.OpenAI.APIKey != "" {
		client := llm.NewClient(cfg.OpenAI, nil)
		chat = client
		classer = client
	}

	var imgsrc ports.ImageSource
	if cfg.Unsplash.AccessKey != "" {
		imgsrc = unsplash.NewClient(cfg.Unsplash, nil)
	}

	m := metrics.New()
	orchestrator := usecase.NewOrchestrator(
		feed.NewRSSIngestor(nil, cfg.Feeds, logging.Component(baseLogger, "feed")),
		repo,
		rewrite.NewRewriter(chat, cfg.OpenAI.SystemPrompt, logging.Component(baseLogger, "rewrite")),
		classer,
		imgsrc,
		quality.NewScorer(repo, qualityWeights(cfg), cfg.Pipeline.QualityThreshold),
		m,
		logging.Component(baseLogger, "orchestrator"),
		usecase.Options{
			MaxStoriesPerRun: cfg.Pipeline.MaxStoriesPerRun,
			Workers:          cfg.Pipeline.Workers,
			RewriteStrict:    cfg.Pipeline.RewriteStrict,
			RequestTimeout:   cfg.Pipeline.RequestTimeout.Std(),
		},
	)

	reviewer := usecase.NewSubmissionService(repo, imgsrc, logging.Component(baseLogger, "submissions"))
	api := httpapi.NewServer(orchestrator, reviewer, repo, m, logging.Component(baseLogger, "http"))

	return &Application{
		cfg:          cfg,
		logger:       baseLogger,
		orchestrator: orchestrator,
		scheduler: scheduler.NewIntervalScheduler(
			cfg.Scheduler.Interval.Std(), cfg.Scheduler.Location()),
		server: &http.Server{
			Addr:              cfg.HTTP.Addr,
			Handler:           api.Handler(),
			ReadHeaderTimeout: 10 * time.Second,
		},
	}, nil
}

// Run starts the scheduler when enabled and serves the control surface until
// the context is canceled.
func (a *Application) Run(ctx context.Context) error {
	if a.cfg.Scheduler.Enabled {
		err := a.scheduler.Start(ctx, func(t time.Time) {
			runCtx, cancel := context.WithTimeout(ctx, 10*time.Minute)
			defer cancel()
			if _, err := a.orchestrator.IngestContent(runCtx); err != nil {
				a.logger.Error("scheduled run failed", "fired_at", t, "error", err)
			}
		})
		if err != nil {
			return fmt.Errorf("start scheduler: %w", err)
		}
		defer func() { _ = a.scheduler.Stop(context.Background()) }()
	}

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("http listening", "addr", a.server.Addr)
		if err := a.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("http server: %w", err)
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	if err := a.server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}

func buildRepository(ctx context.Context, cfg config.Config, logger *slog.Logger) (ports.StoryRepository, error) {
	if cfg.Database.DSN == "" {
		logger.Info("using in-memory story repository")
		return storage.NewMemoryRepository(logging.Component(logger, "storage")), nil
	}

	db, err := sql.Open("postgres", cfg.Database.DSN)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		return nil, fmt.Errorf("ping database: %w", err)
	}

	repo := storage.NewPostgresRepository(db)
	if err := repo.Migrate(ctx); err != nil {
		return nil, fmt.Errorf("migrate: %w", err)
	}
	logger.Info("using postgres story repository")
	return repo, nil
}

func qualityWeights(cfg config.Config) quality.Weights {
	w := cfg.Quality.Weights
	if w.Originality == 0 && w.Readability == 0 && w.SEO == 0 && w.Accuracy == 0 && w.Brand == 0 {
		return quality.DefaultWeights()
	}
	return quality.Weights{
		Originality: w.Originality,
		Readability: w.Readability,
		SEO:         w.SEO,
		Accuracy:    w.Accuracy,
		Brand:       w.Brand,
	}
}
