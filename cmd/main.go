package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/okian/allot/internal/adapters/http/api"
	"github.com/okian/allot/internal/adapters/http/swagger"
	app "github.com/okian/allot/internal/app"
	"github.com/okian/allot/internal/config"
	"github.com/okian/allot/internal/fixture"
	"github.com/okian/allot/internal/scheduler"
	"github.com/okian/allot/pkg/logger"
	"github.com/okian/allot/pkg/metrics"
)

// HTTP server timeout constants.
const (
	readTimeout       = 10 * time.Second
	idleTimeout       = 60 * time.Second
	readHeaderTimeout = 5 * time.Second
)

func main() {
	// Root context with cancel on SIGINT/SIGTERM.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Load configuration (.env -> defaults -> optional file -> env)
	cfg, err := config.Load(ctx)
	if err != nil {
		// Use stderr for initialization errors since logger isn't available yet
		os.Stderr.WriteString("failed to load config: " + err.Error() + "\n")
		os.Exit(1)
	}

	if err := logger.Init(logger.WithFormat(cfg.LogFormat)); err != nil {
		os.Stderr.WriteString("failed to initialize logging: " + err.Error() + "\n")
		os.Exit(1)
	}
	defer func() {
		_ = logger.Sync()
	}()

	if err := run(ctx, cfg); err != nil {
		logger.Get().Error(context.Background(), "allot exited", logger.Error(err))
		os.Exit(1)
	}
}

// run serves the API until ctx is cancelled.
func run(ctx context.Context, cfg *config.Config) error {
	log := logger.Get()

	// Apply configured log level (fallback to info on invalid input)
	if err := logger.SetLevelString(cfg.LogLevel); err != nil {
		log.Warn(ctx, "invalid log_level; falling back to info", logger.String("log_level", cfg.LogLevel), logger.Error(err))
		_ = logger.SetLevelString("info")
	}

	if err := initMetrics(cfg); err != nil {
		return err
	}

	svc, err := newService(cfg, log)
	if err != nil {
		return err
	}
	if err := svc.Start(ctx); err != nil {
		return fmt.Errorf("start service: %w", err)
	}
	defer svc.Stop()

	if err := importSeed(ctx, svc, cfg.SeedFile); err != nil {
		return err
	}

	if cfg.ExpirySchedule != "" {
		sched := scheduler.New(scheduler.WithLogger(log))
		job := scheduler.NewPhaseExpiryJob(svc, time.Minute, log)
		if err := sched.AddJob(cfg.ExpirySchedule, job); err != nil {
			return err
		}
		// Catch phases that ended while the process was down.
		if err := sched.RunNow(job); err != nil {
			log.Warn(ctx, "initial phase expiry failed", logger.Error(err))
		}
		sched.Start()
		defer sched.Stop()
	}

	srv := &http.Server{
		Addr:              cfg.Addr,
		Handler:           newHandler(cfg, svc, log),
		ReadTimeout:       readTimeout,
		WriteTimeout:      cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:       idleTimeout,
		ReadHeaderTimeout: readHeaderTimeout,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info(ctx, "starting HTTP server", logger.String("addr", cfg.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for shutdown signal
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("http server: %w", err)
		}
	}
	log.Info(context.Background(), "shutting down server...")

	// Graceful shutdown with timeout
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error(shutdownCtx, "server shutdown failed", logger.Error(err))
	}

	log.Info(shutdownCtx, "server stopped")
	return nil
}

func newService(cfg *config.Config, log logger.Logger) (*app.Service, error) {
	rule, err := cfg.Rule()
	if err != nil {
		return nil, err
	}
	return app.New(
		app.WithLogger(log.Named("service")),
		app.WithStoreKind(cfg.Store),
		app.WithSQLitePath(cfg.SQLitePath),
		app.WithCompetencyRule(rule),
		app.WithRandomSeed(cfg.RandomSeed),
	), nil
}

// newHandler builds the router: API routes plus the OpenAPI docs.
func newHandler(cfg *config.Config, svc *app.Service, log logger.Logger) http.Handler {
	apiServer := api.NewServer(svc,
		api.WithCORSOrigins(cfg.CORSOrigins),
		api.WithRequestTimeout(cfg.RequestTimeout),
		api.WithLogger(log.Named("http")),
	)
	r := apiServer.Router()
	swagger.Register(r)
	return r
}

// importSeed loads the fixture at path into an empty store. An empty path or
// a store that already holds records is a no-op.
func importSeed(ctx context.Context, svc *app.Service, path string) error {
	if path == "" {
		return nil
	}
	counts, err := svc.Count(ctx)
	if err != nil {
		return err
	}
	if counts.Phases+counts.Employees+counts.Projects > 0 {
		logger.Get().Info(ctx, "store not empty, seed skipped", logger.String("seed", path))
		return nil
	}
	seed, err := fixture.Load(path)
	if err != nil {
		return fmt.Errorf("seed %s: %w", path, err)
	}
	if err := svc.Import(ctx, seed.Changeset()); err != nil {
		return fmt.Errorf("import seed %s: %w", path, err)
	}
	return nil
}

// initMetrics rebuilds the metric set under the configured names.
func initMetrics(cfg *config.Config) error {
	labels, err := cfg.Labels()
	if err != nil {
		return err
	}
	if err := metrics.Init(
		metrics.WithNamespace(cfg.MetricsNamespace),
		metrics.WithSubsystem(cfg.MetricsSubsystem),
		metrics.WithHistogramBuckets(cfg.MetricsBuckets),
		metrics.WithCustomLabels(labels),
	); err != nil {
		return fmt.Errorf("init metrics: %w", err)
	}
	return nil
}
