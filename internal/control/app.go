// Package control wires configuration into a running acquisition engine.
package control

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/vietddude/fullres/internal/acquire"
	"github.com/vietddude/fullres/internal/core/config"
	"github.com/vietddude/fullres/internal/infra/fetch"
	"github.com/vietddude/fullres/internal/infra/metrics"
	redisclient "github.com/vietddude/fullres/internal/infra/redis"
	"github.com/vietddude/fullres/internal/server"
)

// App owns the engine and its collaborators for one run.
type App struct {
	cfg         *config.AppConfig
	runID       string
	engine      *acquire.Engine
	fetcher     acquire.Fetcher
	redisClient *redisclient.Client
	server      *server.Server
	log         *slog.Logger
}

// Option configures an App.
type Option func(*appOptions)

type appOptions struct {
	runID      string
	fetcher    acquire.Fetcher
	onTerminal acquire.TerminalFunc
}

// WithRunID namespaces the Redis source store. Processes sharing a run id
// share known-source verdicts.
func WithRunID(id string) Option {
	return func(o *appOptions) {
		o.runID = id
	}
}

// WithFetcher replaces the HTTP fetcher.
func WithFetcher(f acquire.Fetcher) Option {
	return func(o *appOptions) {
		o.fetcher = f
	}
}

// WithOnTerminal registers a terminal callback on the engine.
func WithOnTerminal(fn acquire.TerminalFunc) Option {
	return func(o *appOptions) {
		o.onTerminal = fn
	}
}

// NewApp creates an App with all dependencies initialized.
func NewApp(cfg *config.AppConfig, opts ...Option) (*App, error) {
	var o appOptions
	for _, opt := range opts {
		opt(&o)
	}
	if o.runID == "" {
		o.runID = uuid.NewString()
	}

	log := slog.Default().With("component", "app", "run", o.runID)

	// 1. Source store
	var sources acquire.SourceStore
	var rc *redisclient.Client
	if cfg.Redis.URL != "" {
		var err error
		rc, err = redisclient.NewClient(cfg.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis: %w", err)
		}
		sources = redisclient.NewSourceStore(rc, o.runID)
		log.Info("Using Redis source store", "ttl", cfg.Redis.TTL)
	} else {
		sources = acquire.NewMemorySources()
		log.Debug("Using in-memory source store")
	}

	// 2. Strategies
	strategies, err := cfg.BuildStrategies()
	if err != nil {
		if rc != nil {
			rc.Close()
		}
		return nil, fmt.Errorf("failed to build strategies: %w", err)
	}

	// 3. Fetcher and engine
	fetcher := o.fetcher
	if fetcher == nil {
		fetcher = fetch.New(cfg.Fetch)
	}

	engineOpts := []acquire.Option{
		acquire.WithTimeout(cfg.Engine.Timeout),
		acquire.WithEager(cfg.Engine.Eager),
		acquire.WithSources(sources),
		acquire.WithOnTerminal(o.onTerminal),
	}
	if cfg.Engine.AllowDataURLs {
		engineOpts = append(engineOpts, acquire.WithFilter(nil))
	}

	app := &App{
		cfg:         cfg,
		runID:       o.runID,
		engine:      acquire.NewEngine(strategies, acquire.NewRacer(fetcher), engineOpts...),
		fetcher:     fetcher,
		redisClient: rc,
		log:         log,
	}

	deps := map[string]server.Pinger{}
	if rc != nil {
		deps["redis"] = rc
	}
	app.server = server.NewServer(app.engine, cfg.Server.Port, deps)

	log.Info("App initialized",
		"strategies", strategies.Names(),
		"timeout", cfg.Engine.Timeout,
		"eager", cfg.Engine.Eager,
	)
	return app, nil
}

// Engine returns the acquisition engine.
func (a *App) Engine() *acquire.Engine {
	return a.engine
}

// RunID returns the run namespace.
func (a *App) RunID() string {
	return a.runID
}

// Start starts the HTTP server and the metrics updater.
func (a *App) Start(ctx context.Context) error {
	go func() {
		if err := a.server.Start(); err != nil {
			a.log.Error("Server failed", "error", err)
		}
	}()

	go a.runMetricsUpdater(ctx)

	a.log.Info("Server started", "port", a.cfg.Server.Port)
	return nil
}

// Stop waits for background acquisitions, closes Redis and stops the server.
func (a *App) Stop(ctx context.Context) error {
	a.log.Info("Stopping app...")

	done := make(chan struct{})
	go func() {
		a.engine.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-ctx.Done():
		a.log.Warn("Shutdown timed out waiting for acquisitions")
	}

	err := a.server.Stop(ctx)

	// Close Redis
	if a.redisClient != nil {
		if cerr := a.redisClient.Close(); cerr != nil {
			a.log.Warn("Failed to close Redis", "error", cerr)
		}
	}
	return err
}

// Close releases resources without touching the server.
func (a *App) Close() error {
	a.engine.Wait()
	if a.redisClient != nil {
		return a.redisClient.Close()
	}
	return nil
}

func (a *App) runMetricsUpdater(ctx context.Context) {
	ticker := time.NewTicker(15 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			a.updateMetrics(ctx)
		}
	}
}

func (a *App) updateMetrics(ctx context.Context) {
	stats, err := a.engine.SourceStats(ctx)
	if err != nil {
		a.log.Warn("Failed to read source stats", "error", err)
		return
	}
	metrics.KnownSources.WithLabelValues(string(acquire.VerdictFailed)).Set(float64(stats.Failed))
	metrics.KnownSources.WithLabelValues(string(acquire.VerdictSucceeded)).Set(float64(stats.Succeeded))
}
