// Package app assembles the server from its components.
package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/genmedia/server/internal/domain/media"
	"github.com/genmedia/server/internal/infra/auth"
	"github.com/genmedia/server/internal/infra/httpclient"
	"github.com/genmedia/server/internal/infra/lro"
	"github.com/genmedia/server/internal/infra/task"
	"github.com/genmedia/server/internal/module/avtool"
	"github.com/genmedia/server/internal/module/handler"
	"github.com/genmedia/server/internal/module/provider"
	"github.com/genmedia/server/internal/module/provider/vertex"
	"github.com/genmedia/server/internal/shared/config"
	"github.com/genmedia/server/internal/shared/logger"
	"github.com/genmedia/server/internal/storage"
	"github.com/genmedia/server/internal/utils/metrics"
)

// App holds the wired components of the server.
type App struct {
	config *config.Config
	log    *zap.Logger

	registry *provider.Registry
	resolver *storage.Resolver
	tasks    *task.Manager
	metrics  *metrics.Metrics

	// Tool services
	Images  *handler.ImageService
	Videos  *handler.VideoService
	Speech  *handler.SpeechService
	Music   *handler.MusicService
	Catalog *handler.CatalogService
	AVTool  *avtool.Service

	metricsSrv *http.Server
}

// New wires the application from configuration.
func New(cfg *config.Config) (*App, error) {
	log, err := logger.New(&logger.Config{
		Level:  cfg.Log.Level,
		Format: cfg.Log.Format,
	})
	if err != nil {
		return nil, fmt.Errorf("init logger: %w", err)
	}

	m := metrics.New(cfg.Metrics.Namespace)

	tokens := auth.NewGoogleTokenSource()
	httpClient := httpclient.New(cfg.HTTPClient)

	// Storage backends and the location resolver.
	backends := map[storage.Scheme]storage.Backend{
		storage.SchemeLocal: storage.NewLocalBackend(),
		storage.SchemeGCS:   storage.NewGCSBackend(httpClient, tokens, log),
	}
	if cfg.Storage.AccessKeyID != "" {
		s3Backend, err := storage.NewS3Backend(&cfg.Storage)
		if err != nil {
			return nil, fmt.Errorf("init s3 backend: %w", err)
		}
		backends[storage.SchemeS3] = s3Backend
	}
	resolver := storage.NewResolver(backends, cfg.Storage.TempDir, log).WithMetrics(m)

	// Vertex providers, all behind one API client and circuit breaker.
	vertexClient := vertex.NewClient(httpClient, tokens, &cfg.Vertex, &cfg.Breaker, log)

	registry := provider.NewRegistry()
	registry.Register(media.KindImage, vertex.ProviderName, vertex.NewImagen(vertexClient, log))
	registry.Register(media.KindVideo, vertex.ProviderName, vertex.NewVeo(vertexClient, log))
	registry.Register(media.KindSpeech, vertex.ProviderName, vertex.NewChirp(vertexClient, log))
	registry.Register(media.KindMusic, vertex.ProviderName, vertex.NewLyria(vertexClient, log))

	registry.SetDefault(media.KindImage, cfg.Providers.ImageDefault)
	registry.SetDefault(media.KindVideo, cfg.Providers.VideoDefault)
	registry.SetDefault(media.KindSpeech, cfg.Providers.SpeechDefault)
	registry.SetDefault(media.KindMusic, cfg.Providers.MusicDefault)
	if err := registry.Validate(); err != nil {
		return nil, err
	}

	poller := lro.NewPoller(lro.Config{
		InitialDelay: cfg.Poller.InitialDelay,
		Multiplier:   cfg.Poller.Multiplier,
		MaxDelay:     cfg.Poller.MaxDelay,
		MaxAttempts:  cfg.Poller.MaxAttempts,
	}, log)

	tasks := task.NewManager(task.NewMemoryRepository(), log, &task.Config{
		MaxConcurrent: cfg.Task.MaxConcurrent,
		ExecTimeout:   task.DefaultConfig().ExecTimeout,
	})
	tasks.OnFinished(m.RecordTaskFinished)

	app := &App{
		config:   cfg,
		log:      log,
		registry: registry,
		resolver: resolver,
		tasks:    tasks,
		metrics:  m,

		Images:  handler.NewImageService(registry, resolver, m, log),
		Videos:  handler.NewVideoService(registry, resolver, poller, tasks, m, log),
		Speech:  handler.NewSpeechService(registry, resolver, m, log),
		Music:   handler.NewMusicService(registry, resolver, m, log),
		Catalog: handler.NewCatalogService(registry),
		AVTool:  avtool.NewService(avtool.ExecRunner{}, resolver, cfg.Storage.TempDir, log).WithMetrics(m),
	}

	if cfg.Metrics.Address != "" {
		app.startMetricsServer(cfg.Metrics.Address)
	}

	return app, nil
}

// Registry exposes the provider registry for discovery queries.
func (a *App) Registry() *provider.Registry { return a.registry }

// Tasks exposes the background task manager.
func (a *App) Tasks() *task.Manager { return a.tasks }

// Logger exposes the root logger.
func (a *App) Logger() *zap.Logger { return a.log }

func (a *App) startMetricsServer(addr string) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())

	a.metricsSrv = &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		a.log.Info("metrics listener started", zap.String("address", addr))
		if err := a.metricsSrv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			a.log.Error("metrics listener failed", zap.Error(err))
		}
	}()
}

// Stop shuts the application down: running tasks are cancelled and waited
// for, then the metrics listener is closed.
func (a *App) Stop() {
	a.tasks.Stop()

	if a.metricsSrv != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			a.log.Warn("metrics listener shutdown failed", zap.Error(err))
		}
	}

	_ = a.log.Sync()
}
