package app

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/redis/go-redis/v9"
	"potholeserver/internal/config"
	"potholeserver/internal/logger"
	"potholeserver/internal/repository"
	"potholeserver/internal/repository/postgres"
	"potholeserver/internal/repository/sqlite"
	"potholeserver/internal/route"
	"potholeserver/internal/service"
	"potholeserver/internal/service/ai"
	"potholeserver/internal/service/events"
	"potholeserver/internal/service/gps"
	"potholeserver/internal/service/storage"
	"potholeserver/internal/service/upload"
	"potholeserver/internal/service/websocket"
)

const shutdownTimeout = 10 * time.Second

type App struct {
	config     *config.Config
	logger     *logger.Logger
	cache      *gps.Cache
	pool       *ai.Pool
	hubService *websocket.HubService
	repo       repository.PotholeRepository
	store      *storage.FileStore
	redis      *redis.Client
	manager    *service.Manager
}

// NewApp wires every service from cfg. Missing optional backends are logged and left out.
func NewApp(cfg *config.Config, log *logger.Logger) (*App, error) {
	a := &App{
		config:     cfg,
		logger:     log,
		cache:      gps.NewCache(cfg.MaxGpsCacheSize, cfg.SessionIdleTTL),
		hubService: websocket.NewHubService(log),
	}

	repo, err := openRepository(cfg, log)
	if err != nil {
		return nil, err
	}
	a.repo = repo

	var objects repository.ObjectStore
	if cfg.StorageDriver == config.StorageDriverFile {
		store, err := storage.NewFileStore(cfg.ImageDirectory, cfg.PublicBaseURL, log)
		if err != nil {
			a.Close()
			return nil, err
		}
		a.store = store
		objects = store
	}

	publishers := events.Fanout{a.hubService}
	if client := events.ConnectRedis(cfg); client != nil {
		a.redis = client
		redisPublisher := events.NewRedisPublisher(client, cfg.RedisChannel)
		publishers = append(publishers, redisPublisher)
		log.Info("Publishing detection events to redis %s (channel %s)", cfg.RedisAddr, redisPublisher.Channel())
	}

	a.pool = ai.NewPool(cfg, log)

	var persister service.Persister
	orchestrator := upload.NewOrchestrator(objects, a.repo, log)
	if objects != nil {
		persister = orchestrator
	}
	if !orchestrator.Configured() {
		log.Warning("Persistence not configured (storage=%s, db=%s) - detections will not be saved",
			cfg.StorageDriver, cfg.DBDriver)
	}

	a.manager = service.NewManager(cfg, a.cache, a.pool, persister, publishers, log)
	return a, nil
}

// openRepository returns nil (not an error) when DB_DRIVER=none.
func openRepository(cfg *config.Config, log *logger.Logger) (repository.PotholeRepository, error) {
	switch cfg.DBDriver {
	case config.DBDriverSQLite:
		db, err := sqlite.New(cfg.DBPath)
		if err != nil {
			return nil, fmt.Errorf("failed to initialize database: %w", err)
		}
		log.Info("SQLite database ready at %s", cfg.DBPath)
		return sqlite.NewPotholeRepository(db), nil

	case config.DBDriverPostgres:
		pool, err := postgres.Connect(cfg.PostgresURL)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to postgres: %w", err)
		}
		log.Info("PostgreSQL database connected")
		return postgres.NewPotholeRepository(pool, pool.Close), nil

	default:
		return nil, nil
	}
}

// Handler builds the HTTP handler tree.
func (a *App) Handler() http.Handler {
	return route.SetupRoutes(route.Dependencies{
		Manager: a.manager,
		Hub:     a.hubService,
		Repo:    a.repo,
		Store:   a.store,
		Config:  a.config,
		Logger:  a.logger,
	})
}

// Run serves HTTP until ctx is cancelled, then shuts down gracefully.
func (a *App) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	// Start background services
	go a.hubService.Run(ctx)
	go a.cache.RunJanitor(ctx, a.config.SessionSweepPeriod, a.manager.SessionsExpired)

	server := &http.Server{
		Addr:              fmt.Sprintf(":%d", a.config.Port),
		Handler:           a.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	a.logger.Info("🚀 Pothole Detection Server")
	a.logger.Info("📍 URL: http://localhost:%d", a.config.Port)
	a.logger.Info("📁 Images: %s (%s)", a.config.ImageDirectory, a.config.StorageDriver)
	a.logger.Info("🤖 AI Model: %s (loaded: %v)", a.config.ModelPath, a.pool.Loaded())

	errCh := make(chan error, 1)
	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("failed to start HTTP server: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	a.logger.Info("Shutting down HTTP server...")
	shutdownCtx, stop := context.WithTimeout(context.Background(), shutdownTimeout)
	defer stop()
	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("error shutting down server: %w", err)
	}
	return nil
}

// Close stops workers and releases backends.
func (a *App) Close() {
	if a.manager != nil {
		a.manager.Stop()
	}
	if a.pool != nil {
		a.pool.Close()
	}
	if a.repo != nil {
		if err := a.repo.Close(); err != nil {
			a.logger.Error("Error closing database: %v", err)
		}
	}
	if a.redis != nil {
		a.redis.Close()
	}
}
