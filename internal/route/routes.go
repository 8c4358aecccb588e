package route

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"potholeserver/internal/config"
	"potholeserver/internal/handler"
	"potholeserver/internal/logger"
	"potholeserver/internal/middleware"
	"potholeserver/internal/repository"
	"potholeserver/internal/service"
	"potholeserver/internal/service/storage"
	"potholeserver/internal/service/websocket"
)

// Dependencies are the services the HTTP layer talks to. Repo and Store may be nil.
type Dependencies struct {
	Manager *service.Manager
	Hub     *websocket.HubService
	Repo    repository.PotholeRepository
	Store   *storage.FileStore
	Config  *config.Config
	Logger  *logger.Logger
}

// SetupRoutes registers device, dashboard, log and metrics endpoints and wraps
// the mux with recovery, metrics and API-key middleware.
func SetupRoutes(deps Dependencies) http.Handler {
	mux := http.NewServeMux()
	cfg, log := deps.Config, deps.Logger

	// Device endpoints
	mux.HandleFunc("/upload", handler.UploadHandler(deps.Manager, cfg, log))
	mux.HandleFunc("/test", handler.AnnotateHandler(deps.Manager, cfg, log))

	// Status
	mux.HandleFunc("/", handler.RootHandler(log))
	mux.HandleFunc("/health", handler.HealthHandler(deps.Manager, log))
	mux.Handle("/metrics", promhttp.Handler())

	// API endpoints
	mux.HandleFunc("/api/potholes", handler.ListPotholesHandler(deps.Repo, log))
	mux.HandleFunc(storage.ViewPath, handler.ViewPotholeImageHandler(deps.Store, log))
	if deps.Hub != nil {
		mux.HandleFunc("/api/view", handler.ViewWebsocketHandler(deps.Hub, log))
	}

	// Log endpoints
	for _, level := range []struct{ path, file string }{
		{"/logs/info", logger.InfoFile},
		{"/logs/warning", logger.WarningFile},
		{"/logs/error", logger.ErrorFile},
	} {
		mux.HandleFunc(level.path, handler.ShowLogsHandler(log, level.file))
		mux.HandleFunc(level.path+"/clear", handler.ClearLogsHandler(log, level.file))
	}

	known := []string{"/", "/upload", "/test", "/health", "/api/potholes", storage.ViewPath, "/api/view",
		"/logs/info", "/logs/warning", "/logs/error", "/logs/info/clear", "/logs/warning/clear", "/logs/error/clear"}

	// Apply middleware
	return middleware.RecoverMiddleware(log,
		middleware.MetricsMiddleware(known,
			middleware.AuthMiddleware(cfg.APIKey, mux)))
}
