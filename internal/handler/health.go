package handler

import (
	"net/http"

	"potholeserver/internal/logger"
	"potholeserver/internal/service"
)

// RootHandler answers liveness probes on "/" and 404s everything else it catches.
func RootHandler(logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/" {
			writeError(w, logger, http.StatusNotFound, "Not found")
			return
		}
		writeJSON(w, logger, http.StatusOK, map[string]string{"message": "Pothole Detection API is running"})
	}
}

// HealthHandler reports model, persistence and cache state.
func HealthHandler(manager *service.Manager, logger *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, logger, http.StatusOK, manager.Health())
	}
}
