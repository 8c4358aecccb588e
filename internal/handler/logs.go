package handler

import (
	"net/http"
	"os"
	"path/filepath"

	"potholeserver/internal/logger"
)

// ShowLogsHandler serves one level file from the log directory as text/plain.
func ShowLogsHandler(log *logger.Logger, filename string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		serveLogFile(w, r, log.Dir(), filename)
	}
}

// serveLogFile is a helper that sets headers and serves a log file if it exists.
func serveLogFile(w http.ResponseWriter, r *http.Request, logDir, filename string) {
	filePath := filepath.Join(logDir, filename)

	if _, err := os.Stat(filePath); logDir == "" || os.IsNotExist(err) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte("Log file not found: " + filename))
		return
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")

	http.ServeFile(w, r, filePath)
}

// ClearLogsHandler truncates a level file.
func ClearLogsHandler(log *logger.Logger, filename string) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if !allowMethod(w, r, log, http.MethodPost) {
			return
		}
		if err := log.CleanLogs(filename); err != nil {
			writeError(w, log, http.StatusInternalServerError, "Could not clear "+filename)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}
