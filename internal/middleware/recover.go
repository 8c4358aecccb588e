package middleware

import (
	"encoding/json"
	"net/http"

	"potholeserver/internal/logger"
)

// RecoverMiddleware turns handler panics into a 500 JSON error.
func RecoverMiddleware(logger *logger.Logger, next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if p := recover(); p != nil {
				if p == http.ErrAbortHandler {
					panic(p)
				}
				logger.Error("Panic serving %s %s: %v", r.Method, r.URL.Path, p)
				w.Header().Set("Connection", "close")
				errorResponse(w, http.StatusInternalServerError, "Internal Server Error")
			}
		}()
		next.ServeHTTP(w, r)
	})
}

func errorResponse(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
