package middleware

import (
	"bufio"
	"net"
	"net/http"
	"time"

	"potholeserver/internal/metrics"
)

type responseWriter struct {
	http.ResponseWriter
	statusCode int
}

// Hijack keeps websocket upgrades working behind the metrics wrapper.
func (rw *responseWriter) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := rw.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, http.ErrNotSupported
	}
	return h.Hijack()
}

func (rw *responseWriter) WriteHeader(code int) {
	rw.statusCode = code
	rw.ResponseWriter.WriteHeader(code)
}

// MetricsMiddleware records request counts and latency per known route.
func MetricsMiddleware(routes []string, next http.Handler) http.Handler {
	known := make(map[string]struct{}, len(routes))
	for _, r := range routes {
		known[r] = struct{}{}
	}

	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		start := time.Now()
		metrics.HttpRequestsInFlight.Inc()
		defer metrics.HttpRequestsInFlight.Dec()

		rw := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(rw, r)

		// Nieznane ścieżki pod jedną etykietą, żeby nie mnożyć serii
		path := r.URL.Path
		if _, ok := known[path]; !ok {
			path = "other"
		}
		metrics.RecordHTTPMetrics(r.Method, path, rw.statusCode, time.Since(start))
	})
}
