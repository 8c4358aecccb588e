package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Label values used by the business counters.
const (
	ResultPothole = "pothole"
	ResultClear   = "clear"
	ResultError   = "error"

	MatchMatched = "matched"
	MatchMissed  = "missed"

	PersistSuccess = "success"
	PersistError   = "error"
	PersistSkipped = "skipped"
)

var (
	// HTTP metrics
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "Total number of HTTP requests",
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "path", "status"},
	)

	HttpRequestsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "http_requests_in_flight",
			Help: "Current number of HTTP requests being processed",
		},
	)

	// Business metrics
	GpsFixesReceived = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "gps_fixes_received_total",
			Help: "Total number of GPS fixes recorded",
		},
	)

	ImagesProcessed = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "images_processed_total",
			Help: "Total number of analysed images by outcome",
		},
		[]string{"result"},
	)

	GpsMatches = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gps_matches_total",
			Help: "GPS lookups for positive detections",
		},
		[]string{"result"},
	)

	PersistenceTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "persistence_total",
			Help: "Pothole persistence attempts by status",
		},
		[]string{"status"},
	)

	SessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gps_sessions_active",
			Help: "Current number of sessions in the GPS cache",
		},
	)

	PointsCached = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gps_points_cached",
			Help: "Current number of GPS fixes held across sessions",
		},
	)
)

// RecordHTTPMetrics records HTTP request metrics
func RecordHTTPMetrics(method, path string, statusCode int, duration time.Duration) {
	status := strconv.Itoa(statusCode)
	HttpRequestsTotal.WithLabelValues(method, path, status).Inc()
	HttpRequestDuration.WithLabelValues(method, path, status).Observe(duration.Seconds())
}

// RecordPersist counts one persistence attempt.
func RecordPersist(err error) {
	status := PersistSuccess
	if err != nil {
		status = PersistError
	}
	PersistenceTotal.WithLabelValues(status).Inc()
}

// SetCacheGauges publishes the current cache occupancy.
func SetCacheGauges(sessions, points int) {
	SessionsActive.Set(float64(sessions))
	PointsCached.Set(float64(points))
}
