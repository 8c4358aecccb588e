package dto

import "potholeserver/internal/model"

const StatusSuccess = "success"

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error string `json:"error"`
}

// GpsResponse acknowledges a recorded fix.
type GpsResponse struct {
	Status    string `json:"status"`
	Message   string `json:"message"`
	SessionID string `json:"session_id"`
	CacheSize int    `json:"cache_size"`
}

// ImageResult is the detection outcome of one image upload.
type ImageResult struct {
	PotholeDetected  bool    `json:"pothole_detected"`
	DamagePercentage float64 `json:"damage_percentage"` // rounded to 2 decimals
	SessionID        string  `json:"session_id"`
}

// ImageResponse wraps ImageResult with the status envelope.
type ImageResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	ImageResult
}

// AnnotatedResult is the outcome of a /test upload.
type AnnotatedResult struct {
	Filename         string  `json:"filename"`
	ImageURL         string  `json:"image_url"`
	DamagePercentage float64 `json:"damage_percentage"`
}

// AnnotatedResponse wraps AnnotatedResult with the status envelope.
type AnnotatedResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
	AnnotatedResult
}

// HealthResponse reports readiness and cache occupancy.
type HealthResponse struct {
	Status                string `json:"status"`
	ModelLoaded           bool   `json:"model_loaded"`
	PersistenceConfigured bool   `json:"persistence_configured"`
	ActiveSessions        int    `json:"active_sessions"`
	TotalGpsPoints        int    `json:"total_gps_points"`
}

// PotholeList is a paginated dashboard listing.
type PotholeList struct {
	Potholes    []model.Pothole `json:"potholes"`
	Length      int             `json:"length"`
	TotalPages  int             `json:"totalPages"`
	CurrentPage int             `json:"currentPage"`
	Limit       int             `json:"limit"`
}
