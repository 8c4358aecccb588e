package model

import "time"

// Pothole represents a persisted detection record.
type Pothole struct {
	ID               int64     `json:"id"`
	Name             string    `json:"name"`
	Latitude         float64   `json:"latitude"`
	Longitude        float64   `json:"longitude"`
	ImageURL         string    `json:"image_url"`
	SessionID        string    `json:"session_id"`
	CapturedAt       int64     `json:"captured_at"`
	DamagePercentage float64   `json:"damage_percentage"`
	CreatedBy        *string   `json:"created_by"`
	CreatedAt        time.Time `json:"created_at"`
}
