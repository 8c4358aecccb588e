package model

// GpsFix is one GPS sample. Timestamp uses a single unit for the whole deployment.
type GpsFix struct {
	Timestamp int64   `json:"timestamp"`
	Latitude  float64 `json:"latitude"`
	Longitude float64 `json:"longitude"`
}
