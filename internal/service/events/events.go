package events

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
)

// TypePothole marks a positive detection event.
const TypePothole = "pothole"

// Event describes one positive detection, as sent to live viewers and subscribers.
type Event struct {
	Type             string   `json:"type"`
	SessionID        string   `json:"session_id"`
	Timestamp        int64    `json:"timestamp"`
	Latitude         *float64 `json:"latitude,omitempty"`
	Longitude        *float64 `json:"longitude,omitempty"`
	DamagePercentage float64  `json:"damage_percentage"`
	Image            string   `json:"image,omitempty"` // base64 JPEG
	ImageURL         string   `json:"image_url,omitempty"`
}

// NewPotholeEvent builds a pothole event; lat/lon are nil when no GPS fix matched.
func NewPotholeEvent(sessionID string, ts int64, damage float64, annotated []byte) Event {
	ev := Event{
		Type:             TypePothole,
		SessionID:        sessionID,
		Timestamp:        ts,
		DamagePercentage: damage,
	}
	if len(annotated) > 0 {
		ev.Image = base64.StdEncoding.EncodeToString(annotated)
	}
	return ev
}

// WithLocation attaches matched coordinates.
func (e Event) WithLocation(lat, lon float64) Event {
	e.Latitude = &lat
	e.Longitude = &lon
	return e
}

// Marshal encodes the event as JSON.
func (e Event) Marshal() ([]byte, error) {
	return json.Marshal(e)
}

// Publisher delivers events to some audience.
type Publisher interface {
	Publish(ctx context.Context, ev Event) error
}

// Fanout publishes to every wrapped publisher and joins their errors.
type Fanout []Publisher

// Publish sends ev to all publishers, even after one fails.
func (f Fanout) Publish(ctx context.Context, ev Event) error {
	var errs []error
	for _, p := range f {
		if p == nil {
			continue
		}
		if err := p.Publish(ctx, ev); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
