package upload

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"net/url"
	"time"

	"github.com/google/uuid"
	"potholeserver/internal/logger"
	"potholeserver/internal/model"
	"potholeserver/internal/repository"
)

// ErrNotConfigured is returned when no object store or repository is wired.
var ErrNotConfigured = errors.New("persistence not configured")

const (
	contentTypeJPEG   = "image/jpeg"
	maxSessionSegment = 96
)

// Detection is one positive, GPS-matched detection ready to be stored.
type Detection struct {
	Image            []byte
	Latitude         float64
	Longitude        float64
	SessionID        string
	Timestamp        int64
	DamagePercentage float64
}

// Orchestrator writes the image to the object store and the pothole row to the repository.
type Orchestrator struct {
	store  repository.ObjectStore
	repo   repository.PotholeRepository
	logger *logger.Logger
	now    func() time.Time
}

// NewOrchestrator accepts nil store or repo; Configured then reports false.
func NewOrchestrator(store repository.ObjectStore, repo repository.PotholeRepository, logger *logger.Logger) *Orchestrator {
	return &Orchestrator{
		store:  store,
		repo:   repo,
		logger: logger,
		now:    time.Now,
	}
}

// Configured reports whether both the object store and the repository are present.
func (o *Orchestrator) Configured() bool {
	return o != nil && o.store != nil && o.repo != nil
}

// Persist stores the original image and inserts its pothole record.
func (o *Orchestrator) Persist(ctx context.Context, d Detection) (*model.Pothole, error) {
	if !o.Configured() {
		return nil, ErrNotConfigured
	}

	filename := fmt.Sprintf("%s_%d_%s.jpg", sessionSegment(d.SessionID), d.Timestamp, shortID())
	imageURL, err := o.store.Put(ctx, filename, d.Image, contentTypeJPEG)
	if err != nil {
		return nil, fmt.Errorf("failed to upload image: %w", err)
	}

	pothole := &model.Pothole{
		Name:             PotholeName(),
		Latitude:         d.Latitude,
		Longitude:        d.Longitude,
		ImageURL:         imageURL,
		SessionID:        d.SessionID,
		CapturedAt:       d.Timestamp,
		DamagePercentage: d.DamagePercentage,
	}

	if _, err := o.repo.Insert(ctx, pothole); err != nil {
		return nil, fmt.Errorf("failed to save pothole record: %w", err)
	}

	o.logger.Info("Pothole saved for session %s at (%f, %f): %s", d.SessionID, d.Latitude, d.Longitude, filename)
	return pothole, nil
}

// StoreAnnotated uploads an annotated test image. Only the object store is required.
func (o *Orchestrator) StoreAnnotated(ctx context.Context, data []byte) (string, string, error) {
	if o == nil || o.store == nil {
		return "", "", ErrNotConfigured
	}

	filename := fmt.Sprintf("test_%d_%s.jpg", o.now().Unix(), shortID())
	imageURL, err := o.store.Put(ctx, filename, data, contentTypeJPEG)
	if err != nil {
		return "", "", fmt.Errorf("failed to upload image: %w", err)
	}
	return filename, imageURL, nil
}

// PotholeName returns a display name with a random five-digit suffix.
func PotholeName() string {
	return fmt.Sprintf("Detected Pothole - #%05d", rand.IntN(100000))
}

// sessionSegment escapes an opaque session id into one file-name element.
// Long ids are cut so the object name stays under file system limits.
func sessionSegment(sessionID string) string {
	segment := url.PathEscape(sessionID)
	if len(segment) > maxSessionSegment {
		segment = segment[:maxSessionSegment]
	}
	return segment
}

func shortID() string {
	return uuid.NewString()[:8]
}
