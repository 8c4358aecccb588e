package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"potholeserver/internal/config"
	"potholeserver/internal/dto"
	"potholeserver/internal/logger"
	"potholeserver/internal/metrics"
	"potholeserver/internal/model"
	"potholeserver/internal/service/detection"
	"potholeserver/internal/service/events"
	"potholeserver/internal/service/gps"
	"potholeserver/internal/service/upload"
)

var (
	// ErrPersistenceNotConfigured is returned by operations that need storage when none is wired.
	ErrPersistenceNotConfigured = upload.ErrNotConfigured
	// ErrAnnotationFailed reports an analysed image that could not be re-encoded.
	ErrAnnotationFailed = errors.New("failed to annotate image")
)

// Persister stores confirmed detections.
type Persister interface {
	Persist(ctx context.Context, d upload.Detection) (*model.Pothole, error)
	StoreAnnotated(ctx context.Context, data []byte) (string, string, error)
	Configured() bool
}

type Manager struct {
	cache     *gps.Cache
	analyzer  detection.Analyzer
	persister Persister
	publisher events.Publisher
	logger    *logger.Logger

	options        detection.Options
	threshold      float64
	tolerance      int64
	persistTimeout time.Duration

	persistQueue chan upload.Detection
	numWorkers   int
	wg           sync.WaitGroup
	stopMu       sync.RWMutex // chroni persistQueue przed wysyłką po zamknięciu
	stopped      bool
}

// NewManager starts cfg.PersistWorkers persistence workers. persister and publisher may be nil.
func NewManager(cfg *config.Config, cache *gps.Cache, analyzer detection.Analyzer, persister Persister,
	publisher events.Publisher, logger *logger.Logger) *Manager {
	timeout := cfg.PersistTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	manager := &Manager{
		cache:     cache,
		analyzer:  analyzer,
		persister: persister,
		publisher: publisher,
		logger:    logger,
		options: detection.Options{
			ImageSize:  cfg.InferenceSize,
			Confidence: cfg.InferenceConf,
			NMS:        cfg.InferenceNMS,
		},
		threshold:      cfg.PotholeThreshold,
		tolerance:      cfg.GpsMatchTolerance,
		persistTimeout: timeout,
		numWorkers:     max(cfg.PersistWorkers, 0),
	}

	if manager.numWorkers > 0 {
		manager.persistQueue = make(chan upload.Detection, max(cfg.PersistQueue, 0))
		for i := 0; i < manager.numWorkers; i++ {
			manager.wg.Add(1)
			go manager.persistWorker(i)
		}
	}

	manager.logger.Info("Manager started - threshold %.4f, GPS tolerance %d, %d persistence worker(s)",
		manager.threshold, manager.tolerance, manager.numWorkers)
	return manager
}

// Cache exposes the GPS session cache.
func (m *Manager) Cache() *gps.Cache {
	return m.cache
}

// RecordGps stores the fix and returns the session size after eviction.
func (m *Manager) RecordGps(u *dto.GpsUpload) int {
	size := m.cache.Record(u.SessionID, model.GpsFix{
		Timestamp: u.Timestamp,
		Latitude:  u.Latitude,
		Longitude: u.Longitude,
	})
	metrics.GpsFixesReceived.Inc()
	m.refreshGauges()
	return size
}

// ProcessImage analyses the image and, on a positive detection, matches it
// against the session's GPS fixes and hands it to persistence. Persistence
// outcomes never change the returned result.
func (m *Manager) ProcessImage(ctx context.Context, u *dto.ImageUpload) (*dto.ImageResult, error) {
	if m.analyzer == nil || !m.analyzer.Loaded() {
		metrics.ImagesProcessed.WithLabelValues(metrics.ResultError).Inc()
		return nil, detection.ErrModelNotLoaded
	}

	report, err := m.analyzer.Analyze(u.Image, m.options)
	if err != nil {
		metrics.ImagesProcessed.WithLabelValues(metrics.ResultError).Inc()
		return nil, err
	}

	percentage := report.Percentage()
	result := &dto.ImageResult{
		PotholeDetected:  detection.IsPothole(report.Ratio, m.threshold),
		DamagePercentage: detection.Round2(percentage),
		SessionID:        u.SessionID,
	}

	if !result.PotholeDetected {
		metrics.ImagesProcessed.WithLabelValues(metrics.ResultClear).Inc()
		return result, nil
	}
	metrics.ImagesProcessed.WithLabelValues(metrics.ResultPothole).Inc()

	event := events.NewPotholeEvent(u.SessionID, u.Timestamp, result.DamagePercentage, report.Annotated)

	fix, ok := m.cache.Match(u.SessionID, u.Timestamp, m.tolerance)
	if ok {
		metrics.GpsMatches.WithLabelValues(metrics.MatchMatched).Inc()
		event = event.WithLocation(fix.Latitude, fix.Longitude)
		m.submit(ctx, upload.Detection{
			Image:            u.Image,
			Latitude:         fix.Latitude,
			Longitude:        fix.Longitude,
			SessionID:        u.SessionID,
			Timestamp:        u.Timestamp,
			DamagePercentage: percentage,
		})
	} else {
		metrics.GpsMatches.WithLabelValues(metrics.MatchMissed).Inc()
		m.logger.Warning("No GPS data found for session %s near timestamp %d", u.SessionID, u.Timestamp)
	}

	m.publish(ctx, event)
	return result, nil
}

// AnnotateAndStore analyses the image and uploads the annotated copy.
func (m *Manager) AnnotateAndStore(ctx context.Context, image []byte) (*dto.AnnotatedResult, error) {
	if m.persister == nil {
		return nil, ErrPersistenceNotConfigured
	}
	if m.analyzer == nil || !m.analyzer.Loaded() {
		return nil, detection.ErrModelNotLoaded
	}

	report, err := m.analyzer.Analyze(image, m.options)
	if err != nil {
		return nil, err
	}
	if len(report.Annotated) == 0 {
		return nil, ErrAnnotationFailed
	}

	filename, url, err := m.persister.StoreAnnotated(ctx, report.Annotated)
	if err != nil {
		return nil, err
	}

	m.logger.Info("Annotated test image stored: %s", filename)
	return &dto.AnnotatedResult{
		Filename:         filename,
		ImageURL:         url,
		DamagePercentage: detection.Round2(report.Percentage()),
	}, nil
}

// Health reports readiness and cache occupancy.
func (m *Manager) Health() dto.HealthResponse {
	stats := m.cache.Stats()
	return dto.HealthResponse{
		Status:                "healthy",
		ModelLoaded:           m.analyzer != nil && m.analyzer.Loaded(),
		PersistenceConfigured: m.persister != nil && m.persister.Configured(),
		ActiveSessions:        stats.Sessions,
		TotalGpsPoints:        stats.Points,
	}
}

// SessionsExpired logs a janitor sweep and refreshes the cache gauges.
func (m *Manager) SessionsExpired(removed int) {
	m.logger.Info("Expired %d idle GPS session(s)", removed)
	m.refreshGauges()
}

// submit queues d for a worker, falling back to an inline call when no worker can take it.
func (m *Manager) submit(ctx context.Context, d upload.Detection) {
	if m.persister == nil || !m.persister.Configured() {
		metrics.PersistenceTotal.WithLabelValues(metrics.PersistSkipped).Inc()
		m.logger.Warning("Persistence not configured - pothole for session %s not saved", d.SessionID)
		return
	}

	m.stopMu.RLock()
	if !m.stopped && m.persistQueue != nil {
		select {
		case m.persistQueue <- d:
			m.stopMu.RUnlock()
			return
		default:
			m.logger.Warning("Persistence queue full for session %s - saving inline", d.SessionID)
		}
	}
	m.stopMu.RUnlock()

	// Odłączony od anulowania żądania: klient mógł już dostać odpowiedź
	m.persist(context.WithoutCancel(ctx), d)
}

func (m *Manager) persist(parent context.Context, d upload.Detection) {
	ctx, cancel := context.WithTimeout(parent, m.persistTimeout)
	defer cancel()

	_, err := m.persister.Persist(ctx, d)
	metrics.RecordPersist(err)
	if err != nil {
		m.logger.Error("Error saving pothole for session %s: %v", d.SessionID, err)
	}
}

// persistWorker drains the persistence queue until Stop closes it.
func (m *Manager) persistWorker(workerID int) {
	defer m.wg.Done()

	m.logger.Debug("Persistence worker %d started", workerID)
	for d := range m.persistQueue {
		m.persist(context.Background(), d)
	}
	m.logger.Debug("Persistence worker %d stopped", workerID)
}

func (m *Manager) publish(ctx context.Context, ev events.Event) {
	if m.publisher == nil {
		return
	}
	if err := m.publisher.Publish(ctx, ev); err != nil {
		m.logger.Warning("Failed to publish detection event for session %s: %v", ev.SessionID, err)
	}
}

func (m *Manager) refreshGauges() {
	stats := m.cache.Stats()
	metrics.SetCacheGauges(stats.Sessions, stats.Points)
}

// Stop drains queued persistence work and stops all workers.
func (m *Manager) Stop() {
	m.stopMu.Lock()
	if m.stopped {
		m.stopMu.Unlock()
		return
	}
	m.stopped = true
	if m.persistQueue != nil {
		close(m.persistQueue)
	}
	m.stopMu.Unlock()

	m.wg.Wait()
	m.logger.Info("All persistence workers stopped")
}
