package ai

import (
	"potholeserver/internal/config"
	"potholeserver/internal/logger"
	"potholeserver/internal/service/detection"
)

// Pool hands out one Segmenter per concurrent Analyze call.
type Pool struct {
	segmenters chan *Segmenter
	size       int
	logger     *logger.Logger
}

// NewPool loads cfg.ModelWorkers copies of the model. When the model cannot be
// loaded the pool is returned empty and reports Loaded() == false.
func NewPool(cfg *config.Config, logger *logger.Logger) *Pool {
	workers := cfg.ModelWorkers
	if workers < 1 {
		workers = 1
	}

	pool := &Pool{
		segmenters: make(chan *Segmenter, workers),
		logger:     logger,
	}

	for i := 0; i < workers; i++ {
		s, err := NewSegmenter(cfg.ModelPath)
		if err != nil {
			logger.Warning("Could not initialize segmentation network: %v", err)
			break
		}
		pool.segmenters <- s
		pool.size++
	}

	if pool.size > 0 {
		logger.Info("Segmentation network initialized (%d instance(s), model %s)", pool.size, cfg.ModelPath)
	}
	return pool
}

// Loaded reports whether at least one network is available.
func (p *Pool) Loaded() bool {
	return p.size > 0
}

// Analyze runs the image through the next free network.
func (p *Pool) Analyze(image []byte, opts detection.Options) (*detection.Report, error) {
	if !p.Loaded() {
		return nil, detection.ErrModelNotLoaded
	}

	s := <-p.segmenters
	defer func() { p.segmenters <- s }()

	return s.Analyze(image, opts)
}

// Close releases every network. The pool must not be used afterwards.
func (p *Pool) Close() {
	for i := 0; i < p.size; i++ {
		s := <-p.segmenters
		s.Close()
	}
	p.size = 0
}
