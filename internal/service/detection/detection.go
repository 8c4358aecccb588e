package detection

import (
	"errors"
	"math"
)

var (
	// ErrUndecodable reports image bytes that could not be decoded. Zero damage is not an error.
	ErrUndecodable = errors.New("could not decode image")
	// ErrModelNotLoaded reports an analyzer without a usable network.
	ErrModelNotLoaded = errors.New("detection model not loaded")
)

// Options tune a single inference call.
type Options struct {
	ImageSize  int     // square network input size
	Confidence float32 // minimum region score
	NMS        float32 // IoU threshold for non-maximum suppression
}

// Mask is one segmented damage region, reduced to its enclosed area in pixels.
type Mask struct {
	Area       float64
	Confidence float32
}

// Report is the outcome of analysing one image.
type Report struct {
	Width     int
	Height    int
	Masks     []Mask
	Ratio     float64 // damaged fraction of the image, in [0,1]
	Annotated []byte  // JPEG with overlay; nil when encoding failed
}

// Percentage returns the damaged area in percent.
func (r *Report) Percentage() float64 {
	return Percentage(r.Ratio)
}

// Analyzer runs segmentation on encoded image bytes.
type Analyzer interface {
	Analyze(image []byte, opts Options) (*Report, error)
	Loaded() bool
}

// DamageRatio sums mask areas relative to the image area, clamped to [0,1].
func DamageRatio(masks []Mask, width, height int) float64 {
	if width <= 0 || height <= 0 {
		return 0
	}

	total := 0.0
	for _, m := range masks {
		if m.Area > 0 {
			total += m.Area
		}
	}

	ratio := total / float64(width*height)
	return math.Min(ratio, 1)
}

// IsPothole reports a positive detection: ratio strictly above threshold.
func IsPothole(ratio, threshold float64) bool {
	return ratio > threshold
}

// Percentage converts a ratio to percent.
func Percentage(ratio float64) float64 {
	return ratio * 100
}

// Round2 rounds to two decimal places.
func Round2(v float64) float64 {
	return math.Round(v*100) / 100
}
