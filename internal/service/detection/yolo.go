package detection

import (
	"fmt"
	"image"
)

// Candidate is one decoded segmentation proposal in network input coordinates.
type Candidate struct {
	Box   image.Rectangle
	Score float32
	Coefs []float32 // mask prototype coefficients
}

// ParsePredictions decodes a YOLO-seg prediction tensor of shape
// [1, 4+classes+maskDim, N] (or its transpose [1, N, 4+classes+maskDim]).
// Proposals scoring below conf are dropped.
func ParsePredictions(data []float32, dims []int, maskDim int, conf float32) ([]Candidate, error) {
	if len(dims) != 3 {
		return nil, fmt.Errorf("unexpected prediction shape %v", dims)
	}

	channels, count := dims[1], dims[2]
	transposed := false
	if channels > count {
		channels, count = count, channels
		transposed = true
	}

	classes := channels - 4 - maskDim
	if classes < 1 {
		return nil, fmt.Errorf("prediction has %d channels, need more than %d", channels, 4+maskDim)
	}
	if len(data) < channels*count {
		return nil, fmt.Errorf("prediction data too short: %d < %d", len(data), channels*count)
	}

	at := func(c, i int) float32 {
		if transposed {
			return data[i*channels+c]
		}
		return data[c*count+i]
	}

	var out []Candidate
	for i := 0; i < count; i++ {
		bestScore := float32(0)
		for c := 0; c < classes; c++ {
			bestScore = max(bestScore, at(4+c, i))
		}
		if bestScore < conf {
			continue
		}

		cx, cy, w, h := at(0, i), at(1, i), at(2, i), at(3, i)
		coefs := make([]float32, maskDim)
		for k := 0; k < maskDim; k++ {
			coefs[k] = at(4+classes+k, i)
		}

		out = append(out, Candidate{
			Box:   image.Rect(int(cx-w/2), int(cy-h/2), int(cx+w/2), int(cy+h/2)),
			Score: bestScore,
			Coefs: coefs,
		})
	}
	return out, nil
}

// DecodeMask combines prototypes [maskDim, mh, mw] with coefs and returns an
// mh*mw binary mask (0 or 255) cropped to box. box is in input coordinates
// of a square network input of inputSize.
func DecodeMask(protos []float32, maskDim, mh, mw int, coefs []float32, box image.Rectangle, inputSize int) []byte {
	mask := make([]byte, mh*mw)
	if inputSize <= 0 || len(coefs) < maskDim || len(protos) < maskDim*mh*mw {
		return mask
	}

	crop := image.Rect(
		box.Min.X*mw/inputSize, box.Min.Y*mh/inputSize,
		ceilDiv(box.Max.X*mw, inputSize), ceilDiv(box.Max.Y*mh, inputSize),
	).Intersect(image.Rect(0, 0, mw, mh))

	plane := mh * mw
	for y := crop.Min.Y; y < crop.Max.Y; y++ {
		for x := crop.Min.X; x < crop.Max.X; x++ {
			idx := y*mw + x
			var v float32
			for k := 0; k < maskDim; k++ {
				v += coefs[k] * protos[k*plane+idx]
			}
			// sigmoid(v) > 0.5
			if v > 0 {
				mask[idx] = 255
			}
		}
	}
	return mask
}

func ceilDiv(a, b int) int {
	if a <= 0 {
		return 0
	}
	return (a + b - 1) / b
}
