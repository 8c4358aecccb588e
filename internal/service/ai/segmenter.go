package ai

import (
	"fmt"
	"image"
	"image/color"
	"os"

	"gocv.io/x/gocv"
	"potholeserver/internal/service/detection"
)

var (
	maskColor  = color.RGBA{R: 255, G: 56, B: 56, A: 0}
	barColor   = color.RGBA{R: 255, G: 0, B: 0, A: 0}
	textColor  = color.RGBA{R: 255, G: 255, B: 255, A: 0}
	textOrigin = image.Pt(40, 80)
)

// Segmenter wraps one YOLO-seg network. A gocv.Net must not be shared between goroutines.
type Segmenter struct {
	net         gocv.Net
	outputNames []string
}

// NewSegmenter loads an ONNX segmentation model and sets CPU backend preferences.
func NewSegmenter(modelPath string) (*Segmenter, error) {
	if _, err := os.Stat(modelPath); os.IsNotExist(err) {
		return nil, fmt.Errorf("model file not found: %s", modelPath)
	}

	net := gocv.ReadNetFromONNX(modelPath)
	if net.Empty() {
		return nil, fmt.Errorf("failed to load network from %s", modelPath)
	}

	errBackend := net.SetPreferableBackend(gocv.NetBackendDefault)
	errTarget := net.SetPreferableTarget(gocv.NetTargetCPU)
	if errBackend != nil || errTarget != nil {
		net.Close()
		return nil, fmt.Errorf("failed to set preferable backend or target")
	}

	return &Segmenter{net: net, outputNames: outputLayerNames(&net)}, nil
}

// Close releases the network.
func (s *Segmenter) Close() {
	s.net.Close()
}

// Analyze decodes the image, segments damage regions, and returns the ratio and an annotated JPEG.
func (s *Segmenter) Analyze(imageBytes []byte, opts detection.Options) (*detection.Report, error) {
	mat, err := gocv.IMDecode(imageBytes, gocv.IMReadColor)
	if err != nil || mat.Empty() {
		if err == nil {
			mat.Close()
		}
		return nil, detection.ErrUndecodable
	}
	defer mat.Close()

	width, height := mat.Cols(), mat.Rows()

	blob := gocv.BlobFromImage(mat, 1.0/255.0, image.Pt(opts.ImageSize, opts.ImageSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	s.net.SetInput(blob, "")
	outputs := s.net.ForwardLayers(s.outputNames)
	defer func() {
		for i := range outputs {
			outputs[i].Close()
		}
	}()

	contours, masks, err := s.segment(outputs, width, height, opts)
	defer func() {
		for i := range contours {
			contours[i].Close()
		}
	}()
	if err != nil {
		return nil, err
	}

	report := &detection.Report{
		Width:  width,
		Height: height,
		Masks:  masks,
		Ratio:  detection.DamageRatio(masks, width, height),
	}

	annotated, err := annotate(mat, contours, report.Percentage())
	if err == nil {
		report.Annotated = annotated
	}
	return report, nil
}

// segment turns raw network outputs into per-region binary masks and their first contour.
func (s *Segmenter) segment(outputs []gocv.Mat, width, height int, opts detection.Options) ([]gocv.PointsVector, []detection.Mask, error) {
	pred, protos, err := splitOutputs(outputs)
	if err != nil {
		return nil, nil, err
	}

	protoDims := protos.Size() // [1, maskDim, mh, mw]
	maskDim, mh, mw := protoDims[1], protoDims[2], protoDims[3]

	predData, err := pred.DataPtrFloat32()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read predictions: %w", err)
	}
	protoData, err := protos.DataPtrFloat32()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to read mask prototypes: %w", err)
	}

	candidates, err := detection.ParsePredictions(predData, pred.Size(), maskDim, opts.Confidence)
	if err != nil {
		return nil, nil, err
	}
	if len(candidates) == 0 {
		return nil, nil, nil
	}

	boxes := make([]image.Rectangle, len(candidates))
	scores := make([]float32, len(candidates))
	for i, c := range candidates {
		boxes[i] = c.Box
		scores[i] = c.Score
	}
	keep := gocv.NMSBoxes(boxes, scores, opts.Confidence, opts.NMS)

	var contours []gocv.PointsVector
	var masks []detection.Mask
	for _, idx := range keep {
		c := candidates[idx]
		buf := detection.DecodeMask(protoData, maskDim, mh, mw, c.Coefs, c.Box, opts.ImageSize)

		pv, area, err := maskContour(buf, mh, mw, width, height)
		if err != nil {
			return contours, nil, err
		}
		contours = append(contours, pv)
		masks = append(masks, detection.Mask{Area: area, Confidence: c.Score})
	}
	return contours, masks, nil
}

// maskContour upsamples a prototype-space mask to the image and measures its first contour.
func maskContour(buf []byte, mh, mw, width, height int) (gocv.PointsVector, float64, error) {
	small, err := gocv.NewMatFromBytes(mh, mw, gocv.MatTypeCV8U, buf)
	if err != nil {
		return gocv.PointsVector{}, 0, fmt.Errorf("failed to build mask: %w", err)
	}
	defer small.Close()

	resized := gocv.NewMat()
	defer resized.Close()
	gocv.Resize(small, &resized, image.Pt(width, height), 0, 0, gocv.InterpolationLinear)

	binary := gocv.NewMat()
	defer binary.Close()
	gocv.Threshold(resized, &binary, 127, 255, gocv.ThresholdBinary)

	contours := gocv.FindContours(binary, gocv.RetrievalTree, gocv.ChainApproxSimple)
	area := 0.0
	if contours.Size() > 0 {
		area = gocv.ContourArea(contours.At(0))
	}
	return contours, area, nil
}

// annotate overlays the regions and a damage banner, then re-encodes as JPEG.
func annotate(mat gocv.Mat, contours []gocv.PointsVector, percentage float64) ([]byte, error) {
	frame := mat.Clone()
	defer frame.Close()

	if len(contours) > 0 {
		overlay := mat.Clone()
		defer overlay.Close()
		for _, pv := range contours {
			gocv.DrawContours(&overlay, pv, -1, maskColor, -1)
		}
		gocv.AddWeighted(mat, 0.6, overlay, 0.4, 0, &frame)

		gocv.Line(&frame, image.Pt(textOrigin.X, textOrigin.Y-10), image.Pt(textOrigin.X+350, textOrigin.Y-10), barColor, 40)
		gocv.PutTextWithParams(&frame, fmt.Sprintf("Road Damage: %.2f%%", percentage), textOrigin,
			gocv.FontHersheySimplex, 1, textColor, 2, gocv.LineAA, false)
	}

	buf, err := gocv.IMEncode(".jpg", frame)
	if err != nil {
		return nil, fmt.Errorf("failed to encode image: %w", err)
	}
	defer buf.Close()

	encoded := make([]byte, len(buf.GetBytes()))
	copy(encoded, buf.GetBytes())
	return encoded, nil
}

// splitOutputs picks the [1,C,N] prediction tensor and the [1,32,mh,mw] prototypes.
func splitOutputs(outputs []gocv.Mat) (gocv.Mat, gocv.Mat, error) {
	var pred, protos gocv.Mat
	var havePred, haveProtos bool
	for _, out := range outputs {
		switch len(out.Size()) {
		case 3:
			pred, havePred = out, true
		case 4:
			protos, haveProtos = out, true
		}
	}
	if !havePred || !haveProtos {
		return pred, protos, fmt.Errorf("model is not a segmentation model: got %d outputs", len(outputs))
	}
	return pred, protos, nil
}

func outputLayerNames(net *gocv.Net) []string {
	var names []string
	for _, id := range net.GetUnconnectedOutLayers() {
		layer := net.GetLayer(id)
		if name := layer.GetName(); name != "_input" {
			names = append(names, name)
		}
	}
	return names
}
