package detection

import (
	"context"
	"fmt"
	"image"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facecam/pkg/faceapi"
	"github.com/teslashibe/go-facecam/pkg/models"
)

// DetectorNet uses OpenCV's FaceDetectorYN for face localization
type DetectorNet struct {
	detector gocv.FaceDetectorYN
	config   Config
	loaded   bool
	mu       sync.Mutex // Protects inference
}

// NewDetectorNet creates an unloaded YuNet detector.
func NewDetectorNet(cfg Config) *DetectorNet {
	return &DetectorNet{config: cfg}
}

func (d *DetectorNet) Name() string    { return models.Detector }
func (d *DetectorNet) Files() []string { return []string{models.DetectorFile} }

// IsLoaded reports whether Load succeeded.
func (d *DetectorNet) IsLoaded() bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loaded
}

// Load creates the FaceDetectorYN from the model file.
func (d *DetectorNet) Load(ctx context.Context, paths []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(paths) != 1 {
		return fmt.Errorf("%s: expected 1 file, got %d", d.Name(), len(paths))
	}
	// Check if model file exists first
	if _, err := os.Stat(paths[0]); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", paths[0])
	}

	// Create FaceDetectorYN with initial size (will be updated per-image)
	detector := gocv.NewFaceDetectorYNWithParams(
		paths[0],
		"", // No config file needed for ONNX
		image.Pt(d.config.InputWidth, d.config.InputHeight),
		float32(d.config.ScoreThresh),
		float32(d.config.NMSThresh),
		d.config.TopK,
		int(gocv.NetBackendDefault),
		int(gocv.NetTargetCPU),
	)

	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		d.detector.Close()
	}
	d.detector = detector
	d.loaded = true
	return nil
}

// Detect finds faces in img. The image is downscaled so its longer side
// fits inputSize; boxes are returned in img pixels.
func (d *DetectorNet) Detect(img gocv.Mat, inputSize int, scoreThresh float64) ([]faceapi.FaceDetection, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if !d.loaded {
		return nil, faceapi.ErrNotLoaded
	}
	if img.Empty() {
		return nil, faceapi.ErrEmptyFrame
	}

	imgW, imgH := img.Cols(), img.Rows()
	scale := fitScale(imgW, imgH, inputSize)

	input := img
	if scale < 1 {
		resized := gocv.NewMat()
		defer resized.Close()
		gocv.Resize(img, &resized, image.Point{}, scale, scale, gocv.InterpolationLinear)
		input = resized
	}

	// Update detector input size to match image
	d.detector.SetInputSize(image.Pt(input.Cols(), input.Rows()))

	faces := gocv.NewMat()
	defer faces.Close()
	d.detector.Detect(input, &faces)

	dims := faceapi.Dimensions{Width: imgW, Height: imgH}
	var detections []faceapi.FaceDetection
	for r := 0; r < faces.Rows(); r++ {
		// YuNet output format (15 columns):
		// 0-3: x, y, w, h (bounding box in pixels)
		// 4-13: 5 facial landmarks (x,y pairs)
		// 14: face score
		row := make([]float32, 15)
		for c := range row {
			row[c] = faces.GetFloatAt(r, c)
		}
		det, ok := parseYuNetRow(row, scale, dims, scoreThresh)
		if ok {
			detections = append(detections, det)
		}
	}
	return detections, nil
}

// Close releases the detector resources
func (d *DetectorNet) Close() {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.loaded {
		d.detector.Close()
		d.loaded = false
	}
}

// parseYuNetRow maps one output row back to image pixels and clips it.
func parseYuNetRow(row []float32, scale float64, dims faceapi.Dimensions, scoreThresh float64) (faceapi.FaceDetection, bool) {
	if len(row) < 15 || scale <= 0 {
		return faceapi.FaceDetection{}, false
	}
	score := float64(row[14])
	if score < scoreThresh {
		return faceapi.FaceDetection{}, false
	}
	box := faceapi.Box{
		X:      float64(row[0]) / scale,
		Y:      float64(row[1]) / scale,
		Width:  float64(row[2]) / scale,
		Height: float64(row[3]) / scale,
	}.Clip(float64(dims.Width), float64(dims.Height))
	if box.Area() <= 0 {
		return faceapi.FaceDetection{}, false
	}
	return faceapi.FaceDetection{Box: box, Score: score, ImageDims: dims}, true
}

// fitScale returns the factor that fits the longer side into size, capped at 1.
func fitScale(w, h, size int) float64 {
	longer := w
	if h > longer {
		longer = h
	}
	if size <= 0 || longer <= size {
		return 1
	}
	return float64(size) / float64(longer)
}
