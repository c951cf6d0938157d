package detection

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facecam/pkg/faceapi"
	"github.com/teslashibe/go-facecam/pkg/models"
)

// LandmarkNet regresses 68 points from a square face crop. The model
// outputs 136 values: x,y pairs normalized to the crop.
type LandmarkNet struct {
	onnxNet
	inputSize int
	padding   float64
}

// NewLandmarkNet creates an unloaded landmark net.
func NewLandmarkNet(cfg Config) *LandmarkNet {
	return &LandmarkNet{
		onnxNet:   onnxNet{name: models.Landmark, file: models.LandmarkFile},
		inputSize: cfg.LandmarkInput,
		padding:   cfg.CropPadding,
	}
}

// Landmarks returns the 68 points for the face in box, in img pixels.
func (l *LandmarkNet) Landmarks(img gocv.Mat, box faceapi.Box) (*faceapi.FaceLandmarks68, error) {
	crop := squareCrop(box, l.padding, img.Cols(), img.Rows())
	if crop.Empty() {
		return nil, faceapi.ErrEmptyFrame
	}
	region := img.Region(crop)
	defer region.Close()

	blob := gocv.BlobFromImage(region, 1.0/255.0, image.Pt(l.inputSize, l.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	out, err := l.forward(blob)
	if err != nil {
		return nil, err
	}
	dims := faceapi.Dimensions{Width: img.Cols(), Height: img.Rows()}
	return parseLandmarks(out, crop, dims)
}

func parseLandmarks(out []float32, crop image.Rectangle, dims faceapi.Dimensions) (*faceapi.FaceLandmarks68, error) {
	if len(out) < 2*faceapi.NumLandmarks {
		return nil, fmt.Errorf("landmark output has %d values, want %d", len(out), 2*faceapi.NumLandmarks)
	}
	lm := &faceapi.FaceLandmarks68{ImageDims: dims}
	w := float64(crop.Dx())
	h := float64(crop.Dy())
	for i := 0; i < faceapi.NumLandmarks; i++ {
		lm.Points[i] = faceapi.Point{
			X: float64(crop.Min.X) + float64(out[2*i])*w,
			Y: float64(crop.Min.Y) + float64(out[2*i+1])*h,
		}
	}
	return lm, nil
}
