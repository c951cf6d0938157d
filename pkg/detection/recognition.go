package detection

import (
	"image"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facecam/pkg/faceapi"
	"github.com/teslashibe/go-facecam/pkg/models"
)

// RecognitionNet computes an SFace identity embedding.
type RecognitionNet struct {
	onnxNet
	inputSize int
	padding   float64
}

// NewRecognitionNet creates an unloaded recognition net.
func NewRecognitionNet(cfg Config) *RecognitionNet {
	return &RecognitionNet{
		onnxNet:   onnxNet{name: models.Recognition, file: models.RecognitionFile},
		inputSize: cfg.RecognitionInput,
		padding:   cfg.CropPadding,
	}
}

// Descriptor returns the unit-length embedding for the face in box.
func (r *RecognitionNet) Descriptor(img gocv.Mat, box faceapi.Box) ([]float32, error) {
	crop := squareCrop(box, r.padding, img.Cols(), img.Rows())
	if crop.Empty() {
		return nil, faceapi.ErrEmptyFrame
	}
	region := img.Region(crop)
	defer region.Close()

	blob := gocv.BlobFromImage(region, 1.0, image.Pt(r.inputSize, r.inputSize), gocv.NewScalar(0, 0, 0, 0), true, false)
	defer blob.Close()

	out, err := r.forward(blob)
	if err != nil {
		return nil, err
	}
	return l2Normalize(out), nil
}
