package detection

import (
	"fmt"
	"image"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facecam/pkg/faceapi"
	"github.com/teslashibe/go-facecam/pkg/models"
)

// ferPlusLabels is the FER+ output order. Contempt has no label of its
// own and is folded into disgusted.
var ferPlusLabels = []faceapi.Expression{
	faceapi.Neutral,
	faceapi.Happy,
	faceapi.Surprised,
	faceapi.Sad,
	faceapi.Angry,
	faceapi.Disgusted,
	faceapi.Fearful,
	faceapi.Disgusted, // contempt
}

// ExpressionNet classifies a grayscale face crop into seven expressions.
type ExpressionNet struct {
	onnxNet
	inputSize int
	padding   float64
}

// NewExpressionNet creates an unloaded expression net.
func NewExpressionNet(cfg Config) *ExpressionNet {
	return &ExpressionNet{
		onnxNet:   onnxNet{name: models.Expression, file: models.ExpressionFile},
		inputSize: cfg.ExpressionInput,
		padding:   cfg.CropPadding,
	}
}

// Expressions returns probabilities for the face in box.
func (e *ExpressionNet) Expressions(img gocv.Mat, box faceapi.Box) (faceapi.FaceExpressions, error) {
	crop := squareCrop(box, e.padding, img.Cols(), img.Rows())
	if crop.Empty() {
		return nil, faceapi.ErrEmptyFrame
	}
	region := img.Region(crop)
	defer region.Close()

	gray := gocv.NewMat()
	defer gray.Close()
	gocv.CvtColor(region, &gray, gocv.ColorBGRToGray)

	// FER+ takes raw 0-255 intensities.
	blob := gocv.BlobFromImage(gray, 1.0, image.Pt(e.inputSize, e.inputSize), gocv.NewScalar(0, 0, 0, 0), false, false)
	defer blob.Close()

	out, err := e.forward(blob)
	if err != nil {
		return nil, err
	}
	return parseFERPlus(out)
}

func parseFERPlus(logits []float32) (faceapi.FaceExpressions, error) {
	if len(logits) < len(ferPlusLabels) {
		return nil, fmt.Errorf("expression output has %d values, want %d", len(logits), len(ferPlusLabels))
	}
	probs := softmax(logits[:len(ferPlusLabels)])
	out := make(faceapi.FaceExpressions, len(faceapi.Expressions))
	for _, label := range faceapi.Expressions {
		out[label] = 0
	}
	for i, p := range probs {
		out[ferPlusLabels[i]] += p
	}
	return out, nil
}
