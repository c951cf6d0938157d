// Package detection runs the face pipeline on OpenCV DNN models:
// YuNet localization, a 68-point landmark regressor, an SFace
// recognition embedding and a FER+ expression classifier.
package detection

import "github.com/teslashibe/go-facecam/pkg/models"

// Config holds detector configuration
type Config struct {
	// Face localization (YuNet)
	ScoreThresh float64 // Minimum confidence (default 0.5)
	NMSThresh   float64 // Non-maximum suppression IoU (default 0.3)
	TopK        int     // Candidate cap before NMS
	InputWidth  int     // Initial model input width
	InputHeight int     // Initial model input height

	// Crop sizes for the per-face nets
	LandmarkInput    int
	ExpressionInput  int
	RecognitionInput int

	// CropPadding grows the square face crop by this fraction per side.
	CropPadding float64
}

// DefaultConfig returns production defaults
func DefaultConfig() Config {
	return Config{
		ScoreThresh:      0.5,
		NMSThresh:        0.3,
		TopK:             5000,
		InputWidth:       320,
		InputHeight:      320,
		LandmarkInput:    112,
		ExpressionInput:  64,
		RecognitionInput: 112,
		CropPadding:      0.1,
	}
}

// Nets is the set of four bundles the engine runs.
type Nets struct {
	Detector    *DetectorNet
	Landmarks   *LandmarkNet
	Recognition *RecognitionNet
	Expressions *ExpressionNet
}

// NewNets creates unloaded nets.
func NewNets(cfg Config) *Nets {
	return &Nets{
		Detector:    NewDetectorNet(cfg),
		Landmarks:   NewLandmarkNet(cfg),
		Recognition: NewRecognitionNet(cfg),
		Expressions: NewExpressionNet(cfg),
	}
}

// Bundles returns the nets for a models.Loader, in bundle order.
func (n *Nets) Bundles() []models.Net {
	return []models.Net{n.Detector, n.Landmarks, n.Recognition, n.Expressions}
}

// Loaded reports whether all four nets are loaded.
func (n *Nets) Loaded() bool {
	return n.Detector.IsLoaded() && n.Landmarks.IsLoaded() &&
		n.Recognition.IsLoaded() && n.Expressions.IsLoaded()
}

// Close releases every net.
func (n *Nets) Close() error {
	n.Detector.Close()
	n.Landmarks.Close()
	n.Recognition.Close()
	n.Expressions.Close()
	return nil
}
