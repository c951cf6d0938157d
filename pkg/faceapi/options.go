package faceapi

import "fmt"

// Default detector options.
const (
	DefaultInputSize      = 416
	DefaultScoreThreshold = 0.5
)

// TinyFaceDetectorOptions tunes face localization.
type TinyFaceDetectorOptions struct {
	// InputSize is the square network input side; a multiple of 32.
	InputSize int

	// ScoreThreshold drops faces scoring below it.
	ScoreThreshold float64

	// WithDescriptors also computes recognition embeddings.
	WithDescriptors bool
}

// DefaultTinyFaceDetectorOptions returns the stock options (416, 0.5).
func DefaultTinyFaceDetectorOptions() TinyFaceDetectorOptions {
	return TinyFaceDetectorOptions{
		InputSize:      DefaultInputSize,
		ScoreThreshold: DefaultScoreThreshold,
	}
}

// Validate checks the option ranges.
func (o TinyFaceDetectorOptions) Validate() error {
	if o.InputSize <= 0 || o.InputSize%32 != 0 {
		return fmt.Errorf("%w: input size %d is not a positive multiple of 32", ErrInvalidOptions, o.InputSize)
	}
	if o.ScoreThreshold <= 0 || o.ScoreThreshold > 1 {
		return fmt.Errorf("%w: score threshold %.2f outside (0,1]", ErrInvalidOptions, o.ScoreThreshold)
	}
	return nil
}
