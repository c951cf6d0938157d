package faceapi

import "context"

// Engine finds faces in a frame and analyzes landmarks and expressions.
// Implementations must be safe for concurrent use.
type Engine interface {
	// Detect returns every face in frame with landmarks and expressions.
	// Coordinates are in the frame's pixel space.
	Detect(ctx context.Context, frame Frame, opts TinyFaceDetectorOptions) ([]Result, error)

	// Close releases resources.
	Close() error
}
