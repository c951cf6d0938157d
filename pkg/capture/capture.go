// Package capture acquires a live video stream from a camera device.
//
// A Device hands out a Stream the same way a browser's getUserMedia does:
// the caller asks with constraints and either gets a running stream or an
// error (no camera, permission denied, unsupported constraints).
package capture

import (
	"context"
	"errors"
	"fmt"

	"github.com/teslashibe/go-facecam/pkg/faceapi"
)

var (
	ErrAudioUnsupported = errors.New("capture: audio capture is not supported")
	ErrNoDevice         = errors.New("capture: no camera device")
	ErrClosed           = errors.New("capture: stream closed")
)

// VideoConstraints narrows the requested video track. Zero values mean
// "device default", matching an empty `{video: {}}` request.
type VideoConstraints struct {
	Width     int `json:"width,omitempty"`
	Height    int `json:"height,omitempty"`
	FrameRate int `json:"frame_rate,omitempty"`
}

// Constraints is the getUserMedia request.
type Constraints struct {
	Video VideoConstraints `json:"video"`
	Audio bool             `json:"audio,omitempty"`
}

// Validate rejects requests no device here can satisfy.
func (c Constraints) Validate() error {
	if c.Audio {
		return ErrAudioUnsupported
	}
	if c.Video.Width < 0 || c.Video.Height < 0 || c.Video.FrameRate < 0 {
		return fmt.Errorf("capture: invalid video constraints %+v", c.Video)
	}
	return nil
}

// Stream is a live video track.
type Stream interface {
	// ID is unique per stream.
	ID() string
	// Latest returns the most recent frame, if any frame arrived yet.
	Latest() (faceapi.Frame, bool)
	// Frames returns a new subscription to incoming frames, primed with
	// the latest one. Slow readers miss frames.
	Frames() <-chan faceapi.Frame
	// Done closes when the stream ends.
	Done() <-chan struct{}
	// Err reports why the stream ended; nil after a plain Close.
	Err() error
	Close() error
}

// Device grants access to a camera.
type Device interface {
	GetUserMedia(ctx context.Context, c Constraints) (Stream, error)
}
