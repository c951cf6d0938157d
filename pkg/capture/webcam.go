package capture

import (
	"context"
	"fmt"
	"io"
	"time"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facecam/internal/log"
	"github.com/teslashibe/go-facecam/pkg/faceapi"
)

// maxReadFailures ends a webcam stream after this many empty reads in a row.
const maxReadFailures = 30

// Webcam opens a local camera (device index) or a video file/URL through
// OpenCV.
type Webcam struct {
	// Source is an int device index or a string path/URL.
	Source any
}

// NewWebcam returns a webcam device for the given source.
func NewWebcam(source any) *Webcam {
	return &Webcam{Source: source}
}

// GetUserMedia opens the camera and starts reading frames.
func (w *Webcam) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	vc, err := gocv.OpenVideoCapture(w.Source)
	if err != nil {
		return nil, fmt.Errorf("%w: %v: %v", ErrNoDevice, w.Source, err)
	}
	if !vc.IsOpened() {
		vc.Close()
		return nil, fmt.Errorf("%w: %v", ErrNoDevice, w.Source)
	}
	if c.Video.Width > 0 {
		vc.Set(gocv.VideoCaptureFrameWidth, float64(c.Video.Width))
	}
	if c.Video.Height > 0 {
		vc.Set(gocv.VideoCaptureFrameHeight, float64(c.Video.Height))
	}
	if c.Video.FrameRate > 0 {
		vc.Set(gocv.VideoCaptureFPS, float64(c.Video.FrameRate))
	}

	s := &webcamStream{frameBuffer: newFrameBuffer(), vc: vc}
	if _, isFile := w.Source.(string); isFile {
		s.pace = paceFor(c.Video.FrameRate, vc.Get(gocv.VideoCaptureFPS))
	}
	log.Info("webcam opened", "source", w.Source, "stream", s.ID())

	go s.read()
	return s, nil
}

// paceFor returns the delay between frames for file sources, which
// otherwise decode as fast as the CPU allows.
func paceFor(requested int, native float64) time.Duration {
	switch {
	case requested > 0:
		return time.Second / time.Duration(requested)
	case native > 0:
		return time.Duration(float64(time.Second) / native)
	default:
		return 0
	}
}

type webcamStream struct {
	*frameBuffer
	vc   *gocv.VideoCapture
	pace time.Duration
}

func (s *webcamStream) read() {
	defer s.vc.Close()

	mat := gocv.NewMat()
	defer mat.Close()

	failures := 0
	for {
		select {
		case <-s.done:
			return
		default:
		}

		if ok := s.vc.Read(&mat); !ok || mat.Empty() {
			failures++
			if !ok || failures >= maxReadFailures {
				s.end(io.EOF)
				return
			}
			continue
		}
		failures = 0

		buf, err := gocv.IMEncode(gocv.JPEGFileExt, mat)
		if err != nil {
			log.Warn("webcam encode failed", "err", err)
			continue
		}
		data := buf.GetBytes()
		jpeg := make([]byte, len(data))
		copy(jpeg, data)
		buf.Close()

		s.push(jpeg, faceapi.Dimensions{Width: mat.Cols(), Height: mat.Rows()})

		if s.pace > 0 {
			select {
			case <-s.done:
				return
			case <-time.After(s.pace):
			}
		}
	}
}
