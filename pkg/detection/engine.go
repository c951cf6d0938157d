package detection

import (
	"context"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facecam/internal/log"
	"github.com/teslashibe/go-facecam/pkg/faceapi"
)

// Engine runs detection, then landmarks and expressions per face.
// Inference is serialized; OpenCV nets are not safe for concurrent use.
type Engine struct {
	nets   *Nets
	mu     sync.Mutex
	closed bool
}

var _ faceapi.Engine = (*Engine)(nil)

// NewEngine wraps loaded (or soon to be loaded) nets.
func NewEngine(nets *Nets) *Engine {
	return &Engine{nets: nets}
}

// Detect finds every face in frame with landmarks and expressions, and
// descriptors when opts.WithDescriptors is set.
func (e *Engine) Detect(ctx context.Context, frame faceapi.Frame, opts faceapi.TinyFaceDetectorOptions) ([]faceapi.Result, error) {
	if err := opts.Validate(); err != nil {
		return nil, err
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	if e.closed {
		return nil, faceapi.ErrEngineClosed
	}
	if !e.nets.Loaded() {
		return nil, faceapi.ErrNotLoaded
	}
	if frame.Empty() {
		return nil, faceapi.ErrEmptyFrame
	}

	img, err := gocv.IMDecode(frame.JPEG, gocv.IMReadColor)
	if err != nil {
		return nil, faceapi.WrapStage(faceapi.StageDecode, err)
	}
	defer img.Close()
	if img.Empty() {
		return nil, faceapi.WrapStage(faceapi.StageDecode, faceapi.ErrEmptyFrame)
	}

	dets, err := e.nets.Detector.Detect(img, opts.InputSize, opts.ScoreThreshold)
	if err != nil {
		return nil, faceapi.WrapStage(faceapi.StageDetect, err)
	}

	results := make([]faceapi.Result, 0, len(dets))
	for _, det := range dets {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		lm, err := e.nets.Landmarks.Landmarks(img, det.Box)
		if err != nil {
			return nil, faceapi.WrapStage(faceapi.StageLandmarks, err)
		}
		exprs, err := e.nets.Expressions.Expressions(img, det.Box)
		if err != nil {
			return nil, faceapi.WrapStage(faceapi.StageExpressions, err)
		}

		res := faceapi.Result{Detection: det, Landmarks: lm, Expressions: exprs}
		if opts.WithDescriptors {
			desc, err := e.nets.Recognition.Descriptor(img, det.Box)
			if err != nil {
				return nil, faceapi.WrapStage(faceapi.StageDescriptor, err)
			}
			res.Descriptor = desc
		}
		results = append(results, res)
	}

	if len(results) > 0 {
		log.Debug("faces detected", "frame", frame.ID, "count", len(results))
	}
	return results, nil
}

// Close releases the nets. Further Detect calls fail with ErrEngineClosed.
func (e *Engine) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.closed {
		return nil
	}
	e.closed = true
	return e.nets.Close()
}
