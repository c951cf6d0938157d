package faceapi

import (
	"context"
	"sync"
	"time"
)

// Mock implements Engine for testing.
type Mock struct {
	// DetectFunc is called when Detect is invoked.
	DetectFunc func(ctx context.Context, frame Frame, opts TinyFaceDetectorOptions) ([]Result, error)

	// CloseFunc is called when Close is invoked.
	CloseFunc func() error

	mu    sync.Mutex
	calls []MockCall
}

// MockCall records a method invocation.
type MockCall struct {
	Method  string
	FrameID uint64
	Time    time.Time
}

// NewMock creates a mock engine that returns results for every frame.
func NewMock(results ...Result) *Mock {
	return &Mock{
		DetectFunc: func(ctx context.Context, frame Frame, opts TinyFaceDetectorOptions) ([]Result, error) {
			out := make([]Result, len(results))
			copy(out, results)
			return out, nil
		},
	}
}

// Detect calls DetectFunc and records the call.
func (m *Mock) Detect(ctx context.Context, frame Frame, opts TinyFaceDetectorOptions) ([]Result, error) {
	m.record("Detect", frame.ID)
	if m.DetectFunc != nil {
		return m.DetectFunc(ctx, frame, opts)
	}
	return nil, nil
}

// Close calls CloseFunc and records the call.
func (m *Mock) Close() error {
	m.record("Close", 0)
	if m.CloseFunc != nil {
		return m.CloseFunc()
	}
	return nil
}

func (m *Mock) record(method string, frameID uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = append(m.calls, MockCall{Method: method, FrameID: frameID, Time: time.Now()})
}

// Calls returns all recorded calls.
func (m *Mock) Calls() []MockCall {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]MockCall, len(m.calls))
	copy(out, m.calls)
	return out
}

// CallCount returns the number of calls to method.
func (m *Mock) CallCount(method string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	n := 0
	for _, c := range m.calls {
		if c.Method == method {
			n++
		}
	}
	return n
}

// Reset clears recorded calls.
func (m *Mock) Reset() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.calls = nil
}

// SampleResult builds a result with a box, a landmark grid spread over
// the box, and a happy-dominant expression map. Useful in tests.
func SampleResult(box Box, raw Dimensions) Result {
	lm := &FaceLandmarks68{ImageDims: raw}
	for i := range lm.Points {
		col := float64(i % 10)
		row := float64(i / 10)
		lm.Points[i] = Point{
			X: box.X + box.Width*(col+0.5)/10,
			Y: box.Y + box.Height*(row+0.5)/7,
		}
	}
	return Result{
		Detection: FaceDetection{Box: box, Score: 0.93, ImageDims: raw},
		Landmarks: lm,
		Expressions: FaceExpressions{
			Neutral: 0.05, Happy: 0.9, Sad: 0.01, Angry: 0.01,
			Fearful: 0.01, Disgusted: 0.01, Surprised: 0.01,
		},
	}
}
