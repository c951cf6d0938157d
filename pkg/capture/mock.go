package capture

import (
	"context"
	"sync"

	"github.com/teslashibe/go-facecam/pkg/faceapi"
)

// MockDevice is a Device for tests. Set Err to make GetUserMedia fail the
// way a denied or missing camera does.
type MockDevice struct {
	mu      sync.Mutex
	Err     error
	calls   []Constraints
	streams []*MockStream
}

// NewMockDevice returns a device that grants every request.
func NewMockDevice() *MockDevice {
	return &MockDevice{}
}

func (d *MockDevice) GetUserMedia(ctx context.Context, c Constraints) (Stream, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.calls = append(d.calls, c)
	if d.Err != nil {
		return nil, d.Err
	}
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	s := &MockStream{frameBuffer: newFrameBuffer()}
	d.streams = append(d.streams, s)
	return s, nil
}

// Calls returns the constraints of every request.
func (d *MockDevice) Calls() []Constraints {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]Constraints, len(d.calls))
	copy(out, d.calls)
	return out
}

// Streams returns the streams handed out so far.
func (d *MockDevice) Streams() []*MockStream {
	d.mu.Lock()
	defer d.mu.Unlock()
	out := make([]*MockStream, len(d.streams))
	copy(out, d.streams)
	return out
}

// MockStream is a Stream fed by the test.
type MockStream struct {
	*frameBuffer
}

// NewMockStream returns a standalone stream.
func NewMockStream() *MockStream {
	return &MockStream{frameBuffer: newFrameBuffer()}
}

// Push delivers a frame.
func (s *MockStream) Push(jpeg []byte, size faceapi.Dimensions) {
	s.push(jpeg, size)
}

// End terminates the stream with err.
func (s *MockStream) End(err error) {
	s.end(err)
}
