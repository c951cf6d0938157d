package capture

import (
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/teslashibe/go-facecam/pkg/faceapi"
)

// frameBuffer keeps the latest frame of a stream and fans new frames out
// to every subscriber. It is the shared core of every Stream.
type frameBuffer struct {
	id      string
	mu      sync.RWMutex
	latest  faceapi.Frame
	hasLast bool
	seq     uint64
	subs    []chan faceapi.Frame

	done chan struct{}
	once sync.Once
	err  error

	// onClose runs once when the stream ends, before Done closes.
	onClose func()
}

func newFrameBuffer() *frameBuffer {
	return &frameBuffer{
		id:   uuid.NewString(),
		done: make(chan struct{}),
	}
}

func (b *frameBuffer) ID() string { return b.id }

func (b *frameBuffer) Latest() (faceapi.Frame, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.latest, b.hasLast
}

// Frames subscribes to new frames. Each call returns a new subscription
// primed with the latest frame, if any.
func (b *frameBuffer) Frames() <-chan faceapi.Frame {
	ch := make(chan faceapi.Frame, 1)
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.hasLast {
		ch <- b.latest
	}
	b.subs = append(b.subs, ch)
	return ch
}

func (b *frameBuffer) Done() <-chan struct{} { return b.done }

func (b *frameBuffer) Err() error {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return b.err
}

// push stores a new JPEG frame. It drops the frame after the stream ended.
func (b *frameBuffer) push(jpeg []byte, size faceapi.Dimensions) {
	select {
	case <-b.done:
		return
	default:
	}

	b.mu.Lock()
	b.seq++
	f := faceapi.Frame{ID: b.seq, JPEG: jpeg, Size: size, CapturedAt: time.Now()}
	b.latest = f
	b.hasLast = true
	subs := b.subs
	b.mu.Unlock()

	for _, ch := range subs {
		offer(ch, f)
	}
}

// offer replaces a pending frame so readers always get the newest one.
func offer(ch chan faceapi.Frame, f faceapi.Frame) {
	select {
	case ch <- f:
		return
	default:
	}
	select {
	case <-ch:
	default:
	}
	select {
	case ch <- f:
	default:
	}
}

// end terminates the stream with err. Only the first call has effect.
func (b *frameBuffer) end(err error) {
	b.once.Do(func() {
		b.mu.Lock()
		b.err = err
		b.mu.Unlock()
		if b.onClose != nil {
			b.onClose()
		}
		close(b.done)
	})
}

func (b *frameBuffer) Close() error {
	b.end(nil)
	return nil
}
