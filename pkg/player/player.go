// Package player models the page's video element: it plays a capture
// stream and dispatches media events to listeners.
package player

import (
	"errors"
	"sync"

	"github.com/teslashibe/go-facecam/pkg/capture"
	"github.com/teslashibe/go-facecam/pkg/faceapi"
)

// Display size of the video element.
const (
	Width  = 720
	Height = 560
)

// ErrClosed is returned when a source is attached after Close.
var ErrClosed = errors.New("player: video closed")

// Event is a media event name.
type Event string

const (
	EventPlaying Event = "playing"
	EventEnded   Event = "ended"
)

// Video is an autoplaying, muted video element.
type Video struct {
	Width  int
	Height int

	mu        sync.RWMutex
	src       capture.Stream
	stop      chan struct{}
	listeners map[Event][]func()
	closed    bool
}

// NewVideo returns a 720x560 element with no source.
func NewVideo() *Video {
	return &Video{Width: Width, Height: Height, listeners: make(map[Event][]func())}
}

// DisplaySize is the element's rendered size.
func (v *Video) DisplaySize() faceapi.Dimensions {
	return faceapi.Dimensions{Width: v.Width, Height: v.Height}
}

// OnPlaying registers fn for the playing event.
func (v *Video) OnPlaying(fn func()) { v.addListener(EventPlaying, fn) }

// OnEnded registers fn for the ended event.
func (v *Video) OnEnded(fn func()) { v.addListener(EventEnded, fn) }

func (v *Video) addListener(e Event, fn func()) {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.listeners[e] = append(v.listeners[e], fn)
}

// Dispatch runs the listeners of e in registration order on the calling
// goroutine.
func (v *Video) Dispatch(e Event) {
	v.mu.RLock()
	fns := append([]func(){}, v.listeners[e]...)
	v.mu.RUnlock()
	for _, fn := range fns {
		fn()
	}
}

// SetSrcObject attaches s and starts playback. The first frame of s
// dispatches playing; the end of s dispatches ended. A nil s detaches
// the current source without an event. After Close it returns ErrClosed
// and leaves s untouched.
func (v *Video) SetSrcObject(s capture.Stream) error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return ErrClosed
	}
	if v.stop != nil {
		close(v.stop)
		v.stop = nil
	}
	v.src = s
	var stop chan struct{}
	if s != nil {
		stop = make(chan struct{})
		v.stop = stop
	}
	v.mu.Unlock()

	if s != nil {
		go v.play(s, stop)
	}
	return nil
}

// SrcObject returns the attached stream, or nil.
func (v *Video) SrcObject() capture.Stream {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.src
}

// CurrentFrame returns the frame on screen.
func (v *Video) CurrentFrame() (faceapi.Frame, bool) {
	s := v.SrcObject()
	if s == nil {
		return faceapi.Frame{}, false
	}
	return s.Latest()
}

func (v *Video) play(s capture.Stream, stop <-chan struct{}) {
	if _, ok := s.Latest(); !ok {
		select {
		case <-s.Frames():
		case <-s.Done():
			v.finish(stop)
			return
		case <-stop:
			return
		}
	}
	v.Dispatch(EventPlaying)

	select {
	case <-s.Done():
		v.finish(stop)
	case <-stop:
	}
}

// finish dispatches ended unless the source was replaced meanwhile.
func (v *Video) finish(stop <-chan struct{}) {
	select {
	case <-stop:
		return
	default:
	}
	v.Dispatch(EventEnded)
}

// Close unmounts the element: it stops the stream and fires ended once.
func (v *Video) Close() error {
	v.mu.Lock()
	if v.closed {
		v.mu.Unlock()
		return nil
	}
	v.closed = true
	src := v.src
	if v.stop != nil {
		close(v.stop)
		v.stop = nil
	}
	v.mu.Unlock()

	v.Dispatch(EventEnded)
	if src != nil {
		return src.Close()
	}
	return nil
}
