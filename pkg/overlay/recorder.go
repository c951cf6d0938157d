package overlay

import (
	"image/color"
	"sync"

	"github.com/teslashibe/go-facecam/pkg/faceapi"
)

// Op names recorded by Recorder.
const (
	OpClear      = "clear"
	OpStrokeRect = "stroke_rect"
	OpFillRect   = "fill_rect"
	OpLine       = "line"
	OpCircle     = "circle"
	OpText       = "text"
)

// Op is one recorded drawing call.
type Op struct {
	Kind  string
	Box   faceapi.Box
	From  faceapi.Point
	To    faceapi.Point
	Text  string
	Color color.RGBA
}

// Recorder is a Surface that records calls instead of drawing. Text is
// measured at a fixed 7px per character per unit scale.
type Recorder struct {
	mu   sync.Mutex
	dims faceapi.Dimensions
	ops  []Op
}

var _ Surface = (*Recorder)(nil)

// NewRecorder creates a recorder of the given size.
func NewRecorder(dims faceapi.Dimensions) *Recorder {
	return &Recorder{dims: dims}
}

func (r *Recorder) add(op Op) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = append(r.ops, op)
}

func (r *Recorder) Dimensions() faceapi.Dimensions { return r.dims }
func (r *Recorder) Clear()                         { r.add(Op{Kind: OpClear}) }

func (r *Recorder) StrokeRect(b faceapi.Box, c color.RGBA, _ int) {
	r.add(Op{Kind: OpStrokeRect, Box: b, Color: c})
}

func (r *Recorder) FillRect(b faceapi.Box, c color.RGBA) {
	r.add(Op{Kind: OpFillRect, Box: b, Color: c})
}

func (r *Recorder) Line(from, to faceapi.Point, c color.RGBA, _ int) {
	r.add(Op{Kind: OpLine, From: from, To: to, Color: c})
}

func (r *Recorder) Circle(center faceapi.Point, _ float64, c color.RGBA, _ bool) {
	r.add(Op{Kind: OpCircle, From: center, Color: c})
}

func (r *Recorder) Text(at faceapi.Point, text string, _ float64, c color.RGBA) {
	r.add(Op{Kind: OpText, From: at, Text: text, Color: c})
}

func (r *Recorder) MeasureText(text string, fontScale float64) (int, int) {
	return int(float64(7*len(text)) * fontScale * 2), int(12 * fontScale * 2)
}

// Ops returns a copy of the recorded calls.
func (r *Recorder) Ops() []Op {
	r.mu.Lock()
	defer r.mu.Unlock()
	out := make([]Op, len(r.ops))
	copy(out, r.ops)
	return out
}

// Count returns how many ops of kind were recorded.
func (r *Recorder) Count(kind string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for _, op := range r.ops {
		if op.Kind == kind {
			n++
		}
	}
	return n
}

// Texts returns the recorded text lines in order.
func (r *Recorder) Texts() []string {
	r.mu.Lock()
	defer r.mu.Unlock()
	var out []string
	for _, op := range r.ops {
		if op.Kind == OpText {
			out = append(out, op.Text)
		}
	}
	return out
}

// Reset drops recorded calls.
func (r *Recorder) Reset() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.ops = nil
}
