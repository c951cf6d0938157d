package overlay

import (
	"errors"
	"fmt"
	"image"
	"image/color"
	"math"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facecam/pkg/faceapi"
)

const (
	canvasFont      = gocv.FontHersheySimplex
	canvasThickness = 1
)

// Canvas is a transparent BGRA OpenCV surface.
type Canvas struct {
	mu   sync.Mutex
	mat  gocv.Mat
	dims faceapi.Dimensions
}

var _ Surface = (*Canvas)(nil)

// CreateCanvasFromMedia creates a transparent canvas matching the video's
// display size.
func CreateCanvasFromMedia(dims faceapi.Dimensions) (*Canvas, error) {
	if dims.Empty() {
		return nil, fmt.Errorf("overlay: invalid canvas size %dx%d", dims.Width, dims.Height)
	}
	mat := gocv.NewMatWithSizeFromScalar(gocv.NewScalar(0, 0, 0, 0), dims.Height, dims.Width, gocv.MatTypeCV8UC4)
	if mat.Empty() {
		return nil, errors.New("overlay: canvas allocation failed")
	}
	return &Canvas{mat: mat, dims: dims}, nil
}

func (c *Canvas) Dimensions() faceapi.Dimensions { return c.dims }

func (c *Canvas) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.mat.SetTo(gocv.NewScalar(0, 0, 0, 0))
}

func (c *Canvas) StrokeRect(b faceapi.Box, col color.RGBA, lineWidth int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gocv.Rectangle(&c.mat, toRect(b), col, max(1, lineWidth))
}

func (c *Canvas) FillRect(b faceapi.Box, col color.RGBA) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gocv.Rectangle(&c.mat, toRect(b), col, -1)
}

func (c *Canvas) Line(from, to faceapi.Point, col color.RGBA, lineWidth int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	gocv.Line(&c.mat, toPt(from), toPt(to), col, max(1, lineWidth))
}

func (c *Canvas) Circle(center faceapi.Point, radius float64, col color.RGBA, filled bool) {
	thickness := 1
	if filled {
		thickness = -1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	gocv.Circle(&c.mat, toPt(center), max(1, int(math.Round(radius))), col, thickness)
}

// Text converts the top-left anchor to OpenCV's baseline origin.
func (c *Canvas) Text(at faceapi.Point, text string, fontScale float64, col color.RGBA) {
	size := gocv.GetTextSize(text, canvasFont, fontScale, canvasThickness)
	org := image.Pt(int(math.Round(at.X)), int(math.Round(at.Y))+size.Y)
	c.mu.Lock()
	defer c.mu.Unlock()
	gocv.PutText(&c.mat, text, org, canvasFont, fontScale, col, canvasThickness)
}

func (c *Canvas) MeasureText(text string, fontScale float64) (int, int) {
	size := gocv.GetTextSize(text, canvasFont, fontScale, canvasThickness)
	return size.X, size.Y
}

// EncodePNG returns the canvas as a PNG with alpha.
func (c *Canvas) EncodePNG() ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	buf, err := gocv.IMEncode(gocv.PNGFileExt, c.mat)
	if err != nil {
		return nil, fmt.Errorf("overlay: encode: %w", err)
	}
	defer buf.Close()
	data := buf.GetBytes()
	out := make([]byte, len(data))
	copy(out, data)
	return out, nil
}

// Close releases the canvas memory.
func (c *Canvas) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.mat.Close()
}

func toPt(p faceapi.Point) image.Point {
	return image.Pt(int(math.Round(p.X)), int(math.Round(p.Y)))
}

func toRect(b faceapi.Box) image.Rectangle {
	return image.Rect(
		int(math.Round(b.X)), int(math.Round(b.Y)),
		int(math.Round(b.Right())), int(math.Round(b.Bottom())),
	)
}
