// Package overlay renders detection annotations onto a transparent
// drawing surface laid over the video.
package overlay

import (
	"errors"
	"image/color"
	"sync"

	"github.com/teslashibe/go-facecam/pkg/faceapi"
)

// ErrSurfaceExists is returned when a container already holds a surface.
var ErrSurfaceExists = errors.New("overlay: container already holds a surface")

// Surface is a 2D drawing context.
type Surface interface {
	Dimensions() faceapi.Dimensions

	// Clear resets every pixel to transparent.
	Clear()

	StrokeRect(b faceapi.Box, c color.RGBA, lineWidth int)
	FillRect(b faceapi.Box, c color.RGBA)
	Line(from, to faceapi.Point, c color.RGBA, lineWidth int)
	Circle(center faceapi.Point, radius float64, c color.RGBA, filled bool)

	// Text draws one line with its top-left corner at at.
	Text(at faceapi.Point, text string, fontScale float64, c color.RGBA)

	// MeasureText returns the pixel size of one line.
	MeasureText(text string, fontScale float64) (width, height int)
}

// Container owns at most one surface.
type Container struct {
	mu      sync.Mutex
	surface Surface
}

// Append stores s. A second surface is refused.
func (c *Container) Append(s Surface) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.surface != nil {
		return ErrSurfaceExists
	}
	c.surface = s
	return nil
}

// Surface returns the held surface, or nil.
func (c *Container) Surface() Surface {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.surface
}

// Len returns 0 or 1.
func (c *Container) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.surface == nil {
		return 0
	}
	return 1
}
