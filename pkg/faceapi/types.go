// Package faceapi defines the face detection result model shared by the
// detection engine, the overlay renderer and the detection loop.
//
// Coordinates are in pixels of the image they were computed on. Use
// ResizeResults to move a result set into display coordinates.
package faceapi

import (
	"math"
	"time"
)

// Point is a 2D position in pixels.
type Point struct {
	X float64 `json:"x"`
	Y float64 `json:"y"`
}

// Scale returns the point scaled per axis.
func (p Point) Scale(sx, sy float64) Point {
	return Point{X: p.X * sx, Y: p.Y * sy}
}

// Box is an axis-aligned rectangle with its origin at the top-left.
type Box struct {
	X      float64 `json:"x"`
	Y      float64 `json:"y"`
	Width  float64 `json:"width"`
	Height float64 `json:"height"`
}

// Right returns the x coordinate of the right edge.
func (b Box) Right() float64 { return b.X + b.Width }

// Bottom returns the y coordinate of the bottom edge.
func (b Box) Bottom() float64 { return b.Y + b.Height }

// Area returns the box area.
func (b Box) Area() float64 { return b.Width * b.Height }

// BottomLeft is the anchor used for expression labels.
func (b Box) BottomLeft() Point { return Point{X: b.X, Y: b.Bottom()} }

// Center returns the center of the box.
func (b Box) Center() Point {
	return Point{X: b.X + b.Width/2, Y: b.Y + b.Height/2}
}

// Rescale scales position and size per axis.
func (b Box) Rescale(sx, sy float64) Box {
	return Box{X: b.X * sx, Y: b.Y * sy, Width: b.Width * sx, Height: b.Height * sy}
}

// Clip clamps the box to [0,w)x[0,h).
func (b Box) Clip(w, h float64) Box {
	x0 := math.Max(0, b.X)
	y0 := math.Max(0, b.Y)
	x1 := math.Min(w, b.Right())
	y1 := math.Min(h, b.Bottom())
	if x1 < x0 {
		x1 = x0
	}
	if y1 < y0 {
		y1 = y0
	}
	return Box{X: x0, Y: y0, Width: x1 - x0, Height: y1 - y0}
}

// Dimensions is a width/height pair in pixels.
type Dimensions struct {
	Width  int `json:"width"`
	Height int `json:"height"`
}

// Empty reports whether either side is non-positive.
func (d Dimensions) Empty() bool { return d.Width <= 0 || d.Height <= 0 }

// FaceDetection is one located face.
type FaceDetection struct {
	Box   Box     `json:"box"`
	Score float64 `json:"score"`

	// ImageDims is the size of the image the box was computed on.
	ImageDims Dimensions `json:"image_dims"`
}

// Result is a detected face with its landmark and expression analysis.
type Result struct {
	Detection   FaceDetection    `json:"detection"`
	Landmarks   *FaceLandmarks68 `json:"landmarks,omitempty"`
	Expressions FaceExpressions  `json:"expressions,omitempty"`

	// Descriptor is the recognition embedding, when requested.
	Descriptor []float32 `json:"descriptor,omitempty"`
}

// Frame is one captured video frame.
type Frame struct {
	ID         uint64
	JPEG       []byte
	Size       Dimensions
	CapturedAt time.Time
}

// Empty reports whether the frame carries no image.
func (f Frame) Empty() bool { return len(f.JPEG) == 0 }
