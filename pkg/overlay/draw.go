package overlay

import (
	"fmt"
	"image/color"
	"math"

	"github.com/teslashibe/go-facecam/pkg/faceapi"
)

// Default colors.
var (
	BoxColor       = color.RGBA{0, 0, 255, 255}
	LandmarkLine   = color.RGBA{0, 255, 255, 255}
	LandmarkPoint  = color.RGBA{255, 0, 255, 255}
	TextColor      = color.RGBA{255, 255, 255, 255}
	TextBackground = color.RGBA{0, 0, 0, 128}
)

// DefaultMinConfidence hides expressions at or below this probability.
const DefaultMinConfidence = 0.1

// BoxOptions styles DrawDetections.
type BoxOptions struct {
	Color     color.RGBA
	LineWidth int
	WithScore bool
}

// LandmarkOptions styles DrawFaceLandmarks.
type LandmarkOptions struct {
	DrawLines  bool
	DrawPoints bool
	LineWidth  int
	PointSize  float64
	LineColor  color.RGBA
	PointColor color.RGBA
}

// TextFieldOptions styles label boxes.
type TextFieldOptions struct {
	FontScale  float64
	FontColor  color.RGBA
	Background color.RGBA
	Padding    int
}

// ExpressionOptions styles DrawFaceExpressions.
type ExpressionOptions struct {
	MinConfidence float64
	Text          TextFieldOptions
}

// Options bundles every layer's style.
type Options struct {
	Box         BoxOptions
	Landmarks   LandmarkOptions
	Expressions ExpressionOptions
}

// DefaultOptions returns the stock overlay style.
func DefaultOptions() Options {
	text := TextFieldOptions{FontScale: 0.5, FontColor: TextColor, Background: TextBackground, Padding: 4}
	return Options{
		Box: BoxOptions{Color: BoxColor, LineWidth: 2, WithScore: true},
		Landmarks: LandmarkOptions{
			DrawLines: true, DrawPoints: true,
			LineWidth: 1, PointSize: 2,
			LineColor: LandmarkLine, PointColor: LandmarkPoint,
		},
		Expressions: ExpressionOptions{MinConfidence: DefaultMinConfidence, Text: text},
	}
}

// Renderer draws one tick of annotations.
type Renderer interface {
	Clear(s Surface)
	DrawDetections(s Surface, results []faceapi.Result)
	DrawFaceLandmarks(s Surface, results []faceapi.Result)
	DrawFaceExpressions(s Surface, results []faceapi.Result)
}

// Draw is the default Renderer.
type Draw struct {
	Options Options
}

// NewDraw returns a renderer with DefaultOptions.
func NewDraw() *Draw { return &Draw{Options: DefaultOptions()} }

func (d *Draw) Clear(s Surface) { s.Clear() }

func (d *Draw) DrawDetections(s Surface, results []faceapi.Result) {
	DrawDetections(s, results, d.Options.Box, d.Options.Expressions.Text)
}

func (d *Draw) DrawFaceLandmarks(s Surface, results []faceapi.Result) {
	DrawFaceLandmarks(s, results, d.Options.Landmarks)
}

func (d *Draw) DrawFaceExpressions(s Surface, results []faceapi.Result) {
	DrawFaceExpressions(s, results, d.Options.Expressions)
}

// DrawDetections strokes each box and labels it with the rounded score
// just above its top-left corner.
func DrawDetections(s Surface, results []faceapi.Result, o BoxOptions, label TextFieldOptions) {
	for _, r := range results {
		box := r.Detection.Box
		s.StrokeRect(box, o.Color, o.LineWidth)
		if o.WithScore {
			text := fmt.Sprintf("%.2f", round2(r.Detection.Score))
			drawTextField(s, faceapi.Point{X: box.X, Y: box.Y}, []string{text}, label, true)
		}
	}
}

// DrawFaceLandmarks draws the 68-point contours and points. Jaw, brows
// and nose are open polylines; eyes and mouth are closed.
func DrawFaceLandmarks(s Surface, results []faceapi.Result, o LandmarkOptions) {
	for _, r := range results {
		lm := r.Landmarks
		if lm == nil {
			continue
		}
		if o.DrawLines {
			contour(s, lm.JawOutline(), false, o)
			contour(s, lm.LeftEyeBrow(), false, o)
			contour(s, lm.RightEyeBrow(), false, o)
			contour(s, lm.Nose(), false, o)
			contour(s, lm.LeftEye(), true, o)
			contour(s, lm.RightEye(), true, o)
			contour(s, lm.Mouth(), true, o)
		}
		if o.DrawPoints {
			for _, p := range lm.Positions() {
				s.Circle(p, o.PointSize, o.PointColor, true)
			}
		}
	}
}

// DrawFaceExpressions lists, below each box, the expressions whose
// probability exceeds MinConfidence, most probable first.
func DrawFaceExpressions(s Surface, results []faceapi.Result, o ExpressionOptions) {
	for _, r := range results {
		scores := r.Expressions.Above(o.MinConfidence)
		if len(scores) == 0 {
			continue
		}
		lines := make([]string, len(scores))
		for i, sc := range scores {
			lines[i] = fmt.Sprintf("%s (%.2f)", sc.Expression, round2(sc.Probability))
		}
		drawTextField(s, r.Detection.Box.BottomLeft(), lines, o.Text, false)
	}
}

func contour(s Surface, pts []faceapi.Point, closed bool, o LandmarkOptions) {
	for i := 1; i < len(pts); i++ {
		s.Line(pts[i-1], pts[i], o.LineColor, o.LineWidth)
	}
	if closed && len(pts) > 2 {
		s.Line(pts[len(pts)-1], pts[0], o.LineColor, o.LineWidth)
	}
}

// drawTextField draws a padded background and lines of text. When above
// is true the field's bottom-left sits at anchor, otherwise its top-left.
// The field is shifted to stay inside the surface.
func drawTextField(s Surface, anchor faceapi.Point, lines []string, o TextFieldOptions, above bool) {
	maxW, lineH := 0, 0
	for _, l := range lines {
		w, h := s.MeasureText(l, o.FontScale)
		if w > maxW {
			maxW = w
		}
		if h > lineH {
			lineH = h
		}
	}
	pad := float64(o.Padding)
	fieldW := float64(maxW) + 2*pad
	fieldH := float64(lineH*len(lines)) + pad*float64(len(lines)+1)

	x, y := anchor.X, anchor.Y
	if above {
		y -= fieldH
	}
	dims := s.Dimensions()
	x = math.Max(0, math.Min(x, float64(dims.Width)-fieldW))
	y = math.Max(0, math.Min(y, float64(dims.Height)-fieldH))

	s.FillRect(faceapi.Box{X: x, Y: y, Width: fieldW, Height: fieldH}, o.Background)
	for i, l := range lines {
		ty := y + pad + float64(i)*(float64(lineH)+pad)
		s.Text(faceapi.Point{X: x + pad, Y: ty}, l, o.FontScale, o.FontColor)
	}
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
