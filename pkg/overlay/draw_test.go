package overlay

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-facecam/pkg/faceapi"
)

var display = faceapi.Dimensions{Width: 720, Height: 560}

func sample() faceapi.Result {
	return faceapi.SampleResult(faceapi.Box{X: 100, Y: 120, Width: 200, Height: 220}, display)
}

func TestDrawDetections(t *testing.T) {
	rec := NewRecorder(display)
	o := DefaultOptions()

	DrawDetections(rec, []faceapi.Result{sample(), sample()}, o.Box, o.Expressions.Text)

	assert.Equal(t, 2, rec.Count(OpStrokeRect))
	assert.Equal(t, []string{"0.93", "0.93"}, rec.Texts())

	ops := rec.Ops()
	require.Equal(t, OpStrokeRect, ops[0].Kind)
	assert.Equal(t, BoxColor, ops[0].Color)
	assert.Equal(t, sample().Detection.Box, ops[0].Box)

	// Score label sits above the box.
	require.Equal(t, OpFillRect, ops[1].Kind)
	assert.InDelta(t, 120, ops[1].Box.Bottom(), 1e-9)
}

func TestDrawFaceLandmarks(t *testing.T) {
	rec := NewRecorder(display)
	DrawFaceLandmarks(rec, []faceapi.Result{sample()}, DefaultOptions().Landmarks)

	// Open: jaw 16 + brows 4+4 + nose 8. Closed: eyes 6+6, mouth 20.
	assert.Equal(t, 16+4+4+8+6+6+20, rec.Count(OpLine))
	assert.Equal(t, faceapi.NumLandmarks, rec.Count(OpCircle))
}

func TestDrawFaceLandmarks_SkipsMissing(t *testing.T) {
	rec := NewRecorder(display)
	r := sample()
	r.Landmarks = nil
	DrawFaceLandmarks(rec, []faceapi.Result{r}, DefaultOptions().Landmarks)
	assert.Empty(t, rec.Ops())
}

func TestDrawFaceExpressions_MinConfidence(t *testing.T) {
	rec := NewRecorder(display)
	r := sample()
	r.Expressions = faceapi.FaceExpressions{
		faceapi.Happy:   0.6,
		faceapi.Sad:     0.25,
		faceapi.Neutral: 0.1, // not strictly above 0.1
		faceapi.Angry:   0.05,
	}

	DrawFaceExpressions(rec, []faceapi.Result{r}, DefaultOptions().Expressions)

	assert.Equal(t, []string{"happy (0.60)", "sad (0.25)"}, rec.Texts())

	// Anchored at the box's bottom-left.
	ops := rec.Ops()
	require.Equal(t, OpFillRect, ops[0].Kind)
	assert.InDelta(t, r.Detection.Box.X, ops[0].Box.X, 1e-9)
	assert.InDelta(t, r.Detection.Box.Bottom(), ops[0].Box.Y, 1e-9)
}

func TestDrawTextField_StaysInside(t *testing.T) {
	rec := NewRecorder(display)
	o := DefaultOptions().Expressions.Text
	drawTextField(rec, faceapi.Point{X: 715, Y: 2}, []string{"surprised (0.99)"}, o, true)

	box := rec.Ops()[0].Box
	assert.GreaterOrEqual(t, box.Y, 0.0)
	assert.LessOrEqual(t, box.Right(), float64(display.Width))
}

func TestDraw_RendererOrder(t *testing.T) {
	rec := NewRecorder(display)
	d := NewDraw()
	results := []faceapi.Result{sample()}

	d.Clear(rec)
	d.DrawDetections(rec, results)
	d.DrawFaceLandmarks(rec, results)
	d.DrawFaceExpressions(rec, results)

	ops := rec.Ops()
	require.NotEmpty(t, ops)
	assert.Equal(t, OpClear, ops[0].Kind)
	assert.Equal(t, OpStrokeRect, ops[1].Kind)
	assert.Equal(t, "happy (0.90)", rec.Texts()[len(rec.Texts())-1])
}

func TestContainer_SingleSurface(t *testing.T) {
	var c Container
	require.NoError(t, c.Append(NewRecorder(display)))
	err := c.Append(NewRecorder(display))
	assert.True(t, errors.Is(err, ErrSurfaceExists))
	assert.Equal(t, 1, c.Len())
}
