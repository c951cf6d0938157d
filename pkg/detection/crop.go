package detection

import (
	"image"
	"math"

	"github.com/teslashibe/go-facecam/pkg/faceapi"
)

// squareCrop returns a square region centered on box, grown by pad per
// side and clipped to the image. An empty rectangle means no usable crop.
func squareCrop(box faceapi.Box, pad float64, imgW, imgH int) image.Rectangle {
	side := math.Max(box.Width, box.Height) * (1 + 2*pad)
	c := box.Center()
	x0 := int(math.Round(c.X - side/2))
	y0 := int(math.Round(c.Y - side/2))
	s := int(math.Round(side))
	r := image.Rect(x0, y0, x0+s, y0+s)
	return r.Intersect(image.Rect(0, 0, imgW, imgH))
}

// softmax converts logits to probabilities.
func softmax(logits []float32) []float64 {
	if len(logits) == 0 {
		return nil
	}
	maxv := float64(logits[0])
	for _, v := range logits[1:] {
		maxv = math.Max(maxv, float64(v))
	}
	out := make([]float64, len(logits))
	sum := 0.0
	for i, v := range logits {
		out[i] = math.Exp(float64(v) - maxv)
		sum += out[i]
	}
	for i := range out {
		out[i] /= sum
	}
	return out
}

// l2Normalize scales v to unit length in place.
func l2Normalize(v []float32) []float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return v
	}
	n := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= n
	}
	return v
}
