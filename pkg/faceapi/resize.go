package faceapi

// ResizeResults moves results into display coordinates. Boxes and
// landmarks scale by (display.Width/raw.Width, display.Height/raw.Height),
// where raw is each detection's ImageDims. Results with an empty raw
// size are copied unchanged. The input is not modified.
func ResizeResults(results []Result, display Dimensions) []Result {
	if results == nil {
		return nil
	}
	out := make([]Result, len(results))
	for i, r := range results {
		out[i] = resizeResult(r, display)
	}
	return out
}

func resizeResult(r Result, display Dimensions) Result {
	raw := r.Detection.ImageDims
	if raw.Empty() || display.Empty() {
		return r
	}
	sx := float64(display.Width) / float64(raw.Width)
	sy := float64(display.Height) / float64(raw.Height)

	out := r
	out.Detection = FaceDetection{
		Box:       r.Detection.Box.Rescale(sx, sy),
		Score:     r.Detection.Score,
		ImageDims: display,
	}
	if r.Landmarks != nil {
		out.Landmarks = r.Landmarks.Rescale(sx, sy)
		out.Landmarks.ImageDims = display
	}
	return out
}
