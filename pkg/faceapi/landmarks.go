package faceapi

// NumLandmarks is the number of points in the 68-point model.
const NumLandmarks = 68

// FaceLandmarks68 holds the 68 facial landmark positions.
type FaceLandmarks68 struct {
	Points    [NumLandmarks]Point `json:"points"`
	ImageDims Dimensions          `json:"image_dims"`
}

// Positions returns all 68 points.
func (l *FaceLandmarks68) Positions() []Point { return l.Points[:] }

func (l *FaceLandmarks68) JawOutline() []Point   { return l.Points[0:17] }
func (l *FaceLandmarks68) LeftEyeBrow() []Point  { return l.Points[17:22] }
func (l *FaceLandmarks68) RightEyeBrow() []Point { return l.Points[22:27] }
func (l *FaceLandmarks68) Nose() []Point         { return l.Points[27:36] }
func (l *FaceLandmarks68) LeftEye() []Point      { return l.Points[36:42] }
func (l *FaceLandmarks68) RightEye() []Point     { return l.Points[42:48] }
func (l *FaceLandmarks68) Mouth() []Point        { return l.Points[48:68] }

// Rescale returns a copy scaled per axis.
func (l *FaceLandmarks68) Rescale(sx, sy float64) *FaceLandmarks68 {
	out := &FaceLandmarks68{
		ImageDims: Dimensions{
			Width:  int(float64(l.ImageDims.Width)*sx + 0.5),
			Height: int(float64(l.ImageDims.Height)*sy + 0.5),
		},
	}
	for i, p := range l.Points {
		out.Points[i] = p.Scale(sx, sy)
	}
	return out
}
