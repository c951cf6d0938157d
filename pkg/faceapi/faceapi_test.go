package faceapi

import (
	"context"
	"errors"
	"math"
	"testing"
)

func approx(a, b float64) bool { return math.Abs(a-b) < 1e-9 }

func TestResizeResults_ScalesLinearly(t *testing.T) {
	tests := []struct {
		name    string
		raw     Dimensions
		display Dimensions
		box     Box
		want    Box
	}{
		{
			name:    "upscale 640x480 to 720x560",
			raw:     Dimensions{640, 480},
			display: Dimensions{720, 560},
			box:     Box{X: 64, Y: 48, Width: 128, Height: 96},
			want:    Box{X: 72, Y: 56, Width: 144, Height: 112},
		},
		{
			name:    "downscale 1440x1120 to 720x560",
			raw:     Dimensions{1440, 1120},
			display: Dimensions{720, 560},
			box:     Box{X: 100, Y: 200, Width: 300, Height: 400},
			want:    Box{X: 50, Y: 100, Width: 150, Height: 200},
		},
		{
			name:    "identity",
			raw:     Dimensions{720, 560},
			display: Dimensions{720, 560},
			box:     Box{X: 1, Y: 2, Width: 3, Height: 4},
			want:    Box{X: 1, Y: 2, Width: 3, Height: 4},
		},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			in := []Result{SampleResult(tc.box, tc.raw)}
			out := ResizeResults(in, tc.display)

			got := out[0].Detection.Box
			if !approx(got.X, tc.want.X) || !approx(got.Y, tc.want.Y) ||
				!approx(got.Width, tc.want.Width) || !approx(got.Height, tc.want.Height) {
				t.Errorf("box: got %+v, want %+v", got, tc.want)
			}
			if out[0].Detection.ImageDims != tc.display {
				t.Errorf("dims: got %+v, want %+v", out[0].Detection.ImageDims, tc.display)
			}

			sx := float64(tc.display.Width) / float64(tc.raw.Width)
			sy := float64(tc.display.Height) / float64(tc.raw.Height)
			for i, p := range out[0].Landmarks.Positions() {
				src := in[0].Landmarks.Points[i]
				if !approx(p.X, src.X*sx) || !approx(p.Y, src.Y*sy) {
					t.Fatalf("landmark %d: got %+v, want (%v,%v)", i, p, src.X*sx, src.Y*sy)
				}
			}

			if in[0].Detection.Box != tc.box {
				t.Error("input was mutated")
			}
		})
	}
}

func TestResizeResults_EmptyRawDims(t *testing.T) {
	r := Result{Detection: FaceDetection{Box: Box{X: 5, Y: 5, Width: 10, Height: 10}}}
	out := ResizeResults([]Result{r}, Dimensions{720, 560})
	if out[0].Detection.Box != r.Detection.Box {
		t.Errorf("expected unchanged box, got %+v", out[0].Detection.Box)
	}
	if ResizeResults(nil, Dimensions{720, 560}) != nil {
		t.Error("nil in should give nil out")
	}
}

func TestFaceExpressions_AsSortedArray(t *testing.T) {
	e := FaceExpressions{Neutral: 0.2, Happy: 0.2, Sad: 0.5, Angry: 0.1}
	got := e.AsSortedArray()

	want := []Expression{Sad, Neutral, Happy, Angry}
	if len(got) != len(want) {
		t.Fatalf("len: got %d, want %d", len(got), len(want))
	}
	for i := range want {
		if got[i].Expression != want[i] {
			t.Errorf("index %d: got %s, want %s", i, got[i].Expression, want[i])
		}
	}

	above := e.Above(0.1)
	if len(above) != 3 {
		t.Errorf("Above(0.1): got %d entries, want 3 (strictly greater)", len(above))
	}

	dom, ok := e.Dominant()
	if !ok || dom.Expression != Sad {
		t.Errorf("Dominant: got %+v", dom)
	}
	if _, ok := (FaceExpressions{}).Dominant(); ok {
		t.Error("empty map should have no dominant expression")
	}
}

func TestLandmarkGroups(t *testing.T) {
	var lm FaceLandmarks68
	groups := map[string]int{
		"jaw":   len(lm.JawOutline()),
		"lbrow": len(lm.LeftEyeBrow()),
		"rbrow": len(lm.RightEyeBrow()),
		"nose":  len(lm.Nose()),
		"leye":  len(lm.LeftEye()),
		"reye":  len(lm.RightEye()),
		"mouth": len(lm.Mouth()),
	}
	want := map[string]int{"jaw": 17, "lbrow": 5, "rbrow": 5, "nose": 9, "leye": 6, "reye": 6, "mouth": 20}
	total := 0
	for k, n := range want {
		if groups[k] != n {
			t.Errorf("%s: got %d points, want %d", k, groups[k], n)
		}
		total += groups[k]
	}
	if total != NumLandmarks {
		t.Errorf("groups cover %d points, want %d", total, NumLandmarks)
	}
}

func TestOptions_Validate(t *testing.T) {
	if err := DefaultTinyFaceDetectorOptions().Validate(); err != nil {
		t.Fatalf("defaults invalid: %v", err)
	}
	bad := []TinyFaceDetectorOptions{
		{InputSize: 100, ScoreThreshold: 0.5},
		{InputSize: 0, ScoreThreshold: 0.5},
		{InputSize: 416, ScoreThreshold: 0},
		{InputSize: 416, ScoreThreshold: 1.2},
	}
	for _, o := range bad {
		if err := o.Validate(); !errors.Is(err, ErrInvalidOptions) {
			t.Errorf("%+v: expected ErrInvalidOptions, got %v", o, err)
		}
	}
}

func TestBox_Clip(t *testing.T) {
	b := Box{X: -10, Y: 20, Width: 50, Height: 100}.Clip(30, 100)
	want := Box{X: 0, Y: 20, Width: 30, Height: 80}
	if b != want {
		t.Errorf("got %+v, want %+v", b, want)
	}
}

func TestStageError_Unwrap(t *testing.T) {
	err := WrapStage(StageLandmarks, ErrEmptyFrame)
	if !errors.Is(err, ErrEmptyFrame) {
		t.Error("StageError should unwrap to cause")
	}
	var se *StageError
	if !errors.As(err, &se) || se.Stage != StageLandmarks {
		t.Errorf("unexpected stage error: %v", err)
	}
	if WrapStage(StageDetect, nil) != nil {
		t.Error("nil should stay nil")
	}
}

func TestMock_RecordsCalls(t *testing.T) {
	m := NewMock(SampleResult(Box{Width: 10, Height: 10}, Dimensions{100, 100}))
	for i := 1; i <= 3; i++ {
		res, err := m.Detect(context.Background(), Frame{ID: uint64(i)}, DefaultTinyFaceDetectorOptions())
		if err != nil || len(res) != 1 {
			t.Fatalf("Detect: %v %d", err, len(res))
		}
	}
	if m.CallCount("Detect") != 3 {
		t.Errorf("CallCount: got %d", m.CallCount("Detect"))
	}
	if m.Calls()[2].FrameID != 3 {
		t.Errorf("frame id not recorded")
	}
	m.Reset()
	if len(m.Calls()) != 0 {
		t.Error("Reset did not clear calls")
	}
}
