package capture

import (
	"bufio"
	"bytes"
	"context"
	"errors"
	"image"
	"image/color"
	"image/jpeg"
	"io"
	"testing"
	"time"

	"github.com/pion/rtp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-facecam/pkg/faceapi"
)

func solidJPEG(t *testing.T, w, h int, c color.RGBA) []byte {
	t.Helper()
	img := image.NewRGBA(image.Rect(0, 0, w, h))
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			img.Set(x, y, c)
		}
	}
	var buf bytes.Buffer
	require.NoError(t, jpeg.Encode(&buf, img, &jpeg.Options{Quality: 90}))
	return buf.Bytes()
}

func TestConstraints_Validate(t *testing.T) {
	assert.NoError(t, Constraints{}.Validate())
	assert.ErrorIs(t, Constraints{Audio: true}.Validate(), ErrAudioUnsupported)
	assert.Error(t, Constraints{Video: VideoConstraints{Width: -1}}.Validate())
}

func TestFrameBuffer_LatestAndFanOut(t *testing.T) {
	b := newFrameBuffer()
	_, ok := b.Latest()
	assert.False(t, ok)

	size := faceapi.Dimensions{Width: 640, Height: 480}
	early := b.Frames()
	b.push([]byte{1}, size)
	b.push([]byte{2}, size)

	f, ok := b.Latest()
	require.True(t, ok)
	assert.EqualValues(t, 2, f.ID)
	assert.Equal(t, size, f.Size)

	// Only the newest pending frame is kept.
	got := <-early
	assert.Equal(t, []byte{2}, got.JPEG)
	select {
	case <-early:
		t.Fatal("expected no further frame")
	default:
	}

	// Late subscribers start from the latest frame.
	late := b.Frames()
	assert.EqualValues(t, 2, (<-late).ID)
}

func TestFrameBuffer_EndOnce(t *testing.T) {
	b := newFrameBuffer()
	closes := 0
	b.onClose = func() { closes++ }

	first := errors.New("lost")
	b.end(first)
	b.end(errors.New("second"))
	require.NoError(t, b.Close())

	assert.Equal(t, 1, closes)
	assert.ErrorIs(t, b.Err(), first)
	select {
	case <-b.Done():
	default:
		t.Fatal("done not closed")
	}

	b.push([]byte{1}, faceapi.Dimensions{Width: 1, Height: 1})
	_, ok := b.Latest()
	assert.False(t, ok, "frames after end are dropped")
}

func TestFrameBuffer_UniqueIDs(t *testing.T) {
	assert.NotEqual(t, newFrameBuffer().ID(), newFrameBuffer().ID())
}

func TestMockDevice(t *testing.T) {
	d := NewMockDevice()
	s, err := d.GetUserMedia(context.Background(), Constraints{})
	require.NoError(t, err)
	require.Len(t, d.Streams(), 1)

	d.Streams()[0].Push([]byte{9}, faceapi.Dimensions{Width: 2, Height: 2})
	f, ok := s.Latest()
	require.True(t, ok)
	assert.Equal(t, []byte{9}, f.JPEG)

	d.Err = errors.New("NotAllowedError: permission denied")
	_, err = d.GetUserMedia(context.Background(), Constraints{})
	assert.EqualError(t, err, "NotAllowedError: permission denied")
	assert.Len(t, d.Calls(), 2)
}

func TestPaceFor(t *testing.T) {
	assert.Equal(t, 100*time.Millisecond, paceFor(10, 30))
	assert.Equal(t, 40*time.Millisecond, paceFor(0, 25))
	assert.Zero(t, paceFor(0, 0))
}

func TestRemote_SignallingURL(t *testing.T) {
	assert.Equal(t, "ws://10.0.0.5:8443", NewRemote("10.0.0.5").SignallingURL())
	assert.Equal(t, "ws://cam:9000", (&Remote{Host: "cam", SignalPort: 9000}).SignallingURL())
}

func TestRemote_NoHost(t *testing.T) {
	_, err := (&Remote{}).GetUserMedia(context.Background(), Constraints{})
	assert.ErrorIs(t, err, ErrNoDevice)
}

func TestAccessUnits(t *testing.T) {
	var a accessUnits

	// Single NAL unit packets; the marker bit closes the access unit.
	sps := &rtp.Packet{Payload: []byte{0x67, 0x42, 0x00, 0x1f}}
	idr := &rtp.Packet{Header: rtp.Header{Marker: true}, Payload: []byte{0x65, 0x88, 0x84}}

	au, err := a.Push(sps)
	require.NoError(t, err)
	assert.Nil(t, au)

	au, err = a.Push(idr)
	require.NoError(t, err)
	require.NotNil(t, au)

	start := []byte{0x00, 0x00, 0x00, 0x01}
	want := append(append(append(append([]byte{}, start...), sps.Payload...), start...), idr.Payload...)
	assert.Equal(t, want, au)

	_, err = a.Push(&rtp.Packet{})
	assert.Error(t, err)
}

func TestSplitJPEG(t *testing.T) {
	a := solidJPEG(t, 8, 8, color.RGBA{R: 200, A: 255})
	b := solidJPEG(t, 8, 8, color.RGBA{G: 200, A: 255})
	stream := append(append([]byte{0x00, 0x12}, a...), b...)

	sc := bufio.NewScanner(io.MultiReader(bytes.NewReader(stream[:7]), bytes.NewReader(stream[7:])))
	sc.Split(splitJPEG)

	var got [][]byte
	for sc.Scan() {
		got = append(got, append([]byte(nil), sc.Bytes()...))
	}
	require.NoError(t, sc.Err())
	require.Len(t, got, 2)
	assert.Equal(t, a, got[0])
	assert.Equal(t, b, got[1])
}

func TestPlausibleFrame(t *testing.T) {
	assert.True(t, plausibleFrame(solidJPEG(t, 64, 64, color.RGBA{R: 180, G: 90, B: 40, A: 255})))
	assert.False(t, plausibleFrame(solidJPEG(t, 64, 64, color.RGBA{A: 255})), "black")
	assert.False(t, plausibleFrame(solidJPEG(t, 64, 64, color.RGBA{R: 128, G: 128, B: 128, A: 255})), "decoder gray")
	assert.False(t, plausibleFrame(solidJPEG(t, 8, 8, color.RGBA{R: 180, A: 255})), "too small")
	assert.False(t, plausibleFrame([]byte("not a jpeg")))
}

func TestH264Decoder_ReadFramesFiltersWarmupOnly(t *testing.T) {
	gray := solidJPEG(t, 64, 64, color.RGBA{R: 128, G: 128, B: 128, A: 255})
	bright := solidJPEG(t, 64, 64, color.RGBA{R: 180, G: 90, B: 40, A: 255})
	dark := solidJPEG(t, 64, 64, color.RGBA{R: 20, G: 20, B: 20, A: 255})

	var out bytes.Buffer
	for _, f := range [][]byte{gray, bright, dark, gray} {
		out.Write(f)
	}

	d := &H264Decoder{frames: make(chan []byte, 4)}
	d.readFrames(&out)

	var got [][]byte
	for f := range d.frames {
		got = append(got, f)
	}
	require.Len(t, got, 3, "only the frame before the first picture is dropped")
	assert.Equal(t, bright, got[0])
	assert.Equal(t, dark, got[1], "dark scene after warm-up")
	assert.Equal(t, gray, got[2])
}
