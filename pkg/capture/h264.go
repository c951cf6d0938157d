package capture

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"image"
	"image/jpeg"
	"io"
	"os/exec"
	"sync"

	"github.com/pion/rtp"
	"github.com/pion/rtp/codecs"

	"github.com/teslashibe/go-facecam/internal/log"
)

// accessUnits turns RTP packets of an H264 track into Annex-B access
// units. A unit is complete when the marker bit is set.
type accessUnits struct {
	depack codecs.H264Packet
	buf    bytes.Buffer
}

// Push adds one packet and returns a completed access unit, if any.
func (a *accessUnits) Push(pkt *rtp.Packet) ([]byte, error) {
	nal, err := a.depack.Unmarshal(pkt.Payload)
	if err != nil {
		a.buf.Reset()
		return nil, fmt.Errorf("capture: depacketize: %w", err)
	}
	a.buf.Write(nal)
	if !pkt.Marker || a.buf.Len() == 0 {
		return nil, nil
	}
	au := make([]byte, a.buf.Len())
	copy(au, a.buf.Bytes())
	a.buf.Reset()
	return au, nil
}

// Decoder turns H264 access units into JPEG frames.
type Decoder interface {
	Write(au []byte) error
	Frames() <-chan []byte
	Close() error
}

// FFmpegPath is the binary the H264 decoder runs.
var FFmpegPath = "ffmpeg"

// H264Decoder is a persistent ffmpeg process fed Annex-B on stdin that
// emits MJPEG on stdout.
type H264Decoder struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	frames chan []byte

	mu     sync.Mutex
	closed bool
}

// NewH264Decoder starts ffmpeg.
func NewH264Decoder() (*H264Decoder, error) {
	cmd := exec.Command(FFmpegPath,
		"-loglevel", "error",
		"-f", "h264",
		"-i", "pipe:0",
		"-f", "image2pipe",
		"-vcodec", "mjpeg",
		"-q:v", "3",
		"pipe:1",
	)
	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, fmt.Errorf("capture: ffmpeg stdin: %w", err)
	}
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("capture: ffmpeg stdout: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("capture: start ffmpeg: %w", err)
	}

	d := &H264Decoder{cmd: cmd, stdin: stdin, frames: make(chan []byte, 2)}
	go d.readFrames(stdout)
	return d, nil
}

func (d *H264Decoder) Frames() <-chan []byte { return d.frames }

func (d *H264Decoder) Write(au []byte) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if _, err := d.stdin.Write(au); err != nil {
		return fmt.Errorf("capture: ffmpeg write: %w", err)
	}
	return nil
}

func (d *H264Decoder) Close() error {
	d.mu.Lock()
	if d.closed {
		d.mu.Unlock()
		return nil
	}
	d.closed = true
	d.mu.Unlock()

	d.stdin.Close()
	if d.cmd.Process != nil {
		d.cmd.Process.Kill()
	}
	d.cmd.Wait()
	return nil
}

func (d *H264Decoder) readFrames(r io.Reader) {
	defer close(d.frames)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, 256*1024), 8*1024*1024)
	sc.Split(splitJPEG)
	// Only the decoder's warm-up output is filtered; once a real picture
	// arrives, dark or flat scenes pass through.
	warm := false
	for sc.Scan() {
		frame := make([]byte, len(sc.Bytes()))
		copy(frame, sc.Bytes())
		if !warm {
			if !plausibleFrame(frame) {
				continue
			}
			warm = true
		}
		select {
		case d.frames <- frame:
		default:
			// Drop when the consumer lags.
		}
	}
	if err := sc.Err(); err != nil && !errors.Is(err, io.ErrClosedPipe) {
		log.Debug("h264 decoder output ended", "err", err)
	}
}

var (
	jpegSOI = []byte{0xFF, 0xD8}
	jpegEOI = []byte{0xFF, 0xD9}
)

// splitJPEG is a bufio.SplitFunc yielding whole JPEG images from a
// concatenated MJPEG stream.
func splitJPEG(data []byte, atEOF bool) (int, []byte, error) {
	start := bytes.Index(data, jpegSOI)
	if start < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		// Keep a trailing 0xFF that may begin the next SOI.
		if n := len(data); n > 0 && data[n-1] == 0xFF {
			return n - 1, nil, nil
		}
		return len(data), nil, nil
	}
	end := bytes.Index(data[start+2:], jpegEOI)
	if end < 0 {
		if atEOF {
			return len(data), nil, nil
		}
		return start, nil, nil
	}
	stop := start + 2 + end + 2
	return stop, data[start:stop], nil
}

// plausibleFrame rejects the gray or black frames a decoder emits before
// the first keyframe arrives.
func plausibleFrame(data []byte) bool {
	img, err := jpeg.Decode(bytes.NewReader(data))
	if err != nil {
		return false
	}
	b := img.Bounds()
	if b.Dx() < 16 || b.Dy() < 16 {
		return false
	}
	r, g, bl := averageColor(img)

	if r < 30 && g < 30 && bl < 30 {
		return false
	}
	diff := absInt(r-g) + absInt(g-bl) + absInt(r-bl)
	if diff < 15 && r > 100 && r < 150 {
		return false
	}
	return true
}

// averageColor samples a 10x10 grid.
func averageColor(img image.Image) (r, g, b int) {
	bounds := img.Bounds()
	stepX := max(1, bounds.Dx()/10)
	stepY := max(1, bounds.Dy()/10)
	n := 0
	for y := bounds.Min.Y; y < bounds.Max.Y; y += stepY {
		for x := bounds.Min.X; x < bounds.Max.X; x += stepX {
			pr, pg, pb, _ := img.At(x, y).RGBA()
			r += int(pr >> 8)
			g += int(pg >> 8)
			b += int(pb >> 8)
			n++
		}
	}
	if n == 0 {
		return 0, 0, 0
	}
	return r / n, g / n, b / n
}

func absInt(x int) int {
	if x < 0 {
		return -x
	}
	return x
}
