package detection

import (
	"context"
	"fmt"
	"os"
	"sync"

	"gocv.io/x/gocv"

	"github.com/teslashibe/go-facecam/pkg/faceapi"
)

// onnxNet is a single-file ONNX model run through OpenCV DNN.
type onnxNet struct {
	name string
	file string

	net    gocv.Net
	loaded bool
	mu     sync.Mutex // Protects inference
}

func (o *onnxNet) Name() string    { return o.name }
func (o *onnxNet) Files() []string { return []string{o.file} }

// IsLoaded reports whether Load succeeded.
func (o *onnxNet) IsLoaded() bool {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.loaded
}

// Load reads the model. A second Load replaces the first.
func (o *onnxNet) Load(ctx context.Context, paths []string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if len(paths) != 1 {
		return fmt.Errorf("%s: expected 1 file, got %d", o.name, len(paths))
	}
	// Check if model file exists first
	if _, err := os.Stat(paths[0]); os.IsNotExist(err) {
		return fmt.Errorf("model file not found: %s", paths[0])
	}

	net := gocv.ReadNetFromONNX(paths[0])
	if net.Empty() {
		return fmt.Errorf("failed to load %s model from %s", o.name, paths[0])
	}
	net.SetPreferableBackend(gocv.NetBackendDefault)
	net.SetPreferableTarget(gocv.NetTargetCPU)

	o.mu.Lock()
	defer o.mu.Unlock()
	if o.loaded {
		o.net.Close()
	}
	o.net = net
	o.loaded = true
	return nil
}

// forward runs one blob through the net and copies out the first output.
func (o *onnxNet) forward(blob gocv.Mat) ([]float32, error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	if !o.loaded {
		return nil, faceapi.ErrNotLoaded
	}

	o.net.SetInput(blob, "")
	out := o.net.Forward("")
	defer out.Close()

	data, err := out.DataPtrFloat32()
	if err != nil {
		return nil, fmt.Errorf("%s output: %w", o.name, err)
	}
	values := make([]float32, len(data))
	copy(values, data)
	return values, nil
}

// Close releases the net.
func (o *onnxNet) Close() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.loaded {
		o.net.Close()
		o.loaded = false
	}
}
