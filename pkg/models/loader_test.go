package models

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// gatedNet finishes Load only when its gate is closed.
type gatedNet struct {
	name   string
	gate   chan struct{}
	err    error
	loaded atomic.Bool
	calls  atomic.Int32
}

func newGatedNet(name string) *gatedNet {
	return &gatedNet{name: name, gate: make(chan struct{})}
}

func (n *gatedNet) Name() string    { return n.name }
func (n *gatedNet) Files() []string { return Manifest()[n.name] }
func (n *gatedNet) IsLoaded() bool  { return n.loaded.Load() }

func (n *gatedNet) Load(ctx context.Context, paths []string) error {
	n.calls.Add(1)
	select {
	case <-n.gate:
	case <-ctx.Done():
		return ctx.Err()
	}
	if n.err != nil {
		return n.err
	}
	n.loaded.Store(true)
	return nil
}

// stubSource resolves every file to a fake path.
type stubSource struct{}

func (stubSource) Resolve(ctx context.Context, files []string) ([]string, error) {
	out := make([]string, len(files))
	for i, f := range files {
		out[i] = "/stub/" + f
	}
	return out, nil
}

func (stubSource) String() string { return "stub" }

type recordingObserver struct {
	mu       sync.Mutex
	started  int
	loaded   []string
	finished int
	lastErr  error
}

func (o *recordingObserver) LoadStarted([]string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.started++
}

func (o *recordingObserver) BundleLoaded(name string, _ time.Duration) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.loaded = append(o.loaded, name)
}

func (o *recordingObserver) LoadFinished(_ Ready, err error) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.finished++
	o.lastErr = err
}

func fourNets() []*gatedNet {
	out := make([]*gatedNet, 0, len(BundleNames))
	for _, name := range BundleNames {
		out = append(out, newGatedNet(name))
	}
	return out
}

func asNets(gs []*gatedNet) []Net {
	out := make([]Net, len(gs))
	for i, g := range gs {
		out[i] = g
	}
	return out
}

func TestLoadModels_ReadyOnlyAfterAllSettle(t *testing.T) {
	nets := fourNets()
	obs := &recordingObserver{}
	loader := NewLoader(stubSource{}, asNets(nets), obs)

	done := make(chan error, 1)
	go func() {
		_, err := loader.LoadModels(context.Background())
		done <- err
	}()

	// Release all but the slowest, one at a time.
	for _, n := range nets[:3] {
		close(n.gate)
		select {
		case <-done:
			t.Fatalf("ready fired before %s settled", nets[3].name)
		case <-time.After(20 * time.Millisecond):
		}
	}

	close(nets[3].gate)
	select {
	case err := <-done:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("LoadModels did not return after all loads settled")
	}

	assert.True(t, loader.Loaded())
	assert.Equal(t, 1, obs.started)
	assert.Equal(t, 1, obs.finished)
	assert.Len(t, obs.loaded, 4)
	assert.NoError(t, obs.lastErr)
}

func TestLoadModels_AnyFailureRejects(t *testing.T) {
	for failing := range BundleNames {
		t.Run(BundleNames[failing], func(t *testing.T) {
			nets := fourNets()
			boom := errors.New("bad weights")
			nets[failing].err = boom
			for _, n := range nets {
				close(n.gate)
			}

			obs := &recordingObserver{}
			loader := NewLoader(stubSource{}, asNets(nets), obs)
			_, err := loader.LoadModels(context.Background())

			require.Error(t, err)
			assert.ErrorIs(t, err, boom)

			var le *LoadError
			require.ErrorAs(t, err, &le)
			assert.Equal(t, BundleNames[failing], le.Bundle)
			assert.False(t, loader.Loaded())
			assert.Equal(t, 1, obs.finished)
			assert.Error(t, obs.lastErr)
		})
	}
}

func TestLoadModels_RunsOnce(t *testing.T) {
	nets := fourNets()
	for _, n := range nets {
		close(n.gate)
	}
	loader := NewLoader(stubSource{}, asNets(nets), nil)

	r1, err1 := loader.LoadModels(context.Background())
	r2, err2 := loader.LoadModels(context.Background())

	require.NoError(t, err1)
	require.NoError(t, err2)
	assert.Equal(t, r1, r2)
	for _, n := range nets {
		assert.EqualValues(t, 1, n.calls.Load(), n.name)
	}
}

func TestLoadModels_NoNets(t *testing.T) {
	_, err := NewLoader(stubSource{}, nil, nil).LoadModels(context.Background())
	assert.ErrorIs(t, err, ErrNoNets)
}

func TestLoadModels_MissingFile(t *testing.T) {
	nets := fourNets()
	for _, n := range nets {
		close(n.gate)
	}
	loader := NewLoader(DirSource(t.TempDir()), asNets(nets), nil)
	_, err := loader.LoadModels(context.Background())
	assert.ErrorIs(t, err, ErrMissingFile)
}

func TestCheck(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, DetectorFile), []byte("x"), 0o644))

	missing, err := Check(dir)
	require.NoError(t, err)
	assert.ElementsMatch(t, []string{LandmarkFile, RecognitionFile, ExpressionFile}, missing)

	_, err = Check(filepath.Join(dir, "nope"))
	assert.Error(t, err)
}
