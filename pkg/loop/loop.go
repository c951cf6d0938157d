// Package loop runs face detection against the playing video on a fixed
// interval and redraws the overlay after every detection.
package loop

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"

	"github.com/teslashibe/go-facecam/internal/log"
	"github.com/teslashibe/go-facecam/pkg/faceapi"
	"github.com/teslashibe/go-facecam/pkg/overlay"
	"github.com/teslashibe/go-facecam/pkg/status"
)

// DefaultInterval is the detection period.
const DefaultInterval = 100 * time.Millisecond

var (
	ErrNoSurface = errors.New("loop: no overlay surface")
	ErrNoEngine  = errors.New("loop: no detection engine")
)

// Video is what the loop reads frames from.
type Video interface {
	CurrentFrame() (faceapi.Frame, bool)
	DisplaySize() faceapi.Dimensions
}

// SurfaceFactory creates the overlay surface sized to the video.
type SurfaceFactory func(faceapi.Dimensions) (overlay.Surface, error)

// Config tunes the loop.
type Config struct {
	Interval time.Duration
	Options  faceapi.TinyFaceDetectorOptions
	// ErrorLogEvery limits how often tick errors are logged.
	ErrorLogEvery time.Duration
}

// DefaultConfig returns a 100ms loop with default detector options.
func DefaultConfig() Config {
	return Config{
		Interval:      DefaultInterval,
		Options:       faceapi.DefaultTinyFaceDetectorOptions(),
		ErrorLogEvery: 5 * time.Second,
	}
}

// Deps are the loop's collaborators. Board and OnRender are optional.
type Deps struct {
	Engine     faceapi.Engine
	Video      Video
	Renderer   overlay.Renderer
	NewSurface SurfaceFactory
	Container  *overlay.Container
	Board      *status.Board
	// OnRender is called after each completed redraw.
	OnRender func(s overlay.Surface, results []faceapi.Result)
}

// Loop is the detection loop. It is started by the video's playing event
// and stopped by ended or unmount.
type Loop struct {
	deps   Deps
	cfg    Config
	logger *slog.Logger

	mu         sync.Mutex
	display    faceapi.Dimensions
	displaySet bool
	cancel     context.CancelFunc
	done       chan struct{}

	busy       atomic.Bool
	ticks      atomic.Uint64
	skipped    atomic.Uint64
	failures   atomic.Uint64
	faces      atomic.Int64
	latency    atomic.Int64
	suppressed atomic.Uint64
	errLimit   *rate.Limiter
}

// New creates a stopped loop.
func New(deps Deps, cfg Config) *Loop {
	if cfg.Interval <= 0 {
		cfg.Interval = DefaultInterval
	}
	if cfg.Options == (faceapi.TinyFaceDetectorOptions{}) {
		cfg.Options = faceapi.DefaultTinyFaceDetectorOptions()
	}
	if cfg.ErrorLogEvery <= 0 {
		cfg.ErrorLogEvery = 5 * time.Second
	}
	if deps.Renderer == nil {
		deps.Renderer = overlay.NewDraw()
	}
	if deps.Container == nil {
		deps.Container = &overlay.Container{}
	}
	return &Loop{
		deps:     deps,
		cfg:      cfg,
		logger:   log.With("component", "loop"),
		errLimit: rate.NewLimiter(rate.Every(cfg.ErrorLogEvery), 1),
	}
}

// HandlePlaying reacts to the video's playing event: it creates the
// overlay surface on first use, records the display size once and starts
// the ticker. Repeated events while running are no-ops.
func (l *Loop) HandlePlaying(ctx context.Context) error {
	if l.deps.Engine == nil {
		return ErrNoEngine
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	if !l.displaySet {
		l.display = l.deps.Video.DisplaySize()
		l.displaySet = true
	}

	if l.deps.Container.Surface() == nil {
		s, err := l.deps.NewSurface(l.display)
		if err != nil {
			err = fmt.Errorf("loop: create surface: %w", err)
			l.report(status.SourceVideo, err)
			return err
		}
		if err := l.deps.Container.Append(s); err != nil {
			return err
		}
		l.logger.Info("overlay surface created", "width", l.display.Width, "height", l.display.Height)
	}

	if l.cancel != nil {
		l.logger.Debug("playing while already running; ignored")
		return nil
	}

	runCtx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	l.cancel = cancel
	l.done = done
	go func() {
		defer close(done)
		l.Run(runCtx)
	}()

	if l.deps.Board != nil {
		l.deps.Board.SetPhase(status.PhaseDetecting)
	}
	l.logger.Info("detection loop started", "interval", l.cfg.Interval)
	return nil
}

// Stop cancels the ticker and waits for the in-flight tick. It is safe to
// call when not running.
func (l *Loop) Stop() {
	l.mu.Lock()
	cancel, done := l.cancel, l.done
	l.cancel, l.done = nil, nil
	l.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-done

	if l.deps.Board != nil {
		l.deps.Board.SetPhase(status.PhaseStopped)
	}
	l.logger.Info("detection loop stopped", "ticks", l.ticks.Load(), "skipped", l.skipped.Load())
}

// Running reports whether the ticker is active.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.cancel != nil
}

// Display returns the recorded display size.
func (l *Loop) Display() faceapi.Dimensions {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.display
}

// Run ticks until ctx is done. A tick that fires while the previous one
// is still in flight is skipped and counted.
func (l *Loop) Run(ctx context.Context) {
	ticker := time.NewTicker(l.cfg.Interval)
	defer ticker.Stop()

	var wg sync.WaitGroup
	defer wg.Wait()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if !l.busy.CompareAndSwap(false, true) {
				l.skipped.Add(1)
				continue
			}
			wg.Add(1)
			go func() {
				defer wg.Done()
				defer l.busy.Store(false)
				l.Tick(ctx)
			}()
		}
	}
}

// Tick runs one detection and redraw. On error the overlay keeps its
// previous drawing and the error goes to the status board.
func (l *Loop) Tick(ctx context.Context) error {
	surface := l.deps.Container.Surface()
	if surface == nil {
		return ErrNoSurface
	}
	frame, ok := l.deps.Video.CurrentFrame()
	if !ok {
		return nil
	}
	l.ticks.Add(1)

	start := time.Now()
	results, err := l.deps.Engine.Detect(ctx, frame, l.cfg.Options)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		l.failures.Add(1)
		err = fmt.Errorf("loop: detect frame %d: %w", frame.ID, err)
		l.report(status.SourceDetect, err)
		return err
	}

	resized := faceapi.ResizeResults(results, l.Display())

	r := l.deps.Renderer
	r.Clear(surface)
	r.DrawDetections(surface, resized)
	r.DrawFaceLandmarks(surface, resized)
	r.DrawFaceExpressions(surface, resized)

	l.latency.Store(int64(time.Since(start)))
	l.faces.Store(int64(len(resized)))

	if l.deps.OnRender != nil {
		l.deps.OnRender(surface, resized)
	}
	if l.deps.Board != nil {
		l.deps.Board.UpdateStats(l.Stats())
	}
	return nil
}

// Stats returns the loop counters.
func (l *Loop) Stats() status.Stats {
	return status.Stats{
		Ticks:       l.ticks.Load(),
		Skipped:     l.skipped.Load(),
		Failures:    l.failures.Load(),
		Faces:       int(l.faces.Load()),
		LastLatency: time.Duration(l.latency.Load()),
	}
}

func (l *Loop) report(source string, err error) {
	if l.deps.Board != nil {
		l.deps.Board.ReportError(source, err, false)
	}
	if !l.errLimit.Allow() {
		l.suppressed.Add(1)
		return
	}
	l.logger.Warn("tick failed", "err", err, "suppressed", l.suppressed.Swap(0))
}
