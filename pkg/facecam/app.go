// Package facecam wires the camera, the detection loop, the overlay and
// the web UI into one component with a mount/unmount lifecycle.
package facecam

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"sync"
	"time"

	"github.com/teslashibe/go-facecam/internal/config"
	"github.com/teslashibe/go-facecam/internal/httpc"
	"github.com/teslashibe/go-facecam/internal/log"
	"github.com/teslashibe/go-facecam/pkg/capture"
	"github.com/teslashibe/go-facecam/pkg/detection"
	"github.com/teslashibe/go-facecam/pkg/faceapi"
	"github.com/teslashibe/go-facecam/pkg/loop"
	"github.com/teslashibe/go-facecam/pkg/models"
	"github.com/teslashibe/go-facecam/pkg/overlay"
	"github.com/teslashibe/go-facecam/pkg/player"
	"github.com/teslashibe/go-facecam/pkg/status"
	"github.com/teslashibe/go-facecam/pkg/web"
)

// App is the facecam component.
type App struct {
	cfg    config.Config
	logger *slog.Logger

	board  *status.Board
	device capture.Device
	video  *player.Video
	engine faceapi.Engine
	nets   []models.Net
	source models.Source
	loader *models.Loader
	loop   *loop.Loop
	web    *web.Server

	newSurface loop.SurfaceFactory
	container  overlay.Container

	// ctx bounds the detection loop; cancelled by Shutdown.
	ctx    context.Context
	cancel context.CancelFunc

	startMu      sync.Mutex
	closed       bool
	shutdownOnce sync.Once
}

// Option customizes New.
type Option func(*App)

// WithDevice replaces the camera chosen from config.
func WithDevice(d capture.Device) Option {
	return func(a *App) { a.device = d }
}

// WithEngine replaces the OpenCV engine and the nets the loader loads.
func WithEngine(e faceapi.Engine, nets ...models.Net) Option {
	return func(a *App) {
		a.engine = e
		a.nets = nets
	}
}

// WithLogger replaces the component logger.
func WithLogger(l *slog.Logger) Option {
	return func(a *App) { a.logger = l }
}

// WithModelSource replaces the source resolved from config.
func WithModelSource(src models.Source) Option {
	return func(a *App) { a.source = src }
}

// WithSurfaceFactory replaces the OpenCV canvas.
func WithSurfaceFactory(f loop.SurfaceFactory) Option {
	return func(a *App) { a.newSurface = f }
}

// New builds the component from cfg. Nothing is loaded or opened yet.
func New(cfg config.Config, opts ...Option) (*App, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	a := &App{
		cfg:    cfg,
		logger: log.With("component", "facecam"),
		board:  status.NewBoard(),
	}
	a.ctx, a.cancel = context.WithCancel(context.Background())
	for _, opt := range opts {
		opt(a)
	}

	if a.device == nil {
		d, err := deviceFromConfig(cfg)
		if err != nil {
			return nil, err
		}
		a.device = d
	}
	if a.engine == nil {
		dcfg := detection.DefaultConfig()
		dcfg.ScoreThresh = cfg.Detection.ScoreThreshold
		nets := detection.NewNets(dcfg)
		a.engine = detection.NewEngine(nets)
		a.nets = nets.Bundles()
	}
	if a.source == nil {
		src, err := models.NewSource(models.SourceConfig{
			URI:      cfg.Models.URI,
			ServeDir: cfg.Models.Dir,
			CacheDir: cfg.Models.CacheDir,
			Client:   httpc.NewResty(cfg.Models.Timeout),
			Progress: os.Stderr,
		})
		if err != nil {
			return nil, err
		}
		a.source = src
	}
	if a.newSurface == nil {
		a.newSurface = func(d faceapi.Dimensions) (overlay.Surface, error) {
			return overlay.CreateCanvasFromMedia(d)
		}
	}

	a.loader = models.NewLoader(a.source, a.nets, loadObserver{board: a.board, logger: a.logger})

	a.video = player.NewVideo()
	a.video.Width = cfg.Display.Width
	a.video.Height = cfg.Display.Height

	a.web = web.NewServer(web.Options{
		Port:      cfg.Port,
		ModelsDir: cfg.Models.Dir,
		ModelsURI: cfg.Models.URI,
	})
	a.web.OnStart = a.StartVideo
	a.web.OnStop = a.StopVideo
	a.web.Status = a.board.Snapshot
	a.board.Subscribe(a.web.SendStatus)

	draw := overlay.NewDraw()
	draw.Options.Expressions.MinConfidence = cfg.Detection.MinConfidence

	a.loop = loop.New(loop.Deps{
		Engine:     a.engine,
		Video:      a.video,
		Renderer:   draw,
		NewSurface: a.newSurface,
		Container:  &a.container,
		Board:      a.board,
		OnRender:   a.publishOverlay,
	}, loop.Config{
		Interval: cfg.Detection.Interval,
		Options: faceapi.TinyFaceDetectorOptions{
			InputSize:       cfg.Detection.InputSize,
			ScoreThreshold:  cfg.Detection.ScoreThreshold,
			WithDescriptors: cfg.Detection.Descriptors,
		},
	})

	a.video.OnPlaying(a.handlePlaying)
	a.video.OnEnded(a.loop.Stop)

	return a, nil
}

func deviceFromConfig(cfg config.Config) (capture.Device, error) {
	if cfg.IsRemoteCamera() {
		r := capture.NewRemote(cfg.Camera.RobotIP)
		r.SignalPort = cfg.Camera.SignalPort
		if cfg.Camera.Producer != "" {
			r.Producer = cfg.Camera.Producer
		}
		return r, nil
	}
	if idx, err := cfg.CameraIndex(); err == nil {
		return capture.NewWebcam(idx), nil
	}
	// Anything else is a file path or stream URL OpenCV can open.
	return capture.NewWebcam(cfg.Camera.Source), nil
}

// Board returns the status board.
func (a *App) Board() *status.Board { return a.board }

// Video returns the video element.
func (a *App) Video() *player.Video { return a.video }

// Loop returns the detection loop.
func (a *App) Loop() *loop.Loop { return a.loop }

// Web returns the web server.
func (a *App) Web() *web.Server { return a.web }

// Init is the mount step: it loads every model bundle once. A failure is
// logged, reported to the board and returned; the UI keeps working and
// the loop reports detection errors until models are available.
func (a *App) Init(ctx context.Context) error {
	a.board.SetPhase(status.PhaseLoading)

	ready, err := a.loader.LoadModels(ctx)
	if err != nil {
		a.logger.Error("model load failed", "source", a.source.String(), "err", err)
		a.board.SetModelsLoaded(false)
		a.board.ReportError(status.SourceModels, err, true)
		return err
	}

	a.board.SetModelsLoaded(true)
	a.board.SetPhase(status.PhaseReady)
	a.logger.Info("models ready", "source", ready.Source, "bundles", ready.Bundles, "elapsed", ready.Elapsed)
	return nil
}

// StartVideo requests a video-only stream and attaches it to the video
// element. On failure the error is logged once, reported to the board,
// and the video element is left untouched.
func (a *App) StartVideo(ctx context.Context) error {
	a.startMu.Lock()
	defer a.startMu.Unlock()
	if a.closed {
		return player.ErrClosed
	}

	stream, err := a.device.GetUserMedia(ctx, capture.Constraints{
		Video: capture.VideoConstraints{
			Width:     a.cfg.Camera.Width,
			Height:    a.cfg.Camera.Height,
			FrameRate: a.cfg.Camera.FPS,
		},
	})
	if err != nil {
		a.logger.Error("start video failed", "err", err)
		a.board.ReportError(status.SourceCapture, err, false)
		return err
	}

	old := a.video.SrcObject()
	a.board.SetStream(stream.ID())
	a.board.SetPhase(status.PhaseCapturing)
	if err := a.video.SetSrcObject(stream); err != nil {
		stream.Close()
		return err
	}
	if old != nil {
		old.Close()
	}
	a.logger.Info("video started", "stream", stream.ID())

	go a.relayCamera(stream)
	return nil
}

// StopVideo detaches and closes the current stream and stops the loop.
func (a *App) StopVideo() error {
	a.startMu.Lock()
	defer a.startMu.Unlock()

	src := a.video.SrcObject()
	if src == nil {
		return nil
	}
	a.video.SetSrcObject(nil)
	a.loop.Stop()
	err := src.Close()

	a.board.SetStream("")
	a.board.SetPhase(status.PhaseStopped)
	a.logger.Info("video stopped", "stream", src.ID())
	return err
}

// Run serves the web UI until ctx is done, then unmounts.
func (a *App) Run(ctx context.Context) error {
	err := a.web.Start(ctx)

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if serr := a.Shutdown(shutdownCtx); serr != nil && err == nil {
		err = serr
	}
	return err
}

// Shutdown is the unmount step: ended fires, the loop stops, the stream
// and the engine are released. It is idempotent.
func (a *App) Shutdown(ctx context.Context) error {
	var err error
	a.shutdownOnce.Do(func() {
		errc := make(chan error, 1)
		go func() {
			// Waits out a StartVideo in progress.
			a.startMu.Lock()
			a.closed = true
			a.startMu.Unlock()

			a.video.Close()
			a.loop.Stop()
			a.cancel()
			if c, ok := a.container.Surface().(interface{ Close() error }); ok {
				c.Close()
			}
			if cerr := a.engine.Close(); cerr != nil {
				errc <- fmt.Errorf("facecam: close engine: %w", cerr)
				return
			}
			errc <- nil
		}()

		select {
		case err = <-errc:
		case <-ctx.Done():
			err = ctx.Err()
			return
		}
		a.board.SetPhase(status.PhaseStopped)
		a.logger.Info("facecam stopped")
	})
	return err
}

func (a *App) handlePlaying() {
	if err := a.loop.HandlePlaying(a.ctx); err != nil {
		a.logger.Error("detection loop not started", "err", err)
	}
}

func (a *App) relayCamera(s capture.Stream) {
	frames := s.Frames()
	for {
		select {
		case f := <-frames:
			a.web.SendCameraFrame(f.JPEG)
		case <-s.Done():
			if err := s.Err(); err != nil {
				a.board.ReportError(status.SourceVideo, err, false)
			}
			return
		}
	}
}

func (a *App) publishOverlay(s overlay.Surface, results []faceapi.Result) {
	c, ok := s.(*overlay.Canvas)
	if !ok {
		return
	}
	png, err := c.EncodePNG()
	if err != nil {
		a.logger.Warn("overlay encode failed", "err", err)
		return
	}
	a.web.SendOverlayFrame(png)
	a.logger.Debug("overlay published", "faces", len(results))
}

// loadObserver mirrors model load progress onto the board.
type loadObserver struct {
	board  *status.Board
	logger *slog.Logger
}

func (o loadObserver) LoadStarted(bundles []string) {
	o.board.Info(fmt.Sprintf("loading %d model bundles", len(bundles)))
}

func (o loadObserver) BundleLoaded(name string, elapsed time.Duration) {
	o.board.Info(fmt.Sprintf("loaded %s in %s", name, elapsed.Round(time.Millisecond)))
	o.logger.Debug("bundle loaded", "bundle", name, "elapsed", elapsed)
}

func (o loadObserver) LoadFinished(models.Ready, error) {}
