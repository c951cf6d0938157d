// Package web serves the facecam page, its JSON API, the model files and
// the websocket feeds for camera frames, overlay frames and status.
package web

import (
	"context"
	"embed"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/filesystem"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-facecam/internal/log"
	"github.com/teslashibe/go-facecam/pkg/hub"
	"github.com/teslashibe/go-facecam/pkg/models"
	"github.com/teslashibe/go-facecam/pkg/status"
)

//go:embed static
var staticFS embed.FS

// Options configures the server.
type Options struct {
	Port string
	// ModelsDir is served under models.ServedPrefix when set.
	ModelsDir string
	// ModelsURI is what the page reports as the model location.
	ModelsURI string
}

// Server is the facecam web UI.
type Server struct {
	app    *fiber.App
	opts   Options
	logger *slog.Logger

	cameraHub  *hub.Hub
	overlayHub *hub.Hub
	statusHub  *hub.Hub

	// OnStart is the Start button. Required for /api/capture/start.
	OnStart func(ctx context.Context) error
	// OnStop detaches the camera.
	OnStop func() error
	// Status returns the current board snapshot.
	Status func() status.Snapshot
}

// NewServer builds the routes. Hubs start with Start.
func NewServer(opts Options) *Server {
	s := &Server{
		opts:       opts,
		logger:     log.With("component", "web"),
		cameraHub:  hub.New("camera"),
		overlayHub: hub.New("overlay"),
		statusHub:  hub.New("status"),
	}

	app := fiber.New(fiber.Config{
		AppName:               "facecam",
		DisableStartupMessage: true,
	})
	app.Use(cors.New())

	api := app.Group("/api")
	api.Get("/status", s.handleStatus)
	api.Get("/models", s.handleModels)
	api.Post("/capture/start", s.handleCaptureStart)
	api.Post("/capture/stop", s.handleCaptureStop)

	app.Use("/ws", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/camera", websocket.New(s.feed(s.cameraHub)))
	app.Get("/ws/overlay", websocket.New(s.feed(s.overlayHub)))
	app.Get("/ws/status", websocket.New(s.feed(s.statusHub)))

	if opts.ModelsDir != "" {
		app.Static(models.ServedPrefix, opts.ModelsDir)
	}

	sub, err := fs.Sub(staticFS, "static")
	if err != nil {
		panic(fmt.Sprintf("web: embedded assets: %v", err))
	}
	app.Use("/", filesystem.New(filesystem.Config{
		Root:  http.FS(sub),
		Index: "index.html",
	}))

	s.app = app
	return s
}

// App exposes the fiber app for tests.
func (s *Server) App() *fiber.App { return s.app }

// Start runs the hubs and serves until ctx is done or Listen fails.
func (s *Server) Start(ctx context.Context) error {
	for _, h := range []*hub.Hub{s.cameraHub, s.overlayHub, s.statusHub} {
		go h.Run(ctx)
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("web UI listening", "url", "http://localhost:"+s.opts.Port)
		errc <- s.app.Listen(":" + s.opts.Port)
	}()

	select {
	case err := <-errc:
		return fmt.Errorf("web: listen: %w", err)
	case <-ctx.Done():
		if err := s.app.Shutdown(); err != nil && !errors.Is(err, context.Canceled) {
			return fmt.Errorf("web: shutdown: %w", err)
		}
		return nil
	}
}

// SendCameraFrame publishes a JPEG video frame.
func (s *Server) SendCameraFrame(jpeg []byte) { s.cameraHub.BroadcastBinary(jpeg) }

// SendOverlayFrame publishes a transparent PNG overlay.
func (s *Server) SendOverlayFrame(png []byte) { s.overlayHub.BroadcastBinary(png) }

// SendStatus publishes a status snapshot.
func (s *Server) SendStatus(snap status.Snapshot) {
	if err := s.statusHub.BroadcastJSON(snap); err != nil {
		s.logger.Warn("status encode failed", "err", err)
	}
}

// Clients returns the connected client count per feed.
func (s *Server) Clients() map[string]int {
	out := make(map[string]int, 3)
	for _, h := range []*hub.Hub{s.cameraHub, s.overlayHub, s.statusHub} {
		out[h.Name()] = h.ClientCount()
	}
	return out
}

func (s *Server) feed(h *hub.Hub) func(*websocket.Conn) {
	return func(conn *websocket.Conn) {
		hub.NewClient(h, conn).Run()
	}
}
