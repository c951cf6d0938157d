package main

import (
	"time"

	"github.com/spf13/cobra"

	"github.com/teslashibe/go-facecam/internal/log"
	"github.com/teslashibe/go-facecam/pkg/facecam"
)

var serveOpts struct {
	port      string
	models    string
	modelDir  string
	camera    string
	robotIP   string
	width     int
	height    int
	interval  time.Duration
	autoStart bool
}

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the camera page and run detection",
	RunE:  runServe,
}

func init() {
	f := serveCmd.Flags()
	f.StringVar(&serveOpts.port, "port", "", "HTTP port (default 8080)")
	f.StringVar(&serveOpts.models, "models", "", `model location: a directory, "/models" or an http(s) URL`)
	f.StringVar(&serveOpts.modelDir, "model-dir", "", "directory served at /models")
	f.StringVar(&serveOpts.camera, "camera", "", `device index, video file, or "remote"`)
	f.StringVar(&serveOpts.robotIP, "robot-ip", "", "remote camera host (overrides ROBOT_IP)")
	f.IntVar(&serveOpts.width, "width", 0, "video display width (default 720)")
	f.IntVar(&serveOpts.height, "height", 0, "video display height (default 560)")
	f.DurationVar(&serveOpts.interval, "interval", 0, "detection period (default 100ms)")
	f.BoolVar(&serveOpts.autoStart, "start", false, "start the camera without waiting for the button")
	rootCmd.AddCommand(serveCmd)
}

func runServe(cmd *cobra.Command, args []string) error {
	flags := cmd.Flags()
	if flags.Changed("port") {
		cfg.Port = serveOpts.port
	}
	if flags.Changed("models") {
		cfg.Models.URI = serveOpts.models
	}
	if flags.Changed("model-dir") {
		cfg.Models.Dir = serveOpts.modelDir
	}
	if flags.Changed("camera") {
		cfg.Camera.Source = serveOpts.camera
	}
	if flags.Changed("robot-ip") {
		cfg.Camera.RobotIP = serveOpts.robotIP
	}
	if flags.Changed("width") {
		cfg.Display.Width = serveOpts.width
	}
	if flags.Changed("height") {
		cfg.Display.Height = serveOpts.height
	}
	if flags.Changed("interval") {
		cfg.Detection.Interval = serveOpts.interval
	}

	app, err := facecam.New(cfg)
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	if err := app.Init(ctx); err != nil {
		log.Warn("serving without models", "err", err)
	}
	if serveOpts.autoStart {
		// Failures are on the status board already.
		_ = app.StartVideo(ctx)
	}
	return app.Run(ctx)
}
