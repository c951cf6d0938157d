package config

import (
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_IsValid(t *testing.T) {
	cfg := Default()
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 720, cfg.Display.Width)
	assert.Equal(t, 560, cfg.Display.Height)
	assert.Equal(t, 100*time.Millisecond, cfg.Detection.Interval)
	assert.Equal(t, "/models", cfg.Models.URI)
	assert.Equal(t, 416, cfg.Detection.InputSize)
	assert.InDelta(t, 0.5, cfg.Detection.ScoreThreshold, 1e-9)
}

func TestValidate_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
		field  string
	}{
		{"zero interval", func(c *Config) { c.Detection.Interval = 0 }, "Interval"},
		{"bad log level", func(c *Config) { c.LogLevel = "loud" }, "LogLevel"},
		{"non-numeric port", func(c *Config) { c.Port = "http" }, "Port"},
		{"remote without ip", func(c *Config) { c.Camera.Source = CameraRemote; c.Camera.RobotIP = "" }, "RobotIP"},
		{"threshold above one", func(c *Config) { c.Detection.ScoreThreshold = 1.5 }, "ScoreThreshold"},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			t.Setenv("ROBOT_IP", "")
			cfg := Default()
			tc.mutate(&cfg)

			err := cfg.Validate()
			require.Error(t, err)

			var cerr *Error
			require.True(t, errors.As(err, &cerr))
			assert.Contains(t, cerr.Field, tc.field)
		})
	}
}

func TestLoad_YAMLThenEnv(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "facecam.yaml")
	yml := `
port: "9090"
models:
  uri: https://example.test/models
detection:
  interval: 250ms
camera:
  source: "1"
`
	require.NoError(t, os.WriteFile(path, []byte(yml), 0o644))

	EnvFile = filepath.Join(dir, "missing.env")
	t.Setenv("FACECAM_PORT", "7070")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "7070", cfg.Port, "env overrides file")
	assert.Equal(t, "https://example.test/models", cfg.Models.URI)
	assert.Equal(t, 250*time.Millisecond, cfg.Detection.Interval)
	assert.Equal(t, 560, cfg.Display.Height, "defaults survive partial files")

	idx, err := cfg.CameraIndex()
	require.NoError(t, err)
	assert.Equal(t, 1, idx)
}

func TestLoad_DotEnv(t *testing.T) {
	dir := t.TempDir()
	EnvFile = filepath.Join(dir, ".env")
	require.NoError(t, os.WriteFile(EnvFile, []byte("FACECAM_CAMERA=remote\nROBOT_IP=10.0.0.9\n"), 0o644))
	t.Cleanup(func() {
		os.Unsetenv("FACECAM_CAMERA")
		os.Unsetenv("ROBOT_IP")
	})

	cfg, err := Load("")
	require.NoError(t, err)
	assert.True(t, cfg.IsRemoteCamera())
	assert.Equal(t, "10.0.0.9", cfg.Camera.RobotIP)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_BadInterval(t *testing.T) {
	EnvFile = filepath.Join(t.TempDir(), "none.env")
	t.Setenv("FACECAM_INTERVAL", "soon")

	_, err := Load("")
	assert.Error(t, err)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	assert.Error(t, err)
}
