package web

import (
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teslashibe/go-facecam/pkg/models"
	"github.com/teslashibe/go-facecam/pkg/status"
)

func newTestServer(t *testing.T) (*Server, string) {
	t.Helper()
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, models.DetectorFile), []byte("onnx"), 0o644))
	return NewServer(Options{Port: "0", ModelsDir: dir, ModelsURI: models.ServedPrefix}), dir
}

func body(t *testing.T, resp io.Reader) string {
	t.Helper()
	b, err := io.ReadAll(resp)
	require.NoError(t, err)
	return string(b)
}

func TestStatus(t *testing.T) {
	s, _ := newTestServer(t)
	board := status.NewBoard()
	board.SetPhase(status.PhaseReady)
	s.Status = board.Snapshot

	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/status", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	var got struct {
		Status  status.Snapshot `json:"status"`
		Clients map[string]int  `json:"clients"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, status.PhaseReady, got.Status.Phase)
	assert.Equal(t, map[string]int{"camera": 0, "overlay": 0, "status": 0}, got.Clients)
}

func TestCaptureStart(t *testing.T) {
	s, _ := newTestServer(t)
	calls := 0
	s.OnStart = func(context.Context) error { calls++; return nil }

	resp, err := s.App().Test(httptest.NewRequest("POST", "/api/capture/start", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, 1, calls)
}

func TestCaptureStart_Error(t *testing.T) {
	s, _ := newTestServer(t)
	s.OnStart = func(context.Context) error { return errors.New("NotAllowedError: permission denied") }

	resp, err := s.App().Test(httptest.NewRequest("POST", "/api/capture/start", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusServiceUnavailable, resp.StatusCode)
	assert.Contains(t, body(t, resp.Body), "permission denied")
}

func TestCaptureStart_NotConfigured(t *testing.T) {
	s, _ := newTestServer(t)
	resp, err := s.App().Test(httptest.NewRequest("POST", "/api/capture/start", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusNotImplemented, resp.StatusCode)
}

func TestCaptureStop(t *testing.T) {
	s, _ := newTestServer(t)
	stopped := false
	s.OnStop = func() error { stopped = true; return nil }

	resp, err := s.App().Test(httptest.NewRequest("POST", "/api/capture/stop", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.True(t, stopped)
}

func TestModels(t *testing.T) {
	s, _ := newTestServer(t)
	resp, err := s.App().Test(httptest.NewRequest("GET", "/api/models", nil))
	require.NoError(t, err)

	var info ModelsInfo
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&info))
	assert.Equal(t, models.ServedPrefix, info.URI)
	assert.False(t, info.Complete)
	assert.NotContains(t, info.Missing, models.DetectorFile)
	assert.Contains(t, info.Missing, models.ExpressionFile)
	assert.Len(t, info.Bundles, len(models.BundleNames))
}

func TestModelsServedStatically(t *testing.T) {
	s, _ := newTestServer(t)
	resp, err := s.App().Test(httptest.NewRequest("GET", models.ServedPrefix+"/"+models.DetectorFile, nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)
	assert.Equal(t, "onnx", body(t, resp.Body))
}

func TestIndexPage(t *testing.T) {
	s, _ := newTestServer(t)
	resp, err := s.App().Test(httptest.NewRequest("GET", "/", nil))
	require.NoError(t, err)
	assert.Equal(t, fiber.StatusOK, resp.StatusCode)

	html := body(t, resp.Body)
	assert.True(t, strings.Contains(html, `id="start"`))
	assert.Contains(t, html, "720px")
}

func TestWebsocketRequiresUpgrade(t *testing.T) {
	s, _ := newTestServer(t)
	for _, path := range []string{"/ws/camera", "/ws/overlay", "/ws/status"} {
		resp, err := s.App().Test(httptest.NewRequest("GET", path, nil))
		require.NoError(t, err)
		assert.Equal(t, fiber.StatusUpgradeRequired, resp.StatusCode, path)
	}
}
