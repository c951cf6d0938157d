package web

import (
	"github.com/gofiber/fiber/v2"

	"github.com/teslashibe/go-facecam/pkg/models"
	"github.com/teslashibe/go-facecam/pkg/status"
)

// ModelsInfo describes where the bundles come from and what is missing.
type ModelsInfo struct {
	URI      string              `json:"uri"`
	Dir      string              `json:"dir,omitempty"`
	Bundles  map[string][]string `json:"bundles"`
	Missing  []string            `json:"missing,omitempty"`
	Complete bool                `json:"complete"`
}

func (s *Server) handleStatus(c *fiber.Ctx) error {
	snap := status.Snapshot{Phase: status.PhaseIdle}
	if s.Status != nil {
		snap = s.Status()
	}
	return c.JSON(fiber.Map{
		"status":  snap,
		"clients": s.Clients(),
	})
}

func (s *Server) handleModels(c *fiber.Ctx) error {
	info := ModelsInfo{URI: s.opts.ModelsURI, Dir: s.opts.ModelsDir, Bundles: models.Manifest()}
	if s.opts.ModelsDir != "" {
		missing, err := models.Check(s.opts.ModelsDir)
		if err != nil {
			return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
		}
		info.Missing = missing
		info.Complete = len(missing) == 0
	}
	return c.JSON(info)
}

func (s *Server) handleCaptureStart(c *fiber.Ctx) error {
	if s.OnStart == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "capture not configured"})
	}
	if err := s.OnStart(c.UserContext()); err != nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"started": true})
}

func (s *Server) handleCaptureStop(c *fiber.Ctx) error {
	if s.OnStop == nil {
		return c.Status(fiber.StatusNotImplemented).JSON(fiber.Map{"error": "capture not configured"})
	}
	if err := s.OnStop(); err != nil {
		return c.Status(fiber.StatusInternalServerError).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"stopped": true})
}
