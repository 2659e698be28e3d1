package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/shortreel/api/internal/client"
	"github.com/shortreel/api/internal/service"
	"github.com/shortreel/api/pkg/response"
)

type ProjectHandler struct {
	service *service.ProjectService
}

func NewProjectHandler(svc *service.ProjectService) *ProjectHandler {
	return &ProjectHandler{service: svc}
}

// Get handles GET /api/project
func (h *ProjectHandler) Get(c *fiber.Ctx) error {
	record, err := h.service.Get(c.Context())
	if err != nil {
		if errors.Is(err, service.ErrNotPromoted) {
			return response.NotFound(c, "Draft has no project yet")
		}
		if errors.Is(err, client.ErrProjectNotFound) {
			return response.NotFound(c, "Project not found")
		}
		return response.PlatformUnavailable(c, err.Error())
	}
	return response.OK(c, record)
}

// Delete handles DELETE /api/project
func (h *ProjectHandler) Delete(c *fiber.Ctx) error {
	if err := h.service.Delete(c.Context()); err != nil {
		if errors.Is(err, service.ErrNotPromoted) {
			return response.NotFound(c, "Draft has no project yet")
		}
		if errors.Is(err, client.ErrProjectNotFound) {
			return response.NotFound(c, "Project not found")
		}
		return response.PlatformUnavailable(c, err.Error())
	}
	return response.NoContent(c)
}
