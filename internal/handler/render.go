package handler

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/shortreel/api/internal/client"
	"github.com/shortreel/api/internal/dispatch"
	"github.com/shortreel/api/internal/service"
	"github.com/shortreel/api/pkg/response"
)

type RenderHandler struct {
	service *service.RenderService
}

func NewRenderHandler(svc *service.RenderService) *RenderHandler {
	return &RenderHandler{service: svc}
}

// Preview handles POST /api/render/preview
func (h *RenderHandler) Preview(c *fiber.Ctx) error {
	state, err := h.service.StartPreview(c.Context())
	if err != nil {
		return renderError(c, err)
	}
	return response.Accepted(c, state)
}

// Final handles POST /api/render/final
func (h *RenderHandler) Final(c *fiber.Ctx) error {
	state, err := h.service.StartFinal(c.Context())
	if err != nil {
		return renderError(c, err)
	}
	return response.Accepted(c, state)
}

// Status handles GET /api/render/status
func (h *RenderHandler) Status(c *fiber.Ctx) error {
	return response.OK(c, h.service.Status())
}

// Refresh handles POST /api/render/refresh
func (h *RenderHandler) Refresh(c *fiber.Ctx) error {
	state, err := h.service.Refresh(c.Context())
	if err != nil {
		if errors.Is(err, service.ErrNotPromoted) {
			return response.NotFound(c, "Draft has no project yet")
		}
		if errors.Is(err, client.ErrJobNotFound) {
			return response.NotFound(c, "Job not found")
		}
		return response.PlatformUnavailable(c, err.Error())
	}
	return response.OK(c, state)
}

// Captions handles POST /api/render/captions
func (h *RenderHandler) Captions(c *fiber.Ctx) error {
	result, err := h.service.GenerateCaptions(c.Context())
	if err != nil {
		if errors.Is(err, service.ErrNotPromoted) {
			return response.NotFound(c, "Draft has no project yet")
		}
		if errors.Is(err, client.ErrProjectNotFound) {
			return response.NotFound(c, "Project not found")
		}
		return response.PlatformUnavailable(c, err.Error())
	}
	return response.OK(c, result)
}

// renderError maps submission failures onto the API's error envelope.
func renderError(c *fiber.Ctx, err error) error {
	var precondition *dispatch.PreconditionError
	switch {
	case errors.As(err, &precondition):
		return response.PreconditionFailed(c, precondition.Reason)
	case errors.Is(err, dispatch.ErrRenderInProgress):
		return response.RenderInProgress(c)
	case errors.Is(err, client.ErrProjectNotFound):
		return response.NotFound(c, "Project not found")
	case errors.Is(err, client.ErrConflict):
		return response.Conflict(c, "Project was updated elsewhere")
	default:
		return response.PlatformUnavailable(c, err.Error())
	}
}
