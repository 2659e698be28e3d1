package handler

import (
	"errors"

	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"

	"github.com/shortreel/api/internal/draft"
	"github.com/shortreel/api/internal/model"
	"github.com/shortreel/api/internal/service"
	"github.com/shortreel/api/pkg/response"
)

type DraftHandler struct {
	service   *service.DraftService
	validator *validator.Validate
}

func NewDraftHandler(svc *service.DraftService, v *validator.Validate) *DraftHandler {
	return &DraftHandler{
		service:   svc,
		validator: v,
	}
}

// Start handles POST /api/draft/start
func (h *DraftHandler) Start(c *fiber.Ctx) error {
	var req model.DraftStartRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return response.ValidationError(c, "Invalid request body", nil)
		}
		if err := h.validator.Struct(&req); err != nil {
			return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
		}
	}

	d := h.service.Start(c.Context(), &req)
	return response.Created(c, d)
}

// Get handles GET /api/draft
func (h *DraftHandler) Get(c *fiber.Ctx) error {
	return response.OK(c, h.service.Get())
}

// Update handles PATCH /api/draft
func (h *DraftHandler) Update(c *fiber.Ctx) error {
	var req model.DraftUpdateRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	d := h.service.Update(c.Context(), &req)
	return response.OK(c, d)
}

// SetCharacters handles PUT /api/draft/characters
func (h *DraftHandler) SetCharacters(c *fiber.Ctx) error {
	var req model.SetCharactersRequest
	if err := c.BodyParser(&req); err != nil {
		return response.ValidationError(c, "Invalid request body", nil)
	}

	if err := h.validator.Struct(&req); err != nil {
		return response.ValidationError(c, "Validation failed", formatValidationErrors(err))
	}

	d := h.service.SetCharacters(c.Context(), req.Characters)
	return response.OK(c, d)
}

// Resume handles POST /api/draft/:draftId/resume
func (h *DraftHandler) Resume(c *fiber.Ctx) error {
	draftID := c.Params("draftId")
	if draftID == "" {
		return response.ValidationError(c, "Draft ID is required", nil)
	}

	d, err := h.service.Resume(c.Context(), draftID)
	if err != nil {
		if errors.Is(err, draft.ErrSnapshotNotFound) {
			return response.NotFound(c, "No saved draft with that ID")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, d)
}

// Finish handles POST /api/draft/finish
func (h *DraftHandler) Finish(c *fiber.Ctx) error {
	projectID, err := h.service.Finish(c.Context())
	if err != nil {
		if errors.Is(err, service.ErrNotPromoted) {
			return response.NotFound(c, "Draft has no project yet")
		}
		return response.ServiceError(c, err.Error())
	}
	return response.OK(c, fiber.Map{"projectId": projectID})
}

// Clear handles DELETE /api/draft
func (h *DraftHandler) Clear(c *fiber.Ctx) error {
	d := h.service.Clear(c.Context())
	return response.OK(c, d)
}

func formatValidationErrors(err error) interface{} {
	if validationErrors, ok := err.(validator.ValidationErrors); ok {
		errors := make(map[string]string)
		for _, e := range validationErrors {
			errors[e.Field()] = e.Tag()
		}
		return errors
	}
	return nil
}
