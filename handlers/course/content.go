package course

import (
	"time"

	"github.com/elearnhq/elearn-api/model"
	"github.com/elearnhq/elearn-api/services"
	"github.com/elearnhq/elearn-api/utils/middleware"
	"github.com/elearnhq/elearn-api/utils/response"
	"github.com/elearnhq/elearn-api/utils/validation"
	"github.com/gofiber/fiber/v2"
)

// AddModuleRequest represents a new module
type AddModuleRequest struct {
	Name string `json:"name" validate:"required,min=1,max=100"`
}

// AddModule handles POST /api/v1/courses/:id/modules
func (h *CourseHandler) AddModule(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	var req AddModuleRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		for field, reason := range validation.FormatValidationErrors(err) {
			return response.UnprocessableEntity(c, field, reason)
		}
		return response.BadRequest(c, "Invalid request")
	}

	module, err := h.courses.AddModule(c.Context(), user, courseID, req.Name)
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Created(c, module)
}

// DeleteModule handles DELETE /api/v1/courses/:id/modules/:moduleID
func (h *CourseHandler) DeleteModule(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}
	moduleID, err := parseUintParam(c, "moduleID")
	if err != nil {
		return response.BadRequest(c, "Invalid module id")
	}

	if err := h.courses.DeleteModule(c.Context(), user, courseID, moduleID); err != nil {
		return response.FromServiceError(c, err)
	}
	return response.NoContent(c)
}

// AddMaterialRequest represents a new material
type AddMaterialRequest struct {
	Name    string `json:"name" validate:"required,min=1,max=200"`
	Type    string `json:"type" validate:"required,oneof=quiz video reading"`
	Content string `json:"content" validate:"omitempty"`
	DueDate string `json:"due_date" validate:"omitempty"` // YYYY-MM-DD
}

// AddMaterial handles POST /api/v1/courses/:id/modules/:moduleID/materials
func (h *CourseHandler) AddMaterial(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}
	moduleID, err := parseUintParam(c, "moduleID")
	if err != nil {
		return response.BadRequest(c, "Invalid module id")
	}

	var req AddMaterialRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		for field, reason := range validation.FormatValidationErrors(err) {
			return response.UnprocessableEntity(c, field, reason)
		}
		return response.BadRequest(c, "Invalid request")
	}

	in := services.MaterialInput{
		Name:    req.Name,
		Type:    model.MaterialType(req.Type),
		Content: req.Content,
	}
	if req.DueDate != "" {
		due, err := time.Parse(dateLayout, req.DueDate)
		if err != nil {
			return response.UnprocessableEntity(c, "due_date", "must be a YYYY-MM-DD date")
		}
		in.DueDate = &due
	}

	material, err := h.courses.AddMaterial(c.Context(), user, courseID, moduleID, in)
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Created(c, material)
}

// GetMaterial handles GET /api/v1/courses/:id/materials/:materialID
func (h *CourseHandler) GetMaterial(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}
	materialID, err := parseUintParam(c, "materialID")
	if err != nil {
		return response.BadRequest(c, "Invalid material id")
	}

	material, err := h.courses.MaterialDetail(c.Context(), user, courseID, materialID, time.Now())
	if err != nil {
		return response.FromServiceError(c, err)
	}

	completed, err := h.progress.HasProgress(c.Context(), user.ID, material.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to load progress")
	}

	return response.Success(c, fiber.Map{
		"material":  material,
		"completed": completed,
	})
}

// CompleteMaterial handles POST /api/v1/courses/:id/materials/:materialID/complete
func (h *CourseHandler) CompleteMaterial(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}
	materialID, err := parseUintParam(c, "materialID")
	if err != nil {
		return response.BadRequest(c, "Invalid material id")
	}

	if err := h.progress.MarkComplete(c.Context(), user, courseID, materialID, time.Now()); err != nil {
		return response.FromServiceError(c, err)
	}

	pct, err := h.progress.Percentage(c.Context(), courseID, user.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to compute progress")
	}
	return response.Success(c, fiber.Map{"progress_percentage": pct})
}
