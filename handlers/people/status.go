package people

import (
	"strconv"

	"github.com/elearnhq/elearn-api/utils/middleware"
	"github.com/elearnhq/elearn-api/utils/response"
	"github.com/gofiber/fiber/v2"
)

// PostStatusRequest represents a new status post
type PostStatusRequest struct {
	Text     string `json:"text" validate:"required,min=1,max=512"`
	ImageURL string `json:"image_url" validate:"omitempty,max=255"`
}

// PostStatus handles POST /api/v1/statuses
func (h *PeopleHandler) PostStatus(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	var req PostStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	status, err := h.statuses.Post(c.Context(), user.ID, req.Text, req.ImageURL)
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Created(c, status)
}

// ListStatuses handles GET /api/v1/users/:id/statuses
func (h *PeopleHandler) ListStatuses(c *fiber.Ctx) error {
	userID, err := parseUintParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid user id")
	}

	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))

	statuses, err := h.statuses.ListByUser(c.Context(), userID, limit, offset)
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Success(c, statuses)
}

// DeleteStatus handles DELETE /api/v1/statuses/:id
func (h *PeopleHandler) DeleteStatus(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	statusID, err := parseUintParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid status id")
	}

	if err := h.statuses.Delete(c.Context(), statusID, user.ID); err != nil {
		return response.FromServiceError(c, err)
	}
	return response.NoContent(c)
}
