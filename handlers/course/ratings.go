package course

import (
	"time"

	"github.com/elearnhq/elearn-api/utils/middleware"
	"github.com/elearnhq/elearn-api/utils/response"
	"github.com/gofiber/fiber/v2"
)

// SubmitRatingRequest represents a course review submission
type SubmitRatingRequest struct {
	Rating int    `json:"rating" validate:"required,min=1,max=5"`
	Text   string `json:"text" validate:"required,min=10"`
}

// SubmitRating handles POST /api/v1/courses/:id/ratings
func (h *CourseHandler) SubmitRating(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	var req SubmitRatingRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	rating, err := h.ratings.Submit(c.Context(), user, courseID, req.Rating, req.Text, time.Now())
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Success(c, rating)
}

// ListRatings handles GET /api/v1/courses/:id/ratings
func (h *CourseHandler) ListRatings(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	ratings, err := h.ratings.List(c.Context(), courseID)
	if err != nil {
		return response.FromServiceError(c, err)
	}

	summary, err := h.ratings.Summary(c.Context(), courseID)
	if err != nil {
		return response.InternalServerError(c, "Failed to load rating summary")
	}

	return response.Success(c, fiber.Map{
		"ratings": ratings,
		"summary": summary,
	})
}
