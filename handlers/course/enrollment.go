package course

import (
	"time"

	"github.com/elearnhq/elearn-api/utils/middleware"
	"github.com/elearnhq/elearn-api/utils/response"
	"github.com/gofiber/fiber/v2"
)

// Enroll handles POST /api/v1/courses/:id/enroll
func (h *CourseHandler) Enroll(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	result, err := h.enrollments.Enroll(c.Context(), user, courseID, time.Now())
	if err != nil {
		return response.FromServiceError(c, err)
	}

	if result.Created {
		return response.Created(c, result.Enrollment)
	}
	return response.Success(c, result.Enrollment)
}

// ListStudents handles GET /api/v1/courses/:id/students
func (h *CourseHandler) ListStudents(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	enrollments, err := h.enrollments.ListStudents(c.Context(), user, courseID)
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Success(c, enrollments)
}

// BlockStudentRequest toggles a student's blocked flag
type BlockStudentRequest struct {
	Blocked bool `json:"blocked"`
}

// SetStudentBlocked handles PUT /api/v1/courses/:id/students/:studentID/blocked
func (h *CourseHandler) SetStudentBlocked(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}
	studentID, err := parseUintParam(c, "studentID")
	if err != nil {
		return response.BadRequest(c, "Invalid student id")
	}

	var req BlockStudentRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}

	if err := h.enrollments.SetBlocked(c.Context(), user, courseID, studentID, req.Blocked); err != nil {
		return response.FromServiceError(c, err)
	}
	return response.NoContent(c)
}

// RemoveStudent handles DELETE /api/v1/courses/:id/students/:studentID
func (h *CourseHandler) RemoveStudent(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}
	studentID, err := parseUintParam(c, "studentID")
	if err != nil {
		return response.BadRequest(c, "Invalid student id")
	}

	if err := h.enrollments.Remove(c.Context(), user, courseID, studentID); err != nil {
		return response.FromServiceError(c, err)
	}
	return response.NoContent(c)
}

// AddInstructorRequest names the teacher to grant instructor rights
type AddInstructorRequest struct {
	UserID uint `json:"user_id" validate:"required,min=1"`
}

// AddInstructor handles POST /api/v1/courses/:id/instructors
func (h *CourseHandler) AddInstructor(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	var req AddInstructorRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if req.UserID == 0 {
		return response.UnprocessableEntity(c, "user_id", "is required")
	}

	instructor, err := h.courses.AddInstructor(c.Context(), user, courseID, req.UserID)
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Created(c, instructor)
}

// RemoveInstructor handles DELETE /api/v1/courses/:id/instructors/:userID
func (h *CourseHandler) RemoveInstructor(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}
	teacherID, err := parseUintParam(c, "userID")
	if err != nil {
		return response.BadRequest(c, "Invalid user id")
	}

	if err := h.courses.RemoveInstructor(c.Context(), user, courseID, teacherID); err != nil {
		return response.FromServiceError(c, err)
	}
	return response.NoContent(c)
}
