package people

import (
	"time"

	"github.com/elearnhq/elearn-api/model"
	"github.com/elearnhq/elearn-api/services"
	"github.com/elearnhq/elearn-api/utils/middleware"
	"github.com/elearnhq/elearn-api/utils/response"
	"github.com/gofiber/fiber/v2"
)

// upcomingWindow bounds the deadline list on the dashboard
const upcomingWindow = 10 * 24 * time.Hour

// DashboardResponse aggregates everything the home view needs
type DashboardResponse struct {
	Statuses      []model.Status       `json:"statuses"`
	Courses       []model.Course       `json:"courses"`
	Deadlines     []model.Material     `json:"upcoming_deadlines"`
	Notifications []model.Notification `json:"notifications"`
	UnreadCount   int64                `json:"unread_count"`
}

// Dashboard handles GET /api/v1/dashboard
func (h *PeopleHandler) Dashboard(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	statuses, err := h.statuses.ListByUser(c.Context(), user.ID, 10, 0)
	if err != nil {
		return response.InternalServerError(c, "Failed to load statuses")
	}

	var courses []model.Course
	if user.Role == model.RoleTeacher {
		courses, err = h.courses.ListOwned(c.Context(), user.ID)
	} else {
		courses, err = h.courses.ListEnrolled(c.Context(), user.ID)
	}
	if err != nil {
		return response.InternalServerError(c, "Failed to load courses")
	}

	deadlines, err := h.upcomingDeadlines(c, user)
	if err != nil {
		return response.InternalServerError(c, "Failed to load deadlines")
	}

	notifications, _, err := h.notifications.ListByUser(c.Context(), user.ID, false, 10, 0)
	if err != nil {
		return response.InternalServerError(c, "Failed to load notifications")
	}

	unread, err := h.notifications.UnreadCount(c.Context(), user.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to load notifications")
	}

	return response.Success(c, DashboardResponse{
		Statuses:      statuses,
		Courses:       courses,
		Deadlines:     deadlines,
		Notifications: notifications,
		UnreadCount:   unread,
	})
}

// upcomingDeadlines returns materials due within the window, in courses
// the student is actively enrolled in, that they have not completed
func (h *PeopleHandler) upcomingDeadlines(c *fiber.Ctx, user *model.User) ([]model.Material, error) {
	if user.Role != model.RoleStudent {
		return nil, nil
	}

	now := time.Now()
	var materials []model.Material
	err := h.db.WithContext(c.Context()).Model(&model.Material{}).
		Joins("JOIN modules ON modules.id = materials.module_id").
		Joins("JOIN enrollments ON enrollments.course_id = modules.course_id").
		Where("enrollments.user_id = ?", user.ID).
		Where("enrollments.status = ?", model.EnrollmentStatusEnrolled).
		Where("enrollments.expired_at > ?", services.DateOnly(now)).
		Where("materials.due_date IS NOT NULL").
		Where("materials.due_date >= ? AND materials.due_date <= ?", now, now.Add(upcomingWindow)).
		Where("NOT EXISTS (SELECT 1 FROM progresses WHERE progresses.user_id = ? AND progresses.material_id = materials.id)", user.ID).
		Order("materials.due_date ASC").
		Find(&materials).Error
	if err != nil {
		return nil, err
	}
	return materials, nil
}
