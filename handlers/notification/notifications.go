package notification

import (
	"strconv"

	"github.com/elearnhq/elearn-api/services"
	"github.com/elearnhq/elearn-api/utils/middleware"
	"github.com/elearnhq/elearn-api/utils/response"
	"github.com/gofiber/fiber/v2"
)

// NotificationHandler serves a user's notification feed
type NotificationHandler struct {
	notifications *services.NotificationService
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(notifications *services.NotificationService) *NotificationHandler {
	return &NotificationHandler{notifications: notifications}
}

// List handles GET /api/v1/notifications
func (h *NotificationHandler) List(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	page, _ := strconv.Atoi(c.Query("page", "1"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	unreadOnly := c.Query("unread") == "true"

	if page < 1 {
		page = 1
	}
	offset := (page - 1) * limit

	rows, total, err := h.notifications.ListByUser(c.Context(), user.ID, unreadOnly, limit, offset)
	if err != nil {
		return response.InternalServerError(c, "Failed to load notifications")
	}

	return response.Paginated(c, rows, response.CalculatePagination(page, limit, total))
}

// UnreadCount handles GET /api/v1/notifications/unread-count
func (h *NotificationHandler) UnreadCount(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	count, err := h.notifications.UnreadCount(c.Context(), user.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to count notifications")
	}
	return response.Success(c, fiber.Map{"unread_count": count})
}

// MarkRead handles PUT /api/v1/notifications/:id/read
func (h *NotificationHandler) MarkRead(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	id, err := strconv.ParseUint(c.Params("id"), 10, 32)
	if err != nil || id == 0 {
		return response.BadRequest(c, "Invalid notification id")
	}

	if err := h.notifications.MarkAsRead(c.Context(), uint(id), user.ID); err != nil {
		return response.FromServiceError(c, err)
	}
	return response.NoContent(c)
}

// MarkAllRead handles PUT /api/v1/notifications/read-all
func (h *NotificationHandler) MarkAllRead(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	updated, err := h.notifications.MarkAllAsRead(c.Context(), user.ID)
	if err != nil {
		return response.InternalServerError(c, "Failed to mark notifications read")
	}
	return response.Success(c, fiber.Map{"updated": updated})
}
