package people

import (
	"errors"
	"strconv"

	"github.com/elearnhq/elearn-api/model"
	"github.com/elearnhq/elearn-api/services"
	"github.com/elearnhq/elearn-api/utils/middleware"
	"github.com/elearnhq/elearn-api/utils/response"
	"github.com/elearnhq/elearn-api/utils/validation"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// PeopleHandler serves user profiles, search and dashboards
type PeopleHandler struct {
	db            *gorm.DB
	courses       *services.CourseService
	statuses      *services.StatusService
	notifications *services.NotificationService
	progress      *services.ProgressService
	validator     *validation.Validator
}

// NewPeopleHandler creates a new people handler
func NewPeopleHandler(
	db *gorm.DB,
	courses *services.CourseService,
	statuses *services.StatusService,
	notifications *services.NotificationService,
	progress *services.ProgressService,
) *PeopleHandler {
	return &PeopleHandler{
		db:            db,
		courses:       courses,
		statuses:      statuses,
		notifications: notifications,
		progress:      progress,
		validator:     validation.NewValidator(),
	}
}

// ProfileResponse is a user's public profile page
type ProfileResponse struct {
	User        model.User     `json:"user"`
	Statuses    []model.Status `json:"statuses"`
	Owned       []model.Course `json:"owned_courses,omitempty"`
	Instructing []model.Course `json:"instructing_courses,omitempty"`
	Enrolled    []model.Course `json:"enrolled_courses,omitempty"`
}

// GetProfile handles GET /api/v1/users/:id
func (h *PeopleHandler) GetProfile(c *fiber.Ctx) error {
	userID, err := parseUintParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid user id")
	}

	var user model.User
	err = h.db.Preload("Profile").First(&user, userID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return response.NotFound(c, "User not found")
	}
	if err != nil {
		return response.InternalServerError(c, "Failed to load user")
	}

	statuses, err := h.statuses.ListByUser(c.Context(), user.ID, 20, 0)
	if err != nil {
		return response.InternalServerError(c, "Failed to load statuses")
	}

	profile := ProfileResponse{User: user, Statuses: statuses}

	if user.Role == model.RoleTeacher {
		if profile.Owned, err = h.courses.ListOwned(c.Context(), user.ID); err != nil {
			return response.InternalServerError(c, "Failed to load courses")
		}
		if profile.Instructing, err = h.courses.ListInstructing(c.Context(), user.ID); err != nil {
			return response.InternalServerError(c, "Failed to load courses")
		}
	} else {
		if profile.Enrolled, err = h.courses.ListEnrolled(c.Context(), user.ID); err != nil {
			return response.InternalServerError(c, "Failed to load courses")
		}
	}

	return response.Success(c, profile)
}

// UpdateProfileRequest represents a profile edit
type UpdateProfileRequest struct {
	Name       string `json:"name" validate:"omitempty,min=2,max=100"`
	Title      string `json:"title" validate:"omitempty,max=100"`
	Location   string `json:"location" validate:"omitempty,max=100"`
	Bio        string `json:"bio" validate:"omitempty,max=1000"`
	PictureURL string `json:"picture_url" validate:"omitempty,max=255"`
}

// UpdateProfile handles PUT /api/v1/profile
func (h *PeopleHandler) UpdateProfile(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	var req UpdateProfileRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		for field, reason := range validation.FormatValidationErrors(err) {
			return response.UnprocessableEntity(c, field, reason)
		}
		return response.BadRequest(c, "Invalid request")
	}

	var profile model.UserProfile
	err := h.db.Where("user_id = ?", user.ID).
		FirstOrCreate(&profile, model.UserProfile{UserID: user.ID}).Error
	if err != nil {
		return response.InternalServerError(c, "Failed to load profile")
	}

	if req.Name != "" {
		profile.Name = validation.SanitizeString(req.Name)
	}
	profile.Title = validation.SanitizeString(req.Title)
	profile.Location = validation.SanitizeString(req.Location)
	profile.Bio = validation.SanitizeString(req.Bio)
	profile.PictureURL = validation.SanitizeString(req.PictureURL)

	if err := h.db.Save(&profile).Error; err != nil {
		return response.InternalServerError(c, "Failed to update profile")
	}

	return response.Success(c, profile)
}

// SearchUsers handles GET /api/v1/users/search. Teachers only.
func (h *PeopleHandler) SearchUsers(c *fiber.Ctx) error {
	query := validation.SanitizeString(c.Query("q"))
	if query == "" {
		return response.Success(c, []model.User{})
	}

	role := c.Query("role")
	pattern := "%" + query + "%"

	dbQuery := h.db.Model(&model.User{}).
		Distinct("users.*").
		Joins("LEFT JOIN user_profiles ON user_profiles.user_id = users.id").
		Where("users.email ILIKE ? OR user_profiles.name ILIKE ?", pattern, pattern)
	if role != "" {
		dbQuery = dbQuery.Where("users.role = ?", role)
	}

	var users []model.User
	if err := dbQuery.Preload("Profile").Limit(10).Find(&users).Error; err != nil {
		return response.InternalServerError(c, "Failed to search users")
	}
	return response.Success(c, users)
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	raw := c.Params(name)
	parsed, err := strconv.ParseUint(raw, 10, 32)
	if err != nil || parsed == 0 {
		return 0, errors.New("invalid id")
	}
	return uint(parsed), nil
}
