package course

import (
	"strconv"
	"time"

	"github.com/elearnhq/elearn-api/model"
	"github.com/elearnhq/elearn-api/services"
	"github.com/elearnhq/elearn-api/utils/middleware"
	"github.com/elearnhq/elearn-api/utils/response"
	"github.com/elearnhq/elearn-api/utils/validation"
	"github.com/gofiber/fiber/v2"
	"gorm.io/gorm"
)

// dateLayout is the wire format of course date fields
const dateLayout = "2006-01-02"

// CourseHandler handles course-related requests
type CourseHandler struct {
	db          *gorm.DB
	courses     *services.CourseService
	enrollments *services.EnrollmentService
	progress    *services.ProgressService
	ratings     *services.RatingService
	explore     *services.ExploreService
	validator   *validation.Validator
}

// NewCourseHandler creates a new course handler
func NewCourseHandler(
	db *gorm.DB,
	courses *services.CourseService,
	enrollments *services.EnrollmentService,
	progress *services.ProgressService,
	ratings *services.RatingService,
	explore *services.ExploreService,
) *CourseHandler {
	return &CourseHandler{
		db:          db,
		courses:     courses,
		enrollments: enrollments,
		progress:    progress,
		ratings:     ratings,
		explore:     explore,
		validator:   validation.NewValidator(),
	}
}

// CourseRequest represents the request body for creating or updating a
// course. All four dates use the YYYY-MM-DD format.
type CourseRequest struct {
	Title             string `json:"title" validate:"required,min=3,max=255"`
	Subtitle          string `json:"subtitle" validate:"omitempty,max=255"`
	Category          string `json:"category" validate:"required"`
	Description       string `json:"description" validate:"omitempty,max=10000"`
	CoverImgURL       string `json:"cover_img_url" validate:"omitempty,max=255"`
	Status            string `json:"status" validate:"omitempty,oneof=draft published"`
	RegistrationStart string `json:"registration_start" validate:"required"`
	RegistrationEnd   string `json:"registration_end" validate:"required"`
	CourseStart       string `json:"course_start" validate:"required"`
	CourseEnd         string `json:"course_end" validate:"required"`
}

func (r *CourseRequest) toInput() (services.CourseInput, error) {
	in := services.CourseInput{
		Title:       r.Title,
		Subtitle:    r.Subtitle,
		Category:    model.CourseCategory(r.Category),
		Description: r.Description,
		CoverImgURL: r.CoverImgURL,
		Status:      model.CourseStatus(r.Status),
	}

	var err error
	if in.RegistrationStart, err = time.Parse(dateLayout, r.RegistrationStart); err != nil {
		return in, services.Invalid("registration_start", "must be a YYYY-MM-DD date")
	}
	if in.RegistrationEnd, err = time.Parse(dateLayout, r.RegistrationEnd); err != nil {
		return in, services.Invalid("registration_end", "must be a YYYY-MM-DD date")
	}
	if in.CourseStart, err = time.Parse(dateLayout, r.CourseStart); err != nil {
		return in, services.Invalid("course_start", "must be a YYYY-MM-DD date")
	}
	if in.CourseEnd, err = time.Parse(dateLayout, r.CourseEnd); err != nil {
		return in, services.Invalid("course_end", "must be a YYYY-MM-DD date")
	}
	return in, nil
}

// CreateCourse handles POST /api/v1/courses
func (h *CourseHandler) CreateCourse(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	var req CourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		for field, reason := range validation.FormatValidationErrors(err) {
			return response.UnprocessableEntity(c, field, reason)
		}
		return response.BadRequest(c, "Invalid request")
	}

	in, err := req.toInput()
	if err != nil {
		return response.FromServiceError(c, err)
	}

	created, err := h.courses.Create(c.Context(), user, in)
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Created(c, created)
}

// UpdateCourse handles PUT /api/v1/courses/:id
func (h *CourseHandler) UpdateCourse(c *fiber.Ctx) error {
	user := middleware.CurrentUser(c)
	if user == nil {
		return response.Unauthorized(c, "")
	}

	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	var req CourseRequest
	if err := c.BodyParser(&req); err != nil {
		return response.BadRequest(c, "Invalid request body")
	}
	if err := h.validator.ValidateStruct(req); err != nil {
		for field, reason := range validation.FormatValidationErrors(err) {
			return response.UnprocessableEntity(c, field, reason)
		}
		return response.BadRequest(c, "Invalid request")
	}

	in, err := req.toInput()
	if err != nil {
		return response.FromServiceError(c, err)
	}

	updated, err := h.courses.Update(c.Context(), user, courseID, in)
	if err != nil {
		return response.FromServiceError(c, err)
	}
	return response.Success(c, updated)
}

// CourseDetailResponse is the course page payload
type CourseDetailResponse struct {
	Course     *model.Course           `json:"course"`
	Enrollment *model.Enrollment       `json:"enrollment,omitempty"`
	Progress   int                     `json:"progress_percentage"`
	Rating     *services.RatingSummary `json:"rating"`
	CanManage  bool                    `json:"can_manage"`
}

// GetCourse handles GET /api/v1/courses/:id
func (h *CourseHandler) GetCourse(c *fiber.Ctx) error {
	courseID, err := parseUintParam(c, "id")
	if err != nil {
		return response.BadRequest(c, "Invalid course id")
	}

	viewerID := middleware.CurrentUserID(c)
	detail, err := h.courses.Detail(c.Context(), courseID, viewerID)
	if err != nil {
		return response.FromServiceError(c, err)
	}

	resp := CourseDetailResponse{Course: detail}

	if viewerID != 0 {
		resp.CanManage = services.CanManage(h.db.WithContext(c.Context()), detail, viewerID)
		if enrollment, err := h.enrollments.Find(c.Context(), viewerID, courseID); err == nil {
			resp.Enrollment = enrollment
		}
		if pct, err := h.progress.Percentage(c.Context(), courseID, viewerID); err == nil {
			resp.Progress = pct
		}
	}

	summary, err := h.ratings.Summary(c.Context(), courseID)
	if err != nil {
		return response.InternalServerError(c, "Failed to load ratings")
	}
	resp.Rating = summary

	return response.Success(c, resp)
}

// ListCourses handles GET /api/v1/courses
func (h *CourseHandler) ListCourses(c *fiber.Ctx) error {
	limit, _ := strconv.Atoi(c.Query("limit", "20"))
	offset, _ := strconv.Atoi(c.Query("offset", "0"))
	category := model.CourseCategory(c.Query("category"))

	summaries, err := h.explore.Explore(c.Context(), category, limit, offset)
	if err != nil {
		return response.InternalServerError(c, "Failed to list courses")
	}
	return response.Success(c, summaries)
}

// SearchCourses handles GET /api/v1/courses/search
func (h *CourseHandler) SearchCourses(c *fiber.Ctx) error {
	query := validation.SanitizeString(c.Query("q"))
	limit, _ := strconv.Atoi(c.Query("limit", "20"))

	summaries, err := h.explore.Search(c.Context(), query, limit)
	if err != nil {
		return response.InternalServerError(c, "Search failed")
	}
	return response.Success(c, summaries)
}

func parseUintParam(c *fiber.Ctx, name string) (uint, error) {
	parsed, err := strconv.ParseUint(c.Params(name), 10, 32)
	if err != nil {
		return 0, err
	}
	if parsed == 0 {
		return 0, strconv.ErrRange
	}
	return uint(parsed), nil
}
