package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/elearnhq/elearn-api/events"
	"github.com/elearnhq/elearn-api/model"
	"gorm.io/gorm"
)

// CourseInput carries the writable course fields. Dates are date-only
// values already parsed by the handler.
type CourseInput struct {
	Title             string
	Subtitle          string
	Category          model.CourseCategory
	Description       string
	CoverImgURL       string
	Status            model.CourseStatus
	RegistrationStart time.Time
	RegistrationEnd   time.Time
	CourseStart       time.Time
	CourseEnd         time.Time
}

// validateDates enforces the chain
// registration_start <= registration_end <= course_start <= course_end
func (in *CourseInput) validateDates() error {
	regStart, regEnd := DateOnly(in.RegistrationStart), DateOnly(in.RegistrationEnd)
	start, end := DateOnly(in.CourseStart), DateOnly(in.CourseEnd)
	if regEnd.Before(regStart) {
		return Invalid("registration_end", "must not be before registration_start")
	}
	if start.Before(regEnd) {
		return Invalid("course_start", "must not be before registration_end")
	}
	if end.Before(start) {
		return Invalid("course_end", "must not be before course_start")
	}
	return nil
}

// CourseService manages courses, their content tree and instructors
type CourseService struct {
	db  *gorm.DB
	bus *events.Bus
}

// NewCourseService creates a new course service
func NewCourseService(db *gorm.DB, bus *events.Bus) *CourseService {
	return &CourseService{db: db, bus: bus}
}

// Create creates a course owned by the user. Only teachers may create
// courses.
func (s *CourseService) Create(ctx context.Context, user *model.User, in CourseInput) (*model.Course, error) {
	if user.Role != model.RoleTeacher {
		return nil, Forbidden(ReasonRoleNotAllowed)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, Invalid("title", "must not be empty")
	}
	if err := in.validateDates(); err != nil {
		return nil, err
	}
	status := in.Status
	if status == "" {
		status = model.CourseStatusDraft
	}

	course := model.Course{
		UserID:            user.ID,
		Title:             strings.TrimSpace(in.Title),
		Subtitle:          in.Subtitle,
		Category:          in.Category,
		Description:       in.Description,
		CoverImgURL:       in.CoverImgURL,
		Status:            status,
		RegistrationStart: DateOnly(in.RegistrationStart),
		RegistrationEnd:   DateOnly(in.RegistrationEnd),
		CourseStart:       DateOnly(in.CourseStart),
		CourseEnd:         DateOnly(in.CourseEnd),
	}
	if err := s.db.WithContext(ctx).Create(&course).Error; err != nil {
		return nil, fmt.Errorf("creating course: %w", err)
	}
	return &course, nil
}

// Update rewrites the writable fields of a course the user manages
func (s *CourseService) Update(ctx context.Context, user *model.User, courseID uint, in CourseInput) (*model.Course, error) {
	course, err := s.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !CanManage(s.db.WithContext(ctx), course, user.ID) {
		return nil, Forbidden(ReasonNotOwner)
	}
	if strings.TrimSpace(in.Title) == "" {
		return nil, Invalid("title", "must not be empty")
	}
	if err := in.validateDates(); err != nil {
		return nil, err
	}

	course.Title = strings.TrimSpace(in.Title)
	course.Subtitle = in.Subtitle
	course.Category = in.Category
	course.Description = in.Description
	course.CoverImgURL = in.CoverImgURL
	if in.Status != "" {
		course.Status = in.Status
	}
	course.RegistrationStart = DateOnly(in.RegistrationStart)
	course.RegistrationEnd = DateOnly(in.RegistrationEnd)
	course.CourseStart = DateOnly(in.CourseStart)
	course.CourseEnd = DateOnly(in.CourseEnd)

	if err := s.db.WithContext(ctx).Save(course).Error; err != nil {
		return nil, fmt.Errorf("updating course: %w", err)
	}
	return course, nil
}

// Detail returns a course with its content tree. Drafts are visible
// only to the owner and instructors; everyone else gets not found.
func (s *CourseService) Detail(ctx context.Context, courseID uint, viewerID uint) (*model.Course, error) {
	var course model.Course
	err := s.db.WithContext(ctx).
		Preload("User").Preload("User.Profile").
		Preload("Instructors").Preload("Instructors.User").Preload("Instructors.User.Profile").
		Preload("Modules", func(db *gorm.DB) *gorm.DB { return db.Order("modules.created_at ASC") }).
		Preload("Modules.Materials", func(db *gorm.DB) *gorm.DB { return db.Order("materials.created_at ASC") }).
		First(&course, courseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("course %d: %w", courseID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading course: %w", err)
	}
	if course.Status == model.CourseStatusDraft && !CanManage(s.db.WithContext(ctx), &course, viewerID) {
		return nil, fmt.Errorf("course %d: %w", courseID, ErrNotFound)
	}
	return &course, nil
}

// ListPublished returns published courses, optionally filtered by
// category, newest first
func (s *CourseService) ListPublished(ctx context.Context, category model.CourseCategory, limit, offset int) ([]model.Course, error) {
	if limit <= 0 {
		limit = 20
	}
	query := s.db.WithContext(ctx).
		Where("status = ?", model.CourseStatusPublished).
		Preload("User").Preload("User.Profile")
	if category != "" {
		query = query.Where("category = ?", category)
	}
	var courses []model.Course
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&courses).Error
	if err != nil {
		return nil, fmt.Errorf("listing courses: %w", err)
	}
	return courses, nil
}

// ListOwned returns courses the user owns, drafts included
func (s *CourseService) ListOwned(ctx context.Context, userID uint) ([]model.Course, error) {
	var courses []model.Course
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Find(&courses).Error
	if err != nil {
		return nil, fmt.Errorf("listing owned courses: %w", err)
	}
	return courses, nil
}

// ListEnrolled returns published courses the user holds a non-blocked
// enrollment in
func (s *CourseService) ListEnrolled(ctx context.Context, userID uint) ([]model.Course, error) {
	var courses []model.Course
	err := s.db.WithContext(ctx).
		Joins("JOIN enrollments ON enrollments.course_id = courses.id").
		Where("enrollments.user_id = ?", userID).
		Where("enrollments.status <> ?", model.EnrollmentStatusBlocked).
		Where("courses.status = ?", model.CourseStatusPublished).
		Order("courses.created_at DESC").
		Find(&courses).Error
	if err != nil {
		return nil, fmt.Errorf("listing enrolled courses: %w", err)
	}
	return courses, nil
}

// ListInstructing returns courses the user instructs but does not own
func (s *CourseService) ListInstructing(ctx context.Context, userID uint) ([]model.Course, error) {
	var courses []model.Course
	err := s.db.WithContext(ctx).
		Joins("JOIN instructors ON instructors.course_id = courses.id").
		Where("instructors.user_id = ?", userID).
		Order("courses.created_at DESC").
		Find(&courses).Error
	if err != nil {
		return nil, fmt.Errorf("listing instructed courses: %w", err)
	}
	return courses, nil
}

// AddModule appends a module to a course the user manages
func (s *CourseService) AddModule(ctx context.Context, user *model.User, courseID uint, name string) (*model.Module, error) {
	course, err := s.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !CanManage(s.db.WithContext(ctx), course, user.ID) {
		return nil, Forbidden(ReasonNotOwner)
	}
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, Invalid("name", "must not be empty")
	}

	module := model.Module{CourseID: course.ID, Name: name}
	if err := s.db.WithContext(ctx).Create(&module).Error; err != nil {
		return nil, fmt.Errorf("creating module: %w", err)
	}
	return &module, nil
}

// DeleteModule removes a module. Materials and progress rows cascade
// away with it.
func (s *CourseService) DeleteModule(ctx context.Context, user *model.User, courseID, moduleID uint) error {
	course, err := s.load(ctx, courseID)
	if err != nil {
		return err
	}
	if !CanManage(s.db.WithContext(ctx), course, user.ID) {
		return Forbidden(ReasonNotOwner)
	}

	res := s.db.WithContext(ctx).
		Where("id = ? AND course_id = ?", moduleID, courseID).
		Delete(&model.Module{})
	if res.Error != nil {
		return fmt.Errorf("deleting module: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("module %d: %w", moduleID, ErrNotFound)
	}
	return nil
}

// MaterialInput carries the writable material fields
type MaterialInput struct {
	Name    string
	Type    model.MaterialType
	Content string
	DueDate *time.Time
}

// AddMaterial appends a material to a module and announces it once the
// row is durable
func (s *CourseService) AddMaterial(ctx context.Context, user *model.User, courseID, moduleID uint, in MaterialInput) (*model.Material, error) {
	course, err := s.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !CanManage(s.db.WithContext(ctx), course, user.ID) {
		return nil, Forbidden(ReasonNotOwner)
	}

	var module model.Module
	err = s.db.WithContext(ctx).
		Where("id = ? AND course_id = ?", moduleID, courseID).
		First(&module).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("module %d: %w", moduleID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading module: %w", err)
	}

	in.Name = strings.TrimSpace(in.Name)
	if in.Name == "" {
		return nil, Invalid("name", "must not be empty")
	}
	switch in.Type {
	case model.MaterialTypeQuiz, model.MaterialTypeVideo, model.MaterialTypeReading:
	default:
		return nil, Invalid("type", "must be one of quiz, video, reading")
	}

	material := model.Material{
		ModuleID: module.ID,
		Name:     in.Name,
		Type:     in.Type,
		Content:  in.Content,
		DueDate:  in.DueDate,
	}
	if err := s.db.WithContext(ctx).Create(&material).Error; err != nil {
		return nil, fmt.Errorf("creating material: %w", err)
	}

	s.bus.Publish(ctx, events.MaterialCreated{MaterialID: material.ID})
	return &material, nil
}

// MaterialDetail returns one material for a viewer who can either
// manage the course or holds an active enrollment in it
func (s *CourseService) MaterialDetail(ctx context.Context, viewer *model.User, courseID, materialID uint, today time.Time) (*model.Material, error) {
	var material model.Material
	err := s.db.WithContext(ctx).
		Joins("JOIN modules ON modules.id = materials.module_id").
		Where("materials.id = ? AND modules.course_id = ?", materialID, courseID).
		First(&material).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("material %d: %w", materialID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading material: %w", err)
	}

	course, err := s.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if CanManage(s.db.WithContext(ctx), course, viewer.ID) {
		return &material, nil
	}

	var enrollment model.Enrollment
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", viewer.ID, courseID).
		First(&enrollment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, Forbidden(ReasonNotEnrolled)
	}
	if err != nil {
		return nil, fmt.Errorf("loading enrollment: %w", err)
	}
	if !IsActiveEnrollment(&enrollment, today) {
		if enrollment.Status == model.EnrollmentStatusBlocked {
			return nil, Forbidden(ReasonBlocked)
		}
		return nil, Forbidden(ReasonNotEnrolled)
	}
	return &material, nil
}

// AddInstructor grants a teacher instructor rights on the course.
// Owner-only; adding an existing instructor is a no-op.
func (s *CourseService) AddInstructor(ctx context.Context, actor *model.User, courseID, teacherID uint) (*model.Instructor, error) {
	course, err := s.load(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !IsOwner(course, actor.ID) {
		return nil, Forbidden(ReasonNotOwner)
	}

	var teacher model.User
	err = s.db.WithContext(ctx).First(&teacher, teacherID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("user %d: %w", teacherID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading user: %w", err)
	}
	if teacher.Role != model.RoleTeacher {
		return nil, Forbidden(ReasonRoleNotAllowed)
	}

	instructor := model.Instructor{CourseID: courseID, UserID: teacherID}
	err = s.db.WithContext(ctx).
		Where("course_id = ? AND user_id = ?", courseID, teacherID).
		FirstOrCreate(&instructor).Error
	if err != nil {
		return nil, fmt.Errorf("adding instructor: %w", err)
	}
	return &instructor, nil
}

// RemoveInstructor revokes instructor rights. Owner-only.
func (s *CourseService) RemoveInstructor(ctx context.Context, actor *model.User, courseID, teacherID uint) error {
	course, err := s.load(ctx, courseID)
	if err != nil {
		return err
	}
	if !IsOwner(course, actor.ID) {
		return Forbidden(ReasonNotOwner)
	}

	res := s.db.WithContext(ctx).
		Where("course_id = ? AND user_id = ?", courseID, teacherID).
		Delete(&model.Instructor{})
	if res.Error != nil {
		return fmt.Errorf("removing instructor: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("instructor %d: %w", teacherID, ErrNotFound)
	}
	return nil
}

func (s *CourseService) load(ctx context.Context, courseID uint) (*model.Course, error) {
	var course model.Course
	err := s.db.WithContext(ctx).First(&course, courseID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("course %d: %w", courseID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading course: %w", err)
	}
	return &course, nil
}
