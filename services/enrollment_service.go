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

// EnrollmentService owns the enrollment state machine: enroll/renew,
// and the owner-side block/unblock/remove management operations
type EnrollmentService struct {
	db  *gorm.DB
	bus *events.Bus
}

// NewEnrollmentService creates a new enrollment service
func NewEnrollmentService(db *gorm.DB, bus *events.Bus) *EnrollmentService {
	return &EnrollmentService{db: db, bus: bus}
}

// EnrollResult reports what a successful enroll call did
type EnrollResult struct {
	Enrollment *model.Enrollment
	Created    bool // false means an expired row was renewed
}

// Enroll creates or renews the user's enrollment in a published course.
//
// The eligibility check runs fully before any mutation. On success the
// row's expiry is set to the course end date and exactly one
// EnrollmentCreated event is published, after the row is durably saved.
// A concurrent double-submit degrades to "second call renews the first
// row"; the uniqueness conflict is absorbed, never surfaced.
func (s *EnrollmentService) Enroll(ctx context.Context, user *model.User, courseID uint, today time.Time) (*EnrollResult, error) {
	var course model.Course
	err := s.db.WithContext(ctx).
		Where("id = ? AND status = ?", courseID, model.CourseStatusPublished).
		First(&course).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("course %d: %w", courseID, ErrNotFound)
		}
		return nil, fmt.Errorf("loading course: %w", err)
	}

	existing, err := s.find(ctx, user.ID, courseID)
	if err != nil {
		return nil, err
	}

	if !IsEligibleToEnroll(user, &course, existing, today) {
		return nil, Forbidden(ineligibilityReason(user, &course, existing, today))
	}

	result := &EnrollResult{}
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if existing != nil {
			existing.ExpiredAt = DateOnly(course.CourseEnd)
			existing.Status = model.EnrollmentStatusEnrolled
			if err := tx.Save(existing).Error; err != nil {
				return fmt.Errorf("renewing enrollment: %w", err)
			}
			result.Enrollment = existing
			return nil
		}

		enrollment := &model.Enrollment{
			UserID:    user.ID,
			CourseID:  courseID,
			Status:    model.EnrollmentStatusEnrolled,
			ExpiredAt: DateOnly(course.CourseEnd),
		}
		if err := tx.Create(enrollment).Error; err != nil {
			if errors.Is(err, gorm.ErrDuplicatedKey) || isUniqueViolation(err) {
				// lost the race against a concurrent enroll; fall back
				// to renewing the row the winner created
				var row model.Enrollment
				if err := tx.Where("user_id = ? AND course_id = ?", user.ID, courseID).First(&row).Error; err != nil {
					return fmt.Errorf("resolving enrollment conflict: %w", err)
				}
				row.ExpiredAt = DateOnly(course.CourseEnd)
				row.Status = model.EnrollmentStatusEnrolled
				if err := tx.Save(&row).Error; err != nil {
					return fmt.Errorf("renewing enrollment after conflict: %w", err)
				}
				result.Enrollment = &row
				return nil
			}
			return fmt.Errorf("creating enrollment: %w", err)
		}
		result.Enrollment = enrollment
		result.Created = true
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.bus.Publish(ctx, events.EnrollmentCreated{EnrollmentID: result.Enrollment.ID})
	return result, nil
}

// Find returns the user's enrollment row for the course, nil when none
// exists
func (s *EnrollmentService) Find(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	return s.find(ctx, userID, courseID)
}

func (s *EnrollmentService) find(ctx context.Context, userID, courseID uint) (*model.Enrollment, error) {
	var e model.Enrollment
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", userID, courseID).
		First(&e).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("loading enrollment: %w", err)
	}
	return &e, nil
}

// ListStudents returns all enrollment rows for a course with the
// student loaded, for the owner's student overview. Only the owner and
// instructors may call it.
func (s *EnrollmentService) ListStudents(ctx context.Context, actor *model.User, courseID uint) ([]model.Enrollment, error) {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return nil, err
	}
	if !CanManage(s.db, course, actor.ID) {
		return nil, Forbidden(ReasonNotOwner)
	}

	var rows []model.Enrollment
	err = s.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Preload("User").Preload("User.Profile").
		Order("created_at ASC").
		Find(&rows).Error
	if err != nil {
		return nil, fmt.Errorf("listing students: %w", err)
	}
	return rows, nil
}

// SetBlocked blocks or unblocks a student on a course. Blocking leaves
// the row in place so the student stays permanently ineligible.
func (s *EnrollmentService) SetBlocked(ctx context.Context, actor *model.User, courseID, studentID uint, blocked bool) error {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if !CanManage(s.db, course, actor.ID) {
		return Forbidden(ReasonNotOwner)
	}

	status := model.EnrollmentStatusEnrolled
	if blocked {
		status = model.EnrollmentStatusBlocked
	}
	res := s.db.WithContext(ctx).Model(&model.Enrollment{}).
		Where("course_id = ? AND user_id = ?", courseID, studentID).
		Update("status", status)
	if res.Error != nil {
		return fmt.Errorf("updating enrollment status: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("enrollment for user %d: %w", studentID, ErrNotFound)
	}
	return nil
}

// Remove hard-deletes a student's enrollment. This is the only path
// that deletes an enrollment row short of deleting the user or course.
func (s *EnrollmentService) Remove(ctx context.Context, actor *model.User, courseID, studentID uint) error {
	course, err := s.loadCourse(ctx, courseID)
	if err != nil {
		return err
	}
	if !CanManage(s.db, course, actor.ID) {
		return Forbidden(ReasonNotOwner)
	}

	res := s.db.WithContext(ctx).
		Where("course_id = ? AND user_id = ?", courseID, studentID).
		Delete(&model.Enrollment{})
	if res.Error != nil {
		return fmt.Errorf("removing enrollment: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("enrollment for user %d: %w", studentID, ErrNotFound)
	}
	return nil
}

func (s *EnrollmentService) loadCourse(ctx context.Context, courseID uint) (*model.Course, error) {
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

// isUniqueViolation matches driver-specific duplicate-key errors that
// gorm does not translate (postgres 23505, sqlite UNIQUE)
func isUniqueViolation(err error) bool {
	if err == nil {
		return false
	}
	msg := err.Error()
	return strings.Contains(msg, "duplicate key value") ||
		strings.Contains(msg, "UNIQUE constraint failed") ||
		strings.Contains(msg, "23505")
}
