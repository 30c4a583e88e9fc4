package services

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/elearnhq/elearn-api/model"
	"gorm.io/gorm"
)

// ProgressService tracks per-user per-material completion
type ProgressService struct {
	db *gorm.DB
}

// NewProgressService creates a new progress service
func NewProgressService(db *gorm.DB) *ProgressService {
	return &ProgressService{db: db}
}

// MarkComplete records that the user finished the material. Idempotent:
// repeated calls never create a second row or change the first.
//
// The material must belong to the given course, and the user must hold
// an active enrollment there; blocked or expired students are rejected
// with the same predicate the rest of the system uses.
func (s *ProgressService) MarkComplete(ctx context.Context, user *model.User, courseID, materialID uint, today time.Time) error {
	var material model.Material
	err := s.db.WithContext(ctx).
		Joins("JOIN modules ON modules.id = materials.module_id").
		Where("materials.id = ? AND modules.course_id = ?", materialID, courseID).
		First(&material).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return fmt.Errorf("material %d in course %d: %w", materialID, courseID, ErrNotFound)
		}
		return fmt.Errorf("loading material: %w", err)
	}

	var enrollment model.Enrollment
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", user.ID, courseID).
		First(&enrollment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return Forbidden(ReasonNotEnrolled)
	}
	if err != nil {
		return fmt.Errorf("loading enrollment: %w", err)
	}
	if !IsActiveEnrollment(&enrollment, today) {
		if enrollment.Status == model.EnrollmentStatusBlocked {
			return Forbidden(ReasonBlocked)
		}
		return Forbidden(ReasonNotEnrolled)
	}

	progress := model.Progress{UserID: user.ID, MaterialID: materialID}
	err = s.db.WithContext(ctx).
		Where("user_id = ? AND material_id = ?", user.ID, materialID).
		FirstOrCreate(&progress).Error
	if err != nil && !isUniqueViolation(err) {
		return fmt.Errorf("recording progress: %w", err)
	}
	return nil
}

// HasProgress reports whether the user completed the material
func (s *ProgressService) HasProgress(ctx context.Context, userID, materialID uint) (bool, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Progress{}).
		Where("user_id = ? AND material_id = ?", userID, materialID).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("checking progress: %w", err)
	}
	return count > 0, nil
}

// Percentage returns the user's completion of the course as a rounded
// whole percentage. A course with no materials, or a zero user ID
// (unauthenticated), yields 0.
func (s *ProgressService) Percentage(ctx context.Context, courseID, userID uint) (int, error) {
	if userID == 0 {
		return 0, nil
	}

	var total int64
	err := s.db.WithContext(ctx).Model(&model.Material{}).
		Joins("JOIN modules ON modules.id = materials.module_id").
		Where("modules.course_id = ?", courseID).
		Count(&total).Error
	if err != nil {
		return 0, fmt.Errorf("counting materials: %w", err)
	}
	if total == 0 {
		return 0, nil
	}

	var completed int64
	err = s.db.WithContext(ctx).Model(&model.Progress{}).
		Joins("JOIN materials ON materials.id = progresses.material_id").
		Joins("JOIN modules ON modules.id = materials.module_id").
		Where("modules.course_id = ? AND progresses.user_id = ?", courseID, userID).
		Distinct("progresses.material_id").
		Count(&completed).Error
	if err != nil {
		return 0, fmt.Errorf("counting completed materials: %w", err)
	}

	return int(math.Round(float64(completed) / float64(total) * 100)), nil
}
