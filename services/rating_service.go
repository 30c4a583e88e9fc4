package services

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/elearnhq/elearn-api/model"
	"gorm.io/gorm"
)

// RatingService upserts course reviews, one row per (user, course)
type RatingService struct {
	db *gorm.DB
}

// NewRatingService creates a new rating service
func NewRatingService(db *gorm.DB) *RatingService {
	return &RatingService{db: db}
}

// RatingSummary aggregates the reviews of a course
type RatingSummary struct {
	Average float64 `json:"avg_rating"`
	Count   int64   `json:"rating_count"`
}

// Submit records the user's rating of a course, overwriting any earlier
// submission in place so the row count per (user, course) stays at 1.
// Requires an active enrollment; no mutation happens on rejection.
func (s *RatingService) Submit(ctx context.Context, user *model.User, courseID uint, rating int, text string, today time.Time) (*model.Rating, error) {
	text = strings.TrimSpace(text)
	if rating < 1 || rating > 5 {
		return nil, Invalid("rating", "must be between 1 and 5")
	}
	if utf8.RuneCountInString(text) < 10 {
		return nil, Invalid("text", "must be at least 10 characters")
	}

	var enrollment model.Enrollment
	err := s.db.WithContext(ctx).
		Where("user_id = ? AND course_id = ?", user.ID, courseID).
		First(&enrollment).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, Forbidden(ReasonNotEnrolled)
	}
	if err != nil {
		return nil, fmt.Errorf("loading enrollment: %w", err)
	}
	if !IsActiveEnrollment(&enrollment, today) {
		return nil, Forbidden(ReasonNotEnrolled)
	}

	var row model.Rating
	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		err := tx.Where("user_id = ? AND course_id = ?", user.ID, courseID).First(&row).Error
		switch {
		case err == nil:
			row.Rating = rating
			row.Text = text
			return tx.Save(&row).Error
		case errors.Is(err, gorm.ErrRecordNotFound):
			row = model.Rating{UserID: user.ID, CourseID: courseID, Rating: rating, Text: text}
			if err := tx.Create(&row).Error; err != nil {
				if isUniqueViolation(err) {
					// concurrent first submission; update the winner's row
					if err := tx.Where("user_id = ? AND course_id = ?", user.ID, courseID).First(&row).Error; err != nil {
						return err
					}
					row.Rating = rating
					row.Text = text
					return tx.Save(&row).Error
				}
				return err
			}
			return nil
		default:
			return err
		}
	})
	if err != nil {
		return nil, fmt.Errorf("saving rating: %w", err)
	}
	return &row, nil
}

// List returns all ratings of a course, newest first
func (s *RatingService) List(ctx context.Context, courseID uint) ([]model.Rating, error) {
	var ratings []model.Rating
	err := s.db.WithContext(ctx).
		Where("course_id = ?", courseID).
		Preload("User").Preload("User.Profile").
		Order("created_at DESC").
		Find(&ratings).Error
	if err != nil {
		return nil, fmt.Errorf("listing ratings: %w", err)
	}
	return ratings, nil
}

// Summary returns the average rating and the review count
func (s *RatingService) Summary(ctx context.Context, courseID uint) (*RatingSummary, error) {
	var summary RatingSummary
	err := s.db.WithContext(ctx).Model(&model.Rating{}).
		Where("course_id = ?", courseID).
		Select("COALESCE(AVG(rating), 0) AS average, COUNT(*) AS count").
		Scan(&summary).Error
	if err != nil {
		return nil, fmt.Errorf("aggregating ratings: %w", err)
	}
	return &summary, nil
}
