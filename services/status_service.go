package services

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/elearnhq/elearn-api/events"
	"github.com/elearnhq/elearn-api/model"
	"gorm.io/gorm"
)

// StatusService manages the short status posts on user profiles
type StatusService struct {
	db  *gorm.DB
	bus *events.Bus
}

// NewStatusService creates a new status service
func NewStatusService(db *gorm.DB, bus *events.Bus) *StatusService {
	return &StatusService{db: db, bus: bus}
}

// Post creates a status for the user and announces it on the bus once
// the row is durable
func (s *StatusService) Post(ctx context.Context, userID uint, text, imageURL string) (*model.Status, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return nil, Invalid("text", "must not be empty")
	}
	if len(text) > 512 {
		return nil, Invalid("text", "must be at most 512 characters")
	}

	status := model.Status{
		UserID:   userID,
		Text:     text,
		ImageURL: imageURL,
	}
	if err := s.db.WithContext(ctx).Create(&status).Error; err != nil {
		return nil, fmt.Errorf("creating status: %w", err)
	}

	s.bus.Publish(ctx, events.StatusCreated{StatusID: status.ID})
	return &status, nil
}

// ListByUser returns a user's statuses, newest first
func (s *StatusService) ListByUser(ctx context.Context, userID uint, limit, offset int) ([]model.Status, error) {
	if limit <= 0 {
		limit = 20
	}
	var statuses []model.Status
	err := s.db.WithContext(ctx).
		Where("user_id = ?", userID).
		Order("created_at DESC").
		Limit(limit).Offset(offset).
		Find(&statuses).Error
	if err != nil {
		return nil, fmt.Errorf("listing statuses: %w", err)
	}
	return statuses, nil
}

// Delete removes the user's own status
func (s *StatusService) Delete(ctx context.Context, statusID, userID uint) error {
	var status model.Status
	err := s.db.WithContext(ctx).First(&status, statusID).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return fmt.Errorf("status %d: %w", statusID, ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("loading status: %w", err)
	}
	if status.UserID != userID {
		return Forbidden(ReasonNotOwner)
	}
	if err := s.db.WithContext(ctx).Delete(&status).Error; err != nil {
		return fmt.Errorf("deleting status: %w", err)
	}
	return nil
}
