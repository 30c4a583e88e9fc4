package services

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/elearnhq/elearn-api/events"
	"github.com/elearnhq/elearn-api/model"
	"github.com/elearnhq/elearn-api/realtime"
	"gorm.io/gorm"
)

// NotificationGroup names the private realtime group of one user
func NotificationGroup(userID uint) string {
	return fmt.Sprintf("notifications_%d", userID)
}

// redirect targets baked into notification rows
func materialURL(courseID, materialID uint) string {
	return fmt.Sprintf("/courses/%d/materials/%d", courseID, materialID)
}

func profileURL(userID uint) string {
	return fmt.Sprintf("/users/%d", userID)
}

// NotificationService resolves the audience of each domain event,
// persists one Notification row per recipient and pushes the same
// payload to the recipient's private group.
//
// Persistence always wins over push: a dead transport never rolls back
// rows, and one failing recipient never aborts the rest.
type NotificationService struct {
	db     *gorm.DB
	broker realtime.Broker
	now    func() time.Time
}

// NewNotificationService creates a new notification service
func NewNotificationService(db *gorm.DB, broker realtime.Broker) *NotificationService {
	return &NotificationService{db: db, broker: broker, now: time.Now}
}

// Register subscribes the fan-out handlers to the event bus
func (s *NotificationService) Register(bus *events.Bus) {
	bus.Subscribe(events.MaterialCreated{}.Name(), func(ctx context.Context, ev events.Event) {
		if e, ok := ev.(events.MaterialCreated); ok {
			s.HandleMaterialCreated(ctx, e.MaterialID)
		}
	})
	bus.Subscribe(events.EnrollmentCreated{}.Name(), func(ctx context.Context, ev events.Event) {
		if e, ok := ev.(events.EnrollmentCreated); ok {
			s.HandleEnrollmentCreated(ctx, e.EnrollmentID)
		}
	})
	bus.Subscribe(events.StatusCreated{}.Name(), func(ctx context.Context, ev events.Event) {
		if e, ok := ev.(events.StatusCreated); ok {
			s.HandleStatusCreated(ctx, e.StatusID)
		}
	})
}

// HandleMaterialCreated notifies every student holding an active,
// non-blocked enrollment in the course that owns the new material
func (s *NotificationService) HandleMaterialCreated(ctx context.Context, materialID uint) {
	var material model.Material
	err := s.db.WithContext(ctx).
		Preload("Module").Preload("Module.Course").
		First(&material, materialID).Error
	if err != nil {
		log.Printf("material fan-out: loading material %d: %v", materialID, err)
		return
	}
	course := material.Module.Course

	var students []model.User
	err = s.db.WithContext(ctx).Model(&model.User{}).
		Distinct("users.*").
		Joins("JOIN enrollments ON enrollments.user_id = users.id").
		Where("enrollments.course_id = ?", course.ID).
		Scopes(ActiveEnrollmentScope(s.now())).
		Find(&students).Error
	if err != nil {
		log.Printf("material fan-out: resolving audience for course %d: %v", course.ID, err)
		return
	}

	content := fmt.Sprintf("You have updated content in '%s'.", course.Title)
	for _, student := range students {
		s.notify(ctx, student.ID, model.NotificationTypeMaterial, content, materialURL(course.ID, material.ID))
	}
}

// HandleEnrollmentCreated notifies the course owner and every
// instructor, each with their own row
func (s *NotificationService) HandleEnrollmentCreated(ctx context.Context, enrollmentID uint) {
	var enrollment model.Enrollment
	err := s.db.WithContext(ctx).
		Preload("User").Preload("User.Profile").
		Preload("Course").
		First(&enrollment, enrollmentID).Error
	if err != nil {
		log.Printf("enrollment fan-out: loading enrollment %d: %v", enrollmentID, err)
		return
	}

	student := enrollment.User
	course := enrollment.Course
	redirect := profileURL(student.ID)

	ownerContent := fmt.Sprintf("%s enrolled in your course '%s'.", student.DisplayName(), course.Title)
	s.notify(ctx, course.UserID, model.NotificationTypeEnrollment, ownerContent, redirect)

	var instructors []model.Instructor
	if err := s.db.WithContext(ctx).Where("course_id = ?", course.ID).Find(&instructors).Error; err != nil {
		log.Printf("enrollment fan-out: loading instructors for course %d: %v", course.ID, err)
		return
	}
	instructorContent := fmt.Sprintf("%s enrolled in '%s'.", student.DisplayName(), course.Title)
	for _, instructor := range instructors {
		s.notify(ctx, instructor.UserID, model.NotificationTypeEnrollment, instructorContent, redirect)
	}
}

// HandleStatusCreated fans a status post out to the poster's audience.
// A teacher reaches every active student across their owned courses; a
// student reaches active classmates across shared courses, never
// themselves.
func (s *NotificationService) HandleStatusCreated(ctx context.Context, statusID uint) {
	var status model.Status
	err := s.db.WithContext(ctx).
		Preload("User").Preload("User.Profile").
		First(&status, statusID).Error
	if err != nil {
		log.Printf("status fan-out: loading status %d: %v", statusID, err)
		return
	}
	poster := status.User

	var recipients []model.User
	notiType := model.NotificationTypeStatus

	if poster.Role == model.RoleTeacher {
		err = s.db.WithContext(ctx).Model(&model.User{}).
			Distinct("users.*").
			Joins("JOIN enrollments ON enrollments.user_id = users.id").
			Joins("JOIN courses ON courses.id = enrollments.course_id").
			Where("courses.user_id = ?", poster.ID).
			Scopes(ActiveEnrollmentScope(s.now())).
			Find(&recipients).Error
	} else {
		notiType = model.NotificationTypeStatusUpdate
		err = s.db.WithContext(ctx).Model(&model.User{}).
			Distinct("users.*").
			Joins("JOIN enrollments ON enrollments.user_id = users.id").
			Joins("JOIN enrollments poster_rows ON poster_rows.course_id = enrollments.course_id").
			Where("poster_rows.user_id = ?", poster.ID).
			Where("users.id <> ?", poster.ID).
			Scopes(ActiveEnrollmentScope(s.now())).
			Find(&recipients).Error
	}
	if err != nil {
		log.Printf("status fan-out: resolving audience for status %d: %v", statusID, err)
		return
	}

	content := fmt.Sprintf("%s posted a new status.", poster.DisplayName())
	redirect := profileURL(poster.ID)
	for _, recipient := range recipients {
		s.notify(ctx, recipient.ID, notiType, content, redirect)
	}
}

// notify persists one row and pushes the matching realtime payload.
// Both failures are isolated to this recipient.
func (s *NotificationService) notify(ctx context.Context, userID uint, notiType model.NotificationType, content, redirectURL string) {
	row := model.Notification{
		UserID:      userID,
		Content:     content,
		RedirectURL: redirectURL,
		Type:        notiType,
	}
	if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
		log.Printf("notification for user %d not persisted: %v", userID, err)
		return
	}

	// the wire frame flattens status_update back to status; only the
	// stored row keeps the distinction
	pushType := notiType
	if pushType == model.NotificationTypeStatusUpdate {
		pushType = model.NotificationTypeStatus
	}
	payload := model.NotificationPayload{
		Type:        string(pushType),
		Content:     content,
		RedirectURL: redirectURL,
	}
	// best-effort push; the row above stays regardless
	if err := s.broker.Send(ctx, NotificationGroup(userID), payload); err != nil {
		log.Printf("notification push to user %d failed: %v", userID, err)
	}
}

// ListByUser returns the user's notifications, newest first
func (s *NotificationService) ListByUser(ctx context.Context, userID uint, unreadOnly bool, limit, offset int) ([]model.Notification, int64, error) {
	query := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ?", userID)
	if unreadOnly {
		query = query.Where("is_read = ?", false)
	}

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, fmt.Errorf("counting notifications: %w", err)
	}

	if limit <= 0 {
		limit = 50
	}
	var rows []model.Notification
	err := query.Order("created_at DESC").Limit(limit).Offset(offset).Find(&rows).Error
	if err != nil {
		return nil, 0, fmt.Errorf("listing notifications: %w", err)
	}
	return rows, total, nil
}

// UnreadCount returns the number of unread notifications
func (s *NotificationService) UnreadCount(ctx context.Context, userID uint) (int64, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Count(&count).Error
	if err != nil {
		return 0, fmt.Errorf("counting unread notifications: %w", err)
	}
	return count, nil
}

// MarkAsRead flips the read flag on one of the user's notifications
func (s *NotificationService) MarkAsRead(ctx context.Context, notificationID, userID uint) error {
	res := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("id = ? AND user_id = ?", notificationID, userID).
		Update("is_read", true)
	if res.Error != nil {
		return fmt.Errorf("marking notification read: %w", res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("notification %d: %w", notificationID, ErrNotFound)
	}
	return nil
}

// MarkAllAsRead flips the read flag on every unread notification
func (s *NotificationService) MarkAllAsRead(ctx context.Context, userID uint) (int64, error) {
	res := s.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ? AND is_read = ?", userID, false).
		Update("is_read", true)
	if res.Error != nil {
		return 0, fmt.Errorf("marking notifications read: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// CleanupOld removes read notifications older than the cutoff
func (s *NotificationService) CleanupOld(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := s.now().Add(-olderThan)
	res := s.db.WithContext(ctx).
		Where("created_at < ? AND is_read = ?", cutoff, true).
		Delete(&model.Notification{})
	if res.Error != nil {
		return 0, fmt.Errorf("cleaning up notifications: %w", res.Error)
	}
	return res.RowsAffected, nil
}

// WithClock overrides the service clock, for tests
func (s *NotificationService) WithClock(now func() time.Time) *NotificationService {
	s.now = now
	return s
}
