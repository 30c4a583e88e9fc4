package cron

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/elearnhq/elearn-api/model"
	"github.com/elearnhq/elearn-api/services"
	"gorm.io/datatypes"
)

const notificationRetention = 30 * 24 * time.Hour

// CleanupReadNotifications drops read notifications past the retention
// window. Unread rows are kept indefinitely.
func (m *CronManager) CleanupReadNotifications() {
	jobName := "cleanup_read_notifications"

	cutoff := time.Now().Add(-notificationRetention)
	res := m.db.
		Where("created_at < ? AND is_read = ?", cutoff, true).
		Delete(&model.Notification{})
	if res.Error != nil {
		m.logJobError(jobName, fmt.Errorf("deleting notifications: %w", res.Error))
		return
	}

	m.logJobComplete(jobName, fmt.Sprintf("Removed %d read notifications", res.RowsAffected))
}

// reminderMeta marks a notification row as a deadline reminder for one
// material, so the hourly scan can skip recipients already reminded
type reminderMeta struct {
	Kind       string `json:"kind"`
	MaterialID uint   `json:"material_id"`
}

// SendDeadlineReminders notifies active students of materials due
// within the next 24 hours that they have not completed yet. Each
// (user, material) pair is reminded at most once.
func (m *CronManager) SendDeadlineReminders() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
	defer cancel()

	jobName := "deadline_reminders"
	now := time.Now()

	var materials []model.Material
	err := m.db.WithContext(ctx).
		Preload("Module").Preload("Module.Course").
		Where("due_date IS NOT NULL AND due_date >= ? AND due_date <= ?", now, now.Add(24*time.Hour)).
		Find(&materials).Error
	if err != nil {
		m.logJobError(jobName, fmt.Errorf("querying due materials: %w", err))
		return
	}

	if len(materials) == 0 {
		m.logJobComplete(jobName, "No materials due within 24 hours")
		return
	}

	sent := 0
	for _, material := range materials {
		course := material.Module.Course

		var students []model.User
		err := m.db.WithContext(ctx).Model(&model.User{}).
			Distinct("users.*").
			Joins("JOIN enrollments ON enrollments.user_id = users.id").
			Where("enrollments.course_id = ?", course.ID).
			Scopes(services.ActiveEnrollmentScope(now)).
			Where("NOT EXISTS (SELECT 1 FROM progresses WHERE progresses.user_id = users.id AND progresses.material_id = ?)", material.ID).
			Find(&students).Error
		if err != nil {
			log.Printf("[CRON] Resolving audience for material %d: %v", material.ID, err)
			continue
		}

		for _, student := range students {
			if m.alreadyReminded(ctx, student.ID, material.ID) {
				continue
			}
			if m.remind(ctx, student.ID, course.ID, material) {
				sent++
			}
		}
	}

	m.logJobComplete(jobName, fmt.Sprintf("Sent %d deadline reminders", sent))
}

func (m *CronManager) alreadyReminded(ctx context.Context, userID, materialID uint) bool {
	var count int64
	err := m.db.WithContext(ctx).Model(&model.Notification{}).
		Where("user_id = ?", userID).
		Where(datatypes.JSONQuery("metadata").Equals("deadline_reminder", "kind")).
		Where(datatypes.JSONQuery("metadata").Equals(materialID, "material_id")).
		Count(&count).Error
	if err != nil {
		log.Printf("[CRON] Checking reminder dedup for user %d: %v", userID, err)
		return true
	}
	return count > 0
}

func (m *CronManager) remind(ctx context.Context, userID, courseID uint, material model.Material) bool {
	meta, err := json.Marshal(reminderMeta{Kind: "deadline_reminder", MaterialID: material.ID})
	if err != nil {
		return false
	}

	content := fmt.Sprintf("'%s' is due within 24 hours.", material.Name)
	redirect := fmt.Sprintf("/courses/%d/materials/%d", courseID, material.ID)

	row := model.Notification{
		UserID:      userID,
		Content:     content,
		RedirectURL: redirect,
		Type:        model.NotificationTypeMaterial,
		Metadata:    datatypes.JSON(meta),
	}
	if err := m.db.WithContext(ctx).Create(&row).Error; err != nil {
		log.Printf("[CRON] Reminder for user %d not persisted: %v", userID, err)
		return false
	}

	payload := model.NotificationPayload{
		Type:        string(model.NotificationTypeMaterial),
		Content:     content,
		RedirectURL: redirect,
	}
	if err := m.broker.Send(ctx, services.NotificationGroup(userID), payload); err != nil {
		log.Printf("[CRON] Reminder push to user %d failed: %v", userID, err)
	}
	return true
}
