package model

import (
	"time"

	"gorm.io/datatypes"
)

// NotificationType identifies which domain event produced a notification
type NotificationType string

const (
	NotificationTypeMaterial     NotificationType = "material"
	NotificationTypeEnrollment   NotificationType = "enrollment"
	NotificationTypeStatus       NotificationType = "status"
	NotificationTypeStatusUpdate NotificationType = "status_update"
)

// Notification is an immutable log entry delivered to one recipient.
// Only IsRead ever changes after creation.
type Notification struct {
	ID          uint             `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time        `gorm:"index" json:"created_at"`
	UpdatedAt   time.Time        `json:"updated_at"`
	UserID      uint             `gorm:"index;not null" json:"user_id"`
	Content     string           `gorm:"type:text;not null" json:"content"`
	RedirectURL string           `gorm:"type:varchar(255)" json:"redirect_url"`
	Type        NotificationType `gorm:"type:varchar(20);not null" json:"type"`
	IsRead      bool             `gorm:"default:false" json:"is_read"`
	Metadata    datatypes.JSON   `gorm:"type:jsonb" json:"metadata,omitempty"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// NotificationPayload is the realtime frame pushed to a recipient's
// private group alongside the persisted row
type NotificationPayload struct {
	Type        string `json:"type"`
	Content     string `json:"content"`
	RedirectURL string `json:"redirect_url"`
}
