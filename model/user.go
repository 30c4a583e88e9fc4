package model

import (
	"time"

	"gorm.io/gorm"
)

// UserRole is the role a user acts under for the whole session.
type UserRole string

const (
	RoleStudent UserRole = "student"
	RoleTeacher UserRole = "teacher"
)

// User represents a registered user in the system
type User struct {
	ID           uint           `gorm:"primaryKey" json:"id"`
	CreatedAt    time.Time      `json:"created_at"`
	UpdatedAt    time.Time      `json:"updated_at"`
	DeletedAt    gorm.DeletedAt `gorm:"index" json:"deleted_at,omitempty"`
	Email        string         `gorm:"uniqueIndex;not null" json:"email"`
	PasswordHash string         `gorm:"not null" json:"-"` // Never expose password in JSON
	Role         UserRole       `gorm:"type:varchar(20);default:'student'" json:"role"`

	// Relationships
	Profile       *UserProfile   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"profile,omitempty"`
	Courses       []Course       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Enrollments   []Enrollment   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Statuses      []Status       `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Notifications []Notification `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// DisplayName returns the profile name when one exists, falling back to
// the account email.
func (u *User) DisplayName() string {
	if u.Profile != nil && u.Profile.Name != "" {
		return u.Profile.Name
	}
	return u.Email
}

// UserProfile holds the public-facing identity of a user
type UserProfile struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UpdatedAt  time.Time `json:"updated_at"`
	UserID     uint      `gorm:"uniqueIndex;not null" json:"user_id"`
	Name       string    `gorm:"type:varchar(50);not null" json:"name"`
	Title      string    `gorm:"type:varchar(50)" json:"title"`
	Location   string    `gorm:"type:varchar(50)" json:"location"`
	Bio        string    `gorm:"type:text" json:"bio"`
	PictureURL string    `gorm:"type:varchar(255)" json:"picture_url"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
}

// Status is a short post shown on a user's profile and dashboard feed
type Status struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"index" json:"created_at"`
	UserID    uint      `gorm:"index;not null" json:"user_id"`
	Text      string    `gorm:"type:varchar(512);not null" json:"text"`
	ImageURL  string    `gorm:"type:varchar(255)" json:"image_url"`

	User User `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}
