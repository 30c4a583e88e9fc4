package model

import (
	"time"
)

// EnrollmentStatus is the administrative state of an enrollment.
// "blocked" always overrides expiry-based activity.
type EnrollmentStatus string

const (
	EnrollmentStatusEnrolled EnrollmentStatus = "enrolled"
	EnrollmentStatusBlocked  EnrollmentStatus = "blocked"
)

// Enrollment ties a student to a course. There is at most one row per
// (user, course); re-enrollment refreshes ExpiredAt on the existing row.
// An enrollment is active when status is "enrolled" and ExpiredAt is
// strictly after today.
type Enrollment struct {
	ID        uint             `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time        `json:"created_at"`
	UpdatedAt time.Time        `json:"updated_at"`
	UserID    uint             `gorm:"uniqueIndex:idx_user_course;not null" json:"user_id"`
	CourseID  uint             `gorm:"uniqueIndex:idx_user_course;not null" json:"course_id"`
	Status    EnrollmentStatus `gorm:"type:varchar(10);not null" json:"status"`
	ExpiredAt time.Time        `gorm:"type:date;not null" json:"expired_at"`

	User   User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"course,omitempty"`
}

// Progress marks a material as completed by a user. Existence alone
// signals completion; rows are never updated, only created or
// cascade-deleted with their material.
type Progress struct {
	ID         uint      `gorm:"primaryKey" json:"id"`
	CreatedAt  time.Time `json:"created_at"`
	UserID     uint      `gorm:"uniqueIndex:idx_user_material;not null" json:"user_id"`
	MaterialID uint      `gorm:"uniqueIndex:idx_user_material;not null" json:"material_id"`

	User     User     `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"-"`
	Material Material `gorm:"foreignKey:MaterialID;constraint:OnDelete:CASCADE" json:"-"`
}

// Rating is a student's review of a course. Exactly one row exists per
// (user, course); resubmission overwrites the rating and text in place.
type Rating struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	UserID    uint      `gorm:"uniqueIndex:idx_user_course_rating;not null" json:"user_id"`
	CourseID  uint      `gorm:"uniqueIndex:idx_user_course_rating;not null" json:"course_id"`
	Rating    int       `gorm:"not null" json:"rating"` // 1..5
	Text      string    `gorm:"type:text;not null" json:"text"`

	User   User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}
