package model

import (
	"time"

	"gorm.io/gorm"
)

// CourseStatus is the publication state of a course. Draft courses are
// invisible to everyone except the owner and instructors.
type CourseStatus string

const (
	CourseStatusDraft     CourseStatus = "draft"
	CourseStatusPublished CourseStatus = "published"
)

// CourseCategory enumerates the categories a course can be listed under
type CourseCategory string

const (
	CategoryComputerScience CourseCategory = "computer-science"
	CategoryDataScience     CourseCategory = "data-science"
	CategoryBusiness        CourseCategory = "business"
	CategoryDesign          CourseCategory = "design"
	CategoryMarketing       CourseCategory = "marketing"
	CategoryPhotography     CourseCategory = "photography"
)

// MaterialType is the payload kind of a course material
type MaterialType string

const (
	MaterialTypeQuiz    MaterialType = "quiz"
	MaterialTypeVideo   MaterialType = "video"
	MaterialTypeReading MaterialType = "reading"
)

// Course represents a course offered by a teacher. The four date
// boundaries are date-only values; the chain
// registration_start <= registration_end <= course_start <= course_end
// is enforced at input validation time, not by the database.
type Course struct {
	ID          uint           `gorm:"primaryKey" json:"id"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	DeletedAt   gorm.DeletedAt `gorm:"index" json:"-"`
	UserID      uint           `gorm:"index;not null" json:"user_id"` // owner (teacher)
	Title       string         `gorm:"type:varchar(255);not null" json:"title"`
	Subtitle    string         `gorm:"type:varchar(255)" json:"subtitle"`
	Category    CourseCategory `gorm:"type:varchar(50);not null" json:"category"`
	Description string         `gorm:"type:text" json:"description"`
	CoverImgURL string         `gorm:"type:varchar(255)" json:"cover_img_url"`
	Status      CourseStatus   `gorm:"type:varchar(20);default:'draft'" json:"status"`

	RegistrationStart time.Time `gorm:"type:date;not null" json:"registration_start"`
	RegistrationEnd   time.Time `gorm:"type:date;not null" json:"registration_end"`
	CourseStart       time.Time `gorm:"type:date;not null" json:"course_start"`
	CourseEnd         time.Time `gorm:"type:date;not null" json:"course_end"`

	// Relationships
	User        User         `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"owner,omitempty"`
	Instructors []Instructor `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"instructors,omitempty"`
	Modules     []Module     `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"modules,omitempty"`
	Enrollments []Enrollment `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Ratings     []Rating     `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
}

// Instructor grants a teacher management rights on a course without
// making them the owner
type Instructor struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	CourseID  uint      `gorm:"uniqueIndex:idx_course_instructor;not null" json:"course_id"`
	UserID    uint      `gorm:"uniqueIndex:idx_course_instructor;not null" json:"user_id"`

	Course Course `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	User   User   `gorm:"foreignKey:UserID;constraint:OnDelete:CASCADE" json:"user,omitempty"`
}

// Module groups materials within a course
type Module struct {
	ID        uint      `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
	CourseID  uint      `gorm:"index;not null" json:"course_id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`

	Course    Course     `gorm:"foreignKey:CourseID;constraint:OnDelete:CASCADE" json:"-"`
	Materials []Material `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE" json:"materials,omitempty"`
}

// Material is a single content item inside a module
type Material struct {
	ID        uint         `gorm:"primaryKey" json:"id"`
	CreatedAt time.Time    `json:"created_at"`
	UpdatedAt time.Time    `json:"updated_at"`
	ModuleID  uint         `gorm:"index;not null" json:"module_id"`
	Name      string       `gorm:"type:varchar(200);not null" json:"name"`
	Type      MaterialType `gorm:"type:varchar(20);not null" json:"type"`
	Content   string       `gorm:"type:text" json:"content"`
	DueDate   *time.Time   `gorm:"type:date" json:"due_date,omitempty"`

	Module   Module     `gorm:"foreignKey:ModuleID;constraint:OnDelete:CASCADE" json:"-"`
	Progress []Progress `gorm:"foreignKey:MaterialID;constraint:OnDelete:CASCADE" json:"-"`
}
