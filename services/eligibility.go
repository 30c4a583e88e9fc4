package services

import (
	"time"

	"github.com/elearnhq/elearn-api/model"
	"gorm.io/gorm"
)

// Eligibility predicates. All are pure over their snapshot arguments;
// the caller supplies today so time never leaks in implicitly.
//
// Two expiry boundaries exist on purpose: personal activity checks use
// the strict form (expired_at > today) while notification audience
// queries use the inclusive form (expired_at >= today). See
// ActiveEnrollmentScope for the latter.

// DateOnly truncates a timestamp to its calendar date, pinned to UTC
// midnight. Date columns round-trip from the database as UTC midnight,
// so every date comparison has to happen in the same location or the
// day boundary shifts with the process timezone.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// IsActiveEnrollment reports whether the enrollment currently grants
// access: status is enrolled and expiry is strictly after today.
// A blocked row is never active regardless of expiry.
func IsActiveEnrollment(e *model.Enrollment, today time.Time) bool {
	if e == nil {
		return false
	}
	return e.Status == model.EnrollmentStatusEnrolled && e.ExpiredAt.After(DateOnly(today))
}

// IsEligibleToEnroll reports whether the user may enroll (or re-enroll)
// in the course today. enrollment is the user's existing row, nil when
// none exists.
//
// A blocked row makes the user permanently ineligible even after
// expiry; an active row rejects double-enrollment; an expired,
// non-blocked row allows renewal. Teachers are never eligible.
func IsEligibleToEnroll(user *model.User, course *model.Course, enrollment *model.Enrollment, today time.Time) bool {
	if user == nil || course == nil {
		return false
	}
	if user.Role != model.RoleStudent {
		return false
	}
	day := DateOnly(today)
	if day.Before(DateOnly(course.RegistrationStart)) || day.After(DateOnly(course.RegistrationEnd)) {
		return false
	}
	if enrollment == nil {
		return true
	}
	if enrollment.Status == model.EnrollmentStatusBlocked {
		return false
	}
	return !IsActiveEnrollment(enrollment, today)
}

// ineligibilityReason mirrors IsEligibleToEnroll but names which rule
// rejected the attempt, for the 403 response body
func ineligibilityReason(user *model.User, course *model.Course, enrollment *model.Enrollment, today time.Time) string {
	if user == nil || user.Role != model.RoleStudent {
		return ReasonRoleNotAllowed
	}
	day := DateOnly(today)
	if day.Before(DateOnly(course.RegistrationStart)) || day.After(DateOnly(course.RegistrationEnd)) {
		return ReasonRegistrationClosed
	}
	if enrollment != nil {
		if enrollment.Status == model.EnrollmentStatusBlocked {
			return ReasonBlocked
		}
		if IsActiveEnrollment(enrollment, today) {
			return ReasonAlreadyEnrolled
		}
	}
	return ""
}

// IsOwner reports whether the user owns the course
func IsOwner(course *model.Course, userID uint) bool {
	return course != nil && course.UserID == userID
}

// IsInstructor reports whether the user is an instructor of the course
func IsInstructor(db *gorm.DB, courseID, userID uint) bool {
	var count int64
	db.Model(&model.Instructor{}).
		Where("course_id = ? AND user_id = ?", courseID, userID).
		Count(&count)
	return count > 0
}

// CanManage reports whether the user may manage course content: the
// owner or any instructor
func CanManage(db *gorm.DB, course *model.Course, userID uint) bool {
	return IsOwner(course, userID) || IsInstructor(db, course.ID, userID)
}

// ActiveEnrollmentScope filters an enrollments-joined query down to
// active, non-blocked rows using the inclusive audience boundary
// (expired_at >= today). Notification fan-out audiences all go through
// this scope.
func ActiveEnrollmentScope(today time.Time) func(*gorm.DB) *gorm.DB {
	day := DateOnly(today)
	return func(db *gorm.DB) *gorm.DB {
		return db.Where("enrollments.status <> ?", model.EnrollmentStatusBlocked).
			Where("enrollments.expired_at >= ?", day)
	}
}
