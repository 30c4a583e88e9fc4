package services

import (
	"context"
	"testing"
	"time"

	"github.com/elearnhq/elearn-api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSubmitRatingUpsertsInPlace(t *testing.T) {
	db := newTestDB(t)
	svc := NewRatingService(db)

	teacher := newTeacher(t, db, "t@example.com", "Teach")
	student := newStudent(t, db, "s@example.com", "Sam")
	course := newPublishedCourse(t, db, teacher, "Go Basics")
	enroll(t, db, student, course, model.EnrollmentStatusEnrolled, day(30))

	first, err := svc.Submit(context.Background(), student, course.ID, 4, "Really solid introduction.", time.Now())
	require.NoError(t, err)

	second, err := svc.Submit(context.Background(), student, course.ID, 2, "Changed my mind about it.", time.Now())
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)
	assert.Equal(t, 2, second.Rating)

	var rows int64
	require.NoError(t, db.Model(&model.Rating{}).Count(&rows).Error)
	assert.EqualValues(t, 1, rows)
}

func TestSubmitRatingValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewRatingService(db)

	teacher := newTeacher(t, db, "t@example.com", "Teach")
	student := newStudent(t, db, "s@example.com", "Sam")
	course := newPublishedCourse(t, db, teacher, "Go Basics")
	enroll(t, db, student, course, model.EnrollmentStatusEnrolled, day(30))

	_, err := svc.Submit(context.Background(), student, course.ID, 0, "This text is long enough.", time.Now())
	ve, ok := AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "rating", ve.Field)

	_, err = svc.Submit(context.Background(), student, course.ID, 6, "This text is long enough.", time.Now())
	ve, ok = AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "rating", ve.Field)

	// trimmed length counts
	_, err = svc.Submit(context.Background(), student, course.ID, 3, "   short  ", time.Now())
	ve, ok = AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "text", ve.Field)

	// length is measured in characters, not bytes: four CJK runes span
	// twelve bytes and still fall short
	_, err = svc.Submit(context.Background(), student, course.ID, 3, "很棒的课", time.Now())
	ve, ok = AsValidation(err)
	require.True(t, ok)
	assert.Equal(t, "text", ve.Field)

	_, err = svc.Submit(context.Background(), student, course.ID, 3, "这门课程讲得非常清楚", time.Now())
	assert.NoError(t, err)
}

func TestSubmitRatingRequiresActiveEnrollment(t *testing.T) {
	db := newTestDB(t)
	svc := NewRatingService(db)

	teacher := newTeacher(t, db, "t@example.com", "Teach")
	course := newPublishedCourse(t, db, teacher, "Go Basics")

	stranger := newStudent(t, db, "x@example.com", "Stranger")
	_, err := svc.Submit(context.Background(), stranger, course.ID, 4, "Looks interesting from outside.", time.Now())
	assert.Equal(t, ReasonNotEnrolled, ForbiddenReason(err))

	expired := newStudent(t, db, "e@example.com", "Expired")
	enroll(t, db, expired, course, model.EnrollmentStatusEnrolled, day(-1))
	_, err = svc.Submit(context.Background(), expired, course.ID, 4, "I finished this a while back.", time.Now())
	assert.Equal(t, ReasonNotEnrolled, ForbiddenReason(err))
}

func TestRatingSummary(t *testing.T) {
	db := newTestDB(t)
	svc := NewRatingService(db)

	teacher := newTeacher(t, db, "t@example.com", "Teach")
	course := newPublishedCourse(t, db, teacher, "Go Basics")

	// empty course averages to zero, not NULL
	summary, err := svc.Summary(context.Background(), course.ID)
	require.NoError(t, err)
	assert.Zero(t, summary.Average)
	assert.Zero(t, summary.Count)

	for i, rating := range []int{5, 3} {
		student := newStudent(t, db, string(rune('a'+i))+"@example.com", "S")
		enroll(t, db, student, course, model.EnrollmentStatusEnrolled, day(30))
		_, err := svc.Submit(context.Background(), student, course.ID, rating, "Detailed enough review text.", time.Now())
		require.NoError(t, err)
	}

	summary, err = svc.Summary(context.Background(), course.ID)
	require.NoError(t, err)
	assert.InDelta(t, 4.0, summary.Average, 0.001)
	assert.EqualValues(t, 2, summary.Count)
}
