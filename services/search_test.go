package services

import (
	"context"
	"testing"

	"github.com/elearnhq/elearn-api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// stubIndex returns a fixed ranking regardless of the query
type stubIndex struct {
	ids []uint
	err error
}

func (s *stubIndex) Search(ctx context.Context, query string, limit int) ([]uint, error) {
	return s.ids, s.err
}

func TestExploreAnnotations(t *testing.T) {
	db := newTestDB(t)
	svc := NewExploreService(db, &stubIndex{}, nil)

	teacher := newTeacher(t, db, "t@example.com", "Teach")
	course := newPublishedCourse(t, db, teacher, "Go Basics")

	rater := newStudent(t, db, "r@example.com", "Rae")
	other := newStudent(t, db, "o@example.com", "Omar")
	blocked := newStudent(t, db, "b@example.com", "Blocked")
	enroll(t, db, rater, course, model.EnrollmentStatusEnrolled, day(30))
	enroll(t, db, other, course, model.EnrollmentStatusEnrolled, day(30))
	enroll(t, db, blocked, course, model.EnrollmentStatusBlocked, day(30))

	require.NoError(t, db.Create(&model.Rating{UserID: rater.ID, CourseID: course.ID, Rating: 5, Text: "really liked it"}).Error)
	require.NoError(t, db.Create(&model.Rating{UserID: other.ID, CourseID: course.ID, Rating: 3, Text: "it was alright"}).Error)

	summaries, err := svc.Explore(context.Background(), "", 0, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.InDelta(t, 4.0, summaries[0].AvgRating, 0.001)
	// blocked enrollments never count
	assert.EqualValues(t, 2, summaries[0].EnrollmentCount)
}

func TestExploreFiltersByCategory(t *testing.T) {
	db := newTestDB(t)
	svc := NewExploreService(db, &stubIndex{}, nil)

	teacher := newTeacher(t, db, "t@example.com", "Teach")
	newPublishedCourse(t, db, teacher, "Go Basics")

	design := newPublishedCourse(t, db, teacher, "Typography")
	require.NoError(t, db.Model(design).Update("category", model.CategoryDesign).Error)

	summaries, err := svc.Explore(context.Background(), model.CategoryDesign, 0, 0)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, design.ID, summaries[0].ID)

	summaries, err = svc.Explore(context.Background(), "", 0, 0)
	require.NoError(t, err)
	assert.Len(t, summaries, 2)
}

func TestSearchPreservesIndexOrder(t *testing.T) {
	db := newTestDB(t)

	teacher := newTeacher(t, db, "t@example.com", "Teach")
	first := newPublishedCourse(t, db, teacher, "Advanced Go")
	second := newPublishedCourse(t, db, teacher, "Go Basics")
	third := newPublishedCourse(t, db, teacher, "Intro to Go")

	index := &stubIndex{ids: []uint{second.ID, third.ID, first.ID}}
	svc := NewExploreService(db, index, nil)

	summaries, err := svc.Search(context.Background(), "go", 10)
	require.NoError(t, err)
	require.Len(t, summaries, 3)
	assert.Equal(t, second.ID, summaries[0].ID)
	assert.Equal(t, third.ID, summaries[1].ID)
	assert.Equal(t, first.ID, summaries[2].ID)
}

func TestSearchDropsStaleIndexHits(t *testing.T) {
	db := newTestDB(t)

	teacher := newTeacher(t, db, "t@example.com", "Teach")
	course := newPublishedCourse(t, db, teacher, "Go Basics")

	// the index may hold ids of courses deleted since it was built
	index := &stubIndex{ids: []uint{9999, course.ID}}
	svc := NewExploreService(db, index, nil)

	summaries, err := svc.Search(context.Background(), "go", 10)
	require.NoError(t, err)
	require.Len(t, summaries, 1)
	assert.Equal(t, course.ID, summaries[0].ID)
}

func TestSearchEmptyQueryYieldsEmptyList(t *testing.T) {
	db := newTestDB(t)
	svc := NewExploreService(db, &stubIndex{}, nil)

	summaries, err := svc.Search(context.Background(), "", 10)
	require.NoError(t, err)
	assert.NotNil(t, summaries)
	assert.Empty(t, summaries)
}
