package services

import (
	"context"
	"testing"
	"time"

	"github.com/elearnhq/elearn-api/events"
	"github.com/elearnhq/elearn-api/model"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func validCourseInput(title string) CourseInput {
	now := time.Now()
	return CourseInput{
		Title:             title,
		Category:          model.CategoryComputerScience,
		RegistrationStart: now.AddDate(0, 0, -7),
		RegistrationEnd:   now.AddDate(0, 0, 7),
		CourseStart:       now.AddDate(0, 0, 10),
		CourseEnd:         now.AddDate(0, 0, 90),
	}
}

func TestCreateCourseTeacherOnly(t *testing.T) {
	db := newTestDB(t)
	svc := NewCourseService(db, events.NewBus())

	teacher := newTeacher(t, db, "t@example.com", "Teach")
	student := newStudent(t, db, "s@example.com", "Sam")

	_, err := svc.Create(context.Background(), student, validCourseInput("Nope"))
	assert.ErrorIs(t, err, ErrForbidden)
	assert.Equal(t, ReasonRoleNotAllowed, ForbiddenReason(err))

	course, err := svc.Create(context.Background(), teacher, validCourseInput("Go Basics"))
	require.NoError(t, err)
	assert.Equal(t, model.CourseStatusDraft, course.Status)
	assert.Equal(t, teacher.ID, course.UserID)
}

func TestCourseDateChainValidation(t *testing.T) {
	db := newTestDB(t)
	svc := NewCourseService(db, events.NewBus())
	teacher := newTeacher(t, db, "t@example.com", "Teach")

	now := time.Now()
	cases := []struct {
		name   string
		mutate func(in *CourseInput)
		field  string
	}{
		{
			name:   "registration end before start",
			mutate: func(in *CourseInput) { in.RegistrationEnd = now.AddDate(0, 0, -10) },
			field:  "registration_end",
		},
		{
			name:   "course start before registration end",
			mutate: func(in *CourseInput) { in.CourseStart = now.AddDate(0, 0, 1) },
			field:  "course_start",
		},
		{
			name:   "course end before course start",
			mutate: func(in *CourseInput) { in.CourseEnd = now.AddDate(0, 0, 8) },
			field:  "course_end",
		},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			in := validCourseInput("Go Basics")
			tc.mutate(&in)
			_, err := svc.Create(context.Background(), teacher, in)
			var verr *ValidationError
			require.ErrorAs(t, err, &verr)
			assert.Equal(t, tc.field, verr.Field)
		})
	}
}

func TestDraftVisibility(t *testing.T) {
	db := newTestDB(t)
	svc := NewCourseService(db, events.NewBus())

	owner := newTeacher(t, db, "owner@example.com", "Owner")
	instructor := newTeacher(t, db, "inst@example.com", "Inst")
	outsider := newStudent(t, db, "out@example.com", "Out")

	in := validCourseInput("Draft Course")
	course, err := svc.Create(context.Background(), owner, in)
	require.NoError(t, err)
	require.NoError(t, db.Create(&model.Instructor{CourseID: course.ID, UserID: instructor.ID}).Error)

	_, err = svc.Detail(context.Background(), course.ID, outsider.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	// anonymous viewers carry user ID zero
	_, err = svc.Detail(context.Background(), course.ID, 0)
	assert.ErrorIs(t, err, ErrNotFound)

	got, err := svc.Detail(context.Background(), course.ID, owner.ID)
	require.NoError(t, err)
	assert.Equal(t, course.ID, got.ID)

	_, err = svc.Detail(context.Background(), course.ID, instructor.ID)
	assert.NoError(t, err)
}

func TestUpdateCourseRequiresManager(t *testing.T) {
	db := newTestDB(t)
	svc := NewCourseService(db, events.NewBus())

	owner := newTeacher(t, db, "owner@example.com", "Owner")
	other := newTeacher(t, db, "other@example.com", "Other")
	course := newPublishedCourse(t, db, owner, "Go Basics")

	in := validCourseInput("Go Basics v2")
	_, err := svc.Update(context.Background(), other, course.ID, in)
	assert.ErrorIs(t, err, ErrForbidden)

	updated, err := svc.Update(context.Background(), owner, course.ID, in)
	require.NoError(t, err)
	assert.Equal(t, "Go Basics v2", updated.Title)
}

func TestAddMaterialAnnouncesOnce(t *testing.T) {
	db := newTestDB(t)
	bus := events.NewBus()
	count := countEvents(bus, events.MaterialCreated{}.Name())
	svc := NewCourseService(db, bus)

	owner := newTeacher(t, db, "owner@example.com", "Owner")
	course := newPublishedCourse(t, db, owner, "Go Basics")
	module, err := svc.AddModule(context.Background(), owner, course.ID, "Week 1")
	require.NoError(t, err)

	material, err := svc.AddMaterial(context.Background(), owner, course.ID, module.ID, MaterialInput{
		Name: "Intro", Type: model.MaterialTypeVideo,
	})
	require.NoError(t, err)
	assert.NotZero(t, material.ID)
	assert.Equal(t, 1, *count)

	_, err = svc.AddMaterial(context.Background(), owner, course.ID, module.ID, MaterialInput{
		Name: "Bad", Type: "podcast",
	})
	var verr *ValidationError
	require.ErrorAs(t, err, &verr)
	assert.Equal(t, "type", verr.Field)
	// rejected materials never announce
	assert.Equal(t, 1, *count)
}

func TestAddMaterialModuleMustBelongToCourse(t *testing.T) {
	db := newTestDB(t)
	svc := NewCourseService(db, events.NewBus())

	owner := newTeacher(t, db, "owner@example.com", "Owner")
	courseA := newPublishedCourse(t, db, owner, "Course A")
	courseB := newPublishedCourse(t, db, owner, "Course B")
	moduleB, _ := newModuleWithMaterial(t, db, courseB, "Week 1", "Intro")

	_, err := svc.AddMaterial(context.Background(), owner, courseA.ID, moduleB.ID, MaterialInput{
		Name: "Intro", Type: model.MaterialTypeReading,
	})
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestDeleteModuleScopedToCourse(t *testing.T) {
	db := newTestDB(t)
	svc := NewCourseService(db, events.NewBus())

	owner := newTeacher(t, db, "owner@example.com", "Owner")
	courseA := newPublishedCourse(t, db, owner, "Course A")
	courseB := newPublishedCourse(t, db, owner, "Course B")
	moduleB, _ := newModuleWithMaterial(t, db, courseB, "Week 1", "Intro")

	err := svc.DeleteModule(context.Background(), owner, courseA.ID, moduleB.ID)
	assert.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, svc.DeleteModule(context.Background(), owner, courseB.ID, moduleB.ID))
}

func TestMaterialDetailGates(t *testing.T) {
	db := newTestDB(t)
	svc := NewCourseService(db, events.NewBus())
	today := time.Now()

	owner := newTeacher(t, db, "owner@example.com", "Owner")
	course := newPublishedCourse(t, db, owner, "Go Basics")
	_, material := newModuleWithMaterial(t, db, course, "Week 1", "Intro")

	active := newStudent(t, db, "a@example.com", "Active")
	expired := newStudent(t, db, "e@example.com", "Expired")
	blocked := newStudent(t, db, "b@example.com", "Blocked")
	stranger := newStudent(t, db, "s@example.com", "Stranger")

	enroll(t, db, active, course, model.EnrollmentStatusEnrolled, day(30))
	enroll(t, db, expired, course, model.EnrollmentStatusEnrolled, day(-1))
	enroll(t, db, blocked, course, model.EnrollmentStatusBlocked, day(30))

	_, err := svc.MaterialDetail(context.Background(), owner, course.ID, material.ID, today)
	assert.NoError(t, err)
	_, err = svc.MaterialDetail(context.Background(), active, course.ID, material.ID, today)
	assert.NoError(t, err)

	_, err = svc.MaterialDetail(context.Background(), expired, course.ID, material.ID, today)
	assert.Equal(t, ReasonNotEnrolled, ForbiddenReason(err))

	_, err = svc.MaterialDetail(context.Background(), blocked, course.ID, material.ID, today)
	assert.Equal(t, ReasonBlocked, ForbiddenReason(err))

	_, err = svc.MaterialDetail(context.Background(), stranger, course.ID, material.ID, today)
	assert.Equal(t, ReasonNotEnrolled, ForbiddenReason(err))
}

func TestAddInstructor(t *testing.T) {
	db := newTestDB(t)
	svc := NewCourseService(db, events.NewBus())

	owner := newTeacher(t, db, "owner@example.com", "Owner")
	colleague := newTeacher(t, db, "col@example.com", "Col")
	student := newStudent(t, db, "s@example.com", "Sam")
	course := newPublishedCourse(t, db, owner, "Go Basics")

	// only the owner grants rights, instructors themselves cannot
	_, err := svc.AddInstructor(context.Background(), colleague, course.ID, colleague.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	_, err = svc.AddInstructor(context.Background(), owner, course.ID, student.ID)
	assert.Equal(t, ReasonRoleNotAllowed, ForbiddenReason(err))

	first, err := svc.AddInstructor(context.Background(), owner, course.ID, colleague.ID)
	require.NoError(t, err)

	second, err := svc.AddInstructor(context.Background(), owner, course.ID, colleague.ID)
	require.NoError(t, err)
	assert.Equal(t, first.ID, second.ID)

	var count int64
	require.NoError(t, db.Model(&model.Instructor{}).Where("course_id = ?", course.ID).Count(&count).Error)
	assert.EqualValues(t, 1, count)
}

func TestRemoveInstructor(t *testing.T) {
	db := newTestDB(t)
	svc := NewCourseService(db, events.NewBus())

	owner := newTeacher(t, db, "owner@example.com", "Owner")
	colleague := newTeacher(t, db, "col@example.com", "Col")
	course := newPublishedCourse(t, db, owner, "Go Basics")

	_, err := svc.AddInstructor(context.Background(), owner, course.ID, colleague.ID)
	require.NoError(t, err)

	err = svc.RemoveInstructor(context.Background(), colleague, course.ID, colleague.ID)
	assert.ErrorIs(t, err, ErrForbidden)

	require.NoError(t, svc.RemoveInstructor(context.Background(), owner, course.ID, colleague.ID))

	err = svc.RemoveInstructor(context.Background(), owner, course.ID, colleague.ID)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCourseLists(t *testing.T) {
	db := newTestDB(t)
	svc := NewCourseService(db, events.NewBus())

	owner := newTeacher(t, db, "owner@example.com", "Owner")
	colleague := newTeacher(t, db, "col@example.com", "Col")
	published := newPublishedCourse(t, db, owner, "Published")

	_, err := svc.Create(context.Background(), owner, validCourseInput("Draft"))
	require.NoError(t, err)

	require.NoError(t, db.Create(&model.Instructor{CourseID: published.ID, UserID: colleague.ID}).Error)

	student := newStudent(t, db, "s@example.com", "Sam")
	blocked := newStudent(t, db, "b@example.com", "Blocked")
	enroll(t, db, student, published, model.EnrollmentStatusEnrolled, day(30))
	enroll(t, db, blocked, published, model.EnrollmentStatusBlocked, day(30))

	listed, err := svc.ListPublished(context.Background(), "", 0, 0)
	require.NoError(t, err)
	require.Len(t, listed, 1)
	assert.Equal(t, published.ID, listed[0].ID)

	owned, err := svc.ListOwned(context.Background(), owner.ID)
	require.NoError(t, err)
	assert.Len(t, owned, 2)

	enrolled, err := svc.ListEnrolled(context.Background(), student.ID)
	require.NoError(t, err)
	assert.Len(t, enrolled, 1)

	// blocked students keep no course list entry
	enrolled, err = svc.ListEnrolled(context.Background(), blocked.ID)
	require.NoError(t, err)
	assert.Empty(t, enrolled)

	instructing, err := svc.ListInstructing(context.Background(), colleague.ID)
	require.NoError(t, err)
	require.Len(t, instructing, 1)
	assert.Equal(t, published.ID, instructing[0].ID)
}
