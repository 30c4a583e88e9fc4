package services

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/elearnhq/elearn-api/database"
	"github.com/elearnhq/elearn-api/events"
	"github.com/elearnhq/elearn-api/model"
	"github.com/elearnhq/elearn-api/realtime"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// newTestDB opens a fresh in-memory database with the full schema.
// Connections are pinned to one so every session sees the same memory.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	require.NoError(t, err)

	sqlDB, err := db.DB()
	require.NoError(t, err)
	sqlDB.SetMaxOpenConns(1)

	require.NoError(t, db.Exec("PRAGMA foreign_keys = ON").Error)
	require.NoError(t, database.Migrate(db))

	t.Cleanup(func() { sqlDB.Close() })
	return db
}

func newStudent(t *testing.T, db *gorm.DB, email, name string) *model.User {
	t.Helper()
	return newUser(t, db, email, name, model.RoleStudent)
}

func newTeacher(t *testing.T, db *gorm.DB, email, name string) *model.User {
	t.Helper()
	return newUser(t, db, email, name, model.RoleTeacher)
}

func newUser(t *testing.T, db *gorm.DB, email, name string, role model.UserRole) *model.User {
	t.Helper()
	user := &model.User{
		Email:        email,
		PasswordHash: "x",
		Role:         role,
		Profile:      &model.UserProfile{Name: name},
	}
	require.NoError(t, db.Create(user).Error)
	return user
}

// newPublishedCourse creates a course whose registration window is open
// today and whose course end is 90 days out
func newPublishedCourse(t *testing.T, db *gorm.DB, owner *model.User, title string) *model.Course {
	t.Helper()
	now := time.Now()
	course := &model.Course{
		UserID:            owner.ID,
		Title:             title,
		Category:          model.CategoryComputerScience,
		Status:            model.CourseStatusPublished,
		RegistrationStart: DateOnly(now.AddDate(0, 0, -7)),
		RegistrationEnd:   DateOnly(now.AddDate(0, 0, 7)),
		CourseStart:       DateOnly(now.AddDate(0, 0, 10)),
		CourseEnd:         DateOnly(now.AddDate(0, 0, 90)),
	}
	require.NoError(t, db.Create(course).Error)
	return course
}

func newModuleWithMaterial(t *testing.T, db *gorm.DB, course *model.Course, moduleName, materialName string) (*model.Module, *model.Material) {
	t.Helper()
	module := &model.Module{CourseID: course.ID, Name: moduleName}
	require.NoError(t, db.Create(module).Error)
	material := &model.Material{ModuleID: module.ID, Name: materialName, Type: model.MaterialTypeReading}
	require.NoError(t, db.Create(material).Error)
	return module, material
}

func enroll(t *testing.T, db *gorm.DB, user *model.User, course *model.Course, status model.EnrollmentStatus, expiredAt time.Time) *model.Enrollment {
	t.Helper()
	row := &model.Enrollment{
		UserID:    user.ID,
		CourseID:  course.ID,
		Status:    status,
		ExpiredAt: DateOnly(expiredAt),
	}
	require.NoError(t, db.Create(row).Error)
	return row
}

// capturedSend is one frame a test broker accepted
type capturedSend struct {
	Group   string
	Payload any
	Except  string
}

// captureBroker records sends instead of delivering them; setting fail
// makes every push error to exercise the best-effort paths
type captureBroker struct {
	mu    sync.Mutex
	sends []capturedSend
	fail  bool
}

func (b *captureBroker) Join(group string, c *realtime.Conn)  {}
func (b *captureBroker) Leave(group string, c *realtime.Conn) {}

func (b *captureBroker) Send(ctx context.Context, group string, payload any) error {
	return b.SendExcept(ctx, group, payload, "")
}

func (b *captureBroker) SendExcept(ctx context.Context, group string, payload any, exceptID string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.fail {
		return context.DeadlineExceeded
	}
	b.sends = append(b.sends, capturedSend{Group: group, Payload: payload, Except: exceptID})
	return nil
}

func (b *captureBroker) sent() []capturedSend {
	b.mu.Lock()
	defer b.mu.Unlock()
	out := make([]capturedSend, len(b.sends))
	copy(out, b.sends)
	return out
}

func (b *captureBroker) groups() []string {
	b.mu.Lock()
	defer b.mu.Unlock()
	var out []string
	for _, s := range b.sends {
		out = append(out, s.Group)
	}
	return out
}

// countingBus wraps a Bus subscription counting deliveries by name
func countEvents(bus *events.Bus, name string) *int {
	count := new(int)
	bus.Subscribe(name, func(ctx context.Context, ev events.Event) {
		*count++
	})
	return count
}
