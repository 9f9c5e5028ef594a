package services

import (
	"fmt"
	"testing"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"van_tracker/internal/models"
	"van_tracker/internal/notify"
)

// newTestDB opens a private in-memory database, migrated with the full
// schema. The connection pool is pinned to one connection so every query
// sees the same in-memory store.
func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open test db: %v", err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("unwrap test db: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&models.User{}, &models.Driver{}, &models.Guardian{}, &models.GuardianDriverLink{},
		&models.Student{}, &models.AttendanceRecord{}, &models.RouteTemplate{}, &models.TemplateStop{},
		&models.ActiveRoute{}, &models.RouteStop{}, &models.LocationHistory{}, &models.DeviceToken{},
	)
	if err != nil {
		t.Fatalf("migrate test db: %v", err)
	}
	return db
}

// fakeDispatcher records emitted events and can be forced to fail.
type fakeDispatcher struct {
	events []notify.Event
	err    error
}

func (f *fakeDispatcher) Send(event notify.Event) error {
	f.events = append(f.events, event)
	return f.err
}

func (f *fakeDispatcher) eventsOfKind(kind string) []notify.Event {
	var out []notify.Event
	for _, e := range f.events {
		if e.Kind == kind {
			out = append(out, e)
		}
	}
	return out
}

// fakeBroadcast records Start/Stop calls from the route lifecycle.
type fakeBroadcast struct {
	started []uint
	stopped []uint
}

func (f *fakeBroadcast) Start(driverID uint) { f.started = append(f.started, driverID) }
func (f *fakeBroadcast) Stop(driverID uint)  { f.stopped = append(f.stopped, driverID) }

var seedCounter int

// seedDriver creates a user with the driver role and its driver profile.
func seedDriver(t *testing.T, db *gorm.DB) *models.Driver {
	t.Helper()
	seedCounter++
	user := models.User{
		Name:  fmt.Sprintf("Driver %d", seedCounter),
		Email: fmt.Sprintf("driver%d@example.com", seedCounter),
		Role:  "driver",
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed driver user: %v", err)
	}
	driver := models.Driver{UserID: user.ID, LinkCode: fmt.Sprintf("code-%d", seedCounter)}
	if err := db.Create(&driver).Error; err != nil {
		t.Fatalf("seed driver: %v", err)
	}
	return &driver
}

// seedGuardian creates a guardian and, when token is non-empty, registers
// a device token for its user.
func seedGuardian(t *testing.T, db *gorm.DB, token string) *models.Guardian {
	t.Helper()
	seedCounter++
	user := models.User{
		Name:  fmt.Sprintf("Guardian %d", seedCounter),
		Email: fmt.Sprintf("guardian%d@example.com", seedCounter),
		Role:  "guardian",
	}
	if err := db.Create(&user).Error; err != nil {
		t.Fatalf("seed guardian user: %v", err)
	}
	guardian := models.Guardian{UserID: user.ID}
	if err := db.Create(&guardian).Error; err != nil {
		t.Fatalf("seed guardian: %v", err)
	}
	if token != "" {
		if err := db.Create(&models.DeviceToken{UserID: user.ID, Token: token}).Error; err != nil {
			t.Fatalf("seed device token: %v", err)
		}
	}
	return &guardian
}

func seedStudent(t *testing.T, db *gorm.DB, guardian *models.Guardian, driver *models.Driver, name string) *models.Student {
	t.Helper()
	student := models.Student{
		Name:       name,
		GuardianID: guardian.ID,
		HomeLat:    -33.45,
		HomeLng:    -70.66,
		SchoolLat:  -33.44,
		SchoolLng:  -70.65,
	}
	if driver != nil {
		student.DriverID = &driver.ID
	}
	if err := db.Create(&student).Error; err != nil {
		t.Fatalf("seed student %s: %v", name, err)
	}
	return &student
}

func studentStop(studentID uint, seq int) StopInput {
	return StopInput{StudentID: &studentID, Seq: seq, Lat: -33.45, Lng: -70.66}
}

func finalStop(seq int) StopInput {
	return StopInput{Seq: seq, Lat: -33.44, Lng: -70.65, IsFinalDestination: true}
}

func newTestRouteService(db *gorm.DB) (*RouteService, *fakeDispatcher, *fakeBroadcast) {
	dispatcher := &fakeDispatcher{}
	broadcast := &fakeBroadcast{}
	return NewRouteService(db, dispatcher, broadcast), dispatcher, broadcast
}
