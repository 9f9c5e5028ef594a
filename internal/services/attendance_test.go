package services

import (
	"errors"
	"testing"
	"time"

	"van_tracker/internal/models"
)

func TestIsAttendingDefaultsToPresent(t *testing.T) {
	db := newTestDB(t)
	guardian := seedGuardian(t, db, "")
	student := seedStudent(t, db, guardian, nil, "Ana")

	attending, err := IsAttending(db, student.ID, time.Now())
	if err != nil {
		t.Fatalf("IsAttending: %v", err)
	}
	if !attending {
		t.Error("student with no record should default to attending")
	}
}

func TestIsAttendingRecordDecides(t *testing.T) {
	db := newTestDB(t)
	guardian := seedGuardian(t, db, "")
	student := seedStudent(t, db, guardian, nil, "Ana")
	svc := NewAttendanceService(db)

	if _, err := svc.Set(guardian.ID, student.ID, time.Now(), false); err != nil {
		t.Fatalf("Set: %v", err)
	}
	attending, err := IsAttending(db, student.ID, time.Now())
	if err != nil {
		t.Fatalf("IsAttending: %v", err)
	}
	if attending {
		t.Error("attending=false record should exclude the student")
	}

	if _, err := svc.Set(guardian.ID, student.ID, time.Now(), true); err != nil {
		t.Fatalf("Set: %v", err)
	}
	attending, err = IsAttending(db, student.ID, time.Now())
	if err != nil {
		t.Fatalf("IsAttending: %v", err)
	}
	if !attending {
		t.Error("attending=true record should include the student")
	}
}

func TestSetAttendanceUpsertsOneRowPerDay(t *testing.T) {
	db := newTestDB(t)
	guardian := seedGuardian(t, db, "")
	student := seedStudent(t, db, guardian, nil, "Ana")
	svc := NewAttendanceService(db)

	if _, err := svc.Set(guardian.ID, student.ID, time.Now(), false); err != nil {
		t.Fatalf("first Set: %v", err)
	}
	if _, err := svc.Set(guardian.ID, student.ID, time.Now(), true); err != nil {
		t.Fatalf("second Set: %v", err)
	}

	var count int64
	db.Model(&models.AttendanceRecord{}).Where("student_id = ?", student.ID).Count(&count)
	if count != 1 {
		t.Errorf("expected 1 attendance row, got %d", count)
	}
}

func TestSetAttendanceOnlyOwnGuardian(t *testing.T) {
	db := newTestDB(t)
	owner := seedGuardian(t, db, "")
	other := seedGuardian(t, db, "")
	student := seedStudent(t, db, owner, nil, "Ana")
	svc := NewAttendanceService(db)

	_, err := svc.Set(other.ID, student.ID, time.Now(), false)
	if !errors.Is(err, ErrForbidden) {
		t.Errorf("expected ErrForbidden, got %v", err)
	}
}

func TestSetAttendanceUnknownStudent(t *testing.T) {
	db := newTestDB(t)
	guardian := seedGuardian(t, db, "")
	svc := NewAttendanceService(db)

	_, err := svc.Set(guardian.ID, 9999, time.Now(), false)
	if !errors.Is(err, ErrNotFound) {
		t.Errorf("expected ErrNotFound, got %v", err)
	}
}
