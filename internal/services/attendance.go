package services

import (
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"van_tracker/internal/models"
)

// AttendanceService is the ledger of per-student, per-day overrides.
// Policy: default present. No record for a date means the student attends;
// a record with attending=false excludes them from that day's route.
type AttendanceService struct {
	DB *gorm.DB
}

func NewAttendanceService(db *gorm.DB) *AttendanceService {
	return &AttendanceService{DB: db}
}

// Set upserts the override for (student, date). Only the student's own
// guardian may write it.
func (s *AttendanceService) Set(guardianID, studentID uint, date time.Time, attending bool) (*models.AttendanceRecord, error) {
	var student models.Student
	if err := s.DB.First(&student, studentID).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: student %d", ErrNotFound, studentID)
		}
		return nil, err
	}
	if student.GuardianID != guardianID {
		return nil, fmt.Errorf("%w: student belongs to another guardian", ErrForbidden)
	}

	day := models.DateOnly(date)
	var record models.AttendanceRecord
	err := s.DB.Where("student_id = ? AND date = ?", studentID, day).First(&record).Error
	switch {
	case err == nil:
		record.Attending = attending
		if err := s.DB.Save(&record).Error; err != nil {
			return nil, err
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		record = models.AttendanceRecord{StudentID: studentID, Date: day, Attending: attending}
		if err := s.DB.Create(&record).Error; err != nil {
			return nil, err
		}
	default:
		return nil, err
	}
	return &record, nil
}

// IsAttending answers the generation-time question for one student and
// day. Runs on the caller's handle so the generator can read inside its
// transaction.
func IsAttending(db *gorm.DB, studentID uint, date time.Time) (bool, error) {
	var record models.AttendanceRecord
	err := db.Where("student_id = ? AND date = ?", studentID, models.DateOnly(date)).First(&record).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return true, nil // default present
	}
	if err != nil {
		return false, err
	}
	return record.Attending, nil
}
