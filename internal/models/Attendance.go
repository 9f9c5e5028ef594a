package models

import (
	"time"

	"gorm.io/gorm"
)

// AttendanceRecord is a per-student, per-day override written by guardians.
// The absence of a record for a date means the student attends (default
// present); a record decides either way.
type AttendanceRecord struct {
	gorm.Model
	StudentID uint      `json:"student_id" gorm:"index;uniqueIndex:uq_student_date,priority:1"`
	Date      time.Time `json:"date" gorm:"uniqueIndex:uq_student_date,priority:2"`
	Attending bool      `json:"attending"`
}

// DateOnly truncates t to midnight UTC so attendance lookups compare
// calendar days, not instants.
func DateOnly(t time.Time) time.Time {
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
