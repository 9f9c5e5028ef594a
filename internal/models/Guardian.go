package models

import (
	"gorm.io/gorm"
)

// Guardian is the parent/caretaker actor. Attendance overrides and
// student records are scoped to the owning guardian.
type Guardian struct {
	gorm.Model
	UserID uint `json:"user_id" gorm:"unique"`
	User   User `gorm:"foreignKey:UserID"`

	Students []Student `gorm:"foreignKey:GuardianID" json:"students,omitempty"`
}

// GuardianDriverLink records which drivers a guardian is linked to.
// Created when a guardian redeems a driver's link code.
type GuardianDriverLink struct {
	gorm.Model
	GuardianID uint `json:"guardian_id" gorm:"index;uniqueIndex:uq_guardian_driver,priority:1"`
	DriverID   uint `json:"driver_id" gorm:"index;uniqueIndex:uq_guardian_driver,priority:2"`
}
