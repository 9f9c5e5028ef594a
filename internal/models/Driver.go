// internal/models/driver.go
package models

import (
	"gorm.io/gorm"
)

type Driver struct {
	gorm.Model
	UserID       uint   `json:"user_id" gorm:"unique"` // Foreign key to User
	User         User   `gorm:"foreignKey:UserID"`     // User association
	LicensePlate string `json:"license_plate"`
	VehicleModel string `json:"vehicle_model"`

	// Guardians link to a driver by presenting this code from
	// the driver's app. Assigned at signup, never rotated.
	LinkCode string `json:"link_code" gorm:"uniqueIndex"`

	Students []Student `gorm:"foreignKey:DriverID" json:"students,omitempty"`
}
