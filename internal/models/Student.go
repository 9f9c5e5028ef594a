package models

import (
	"gorm.io/gorm"
)

type Student struct {
	gorm.Model
	Name   string `json:"name" binding:"required"`
	Age    int    `json:"age"`
	Grade  string `json:"grade"`

	// Home pickup point
	HomeAddress string  `json:"home_address"`
	HomeLat     float64 `json:"home_lat"`
	HomeLng     float64 `json:"home_lng"`

	// Institution drop-off point
	SchoolName string  `json:"school_name"`
	SchoolLat  float64 `json:"school_lat"`
	SchoolLng  float64 `json:"school_lng"`

	GuardianID uint  `json:"guardian_id" gorm:"index"`
	DriverID   *uint `json:"driver_id" gorm:"index"` // nil until a driver is assigned
}
