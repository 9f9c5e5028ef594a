package models

import (
	"time"

	"gorm.io/gorm"
)

type LocationHistory struct {
	gorm.Model
	DriverID  uint      `json:"driver_id" gorm:"index"`
	Driver    Driver    `gorm:"foreignKey:DriverID"`
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"` // GPS accuracy in meters
	Speed     float64   `json:"speed"`    // Speed in km/h
	Timestamp time.Time `json:"timestamp"`
}
