package models

import (
	"time"

	"gorm.io/gorm"
)

// ActiveRoute lifecycle states. A route is never deleted; finalized is
// terminal and frozen.
const (
	RouteStatusActive    = "active"
	RouteStatusFinalized = "finalized"
)

// ActiveRoute is a concrete, dated instantiation of a RouteTemplate with
// live pickup/delivery tracking. At most one active route exists per
// driver; a partial unique index on (driver_id) WHERE status='active'
// backstops the in-transaction check (see config.InitDB).
type ActiveRoute struct {
	gorm.Model

	DriverID        uint       `json:"driver_id" gorm:"index"`
	RouteTemplateID uint       `json:"route_template_id"`
	Date            time.Time  `json:"date"`
	Status          string     `json:"status" gorm:"default:active"`
	StartedAt       time.Time  `json:"started_at"`
	EndedAt         *time.Time `json:"ended_at"` // set only on finalize

	Stops []RouteStop `gorm:"foreignKey:ActiveRouteID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"stops,omitempty"`
}
