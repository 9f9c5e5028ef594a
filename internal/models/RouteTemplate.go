package models

import (
	"gorm.io/gorm"
)

// Template directions. An outbound template is a pickup sequence ending at
// the institution; a return template starts at the institution and drops
// students off.
const (
	DirectionOutbound = "outbound"
	DirectionReturn   = "return"
)

// RouteTemplate is a reusable, driver-authored ordered list of stops,
// not tied to a specific date. Daily routes are instantiated from it.
type RouteTemplate struct {
	gorm.Model

	Name        string `json:"name" binding:"required"`
	Description string `json:"description"`
	Direction   string `json:"direction"` // "outbound" or "return"
	DriverID    uint   `json:"driver_id" gorm:"index"`

	// Optional path drawn in the driver app, stored as WKB (SRID 4326
	// LINESTRING). Provided and returned as GeoJSON at the API boundary.
	Geometry []byte `gorm:"type:bytea" json:"-"`

	Stops []TemplateStop `gorm:"foreignKey:RouteTemplateID;constraint:OnUpdate:CASCADE,OnDelete:CASCADE;" json:"stops,omitempty"`
}
