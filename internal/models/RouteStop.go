package models

import (
	"gorm.io/gorm"
)

// RouteStop is one point of a generated daily route. Seq values are
// assigned 1..N contiguously at every generation/recalculation, unlike
// TemplateStop.Seq which keeps the driver-authored numbering. Coordinates
// are a snapshot taken at generation time, not a live reference.
type RouteStop struct {
	gorm.Model

	ActiveRouteID      uint    `json:"active_route_id" gorm:"index"`
	StudentID          *uint   `json:"student_id"` // nil for the final-destination stop
	Seq                int     `json:"seq"`
	Lat                float64 `json:"lat"`
	Lng                float64 `json:"lng"`
	PickedUp           bool    `json:"picked_up" gorm:"default:false"`
	Delivered          bool    `json:"delivered" gorm:"default:false"`
	IsFinalDestination bool    `json:"is_final_destination"`

	Student *Student `gorm:"foreignKey:StudentID" json:"student,omitempty"`
}
