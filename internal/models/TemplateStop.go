package models

import (
	"gorm.io/gorm"
)

// TemplateStop is one point in a driver-authored template. Seq is the
// canonical authored order; it may contain gaps and is never rewritten.
// StudentID is nil only for the final-destination (institution) stop.
type TemplateStop struct {
	gorm.Model

	RouteTemplateID    uint    `json:"route_template_id" gorm:"index"`
	StudentID          *uint   `json:"student_id"`
	Seq                int     `json:"seq" binding:"required"`
	Lat                float64 `json:"lat"`
	Lng                float64 `json:"lng"`
	IsFinalDestination bool    `json:"is_final_destination"`

	Student *Student `gorm:"foreignKey:StudentID" json:"student,omitempty"`
}
