package models

import (
	"gorm.io/gorm"
)

// DeviceToken holds the current push destination for a user. One token
// per user; re-registering replaces it.
type DeviceToken struct {
	gorm.Model
	UserID uint   `json:"user_id" gorm:"uniqueIndex"`
	Token  string `json:"token" binding:"required"`
}
