package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"gorm.io/gorm"

	"van_tracker/internal/config"
	"van_tracker/internal/models"
)

// RegisterDeviceToken upserts the push destination for the calling user.
// Re-registering from a new device replaces the previous token.
func RegisterDeviceToken(c *gin.Context) {
	userID := currentUserID(c)

	var input struct {
		Token string `json:"token" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var existing models.DeviceToken
	err := config.DB.Where("user_id = ?", userID).First(&existing).Error
	switch {
	case err == nil:
		existing.Token = input.Token
		if err := config.DB.Save(&existing).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	case errors.Is(err, gorm.ErrRecordNotFound):
		record := models.DeviceToken{UserID: userID, Token: input.Token}
		if err := config.DB.Create(&record).Error; err != nil {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
			return
		}
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	c.JSON(http.StatusOK, gin.H{"message": "Device token registered"})
}
