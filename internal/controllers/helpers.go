package controllers

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"van_tracker/internal/config"
	"van_tracker/internal/models"
	"van_tracker/internal/services"
)

// respondServiceError maps a domain error kind to its HTTP status so the
// client can render a precise message.
func respondServiceError(c *gin.Context, err error) {
	switch {
	case errors.Is(err, services.ErrNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrConflict):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrForbidden):
		c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrValidation):
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
	case errors.Is(err, services.ErrNoEligibleStudents):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": err.Error()})
	default:
		logrus.WithError(err).Error("Unhandled service error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func currentUserID(c *gin.Context) uint {
	return uint(c.MustGet("user_id").(float64))
}

// currentDriver resolves the authenticated user's driver profile. Writes
// the error response itself when resolution fails.
func currentDriver(c *gin.Context) (*models.Driver, bool) {
	userID := currentUserID(c)
	var driver models.Driver
	if err := config.DB.Where("user_id = ?", userID).First(&driver).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Driver profile not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return nil, false
	}
	return &driver, true
}

// currentGuardian resolves the authenticated user's guardian profile.
func currentGuardian(c *gin.Context) (*models.Guardian, bool) {
	userID := currentUserID(c)
	var guardian models.Guardian
	if err := config.DB.Where("user_id = ?", userID).First(&guardian).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Guardian profile not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return nil, false
	}
	return &guardian, true
}
