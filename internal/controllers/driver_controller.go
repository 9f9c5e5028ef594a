package controllers

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"van_tracker/internal/config"
	"van_tracker/internal/models"
)

// GetDriverProfile returns the calling driver's own profile, including
// the link code guardians use to connect.
func GetDriverProfile(c *gin.Context) {
	driver, ok := currentDriver(c)
	if !ok {
		return
	}
	config.DB.Preload("User").First(driver, driver.ID)
	c.JSON(http.StatusOK, gin.H{"driver": driver})
}

// ListAssignedStudents returns the students assigned to the calling
// driver, the pool route templates draw from.
func ListAssignedStudents(c *gin.Context) {
	driver, ok := currentDriver(c)
	if !ok {
		return
	}

	var students []models.Student
	if err := config.DB.Where("driver_id = ?", driver.ID).Order("id ASC").Find(&students).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}
