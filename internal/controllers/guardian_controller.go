package controllers

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"van_tracker/internal/config"
	"van_tracker/internal/models"
	"van_tracker/internal/services"
)

// RegisterStudent creates a student under the calling guardian.
func RegisterStudent(c *gin.Context) {
	guardian, ok := currentGuardian(c)
	if !ok {
		return
	}

	var input struct {
		Name        string  `json:"name" binding:"required"`
		Age         int     `json:"age"`
		Grade       string  `json:"grade"`
		HomeAddress string  `json:"home_address"`
		HomeLat     float64 `json:"home_lat"`
		HomeLng     float64 `json:"home_lng"`
		SchoolName  string  `json:"school_name"`
		SchoolLat   float64 `json:"school_lat"`
		SchoolLng   float64 `json:"school_lng"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	student := models.Student{
		Name:        input.Name,
		Age:         input.Age,
		Grade:       input.Grade,
		HomeAddress: input.HomeAddress,
		HomeLat:     input.HomeLat,
		HomeLng:     input.HomeLng,
		SchoolName:  input.SchoolName,
		SchoolLat:   input.SchoolLat,
		SchoolLng:   input.SchoolLng,
		GuardianID:  guardian.ID,
	}
	if err := config.DB.Create(&student).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create student: " + err.Error()})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"student": student})
}

// ListMyStudents returns the calling guardian's students.
func ListMyStudents(c *gin.Context) {
	guardian, ok := currentGuardian(c)
	if !ok {
		return
	}

	var students []models.Student
	if err := config.DB.Where("guardian_id = ?", guardian.ID).Order("id ASC").Find(&students).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"students": students})
}

// loadOwnedStudent fetches a student and checks it belongs to the
// calling guardian. Writes the error response itself on failure.
func loadOwnedStudent(c *gin.Context, guardianID uint) (*models.Student, bool) {
	studentID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid student ID"})
		return nil, false
	}
	var student models.Student
	if err := config.DB.First(&student, uint(studentID)).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Student not found"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return nil, false
	}
	if student.GuardianID != guardianID {
		c.JSON(http.StatusForbidden, gin.H{"error": "Student belongs to another guardian"})
		return nil, false
	}
	return &student, true
}

// UpdateStudent applies partial updates to one of the guardian's students.
func UpdateStudent(c *gin.Context) {
	guardian, ok := currentGuardian(c)
	if !ok {
		return
	}
	student, ok := loadOwnedStudent(c, guardian.ID)
	if !ok {
		return
	}

	var input struct {
		Name        *string  `json:"name"`
		Age         *int     `json:"age"`
		Grade       *string  `json:"grade"`
		HomeAddress *string  `json:"home_address"`
		HomeLat     *float64 `json:"home_lat"`
		HomeLng     *float64 `json:"home_lng"`
		SchoolName  *string  `json:"school_name"`
		SchoolLat   *float64 `json:"school_lat"`
		SchoolLng   *float64 `json:"school_lng"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	if input.Name != nil {
		student.Name = *input.Name
	}
	if input.Age != nil {
		student.Age = *input.Age
	}
	if input.Grade != nil {
		student.Grade = *input.Grade
	}
	if input.HomeAddress != nil {
		student.HomeAddress = *input.HomeAddress
	}
	if input.HomeLat != nil {
		student.HomeLat = *input.HomeLat
	}
	if input.HomeLng != nil {
		student.HomeLng = *input.HomeLng
	}
	if input.SchoolName != nil {
		student.SchoolName = *input.SchoolName
	}
	if input.SchoolLat != nil {
		student.SchoolLat = *input.SchoolLat
	}
	if input.SchoolLng != nil {
		student.SchoolLng = *input.SchoolLng
	}

	if err := config.DB.Save(student).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"student": student})
}

// DeleteStudent removes one of the guardian's students along with their
// attendance records. Template stops referencing the student are left to
// the driver to clean up on the next template edit.
func DeleteStudent(c *gin.Context) {
	guardian, ok := currentGuardian(c)
	if !ok {
		return
	}
	student, ok := loadOwnedStudent(c, guardian.ID)
	if !ok {
		return
	}

	err := config.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("student_id = ?", student.ID).Delete(&models.AttendanceRecord{}).Error; err != nil {
			return err
		}
		return tx.Delete(student).Error
	})
	if err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Student deleted"})
}

// SetAttendance upserts a per-day attendance override for one of the
// guardian's students. Date defaults to today.
func SetAttendance(c *gin.Context) {
	guardian, ok := currentGuardian(c)
	if !ok {
		return
	}

	var input struct {
		StudentID uint   `json:"student_id" binding:"required"`
		Date      string `json:"date"`
		Attending *bool  `json:"attending" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	date := time.Now()
	if input.Date != "" {
		parsed, err := time.Parse("2006-01-02", input.Date)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	record, err := services.NewAttendanceService(config.DB).Set(guardian.ID, input.StudentID, date, *input.Attending)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"attendance": record})
}

// LinkDriver connects the guardian to a driver via the driver's link code.
func LinkDriver(c *gin.Context) {
	guardian, ok := currentGuardian(c)
	if !ok {
		return
	}

	var input struct {
		LinkCode string `json:"link_code" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	var driver models.Driver
	if err := config.DB.Where("link_code = ?", input.LinkCode).First(&driver).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Invalid link code"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}

	var existing models.GuardianDriverLink
	err := config.DB.Where("guardian_id = ? AND driver_id = ?", guardian.ID, driver.ID).First(&existing).Error
	if err == nil {
		c.JSON(http.StatusConflict, gin.H{"error": "Already linked to this driver"})
		return
	}
	if !errors.Is(err, gorm.ErrRecordNotFound) {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	link := models.GuardianDriverLink{GuardianID: guardian.ID, DriverID: driver.ID}
	if err := config.DB.Create(&link).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": "could not create link: " + err.Error()})
		return
	}

	logrus.WithFields(logrus.Fields{
		"guardian_id": guardian.ID,
		"driver_id":   driver.ID,
	}).Info("Guardian linked to driver")
	c.JSON(http.StatusCreated, gin.H{"message": "Linked to driver successfully"})
}

// ListLinkedDrivers returns the drivers the guardian is linked to.
func ListLinkedDrivers(c *gin.Context) {
	guardian, ok := currentGuardian(c)
	if !ok {
		return
	}

	var links []models.GuardianDriverLink
	if err := config.DB.Where("guardian_id = ?", guardian.ID).Find(&links).Error; err != nil {
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		return
	}

	type linkedDriver struct {
		ID           uint   `json:"id"`
		Name         string `json:"name"`
		Phone        string `json:"phone"`
		LicensePlate string `json:"license_plate"`
		VehicleModel string `json:"vehicle_model"`
	}
	result := make([]linkedDriver, 0, len(links))
	for _, link := range links {
		var driver models.Driver
		if err := config.DB.Preload("User").First(&driver, link.DriverID).Error; err != nil {
			continue
		}
		result = append(result, linkedDriver{
			ID:           driver.ID,
			Name:         driver.User.Name,
			Phone:        driver.User.Phone,
			LicensePlate: driver.LicensePlate,
			VehicleModel: driver.VehicleModel,
		})
	}
	c.JSON(http.StatusOK, gin.H{"drivers": result})
}
