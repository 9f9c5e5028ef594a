package routes

import (
	"van_tracker/internal/controllers"
	"van_tracker/internal/middleware"

	"github.com/gin-gonic/gin"
)

func GuardianRoutes(r *gin.Engine) {
	guardian := r.Group("/guardian")
	guardian.Use(middleware.RequireAuthWithRole("guardian"))
	{
		guardian.POST("/students", controllers.RegisterStudent)
		guardian.GET("/students", controllers.ListMyStudents)
		guardian.PUT("/students/:id", controllers.UpdateStudent)
		guardian.DELETE("/students/:id", controllers.DeleteStudent)
		guardian.POST("/attendance", controllers.SetAttendance)
		guardian.POST("/link", controllers.LinkDriver)
		guardian.GET("/drivers", controllers.ListLinkedDrivers)
		guardian.GET("/drivers/:id/location", controllers.GetLastDriverLocation)
	}
}
