package routes

import (
	"van_tracker/internal/controllers"
	"van_tracker/internal/middleware"

	"github.com/gin-gonic/gin"
)

func DriverRoutes(r *gin.Engine) {
	driver := r.Group("/driver")
	driver.Use(middleware.RequireAuthWithRole("driver"))
	{
		driver.GET("/me", controllers.GetDriverProfile)
		driver.GET("/students", controllers.ListAssignedStudents)

		// Route templates
		driver.POST("/templates", controllers.CreateTemplate)
		driver.GET("/templates", controllers.ListTemplates)
		driver.GET("/templates/:id", controllers.GetTemplate)
		driver.PUT("/templates/:id", controllers.UpdateTemplate)
		driver.DELETE("/templates/:id", controllers.DeleteTemplate)

		// Daily route lifecycle
		driver.POST("/routes/generate", controllers.GenerateDailyRoute)
		driver.GET("/routes/active", controllers.GetActiveRoute)
		driver.GET("/routes", controllers.ListRoutesByDate)
		driver.POST("/routes/:id/finalize", controllers.FinalizeRoute)
		driver.POST("/routes/:id/recalculate", controllers.RecalculateRoute)

		// Stop progress
		driver.GET("/stops", controllers.ListStops)
		driver.GET("/stops/:id", controllers.GetStop)
		driver.POST("/stops/:id/pickup", controllers.MarkPickedUp)
		driver.POST("/stops/:id/deliver", controllers.MarkDelivered)
	}
}
