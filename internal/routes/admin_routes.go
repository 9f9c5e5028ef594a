package routes

import (
	"van_tracker/internal/controllers"
	"van_tracker/internal/middleware"

	"github.com/gin-gonic/gin"
)

func AdminRoutes(r *gin.Engine) {
	admin := r.Group("/admin")
	admin.Use(middleware.RequireAuthWithRole("admin"))
	{
		admin.GET("/drivers", controllers.ListDrivers)
		admin.GET("/guardians", controllers.ListGuardians)
		admin.GET("/students", controllers.ListStudents)
		admin.POST("/assign-student", controllers.AssignStudentToDriver)
	}
}
