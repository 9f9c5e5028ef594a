package routes

import (
	"van_tracker/internal/controllers"
	"van_tracker/internal/middleware"

	"github.com/gin-gonic/gin"
)

func SetupRouter() *gin.Engine {
	r := gin.Default()

	AuthRoutes(r)
	DriverRoutes(r)
	GuardianRoutes(r)
	AdminRoutes(r)
	WebSocketRoutes(r)

	// Device tokens are role-agnostic; any authenticated user registers one.
	tokens := r.Group("/notifications")
	tokens.Use(middleware.RequireAuth())
	{
		tokens.POST("/token", controllers.RegisterDeviceToken)
	}

	return r
}
