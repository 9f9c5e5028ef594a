package routes

import (
	"van_tracker/internal/controllers"

	"github.com/gin-gonic/gin"
)

func WebSocketRoutes(r *gin.Engine) {
	wsRoutes := r.Group("/ws")
	{
		wsRoutes.GET("/location", controllers.HandleLocationWebSocket)
	}
}
