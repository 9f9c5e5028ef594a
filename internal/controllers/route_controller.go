package controllers

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"

	"van_tracker/internal/config"
	"van_tracker/internal/notify"
	"van_tracker/internal/services"
)

func routeService() *services.RouteService {
	return services.NewRouteService(config.DB, notify.LogDispatcher{}, liveHub)
}

// GenerateDailyRoute instantiates one of the driver's templates into
// today's route, filtered by attendance.
func GenerateDailyRoute(c *gin.Context) {
	driver, ok := currentDriver(c)
	if !ok {
		return
	}

	var input struct {
		TemplateID uint `json:"template_id" binding:"required"`
	}
	if err := c.ShouldBindJSON(&input); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": err.Error()})
		return
	}

	view, err := routeService().GenerateDailyRoute(driver.ID, input.TemplateID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusCreated, gin.H{"route": view})
}

// GetActiveRoute returns the driver's in-progress route with its stops.
func GetActiveRoute(c *gin.Context) {
	driver, ok := currentDriver(c)
	if !ok {
		return
	}

	view, err := routeService().GetActiveRoute(driver.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"route": view})
}

// ListRoutesByDate returns the driver's routes for one day, any status.
func ListRoutesByDate(c *gin.Context) {
	driver, ok := currentDriver(c)
	if !ok {
		return
	}

	dateStr := c.Query("date")
	date := time.Now()
	if dateStr != "" {
		parsed, err := time.Parse("2006-01-02", dateStr)
		if err != nil {
			c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid date, expected YYYY-MM-DD"})
			return
		}
		date = parsed
	}

	views, err := routeService().ListRoutesByDate(driver.ID, date)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"routes": views})
}

// ListStops returns the ordered stops of the driver's active route.
func ListStops(c *gin.Context) {
	driver, ok := currentDriver(c)
	if !ok {
		return
	}

	stops, err := routeService().ListStopsForActiveRoute(driver.ID)
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stops": stops})
}

// GetStop returns one stop, scoped to the calling driver's own route.
func GetStop(c *gin.Context) {
	driver, ok := currentDriver(c)
	if !ok {
		return
	}
	stopID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stop ID"})
		return
	}

	stop, err := routeService().GetStop(driver.ID, uint(stopID))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stop": stop})
}

// MarkPickedUp records that the student at a stop boarded the van.
func MarkPickedUp(c *gin.Context) {
	driver, ok := currentDriver(c)
	if !ok {
		return
	}
	stopID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stop ID"})
		return
	}

	stop, err := routeService().MarkPickedUp(driver.ID, uint(stopID))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stop": stop})
}

// MarkDelivered records a drop-off. Delivering the final-destination stop
// also finalizes the route.
func MarkDelivered(c *gin.Context) {
	driver, ok := currentDriver(c)
	if !ok {
		return
	}
	stopID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid stop ID"})
		return
	}

	stop, finalized, err := routeService().MarkDelivered(driver.ID, uint(stopID))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"stop": stop, "route_finalized": finalized})
}

// FinalizeRoute terminates a route regardless of stop completion.
func FinalizeRoute(c *gin.Context) {
	driver, ok := currentDriver(c)
	if !ok {
		return
	}
	routeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route ID"})
		return
	}

	if err := routeService().Finalize(driver.ID, uint(routeID)); err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"message": "Route finalized"})
}

// RecalculateRoute regenerates an active route's stops from the template
// and current attendance.
func RecalculateRoute(c *gin.Context) {
	driver, ok := currentDriver(c)
	if !ok {
		return
	}
	routeID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid route ID"})
		return
	}

	view, err := routeService().Recalculate(driver.ID, uint(routeID))
	if err != nil {
		respondServiceError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"route": view})
}
