package controllers

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	logrus "github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"van_tracker/internal/config"
	"van_tracker/internal/live"
	"van_tracker/internal/middleware"
	"van_tracker/internal/models"
)

// upgrader configures the WebSocket connection.
var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // Allow all for development (restrict in production!)
	},
}

// liveHub fans driver positions out to watching guardians. The route
// lifecycle gates it via Start/Stop.
var liveHub = live.NewHub()

// locationData is the incoming frame from the driver app.
type locationData struct {
	Latitude  float64   `json:"latitude"`
	Longitude float64   `json:"longitude"`
	Accuracy  float64   `json:"accuracy"`
	Speed     float64   `json:"speed"`
	Timestamp time.Time `json:"timestamp"`
}

// authenticateWebSocket validates the JWT passed as a query parameter and
// resolves the actor's profile.
func authenticateWebSocket(c *gin.Context) (*middleware.Claims, error) {
	tokenString := c.Query("token")
	if tokenString == "" {
		return nil, errors.New("missing authentication token")
	}
	claims, err := middleware.ValidateToken(tokenString)
	if err != nil {
		return nil, fmt.Errorf("invalid token: %w", err)
	}
	return claims, nil
}

// HandleLocationWebSocket is the universal websocket endpoint: drivers
// stream positions, guardians watch a linked driver.
func HandleLocationWebSocket(c *gin.Context) {
	claims, err := authenticateWebSocket(c)
	if err != nil {
		logrus.WithError(err).Warn("WebSocket connection attempt failed")
		c.JSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
		return
	}

	switch claims.Role {
	case "driver":
		var driver models.Driver
		if err := config.DB.Where("user_id = ?", claims.UserID).First(&driver).Error; err != nil {
			c.JSON(http.StatusNotFound, gin.H{"error": "Driver profile not found"})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
			return
		}
		defer conn.Close()
		handleDriverStream(conn, driver.ID)

	case "guardian":
		driverID, err := watchedDriverID(c, claims.UserID)
		if err != nil {
			c.JSON(http.StatusForbidden, gin.H{"error": err.Error()})
			return
		}
		conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
		if err != nil {
			logrus.WithError(err).Error("Failed to upgrade WebSocket connection.")
			return
		}
		defer conn.Close()
		handleWatcherStream(conn, driverID)

	default:
		c.JSON(http.StatusForbidden, gin.H{"error": "unauthorized role for WebSocket connection"})
	}
}

// watchedDriverID resolves and authorizes the driver a guardian wants to
// watch. The guardian must be linked to that driver.
func watchedDriverID(c *gin.Context, userID uint) (uint, error) {
	var guardian models.Guardian
	if err := config.DB.Where("user_id = ?", userID).First(&guardian).Error; err != nil {
		return 0, errors.New("guardian profile not found")
	}
	driverIDStr := c.Query("driver_id")
	if driverIDStr == "" {
		return 0, errors.New("missing 'driver_id' query parameter")
	}
	parsed, err := strconv.ParseUint(driverIDStr, 10, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid 'driver_id' parameter: %w", err)
	}
	var link models.GuardianDriverLink
	err = config.DB.Where("guardian_id = ? AND driver_id = ?", guardian.ID, uint(parsed)).First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return 0, errors.New("not linked to this driver")
		}
		return 0, err
	}
	return uint(parsed), nil
}

// handleDriverStream reads position frames from a driver, persists them
// and forwards them to the hub.
func handleDriverStream(conn *websocket.Conn, driverID uint) {
	logrus.WithField("driver_id", driverID).Info("Driver WebSocket connection established.")

	for {
		messageType, p, err := conn.ReadMessage()
		if err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("driver_id", driverID).Info("Driver WebSocket closed.")
			} else {
				logrus.WithError(err).Errorf("Error reading WebSocket message from Driver ID %d", driverID)
			}
			break
		}
		if messageType == websocket.TextMessage {
			processDriverLocation(conn, p, driverID)
		}
	}
}

// handleWatcherStream keeps a guardian connection registered until it
// closes. Watchers only receive; inbound messages are ignored.
func handleWatcherStream(conn *websocket.Conn, driverID uint) {
	liveHub.RegisterWatcher(driverID, conn)
	defer liveHub.UnregisterWatcher(driverID, conn)

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				logrus.WithField("driver_id", driverID).Info("Watcher WebSocket closed.")
			} else {
				logrus.WithError(err).Warn("Error reading WebSocket message from watcher")
			}
			break
		}
	}
}

func processDriverLocation(driverConn *websocket.Conn, p []byte, driverID uint) {
	var data locationData
	if err := json.Unmarshal(p, &data); err != nil {
		logrus.WithError(err).WithField("driver_id", driverID).Error("Error unmarshaling location data from driver")
		driverConn.WriteJSON(gin.H{"error": "Invalid location data format."})
		return
	}
	if data.Timestamp.IsZero() {
		data.Timestamp = time.Now()
	}

	record := models.LocationHistory{
		DriverID:  driverID,
		Latitude:  data.Latitude,
		Longitude: data.Longitude,
		Accuracy:  data.Accuracy,
		Speed:     data.Speed,
		Timestamp: data.Timestamp,
	}
	if err := config.DB.Create(&record).Error; err != nil {
		logrus.WithError(err).WithField("driver_id", driverID).Error("Failed to persist driver location")
	}

	liveHub.Publish(live.Frame{
		DriverID:  driverID,
		Latitude:  data.Latitude,
		Longitude: data.Longitude,
		Speed:     data.Speed,
		Timestamp: data.Timestamp.Format(time.RFC3339),
	})
}

// GetLastDriverLocation returns the latest persisted position for a
// driver the guardian is linked to.
func GetLastDriverLocation(c *gin.Context) {
	guardian, ok := currentGuardian(c)
	if !ok {
		return
	}
	driverID, err := strconv.ParseUint(c.Param("id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "Invalid driver ID"})
		return
	}

	var link models.GuardianDriverLink
	if err := config.DB.Where("guardian_id = ? AND driver_id = ?", guardian.ID, uint(driverID)).First(&link).Error; err != nil {
		c.JSON(http.StatusForbidden, gin.H{"error": "Not linked to this driver"})
		return
	}

	var location models.LocationHistory
	err = config.DB.Where("driver_id = ?", uint(driverID)).
		Order("timestamp DESC").
		First(&location).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.JSON(http.StatusNotFound, gin.H{"error": "Location not available"})
		} else {
			c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
		}
		return
	}
	c.JSON(http.StatusOK, gin.H{"location": location})
}
